package mcpserver

import (
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/codeready-toolchain/mcphub/pkg/config"
)

// MessageDirection labels one side of a traced MCP message.
type MessageDirection string

const (
	DirectionOutbound MessageDirection = "outbound"
	DirectionInbound  MessageDirection = "inbound"
)

// MessageTracker receives every MCP request/response/notification exchanged
// on a connection, for the Hub Facade's message-trace ring buffer.
type MessageTracker func(serverID string, direction MessageDirection, method string, payload any)

// ServerConnection is one logical connection to a downstream MCP server:
// transport + state + cached tool list + reconnect policy.
// Mutation is allowed only by the owning ServerManager; external readers
// get a value snapshot via Snapshot.
type ServerConnection struct {
	mu sync.RWMutex

	id     string
	config config.ServerConfig

	status ConnectionStatus
	client *mcpsdk.Client
	session *mcpsdk.ClientSession
	tools  []*mcpsdk.Tool

	lastConnected     time.Time
	lastError         string
	reconnectAttempts int
	connectSeq        uint64
}

// ConnectionStatus mirrors config.ConnectionStatus to keep this package
// independent of config's enum identity while matching its string values.
type ConnectionStatus = config.ConnectionStatus

const (
	StatusDisconnected = config.StatusDisconnected
	StatusConnecting   = config.StatusConnecting
	StatusConnected    = config.StatusConnected
	StatusError        = config.StatusError
)

func newServerConnection(id string, cfg config.ServerConfig) *ServerConnection {
	return &ServerConnection{id: id, config: cfg, status: StatusDisconnected}
}

// Snapshot is an immutable, race-free view of a ServerConnection for
// callers outside the ServerManager (Tool Manager, health loop, frontend).
type Snapshot struct {
	ID                string
	Config            config.ServerConfig
	Status            ConnectionStatus
	Tools             []*mcpsdk.Tool
	LastConnected     time.Time
	LastError         string
	ReconnectAttempts int
	// ConnectSeq is the order in which this server first reached
	// CONNECTED, relative to its siblings; 0 means never connected.
	// Reconnecting preserves the original value, so it doubles as a
	// stable "first registration" order for duplicate tool-name
	// resolution across servers.
	ConnectSeq uint64
}

// Snapshot copies the connection's current state.
func (c *ServerConnection) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Snapshot{
		ID:                c.id,
		Config:            c.config,
		Status:            c.status,
		Tools:             append([]*mcpsdk.Tool(nil), c.tools...),
		LastConnected:     c.lastConnected,
		LastError:         c.lastError,
		ReconnectAttempts: c.reconnectAttempts,
		ConnectSeq:        c.connectSeq,
	}
}

func (c *ServerConnection) setStatus(s ConnectionStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = s
}

// markConnected transitions the connection to CONNECTED. seq is the
// manager-assigned connect sequence number; it is applied only the first
// time a connection reaches CONNECTED, so a later reconnect never changes
// a server's position in "first registration wins" ordering.
func (c *ServerConnection) markConnected(client *mcpsdk.Client, session *mcpsdk.ClientSession, tools []*mcpsdk.Tool, seq uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = StatusConnected
	c.client = client
	c.session = session
	c.tools = tools
	c.lastConnected = time.Now()
	c.lastError = ""
	c.reconnectAttempts = 0
	if c.connectSeq == 0 {
		c.connectSeq = seq
	}
}

func (c *ServerConnection) markError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = StatusError
	c.lastError = err.Error()
	c.reconnectAttempts++
}

func (c *ServerConnection) getSession() (*mcpsdk.ClientSession, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session, c.session != nil && c.status == StatusConnected
}

func (c *ServerConnection) setTools(tools []*mcpsdk.Tool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tools = tools
}

func (c *ServerConnection) clearSession() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = nil
	c.client = nil
}
