package mcpserver

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/sync/errgroup"

	"github.com/codeready-toolchain/mcphub/pkg/config"
	"github.com/codeready-toolchain/mcphub/pkg/transport"
	"github.com/codeready-toolchain/mcphub/pkg/version"
)

// shutdownWallClock is the hub-wide deadline for Shutdown.
const shutdownWallClock = 10 * time.Second

// forceCloseThreshold is the per-connection grace period during shutdown;
// a connection still closing after this is abandoned rather than blocking
// its siblings.
const forceCloseThreshold = 2 * time.Second

// Manager owns all ServerConnections: initialises, supervises, tears
// down. Exactly one Manager exists per hub process.
type Manager struct {
	registry *config.ServerRegistry

	mu          sync.RWMutex
	connections map[string]*ServerConnection

	reinitMu sync.Map // serverID → *sync.Mutex, prevents thundering-herd reconnects

	connectSeq atomic.Uint64 // assigns each server's first-CONNECTED order

	tracker MessageTracker
	logger  *slog.Logger
}

// NewManager creates a Manager over the given server registry. Call
// Initialize before any other method.
func NewManager(registry *config.ServerRegistry) *Manager {
	return &Manager{
		registry:    registry,
		connections: make(map[string]*ServerConnection),
		logger:      slog.Default().With("component", "server_manager"),
	}
}

// SetMessageTracker installs a tap receiving every MCP request/response
// exchanged on any connection.
func (m *Manager) SetMessageTracker(fn MessageTracker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tracker = fn
}

// Initialize connects to every enabled configured server concurrently.
// Failures on individual servers are recorded on their connection (status
// ERROR) and never abort initialization of the others.
func (m *Manager) Initialize(ctx context.Context) error {
	servers := m.registry.GetAll()

	m.mu.Lock()
	for id, cfg := range servers {
		if _, exists := m.connections[id]; !exists {
			m.connections[id] = newServerConnection(id, cfg)
		}
	}
	m.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for id, cfg := range servers {
		if !cfg.IsEnabled() {
			m.logger.Info("server disabled, skipping connect", "server", id)
			continue
		}
		id, cfg := id, cfg
		g.Go(func() error {
			m.connect(gctx, id, cfg)
			return nil // per-server errors never abort the fan-out
		})
	}
	// errgroup's error is always nil here by construction, but Wait still
	// propagates ctx cancellation bookkeeping.
	return g.Wait()
}

func (m *Manager) connect(ctx context.Context, id string, cfg config.ServerConfig) {
	conn := m.getOrCreate(id, cfg)
	conn.setStatus(StatusConnecting)

	initCtx, cancel := context.WithTimeout(ctx, InitTimeout)
	defer cancel()

	m.trace(id, DirectionOutbound, "initialize", cfg.Transport)

	t, err := transport.New(cfg.Transport)
	if err != nil {
		conn.markError(err)
		m.logger.Warn("server transport construction failed", "server", id, "error", err)
		return
	}

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: version.AppName, Version: version.GitCommit}, nil)
	session, err := client.Connect(initCtx, t, nil)
	if err != nil {
		conn.markError(err)
		m.trace(id, DirectionInbound, "initialize", err.Error())
		m.logger.Warn("server connect failed", "server", id, "error", err)
		return
	}

	tools, err := fetchTools(initCtx, session)
	if err != nil {
		conn.markError(err)
		m.trace(id, DirectionInbound, "tools/list", err.Error())
		m.logger.Warn("server tools/list failed", "server", id, "error", err)
		_ = session.Close()
		return
	}

	m.trace(id, DirectionInbound, "initialize", fmt.Sprintf("connected, %d tools", len(tools)))
	conn.markConnected(client, session, tools, m.connectSeq.Add(1))
	m.logger.Info("server connected", "server", id, "tools", len(tools))
}

// trace reports one message to the installed MessageTracker, if any. Safe
// to call before a tracker is installed.
func (m *Manager) trace(serverID string, direction MessageDirection, method string, payload any) {
	m.mu.RLock()
	tracker := m.tracker
	m.mu.RUnlock()
	if tracker != nil {
		tracker(serverID, direction, method, payload)
	}
}

func fetchTools(ctx context.Context, session *mcpsdk.ClientSession) ([]*mcpsdk.Tool, error) {
	result, err := session.ListTools(ctx, nil)
	if err != nil {
		return nil, err
	}
	if result.Tools == nil {
		return []*mcpsdk.Tool{}, nil
	}
	return result.Tools, nil
}

func (m *Manager) getOrCreate(id string, cfg config.ServerConfig) *ServerConnection {
	m.mu.Lock()
	defer m.mu.Unlock()
	conn, ok := m.connections[id]
	if !ok {
		conn = newServerConnection(id, cfg)
		m.connections[id] = conn
	}
	return conn
}

// GetAllServers returns a read-only snapshot mapping id to connection
// state.
func (m *Manager) GetAllServers() map[string]Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]Snapshot, len(m.connections))
	for id, conn := range m.connections {
		out[id] = conn.Snapshot()
	}
	return out
}

// GetServer returns one connection's snapshot.
func (m *Manager) GetServer(id string) (Snapshot, error) {
	m.mu.RLock()
	conn, ok := m.connections[id]
	m.mu.RUnlock()
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrServerNotFound, id)
	}
	return conn.Snapshot(), nil
}

// GetServerTools fetches a fresh tools/list from a CONNECTED server and
// stores it as the connection's cached tool list. It always issues the
// request; it never answers from the cached copy, and a server that is not
// CONNECTED yields ErrServerNotInitialized.
func (m *Manager) GetServerTools(ctx context.Context, id string) ([]*mcpsdk.Tool, error) {
	m.mu.RLock()
	conn, ok := m.connections[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrServerNotFound, id)
	}

	session, connected := conn.getSession()
	if !connected {
		return nil, fmt.Errorf("%w: %s", ErrServerNotInitialized, id)
	}

	opCtx, cancel := context.WithTimeout(ctx, OperationTimeout)
	defer cancel()

	tools, err := fetchTools(opCtx, session)
	if err != nil {
		return nil, err
	}
	conn.setTools(tools)
	return tools, nil
}

// CallTool dispatches a tool call to the given server, retrying once with
// a freshly recreated session when the failure is classified as a
// transport fault.
func (m *Manager) CallTool(ctx context.Context, serverID, toolName string, args map[string]any) (*mcpsdk.CallToolResult, error) {
	params := &mcpsdk.CallToolParams{Name: toolName, Arguments: args}

	result, err := m.callOnce(ctx, serverID, params)
	if err == nil {
		return result, nil
	}

	if ClassifyError(err) != RetryNewSession {
		return nil, &ToolExecutionError{ServerID: serverID, Cause: err}
	}

	select {
	case <-time.After(jitteredCallBackoff()):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if rerr := m.ReconnectServer(ctx, serverID); rerr != nil {
		return nil, &ToolExecutionError{ServerID: serverID, Cause: rerr}
	}

	result, err = m.callOnce(ctx, serverID, params)
	if err != nil {
		return nil, &ToolExecutionError{ServerID: serverID, Cause: err}
	}
	return result, nil
}

func (m *Manager) callOnce(ctx context.Context, serverID string, params *mcpsdk.CallToolParams) (*mcpsdk.CallToolResult, error) {
	m.mu.RLock()
	conn, ok := m.connections[serverID]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrServerNotFound, serverID)
	}

	session, connected := conn.getSession()
	if !connected {
		return nil, fmt.Errorf("%w: %s", ErrServerNotInitialized, serverID)
	}

	opCtx, cancel := context.WithTimeout(ctx, OperationTimeout)
	defer cancel()

	m.trace(serverID, DirectionOutbound, "tools/call", params)

	result, err := session.CallTool(opCtx, params)
	if err != nil {
		m.trace(serverID, DirectionInbound, "tools/call", err.Error())
		return nil, err
	}

	m.trace(serverID, DirectionInbound, "tools/call", result)
	return result, nil
}

// ReconnectServer reconnects exactly one connection without touching any
// other connection or re-running Initialize. Serialized per server to avoid a reconnect storm when
// many concurrent calls hit the same broken connection.
func (m *Manager) ReconnectServer(ctx context.Context, id string) error {
	muI, _ := m.reinitMu.LoadOrStore(id, &sync.Mutex{})
	mu := muI.(*sync.Mutex)
	mu.Lock()
	defer mu.Unlock()

	m.mu.RLock()
	conn, ok := m.connections[id]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrServerNotFound, id)
	}

	if session, connected := conn.getSession(); connected {
		_ = session.Close()
	}
	conn.clearSession()

	reinitCtx, cancel := context.WithTimeout(ctx, ReinitTimeout)
	defer cancel()

	m.connect(reinitCtx, id, conn.config)

	if _, connected := conn.getSession(); !connected {
		return fmt.Errorf("reconnect failed for %q: %s", id, conn.Snapshot().LastError)
	}
	return nil
}

// Shutdown closes every connection's client, bounded by a hub-wide 10s
// deadline; any connection exceeding forceCloseThreshold during close is
// abandoned rather than blocking the rest.
func (m *Manager) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownWallClock)
	defer cancel()

	m.mu.Lock()
	conns := make([]*ServerConnection, 0, len(m.connections))
	for _, c := range m.connections {
		conns = append(conns, c)
	}
	m.mu.Unlock()

	var wg sync.WaitGroup
	errs := make([]error, len(conns))
	for i, conn := range conns {
		wg.Add(1)
		go func(i int, conn *ServerConnection) {
			defer wg.Done()
			errs[i] = m.closeConnection(conn)
		}(i, conn)
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()

	select {
	case <-done:
	case <-ctx.Done():
		m.logger.Warn("shutdown deadline exceeded, abandoning stragglers")
	}

	var aggregate error
	for _, err := range errs {
		if err != nil {
			if aggregate == nil {
				aggregate = err
			} else {
				aggregate = fmt.Errorf("%w; %v", aggregate, err)
			}
		}
	}

	m.mu.Lock()
	m.connections = make(map[string]*ServerConnection)
	m.mu.Unlock()

	return aggregate
}

func (m *Manager) closeConnection(conn *ServerConnection) error {
	session, connected := conn.getSession()
	conn.setStatus(StatusDisconnected)
	if !connected {
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- session.Close() }()

	select {
	case err := <-done:
		return err
	case <-time.After(forceCloseThreshold):
		m.logger.Warn("connection close exceeded grace period, abandoning", "server", conn.id)
		return nil
	}
}
