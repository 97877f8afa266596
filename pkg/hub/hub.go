// Package hub implements the Hub Facade: brings up the
// Server Manager, API-to-MCP engine, Group Manager, and Tool Manager in
// order, runs the periodic health loop, keeps a redacted message trace,
// and exposes one idempotent, bounded shutdown.
package hub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/codeready-toolchain/mcphub/pkg/apitool"
	"github.com/codeready-toolchain/mcphub/pkg/config"
	"github.com/codeready-toolchain/mcphub/pkg/group"
	"github.com/codeready-toolchain/mcphub/pkg/mcpserver"
	"github.com/codeready-toolchain/mcphub/pkg/redact"
	"github.com/codeready-toolchain/mcphub/pkg/toolmanager"
)

// maxTraceEntries bounds the message-trace ring buffer.
const maxTraceEntries = 1000

// TraceEntry is one recorded MCP message, redacted before storage.
type TraceEntry struct {
	ID        uint64
	Timestamp time.Time
	ServerID  string
	Direction mcpserver.MessageDirection
	Method    string
	Payload   any
}

// HealthReport is the periodic snapshot the health loop computes.
type HealthReport struct {
	Timestamp        time.Time
	Score            int
	ServerStatuses   map[string]mcpserver.HealthStatus
	GroupsAvailable  int
	GroupsTotal      int
}

// Hub orchestrates every component behind one facade.
type Hub struct {
	cfg *config.Config

	Servers  *mcpserver.Manager
	Health   *mcpserver.HealthMonitor
	Groups   *group.Manager
	Tools    *toolmanager.Manager
	APIEngine *apitool.Engine

	scrubber *redact.Scrubber

	mu           sync.Mutex
	trace        []TraceEntry
	traceSeq     uint64
	ready        bool
	lastReport   HealthReport
	traceSink    func(TraceEntry)
	securitySink func(apitool.SecurityEvent)

	shutdownOnce sync.Once
	shutdownErr  error

	logger *slog.Logger
}

// New wires every component over an already-validated Config, but does
// not connect to anything yet — call Start for that.
func New(cfg *config.Config) *Hub {
	h := &Hub{
		cfg:      cfg,
		scrubber: redact.New(),
		logger:   slog.Default().With("component", "hub"),
	}

	h.Servers = mcpserver.NewManager(cfg.ServerRegistry)
	h.Servers.SetMessageTracker(h.traceMessage)

	h.APIEngine = apitool.New(cfg.APIToolRegistry, nil, h.onSecurityEvent)

	h.Groups = group.NewManager(cfg.GroupRegistry, h.Servers, func() map[string]bool {
		names := make(map[string]bool)
		for _, t := range cfg.APIToolRegistry.GetAll() {
			names[t.Name] = true
		}
		return names
	})

	h.Tools = toolmanager.New(h.Groups, h.Servers, cfg.APIToolRegistry, h.APIEngine)

	h.Health = mcpserver.NewHealthMonitor(h.Servers)
	h.Health.SetInvalidationHook(func(string) { h.Tools.InvalidateCache() })

	return h
}

// Start brings the hub up in order: connect every configured server — the
// API-to-MCP engine has no connection phase of its own — then start the
// health loop (which feeds the Tool Manager's cache invalidation), and
// finally declare readiness once at least one group has a CONNECTED server.
func (h *Hub) Start(ctx context.Context) error {
	if err := h.Servers.Initialize(ctx); err != nil {
		return fmt.Errorf("server manager init: %w", err)
	}

	if collisions := h.Tools.CheckNameCollisions(); len(collisions) > 0 {
		h.logger.Error("api tool / mcp tool name collisions detected", "names", collisions)
	}

	h.Health.Start(ctx)

	report := h.computeHealthReport()
	h.mu.Lock()
	h.lastReport = report
	h.ready = report.GroupsAvailable > 0
	h.mu.Unlock()

	if report.GroupsAvailable == 0 {
		h.logger.Error("hub starting with zero available groups; no tools will be exposed")
	}
	connected := 0
	for _, snap := range h.Servers.GetAllServers() {
		if snap.Status == mcpserver.StatusConnected {
			connected++
		}
	}
	if connected == 0 {
		h.logger.Error("hub starting with zero connected servers")
	}

	go h.runHealthLoop(ctx)

	h.logger.Info("hub ready", "groups_available", report.GroupsAvailable, "groups_total", report.GroupsTotal, "score", report.Score)
	return nil
}

// IsReady reports whether the synchronous startup health check passed.
func (h *Hub) IsReady() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ready
}

// LastHealthReport returns the most recently computed report.
func (h *Hub) LastHealthReport() HealthReport {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastReport
}

func (h *Hub) runHealthLoop(ctx context.Context) {
	ticker := time.NewTicker(mcpserver.HealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			report := h.computeHealthReport()
			h.mu.Lock()
			h.lastReport = report
			h.mu.Unlock()
		case <-ctx.Done():
			return
		}
	}
}

func (h *Hub) computeHealthReport() HealthReport {
	statuses := h.Servers.GetAllServers()
	statusMap := make(map[string]mcpserver.HealthStatus, len(statuses))
	for id, snap := range statuses {
		statusMap[id] = mcpserver.HealthStatus{ServerID: id, Status: snap.Status, Healthy: snap.Status == mcpserver.StatusConnected, LastErr: snap.LastError}
	}

	groupsTotal := 0
	groupsAvailable := 0
	for id := range h.Groups.GetAllGroups() {
		groupsTotal++
		if healthy, err := h.Groups.HealthCheck(id); err == nil && healthy {
			groupsAvailable++
		}
	}

	return HealthReport{
		Timestamp:       time.Now(),
		Score:           mcpserver.Score(statuses),
		ServerStatuses:  statusMap,
		GroupsAvailable: groupsAvailable,
		GroupsTotal:     groupsTotal,
	}
}

// traceMessage is installed on the Server Manager as its MessageTracker.
func (h *Hub) traceMessage(serverID string, direction mcpserver.MessageDirection, method string, payload any) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.traceSeq++
	entry := TraceEntry{
		ID:        h.traceSeq,
		Timestamp: time.Now(),
		ServerID:  serverID,
		Direction: direction,
		Method:    method,
		Payload:   h.scrubber.Redact(payload),
	}

	h.trace = append(h.trace, entry)
	if len(h.trace) > maxTraceEntries {
		h.trace = h.trace[len(h.trace)-maxTraceEntries:]
	}

	if h.traceSink != nil {
		h.traceSink(entry)
	}
}

// SetTraceSink installs an additional consumer of every traced message,
// called after the entry is appended to the in-memory ring buffer — used
// by the optional persisted-audit collaborator.
func (h *Hub) SetTraceSink(fn func(TraceEntry)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.traceSink = fn
}

// SetSecuritySink installs an additional consumer of every API-tool
// security event, alongside the hub's own logging.
func (h *Hub) SetSecuritySink(fn func(apitool.SecurityEvent)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.securitySink = fn
}

// MessageTrace returns a copy of the last messages traced, newest last.
func (h *Hub) MessageTrace() []TraceEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]TraceEntry, len(h.trace))
	copy(out, h.trace)
	return out
}

func (h *Hub) onSecurityEvent(evt apitool.SecurityEvent) {
	h.logger.Warn("hub observed security event", "type", evt.Type, "tool", evt.ToolID)
	h.mu.Lock()
	sink := h.securitySink
	h.mu.Unlock()
	if sink != nil {
		sink(evt)
	}
}

// Shutdown tears the hub down exactly once, aggregating every component's
// error. Safe to call multiple times or concurrently.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.shutdownOnce.Do(func() {
		h.Health.Stop()
		h.shutdownErr = h.Servers.Shutdown(ctx)
	})
	if h.shutdownErr != nil {
		return fmt.Errorf("hub shutdown: %w", h.shutdownErr)
	}
	return nil
}

// ErrNotReady is returned by operations attempted before Start completes.
var ErrNotReady = errors.New("hub is not ready")
