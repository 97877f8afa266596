package mcpserver

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// HealthStatus is the per-server outcome of one health check pass.
type HealthStatus struct {
	ServerID string
	Status   ConnectionStatus
	Healthy  bool
	LastErr  string
}

// InvalidationHook is called whenever a server's connection status
// transitions, so the Tool Manager can drop any cached tool catalogue
// that depends on that server.
type InvalidationHook func(serverID string)

// HealthMonitor polls every connection on a fixed interval, schedules
// reconnects for connections in ERROR, and notifies listeners of status
// transitions. It does not compute the hub-wide health score; Score does.
type HealthMonitor struct {
	manager *Manager
	logger  *slog.Logger

	interval time.Duration

	mu          sync.Mutex
	lastStatus  map[string]ConnectionStatus
	invalidator InvalidationHook

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHealthMonitor creates a monitor over the given manager, checking
// every HealthInterval.
func NewHealthMonitor(manager *Manager) *HealthMonitor {
	return &HealthMonitor{
		manager:    manager,
		logger:     slog.Default().With("component", "health_monitor"),
		interval:   HealthInterval,
		lastStatus: make(map[string]ConnectionStatus),
	}
}

// SetInvalidationHook installs the callback fired on any status
// transition. Must be called before Start.
func (h *HealthMonitor) SetInvalidationHook(fn InvalidationHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.invalidator = fn
}

// Start launches the periodic health-check loop in the background.
func (h *HealthMonitor) Start(ctx context.Context) {
	h.stopCh = make(chan struct{})
	h.doneCh = make(chan struct{})

	go func() {
		defer close(h.doneCh)
		ticker := time.NewTicker(h.interval)
		defer ticker.Stop()

		h.checkAll(ctx)
		for {
			select {
			case <-ticker.C:
				h.checkAll(ctx)
			case <-h.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts the loop and waits for the in-flight pass, if any, to finish.
func (h *HealthMonitor) Stop() {
	if h.stopCh == nil {
		return
	}
	close(h.stopCh)
	<-h.doneCh
}

func (h *HealthMonitor) checkAll(ctx context.Context) {
	snapshots := h.manager.GetAllServers()

	for id, snap := range snapshots {
		h.mu.Lock()
		prev, known := h.lastStatus[id]
		h.lastStatus[id] = snap.Status
		hook := h.invalidator
		h.mu.Unlock()

		if !known || prev != snap.Status {
			h.logger.Info("server status transition", "server", id, "from", prev, "to", snap.Status)
			if hook != nil {
				hook(id)
			}
		}

		switch snap.Status {
		case StatusConnected:
			h.pingOne(ctx, id)
		case StatusError:
			h.scheduleReconnect(id)
		}
	}
}

// pingOne issues a cheap tools/list to confirm a CONNECTED server is
// actually responsive, scheduling a backoff reconnect when it is not.
func (h *HealthMonitor) pingOne(ctx context.Context, id string) {
	pingCtx, cancel := context.WithTimeout(ctx, HealthPingTimeout)
	defer cancel()

	if _, err := h.manager.GetServerTools(pingCtx, id); err != nil {
		h.logger.Warn("health ping failed, scheduling reconnect", "server", id, "error", err)
		h.scheduleReconnect(id)
	}
}

// scheduleReconnect arms one backoff-delayed reconnect attempt for id,
// honoring MaxReconnectAttempts (spec: "schedule exponential backoff...
// capped at maxAttempts... After exhaustion the connection stays ERROR
// until operator action"). checkAll calls this on every pass for a
// connection in ERROR; once its reconnectAttempts reaches the cap, each
// such call only logs and returns, so the connection stays ERROR until an
// operator-triggered reconnect.
func (h *HealthMonitor) scheduleReconnect(id string) {
	snap, err := h.manager.GetServer(id)
	if err != nil {
		return
	}
	if snap.ReconnectAttempts >= MaxReconnectAttempts {
		h.logger.Error("reconnect attempts exhausted, server remains in ERROR until operator action",
			"server", id, "attempts", snap.ReconnectAttempts)
		return
	}

	delay := ReconnectDelay(snap.ReconnectAttempts)
	go func() {
		select {
		case <-time.After(delay):
		case <-h.stopCh:
			return
		}
		reconnectCtx, cancel := context.WithTimeout(context.Background(), ReinitTimeout)
		defer cancel()
		if rerr := h.manager.ReconnectServer(reconnectCtx, id); rerr != nil {
			h.logger.Warn("health-triggered reconnect failed", "server", id, "error", rerr)
		}
	}()
}

// Score computes the hub health score: 100 minus 30 per
// critical (ERROR) server and 10 per warning (DISCONNECTED/CONNECTING),
// clamped to [0, 100].
func Score(snapshots map[string]Snapshot) int {
	score := 100
	for _, s := range snapshots {
		switch s.Status {
		case StatusError:
			score -= 30
		case StatusDisconnected, StatusConnecting:
			score -= 10
		}
	}
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

// IsHealthy reports whether every known server is CONNECTED.
func (h *HealthMonitor) IsHealthy() bool {
	for _, s := range h.manager.GetAllServers() {
		if s.Status != StatusConnected {
			return false
		}
	}
	return true
}

// GetStatuses returns the current per-server health view.
func (h *HealthMonitor) GetStatuses() []HealthStatus {
	snapshots := h.manager.GetAllServers()
	out := make([]HealthStatus, 0, len(snapshots))
	for id, s := range snapshots {
		out = append(out, HealthStatus{
			ServerID: id,
			Status:   s.Status,
			Healthy:  s.Status == StatusConnected,
			LastErr:  s.LastError,
		})
	}
	return out
}
