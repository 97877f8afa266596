// Package group implements the Group Manager: resolves
// which tools and servers a group exposes, gates access behind an
// optional hashed key, and demotes misconfigured groups to a harmless
// fallback rather than letting references dangle.
package group

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/crypto/bcrypt"

	"github.com/codeready-toolchain/mcphub/pkg/config"
	"github.com/codeready-toolchain/mcphub/pkg/mcpserver"
)

// APIToolServerID is the synthetic server id a group references to admit
// API-synthesised tools. Aliases config.APIToolServerID so the validator
// and the Group Manager agree on the one literal.
const APIToolServerID = config.APIToolServerID

var (
	// ErrGroupNotFound mirrors config.ErrGroupNotFound for callers that
	// only depend on this package.
	ErrGroupNotFound = config.ErrGroupNotFound
	// ErrInvalidAccessKey indicates a presented key did not match the
	// group's stored hash.
	ErrInvalidAccessKey = errors.New("invalid group access key")
	// ErrAccessKeyRequired indicates a group is gated and no key was
	// presented.
	ErrAccessKeyRequired = errors.New("group access key required")
)

// ServerLister is the subset of *mcpserver.Manager the Group Manager
// needs: the current connection snapshots, so it can decide which
// configured servers actually export which tools.
type ServerLister interface {
	GetAllServers() map[string]mcpserver.Snapshot
}

// Manager resolves GroupConfig against live server state.
type Manager struct {
	registry *config.GroupRegistry
	servers  ServerLister

	// apiToolServerID is the synthetic server id under which every
	// API-synthesised tool is considered "exported", so group tool-access
	// rules apply uniformly to MCP and API tools.
	apiToolServerID string
	apiToolNames    func() map[string]bool

	logger *slog.Logger
}

// NewManager creates a Group Manager. apiToolNames, when called, returns
// the set of currently configured API tool names — used to satisfy the
// tool-access rule for API-synthesised tools without the Group Manager
// depending directly on the API-to-MCP engine.
func NewManager(registry *config.GroupRegistry, servers ServerLister, apiToolNames func() map[string]bool) *Manager {
	return &Manager{
		registry:        registry,
		servers:         servers,
		apiToolServerID: APIToolServerID,
		apiToolNames:    apiToolNames,
		logger:          slog.Default().With("component", "group_manager"),
	}
}

// connectOrderedServerIDs returns the ids in snapshots whose status is
// CONNECTED, ordered by ConnectSeq (the order each server first connected)
// so "first registration wins" duplicate-tool resolution is deterministic
// rather than dependent on Go's randomized map iteration order.
func connectOrderedServerIDs(snapshots map[string]mcpserver.Snapshot, allowed map[string]bool) []string {
	ids := make([]string, 0, len(snapshots))
	for id, snap := range snapshots {
		if allowed[id] && snap.Status == mcpserver.StatusConnected {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool {
		si, sj := snapshots[ids[i]].ConnectSeq, snapshots[ids[j]].ConnectSeq
		if si != sj {
			return si < sj
		}
		return ids[i] < ids[j]
	})
	return ids
}

// resolveGroup resolves id to a GroupConfig, synthesising the ungrouped
// catalogue (id == "") as a virtual group referencing every known server
// (including the synthetic API-tool server id) with no tool allow-list —
// spec §4.7's listener modes (a)/(b) expose the hub's combined tool
// catalogue, not a configured "" group.
func (m *Manager) resolveGroup(id string) (config.GroupConfig, error) {
	if id != "" {
		return m.registry.Get(id)
	}

	snapshots := m.servers.GetAllServers()
	servers := make([]string, 0, len(snapshots)+1)
	for serverID := range snapshots {
		servers = append(servers, serverID)
	}
	servers = append(servers, m.apiToolServerID)
	return config.GroupConfig{ID: "", Name: "default", Servers: servers}, nil
}

// GetGroup returns one group's configuration.
func (m *Manager) GetGroup(id string) (config.GroupConfig, error) {
	return m.resolveGroup(id)
}

// GetAllGroups returns every configured group.
func (m *Manager) GetAllGroups() map[string]config.GroupConfig {
	return m.registry.GetAll()
}

// GetGroupServers returns the server ids a group references.
func (m *Manager) GetGroupServers(id string) ([]string, error) {
	g, err := m.resolveGroup(id)
	if err != nil {
		return nil, err
	}
	return g.Servers, nil
}

// toolAllowed reports whether toolName passes a group's allow-list: the
// list is empty (meaning "all") or contains the name.
func toolAllowed(g config.GroupConfig, toolName string) bool {
	if len(g.Tools) == 0 {
		return true
	}
	for _, t := range g.Tools {
		if t == toolName {
			return true
		}
	}
	return false
}

// GetGroupTools resolves the tools a group currently exposes: its
// allow-list intersected with the tools actually exported by its
// CONNECTED servers, plus any API-synthesised tools it allows.
func (m *Manager) GetGroupTools(id string) ([]string, error) {
	g, err := m.resolveGroup(id)
	if err != nil {
		return nil, err
	}
	if g.Fallback {
		return nil, nil
	}

	serverSet := make(map[string]bool, len(g.Servers))
	for _, s := range g.Servers {
		serverSet[s] = true
	}

	seen := make(map[string]string) // tool name → owning server id
	var out []string

	snapshots := m.servers.GetAllServers()
	for _, serverID := range connectOrderedServerIDs(snapshots, serverSet) {
		for _, tool := range snapshots[serverID].Tools {
			if tool == nil || !toolAllowed(g, tool.Name) {
				continue
			}
			if owner, dup := seen[tool.Name]; dup {
				m.logger.Warn("duplicate tool name hidden, first registration wins",
					"group", id, "tool", tool.Name, "kept_server", owner, "dropped_server", serverID)
				continue
			}
			seen[tool.Name] = serverID
			out = append(out, tool.Name)
		}
	}

	if serverSet[m.apiToolServerID] && m.apiToolNames != nil {
		for name := range m.apiToolNames() {
			if !toolAllowed(g, name) {
				continue
			}
			if owner, dup := seen[name]; dup {
				m.logger.Warn("duplicate tool name hidden, first registration wins",
					"group", id, "tool", name, "kept_server", owner, "dropped_server", m.apiToolServerID)
				continue
			}
			seen[name] = m.apiToolServerID
			out = append(out, name)
		}
	}

	return out, nil
}

// FindToolInGroup resolves toolName to its origin server id within a
// group, or the synthetic API server id.
func (m *Manager) FindToolInGroup(id, toolName string) (string, error) {
	tools, err := m.GetGroupTools(id)
	if err != nil {
		return "", err
	}
	for _, t := range tools {
		if t == toolName {
			return m.originOf(id, toolName), nil
		}
	}
	return "", fmt.Errorf("tool %q not found in group %q", toolName, id)
}

func (m *Manager) originOf(id, toolName string) string {
	g, err := m.resolveGroup(id)
	if err != nil {
		return ""
	}
	serverSet := make(map[string]bool, len(g.Servers))
	for _, s := range g.Servers {
		serverSet[s] = true
	}
	snapshots := m.servers.GetAllServers()
	for _, serverID := range connectOrderedServerIDs(snapshots, serverSet) {
		for _, tool := range snapshots[serverID].Tools {
			if tool != nil && tool.Name == toolName {
				return serverID
			}
		}
	}
	if serverSet[m.apiToolServerID] {
		return m.apiToolServerID
	}
	return ""
}

// ValidateToolAccess reports whether toolName is currently callable
// within group id.
func (m *Manager) ValidateToolAccess(id, toolName string) error {
	_, err := m.FindToolInGroup(id, toolName)
	return err
}

// VerifyAccessKey checks a presented key against the group's stored hash.
// A group without validation enabled accepts any (including empty) key.
func (m *Manager) VerifyAccessKey(id, presented string) error {
	g, err := m.registry.Get(id)
	if err != nil {
		return err
	}
	if g.Validation == nil || !g.Validation.Enabled {
		return nil
	}
	if presented == "" {
		return ErrAccessKeyRequired
	}
	if err := bcrypt.CompareHashAndPassword([]byte(g.Validation.KeyHash), []byte(presented)); err != nil {
		return ErrInvalidAccessKey
	}
	return nil
}

// SetAccessKey hashes and stores a new access key for a group, enabling
// validation.
func (m *Manager) SetAccessKey(id, key string) error {
	g, err := m.registry.Get(id)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash access key: %w", err)
	}
	g.Validation = &config.GroupValidation{Enabled: true, KeyHash: string(hash)}
	m.registry.Put(id, g)
	return nil
}

// RotateAccessKey replaces a group's access key, keeping validation
// enabled.
func (m *Manager) RotateAccessKey(id, newKey string) error {
	return m.SetAccessKey(id, newKey)
}

// DeleteAccessKey disables key validation for a group.
func (m *Manager) DeleteAccessKey(id string) error {
	g, err := m.registry.Get(id)
	if err != nil {
		return err
	}
	g.Validation = nil
	m.registry.Put(id, g)
	return nil
}

// HealthCheck reports whether a group resolves to at least one CONNECTED
// server.
func (m *Manager) HealthCheck(id string) (bool, error) {
	g, err := m.resolveGroup(id)
	if err != nil {
		return false, err
	}
	if g.Fallback {
		return false, nil
	}
	snapshots := m.servers.GetAllServers()
	for _, serverID := range g.Servers {
		if snap, ok := snapshots[serverID]; ok && snap.Status == mcpserver.StatusConnected {
			return true, nil
		}
	}
	return false, nil
}
