// Package toolmanager implements the Tool Manager:
// aggregates each group's tools from its connected servers and configured
// API tools, filters by the group's allow-list, dispatches calls to the
// right origin, and caches the result.
package toolmanager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/codeready-toolchain/mcphub/pkg/apitool"
	"github.com/codeready-toolchain/mcphub/pkg/config"
	"github.com/codeready-toolchain/mcphub/pkg/group"
	"github.com/codeready-toolchain/mcphub/pkg/mcpserver"
)

var (
	// ErrToolNotFound indicates the requested tool is not exposed by the
	// group.
	ErrToolNotFound = errors.New("tool not found")
	// ErrNoServersAvailable indicates a group has no CONNECTED server and
	// no reachable API tools.
	ErrNoServersAvailable = errors.New("no servers available for group")
)

// ToolExecutionError wraps a downstream failure while preserving its
// cause.
type ToolExecutionError struct {
	ToolName string
	Cause    error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %q execution failed: %v", e.ToolName, e.Cause)
}

func (e *ToolExecutionError) Unwrap() error { return e.Cause }

// ToolDescriptor is one entry in a group's tool catalogue.
type ToolDescriptor struct {
	Name         string
	Description  string
	InputSchema  any
	OriginServer string
}

// GroupResolver is the subset of *group.Manager the Tool Manager depends
// on.
type GroupResolver interface {
	GetGroupTools(id string) ([]string, error)
	FindToolInGroup(id, toolName string) (string, error)
}

// Manager aggregates, filters, dispatches, and caches tool catalogues
// per group.
type Manager struct {
	groups   GroupResolver
	servers  *mcpserver.Manager
	apiTools *config.APIToolRegistry
	engine   *apitool.Engine

	cache  *catalogueCache
	logger *slog.Logger
}

// New creates a Tool Manager wired to the Group Manager, Server Manager,
// and API-to-MCP engine.
func New(groups GroupResolver, servers *mcpserver.Manager, apiTools *config.APIToolRegistry, engine *apitool.Engine) *Manager {
	return &Manager{
		groups:   groups,
		servers:  servers,
		apiTools: apiTools,
		engine:   engine,
		cache:    newCatalogueCache(),
		logger:   slog.Default().With("component", "tool_manager"),
	}
}

// GetToolsForGroup returns the group's current tool catalogue, serving
// from cache when fresh.
func (m *Manager) GetToolsForGroup(groupID string) ([]ToolDescriptor, error) {
	if cached, ok := m.cache.get(groupID); ok {
		return cached, nil
	}

	names, err := m.groups.GetGroupTools(groupID)
	if err != nil {
		return nil, err
	}

	descriptors := make([]ToolDescriptor, 0, len(names))
	for _, name := range names {
		origin, err := m.groups.FindToolInGroup(groupID, name)
		if err != nil {
			continue
		}
		descriptors = append(descriptors, m.describe(name, origin))
	}

	m.cache.put(groupID, descriptors)
	return descriptors, nil
}

func (m *Manager) describe(name, origin string) ToolDescriptor {
	if origin == group.APIToolServerID {
		if tool, err := m.apiTools.Get(name); err == nil {
			return ToolDescriptor{Name: name, Description: tool.Description, InputSchema: tool.Parameters, OriginServer: origin}
		}
		if tool, err := m.apiToolByID(name); err == nil {
			return ToolDescriptor{Name: tool.Name, Description: tool.Description, InputSchema: tool.Parameters, OriginServer: origin}
		}
		return ToolDescriptor{Name: name, OriginServer: origin}
	}

	for _, snap := range m.servers.GetAllServers() {
		for _, tool := range snap.Tools {
			if tool != nil && tool.Name == name {
				return ToolDescriptor{Name: name, Description: tool.Description, InputSchema: tool.InputSchema, OriginServer: origin}
			}
		}
	}
	return ToolDescriptor{Name: name, OriginServer: origin}
}

// apiToolByID falls back to scanning the registry by configured name when
// the tool name does not match an id directly (ApiToolConfig.ID and .Name
// need not coincide).
func (m *Manager) apiToolByID(name string) (config.ApiToolConfig, error) {
	for _, t := range m.apiTools.GetAll() {
		if t.Name == name {
			return t, nil
		}
	}
	return config.ApiToolConfig{}, fmt.Errorf("api tool %q not found", name)
}

// ExecuteTool dispatches a call to the tool's origin, normalising the
// result into an MCP ToolResult.
func (m *Manager) ExecuteTool(ctx context.Context, groupID, toolName, clientID string, args map[string]any) (*mcpsdk.CallToolResult, error) {
	origin, err := m.groups.FindToolInGroup(groupID, toolName)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, toolName)
	}

	if origin == group.APIToolServerID {
		tool, terr := m.resolveAPITool(toolName)
		if terr != nil {
			return nil, fmt.Errorf("%w: %s", ErrToolNotFound, toolName)
		}
		result, err := m.engine.Execute(ctx, tool.ID, clientID, args)
		if err != nil {
			return nil, &ToolExecutionError{ToolName: toolName, Cause: err}
		}
		return result, nil
	}

	result, err := m.servers.CallTool(ctx, origin, toolName, args)
	if err != nil {
		return nil, &ToolExecutionError{ToolName: toolName, Cause: err}
	}
	return result, nil
}

func (m *Manager) resolveAPITool(name string) (config.ApiToolConfig, error) {
	if t, err := m.apiTools.Get(name); err == nil {
		return t, nil
	}
	return m.apiToolByID(name)
}

// InvalidateCache drops every cached group catalogue: called on any
// server status transition, API config reload, or group edit.
func (m *Manager) InvalidateCache() {
	m.cache.invalidateAll()
}

// InvalidateGroupCache drops the cached catalogue for one group.
func (m *Manager) InvalidateGroupCache(groupID string) {
	m.cache.invalidate(groupID)
}

// CacheStats exposes the hit/miss counters.
func (m *Manager) CacheStats() (hits, misses uint64) {
	return m.cache.stats()
}

// CheckNameCollisions logs and reports any API tool name that collides
// with an already-known MCP server tool name. It only reports: nothing is
// rejected or removed here, and Hub.Start logs the result and keeps
// serving. Within a group's catalogue the MCP tool hides the colliding
// API tool, since server tools are aggregated first.
func (m *Manager) CheckNameCollisions() []string {
	mcpNames := make(map[string]bool)
	for _, snap := range m.servers.GetAllServers() {
		for _, tool := range snap.Tools {
			if tool != nil {
				mcpNames[tool.Name] = true
			}
		}
	}

	var collisions []string
	for _, t := range m.apiTools.GetAll() {
		if mcpNames[t.Name] {
			m.logger.Error("api tool name collides with an MCP server tool", "name", t.Name, "api_tool_id", t.ID)
			collisions = append(collisions, t.Name)
		}
	}
	return collisions
}
