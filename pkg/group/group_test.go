package group

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/codeready-toolchain/mcphub/pkg/config"
	"github.com/codeready-toolchain/mcphub/pkg/mcpserver"
)

type fakeLister struct {
	snapshots map[string]mcpserver.Snapshot
}

func (f *fakeLister) GetAllServers() map[string]mcpserver.Snapshot { return f.snapshots }

func newTestManager(groups map[string]config.GroupConfig, snaps map[string]mcpserver.Snapshot, apiTools map[string]bool) *Manager {
	reg := config.NewGroupRegistry(groups)
	return NewManager(reg, &fakeLister{snapshots: snaps}, func() map[string]bool { return apiTools })
}

func TestGetGroupToolsFiltersByAllowListAndConnection(t *testing.T) {
	groups := map[string]config.GroupConfig{
		"ops": {ID: "ops", Servers: []string{"k8s"}, Tools: []string{"get_pods"}},
	}
	snaps := map[string]mcpserver.Snapshot{
		"k8s": {Status: mcpserver.StatusConnected, Tools: []*mcpsdk.Tool{
			{Name: "get_pods"}, {Name: "delete_pod"},
		}},
	}
	m := newTestManager(groups, snaps, nil)

	tools, err := m.GetGroupTools("ops")
	require.NoError(t, err)
	assert.Equal(t, []string{"get_pods"}, tools)
}

func TestGetGroupToolsEmptyAllowListMeansAll(t *testing.T) {
	groups := map[string]config.GroupConfig{
		"ops": {ID: "ops", Servers: []string{"k8s"}},
	}
	snaps := map[string]mcpserver.Snapshot{
		"k8s": {Status: mcpserver.StatusConnected, Tools: []*mcpsdk.Tool{{Name: "a"}, {Name: "b"}}},
	}
	m := newTestManager(groups, snaps, nil)

	tools, err := m.GetGroupTools("ops")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, tools)
}

func TestGetGroupToolsIgnoresDisconnectedServers(t *testing.T) {
	groups := map[string]config.GroupConfig{
		"ops": {ID: "ops", Servers: []string{"k8s"}},
	}
	snaps := map[string]mcpserver.Snapshot{
		"k8s": {Status: mcpserver.StatusError, Tools: []*mcpsdk.Tool{{Name: "a"}}},
	}
	m := newTestManager(groups, snaps, nil)

	tools, err := m.GetGroupTools("ops")
	require.NoError(t, err)
	assert.Empty(t, tools)
}

func TestGetGroupToolsDuplicateNameFirstRegistrationWins(t *testing.T) {
	groups := map[string]config.GroupConfig{
		"ops": {ID: "ops", Servers: []string{"replica-a", "replica-b"}},
	}
	snaps := map[string]mcpserver.Snapshot{
		"replica-b": {Status: mcpserver.StatusConnected, ConnectSeq: 2, Tools: []*mcpsdk.Tool{{Name: "shared"}}},
		"replica-a": {Status: mcpserver.StatusConnected, ConnectSeq: 1, Tools: []*mcpsdk.Tool{{Name: "shared"}}},
	}
	m := newTestManager(groups, snaps, nil)

	tools, err := m.GetGroupTools("ops")
	require.NoError(t, err)
	assert.Equal(t, []string{"shared"}, tools)

	origin, err := m.FindToolInGroup("ops", "shared")
	require.NoError(t, err)
	assert.Equal(t, "replica-a", origin, "the first-connected server (lowest ConnectSeq) should win the duplicate name")
}

func TestGetGroupToolsFallbackGroupIsEmpty(t *testing.T) {
	groups := map[string]config.GroupConfig{
		"orphan": {ID: "orphan", Fallback: true},
	}
	m := newTestManager(groups, map[string]mcpserver.Snapshot{}, nil)

	tools, err := m.GetGroupTools("orphan")
	require.NoError(t, err)
	assert.Empty(t, tools)
}

func TestGetGroupToolsIncludesAPISynthesisedTools(t *testing.T) {
	groups := map[string]config.GroupConfig{
		"ops": {ID: "ops", Servers: []string{"__api__"}},
	}
	m := newTestManager(groups, map[string]mcpserver.Snapshot{}, map[string]bool{"weather_lookup": true})

	tools, err := m.GetGroupTools("ops")
	require.NoError(t, err)
	assert.Equal(t, []string{"weather_lookup"}, tools)
}

func TestGetGroupToolsUngroupedReturnsCombinedCatalogue(t *testing.T) {
	snaps := map[string]mcpserver.Snapshot{
		"a": {Status: mcpserver.StatusConnected, Tools: []*mcpsdk.Tool{{Name: "echo"}, {Name: "sum"}}},
		"b": {Status: mcpserver.StatusError, Tools: []*mcpsdk.Tool{{Name: "dead_tool"}}},
	}
	m := newTestManager(nil, snaps, map[string]bool{"weather_lookup": true})

	tools, err := m.GetGroupTools("")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"echo", "sum", "weather_lookup"}, tools)

	origin, err := m.FindToolInGroup("", "sum")
	require.NoError(t, err)
	assert.Equal(t, "a", origin)

	_, err = m.FindToolInGroup("", "dead_tool")
	assert.Error(t, err, "a disconnected server's tools are not exposed via the ungrouped endpoint")
}

func TestValidateToolAccessUnknownToolErrors(t *testing.T) {
	groups := map[string]config.GroupConfig{
		"ops": {ID: "ops", Servers: []string{"k8s"}},
	}
	snaps := map[string]mcpserver.Snapshot{
		"k8s": {Status: mcpserver.StatusConnected, Tools: []*mcpsdk.Tool{{Name: "a"}}},
	}
	m := newTestManager(groups, snaps, nil)

	assert.NoError(t, m.ValidateToolAccess("ops", "a"))
	assert.Error(t, m.ValidateToolAccess("ops", "nonexistent"))
}

func TestAccessKeyLifecycle(t *testing.T) {
	groups := map[string]config.GroupConfig{
		"secure": {ID: "secure"},
	}
	m := newTestManager(groups, map[string]mcpserver.Snapshot{}, nil)

	require.NoError(t, m.VerifyAccessKey("secure", "")) // no key set yet, open

	require.NoError(t, m.SetAccessKey("secure", "s3cr3t"))
	assert.Error(t, m.VerifyAccessKey("secure", ""))
	assert.Error(t, m.VerifyAccessKey("secure", "wrong"))
	assert.NoError(t, m.VerifyAccessKey("secure", "s3cr3t"))

	require.NoError(t, m.DeleteAccessKey("secure"))
	assert.NoError(t, m.VerifyAccessKey("secure", ""))
}

func TestHealthCheckReflectsConnectedServers(t *testing.T) {
	groups := map[string]config.GroupConfig{
		"ops":  {ID: "ops", Servers: []string{"k8s"}},
		"dead": {ID: "dead", Fallback: true},
	}
	snaps := map[string]mcpserver.Snapshot{
		"k8s": {Status: mcpserver.StatusConnected},
	}
	m := newTestManager(groups, snaps, nil)

	healthy, err := m.HealthCheck("ops")
	require.NoError(t, err)
	assert.True(t, healthy)

	healthy, err = m.HealthCheck("dead")
	require.NoError(t, err)
	assert.False(t, healthy)
}
