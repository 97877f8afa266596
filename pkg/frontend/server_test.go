package frontend

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/mcphub/pkg/config"
	"github.com/codeready-toolchain/mcphub/pkg/hub"
)

func testHub(t *testing.T) *hub.Hub {
	t.Helper()
	cfg := &config.Config{
		ServerRegistry:  config.NewServerRegistry(map[string]config.ServerConfig{}),
		GroupRegistry:   config.NewGroupRegistry(map[string]config.GroupConfig{}),
		APIToolRegistry: config.NewAPIToolRegistry(map[string]config.ApiToolConfig{}),
	}
	h := hub.New(cfg)
	require.NoError(t, h.Start(t.Context()))
	return h
}

func TestHandleHealthReflectsReadiness(t *testing.T) {
	f := New(testHub(t))
	srv := httptest.NewServer(f.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestHandleStreamableMethodNotFound(t *testing.T) {
	f := New(testHub(t))
	srv := httptest.NewServer(f.Handler())
	defer srv.Close()

	body, _ := json.Marshal(Request{JSONRPC: jsonrpcVersion, Method: "bogus/method"})
	resp, err := http.Post(srv.URL+"/mcp", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var rpc Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rpc))
	require.NotNil(t, rpc.Error)
	assert.Equal(t, codeMethodNotFound, rpc.Error.Code)
}

func TestHandleStreamableInitialize(t *testing.T) {
	f := New(testHub(t))
	srv := httptest.NewServer(f.Handler())
	defer srv.Close()

	body, _ := json.Marshal(Request{JSONRPC: jsonrpcVersion, Method: "initialize"})
	resp, err := http.Post(srv.URL+"/mcp", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var rpc Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rpc))
	assert.Nil(t, rpc.Error)
	assert.NotNil(t, rpc.Result)
}

func TestHandleStreamableToolsListUngroupedReturnsCombinedCatalogue(t *testing.T) {
	f := New(testHub(t))
	srv := httptest.NewServer(f.Handler())
	defer srv.Close()

	body, _ := json.Marshal(Request{JSONRPC: jsonrpcVersion, Method: "tools/list"})
	resp, err := http.Post(srv.URL+"/mcp", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var rpc Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rpc))
	// The ungrouped endpoint resolves to the hub's combined catalogue
	// (every CONNECTED server's tools plus every API tool), not a
	// configured "" group — with no servers configured in this fixture,
	// that catalogue is simply empty rather than an error.
	require.Nil(t, rpc.Error)

	var result toolListResult
	raw, _ := json.Marshal(rpc.Result)
	require.NoError(t, json.Unmarshal(raw, &result))
	assert.Empty(t, result.Tools)
}

func TestGroupScopedRouteRequiresAccessKeyWhenEnabled(t *testing.T) {
	cfg := &config.Config{
		ServerRegistry: config.NewServerRegistry(map[string]config.ServerConfig{}),
		GroupRegistry: config.NewGroupRegistry(map[string]config.GroupConfig{
			"ops": {ID: "ops", Validation: &config.GroupValidation{Enabled: true, KeyHash: "$2a$10$invalidhashforfixture0000000000000000000000000000000"}},
		}),
		APIToolRegistry: config.NewAPIToolRegistry(map[string]config.ApiToolConfig{}),
	}
	h := hub.New(cfg)
	require.NoError(t, h.Start(t.Context()))

	f := New(h)
	srv := httptest.NewServer(f.Handler())
	defer srv.Close()

	body, _ := json.Marshal(Request{JSONRPC: jsonrpcVersion, Method: "tools/list"})
	resp, err := http.Post(srv.URL+"/ops/mcp", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSSEMessageUnknownSessionReturns400(t *testing.T) {
	f := New(testHub(t))
	srv := httptest.NewServer(f.Handler())
	defer srv.Close()

	body, _ := json.Marshal(Request{JSONRPC: jsonrpcVersion, Method: "initialize"})
	resp, err := http.Post(srv.URL+"/messages?sessionId=unknown", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
