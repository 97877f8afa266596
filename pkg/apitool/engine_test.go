package apitool

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/codeready-toolchain/mcphub/pkg/config"
)

func textOf(t *testing.T, result *mcpsdk.CallToolResult) string {
	t.Helper()
	require.Len(t, result.Content, 1)
	tc, ok := result.Content[0].(*mcpsdk.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestEngineExecuteHappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","id":"` + r.URL.Query().Get("id") + `"}`))
	}))
	defer srv.Close()

	tool := config.ApiToolConfig{
		ID:   "get-widget",
		Name: "get_widget",
		API: config.APIRequestConfig{
			URL:         srv.URL + "/widgets",
			Method:      config.MethodGET,
			QueryParams: map[string]string{"id": "{{data.id}}"},
		},
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{"id": map[string]any{"type": "string"}},
			"required":   []any{"id"},
		},
		Response: config.APIResponseConfig{Jsonata: "status"},
	}

	reg := config.NewAPIToolRegistry(map[string]config.ApiToolConfig{"get-widget": tool})
	engine := New(reg, nil, nil)

	result, err := engine.Execute(context.Background(), "get-widget", "client-1", map[string]any{"id": "42"})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Contains(t, textOf(t, result), "ok")
	assert.Equal(t, "ok", result.StructuredContent)
}

func TestEngineExecuteJSONResponseCarriesStructuredContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"temp":17}`))
	}))
	defer srv.Close()

	tool := config.ApiToolConfig{
		ID:   "get-weather",
		Name: "get_weather",
		API: config.APIRequestConfig{
			URL:    srv.URL + "/weather",
			Method: config.MethodGET,
		},
		Parameters: map[string]any{"type": "object"},
	}

	reg := config.NewAPIToolRegistry(map[string]config.ApiToolConfig{"get-weather": tool})
	engine := New(reg, nil, nil)

	result, err := engine.Execute(context.Background(), "get-weather", "client-1", map[string]any{})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.JSONEq(t, `{"temp":17}`, textOf(t, result))
	assert.Equal(t, map[string]any{"temp": float64(17)}, result.StructuredContent)
}

func TestEngineExecuteUnknownTool(t *testing.T) {
	reg := config.NewAPIToolRegistry(map[string]config.ApiToolConfig{})
	engine := New(reg, nil, nil)

	_, err := engine.Execute(context.Background(), "missing", "client-1", nil)
	assert.Error(t, err)
}

func TestEngineExecuteInvalidParamsReturnsErrorResult(t *testing.T) {
	tool := config.ApiToolConfig{
		ID:   "strict-tool",
		Name: "strict_tool",
		API:  config.APIRequestConfig{URL: "https://example.com", Method: config.MethodGET},
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{"id": map[string]any{"type": "string"}},
			"required":   []any{"id"},
		},
	}
	reg := config.NewAPIToolRegistry(map[string]config.ApiToolConfig{"strict-tool": tool})
	engine := New(reg, nil, nil)

	result, err := engine.Execute(context.Background(), "strict-tool", "client-1", map[string]any{})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestEngineExecuteDomainWhitelistBlocksCall(t *testing.T) {
	tool := config.ApiToolConfig{
		ID:         "blocked-tool",
		Name:       "blocked_tool",
		API:        config.APIRequestConfig{URL: "https://evil.example.net/x", Method: config.MethodGET},
		Parameters: map[string]any{"type": "object", "properties": map[string]any{}},
		Security:   &config.APISecurityConfig{DomainWhitelist: []string{"good.example.com"}},
	}
	reg := config.NewAPIToolRegistry(map[string]config.ApiToolConfig{"blocked-tool": tool})
	engine := New(reg, nil, nil)

	result, err := engine.Execute(context.Background(), "blocked-tool", "client-1", map[string]any{})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, textOf(t, result), "AccessDenied")
}

func TestEngineExecuteHTTPErrorStatusMapsToMcpError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"widget not found"}`))
	}))
	defer srv.Close()

	tool := config.ApiToolConfig{
		ID:         "missing-widget",
		Name:       "missing_widget",
		API:        config.APIRequestConfig{URL: srv.URL, Method: config.MethodGET},
		Parameters: map[string]any{"type": "object", "properties": map[string]any{}},
	}
	reg := config.NewAPIToolRegistry(map[string]config.ApiToolConfig{"missing-widget": tool})
	engine := New(reg, nil, nil)

	result, err := engine.Execute(context.Background(), "missing-widget", "client-1", map[string]any{})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, textOf(t, result), "widget not found")
}
