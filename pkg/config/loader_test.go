package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFiles(t *testing.T, dir string) {
	t.Helper()

	serverJSON := `{
		"mcpServers": {
			"echo": {
				"transport": {"type": "stdio", "command": "echo-mcp", "args": ["--quiet"]}
			}
		}
	}`
	groupJSON := `{
		"default": {"name": "default", "servers": ["echo"], "tools": []}
	}`
	apiToolsJSON := `{
		"version": 1,
		"tools": [
			{
				"id": "weather",
				"name": "weather",
				"api": {"url": "https://api.example.com/w?city={{data.city}}", "method": "GET"},
				"parameters": {"type": "object", "properties": {"city": {"type": "string"}}, "required": ["city"]},
				"response": {"jsonata": "{ temp: main.temp }"}
			}
		]
	}`

	require.NoError(t, os.WriteFile(filepath.Join(dir, serverConfigFile), []byte(serverJSON), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, groupConfigFile), []byte(groupJSON), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, apiToolsFile), []byte(apiToolsJSON), 0o644))
}

func TestInitializeLoadsValidConfiguration(t *testing.T) {
	dir := t.TempDir()
	writeConfigFiles(t, dir)

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)

	stats := cfg.Stats()
	assert.Equal(t, 1, stats.Servers)
	assert.Equal(t, 1, stats.Groups)
	assert.Equal(t, 1, stats.APITools)

	assert.True(t, cfg.ServerRegistry.Has("echo"))
	assert.True(t, cfg.GroupRegistry.Has("default"))
	assert.True(t, cfg.APIToolRegistry.Has("weather"))
}

func TestInitializeMissingFileIsFatal(t *testing.T) {
	dir := t.TempDir()

	_, err := Initialize(context.Background(), dir)
	assert.Error(t, err)
	assert.ErrorIs(t, err, ErrConfigNotFound)
}

func TestInitializeExpandsServerEnvAtLoadTime(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ECHO_MCP_PATH", "/usr/local/bin/echo-mcp")

	serverJSON := `{
		"mcpServers": {
			"echo": {"transport": {"type": "stdio", "command": "{{env.ECHO_MCP_PATH}}"}}
		}
	}`
	groupJSON := `{"default": {"name": "default", "servers": ["echo"]}}`
	apiToolsJSON := `{"version": 1, "tools": []}`

	require.NoError(t, os.WriteFile(filepath.Join(dir, serverConfigFile), []byte(serverJSON), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, groupConfigFile), []byte(groupJSON), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, apiToolsFile), []byte(apiToolsJSON), 0o644))

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)

	s, err := cfg.ServerRegistry.Get("echo")
	require.NoError(t, err)
	assert.Equal(t, "/usr/local/bin/echo-mcp", s.Transport.Command)
}

func TestInitializeDuplicateAPIToolIDFails(t *testing.T) {
	dir := t.TempDir()
	serverJSON := `{"mcpServers": {}}`
	groupJSON := `{"default": {"name": "default", "servers": []}}`
	apiToolsJSON := `{
		"version": 1,
		"tools": [
			{"id": "dup", "name": "a", "api": {"url": "https://x", "method": "GET"}, "parameters": {}},
			{"id": "dup", "name": "b", "api": {"url": "https://y", "method": "GET"}, "parameters": {}}
		]
	}`

	require.NoError(t, os.WriteFile(filepath.Join(dir, serverConfigFile), []byte(serverJSON), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, groupConfigFile), []byte(groupJSON), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, apiToolsFile), []byte(apiToolsJSON), 0o644))

	_, err := Initialize(context.Background(), dir)
	assert.ErrorIs(t, err, ErrDuplicateID)
}
