package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestServerRegistryGetAndHas(t *testing.T) {
	reg := NewServerRegistry(map[string]ServerConfig{
		"weather": {ID: "weather", Transport: TransportConfig{Type: TransportTypeStdio, Command: "weather-mcp"}},
	})

	assert.True(t, reg.Has("weather"))
	assert.False(t, reg.Has("missing"))

	s, err := reg.Get("weather")
	assert.NoError(t, err)
	assert.Equal(t, "weather-mcp", s.Transport.Command)

	_, err = reg.Get("missing")
	assert.True(t, errors.Is(err, ErrServerNotFound))
}

func TestServerRegistryGetAllReturnsCopy(t *testing.T) {
	reg := NewServerRegistry(map[string]ServerConfig{
		"a": {ID: "a"},
	})

	all := reg.GetAll()
	all["b"] = ServerConfig{ID: "b"}

	assert.False(t, reg.Has("b"))
}

func TestGroupRegistryPutOverwrites(t *testing.T) {
	reg := NewGroupRegistry(map[string]GroupConfig{
		"default": {ID: "default", Servers: []string{"a"}},
	})

	g, err := reg.Get("default")
	assert.NoError(t, err)
	assert.Equal(t, []string{"a"}, g.Servers)

	g.Fallback = true
	g.Servers = nil
	reg.Put("default", g)

	updated, err := reg.Get("default")
	assert.NoError(t, err)
	assert.True(t, updated.Fallback)
	assert.Empty(t, updated.Servers)
}

func TestAPIToolRegistryNotFound(t *testing.T) {
	reg := NewAPIToolRegistry(map[string]ApiToolConfig{})

	_, err := reg.Get("weather")
	assert.True(t, errors.Is(err, ErrAPIToolNotFound))
}
