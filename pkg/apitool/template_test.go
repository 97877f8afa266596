package apitool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEnv(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestRenderStringResolvesDataAndEnv(t *testing.T) {
	r := &renderer{
		data: map[string]any{"user": map[string]any{"id": "42"}},
		env:  testEnv(map[string]string{"REGION": "us-east-1"}),
	}
	out, err := r.renderString("https://api.example.com/users/{{data.user.id}}?region={{env.REGION}}")
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com/users/42?region=us-east-1", out)
}

func TestRenderStringUnresolvedLeavesPlaceholder(t *testing.T) {
	r := &renderer{data: map[string]any{}, env: testEnv(nil)}
	out, err := r.renderString("{{data.missing}}")
	require.Error(t, err)
	assert.Equal(t, "{{data.missing}}", out)

	var uerr *UnresolvedVariableError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, "data.missing", uerr.Path)
}

func TestRenderMapRendersEveryValue(t *testing.T) {
	r := &renderer{data: map[string]any{"token": "abc123"}, env: testEnv(nil)}
	out, err := r.renderMap(map[string]string{"Authorization": "Bearer {{data.token}}"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer abc123", out["Authorization"])
}

func TestRenderBodyStructuredObject(t *testing.T) {
	r := &renderer{data: map[string]any{"name": "widget"}, env: testEnv(nil)}
	body, err := r.renderBody(map[string]any{"title": "{{data.name}}", "count": float64(3)})
	require.NoError(t, err)
	m := body.(map[string]any)
	assert.Equal(t, "widget", m["title"])
	assert.Equal(t, float64(3), m["count"])
}

func TestRenderBodyRawStringPassesThrough(t *testing.T) {
	r := &renderer{data: map[string]any{"x": "y"}, env: testEnv(nil)}
	body, err := r.renderBody("plain {{data.x}} text")
	require.NoError(t, err)
	assert.Equal(t, "plain y text", body)
}
