package redact

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedactTopLevelSensitiveKey(t *testing.T) {
	s := New()
	out := s.Redact(map[string]any{"password": "hunter2345"})
	assert.Equal(t, "****2345", out.(map[string]any)["password"])
}

func TestRedactPreservesNonSensitiveValues(t *testing.T) {
	s := New()
	out := s.Redact(map[string]any{"username": "alice"})
	assert.Equal(t, "alice", out.(map[string]any)["username"])
}

func TestRedactNestedMap(t *testing.T) {
	s := New()
	in := map[string]any{
		"headers": map[string]any{
			"Authorization": "Bearer sk-abcdef123456",
		},
	}
	out := s.Redact(in)
	headers := out.(map[string]any)["headers"].(map[string]any)
	assert.Equal(t, "****3456", headers["Authorization"])
}

func TestRedactArrayOfSensitiveStrings(t *testing.T) {
	s := New()
	in := map[string]any{"token": []any{"abcd1234", "wxyz5678"}}
	out := s.Redact(in)
	tokens := out.(map[string]any)["token"].([]any)
	assert.Equal(t, "****1234", tokens[0])
	assert.Equal(t, "****5678", tokens[1])
}

func TestRedactShortStringFullyMasked(t *testing.T) {
	s := New()
	out := s.Redact(map[string]any{"secret": "abc"})
	assert.Equal(t, "****", out.(map[string]any)["secret"])
}

func TestRedactCustomKey(t *testing.T) {
	s := New("clientSecret")
	out := s.Redact(map[string]any{"clientSecret": "supersecretvalue"})
	assert.Equal(t, "****alue", out.(map[string]any)["clientSecret"])
}

func TestRedactCaseInsensitiveKeyMatch(t *testing.T) {
	s := New()
	out := s.Redact(map[string]any{"APIKEY": "zzzzzzzz9999"})
	assert.Equal(t, "****9999", out.(map[string]any)["APIKEY"])
}

func TestRedactNonStringSensitiveValueMasked(t *testing.T) {
	s := New()
	out := s.Redact(map[string]any{"token": 123456})
	assert.Equal(t, mask, out.(map[string]any)["token"])
}
