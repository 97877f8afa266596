package apitool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/mcphub/pkg/config"
)

func TestSniffContentKindFromHeader(t *testing.T) {
	assert.Equal(t, kindJSON, sniffContentKind("application/json; charset=utf-8", nil))
	assert.Equal(t, kindXML, sniffContentKind("application/xml", nil))
	assert.Equal(t, kindCSV, sniffContentKind("text/csv", nil))
}

func TestSniffContentKindStructural(t *testing.T) {
	assert.Equal(t, kindJSON, sniffContentKind("", []byte(`{"a":1}`)))
	assert.Equal(t, kindXML, sniffContentKind("", []byte(`<root/>`)))
	assert.Equal(t, kindCSV, sniffContentKind("", []byte("a,b,c\n1,2,3")))
	assert.Equal(t, kindKeyValue, sniffContentKind("", []byte("key: value\nother: thing")))
	assert.Equal(t, kindText, sniffContentKind("", []byte("just some text")))
}

func TestShapeResponseAppliesJsonata(t *testing.T) {
	body := []byte(`{"items":[{"name":"a"},{"name":"b"}]}`)
	text, data, fellBack, err := shapeResponse("application/json", body, config.APIResponseConfig{Jsonata: "items.name"})
	require.NoError(t, err)
	assert.False(t, fellBack)
	assert.Contains(t, text, "a")
	assert.Contains(t, text, "b")
	assert.Equal(t, []any{"a", "b"}, data)
}

func TestShapeResponseFallsBackOnBadJsonata(t *testing.T) {
	body := []byte(`{"a":1}`)
	text, data, fellBack, err := shapeResponse("application/json", body, config.APIResponseConfig{
		Jsonata:         "$invalid(((",
		FallbackJsonata: "a",
	})
	require.NoError(t, err)
	assert.True(t, fellBack)
	assert.Equal(t, "1", text)
	assert.Equal(t, float64(1), data)
}

func TestShapeResponseNoJsonataPassesRawBody(t *testing.T) {
	body := []byte(`{"a":1}`)
	text, data, fellBack, err := shapeResponse("application/json", body, config.APIResponseConfig{})
	require.NoError(t, err)
	assert.False(t, fellBack)
	assert.Equal(t, `{"a":1}`, text)
	assert.Equal(t, map[string]any{"a": float64(1)}, data)
}

func TestShapeResponseNonJSONReturnsNilData(t *testing.T) {
	text, data, fellBack, err := shapeResponse("text/plain", []byte("plain text"), config.APIResponseConfig{})
	require.NoError(t, err)
	assert.False(t, fellBack)
	assert.Equal(t, "plain text", text)
	assert.Nil(t, data)
}

func TestExtractErrorMessageUsesConfiguredPath(t *testing.T) {
	body := []byte(`{"failure":{"reason":"quota exceeded"}}`)
	msg := extractErrorMessage(body, "failure.reason")
	assert.Equal(t, "quota exceeded", msg)
}

func TestExtractErrorMessageFallsBackToCommonFields(t *testing.T) {
	body := []byte(`{"message":"not authorized"}`)
	msg := extractErrorMessage(body, "")
	assert.Equal(t, "not authorized", msg)
}

func TestExtractErrorMessageNonJSONReturnsRawBody(t *testing.T) {
	msg := extractErrorMessage([]byte("plain text error"), "")
	assert.Equal(t, "plain text error", msg)
}
