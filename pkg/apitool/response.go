package apitool

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/blues/jsonata-go"

	"github.com/codeready-toolchain/mcphub/pkg/config"
)

// contentKind is the sniffed shape of an HTTP response body.
type contentKind string

const (
	kindJSON     contentKind = "json"
	kindXML      contentKind = "xml"
	kindCSV      contentKind = "csv"
	kindKeyValue contentKind = "keyvalue"
	kindText     contentKind = "text"
)

var csvHeaderRow = regexp.MustCompile(`^[^,\n]+(,[^,\n]+)+$`)
var keyValueLine = regexp.MustCompile(`^[A-Za-z0-9_.-]+\s*[:=]\s*.+$`)

// sniffContentKind decides the response shape from the Content-Type header,
// falling back to structural sniffing of the body.
func sniffContentKind(contentType string, body []byte) contentKind {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "json"):
		return kindJSON
	case strings.Contains(ct, "xml"):
		return kindXML
	case strings.Contains(ct, "csv"):
		return kindCSV
	}

	trimmed := strings.TrimSpace(string(body))
	switch {
	case len(trimmed) == 0:
		return kindText
	case trimmed[0] == '{' || trimmed[0] == '[':
		return kindJSON
	case strings.HasPrefix(trimmed, "<"):
		return kindXML
	case csvHeaderRow.MatchString(firstLine(trimmed)):
		return kindCSV
	case keyValueLine.MatchString(firstLine(trimmed)):
		return kindKeyValue
	default:
		return kindText
	}
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}

// shapeResponse renders the HTTP body into the MCP tool result text,
// applying JSONata to JSON bodies when configured. For a JSON response it
// also returns the decoded structured value (the JSONata-transformed
// result, or the raw decoded body when no JSONata expression is
// configured) so the caller can surface a structured content block
// alongside the text rendering; data is nil for any non-JSON body.
func shapeResponse(contentType string, body []byte, respCfg config.APIResponseConfig) (text string, data any, usedFallback bool, err error) {
	kind := sniffContentKind(contentType, body)
	if kind != kindJSON {
		return string(body), nil, false, nil
	}

	var parsed any
	if jsonErr := json.Unmarshal(body, &parsed); jsonErr != nil {
		return string(body), nil, false, nil
	}

	if respCfg.Jsonata == "" {
		return string(body), parsed, false, nil
	}

	if out, evalErr := evalJSONata(respCfg.Jsonata, parsed); evalErr == nil {
		var outData any
		_ = json.Unmarshal([]byte(out), &outData)
		return out, outData, false, nil
	}

	if respCfg.FallbackJsonata != "" {
		if out, evalErr := evalJSONata(respCfg.FallbackJsonata, parsed); evalErr == nil {
			var outData any
			_ = json.Unmarshal([]byte(out), &outData)
			return out, outData, true, nil
		}
	}

	// Neither primary nor fallback JSONata evaluated cleanly: surface the
	// raw data tagged _fallback=true with the error.
	fallback := map[string]any{
		"_fallback": true,
		"error":     "jsonata evaluation failed",
		"data":      parsed,
	}
	raw, _ := json.Marshal(fallback)
	return string(raw), fallback, true, nil
}

func evalJSONata(expr string, data any) (string, error) {
	e, err := jsonata.Compile(expr)
	if err != nil {
		return "", err
	}
	result, err := e.Eval(data)
	if err != nil {
		return "", err
	}
	out, err := json.Marshal(result)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// extractErrorMessage pulls a human-readable error out of a non-2xx
// response body, preferring the configured errorPath, then a fixed set
// of common field names.
func extractErrorMessage(body []byte, errorPath string) string {
	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err != nil {
		return strings.TrimSpace(string(body))
	}

	if errorPath != "" {
		if v, ok := lookupPath(parsed, errorPath); ok {
			return stringify(v)
		}
	}

	for _, path := range []string{"error.message", "error", "message", "msg", "detail", "description"} {
		if v, ok := lookupPath(parsed, path); ok {
			return stringify(v)
		}
	}

	return strings.TrimSpace(string(body))
}
