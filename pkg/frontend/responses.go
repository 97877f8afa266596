package frontend

import (
	"time"

	"github.com/gin-gonic/gin"
)

// envelope is the collaborator-facing response shape wrapping every
// non-JSON-RPC HTTP reply the front-end produces directly (auth failures,
// group resolution errors) — distinct from the JSON-RPC Response used for
// the MCP wire protocol itself.
type envelope struct {
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
	ErrorCode string `json:"errorCode,omitempty"`
	Data      any    `json:"data,omitempty"`
	Timestamp string `json:"timestamp"`
}

func writeEnvelopeError(c *gin.Context, code string, message string) {
	c.JSON(httpStatusForCode(code), envelope{
		Success:   false,
		Error:     message,
		ErrorCode: code,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func writeEnvelopeData(c *gin.Context, status int, data any) {
	c.JSON(status, envelope{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
