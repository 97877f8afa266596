package apitool

import "fmt"

// ErrorCode enumerates the McpError codes the engine can synthesise.
type ErrorCode string

const (
	CodeInvalidParams             ErrorCode = "InvalidParams"
	CodeAuthFailed                ErrorCode = "AuthFailed"
	CodeForbidden                 ErrorCode = "Forbidden"
	CodeNotFound                  ErrorCode = "NotFound"
	CodeRateLimited                ErrorCode = "RateLimited"
	CodeServerError                ErrorCode = "ServerError"
	CodeAccessDenied               ErrorCode = "AccessDenied"
	CodeUnresolvedTemplateVariable ErrorCode = "UnresolvedTemplateVariable"

	// CodeRateLimitExceeded is the hub's own pre-network rate-limit
	// rejection (§7/§8 scenario 5). CodeRateLimited is reserved for a
	// downstream HTTP 429 mapped via codeForStatus.
	CodeRateLimitExceeded ErrorCode = "RateLimitExceeded"
)

// McpError is a structured tool-call failure carrying the code a
// Protocol Front-End maps to a JSON-RPC/HTTP status.
type McpError struct {
	Code    ErrorCode
	Message string
	Detail  any
}

func (e *McpError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// codeForStatus derives an McpError code from an HTTP response status,
// per status code.
func codeForStatus(status int) ErrorCode {
	switch {
	case status == 400:
		return CodeInvalidParams
	case status == 401:
		return CodeAuthFailed
	case status == 403:
		return CodeForbidden
	case status == 404:
		return CodeNotFound
	case status == 429:
		return CodeRateLimited
	case status >= 500:
		return CodeServerError
	default:
		return CodeServerError
	}
}
