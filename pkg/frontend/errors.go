package frontend

import "net/http"

// httpStatusForCode maps the stable error-taxonomy codes onto HTTP status
// codes for the envelope's top-level failures (auth, group resolution)
// that never make it as far as a JSON-RPC call.
func httpStatusForCode(code string) int {
	switch code {
	case "InvalidParams", "UnresolvedTemplateVariable":
		return http.StatusBadRequest
	case "AuthFailed":
		return http.StatusUnauthorized
	case "AccessDenied", "Forbidden":
		return http.StatusForbidden
	case "GroupNotFound", "ToolNotFound", "NotFound":
		return http.StatusNotFound
	case "ServerAlreadyConnected":
		return http.StatusConflict
	case "RateLimitExceeded", "RateLimited":
		return http.StatusTooManyRequests
	case "NoServersAvailable", "ServerNotInitialized":
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
