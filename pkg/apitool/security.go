package apitool

import (
	"log/slog"
	"time"

	"github.com/codeready-toolchain/mcphub/pkg/redact"
)

// SecurityEventType enumerates the alerting triggers.
type SecurityEventType string

const (
	EventRateLimitExceeded SecurityEventType = "RATE_LIMIT_EXCEEDED"
	EventSuspiciousActivity SecurityEventType = "SUSPICIOUS_ACTIVITY"
	EventAuthFailure        SecurityEventType = "AUTH_FAILURE"
)

// SecurityEvent is emitted for the collaborator's audit sink (pkg/audit)
// in addition to being logged.
type SecurityEvent struct {
	Type      SecurityEventType
	Severity  string
	ToolID    string
	ClientID  string
	Message   string
	Timestamp time.Time
}

// CallRecord is the redacted audit trail for one tool invocation: tool id,
// optional client id, timestamp, redacted parameters and response,
// duration, success flag, and an optional error message.
type CallRecord struct {
	ToolID     string
	ClientID   string
	Timestamp  time.Time
	Parameters any
	Response   any
	Duration   time.Duration
	Success    bool
	Error      string
}

// securityLogger redacts and emits call records and security events. It is
// safe for concurrent use.
type securityLogger struct {
	scrubber *redact.Scrubber
	logger   *slog.Logger
	sink     func(SecurityEvent)
}

func newSecurityLogger(extraSensitiveKeys []string, sink func(SecurityEvent)) *securityLogger {
	return &securityLogger{
		scrubber: redact.New(extraSensitiveKeys...),
		logger:   slog.Default().With("component", "api_tool_security"),
		sink:     sink,
	}
}

func (s *securityLogger) logCall(rec CallRecord) {
	redactedParams := s.scrubber.Redact(rec.Parameters)
	redactedResponse := s.scrubber.Redact(rec.Response)

	attrs := []any{
		"tool", rec.ToolID,
		"client", rec.ClientID,
		"duration_ms", rec.Duration.Milliseconds(),
		"success", rec.Success,
		"parameters", redactedParams,
		"response", redactedResponse,
	}
	if rec.Error != "" {
		attrs = append(attrs, "error", rec.Error)
	}

	if rec.Success {
		s.logger.Info("api tool call", attrs...)
	} else {
		s.logger.Warn("api tool call failed", attrs...)
	}
}

func (s *securityLogger) emit(evt SecurityEvent) {
	evt.Timestamp = time.Now()
	s.logger.Warn("security event", "type", evt.Type, "severity", evt.Severity, "tool", evt.ToolID, "client", evt.ClientID, "message", evt.Message)
	if s.sink != nil {
		s.sink(evt)
	}
}
