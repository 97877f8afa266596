package audit

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/codeready-toolchain/mcphub/pkg/apitool"
	"github.com/codeready-toolchain/mcphub/pkg/hub"
)

// SecuritySink returns a callback suitable for hub.Hub.SetSecuritySink that
// persists every security event to the security_events table. Failures are
// logged, never propagated — persistence is best-effort, not a gate on
// serving traffic.
func (c *Client) SecuritySink() func(apitool.SecurityEvent) {
	return func(evt apitool.SecurityEvent) {
		_, err := c.db.ExecContext(context.Background(),
			`INSERT INTO security_events (event_type, severity, tool_id, client_id, message, occurred_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			string(evt.Type), evt.Severity, evt.ToolID, evt.ClientID, evt.Message, evt.Timestamp,
		)
		if err != nil {
			slog.Error("failed to persist security event", "error", err, "tool_id", evt.ToolID)
		}
	}
}

// TraceSink returns a callback suitable for hub.Hub.SetTraceSink that
// persists every traced MCP message to the message_trace table.
func (c *Client) TraceSink() func(hub.TraceEntry) {
	return func(entry hub.TraceEntry) {
		payload, err := json.Marshal(entry.Payload)
		if err != nil {
			slog.Error("failed to marshal traced message payload", "error", err, "server_id", entry.ServerID)
			return
		}

		_, err = c.db.ExecContext(context.Background(),
			`INSERT INTO message_trace (trace_id, server_id, direction, method, payload, occurred_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			entry.ID, entry.ServerID, string(entry.Direction), entry.Method, payload, entry.Timestamp,
		)
		if err != nil {
			slog.Error("failed to persist traced message", "error", err, "server_id", entry.ServerID)
		}
	}
}
