package mcpserver

import (
	"context"
	"errors"
	"io"
	"math/rand/v2"
	"net"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
)

// RecoveryAction determines how CallTool responds to a failure.
type RecoveryAction int

const (
	// NoRetry — the error is not recoverable on this session.
	NoRetry RecoveryAction = iota
	// RetryNewSession — transport failure; recreate the session and retry.
	RetryNewSession
)

// Timing constants for connection lifecycle and recovery.
const (
	MaxCallRetries   = 1
	ReinitTimeout    = 10 * time.Second
	OperationTimeout = 90 * time.Second
	RetryBackoffMin  = 250 * time.Millisecond
	RetryBackoffMax  = 750 * time.Millisecond
	InitTimeout      = 30 * time.Second
	HealthPingTimeout = 5 * time.Second
	HealthInterval    = 30 * time.Second

	// Reconnect backoff policy.
	ReconnectBaseDelay = 1 * time.Second
	ReconnectCapDelay  = 30 * time.Second
	MaxReconnectAttempts = 5
)

// ClassifyError determines the recovery action for an MCP operation error.
func ClassifyError(err error) RecoveryAction {
	if err == nil {
		return NoRetry
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return NoRetry
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return NoRetry
		}
		return RetryNewSession
	}

	if isConnectionError(err) {
		return RetryNewSession
	}

	if isMCPProtocolError(err) {
		return NoRetry
	}

	return NoRetry
}

func isConnectionError(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection refused", "connection reset", "broken pipe", "connection closed", "no such host"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func isMCPProtocolError(err error) bool {
	var wireErr *jsonrpc.Error
	if !errors.As(err, &wireErr) {
		return false
	}
	switch wireErr.Code {
	case jsonrpc.CodeParseError, jsonrpc.CodeInvalidRequest, jsonrpc.CodeMethodNotFound, jsonrpc.CodeInvalidParams:
		return true
	default:
		return false
	}
}

// ReconnectDelay computes the exponential backoff with jitter for the
// given (zero-based) attempt number: min(base·2^attempt, cap).
func ReconnectDelay(attempt int) time.Duration {
	delay := ReconnectBaseDelay << attempt
	if delay > ReconnectCapDelay || delay <= 0 {
		delay = ReconnectCapDelay
	}
	jitter := time.Duration(rand.Int64N(int64(delay) / 4 + 1))
	return delay + jitter
}

// jitteredCallBackoff returns a random backoff in [RetryBackoffMin, RetryBackoffMax)
// used between the first and second CallTool attempt.
func jitteredCallBackoff() time.Duration {
	return RetryBackoffMin + time.Duration(rand.Int64N(int64(RetryBackoffMax-RetryBackoffMin)))
}
