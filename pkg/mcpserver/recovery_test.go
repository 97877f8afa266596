package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"github.com/stretchr/testify/assert"
)

type mockNetError struct {
	msg     string
	timeout bool
}

func (e *mockNetError) Error() string { return e.msg }
func (e *mockNetError) Timeout() bool { return e.timeout }
func (e *mockNetError) Temporary() bool { return false }

var _ net.Error = (*mockNetError)(nil)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected RecoveryAction
	}{
		{"nil error", nil, NoRetry},
		{"context canceled", context.Canceled, NoRetry},
		{"context deadline exceeded", context.DeadlineExceeded, NoRetry},
		{"io.EOF", io.EOF, RetryNewSession},
		{"io.ErrUnexpectedEOF", io.ErrUnexpectedEOF, RetryNewSession},
		{"connection refused", errors.New("dial tcp: connection refused"), RetryNewSession},
		{"connection reset", errors.New("read tcp: connection reset by peer"), RetryNewSession},
		{"broken pipe", errors.New("write: broken pipe"), RetryNewSession},
		{"net.ErrClosed", net.ErrClosed, RetryNewSession},
		{"wrapped net.ErrClosed", fmt.Errorf("op failed: %w", net.ErrClosed), RetryNewSession},
		{"MCP method not found", &jsonrpc.Error{Code: jsonrpc.CodeMethodNotFound, Message: "method not found"}, NoRetry},
		{"MCP invalid params", &jsonrpc.Error{Code: jsonrpc.CodeInvalidParams, Message: "invalid params"}, NoRetry},
		{"unknown error", errors.New("something unexpected"), NoRetry},
		{"net timeout", &mockNetError{msg: "i/o timeout", timeout: true}, NoRetry},
		{"net non-timeout", &mockNetError{msg: "connection refused", timeout: false}, RetryNewSession},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ClassifyError(tt.err))
		})
	}
}

func TestReconnectDelayMonotonicAndCapped(t *testing.T) {
	var prev time.Duration
	for attempt := 0; attempt < MaxReconnectAttempts; attempt++ {
		d := ReconnectDelay(attempt)
		assert.Greater(t, d, prev)
		assert.GreaterOrEqual(t, d, ReconnectBaseDelay)
		assert.LessOrEqual(t, d, ReconnectCapDelay+ReconnectCapDelay/4)
		prev = d
	}
}

func TestReconnectDelayHighAttemptStaysCapped(t *testing.T) {
	d := ReconnectDelay(20)
	assert.LessOrEqual(t, d, ReconnectCapDelay+ReconnectCapDelay/4)
}

func TestJitteredCallBackoffWithinBounds(t *testing.T) {
	for i := 0; i < 50; i++ {
		d := jitteredCallBackoff()
		assert.GreaterOrEqual(t, d, RetryBackoffMin)
		assert.Less(t, d, RetryBackoffMax)
	}
}

func TestHealthIntervalMatchesSpec(t *testing.T) {
	assert.Equal(t, 30*time.Second, HealthInterval)
}
