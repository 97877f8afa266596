package mcpserver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreAllConnectedIsHundred(t *testing.T) {
	snaps := map[string]Snapshot{
		"a": {Status: StatusConnected},
		"b": {Status: StatusConnected},
	}
	assert.Equal(t, 100, Score(snaps))
}

func TestScoreDeductsForErrorAndWarning(t *testing.T) {
	snaps := map[string]Snapshot{
		"a": {Status: StatusError},        // -30
		"b": {Status: StatusDisconnected},  // -10
		"c": {Status: StatusConnecting},    // -10
		"d": {Status: StatusConnected},     // -0
	}
	assert.Equal(t, 50, Score(snaps))
}

func TestScoreClampsAtZero(t *testing.T) {
	snaps := map[string]Snapshot{
		"a": {Status: StatusError},
		"b": {Status: StatusError},
		"c": {Status: StatusError},
		"d": {Status: StatusError},
	}
	assert.Equal(t, 0, Score(snaps))
}

func TestScoreEmptyIsHundred(t *testing.T) {
	assert.Equal(t, 100, Score(map[string]Snapshot{}))
}

func TestScheduleReconnectExhaustedAttemptsIsNoop(t *testing.T) {
	reg := newTestRegistry()
	mgr := NewManager(reg)
	require.NoError(t, mgr.Initialize(context.Background()))

	// "broken" fails instantly (nonexistent binary), so driving it to the
	// attempt cap synchronously is fast and deterministic.
	for i := 0; i < MaxReconnectAttempts; i++ {
		_ = mgr.ReconnectServer(context.Background(), "broken")
	}

	before, err := mgr.GetServer("broken")
	require.NoError(t, err)
	require.GreaterOrEqual(t, before.ReconnectAttempts, MaxReconnectAttempts)

	mon := NewHealthMonitor(mgr)
	mon.stopCh = make(chan struct{})
	defer close(mon.stopCh)

	mon.scheduleReconnect("broken")

	after, err := mgr.GetServer("broken")
	require.NoError(t, err)
	assert.Equal(t, before.ReconnectAttempts, after.ReconnectAttempts)
}
