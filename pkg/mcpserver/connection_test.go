package mcpserver

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/codeready-toolchain/mcphub/pkg/config"
)

func TestNewServerConnectionStartsDisconnected(t *testing.T) {
	conn := newServerConnection("srv-1", config.ServerConfig{ID: "srv-1"})
	snap := conn.Snapshot()
	assert.Equal(t, StatusDisconnected, snap.Status)
	assert.Equal(t, "srv-1", snap.ID)
	assert.Empty(t, snap.Tools)
}

func TestMarkConnectedThenMarkErrorTransitions(t *testing.T) {
	conn := newServerConnection("srv-1", config.ServerConfig{ID: "srv-1"})

	conn.markConnected(nil, nil, nil, 1)
	snap := conn.Snapshot()
	assert.Equal(t, StatusConnected, snap.Status)
	assert.Equal(t, 0, snap.ReconnectAttempts)

	conn.markError(errors.New("boom"))
	snap = conn.Snapshot()
	assert.Equal(t, StatusError, snap.Status)
	assert.Equal(t, "boom", snap.LastError)
	assert.Equal(t, 1, snap.ReconnectAttempts)
}

func TestMarkConnectedKeepsFirstConnectSeqAcrossReconnect(t *testing.T) {
	conn := newServerConnection("srv-1", config.ServerConfig{ID: "srv-1"})

	conn.markConnected(nil, nil, nil, 5)
	assert.EqualValues(t, 5, conn.Snapshot().ConnectSeq)

	conn.markError(errors.New("boom"))
	conn.markConnected(nil, nil, nil, 9)
	assert.EqualValues(t, 5, conn.Snapshot().ConnectSeq, "reconnecting must not change a server's first-registration order")
}

func TestGetSessionFalseWhenNotConnected(t *testing.T) {
	conn := newServerConnection("srv-1", config.ServerConfig{ID: "srv-1"})
	session, connected := conn.getSession()
	assert.Nil(t, session)
	assert.False(t, connected)
}

func TestClearSessionResetsState(t *testing.T) {
	conn := newServerConnection("srv-1", config.ServerConfig{ID: "srv-1"})
	conn.markConnected(nil, nil, nil, 1)
	conn.clearSession()

	_, connected := conn.getSession()
	assert.False(t, connected)
}

func TestSnapshotIsIndependentCopy(t *testing.T) {
	conn := newServerConnection("srv-1", config.ServerConfig{ID: "srv-1"})
	conn.setTools(nil)
	snap1 := conn.Snapshot()
	conn.markError(errors.New("x"))
	snap2 := conn.Snapshot()

	assert.Equal(t, StatusDisconnected, snap1.Status)
	assert.Equal(t, StatusError, snap2.Status)
}
