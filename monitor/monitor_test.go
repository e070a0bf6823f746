package monitor

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitor_Counters(t *testing.T) {
	m := NewMonitor("boardroom")

	m.IncOnlinePlayers()
	m.IncOnlinePlayers()
	m.DecOnlinePlayers()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Metrics().OnlinePlayers))

	m.ObserveTransaction("roll", "ok", time.Millisecond)
	m.ObserveTransaction("roll", "NOT_YOUR_TURN", time.Millisecond)
	m.ObserveTransaction("roll", "ok", time.Millisecond)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Metrics().Transactions.WithLabelValues("roll", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Metrics().Transactions.WithLabelValues("roll", "NOT_YOUR_TURN")))

	m.ObserveConflict()
	m.IncHeartbeatFailures()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Metrics().TransactionConflicts))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Metrics().HeartbeatFailures))
}

func TestMonitor_IndependentRegistries(t *testing.T) {
	// Separate registries mean two monitors never collide on registration.
	assert.NotPanics(t, func() {
		NewMonitor("boardroom")
		NewMonitor("boardroom")
	})
}

func TestMonitor_NilIsNoop(t *testing.T) {
	var m *Monitor
	assert.NotPanics(t, func() {
		m.IncOnlinePlayers()
		m.ObserveTransaction("join", "ok", time.Second)
		m.ObserveConflict()
		m.IncHeartbeatFailures()
		m.SetWatchedRooms(3)
	})
	assert.Nil(t, m.Metrics())
}

func TestMonitor_Handler(t *testing.T) {
	m := NewMonitor("boardroom")
	m.IncMessagesReceived()

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "boardroom_messages_received_total 1"))
}
