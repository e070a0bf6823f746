package timer

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimerManager_OneShot(t *testing.T) {
	m := NewTimerManager(5 * time.Millisecond)
	defer m.Stop()

	var fired atomic.Int32
	m.AddTimer(10*time.Millisecond, 0, func() { fired.Add(1) })

	require.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())
	assert.Equal(t, 0, m.Len())
}

func TestTimerManager_Repeating(t *testing.T) {
	m := NewTimerManager(5 * time.Millisecond)
	defer m.Stop()

	var fired atomic.Int32
	id := m.AddTimer(0, 10*time.Millisecond, func() { fired.Add(1) })

	require.Eventually(t, func() bool { return fired.Load() >= 3 }, time.Second, 5*time.Millisecond)
	m.RemoveTimer(id)
	assert.Equal(t, 0, m.Len())

	// Allow any callback dispatched before removal to land.
	time.Sleep(20 * time.Millisecond)
	settled := fired.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, settled, fired.Load())
}

func TestTimerManager_RemoveUnknownIsNoop(t *testing.T) {
	m := NewTimerManager(0)
	defer m.Stop()
	m.RemoveTimer(42)
	m.RemoveTimer(42)
}

func TestTimerManager_RemoveBeforeFire(t *testing.T) {
	m := NewTimerManager(5 * time.Millisecond)
	defer m.Stop()

	var fired atomic.Int32
	id := m.AddTimer(30*time.Millisecond, 0, func() { fired.Add(1) })
	other := m.AddTimer(time.Hour, 0, func() {})
	m.RemoveTimer(id)
	assert.Equal(t, 1, m.Len())

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())
	m.RemoveTimer(other)
}

func TestTimerManager_StopIsIdempotent(t *testing.T) {
	m := NewTimerManager(5 * time.Millisecond)
	var fired atomic.Int32
	m.AddTimer(20*time.Millisecond, 0, func() { fired.Add(1) })
	m.Stop()
	m.Stop()

	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())
}
