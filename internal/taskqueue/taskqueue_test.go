package taskqueue

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func newTestQueue(t *testing.T) *Queue {
	t.Helper()
	q := New(DefaultConfig(t.Name()))
	t.Cleanup(func() {
		_ = q.Shutdown(time.Second)
	})
	return q
}

func TestPostExecutesInOrder(t *testing.T) {
	q := newTestQueue(t)

	var order []int
	for i := 1; i <= 100; i++ {
		require.True(t, q.Post(func() { order = append(order, i) }))
	}
	require.True(t, q.Sync())

	require.Len(t, order, 100)
	for i, v := range order {
		assert.Equal(t, i+1, v)
	}
}

func TestTasksRunOnSingleGoroutine(t *testing.T) {
	q := newTestQueue(t)

	// The queue goroutine is the ownership domain: unsynchronized state
	// mutated only from tasks must come out consistent.
	counter := 0
	for range 1000 {
		q.Post(func() { counter++ })
	}
	require.True(t, q.Sync())
	assert.Equal(t, 1000, counter)
}

func TestPostDelayedNotBeforeDeadline(t *testing.T) {
	q := newTestQueue(t)

	start := time.Now()
	fired := make(chan time.Time, 1)
	q.PostDelayed(func() { fired <- time.Now() }, 50*time.Millisecond)

	select {
	case at := <-fired:
		assert.GreaterOrEqual(t, at.Sub(start), 50*time.Millisecond)
	case <-time.After(2 * time.Second):
		t.Fatal("delayed task never ran")
	}
}

func TestPostDelayedZeroDelayRunsImmediately(t *testing.T) {
	q := newTestQueue(t)

	var ran atomic.Bool
	q.PostDelayed(func() { ran.Store(true) }, 0)
	require.True(t, q.Sync())
	assert.True(t, ran.Load())
}

func TestPostAfterShutdownIsNoOp(t *testing.T) {
	q := New(DefaultConfig(t.Name()))
	require.NoError(t, q.Shutdown(time.Second))

	assert.False(t, q.Post(func() { t.Error("task ran after shutdown") }))
	assert.False(t, q.Sync())
	assert.False(t, q.Running())

	// Second shutdown is a safe no-op.
	assert.NoError(t, q.Shutdown(time.Second))
}

func TestShutdownDrainsAcceptedTasks(t *testing.T) {
	q := New(DefaultConfig(t.Name()))

	var executed atomic.Int32
	blocker := make(chan struct{})
	q.Post(func() { <-blocker })
	for range 10 {
		q.Post(func() { executed.Add(1) })
	}

	close(blocker)
	require.NoError(t, q.Shutdown(time.Second))
	assert.Equal(t, int32(10), executed.Load())
}

func TestSaturationDropsInsteadOfBlocking(t *testing.T) {
	cfg := DefaultConfig(t.Name())
	cfg.BufferSize = 2
	q := New(cfg)
	defer func() { _ = q.Shutdown(time.Second) }()

	started := make(chan struct{})
	blocker := make(chan struct{})
	q.Post(func() { close(started); <-blocker })
	<-started

	// Worker is busy, so the buffer takes two tasks and drops the rest.
	accepted := 0
	for range 10 {
		if q.Post(func() {}) {
			accepted++
		}
	}
	close(blocker)
	// Shutdown drains the backlog, so the counters are final afterwards.
	require.NoError(t, q.Shutdown(time.Second))

	assert.Equal(t, 2, accepted)
	stats := q.GetStats()
	assert.Equal(t, uint64(8), stats.Dropped)
	assert.Equal(t, uint64(3), stats.Executed)
}

func TestPanickingTaskDoesNotKillWorker(t *testing.T) {
	q := newTestQueue(t)

	q.Post(func() { panic("boom") })

	var ran atomic.Bool
	q.Post(func() { ran.Store(true) })
	require.True(t, q.Sync())
	assert.True(t, ran.Load())
}

func TestShutdownLeavesNoGoroutines(t *testing.T) {
	defer goleak.VerifyNone(t)

	q := New(DefaultConfig(t.Name()))
	for range 50 {
		q.Post(func() {})
	}
	require.NoError(t, q.Shutdown(time.Second))
}
