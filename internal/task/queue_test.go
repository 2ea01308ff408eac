package task

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T, maxConcurrency int) *TaskQueue {
	t.Helper()
	q, err := NewTaskQueue(QueueConfig{Name: "test", MaxConcurrency: maxConcurrency}, setupTestLogger())
	require.NoError(t, err)
	return q
}

func TestNewTaskQueueRejectsInvalidConcurrency(t *testing.T) {
	for _, count := range []int{0, -1} {
		_, err := NewTaskQueue(QueueConfig{Name: "bad", MaxConcurrency: count}, setupTestLogger())
		assert.ErrorIs(t, err, ErrInvalidWorkerCount)
	}
}

func TestEnqueueReturnsImmediately(t *testing.T) {
	q := newTestQueue(t, 1)
	defer q.Shutdown()
	q.Start()

	tk := New(TypeLLMGPU, noopWork)
	id, err := q.Enqueue(tk)
	require.NoError(t, err)
	assert.Equal(t, tk.ID(), id)

	res, err := tk.Wait(context.Background())
	require.NoError(t, err)
	assert.True(t, res.OK)
}

func TestFIFOOrderingAtEqualPriority(t *testing.T) {
	q := newTestQueue(t, 1)
	q.Start()

	var mu sync.Mutex
	var order []string

	for _, name := range []string{"A", "B", "C"} {
		name := name
		tk := New(TypeLLMGPU, func(ctx context.Context) (string, error) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return name, nil
		})
		_, err := q.Enqueue(tk)
		require.NoError(t, err)
	}

	q.Wait()
	q.Shutdown()
	assert.Equal(t, []string{"A", "B", "C"}, order)
}

func TestPriorityOrdering(t *testing.T) {
	q := newTestQueue(t, 1)

	var mu sync.Mutex
	var order []string

	record := func(name string) WorkFunc {
		return func(ctx context.Context) (string, error) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return name, nil
		}
	}

	// Admit everything before starting workers so ordering is decided
	// purely by the pending list.
	_, err := q.Enqueue(New(TypeLLMGPU, record("low"), WithPriority(PriorityLow)))
	require.NoError(t, err)
	_, err = q.Enqueue(New(TypeLLMGPU, record("normal-1")))
	require.NoError(t, err)
	_, err = q.Enqueue(New(TypeLLMGPU, record("high"), WithPriority(PriorityHigh)))
	require.NoError(t, err)
	_, err = q.Enqueue(New(TypeLLMGPU, record("normal-2")))
	require.NoError(t, err)

	q.Start()
	q.Wait()
	q.Shutdown()

	assert.Equal(t, []string{"high", "normal-1", "normal-2", "low"}, order)
}

func TestExclusiveLaneNeverExceedsConcurrencyOne(t *testing.T) {
	q := newTestQueue(t, 1)
	q.Start()

	var running int32
	var maxObserved int32
	var wg sync.WaitGroup

	const taskCount = 50
	for i := 0; i < taskCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tk := New(TypeLLMGPU, func(ctx context.Context) (string, error) {
				now := atomic.AddInt32(&running, 1)
				for {
					max := atomic.LoadInt32(&maxObserved)
					if now <= max || atomic.CompareAndSwapInt32(&maxObserved, max, now) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&running, -1)
				return "", nil
			})
			_, err := q.Enqueue(tk)
			assert.NoError(t, err)
		}()
	}

	wg.Wait()
	q.Wait()
	q.Shutdown()

	assert.Equal(t, int32(1), maxObserved, "exclusive lane must serialize execution")
}

func TestPoolRunsConcurrently(t *testing.T) {
	q := newTestQueue(t, 4)
	q.Start()
	defer q.Shutdown()

	barrier := make(chan struct{})
	var arrived int32

	for i := 0; i < 4; i++ {
		tk := New(TypeTTSCPU, func(ctx context.Context) (string, error) {
			if atomic.AddInt32(&arrived, 1) == 4 {
				close(barrier)
			}
			// All four must be in flight at once for the barrier to open.
			select {
			case <-barrier:
				return "", nil
			case <-time.After(2 * time.Second):
				return "", errors.New("pool did not reach expected parallelism")
			}
		})
		_, err := q.Enqueue(tk)
		require.NoError(t, err)
	}

	q.Wait()
	assert.Equal(t, int32(4), atomic.LoadInt32(&arrived))
}

func TestWorkerSurvivesPanic(t *testing.T) {
	q := newTestQueue(t, 1)
	q.Start()
	defer q.Shutdown()

	panicking := New(TypeLLMGPU, func(ctx context.Context) (string, error) {
		panic("inference engine exploded")
	})
	var gotOK bool
	var gotMessage string
	panicking.SetCallback(func(ok bool, message string) {
		gotOK = ok
		gotMessage = message
	})

	_, err := q.Enqueue(panicking)
	require.NoError(t, err)
	<-panicking.Done()

	assert.False(t, gotOK)
	assert.Contains(t, gotMessage, "inference engine exploded")
	assert.Equal(t, StatusFailed, panicking.Status())

	// The same worker must still process subsequent tasks.
	after := New(TypeLLMGPU, noopWork)
	_, err = q.Enqueue(after)
	require.NoError(t, err)

	res, err := after.Wait(context.Background())
	require.NoError(t, err)
	assert.True(t, res.OK)
}

func TestExecutionErrorDoesNotStopWorker(t *testing.T) {
	q := newTestQueue(t, 1)
	q.Start()
	defer q.Shutdown()

	failing := New(TypeLLMGPU, func(ctx context.Context) (string, error) {
		return "", errors.New("model not loaded")
	})
	_, err := q.Enqueue(failing)
	require.NoError(t, err)

	res, err := failing.Wait(context.Background())
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, "model not loaded", res.Message)

	ok := New(TypeLLMGPU, noopWork)
	_, err = q.Enqueue(ok)
	require.NoError(t, err)

	res, err = ok.Wait(context.Background())
	require.NoError(t, err)
	assert.True(t, res.OK)
}

func TestShutdownCancelsPending(t *testing.T) {
	q := newTestQueue(t, 1)
	q.Start()

	started := make(chan struct{})
	release := make(chan struct{})
	blocker := New(TypeLLMGPU, func(ctx context.Context) (string, error) {
		close(started)
		<-release
		return "finished", nil
	})
	_, err := q.Enqueue(blocker)
	require.NoError(t, err)
	<-started

	var cancelled int32
	var pending []*Task
	for i := 0; i < 4; i++ {
		tk := New(TypeLLMGPU, noopWork)
		tk.SetCallback(func(ok bool, message string) {
			if !ok {
				atomic.AddInt32(&cancelled, 1)
			}
		})
		_, err := q.Enqueue(tk)
		require.NoError(t, err)
		pending = append(pending, tk)
	}

	done := make(chan struct{})
	go func() {
		q.Shutdown()
		close(done)
	}()

	// Shutdown must wait for the running task, not kill it.
	select {
	case <-done:
		t.Fatal("shutdown returned while a task was still running")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
	<-done

	res, err := blocker.Wait(context.Background())
	require.NoError(t, err)
	assert.True(t, res.OK, "in-flight task must finish naturally")

	assert.Equal(t, int32(4), atomic.LoadInt32(&cancelled))
	for _, tk := range pending {
		assert.Equal(t, StatusCancelled, tk.Status())
	}
}

func TestShutdownIsIdempotent(t *testing.T) {
	q := newTestQueue(t, 1)
	q.Start()

	var calls int32
	tk := New(TypeLLMGPU, noopWork)
	tk.SetCallback(func(bool, string) { atomic.AddInt32(&calls, 1) })
	_, err := q.Enqueue(tk)
	require.NoError(t, err)
	q.Wait()

	q.Shutdown()
	q.Shutdown()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestEnqueueAfterShutdown(t *testing.T) {
	q := newTestQueue(t, 1)
	q.Start()
	q.Shutdown()

	tk := New(TypeLLMGPU, noopWork)
	var gotOK bool
	called := false
	tk.SetCallback(func(ok bool, message string) {
		called = true
		gotOK = ok
	})

	_, err := q.Enqueue(tk)
	assert.ErrorIs(t, err, ErrQueueClosed)
	assert.True(t, called, "rejected task must still receive its callback")
	assert.False(t, gotOK)
	assert.Equal(t, StatusFailed, tk.Status())
}

func TestEnqueueFull(t *testing.T) {
	q, err := NewTaskQueue(
		QueueConfig{Name: "tiny", MaxConcurrency: 1, Capacity: 2},
		setupTestLogger(),
	)
	require.NoError(t, err)

	// Workers not started, so the pending list fills up.
	_, err = q.Enqueue(New(TypeLLMGPU, noopWork))
	require.NoError(t, err)
	_, err = q.Enqueue(New(TypeLLMGPU, noopWork))
	require.NoError(t, err)

	overflow := New(TypeLLMGPU, noopWork)
	_, err = q.Enqueue(overflow)
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, StatusFailed, overflow.Status())

	q.Shutdown()
}

func TestEnqueueFunc(t *testing.T) {
	q := newTestQueue(t, 1)
	q.Start()
	defer q.Shutdown()

	done := make(chan string, 1)
	id, err := q.EnqueueFunc(func(ctx context.Context) (string, error) {
		done <- "ran"
		return "ran", nil
	}, PriorityNormal)
	require.NoError(t, err)
	assert.NotEqual(t, "", id.String())

	select {
	case got := <-done:
		assert.Equal(t, "ran", got)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for ad hoc task")
	}
}

func TestWaitDuringConcurrentAdmission(t *testing.T) {
	q := newTestQueue(t, 2)
	q.Start()
	defer q.Shutdown()

	// Waiters and submitters racing around an empty queue must not trip
	// the drained-queue bookkeeping.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				_, err := q.Enqueue(New(TypeTTSCPU, noopWork))
				assert.NoError(t, err)
				q.Wait()
			}
		}()
	}
	wg.Wait()

	q.Wait()
	stats := q.Stats()
	assert.Equal(t, 0, stats.Pending)
	assert.Equal(t, 0, stats.InFlight)
}

func TestStatsTracksInFlight(t *testing.T) {
	q := newTestQueue(t, 1)
	q.Start()
	defer q.Shutdown()

	started := make(chan struct{})
	release := make(chan struct{})
	_, err := q.Enqueue(New(TypeLLMGPU, func(ctx context.Context) (string, error) {
		close(started)
		<-release
		return "", nil
	}))
	require.NoError(t, err)
	_, err = q.Enqueue(New(TypeLLMGPU, noopWork))
	require.NoError(t, err)

	<-started
	stats := q.Stats()
	assert.Equal(t, 1, stats.InFlight)
	assert.Equal(t, 1, stats.Pending)

	close(release)
	q.Wait()

	stats = q.Stats()
	assert.Equal(t, 0, stats.InFlight)
	assert.Equal(t, 0, stats.Pending)
}
