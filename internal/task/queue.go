package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// DefaultQueueCapacity bounds the pending list when QueueConfig.Capacity
// is left zero.
const DefaultQueueCapacity = 256

// QueueConfig holds construction-time settings for a TaskQueue.
type QueueConfig struct {
	// Name identifies the queue in logs and stats.
	Name string

	// MaxConcurrency is the number of worker goroutines, fixed at
	// construction. 1 makes the queue a strict serializer, which is how
	// exclusive GPU access is enforced without explicit locks.
	MaxConcurrency int

	// Capacity bounds the pending list. Zero means DefaultQueueCapacity.
	Capacity int
}

// QueueStats is a point-in-time snapshot of queue occupancy.
type QueueStats struct {
	Name     string `json:"name"`
	Pending  int    `json:"pending"`
	InFlight int    `json:"in_flight"`
}

// TaskQueue is a concurrency-bounded execution lane for one resource class.
// Admitted tasks wait in a priority-ordered pending list until one of the
// queue's workers claims them; at most MaxConcurrency tasks are ever running
// at once. The pending list and in-flight count are touched only under the
// queue's own mutex, never by external components.
type TaskQueue struct {
	name           string
	maxConcurrency int
	capacity       int
	logger         *slog.Logger

	mu       sync.Mutex
	cond     *sync.Cond // signals workers that pending work or shutdown arrived
	idle     *sync.Cond // broadcast when the last admitted task resolves
	pending  []*Task
	inFlight int
	active   int // admitted tasks not yet resolved
	started  bool
	closed   bool

	workers sync.WaitGroup
}

// NewTaskQueue creates a queue with the given bounds. It does not start
// workers; call Start.
func NewTaskQueue(cfg QueueConfig, logger *slog.Logger) (*TaskQueue, error) {
	if cfg.MaxConcurrency <= 0 {
		return nil, fmt.Errorf("%w: queue %q given %d", ErrInvalidWorkerCount, cfg.Name, cfg.MaxConcurrency)
	}
	capacity := cfg.Capacity
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	q := &TaskQueue{
		name:           cfg.Name,
		maxConcurrency: cfg.MaxConcurrency,
		capacity:       capacity,
		logger:         logger.With("queue", cfg.Name),
	}
	q.cond = sync.NewCond(&q.mu)
	q.idle = sync.NewCond(&q.mu)
	return q, nil
}

// Name returns the queue's identifier.
func (q *TaskQueue) Name() string {
	return q.name
}

// MaxConcurrency returns the fixed worker count.
func (q *TaskQueue) MaxConcurrency() int {
	return q.maxConcurrency
}

// Start launches the worker goroutines. Calling it twice is a no-op.
func (q *TaskQueue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.closed {
		return
	}
	q.started = true
	for i := 0; i < q.maxConcurrency; i++ {
		q.workers.Add(1)
		go q.worker(i)
	}
	q.logger.Debug("queue started", "workers", q.maxConcurrency)
}

// Enqueue admits a task to the pending list and returns its ID without
// blocking. Higher-priority tasks are placed ahead of lower-priority ones;
// equal priorities keep admission order. A rejected task (queue closed or
// full, or task already submitted elsewhere) still receives its completion
// callback, with ok=false, so the submitter never waits on a result that
// cannot arrive.
func (q *TaskQueue) Enqueue(t *Task) (uuid.UUID, error) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		t.finish(StatusFailed, false, ErrQueueClosed.Error())
		return t.ID(), ErrQueueClosed
	}
	if len(q.pending) >= q.capacity {
		q.mu.Unlock()
		err := fmt.Errorf("%w: capacity %d reached", ErrQueueFull, q.capacity)
		t.finish(StatusFailed, false, err.Error())
		return t.ID(), err
	}
	if !t.markQueued() {
		q.mu.Unlock()
		return t.ID(), ErrAlreadySubmitted
	}

	q.insert(t)
	q.active++
	pendingLen := len(q.pending)
	q.cond.Signal()
	q.mu.Unlock()

	q.logger.Debug("task enqueued",
		"task_id", t.ID(),
		"task_type", t.Type(),
		"priority", t.Priority(),
		"pending", pendingLen)
	return t.ID(), nil
}

// EnqueueFunc wraps a bare work closure in a task typed after the queue and
// admits it. This is the surface used by ad hoc single-purpose queues that
// live outside the scheduler's routing table.
func (q *TaskQueue) EnqueueFunc(work WorkFunc, priority Priority) (uuid.UUID, error) {
	return q.Enqueue(New(TaskType(q.name), work, WithPriority(priority)))
}

// insert places t in the pending list: after the last task of equal or
// higher priority, before the first of lower priority. Caller holds q.mu.
func (q *TaskQueue) insert(t *Task) {
	i := len(q.pending)
	for i > 0 && q.pending[i-1].Priority() < t.Priority() {
		i--
	}
	q.pending = append(q.pending, nil)
	copy(q.pending[i+1:], q.pending[i:])
	q.pending[i] = t
}

// Stats returns a snapshot of the queue's occupancy counters.
func (q *TaskQueue) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return QueueStats{
		Name:     q.name,
		Pending:  len(q.pending),
		InFlight: q.inFlight,
	}
}

// Wait blocks until every admitted task has resolved. It does not stop the
// queue; new admissions after Wait returns are allowed, and admissions
// concurrent with Wait may or may not be covered by it.
func (q *TaskQueue) Wait() {
	q.mu.Lock()
	for q.active > 0 {
		q.idle.Wait()
	}
	q.mu.Unlock()
}

// taskResolved decrements the admitted count, waking waiters when the
// queue drains. Caller holds q.mu.
func (q *TaskQueue) taskResolved(n int) {
	q.active -= n
	if q.active == 0 {
		q.idle.Broadcast()
	}
}

// Shutdown stops admission, cancels every still-pending task (each receives
// its callback with ok=false), lets running tasks finish naturally, and
// joins the workers. It blocks until the queue is fully drained and is
// idempotent: the second call returns immediately with nothing left to do.
func (q *TaskQueue) Shutdown() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		q.workers.Wait()
		return
	}
	q.closed = true
	cancelled := q.pending
	q.pending = nil
	q.cond.Broadcast()
	q.mu.Unlock()

	for _, t := range cancelled {
		t.finish(StatusCancelled, false, "queue shut down before execution")
	}
	if len(cancelled) > 0 {
		q.mu.Lock()
		q.taskResolved(len(cancelled))
		q.mu.Unlock()
	}
	q.workers.Wait()
	q.logger.Info("queue shut down", "cancelled", len(cancelled))
}

// worker is the per-goroutine dequeue loop: block until a pending task
// exists, claim it, run it, repeat until shutdown drains the queue.
func (q *TaskQueue) worker(id int) {
	defer q.workers.Done()

	logger := q.logger.With("worker_id", id)
	logger.Debug("starting worker")

	for {
		q.mu.Lock()
		for len(q.pending) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.pending) == 0 {
			q.mu.Unlock()
			logger.Debug("stopping worker")
			return
		}
		t := q.pending[0]
		q.pending = q.pending[1:]
		q.inFlight++
		q.mu.Unlock()

		q.runTask(t, logger)

		q.mu.Lock()
		q.inFlight--
		q.taskResolved(1)
		q.mu.Unlock()
	}
}

// runTask executes a claimed task and resolves it. A panic inside the work
// closure is caught here: the task fails with a diagnostic message and the
// worker goroutine survives to process subsequent tasks. Shutdown never
// interrupts a task that has reached this point; the background context
// reflects that running work is allowed to finish.
func (q *TaskQueue) runTask(t *Task, logger *slog.Logger) {
	logger = logger.With("task_id", t.ID(), "task_type", t.Type())

	t.markRunning()
	logger.Info("processing task")

	defer func() {
		if r := recover(); r != nil {
			logger.Error("task panicked", "panic", r)
			t.finish(StatusFailed, false, fmt.Sprintf("task panicked: %v", r))
		}
	}()

	message, err := t.work(context.Background())
	if err != nil {
		logger.Error("task execution failed", "error", err)
		t.finish(StatusFailed, false, err.Error())
		return
	}

	logger.Info("task completed successfully")
	t.finish(StatusCompleted, true, message)
}
