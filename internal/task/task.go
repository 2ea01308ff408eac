package task

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// TaskType identifies the resource class a task needs. It is fixed at
// creation and determines which queue the scheduler routes the task to.
type TaskType string

// Routing keys for the supported workload classes.
const (
	// TypeLLMGPU is latency-sensitive language-model generation on the
	// primary, exclusively held GPU.
	TypeLLMGPU TaskType = "llm_gpu"

	// TypeTTSCPU is speech synthesis work that runs on the CPU pool and
	// never touches the GPU.
	TypeTTSCPU TaskType = "tts_cpu"

	// TypeImageGPU is best-effort image generation on the secondary GPU
	// lane, kept out of the primary lane so it cannot delay generation.
	TypeImageGPU TaskType = "image_gpu"
)

// TaskStatus represents the current state of a task
type TaskStatus string

// Possible task status values
const (
	StatusCreated   TaskStatus = "created"
	StatusQueued    TaskStatus = "queued"
	StatusRunning   TaskStatus = "running"
	StatusCompleted TaskStatus = "completed"
	StatusFailed    TaskStatus = "failed"
	StatusCancelled TaskStatus = "cancelled"
)

// Priority orders tasks within a single queue. Tasks of equal priority run
// in admission order (FIFO); ordering across queues is undefined.
type Priority int

const (
	PriorityLow    Priority = -1
	PriorityNormal Priority = 0
	PriorityHigh   Priority = 1
)

// ClampPriority bounds an externally supplied priority to the defined
// range, so a submission arriving from outside the validated HTTP path
// cannot jump ahead of every high-priority task.
func ClampPriority(p Priority) Priority {
	if p < PriorityLow {
		return PriorityLow
	}
	if p > PriorityHigh {
		return PriorityHigh
	}
	return p
}

// WorkFunc is the unit of work a task carries. It returns a human-readable
// result message on success. Implementations wanting a timeout must enforce
// it themselves; the worker loop does not impose one.
type WorkFunc func(ctx context.Context) (string, error)

// Callback receives the task outcome exactly once, from the goroutine that
// resolved the task. It must not block for long; workers invoke it inline.
type Callback func(ok bool, message string)

// Result is the terminal outcome of a task, also available through the
// task's future once Done() is closed.
type Result struct {
	OK      bool
	Message string
}

// Task is a unit of schedulable work: an immutable type for routing, a work
// closure, and a single-shot completion callback. A task may be submitted at
// most once; its callback fires exactly once on every terminal path,
// including rejection, panic, and cancellation during shutdown.
type Task struct {
	id       uuid.UUID
	taskType TaskType
	priority Priority
	payload  []byte
	work     WorkFunc

	mu       sync.Mutex
	status   TaskStatus
	callback Callback

	resolve sync.Once
	done    chan struct{}
	result  Result
}

// Option configures a task at construction time.
type Option func(*Task)

// WithPriority sets the ordering hint used within the owning queue.
func WithPriority(p Priority) Option {
	return func(t *Task) { t.priority = p }
}

// WithPayload attaches opaque request data for the work closure's benefit.
func WithPayload(payload []byte) Option {
	return func(t *Task) { t.payload = payload }
}

// WithID overrides the generated task ID, letting callers correlate the
// task with an upstream identifier such as a submission event ID.
func WithID(id uuid.UUID) Option {
	return func(t *Task) { t.id = id }
}

// New creates a task of the given type wrapping the provided work closure.
func New(taskType TaskType, work WorkFunc, opts ...Option) *Task {
	t := &Task{
		id:       uuid.New(),
		taskType: taskType,
		priority: PriorityNormal,
		status:   StatusCreated,
		work:     work,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// ID returns the task's unique identifier
func (t *Task) ID() uuid.UUID {
	return t.id
}

// Type returns the routing key. Immutable after construction.
func (t *Task) Type() TaskType {
	return t.taskType
}

// Priority returns the ordering hint supplied at construction.
func (t *Task) Priority() Priority {
	return t.priority
}

// Payload returns the opaque request data attached at construction.
func (t *Task) Payload() []byte {
	return t.payload
}

// Status returns the current task status
func (t *Task) Status() TaskStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// SetCallback registers the completion handler. It may only be called before
// the task is submitted; once the task has left the created state the call
// is ignored and false is returned.
func (t *Task) SetCallback(cb Callback) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status != StatusCreated {
		return false
	}
	t.callback = cb
	return true
}

// Done returns a channel closed when the task reaches a terminal status.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Result returns the task outcome. Only meaningful after Done() is closed.
func (t *Task) Result() Result {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result
}

// Wait blocks until the task resolves or ctx is cancelled, returning the
// outcome or the context error.
func (t *Task) Wait(ctx context.Context) (Result, error) {
	select {
	case <-t.done:
		return t.Result(), nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// markQueued transitions created -> queued on admission to a queue. It
// reports false if the task was already submitted, preventing double
// execution of a task handed to two queues.
func (t *Task) markQueued() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status != StatusCreated {
		return false
	}
	t.status = StatusQueued
	return true
}

// markRunning transitions queued -> running when a worker claims the task.
func (t *Task) markRunning() {
	t.mu.Lock()
	t.status = StatusRunning
	t.mu.Unlock()
}

// finish resolves the task: records the terminal status and result, fires
// the callback, and closes the future. The sync.Once guarantees the
// exactly-once contract even if multiple paths race to resolve.
func (t *Task) finish(status TaskStatus, ok bool, message string) {
	t.resolve.Do(func() {
		t.mu.Lock()
		t.status = status
		t.result = Result{OK: ok, Message: message}
		cb := t.callback
		t.mu.Unlock()

		if cb != nil {
			cb(ok, message)
		}
		close(t.done)
	})
}
