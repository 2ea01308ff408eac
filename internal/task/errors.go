package task

import "errors"

// Common errors returned by the TaskQueue and Scheduler
var (
	// ErrQueueClosed is returned when a task is enqueued after shutdown began.
	ErrQueueClosed = errors.New("task queue is closed")

	// ErrQueueFull is returned when the pending list is at capacity.
	ErrQueueFull = errors.New("task queue is full")

	// ErrUnknownTaskType is returned when no queue is registered for a
	// task's routing key.
	ErrUnknownTaskType = errors.New("unknown task type")

	// ErrAlreadySubmitted is returned when a task is handed to a queue twice.
	ErrAlreadySubmitted = errors.New("task already submitted")

	// ErrInvalidWorkerCount is returned by Initialize when a worker count
	// is zero or negative.
	ErrInvalidWorkerCount = errors.New("worker count must be positive")

	// ErrNotRunning is returned by Submit outside the running state.
	ErrNotRunning = errors.New("scheduler is not running")

	// ErrInvalidState is returned by lifecycle methods called out of order.
	ErrInvalidState = errors.New("invalid scheduler state")
)
