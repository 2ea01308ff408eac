package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Executor performs the actual inference work for one task type, given the
// submitter's opaque payload. The concrete engines (LLM, TTS, diffusion)
// live behind this function type; the scheduler only ever sees a WorkFunc.
type Executor func(ctx context.Context, payload []byte) (string, error)

// Factory builds typed tasks from a registry of per-type executors. The
// presentation layer hands it a routing key and a payload; the factory
// closes the matching executor over the payload so the queue's worker can
// run it without knowing what kind of work it is.
type Factory struct {
	mu        sync.RWMutex
	executors map[TaskType]Executor
	logger    *slog.Logger
}

// NewFactory creates an empty factory.
func NewFactory(logger *slog.Logger) *Factory {
	return &Factory{
		executors: make(map[TaskType]Executor),
		logger:    logger.With("component", "task_factory"),
	}
}

// Register binds an executor to a task type, replacing any previous binding.
func (f *Factory) Register(taskType TaskType, exec Executor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.executors[taskType] = exec
	f.logger.Debug("registered executor", "task_type", taskType)
}

// Types returns the task types with a registered executor.
func (f *Factory) Types() []TaskType {
	f.mu.RLock()
	defer f.mu.RUnlock()
	types := make([]TaskType, 0, len(f.executors))
	for t := range f.executors {
		types = append(types, t)
	}
	return types
}

// CreateTask builds a task of the given type around the registered
// executor and payload. Unknown types fail here, before the task ever
// reaches a queue.
func (f *Factory) CreateTask(taskType TaskType, payload []byte, opts ...Option) (*Task, error) {
	f.mu.RLock()
	exec, ok := f.executors[taskType]
	f.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: no executor registered for %q", ErrUnknownTaskType, taskType)
	}

	work := func(ctx context.Context) (string, error) {
		return exec(ctx, payload)
	}
	opts = append([]Option{WithPayload(payload)}, opts...)
	return New(taskType, work, opts...), nil
}
