package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// State is the scheduler lifecycle phase.
type State string

// Lifecycle states. Stopped is terminal.
const (
	StateUninitialized State = "uninitialized"
	StateInitialized   State = "initialized"
	StateRunning       State = "running"
	StateStopped       State = "stopped"
)

// Queue names used in logs and stats.
const (
	QueueNameLLMGPU   = "llm-gpu"
	QueueNameTTSCPU   = "tts-cpu"
	QueueNameImageGPU = "image-gpu"
)

// Scheduler routes tasks to the queue owning their resource class and owns
// the lifecycle of those queues. Routing by declared type, rather than
// letting callers pick a queue, keeps the concurrency policy for each
// resource class changeable without touching call sites.
//
// A process is expected to construct exactly one Scheduler and hand it to
// consumers explicitly; the package deliberately exposes no shared instance.
type Scheduler struct {
	logger *slog.Logger

	mu      sync.Mutex
	state   State
	routes  map[TaskType]*TaskQueue
	queues  []*TaskQueue
	stopped chan struct{}
}

// NewScheduler creates an uninitialized scheduler.
func NewScheduler(logger *slog.Logger) *Scheduler {
	return &Scheduler{
		logger:  logger.With("component", "scheduler"),
		state:   StateUninitialized,
		stopped: make(chan struct{}),
	}
}

// Initialize builds the routing table and constructs the three standard
// lanes: the exclusive primary GPU queue sized by gpuWorkers (1 in any sane
// deployment), the CPU pool sized by cpuWorkers, and the secondary
// best-effort GPU lane with concurrency 1. Workers are not started until
// Start. Worker counts of zero or less fail initialization.
func (s *Scheduler) Initialize(gpuWorkers, cpuWorkers int) error {
	return s.InitializeConfig(Config{
		GPUWorkers:      gpuWorkers,
		CPUWorkers:      cpuWorkers,
		ImageGPUWorkers: 1,
	})
}

// Config holds queue sizing for InitializeConfig. Zero ImageGPUWorkers or
// QueueCapacity fall back to 1 and DefaultQueueCapacity respectively;
// GPUWorkers and CPUWorkers must be explicit and positive.
type Config struct {
	GPUWorkers      int
	CPUWorkers      int
	ImageGPUWorkers int
	QueueCapacity   int
}

// InitializeConfig is the full-width variant of Initialize.
func (s *Scheduler) InitializeConfig(cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateUninitialized {
		return fmt.Errorf("%w: initialize called in state %s", ErrInvalidState, s.state)
	}
	if cfg.ImageGPUWorkers == 0 {
		cfg.ImageGPUWorkers = 1
	}

	lanes := []struct {
		taskType TaskType
		cfg      QueueConfig
	}{
		{TypeLLMGPU, QueueConfig{Name: QueueNameLLMGPU, MaxConcurrency: cfg.GPUWorkers, Capacity: cfg.QueueCapacity}},
		{TypeTTSCPU, QueueConfig{Name: QueueNameTTSCPU, MaxConcurrency: cfg.CPUWorkers, Capacity: cfg.QueueCapacity}},
		{TypeImageGPU, QueueConfig{Name: QueueNameImageGPU, MaxConcurrency: cfg.ImageGPUWorkers, Capacity: cfg.QueueCapacity}},
	}

	routes := make(map[TaskType]*TaskQueue, len(lanes))
	queues := make([]*TaskQueue, 0, len(lanes))
	for _, lane := range lanes {
		q, err := NewTaskQueue(lane.cfg, s.logger)
		if err != nil {
			return fmt.Errorf("initializing queue for %s: %w", lane.taskType, err)
		}
		routes[lane.taskType] = q
		queues = append(queues, q)
	}

	// The routing table is immutable from here on; reads need no lock.
	s.routes = routes
	s.queues = queues
	s.state = StateInitialized

	s.logger.Info("scheduler initialized",
		"gpu_workers", cfg.GPUWorkers,
		"cpu_workers", cfg.CPUWorkers,
		"image_gpu_workers", cfg.ImageGPUWorkers)
	return nil
}

// State returns the current lifecycle phase.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start transitions the scheduler to running and launches every queue's
// workers. It returns immediately; use Run for the blocking variant.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	if s.state != StateInitialized {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: start called in state %s", ErrInvalidState, state)
	}
	s.state = StateRunning
	queues := s.queues
	s.mu.Unlock()

	for _, q := range queues {
		q.Start()
	}
	s.logger.Info("scheduler started", "queues", len(queues))
	return nil
}

// Run starts the scheduler and blocks on the calling goroutine until Stop
// is invoked elsewhere or ctx is cancelled, in which case it stops the
// scheduler itself before returning.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		s.Stop()
		return ctx.Err()
	case <-s.stopped:
		return nil
	}
}

// Submit routes the task to the queue registered for its type and admits
// it, returning the task ID. Submission outside the running state or with
// an unrecognized type is rejected synchronously: the error is returned and
// the task's callback fires with ok=false, so no submission ever goes
// unanswered.
func (s *Scheduler) Submit(t *Task) (uuid.UUID, error) {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()

	if state != StateRunning {
		err := fmt.Errorf("%w: state %s", ErrNotRunning, state)
		t.finish(StatusFailed, false, err.Error())
		return t.ID(), err
	}

	q, ok := s.routes[t.Type()]
	if !ok {
		err := fmt.Errorf("%w: %q", ErrUnknownTaskType, t.Type())
		s.logger.Warn("rejecting task with unknown type",
			"task_id", t.ID(),
			"task_type", t.Type())
		t.finish(StatusFailed, false, err.Error())
		return t.ID(), err
	}

	return q.Enqueue(t)
}

// Queue returns the queue owning the given type, or nil if unregistered.
// Exposed for stats and tests; external code must not dequeue from it.
func (s *Scheduler) Queue(taskType TaskType) *TaskQueue {
	return s.routes[taskType]
}

// Stats snapshots occupancy for every owned queue.
func (s *Scheduler) Stats() []QueueStats {
	s.mu.Lock()
	queues := s.queues
	s.mu.Unlock()

	stats := make([]QueueStats, 0, len(queues))
	for _, q := range queues {
		stats = append(stats, q.Stats())
	}
	return stats
}

// WaitIdle blocks until every task admitted so far has resolved, or until
// ctx is cancelled. It replaces the poll-and-sleep loop callers would
// otherwise write around the callback API.
func (s *Scheduler) WaitIdle(ctx context.Context) error {
	s.mu.Lock()
	queues := s.queues
	s.mu.Unlock()

	idle := make(chan struct{})
	go func() {
		for _, q := range queues {
			q.Wait()
		}
		close(idle)
	}()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop transitions to the terminal stopped state and shuts down every owned
// queue: pending tasks are cancelled with their callbacks fired, running
// tasks finish naturally. Safe to call more than once; only the first call
// does the work.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.state == StateStopped {
		s.mu.Unlock()
		return
	}
	s.state = StateStopped
	queues := s.queues
	close(s.stopped)
	s.mu.Unlock()

	for _, q := range queues {
		q.Shutdown()
	}
	s.logger.Info("scheduler stopped")
}
