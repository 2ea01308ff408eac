package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/lunaris-ai/scheduler/internal/api"
	"github.com/lunaris-ai/scheduler/internal/backend"
	"github.com/lunaris-ai/scheduler/internal/config"
	"github.com/lunaris-ai/scheduler/internal/events"
	"github.com/lunaris-ai/scheduler/internal/task"
)

// schedulerEventHandler turns submission events into tasks and hands them to
// the scheduler. It is the only place where the presentation layer's view of
// work (type string + payload) meets the scheduler's view (typed task with a
// work closure).
type schedulerEventHandler struct {
	factory   *task.Factory
	scheduler *task.Scheduler
	logger    *slog.Logger
}

// HandleEvent builds a task for the event and submits it. The event ID
// becomes the task ID so the HTTP client's acknowledgment matches the logs,
// and the task's future is handed back through the event so the gateway can
// offer a blocking submission mode.
func (h *schedulerEventHandler) HandleEvent(ctx context.Context, event *events.SubmissionEvent) error {
	tk, err := h.factory.CreateTask(
		task.TaskType(event.Type),
		event.Payload,
		task.WithID(event.ID),
		task.WithPriority(task.ClampPriority(task.Priority(event.Priority))),
	)
	if err != nil {
		return fmt.Errorf("creating task for event %s: %w", event.ID, err)
	}

	logger := h.logger.With("task_id", tk.ID(), "task_type", tk.Type())
	tk.SetCallback(func(ok bool, message string) {
		if ok {
			logger.Info("task resolved", "ok", ok, "message", message)
		} else {
			logger.Warn("task resolved", "ok", ok, "message", message)
		}
	})

	// Rejected submissions resolve the task too, so the future is safe to
	// expose before Submit's outcome is known.
	event.SetFuture(taskFuture{tk})

	if _, err := h.scheduler.Submit(tk); err != nil {
		return fmt.Errorf("submitting task %s: %w", tk.ID(), err)
	}
	return nil
}

// taskFuture adapts a task's future to the events package's view of it.
type taskFuture struct {
	t *task.Task
}

func (f taskFuture) Wait(ctx context.Context) (events.Outcome, error) {
	res, err := f.t.Wait(ctx)
	if err != nil {
		return events.Outcome{}, err
	}
	return events.Outcome{OK: res.OK, Message: res.Message}, nil
}

// application holds the shared dependencies so construction and teardown
// happen in one place. The scheduler is owned here and passed to consumers
// explicitly; nothing in the process reaches for a package-level instance.
type application struct {
	config    *config.Config
	logger    *slog.Logger
	scheduler *task.Scheduler
	server    *http.Server
}

// newApplication wires config, scheduler, backends, events, and the HTTP
// gateway together.
func newApplication(cfg *config.Config, logger *slog.Logger) (*application, error) {
	scheduler := task.NewScheduler(logger)
	err := scheduler.InitializeConfig(task.Config{
		GPUWorkers:      cfg.Scheduler.GPUWorkers,
		CPUWorkers:      cfg.Scheduler.CPUWorkers,
		ImageGPUWorkers: cfg.Scheduler.ImageGPUWorkers,
		QueueCapacity:   cfg.Scheduler.QueueCapacity,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing scheduler: %w", err)
	}

	factory := task.NewFactory(logger)
	backend.RegisterAll(factory, cfg.Scheduler.SimulatedLatency, logger)

	emitter := events.NewInMemoryEmitter(logger)
	emitter.RegisterHandler(&schedulerEventHandler{
		factory:   factory,
		scheduler: scheduler,
		logger:    logger.With("component", "scheduler_event_handler"),
	})

	handler := api.NewTaskHandler(emitter, scheduler, logger)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.NewRouter(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &application{
		config:    cfg,
		logger:    logger,
		scheduler: scheduler,
		server:    server,
	}, nil
}

// run starts the scheduler and the HTTP listener, then blocks until ctx is
// cancelled. Shutdown order matters: the listener closes first so no new
// submissions arrive, then the scheduler drains, finishing running tasks and
// cancelling queued ones.
func (app *application) run(ctx context.Context) error {
	if err := app.scheduler.Start(); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}

	serverErr := make(chan error, 1)
	go func() {
		app.logger.Info("gateway listening", "addr", app.server.Addr)
		if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		app.scheduler.Stop()
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	app.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.config.Server.ShutdownTimeout)
	defer cancel()
	if err := app.server.Shutdown(shutdownCtx); err != nil {
		app.logger.Error("http shutdown failed", "error", err)
	}

	app.scheduler.Stop()
	app.logger.Info("shutdown complete")
	return nil
}
