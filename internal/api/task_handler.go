package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/lunaris-ai/scheduler/internal/events"
	"github.com/lunaris-ai/scheduler/internal/task"
)

// TaskHandler serves the task submission and introspection endpoints. It
// emits submission events rather than constructing tasks itself, so the
// wiring between HTTP requests and executors stays outside this package.
type TaskHandler struct {
	emitter   events.Emitter
	scheduler *task.Scheduler
	validate  *validator.Validate
	logger    *slog.Logger
}

// NewTaskHandler creates a handler backed by the given emitter and scheduler.
func NewTaskHandler(emitter events.Emitter, scheduler *task.Scheduler, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{
		emitter:   emitter,
		scheduler: scheduler,
		validate:  validator.New(),
		logger:    logger.With("component", "task_handler"),
	}
}

// SubmitTask handles POST /tasks. A valid request is acknowledged with 202
// and the task ID; execution results are delivered through the task's own
// callback machinery, not this response. With ?wait=true the handler
// instead blocks on the task's future and returns the outcome, bounded by
// the request context.
func (h *TaskHandler) SubmitTask(w http.ResponseWriter, r *http.Request) {
	var req SubmitTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		h.logger.Debug("rejecting invalid submission", "error", err)
		RespondWithError(w, http.StatusBadRequest, "invalid submission: "+err.Error())
		return
	}

	event, err := events.NewSubmissionEvent(req.Type, req.Priority, req.Payload)
	if err != nil {
		RespondWithError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	if err := h.emitter.EmitEvent(r.Context(), event); err != nil {
		h.logger.Error("failed to submit task",
			"error", err,
			"event_id", event.ID,
			"task_type", event.Type)
		RespondWithError(w, submissionErrorStatus(err), "submission rejected: "+err.Error())
		return
	}

	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); wait {
		if future := event.Future(); future != nil {
			h.respondWithOutcome(w, r, event, future)
			return
		}
		h.logger.Warn("wait requested but no handler exposed a future",
			"event_id", event.ID)
	}

	RespondWithJSON(w, http.StatusAccepted, SubmitTaskResponse{
		TaskID: event.ID.String(),
		Status: string(task.StatusQueued),
	})
}

// respondWithOutcome blocks on the admitted task's future. The wait is
// bounded by the request context, so a client that gives up unblocks the
// handler; the task itself keeps running.
func (h *TaskHandler) respondWithOutcome(
	w http.ResponseWriter,
	r *http.Request,
	event *events.SubmissionEvent,
	future events.Future,
) {
	outcome, err := future.Wait(r.Context())
	if err != nil {
		RespondWithError(w, http.StatusGatewayTimeout, "timed out waiting for result")
		return
	}

	RespondWithJSON(w, http.StatusOK, TaskResultResponse{
		TaskID:  event.ID.String(),
		OK:      outcome.OK,
		Message: outcome.Message,
	})
}

// submissionErrorStatus maps admission failures to HTTP status codes.
func submissionErrorStatus(err error) int {
	switch {
	case errors.Is(err, task.ErrUnknownTaskType):
		return http.StatusBadRequest
	case errors.Is(err, task.ErrQueueFull):
		return http.StatusTooManyRequests
	case errors.Is(err, task.ErrQueueClosed), errors.Is(err, task.ErrNotRunning):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Stats handles GET /stats, returning per-queue occupancy.
func (h *TaskHandler) Stats(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, http.StatusOK, h.scheduler.Stats())
}

// Health handles GET /healthz.
func (h *TaskHandler) Health(w http.ResponseWriter, r *http.Request) {
	state := h.scheduler.State()
	status := "ok"
	code := http.StatusOK
	if state != task.StateRunning {
		status = "unavailable"
		code = http.StatusServiceUnavailable
	}
	RespondWithJSON(w, code, HealthResponse{
		Status:         status,
		SchedulerState: string(state),
	})
}
