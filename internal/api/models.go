package api

import "encoding/json"

// SubmitTaskRequest is the body of POST /tasks.
type SubmitTaskRequest struct {
	// Type is the routing key deciding which lane runs the work.
	Type string `json:"type" validate:"required,oneof=llm_gpu tts_cpu image_gpu"`

	// Priority orders the task within its lane: -1 low, 0 normal, 1 high.
	Priority int `json:"priority" validate:"gte=-1,lte=1"`

	// Payload is forwarded opaquely to the executor for Type.
	Payload json.RawMessage `json:"payload" validate:"required"`
}

// SubmitTaskResponse acknowledges an accepted submission.
type SubmitTaskResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

// TaskResultResponse is the body returned when the caller asked to block
// on the result with ?wait=true.
type TaskResultResponse struct {
	TaskID  string `json:"task_id"`
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// HealthResponse reports gateway liveness and scheduler state.
type HealthResponse struct {
	Status         string `json:"status"`
	SchedulerState string `json:"scheduler_state"`
}

// ErrorResponse defines the standard error response structure.
type ErrorResponse struct {
	Error string `json:"error"`
}
