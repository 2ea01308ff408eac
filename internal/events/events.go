package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SubmissionEvent is a request to schedule a unit of inference work. The
// event ID doubles as the task ID so callers can correlate the eventual
// result with their submission.
type SubmissionEvent struct {
	// ID is a unique identifier for this submission
	ID uuid.UUID `json:"id"`

	// Type names the task type the handler should create
	Type string `json:"type"`

	// Priority is the ordering hint within the target queue
	Priority int `json:"priority"`

	// Payload carries the request data, serialized as JSON
	Payload json.RawMessage `json:"payload"`

	// CreatedAt is when the event was emitted
	CreatedAt time.Time `json:"created_at"`

	// future is set by the handler that admits the event's task, giving
	// the emitting side optional access to the outcome. Runtime only,
	// never serialized.
	future Future
}

// Outcome is the resolved result of an admitted submission.
type Outcome struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// Future provides access to a submission's eventual outcome without
// exposing the task that carries it.
type Future interface {
	// Wait blocks until the work resolves or ctx is cancelled.
	Wait(ctx context.Context) (Outcome, error)
}

// SetFuture records the admitted task's future on the event. Called by the
// handler that created and submitted the task.
func (e *SubmissionEvent) SetFuture(f Future) {
	e.future = f
}

// Future returns the admitted task's future, or nil if no handler admitted
// the event.
func (e *SubmissionEvent) Future() Future {
	return e.future
}

// NewSubmissionEvent creates an event for the given task type, serializing
// the payload to JSON.
func NewSubmissionEvent(taskType string, priority int, payload interface{}) (*SubmissionEvent, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &SubmissionEvent{
		ID:        uuid.New(),
		Type:      taskType,
		Priority:  priority,
		Payload:   payloadBytes,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// UnmarshalPayload decodes the event payload into the provided structure.
func (e *SubmissionEvent) UnmarshalPayload(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// Handler processes submission events.
type Handler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *SubmissionEvent) error
}

// Emitter publishes submission events to registered handlers, letting the
// presentation layer request work without knowing who fulfills it.
type Emitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	EmitEvent(ctx context.Context, event *SubmissionEvent) error
}
