// Package events decouples task submission from task construction. The
// presentation layer emits a SubmissionEvent naming a task type and carrying
// an opaque payload; registered handlers turn events into scheduler tasks.
// Neither side imports the other.
package events
