// Package task implements the in-process scheduler that arbitrates access to
// scarce inference resources. A Scheduler routes each submitted Task, by its
// declared type, to the TaskQueue owning that resource class: an exclusive
// lane for primary GPU generation, a worker pool for CPU-bound synthesis, and
// a secondary best-effort GPU lane. Results are delivered asynchronously via
// a single-shot completion callback and a per-task future.
package task
