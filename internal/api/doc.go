// Package api implements the HTTP gateway in front of the scheduler. It
// translates submission requests into events, exposes queue occupancy, and
// knows nothing about how tasks execute.
package api
