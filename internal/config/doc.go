// Package config defines the application configuration structure and its
// loading/validation logic. Values come from an optional YAML file and from
// environment variables with the SCHED_ prefix; environment variables win.
package config
