package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"    validate:"required"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" validate:"required"`
}

// ServerConfig contains all HTTP gateway related settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port"             validate:"required,gt=0,lt=65536"`
	LogLevel        string        `mapstructure:"log_level"        validate:"required,oneof=debug info warn error"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gte=0"`
}

// SchedulerConfig sizes the scheduler's execution lanes.
type SchedulerConfig struct {
	// GPUWorkers is the concurrency of the primary GPU lane. Anything
	// above 1 defeats the exclusive-access guarantee, so deployments
	// leave it at 1.
	GPUWorkers int `mapstructure:"gpu_workers" validate:"required,gte=1"`

	// CPUWorkers sizes the CPU synthesis pool.
	CPUWorkers int `mapstructure:"cpu_workers" validate:"required,gte=1"`

	// ImageGPUWorkers is the concurrency of the secondary GPU lane.
	ImageGPUWorkers int `mapstructure:"image_gpu_workers" validate:"required,gte=1"`

	// QueueCapacity bounds each lane's pending list.
	QueueCapacity int `mapstructure:"queue_capacity" validate:"required,gte=1"`

	// SimulatedLatency is the synthetic inference duration used by the
	// stand-in backends.
	SimulatedLatency time.Duration `mapstructure:"simulated_latency" validate:"gte=0"`
}
