package config

import (
	"fmt"
	"time"
)

// Validate checks bounds that would otherwise surface as runtime faults.
func Validate(cfg Config) error {
	if cfg.Gateway.Port < 0 || cfg.Gateway.Port > 65535 {
		return &ConfigError{Message: fmt.Sprintf("gateway.port out of range: %d", cfg.Gateway.Port)}
	}
	if cfg.Scheduler.PollInterval < time.Second {
		return &ConfigError{Message: "scheduler.pollInterval must be at least 1s"}
	}
	if cfg.Scheduler.MaxDeliveryAttempts < 1 {
		return &ConfigError{Message: "scheduler.maxDeliveryAttempts must be at least 1"}
	}
	if cfg.Worker.MaxToolCallsPerStep < 1 {
		return &ConfigError{Message: "worker.maxToolCallsPerStep must be at least 1"}
	}
	if cfg.Worker.MaxStepRetries < 1 {
		return &ConfigError{Message: "worker.maxStepRetries must be at least 1"}
	}
	if cfg.Conductor.DedupWindow < 1 {
		return &ConfigError{Message: "conductor.dedupWindow must be at least 1"}
	}
	if cfg.Conductor.MaxToolIterations < 1 {
		return &ConfigError{Message: "conductor.maxToolIterations must be at least 1"}
	}
	if cfg.Conductor.SummarizeAfter < 1 {
		return &ConfigError{Message: "conductor.summarizeAfter must be at least 1"}
	}
	if cfg.Email.CheckInterval < time.Second {
		return &ConfigError{Message: "email.checkInterval must be at least 1s"}
	}
	return nil
}
