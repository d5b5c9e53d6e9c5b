package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateQueue(); err != nil {
		return err
	}
	if err := ensurePositiveMap(map[string]int{
		"pipeline.max_cpus":             c.Pipeline.MaxCPUs,
		"pipeline.fragger_memory":       c.Pipeline.FraggerMemory,
		"queue.poll_interval":           c.Queue.PollInterval,
		"queue.reconcile_interval":      c.Queue.ReconcileInterval,
		"runner.confirm_attempts":       c.Runner.ConfirmAttempts,
		"notifications.request_timeout": c.Notifications.RequestTimeout,
	}); err != nil {
		return err
	}
	if c.Runner.ConfirmDelayMS < 0 {
		return errors.New("runner.confirm_delay_ms must be >= 0")
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.InteractHome) == "" {
		return errors.New("paths.interact_home must be set")
	}
	return nil
}

func (c *Config) validatePipeline() error {
	switch c.Pipeline.ScriptMode {
	case ScriptModeShell, ScriptModeNative:
	default:
		return fmt.Errorf("pipeline.script_mode must be %q or %q, got %q", ScriptModeShell, ScriptModeNative, c.Pipeline.ScriptMode)
	}
	return nil
}

func (c *Config) validateQueue() error {
	switch c.Queue.Backend {
	case QueueBackendCSV, QueueBackendSQLite:
	default:
		return fmt.Errorf("queue.backend must be %q or %q, got %q", QueueBackendCSV, QueueBackendSQLite, c.Queue.Backend)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
