package publish

import (
	"fmt"
	"log/slog"
	"time"

	"newsqueue/internal/pkg/config"
)

// Config holds the tunables for the Publisher Worker loop, per spec section
// 6's configuration surface.
//
// Example usage:
//
//	cfg := DefaultConfig()
//	cfg = LoadConfigFromEnv(logger, metrics)
type Config struct {
	// BatchSize caps the number of items claimed per iteration.
	BatchSize int

	// PublishInterval is the idle sleep applied when a claimed batch is empty.
	PublishInterval time.Duration

	// MaxRetries gates retry(max_retries): FAILED items with retry_count at
	// or above this are never reopened.
	MaxRetries int

	// CleanAge is the clean(age_threshold) cutoff for COMPLETED rows.
	CleanAge time.Duration

	// StuckThreshold is the sweep-back cutoff for PROCESSING rows whose
	// claimed_at predates it.
	StuckThreshold time.Duration

	// MaintenanceEvery runs retry/clean/sweep once every this many
	// iterations, per the "every K iterations" option in spec section 4.5.
	MaintenanceEvery int

	// BatchConcurrency bounds how many items within one claimed batch are
	// dispatched to the chat target concurrently.
	BatchConcurrency int
}

// DefaultConfig returns the spec section 6 defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:        20,
		PublishInterval:  60 * time.Second,
		MaxRetries:       3,
		CleanAge:         7 * 24 * time.Hour,
		StuckThreshold:   10 * 60 * time.Second, // 10 x default publish_interval
		MaintenanceEvery: 10,
		BatchConcurrency: 5,
	}
}

// Validate checks the configuration against the ranges LoadConfigFromEnv
// enforces, so callers constructing a Config by hand get the same guarantees.
func (c *Config) Validate() error {
	var errs []error

	if err := config.ValidateIntRange(c.BatchSize, 1, 1000); err != nil {
		errs = append(errs, fmt.Errorf("batch size: %w", err))
	}
	if err := config.ValidatePositiveDuration(c.PublishInterval); err != nil {
		errs = append(errs, fmt.Errorf("publish interval: %w", err))
	}
	if err := config.ValidateIntRange(c.MaxRetries, 0, 100); err != nil {
		errs = append(errs, fmt.Errorf("max retries: %w", err))
	}
	if err := config.ValidatePositiveDuration(c.CleanAge); err != nil {
		errs = append(errs, fmt.Errorf("clean age: %w", err))
	}
	if err := config.ValidatePositiveDuration(c.StuckThreshold); err != nil {
		errs = append(errs, fmt.Errorf("stuck threshold: %w", err))
	}
	if err := config.ValidateIntRange(c.MaintenanceEvery, 1, 10000); err != nil {
		errs = append(errs, fmt.Errorf("maintenance every: %w", err))
	}
	if err := config.ValidateIntRange(c.BatchConcurrency, 1, 100); err != nil {
		errs = append(errs, fmt.Errorf("batch concurrency: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed: %v", errs)
	}
	return nil
}

// LoadConfigFromEnv loads the worker configuration from environment
// variables, falling back to defaults (with a logged warning and a metrics
// bump) on any invalid value. It never returns an error.
//
// Environment variables:
//   - PUBLISH_BATCH_SIZE: integer 1-1000 (default 20)
//   - PUBLISH_INTERVAL: duration string (default 60s)
//   - PUBLISH_MAX_RETRIES: integer 0-100 (default 3)
//   - PUBLISH_CLEAN_AGE: duration string (default 168h)
//   - PUBLISH_STUCK_THRESHOLD: duration string (default 10m)
//   - PUBLISH_MAINTENANCE_EVERY: integer 1-10000 (default 10)
//   - PUBLISH_BATCH_CONCURRENCY: integer 1-100 (default 5)
func LoadConfigFromEnv(logger *slog.Logger, metrics *Metrics) Config {
	cfg := DefaultConfig()
	fallbackApplied := false

	apply := func(field string, result config.ConfigLoadResult) {
		if !result.FallbackApplied {
			return
		}
		fallbackApplied = true
		metrics.RecordValidationError(field)
		metrics.RecordFallback(field, "default")
		for _, warning := range result.Warnings {
			logger.Warn("publish config fallback applied", slog.String("field", field), slog.String("warning", warning))
		}
	}

	result := config.LoadEnvInt("PUBLISH_BATCH_SIZE", cfg.BatchSize, func(v int) error {
		return config.ValidateIntRange(v, 1, 1000)
	})
	cfg.BatchSize = result.Value.(int)
	apply("batch_size", result)

	result = config.LoadEnvDuration("PUBLISH_INTERVAL", cfg.PublishInterval, config.ValidatePositiveDuration)
	cfg.PublishInterval = result.Value.(time.Duration)
	apply("publish_interval", result)

	result = config.LoadEnvInt("PUBLISH_MAX_RETRIES", cfg.MaxRetries, func(v int) error {
		return config.ValidateIntRange(v, 0, 100)
	})
	cfg.MaxRetries = result.Value.(int)
	apply("max_retries", result)

	result = config.LoadEnvDuration("PUBLISH_CLEAN_AGE", cfg.CleanAge, config.ValidatePositiveDuration)
	cfg.CleanAge = result.Value.(time.Duration)
	apply("clean_age", result)

	result = config.LoadEnvDuration("PUBLISH_STUCK_THRESHOLD", cfg.StuckThreshold, config.ValidatePositiveDuration)
	cfg.StuckThreshold = result.Value.(time.Duration)
	apply("stuck_threshold", result)

	result = config.LoadEnvInt("PUBLISH_MAINTENANCE_EVERY", cfg.MaintenanceEvery, func(v int) error {
		return config.ValidateIntRange(v, 1, 10000)
	})
	cfg.MaintenanceEvery = result.Value.(int)
	apply("maintenance_every", result)

	result = config.LoadEnvInt("PUBLISH_BATCH_CONCURRENCY", cfg.BatchConcurrency, func(v int) error {
		return config.ValidateIntRange(v, 1, 100)
	})
	cfg.BatchConcurrency = result.Value.(int)
	apply("batch_concurrency", result)

	metrics.SetFallbackActive("", fallbackApplied)
	metrics.RecordLoadTimestamp()
	return cfg
}
