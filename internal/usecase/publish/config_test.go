package publish

import (
	"bytes"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.BatchSize != 20 {
		t.Errorf("expected BatchSize 20, got %d", cfg.BatchSize)
	}
	if cfg.PublishInterval != 60*time.Second {
		t.Errorf("expected PublishInterval 60s, got %v", cfg.PublishInterval)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("expected MaxRetries 3, got %d", cfg.MaxRetries)
	}
	if cfg.CleanAge != 7*24*time.Hour {
		t.Errorf("expected CleanAge 7d, got %v", cfg.CleanAge)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig should validate, got %v", err)
	}
}

func TestConfig_ValidateRejectsBadValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BatchSize = 0
	cfg.MaxRetries = -1
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for zero batch size and negative max retries")
	}
}

func TestLoadConfigFromEnv_DefaultsWhenUnset(t *testing.T) {
	for _, key := range []string{
		"PUBLISH_BATCH_SIZE", "PUBLISH_INTERVAL", "PUBLISH_MAX_RETRIES",
		"PUBLISH_CLEAN_AGE", "PUBLISH_STUCK_THRESHOLD", "PUBLISH_MAINTENANCE_EVERY",
		"PUBLISH_BATCH_CONCURRENCY",
	} {
		os.Unsetenv(key)
	}

	cfg := LoadConfigFromEnv(slog.Default(), globalTestMetrics)
	want := DefaultConfig()
	if cfg != want {
		t.Errorf("expected default config when env unset, got %+v want %+v", cfg, want)
	}
}

func TestLoadConfigFromEnv_InvalidValueFallsBackAndWarns(t *testing.T) {
	os.Setenv("PUBLISH_BATCH_SIZE", "not-a-number")
	defer os.Unsetenv("PUBLISH_BATCH_SIZE")

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	cfg := LoadConfigFromEnv(logger, globalTestMetrics)
	if cfg.BatchSize != DefaultConfig().BatchSize {
		t.Errorf("expected fallback to default batch size, got %d", cfg.BatchSize)
	}
	if !strings.Contains(buf.String(), "batch_size") {
		t.Errorf("expected warning log to mention batch_size, got %q", buf.String())
	}
}

func TestLoadConfigFromEnv_ValidOverrides(t *testing.T) {
	os.Setenv("PUBLISH_BATCH_SIZE", "50")
	os.Setenv("PUBLISH_MAX_RETRIES", "5")
	defer os.Unsetenv("PUBLISH_BATCH_SIZE")
	defer os.Unsetenv("PUBLISH_MAX_RETRIES")

	cfg := LoadConfigFromEnv(slog.Default(), globalTestMetrics)
	if cfg.BatchSize != 50 {
		t.Errorf("expected BatchSize 50, got %d", cfg.BatchSize)
	}
	if cfg.MaxRetries != 5 {
		t.Errorf("expected MaxRetries 5, got %d", cfg.MaxRetries)
	}
}
