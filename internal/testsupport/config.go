// Package testsupport provides helpers shared by package tests.
package testsupport

import (
	"path/filepath"
	"testing"

	"evalboard/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithEvaluationService points the config at a test evaluation service.
func WithEvaluationService(baseURL string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Evaluation.BaseURL = baseURL
		cfg.Evaluation.APIKey = "test"
	}
}

// WithRunPollInterval overrides the run poll interval in seconds.
func WithRunPollInterval(seconds int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Workflow.RunPollInterval = seconds
	}
}
