package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Server.Port != "8080" {
		t.Errorf("expected port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Queue.MaxAttempts != 3 {
		t.Errorf("expected 3 queue attempts, got %d", cfg.Queue.MaxAttempts)
	}
	if cfg.Queue.BackoffBase != 2*time.Second {
		t.Errorf("expected 2s backoff base, got %v", cfg.Queue.BackoffBase)
	}
	if cfg.Executor.CommandTimeout != 30*time.Second {
		t.Errorf("expected 30s command timeout, got %v", cfg.Executor.CommandTimeout)
	}
	if cfg.Executor.MaxOutputBytes != 1<<20 {
		t.Errorf("expected 1MB output cap, got %d", cfg.Executor.MaxOutputBytes)
	}
	if cfg.Rate.DefaultPerWindow != 10 {
		t.Errorf("expected default 10 requests per window, got %d", cfg.Rate.DefaultPerWindow)
	}
}

func TestLoadYAMLOverride(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "test.yaml")

	content := `
server:
  port: "9090"
queue:
  workers: 8
logging:
  level: "debug"
`
	if err := os.WriteFile(yamlPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := Defaults()
	if err := loadYAML(&cfg, yamlPath); err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Queue.Workers != 8 {
		t.Errorf("expected 8 workers, got %d", cfg.Queue.Workers)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level debug, got %s", cfg.Logging.Level)
	}
	// Unchanged fields keep defaults
	if cfg.NATS.URL != "nats://localhost:4222" {
		t.Errorf("expected default NATS URL, got %s", cfg.NATS.URL)
	}
}

func TestLoadMissingYAMLIsNotAnError(t *testing.T) {
	cfg := Defaults()
	if err := loadYAML(&cfg, filepath.Join(t.TempDir(), "absent.yaml")); err != nil {
		t.Fatalf("missing yaml should be ignored: %v", err)
	}
}

func TestEnvOverridesYAML(t *testing.T) {
	t.Setenv("AGENTGATE_PORT", "7070")
	t.Setenv("AGENTGATE_QUEUE_MAX_ATTEMPTS", "5")
	t.Setenv("AGENTGATE_RATE_WINDOW", "30s")

	cfg := Defaults()
	loadEnv(&cfg)

	if cfg.Server.Port != "7070" {
		t.Errorf("expected env port 7070, got %s", cfg.Server.Port)
	}
	if cfg.Queue.MaxAttempts != 5 {
		t.Errorf("expected 5 attempts, got %d", cfg.Queue.MaxAttempts)
	}
	if cfg.Rate.Window != 30*time.Second {
		t.Errorf("expected 30s window, got %v", cfg.Rate.Window)
	}
}

func TestValidateRejectsBadConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Queue.Workers = 0
	if err := validate(&cfg); err == nil {
		t.Error("expected error for zero queue workers")
	}

	cfg = Defaults()
	cfg.Postgres.DSN = ""
	if err := validate(&cfg); err == nil {
		t.Error("expected error for empty DSN")
	}
}
