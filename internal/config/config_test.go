package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadAppliesDefaultsForOmittedFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 9090\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Fatalf("expected explicit port 9090 to be preserved, got %d", cfg.Server.Port)
	}
	if cfg.Pipeline.DetectionBatchSize != 6 {
		t.Fatalf("expected default detection batch size 6, got %d", cfg.Pipeline.DetectionBatchSize)
	}
	if cfg.Pipeline.MatchingBatchTimeout != 800*time.Millisecond {
		t.Fatalf("expected default matching batch timeout 800ms, got %v", cfg.Pipeline.MatchingBatchTimeout)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected default logging format json, got %q", cfg.Logging.Format)
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 9090\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("TRACEPIPE_API_KEY", "secret-key")
	t.Setenv("TRACEPIPE_DETECTOR_URL", "http://detector.local:9001")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.APIKey != "secret-key" {
		t.Fatalf("expected env override for api key, got %q", cfg.Server.APIKey)
	}
	if cfg.Detector.BaseURL != "http://detector.local:9001" {
		t.Fatalf("expected env override for detector url, got %q", cfg.Detector.BaseURL)
	}
}

func TestLoadReturnsErrorForMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/path/config.yaml"); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}
