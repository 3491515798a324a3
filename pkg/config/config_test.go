package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Timeouts.AbandonAfter != 48*time.Hour {
		t.Errorf("Expected 48h abandon timeout, got %s", cfg.Timeouts.AbandonAfter)
	}
	if cfg.Timeouts.RetainCompleted != 24*time.Hour {
		t.Errorf("Expected 24h retention, got %s", cfg.Timeouts.RetainCompleted)
	}
	if cfg.MaxRevisions != 5 {
		t.Errorf("Expected 5 max revisions, got %d", cfg.MaxRevisions)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should validate: %v", err)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load with missing file failed: %v", err)
	}
	if cfg.MaxRevisions != DefaultMaxRevisions {
		t.Errorf("Expected defaults, got %+v", cfg)
	}
}

func TestLoad_OverridesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "designflow.yaml")
	content := `
max_revisions: 3
timeouts:
  abandon_after: 1h
  retain_completed: 30m
models:
  text_provider: openai
  text_model: gpt-4o
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.MaxRevisions != 3 {
		t.Errorf("Expected max_revisions 3, got %d", cfg.MaxRevisions)
	}
	if cfg.Timeouts.AbandonAfter != time.Hour {
		t.Errorf("Expected 1h abandon, got %s", cfg.Timeouts.AbandonAfter)
	}
	if cfg.Models.TextProvider != "openai" || cfg.Models.TextModel != "gpt-4o" {
		t.Errorf("Unexpected models: %+v", cfg.Models)
	}
	// Untouched fields keep defaults.
	if cfg.Retry.MaxAttempts != DefaultMaxAttempts {
		t.Errorf("Expected default retry attempts, got %d", cfg.Retry.MaxAttempts)
	}
}

func TestLoad_InvalidConfigRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("max_revisions: -1\n"), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Expected validation error for negative max_revisions")
	}

	path2 := filepath.Join(t.TempDir(), "bad2.yaml")
	if err := os.WriteFile(path2, []byte("models:\n  text_provider: cohere\n"), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	if _, err := Load(path2); err == nil {
		t.Error("Expected validation error for unknown text provider")
	}
}

func TestSecretsFromEnvironment(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "gem-123")
	t.Setenv("ANTHROPIC_API_KEY", "ant-456")

	cfg := Default()
	if cfg.GeminiAPIKey != "gem-123" || cfg.AnthropicAPIKey != "ant-456" {
		t.Errorf("Expected secrets from env, got %+v", cfg)
	}
}

func TestGlobalConfig(t *testing.T) {
	cfg := Default()
	cfg.MaxRevisions = 7
	SetGlobal(cfg)
	defer SetGlobal(nil)

	if Get().MaxRevisions != 7 {
		t.Errorf("Expected global config, got %d", Get().MaxRevisions)
	}
}
