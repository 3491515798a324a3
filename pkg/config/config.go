// Package config loads engine configuration from a YAML file with
// environment overrides for secrets.
package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Default timing values. All are overridable via the config file.
const (
	DefaultAbandonTimeout  = 48 * time.Hour
	DefaultRetention       = 24 * time.Hour
	DefaultAnalysisCollect = 30 * time.Second
	DefaultMaxRevisions    = 5
	DefaultMaxAttempts     = 3
	DefaultInitialBackoff  = 500 * time.Millisecond
	DefaultMaxBackoff      = 10 * time.Second
)

// Timeouts groups the durable timer durations and bounded waits.
type Timeouts struct {
	AbandonAfter    time.Duration `yaml:"abandon_after"`
	RetainCompleted time.Duration `yaml:"retain_completed"`
	AnalysisCollect time.Duration `yaml:"analysis_collect"`
}

// Retry configures activity retry behavior.
type Retry struct {
	MaxAttempts    int           `yaml:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
}

// Models selects the AI backends for the activity gateway.
type Models struct {
	ImageModel   string `yaml:"image_model"`   // Gemini model for analysis/generation/editing
	TextModel    string `yaml:"text_model"`    // Claude or GPT model for shopping-list reasoning
	TextProvider string `yaml:"text_provider"` // "anthropic" or "openai"
}

// Config is the engine configuration.
type Config struct {
	DataDir       string   `yaml:"data_dir"`
	DatabasePath  string   `yaml:"database_path"`
	MetricsAddr   string   `yaml:"metrics_addr"`
	PrometheusURL string   `yaml:"prometheus_url"`
	MaxRevisions  int      `yaml:"max_revisions"`
	Timeouts      Timeouts `yaml:"timeouts"`
	Retry         Retry    `yaml:"retry"`
	Models        Models   `yaml:"models"`

	// Secrets are environment-only, never read from the file.
	GeminiAPIKey    string `yaml:"-"`
	AnthropicAPIKey string `yaml:"-"`
	OpenAIAPIKey    string `yaml:"-"`
}

var (
	global   *Config
	globalMu sync.RWMutex
)

// Default returns a config populated with defaults and env secrets.
func Default() *Config {
	cfg := &Config{
		DataDir:       "data",
		DatabasePath:  "data/designflow.db",
		MetricsAddr:   ":9090",
		PrometheusURL: "http://localhost:9091",
		MaxRevisions:  DefaultMaxRevisions,
		Timeouts: Timeouts{
			AbandonAfter:    DefaultAbandonTimeout,
			RetainCompleted: DefaultRetention,
			AnalysisCollect: DefaultAnalysisCollect,
		},
		Retry: Retry{
			MaxAttempts:    DefaultMaxAttempts,
			InitialBackoff: DefaultInitialBackoff,
			MaxBackoff:     DefaultMaxBackoff,
		},
		Models: Models{
			ImageModel:   "gemini-2.5-flash-image",
			TextModel:    "claude-sonnet-4-20250514",
			TextProvider: "anthropic",
		},
	}
	cfg.loadSecrets()
	return cfg
}

// Load reads the YAML file at path on top of defaults and validates the
// result. A missing file is not an error; defaults apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, cfg.Validate()
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	cfg.loadSecrets()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadSecrets() {
	c.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	c.AnthropicAPIKey = os.Getenv("ANTHROPIC_API_KEY")
	c.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
}

// Validate checks invariants the engine relies on.
func (c *Config) Validate() error {
	if c.MaxRevisions <= 0 {
		return fmt.Errorf("max_revisions must be positive, got %d", c.MaxRevisions)
	}
	if c.Timeouts.AbandonAfter <= 0 {
		return fmt.Errorf("abandon_after must be positive")
	}
	if c.Timeouts.RetainCompleted <= 0 {
		return fmt.Errorf("retain_completed must be positive")
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry max_attempts must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	switch c.Models.TextProvider {
	case "anthropic", "openai":
	default:
		return fmt.Errorf("unknown text_provider %q", c.Models.TextProvider)
	}
	return nil
}

// SetGlobal installs the config for package-level access.
func SetGlobal(cfg *Config) {
	globalMu.Lock()
	defer globalMu.Unlock()
	global = cfg
}

// Get returns the global config, or defaults if none was installed.
func Get() *Config {
	globalMu.RLock()
	defer globalMu.RUnlock()
	if global == nil {
		return Default()
	}
	return global
}
