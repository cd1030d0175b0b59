package app

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kiroku-app/kiroku/common/environment"
	"github.com/kiroku-app/kiroku/internal/kiroku/nlp"
	"github.com/kiroku-app/kiroku/internal/kiroku/observability"
)

// NLPConfig configures the language-model provider.
type NLPConfig struct {
	// Enabled gates the assistant endpoint. When false the service runs
	// without a model: browsing, settings, and audit still work.
	Enabled bool
	// APIKey authenticates against the OpenAI-compatible API. Environment
	// only; it is never read from the config file.
	APIKey string
	// BaseURL and Model select the upstream endpoint.
	BaseURL string
	Model   string
	// Timeout bounds one completion call.
	Timeout time.Duration
	// RateLimit is the local per-minute assistant call budget.
	RateLimit int
}

// Config is the full runtime configuration.
type Config struct {
	ListenAddr   string
	DatabasePath string
	Log          observability.Options
	NLP          NLPConfig
	ProposalTTL  time.Duration
}

// fileConfig is the YAML config-file shape. Durations are strings in
// time.ParseDuration syntax ("30s", "5m").
type fileConfig struct {
	Listen   string `yaml:"listen"`
	Database string `yaml:"database"`
	Log      struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		File   string `yaml:"file"`
	} `yaml:"log"`
	NLP struct {
		BaseURL   string `yaml:"base_url"`
		Model     string `yaml:"model"`
		Timeout   string `yaml:"timeout"`
		RateLimit int    `yaml:"rate_limit"`
	} `yaml:"nlp"`
	ProposalTTL string `yaml:"proposal_ttl"`
}

// LoadConfig builds the runtime configuration with precedence
// defaults < config file < environment. The file path comes from
// KIROKU_CONFIG; when unset no file is read.
//
// The API key is deliberately environment-only (KIROKU_OPENAI_API_KEY) so a
// shared or committed config file can never leak it.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		ListenAddr:   "127.0.0.1:8787",
		DatabasePath: "./kiroku.db",
		Log: observability.Options{
			Level:  "info",
			Format: "text",
		},
		NLP: NLPConfig{
			// BaseURL, Model, and Timeout stay empty here; the provider
			// applies its own defaults for unset values.
			Enabled:   true,
			RateLimit: nlp.DefaultRateLimit,
		},
		ProposalTTL: 5 * time.Minute,
	}

	if path := os.Getenv("KIROKU_CONFIG"); path != "" {
		if err := applyFile(cfg, path); err != nil {
			return nil, err
		}
	}
	applyEnvironment(cfg)

	if cfg.NLP.Enabled && cfg.NLP.APIKey == "" {
		return nil, fmt.Errorf("KIROKU_OPENAI_API_KEY is required (or set KIROKU_NLP_DISABLED=true)")
	}
	return cfg, nil
}

// applyFile overlays values from the YAML file at path onto cfg.
func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setString(&cfg.ListenAddr, fc.Listen)
	setString(&cfg.DatabasePath, fc.Database)
	setString(&cfg.Log.Level, fc.Log.Level)
	setString(&cfg.Log.Format, fc.Log.Format)
	setString(&cfg.Log.File, fc.Log.File)
	setString(&cfg.NLP.BaseURL, fc.NLP.BaseURL)
	setString(&cfg.NLP.Model, fc.NLP.Model)
	if fc.NLP.RateLimit > 0 {
		cfg.NLP.RateLimit = fc.NLP.RateLimit
	}
	if err := setDuration(&cfg.NLP.Timeout, fc.NLP.Timeout); err != nil {
		return fmt.Errorf("config file %s: nlp.timeout: %w", path, err)
	}
	if err := setDuration(&cfg.ProposalTTL, fc.ProposalTTL); err != nil {
		return fmt.Errorf("config file %s: proposal_ttl: %w", path, err)
	}
	return nil
}

// applyEnvironment overlays KIROKU_* environment variables onto cfg.
func applyEnvironment(cfg *Config) {
	cfg.ListenAddr = environment.StringOr("KIROKU_LISTEN_ADDR", cfg.ListenAddr)
	cfg.DatabasePath = environment.StringOr("KIROKU_DB_PATH", cfg.DatabasePath)
	cfg.Log.Level = environment.StringOr("KIROKU_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = environment.StringOr("KIROKU_LOG_FORMAT", cfg.Log.Format)
	cfg.Log.File = environment.StringOr("KIROKU_LOG_FILE", cfg.Log.File)

	cfg.NLP.Enabled = !environment.BoolOr("KIROKU_NLP_DISABLED", !cfg.NLP.Enabled)
	if key, ok := environment.String("KIROKU_OPENAI_API_KEY"); ok {
		cfg.NLP.APIKey = key
	}
	cfg.NLP.BaseURL = environment.StringOr("KIROKU_NLP_BASE_URL", cfg.NLP.BaseURL)
	cfg.NLP.Model = environment.StringOr("KIROKU_NLP_MODEL", cfg.NLP.Model)
	cfg.NLP.Timeout = environment.DurationOr("KIROKU_NLP_TIMEOUT", cfg.NLP.Timeout)
	cfg.NLP.RateLimit = environment.IntOr("KIROKU_NLP_RATE_LIMIT", cfg.NLP.RateLimit)
	cfg.ProposalTTL = environment.DurationOr("KIROKU_PROPOSAL_TTL", cfg.ProposalTTL)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v string) error {
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}
