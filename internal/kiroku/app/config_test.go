package app_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kiroku-app/kiroku/internal/kiroku/app"
)

// clearKirokuEnv unsets every KIROKU_* variable the loader reads so tests
// are insulated from the invoking shell.
func clearKirokuEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"KIROKU_CONFIG", "KIROKU_LISTEN_ADDR", "KIROKU_DB_PATH",
		"KIROKU_LOG_LEVEL", "KIROKU_LOG_FORMAT", "KIROKU_LOG_FILE",
		"KIROKU_NLP_DISABLED", "KIROKU_OPENAI_API_KEY", "KIROKU_NLP_BASE_URL",
		"KIROKU_NLP_MODEL", "KIROKU_NLP_TIMEOUT", "KIROKU_NLP_RATE_LIMIT",
		"KIROKU_PROPOSAL_TTL",
	} {
		t.Setenv(name, "")
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearKirokuEnv(t)
	t.Setenv("KIROKU_OPENAI_API_KEY", "sk-test")

	cfg, err := app.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.ListenAddr != "127.0.0.1:8787" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr)
	}
	if cfg.DatabasePath != "./kiroku.db" {
		t.Errorf("DatabasePath = %q", cfg.DatabasePath)
	}
	if !cfg.NLP.Enabled || cfg.NLP.APIKey != "sk-test" {
		t.Errorf("NLP = %+v", cfg.NLP)
	}
	if cfg.ProposalTTL != 5*time.Minute {
		t.Errorf("ProposalTTL = %v", cfg.ProposalTTL)
	}
}

func TestLoadConfig_RequiresKeyUnlessDisabled(t *testing.T) {
	clearKirokuEnv(t)

	if _, err := app.LoadConfig(); err == nil {
		t.Fatal("LoadConfig succeeded without an API key")
	}

	t.Setenv("KIROKU_NLP_DISABLED", "true")
	cfg, err := app.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig with NLP disabled: %v", err)
	}
	if cfg.NLP.Enabled {
		t.Error("NLP still enabled")
	}
}

func TestLoadConfig_FileThenEnvPrecedence(t *testing.T) {
	clearKirokuEnv(t)

	path := filepath.Join(t.TempDir(), "kiroku.yaml")
	file := []byte(`
listen: "0.0.0.0:9999"
database: "/var/lib/kiroku/kiroku.db"
log:
  level: debug
  format: json
nlp:
  model: file-model
  timeout: 45s
  rate_limit: 5
proposal_ttl: 10m
`)
	if err := os.WriteFile(path, file, 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	t.Setenv("KIROKU_CONFIG", path)
	t.Setenv("KIROKU_OPENAI_API_KEY", "sk-test")
	t.Setenv("KIROKU_NLP_MODEL", "env-model") // env beats file

	cfg, err := app.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.ListenAddr != "0.0.0.0:9999" {
		t.Errorf("ListenAddr = %q, want file value", cfg.ListenAddr)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("Log = %+v", cfg.Log)
	}
	if cfg.NLP.Model != "env-model" {
		t.Errorf("Model = %q, want env-model", cfg.NLP.Model)
	}
	if cfg.NLP.Timeout != 45*time.Second || cfg.NLP.RateLimit != 5 {
		t.Errorf("NLP = %+v", cfg.NLP)
	}
	if cfg.ProposalTTL != 10*time.Minute {
		t.Errorf("ProposalTTL = %v", cfg.ProposalTTL)
	}
}

func TestLoadConfig_BadFile(t *testing.T) {
	clearKirokuEnv(t)

	path := filepath.Join(t.TempDir(), "kiroku.yaml")
	if err := os.WriteFile(path, []byte("nlp: [not a mapping"), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv("KIROKU_CONFIG", path)
	t.Setenv("KIROKU_OPENAI_API_KEY", "sk-test")

	if _, err := app.LoadConfig(); err == nil {
		t.Fatal("LoadConfig accepted malformed YAML")
	}
}
