package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// clearEnv blanks every variable the loader reads so the host environment
// cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, s := range specs {
		t.Setenv(s.env, "")
	}
}

// TestDefaults verifies all default values are applied when loading an empty config file.
func TestDefaults(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, "# empty\n")

	cfg, err := loadFromPath(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 5000 {
		t.Errorf("Server.Port = %d, want 5000", cfg.Server.Port)
	}
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Server.Host = %q, want 127.0.0.1", cfg.Server.Host)
	}
	if cfg.Storage.Backend != "json" {
		t.Errorf("Storage.Backend = %q, want json", cfg.Storage.Backend)
	}
	if cfg.Classifier.Provider != "gemini" {
		t.Errorf("Classifier.Provider = %q, want gemini", cfg.Classifier.Provider)
	}
	if cfg.Classifier.Timeout != 20*time.Second {
		t.Errorf("Classifier.Timeout = %v, want 20s", cfg.Classifier.Timeout)
	}
	if cfg.Gemini.Model != "gemini-2.5-flash" {
		t.Errorf("Gemini.Model = %q", cfg.Gemini.Model)
	}
	if cfg.Ollama.BaseURL != "http://localhost:11434" {
		t.Errorf("Ollama.BaseURL = %q", cfg.Ollama.BaseURL)
	}
	if !cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled = false, want true")
	}
	if cfg.Location() != time.Local {
		t.Errorf("Location() = %v, want Local", cfg.Location())
	}
}

// TestYAMLParsing verifies that nested keys are read from the YAML file.
func TestYAMLParsing(t *testing.T) {
	clearEnv(t)
	content := `
server:
  host: 0.0.0.0
  port: 8080
  max_connections: 64
storage:
  backend: sqlite
  data_dir: /tmp/edumood-test
classifier:
  provider: openrouter
  timeout: 5s
openrouter:
  api_key: yaml-key-123
  model: openai/gpt-4o-mini
trend:
  timezone: Europe/Berlin
metrics:
  enabled: false
log:
  level: debug
`
	path := writeTempConfig(t, content)

	cfg, err := loadFromPath(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Addr() != "0.0.0.0:8080" {
		t.Errorf("Addr() = %q", cfg.Addr())
	}
	if cfg.Server.MaxConnections != 64 {
		t.Errorf("Server.MaxConnections = %d", cfg.Server.MaxConnections)
	}
	if cfg.Storage.Backend != "sqlite" || cfg.Storage.DataDir != "/tmp/edumood-test" {
		t.Errorf("Storage = %+v", cfg.Storage)
	}
	if cfg.Classifier.Provider != "openrouter" || cfg.Classifier.Timeout != 5*time.Second {
		t.Errorf("Classifier = %+v", cfg.Classifier)
	}
	if cfg.OpenRouter.APIKey != "yaml-key-123" || cfg.OpenRouter.Model != "openai/gpt-4o-mini" {
		t.Errorf("OpenRouter = %+v", cfg.OpenRouter)
	}
	if cfg.Location().String() != "Europe/Berlin" {
		t.Errorf("Location() = %v", cfg.Location())
	}
	if cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled = true, want false")
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
}

// TestEnvOverride verifies that environment variables override config file values.
func TestEnvOverride(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, "server:\n  port: 8080\ngemini:\n  api_key: file-key\n")

	t.Setenv("EDUMOOD_SERVER_PORT", "9090")
	t.Setenv("GEMINI_API_KEY", "env-key")
	t.Setenv("EDUMOOD_CLASSIFIER_TIMEOUT", "45s")

	cfg, err := loadFromPath(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Gemini.APIKey != "env-key" {
		t.Errorf("Gemini.APIKey = %q, want env-key", cfg.Gemini.APIKey)
	}
	if cfg.Classifier.Timeout != 45*time.Second {
		t.Errorf("Classifier.Timeout = %v, want 45s", cfg.Classifier.Timeout)
	}
}

func TestInvalidEnvIgnored(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, "")
	t.Setenv("EDUMOOD_SERVER_PORT", "not-a-number")

	cfg, err := loadFromPath(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 5000 {
		t.Errorf("Server.Port = %d, want default 5000", cfg.Server.Port)
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"bad backend", "storage:\n  backend: postgres\n", "Backend"},
		{"bad provider", "classifier:\n  provider: bard\n", "Provider"},
		{"bad port", "server:\n  port: 70000\n", "Port"},
		{"bad timezone", "trend:\n  timezone: Mars/Olympus\n", "Timezone"},
		{"bad level", "log:\n  level: chatty\n", "Level"},
		{"zero timeout", "classifier:\n  timeout: 0s\n", "Timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			_, err := loadFromPath(writeTempConfig(t, tt.content))
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to mention %q", err, tt.want)
			}
		})
	}
}

// TestRequireCredentials verifies a clear error when the provider's key is missing.
func TestRequireCredentials(t *testing.T) {
	cfg := defaults()
	err := cfg.RequireCredentials()
	if !errors.Is(err, ErrMissingCredential) || !strings.Contains(err.Error(), "GEMINI_API_KEY") {
		t.Errorf("gemini without key: error = %v", err)
	}

	cfg.Classifier.Provider = "openrouter"
	err = cfg.RequireCredentials()
	if !errors.Is(err, ErrMissingCredential) || !strings.Contains(err.Error(), "OPENROUTER_API_KEY") {
		t.Errorf("openrouter without key: error = %v", err)
	}

	cfg.Classifier.Provider = "ollama"
	if err := cfg.RequireCredentials(); err != nil {
		t.Errorf("ollama needs no key, got %v", err)
	}
}

func TestSetKey(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	b := newFileBackend(path)

	if err := setKey(b, "server.port", "6000"); err != nil {
		t.Fatalf("set port: %v", err)
	}
	if err := setKey(b, "trend.timezone", "UTC"); err != nil {
		t.Fatalf("set timezone: %v", err)
	}
	if err := setKey(b, "metrics.enabled", "false"); err != nil {
		t.Fatalf("set metrics: %v", err)
	}

	cfg, err := loadFromPath(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if cfg.Server.Port != 6000 || cfg.Trend.Timezone != "UTC" || cfg.Metrics.Enabled {
		t.Errorf("reloaded config = %+v", cfg)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "server:\n") {
		t.Errorf("expected nested YAML, got:\n%s", data)
	}
}

func TestSetKeyErrors(t *testing.T) {
	b := newFileBackend(filepath.Join(t.TempDir(), "config.yaml"))

	if err := setKey(b, "gemini.api_key", "x"); err == nil || !strings.Contains(err.Error(), "GEMINI_API_KEY") {
		t.Errorf("secret: error = %v", err)
	}
	if err := setKey(b, "server.port", "abc"); err == nil {
		t.Error("expected error for non-integer port")
	}
	if err := setKey(b, "classifier.timeout", "soon"); err == nil {
		t.Error("expected error for bad duration")
	}
	if err := setKey(b, "nope", "x"); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestShowAllMasksSecrets(t *testing.T) {
	cfg := defaults()
	cfg.Gemini.APIKey = "super-secret"

	for _, ki := range ShowAll(cfg) {
		if strings.Contains(ki.Value, "super-secret") {
			t.Errorf("%s leaks secret value", ki.Key)
		}
		if ki.Key == "gemini.api_key" && ki.Value != "(set)" {
			t.Errorf("gemini.api_key = %q, want (set)", ki.Value)
		}
		if ki.Key == "openrouter.api_key" && ki.Value != "(unset)" {
			t.Errorf("openrouter.api_key = %q, want (unset)", ki.Value)
		}
	}

	for _, k := range ValidKeys() {
		if strings.HasSuffix(k, "api_key") || k == "server.api_token" {
			t.Errorf("ValidKeys includes secret %q", k)
		}
	}
}

func TestConfigFilePathEnv(t *testing.T) {
	t.Setenv("EDUMOOD_CONFIG", "/etc/edumood.yaml")
	if got := configFilePath(); got != "/etc/edumood.yaml" {
		t.Errorf("configFilePath() = %q", got)
	}
	t.Setenv("EDUMOOD_CONFIG", "")
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	if got := configFilePath(); got != filepath.Join("/xdg", "edumood", "config.yaml") {
		t.Errorf("configFilePath() = %q", got)
	}
}
