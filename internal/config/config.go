package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

type Config struct {
	Server     ServerConfig
	Storage    StorageConfig
	Classifier ClassifierConfig
	Gemini     GeminiConfig
	Ollama     OllamaConfig
	OpenRouter OpenRouterConfig
	Trend      TrendConfig
	Metrics    MetricsConfig
	Log        LogConfig
}

type ServerConfig struct {
	Host           string `validate:"required"`
	Port           int    `validate:"min=1,max=65535"`
	MaxConnections int    `validate:"min=0"`
	APIToken       string
}

type StorageConfig struct {
	Backend string `validate:"oneof=json sqlite"`
	DataDir string `validate:"required"`
}

type ClassifierConfig struct {
	Provider string        `validate:"oneof=gemini ollama openrouter"`
	Timeout  time.Duration `validate:"gt=0"`
}

type GeminiConfig struct {
	APIKey string
	Model  string `validate:"required"`
}

type OllamaConfig struct {
	BaseURL string `validate:"required,url"`
	Model   string `validate:"required"`
}

type OpenRouterConfig struct {
	APIKey string
	Model  string `validate:"required"`
}

type TrendConfig struct {
	Timezone string `validate:"omitempty,timezone"`
}

type MetricsConfig struct {
	Enabled bool
}

type LogConfig struct {
	Level string `validate:"oneof=debug info warn error"`
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 5000,
		},
		Storage: StorageConfig{
			Backend: "json",
			DataDir: defaultDataDir(),
		},
		Classifier: ClassifierConfig{
			Provider: "gemini",
			Timeout:  20 * time.Second,
		},
		Gemini: GeminiConfig{
			Model: "gemini-2.5-flash",
		},
		Ollama: OllamaConfig{
			BaseURL: "http://localhost:11434",
			Model:   "llama3.2",
		},
		OpenRouter: OpenRouterConfig{
			Model: "google/gemini-2.5-flash",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// ErrMissingCredential is returned by RequireCredentials when the selected
// classifier provider has no API key.
var ErrMissingCredential = errors.New("missing required config")

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads configuration from the YAML file at $EDUMOOD_CONFIG (or
// $XDG_CONFIG_HOME/edumood/config.yaml), then applies EDUMOOD_* environment
// overrides and the provider key variables GEMINI_API_KEY and
// OPENROUTER_API_KEY.
func Load() (Config, error) {
	return loadWith(newFileBackend(configFilePath()))
}

func loadFromPath(path string) (Config, error) {
	return loadWith(newFileBackend(path))
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}
	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// RequireCredentials fails when the selected provider needs an API key that
// is not set. Only the server needs this; CLI client commands do not.
func (c Config) RequireCredentials() error {
	switch c.Classifier.Provider {
	case "gemini":
		if c.Gemini.APIKey == "" {
			return fmt.Errorf("%w: Gemini API key. Set it via environment variable GEMINI_API_KEY", ErrMissingCredential)
		}
	case "openrouter":
		if c.OpenRouter.APIKey == "" {
			return fmt.Errorf("%w: OpenRouter API key. Set it via environment variable OPENROUTER_API_KEY", ErrMissingCredential)
		}
	}
	return nil
}

// Location returns the time zone for day bucketing, defaulting to the
// server's local zone.
func (c Config) Location() *time.Location {
	if c.Trend.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Trend.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// SlogLevel maps log.level to a slog.Level.
func (c Config) SlogLevel() slog.Level {
	switch c.Log.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Addr returns host:port for the HTTP listener.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
