package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/kalambet/edumood/internal/classify"
	"github.com/kalambet/edumood/internal/config"
	"github.com/kalambet/edumood/internal/feedback"
	"github.com/kalambet/edumood/internal/metrics"
	"github.com/kalambet/edumood/internal/ollama"
	"github.com/kalambet/edumood/internal/storage"
)

// app bundles the long-lived components shared by serve and mcp.
type app struct {
	cfg     config.Config
	store   storage.Backend
	service *feedback.Service
	metrics *metrics.Collector
}

func (a *app) Close() error {
	return a.store.Close()
}

// setupLogging installs the slog text handler on stderr at the configured level.
func setupLogging(cfg config.Config) {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()})))
}

// newApp opens storage and builds the classifier and service. Progress for
// a local model pull is written to progress.
func newApp(ctx context.Context, cfg config.Config, progress io.Writer) (*app, error) {
	if err := cfg.RequireCredentials(); err != nil {
		return nil, err
	}

	if cfg.Classifier.Provider == classify.ProviderOllama {
		printStep("Checking Ollama at %s (model %s)", cfg.Ollama.BaseURL, cfg.Ollama.Model)
		if err := ollama.EnsureReady(ctx, ollama.New(cfg.Ollama.BaseURL), cfg.Ollama.Model, progress); err != nil {
			return nil, err
		}
	}

	clf, err := classify.New(classify.Config{
		Provider:         cfg.Classifier.Provider,
		GeminiAPIKey:     cfg.Gemini.APIKey,
		GeminiModel:      cfg.Gemini.Model,
		OllamaBaseURL:    cfg.Ollama.BaseURL,
		OllamaModel:      cfg.Ollama.Model,
		OpenRouterAPIKey: cfg.OpenRouter.APIKey,
		OpenRouterModel:  cfg.OpenRouter.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("configuring classifier: %w", err)
	}

	store, err := storage.Open(cfg.Storage.Backend, cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	opts := []feedback.Option{
		feedback.WithTimeout(cfg.Classifier.Timeout),
		feedback.WithLocation(cfg.Location()),
	}
	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.NewCollector()
		opts = append(opts, feedback.WithRecorder(collector))
	}

	slog.Info("storage opened", "backend", cfg.Storage.Backend, "data_dir", cfg.Storage.DataDir)
	return &app{
		cfg:     cfg,
		store:   store,
		service: feedback.NewService(store, clf, opts...),
		metrics: collector,
	}, nil
}
