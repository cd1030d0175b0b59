// Package app wires the Kiroku components together and owns the process
// lifecycle: configuration, store, provider, HTTP server, shutdown.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/kiroku-app/kiroku/internal/kiroku/audit"
	"github.com/kiroku-app/kiroku/internal/kiroku/catalog"
	"github.com/kiroku-app/kiroku/internal/kiroku/config"
	"github.com/kiroku-app/kiroku/internal/kiroku/nlp"
	"github.com/kiroku-app/kiroku/internal/kiroku/observability"
	"github.com/kiroku-app/kiroku/internal/kiroku/server"
)

// App is the assembled Kiroku service.
type App struct {
	cfg    *Config
	store  *catalog.Store
	server *server.Server
}

// New builds the service from cfg. Settings stored in the database (written
// via PUT /api/settings) override the static NLP configuration, so a model
// switch made through the API survives restarts without touching the
// environment.
func New(cfg *Config) (*App, error) {
	observability.Setup(cfg.Log)

	store, err := catalog.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}

	settings := config.New(store)
	applySettings(settings, cfg)

	var provider nlp.Provider
	if cfg.NLP.Enabled {
		provider = nlp.New(nlp.Config{
			APIKey:  cfg.NLP.APIKey,
			BaseURL: cfg.NLP.BaseURL,
			Model:   cfg.NLP.Model,
			Timeout: cfg.NLP.Timeout,
		})
	} else {
		slog.Warn("assistant disabled; running without a language model")
	}

	srv := server.New(cfg.ListenAddr, server.Options{
		Catalog:     store,
		Settings:    settings,
		Provider:    provider,
		AuditLog:    audit.New(store),
		RateLimit:   cfg.NLP.RateLimit,
		ProposalTTL: cfg.ProposalTTL,
	})

	return &App{cfg: cfg, store: store, server: srv}, nil
}

// applySettings overlays persisted settings onto the NLP configuration.
func applySettings(settings config.Store, cfg *Config) {
	ctx := context.Background()
	if v, err := settings.Get(ctx, config.KeyNLPModel); err == nil && v != "" {
		cfg.NLP.Model = v
	}
	if v, err := settings.Get(ctx, config.KeyNLPBaseURL); err == nil && v != "" {
		cfg.NLP.BaseURL = v
	}
	if v, err := settings.Get(ctx, config.KeyNLPRateLimit); err == nil && v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.NLP.RateLimit = n
		}
	}
}

// Run starts the server and blocks until SIGINT/SIGTERM.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.server.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	slog.Info("shutting down")
	a.server.Stop()
	return nil
}

// Stop releases resources. Safe to call after Run returns.
func (a *App) Stop() {
	if a.store != nil {
		a.store.Close()
	}
}
