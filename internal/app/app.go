// Package app wires configuration, backend and archive for the binaries.
package app

import (
	"fmt"

	"github.com/joho/godotenv"

	"github.com/HitoniYori/ijime-support-ai/internal/config"
	"github.com/HitoniYori/ijime-support-ai/internal/content"
	"github.com/HitoniYori/ijime-support-ai/internal/history"
	"github.com/HitoniYori/ijime-support-ai/internal/llm"
	"github.com/HitoniYori/ijime-support-ai/internal/llm/provider"
	"github.com/HitoniYori/ijime-support-ai/internal/logger"
	"github.com/HitoniYori/ijime-support-ai/internal/session"
)

// App holds the shared dependencies of one process.
type App struct {
	Config  *config.Config
	Backend llm.Backend
	Archive *history.Archive // nil when archive.path is empty
}

// Bootstrap loads .env and the config, sets the log level, and builds the
// backend and snapshot archive.
func Bootstrap() (*App, error) {
	if err := godotenv.Load(); err != nil {
		logger.L.Info("no .env file loaded", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	logger.SetLevel(cfg.Log.Level)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	backend, err := provider.New(cfg.LLM)
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Backend: backend}
	if cfg.Archive.Path != "" {
		if a.Archive, err = history.OpenArchive(cfg.Archive.Path); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// SessionOptions derives the per-session settings from the config.
func (a *App) SessionOptions() session.Options {
	return session.Options{
		Greeting: a.Config.Session.Greeting,
		Content: content.Options{
			DocumentInstruction: a.Config.Evidence.DocumentInstruction,
			TableInstruction:    a.Config.Evidence.TableInstruction,
		},
		Archive: a.Archive,
	}
}

// Close releases the archive.
func (a *App) Close() {
	if a.Archive == nil {
		return
	}
	if err := a.Archive.Close(); err != nil {
		logger.L.Warn("archive close failed", "error", err)
	}
}
