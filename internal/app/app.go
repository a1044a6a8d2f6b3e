// Package app wires the manifest loader, dependency graph and executor
// into one runnable application instance.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/vk/packforgego/internal/config"
	"github.com/vk/packforgego/internal/ctxlog"
)

// App encapsulates the application's dependencies, configuration and
// lifecycle.
type App struct {
	outW   io.Writer
	logW   io.Writer
	logger *slog.Logger
	model  *config.Model
}

// NewApp loads and validates the manifest and returns a fully
// initialized App. A manifest that cannot be loaded is a fatal startup
// error and panics; the CLI entrypoint recovers it into a clean exit.
func NewApp(outW, logW io.Writer, appConfig *Config, loader config.Loader) *App {
	logger := newLogger(appConfig.LogLevel, appConfig.LogFormat, logW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	model, err := loader.Load(ctx, appConfig.ManifestPath)
	if err != nil {
		panic(fmt.Errorf("failed to load manifest: %w", err))
	}
	logger.Debug("Manifest loaded and validated.", "packages", len(model.Packages))

	return &App{
		outW:   outW,
		logW:   logW,
		logger: logger,
		model:  model,
	}
}

// Model returns the loaded manifest model. This is primarily for testing.
func (a *App) Model() *config.Model {
	return a.model
}
