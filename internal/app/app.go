package app

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/vk/stepgrid/internal/agent"
)

// App encapsulates the application's dependencies, configuration, and
// lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	config   *Config
	workers  *agent.Registry
	profiles *agent.Profiles

	// hasWorker tracks whether any worker was injected; when false, Run
	// wires the default LLM worker.
	hasWorker bool
}

// Option customizes an App at construction.
type Option func(*App)

// WithWorker installs a worker for one agent kind, replacing the default
// LLM worker for that kind.
func WithWorker(kind string, w agent.Worker) Option {
	return func(a *App) {
		a.workers.Register(kind, w)
		a.hasWorker = true
	}
}

// WithFallbackWorker installs the worker used for every agent kind without
// an explicit registration.
func WithFallbackWorker(w agent.Worker) Option {
	return func(a *App) {
		a.workers.RegisterFallback(w)
		a.hasWorker = true
	}
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance, including its own isolated logger and worker
// registry.
func NewApp(outW io.Writer, config *Config, opts ...Option) *App {
	logger := newLogger(config.LogLevel, config.LogFormat, outW)
	logger.Debug("Logger configured successfully.")

	profiles := agent.DefaultProfiles()
	if config.AgentsPath != "" {
		loaded, err := agent.LoadProfiles(config.AgentsPath)
		if err != nil {
			// A failure to load config is a fatal startup error.
			panic(fmt.Errorf("failed to load agent profiles: %w", err))
		}
		profiles = loaded
	}
	logger.Debug("Agent profiles ready.", "agents", len(profiles.Agents))

	a := &App{
		outW:     outW,
		logger:   logger,
		config:   config,
		workers:  agent.NewRegistry(),
		profiles: profiles,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Workers returns the application's worker registry. This is primarily for
// testing.
func (a *App) Workers() *agent.Registry {
	return a.workers
}
