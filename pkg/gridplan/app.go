package gridplan

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/gridplan/gridplan/pkg/engine"
	"github.com/gridplan/gridplan/pkg/engine/anaplan"
	"github.com/gridplan/gridplan/pkg/engine/mock"
	"github.com/gridplan/gridplan/pkg/logger"
)

// Config holds application configuration. Endpoint overrides exist for
// tests; in normal operation the Anaplan endpoints stay at their
// production defaults.
type Config struct {
	ServerPort string
	LogLevel   string
	LogPath    string

	AnaplanAuthURL string
	AnaplanBaseURL string
}

// App holds the application state: the engine registry, saved connections
// and the change-event hub shared by every handler.
type App struct {
	registry    *engine.Registry
	config      *Config
	log         zerolog.Logger
	connections *connectionStore
	hub         *eventHub
}

// New creates the application and registers the built-in engines. The mock
// engine is connected immediately so the demo workspace serves data from
// the first request; Anaplan stays disconnected until credentials arrive.
func New(config *Config) (*App, error) {
	build := logger.New().Level(config.LogLevel)
	if config.LogPath != "" {
		build = build.FromPath(config.LogPath)
	}
	logData, err := build.Make()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	log := logData.Logger

	registry := engine.NewRegistry()

	mockEngine, err := mock.New()
	if err != nil {
		return nil, fmt.Errorf("failed to build mock engine: %w", err)
	}
	if err := mockEngine.Connect(context.Background(), nil); err != nil {
		return nil, fmt.Errorf("failed to connect mock engine: %w", err)
	}
	if err := registry.Register(mockEngine); err != nil {
		return nil, err
	}

	anaplanEngine := anaplan.New(config.AnaplanAuthURL, config.AnaplanBaseURL, log)
	if err := registry.Register(anaplanEngine); err != nil {
		return nil, err
	}

	return &App{
		registry:    registry,
		config:      config,
		log:         log,
		connections: newConnectionStore(),
		hub:         newEventHub(log),
	}, nil
}

// Registry returns the engine registry, useful for testing.
func (a *App) Registry() *engine.Registry {
	return a.registry
}

// getEnv retrieves an environment variable with a fallback default. Empty
// values are treated as unset.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
