// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/jeranaias/folio-chat/internal/config"
	"github.com/jeranaias/folio-chat/internal/engine"
	"github.com/jeranaias/folio-chat/internal/guard"
	"github.com/jeranaias/folio-chat/internal/kv"
	"github.com/jeranaias/folio-chat/internal/logging"
)

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configPath string
	endpoint   string
	backend    string
	storePath  string
	logLevel   string
	verbose    bool
}

// loadConfig resolves configuration: .env, config file, then flags.
func (g *globalFlags) loadConfig(stderr io.Writer) (*config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(stderr, warningStyle.Render("Warning: "+err.Error()))
	}

	var (
		cfg *config.Config
		err error
	)
	if g.configPath != "" {
		cfg, err = config.LoadFromPath(g.configPath)
		if err != nil {
			return nil, err
		}
	} else {
		cfg, err = config.Load()
		if cfg == nil {
			return nil, err
		}
		if err != nil {
			fmt.Fprintln(stderr, warningStyle.Render(fmt.Sprintf("Warning: %v (using defaults)", err)))
		}
	}

	if g.endpoint != "" {
		cfg.Endpoint.URL = g.endpoint
	}
	if g.backend != "" {
		cfg.Store.Backend = strings.ToLower(g.backend)
		if g.storePath == "" {
			cfg.Store.Path = ""
			if cfg.Store.Backend != kv.BackendRedis && cfg.Store.Backend != kv.BackendMemory {
				cfg.Store.Path = config.DefaultStorePath(cfg.Store.Backend)
			}
		}
	}
	if g.storePath != "" {
		cfg.Store.Path = g.storePath
	}
	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// app is everything a command needs to talk to the assistant.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	store  kv.Store
	engine *engine.Engine
}

// newLogger writes to the log file, or to stderr at debug level with
// --verbose. The widget never uses stderr.
func (g *globalFlags) newLogger(cfg *config.Config, allowStderr bool) (*zap.Logger, error) {
	if g.verbose && allowStderr {
		return logging.New(logging.Config{Level: "debug", Format: cfg.Log.Format, Paths: []string{"stderr"}})
	}
	path := cfg.Log.File
	if path == "" {
		path = config.DefaultLogPath()
	}
	return logging.NewFile(cfg.Log.Level, cfg.Log.Format, path)
}

// openApp loads config and builds the logger, store and engine. The engine
// is not started.
func (g *globalFlags) openApp(stderr io.Writer, allowStderrLog bool) (*app, error) {
	cfg, err := g.loadConfig(stderr)
	if err != nil {
		return nil, err
	}

	logger, err := g.newLogger(cfg, allowStderrLog)
	if err != nil {
		return nil, err
	}

	store, err := kv.Open(kv.Options{
		Backend:       cfg.Store.Backend,
		Path:          cfg.Store.Path,
		RedisAddr:     cfg.Store.RedisAddr,
		RedisPassword: cfg.Store.RedisPassword,
		RedisDB:       cfg.Store.RedisDB,
		RedisPrefix:   cfg.Store.RedisPrefix,
	})
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Store.Backend, err)
	}

	eng, err := engine.New(engine.Deps{Store: store, Logger: logger}, engineOptions(cfg))
	if err != nil {
		store.Close()
		_ = logger.Sync()
		return nil, err
	}

	logger.Debug("app ready",
		zap.String("endpoint", cfg.Endpoint.URL),
		zap.String("store", cfg.Store.Backend),
		zap.String("path", cfg.Store.Path))

	return &app{cfg: cfg, logger: logger, store: store, engine: eng}, nil
}

// engineOptions maps config onto engine settings.
func engineOptions(cfg *config.Config) engine.Options {
	return engine.Options{
		Endpoint: cfg.Endpoint.URL,
		Headers:  cfg.Endpoint.Headers,
		Timeout:  cfg.Endpoint.Timeout(),
		Guard: guard.Config{
			MinInterval:  cfg.Guard.MinInterval(),
			BanThreshold: cfg.Guard.BanThreshold,
			BanDuration:  cfg.Guard.BanDuration(),
		},
		MaxMessages:    cfg.Store.MaxMessages,
		Overscan:       cfg.Viewport.Overscan,
		RowHeight:      cfg.Viewport.RowHeight,
		ViewportHeight: cfg.Viewport.Height,
	}
}

func (a *app) close() {
	if err := a.engine.Close(); err != nil {
		a.logger.Warn("engine close", zap.Error(err))
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("store close", zap.Error(err))
	}
	_ = a.logger.Sync()
}
