// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging builds the zap loggers used across folio-chat.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects level, encoding and destinations.
type Config struct {
	// Level is debug, info, warn or error. Unknown values mean info.
	Level string
	// Format is "console" or "json".
	Format string
	// Paths are zap output paths ("stderr", "stdout" or file paths).
	// Empty means stderr.
	Paths []string
}

// New builds a logger from cfg. Parent directories of file outputs are
// created.
func New(cfg Config) (*zap.Logger, error) {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(strings.ToLower(cfg.Level))); err != nil || cfg.Level == "" {
		level.SetLevel(zap.InfoLevel)
	}

	var zapConfig zap.Config
	if strings.EqualFold(cfg.Format, "json") {
		zapConfig = zap.NewProductionConfig()
		zapConfig.Encoding = "json"
	} else {
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.Encoding = "console"
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	zapConfig.Level = level
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	paths := cfg.Paths
	if len(paths) == 0 {
		paths = []string{"stderr"}
	}
	for _, p := range paths {
		if p == "stderr" || p == "stdout" {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(p), 0700); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	}
	zapConfig.OutputPaths = paths
	zapConfig.ErrorOutputPaths = paths

	logger, err := zapConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}

// NewFile is New writing only to path. Used by the terminal UI, which must
// keep stdout and stderr clean.
func NewFile(level, format, path string) (*zap.Logger, error) {
	return New(Config{Level: level, Format: format, Paths: []string{path}})
}
