// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package kv

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// =============================================================================
// STORAGE KEYS
// =============================================================================

// Keys used by the chat engine. The names match the browser widget's
// localStorage keys so exported stores stay interchangeable.
const (
	KeyHistory   = "chatHistory"
	KeySessionID = "chatSessionId"
	KeyBanEnd    = "banEndTime"
	KeyBanCount  = "banCount"
	KeyLastSeen  = "today"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("store is closed")

	// ErrUnknownBackend is returned by Open for an unrecognized backend name.
	ErrUnknownBackend = errors.New("unknown store backend")
)

// =============================================================================
// STORE INTERFACE
// =============================================================================

// Store is a string key-value store that survives process restarts.
// Each Set replaces the whole value under the key.
type Store interface {
	// Get returns the value and true, or "" and false when the key is absent.
	Get(key string) (string, bool, error)
	Set(key, value string) error
	// Remove deletes the key. Removing an absent key is not an error.
	Remove(key string) error
	Close() error
}

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendPebble = "pebble"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Options selects and configures a backend.
type Options struct {
	Backend string

	// Path is the JSON file (file), database file (sqlite) or directory (pebble).
	Path string

	// Redis connection settings.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

// Open returns the backend named by opts.Backend. An empty backend means file.
func Open(opts Options) (Store, error) {
	path, err := expandHome(opts.Path)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(opts.Backend) {
	case "", BackendFile:
		return OpenFile(path)
	case BackendSQLite:
		return OpenSQLite(path)
	case BackendPebble:
		return OpenPebble(path)
	case BackendRedis:
		return OpenRedis(opts.RedisAddr, opts.RedisPassword, opts.RedisDB, opts.RedisPrefix)
	case BackendMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}
}

// expandHome resolves a leading "~/" against the user's home directory.
func expandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, path[2:]), nil
}
