// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package kv

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/cockroachdb/pebble/v2"
)

// Pebble keeps keys in a Pebble database directory. Writes use pebble.Sync
// so a value is durable once Set returns.
type Pebble struct {
	db     *pebble.DB
	closed atomic.Bool
}

// OpenPebble opens (creating if needed) the database directory at dir.
func OpenPebble(dir string) (*Pebble, error) {
	if dir == "" {
		return nil, fmt.Errorf("pebble store: directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create pebble directory: %w", err)
	}
	db, err := pebble.Open(filepath.Clean(dir), &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble: %w", err)
	}
	return &Pebble{db: db}, nil
}

// Get implements Store.
func (p *Pebble) Get(key string) (string, bool, error) {
	if p.closed.Load() {
		return "", false, ErrClosed
	}
	data, closer, err := p.db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	defer closer.Close()
	// string() copies, data is only valid until closer.Close
	return string(data), true, nil
}

// Set implements Store.
func (p *Pebble) Set(key, value string) error {
	if p.closed.Load() {
		return ErrClosed
	}
	if err := p.db.Set([]byte(key), []byte(value), pebble.Sync); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// Remove implements Store.
func (p *Pebble) Remove(key string) error {
	if p.closed.Load() {
		return ErrClosed
	}
	if err := p.db.Delete([]byte(key), pebble.Sync); err != nil && !errors.Is(err, pebble.ErrNotFound) {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Close implements Store.
func (p *Pebble) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	return p.db.Close()
}
