// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package kv

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"sync"

	"github.com/jeranaias/folio-chat/internal/util"
)

// File stores every key in one JSON object document. Each mutation
// rewrites the document with util.AtomicWriteFile, so a crash leaves either
// the previous or the new state on disk.
type File struct {
	mu     sync.Mutex
	path   string
	data   map[string]string
	closed bool
}

// OpenFile loads the document at path, or starts empty if it does not exist.
func OpenFile(path string) (*File, error) {
	if path == "" {
		return nil, fmt.Errorf("file store: path is required")
	}

	f := &File{path: path, data: make(map[string]string)}

	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return f, nil
		}
		return nil, fmt.Errorf("failed to read store: %w", err)
	}
	if len(raw) == 0 {
		return f, nil
	}
	if err := json.Unmarshal(raw, &f.data); err != nil {
		return nil, fmt.Errorf("failed to parse store %s: %w", path, err)
	}
	return f, nil
}

// Path returns the document location.
func (f *File) Path() string {
	return f.path
}

// Get implements Store.
func (f *File) Get(key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return "", false, ErrClosed
	}
	v, ok := f.data[key]
	return v, ok, nil
}

// Set implements Store.
func (f *File) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}

	next := maps.Clone(f.data)
	next[key] = value
	if err := f.flush(next); err != nil {
		return err
	}
	f.data = next
	return nil
}

// Remove implements Store.
func (f *File) Remove(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	if _, ok := f.data[key]; !ok {
		return nil
	}

	next := maps.Clone(f.data)
	delete(next, key)
	if err := f.flush(next); err != nil {
		return err
	}
	f.data = next
	return nil
}

// Close implements Store.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// flush must be called with f.mu held.
func (f *File) flush(data map[string]string) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal store: %w", err)
	}
	if err := util.AtomicWriteFile(f.path, raw, 0600); err != nil {
		return fmt.Errorf("failed to write store: %w", err)
	}
	return nil
}
