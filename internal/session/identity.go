// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jeranaias/folio-chat/internal/kv"
)

// =============================================================================
// IDENTITY
// =============================================================================

// Identity reads and writes the session identifier in a kv.Store.
type Identity struct {
	mu     sync.Mutex
	store  kv.Store
	logger *zap.Logger

	// newID generates identifiers; replaced in tests.
	newID func() string
}

// Option configures an Identity.
type Option func(*Identity)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(i *Identity) {
		if l != nil {
			i.logger = l
		}
	}
}

// WithGenerator overrides identifier generation.
func WithGenerator(fn func() string) Option {
	return func(i *Identity) {
		if fn != nil {
			i.newID = fn
		}
	}
}

// New creates an Identity backed by store.
func New(store kv.Store, opts ...Option) *Identity {
	i := &Identity{
		store:  store,
		logger: zap.NewNop(),
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// GetOrCreate returns the stored identifier, creating and persisting a new
// random one if none exists.
func (i *Identity) GetOrCreate() (string, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	id, ok, err := i.store.Get(kv.KeySessionID)
	if err != nil {
		return "", fmt.Errorf("failed to read session id: %w", err)
	}
	if ok && id != "" {
		return id, nil
	}

	id = i.newID()
	if err := i.store.Set(kv.KeySessionID, id); err != nil {
		return "", fmt.Errorf("failed to persist session id: %w", err)
	}
	i.logger.Debug("created session", zap.String("session_id", id))
	return id, nil
}

// Adopt stores an identifier issued by the remote side. Empty identifiers
// and the identifier already stored are ignored. It reports whether the
// stored value changed.
func (i *Identity) Adopt(id string) (bool, error) {
	if id == "" {
		return false, nil
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	current, _, err := i.store.Get(kv.KeySessionID)
	if err != nil {
		return false, fmt.Errorf("failed to read session id: %w", err)
	}
	if current == id {
		return false, nil
	}
	if err := i.store.Set(kv.KeySessionID, id); err != nil {
		return false, fmt.Errorf("failed to persist session id: %w", err)
	}
	i.logger.Debug("adopted remote session",
		zap.String("previous", current),
		zap.String("session_id", id))
	return true, nil
}

// Current returns the stored identifier, or "" if there is none or the
// store cannot be read.
func (i *Identity) Current() string {
	i.mu.Lock()
	defer i.mu.Unlock()

	id, _, err := i.store.Get(kv.KeySessionID)
	if err != nil {
		i.logger.Warn("failed to read session id", zap.Error(err))
		return ""
	}
	return id
}

// Clear removes the identifier. The next GetOrCreate starts a new session.
func (i *Identity) Clear() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if err := i.store.Remove(kv.KeySessionID); err != nil {
		return fmt.Errorf("failed to remove session id: %w", err)
	}
	return nil
}
