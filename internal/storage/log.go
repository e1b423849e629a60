// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/folio-chat/internal/kv"
	"github.com/jeranaias/folio-chat/internal/model"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrDuplicateID is returned by Append when the id is already in the log.
	ErrDuplicateID = errors.New("message id already exists")

	// ErrEmptyParts is returned when an update would finalize a message
	// without any content.
	ErrEmptyParts = errors.New("finalized message must have parts")
)

// =============================================================================
// PATCH
// =============================================================================

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	Parts       []model.Part
	Pending     *bool
	Timestamp   *string
	CompletedAt *time.Time
}

// Bool returns a pointer to b, for Patch literals.
func Bool(b bool) *bool { return &b }

// =============================================================================
// LOG
// =============================================================================

// Log is the ordered, persisted message record.
type Log struct {
	mu          sync.RWMutex
	store       kv.Store
	logger      *zap.Logger
	maxMessages int
	msgs        []model.Message
}

// Option configures a Log.
type Option func(*Log)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(lg *Log) {
		if l != nil {
			lg.logger = l
		}
	}
}

// WithMaxMessages caps the log; the oldest entries are pruned on Append.
// Zero means unlimited.
func WithMaxMessages(n int) Option {
	return func(lg *Log) {
		if n > 0 {
			lg.maxMessages = n
		}
	}
}

// NewLog creates an empty log backed by store. Call Load to rehydrate.
func NewLog(store kv.Store, opts ...Option) *Log {
	l := &Log{
		store:  store,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load replaces the in-memory list with the stored one. A document that
// cannot be parsed is logged and treated as empty; entries with a
// duplicate id or that fail validation are dropped.
func (l *Log) Load() error {
	raw, ok, err := l.store.Get(kv.KeyHistory)
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}

	var loaded []model.Message
	if ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &loaded); err != nil {
			l.logger.Warn("discarding unreadable history", zap.Error(err))
			loaded = nil
		}
	}

	seen := make(map[string]bool, len(loaded))
	msgs := make([]model.Message, 0, len(loaded))
	for _, m := range loaded {
		if err := m.Validate(); err != nil {
			l.logger.Warn("dropping invalid message", zap.Error(err))
			continue
		}
		if seen[m.ID] {
			l.logger.Warn("dropping duplicate message", zap.String("message_id", m.ID))
			continue
		}
		seen[m.ID] = true
		msgs = append(msgs, m)
	}

	l.mu.Lock()
	l.msgs = msgs
	l.mu.Unlock()

	l.logger.Debug("history loaded", zap.Int("messages", len(msgs)))
	return nil
}

// Append adds msg to the end of the log.
func (l *Log) Append(msg model.Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.indexOf(msg.ID) >= 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateID, msg.ID)
	}

	next := make([]model.Message, 0, len(l.msgs)+1)
	next = append(next, l.msgs...)
	next = append(next, msg.Clone())
	if l.maxMessages > 0 && len(next) > l.maxMessages {
		pruned := len(next) - l.maxMessages
		next = next[pruned:]
		l.logger.Debug("pruned history", zap.Int("removed", pruned))
	}

	return l.commit(next)
}

// UpdateByID merges patch into the message with the given id. It reports
// false, and changes nothing, when no such message exists.
func (l *Log) UpdateByID(id string, patch Patch) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.indexOf(id)
	if i < 0 {
		return false, nil
	}

	m := l.msgs[i].Clone()
	if patch.Parts != nil {
		m.Parts = slices.Clone(patch.Parts)
	}
	if patch.Pending != nil {
		m.Pending = *patch.Pending
	}
	if patch.Timestamp != nil {
		m.Timestamp = *patch.Timestamp
	}
	if patch.CompletedAt != nil {
		t := *patch.CompletedAt
		m.CompletedAt = &t
	}
	if !m.Pending && len(m.Parts) == 0 {
		return false, fmt.Errorf("%w: %s", ErrEmptyParts, id)
	}

	next := slices.Clone(l.msgs)
	next[i] = m
	if err := l.commit(next); err != nil {
		return false, err
	}
	return true, nil
}

// DeleteByID removes the message with the given id. It reports whether a
// message was removed.
func (l *Log) DeleteByID(id string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.indexOf(id)
	if i < 0 {
		return false, nil
	}

	next := slices.Delete(slices.Clone(l.msgs), i, i+1)
	if err := l.commit(next); err != nil {
		return false, err
	}
	return true, nil
}

// Clear empties the log and removes it from the store.
func (l *Log) Clear() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.store.Remove(kv.KeyHistory); err != nil {
		return fmt.Errorf("failed to remove history: %w", err)
	}
	l.msgs = nil
	return nil
}

// All returns a copy of every message in conversation order.
func (l *Log) All() []model.Message {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]model.Message, len(l.msgs))
	for i, m := range l.msgs {
		out[i] = m.Clone()
	}
	return out
}

// Get returns a copy of the message with the given id.
func (l *Log) Get(id string) (model.Message, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if i := l.indexOf(id); i >= 0 {
		return l.msgs[i].Clone(), true
	}
	return model.Message{}, false
}

// Len returns the number of messages.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.msgs)
}

// PendingIDs returns the ids of messages still marked pending.
func (l *Log) PendingIDs() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var ids []string
	for _, m := range l.msgs {
		if m.Pending {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

// LastUserMessage returns the most recent message sent by the user.
func (l *Log) LastUserMessage() (model.Message, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for i := len(l.msgs) - 1; i >= 0; i-- {
		if l.msgs[i].IsUser() {
			return l.msgs[i].Clone(), true
		}
	}
	return model.Message{}, false
}

// indexOf must be called with l.mu held.
func (l *Log) indexOf(id string) int {
	return slices.IndexFunc(l.msgs, func(m model.Message) bool { return m.ID == id })
}

// commit persists next and, only on success, makes it the current list.
// Must be called with l.mu held.
func (l *Log) commit(next []model.Message) error {
	if next == nil {
		next = []model.Message{}
	}
	raw, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}
	if err := l.store.Set(kv.KeyHistory, string(raw)); err != nil {
		return fmt.Errorf("failed to persist history: %w", err)
	}
	l.msgs = next
	return nil
}
