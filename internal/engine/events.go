// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

import (
	"sync"

	"go.uber.org/zap"

	"github.com/jeranaias/folio-chat/internal/guard"
)

// EventKind identifies what changed.
type EventKind int

const (
	// EventMessagesChanged: the log was modified.
	EventMessagesChanged EventKind = iota
	// EventNotice: a transient notice for the user.
	EventNotice
	// EventReplyFinished: the in-flight reply was finalized or canceled.
	EventReplyFinished
)

// String returns the kind name.
func (k EventKind) String() string {
	switch k {
	case EventMessagesChanged:
		return "messages"
	case EventNotice:
		return "notice"
	case EventReplyFinished:
		return "reply_finished"
	default:
		return "unknown"
	}
}

// Event is delivered to subscribers.
type Event struct {
	Kind EventKind
	// MessageID is the affected message, when there is exactly one.
	MessageID string
	Notice    guard.Notice
}

// subscriberBuffer is the per-subscriber queue length. A subscriber that
// falls further behind misses events; state can always be re-read.
const subscriberBuffer = 64

// broker fans events out to subscribers without blocking publishers.
type broker struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan Event
	closed bool
	logger *zap.Logger
}

func newBroker(logger *zap.Logger) *broker {
	return &broker{subs: make(map[int]chan Event), logger: logger}
}

func (b *broker) subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
}

func (b *broker) publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.logger.Debug("subscriber full, dropping event", zap.Stringer("kind", ev.Kind))
		}
	}
}

func (b *broker) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

// Subscribe returns a channel of change events and a function that ends
// the subscription. The channel is closed by the returned function or by
// Close.
func (e *Engine) Subscribe() (<-chan Event, func()) {
	return e.events.subscribe()
}

func (e *Engine) publish(ev Event) {
	e.events.publish(ev)
}

func (e *Engine) publishNotice(n guard.Notice) {
	e.events.publish(Event{Kind: EventNotice, Notice: n})
}
