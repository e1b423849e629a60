// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"

	// roleLegacyModel is how older logs spelled the assistant role.
	roleLegacyModel = "model"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	default:
		return string(r)
	}
}

// UnmarshalJSON accepts "user", "assistant" and the legacy "model".
func (r *Role) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("role must be a string: %w", err)
	}
	switch s {
	case string(RoleUser):
		*r = RoleUser
	case string(RoleAssistant), roleLegacyModel:
		*r = RoleAssistant
	default:
		return fmt.Errorf("unknown role %q", s)
	}
	return nil
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// TimestampLayout is the display format stored in Message.Timestamp.
const TimestampLayout = "3:04 PM"

// PlaceholderText is shown in an assistant message until the first reply
// fragment arrives.
const PlaceholderText = "Processing your request..."

// Part is one text segment of a message body.
type Part struct {
	Text string `json:"text"`
}

// Message is a single chat entry.
type Message struct {
	ID        string `json:"id"`
	Role      Role   `json:"role"`
	Parts     []Part `json:"parts"`
	Timestamp string `json:"timestamp"`

	// Pending is true while the assistant reply is still streaming.
	Pending bool `json:"isPending"`

	// CompletedAt is stamped when a pending message is finalized.
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// NewID returns a fresh random message identifier.
func NewID() string {
	return uuid.NewString()
}

// FormatTimestamp renders t in the display layout used by the log.
func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// NewUserMessage creates a finalized user message.
func NewUserMessage(text string, now time.Time) Message {
	return Message{
		ID:        NewID(),
		Role:      RoleUser,
		Parts:     []Part{{Text: text}},
		Timestamp: FormatTimestamp(now),
	}
}

// NewPlaceholder creates the pending assistant message inserted on submit.
func NewPlaceholder(now time.Time) Message {
	return Message{
		ID:        NewID(),
		Role:      RoleAssistant,
		Parts:     []Part{{Text: PlaceholderText}},
		Timestamp: FormatTimestamp(now),
		Pending:   true,
	}
}

// PartsFromStrings wraps each string in a Part.
func PartsFromStrings(texts []string) []Part {
	parts := make([]Part, len(texts))
	for i, t := range texts {
		parts[i] = Part{Text: t}
	}
	return parts
}

// Text returns the message body with all parts concatenated.
func (m Message) Text() string {
	if len(m.Parts) == 1 {
		return m.Parts[0].Text
	}
	var b strings.Builder
	for _, p := range m.Parts {
		b.WriteString(p.Text)
	}
	return b.String()
}

// IsUser reports whether the message was sent by the user.
func (m Message) IsUser() bool {
	return m.Role == RoleUser
}

// Clone returns a deep copy so callers cannot mutate shared slices.
func (m Message) Clone() Message {
	c := m
	if m.Parts != nil {
		c.Parts = make([]Part, len(m.Parts))
		copy(c.Parts, m.Parts)
	}
	if m.CompletedAt != nil {
		t := *m.CompletedAt
		c.CompletedAt = &t
	}
	return c
}

// Validate reports whether a stored message is well formed.
func (m Message) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("message has no id")
	}
	if m.Role != RoleUser && m.Role != RoleAssistant {
		return fmt.Errorf("message %s: invalid role %q", m.ID, m.Role)
	}
	if !m.Pending && len(m.Parts) == 0 {
		return fmt.Errorf("message %s: finalized with no parts", m.ID)
	}
	return nil
}
