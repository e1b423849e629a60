// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestRoleUnmarshal(t *testing.T) {
	tests := []struct {
		in      string
		want    Role
		wantErr bool
	}{
		{`"user"`, RoleUser, false},
		{`"assistant"`, RoleAssistant, false},
		{`"model"`, RoleAssistant, false},
		{`"system"`, "", true},
		{`42`, "", true},
	}

	for _, tc := range tests {
		var r Role
		err := json.Unmarshal([]byte(tc.in), &r)
		if tc.wantErr {
			if err == nil {
				t.Errorf("Unmarshal(%s) expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("Unmarshal(%s) error: %v", tc.in, err)
			continue
		}
		if r != tc.want {
			t.Errorf("Unmarshal(%s) = %q, want %q", tc.in, r, tc.want)
		}
	}
}

func TestMessageWireForm(t *testing.T) {
	raw := `{"id":"m1","role":"model","parts":[{"text":"he"},{"text":"llo"}],"timestamp":"3:04 PM","isPending":true}`

	var m Message
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if m.Role != RoleAssistant {
		t.Errorf("Role = %q, want assistant", m.Role)
	}
	if !m.Pending {
		t.Error("Pending should be decoded from isPending")
	}
	if m.Text() != "hello" {
		t.Errorf("Text() = %q, want %q", m.Text(), "hello")
	}

	out, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(out, &fields); err != nil {
		t.Fatalf("Unmarshal map failed: %v", err)
	}
	if fields["role"] != "assistant" {
		t.Errorf("role written as %v, want assistant", fields["role"])
	}
	if _, ok := fields["completedAt"]; ok {
		t.Error("completedAt should be omitted when unset")
	}
}

func TestNewPlaceholder(t *testing.T) {
	now := time.Date(2025, 3, 1, 15, 4, 0, 0, time.UTC)
	p := NewPlaceholder(now)

	if !p.Pending {
		t.Error("placeholder should be pending")
	}
	if p.Role != RoleAssistant {
		t.Errorf("Role = %q, want assistant", p.Role)
	}
	if p.Text() != PlaceholderText {
		t.Errorf("Text() = %q", p.Text())
	}
	if p.Timestamp != "3:04 PM" {
		t.Errorf("Timestamp = %q, want 3:04 PM", p.Timestamp)
	}
}

func TestNewIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewID()
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}

func TestClone(t *testing.T) {
	done := time.Now()
	m := Message{ID: "a", Role: RoleUser, Parts: []Part{{Text: "x"}}, CompletedAt: &done}
	c := m.Clone()

	c.Parts[0].Text = "changed"
	*c.CompletedAt = done.Add(time.Hour)

	if m.Parts[0].Text != "x" {
		t.Error("Clone shares Parts with the original")
	}
	if !m.CompletedAt.Equal(done) {
		t.Error("Clone shares CompletedAt with the original")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		msg     Message
		wantErr bool
	}{
		{"ok", Message{ID: "a", Role: RoleUser, Parts: []Part{{Text: "x"}}}, false},
		{"pending empty ok", Message{ID: "a", Role: RoleAssistant, Pending: true}, false},
		{"no id", Message{Role: RoleUser, Parts: []Part{{Text: "x"}}}, true},
		{"bad role", Message{ID: "a", Role: "tool", Parts: []Part{{Text: "x"}}}, true},
		{"final empty", Message{ID: "a", Role: RoleAssistant}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.msg.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}
