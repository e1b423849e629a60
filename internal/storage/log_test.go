// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/jeranaias/folio-chat/internal/kv"
	"github.com/jeranaias/folio-chat/internal/model"
)

func msg(id string, role model.Role, text string) model.Message {
	return model.Message{
		ID:        id,
		Role:      role,
		Parts:     []model.Part{{Text: text}},
		Timestamp: "3:04 PM",
	}
}

func ids(msgs []model.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

func TestAppendPreservesOrder(t *testing.T) {
	l := NewLog(kv.NewMemory())

	for i := 0; i < 5; i++ {
		if err := l.Append(msg(fmt.Sprintf("m%d", i), model.RoleUser, "x")); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	got := ids(l.All())
	want := []string{"m0", "m1", "m2", "m3", "m4"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("All() ids = %v, want %v", got, want)
	}
}

func TestAppendDuplicateID(t *testing.T) {
	l := NewLog(kv.NewMemory())
	if err := l.Append(msg("a", model.RoleUser, "x")); err != nil {
		t.Fatal(err)
	}
	err := l.Append(msg("a", model.RoleUser, "y"))
	if !errors.Is(err, ErrDuplicateID) {
		t.Errorf("expected ErrDuplicateID, got %v", err)
	}
	if l.Len() != 1 {
		t.Errorf("Len() = %d, want 1", l.Len())
	}
}

func TestPersistsOnEveryMutation(t *testing.T) {
	store := kv.NewMemory()
	l := NewLog(store)

	l.Append(msg("a", model.RoleUser, "hi"))
	l.Append(model.Message{ID: "b", Role: model.RoleAssistant, Pending: true, Parts: []model.Part{{Text: model.PlaceholderText}}})
	l.UpdateByID("b", Patch{Parts: []model.Part{{Text: "hello"}}, Pending: Bool(false)})

	reloaded := NewLog(kv.Restore(store.Snapshot()))
	if err := reloaded.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	got, ok := reloaded.Get("b")
	if !ok {
		t.Fatal("message b missing after reload")
	}
	if got.Text() != "hello" || got.Pending {
		t.Errorf("reloaded b = %+v", got)
	}
	if reloaded.Len() != 2 {
		t.Errorf("Len() = %d, want 2", reloaded.Len())
	}
}

func TestUpdateByID(t *testing.T) {
	l := NewLog(kv.NewMemory())
	l.Append(model.Message{ID: "p", Role: model.RoleAssistant, Pending: true})

	changed, err := l.UpdateByID("missing", Patch{Pending: Bool(false)})
	if err != nil || changed {
		t.Errorf("update of missing id: changed=%v err=%v", changed, err)
	}

	_, err = l.UpdateByID("p", Patch{Pending: Bool(false)})
	if !errors.Is(err, ErrEmptyParts) {
		t.Errorf("finalizing without parts: got %v, want ErrEmptyParts", err)
	}

	done := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	changed, err = l.UpdateByID("p", Patch{
		Parts:       model.PartsFromStrings([]string{"a", "b"}),
		Pending:     Bool(false),
		CompletedAt: &done,
	})
	if err != nil || !changed {
		t.Fatalf("UpdateByID: changed=%v err=%v", changed, err)
	}

	got, _ := l.Get("p")
	if got.Text() != "ab" || got.Pending || got.CompletedAt == nil || !got.CompletedAt.Equal(done) {
		t.Errorf("after update: %+v", got)
	}
}

func TestDeleteByID(t *testing.T) {
	l := NewLog(kv.NewMemory())
	l.Append(msg("a", model.RoleUser, "1"))
	l.Append(msg("b", model.RoleAssistant, "2"))
	l.Append(msg("c", model.RoleUser, "3"))

	removed, err := l.DeleteByID("b")
	if err != nil || !removed {
		t.Fatalf("DeleteByID: removed=%v err=%v", removed, err)
	}
	for _, m := range l.All() {
		if m.ID == "b" {
			t.Error("deleted id still returned by All()")
		}
	}
	if _, ok := l.Get("b"); ok {
		t.Error("deleted id still returned by Get()")
	}

	removed, err = l.DeleteByID("b")
	if err != nil || removed {
		t.Errorf("second delete: removed=%v err=%v", removed, err)
	}
}

func TestClear(t *testing.T) {
	store := kv.NewMemory()
	l := NewLog(store)
	l.Append(msg("a", model.RoleUser, "1"))

	if err := l.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if len(l.All()) != 0 {
		t.Error("All() not empty after Clear")
	}
	if _, ok, _ := store.Get(kv.KeyHistory); ok {
		t.Error("history key still present after Clear")
	}
}

func TestAllIsACopy(t *testing.T) {
	l := NewLog(kv.NewMemory())
	l.Append(msg("a", model.RoleUser, "original"))

	first := l.All()
	first[0].Parts[0].Text = "mutated"

	if got := l.All()[0].Text(); got != "original" {
		t.Errorf("All() exposed internal state: %q", got)
	}
}

func TestRollbackOnWriteError(t *testing.T) {
	store := kv.NewMemory()
	l := NewLog(store)
	l.Append(msg("a", model.RoleUser, "1"))

	store.FailWrites = errors.New("quota exceeded")

	if err := l.Append(msg("b", model.RoleUser, "2")); err == nil {
		t.Error("Append should fail")
	}
	if _, err := l.DeleteByID("a"); err == nil {
		t.Error("DeleteByID should fail")
	}
	if _, err := l.UpdateByID("a", Patch{Parts: []model.Part{{Text: "x"}}}); err == nil {
		t.Error("UpdateByID should fail")
	}

	all := l.All()
	if len(all) != 1 || all[0].ID != "a" || all[0].Text() != "1" {
		t.Errorf("in-memory state changed after failed writes: %+v", all)
	}
}

func TestMaxMessagesPrunesOldest(t *testing.T) {
	l := NewLog(kv.NewMemory(), WithMaxMessages(3))
	for i := 0; i < 5; i++ {
		l.Append(msg(fmt.Sprintf("m%d", i), model.RoleUser, "x"))
	}

	got := ids(l.All())
	want := []string{"m2", "m3", "m4"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("All() ids = %v, want %v", got, want)
	}
}

func TestLoadCorruptHistory(t *testing.T) {
	store := kv.NewMemory()
	store.Set(kv.KeyHistory, "[{broken")

	l := NewLog(store)
	if err := l.Load(); err != nil {
		t.Fatalf("Load should tolerate corrupt history: %v", err)
	}
	if l.Len() != 0 {
		t.Errorf("Len() = %d, want 0", l.Len())
	}
}

func TestLoadDropsInvalidAndDuplicates(t *testing.T) {
	store := kv.NewMemory()
	store.Set(kv.KeyHistory, `[
		{"id":"a","role":"user","parts":[{"text":"1"}],"timestamp":"1:00 PM"},
		{"id":"a","role":"user","parts":[{"text":"dup"}],"timestamp":"1:00 PM"},
		{"id":"","role":"user","parts":[{"text":"no id"}]},
		{"id":"b","role":"model","parts":[{"text":"2"}],"timestamp":"1:01 PM"}
	]`)

	l := NewLog(store)
	if err := l.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	got := ids(l.All())
	if fmt.Sprint(got) != "[a b]" {
		t.Errorf("ids = %v, want [a b]", got)
	}
	if b, _ := l.Get("b"); b.Role != model.RoleAssistant {
		t.Errorf("legacy role decoded as %q", b.Role)
	}
}

func TestPendingAndLastUser(t *testing.T) {
	l := NewLog(kv.NewMemory())
	l.Append(msg("u1", model.RoleUser, "q1"))
	l.Append(msg("a1", model.RoleAssistant, "r1"))
	l.Append(msg("u2", model.RoleUser, "q2"))
	l.Append(model.Message{ID: "a2", Role: model.RoleAssistant, Pending: true})

	if p := l.PendingIDs(); len(p) != 1 || p[0] != "a2" {
		t.Errorf("PendingIDs() = %v", p)
	}
	last, ok := l.LastUserMessage()
	if !ok || last.ID != "u2" {
		t.Errorf("LastUserMessage() = %v, %v", last.ID, ok)
	}
}

func TestFileBackedLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	store, err := kv.OpenFile(path)
	if err != nil {
		t.Fatal(err)
	}
	l := NewLog(store)
	l.Append(msg("a", model.RoleUser, "persisted"))
	store.Close()

	store, err = kv.OpenFile(path)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	l = NewLog(store)
	if err := l.Load(); err != nil {
		t.Fatal(err)
	}
	if m, ok := l.Get("a"); !ok || m.Text() != "persisted" {
		t.Errorf("Get(a) = %+v, %v", m, ok)
	}
}
