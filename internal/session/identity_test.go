// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/jeranaias/folio-chat/internal/kv"
)

func TestGetOrCreate_Stable(t *testing.T) {
	ids := New(kv.NewMemory())

	first, err := ids.GetOrCreate()
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	if _, err := uuid.Parse(first); err != nil {
		t.Errorf("id %q is not a UUID: %v", first, err)
	}

	for i := 0; i < 5; i++ {
		again, err := ids.GetOrCreate()
		if err != nil {
			t.Fatalf("GetOrCreate failed: %v", err)
		}
		if again != first {
			t.Errorf("call %d returned %q, want %q", i, again, first)
		}
	}
}

func TestGetOrCreate_SurvivesReload(t *testing.T) {
	store := kv.NewMemory()
	first, err := New(store).GetOrCreate()
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}

	reloaded := kv.Restore(store.Snapshot())
	again, err := New(reloaded).GetOrCreate()
	if err != nil {
		t.Fatalf("GetOrCreate after reload failed: %v", err)
	}
	if again != first {
		t.Errorf("after reload got %q, want %q", again, first)
	}
}

func TestGetOrCreate_FileReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")

	store, err := kv.OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile failed: %v", err)
	}
	first, err := New(store).GetOrCreate()
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	store.Close()

	store, err = kv.OpenFile(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer store.Close()
	if got := New(store).Current(); got != first {
		t.Errorf("Current() after reopen = %q, want %q", got, first)
	}
}

func TestClear(t *testing.T) {
	n := 0
	gen := func() string {
		n++
		return []string{"first", "second"}[n-1]
	}
	ids := New(kv.NewMemory(), WithGenerator(gen))

	if id, _ := ids.GetOrCreate(); id != "first" {
		t.Fatalf("got %q, want first", id)
	}
	if err := ids.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if ids.Current() != "" {
		t.Error("Current() should be empty after Clear")
	}
	if id, _ := ids.GetOrCreate(); id != "second" {
		t.Errorf("got %q after Clear, want second", id)
	}
}

func TestAdopt(t *testing.T) {
	ids := New(kv.NewMemory(), WithGenerator(func() string { return "local" }))
	if _, err := ids.GetOrCreate(); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name        string
		id          string
		wantChanged bool
		wantCurrent string
	}{
		{"empty ignored", "", false, "local"},
		{"remote replaces", "remote-1", true, "remote-1"},
		{"same ignored", "remote-1", false, "remote-1"},
		{"newer remote", "remote-2", true, "remote-2"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			changed, err := ids.Adopt(tc.id)
			if err != nil {
				t.Fatalf("Adopt failed: %v", err)
			}
			if changed != tc.wantChanged {
				t.Errorf("changed = %v, want %v", changed, tc.wantChanged)
			}
			if got := ids.Current(); got != tc.wantCurrent {
				t.Errorf("Current() = %q, want %q", got, tc.wantCurrent)
			}
		})
	}
}

func TestGetOrCreate_WriteError(t *testing.T) {
	store := kv.NewMemory()
	store.FailWrites = errors.New("quota exceeded")

	if _, err := New(store).GetOrCreate(); err == nil {
		t.Error("expected error when the store rejects writes")
	}
}
