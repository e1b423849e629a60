// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package viewport

import "testing"

func TestVisibleRange(t *testing.T) {
	tests := []struct {
		name                          string
		overscan                      int
		offset, height, rowH, count   int
		want                          Range
	}{
		{"no overscan", 0, 200, 400, 100, 10, Range{2, 5}},
		{"default overscan", 2, 200, 400, 100, 10, Range{0, 7}},
		{"overscan clamped at end", 2, 600, 400, 100, 10, Range{4, 9}},
		{"partial rows", 0, 150, 100, 100, 10, Range{1, 2}},
		{"top", 1, 0, 250, 100, 10, Range{0, 3}},
		{"short list", 2, 0, 400, 100, 3, Range{0, 2}},
		{"negative offset clamped", 0, -50, 200, 100, 10, Range{0, 1}},
		{"offset past end clamped", 0, 5000, 200, 100, 10, Range{8, 9}},
		{"zero height", 0, 300, 0, 100, 10, Range{3, 3}},
		{"negative overscan", -3, 200, 400, 100, 10, Range{2, 5}},
		{"empty list", 2, 0, 400, 100, 0, Range{0, -1}},
		{"zero row height", 2, 0, 400, 0, 10, Range{0, -1}},
		{"negative row height", 2, 0, 400, -5, 10, Range{0, -1}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := Window{Overscan: tc.overscan}
			got := w.VisibleRange(tc.offset, tc.height, tc.rowH, tc.count)
			if got != tc.want {
				t.Errorf("VisibleRange(%d, %d, %d, %d) = %+v, want %+v",
					tc.offset, tc.height, tc.rowH, tc.count, got, tc.want)
			}
		})
	}
}

func TestVisibleRange_CoversVisibleRowsWithinBounds(t *testing.T) {
	w := Window{Overscan: DefaultOverscan}
	r := w.VisibleRange(200, 400, 100, 10)

	for i := 2; i <= 5; i++ {
		if !r.Contains(i) {
			t.Errorf("range %+v missing visible row %d", r, i)
		}
	}
	if r.Start < 0 || r.End > 9 {
		t.Errorf("range %+v outside [0,9]", r)
	}
}

func TestVisibleRange_Deterministic(t *testing.T) {
	w := Window{Overscan: 2}
	first := w.VisibleRange(1234, 480, 80, 57)
	for i := 0; i < 10; i++ {
		if got := w.VisibleRange(1234, 480, 80, 57); got != first {
			t.Fatalf("call %d = %+v, want %+v", i, got, first)
		}
	}
}

func TestRange(t *testing.T) {
	if !(Range{0, -1}).Empty() || (Range{0, -1}).Len() != 0 {
		t.Error("Range{0,-1} should be empty")
	}
	r := Range{2, 5}
	if r.Empty() || r.Len() != 4 {
		t.Errorf("Range{2,5}: Empty=%v Len=%d", r.Empty(), r.Len())
	}
	if r.Contains(1) || !r.Contains(2) || !r.Contains(5) || r.Contains(6) {
		t.Error("Contains boundaries wrong")
	}
}

func TestScrollHelpers(t *testing.T) {
	tests := []struct {
		name string
		got  int
		want int
	}{
		{"index", ScrollToIndex(3, 100, 10), 300},
		{"index clamped high", ScrollToIndex(42, 100, 10), 900},
		{"index clamped low", ScrollToIndex(-1, 100, 10), 0},
		{"index empty", ScrollToIndex(3, 100, 0), 0},
		{"end", ScrollToEnd(10, 100, 400), 600},
		{"end short list", ScrollToEnd(3, 100, 400), 0},
		{"end empty", ScrollToEnd(0, 100, 400), 0},
		{"max offset", MaxOffset(10, 80, 400), 400},
	}
	for _, tc := range tests {
		if tc.got != tc.want {
			t.Errorf("%s = %d, want %d", tc.name, tc.got, tc.want)
		}
	}
}

func TestFollower_FollowsWhilePinned(t *testing.T) {
	f := NewFollower(Window{}, 1, 5)
	for n := 1; n <= 20; n++ {
		f.SetCount(n)
	}
	if f.Offset() != 15 {
		t.Errorf("Offset() = %d, want 15", f.Offset())
	}
	if !f.Pinned() || f.HasUnseen() {
		t.Errorf("Pinned=%v HasUnseen=%v", f.Pinned(), f.HasUnseen())
	}
	if r := f.Range(); r != (Range{15, 19}) {
		t.Errorf("Range() = %+v", r)
	}
}

func TestFollower_ScrolledUpFlagsUnseen(t *testing.T) {
	f := NewFollower(Window{}, 1, 5)
	f.SetCount(20)
	f.ScrollBy(-10)

	if f.Pinned() {
		t.Fatal("should unpin after scrolling up")
	}
	f.SetCount(21)
	if f.Offset() != 5 {
		t.Errorf("Offset() = %d, want 5 (unchanged)", f.Offset())
	}
	if !f.HasUnseen() {
		t.Error("HasUnseen() should be true after growth while scrolled up")
	}

	f.JumpToEnd()
	if f.Offset() != 16 || !f.Pinned() || f.HasUnseen() {
		t.Errorf("after JumpToEnd: offset=%d pinned=%v unseen=%v", f.Offset(), f.Pinned(), f.HasUnseen())
	}
}

func TestFollower_ScrollingToBottomRepins(t *testing.T) {
	f := NewFollower(Window{}, 1, 5)
	f.SetCount(20)
	f.ScrollBy(-3)
	f.SetCount(22)

	f.ScrollBy(100)
	if !f.Pinned() || f.HasUnseen() {
		t.Errorf("Pinned=%v HasUnseen=%v after scrolling to bottom", f.Pinned(), f.HasUnseen())
	}
	if f.Offset() != 17 {
		t.Errorf("Offset() = %d, want 17", f.Offset())
	}
}

func TestFollower_ShrinkAndResize(t *testing.T) {
	f := NewFollower(Window{}, 1, 5)
	f.SetCount(20)
	f.ScrollTo(2)

	f.SetCount(4)
	if f.Offset() != 0 || !f.Pinned() {
		t.Errorf("after shrink: offset=%d pinned=%v", f.Offset(), f.Pinned())
	}

	f.SetCount(30)
	f.Resize(10)
	if f.Offset() != 20 {
		t.Errorf("after resize: offset=%d, want 20", f.Offset())
	}

	f.ScrollToIndex(3)
	if f.Offset() != 3 || f.Pinned() {
		t.Errorf("after ScrollToIndex: offset=%d pinned=%v", f.Offset(), f.Pinned())
	}
}
