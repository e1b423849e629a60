// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package viewport

// Follower tracks a scroll position over a growing list. While pinned to
// the bottom it follows new rows; once the user scrolls up it stays put
// and flags unseen rows instead. Not safe for concurrent use; it belongs
// to the UI goroutine.
type Follower struct {
	window         Window
	rowHeight      int
	viewportHeight int

	offset int
	count  int
	pinned bool // Auto-scroll to bottom on new content
	unseen bool // Rows arrived while scrolled up
}

// NewFollower returns a follower pinned to the bottom of an empty list.
func NewFollower(w Window, rowHeight, viewportHeight int) *Follower {
	return &Follower{
		window:         w,
		rowHeight:      rowHeight,
		viewportHeight: viewportHeight,
		pinned:         true,
	}
}

// SetCount updates the number of rows.
func (f *Follower) SetCount(n int) {
	if n < 0 {
		n = 0
	}
	grew := n > f.count
	f.count = n

	if f.pinned {
		f.offset = f.maxOffset()
		return
	}
	f.offset = min(f.offset, f.maxOffset())
	if grew {
		f.unseen = true
	}
	if f.offset >= f.maxOffset() {
		f.pin()
	}
}

// Resize changes the viewport height, keeping the bottom in view if pinned.
func (f *Follower) Resize(viewportHeight int) {
	f.viewportHeight = max(viewportHeight, 0)
	if f.pinned {
		f.offset = f.maxOffset()
		return
	}
	f.offset = min(f.offset, f.maxOffset())
}

// ScrollBy moves the offset by delta. Reaching the bottom re-pins.
func (f *Follower) ScrollBy(delta int) {
	f.ScrollTo(f.offset + delta)
}

// ScrollTo sets the offset, clamped to the scrollable range.
func (f *Follower) ScrollTo(offset int) {
	f.offset = clamp(offset, 0, f.maxOffset())
	if f.offset >= f.maxOffset() {
		f.pin()
	} else {
		f.pinned = false
	}
}

// ScrollToIndex brings row i to the top of the viewport.
func (f *Follower) ScrollToIndex(i int) {
	f.ScrollTo(ScrollToIndex(i, f.rowHeight, f.count))
}

// JumpToEnd scrolls to the bottom, pins, and clears the unseen flag.
func (f *Follower) JumpToEnd() {
	f.offset = f.maxOffset()
	f.pin()
}

// Offset returns the current scroll offset.
func (f *Follower) Offset() int { return f.offset }

// Pinned reports whether new rows will scroll into view.
func (f *Follower) Pinned() bool { return f.pinned }

// HasUnseen reports whether rows arrived while scrolled up.
func (f *Follower) HasUnseen() bool { return f.unseen }

// Range returns the rows to render at the current offset.
func (f *Follower) Range() Range {
	return f.window.VisibleRange(f.offset, f.viewportHeight, f.rowHeight, f.count)
}

func (f *Follower) pin() {
	f.pinned = true
	f.unseen = false
}

func (f *Follower) maxOffset() int {
	return MaxOffset(f.count, f.rowHeight, f.viewportHeight)
}
