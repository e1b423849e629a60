// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package viewport

// DefaultOverscan is the number of extra rows rendered above and below the
// visible ones.
const DefaultOverscan = 2

// Range is an inclusive span of row indices. End < Start means empty.
type Range struct {
	Start int
	End   int
}

// Empty reports whether the range holds no rows.
func (r Range) Empty() bool {
	return r.End < r.Start
}

// Len returns the number of rows in the range.
func (r Range) Len() int {
	if r.Empty() {
		return 0
	}
	return r.End - r.Start + 1
}

// Contains reports whether row i is in the range.
func (r Range) Contains(i int) bool {
	return i >= r.Start && i <= r.End
}

var emptyRange = Range{Start: 0, End: -1}

// Window is the virtualization calculator.
type Window struct {
	// Overscan rows are added on each side of the visible rows. Negative
	// values count as zero.
	Overscan int
}

// VisibleRange returns the rows intersecting [scrollOffset,
// scrollOffset+viewportHeight), widened by Overscan on each side and
// clamped to [0, itemCount-1]. An offset outside the scrollable range is
// clamped first. An empty list or a non-positive row height gives an
// empty range.
func (w Window) VisibleRange(scrollOffset, viewportHeight, rowHeight, itemCount int) Range {
	if itemCount <= 0 || rowHeight <= 0 {
		return emptyRange
	}
	if viewportHeight < 0 {
		viewportHeight = 0
	}

	offset := clamp(scrollOffset, 0, MaxOffset(itemCount, rowHeight, viewportHeight))

	first := offset / rowHeight
	last := first
	if viewportHeight > 0 {
		last = (offset + viewportHeight - 1) / rowHeight
	}

	overscan := max(w.Overscan, 0)
	return Range{
		Start: clamp(first-overscan, 0, itemCount-1),
		End:   clamp(last+overscan, 0, itemCount-1),
	}
}

// ScrollToIndex returns the offset that puts row index at the top of the
// viewport. The index is clamped to the list.
func ScrollToIndex(index, rowHeight, itemCount int) int {
	if itemCount <= 0 || rowHeight <= 0 {
		return 0
	}
	return clamp(index, 0, itemCount-1) * rowHeight
}

// ScrollToEnd returns the offset that shows the last row at the bottom of
// the viewport.
func ScrollToEnd(itemCount, rowHeight, viewportHeight int) int {
	return MaxOffset(itemCount, rowHeight, viewportHeight)
}

// MaxOffset is the largest useful scroll offset: max(0, content - viewport).
func MaxOffset(itemCount, rowHeight, viewportHeight int) int {
	if itemCount <= 0 || rowHeight <= 0 {
		return 0
	}
	return max(0, itemCount*rowHeight-viewportHeight)
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	return min(max(v, lo), hi)
}
