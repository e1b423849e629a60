// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package viewport computes which slice of a fixed-row-height list should
// be rendered for a given scroll position.
//
// Window holds the pure index math: it has no hidden state, so identical
// inputs always give identical output. Follower wraps it with the
// stateful "stick to the bottom" behaviour a chat view needs: new rows
// scroll into view while the user is at the bottom, and raise a "new
// messages" flag when they have scrolled up.
//
// Offsets and heights share one unit (pixels, terminal lines, ...).
//
// # Usage
//
//	w := viewport.Window{Overscan: 2}
//	r := w.VisibleRange(200, 400, 100, 10) // rows 0..7: 2..5 visible plus overscan
//	for i := r.Start; i <= r.End; i++ {
//	    render(items[i])
//	}
package viewport
