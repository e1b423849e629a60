// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ingest

import (
	"errors"
	"io"
	"iter"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// chunkSize is the read buffer for one chunk.
const chunkSize = 4096

// Chunks yields the decoded text of r one read at a time. Multi-byte UTF-8
// sequences split across reads are held back until complete; invalid bytes
// become U+FFFD. A read error other than io.EOF is yielded once, last.
func Chunks(r io.Reader) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		decoded := transform.NewReader(r, unicode.UTF8.NewDecoder())
		buf := make([]byte, chunkSize)
		for {
			n, err := decoded.Read(buf)
			if n > 0 {
				if !yield(string(buf[:n]), nil) {
					return
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					yield("", err)
				}
				return
			}
		}
	}
}
