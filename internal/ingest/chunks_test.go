// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ingest

import (
	"errors"
	"strings"
	"testing"
	"testing/iotest"
	"unicode/utf8"
)

func TestChunks_SplitMultibyte(t *testing.T) {
	text := "héllo 世界 👋"
	var got strings.Builder
	count := 0

	// One byte per read splits every multi-byte rune across reads
	for chunk, err := range Chunks(iotest.OneByteReader(strings.NewReader(text))) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !utf8.ValidString(chunk) {
			t.Errorf("chunk %q is not valid UTF-8", chunk)
		}
		got.WriteString(chunk)
		count++
	}

	if got.String() != text {
		t.Errorf("got %q, want %q", got.String(), text)
	}
	if count < 2 {
		t.Errorf("expected several chunks, got %d", count)
	}
}

func TestChunks_InvalidBytes(t *testing.T) {
	var got strings.Builder
	for chunk, err := range Chunks(strings.NewReader("ok\xffok")) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got.WriteString(chunk)
	}
	if got.String() != "ok\uFFFDok" {
		t.Errorf("got %q", got.String())
	}
}

func TestChunks_ReadError(t *testing.T) {
	boom := errors.New("connection reset")
	var gotErr error
	for _, err := range Chunks(iotest.ErrReader(boom)) {
		if err != nil {
			gotErr = err
		}
	}
	if !errors.Is(gotErr, boom) {
		t.Errorf("got %v, want %v", gotErr, boom)
	}
}

func TestChunks_StopEarly(t *testing.T) {
	r := iotest.OneByteReader(strings.NewReader("abcdef"))
	n := 0
	for range Chunks(r) {
		n++
		if n == 2 {
			break
		}
	}
	if n != 2 {
		t.Errorf("iterated %d times, want 2", n)
	}
}
