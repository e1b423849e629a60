// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"
)

// Result is the normalized form of a reply buffer.
type Result struct {
	// Parts is never empty.
	Parts []string

	// SessionID is the remote session identifier, if the reply carried one.
	SessionID string

	// Raw is true when the buffer could not be interpreted and Parts holds
	// the buffer text unchanged.
	Raw bool
}

// Text returns all parts concatenated.
func (r Result) Text() string {
	return strings.Join(r.Parts, "")
}

// sessionKeys are checked in order; the first usable value wins.
var sessionKeys = []string{
	"sessionId",
	"session_id",
	"session",
	"conversationId",
	"conversation_id",
	"chatSessionId",
	"chat_session_id",
}

// Normalize interprets buffer as a reply. It never fails: anything it
// cannot make sense of is returned as raw text.
//
// Precedence, after taking the first element of a top-level array:
// "parts" (non-empty array), "messages" (non-empty array), "output"
// (string), "message" (string), the value itself if it is a string, and
// finally the raw buffer.
func Normalize(buffer string) Result {
	raw := Result{Parts: []string{buffer}, Raw: true}

	value, ok := decodeJSON(buffer)
	if !ok {
		return raw
	}

	if arr, isArr := value.([]any); isArr {
		if len(arr) == 0 {
			return raw
		}
		value = arr[0]
	}

	switch v := value.(type) {
	case string:
		return Result{Parts: []string{v}}
	case map[string]any:
		res := Result{SessionID: extractSessionID(v)}
		if parts := textsOf(v["parts"]); len(parts) > 0 {
			res.Parts = parts
		} else if parts := textsOf(v["messages"]); len(parts) > 0 {
			res.Parts = parts
		} else if s, ok := v["output"].(string); ok {
			res.Parts = []string{s}
		} else if s, ok := v["message"].(string); ok {
			res.Parts = []string{s}
		} else {
			res.Parts = raw.Parts
			res.Raw = true
		}
		return res
	default:
		return raw
	}
}

// decodeJSON parses exactly one JSON value. Numbers are kept as
// json.Number so re-encoding preserves their spelling.
func decodeJSON(buffer string) (any, bool) {
	dec := json.NewDecoder(strings.NewReader(buffer))
	dec.UseNumber()

	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, false
	}
	// Trailing data means the stream is not one complete value yet
	var extra any
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return nil, false
	}
	return value, true
}

// textsOf maps an array to one string per element: strings as-is, objects
// by their non-empty "text" field, anything else by its JSON encoding.
// It returns nil for anything that is not an array.
func textsOf(v any) []string {
	arr, ok := v.([]any)
	if !ok || len(arr) == 0 {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, elem := range arr {
		switch e := elem.(type) {
		case string:
			out = append(out, e)
		case map[string]any:
			if text, ok := e["text"].(string); ok && text != "" {
				out = append(out, text)
			} else {
				out = append(out, encodeJSON(e))
			}
		default:
			out = append(out, encodeJSON(e))
		}
	}
	return out
}

func encodeJSON(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return ""
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

// extractSessionID looks for a session identifier in obj, then in obj["meta"].
func extractSessionID(obj map[string]any) string {
	for _, key := range sessionKeys {
		switch v := obj[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case map[string]any:
			if id, ok := v["id"].(string); ok && id != "" {
				return id
			}
			if id, ok := v["sessionId"].(string); ok && id != "" {
				return id
			}
		}
	}
	if meta, ok := obj["meta"].(map[string]any); ok {
		return extractSessionID(meta)
	}
	return ""
}
