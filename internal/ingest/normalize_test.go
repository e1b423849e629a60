// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ingest

import (
	"reflect"
	"testing"
)

func TestNormalize_EquivalentShapes(t *testing.T) {
	inputs := []string{
		`{"output":"hi"}`,
		`{"parts":["h","i"]}`,
		`[{"message":"hi"}]`,
		`"hi"`,
	}
	for _, in := range inputs {
		res := Normalize(in)
		if res.Text() != "hi" {
			t.Errorf("Normalize(%s).Text() = %q, want %q", in, res.Text(), "hi")
		}
		if res.Raw {
			t.Errorf("Normalize(%s) fell back to raw", in)
		}
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    []string
		wantRaw bool
	}{
		{"parts of objects", `{"parts":[{"text":"a"},{"text":"b"}]}`, []string{"a", "b"}, false},
		{"parts object without text", `{"parts":[{"type":"image","url":"x"}]}`, []string{`{"type":"image","url":"x"}`}, false},
		{"parts object with empty text", `{"parts":[{"text":""}]}`, []string{`{"text":""}`}, false},
		{"parts number kept verbatim", `{"parts":[1.50]}`, []string{"1.50"}, false},
		{"messages", `{"messages":["one",{"text":"two"}]}`, []string{"one", "two"}, false},
		{"parts beats output", `{"output":"no","parts":["yes"]}`, []string{"yes"}, false},
		{"empty parts falls through", `{"parts":[],"messages":["m"]}`, []string{"m"}, false},
		{"empty messages falls through", `{"messages":[],"output":"o"}`, []string{"o"}, false},
		{"output beats message", `{"message":"no","output":"yes"}`, []string{"yes"}, false},
		{"non-string output skipped", `{"output":{"x":1},"message":"m"}`, []string{"m"}, false},
		{"first element only", `[{"output":"first"},{"output":"second"}]`, []string{"first"}, false},
		{"array of string", `["hi","ignored"]`, []string{"hi"}, false},
		{"single string array unwraps", `["hi"]`, []string{"hi"}, false},
		{"no html escaping", `{"parts":[{"html":"<b>"}]}`, []string{`{"html":"<b>"}`}, false},
		{"empty array", `[]`, []string{"[]"}, true},
		{"plain text", `hello there`, []string{"hello there"}, true},
		{"partial json", `{"output":"hel`, []string{`{"output":"hel`}, true},
		{"two values", `{"output":"a"}{"output":"b"}`, []string{`{"output":"a"}{"output":"b"}`}, true},
		{"null", `null`, []string{"null"}, true},
		{"number", `42`, []string{"42"}, true},
		{"unknown fields", `{"result":"x"}`, []string{`{"result":"x"}`}, true},
		{"empty buffer", ``, []string{""}, true},
		{"surrounding whitespace", "  {\"output\":\"ok\"}\n", []string{"ok"}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res := Normalize(tc.in)
			if !reflect.DeepEqual(res.Parts, tc.want) {
				t.Errorf("Parts = %q, want %q", res.Parts, tc.want)
			}
			if res.Raw != tc.wantRaw {
				t.Errorf("Raw = %v, want %v", res.Raw, tc.wantRaw)
			}
		})
	}
}

func TestNormalize_SessionID(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"sessionId", `{"output":"x","sessionId":"s1"}`, "s1"},
		{"session_id", `{"output":"x","session_id":"s2"}`, "s2"},
		{"session object id", `{"output":"x","session":{"id":"s3"}}`, "s3"},
		{"session object sessionId", `{"output":"x","session":{"sessionId":"s4"}}`, "s4"},
		{"conversation_id", `{"output":"x","conversation_id":"s5"}`, "s5"},
		{"chat_session_id", `{"output":"x","chat_session_id":"s6"}`, "s6"},
		{"precedence", `{"output":"x","chatSessionId":"late","sessionId":"early"}`, "early"},
		{"empty skipped", `{"output":"x","sessionId":"","conversationId":"c"}`, "c"},
		{"number skipped", `{"output":"x","sessionId":12,"session_id":"s"}`, "s"},
		{"nested meta", `{"output":"x","meta":{"sessionId":"m1"}}`, "m1"},
		{"deep meta", `{"output":"x","meta":{"meta":{"session":"m2"}}}`, "m2"},
		{"top level wins over meta", `{"output":"x","sessionId":"top","meta":{"sessionId":"m"}}`, "top"},
		{"array first element", `[{"output":"x","sessionId":"a1"},{"sessionId":"a2"}]`, "a1"},
		{"raw reply keeps session", `{"sessionId":"only"}`, "only"},
		{"none", `{"output":"x"}`, ""},
		{"string reply", `"hi"`, ""},
		{"not json", `sessionId: nope`, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Normalize(tc.in).SessionID; got != tc.want {
				t.Errorf("SessionID = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestNormalize_ProgressiveBuffer(t *testing.T) {
	// Each prefix of a streamed reply normalizes without error; the
	// complete buffer yields the structured content.
	full := `{"output":"hello world","sessionId":"abc"}`
	for i := 1; i < len(full); i++ {
		res := Normalize(full[:i])
		if len(res.Parts) == 0 {
			t.Fatalf("prefix %d produced no parts", i)
		}
	}
	res := Normalize(full)
	if res.Text() != "hello world" || res.SessionID != "abc" {
		t.Errorf("full buffer = %+v", res)
	}
}
