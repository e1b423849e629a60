// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package mockserver

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jeranaias/folio-chat/internal/ingest"
)

func post(t *testing.T, url, body string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(data)
}

func TestEveryShapeNormalizes(t *testing.T) {
	answer := "hello there friend"
	for _, shape := range Shapes {
		t.Run(shape, func(t *testing.T) {
			body, err := Encode(shape, answer, "sess-1")
			require.NoError(t, err)

			res := ingest.Normalize(string(body))
			require.Equal(t, answer, res.Text())
			switch shape {
			case ShapeString, ShapeText:
				require.Empty(t, res.SessionID)
			default:
				require.Equal(t, "sess-1", res.SessionID)
			}
		})
	}
}

func TestEncodeUnknownShape(t *testing.T) {
	_, err := Encode("xml", "a", "b")
	require.Error(t, err)
}

func TestChatRecordsAndEchoes(t *testing.T) {
	srv := New(Config{Reply: func(s string) string { return "re: " + s }}, nil)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	resp, body := post(t, ts.URL+"/chat", `{"chatInput":"hi","sessionId":"abc"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get("Content-Type"))

	res := ingest.Normalize(body)
	require.Equal(t, "re: hi", res.Text())
	require.Equal(t, "abc", res.SessionID)

	reqs := srv.Requests()
	require.Len(t, reqs, 1)
	require.Equal(t, "hi", reqs[0].ChatInput)
	require.Equal(t, "abc", reqs[0].SessionID)
}

func TestChatIssuesSession(t *testing.T) {
	ts := httptest.NewServer(New(Config{}, nil))
	defer ts.Close()

	_, body := post(t, ts.URL+"/chat", `{"chatInput":"hi"}`)
	require.NotEmpty(t, ingest.Normalize(body).SessionID)
}

func TestShapeQueryOverride(t *testing.T) {
	ts := httptest.NewServer(New(Config{Shape: ShapeOutput}, nil))
	defer ts.Close()

	resp, body := post(t, ts.URL+"/chat?shape=text", `{"chatInput":"x"}`)
	require.Contains(t, resp.Header.Get("Content-Type"), "text/plain")
	require.False(t, strings.HasPrefix(body, "{"))
}

func TestRotateCycles(t *testing.T) {
	srv := New(Config{Shape: ShapeRotate, Reply: func(string) string { return "same" }}, nil)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	for range Shapes {
		_, body := post(t, ts.URL+"/chat", `{"chatInput":"x"}`)
		require.Equal(t, "same", ingest.Normalize(body).Text())
	}
}

func TestChunkedReplyIsComplete(t *testing.T) {
	ts := httptest.NewServer(New(Config{Chunks: 5}, nil))
	defer ts.Close()

	_, body := post(t, ts.URL+"/chat", `{"chatInput":"split me"}`)
	require.Equal(t, EchoReply("split me"), ingest.Normalize(body).Text())
}

func TestBadBodyAndHealth(t *testing.T) {
	ts := httptest.NewServer(New(Config{}, nil))
	defer ts.Close()

	resp, _ := post(t, ts.URL+"/chat", `{nope`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSplitWordsRejoins(t *testing.T) {
	tests := []string{"", "one", "a b  c", "trailing "}
	for _, s := range tests {
		if got := strings.Join(splitWords(s), ""); got != s {
			t.Errorf("splitWords(%q) rejoined = %q", s, got)
		}
	}
}
