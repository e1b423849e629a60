// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jeranaias/folio-chat/internal/config"
	"github.com/jeranaias/folio-chat/internal/engine"
	"github.com/jeranaias/folio-chat/internal/kv"
	"github.com/jeranaias/folio-chat/internal/mockserver"
)

// env isolates HOME and starts a mock assistant. It returns the common
// flags for a file-backed store in the temp dir.
func env(t *testing.T) []string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, k := range []string{
		"FOLIO_ENDPOINT", "FOLIO_TIMEOUT_SECS", "FOLIO_STORE_BACKEND", "FOLIO_STORE_PATH",
		"FOLIO_REDIS_ADDR", "FOLIO_REDIS_PASSWORD", "FOLIO_LOG_LEVEL",
	} {
		t.Setenv(k, "")
	}

	ts := httptest.NewServer(mockserver.New(mockserver.Config{}, nil))
	t.Cleanup(ts.Close)

	return []string{
		"--endpoint", ts.URL + "/chat",
		"--store-backend", "file",
		"--store-path", filepath.Join(home, "store.json"),
	}
}

// run executes the CLI with args and returns stdout and stderr.
func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	root := NewRootCommand()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetIn(strings.NewReader(""))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func decodeData(t *testing.T, out string, into interface{}) JSONResponse {
	t.Helper()
	var resp JSONResponse
	resp.Data = into
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	return resp
}

func TestAsk_PrintsReply(t *testing.T) {
	flags := env(t)

	stdout, _, err := run(t, append([]string{"ask", "what", "do", "you", "build?"}, flags...)...)
	require.NoError(t, err)
	require.Contains(t, stdout, mockserver.EchoReply("what do you build?"))
}

func TestAsk_JSON(t *testing.T) {
	flags := env(t)

	stdout, _, err := run(t, append([]string{"ask", "--json", "hello"}, flags...)...)
	require.NoError(t, err)

	var res askResult
	resp := decodeData(t, stdout, &res)
	require.True(t, resp.Success)
	require.Equal(t, "ask", resp.Command)
	require.Equal(t, "hello", res.Question.Text)
	require.Equal(t, "user", res.Question.Role)
	require.Equal(t, mockserver.EchoReply("hello"), res.Reply.Text)
	require.False(t, res.Reply.Pending)
	require.NotEmpty(t, res.SessionID)
}

func TestCommands_ShareStore(t *testing.T) {
	flags := env(t)

	_, _, err := run(t, append([]string{"ask", "first"}, flags...)...)
	require.NoError(t, err)

	stdout, _, err := run(t, append([]string{"history", "--json"}, flags...)...)
	require.NoError(t, err)
	var msgs []messageJSON
	decodeData(t, stdout, &msgs)
	require.Len(t, msgs, 2)
	require.Equal(t, "first", msgs[0].Text)
	require.Equal(t, "assistant", msgs[1].Role)

	stdout, _, err = run(t, append([]string{"history", "--json", "--limit", "1"}, flags...)...)
	require.NoError(t, err)
	msgs = nil
	decodeData(t, stdout, &msgs)
	require.Len(t, msgs, 1)
	require.Equal(t, "assistant", msgs[0].Role)

	stdout, _, err = run(t, append([]string{"status", "--json"}, flags...)...)
	require.NoError(t, err)
	var info statusInfo
	decodeData(t, stdout, &info)
	require.Equal(t, 2, info.Messages)
	require.Equal(t, "file", info.StoreBackend)
	require.Equal(t, "active", info.GuardState)
	require.NotEmpty(t, info.SessionID)
	require.Equal(t, "first", info.LastQuestion)

	_, _, err = run(t, append([]string{"clear", "--yes"}, flags...)...)
	require.NoError(t, err)

	stdout, _, err = run(t, append([]string{"status", "--json"}, flags...)...)
	require.NoError(t, err)
	info = statusInfo{}
	decodeData(t, stdout, &info)
	require.Zero(t, info.Messages)
	require.Empty(t, info.SessionID)
}

func TestHistory_Plain(t *testing.T) {
	flags := env(t)

	stdout, _, err := run(t, append([]string{"history"}, flags...)...)
	require.NoError(t, err)
	require.Contains(t, stdout, "No messages yet.")

	_, _, err = run(t, append([]string{"ask", "hi"}, flags...)...)
	require.NoError(t, err)

	stdout, _, err = run(t, append([]string{"history"}, flags...)...)
	require.NoError(t, err)
	require.Contains(t, stdout, "You")
	require.Contains(t, stdout, "Assistant")
	require.Contains(t, stdout, "hi")
}

func TestClear_RequiresConfirmationWithoutTTY(t *testing.T) {
	if IsTTY() {
		t.Skip("stdin is a terminal")
	}
	flags := env(t)

	_, _, err := run(t, append([]string{"clear"}, flags...)...)
	require.ErrorIs(t, err, ErrNotConfirmed)
}

func TestStatus_Plain(t *testing.T) {
	flags := env(t)

	stdout, _, err := run(t, append([]string{"status"}, flags...)...)
	require.NoError(t, err)
	require.Contains(t, stdout, "Endpoint:")
	require.Contains(t, stdout, "(none yet)")
	require.Contains(t, stdout, "active (0 violations)")
}

func TestInvalidFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"bad backend", []string{"status", "--store-backend", "floppy"}},
		{"bad endpoint", []string{"status", "--endpoint", "not a url"}},
		{"bad log level", []string{"status", "--store-backend", "memory", "--log-level", "loud"}},
		{"missing question", []string{"ask"}},
		{"bad mock shape", []string{"mock-server", "--shape", "xml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env(t)
			if _, _, err := run(t, tt.args...); err == nil {
				t.Errorf("%v: expected error", tt.args)
			}
		})
	}
}

func TestEngineOptions(t *testing.T) {
	cfg := config.Default()
	cfg.Endpoint.URL = "http://example.test/chat"
	cfg.Endpoint.TimeoutSecs = 30
	cfg.Guard.MinIntervalMs = 250
	cfg.Guard.BanThreshold = 4
	cfg.Guard.BanDurationSecs = 60
	cfg.Store.MaxMessages = 50
	cfg.Viewport = config.ViewportConfig{Overscan: 3, RowHeight: 40, Height: 200}

	opts := engineOptions(cfg)
	require.Equal(t, "http://example.test/chat", opts.Endpoint)
	require.Equal(t, 30*time.Second, opts.Timeout)
	require.Equal(t, 250*time.Millisecond, opts.Guard.MinInterval)
	require.Equal(t, 4, opts.Guard.BanThreshold)
	require.Equal(t, time.Minute, opts.Guard.BanDuration)
	require.Equal(t, 50, opts.MaxMessages)
	require.Equal(t, 3, opts.Overscan)
	require.Equal(t, 40, opts.RowHeight)
	require.Equal(t, 200, opts.ViewportHeight)
}

func TestLoadConfig_BackendFlagResetsPath(t *testing.T) {
	env(t)

	g := &globalFlags{backend: "SQLite"}
	cfg, err := g.loadConfig(io.Discard)
	require.NoError(t, err)
	require.Equal(t, kv.BackendSQLite, cfg.Store.Backend)
	require.Equal(t, config.DefaultStorePath(kv.BackendSQLite), cfg.Store.Path)

	g = &globalFlags{backend: "memory"}
	cfg, err = g.loadConfig(io.Discard)
	require.NoError(t, err)
	require.Empty(t, cfg.Store.Path)
}

// scriptedInput feeds the REPL a fixed list of lines.
type scriptedInput struct {
	lines   []string
	history []string
}

func (s *scriptedInput) Prompt(string) (string, error) {
	if len(s.lines) == 0 {
		return "", io.EOF
	}
	line := s.lines[0]
	s.lines = s.lines[1:]
	return line, nil
}

func (s *scriptedInput) AppendHistory(item string) { s.history = append(s.history, item) }
func (s *scriptedInput) Close() error              { return nil }

func newTestRepl(t *testing.T, lines ...string) (*repl, *bytes.Buffer, *scriptedInput) {
	t.Helper()
	ts := httptest.NewServer(mockserver.New(mockserver.Config{}, nil))
	t.Cleanup(ts.Close)

	opts := engine.DefaultOptions()
	opts.Endpoint = ts.URL + "/chat"
	opts.Guard.MinInterval = time.Nanosecond
	eng, err := engine.New(engine.Deps{Store: kv.NewMemory()}, opts)
	require.NoError(t, err)
	t.Cleanup(func() { eng.Close() })

	events, unsubscribe := eng.Subscribe()
	t.Cleanup(unsubscribe)
	require.NoError(t, eng.Start())

	in := &scriptedInput{lines: lines}
	var out bytes.Buffer
	return &repl{
		eng:    eng,
		in:     in,
		out:    &out,
		errOut: &out,
		events: events,
		logger: zap.NewNop(),
	}, &out, in
}

func TestRepl_Conversation(t *testing.T) {
	r, out, in := newTestRepl(t, "hello there", "", "/history", "/bogus", "quit", "never read")

	require.NoError(t, r.run(context.Background()))
	require.Contains(t, out.String(), mockserver.EchoReply("hello there"))
	require.Contains(t, out.String(), "unknown command /bogus")
	require.Equal(t, []string{"hello there", "/history", "/bogus", "quit"}, in.history)
	require.Len(t, r.eng.Messages(), 2)
	require.Equal(t, []string{"never read"}, in.lines)
}

func TestRepl_Commands(t *testing.T) {
	r, out, _ := newTestRepl(t, "one", "/delete", "/delete", "/delete", "two", "/clear")

	require.NoError(t, r.run(context.Background()))
	require.Empty(t, r.eng.Messages())
	require.Contains(t, out.String(), "Nothing to delete.")
	require.Contains(t, out.String(), "Conversation cleared.")
}

func TestRepl_QuitCommand(t *testing.T) {
	r, _, in := newTestRepl(t, "/quit", "hello")

	require.NoError(t, r.run(context.Background()))
	require.Empty(t, r.eng.Messages())
	require.Equal(t, []string{"hello"}, in.lines)
}

func TestRepl_ClosedEngine(t *testing.T) {
	r, _, _ := newTestRepl(t, "hello")
	require.NoError(t, r.eng.Close())

	err := r.run(context.Background())
	require.True(t, errors.Is(err, engine.ErrClosed))
}

func TestServeUntilDone_Shutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	root := NewRootCommand()
	root.SetArgs([]string{"mock-server", "--addr", "127.0.0.1:0"})
	var stdout bytes.Buffer
	root.SetOut(&stdout)
	go func() { done <- root.ExecuteContext(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("mock server did not shut down")
	}
}

func TestConfigCommands(t *testing.T) {
	flags := env(t)
	path := filepath.Join(t.TempDir(), "folio.toml")

	stdout, _, err := run(t, "config", "path", "--config", path)
	require.NoError(t, err)
	require.Equal(t, path, strings.TrimSpace(stdout))

	_, _, err = run(t, "config", "init", "--config", path)
	require.NoError(t, err)

	_, _, err = run(t, "config", "init", "--config", path)
	require.ErrorContains(t, err, "already exists")

	_, _, err = run(t, "config", "init", "--config", path, "--force")
	require.NoError(t, err)

	stdout, _, err = run(t, "config", "check", "--config", path)
	require.NoError(t, err)
	require.Contains(t, stdout, "OK")

	stdout, _, err = run(t, append([]string{"config", "show", "--config", path}, flags...)...)
	require.NoError(t, err)
	var shown config.Config
	require.NoError(t, json.Unmarshal([]byte(stdout), &shown))
	require.Equal(t, "file", shown.Store.Backend)
	require.True(t, strings.HasSuffix(shown.Endpoint.URL, "/chat"))
}

func TestConfigCheck_ReportsInvalidFields(t *testing.T) {
	env(t)
	path := filepath.Join(t.TempDir(), "folio.toml")
	require.NoError(t, os.WriteFile(path, []byte("[guard]\nban_threshold = -1\n"), 0600))

	stdout, _, err := run(t, "config", "check", "--config", path)
	require.Error(t, err)
	require.Contains(t, stdout, "Invalid")
	require.Contains(t, stdout, "guard.ban_threshold")
}
