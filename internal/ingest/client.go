// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// DefaultTimeout bounds one ingestion. Agent replies can take minutes.
const DefaultTimeout = 10 * time.Minute

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// Transport sends an HTTP request. *http.Client satisfies it.
type Transport interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config holds endpoint settings.
type Config struct {
	// Endpoint is the assistant URL requests are POSTed to.
	Endpoint string

	// Timeout is used when Ingest is called with a zero timeout (default: 10m).
	Timeout time.Duration

	// Headers are added to every request.
	Headers map[string]string
}

// Request is one user turn.
type Request struct {
	UserText  string
	SessionID string
	// MessageID is the id of the user message, sent as user_id.
	MessageID string
}

// requestBody is the wire form. The session is repeated under every key
// the remote workflow might read.
type requestBody struct {
	ChatInput      string `json:"chatInput"`
	UserText       string `json:"userText"`
	UserID         string `json:"user_id,omitempty"`
	Session        string `json:"session"`
	SessionID      string `json:"sessionId"`
	ConversationID string `json:"conversationId"`
}

// Callbacks receive ingestion progress. Any of them may be nil. They run on
// the ingestion goroutine, one at a time. None starts once the goroutine
// has observed Handle.Cancel; one that passed its check concurrently with
// Cancel may still run, so callers keep their own staleness check.
type Callbacks struct {
	// OnUpdate receives every reinterpretation of the buffer so far.
	OnUpdate func(parts []string, sessionID string)
	// OnDone fires once when the stream ends cleanly.
	OnDone func()
	// OnError fires once on failure; err is an *Error.
	OnError func(kind ErrorKind, err error)
}

// =============================================================================
// CLIENT
// =============================================================================

// Client runs ingestions against one endpoint. It is safe for concurrent use.
type Client struct {
	cfg       Config
	transport Transport
	logger    *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTransport replaces the HTTP transport.
func WithTransport(t Transport) Option {
	return func(c *Client) {
		if t != nil {
			c.transport = t
		}
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a client. The default transport is an http.Client
// without its own timeout; the deadline lives in the request context.
func NewClient(cfg Config, opts ...Option) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	c := &Client{
		cfg:       cfg,
		transport: &http.Client{},
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the configured URL.
func (c *Client) Endpoint() string {
	return c.cfg.Endpoint
}

// =============================================================================
// HANDLE
// =============================================================================

// Handle controls one in-flight ingestion.
type Handle struct {
	cancel   context.CancelFunc
	canceled atomic.Bool
	done     chan struct{}
}

// Cancel aborts the ingestion and releases the response body. Callbacks stop
// once the ingestion goroutine observes the cancel; a Cancel made from
// inside a callback takes effect before the next one. Safe to call more
// than once.
func (h *Handle) Cancel() {
	h.canceled.Store(true)
	h.cancel()
}

// Canceled reports whether Cancel was called.
func (h *Handle) Canceled() bool {
	return h.canceled.Load()
}

// Wait blocks until the ingestion goroutine has returned.
func (h *Handle) Wait() {
	<-h.done
}

// Done is closed when the ingestion goroutine has returned.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// =============================================================================
// INGEST
// =============================================================================

// Ingest starts an ingestion in the background. A zero timeout uses the
// configured default.
func (c *Client) Ingest(ctx context.Context, req Request, cb Callbacks, timeout time.Duration) *Handle {
	if timeout <= 0 {
		timeout = c.cfg.Timeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	h := &Handle{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(h.done)
		defer cancel()
		c.run(runCtx, h, req, cb)
	}()
	return h
}

func (c *Client) run(ctx context.Context, h *Handle, req Request, cb Callbacks) {
	start := time.Now()
	log := c.logger.With(zap.String("message_id", req.MessageID))

	fail := func(err *Error) {
		if h.Canceled() {
			return
		}
		log.Warn("ingestion failed",
			zap.Stringer("kind", err.Kind),
			zap.Error(err),
			zap.Duration("elapsed", time.Since(start)))
		if cb.OnError != nil {
			cb.OnError(err.Kind, err)
		}
	}

	resp, err := c.send(ctx, req)
	if err != nil {
		fail(classify(ctx, "request failed", err))
		return
	}
	defer func() {
		if h.Canceled() {
			resp.Body.Close()
			return
		}
		drainAndClose(resp.Body)
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		fail(&Error{Kind: KindNetwork, Message: fmt.Sprintf("request failed with status %d", resp.StatusCode)})
		return
	}

	var buf strings.Builder
	chunks := 0
	for chunk, err := range Chunks(resp.Body) {
		if h.Canceled() {
			return
		}
		if err != nil {
			fail(classify(ctx, "failed to read reply", err))
			return
		}
		buf.WriteString(chunk)
		chunks++

		res := Normalize(buf.String())
		if cb.OnUpdate != nil {
			cb.OnUpdate(res.Parts, res.SessionID)
		}
	}

	// A deadline that fires between the last read and here still counts
	if err := ctx.Err(); err != nil {
		fail(classify(ctx, "failed to read reply", err))
		return
	}
	if h.Canceled() {
		return
	}

	log.Debug("ingestion complete",
		zap.Int("chunks", chunks),
		zap.Int("bytes", buf.Len()),
		zap.Duration("elapsed", time.Since(start)))
	if cb.OnDone != nil {
		cb.OnDone()
	}
}

func (c *Client) send(ctx context.Context, req Request) (*http.Response, error) {
	body, err := json.Marshal(requestBody{
		ChatInput:      req.UserText,
		UserText:       req.UserText,
		UserID:         req.MessageID,
		Session:        req.SessionID,
		SessionID:      req.SessionID,
		ConversationID: req.SessionID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range c.cfg.Headers {
		httpReq.Header.Set(k, v)
	}

	c.logger.Debug("sending request",
		zap.String("endpoint", c.cfg.Endpoint),
		zap.String("session_id", req.SessionID))
	return c.transport.Do(httpReq)
}

// classify maps a failure to an *Error using the context state first,
// since transports report deadline and cancellation in varied ways.
func classify(ctx context.Context, msg string, err error) *Error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return &Error{Kind: KindTimeout, Message: "request timed out", Cause: err}
	case errors.Is(ctx.Err(), context.Canceled):
		return &Error{Kind: KindCanceled, Message: "request canceled", Cause: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindTimeout, Message: "request timed out", Cause: err}
	default:
		return &Error{Kind: KindNetwork, Message: msg, Cause: err}
	}
}

// drainAndClose discards what is left of the body so the connection can be reused.
func drainAndClose(r io.ReadCloser) {
	io.Copy(io.Discard, io.LimitReader(r, 64<<10))
	r.Close()
}
