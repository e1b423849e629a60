// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/folio-chat/internal/clock"
	"github.com/jeranaias/folio-chat/internal/guard"
	"github.com/jeranaias/folio-chat/internal/ingest"
	"github.com/jeranaias/folio-chat/internal/kv"
	"github.com/jeranaias/folio-chat/internal/model"
	"github.com/jeranaias/folio-chat/internal/session"
	"github.com/jeranaias/folio-chat/internal/storage"
	"github.com/jeranaias/folio-chat/internal/viewport"
)

// =============================================================================
// ERRORS AND TEXTS
// =============================================================================

var (
	// ErrEmptyMessage is returned by Submit for blank input.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrBusy is returned by Submit while a reply is still pending.
	ErrBusy = errors.New("a reply is still pending")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("engine is closed")
)

// Texts written into finalized replies and notices.
const (
	TimeoutText     = "Sorry, the request is taking longer than expected. Please try again later."
	NetworkText     = "Sorry, there was an issue processing your request. Please try again."
	CanceledText    = "The request was canceled."
	InterruptedText = "This reply was interrupted. Please try again."
	EmptyReplyText  = "Sorry, I didn't get a response. Please try again."

	RequestFailedNotice = "There was an issue with the request. Please try again."
	DailyWelcomeNotice  = "Welcome back! 😊"
)

// welcomeAfter is how long the user must be away to get the daily greeting.
const welcomeAfter = 24 * time.Hour

// =============================================================================
// CONFIGURATION
// =============================================================================

// Deps are the engine's collaborators. Only Store is required.
type Deps struct {
	Store     kv.Store
	Clock     clock.Clock
	Scheduler clock.Scheduler
	Transport ingest.Transport
	Logger    *zap.Logger
}

// Options configure the components.
type Options struct {
	Endpoint string
	Headers  map[string]string
	// Timeout bounds one reply (default: 10m).
	Timeout time.Duration

	Guard guard.Config

	// MaxMessages caps the log; zero means unlimited.
	MaxMessages int

	// Viewport geometry used by Window.
	Overscan       int
	RowHeight      int
	ViewportHeight int
}

// DefaultOptions returns the default settings without an endpoint.
func DefaultOptions() Options {
	return Options{
		Timeout:        ingest.DefaultTimeout,
		Guard:          guard.DefaultConfig(),
		Overscan:       viewport.DefaultOverscan,
		RowHeight:      80,
		ViewportHeight: 400,
	}
}

// SubmitResult describes what Submit did.
type SubmitResult struct {
	Accepted bool
	// Notice is set when the guard rejected the attempt, or has news
	// (such as a lifted ban) for an accepted one.
	Notice guard.Notice

	UserMessageID string
	ReplyID       string
}

// =============================================================================
// ENGINE
// =============================================================================

// flight is the reply currently being ingested.
type flight struct {
	gen     uint64
	replyID string
	handle  *ingest.Handle
	updated bool
}

// Engine is the chat orchestrator. It is safe for concurrent use.
type Engine struct {
	mu sync.Mutex

	store  kv.Store
	clock  clock.Clock
	logger *zap.Logger
	opts   Options

	log    *storage.Log
	ids    *session.Identity
	guard  *guard.Guard
	client *ingest.Client
	window viewport.Window

	active  *flight
	gen     uint64
	started bool
	closed  bool

	events *broker
}

// New builds an engine. Persisted ban state is read immediately; call
// Start to rehydrate the message log.
func New(deps Deps, opts Options) (*Engine, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("engine: store is required")
	}
	if deps.Clock == nil {
		deps.Clock = clock.SystemClock{}
	}
	if deps.Scheduler == nil {
		deps.Scheduler = clock.TimerScheduler{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = ingest.DefaultTimeout
	}

	e := &Engine{
		store:  deps.Store,
		clock:  deps.Clock,
		logger: deps.Logger,
		opts:   opts,
		window: viewport.Window{Overscan: opts.Overscan},
		events: newBroker(deps.Logger),
	}

	e.log = storage.NewLog(deps.Store,
		storage.WithLogger(deps.Logger.Named("log")),
		storage.WithMaxMessages(opts.MaxMessages))
	e.ids = session.New(deps.Store, session.WithLogger(deps.Logger.Named("session")))

	clientOpts := []ingest.Option{ingest.WithLogger(deps.Logger.Named("ingest"))}
	if deps.Transport != nil {
		clientOpts = append(clientOpts, ingest.WithTransport(deps.Transport))
	}
	e.client = ingest.NewClient(ingest.Config{
		Endpoint: opts.Endpoint,
		Timeout:  opts.Timeout,
		Headers:  opts.Headers,
	}, clientOpts...)

	g, err := guard.New(deps.Store,
		guard.WithConfig(opts.Guard),
		guard.WithClock(deps.Clock),
		guard.WithScheduler(deps.Scheduler),
		guard.WithLogger(deps.Logger.Named("guard")),
		guard.WithNoticeHandler(e.publishNotice),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load guard state: %w", err)
	}
	e.guard = g

	return e, nil
}

// Start rehydrates the log, greets a returning user once a day, and
// finalizes replies left pending by a previous run.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	if e.started {
		return nil
	}

	if err := e.log.Load(); err != nil {
		return err
	}
	e.checkDailyWelcomeLocked()

	for _, id := range e.log.PendingIDs() {
		e.logger.Info("finalizing interrupted reply", zap.String("message_id", id))
		e.finalizeInterruptedLocked(id)
	}

	e.started = true
	e.publish(Event{Kind: EventMessagesChanged})
	return nil
}

// Submit sends text to the assistant. Guard rejections are reported in the
// result, not as errors, and leave the log untouched.
func (e *Engine) Submit(ctx context.Context, text string) (SubmitResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return SubmitResult{}, ErrEmptyMessage
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return SubmitResult{}, ErrClosed
	}
	if e.active != nil {
		return SubmitResult{}, ErrBusy
	}

	now := e.clock.Now()
	decision := e.guard.RecordAttempt(now)
	if !decision.Notice.IsZero() {
		e.publishNotice(decision.Notice)
	}
	if !decision.Accepted {
		return SubmitResult{Notice: decision.Notice}, nil
	}

	user := model.NewUserMessage(text, now)
	reply := model.NewPlaceholder(now)

	if err := e.log.Append(user); err != nil {
		return SubmitResult{}, fmt.Errorf("failed to record message: %w", err)
	}
	if err := e.log.Append(reply); err != nil {
		if _, derr := e.log.DeleteByID(user.ID); derr != nil {
			e.logger.Warn("failed to roll back user message", zap.Error(derr))
		}
		return SubmitResult{}, fmt.Errorf("failed to record reply placeholder: %w", err)
	}

	result := SubmitResult{
		Accepted:      true,
		Notice:        decision.Notice,
		UserMessageID: user.ID,
		ReplyID:       reply.ID,
	}

	sessionID, err := e.ids.GetOrCreate()
	if err != nil {
		e.finalizeLocked(reply.ID, []model.Part{{Text: NetworkText}})
		e.publish(Event{Kind: EventMessagesChanged})
		return result, fmt.Errorf("failed to get session: %w", err)
	}

	e.gen++
	f := &flight{gen: e.gen, replyID: reply.ID}
	e.active = f

	gen := f.gen
	f.handle = e.client.Ingest(ctx, ingest.Request{
		UserText:  text,
		SessionID: sessionID,
		MessageID: user.ID,
	}, ingest.Callbacks{
		OnUpdate: func(parts []string, sid string) { e.onUpdate(gen, parts, sid) },
		OnDone:   func() { e.onDone(gen) },
		OnError:  func(kind ingest.ErrorKind, err error) { e.onError(gen, kind, err) },
	}, e.opts.Timeout)

	e.logger.Debug("submitted",
		zap.String("message_id", user.ID),
		zap.String("reply_id", reply.ID),
		zap.String("session_id", sessionID))
	e.publish(Event{Kind: EventMessagesChanged})
	return result, nil
}

// =============================================================================
// INGESTION CALLBACKS
// =============================================================================

// currentLocked reports whether gen is the live ingestion.
func (e *Engine) currentLocked(gen uint64) bool {
	return !e.closed && e.active != nil && e.active.gen == gen
}

func (e *Engine) onUpdate(gen uint64, parts []string, sessionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.currentLocked(gen) {
		return
	}

	if _, err := e.log.UpdateByID(e.active.replyID, storage.Patch{
		Parts:   model.PartsFromStrings(parts),
		Pending: storage.Bool(true),
	}); err != nil {
		e.logger.Warn("failed to apply reply update", zap.Error(err))
		return
	}
	e.active.updated = true

	if _, err := e.ids.Adopt(sessionID); err != nil {
		e.logger.Warn("failed to adopt remote session", zap.Error(err))
	}
	e.publish(Event{Kind: EventMessagesChanged, MessageID: e.active.replyID})
}

func (e *Engine) onDone(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.currentLocked(gen) {
		return
	}

	f := e.active
	e.active = nil

	var parts []model.Part
	if !f.updated {
		parts = []model.Part{{Text: EmptyReplyText}}
	}
	e.finalizeLocked(f.replyID, parts)
	e.publish(Event{Kind: EventMessagesChanged, MessageID: f.replyID})
	e.publish(Event{Kind: EventReplyFinished, MessageID: f.replyID})
}

func (e *Engine) onError(gen uint64, kind ingest.ErrorKind, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.currentLocked(gen) {
		return
	}

	f := e.active
	e.active = nil

	canceled := ingest.IsCanceled(err)
	text := NetworkText
	switch {
	case ingest.IsTimeout(err):
		text = TimeoutText
	case canceled:
		text = CanceledText
	}
	e.logger.Warn("reply failed",
		zap.String("reply_id", f.replyID),
		zap.Stringer("kind", kind),
		zap.Error(err))

	e.finalizeLocked(f.replyID, []model.Part{{Text: text}})
	e.publish(Event{Kind: EventMessagesChanged, MessageID: f.replyID})
	e.publish(Event{Kind: EventReplyFinished, MessageID: f.replyID})
	if !canceled {
		e.publishNotice(guard.Notice{Level: guard.LevelError, Text: RequestFailedNotice})
	}
}

// finalizeLocked marks a reply complete. Nil parts keep the current content.
func (e *Engine) finalizeLocked(id string, parts []model.Part) {
	now := e.clock.Now()
	ts := model.FormatTimestamp(now)
	if _, err := e.log.UpdateByID(id, storage.Patch{
		Parts:       parts,
		Pending:     storage.Bool(false),
		Timestamp:   &ts,
		CompletedAt: &now,
	}); err != nil {
		e.logger.Warn("failed to finalize reply", zap.String("reply_id", id), zap.Error(err))
	}
}

// finalizeInterruptedLocked keeps partial content, or explains that there
// is none.
func (e *Engine) finalizeInterruptedLocked(id string) {
	msg, ok := e.log.Get(id)
	if !ok {
		return
	}
	var parts []model.Part
	if msg.Text() == "" || msg.Text() == model.PlaceholderText {
		parts = []model.Part{{Text: InterruptedText}}
	}
	e.finalizeLocked(id, parts)
}

// cancelActiveLocked aborts the in-flight reply. The placeholder is left
// for the caller to finalize or delete.
func (e *Engine) cancelActiveLocked() *flight {
	f := e.active
	if f == nil {
		return nil
	}
	e.active = nil
	f.handle.Cancel()
	e.logger.Debug("reply canceled", zap.String("reply_id", f.replyID))
	return f
}

// =============================================================================
// SHELL ACTIONS
// =============================================================================

// CancelPending aborts the in-flight reply and finalizes it as interrupted.
// It reports whether anything was pending.
func (e *Engine) CancelPending() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	f := e.cancelActiveLocked()
	if f == nil {
		return false
	}
	e.finalizeInterruptedLocked(f.replyID)
	e.publish(Event{Kind: EventMessagesChanged, MessageID: f.replyID})
	e.publish(Event{Kind: EventReplyFinished, MessageID: f.replyID})
	return true
}

// DeleteMessage removes one message. Deleting the pending reply cancels it.
func (e *Engine) DeleteMessage(id string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return false, ErrClosed
	}
	if e.active != nil && e.active.replyID == id {
		e.cancelActiveLocked()
	}

	removed, err := e.log.DeleteByID(id)
	if err != nil {
		return false, err
	}
	if removed {
		e.publish(Event{Kind: EventMessagesChanged, MessageID: id})
	}
	return removed, nil
}

// ClearAll empties the log, forgets the session and zeroes the violation
// counter. An active ban is kept.
func (e *Engine) ClearAll() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	e.cancelActiveLocked()

	if err := e.log.Clear(); err != nil {
		return err
	}
	if err := e.ids.Clear(); err != nil {
		return err
	}
	e.guard.ResetViolations()

	e.logger.Info("chat cleared")
	e.publish(Event{Kind: EventMessagesChanged})
	return nil
}

// Tick lifts an expired ban without waiting for the timer.
func (e *Engine) Tick() bool {
	return e.guard.Tick(e.clock.Now())
}

// Close cancels the in-flight reply, stops timers and ends subscriptions.
// The store is left open for the caller to close.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	if f := e.cancelActiveLocked(); f != nil {
		e.finalizeInterruptedLocked(f.replyID)
	}
	e.closed = true
	e.mu.Unlock()

	e.guard.Close()
	e.events.close()
	return nil
}

// =============================================================================
// QUERIES
// =============================================================================

// Messages returns a copy of the log.
func (e *Engine) Messages() []model.Message {
	return e.log.All()
}

// Pending reports whether a reply is in flight.
func (e *Engine) Pending() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active != nil
}

// Guard returns the guard state.
func (e *Engine) Guard() guard.Snapshot {
	return e.guard.Snapshot()
}

// CanSubmit reports whether the guard would let a submission through now.
func (e *Engine) CanSubmit() bool {
	return e.guard.CanSubmit(e.clock.Now())
}

// SessionID returns the current session id, or "".
func (e *Engine) SessionID() string {
	return e.ids.Current()
}

// LastUserMessage returns the most recent message the user sent.
func (e *Engine) LastUserMessage() (model.Message, bool) {
	return e.log.LastUserMessage()
}

// Window returns the rows to render at scrollOffset using the configured
// row and viewport heights.
func (e *Engine) Window(scrollOffset int) viewport.Range {
	return e.window.VisibleRange(scrollOffset, e.opts.ViewportHeight, e.opts.RowHeight, e.log.Len())
}

// Wait blocks until the in-flight reply, if any, has finished.
func (e *Engine) Wait() {
	e.mu.Lock()
	f := e.active
	e.mu.Unlock()
	if f != nil {
		f.handle.Wait()
	}
}

// Now returns the engine clock's current time.
func (e *Engine) Now() time.Time {
	return e.clock.Now()
}

// checkDailyWelcomeLocked greets a user returning after more than a day
// and maintains the last-seen marker.
func (e *Engine) checkDailyWelcomeLocked() {
	now := e.clock.Now()
	mark := func() {
		if err := e.store.Set(kv.KeyLastSeen, now.UTC().Format(time.RFC3339)); err != nil {
			e.logger.Warn("failed to persist last-seen marker", zap.Error(err))
		}
	}

	raw, ok, err := e.store.Get(kv.KeyLastSeen)
	if err != nil {
		e.logger.Warn("failed to read last-seen marker", zap.Error(err))
		return
	}
	if !ok {
		mark()
		return
	}
	last, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		e.logger.Warn("resetting invalid last-seen marker", zap.String("value", raw))
		mark()
		return
	}
	if now.Sub(last) > welcomeAfter {
		e.publishNotice(guard.Notice{Level: guard.LevelInfo, Text: DailyWelcomeNotice})
		mark()
	}
}
