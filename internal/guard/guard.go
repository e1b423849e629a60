// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package guard

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/jeranaias/folio-chat/internal/clock"
	"github.com/jeranaias/folio-chat/internal/kv"
)

// =============================================================================
// DEFAULTS
// =============================================================================

const (
	// DefaultMinInterval is the shortest allowed gap between accepted submissions.
	DefaultMinInterval = 500 * time.Millisecond

	// DefaultBanThreshold is the number of violations that triggers a ban.
	DefaultBanThreshold = 10

	// DefaultBanDuration is how long a ban lasts.
	DefaultBanDuration = 3 * time.Minute
)

// Notice texts.
const (
	TextSlowDown    = "Please slow down your requests."
	TextStillBanned = "You're temporarily banned. Please wait."
	TextWelcomeBack = "You're back! Let's continue our conversation. 😊"
)

// DefaultScheduledNotices are replayed after ban entry.
var DefaultScheduledNotices = []ScheduledNotice{
	{Delay: 1 * time.Second, Text: "Please wait... You are temporarily banned."},
	{Delay: 21 * time.Second, Text: "1 minute and 20 seconds more. Please wait..."},
}

// =============================================================================
// TYPES
// =============================================================================

// State is the guard's state machine position.
type State int

const (
	Active State = iota
	Banned
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case Banned:
		return "banned"
	default:
		return "unknown"
	}
}

// Level classifies a notice for display.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice is a transient message for the user.
type Notice struct {
	Level Level
	Text  string
}

// IsZero reports whether the notice is empty.
func (n Notice) IsZero() bool { return n.Text == "" }

// ScheduledNotice is shown Delay after ban entry.
type ScheduledNotice struct {
	Delay time.Duration
	Text  string
}

// Decision is the outcome of RecordAttempt.
type Decision struct {
	Accepted bool
	Notice   Notice
	State    State
}

// Snapshot is a read-only view of the guard.
type Snapshot struct {
	State      State
	Violations int
	BanUntil   time.Time // zero when not banned
}

// Remaining returns how much of the ban is left at now.
func (s Snapshot) Remaining(now time.Time) time.Duration {
	if s.State != Banned {
		return 0
	}
	if d := s.BanUntil.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Config holds the guard thresholds.
type Config struct {
	MinInterval      time.Duration
	BanThreshold     int
	BanDuration      time.Duration
	ScheduledNotices []ScheduledNotice
}

// DefaultConfig returns the default thresholds.
func DefaultConfig() Config {
	return Config{
		MinInterval:      DefaultMinInterval,
		BanThreshold:     DefaultBanThreshold,
		BanDuration:      DefaultBanDuration,
		ScheduledNotices: DefaultScheduledNotices,
	}
}

// =============================================================================
// GUARD
// =============================================================================

// Guard decides whether a submission may proceed. It is safe for concurrent
// use. Notice handlers run without the guard's lock held.
type Guard struct {
	mu sync.Mutex

	cfg    Config
	clock  clock.Clock
	sched  clock.Scheduler
	store  kv.Store
	logger *zap.Logger

	onNotice func(Notice)

	limiter    *rate.Limiter
	violations int
	banUntil   time.Time

	// timers belong to the current ban; gen invalidates callbacks from
	// earlier bans that were already in flight when they were stopped.
	timers []clock.Timer
	gen    uint64
	closed bool
}

// Option configures a Guard.
type Option func(*Guard)

// WithConfig sets thresholds. Non-positive fields keep their defaults.
func WithConfig(cfg Config) Option {
	return func(g *Guard) {
		if cfg.MinInterval > 0 {
			g.cfg.MinInterval = cfg.MinInterval
		}
		if cfg.BanThreshold > 0 {
			g.cfg.BanThreshold = cfg.BanThreshold
		}
		if cfg.BanDuration > 0 {
			g.cfg.BanDuration = cfg.BanDuration
		}
		if cfg.ScheduledNotices != nil {
			g.cfg.ScheduledNotices = cfg.ScheduledNotices
		}
	}
}

// WithClock sets the clock used for timer callbacks and load-time checks.
func WithClock(c clock.Clock) Option {
	return func(g *Guard) {
		if c != nil {
			g.clock = c
		}
	}
}

// WithScheduler sets the scheduler used for ban expiry and scheduled notices.
func WithScheduler(s clock.Scheduler) Option {
	return func(g *Guard) {
		if s != nil {
			g.sched = s
		}
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(g *Guard) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithNoticeHandler receives notices raised outside RecordAttempt: ban
// expiry by timer or Tick, and scheduled ban notices.
func WithNoticeHandler(fn func(Notice)) Option {
	return func(g *Guard) {
		g.onNotice = fn
	}
}

// New creates a guard and restores any persisted ban from store. A nil
// store keeps state in memory only.
func New(store kv.Store, opts ...Option) (*Guard, error) {
	g := &Guard{
		cfg:    DefaultConfig(),
		clock:  clock.SystemClock{},
		sched:  clock.TimerScheduler{},
		store:  store,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.limiter = rate.NewLimiter(rate.Every(g.cfg.MinInterval), 1)

	if err := g.load(); err != nil {
		return nil, err
	}
	return g, nil
}

// RecordAttempt evaluates a submission attempt made at now. An attempt is a
// rapid repeat when it comes less than MinInterval after the previous
// attempt, accepted or not.
func (g *Guard) RecordAttempt(now time.Time) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	var notice Notice

	if g.bannedLocked() {
		if now.Before(g.banUntil) {
			return Decision{
				Notice: Notice{Level: LevelError, Text: TextStillBanned},
				State:  Banned,
			}
		}
		g.expireLocked()
		notice = Notice{Level: LevelInfo, Text: TextWelcomeBack}
	}

	if !g.limiter.AllowN(now, 1) {
		g.restartWindowLocked(now)
		g.violations++
		g.persistCountLocked()

		if g.violations >= g.cfg.BanThreshold {
			g.enterBanLocked(now)
			return Decision{
				Notice: Notice{Level: LevelError, Text: bannedText(g.cfg.BanDuration)},
				State:  Banned,
			}
		}

		g.logger.Debug("rapid repeat", zap.Int("violations", g.violations))
		return Decision{
			Notice: Notice{Level: LevelWarning, Text: TextSlowDown},
			State:  Active,
		}
	}

	return Decision{Accepted: true, Notice: notice, State: Active}
}

// restartWindowLocked measures the next attempt from now. AllowN takes no
// token from a rejected attempt, so the limiter is refilled and drained at
// now.
func (g *Guard) restartWindowLocked(now time.Time) {
	g.limiter = rate.NewLimiter(rate.Every(g.cfg.MinInterval), 1)
	g.limiter.AllowN(now, 1)
}

// CanSubmit reports whether a submission at now would get past the ban
// check. Rapid repeats are not considered.
func (g *Guard) CanSubmit(now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return !g.bannedLocked() || !now.Before(g.banUntil)
}

// Tick lifts a ban whose end has passed. It reports whether a ban was
// lifted; the welcome-back notice goes to the notice handler.
func (g *Guard) Tick(now time.Time) bool {
	g.mu.Lock()
	if !g.bannedLocked() || now.Before(g.banUntil) {
		g.mu.Unlock()
		return false
	}
	g.expireLocked()
	g.mu.Unlock()

	g.emit(Notice{Level: LevelInfo, Text: TextWelcomeBack})
	return true
}

// ResetViolations zeroes the violation counter. An active ban stays in
// force until it expires.
func (g *Guard) ResetViolations() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.violations = 0
	g.persistCountLocked()
}

// Snapshot returns the current state.
func (g *Guard) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	s := Snapshot{State: Active, Violations: g.violations}
	if g.bannedLocked() {
		s.State = Banned
		s.BanUntil = g.banUntil
	}
	return s
}

// Config returns the thresholds in effect.
func (g *Guard) Config() Config {
	return g.cfg
}

// Close stops all timers. Persisted state is left intact.
func (g *Guard) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	g.stopTimersLocked()
}

// =============================================================================
// INTERNALS
// =============================================================================

func (g *Guard) bannedLocked() bool {
	return !g.banUntil.IsZero()
}

func (g *Guard) enterBanLocked(now time.Time) {
	g.banUntil = now.Add(g.cfg.BanDuration)
	g.logger.Info("submissions banned",
		zap.Int("violations", g.violations),
		zap.Time("ban_until", g.banUntil))

	if g.store != nil {
		if err := g.store.Set(kv.KeyBanEnd, g.banUntil.UTC().Format(time.RFC3339Nano)); err != nil {
			g.logger.Warn("failed to persist ban end", zap.Error(err))
		}
	}
	g.armLocked(now)
}

// armLocked schedules ban expiry and the notices that fall inside the ban.
func (g *Guard) armLocked(now time.Time) {
	g.stopTimersLocked()
	if g.closed {
		return
	}
	gen := g.gen

	remaining := g.banUntil.Sub(now)
	g.timers = append(g.timers, g.sched.AfterFunc(remaining, func() { g.onExpiryTimer(gen) }))

	elapsed := g.cfg.BanDuration - remaining
	for _, sn := range g.cfg.ScheduledNotices {
		delay := sn.Delay - elapsed
		if delay < 0 || sn.Delay >= g.cfg.BanDuration {
			continue
		}
		text := sn.Text
		g.timers = append(g.timers, g.sched.AfterFunc(delay, func() { g.onScheduledNotice(gen, text) }))
	}
}

func (g *Guard) onExpiryTimer(gen uint64) {
	g.mu.Lock()
	if gen != g.gen || !g.bannedLocked() {
		g.mu.Unlock()
		return
	}
	now := g.clock.Now()
	if now.Before(g.banUntil) {
		// Fired early; wait out the rest
		g.armLocked(now)
		g.mu.Unlock()
		return
	}
	g.expireLocked()
	g.mu.Unlock()

	g.logger.Info("ban lifted")
	g.emit(Notice{Level: LevelInfo, Text: TextWelcomeBack})
}

func (g *Guard) onScheduledNotice(gen uint64, text string) {
	g.mu.Lock()
	current := gen == g.gen && g.bannedLocked()
	g.mu.Unlock()

	if current {
		g.emit(Notice{Level: LevelWarning, Text: text})
	}
}

func (g *Guard) expireLocked() {
	g.stopTimersLocked()
	g.violations = 0
	g.banUntil = time.Time{}

	if g.store != nil {
		if err := g.store.Remove(kv.KeyBanEnd); err != nil {
			g.logger.Warn("failed to clear ban end", zap.Error(err))
		}
	}
	g.persistCountLocked()
}

func (g *Guard) stopTimersLocked() {
	for _, t := range g.timers {
		t.Stop()
	}
	g.timers = nil
	g.gen++
}

func (g *Guard) persistCountLocked() {
	if g.store == nil {
		return
	}
	if err := g.store.Set(kv.KeyBanCount, strconv.Itoa(g.violations)); err != nil {
		g.logger.Warn("failed to persist violation count", zap.Error(err))
	}
}

// load restores persisted state. A ban that already ended is cleared.
func (g *Guard) load() error {
	if g.store == nil {
		return nil
	}

	if raw, ok, err := g.store.Get(kv.KeyBanCount); err != nil {
		return fmt.Errorf("failed to read violation count: %w", err)
	} else if ok {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			g.logger.Warn("ignoring invalid violation count", zap.String("value", raw))
			n = 0
		}
		g.violations = n
	}

	raw, ok, err := g.store.Get(kv.KeyBanEnd)
	if err != nil {
		return fmt.Errorf("failed to read ban end: %w", err)
	}
	if !ok || raw == "" {
		return nil
	}

	until, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		g.logger.Warn("ignoring invalid ban end", zap.String("value", raw))
		g.mu.Lock()
		g.expireLocked()
		g.mu.Unlock()
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	if !now.Before(until) {
		g.banUntil = until
		g.expireLocked()
		return nil
	}

	g.banUntil = until
	g.logger.Info("restored ban", zap.Time("ban_until", until))
	g.armLocked(now)
	return nil
}

func (g *Guard) emit(n Notice) {
	if g.onNotice != nil {
		g.onNotice(n)
	}
}

// bannedText describes the ban length in words, e.g. "3 minutes".
func bannedText(d time.Duration) string {
	return fmt.Sprintf("You've been temporarily banned for %s due to excessive requests.", humanDuration(d))
}

func humanDuration(d time.Duration) string {
	plural := func(n int64, unit string) string {
		if n == 1 {
			return "1 " + unit
		}
		return strconv.FormatInt(n, 10) + " " + unit + "s"
	}
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		return plural(int64(d/time.Hour), "hour")
	case d >= time.Minute && d%time.Minute == 0:
		return plural(int64(d/time.Minute), "minute")
	case d >= time.Second && d%time.Second == 0:
		return plural(int64(d/time.Second), "second")
	default:
		return d.String()
	}
}
