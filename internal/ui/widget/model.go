// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package widget

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/jeranaias/folio-chat/internal/engine"
	"github.com/jeranaias/folio-chat/internal/guard"
	"github.com/jeranaias/folio-chat/internal/ui/styles"
	"github.com/jeranaias/folio-chat/internal/viewport"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// rowLines is the estimated height of one message in terminal lines.
	// Windowing works in these units; the exact lines are cropped after
	// rendering.
	rowLines = 6

	// inputLines is the height of the text area.
	inputLines = 3

	// chromeLines is header, notice, border above the input, and help.
	chromeLines = 4

	noticeTTL = 6 * time.Second

	busyText = "Please wait for the current reply."
)

// =============================================================================
// MESSAGES
// =============================================================================

type engineEventMsg struct{ ev engine.Event }

type eventsClosedMsg struct{}

type submitDoneMsg struct {
	res engine.SubmitResult
	err error
}

type noticeExpiredMsg struct{ seq int }

type tickMsg time.Time

// =============================================================================
// MODEL
// =============================================================================

// Options configure the widget.
type Options struct {
	Title     string
	Theme     string // auto, dark, light
	Markdown  bool
	StartOpen bool
	Overscan  int
	Logger    *zap.Logger
}

// Model is the Bubble Tea model of the chat panel.
type Model struct {
	engine *engine.Engine
	logger *zap.Logger
	title  string

	theme    *styles.Theme
	keys     KeyMap
	help     help.Model
	input    textarea.Model
	spinner  spinner.Model
	follower *viewport.Follower
	render   *renderer

	events      <-chan engine.Event
	unsubscribe func()

	width, height int
	open          bool
	submitting    bool
	notice        guard.Notice
	noticeSeq     int
	quitting      bool
}

// New builds the widget and subscribes to eng. Subscribe happens here so
// notices raised by eng.Start are not missed; call Start after New.
func New(eng *engine.Engine, opts Options) *Model {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	theme := styles.NewTheme(opts.Theme)

	ta := textarea.New()
	ta.Placeholder = "Type your message..."
	ta.ShowLineNumbers = false
	ta.CharLimit = 4096
	ta.SetHeight(inputLines)
	ta.KeyMap.InsertNewline = DefaultKeyMap().Newline
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Spinner{
		Frames: []string{"|", "/", "-", "\\"},
		FPS:    time.Second / 10,
	}

	events, unsubscribe := eng.Subscribe()

	m := &Model{
		engine:      eng,
		logger:      opts.Logger,
		title:       opts.Title,
		theme:       theme,
		keys:        DefaultKeyMap(),
		help:        help.New(),
		input:       ta,
		spinner:     sp,
		follower:    viewport.NewFollower(viewport.Window{Overscan: opts.Overscan}, rowLines, 0),
		render:      newRenderer(theme, opts.Markdown, opts.Logger.Named("render")),
		events:      events,
		unsubscribe: unsubscribe,
		open:        opts.StartOpen,
	}
	m.follower.SetCount(len(eng.Messages()))
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		waitForEvent(m.events),
		tickCmd(),
		m.spinner.Tick,
	)
}

func waitForEvent(ch <-chan engine.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return eventsClosedMsg{}
		}
		return engineEventMsg{ev: ev}
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *Model) submitCmd(text string) tea.Cmd {
	eng := m.engine
	return func() tea.Msg {
		res, err := eng.Submit(context.Background(), text)
		return submitDoneMsg{res: res, err: err}
	}
}

// =============================================================================
// UPDATE
// =============================================================================

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case engineEventMsg:
		return m, tea.Batch(m.handleEvent(msg.ev), waitForEvent(m.events))

	case eventsClosedMsg:
		return m, nil

	case submitDoneMsg:
		return m, m.handleSubmitDone(msg)

	case noticeExpiredMsg:
		if msg.seq == m.noticeSeq {
			m.notice = guard.Notice{}
		}
		return m, nil

	case tickMsg:
		m.engine.Tick()
		return m, tickCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.engine.CancelPending()
		m.quitting = true
		m.unsubscribe()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Toggle):
		m.open = !m.open
		if !m.open && m.engine.CancelPending() {
			m.logger.Debug("closed panel, pending reply canceled")
		}
		return m, nil
	}

	if !m.open {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Submit):
		return m, m.submit()

	case key.Matches(msg, m.keys.Clear):
		if err := m.engine.ClearAll(); err != nil {
			m.logger.Warn("clear failed", zap.Error(err))
			return m, m.setNotice(guard.Notice{Level: guard.LevelError, Text: "Could not clear the conversation."})
		}
		m.follower.JumpToEnd()
		return m, nil

	case key.Matches(msg, m.keys.DeleteLast):
		last, ok := m.engine.LastUserMessage()
		if !ok {
			return m, nil
		}
		if _, err := m.engine.DeleteMessage(last.ID); err != nil {
			m.logger.Warn("delete failed", zap.String("message_id", last.ID), zap.Error(err))
		}
		return m, nil

	case key.Matches(msg, m.keys.PageUp):
		m.follower.ScrollBy(-m.messagesHeight())
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.follower.ScrollBy(m.messagesHeight())
		return m, nil

	case key.Matches(msg, m.keys.End):
		m.follower.JumpToEnd()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) submit() tea.Cmd {
	text := m.input.Value()
	if m.submitting {
		return nil
	}
	if m.engine.Pending() {
		return m.setNotice(guard.Notice{Level: guard.LevelWarning, Text: busyText})
	}
	m.submitting = true
	return m.submitCmd(text)
}

func (m *Model) handleSubmitDone(msg submitDoneMsg) tea.Cmd {
	m.submitting = false
	switch {
	case errors.Is(msg.err, engine.ErrEmptyMessage):
		return nil
	case errors.Is(msg.err, engine.ErrBusy):
		return m.setNotice(guard.Notice{Level: guard.LevelWarning, Text: busyText})
	case msg.err != nil:
		m.logger.Warn("submit failed", zap.Error(msg.err))
		return m.setNotice(guard.Notice{Level: guard.LevelError, Text: engine.RequestFailedNotice})
	}

	// Guard notices arrive as engine events; only the input is handled here
	if msg.res.Accepted {
		m.input.Reset()
		m.follower.JumpToEnd()
	}
	return nil
}

func (m *Model) handleEvent(ev engine.Event) tea.Cmd {
	switch ev.Kind {
	case engine.EventMessagesChanged:
		msgs := m.engine.Messages()
		m.follower.SetCount(len(msgs))
		m.render.forget(msgs)
	case engine.EventNotice:
		return m.setNotice(ev.Notice)
	}
	return nil
}

func (m *Model) setNotice(n guard.Notice) tea.Cmd {
	m.notice = n
	m.noticeSeq++
	seq := m.noticeSeq
	return tea.Tick(noticeTTL, func(time.Time) tea.Msg { return noticeExpiredMsg{seq: seq} })
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height
	m.input.SetWidth(max(width, 1))
	m.help.Width = width
	m.render.setWidth(width)
	m.follower.Resize(m.messagesHeight())
}

func (m *Model) messagesHeight() int {
	return max(m.height-chromeLines-inputLines, 0)
}

// banRemaining formats what is left of an active ban, or "".
func (m *Model) banRemaining() string {
	snap := m.engine.Guard()
	left := snap.Remaining(m.engine.Now())
	if left <= 0 {
		return ""
	}
	left = left.Round(time.Second)
	return fmt.Sprintf("%dm %02ds", int(left.Minutes()), int(left.Seconds())%60)
}

// Close ends the event subscription.
func (m *Model) Close() {
	m.unsubscribe()
}
