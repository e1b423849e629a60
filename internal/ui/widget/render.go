// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package widget

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"go.uber.org/zap"

	"github.com/jeranaias/folio-chat/internal/model"
	"github.com/jeranaias/folio-chat/internal/ui/styles"
	"github.com/jeranaias/folio-chat/internal/util"
)

// renderer turns messages into bubble lines, caching by content and width.
type renderer struct {
	theme    *styles.Theme
	markdown bool
	logger   *zap.Logger

	width int
	md    *glamour.TermRenderer
	cache map[string]cachedRender
}

type cachedRender struct {
	text    string
	pending bool
	spin    string
	width   int
	lines   []string
}

func newRenderer(theme *styles.Theme, markdown bool, logger *zap.Logger) *renderer {
	return &renderer{
		theme:    theme,
		markdown: markdown,
		logger:   logger,
		cache:    make(map[string]cachedRender),
	}
}

// setWidth rebuilds the markdown renderer when the width changes.
func (r *renderer) setWidth(width int) {
	if width == r.width {
		return
	}
	r.width = width
	r.md = nil
	if !r.markdown || width < 10 {
		return
	}
	md, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(r.theme.GlamourStyle()),
		glamour.WithWordWrap(r.bodyWidth()),
	)
	if err != nil {
		r.logger.Warn("markdown renderer unavailable", zap.Error(err))
		return
	}
	r.md = md
}

// bodyWidth is the text width inside a bubble (border and padding).
func (r *renderer) bodyWidth() int {
	return max(r.width-4, 1)
}

// lines renders msg. spin is the spinner frame shown on pending replies.
func (r *renderer) lines(msg model.Message, spin string) []string {
	text := msg.Text()
	if !msg.Pending {
		spin = ""
	}
	if c, ok := r.cache[msg.ID]; ok && c.text == text && c.pending == msg.Pending && c.spin == spin && c.width == r.width {
		return c.lines
	}

	out := strings.Split(r.render(msg, text, spin), "\n")
	r.cache[msg.ID] = cachedRender{text: text, pending: msg.Pending, spin: spin, width: r.width, lines: out}
	return out
}

// forget drops cache entries for messages no longer in the log.
func (r *renderer) forget(keep []model.Message) {
	live := make(map[string]bool, len(keep))
	for _, m := range keep {
		live[m.ID] = true
	}
	for id := range r.cache {
		if !live[id] {
			delete(r.cache, id)
		}
	}
}

func (r *renderer) render(msg model.Message, text, spin string) string {
	header := r.theme.RoleLabel.Render(msg.Role.DisplayName())
	if msg.Timestamp != "" {
		header += " " + r.theme.Timestamp.Render(msg.Timestamp)
	}
	header = util.TruncateWidth(header, r.width)

	var style lipgloss.Style
	var body string
	switch {
	case msg.Pending:
		style = r.theme.PendingBubble
		if text == "" || text == model.PlaceholderText {
			body = strings.TrimSpace(spin + " " + model.PlaceholderText)
		} else {
			body = r.wrap(text) + "\n" + spin
		}
	case msg.IsUser():
		style = r.theme.UserBubble
		body = r.wrap(text)
	default:
		style = r.theme.AssistantBubble
		body = r.markdownOr(text)
	}

	bubble := style.Width(r.bodyWidth() + 2).Render(body)
	if msg.IsUser() {
		bubble = lipgloss.PlaceHorizontal(r.width, lipgloss.Right, bubble)
		header = lipgloss.PlaceHorizontal(r.width, lipgloss.Right, header)
	}
	return header + "\n" + bubble
}

func (r *renderer) markdownOr(text string) string {
	if r.md == nil {
		return r.wrap(text)
	}
	out, err := r.md.Render(text)
	if err != nil {
		r.logger.Debug("markdown render failed", zap.Error(err))
		return r.wrap(text)
	}
	return strings.Trim(out, "\n")
}

// wrap hard-wraps text to the bubble body width by display cells.
func (r *renderer) wrap(text string) string {
	return runewidth.Wrap(text, r.bodyWidth())
}
