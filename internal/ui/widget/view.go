// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package widget

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/folio-chat/internal/guard"
	"github.com/jeranaias/folio-chat/internal/util"
)

// View implements tea.Model.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 {
		return "Loading..."
	}
	if !m.open {
		return m.viewClosed()
	}

	sections := []string{
		m.viewHeader(),
		m.viewMessages(),
		m.viewNotice(),
		m.viewInput(),
		m.help.ShortHelpView(m.keys.ShortHelp()),
	}
	return strings.Join(sections, "\n")
}

func (m *Model) viewClosed() string {
	label := m.theme.Launcher.Render("Chat  (C-o)")
	pad := max(m.height-1, 0)
	return strings.Repeat("\n", pad) + lipgloss.PlaceHorizontal(m.width, lipgloss.Right, label)
}

func (m *Model) viewHeader() string {
	title := util.TruncateWidth(m.title, max(m.width-2, 1))
	return m.theme.Header.Width(m.width).Render(m.theme.HeaderTitle.Render(title))
}

// viewMessages renders the windowed messages and crops them to the panel.
func (m *Model) viewMessages() string {
	height := m.messagesHeight()
	if height == 0 {
		return ""
	}

	msgs := m.engine.Messages()
	if len(msgs) == 0 {
		empty := m.theme.Timestamp.Render("Ask about my projects, experience or skills.")
		return lipgloss.Place(m.width, height, lipgloss.Center, lipgloss.Center, empty)
	}

	rng := m.follower.Range()
	var lines []string
	for i := rng.Start; i <= rng.End && i < len(msgs); i++ {
		lines = append(lines, m.render.lines(msgs[i], m.spinner.View())...)
		lines = append(lines, "")
	}

	var start int
	if m.follower.Pinned() {
		start = len(lines) - height
	} else {
		start = m.follower.Offset() - rng.Start*rowLines
	}
	start = max(min(start, len(lines)-height), 0)
	end := min(start+height, len(lines))
	visible := lines[start:end]

	if m.follower.HasUnseen() && len(visible) > 0 {
		hint := m.theme.JumpHint.Render("New messages (End)")
		visible[len(visible)-1] = lipgloss.PlaceHorizontal(m.width, lipgloss.Center, hint)
	}
	for len(visible) < height {
		visible = append(visible, "")
	}
	return strings.Join(visible, "\n")
}

func (m *Model) viewNotice() string {
	if m.notice.IsZero() {
		if left := m.banRemaining(); left != "" {
			return m.theme.NoticeError.Render(util.TruncateWidth("Temporarily banned: "+left+" left", m.width))
		}
		return ""
	}
	return m.theme.Notice(string(m.notice.Level)).Render(util.TruncateWidth(m.notice.Text, m.width))
}

func (m *Model) viewInput() string {
	if !m.engine.CanSubmit() {
		return m.theme.InputContainer.Width(m.width).Render(
			m.theme.InputDisabled.Render(guard.TextStillBanned) +
				strings.Repeat("\n", inputLines-1))
	}
	return m.theme.InputContainer.Width(m.width).Render(m.input.View())
}
