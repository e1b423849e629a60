// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/folio-chat/internal/guard"
	"github.com/jeranaias/folio-chat/internal/ui/styles"
)

var (
	promptStyle = lipgloss.NewStyle().
			Foreground(styles.Cyan).
			Bold(true)

	assistantLabelStyle = lipgloss.NewStyle().
				Foreground(styles.Purple).
				Bold(true)

	userLabelStyle = lipgloss.NewStyle().
			Foreground(styles.Cyan).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(styles.TextMuted)

	labelStyle = lipgloss.NewStyle().
			Foreground(styles.TextSecondary).
			Width(16)

	errorStyle   = lipgloss.NewStyle().Foreground(styles.Rose).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(styles.Amber)
	infoStyle    = lipgloss.NewStyle().Foreground(styles.Emerald)
)

// noticeStyle picks the style for a guard notice.
func noticeStyle(level guard.Level) lipgloss.Style {
	switch level {
	case guard.LevelError:
		return errorStyle
	case guard.LevelWarning:
		return warningStyle
	default:
		return infoStyle
	}
}
