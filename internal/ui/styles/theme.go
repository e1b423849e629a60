// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme modes accepted by NewTheme.
const (
	ModeAuto  = "auto"
	ModeDark  = "dark"
	ModeLight = "light"
)

// Theme holds the styled components of the widget.
type Theme struct {
	// Terminal capabilities
	IsDark       bool
	ColorProfile termenv.Profile

	// Header and launcher
	Header      lipgloss.Style
	HeaderTitle lipgloss.Style
	Launcher    lipgloss.Style

	// Message bubbles
	UserBubble      lipgloss.Style
	AssistantBubble lipgloss.Style
	PendingBubble   lipgloss.Style
	RoleLabel       lipgloss.Style
	Timestamp       lipgloss.Style

	// Input area
	InputContainer lipgloss.Style
	InputDisabled  lipgloss.Style

	// Notices
	NoticeInfo    lipgloss.Style
	NoticeWarning lipgloss.Style
	NoticeError   lipgloss.Style

	// Footer
	StatusBar    lipgloss.Style
	ShortcutKey  lipgloss.Style
	ShortcutDesc lipgloss.Style
	JumpHint     lipgloss.Style
}

// NewTheme creates a theme. Mode "auto" (or anything unrecognized) asks the
// terminal for its background; "dark" and "light" force one.
func NewTheme(mode string) *Theme {
	profile := termenv.ColorProfile()

	var isDark bool
	switch strings.ToLower(mode) {
	case ModeDark:
		isDark = true
	case ModeLight:
		isDark = false
	default:
		isDark = termenv.HasDarkBackground()
	}
	lipgloss.SetHasDarkBackground(isDark)

	t := &Theme{IsDark: isDark, ColorProfile: profile}
	t.initStyles()
	return t
}

// GlamourStyle returns the glamour standard style matching the theme.
func (t *Theme) GlamourStyle() string {
	if t.IsDark {
		return "dark"
	}
	return "light"
}

func (t *Theme) initStyles() {
	t.Header = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan).
		Background(SurfaceDim).
		Padding(0, 1)

	t.HeaderTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(Purple)

	t.Launcher = lipgloss.NewStyle().
		Bold(true).
		Foreground(TextInverse).
		Background(Purple).
		Padding(0, 2)

	bubble := lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		Padding(0, 1)

	t.UserBubble = bubble.
		Foreground(UserBubbleFg).
		BorderForeground(UserBubbleBorder)

	t.AssistantBubble = bubble.
		Foreground(AssistantBubbleFg).
		BorderForeground(AssistantBubbleBorder)

	t.PendingBubble = bubble.
		Foreground(TextSecondary).
		BorderForeground(Overlay).
		Italic(true)

	t.RoleLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(TextPrimary)

	t.Timestamp = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.InputContainer = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderTop(true).
		BorderForeground(Overlay)

	t.InputDisabled = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)

	t.NoticeInfo = lipgloss.NewStyle().Foreground(Emerald)
	t.NoticeWarning = lipgloss.NewStyle().Foreground(Amber)
	t.NoticeError = lipgloss.NewStyle().Foreground(Rose).Bold(true)

	t.StatusBar = lipgloss.NewStyle().
		Foreground(TextSecondary)

	t.ShortcutKey = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan)

	t.ShortcutDesc = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.JumpHint = lipgloss.NewStyle().
		Foreground(TextInverse).
		Background(Cyan).
		Padding(0, 1)
}

// Notice returns the style for a notice level ("info", "warning", "error").
func (t *Theme) Notice(level string) lipgloss.Style {
	switch level {
	case "error":
		return t.NoticeError
	case "warning":
		return t.NoticeWarning
	default:
		return t.NoticeInfo
	}
}
