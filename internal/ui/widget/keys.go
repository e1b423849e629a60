// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package widget

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the widget's key bindings.
type KeyMap struct {
	Submit     key.Binding
	Newline    key.Binding
	Toggle     key.Binding
	Clear      key.Binding
	DeleteLast key.Binding
	PageUp     key.Binding
	PageDown   key.Binding
	End        key.Binding
	Quit       key.Binding
}

// DefaultKeyMap returns the default bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("Enter", "send"),
		),
		Newline: key.NewBinding(
			key.WithKeys("alt+enter", "ctrl+j"),
			key.WithHelp("Alt+Enter", "newline"),
		),
		Toggle: key.NewBinding(
			key.WithKeys("ctrl+o"),
			key.WithHelp("C-o", "open/close"),
		),
		Clear: key.NewBinding(
			key.WithKeys("ctrl+l"),
			key.WithHelp("C-l", "clear"),
		),
		DeleteLast: key.NewBinding(
			key.WithKeys("ctrl+d"),
			key.WithHelp("C-d", "delete last"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("PgUp", "scroll up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("PgDn", "scroll down"),
		),
		End: key.NewBinding(
			key.WithKeys("end"),
			key.WithHelp("End", "newest"),
		),
		Quit: key.NewBinding(
			key.WithKeys("esc", "ctrl+c"),
			key.WithHelp("Esc", "quit"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Submit, k.Newline, k.Toggle, k.Clear, k.DeleteLast, k.End, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Submit, k.Newline},
		{k.PageUp, k.PageDown, k.End},
		{k.Toggle, k.Clear, k.DeleteLast, k.Quit},
	}
}
