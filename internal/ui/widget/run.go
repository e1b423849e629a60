// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package widget

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/folio-chat/internal/engine"
)

// Run starts eng and shows the widget until the user quits or ctx is done.
func Run(ctx context.Context, eng *engine.Engine, opts Options) error {
	m := New(eng, opts)
	defer m.Close()

	if err := eng.Start(); err != nil {
		return fmt.Errorf("failed to start chat: %w", err)
	}

	p := tea.NewProgram(m,
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("widget: %w", err)
	}
	return nil
}
