// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/folio-chat/internal/guard"
	"github.com/jeranaias/folio-chat/internal/util"
)

type statusInfo struct {
	Endpoint     string `json:"endpoint"`
	StoreBackend string `json:"store_backend"`
	StorePath    string `json:"store_path,omitempty"`
	SessionID    string `json:"session_id,omitempty"`
	Messages     int    `json:"messages"`
	Pending      bool   `json:"pending"`
	GuardState   string `json:"guard_state"`
	Violations   int    `json:"violations"`
	BanRemaining string `json:"ban_remaining,omitempty"`
	LastQuestion string `json:"last_question,omitempty"`
}

const lastQuestionWidth = 60

func newStatusCommand(g *globalFlags) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show configuration, session and rate-limit state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.openApp(cmd.ErrOrStderr(), true)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.engine.Start(); err != nil {
				return err
			}

			snap := a.engine.Guard()
			info := statusInfo{
				Endpoint:     a.cfg.Endpoint.URL,
				StoreBackend: a.cfg.Store.Backend,
				StorePath:    a.cfg.Store.Path,
				SessionID:    a.engine.SessionID(),
				Messages:     len(a.engine.Messages()),
				Pending:      a.engine.Pending(),
				GuardState:   snap.State.String(),
				Violations:   snap.Violations,
			}
			if last, ok := a.engine.LastUserMessage(); ok {
				info.LastQuestion = util.TruncateWidth(util.FirstLine(last.Text()), lastQuestionWidth)
			}
			if snap.State == guard.Banned {
				info.BanRemaining = snap.Remaining(a.engine.Now()).Round(time.Second).String()
			}

			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), "status", info, nil)
			}
			printStatus(cmd.OutOrStdout(), info)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "print status as JSON")
	return cmd
}

func printStatus(w io.Writer, info statusInfo) {
	session := info.SessionID
	if session == "" {
		session = dimStyle.Render("(none yet)")
	}
	rows := [][2]string{
		{"Endpoint", info.Endpoint},
		{"Store", info.StoreBackend},
	}
	if info.StorePath != "" {
		rows = append(rows, [2]string{"Store path", info.StorePath})
	}
	rows = append(rows,
		[2]string{"Session", session},
		[2]string{"Messages", fmt.Sprintf("%d", info.Messages)},
		[2]string{"Guard", fmt.Sprintf("%s (%d violations)", info.GuardState, info.Violations)},
	)
	if info.LastQuestion != "" {
		rows = append(rows, [2]string{"Last question", info.LastQuestion})
	}
	if info.BanRemaining != "" {
		rows = append(rows, [2]string{"Ban lifts in", info.BanRemaining})
	}
	for _, r := range rows {
		fmt.Fprintf(w, "%s %s\n", labelStyle.Render(r[0]+":"), r[1])
	}
}
