// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// ErrRejected is returned when the abuse guard refuses a message.
var ErrRejected = errors.New("message rejected")

const thinkingText = "Thinking..."

type askResult struct {
	SessionID string      `json:"session_id"`
	Question  messageJSON `json:"question"`
	Reply     messageJSON `json:"reply"`
}

func newAskCommand(g *globalFlags) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "ask <question...>",
		Short: "Ask a single question and print the reply",
		Example: `  folio-chat ask "What projects have you shipped?"
  folio-chat ask --json "Which languages do you use?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()

			a, err := g.openApp(stderr, true)
			if err != nil {
				return err
			}
			defer a.close()

			events, unsubscribe := a.engine.Subscribe()
			defer unsubscribe()
			if err := a.engine.Start(); err != nil {
				return err
			}

			ctx := cmd.Context()
			res, err := a.engine.Submit(ctx, text)
			if err != nil {
				if jsonOut {
					_ = writeJSON(stdout, "ask", nil, err)
				}
				return err
			}
			if !res.Accepted {
				err := fmt.Errorf("%w: %s", ErrRejected, res.Notice.Text)
				if jsonOut {
					_ = writeJSON(stdout, "ask", nil, err)
					return err
				}
				drainNotices(stderr, events)
				return ErrRejected
			}

			if !jsonOut && IsStderrTTY() {
				fmt.Fprintln(stderr, dimStyle.Render(thinkingText))
			}
			awaitReply(ctx, a.engine)

			reply, _ := findMessage(a.engine, res.ReplyID)
			question, _ := findMessage(a.engine, res.UserMessageID)

			if jsonOut {
				return writeJSON(stdout, "ask", askResult{
					SessionID: a.engine.SessionID(),
					Question:  toMessageJSON(question),
					Reply:     toMessageJSON(reply),
				}, nil)
			}

			drainNotices(stderr, events)
			fmt.Fprintln(stdout, renderReply(reply.Text(), a.cfg.UI.Markdown))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the exchange as JSON")
	return cmd
}
