// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// ErrNotConfirmed is returned when a destructive command is declined.
var ErrNotConfirmed = errors.New("not confirmed (use --yes)")

func newClearCommand(g *globalFlags) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete the conversation and start a new session",
		Long: `Delete every stored message and the session identifier.

Rate-limit bans are kept. Without --yes you are asked to confirm; when
stdin is not a terminal, --yes is required.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				if !IsTTY() {
					return ErrNotConfirmed
				}
				fmt.Fprint(cmd.OutOrStdout(), warningStyle.Render("Clear the whole conversation? [y/N] "))
				answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				answer = strings.ToLower(strings.TrimSpace(answer))
				if answer != "y" && answer != "yes" {
					return ErrNotConfirmed
				}
			}

			a, err := g.openApp(cmd.ErrOrStderr(), true)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.engine.Start(); err != nil {
				return err
			}
			if err := a.engine.ClearAll(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), infoStyle.Render("Conversation cleared."))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}
