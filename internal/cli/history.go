// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"github.com/spf13/cobra"
)

func newHistoryCommand(g *globalFlags) *cobra.Command {
	var (
		jsonOut bool
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print the stored conversation",
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

			msgs := a.engine.Messages()
			if limit > 0 && len(msgs) > limit {
				msgs = msgs[len(msgs)-limit:]
			}

			if jsonOut {
				out := make([]messageJSON, 0, len(msgs))
				for _, m := range msgs {
					out = append(out, toMessageJSON(m))
				}
				return writeJSON(cmd.OutOrStdout(), "history", out, nil)
			}
			printTranscript(cmd.OutOrStdout(), msgs)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "print messages as JSON")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "show only the last N messages")
	return cmd
}
