// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/jeranaias/folio-chat/internal/ui/widget"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:   "folio-chat",
		Short: "Chat with a portfolio assistant from the terminal",
		Long: `folio-chat is a chat client for a portfolio assistant endpoint.

Without a subcommand it opens the chat widget. The conversation, session
and rate-limit state persist in the configured store, so they survive
restarts and are shared by every command.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", Version, GitCommit, BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			lipgloss.SetColorProfile(GetColorProfile())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWidget(cmd, g)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&g.configPath, "config", "c", "", "config file (default ~/.folio-chat/config.toml)")
	flags.StringVar(&g.endpoint, "endpoint", "", "assistant endpoint URL")
	flags.StringVar(&g.backend, "store-backend", "", "store backend: file, sqlite, pebble, redis, memory")
	flags.StringVar(&g.storePath, "store-path", "", "store file or directory")
	flags.StringVar(&g.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.BoolVarP(&g.verbose, "verbose", "v", false, "log debug output to stderr (not in the widget)")

	root.AddCommand(
		newAskCommand(g),
		newReplCommand(g),
		newHistoryCommand(g),
		newClearCommand(g),
		newStatusCommand(g),
		newConfigCommand(g),
		newMockServerCommand(),
	)
	return root
}

// Execute runs the CLI with ctx, which should be canceled on interrupt.
func Execute(ctx context.Context) error {
	root := NewRootCommand()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(root.ErrOrStderr(), errorStyle.Render("Error:"), err)
		return err
	}
	return nil
}

func runWidget(cmd *cobra.Command, g *globalFlags) error {
	a, err := g.openApp(cmd.ErrOrStderr(), false)
	if err != nil {
		return err
	}
	defer a.close()

	return widget.Run(cmd.Context(), a.engine, widget.Options{
		Title:     a.cfg.UI.Title,
		Theme:     a.cfg.UI.Theme,
		Markdown:  a.cfg.UI.Markdown,
		StartOpen: a.cfg.UI.StartOpen,
		Overscan:  a.cfg.Viewport.Overscan,
		Logger:    a.logger.Named("widget"),
	})
}
