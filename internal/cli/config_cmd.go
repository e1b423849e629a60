// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jeranaias/folio-chat/internal/config"
)

func newConfigCommand(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the config file",
	}
	cmd.AddCommand(
		newConfigPathCommand(g),
		newConfigShowCommand(g),
		newConfigInitCommand(g),
		newConfigCheckCommand(g),
	)
	return cmd
}

// configFile is --config, or the default TOML location.
func (g *globalFlags) configFile() (string, error) {
	if g.configPath != "" {
		return g.configPath, nil
	}
	return config.ConfigPathTOML()
}

func newConfigPathCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := g.configFile()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}

func newConfigShowCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration (secrets redacted)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cfg.String())
			return nil
		},
	}
}

func newConfigInitCommand(g *globalFlags) *cobra.Command {
	var (
		force  bool
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with default values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := g.configFile()
			if err != nil {
				return err
			}
			if asJSON && g.configPath == "" {
				if path, err = config.ConfigPathJSON(); err != nil {
					return err
				}
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.EnsureConfigDir(); err != nil {
				return err
			}

			cfg := config.Default()
			if asJSON {
				err = config.SaveJSON(cfg, path)
			} else {
				err = config.SaveTOML(cfg, path)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", infoStyle.Render("Wrote"), path)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")
	cmd.Flags().BoolVar(&asJSON, "json", false, "write JSON instead of TOML")
	return cmd
}

func newConfigCheckCommand(g *globalFlags) *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the config file, optionally on every save",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := g.configFile()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			_, err = config.LoadFromPath(path)
			reportCheck(out, path, err)
			if !watch {
				return err
			}

			fmt.Fprintln(out, dimStyle.Render("Watching for changes, Ctrl+C to stop."))
			return config.Watch(cmd.Context(), path, config.DefaultWatchDebounce, func(_ *config.Config, err error) {
				reportCheck(out, path, err)
			})
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "re-check whenever the file changes")
	return cmd
}

func reportCheck(w io.Writer, path string, err error) {
	if err == nil {
		fmt.Fprintf(w, "%s %s\n", infoStyle.Render("OK"), path)
		return
	}
	var verrs config.ValidateErrors
	if errors.As(err, &verrs) {
		fmt.Fprintf(w, "%s %s\n", errorStyle.Render("Invalid"), path)
		for _, e := range verrs {
			fmt.Fprintf(w, "  %s\n", e.Error())
		}
		return
	}
	fmt.Fprintf(w, "%s %v\n", errorStyle.Render("Error"), err)
}
