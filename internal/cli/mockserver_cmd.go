// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/folio-chat/internal/logging"
	"github.com/jeranaias/folio-chat/internal/mockserver"
)

const shutdownTimeout = 5 * time.Second

func newMockServerCommand() *cobra.Command {
	var (
		addr     string
		shape    string
		chunks   int
		delay    time.Duration
		logLevel string
	)

	cmd := &cobra.Command{
		Use:   "mock-server",
		Short: "Run a local assistant endpoint that echoes questions",
		Long: fmt.Sprintf(`Run a local assistant endpoint for development.

Replies echo the question in one of the supported response shapes:
  %s, or %s to cycle through them.

Point the client at it with --endpoint http://localhost:8787/chat.`,
			strings.Join(mockserver.Shapes, ", "), mockserver.ShapeRotate),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if shape != mockserver.ShapeRotate && !slices.Contains(mockserver.Shapes, shape) {
				return fmt.Errorf("unknown shape %q", shape)
			}

			logger, err := logging.New(logging.Config{Level: logLevel, Format: "console"})
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			srv := mockserver.New(mockserver.Config{
				Shape:      shape,
				Chunks:     chunks,
				ChunkDelay: delay,
			}, logger)

			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s http://%s/chat (shape %s)\n",
				infoStyle.Render("Listening on"), ln.Addr(), shape)

			return serveUntilDone(cmd.Context(), &http.Server{
				Handler:           srv,
				ReadHeaderTimeout: 10 * time.Second,
			}, ln, logger)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&addr, "addr", ":8787", "listen address")
	flags.StringVar(&shape, "shape", mockserver.ShapeOutput, "reply shape")
	flags.IntVar(&chunks, "chunks", 1, "split each reply body into N flushed writes")
	flags.DurationVar(&delay, "delay", 0, "pause between chunks")
	flags.StringVar(&logLevel, "log-level", "info", "request log level")
	return cmd
}

// serveUntilDone serves on ln until ctx is canceled, then shuts down.
func serveUntilDone(ctx context.Context, srv *http.Server, ln net.Listener, logger *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
