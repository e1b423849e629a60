// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides the folio-chat command line.
//
// # Commands
//
//   - folio-chat: open the terminal chat widget (default)
//   - ask: send one message and print the reply
//   - repl: line-based chat with history
//   - history: print the stored conversation
//   - clear: delete the conversation and session
//   - status: show endpoint, store, session and ban state
//   - config: print, create or validate the config file
//   - mock-server: run a local stand-in for the assistant endpoint
//
// Global flags (--config, --endpoint, --store-backend, --store-path,
// --log-level, --verbose) override the loaded configuration.
//
// # Usage
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer stop()
//	if err := cli.Execute(ctx); err != nil {
//	    os.Exit(1)
//	}
package cli
