// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package engine wires the chat components into the submit, receive and
// display cycle used by the terminal shell.
//
// # Flow
//
//	Submit -> guard check -> append user message + pending placeholder
//	       -> ingest (with the session id) -> placeholder updated per chunk
//	       -> placeholder finalized on done, timeout or network failure
//
// Only one reply is in flight at a time. Every ingestion callback checks
// that its ingestion is still the current one before touching the log, so
// a cancelled or superseded reply can never modify it.
//
// # Key Types
//
//   - Engine: the orchestrator
//   - Deps: injected store, clock, scheduler, transport and logger
//   - Options: endpoint and component settings
//   - Event: change notifications for the shell
//
// # Usage
//
//	eng, err := engine.New(engine.Deps{Store: store}, engine.Options{Endpoint: url})
//	if err != nil {
//	    return err
//	}
//	defer eng.Close()
//
//	// Subscribe first so startup notices are not missed
//	events, unsubscribe := eng.Subscribe()
//	defer unsubscribe()
//	if err := eng.Start(); err != nil {
//	    return err
//	}
//
//	res, err := eng.Submit(ctx, "What have you built?")
package engine
