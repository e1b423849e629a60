// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package mockserver is a stand-in for the remote assistant endpoint.
//
// It answers POST /chat in any of the reply shapes the client understands
// (output, parts, messages, message, bare string, array-wrapped, plain
// text), optionally streamed in chunks, and issues or echoes a session id.
// It backs the `mock-server` command for local development and the
// engine's integration tests.
//
// The shape can be fixed in Config or chosen per request with the
// "shape" query parameter; "rotate" cycles through all of them.
package mockserver
