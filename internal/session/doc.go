// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session provides the durable conversation identifier.
//
// One identifier exists per persistent store. It is created lazily the
// first time a message is submitted, reused until the chat is cleared, and
// replaced whenever the remote assistant hands back its own identifier.
//
// # Key Types
//
//   - Identity: owns the identifier under kv.KeySessionID
//
// # Usage
//
//	ids := session.New(store)
//	id, err := ids.GetOrCreate()
//
//	// The remote side is authoritative once it supplies an id
//	ids.Adopt(remoteID)
package session
