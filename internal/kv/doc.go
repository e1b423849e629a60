// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package kv provides the persistent key-value store backing the chat engine.
//
// Every stateful component (session identity, message log, abuse guard)
// keeps its state under a fixed key and rewrites the whole value on each
// mutation. A Store only has to offer whole-value get, set and remove.
//
// # Backends
//
//   - file: one JSON object on disk, replaced atomically on every write (default)
//   - sqlite: a single kv table in a WAL-mode SQLite database
//   - pebble: a Pebble LSM directory, writes synced
//   - redis: a Redis server, keys namespaced by a prefix
//   - memory: in-process map with Snapshot/Restore for tests
//
// # Usage
//
//	store, err := kv.Open(kv.Options{Backend: kv.BackendFile, Path: "~/.folio-chat/store.json"})
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	id, ok, err := store.Get(kv.KeySessionID)
package kv
