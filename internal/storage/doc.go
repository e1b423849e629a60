// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides the persisted message log.
//
// The log is an ordered list of model.Message kept in memory and mirrored
// to a kv.Store under kv.KeyHistory as one JSON array. Every mutation
// writes the full array before returning; if the write fails the in-memory
// list is left as it was, so memory and store never disagree.
//
// # Key Types
//
//   - Log: the message log
//   - Patch: partial update applied by UpdateByID while a reply streams
//
// # Usage
//
//	log := storage.NewLog(store, storage.WithMaxMessages(200))
//	if err := log.Load(); err != nil {
//	    return err
//	}
//	log.Append(model.NewUserMessage("hi", time.Now()))
//	for _, m := range log.All() {
//	    fmt.Println(m.Role, m.Text())
//	}
package storage
