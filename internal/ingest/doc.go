// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ingest talks to the remote assistant endpoint and turns its reply
// into message parts.
//
// A request is a JSON POST. The reply may arrive as one body or as a
// chunked stream of progressively larger JSON or text fragments. After
// every chunk the whole buffer received so far is run through Normalize,
// which maps the several reply shapes the endpoint is known to produce
// onto a single list of text parts:
//
//	{"output":"hi"}          -> ["hi"]
//	{"parts":["h","i"]}      -> ["h", "i"]
//	[{"message":"hi"}]       -> ["hi"]   (only the first array element is used)
//	"hi"                     -> ["hi"]
//	not json at all          -> ["not json at all"]
//
// A session identifier found in the reply (under one of several key names,
// possibly nested in "meta") is passed along with each update.
//
// # Key Types
//
//   - Client: sends requests and runs ingestions
//   - Handle: cancels or waits for one ingestion
//   - Error: typed failure with a Kind (timeout, network, canceled)
//
// # Usage
//
//	c := ingest.NewClient(ingest.Config{Endpoint: url})
//	h := c.Ingest(ctx, ingest.Request{UserText: "hi", SessionID: id}, ingest.Callbacks{
//	    OnUpdate: func(parts []string, sessionID string) { ... },
//	    OnDone:   func() { ... },
//	    OnError:  func(kind ingest.ErrorKind, err error) { ... },
//	}, 0)
//	defer h.Cancel()
package ingest
