// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the message types shared by the chat engine, the
// message log, and the terminal shell.
//
// # Key Types
//
//   - Role: sender of a message (user or assistant)
//   - Part: one text segment of a message body
//   - Message: a single chat entry, possibly still pending
//
// # Wire Form
//
// Messages are stored as JSON using the field names of the browser widget
// this engine grew out of, so a log written by either side can be read by
// the other:
//
//	{"id":"...","role":"assistant","parts":[{"text":"hi"}],"timestamp":"3:04 PM","isPending":false}
//
// The legacy role name "model" decodes as RoleAssistant.
//
// # Usage
//
//	msg := model.NewUserMessage("hello", time.Now())
//	reply := model.NewPlaceholder(time.Now())
//	fmt.Println(reply.Text()) // "Processing your request..."
package model
