// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package widget is the terminal chat panel for folio-chat.
//
// It is a Bubble Tea model layered over an engine.Engine: key presses
// become engine calls, and engine events are fed back into the update loop.
// Only the messages inside the virtualized window are rendered.
//
// # Key bindings
//
//   - Enter: send the message
//   - Alt+Enter: insert a newline
//   - Ctrl+O: open or close the panel (closing cancels a pending reply)
//   - Ctrl+L: clear the conversation
//   - Ctrl+D: delete the last message you sent
//   - PgUp/PgDn: scroll, End: jump to the newest message
//   - Esc/Ctrl+C: quit
package widget
