// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across folio-chat packages.
//
// # Key Functions
//
// File Operations:
//   - AtomicWriteFile: crash-safe whole-file replace (temp file, fsync, rename)
//
// Text:
//   - TruncateWidth: display-width aware truncation with an ellipsis
//   - FirstLine: first non-empty line of a multi-line string
//
// # Usage
//
//	// Persist a document so a crash leaves either the old or the new version
//	err := util.AtomicWriteFile(path, data, 0600)
//
//	// Fit a message preview into a terminal column budget
//	preview := util.TruncateWidth(util.FirstLine(text), 40)
package util
