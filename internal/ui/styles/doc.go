// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the visual styling for the folio-chat widget.
//
// All colors use Lip Gloss AdaptiveColor so they follow the terminal's
// light or dark background. The theme can also be forced with the ui.theme
// setting.
package styles
