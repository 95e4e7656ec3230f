// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the visual styling system for the tide TUI.
//
// All colors use Lip Gloss AdaptiveColor so light and dark terminals both
// get readable output without configuration. Theme bundles the styled
// components the chat view renders with; it detects the terminal's color
// capability once at startup.
package styles
