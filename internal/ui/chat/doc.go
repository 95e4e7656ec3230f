// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the conversation view for the tide TUI.
//
// The view is a Bubble Tea model: a viewport holding the transcript, a
// textarea for composing the next turn, a status bar, and two transient
// overlays (the history picker and the authorization banner).
//
// Streaming updates arrive from the controller's callback goroutine as
// program messages. Transcript snapshots are coalesced through a render
// buffer capped at 30fps so bursts of small text envelopes do not thrash
// the renderer; the freshest snapshot always wins.
package chat
