// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package history rebuilds a conversation transcript from the host's
// persisted message log.
//
// The host stores each chat as a flat, time-ordered sequence of records:
// user turns, assistant text, tool calls, and tool results as separate
// entries. Reconstruct folds that sequence back into the same
// DisplayMessage shape - and byte-identical text - that the live streaming
// path would have produced, so a reloaded conversation is
// indistinguishable from one that just finished streaming.
//
// Reconstruction is pure and order-preserving: re-running it over the same
// records always yields identical output.
package history
