// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures shared by the live streaming
// path and the history replay path.
//
// The central type is DisplayMessage: one bubble in the conversation
// transcript. During live streaming exactly one DisplayMessage is active
// (the most recently pushed assistant message); everything the stream
// produces - plain text, tool-call markup, inline errors - accumulates into
// its Text field. StoredRecord is the persisted flat log entry the host
// keeps for each chat; internal/history folds a record sequence back into
// the same DisplayMessage shape.
package model
