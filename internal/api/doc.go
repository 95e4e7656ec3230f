// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api provides the HTTP client for communicating with the chat
// host service.
//
// The host owns model inference, tool execution, and chat persistence; the
// client only sends turns and reads back streams and records. Chat sends
// return the raw streaming body - decoding belongs to internal/wire and
// internal/stream. Control calls (abort, authorization callback, delete)
// are rate limited and treated as best effort by callers.
package api
