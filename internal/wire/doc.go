// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package wire decodes the chat host's streaming response format.
//
// The host answers chat requests with a chunked text stream. Each
// deliverable unit is one newline-terminated line of the form
//
//	data: {"message": "<json-encoded event>", "error": "..."}
//
// and the stream ends with a line whose payload is the literal token
// [DONE]. The message field is itself a JSON-encoded string, so every
// frame is decoded twice: once for the outer envelope, once for the typed
// event inside it.
//
// FrameDecoder turns raw chunks into complete frame payloads, tolerating
// frames split across chunk boundaries. Parse turns one payload into a
// typed Envelope. A malformed frame yields a *ParseError and never
// terminates the stream; the caller drops it and continues.
package wire
