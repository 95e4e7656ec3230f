// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream drives a live chat exchange with the host.
//
// Controller owns the read loop: it sends the request, feeds the chunked
// response through wire.FrameDecoder and wire.Parse, and applies each typed
// envelope to the conversation transcript. Tool invocations are tracked by
// Ledger and rendered into embeddable <tool-call> markup segments; an
// interactive authorization request suspends into AuthGate until the user
// decides or the stream moves on.
//
// All handler logic runs synchronously on the single goroutine consuming
// the response body, so ledger and transcript state need no locking beyond
// the controller's own state mutex. Cancellation is cooperative: Cancel
// stops the reader at the next chunk boundary and preserves whatever text
// has accumulated.
package stream
