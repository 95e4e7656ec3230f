// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package wire decodes the chat host's streaming response format.
package wire

import (
	"strings"
)

// framePrefix marks a deliverable line. Keep-alives and blank lines do not
// carry it and are discarded.
const framePrefix = "data: "

// Terminator is the payload of the final frame of a stream.
const Terminator = "[DONE]"

// =============================================================================
// FRAME DECODER
// =============================================================================

// FrameDecoder splits a raw chunk stream into complete frame payloads.
//
// The transport delivers arbitrary chunks; a frame may arrive split across
// any byte boundary. The decoder keeps the trailing partial line between
// Feed calls so that splitting a stream at any offset yields the same
// frames as feeding it whole.
type FrameDecoder struct {
	pending strings.Builder
}

// NewFrameDecoder creates an empty decoder.
func NewFrameDecoder() *FrameDecoder {
	return &FrameDecoder{}
}

// Feed consumes one chunk and returns the payloads of every complete
// data frame it completes, prefix stripped and whitespace trimmed.
// Non-frame lines are dropped. The [DONE] terminator is returned as a
// regular payload; callers check IsTerminator.
func (d *FrameDecoder) Feed(chunk []byte) []string {
	d.pending.Write(chunk)

	buffered := d.pending.String()
	lines := strings.Split(buffered, "\n")

	// The last piece is an incomplete line (possibly empty); it becomes
	// the new pending buffer.
	d.pending.Reset()
	d.pending.WriteString(lines[len(lines)-1])
	lines = lines[:len(lines)-1]

	var frames []string
	for _, line := range lines {
		payload, ok := framePayload(line)
		if !ok {
			continue
		}
		frames = append(frames, payload)
	}
	return frames
}

// Flush returns the payload of a final unterminated frame, if the stream
// ended without a trailing newline.
func (d *FrameDecoder) Flush() (string, bool) {
	line := d.pending.String()
	d.pending.Reset()
	return framePayload(line)
}

// IsTerminator reports whether a payload is the end-of-stream token.
func IsTerminator(payload string) bool {
	return payload == Terminator
}

// framePayload extracts the payload from one line, or reports that the
// line is not a frame.
func framePayload(line string) (string, bool) {
	line = strings.TrimRight(line, "\r")
	if !strings.HasPrefix(line, framePrefix) {
		return "", false
	}
	payload := strings.TrimSpace(line[len(framePrefix)-1:])
	if payload == "" {
		return "", false
	}
	return payload, true
}
