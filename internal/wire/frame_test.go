// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package wire decodes the chat host's streaming response format.
package wire

import (
	"reflect"
	"testing"
)

// =============================================================================
// FRAME DECODER TESTS
// =============================================================================

func TestFrameDecoder_WholeStream(t *testing.T) {
	stream := "data: {\"a\":1}\ndata: {\"b\":2}\ndata: [DONE]\n"

	d := NewFrameDecoder()
	frames := d.Feed([]byte(stream))

	want := []string{`{"a":1}`, `{"b":2}`, "[DONE]"}
	if !reflect.DeepEqual(frames, want) {
		t.Errorf("Feed() = %v, want %v", frames, want)
	}
}

func TestFrameDecoder_ArbitrarySplit(t *testing.T) {
	stream := "data: {\"a\":1}\ndata: {\"b\":2}\ndata: [DONE]\n"

	whole := NewFrameDecoder().Feed([]byte(stream))

	// Splitting the stream at every byte offset must yield the same frames.
	for offset := 0; offset <= len(stream); offset++ {
		d := NewFrameDecoder()
		var frames []string
		frames = append(frames, d.Feed([]byte(stream[:offset]))...)
		frames = append(frames, d.Feed([]byte(stream[offset:]))...)

		if !reflect.DeepEqual(frames, whole) {
			t.Errorf("split at %d: got %v, want %v", offset, frames, whole)
		}
	}
}

func TestFrameDecoder_DropsNonFrames(t *testing.T) {
	stream := ": keep-alive\n\nevent: ping\ndata: {\"a\":1}\n\n"

	d := NewFrameDecoder()
	frames := d.Feed([]byte(stream))

	want := []string{`{"a":1}`}
	if !reflect.DeepEqual(frames, want) {
		t.Errorf("Feed() = %v, want %v", frames, want)
	}
}

func TestFrameDecoder_CRLF(t *testing.T) {
	d := NewFrameDecoder()
	frames := d.Feed([]byte("data: {\"a\":1}\r\ndata: [DONE]\r\n"))

	want := []string{`{"a":1}`, "[DONE]"}
	if !reflect.DeepEqual(frames, want) {
		t.Errorf("Feed() = %v, want %v", frames, want)
	}
}

func TestFrameDecoder_Flush(t *testing.T) {
	d := NewFrameDecoder()
	frames := d.Feed([]byte("data: {\"a\":1}\ndata: {\"b\":"))

	if want := []string{`{"a":1}`}; !reflect.DeepEqual(frames, want) {
		t.Fatalf("Feed() = %v, want %v", frames, want)
	}

	// Completing the line without a trailing newline leaves the frame in
	// the pending buffer until Flush.
	if frames := d.Feed([]byte("2}")); frames != nil {
		t.Fatalf("Feed() = %v, want none", frames)
	}

	payload, ok := d.Flush()
	if !ok || payload != `{"b":2}` {
		t.Errorf("Flush() = %q, %v, want %q, true", payload, ok, `{"b":2}`)
	}

	// Flush drains the buffer.
	if _, ok := d.Flush(); ok {
		t.Error("second Flush() reported a frame")
	}
}

func TestFrameDecoder_FlushNonFrame(t *testing.T) {
	d := NewFrameDecoder()
	d.Feed([]byte(": trailing comment"))

	if payload, ok := d.Flush(); ok {
		t.Errorf("Flush() = %q, want no frame", payload)
	}
}

func TestIsTerminator(t *testing.T) {
	if !IsTerminator("[DONE]") {
		t.Error("IsTerminator([DONE]) = false")
	}
	if IsTerminator(`{"a":1}`) {
		t.Error("IsTerminator(payload) = true")
	}
}
