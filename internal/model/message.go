// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures shared by the live streaming
// path and the history replay path.
package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// DISPLAY MESSAGE
// =============================================================================

// DisplayMessage is one bubble in the conversation transcript.
//
// IDs are assigned provisionally by the client and rewritten once the host
// reports canonical ids via a message_info event. Text is the accumulated
// markup string: plain text interleaved with <tool-call> segments.
type DisplayMessage struct {
	ID        string   `json:"id"`
	Text      string   `json:"text"`
	IsSent    bool     `json:"isSent"`
	Timestamp int64    `json:"timestamp"` // epoch milliseconds
	IsError   bool     `json:"isError,omitempty"`
	Files     []string `json:"files,omitempty"`
}

// NewUserMessage creates a user bubble with a provisional id.
func NewUserMessage(text string, files []string) DisplayMessage {
	return DisplayMessage{
		ID:        newMessageID(),
		Text:      text,
		IsSent:    true,
		Timestamp: time.Now().UnixMilli(),
		Files:     files,
	}
}

// NewAssistantMessage creates an empty assistant bubble ready to receive
// streamed content.
func NewAssistantMessage() DisplayMessage {
	return DisplayMessage{
		ID:        newMessageID(),
		IsSent:    false,
		Timestamp: time.Now().UnixMilli(),
	}
}

// IsEmpty reports whether the bubble has no content yet.
func (m *DisplayMessage) IsEmpty() bool {
	return m.Text == "" && len(m.Files) == 0
}

// Preview returns a truncated single-line preview of the message text.
// Rune-based truncation keeps multi-byte characters intact.
func (m *DisplayMessage) Preview(maxLen int) string {
	runes := []rune(m.Text)
	if len(runes) <= maxLen {
		return m.Text
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// newMessageID generates a provisional client-side message id.
func newMessageID() string {
	return "msg_" + uuid.NewString()
}

// =============================================================================
// TOOL CALLS AND RESULTS
// =============================================================================

// ToolCall is one tool invocation requested by the model. Arguments are kept
// as raw JSON; the client renders them, it never executes them.
type ToolCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// ToolResult is the outcome of one tool invocation. Name identifies the
// originating call, which may not have been known when the call batch was
// first rendered.
type ToolResult struct {
	Name   string          `json:"name"`
	Result json.RawMessage `json:"result"`
}

// ParseCallGroup decodes a persisted tool-call payload. The host logs either
// a single call object or an array of calls; both shapes decode to a slice.
func ParseCallGroup(raw json.RawMessage) ([]ToolCall, error) {
	trimmed := trimLeftSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var calls []ToolCall
		if err := json.Unmarshal(raw, &calls); err != nil {
			return nil, err
		}
		return calls, nil
	}

	var call ToolCall
	if err := json.Unmarshal(raw, &call); err != nil {
		return nil, err
	}
	return []ToolCall{call}, nil
}

// trimLeftSpace skips leading JSON whitespace without allocating.
func trimLeftSpace(b []byte) []byte {
	for len(b) > 0 {
		switch b[0] {
		case ' ', '\t', '\n', '\r':
			b = b[1:]
		default:
			return b
		}
	}
	return b
}
