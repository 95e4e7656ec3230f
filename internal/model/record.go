// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures shared by the live streaming
// path and the history replay path.
package model

import (
	"encoding/json"
	"time"
)

// =============================================================================
// RECORD ROLE
// =============================================================================

// RecordRole identifies the author of a persisted log entry.
type RecordRole string

const (
	RecordUser       RecordRole = "user"
	RecordAssistant  RecordRole = "assistant"
	RecordToolCall   RecordRole = "tool_call"
	RecordToolResult RecordRole = "tool_result"
)

// =============================================================================
// STORED RECORD
// =============================================================================

// StoredRecord is one entry of the flat, time-ordered message log the host
// persists for a chat. It is semantically equivalent to one or more stream
// envelopes but is stored rather than streamed. The client only reads it.
type StoredRecord struct {
	ID        string          `json:"id"`
	ChatID    string          `json:"chatId"`
	MessageID string          `json:"messageId"`
	Role      RecordRole      `json:"role"`
	Content   string          `json:"content"`
	ToolCalls json.RawMessage `json:"toolCalls,omitempty"`
	Files     []string        `json:"files,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// HasToolCalls reports whether an assistant record carries a tool-call
// payload. The host logs either an array of calls or a keyed object; both
// count only when non-empty.
func (r *StoredRecord) HasToolCalls() bool {
	trimmed := trimLeftSpace(r.ToolCalls)
	if len(trimmed) == 0 {
		return false
	}

	switch trimmed[0] {
	case '[':
		var arr []json.RawMessage
		if err := json.Unmarshal(r.ToolCalls, &arr); err != nil {
			return false
		}
		return len(arr) > 0
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(r.ToolCalls, &obj); err != nil {
			return false
		}
		return len(obj) > 0
	}
	return false
}

// CallGroups flattens the record's tool-call payload into call groups.
// An array payload is one group; a keyed object payload contributes one
// group per key in sorted key order (the host keys parallel batches by
// provider id, which sorts chronologically).
func (r *StoredRecord) CallGroups() [][]ToolCall {
	trimmed := trimLeftSpace(r.ToolCalls)
	if len(trimmed) == 0 {
		return nil
	}

	if trimmed[0] == '{' {
		var keyed map[string][]ToolCall
		if err := json.Unmarshal(r.ToolCalls, &keyed); err != nil {
			return nil
		}
		groups := make([][]ToolCall, 0, len(keyed))
		for _, key := range sortedKeys(keyed) {
			if len(keyed[key]) > 0 {
				groups = append(groups, keyed[key])
			}
		}
		return groups
	}

	calls, err := ParseCallGroup(r.ToolCalls)
	if err != nil || len(calls) == 0 {
		return nil
	}
	return [][]ToolCall{calls}
}

// sortedKeys returns map keys in lexical order.
func sortedKeys(m map[string][]ToolCall) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j] < keys[j-1]; j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
	return keys
}

// =============================================================================
// CHAT METADATA
// =============================================================================

// ChatMeta describes one conversation for history listings.
type ChatMeta struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	MessageCount int       `json:"messageCount,omitempty"`
	Preview      string    `json:"preview,omitempty"`
}
