// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package history

import (
	"context"
	"encoding/json"

	"github.com/jeranaias/tide-tui/internal/model"
	"github.com/jeranaias/tide-tui/internal/stream"
)

// =============================================================================
// RECORD SOURCE
// =============================================================================

// RecordSource loads the persisted log of a chat, ordered by creation
// time. The host API client and the local sqlite cache both implement it;
// this package does not care how records are stored.
type RecordSource interface {
	Records(ctx context.Context, chatID string) ([]model.StoredRecord, error)
}

// =============================================================================
// RECONSTRUCTION
// =============================================================================

// Result is a rebuilt transcript. NextToolKey is the key the next live
// batch should receive so a resumed stream continues the sequence.
type Result struct {
	Messages    []model.DisplayMessage
	NextToolKey int
}

// Load fetches a chat's records and reconstructs its transcript.
func Load(ctx context.Context, source RecordSource, chatID string) (Result, error) {
	records, err := source.Records(ctx, chatID)
	if err != nil {
		return Result{}, err
	}
	return Reconstruct(records), nil
}

// Reconstruct replays a stored record sequence into display messages.
//
// The walk keeps one current assistant bubble and two buffers: pending
// call groups and pending results. Results for one batch may be logged as
// several consecutive records, so folding waits until the next record is
// not a tool_result; the fold then runs the same segment rendering the
// live path uses, under the next tool key.
func Reconstruct(records []model.StoredRecord) Result {
	var (
		messages  []model.DisplayMessage
		callBuf   [][]model.ToolCall
		resultBuf []model.ToolResult
		toolKey   int
	)

	for i := range records {
		rec := &records[i]

		// A user turn always starts a fresh bubble and becomes the
		// reference point for "was the previous message a user turn".
		if rec.Role == model.RecordUser {
			messages = append(messages, toMessage(rec, rec.Content))
			continue
		}

		lastIsUser := len(messages) == 0 || messages[len(messages)-1].IsSent

		// Attachments on a non-user record belong to the preceding
		// assistant bubble; text and files for one logical turn can
		// arrive as separate records.
		if !lastIsUser && len(rec.Files) > 0 {
			last := &messages[len(messages)-1]
			last.Files = append(last.Files, rec.Files...)
		}

		switch rec.Role {
		case model.RecordToolCall:
			if group, err := model.ParseCallGroup(json.RawMessage(rec.Content)); err == nil && len(group) > 0 {
				callBuf = append(callBuf, group)
			}
			// A tool-only turn still needs a bubble.
			if lastIsUser {
				messages = append(messages, toMessage(rec, ""))
			}

		case model.RecordToolResult:
			resultBuf = append(resultBuf, model.ToolResult{Result: json.RawMessage(rec.Content)})
			// Results for one batch are logged consecutively; hold the
			// fold until the run ends.
			if i+1 < len(records) && records[i+1].Role == model.RecordToolResult {
				continue
			}

			if lastIsUser {
				messages = append(messages, toMessage(rec, ""))
			}
			last := &messages[len(messages)-1]
			last.Text += stream.RenderSegment(toolKey, callBuf, resultBuf)
			toolKey++
			callBuf = nil
			resultBuf = nil

		case model.RecordAssistant:
			if rec.HasToolCalls() {
				if lastIsUser {
					messages = append(messages, toMessage(rec, rec.Content))
				} else if rec.Content != "" && len(callBuf) == 0 {
					last := &messages[len(messages)-1]
					last.Text += rec.Content
				}
				callBuf = append(callBuf, rec.CallGroups()...)
				continue
			}

			if lastIsUser {
				messages = append(messages, toMessage(rec, rec.Content))
			} else {
				last := &messages[len(messages)-1]
				last.Text += rec.Content
			}
		}
	}

	return Result{Messages: messages, NextToolKey: toolKey}
}

// toMessage converts one record into a display message. The host's
// canonical message id wins over the record's row id.
func toMessage(rec *model.StoredRecord, text string) model.DisplayMessage {
	id := rec.MessageID
	if id == "" {
		id = rec.ID
	}
	return model.DisplayMessage{
		ID:        id,
		Text:      text,
		IsSent:    rec.Role == model.RecordUser,
		Timestamp: rec.CreatedAt.UnixMilli(),
		Files:     append([]string(nil), rec.Files...),
	}
}
