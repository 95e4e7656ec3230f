// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream drives a live chat exchange with the host.
package stream

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/jeranaias/tide-tui/internal/model"
)

// Markup grammar for embedded tool segments. A segment is appended to the
// owning message text and later unpacked by the renderer:
//
//	\n<tool-call toolkey=K name="NAMES">##Tool Calls:<b64>##Tool Result:<b64></tool-call>\n
//
// One call marker per call batch, one result marker per result, in
// call-then-result order. The live path and the history replay path both
// emit exactly this shape, so a reloaded conversation is byte-identical to
// one that just finished streaming.
const (
	callMarker   = "##Tool Calls:"
	resultMarker = "##Tool Result:"

	// namePlaceholder stands in for the tool name until a result
	// identifies its source call.
	namePlaceholder = "%name%"
)

// =============================================================================
// SEGMENT RENDERING
// =============================================================================

// RenderSegment produces the full tagged segment for a batch. Rendering is
// a pure function of the batch state: re-rendering an open batch with the
// same calls and results yields an identical string, which is what lets
// the controller redraw the open tail instead of splicing markers out of
// the accumulated text.
func RenderSegment(key int, groups [][]model.ToolCall, results []model.ToolResult) string {
	var sb strings.Builder
	sb.WriteString("\n<tool-call toolkey=")
	sb.WriteString(strconv.Itoa(key))
	sb.WriteString(` name="`)
	sb.WriteString(segmentName(groups, results))
	sb.WriteString(`">`)

	for _, group := range groups {
		sb.WriteString(callMarker)
		sb.WriteString(encodeCalls(group))
	}
	for _, result := range results {
		sb.WriteString(resultMarker)
		sb.WriteString(encodeResult(result.Result))
	}

	sb.WriteString("</tool-call>\n")
	return sb.String()
}

// segmentName derives the display name of a batch: the de-duplicated,
// comma-joined set of call names, in first-seen order. When no call has a
// name yet, the first named result substitutes; failing that, the literal
// placeholder is shown until one arrives.
func segmentName(groups [][]model.ToolCall, results []model.ToolResult) string {
	var names []string
	seen := make(map[string]bool)
	for _, group := range groups {
		for _, call := range group {
			if call.Name == "" || seen[call.Name] {
				continue
			}
			seen[call.Name] = true
			names = append(names, call.Name)
		}
	}

	if len(names) > 0 {
		return strings.Join(names, ", ")
	}

	for _, result := range results {
		if result.Name != "" {
			return result.Name
		}
	}
	return namePlaceholder
}

// encodeCalls marshals a call group and base64-encodes it. Groups are
// always rendered as arrays, also when a persisted record held a single
// call object, so replay output matches live output.
func encodeCalls(calls []model.ToolCall) string {
	data, err := json.Marshal(calls)
	if err != nil {
		// ToolCall holds raw JSON; marshaling only fails if that raw
		// payload is corrupt. Render an empty group rather than lose
		// the segment.
		data = []byte("[]")
	}
	return base64.StdEncoding.EncodeToString(data)
}

// encodeResult compacts a result payload and base64-encodes it. Compaction
// strips insignificant whitespace so a payload read from the wire and the
// same payload read back from a stored record encode identically.
func encodeResult(raw json.RawMessage) string {
	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err != nil {
		return base64.StdEncoding.EncodeToString(raw)
	}
	return base64.StdEncoding.EncodeToString(compact.Bytes())
}
