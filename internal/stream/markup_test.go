// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream drives a live chat exchange with the host.
package stream

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"

	"github.com/jeranaias/tide-tui/internal/model"
)

func call(name, args string) model.ToolCall {
	return model.ToolCall{Name: name, Arguments: json.RawMessage(args)}
}

func result(name, payload string) model.ToolResult {
	return model.ToolResult{Name: name, Result: json.RawMessage(payload)}
}

// =============================================================================
// SEGMENT RENDERING TESTS
// =============================================================================

func TestRenderSegment_Shape(t *testing.T) {
	calls := []model.ToolCall{call("search", `{"query":"go"}`)}
	results := []model.ToolResult{result("search", `{"hits":3}`)}

	segment := RenderSegment(7, [][]model.ToolCall{calls}, results)

	wantCalls := base64.StdEncoding.EncodeToString([]byte(`[{"name":"search","arguments":{"query":"go"}}]`))
	wantResult := base64.StdEncoding.EncodeToString([]byte(`{"hits":3}`))
	want := "\n<tool-call toolkey=7 name=\"search\">" +
		"##Tool Calls:" + wantCalls +
		"##Tool Result:" + wantResult +
		"</tool-call>\n"

	if segment != want {
		t.Errorf("RenderSegment() =\n%q\nwant\n%q", segment, want)
	}
}

func TestRenderSegment_Idempotent(t *testing.T) {
	groups := [][]model.ToolCall{{call("a", `{}`), call("b", `{}`)}}
	results := []model.ToolResult{result("a", `{"ok":true}`)}

	first := RenderSegment(0, groups, results)
	second := RenderSegment(0, groups, results)
	if first != second {
		t.Errorf("re-rendering differs:\n%q\n%q", first, second)
	}
}

func TestSegmentName(t *testing.T) {
	tests := []struct {
		name    string
		groups  [][]model.ToolCall
		results []model.ToolResult
		want    string
	}{
		{
			name:   "single call",
			groups: [][]model.ToolCall{{call("search", `{}`)}},
			want:   "search",
		},
		{
			name:   "deduplicated in first-seen order",
			groups: [][]model.ToolCall{{call("b", `{}`), call("a", `{}`)}, {call("b", `{}`)}},
			want:   "b, a",
		},
		{
			name:   "anonymous calls skipped",
			groups: [][]model.ToolCall{{call("", `{}`), call("fetch", `{}`)}},
			want:   "fetch",
		},
		{
			name:    "result name substitutes",
			groups:  [][]model.ToolCall{{call("", `{}`)}},
			results: []model.ToolResult{result("fetch", `{}`)},
			want:    "fetch",
		},
		{
			name:   "placeholder until a name arrives",
			groups: [][]model.ToolCall{{call("", `{}`)}},
			want:   "%name%",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := segmentName(tt.groups, tt.results); got != tt.want {
				t.Errorf("segmentName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEncodeResult_Compacts(t *testing.T) {
	// A payload read back from storage may carry pretty-printed whitespace;
	// it must encode identically to the wire form.
	wire := encodeResult(json.RawMessage(`{"hits":3}`))
	stored := encodeResult(json.RawMessage("{\n  \"hits\": 3\n}"))
	if wire != stored {
		t.Errorf("encodings differ: %q vs %q", wire, stored)
	}

	decoded, err := base64.StdEncoding.DecodeString(wire)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(decoded) != `{"hits":3}` {
		t.Errorf("decoded payload = %q", decoded)
	}
}

func TestEncodeResult_NonJSONFallsBack(t *testing.T) {
	raw := json.RawMessage("not json at all")
	encoded := encodeResult(raw)

	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(decoded) != "not json at all" {
		t.Errorf("decoded payload = %q", decoded)
	}
}

func TestRenderSegment_MarkerCounts(t *testing.T) {
	groups := [][]model.ToolCall{
		{call("a", `{}`)},
		{call("b", `{}`)},
	}
	results := []model.ToolResult{
		result("a", `{}`),
		result("b", `{}`),
	}

	segment := RenderSegment(1, groups, results)
	if n := strings.Count(segment, callMarker); n != 2 {
		t.Errorf("call markers = %d, want 2", n)
	}
	if n := strings.Count(segment, resultMarker); n != 2 {
		t.Errorf("result markers = %d, want 2", n)
	}
}
