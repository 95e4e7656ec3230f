// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package wire decodes the chat host's streaming response format.
package wire

import (
	"encoding/json"
	"errors"
	"testing"
)

// frame builds a well-formed double-encoded frame payload: the typed event
// serialized to JSON, carried as a string inside the outer message field.
func frame(t *testing.T, typ EventType, content any) string {
	t.Helper()

	inner, err := json.Marshal(map[string]any{
		"type":    typ,
		"content": content,
	})
	if err != nil {
		t.Fatalf("marshal inner: %v", err)
	}
	outer, err := json.Marshal(map[string]string{"message": string(inner)})
	if err != nil {
		t.Fatalf("marshal outer: %v", err)
	}
	return string(outer)
}

// =============================================================================
// ENVELOPE PARSING TESTS
// =============================================================================

func TestParse_Text(t *testing.T) {
	env, err := Parse(frame(t, EventText, "Hello, "))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if env.Type != EventText || env.Text != "Hello, " {
		t.Errorf("Parse() = %+v, want text %q", env, "Hello, ")
	}
}

func TestParse_ToolCalls(t *testing.T) {
	env, err := Parse(frame(t, EventToolCalls, []map[string]any{
		{"name": "search", "arguments": map[string]string{"query": "go"}},
		{"name": "fetch", "arguments": map[string]string{}},
	}))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if env.Type != EventToolCalls {
		t.Fatalf("Parse() type = %v, want %v", env.Type, EventToolCalls)
	}
	if len(env.Calls) != 2 || env.Calls[0].Name != "search" || env.Calls[1].Name != "fetch" {
		t.Errorf("Parse() calls = %+v", env.Calls)
	}
}

func TestParse_ToolResult(t *testing.T) {
	env, err := Parse(frame(t, EventToolResult, map[string]any{
		"name":   "search",
		"result": map[string]int{"hits": 3},
	}))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if env.Type != EventToolResult || env.Result == nil {
		t.Fatalf("Parse() = %+v, want tool_result", env)
	}
	if env.Result.Name != "search" {
		t.Errorf("result name = %q, want %q", env.Result.Name, "search")
	}
}

func TestParse_ChatInfo(t *testing.T) {
	env, err := Parse(frame(t, EventChatInfo, map[string]string{
		"id":    "chat_42",
		"title": "Weather talk",
	}))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if env.Chat == nil || env.Chat.ID != "chat_42" || env.Chat.Title != "Weather talk" {
		t.Errorf("Parse() chat = %+v", env.Chat)
	}
}

func TestParse_MessageInfo(t *testing.T) {
	env, err := Parse(frame(t, EventMessageInfo, map[string]string{
		"userMessageId":      "u1",
		"assistantMessageId": "a1",
	}))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if env.Message == nil || env.Message.UserMessageID != "u1" || env.Message.AssistantMessageID != "a1" {
		t.Errorf("Parse() message = %+v", env.Message)
	}
}

func TestParse_Interactive(t *testing.T) {
	// Interactive payloads nest one level deeper than the other events.
	env, err := Parse(frame(t, EventInteractive, map[string]any{
		"content": map[string]string{
			"auth_url":    "https://auth.example.com/start?state=abc",
			"server_name": "github",
		},
	}))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if env.Interactive == nil {
		t.Fatal("Parse() interactive = nil")
	}
	if env.Interactive.AuthURL != "https://auth.example.com/start?state=abc" {
		t.Errorf("auth url = %q", env.Interactive.AuthURL)
	}
	if env.Interactive.ServerName != "github" {
		t.Errorf("server name = %q", env.Interactive.ServerName)
	}
}

func TestParse_ErrorEvent(t *testing.T) {
	env, err := Parse(frame(t, EventError, "rate limited"))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if env.Type != EventError || env.Text != "rate limited" {
		t.Errorf("Parse() = %+v", env)
	}
}

func TestParse_OuterError(t *testing.T) {
	env, err := Parse(`{"message":"","error":"backend unavailable"}`)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if env.Type != EventError || env.Text != "backend unavailable" {
		t.Errorf("Parse() = %+v, want error envelope", env)
	}
}

func TestParse_UnknownType(t *testing.T) {
	_, err := Parse(frame(t, "telemetry", map[string]int{"n": 1}))
	if err == nil {
		t.Fatal("Parse() succeeded on unknown type")
	}
	if !errors.Is(err, ErrUnknownEvent) {
		t.Errorf("error = %v, want ErrUnknownEvent", err)
	}

	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Errorf("error is not *ParseError: %v", err)
	}
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		frame string
	}{
		{"not json", "garbage"},
		{"outer only", `{"message":"not json either"}`},
		{"wrong content shape", `{"message":"{\"type\":\"text\",\"content\":42}"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.frame)
			if err == nil {
				t.Fatal("Parse() succeeded on malformed frame")
			}
			var parseErr *ParseError
			if !errors.As(err, &parseErr) {
				t.Fatalf("error is not *ParseError: %v", err)
			}
			if parseErr.Frame != tt.frame {
				t.Errorf("ParseError.Frame = %q, want %q", parseErr.Frame, tt.frame)
			}
		})
	}
}
