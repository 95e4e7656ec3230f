// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package wire decodes the chat host's streaming response format.
package wire

import (
	"encoding/json"
	"errors"

	"github.com/jeranaias/tide-tui/internal/model"
)

// =============================================================================
// EVENT TYPES
// =============================================================================

// EventType discriminates the decoded envelope variants.
type EventType string

const (
	EventText        EventType = "text"
	EventToolCalls   EventType = "tool_calls"
	EventToolResult  EventType = "tool_result"
	EventChatInfo    EventType = "chat_info"
	EventMessageInfo EventType = "message_info"
	EventInteractive EventType = "interactive"
	EventError       EventType = "error"
)

// ErrUnknownEvent is wrapped into the *ParseError returned for an
// unrecognized event type. Unknown types are rejected explicitly rather
// than falling through silently.
var ErrUnknownEvent = errors.New("unknown event type")

// =============================================================================
// ENVELOPE
// =============================================================================

// Envelope is one decoded, typed unit of wire communication. Exactly the
// fields matching Type are populated.
type Envelope struct {
	Type EventType

	// Text carries the content of text and error events.
	Text string

	// Calls carries the batch of a tool_calls event.
	Calls []model.ToolCall

	// Result carries the single result of a tool_result event.
	Result *model.ToolResult

	// Chat carries chat_info metadata.
	Chat *ChatInfo

	// Message carries message_info id rewrites.
	Message *MessageInfo

	// Interactive carries the authorization request of an interactive event.
	Interactive *InteractiveInfo
}

// ChatInfo is the server-assigned conversation identity.
type ChatInfo struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// MessageInfo rewrites the provisional ids of the in-flight user and
// assistant messages with server-canonical ones. A pure metadata patch.
type MessageInfo struct {
	UserMessageID      string `json:"userMessageId"`
	AssistantMessageID string `json:"assistantMessageId"`
}

// InteractiveInfo is an in-band request for the user to approve an
// external authorization flow mid-stream.
type InteractiveInfo struct {
	AuthURL    string
	ServerName string
}

// =============================================================================
// PARSE ERROR
// =============================================================================

// ParseError reports a single malformed frame. It is recoverable: the
// caller drops the frame and keeps reading.
type ParseError struct {
	Frame string
	Cause error
}

func (e *ParseError) Error() string {
	return "malformed frame: " + e.Cause.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// =============================================================================
// PARSER
// =============================================================================

// outerFrame is the first decode layer: the message field is a
// JSON-encoded string holding the typed event.
type outerFrame struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// innerEvent is the second decode layer.
type innerEvent struct {
	Type    EventType       `json:"type"`
	Content json.RawMessage `json:"content"`
}

// interactiveContent mirrors the doubly-nested interactive payload.
type interactiveContent struct {
	Content struct {
		AuthURL    string `json:"auth_url"`
		ServerName string `json:"server_name"`
	} `json:"content"`
}

// Parse decodes one frame payload into a typed Envelope.
//
// An outer error field is surfaced as an error event so the read loop
// treats it like any other content-level error: shown inline, stream
// kept draining. All failures return *ParseError.
func Parse(frame string) (*Envelope, error) {
	var outer outerFrame
	if err := json.Unmarshal([]byte(frame), &outer); err != nil {
		return nil, &ParseError{Frame: frame, Cause: err}
	}

	if outer.Error != "" {
		return &Envelope{Type: EventError, Text: outer.Error}, nil
	}

	var inner innerEvent
	if err := json.Unmarshal([]byte(outer.Message), &inner); err != nil {
		return nil, &ParseError{Frame: frame, Cause: err}
	}

	env := &Envelope{Type: inner.Type}
	switch inner.Type {
	case EventText, EventError:
		if err := json.Unmarshal(inner.Content, &env.Text); err != nil {
			return nil, &ParseError{Frame: frame, Cause: err}
		}

	case EventToolCalls:
		if err := json.Unmarshal(inner.Content, &env.Calls); err != nil {
			return nil, &ParseError{Frame: frame, Cause: err}
		}

	case EventToolResult:
		var result model.ToolResult
		if err := json.Unmarshal(inner.Content, &result); err != nil {
			return nil, &ParseError{Frame: frame, Cause: err}
		}
		env.Result = &result

	case EventChatInfo:
		var info ChatInfo
		if err := json.Unmarshal(inner.Content, &info); err != nil {
			return nil, &ParseError{Frame: frame, Cause: err}
		}
		env.Chat = &info

	case EventMessageInfo:
		var info MessageInfo
		if err := json.Unmarshal(inner.Content, &info); err != nil {
			return nil, &ParseError{Frame: frame, Cause: err}
		}
		env.Message = &info

	case EventInteractive:
		var content interactiveContent
		if err := json.Unmarshal(inner.Content, &content); err != nil {
			return nil, &ParseError{Frame: frame, Cause: err}
		}
		env.Interactive = &InteractiveInfo{
			AuthURL:    content.Content.AuthURL,
			ServerName: content.Content.ServerName,
		}

	default:
		return nil, &ParseError{Frame: frame, Cause: ErrUnknownEvent}
	}

	return env, nil
}
