// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the conversation view for the tide TUI.
package chat

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/tide-tui/internal/config"
	"github.com/jeranaias/tide-tui/internal/history"
	"github.com/jeranaias/tide-tui/internal/model"
	"github.com/jeranaias/tide-tui/internal/stream"
	"github.com/jeranaias/tide-tui/internal/wire"
)

// =============================================================================
// PROGRAM MESSAGES
// =============================================================================

// TranscriptMsg carries a fresh transcript snapshot from the controller.
type TranscriptMsg struct {
	Messages []model.DisplayMessage
}

// ChatInfoMsg reports the server-assigned conversation identity.
type ChatInfoMsg struct {
	Info wire.ChatInfo
}

// AuthPromptMsg asks the user to approve an authorization exchange.
type AuthPromptMsg struct {
	ServerName string
}

// AuthDismissMsg withdraws a pending authorization prompt.
type AuthDismissMsg struct{}

// StreamEndMsg reports that the live exchange finished.
type StreamEndMsg struct {
	Result stream.StreamResult
}

// FrameDroppedMsg reports a recoverable per-frame parse failure.
type FrameDroppedMsg struct {
	Err error
}

// StreamTickMsg drives the capped-rate render loop while streaming.
type StreamTickMsg struct {
	Time time.Time
}

// ChatsLoadedMsg delivers the history listing for the picker.
type ChatsLoadedMsg struct {
	Chats []model.ChatMeta
	Err   error
}

// ChatOpenedMsg delivers a reconstructed conversation.
type ChatOpenedMsg struct {
	ChatID string
	Result history.Result
	Err    error
}

// ConfigReloadedMsg carries a freshly reloaded configuration from the
// file watcher.
type ConfigReloadedMsg struct {
	Config *config.Config
}

// =============================================================================
// HOOK FORWARDING
// =============================================================================

// Forward builds the controller hooks that translate callbacks into
// program messages. The callbacks run on the streaming goroutine; Send is
// the only safe way to reach the Bubble Tea loop from there.
func Forward(send func(tea.Msg)) stream.Hooks {
	return stream.Hooks{
		OnMessages: func(messages []model.DisplayMessage) {
			send(TranscriptMsg{Messages: messages})
		},
		OnChatInfo: func(info wire.ChatInfo) {
			send(ChatInfoMsg{Info: info})
		},
		OnAuthorizePrompt: func(serverName string) {
			send(AuthPromptMsg{ServerName: serverName})
		},
		OnAuthorizeDismiss: func() {
			send(AuthDismissMsg{})
		},
		OnStreamEnd: func(result stream.StreamResult) {
			send(StreamEndMsg{Result: result})
		},
		OnFrameDropped: func(err error) {
			send(FrameDroppedMsg{Err: err})
		},
	}
}
