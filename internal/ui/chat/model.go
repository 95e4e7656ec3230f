// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the conversation view for the tide TUI.
package chat

import (
	"context"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/tide-tui/internal/api"
	"github.com/jeranaias/tide-tui/internal/config"
	"github.com/jeranaias/tide-tui/internal/history"
	"github.com/jeranaias/tide-tui/internal/model"
	"github.com/jeranaias/tide-tui/internal/storage"
	"github.com/jeranaias/tide-tui/internal/stream"
	"github.com/jeranaias/tide-tui/internal/ui/styles"
)

// =============================================================================
// CHAT MODEL
// =============================================================================

// Model is the Bubble Tea model for the conversation view.
type Model struct {
	// Collaborators
	cfg        *config.Config
	theme      *styles.Theme
	controller *stream.Controller
	client     *api.Client
	store      *storage.Store // nil when the local cache is disabled

	// Dimensions
	width  int
	height int
	ready  bool

	// Transcript
	messages  []model.DisplayMessage
	chatTitle string

	// Streaming state
	streaming bool
	renderBuf *RenderBuffer
	dropped   int
	statusMsg string

	// Authorization prompt
	authPending bool
	authServer  string

	// Editing state: non-empty while the input holds an existing user
	// turn's text for resubmission
	editingID string

	// History picker
	picker picker

	// UI components
	viewport viewport.Model
	input    textarea.Model
	markdown *glamour.TermRenderer
}

// New creates the conversation view.
func New(cfg *config.Config, theme *styles.Theme, controller *stream.Controller, client *api.Client, store *storage.Store) Model {
	input := textarea.New()
	input.Placeholder = "Send a message..."
	input.Prompt = "┃ "
	input.SetHeight(3)
	input.ShowLineNumbers = false
	input.CharLimit = 0
	input.Focus()

	return Model{
		cfg:        cfg,
		theme:      theme,
		controller: controller,
		client:     client,
		store:      store,
		renderBuf:  NewRenderBuffer(),
		input:      input,
	}
}

// Init starts the view.
func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

// =============================================================================
// UPDATE
// =============================================================================

// Update handles one program message.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.resize(msg), nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case TranscriptMsg:
		m.renderBuf.Put(msg.Messages)
		if !m.streaming {
			// Outside a stream there is no tick loop; render now.
			if messages, ok := m.renderBuf.ForceTake(); ok {
				m.setMessages(messages)
			}
		}
		return m, nil

	case StreamTickMsg:
		if messages, ok := m.renderBuf.Take(); ok {
			m.setMessages(messages)
		}
		if m.streaming {
			return m, streamTickCmd()
		}
		return m, nil

	case ChatInfoMsg:
		m.chatTitle = msg.Info.Title
		return m, m.saveChatCmd(msg.Info.ID, msg.Info.Title)

	case AuthPromptMsg:
		m.authPending = true
		m.authServer = msg.ServerName
		return m, nil

	case AuthDismissMsg:
		m.authPending = false
		m.authServer = ""
		return m, nil

	case StreamEndMsg:
		m.streaming = false
		if messages, ok := m.renderBuf.ForceTake(); ok {
			m.setMessages(messages)
		}
		m.statusMsg = streamEndStatus(msg.Result)
		return m, m.syncChatCmd()

	case FrameDroppedMsg:
		m.dropped++
		return m, nil

	case ChatsLoadedMsg:
		if msg.Err != nil {
			m.statusMsg = "history: " + msg.Err.Error()
			m.picker.open = false
			return m, nil
		}
		m.picker.setChats(msg.Chats)
		return m, nil

	case ConfigReloadedMsg:
		m.cfg = msg.Config
		m.theme = styles.NewTheme(msg.Config.UI.Theme)
		if m.ready {
			return m.resize(tea.WindowSizeMsg{Width: m.width, Height: m.height}), nil
		}
		return m, nil

	case ChatOpenedMsg:
		m.picker.open = false
		if msg.Err != nil {
			m.statusMsg = "load: " + msg.Err.Error()
			return m, nil
		}
		m.controller.LoadTranscript(msg.ChatID, msg.Result.Messages, msg.Result.NextToolKey)
		m.setMessages(msg.Result.Messages)
		m.statusMsg = ""
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// handleKey routes one key press by mode: picker and auth prompt take
// precedence over the composer.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.controller.Cancel()
		return m, tea.Quit
	}

	if m.picker.open {
		return m.handlePickerKey(msg)
	}

	if m.authPending {
		switch msg.String() {
		case "y", "Y":
			m.authPending = false
			if server, ok := m.controller.ApproveAuthorization(); ok {
				m.statusMsg = "authorized " + server
			}
			return m, nil
		case "n", "N", "esc":
			m.authPending = false
			m.controller.DenyAuthorization()
			m.statusMsg = "authorization denied"
			return m, nil
		}
		// Anything else falls through; the stream is still running.
	}

	switch msg.String() {
	case "esc":
		if m.streaming {
			m.controller.Cancel()
			return m, nil
		}
		if m.editingID != "" {
			m.editingID = ""
			m.input.Reset()
			return m, nil
		}

	case "enter":
		return m.submit()

	case "ctrl+r":
		return m.retryLast()

	case "ctrl+e":
		return m.editLast()

	case "ctrl+h":
		if !m.streaming {
			m.picker.open = true
			m.picker.loading = true
			return m, m.loadChatsCmd()
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// =============================================================================
// ACTIONS
// =============================================================================

// submit sends the composed text, as a fresh turn or as an edit.
func (m Model) submit() (tea.Model, tea.Cmd) {
	if m.streaming {
		return m, nil
	}
	text := m.input.Value()
	if len(text) == 0 {
		return m, nil
	}
	m.input.Reset()
	m.streaming = true
	m.statusMsg = ""
	m.renderBuf.Reset()

	if id := m.editingID; id != "" {
		m.editingID = ""
		return m, tea.Batch(m.editCmd(id, text), streamTickCmd())
	}
	return m, tea.Batch(m.sendCmd(text), streamTickCmd())
}

// retryLast re-runs the most recent assistant reply.
func (m Model) retryLast() (tea.Model, tea.Cmd) {
	if m.streaming {
		return m, nil
	}
	for i := len(m.messages) - 1; i >= 0; i-- {
		if !m.messages[i].IsSent {
			m.streaming = true
			m.statusMsg = ""
			m.renderBuf.Reset()
			return m, tea.Batch(m.retryCmd(m.messages[i].ID), streamTickCmd())
		}
	}
	return m, nil
}

// editLast loads the most recent user turn into the composer.
func (m Model) editLast() (tea.Model, tea.Cmd) {
	if m.streaming {
		return m, nil
	}
	for i := len(m.messages) - 1; i >= 0; i-- {
		if m.messages[i].IsSent {
			m.editingID = m.messages[i].ID
			m.input.SetValue(m.messages[i].Text)
			m.input.CursorEnd()
			return m, nil
		}
	}
	return m, nil
}

// =============================================================================
// COMMANDS
// =============================================================================

// sendCmd runs the blocking exchange; progress arrives via hooks.
func (m Model) sendCmd(text string) tea.Cmd {
	controller := m.controller
	return func() tea.Msg {
		_ = controller.Send(context.Background(), text, nil)
		return nil
	}
}

func (m Model) retryCmd(messageID string) tea.Cmd {
	controller := m.controller
	return func() tea.Msg {
		_ = controller.Retry(context.Background(), messageID)
		return nil
	}
}

func (m Model) editCmd(messageID, content string) tea.Cmd {
	controller := m.controller
	return func() tea.Msg {
		_ = controller.Edit(context.Background(), messageID, content)
		return nil
	}
}

// loadChatsCmd fills the picker, preferring the host and falling back to
// the local cache when the host is unreachable.
func (m Model) loadChatsCmd() tea.Cmd {
	client, store := m.client, m.store
	return func() tea.Msg {
		ctx, done := context.WithTimeout(context.Background(), listTimeout)
		defer done()

		chats, err := client.ListChats(ctx)
		if err != nil && store != nil {
			if cached, cacheErr := store.ListChats(ctx); cacheErr == nil {
				return ChatsLoadedMsg{Chats: cached}
			}
		}
		return ChatsLoadedMsg{Chats: chats, Err: err}
	}
}

// openChatCmd reconstructs a conversation, preferring the host's log.
func (m Model) openChatCmd(chatID string) tea.Cmd {
	client, store := m.client, m.store
	return func() tea.Msg {
		ctx, done := context.WithTimeout(context.Background(), listTimeout)
		defer done()

		result, err := history.Load(ctx, client, chatID)
		if err != nil && store != nil {
			if cached, cacheErr := history.Load(ctx, store, chatID); cacheErr == nil {
				return ChatOpenedMsg{ChatID: chatID, Result: cached}
			}
		}
		return ChatOpenedMsg{ChatID: chatID, Result: result, Err: err}
	}
}

// saveChatCmd mirrors chat metadata into the local cache.
func (m Model) saveChatCmd(chatID, title string) tea.Cmd {
	store := m.store
	if store == nil || chatID == "" {
		return nil
	}
	client := m.client
	return func() tea.Msg {
		ctx, done := context.WithTimeout(context.Background(), listTimeout)
		defer done()

		if meta, _, err := client.LoadChat(ctx, chatID); err == nil {
			_ = store.SaveChat(ctx, meta)
		} else {
			_ = store.SaveChat(ctx, model.ChatMeta{ID: chatID, Title: title})
		}
		return nil
	}
}

// syncChatCmd refreshes the cached copy of the current chat after an
// exchange finishes.
func (m Model) syncChatCmd() tea.Cmd {
	store := m.store
	chatID := m.controller.ChatID()
	if store == nil || chatID == "" {
		return nil
	}
	client := m.client
	return func() tea.Msg {
		ctx, done := context.WithTimeout(context.Background(), listTimeout)
		defer done()

		meta, records, err := client.LoadChat(ctx, chatID)
		if err != nil {
			return nil
		}
		if err := store.SaveChat(ctx, meta); err != nil {
			return nil
		}
		_ = store.ReplaceRecords(ctx, chatID, records)
		return nil
	}
}

// =============================================================================
// HELPERS
// =============================================================================

// setMessages installs a transcript snapshot and scrolls to the newest
// content.
func (m *Model) setMessages(messages []model.DisplayMessage) {
	m.messages = messages
	if m.ready {
		m.viewport.SetContent(m.renderTranscript())
		m.viewport.GotoBottom()
	}
}

// streamEndStatus maps a finished exchange onto the status line.
func streamEndStatus(result stream.StreamResult) string {
	switch result.State {
	case stream.StateAborted:
		return "canceled"
	case stream.StateErrored:
		if result.Err != nil {
			return "error: " + result.Err.Error()
		}
		return "error"
	default:
		return ""
	}
}
