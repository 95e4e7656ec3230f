// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the conversation view for the tide TUI.
package chat

import (
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/tide-tui/internal/model"
)

// listTimeout bounds the host round-trips the view makes outside a stream.
const listTimeout = 10 * time.Second

// Markup tag delimiters as they appear in transcript text. The view never
// shows the raw tag; each segment collapses to a one-line tool summary.
const (
	segmentOpen   = "<tool-call "
	segmentClose  = "</tool-call>"
	resultMarker  = "##Tool Result:"
	nameAttrOpen  = `name="`
	nameAttrClose = `"`
)

// =============================================================================
// LAYOUT
// =============================================================================

// resize recomputes the layout for a new terminal size.
func (m Model) resize(msg tea.WindowSizeMsg) Model {
	m.width = msg.Width
	m.height = msg.Height

	contentWidth := m.width
	if m.cfg.UI.MaxWidth > 0 && contentWidth > m.cfg.UI.MaxWidth {
		contentWidth = m.cfg.UI.MaxWidth
	}

	inputHeight := m.input.Height() + 1
	viewportHeight := m.height - inputHeight - 2
	if viewportHeight < 1 {
		viewportHeight = 1
	}

	if !m.ready {
		m.viewport = viewport.New(contentWidth, viewportHeight)
		m.ready = true
	} else {
		m.viewport.Width = contentWidth
		m.viewport.Height = viewportHeight
	}
	m.input.SetWidth(contentWidth)

	if m.cfg.UI.Markdown {
		if renderer, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(contentWidth-6),
		); err == nil {
			m.markdown = renderer
		}
	}

	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
	return m
}

// =============================================================================
// VIEW
// =============================================================================

// View renders the whole conversation screen.
func (m Model) View() string {
	if !m.ready {
		return "starting..."
	}

	var sections []string

	if m.picker.open {
		sections = append(sections, m.renderPicker(m.viewport.Width, m.viewport.Height))
	} else {
		sections = append(sections, m.viewport.View())
	}

	if m.authPending {
		sections = append(sections, m.renderAuthBanner())
	}

	sections = append(sections,
		m.theme.InputContainer.Width(m.viewport.Width).Render(m.input.View()),
		m.renderStatusBar(),
	)

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderTranscript draws every message bubble.
func (m Model) renderTranscript() string {
	if len(m.messages) == 0 {
		return m.theme.MessageMeta.Render("\n  Start a conversation. Enter sends, Esc cancels, Ctrl+H opens history.\n")
	}

	bubbleWidth := m.viewport.Width - 4
	if bubbleWidth < 10 {
		bubbleWidth = 10
	}

	var sb strings.Builder
	for i := range m.messages {
		msg := &m.messages[i]
		sb.WriteString(m.renderMessage(msg, bubbleWidth))
		sb.WriteString("\n")
	}
	return sb.String()
}

// renderMessage draws one bubble with its metadata line.
func (m Model) renderMessage(msg *model.DisplayMessage, width int) string {
	text := collapseToolSegments(msg.Text)

	style := m.theme.AssistantBubble
	label := "assistant"
	switch {
	case msg.IsSent:
		style = m.theme.UserBubble
		label = "you"
	case msg.IsError:
		style = m.theme.ErrorBubble
		label = "error"
	}

	// Markdown rendering is reserved for settled assistant prose; while
	// streaming, raw text avoids re-rendering partial markup every frame.
	if m.markdown != nil && !msg.IsSent && !msg.IsError && !m.streaming {
		if rendered, err := m.markdown.Render(text); err == nil {
			text = strings.TrimRight(rendered, "\n")
		}
	}

	meta := label + " · " + time.UnixMilli(msg.Timestamp).Format("15:04")
	if n := len(msg.Files); n > 0 {
		if n == 1 {
			meta += " · 1 file"
		} else {
			meta += " · " + strconv.Itoa(n) + " files"
		}
	}

	return m.theme.MessageMeta.Render(meta) + "\n" +
		style.MaxWidth(width).Render(text)
}

// renderAuthBanner draws the pending authorization prompt.
func (m Model) renderAuthBanner() string {
	server := m.authServer
	if server == "" {
		server = "a tool server"
	}
	body := m.theme.AuthServer.Render(server) +
		" requests authorization. " +
		m.theme.ShortcutKey.Render("y") + m.theme.ShortcutDesc.Render(" approve ") +
		m.theme.ShortcutKey.Render("n") + m.theme.ShortcutDesc.Render(" deny")
	return m.theme.AuthBanner.Width(m.viewport.Width - 2).Render(body)
}

// renderStatusBar draws the bottom line: state, dropped frames, shortcuts.
func (m Model) renderStatusBar() string {
	var left string
	switch {
	case m.streaming:
		left = m.theme.StatusState.Render("streaming") + m.theme.ShortcutDesc.Render("  esc cancel")
	case strings.HasPrefix(m.statusMsg, "error"):
		left = m.theme.StatusError.Render(m.statusMsg)
	case m.statusMsg != "":
		left = m.theme.StatusState.Render(m.statusMsg)
	default:
		left = m.theme.StatusState.Render("ready")
	}

	right := m.theme.ShortcutKey.Render("^R") + m.theme.ShortcutDesc.Render(" retry  ") +
		m.theme.ShortcutKey.Render("^E") + m.theme.ShortcutDesc.Render(" edit  ") +
		m.theme.ShortcutKey.Render("^H") + m.theme.ShortcutDesc.Render(" history  ") +
		m.theme.ShortcutKey.Render("^C") + m.theme.ShortcutDesc.Render(" quit")
	if m.dropped > 0 {
		right = m.theme.StatusError.Render(strconv.Itoa(m.dropped)+" dropped") + "  " + right
	}

	gap := m.viewport.Width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return m.theme.StatusBar.Render(left + strings.Repeat(" ", gap) + right)
}

// =============================================================================
// TOOL SEGMENT DISPLAY
// =============================================================================

// collapseToolSegments replaces each tool-call markup segment with a
// one-line summary. The encoded payloads stay in the transcript model;
// only the rendering collapses them.
func collapseToolSegments(text string) string {
	if !strings.Contains(text, segmentOpen) {
		return text
	}

	var sb strings.Builder
	for {
		start := strings.Index(text, segmentOpen)
		if start < 0 {
			sb.WriteString(text)
			break
		}
		sb.WriteString(text[:start])
		rest := text[start:]

		end := strings.Index(rest, segmentClose)
		var segment string
		if end < 0 {
			// Tag still open mid-stream; summarize what is there.
			segment = rest
			text = ""
		} else {
			segment = rest[:end+len(segmentClose)]
			text = rest[end+len(segmentClose):]
		}

		sb.WriteString(summarizeSegment(segment))
		if end < 0 {
			break
		}
	}
	return sb.String()
}

// summarizeSegment turns one markup segment into "[tool] name (done)".
func summarizeSegment(segment string) string {
	name := "tool"
	if i := strings.Index(segment, nameAttrOpen); i >= 0 {
		tail := segment[i+len(nameAttrOpen):]
		if j := strings.Index(tail, nameAttrClose); j >= 0 && tail[:j] != "" {
			name = tail[:j]
		}
	}

	status := "running"
	if strings.Contains(segment, resultMarker) {
		status = "done"
	}
	return "[tool] " + name + " (" + status + ")"
}
