// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the conversation view for the tide TUI.
package chat

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/tide-tui/internal/model"
	"github.com/jeranaias/tide-tui/internal/util"
)

// =============================================================================
// HISTORY PICKER
// =============================================================================

// picker is the transient conversation list overlay.
type picker struct {
	open    bool
	loading bool
	chats   []model.ChatMeta
	cursor  int
}

// setChats installs the listing and clamps the cursor.
func (p *picker) setChats(chats []model.ChatMeta) {
	p.loading = false
	p.chats = chats
	if p.cursor >= len(chats) {
		p.cursor = len(chats) - 1
	}
	if p.cursor < 0 {
		p.cursor = 0
	}
}

// handlePickerKey routes key presses while the picker is open.
func (m Model) handlePickerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "ctrl+h":
		m.picker.open = false
		return m, nil

	case "up", "k":
		if m.picker.cursor > 0 {
			m.picker.cursor--
		}
		return m, nil

	case "down", "j":
		if m.picker.cursor < len(m.picker.chats)-1 {
			m.picker.cursor++
		}
		return m, nil

	case "enter":
		if m.picker.cursor < len(m.picker.chats) {
			chat := m.picker.chats[m.picker.cursor]
			return m, m.openChatCmd(chat.ID)
		}
		return m, nil
	}
	return m, nil
}

// renderPicker draws the conversation list.
func (m Model) renderPicker(width, height int) string {
	var sb strings.Builder
	sb.WriteString(m.theme.PickerSelected.Render("Conversations"))
	sb.WriteString("\n\n")

	switch {
	case m.picker.loading:
		sb.WriteString(m.theme.PickerMeta.Render("loading..."))

	case len(m.picker.chats) == 0:
		sb.WriteString(m.theme.PickerMeta.Render("no conversations yet"))

	default:
		visible := height - 4
		if visible < 1 {
			visible = 1
		}
		start := 0
		if m.picker.cursor >= visible {
			start = m.picker.cursor - visible + 1
		}
		for i := start; i < len(m.picker.chats) && i < start+visible; i++ {
			chat := m.picker.chats[i]
			title := chat.Title
			if title == "" {
				title = chat.ID
			}
			line := util.TruncateWidth(title, width-14)
			meta := chat.UpdatedAt.Format("Jan 02 15:04")
			if i == m.picker.cursor {
				sb.WriteString(m.theme.PickerSelected.Render("> " + line))
			} else {
				sb.WriteString(m.theme.PickerItem.Render("  " + line))
			}
			sb.WriteString(" ")
			sb.WriteString(m.theme.PickerMeta.Render(meta))
			if chat.MessageCount > 0 {
				sb.WriteString(m.theme.PickerMeta.Render(fmt.Sprintf(" (%d)", chat.MessageCount)))
			}
			sb.WriteString("\n")
		}
	}

	return m.theme.PickerBox.Width(width - 2).Render(sb.String())
}
