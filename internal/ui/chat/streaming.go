// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the conversation view for the tide TUI.
//
// This file implements streaming render optimization. The RenderBuffer
// coalesces transcript snapshots at a capped frame rate to balance
// responsiveness with CPU efficiency: only the freshest snapshot is kept,
// and it is handed to the renderer at most maxFPS times per second.
package chat

import (
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/tide-tui/internal/model"
)

// =============================================================================
// RENDER BUFFER
// =============================================================================

// RenderBuffer coalesces transcript snapshots for efficient rendering.
// Snapshots replace each other rather than queueing; the transcript is
// cumulative, so intermediate states can be skipped without loss.
//
// This prevents excessive rendering (>1000fps) which causes flicker and
// high CPU usage, while maintaining smooth visual updates.
//
// Thread-safety: All operations are protected by a mutex since snapshots
// arrive from the streaming goroutine while rendering happens in the main
// Bubble Tea loop.
type RenderBuffer struct {
	mu        sync.Mutex
	latest    []model.DisplayMessage
	dirty     bool
	lastFlush time.Time

	maxFPS   int
	minFlush time.Duration
}

// NewRenderBuffer creates a render buffer with default settings.
// Default configuration:
// - Max FPS: 30 (smooth but not wasteful)
// - Min flush interval: ~33ms (1000ms / 30fps)
func NewRenderBuffer() *RenderBuffer {
	return NewRenderBufferWithFPS(30)
}

// NewRenderBufferWithFPS creates a render buffer with a custom frame cap.
func NewRenderBufferWithFPS(maxFPS int) *RenderBuffer {
	if maxFPS <= 0 || maxFPS > 60 {
		maxFPS = 30
	}
	return &RenderBuffer{
		maxFPS:    maxFPS,
		minFlush:  time.Duration(1000/maxFPS) * time.Millisecond,
		lastFlush: time.Now(),
	}
}

// Put replaces the pending snapshot. Called from the streaming goroutine.
func (rb *RenderBuffer) Put(messages []model.DisplayMessage) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.latest = messages
	rb.dirty = true
}

// Take returns the pending snapshot if the frame budget allows another
// render. Returns (nil, false) when there is nothing new or the last
// render was too recent. Called from the main Bubble Tea loop.
func (rb *RenderBuffer) Take() ([]model.DisplayMessage, bool) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if !rb.dirty || time.Since(rb.lastFlush) < rb.minFlush {
		return nil, false
	}
	return rb.takeLocked()
}

// ForceTake returns the pending snapshot regardless of the frame budget.
// Use this when a stream completes so the final state always renders.
func (rb *RenderBuffer) ForceTake() ([]model.DisplayMessage, bool) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if !rb.dirty {
		return nil, false
	}
	return rb.takeLocked()
}

// takeLocked hands out the snapshot and resets. Caller must hold the lock.
func (rb *RenderBuffer) takeLocked() ([]model.DisplayMessage, bool) {
	messages := rb.latest
	rb.latest = nil
	rb.dirty = false
	rb.lastFlush = time.Now()
	return messages, true
}

// Reset clears the buffer without flushing.
// Use this when canceling a stream or starting a new conversation.
func (rb *RenderBuffer) Reset() {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.latest = nil
	rb.dirty = false
	rb.lastFlush = time.Now()
}

// Dirty reports whether a snapshot is waiting.
func (rb *RenderBuffer) Dirty() bool {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.dirty
}

// =============================================================================
// STREAMING TICK COMMAND
// =============================================================================

// streamTickCmd creates a tea.Cmd that sends StreamTickMsg at the render
// cap. This enables smooth, flicker-free streaming by batching snapshot
// updates.
func streamTickCmd() tea.Cmd {
	return tea.Tick(33*time.Millisecond, func(t time.Time) tea.Msg {
		return StreamTickMsg{Time: t}
	})
}
