// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream drives a live chat exchange with the host.
package stream

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/jeranaias/tide-tui/internal/model"
	"github.com/jeranaias/tide-tui/internal/wire"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrStreamActive is returned when a send is attempted while a stream
	// is already running. One live exchange per controller.
	ErrStreamActive = errors.New("a stream is already active")

	// ErrUnknownMessage is returned when a retry or edit names a message
	// the transcript does not contain.
	ErrUnknownMessage = errors.New("unknown message id")
)

// =============================================================================
// STATE
// =============================================================================

// State is the controller's phase for the current exchange.
type State int

const (
	StateIdle State = iota
	StateStreaming
	StateCompleted
	StateAborted
	StateErrored
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateAborted:
		return "aborted"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// StreamResult summarizes a finished exchange for observers.
type StreamResult struct {
	State State
	Err   error
}

// =============================================================================
// COLLABORATOR INTERFACES
// =============================================================================

// Requester is the narrow transport interface the controller drives. The
// api package provides the production implementation.
type Requester interface {
	// SendMessage posts a new user turn and returns the streaming body.
	SendMessage(ctx context.Context, chatID, message string, files []string) (io.ReadCloser, error)
	// Retry re-runs generation for a message and returns the streaming body.
	Retry(ctx context.Context, chatID, messageID string) (io.ReadCloser, error)
	// Edit replaces a user turn's content and returns the streaming body.
	Edit(ctx context.Context, chatID, messageID, content string) (io.ReadCloser, error)
	// Abort asks the host to stop generating. Idempotent.
	Abort(ctx context.Context, chatID string) error
	// OAuthCallback cancels a pending interactive authorization exchange.
	OAuthCallback(ctx context.Context, state string) error
}

// Hooks are the controller's outbound notifications. All callbacks are
// optional and are invoked from the streaming goroutine; implementations
// must not call back into the controller synchronously.
type Hooks struct {
	// OnMessages delivers a fresh transcript snapshot after a mutation.
	OnMessages func(messages []model.DisplayMessage)
	// OnChatInfo reports the server-assigned conversation identity.
	OnChatInfo func(info wire.ChatInfo)
	// OnAuthorizePrompt asks the user to approve an authorization exchange.
	OnAuthorizePrompt func(serverName string)
	// OnAuthorizeDismiss withdraws a pending authorization prompt.
	OnAuthorizeDismiss func()
	// OnStreamEnd fires exactly once per exchange, on every outcome.
	OnStreamEnd func(result StreamResult)
	// OnFrameDropped reports a recoverable per-frame parse failure.
	OnFrameDropped func(err error)
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller owns one conversation's live streaming exchange.
//
// It pushes the user and assistant bubbles, opens the cancellable read
// loop, and applies each envelope to the transcript: plain text grows the
// accumulator, tool batches render through the ledger into markup
// segments, metadata events patch ids, and interactive events divert into
// the auth gate. Exactly one transition out of StateStreaming happens per
// exchange, and finalization always runs - completion, abort, and failure
// all notify observers the same way.
type Controller struct {
	mu        sync.Mutex
	requester Requester
	hooks     Hooks

	state    State
	chatID   string
	messages []model.DisplayMessage

	// accum is the frozen portion of the active message: plain text plus
	// every folded tool segment. Open batches render behind it and are
	// re-rendered in place as results arrive.
	accum  strings.Builder
	ledger *Ledger
	gate   *AuthGate

	cancel  context.CancelFunc
	dropped int
}

// New creates an idle controller for one conversation view.
func New(requester Requester, hooks Hooks) *Controller {
	return &Controller{
		requester: requester,
		hooks:     hooks,
		ledger:    NewLedger(),
		gate:      NewAuthGate(),
	}
}

// LoadTranscript seeds the controller with a reconstructed conversation.
// nextToolKey continues the replayed key sequence so a resumed stream
// allocates fresh anchors.
func (c *Controller) LoadTranscript(chatID string, messages []model.DisplayMessage, nextToolKey int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chatID = chatID
	c.messages = append([]model.DisplayMessage(nil), messages...)
	c.ledger.Reset()
	c.ledger.SetNextKey(nextToolKey)
}

// ChatID returns the current conversation id (empty until the host
// assigns one via chat_info).
func (c *Controller) ChatID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chatID
}

// State returns the controller's phase.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Messages returns a copy of the transcript.
func (c *Controller) Messages() []model.DisplayMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.DisplayMessage(nil), c.messages...)
}

// DroppedFrames returns the count of malformed frames discarded so far.
func (c *Controller) DroppedFrames() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

// =============================================================================
// SENDING
// =============================================================================

// Send posts a user message and streams the reply. It blocks until the
// exchange finishes; run it from its own goroutine and use Cancel to stop
// it early.
func (c *Controller) Send(ctx context.Context, message string, files []string) error {
	c.mu.Lock()
	if c.state == StateStreaming {
		c.mu.Unlock()
		return ErrStreamActive
	}
	chatID := c.chatID
	c.messages = append(c.messages, model.NewUserMessage(message, files), model.NewAssistantMessage())
	c.mu.Unlock()

	return c.run(ctx, func(ctx context.Context) (io.ReadCloser, error) {
		return c.requester.SendMessage(ctx, chatID, message, files)
	})
}

// Retry clears a previous assistant reply and re-streams it. Everything
// after the retried message is discarded.
func (c *Controller) Retry(ctx context.Context, messageID string) error {
	c.mu.Lock()
	if c.state == StateStreaming {
		c.mu.Unlock()
		return ErrStreamActive
	}
	idx := c.indexOf(messageID)
	if idx < 0 {
		c.mu.Unlock()
		return ErrUnknownMessage
	}

	target := c.messages[idx]
	target.Text = ""
	target.IsError = false
	c.messages = append(c.messages[:idx:idx], target)
	chatID := c.chatID
	c.mu.Unlock()

	return c.run(ctx, func(ctx context.Context) (io.ReadCloser, error) {
		return c.requester.Retry(ctx, chatID, messageID)
	})
}

// Edit rewrites a user turn and re-streams the reply to it. Everything
// after the edited turn's reply is discarded.
func (c *Controller) Edit(ctx context.Context, messageID, content string) error {
	c.mu.Lock()
	if c.state == StateStreaming {
		c.mu.Unlock()
		return ErrStreamActive
	}
	idx := c.indexOf(messageID)
	if idx < 0 || !c.messages[idx].IsSent {
		c.mu.Unlock()
		return ErrUnknownMessage
	}

	c.messages[idx].Text = content
	c.messages = c.messages[: idx+1 : idx+1]

	// The reply bubble is rebuilt empty; the host streams the new one.
	c.messages = append(c.messages, model.NewAssistantMessage())
	chatID := c.chatID
	c.mu.Unlock()

	return c.run(ctx, func(ctx context.Context) (io.ReadCloser, error) {
		return c.requester.Edit(ctx, chatID, messageID, content)
	})
}

// Cancel stops the active stream at the next read and best-effort notifies
// the host. Accumulated text stays intact: cancellation is not rollback.
func (c *Controller) Cancel() {
	c.mu.Lock()
	cancel := c.cancel
	chatID := c.chatID
	streaming := c.state == StateStreaming
	c.mu.Unlock()

	if !streaming {
		return
	}
	if cancel != nil {
		cancel()
	}

	// Server-side abort is idempotent and fire-and-forget; its failure
	// changes nothing client-side.
	go func() {
		ctx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		_ = c.requester.Abort(ctx, chatID)
	}()
}

// =============================================================================
// AUTHORIZATION DECISIONS
// =============================================================================

// ApproveAuthorization resolves a pending gate with approval and returns
// the tool server the user should be routed to.
func (c *Controller) ApproveAuthorization() (serverName string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gate.Approve()
}

// DenyAuthorization resolves a pending gate with denial. The host is
// informed asynchronously via the captured state; the gate clears
// regardless of whether that callback succeeds.
func (c *Controller) DenyAuthorization() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gate.Deny(context.Background(), func(_ context.Context, state string) error {
		go func() {
			ctx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			_ = c.requester.OAuthCallback(ctx, state)
		}()
		return nil
	})
}

// =============================================================================
// READ LOOP
// =============================================================================

// run opens the stream and drives it to a single terminal state.
func (c *Controller) run(ctx context.Context, start func(context.Context) (io.ReadCloser, error)) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	c.state = StateStreaming
	c.cancel = cancel
	c.accum.Reset()
	c.ledger.Reset()
	c.mu.Unlock()
	c.emitMessages()

	result := StreamResult{State: StateCompleted}
	defer func() {
		c.finalize(result)
	}()

	body, err := start(runCtx)
	if err != nil {
		if runCtx.Err() != nil {
			result.State = StateAborted
			return nil
		}
		c.failTransport(err)
		result = StreamResult{State: StateErrored, Err: err}
		return err
	}
	defer body.Close()

	decoder := wire.NewFrameDecoder()
	buf := make([]byte, 4096)

	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			for _, frame := range decoder.Feed(buf[:n]) {
				if wire.IsTerminator(frame) {
					return nil
				}
				c.dispatch(frame)
			}
		}

		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				if frame, ok := decoder.Flush(); ok && !wire.IsTerminator(frame) {
					c.dispatch(frame)
				}
				return nil
			}
			if runCtx.Err() != nil {
				result.State = StateAborted
				return nil
			}
			c.failTransport(readErr)
			result = StreamResult{State: StateErrored, Err: readErr}
			return readErr
		}
	}
}

// dispatch parses one frame and applies it. A malformed frame is dropped
// and counted; the stream keeps going.
func (c *Controller) dispatch(frame string) {
	env, err := wire.Parse(frame)
	if err != nil {
		c.mu.Lock()
		c.dropped++
		c.mu.Unlock()
		if c.hooks.OnFrameDropped != nil {
			c.hooks.OnFrameDropped(err)
		}
		return
	}
	c.handle(env)
}

// handle applies one envelope to the transcript. Envelopes are processed
// strictly in arrival order; ledger resolution depends on it.
func (c *Controller) handle(env *wire.Envelope) {
	c.mu.Lock()

	dismissed := c.gate.Observe(env.Type)

	var (
		emitTranscript bool
		chatInfo       *wire.ChatInfo
		promptServer   string
		prompt         bool
	)

	switch env.Type {
	case wire.EventText:
		c.accum.WriteString(env.Text)
		c.refreshActiveLocked()
		emitTranscript = true

	case wire.EventToolCalls:
		if _, ok := c.ledger.OpenBatch(env.Calls); ok {
			c.refreshActiveLocked()
			emitTranscript = true
		}

	case wire.EventToolResult:
		if env.Result != nil {
			if _, _, ok := c.ledger.MatchResult(*env.Result); ok {
				// Fold every leading closed batch: its segment text is
				// frozen into the accumulator exactly once.
				for _, batch := range c.ledger.PopReady() {
					c.accum.WriteString(batch.Render())
				}
				c.refreshActiveLocked()
				emitTranscript = true
			}
		}

	case wire.EventChatInfo:
		if env.Chat != nil {
			c.chatID = env.Chat.ID
			info := *env.Chat
			chatInfo = &info
		}

	case wire.EventMessageInfo:
		if env.Message != nil {
			c.patchIDsLocked(env.Message)
			emitTranscript = true
		}

	case wire.EventInteractive:
		if c.gate.Offer(env.Interactive) {
			prompt = true
			promptServer = c.gate.ServerName()
		}

	case wire.EventError:
		c.accum.WriteString("\n\n")
		c.accum.WriteString(env.Text)
		c.refreshActiveLocked()
		if last := c.activeLocked(); last != nil {
			last.IsError = true
		}
		emitTranscript = true
	}

	c.mu.Unlock()

	if dismissed && c.hooks.OnAuthorizeDismiss != nil {
		c.hooks.OnAuthorizeDismiss()
	}
	if chatInfo != nil && c.hooks.OnChatInfo != nil {
		c.hooks.OnChatInfo(*chatInfo)
	}
	if prompt && c.hooks.OnAuthorizePrompt != nil {
		c.hooks.OnAuthorizePrompt(promptServer)
	}
	if emitTranscript {
		c.emitMessages()
	}
}

// =============================================================================
// TRANSCRIPT MUTATION
// =============================================================================

// activeLocked returns the message being appended to: the most recently
// pushed bubble. Caller holds the lock.
func (c *Controller) activeLocked() *model.DisplayMessage {
	if len(c.messages) == 0 {
		return nil
	}
	return &c.messages[len(c.messages)-1]
}

// refreshActiveLocked rewrites the active message text as the frozen
// accumulator followed by a fresh render of every still-open batch. Open
// segments are redrawn, never spliced, so re-rendering is idempotent.
func (c *Controller) refreshActiveLocked() {
	active := c.activeLocked()
	if active == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(c.accum.String())
	for _, batch := range c.ledger.Open() {
		sb.WriteString(batch.Render())
	}
	active.Text = sb.String()
}

// patchIDsLocked rewrites the provisional ids of the in-flight user and
// assistant bubbles. Metadata only; content is untouched.
func (c *Controller) patchIDsLocked(info *wire.MessageInfo) {
	n := len(c.messages)
	if info.UserMessageID != "" && n >= 2 {
		c.messages[n-2].ID = info.UserMessageID
	}
	if info.AssistantMessageID != "" && n >= 1 {
		c.messages[n-1].ID = info.AssistantMessageID
	}
}

// failTransport converts the active assistant bubble into a single error
// message carrying the failure description.
func (c *Controller) failTransport(err error) {
	c.mu.Lock()
	if active := c.activeLocked(); active != nil {
		*active = model.NewAssistantMessage()
		active.Text = err.Error()
		active.IsError = true
	}
	c.mu.Unlock()
	c.emitMessages()
}

// indexOf finds a message by id. Caller holds the lock.
func (c *Controller) indexOf(messageID string) int {
	for i := range c.messages {
		if c.messages[i].ID == messageID {
			return i
		}
	}
	return -1
}

// =============================================================================
// FINALIZATION
// =============================================================================

// finalize transitions out of StateStreaming exactly once and notifies
// observers. It runs on every termination path: [DONE], end of stream,
// transport failure, and cancellation.
func (c *Controller) finalize(result StreamResult) {
	c.mu.Lock()
	c.state = result.State
	c.cancel = nil
	wasPending := c.gate.Close()
	c.mu.Unlock()

	if wasPending && c.hooks.OnAuthorizeDismiss != nil {
		c.hooks.OnAuthorizeDismiss()
	}
	c.emitMessages()
	if c.hooks.OnStreamEnd != nil {
		c.hooks.OnStreamEnd(result)
	}
}

// emitMessages delivers a transcript snapshot to the UI.
func (c *Controller) emitMessages() {
	if c.hooks.OnMessages == nil {
		return
	}
	c.hooks.OnMessages(c.Messages())
}
