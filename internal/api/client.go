// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api provides the HTTP client for communicating with the chat
// host service.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/time/rate"

	"github.com/jeranaias/tide-tui/internal/model"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ClientError represents an error from the host client.
type ClientError struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// ErrorType categorizes client errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeNotRunning
	ErrTypeTimeout
	ErrTypeChatNotFound
	ErrTypeConnection
	ErrTypeInvalidResponse
)

// Sentinel errors for easy checking.
var (
	ErrNotRunning   = &ClientError{Type: ErrTypeNotRunning, Message: "chat host is not reachable"}
	ErrTimeout      = &ClientError{Type: ErrTypeTimeout, Message: "request timed out"}
	ErrChatNotFound = &ClientError{Type: ErrTypeChatNotFound, Message: "chat not found"}
)

// IsNotRunning checks if an error indicates the host is unreachable.
func IsNotRunning(err error) bool {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type == ErrTypeNotRunning
	}
	return errors.Is(err, ErrNotRunning)
}

// IsChatNotFound checks if an error is a missing-chat error.
func IsChatNotFound(err error) bool {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type == ErrTypeChatNotFound
	}
	return errors.Is(err, ErrChatNotFound)
}

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// ClientConfig holds configuration options for the host client.
type ClientConfig struct {
	// BaseURL is the host service base URL (default: http://127.0.0.1:4321)
	// Note: explicit IPv4 avoids IPv6 resolution issues on Windows.
	BaseURL string

	// Timeout for non-streaming requests (default: 30s)
	Timeout time.Duration

	// ControlRate caps control calls (abort, callbacks, deletes) per
	// second. Cancel mashing must not flood the host (default: 5/s).
	ControlRate rate.Limit

	// ControlBurst is the control-call burst allowance (default: 5).
	ControlBurst int
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL:      "http://127.0.0.1:4321",
		Timeout:      30 * time.Second,
		ControlRate:  5,
		ControlBurst: 5,
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client handles communication with the chat host API.
// It is safe for concurrent use.
type Client struct {
	config     *ClientConfig
	httpClient *http.Client
	// streamClient has no timeout; stream lifetime is governed by the
	// request context.
	streamClient *http.Client
	control      *rate.Limiter
}

// NewClient creates a host client with default configuration.
func NewClient() *Client {
	return NewClientWithConfig(DefaultConfig())
}

// NewClientWithConfig creates a host client with custom configuration.
func NewClientWithConfig(config *ClientConfig) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://127.0.0.1:4321"
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.ControlRate == 0 {
		config.ControlRate = 5
	}
	if config.ControlBurst == 0 {
		config.ControlBurst = 5
	}

	return &Client{
		config:       config,
		httpClient:   &http.Client{Timeout: config.Timeout},
		streamClient: &http.Client{},
		control:      rate.NewLimiter(config.ControlRate, config.ControlBurst),
	}
}

// BaseURL returns the configured host base URL.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// =============================================================================
// STREAMING CHAT REQUESTS
// =============================================================================

// SendMessage posts a new user turn and returns the streaming response
// body. chatID may be empty for a brand-new conversation; the host
// assigns one and reports it in-stream via chat_info.
func (c *Client) SendMessage(ctx context.Context, chatID, message string, files []string) (io.ReadCloser, error) {
	fields := map[string]string{}
	if message != "" {
		fields["message"] = message
	}
	if chatID != "" {
		fields["chatId"] = chatID
	}

	body, contentType, err := multipartBody(fields, files)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to build request body", Cause: err}
	}
	return c.openStream(ctx, "/api/chat", body, contentType)
}

// Retry re-runs generation for a message.
func (c *Client) Retry(ctx context.Context, chatID, messageID string) (io.ReadCloser, error) {
	payload, err := json.Marshal(map[string]string{
		"chatId":    chatID,
		"messageId": messageID,
	})
	if err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to marshal request", Cause: err}
	}
	return c.openStream(ctx, "/api/chat/retry", bytes.NewReader(payload), "application/json")
}

// Edit replaces the content of a user turn and re-streams the reply.
func (c *Client) Edit(ctx context.Context, chatID, messageID, content string) (io.ReadCloser, error) {
	body, contentType, err := multipartBody(map[string]string{
		"chatId":    chatID,
		"messageId": messageID,
		"content":   content,
	}, nil)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to build request body", Cause: err}
	}
	return c.openStream(ctx, "/api/chat/edit", body, contentType)
}

// openStream performs a streaming POST and hands back the raw body.
func (c *Client) openStream(ctx context.Context, path string, body io.Reader, contentType string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, body)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.streamClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, ErrNotRunning
	}

	if resp.StatusCode != http.StatusOK {
		drainAndClose(resp.Body)
		if resp.StatusCode == http.StatusNotFound {
			return nil, ErrChatNotFound
		}
		return nil, &ClientError{
			Type:    ErrTypeInvalidResponse,
			Message: "stream request failed: " + resp.Status,
		}
	}

	return resp.Body, nil
}

// =============================================================================
// CONTROL CALLS
// =============================================================================

// Abort asks the host to stop generating for a chat. Idempotent; callers
// treat failures as non-events.
func (c *Client) Abort(ctx context.Context, chatID string) error {
	if chatID == "" {
		return nil
	}
	if err := c.control.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.BaseURL+"/api/chat/"+url.PathEscape(chatID)+"/abort", nil)
	if err != nil {
		return &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ErrNotRunning
	}
	drainAndClose(resp.Body)
	return nil
}

// OAuthCallback informs the host that a pending interactive authorization
// exchange was cancelled, identified by its captured state.
func (c *Client) OAuthCallback(ctx context.Context, state string) error {
	if err := c.control.Wait(ctx); err != nil {
		return err
	}

	endpoint := c.config.BaseURL + "/api/tools/login/oauth/callback?code=''&state=" + url.QueryEscape(state)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ErrNotRunning
	}
	drainAndClose(resp.Body)
	return nil
}

// DeleteChat removes a conversation from the host.
func (c *Client) DeleteChat(ctx context.Context, chatID string) error {
	if err := c.control.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		c.config.BaseURL+"/api/chat/"+url.PathEscape(chatID), nil)
	if err != nil {
		return &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ErrNotRunning
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode == http.StatusNotFound {
		return ErrChatNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return &ClientError{Type: ErrTypeInvalidResponse, Message: "delete failed: " + resp.Status}
	}
	return nil
}

// =============================================================================
// HISTORY REQUESTS
// =============================================================================

// chatEnvelope is the host's wrapper for request/response API payloads.
type chatEnvelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data"`
}

// chatPayload is the body of a single-chat load.
type chatPayload struct {
	Chat     model.ChatMeta       `json:"chat"`
	Messages []model.StoredRecord `json:"messages"`
}

// LoadChat fetches a conversation's metadata and full record log.
func (c *Client) LoadChat(ctx context.Context, chatID string) (model.ChatMeta, []model.StoredRecord, error) {
	var payload chatPayload
	if err := c.getJSON(ctx, "/api/chat/"+url.PathEscape(chatID), &payload); err != nil {
		return model.ChatMeta{}, nil, err
	}
	return payload.Chat, payload.Messages, nil
}

// Records implements history.RecordSource against the host API.
func (c *Client) Records(ctx context.Context, chatID string) ([]model.StoredRecord, error) {
	_, records, err := c.LoadChat(ctx, chatID)
	return records, err
}

// ListChats fetches conversation metadata for the history sidebar,
// most recent first.
func (c *Client) ListChats(ctx context.Context) ([]model.ChatMeta, error) {
	var chats []model.ChatMeta
	if err := c.getJSON(ctx, "/api/chat/list", &chats); err != nil {
		return nil, err
	}
	return chats, nil
}

// getJSON performs a GET and decodes the host's success envelope.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+path, nil)
	if err != nil {
		return &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return ErrTimeout
		}
		return ErrNotRunning
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrChatNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return &ClientError{Type: ErrTypeInvalidResponse, Message: "request failed: " + resp.Status}
	}

	var envelope chatEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode response", Cause: err}
	}
	if !envelope.Success {
		msg := envelope.Message
		if msg == "" {
			msg = "host reported failure"
		}
		return &ClientError{Type: ErrTypeInvalidResponse, Message: msg}
	}

	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode payload", Cause: err}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

// multipartBody builds a multipart form with text fields and file parts.
// File parts are read from disk by path; a missing file fails the whole
// request rather than sending a partial turn.
func multipartBody(fields map[string]string, files []string) (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	for key, value := range fields {
		if err := mw.WriteField(key, value); err != nil {
			return nil, "", err
		}
	}

	for _, path := range files {
		f, err := os.Open(path)
		if err != nil {
			return nil, "", err
		}
		part, err := mw.CreateFormFile("files", filepath.Base(path))
		if err != nil {
			f.Close()
			return nil, "", err
		}
		if _, err := io.Copy(part, f); err != nil {
			f.Close()
			return nil, "", err
		}
		f.Close()
	}

	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}

// drainAndClose discards any unread body and closes it.
func drainAndClose(r io.ReadCloser) {
	io.Copy(io.Discard, r)
	r.Close()
}
