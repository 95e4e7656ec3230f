// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream drives a live chat exchange with the host.
package stream

import (
	"context"
	"net/url"

	"github.com/jeranaias/tide-tui/internal/wire"
)

// =============================================================================
// GATE STATE
// =============================================================================

// GateState is the interactive authorization gate's phase.
type GateState int

const (
	// GateClosed means no authorization exchange is pending.
	GateClosed GateState = iota
	// GateAwaitingUser means a prompt is up and the stream is waiting for
	// the user's decision.
	GateAwaitingUser
)

// =============================================================================
// AUTH GATE
// =============================================================================

// AuthGate is the side state machine for in-band authorization requests.
//
// An interactive envelope carrying an authorization URL opens the gate;
// the user approves or denies out of band. While a gate is awaiting the
// user, duplicate interactive events for the same exchange are ignored,
// and any non-interactive envelope closes the gate implicitly - the host
// only keeps streaming once the authorization flow completed upstream.
type AuthGate struct {
	state      GateState
	authState  string
	serverName string
}

// NewAuthGate creates a closed gate.
func NewAuthGate() *AuthGate {
	return &AuthGate{}
}

// Offer presents an interactive request to the gate. It returns true when
// a new prompt should be shown to the user.
//
// The authorization URL must carry a state query parameter; without one
// there is nothing to hand back to the host, so the gate is skipped
// entirely - fail open to "no prompt", never to "auto-approve".
func (g *AuthGate) Offer(info *wire.InteractiveInfo) bool {
	if info == nil || g.state == GateAwaitingUser {
		return false
	}

	parsed, err := url.Parse(info.AuthURL)
	if err != nil {
		return false
	}
	state := parsed.Query().Get("state")
	if state == "" {
		return false
	}

	g.state = GateAwaitingUser
	g.authState = state
	g.serverName = info.ServerName
	return true
}

// Observe watches the envelope flow. Any non-interactive event while the
// gate is awaiting the user means the exchange completed upstream; the
// gate closes and reports true so the caller can dismiss the prompt.
func (g *AuthGate) Observe(t wire.EventType) (dismissed bool) {
	if g.state != GateAwaitingUser || t == wire.EventInteractive {
		return false
	}
	g.reset()
	return true
}

// Approve closes the gate and returns the server name whose configuration
// surface the user should be routed to.
func (g *AuthGate) Approve() (serverName string, ok bool) {
	if g.state != GateAwaitingUser {
		return "", false
	}
	serverName = g.serverName
	g.reset()
	return serverName, true
}

// Deny informs the host the exchange was cancelled, using the captured
// state, then closes the gate. The callback is best effort: its failure
// is swallowed and the gate clears regardless.
func (g *AuthGate) Deny(ctx context.Context, callback func(ctx context.Context, state string) error) {
	if g.state != GateAwaitingUser {
		return
	}
	state := g.authState
	g.reset()

	if callback != nil {
		_ = callback(ctx, state)
	}
}

// Close force-clears the gate. Stream finalization calls this so a gate
// never outlives the controller run that opened it.
func (g *AuthGate) Close() (wasPending bool) {
	wasPending = g.state == GateAwaitingUser
	g.reset()
	return wasPending
}

// Pending reports whether a prompt is awaiting the user.
func (g *AuthGate) Pending() bool {
	return g.state == GateAwaitingUser
}

// ServerName returns the tool server named by the pending exchange.
func (g *AuthGate) ServerName() string {
	return g.serverName
}

func (g *AuthGate) reset() {
	g.state = GateClosed
	g.authState = ""
	g.serverName = ""
}
