// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream drives a live chat exchange with the host.
package stream

import (
	"github.com/jeranaias/tide-tui/internal/model"
)

// =============================================================================
// BATCH
// =============================================================================

// Batch is one model-issued set of tool invocations tracked under a single
// tool key. It is created when a tool_calls event arrives, mutated as
// results arrive, and folded into the owning message once every expected
// result has been matched.
type Batch struct {
	// Key is the monotonically increasing anchor for the embedded tag,
	// unique per batch within a conversation. The ledger assigns it; the
	// wire never carries it.
	Key int

	// Groups holds the call batches. The live path opens a batch with a
	// single group; history replay may buffer several consecutive
	// tool_call records into one batch.
	Groups [][]model.ToolCall

	// Expected is the number of calls that will produce a result: calls
	// with a non-empty name. Anonymous placeholder calls produce none.
	Expected int

	// Results are the matched results, in arrival order.
	Results []model.ToolResult
}

// Closed reports whether every expected result has arrived.
func (b *Batch) Closed() bool {
	return len(b.Results) >= b.Expected
}

// hasCallNamed reports whether any call in the batch carries the name.
func (b *Batch) hasCallNamed(name string) bool {
	for _, group := range b.Groups {
		for _, call := range group {
			if call.Name == name {
				return true
			}
		}
	}
	return false
}

// addGroup appends a call group and extends the expected-result count.
func (b *Batch) addGroup(calls []model.ToolCall) {
	b.Groups = append(b.Groups, calls)
	b.Expected += countNamed(calls)
}

// Render produces the batch's markup segment from its current state.
func (b *Batch) Render() string {
	return RenderSegment(b.Key, b.Groups, b.Results)
}

// countNamed counts the calls that will produce a result.
func countNamed(calls []model.ToolCall) int {
	n := 0
	for _, call := range calls {
		if call.Name != "" {
			n++
		}
	}
	return n
}

// allAnonymous reports whether no call in the group carries a name. Models
// emit such groups as thinking placeholders; they open no batch.
func allAnonymous(calls []model.ToolCall) bool {
	return countNamed(calls) == 0
}

// =============================================================================
// LEDGER
// =============================================================================

// Ledger tracks in-flight tool call batches and matches results to them.
//
// Batches resolve strictly in the order they opened: the wire protocol
// never interleaves batches, but a malformed stream may deliver a result
// naming a later batch early. Such results are recorded on the batch they
// name and folding still proceeds FIFO - a later batch folds only after
// every earlier batch has folded.
type Ledger struct {
	nextKey int
	open    []*Batch
}

// NewLedger creates an empty ledger. Keys start at zero, matching the key
// sequence a fresh replay of the same conversation would assign.
func NewLedger() *Ledger {
	return &Ledger{}
}

// OpenBatch records a new batch and returns it. A group whose calls are
// all anonymous is a no-op placeholder: no batch opens and ok is false.
func (l *Ledger) OpenBatch(calls []model.ToolCall) (batch *Batch, ok bool) {
	if len(calls) == 0 || allAnonymous(calls) {
		return nil, false
	}

	batch = &Batch{Key: l.nextKey}
	batch.addGroup(calls)
	l.nextKey++
	l.open = append(l.open, batch)
	return batch, true
}

// MatchResult attributes a result to an open batch and reports the batch
// key and whether that batch is now closed. Attribution prefers the oldest
// open batch that still has room and can accept the result's name; a
// result that matches no open batch is dropped (ok false).
func (l *Ledger) MatchResult(result model.ToolResult) (key int, closed bool, ok bool) {
	target := l.target(result)
	if target == nil {
		return 0, false, false
	}

	target.Results = append(target.Results, result)
	return target.Key, target.Closed(), true
}

// target selects the batch a result belongs to.
func (l *Ledger) target(result model.ToolResult) *Batch {
	// First pass: oldest open batch with room whose calls include the
	// result's name. An unnamed result always matches.
	for _, b := range l.open {
		if b.Closed() {
			continue
		}
		if result.Name == "" || b.hasCallNamed(result.Name) {
			return b
		}
	}

	// Fallback: oldest batch with room. Covers results that identify a
	// source name the call batch never declared (deferred-name calls).
	for _, b := range l.open {
		if !b.Closed() {
			return b
		}
	}
	return nil
}

// PopReady removes and returns the leading run of closed batches, in open
// order. A closed batch behind an open one stays put: folding is FIFO.
func (l *Ledger) PopReady() []*Batch {
	n := 0
	for n < len(l.open) && l.open[n].Closed() {
		n++
	}
	if n == 0 {
		return nil
	}

	ready := l.open[:n]
	l.open = append([]*Batch(nil), l.open[n:]...)
	return ready
}

// Open returns the unfolded batches in open order, for rendering the
// still-streaming tail of the transcript.
func (l *Ledger) Open() []*Batch {
	return l.open
}

// OpenCount returns the number of unfolded batches.
func (l *Ledger) OpenCount() int {
	return len(l.open)
}

// Reset discards all transient state. Keys keep counting: a conversation's
// tool keys stay unique across exchanges.
func (l *Ledger) Reset() {
	l.open = nil
}

// SetNextKey seeds the key counter. Used when a conversation is reloaded
// from history so a resumed stream continues the replayed key sequence.
func (l *Ledger) SetNextKey(key int) {
	l.nextKey = key
}

// NextKey returns the key the next batch will receive.
func (l *Ledger) NextKey() int {
	return l.nextKey
}
