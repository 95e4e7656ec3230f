// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage caches chats and their message logs in a local SQLite
// database.
//
// The host service is the source of truth; the cache exists so the history
// picker opens instantly and previously loaded chats render while offline.
// Writes mirror what the host reports (chat metadata from chat_info events,
// records from chat loads), and a chat's records are always replaced
// wholesale rather than merged, so the cache can never drift ahead of the
// host's log.
package storage
