// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage caches chats and their message logs in a local SQLite
// database.
package storage

const (
	// SchemaVersion tracks the database schema version for migrations
	SchemaVersion = 1
)

// SQLite schema for the local chat cache
const Schema = `
-- Metadata table for schema version and cache state
CREATE TABLE IF NOT EXISTS metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
) WITHOUT ROWID;

-- Chats table: one row per conversation known to the host
CREATE TABLE IF NOT EXISTS chats (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    created_at INTEGER NOT NULL,  -- Unix milliseconds
    updated_at INTEGER NOT NULL,  -- Unix milliseconds
    message_count INTEGER NOT NULL DEFAULT 0,
    preview TEXT
);

CREATE INDEX IF NOT EXISTS idx_chats_updated_at ON chats(updated_at);

-- Records table: the flat message log of each chat, in creation order
CREATE TABLE IF NOT EXISTS records (
    rowid_seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT NOT NULL,
    chat_id TEXT NOT NULL,
    message_id TEXT,
    role TEXT NOT NULL,           -- user, assistant, tool_call, tool_result
    content TEXT NOT NULL,
    tool_calls TEXT,              -- raw JSON payload, nullable
    files TEXT,                   -- JSON array of paths, nullable
    created_at INTEGER NOT NULL,  -- Unix milliseconds
    FOREIGN KEY(chat_id) REFERENCES chats(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_records_chat_id ON records(chat_id);
CREATE INDEX IF NOT EXISTS idx_records_created_at ON records(created_at);
`

// InitMetadata initializes the metadata table with default values
const InitMetadata = `
INSERT OR IGNORE INTO metadata (key, value) VALUES ('schema_version', '1');
INSERT OR IGNORE INTO metadata (key, value) VALUES ('created_at', strftime('%s', 'now'));
`
