// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage caches chats and their message logs in a local SQLite
// database.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/tide-tui/internal/model"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	ErrNotFound      = errors.New("chat not found")
	ErrDatabaseError = errors.New("database error")
)

// =============================================================================
// STORE
// =============================================================================

// Store is the local chat cache. Safe for concurrent use; SQLite only
// supports one writer at a time, so the connection pool is pinned to a
// single connection.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the cache database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	s := &Store{db: db, path: path}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

// initSchema creates the database schema
func (s *Store) initSchema() error {
	if _, err := s.db.Exec(Schema); err != nil {
		return err
	}
	_, err := s.db.Exec(InitMetadata)
	return err
}

// Close closes the store and releases resources
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// =============================================================================
// CHATS
// =============================================================================

// SaveChat inserts or updates one chat's metadata.
func (s *Store) SaveChat(ctx context.Context, meta model.ChatMeta) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chats (id, title, created_at, updated_at, message_count, preview)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			updated_at = excluded.updated_at,
			message_count = excluded.message_count,
			preview = excluded.preview
	`, meta.ID, meta.Title, meta.CreatedAt.UnixMilli(), meta.UpdatedAt.UnixMilli(),
		meta.MessageCount, meta.Preview)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	return nil
}

// ListChats returns all cached chats, most recently updated first.
func (s *Store) ListChats(ctx context.Context) ([]model.ChatMeta, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, created_at, updated_at, message_count, COALESCE(preview, '')
		FROM chats
		ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	var chats []model.ChatMeta
	for rows.Next() {
		var (
			meta                 model.ChatMeta
			createdMS, updatedMS int64
		)
		if err := rows.Scan(&meta.ID, &meta.Title, &createdMS, &updatedMS,
			&meta.MessageCount, &meta.Preview); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
		}
		meta.CreatedAt = time.UnixMilli(createdMS)
		meta.UpdatedAt = time.UnixMilli(updatedMS)
		chats = append(chats, meta)
	}
	return chats, rows.Err()
}

// DeleteChat removes a chat and, via the foreign key cascade, its records.
func (s *Store) DeleteChat(ctx context.Context, chatID string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM chats WHERE id = ?", chatID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Clear removes every cached chat and record.
func (s *Store) Clear(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM records"); err != nil {
		return fmt.Errorf("failed to clear records: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM chats"); err != nil {
		return fmt.Errorf("failed to clear chats: %w", err)
	}
	return tx.Commit()
}

// =============================================================================
// RECORDS
// =============================================================================

// ReplaceRecords swaps a chat's cached log for the host's current one.
// The chat row must exist first (SaveChat) or the foreign key rejects the
// insert.
func (s *Store) ReplaceRecords(ctx context.Context, chatID string, records []model.StoredRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM records WHERE chat_id = ?", chatID); err != nil {
		return fmt.Errorf("failed to clear records: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO records (id, chat_id, message_id, role, content, tool_calls, files, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	defer stmt.Close()

	for i := range records {
		rec := &records[i]

		var toolCalls any
		if len(rec.ToolCalls) > 0 {
			toolCalls = string(rec.ToolCalls)
		}
		var files any
		if len(rec.Files) > 0 {
			encoded, err := json.Marshal(rec.Files)
			if err != nil {
				return fmt.Errorf("failed to encode files: %w", err)
			}
			files = string(encoded)
		}

		if _, err := stmt.Exec(rec.ID, chatID, rec.MessageID, string(rec.Role),
			rec.Content, toolCalls, files, rec.CreatedAt.UnixMilli()); err != nil {
			return fmt.Errorf("%w: %v", ErrDatabaseError, err)
		}
	}

	return tx.Commit()
}

// Records returns a chat's cached log in creation order. Implements the
// history record source, so a cached chat replays through the same
// reconstruction as a freshly loaded one.
func (s *Store) Records(ctx context.Context, chatID string) ([]model.StoredRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, message_id, role, content, COALESCE(tool_calls, ''), COALESCE(files, ''), created_at
		FROM records
		WHERE chat_id = ?
		ORDER BY rowid_seq ASC
	`, chatID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	var records []model.StoredRecord
	for rows.Next() {
		var (
			rec              model.StoredRecord
			role             string
			toolCalls, files string
			createdMS        int64
		)
		if err := rows.Scan(&rec.ID, &rec.MessageID, &role, &rec.Content,
			&toolCalls, &files, &createdMS); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
		}
		rec.ChatID = chatID
		rec.Role = model.RecordRole(role)
		rec.CreatedAt = time.UnixMilli(createdMS)
		if toolCalls != "" {
			rec.ToolCalls = json.RawMessage(toolCalls)
		}
		if files != "" {
			if err := json.Unmarshal([]byte(files), &rec.Files); err != nil {
				return nil, fmt.Errorf("failed to decode files: %w", err)
			}
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
