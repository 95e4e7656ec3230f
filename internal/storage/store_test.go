// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage caches chats and their message logs in a local SQLite
// database.
package storage

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/tide-tui/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "cache", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func chatMeta(id, title string, updated time.Time) model.ChatMeta {
	return model.ChatMeta{
		ID:        id,
		Title:     title,
		CreatedAt: updated.Add(-time.Hour),
		UpdatedAt: updated,
		Preview:   "preview of " + id,
	}
}

// =============================================================================
// CHAT TESTS
// =============================================================================

func TestStore_SaveChatUpsert(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.UnixMilli(1741943213000)

	require.NoError(t, s.SaveChat(ctx, chatMeta("chat_1", "First title", now)))

	updated := chatMeta("chat_1", "Renamed", now.Add(time.Minute))
	updated.MessageCount = 4
	require.NoError(t, s.SaveChat(ctx, updated))

	chats, err := s.ListChats(ctx)
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, "Renamed", chats[0].Title)
	assert.Equal(t, 4, chats[0].MessageCount)
	assert.Equal(t, now.Add(time.Minute).UnixMilli(), chats[0].UpdatedAt.UnixMilli())
}

func TestStore_ListChatsOrdering(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.UnixMilli(1741943213000)

	require.NoError(t, s.SaveChat(ctx, chatMeta("chat_old", "Old", base)))
	require.NoError(t, s.SaveChat(ctx, chatMeta("chat_new", "New", base.Add(time.Hour))))
	require.NoError(t, s.SaveChat(ctx, chatMeta("chat_mid", "Mid", base.Add(time.Minute))))

	chats, err := s.ListChats(ctx)
	require.NoError(t, err)
	require.Len(t, chats, 3)
	assert.Equal(t, "chat_new", chats[0].ID)
	assert.Equal(t, "chat_mid", chats[1].ID)
	assert.Equal(t, "chat_old", chats[2].ID)
}

func TestStore_DeleteChat(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveChat(ctx, chatMeta("chat_1", "Title", time.Now())))
	require.NoError(t, s.DeleteChat(ctx, "chat_1"))

	chats, err := s.ListChats(ctx)
	require.NoError(t, err)
	assert.Empty(t, chats)

	assert.ErrorIs(t, s.DeleteChat(ctx, "chat_1"), ErrNotFound)
}

func TestStore_DeleteChatCascades(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveChat(ctx, chatMeta("chat_1", "Title", time.Now())))
	require.NoError(t, s.ReplaceRecords(ctx, "chat_1", []model.StoredRecord{
		{ID: "r1", Role: model.RecordUser, Content: "Hello", CreatedAt: time.Now()},
	}))
	require.NoError(t, s.DeleteChat(ctx, "chat_1"))

	// Re-create the chat row; its old records must not resurface.
	require.NoError(t, s.SaveChat(ctx, chatMeta("chat_1", "Title", time.Now())))
	records, err := s.Records(ctx, "chat_1")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestStore_Clear(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveChat(ctx, chatMeta("chat_1", "One", time.Now())))
	require.NoError(t, s.SaveChat(ctx, chatMeta("chat_2", "Two", time.Now())))
	require.NoError(t, s.ReplaceRecords(ctx, "chat_1", []model.StoredRecord{
		{ID: "r1", Role: model.RecordUser, Content: "Hello", CreatedAt: time.Now()},
	}))

	require.NoError(t, s.Clear(ctx))

	chats, err := s.ListChats(ctx)
	require.NoError(t, err)
	assert.Empty(t, chats)
}

// =============================================================================
// RECORD TESTS
// =============================================================================

func TestStore_RecordsRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	created := time.UnixMilli(1741943213000)

	require.NoError(t, s.SaveChat(ctx, chatMeta("chat_1", "Title", created)))

	original := []model.StoredRecord{
		{
			ID:        "r1",
			MessageID: "msg_u1",
			Role:      model.RecordUser,
			Content:   "run the tools",
			Files:     []string{"input.csv", "notes.txt"},
			CreatedAt: created,
		},
		{
			ID:        "r2",
			Role:      model.RecordAssistant,
			Content:   "Checking.",
			ToolCalls: json.RawMessage(`[{"name":"foo","arguments":{"q":"go"}}]`),
			CreatedAt: created.Add(time.Second),
		},
		{
			ID:        "r3",
			Role:      model.RecordToolResult,
			Content:   `{"n":1}`,
			CreatedAt: created.Add(2 * time.Second),
		},
	}
	require.NoError(t, s.ReplaceRecords(ctx, "chat_1", original))

	records, err := s.Records(ctx, "chat_1")
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, "msg_u1", records[0].MessageID)
	assert.Equal(t, model.RecordUser, records[0].Role)
	assert.Equal(t, []string{"input.csv", "notes.txt"}, records[0].Files)
	assert.Equal(t, created.UnixMilli(), records[0].CreatedAt.UnixMilli())

	assert.JSONEq(t, `[{"name":"foo","arguments":{"q":"go"}}]`, string(records[1].ToolCalls))
	assert.Empty(t, records[1].Files)
	assert.Nil(t, records[2].ToolCalls)
	assert.Equal(t, "chat_1", records[2].ChatID)
}

func TestStore_ReplaceRecordsSwapsLog(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.SaveChat(ctx, chatMeta("chat_1", "Title", now)))
	require.NoError(t, s.ReplaceRecords(ctx, "chat_1", []model.StoredRecord{
		{ID: "old1", Role: model.RecordUser, Content: "stale", CreatedAt: now},
		{ID: "old2", Role: model.RecordAssistant, Content: "stale reply", CreatedAt: now},
	}))
	require.NoError(t, s.ReplaceRecords(ctx, "chat_1", []model.StoredRecord{
		{ID: "new1", Role: model.RecordUser, Content: "fresh", CreatedAt: now},
	}))

	records, err := s.Records(ctx, "chat_1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "new1", records[0].ID)
}

func TestStore_RecordsPreserveOrder(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.SaveChat(ctx, chatMeta("chat_1", "Title", now)))

	// Insertion order wins even when timestamps collide.
	var original []model.StoredRecord
	for _, id := range []string{"a", "b", "c", "d"} {
		original = append(original, model.StoredRecord{
			ID: id, Role: model.RecordUser, Content: id, CreatedAt: now,
		})
	}
	require.NoError(t, s.ReplaceRecords(ctx, "chat_1", original))

	records, err := s.Records(ctx, "chat_1")
	require.NoError(t, err)
	require.Len(t, records, 4)
	for i, id := range []string{"a", "b", "c", "d"} {
		assert.Equal(t, id, records[i].ID)
	}
}

func TestStore_RecordsUnknownChat(t *testing.T) {
	s := openTestStore(t)

	records, err := s.Records(context.Background(), "nope")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestStore_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.SaveChat(context.Background(), chatMeta("chat_1", "Sticky", time.Now())))
	require.NoError(t, s.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	chats, err := reopened.ListChats(context.Background())
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, "Sticky", chats[0].Title)
}
