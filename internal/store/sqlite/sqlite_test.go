package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/tgchat-app/chat-server/internal/store"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testMessage(id, chatID, text string, ts time.Time) *store.Message {
	return &store.Message{
		ID:        id,
		ChatID:    chatID,
		Text:      text,
		User:      store.User{ID: 1, FirstName: "Alice"},
		Timestamp: ts,
		Type:      store.MessageTypeText,
	}
}

func TestUpsertExistingRecordWins(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.Upsert(ctx, store.User{ID: 1, FirstName: "Alice"})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if first.IsBanned || first.IsAdmin {
		t.Fatalf("fresh user must have clean flags: %+v", first)
	}

	if _, err := s.SetBanned(ctx, 1, true); err != nil {
		t.Fatalf("SetBanned: %v", err)
	}

	// Re-registration must not clear the ban.
	again, err := s.Upsert(ctx, store.User{ID: 1, FirstName: "Alice"})
	if err != nil {
		t.Fatalf("Upsert again: %v", err)
	}
	if !again.IsBanned {
		t.Fatal("upsert must keep moderation flags on file")
	}
}

func TestSetFlagsUnknownUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user, err := s.SetBanned(ctx, 42, true)
	if err != nil {
		t.Fatalf("SetBanned: %v", err)
	}
	if user != nil {
		t.Fatalf("expected nil for unknown user, got %+v", user)
	}

	user, err = s.SetAdmin(ctx, 42, true)
	if err != nil {
		t.Fatalf("SetAdmin: %v", err)
	}
	if user != nil {
		t.Fatalf("expected nil for unknown user, got %+v", user)
	}
}

func TestFindRecentOrderAndScope(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i, text := range []string{"one", "two", "three"} {
		if _, err := s.Insert(ctx, testMessage(text, "general", text, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
	if _, err := s.Insert(ctx, testMessage("other", "other", "elsewhere", base)); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	messages, err := s.FindRecent(ctx, "general", 2)
	if err != nil {
		t.Fatalf("FindRecent: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}
	// Limit keeps the newest, order stays oldest-to-newest.
	if messages[0].Text != "two" || messages[1].Text != "three" {
		t.Fatalf("unexpected order: %q, %q", messages[0].Text, messages[1].Text)
	}

	all, err := s.FindRecent(ctx, "", 10)
	if err != nil {
		t.Fatalf("FindRecent all: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4 messages across rooms, got %d", len(all))
	}
}

func TestFindByIDNotFound(t *testing.T) {
	s := newTestStore(t)

	msg, err := s.FindMessage(context.Background(), "missing")
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if msg != nil {
		t.Fatalf("expected nil for missing message, got %+v", msg)
	}
}

func TestSetTextMarksEdited(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Insert(ctx, testMessage("m1", "general", "original", time.Now().UTC())); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	editedAt := time.Now().UTC()
	affected, err := s.SetText(ctx, "m1", "changed", editedAt)
	if err != nil {
		t.Fatalf("SetText: %v", err)
	}
	if affected != 1 {
		t.Fatalf("expected affected 1, got %d", affected)
	}

	msg, err := s.FindMessage(ctx, "m1")
	if err != nil || msg == nil {
		t.Fatalf("FindByID: %v, %v", msg, err)
	}
	if msg.Text != "changed" || !msg.Edited || msg.EditedAt == nil {
		t.Fatalf("edit not recorded: %+v", msg)
	}

	affected, err = s.SetText(ctx, "missing", "x", editedAt)
	if err != nil {
		t.Fatalf("SetText missing: %v", err)
	}
	if affected != 0 {
		t.Fatalf("expected affected 0 for missing id, got %d", affected)
	}
}

func TestPinAndDeleteCounts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Insert(ctx, testMessage("m1", "general", "hello", time.Now().UTC())); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	affected, err := s.SetPinned(ctx, "m1", true)
	if err != nil || affected != 1 {
		t.Fatalf("SetPinned: affected %d, err %v", affected, err)
	}

	msg, _ := s.FindMessage(ctx, "m1")
	if msg == nil || !msg.IsPinned {
		t.Fatalf("pin not persisted: %+v", msg)
	}

	affected, err = s.SetPinned(ctx, "missing", true)
	if err != nil || affected != 0 {
		t.Fatalf("SetPinned missing: affected %d, err %v", affected, err)
	}

	affected, err = s.DeleteByID(ctx, "m1")
	if err != nil || affected != 1 {
		t.Fatalf("DeleteByID: affected %d, err %v", affected, err)
	}

	affected, err = s.DeleteByID(ctx, "m1")
	if err != nil || affected != 0 {
		t.Fatalf("DeleteByID repeat: affected %d, err %v", affected, err)
	}
}

func TestDeleteByRoom(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	for _, id := range []string{"a", "b", "c"} {
		if _, err := s.Insert(ctx, testMessage(id, "general", id, now)); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
	if _, err := s.Insert(ctx, testMessage("z", "other", "keep", now)); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	affected, err := s.DeleteByRoom(ctx, "general")
	if err != nil {
		t.Fatalf("DeleteByRoom: %v", err)
	}
	if affected != 3 {
		t.Fatalf("expected 3 deleted, got %d", affected)
	}

	left, err := s.FindRecent(ctx, "other", 10)
	if err != nil {
		t.Fatalf("FindRecent: %v", err)
	}
	if len(left) != 1 {
		t.Fatalf("other room must be untouched, got %d", len(left))
	}
}

func TestReplyToRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	parent := "m_parent"
	msg := testMessage("m_child", "general", "reply", time.Now().UTC())
	msg.ReplyTo = &parent

	if _, err := s.Insert(ctx, msg); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, err := s.FindMessage(ctx, "m_child")
	if err != nil || got == nil {
		t.Fatalf("FindByID: %v, %v", got, err)
	}
	if got.ReplyTo == nil || *got.ReplyTo != parent {
		t.Fatalf("replyTo not preserved: %+v", got.ReplyTo)
	}
}
