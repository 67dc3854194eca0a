package core

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/tgchat-app/chat-server/internal/store"
	"github.com/tgchat-app/chat-server/internal/store/sqlite"
)

const testSuperAdminID int64 = 999

func newTestStore(t *testing.T) store.Store {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func newTestHub(t *testing.T, st store.Store) *Hub {
	t.Helper()

	logger := zerolog.Nop()
	hub := NewHub(st, testSuperAdminID, "global", &logger)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	return hub
}

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

func mustNoEvent(t *testing.T, ch <-chan *Event) {
	t.Helper()

	time.Sleep(100 * time.Millisecond)
	select {
	case ev := <-ch:
		t.Fatalf("expected no event, got %+v", ev)
	default:
	}
}

func seedUser(t *testing.T, st store.Store, user store.User) {
	t.Helper()

	if _, err := st.Upsert(context.Background(), user); err != nil {
		t.Fatalf("seed user %d: %v", user.ID, err)
	}
}

func joinIdentified(s *Session, room string, user store.User) {
	s.Commands <- &Command{Kind: CommandJoinChat, Room: room, User: &user}
}
