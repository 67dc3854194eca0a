package core

import (
	"context"
	"testing"

	"github.com/tgchat-app/chat-server/internal/store"
)

func TestIdentifiedJoinBroadcastsSystemMessage(t *testing.T) {
	st := newTestStore(t)
	hub := newTestHub(t, st)

	alice := NewSession("a")
	bob := NewSession("b")
	hub.RegisterSession(alice)
	hub.RegisterSession(bob)

	joinIdentified(alice, "general", store.User{ID: 1, FirstName: "Alice"})
	mustEvent(t, alice.Events, EventHistory)

	joinIdentified(bob, "general", store.User{ID: 2, FirstName: "Bob"})

	// Alice sees the join notice; Bob does not see his own.
	ev := mustEvent(t, alice.Events, EventUserJoined)
	if ev.Message == nil || ev.Message.User.ID != 0 || ev.Message.User.FirstName != "System" {
		t.Fatalf("join notice must come from the system sentinel, got %+v", ev.Message)
	}
	if ev.Message.Text != "Bob joined the chat" {
		t.Fatalf("unexpected join notice text: %q", ev.Message.Text)
	}
	if ev.Message.Type != store.MessageTypeSystem {
		t.Fatalf("join notice must be a system message, got %q", ev.Message.Type)
	}

	mustEvent(t, bob.Events, EventHistory)
	mustNoEvent(t, bob.Events)
}

func TestSendMessageReachesAllIncludingSender(t *testing.T) {
	st := newTestStore(t)
	hub := newTestHub(t, st)

	alice := NewSession("a")
	bob := NewSession("b")
	hub.RegisterSession(alice)
	hub.RegisterSession(bob)

	joinIdentified(alice, "general", store.User{ID: 1, FirstName: "Alice"})
	joinIdentified(bob, "general", store.User{ID: 2, FirstName: "Bob"})
	mustEvent(t, alice.Events, EventHistory)
	mustEvent(t, bob.Events, EventHistory)

	alice.Commands <- &Command{Kind: CommandSendMessage, Room: "general", Text: "hi"}

	for _, s := range []*Session{alice, bob} {
		ev := mustEvent(t, s.Events, EventNewMessage)
		if ev.Message.Text != "hi" || ev.Message.ChatID != "general" {
			t.Fatalf("unexpected message event: %+v", ev.Message)
		}
		if ev.Message.ID == "" || ev.Message.Timestamp.IsZero() {
			t.Fatalf("server must assign id and timestamp, got %+v", ev.Message)
		}
		if ev.Message.User.ID != 1 {
			t.Fatalf("message must carry the sender snapshot, got %+v", ev.Message.User)
		}
	}

	// Exactly one store insert.
	stored, err := st.FindRecent(context.Background(), "general", 10)
	if err != nil {
		t.Fatalf("FindRecent: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("expected 1 stored message, got %d", len(stored))
	}
}

func TestBannedUserCannotSend(t *testing.T) {
	st := newTestStore(t)
	hub := newTestHub(t, st)

	seedUser(t, st, store.User{ID: 2, FirstName: "Boris", IsBanned: true})

	banned := NewSession("banned")
	peer := NewSession("peer")
	hub.RegisterSession(banned)
	hub.RegisterSession(peer)

	joinIdentified(banned, "general", store.User{ID: 2, FirstName: "Boris"})
	joinIdentified(peer, "general", store.User{ID: 3, FirstName: "Petr"})
	mustEvent(t, banned.Events, EventHistory)
	mustEvent(t, peer.Events, EventHistory)

	banned.Commands <- &Command{Kind: CommandSendMessage, Room: "general", Text: "hi"}

	ev := mustEvent(t, banned.Events, EventError)
	if ev.Error == nil || ev.Error.Code != ErrCodeBanned {
		t.Fatalf("expected banned error, got %+v", ev)
	}

	mustNoEvent(t, peer.Events)

	stored, err := st.FindRecent(context.Background(), "general", 10)
	if err != nil {
		t.Fatalf("FindRecent: %v", err)
	}
	if len(stored) != 0 {
		t.Fatalf("no store write expected, got %d messages", len(stored))
	}
}

func TestBanAppliedMidSessionTakesEffect(t *testing.T) {
	st := newTestStore(t)
	hub := newTestHub(t, st)

	seedUser(t, st, store.User{ID: 5, FirstName: "Dina"})

	s := NewSession("s")
	hub.RegisterSession(s)
	joinIdentified(s, "general", store.User{ID: 5, FirstName: "Dina"})
	mustEvent(t, s.Events, EventHistory)

	// Ban lands in the directory after the snapshot was attached.
	if _, err := st.SetBanned(context.Background(), 5, true); err != nil {
		t.Fatalf("SetBanned: %v", err)
	}

	s.Commands <- &Command{Kind: CommandSendMessage, Room: "general", Text: "hi"}

	ev := mustEvent(t, s.Events, EventError)
	if ev.Error == nil || ev.Error.Code != ErrCodeBanned {
		t.Fatalf("expected banned error after mid-session ban, got %+v", ev)
	}
}

func TestAnonymousJoinCannotSend(t *testing.T) {
	st := newTestStore(t)
	hub := newTestHub(t, st)

	s := NewSession("anon")
	hub.RegisterSession(s)

	s.Commands <- &Command{Kind: CommandJoinChat, Room: "general"}
	s.Commands <- &Command{Kind: CommandSendMessage, Room: "general", Text: "hi"}

	ev := mustEvent(t, s.Events, EventError)
	if ev.Error == nil || ev.Error.Code != ErrCodeAuthRequired {
		t.Fatalf("expected auth_required error, got %+v", ev)
	}
}

func TestAdminPinBroadcastsOutcome(t *testing.T) {
	st := newTestStore(t)
	hub := newTestHub(t, st)

	seedUser(t, st, store.User{ID: 3, FirstName: "Ada", IsAdmin: true})

	admin := NewSession("admin")
	hub.RegisterSession(admin)
	joinIdentified(admin, "general", store.User{ID: 3, FirstName: "Ada"})
	mustEvent(t, admin.Events, EventHistory)

	admin.Commands <- &Command{Kind: CommandSendMessage, Room: "general", Text: "pin me"}
	sent := mustEvent(t, admin.Events, EventNewMessage)

	admin.Commands <- &Command{Kind: CommandPinMessage, Room: "general", MessageID: sent.Message.ID}

	ev := mustEvent(t, admin.Events, EventPinMessage)
	if ev.Affected != 1 || ev.MessageID != sent.Message.ID {
		t.Fatalf("expected affected 1 for %s, got %+v", sent.Message.ID, ev)
	}

	stored, err := st.FindMessage(context.Background(), sent.Message.ID)
	if err != nil || stored == nil {
		t.Fatalf("FindByID: %v, %v", stored, err)
	}
	if !stored.IsPinned {
		t.Fatal("message must be pinned in the store")
	}
}

func TestPinUnknownMessageIsZeroEffect(t *testing.T) {
	st := newTestStore(t)
	hub := newTestHub(t, st)

	seedUser(t, st, store.User{ID: 3, FirstName: "Ada", IsAdmin: true})

	admin := NewSession("admin")
	hub.RegisterSession(admin)
	joinIdentified(admin, "general", store.User{ID: 3, FirstName: "Ada"})
	mustEvent(t, admin.Events, EventHistory)

	admin.Commands <- &Command{Kind: CommandPinMessage, Room: "general", MessageID: "missing"}

	ev := mustEvent(t, admin.Events, EventPinMessage)
	if ev.Affected != 0 {
		t.Fatalf("expected zero-effect outcome, got %+v", ev)
	}
}

func TestEditMessageBroadcastsUpdatedRecord(t *testing.T) {
	st := newTestStore(t)
	hub := newTestHub(t, st)

	alice := NewSession("a")
	bob := NewSession("b")
	hub.RegisterSession(alice)
	hub.RegisterSession(bob)

	joinIdentified(alice, "general", store.User{ID: 1, FirstName: "Alice"})
	joinIdentified(bob, "general", store.User{ID: 2, FirstName: "Bob"})
	mustEvent(t, alice.Events, EventHistory)
	mustEvent(t, bob.Events, EventHistory)

	alice.Commands <- &Command{Kind: CommandSendMessage, Room: "general", Text: "first draft"}
	sent := mustEvent(t, alice.Events, EventNewMessage)
	mustEvent(t, bob.Events, EventNewMessage)

	alice.Commands <- &Command{Kind: CommandEditMessage, Room: "general", MessageID: sent.Message.ID, Text: "final"}

	for _, s := range []*Session{alice, bob} {
		ev := mustEvent(t, s.Events, EventEditMessage)
		if ev.Affected != 1 || ev.Message == nil {
			t.Fatalf("expected affected 1 with updated record, got %+v", ev)
		}
		if ev.Message.Text != "final" || !ev.Message.Edited || ev.Message.EditedAt == nil {
			t.Fatalf("edit not reflected in broadcast: %+v", ev.Message)
		}
	}

	stored, err := st.FindMessage(context.Background(), sent.Message.ID)
	if err != nil || stored == nil {
		t.Fatalf("FindMessage: %v, %v", stored, err)
	}
	if stored.Text != "final" || !stored.Edited {
		t.Fatalf("edit not persisted: %+v", stored)
	}
}

func TestEditUnknownMessageIsZeroEffect(t *testing.T) {
	st := newTestStore(t)
	hub := newTestHub(t, st)

	s := NewSession("s")
	hub.RegisterSession(s)
	joinIdentified(s, "general", store.User{ID: 1, FirstName: "Eve"})
	mustEvent(t, s.Events, EventHistory)

	s.Commands <- &Command{Kind: CommandEditMessage, Room: "general", MessageID: "missing", Text: "x"}

	ev := mustEvent(t, s.Events, EventEditMessage)
	if ev.Affected != 0 || ev.Message != nil {
		t.Fatalf("expected zero-effect outcome, got %+v", ev)
	}
}

func TestAdminDeleteBroadcastsOutcome(t *testing.T) {
	st := newTestStore(t)
	hub := newTestHub(t, st)

	seedUser(t, st, store.User{ID: 3, FirstName: "Ada", IsAdmin: true})

	admin := NewSession("admin")
	watcher := NewSession("watcher")
	hub.RegisterSession(admin)
	hub.RegisterSession(watcher)

	joinIdentified(admin, "general", store.User{ID: 3, FirstName: "Ada"})
	joinIdentified(watcher, "general", store.User{ID: 4, FirstName: "Wim"})
	mustEvent(t, admin.Events, EventHistory)
	mustEvent(t, watcher.Events, EventHistory)

	admin.Commands <- &Command{Kind: CommandSendMessage, Room: "general", Text: "remove me"}
	sent := mustEvent(t, admin.Events, EventNewMessage)
	mustEvent(t, watcher.Events, EventNewMessage)

	admin.Commands <- &Command{Kind: CommandDeleteMessage, Room: "general", MessageID: sent.Message.ID}

	for _, s := range []*Session{admin, watcher} {
		ev := mustEvent(t, s.Events, EventDeleteMessage)
		if ev.Affected != 1 || ev.MessageID != sent.Message.ID {
			t.Fatalf("expected deleted count 1 for %s, got %+v", sent.Message.ID, ev)
		}
	}

	stored, err := st.FindRecent(context.Background(), "general", 10)
	if err != nil {
		t.Fatalf("FindRecent: %v", err)
	}
	if len(stored) != 0 {
		t.Fatalf("message must be gone from the store, got %d", len(stored))
	}
}

func TestNonAdminDeleteAllForbidden(t *testing.T) {
	st := newTestStore(t)
	hub := newTestHub(t, st)

	user := NewSession("user")
	peer := NewSession("peer")
	hub.RegisterSession(user)
	hub.RegisterSession(peer)

	joinIdentified(user, "general", store.User{ID: 1, FirstName: "Uma"})
	joinIdentified(peer, "general", store.User{ID: 2, FirstName: "Pia"})
	mustEvent(t, user.Events, EventHistory)
	mustEvent(t, peer.Events, EventHistory)

	user.Commands <- &Command{Kind: CommandSendMessage, Room: "general", Text: "keep me"}
	mustEvent(t, user.Events, EventNewMessage)
	mustEvent(t, peer.Events, EventNewMessage)

	user.Commands <- &Command{Kind: CommandDeleteAllMessages, Room: "general"}

	ev := mustEvent(t, user.Events, EventError)
	if ev.Error == nil || ev.Error.Code != ErrCodeForbidden {
		t.Fatalf("expected forbidden error, got %+v", ev)
	}
	mustNoEvent(t, peer.Events)

	stored, err := st.FindRecent(context.Background(), "general", 10)
	if err != nil {
		t.Fatalf("FindRecent: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("store must be untouched, got %d messages", len(stored))
	}
}

func TestDeleteAllRequiresChatID(t *testing.T) {
	st := newTestStore(t)
	hub := newTestHub(t, st)

	seedUser(t, st, store.User{ID: 3, FirstName: "Ada", IsAdmin: true})

	admin := NewSession("admin")
	hub.RegisterSession(admin)
	joinIdentified(admin, "general", store.User{ID: 3, FirstName: "Ada"})
	mustEvent(t, admin.Events, EventHistory)

	admin.Commands <- &Command{Kind: CommandDeleteAllMessages}

	ev := mustEvent(t, admin.Events, EventError)
	if ev.Error == nil || ev.Error.Code != ErrCodeBadRequest {
		t.Fatalf("expected bad_request, got %+v", ev)
	}
}

func TestIdentityFirstWriteWins(t *testing.T) {
	st := newTestStore(t)
	hub := newTestHub(t, st)

	s := NewSession("s")
	hub.RegisterSession(s)

	joinIdentified(s, "general", store.User{ID: 1, FirstName: "First"})
	mustEvent(t, s.Events, EventHistory)
	joinIdentified(s, "other", store.User{ID: 2, FirstName: "Second"})
	mustEvent(t, s.Events, EventHistory)

	s.Commands <- &Command{Kind: CommandSendMessage, Room: "other", Text: "who am i"}
	ev := mustEvent(t, s.Events, EventNewMessage)
	if ev.Message.User.ID != 1 {
		t.Fatalf("identity must not be replaced, got user %d", ev.Message.User.ID)
	}
}

func TestSuperAdminModeration(t *testing.T) {
	st := newTestStore(t)
	hub := newTestHub(t, st)

	seedUser(t, st, store.User{ID: testSuperAdminID, FirstName: "Root"})
	seedUser(t, st, store.User{ID: 7, FirstName: "Greg"})

	super := NewSession("super")
	watcher := NewSession("watcher")
	hub.RegisterSession(super)
	hub.RegisterSession(watcher)

	joinIdentified(super, "global", store.User{ID: testSuperAdminID, FirstName: "Root"})
	joinIdentified(watcher, "global", store.User{ID: 8, FirstName: "Watt"})
	mustEvent(t, super.Events, EventHistory)
	mustEvent(t, watcher.Events, EventHistory)

	super.Commands <- &Command{Kind: CommandSetAdmin, TargetUserID: 7}

	ev := mustEvent(t, watcher.Events, EventSetAdmin)
	if ev.User == nil || ev.User.ID != 7 || !ev.User.IsAdmin {
		t.Fatalf("expected updated admin record, got %+v", ev.User)
	}

	fresh, err := st.FindByID(context.Background(), 7)
	if err != nil || fresh == nil {
		t.Fatalf("FindByID: %v, %v", fresh, err)
	}
	if !fresh.IsAdmin {
		t.Fatal("directory must record the admin grant")
	}
}

func TestRegularAdminCannotGrantAdmin(t *testing.T) {
	st := newTestStore(t)
	hub := newTestHub(t, st)

	seedUser(t, st, store.User{ID: 3, FirstName: "Ada", IsAdmin: true})

	admin := NewSession("admin")
	hub.RegisterSession(admin)
	joinIdentified(admin, "general", store.User{ID: 3, FirstName: "Ada"})
	mustEvent(t, admin.Events, EventHistory)

	admin.Commands <- &Command{Kind: CommandSetAdmin, TargetUserID: 7}

	ev := mustEvent(t, admin.Events, EventError)
	if ev.Error == nil || ev.Error.Code != ErrCodeForbidden {
		t.Fatalf("expected forbidden, got %+v", ev)
	}
}

func TestHistoryDeliveredOnJoin(t *testing.T) {
	st := newTestStore(t)
	hub := newTestHub(t, st)

	writer := NewSession("writer")
	hub.RegisterSession(writer)
	joinIdentified(writer, "general", store.User{ID: 1, FirstName: "Wes"})
	mustEvent(t, writer.Events, EventHistory)

	writer.Commands <- &Command{Kind: CommandSendMessage, Room: "general", Text: "first"}
	mustEvent(t, writer.Events, EventNewMessage)
	writer.Commands <- &Command{Kind: CommandSendMessage, Room: "general", Text: "second"}
	mustEvent(t, writer.Events, EventNewMessage)

	late := NewSession("late")
	hub.RegisterSession(late)
	joinIdentified(late, "general", store.User{ID: 2, FirstName: "Lana"})

	ev := mustEvent(t, late.Events, EventHistory)
	if len(ev.Messages) != 2 {
		t.Fatalf("expected 2 history messages, got %d", len(ev.Messages))
	}
	if ev.Messages[0].Text != "first" || ev.Messages[1].Text != "second" {
		t.Fatalf("history must be oldest to newest, got %q then %q", ev.Messages[0].Text, ev.Messages[1].Text)
	}
}
