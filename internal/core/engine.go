package core

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/tgchat-app/chat-server/internal/store"
	"github.com/tgchat-app/chat-server/internal/utils"
)

// Broadcaster fans out events to every session joined to a room.
type Broadcaster interface {
	Broadcast(room string, event *Event)
	BroadcastExcept(room string, event *Event, except *Session)
}

// systemUser is the fixed sentinel authoring synthesized system messages.
var systemUser = store.User{ID: 0, FirstName: "System"}

// Engine executes message and user mutations after authorization. Any
// persistence failure is logged and surfaced to the acting session only;
// peers never observe partial failures.
type Engine struct {
	messages    store.MessageStore
	directory   store.UserDirectory
	broadcaster Broadcaster
	globalRoom  string
	log         *zerolog.Logger
}

// NewEngine wires the lifecycle engine to its collaborators. globalRoom
// is the well-known room the moderation events broadcast to.
func NewEngine(messages store.MessageStore, directory store.UserDirectory, broadcaster Broadcaster, globalRoom string, logger *zerolog.Logger) *Engine {
	return &Engine{
		messages:    messages,
		directory:   directory,
		broadcaster: broadcaster,
		globalRoom:  globalRoom,
		log:         logger,
	}
}

// SendMessage assigns a server-generated id and timestamp, persists the
// message and broadcasts it to the room, sender included. Client-supplied
// ids and timestamps never survive this path.
func (e *Engine) SendMessage(ctx context.Context, session *Session, room, text string, replyTo *string) {
	msg := &store.Message{
		ID:        utils.NewMessageID(),
		ChatID:    room,
		Text:      text,
		User:      *session.Identity,
		Timestamp: time.Now().UTC(),
		Type:      store.MessageTypeText,
		ReplyTo:   replyTo,
	}

	stored, err := e.messages.Insert(ctx, msg)
	if err != nil {
		e.fail(session, "send message", err)
		return
	}

	e.broadcaster.Broadcast(room, &Event{
		Kind:    EventNewMessage,
		Room:    room,
		Message: stored,
	})
}

// EditMessage persists the new text, marks the message edited and
// broadcasts the updated record, sender included. A missing message is a
// zero-effect outcome, not an error.
func (e *Engine) EditMessage(ctx context.Context, session *Session, room, messageID, text string) {
	affected, err := e.messages.SetText(ctx, messageID, text, time.Now().UTC())
	if err != nil {
		e.fail(session, "edit message", err)
		return
	}

	var updated *store.Message
	if affected > 0 {
		updated, err = e.messages.FindMessage(ctx, messageID)
		if err != nil {
			e.fail(session, "edit message", err)
			return
		}
		if room == "" && updated != nil {
			room = updated.ChatID
		}
	}

	event := &Event{
		Kind:      EventEditMessage,
		Room:      room,
		MessageID: messageID,
		Affected:  affected,
		Message:   updated,
	}
	if room == "" {
		e.notify(session, event)
		return
	}
	e.broadcaster.Broadcast(room, event)
}

// PinMessage sets isPinned and broadcasts the outcome count. Pinning a
// non-existent message reports affected 0 and still broadcasts.
func (e *Engine) PinMessage(ctx context.Context, session *Session, room, messageID string) {
	e.setPinned(ctx, session, room, messageID, true)
}

// UnpinMessage clears isPinned with the same not-found semantics as pin.
func (e *Engine) UnpinMessage(ctx context.Context, session *Session, room, messageID string) {
	e.setPinned(ctx, session, room, messageID, false)
}

func (e *Engine) setPinned(ctx context.Context, session *Session, room, messageID string, pinned bool) {
	verb := "pin message"
	kind := EventPinMessage
	if !pinned {
		verb = "unpin message"
		kind = EventUnpinMessage
	}

	if room == "" {
		msg, err := e.messages.FindMessage(ctx, messageID)
		if err != nil {
			e.fail(session, verb, err)
			return
		}
		if msg != nil {
			room = msg.ChatID
		}
	}

	affected, err := e.messages.SetPinned(ctx, messageID, pinned)
	if err != nil {
		e.fail(session, verb, err)
		return
	}

	event := &Event{
		Kind:      kind,
		Room:      room,
		MessageID: messageID,
		Affected:  affected,
	}
	if room == "" {
		// Nothing on file to resolve the room; only the actor learns
		// about the zero outcome.
		e.notify(session, event)
		return
	}
	e.broadcaster.Broadcast(room, event)
}

// DeleteMessage removes a message by id and broadcasts the deleted count.
func (e *Engine) DeleteMessage(ctx context.Context, session *Session, room, messageID string) {
	if room == "" {
		msg, err := e.messages.FindMessage(ctx, messageID)
		if err != nil {
			e.fail(session, "delete message", err)
			return
		}
		if msg != nil {
			room = msg.ChatID
		}
	}

	affected, err := e.messages.DeleteByID(ctx, messageID)
	if err != nil {
		e.fail(session, "delete message", err)
		return
	}

	event := &Event{
		Kind:      EventDeleteMessage,
		Room:      room,
		MessageID: messageID,
		Affected:  affected,
	}
	if room == "" {
		e.notify(session, event)
		return
	}
	e.broadcaster.Broadcast(room, event)
}

// DeleteAllMessages clears a room. The chat id is mandatory; a store-wide
// wipe is not reachable from this event.
func (e *Engine) DeleteAllMessages(ctx context.Context, session *Session, room string) {
	if room == "" {
		e.notify(session, &Event{
			Kind:  EventError,
			Error: coreError(ErrCodeBadRequest, "chatId is required"),
		})
		return
	}

	affected, err := e.messages.DeleteByRoom(ctx, room)
	if err != nil {
		e.fail(session, "delete all messages", err)
		return
	}

	e.broadcaster.Broadcast(room, &Event{
		Kind:     EventDeleteAllMessages,
		Room:     room,
		Affected: affected,
	})
}

// SetBanned flips is_banned in the user directory and announces the
// updated record to the global room.
func (e *Engine) SetBanned(ctx context.Context, session *Session, targetID int64, banned bool) {
	verb := "ban user"
	kind := EventBanUser
	if !banned {
		verb = "unban user"
		kind = EventUnbanUser
	}

	user, err := e.directory.SetBanned(ctx, targetID, banned)
	e.announceUser(session, kind, verb, user, err)
}

// SetAdmin flips is_admin in the user directory and announces the
// updated record to the global room.
func (e *Engine) SetAdmin(ctx context.Context, session *Session, targetID int64, admin bool) {
	verb := "set admin"
	kind := EventSetAdmin
	if !admin {
		verb = "delete admin"
		kind = EventDeleteAdmin
	}

	user, err := e.directory.SetAdmin(ctx, targetID, admin)
	e.announceUser(session, kind, verb, user, err)
}

func (e *Engine) announceUser(session *Session, kind EventKind, verb string, user *store.User, err error) {
	if err != nil {
		e.fail(session, verb, err)
		return
	}
	if user == nil {
		// Unknown target: zero-effect outcome visible to the actor only.
		e.notify(session, &Event{Kind: kind, Room: e.globalRoom, Affected: 0})
		return
	}
	e.broadcaster.Broadcast(e.globalRoom, &Event{
		Kind:     kind,
		Room:     e.globalRoom,
		Affected: 1,
		User:     user,
	})
}

// fail logs a persistence failure and reports a generic error to the
// acting session. The operation is not retried and peers stay uninformed.
func (e *Engine) fail(session *Session, verb string, err error) {
	ev := e.log.Error().
		Err(err).
		Str("session_id", session.ID)
	if session.Identity != nil {
		ev = ev.Int64("user_id", session.Identity.ID)
	}
	ev.Msgf("%s failed", verb)

	e.notify(session, &Event{
		Kind:  EventError,
		Error: coreError(ErrCodeInternal, fmt.Sprintf("Failed to %s", verb)),
	})
}

func (e *Engine) notify(session *Session, event *Event) {
	select {
	case session.Events <- event:
	default:
		// Drop if slow consumer.
	}
}
