package core

import "github.com/tgchat-app/chat-server/internal/store"

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventUserJoined carries the synthesized system message about a join.
	EventUserJoined EventKind = iota
	// EventNewMessage notifies clients about a new chat message.
	EventNewMessage
	// EventEditMessage notifies clients that a message text changed.
	EventEditMessage
	// EventPinMessage notifies clients that a message was pinned.
	EventPinMessage
	// EventUnpinMessage notifies clients that a message was unpinned.
	EventUnpinMessage
	// EventDeleteMessage notifies clients that a message was removed.
	EventDeleteMessage
	// EventDeleteAllMessages notifies clients that a room was cleared.
	EventDeleteAllMessages
	// EventBanUser announces an updated user record after a ban.
	EventBanUser
	// EventUnbanUser announces an updated user record after an unban.
	EventUnbanUser
	// EventSetAdmin announces an updated user record after an admin grant.
	EventSetAdmin
	// EventDeleteAdmin announces an updated user record after an admin revoke.
	EventDeleteAdmin
	// EventHistory delivers recent messages to a session upon joining.
	EventHistory
	// EventError notifies a single session about a domain error.
	EventError
)

var eventNames = map[EventKind]string{
	EventUserJoined:        "user-joined",
	EventNewMessage:        "new-message",
	EventEditMessage:       "edit-message",
	EventPinMessage:        "pin-message",
	EventUnpinMessage:      "unpin-message",
	EventDeleteMessage:     "delete-message",
	EventDeleteAllMessages: "delete-all-messages",
	EventBanUser:           "ban-user",
	EventUnbanUser:         "unban-user",
	EventSetAdmin:          "set-admin",
	EventDeleteAdmin:       "delete-admin",
	EventHistory:           "history",
	EventError:             "error",
}

// String returns the wire name of the event.
func (k EventKind) String() string {
	if name, ok := eventNames[k]; ok {
		return name
	}
	return "unknown"
}

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind EventKind

	// Room is the chat id the event is scoped to. The moderation events
	// use the configured global room.
	Room string

	// Message is set for user-joined, new-message and edit-message.
	Message *store.Message

	// Messages is set for history.
	Messages []*store.Message

	// MessageID targets pin/unpin/delete outcomes.
	MessageID string

	// Affected is the store-reported outcome count for mutations.
	Affected int64

	// User is the updated record for the moderation events.
	User *store.User

	// Error is set for error events.
	Error *CoreError
}
