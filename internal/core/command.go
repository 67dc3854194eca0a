package core

import "github.com/tgchat-app/chat-server/internal/store"

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandJoinChat subscribes the session to a room, optionally
	// attaching an identity.
	CommandJoinChat CommandKind = iota
	// CommandSendMessage delivers a chat message to room participants.
	CommandSendMessage
	// CommandEditMessage replaces the text of an existing message.
	CommandEditMessage
	// CommandPinMessage pins a message in its room.
	CommandPinMessage
	// CommandUnpinMessage unpins a message.
	CommandUnpinMessage
	// CommandDeleteMessage removes a single message.
	CommandDeleteMessage
	// CommandDeleteAllMessages removes every message in a room.
	CommandDeleteAllMessages
	// CommandBanUser revokes a user's write access.
	CommandBanUser
	// CommandUnbanUser restores a user's write access.
	CommandUnbanUser
	// CommandSetAdmin grants admin rights.
	CommandSetAdmin
	// CommandDeleteAdmin revokes admin rights.
	CommandDeleteAdmin
)

var commandNames = map[CommandKind]string{
	CommandJoinChat:          "join-chat",
	CommandSendMessage:       "send-message",
	CommandEditMessage:       "edit-message",
	CommandPinMessage:        "pin-message",
	CommandUnpinMessage:      "unpin-message",
	CommandDeleteMessage:     "delete-message",
	CommandDeleteAllMessages: "delete-all-messages",
	CommandBanUser:           "ban-user",
	CommandUnbanUser:         "unban-user",
	CommandSetAdmin:          "set-admin",
	CommandDeleteAdmin:       "delete-admin",
}

// String returns the wire name of the command.
func (k CommandKind) String() string {
	if name, ok := commandNames[k]; ok {
		return name
	}
	return "unknown"
}

// Command represents an action requested by a client.
type Command struct {
	Kind CommandKind

	// Room is the chat id the command targets.
	Room string

	// User carries the identity payload of an identified join.
	User *store.User

	// MessageID targets edit/pin/unpin/delete.
	MessageID string

	// Text is the message body for send/edit.
	Text string

	// ReplyTo optionally references the message being replied to.
	ReplyTo *string

	// TargetUserID is the subject of the moderation commands.
	TargetUserID int64
}
