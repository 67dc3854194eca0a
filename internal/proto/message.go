package proto

import (
	"encoding/json"
	"time"
)

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	InboundTypeJoin        = "join-chat"
	InboundTypeSend        = "send-message"
	InboundTypeEdit        = "edit-message"
	InboundTypePin         = "pin-message"
	InboundTypeUnpin       = "unpin-message"
	InboundTypeDelete      = "delete-message"
	InboundTypeDeleteAll   = "delete-all-messages"
	InboundTypeBan         = "ban-user"
	InboundTypeUnban       = "unban-user"
	InboundTypeSetAdmin    = "set-admin"
	InboundTypeDeleteAdmin = "delete-admin"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"
)

// User is the wire shape of a chat participant.
type User struct {
	ID           int64  `json:"id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name,omitempty"`
	Username     string `json:"username,omitempty"`
	IsAdmin      bool   `json:"is_admin"`
	IsBanned     bool   `json:"is_banned"`
	ChatNickname string `json:"chat_nickname,omitempty"`
}

// Message is the wire shape of a chat message.
type Message struct {
	ID        string     `json:"id"`
	ChatID    string     `json:"chatId,omitempty"`
	Text      string     `json:"text"`
	User      User       `json:"user"`
	Timestamp time.Time  `json:"timestamp"`
	Type      string     `json:"type"`
	IsPinned  bool       `json:"isPinned"`
	ReplyTo   *string    `json:"replyTo"`
	Edited    bool       `json:"edited,omitempty"`
	EditedAt  *time.Time `json:"editedAt,omitempty"`
}

// JoinData is a join-chat payload. The wire form is either a bare chat id
// string (anonymous join) or an object carrying the identity.
type JoinData struct {
	ChatID string
	User   *User
}

// UnmarshalJSON accepts both join payload shapes.
func (j *JoinData) UnmarshalJSON(data []byte) error {
	var bare string
	if err := json.Unmarshal(data, &bare); err == nil {
		j.ChatID = bare
		j.User = nil
		return nil
	}

	var full struct {
		ChatID string `json:"chatId"`
		User   *User  `json:"user"`
	}
	if err := json.Unmarshal(data, &full); err != nil {
		return err
	}
	j.ChatID = full.ChatID
	j.User = full.User
	return nil
}

// Valid reports whether the payload is one of the two accepted shapes.
// Id 0 is the system sentinel and never a real identity.
func (j *JoinData) Valid() bool {
	if j.ChatID == "" {
		return false
	}
	return j.User == nil || j.User.ID != 0
}

// SendData is a send-message payload. Any client-supplied id or timestamp
// inside Message is discarded by the server.
type SendData struct {
	ChatID  string `json:"chatId"`
	Message struct {
		Text    string  `json:"text"`
		ReplyTo *string `json:"replyTo"`
	} `json:"message"`
}

// EditData is an edit-message payload.
type EditData struct {
	ChatID    string `json:"chatId"`
	MessageID string `json:"messageId"`
	Text      string `json:"text"`
}

// PinData is a pin-message or unpin-message payload.
type PinData struct {
	ChatID  string `json:"chatId"`
	Message struct {
		ID string `json:"id"`
	} `json:"message"`
}

// DeleteData is a delete-message payload.
type DeleteData struct {
	ChatID    string `json:"chatId"`
	MessageID string `json:"messageId"`
}

// DeleteAllData is a delete-all-messages payload.
type DeleteAllData struct {
	ChatID string `json:"chatId"`
}

// ModerateData targets the user moderation events.
type ModerateData struct {
	UserID int64 `json:"userId"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// EventOutcome reports the result of pin/unpin/delete to the room.
type EventOutcome struct {
	ChatID    string `json:"chatId"`
	MessageID string `json:"messageId,omitempty"`
	Affected  int64  `json:"affected"`
}

// EventModeration reports a user-directory mutation. Affected 0 with no
// user means the target was unknown.
type EventModeration struct {
	Affected int64 `json:"affected"`
	User     *User `json:"user,omitempty"`
}

// EventRoomCleared reports a delete-all-messages outcome.
type EventRoomCleared struct {
	ChatID       string `json:"chatId"`
	DeletedCount int64  `json:"deletedCount"`
}

// EventHistory delivers recent room messages to a joining client.
type EventHistory struct {
	ChatID   string    `json:"chatId"`
	Messages []Message `json:"messages"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"message"`
}
