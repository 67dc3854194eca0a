package store

import (
	"context"
	"time"
)

// User is a chat participant as known to the user directory.
// The id is the Telegram user id and is the identity key everywhere.
type User struct {
	ID           int64
	FirstName    string
	LastName     string
	Username     string
	IsAdmin      bool
	IsBanned     bool
	ChatNickname string
}

// MessageType distinguishes user text from synthesized system notices.
type MessageType string

const (
	MessageTypeText   MessageType = "text"
	MessageTypeSystem MessageType = "system"
)

// Message is a persisted chat message. The id is server-generated and
// never reused; Timestamp is the ordering key within a room.
type Message struct {
	ID        string
	ChatID    string
	Text      string
	User      User
	Timestamp time.Time
	Type      MessageType
	IsPinned  bool
	ReplyTo   *string
	Edited    bool
	EditedAt  *time.Time
}

// UserDirectory resolves and updates moderation flags for users.
// Lookups return (nil, nil) when the user does not exist; an error means
// the store itself failed.
type UserDirectory interface {
	// Upsert inserts the user if absent and returns the stored record.
	// An existing record wins: moderation flags already on file are kept.
	Upsert(ctx context.Context, user User) (*User, error)

	// FindByID retrieves a user by Telegram id.
	FindByID(ctx context.Context, id int64) (*User, error)

	// SetBanned updates is_banned and returns the updated record, or nil
	// if no such user exists.
	SetBanned(ctx context.Context, id int64, banned bool) (*User, error)

	// SetAdmin updates is_admin and returns the updated record, or nil
	// if no such user exists.
	SetAdmin(ctx context.Context, id int64, admin bool) (*User, error)

	// List returns all known users.
	List(ctx context.Context) ([]*User, error)
}

// MessageStore handles durable message CRUD. Mutators report how many
// rows they touched; a missing target is affected count 0, not an error.
type MessageStore interface {
	// Insert persists a message and returns it as stored.
	Insert(ctx context.Context, msg *Message) (*Message, error)

	// FindRecent returns up to limit messages, oldest to newest.
	// An empty chatID scopes the query to the whole store.
	FindRecent(ctx context.Context, chatID string, limit int) ([]*Message, error)

	// FindMessage retrieves a message, or (nil, nil) when absent.
	FindMessage(ctx context.Context, id string) (*Message, error)

	// SetText replaces the message text and stamps it edited.
	SetText(ctx context.Context, id, text string, editedAt time.Time) (int64, error)

	// SetPinned flips the pinned flag.
	SetPinned(ctx context.Context, id string, pinned bool) (int64, error)

	// DeleteByID removes a single message.
	DeleteByID(ctx context.Context, id string) (int64, error)

	// DeleteByRoom removes every message scoped to the room.
	DeleteByRoom(ctx context.Context, chatID string) (int64, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserDirectory
	MessageStore

	// Close closes the underlying database connection.
	Close() error
}
