package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/tgchat-app/chat-server/internal/store"
)

// schema is applied on open. The user snapshot is denormalized into the
// messages table so a message keeps the author exactly as they were at
// send time.
const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            INTEGER PRIMARY KEY,
	first_name    TEXT NOT NULL,
	last_name     TEXT NOT NULL DEFAULT '',
	username      TEXT NOT NULL DEFAULT '',
	is_admin      BOOLEAN NOT NULL DEFAULT 0,
	is_banned     BOOLEAN NOT NULL DEFAULT 0,
	chat_nickname TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS messages (
	id                 TEXT PRIMARY KEY,
	chat_id            TEXT NOT NULL,
	text               TEXT NOT NULL,
	user_id            INTEGER NOT NULL,
	user_first_name    TEXT NOT NULL,
	user_last_name     TEXT NOT NULL DEFAULT '',
	user_username      TEXT NOT NULL DEFAULT '',
	user_is_admin      BOOLEAN NOT NULL DEFAULT 0,
	user_is_banned     BOOLEAN NOT NULL DEFAULT 0,
	user_chat_nickname TEXT NOT NULL DEFAULT '',
	timestamp          DATETIME NOT NULL,
	type               TEXT NOT NULL DEFAULT 'text',
	is_pinned          BOOLEAN NOT NULL DEFAULT 0,
	reply_to           TEXT,
	edited             BOOLEAN NOT NULL DEFAULT 0,
	edited_at          DATETIME
);

CREATE INDEX IF NOT EXISTS idx_messages_chat_ts ON messages (chat_id, timestamp);
`

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, func(db *sql.DB) error {
		_, err := db.Exec(schema)
		return err
	})
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply a custom schema.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; this also makes the
	// per-message mutators (pin/unpin/delete) atomic.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== UserDirectory implementation ====

// Upsert inserts the user if absent and returns the stored record.
// An existing record wins so moderation flags survive re-registration.
func (s *SQLiteStore) Upsert(ctx context.Context, user store.User) (*store.User, error) {
	query := `
		INSERT INTO users (id, first_name, last_name, username, is_admin, is_banned, chat_nickname)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query,
		user.ID, user.FirstName, user.LastName, user.Username,
		user.IsAdmin, user.IsBanned, user.ChatNickname,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}

	return s.FindByID(ctx, user.ID)
}

// FindByID retrieves a user by Telegram id, (nil, nil) when absent.
func (s *SQLiteStore) FindByID(ctx context.Context, id int64) (*store.User, error) {
	query := `
		SELECT id, first_name, last_name, username, is_admin, is_banned, chat_nickname
		FROM users
		WHERE id = ?
	`
	var user store.User
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.FirstName,
		&user.LastName,
		&user.Username,
		&user.IsAdmin,
		&user.IsBanned,
		&user.ChatNickname,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query user: %w", err)
	}

	return &user, nil
}

// SetBanned updates is_banned and returns the updated record.
func (s *SQLiteStore) SetBanned(ctx context.Context, id int64, banned bool) (*store.User, error) {
	return s.setUserFlag(ctx, id, "is_banned", banned)
}

// SetAdmin updates is_admin and returns the updated record.
func (s *SQLiteStore) SetAdmin(ctx context.Context, id int64, admin bool) (*store.User, error) {
	return s.setUserFlag(ctx, id, "is_admin", admin)
}

func (s *SQLiteStore) setUserFlag(ctx context.Context, id int64, column string, value bool) (*store.User, error) {
	// column comes from the two callers above, never from input.
	query := fmt.Sprintf(`UPDATE users SET %s = ? WHERE id = ?`, column)
	result, err := s.db.ExecContext(ctx, query, value, id)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", column, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, nil
	}

	return s.FindByID(ctx, id)
}

// List returns all known users.
func (s *SQLiteStore) List(ctx context.Context) ([]*store.User, error) {
	query := `
		SELECT id, first_name, last_name, username, is_admin, is_banned, chat_nickname
		FROM users
		ORDER BY id
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	users := make([]*store.User, 0)
	for rows.Next() {
		var user store.User
		if err := rows.Scan(
			&user.ID,
			&user.FirstName,
			&user.LastName,
			&user.Username,
			&user.IsAdmin,
			&user.IsBanned,
			&user.ChatNickname,
		); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, &user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}

	return users, nil
}

// ==== MessageStore implementation ====

// Insert persists a message and returns it as stored.
func (s *SQLiteStore) Insert(ctx context.Context, msg *store.Message) (*store.Message, error) {
	query := `
		INSERT INTO messages (
			id, chat_id, text,
			user_id, user_first_name, user_last_name, user_username,
			user_is_admin, user_is_banned, user_chat_nickname,
			timestamp, type, is_pinned, reply_to, edited, edited_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		msg.ID, msg.ChatID, msg.Text,
		msg.User.ID, msg.User.FirstName, msg.User.LastName, msg.User.Username,
		msg.User.IsAdmin, msg.User.IsBanned, msg.User.ChatNickname,
		msg.Timestamp, string(msg.Type), msg.IsPinned, msg.ReplyTo, msg.Edited, msg.EditedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	return msg, nil
}

const messageColumns = `
	id, chat_id, text,
	user_id, user_first_name, user_last_name, user_username,
	user_is_admin, user_is_banned, user_chat_nickname,
	timestamp, type, is_pinned, reply_to, edited, edited_at
`

func scanMessage(row interface{ Scan(...any) error }) (*store.Message, error) {
	var (
		msg      store.Message
		msgType  string
		editedAt sql.NullTime
		replyTo  sql.NullString
	)
	err := row.Scan(
		&msg.ID, &msg.ChatID, &msg.Text,
		&msg.User.ID, &msg.User.FirstName, &msg.User.LastName, &msg.User.Username,
		&msg.User.IsAdmin, &msg.User.IsBanned, &msg.User.ChatNickname,
		&msg.Timestamp, &msgType, &msg.IsPinned, &replyTo, &msg.Edited, &editedAt,
	)
	if err != nil {
		return nil, err
	}

	msg.Type = store.MessageType(msgType)
	if replyTo.Valid {
		msg.ReplyTo = &replyTo.String
	}
	if editedAt.Valid {
		t := editedAt.Time
		msg.EditedAt = &t
	}

	return &msg, nil
}

// FindRecent returns up to limit messages, oldest to newest.
// An empty chatID queries across all rooms.
func (s *SQLiteStore) FindRecent(ctx context.Context, chatID string, limit int) ([]*store.Message, error) {
	if limit <= 0 {
		limit = 50
	}

	// Fetch the newest rows first, then reverse into chronological order.
	query := `SELECT ` + messageColumns + ` FROM messages`
	args := []any{}
	if chatID != "" {
		query += ` WHERE chat_id = ?`
		args = append(args, chatID)
	}
	query += ` ORDER BY timestamp DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	messages := make([]*store.Message, 0)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

// FindMessage retrieves a message, (nil, nil) when absent.
func (s *SQLiteStore) FindMessage(ctx context.Context, id string) (*store.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE id = ?`

	msg, err := scanMessage(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query message: %w", err)
	}

	return msg, nil
}

// SetText replaces the message text and stamps it edited in one statement.
func (s *SQLiteStore) SetText(ctx context.Context, id, text string, editedAt time.Time) (int64, error) {
	query := `UPDATE messages SET text = ?, edited = 1, edited_at = ? WHERE id = ?`
	result, err := s.db.ExecContext(ctx, query, text, editedAt, id)
	if err != nil {
		return 0, fmt.Errorf("update message text: %w", err)
	}
	return rowsAffected(result)
}

// SetPinned flips the pinned flag.
func (s *SQLiteStore) SetPinned(ctx context.Context, id string, pinned bool) (int64, error) {
	query := `UPDATE messages SET is_pinned = ? WHERE id = ?`
	result, err := s.db.ExecContext(ctx, query, pinned, id)
	if err != nil {
		return 0, fmt.Errorf("update message pin: %w", err)
	}
	return rowsAffected(result)
}

// DeleteByID removes a single message.
func (s *SQLiteStore) DeleteByID(ctx context.Context, id string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE id = ?`, id)
	if err != nil {
		return 0, fmt.Errorf("delete message: %w", err)
	}
	return rowsAffected(result)
}

// DeleteByRoom removes every message scoped to the room.
func (s *SQLiteStore) DeleteByRoom(ctx context.Context, chatID string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE chat_id = ?`, chatID)
	if err != nil {
		return 0, fmt.Errorf("delete room messages: %w", err)
	}
	return rowsAffected(result)
}

func rowsAffected(result sql.Result) (int64, error) {
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return affected, nil
}
