package core

import "github.com/tgchat-app/chat-server/internal/store"

// Session is one live connection as seen by the core layer. Identity is
// attached at most once, on the first identified join, and only by the
// hub goroutine; everyone else reads it.
type Session struct {
	ID       string
	Identity *store.User
	Commands chan *Command
	Events   chan *Event
	Rooms    map[string]struct{}
}

// NewSession constructs a session with initialized channels and no identity.
func NewSession(id string) *Session {
	return &Session{
		ID:       id,
		Commands: make(chan *Command, 8),
		Events:   make(chan *Event, 8),
		Rooms:    make(map[string]struct{}),
	}
}

// Identified reports whether an identity has been attached.
func (s *Session) Identified() bool {
	return s.Identity != nil
}
