package core

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/tgchat-app/chat-server/internal/store"
	"github.com/tgchat-app/chat-server/internal/utils"
)

const historyLimit = 50

// Hub owns the session registry and the room membership table. It runs a
// single goroutine consuming registrations and commands, so no locks are
// needed: every mutation of sessions, rooms and identities happens on the
// hub goroutine, and each command's store write completes before its
// broadcast goes out.
type Hub struct {
	register   chan *Session
	unregister chan *Session
	dispatch   chan sessionCommand

	sessions map[string]*Session
	rooms    map[string]*Room

	gate      *Gate
	engine    *Engine
	messages  store.MessageStore
	directory store.UserDirectory
	log       *zerolog.Logger
}

type sessionCommand struct {
	session *Session
	cmd     *Command
}

// NewHub creates a hub over the given store. superAdminID is the fixed
// identity allowed to run the super-admin events; globalRoom receives the
// user-base moderation broadcasts.
func NewHub(st store.Store, superAdminID int64, globalRoom string, logger *zerolog.Logger) *Hub {
	h := &Hub{
		register:   make(chan *Session),
		unregister: make(chan *Session),
		dispatch:   make(chan sessionCommand, 64),
		sessions:   make(map[string]*Session),
		rooms:      make(map[string]*Room),
		messages:   st,
		directory:  st,
		log:        logger,
	}
	h.gate = NewGate(st, superAdminID, logger)
	h.engine = NewEngine(st, st, h, globalRoom, logger)
	return h
}

// RegisterSession adds a connection to the registry. The hub consumes the
// session's Commands channel until UnregisterSession is called.
func (h *Hub) RegisterSession(s *Session) {
	h.register <- s
}

// UnregisterSession removes the session from every room and discards its
// state. The caller must have stopped writing to s.Commands.
func (h *Hub) UnregisterSession(s *Session) {
	h.unregister <- s
}

// Run processes registrations and commands until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case s := <-h.register:
			h.addSession(s)
		case s := <-h.unregister:
			h.removeSession(s)
		case sc := <-h.dispatch:
			h.handleCommand(ctx, sc.session, sc.cmd)
		}
	}
}

func (h *Hub) addSession(s *Session) {
	h.sessions[s.ID] = s
	h.log.Debug().Str("session_id", s.ID).Msg("session connected")

	// Pump the session's commands into the dispatch queue so the hub
	// loop stays the only goroutine touching shared state.
	go func() {
		for cmd := range s.Commands {
			h.dispatch <- sessionCommand{session: s, cmd: cmd}
		}
	}()
}

func (h *Hub) removeSession(s *Session) {
	for name := range s.Rooms {
		if room, ok := h.rooms[name]; ok {
			room.RemoveSession(s)
			if room.Empty() {
				delete(h.rooms, name)
			}
		}
	}
	delete(h.sessions, s.ID)
	close(s.Commands)
	h.log.Debug().Str("session_id", s.ID).Msg("session disconnected")
}

func (h *Hub) handleCommand(ctx context.Context, s *Session, cmd *Command) {
	if cmd.Kind == CommandJoinChat {
		h.handleJoin(ctx, s, cmd)
		return
	}

	if denied := h.gate.Authorize(ctx, s, cmd.Kind); denied != nil {
		h.notify(s, &Event{Kind: EventError, Error: denied})
		return
	}

	switch cmd.Kind {
	case CommandSendMessage:
		if cmd.Room == "" || cmd.Text == "" {
			h.notify(s, &Event{Kind: EventError, Error: coreError(ErrCodeBadRequest, "chatId and text are required")})
			return
		}
		h.engine.SendMessage(ctx, s, cmd.Room, cmd.Text, cmd.ReplyTo)
	case CommandEditMessage:
		if cmd.MessageID == "" || cmd.Text == "" {
			h.notify(s, &Event{Kind: EventError, Error: coreError(ErrCodeBadRequest, "messageId and text are required")})
			return
		}
		h.engine.EditMessage(ctx, s, cmd.Room, cmd.MessageID, cmd.Text)
	case CommandPinMessage:
		h.engine.PinMessage(ctx, s, cmd.Room, cmd.MessageID)
	case CommandUnpinMessage:
		h.engine.UnpinMessage(ctx, s, cmd.Room, cmd.MessageID)
	case CommandDeleteMessage:
		h.engine.DeleteMessage(ctx, s, cmd.Room, cmd.MessageID)
	case CommandDeleteAllMessages:
		h.engine.DeleteAllMessages(ctx, s, cmd.Room)
	case CommandBanUser:
		h.engine.SetBanned(ctx, s, cmd.TargetUserID, true)
	case CommandUnbanUser:
		h.engine.SetBanned(ctx, s, cmd.TargetUserID, false)
	case CommandSetAdmin:
		h.engine.SetAdmin(ctx, s, cmd.TargetUserID, true)
	case CommandDeleteAdmin:
		h.engine.SetAdmin(ctx, s, cmd.TargetUserID, false)
	default:
		h.notify(s, &Event{Kind: EventError, Error: coreError(ErrCodeBadRequest, "unknown command")})
	}
}

// handleJoin adds the session to a room and, on an identified join,
// attaches the identity and announces the arrival. Joins never answer
// errors: a malformed payload was already dropped at the boundary, and
// failing loudly here would leak which rooms exist.
func (h *Hub) handleJoin(ctx context.Context, s *Session, cmd *Command) {
	if cmd.Room == "" {
		h.log.Warn().Str("session_id", s.ID).Msg("join without chat id ignored")
		return
	}

	if cmd.User != nil && !s.Identified() {
		// First write wins; a later identity payload cannot replace
		// an attached snapshot.
		s.Identity = h.resolveIdentity(ctx, cmd.User)
	} else if s.Identified() {
		// The id stays fixed but the snapshot refreshes, so an identity
		// attached from a session token picks up its record on file.
		s.Identity = h.resolveIdentity(ctx, s.Identity)
	}

	room, ok := h.rooms[cmd.Room]
	if !ok {
		room = NewRoom(cmd.Room)
		h.rooms[cmd.Room] = room
	}
	room.AddSession(s)
	s.Rooms[cmd.Room] = struct{}{}

	if !s.Identified() {
		h.log.Debug().Str("session_id", s.ID).Str("chat_id", cmd.Room).Msg("anonymous join")
		return
	}

	h.log.Info().
		Str("session_id", s.ID).
		Str("chat_id", cmd.Room).
		Int64("user_id", s.Identity.ID).
		Msg("user joined chat")

	room.BroadcastExcept(h.joinNotice(s.Identity, cmd.Room), s)
	h.sendHistory(ctx, s, cmd.Room)
}

// resolveIdentity prefers the directory record over the client payload so
// moderation flags on file always win.
func (h *Hub) resolveIdentity(ctx context.Context, user *store.User) *store.User {
	fresh, err := h.directory.FindByID(ctx, user.ID)
	if err != nil {
		h.log.Warn().Err(err).Int64("user_id", user.ID).Msg("directory lookup failed on join")
		return user
	}
	if fresh == nil {
		return user
	}
	return fresh
}

func (h *Hub) joinNotice(user *store.User, room string) *Event {
	name := user.FirstName
	if user.ChatNickname != "" {
		name = user.ChatNickname
	}
	return &Event{
		Kind: EventUserJoined,
		Room: room,
		Message: &store.Message{
			ID:        utils.NewMessageID(),
			ChatID:    room,
			Text:      name + " joined the chat",
			User:      systemUser,
			Timestamp: time.Now().UTC(),
			Type:      store.MessageTypeSystem,
		},
	}
}

func (h *Hub) sendHistory(ctx context.Context, s *Session, room string) {
	recent, err := h.messages.FindRecent(ctx, room, historyLimit)
	if err != nil {
		h.log.Error().Err(err).Str("chat_id", room).Msg("load history failed")
		return
	}
	h.notify(s, &Event{Kind: EventHistory, Room: room, Messages: recent})
}

// Broadcast delivers an event to every session in the room, sender
// included. A room with no members is a no-op.
func (h *Hub) Broadcast(roomName string, event *Event) {
	if room, ok := h.rooms[roomName]; ok {
		room.Broadcast(event)
	}
}

// BroadcastExcept delivers an event to every session in the room but one.
func (h *Hub) BroadcastExcept(roomName string, event *Event, except *Session) {
	if room, ok := h.rooms[roomName]; ok {
		room.BroadcastExcept(event, except)
	}
}

func (h *Hub) notify(s *Session, event *Event) {
	select {
	case s.Events <- event:
	default:
		// Drop if slow consumer.
	}
}
