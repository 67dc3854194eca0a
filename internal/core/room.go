package core

// Room groups sessions subscribed to the same chat id. Rooms exist only
// as this membership set; there is no persisted room entity.
type Room struct {
	Name     string
	sessions map[*Session]struct{}
}

// NewRoom constructs a room with no sessions.
func NewRoom(name string) *Room {
	return &Room{
		Name:     name,
		sessions: make(map[*Session]struct{}),
	}
}

// AddSession inserts a session into the room. Returns true if newly added.
func (r *Room) AddSession(s *Session) bool {
	if _, exists := r.sessions[s]; exists {
		return false
	}
	r.sessions[s] = struct{}{}
	return true
}

// RemoveSession deletes a session from the room. Returns true if removed.
func (r *Room) RemoveSession(s *Session) bool {
	if _, exists := r.sessions[s]; !exists {
		return false
	}
	delete(r.sessions, s)
	return true
}

// Broadcast sends an event to all sessions in the room.
func (r *Room) Broadcast(event *Event) {
	r.BroadcastExcept(event, nil)
}

// BroadcastExcept sends an event to all sessions in the room except one.
func (r *Room) BroadcastExcept(event *Event, except *Session) {
	for session := range r.sessions {
		if session == except {
			continue
		}
		select {
		case session.Events <- event:
		default:
			// Drop if slow consumer.
		}
	}
}

// Empty returns true if no sessions are in the room.
func (r *Room) Empty() bool {
	return len(r.sessions) == 0
}
