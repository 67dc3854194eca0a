package core

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/tgchat-app/chat-server/internal/store"
)

// restrictedCommands require a non-banned identified session.
var restrictedCommands = map[CommandKind]struct{}{
	CommandSendMessage:  {},
	CommandEditMessage:  {},
	CommandPinMessage:   {},
	CommandUnpinMessage: {},
}

// adminCommands require is_admin or the super-admin id.
var adminCommands = map[CommandKind]struct{}{
	CommandBanUser:           {},
	CommandUnbanUser:         {},
	CommandDeleteMessage:     {},
	CommandDeleteAllMessages: {},
	CommandPinMessage:        {},
	CommandUnpinMessage:      {},
}

// superAdminCommands require the super-admin id itself.
var superAdminCommands = map[CommandKind]struct{}{
	CommandSetAdmin:    {},
	CommandDeleteAdmin: {},
}

// Gate decides, per command and per session, whether the action is
// permitted. It reads session state but never mutates it.
type Gate struct {
	directory    store.UserDirectory
	superAdminID int64
	log          *zerolog.Logger
}

// NewGate constructs a gate bound to the user directory and the
// configured super-admin identity.
func NewGate(directory store.UserDirectory, superAdminID int64, logger *zerolog.Logger) *Gate {
	return &Gate{
		directory:    directory,
		superAdminID: superAdminID,
		log:          logger,
	}
}

// Authorize runs the ban, admin and super-admin checks in that order.
// A banned admin must still be blocked from restricted actions, so the
// ban check always comes first. Commands outside all three sets are
// permitted unconditionally. A nil result means permitted.
func (g *Gate) Authorize(ctx context.Context, session *Session, kind CommandKind) *CoreError {
	// Both the ban and admin checks read live flags; fetch at most once.
	var fresh *store.User
	current := func() *store.User {
		if fresh == nil {
			fresh = g.currentUser(ctx, session)
		}
		return fresh
	}

	if _, restricted := restrictedCommands[kind]; restricted {
		if !session.Identified() {
			g.warn(session, kind, "authentication required")
			return coreError(ErrCodeAuthRequired, "authentication required")
		}
		if current().IsBanned {
			g.warn(session, kind, "user is banned")
			return coreError(ErrCodeBanned, "user is banned")
		}
	}

	if _, admin := adminCommands[kind]; admin {
		if !session.Identified() {
			g.warn(session, kind, "admin required")
			return coreError(ErrCodeForbidden, "Forbidden: admin only")
		}
		if identity := current(); !(identity.IsAdmin || identity.ID == g.superAdminID) {
			g.warn(session, kind, "admin required")
			return coreError(ErrCodeForbidden, "Forbidden: admin only")
		}
	}

	if _, super := superAdminCommands[kind]; super {
		identity := session.Identity
		if identity == nil || identity.ID != g.superAdminID {
			g.warn(session, kind, "super admin required")
			return coreError(ErrCodeForbidden, "Forbidden: super admin only")
		}
	}

	return nil
}

// currentUser re-reads the moderation flags from the directory so a ban
// or an admin revocation issued mid-session takes effect on the next
// gated command. When the directory is unreachable or the user is
// unknown, the join-time snapshot decides.
func (g *Gate) currentUser(ctx context.Context, session *Session) *store.User {
	fresh, err := g.directory.FindByID(ctx, session.Identity.ID)
	if err != nil {
		g.log.Warn().
			Err(err).
			Str("session_id", session.ID).
			Int64("user_id", session.Identity.ID).
			Msg("directory lookup failed, using session snapshot")
		return session.Identity
	}
	if fresh == nil {
		return session.Identity
	}
	return fresh
}

func (g *Gate) warn(session *Session, kind CommandKind, reason string) {
	ev := g.log.Warn().
		Str("session_id", session.ID).
		Str("event", kind.String()).
		Str("reason", reason)
	if session.Identity != nil {
		ev = ev.Int64("user_id", session.Identity.ID)
	}
	ev.Msg("unauthorized event attempt")
}
