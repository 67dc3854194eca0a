package http

import (
	"context"
	"errors"
	"io"
	stdhttp "net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/tgchat-app/chat-server/internal/auth"
	"github.com/tgchat-app/chat-server/internal/core"
	"github.com/tgchat-app/chat-server/internal/proto"
	"github.com/tgchat-app/chat-server/internal/store"
	"github.com/tgchat-app/chat-server/internal/utils"
)

// WSHandler upgrades HTTP connections and bridges them to core.Session.
type WSHandler struct {
	hub  *core.Hub
	auth *auth.Service
	log  *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *core.Hub, authService *auth.Service, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{hub: hub, auth: authService, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()

	// A session token on the upgrade attaches the identity up front, so
	// the client may then join with a bare room id. Anonymous upgrades
	// stay allowed; a token that fails validation does not.
	identity, ok := h.identityFromToken(w, r)
	if !ok {
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	session := core.NewSession(utils.NewSessionID())
	session.Identity = identity
	h.hub.RegisterSession(session)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, session)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, session)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	// Both loops are done; nothing writes to Commands anymore, so the
	// hub may tear the session down.
	h.hub.UnregisterSession(session)

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != 0 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

// identityFromToken validates the optional token query parameter and
// returns the identity snapshot it attests to. A missing token is fine
// (nil identity); an invalid one answers 401 before the upgrade.
func (h *WSHandler) identityFromToken(w stdhttp.ResponseWriter, r *stdhttp.Request) (*store.User, bool) {
	token := r.URL.Query().Get("token")
	if token == "" {
		return nil, true
	}

	claims, err := h.auth.ValidateToken(token)
	if err != nil {
		h.log.Warn().Err(err).Msg("ws upgrade with invalid token")
		stdhttp.Error(w, "invalid token", stdhttp.StatusUnauthorized)
		return nil, false
	}

	return &store.User{ID: claims.UserID, FirstName: claims.FirstName}, true
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, session *core.Session) error {
	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			return err
		}

		cmd, protoErr := inboundToCommand(inbound)
		if protoErr != nil {
			if writeErr := wsjson.Write(ctx, conn, proto.Outbound{
				Type:  proto.OutboundTypeError,
				Error: protoErr,
			}); writeErr != nil {
				return writeErr
			}
			continue
		}
		if cmd == nil {
			// Malformed join payloads are logged and dropped silently.
			h.log.Warn().Str("session_id", session.ID).Str("type", inbound.Type).Msg("dropped malformed payload")
			continue
		}
		session.Commands <- cmd
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, session *core.Session) error {
	for {
		select {
		case event, ok := <-session.Events:
			if !ok {
				return nil
			}
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				h.log.Error().Err(err).Str("session_id", session.ID).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
