package http

import (
	"errors"
	stdhttp "net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/tgchat-app/chat-server/internal/auth"
	"github.com/tgchat-app/chat-server/internal/proto"
	"github.com/tgchat-app/chat-server/internal/store"
)

// ErrorResponse is the REST error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ChatHandlers serves historical message listing.
type ChatHandlers struct {
	messages store.MessageStore
	log      *zerolog.Logger
}

// NewChatHandlers builds handlers over the message store.
func NewChatHandlers(messages store.MessageStore, logger *zerolog.Logger) *ChatHandlers {
	return &ChatHandlers{messages: messages, log: logger}
}

// GetMessages returns recent messages oldest-to-newest.
// GET /api/chat/messages?chatId=&limit=
func (h *ChatHandlers) GetMessages(c *gin.Context) {
	chatID := c.Query("chatId")

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(stdhttp.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
			return
		}
		limit = parsed
	}

	messages, err := h.messages.FindRecent(c.Request.Context(), chatID, limit)
	if err != nil {
		h.log.Error().Err(err).Str("chat_id", chatID).Msg("fetch messages failed")
		c.JSON(stdhttp.StatusInternalServerError, ErrorResponse{Error: "Internal server error"})
		return
	}

	out := make([]proto.Message, 0, len(messages))
	for _, msg := range messages {
		if m := messageToProto(msg); m != nil {
			out = append(out, *m)
		}
	}
	c.JSON(stdhttp.StatusOK, out)
}

// UserHandlers serves the user directory listing.
type UserHandlers struct {
	directory store.UserDirectory
	log       *zerolog.Logger
}

// NewUserHandlers builds handlers over the user directory.
func NewUserHandlers(directory store.UserDirectory, logger *zerolog.Logger) *UserHandlers {
	return &UserHandlers{directory: directory, log: logger}
}

// GetUsers returns every user on file.
// GET /api/users
func (h *UserHandlers) GetUsers(c *gin.Context) {
	users, err := h.directory.List(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("fetch users failed")
		c.JSON(stdhttp.StatusInternalServerError, ErrorResponse{Error: "Get users failed"})
		return
	}

	out := make([]proto.User, 0, len(users))
	for _, u := range users {
		out = append(out, userToProto(*u))
	}
	c.JSON(stdhttp.StatusOK, out)
}

// AuthHandlers serves identity registration and login.
type AuthHandlers struct {
	auth *auth.Service
	log  *zerolog.Logger
}

// NewAuthHandlers builds the auth endpoints.
func NewAuthHandlers(service *auth.Service, logger *zerolog.Logger) *AuthHandlers {
	return &AuthHandlers{auth: service, log: logger}
}

type authRequest struct {
	User proto.User `json:"user"`
}

type authResponse struct {
	User  proto.User `json:"user"`
	Token string     `json:"token"`
}

// Register upserts the Telegram identity and returns the stored record
// with a session token.
// POST /api/auth/register
func (h *AuthHandlers) Register(c *gin.Context) {
	var req authRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(stdhttp.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	user, token, err := h.auth.Register(c.Request.Context(), *userFromProto(&req.User))
	if err != nil {
		if errors.Is(err, auth.ErrInvalidUser) {
			c.JSON(stdhttp.StatusBadRequest, ErrorResponse{Error: "invalid user"})
			return
		}
		h.log.Error().Err(err).Msg("registration failed")
		c.JSON(stdhttp.StatusInternalServerError, ErrorResponse{Error: "Registration failed"})
		return
	}

	c.JSON(stdhttp.StatusCreated, authResponse{User: userToProto(*user), Token: token})
}

// Login looks up a registered identity and returns it with a token.
// POST /api/auth/login
func (h *AuthHandlers) Login(c *gin.Context) {
	var req authRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(stdhttp.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	user, token, err := h.auth.Login(c.Request.Context(), req.User.ID)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			c.JSON(stdhttp.StatusNotFound, ErrorResponse{Error: "User not found"})
			return
		}
		h.log.Error().Err(err).Msg("login failed")
		c.JSON(stdhttp.StatusInternalServerError, ErrorResponse{Error: "Login failed"})
		return
	}

	c.JSON(stdhttp.StatusOK, authResponse{User: userToProto(*user), Token: token})
}
