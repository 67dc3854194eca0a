package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tgchat-app/chat-server/internal/store"
)

var (
	// ErrUserNotFound is returned on login for an unregistered identity.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidUser is returned when the registration payload is unusable.
	ErrInvalidUser = errors.New("invalid user")
)

// Service registers Telegram identities in the user directory and issues
// session tokens.
type Service struct {
	directory store.UserDirectory
	jwtConfig *JWTConfig
}

// NewService creates a new authentication service.
func NewService(directory store.UserDirectory, jwtConfig *JWTConfig) *Service {
	return &Service{
		directory: directory,
		jwtConfig: jwtConfig,
	}
}

// Register upserts the user and returns the stored record with a token.
// An already registered user gets their record on file back, so flags
// set by moderators survive re-registration.
func (s *Service) Register(ctx context.Context, user store.User) (*store.User, string, error) {
	user.FirstName = strings.TrimSpace(user.FirstName)
	if user.ID == 0 || user.FirstName == "" {
		return nil, "", ErrInvalidUser
	}

	// New registrations never carry elevated or banned flags; only the
	// moderation events set those.
	user.IsAdmin = false
	user.IsBanned = false

	stored, err := s.directory.Upsert(ctx, user)
	if err != nil {
		return nil, "", fmt.Errorf("register user: %w", err)
	}

	token, err := GenerateToken(s.jwtConfig, stored.ID, stored.FirstName)
	if err != nil {
		return nil, "", fmt.Errorf("generate token: %w", err)
	}

	return stored, token, nil
}

// Login fetches the registered record for the identity and issues a token.
func (s *Service) Login(ctx context.Context, id int64) (*store.User, string, error) {
	user, err := s.directory.FindByID(ctx, id)
	if err != nil {
		return nil, "", fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		return nil, "", ErrUserNotFound
	}

	token, err := GenerateToken(s.jwtConfig, user.ID, user.FirstName)
	if err != nil {
		return nil, "", fmt.Errorf("generate token: %w", err)
	}

	return user, token, nil
}

// ValidateToken checks a session token and returns its claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	return ValidateToken(s.jwtConfig, tokenString)
}
