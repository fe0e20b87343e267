package auth

import (
	"errors"
	"log"

	"github.com/nexuschat/server/internal/store"
)

// Registration bounds, matching the HTTP API contract.
const (
	MinUsernameLen = 3
	MaxUsernameLen = 49
	MinPasswordLen = 6
	MaxPasswordLen = 63
)

var (
	// ErrInvalidUsername signals a username outside the length bounds.
	ErrInvalidUsername = errors.New("auth: username length invalid")

	// ErrInvalidPassword signals a password outside the length bounds.
	ErrInvalidPassword = errors.New("auth: password length invalid")

	// ErrBadCredentials signals an unknown user or a wrong password. The two
	// cases are deliberately indistinguishable to callers.
	ErrBadCredentials = errors.New("auth: invalid credentials")
)

// Service performs registration and login against the user table.
type Service struct {
	store  *store.Store
	tokens *TokenManager
}

// NewService creates an auth service over the given store and token manager.
func NewService(st *store.Store, tokens *TokenManager) *Service {
	return &Service{store: st, tokens: tokens}
}

// Tokens exposes the token manager for validation by the HTTP layer.
func (s *Service) Tokens() *TokenManager {
	return s.tokens
}

// Register validates the credentials, hashes the password, and creates the
// user. It returns the new user's identifier.
func (s *Service) Register(username, password string, role store.Role) (int, error) {
	if len(username) < MinUsernameLen || len(username) > MaxUsernameLen {
		return 0, ErrInvalidUsername
	}
	if len(password) < MinPasswordLen || len(password) > MaxPasswordLen {
		return 0, ErrInvalidPassword
	}

	hash, err := HashPassword(password)
	if err != nil {
		return 0, err
	}

	id, err := s.store.CreateUser(username, hash, role)
	if err != nil {
		return 0, err
	}

	log.Printf("User registered: %s (ID: %d, Role: %s)", username, id, role)
	return id, nil
}

// Login verifies the credentials, marks the user online, and issues a token.
func (s *Service) Login(username, password string) (store.User, string, error) {
	user, ok := s.store.UserByName(username)
	if !ok {
		log.Printf("Login failed: user %s not found", username)
		return store.User{}, "", ErrBadCredentials
	}
	if !VerifyPassword(password, user.PasswordHash) {
		log.Printf("Login failed: invalid password for user %s", username)
		return store.User{}, "", ErrBadCredentials
	}

	if err := s.store.SetOnline(user.ID, true); err != nil {
		return store.User{}, "", err
	}
	user.Online = true

	token, err := s.tokens.Generate(user.ID, user.Role)
	if err != nil {
		return store.User{}, "", err
	}

	log.Printf("User logged in: %s (ID: %d)", username, user.ID)
	return user, token, nil
}

// Logout clears a user's online flag.
func (s *Service) Logout(userID int) error {
	return s.store.SetOnline(userID, false)
}
