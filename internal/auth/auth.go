package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

var (
	ErrUsernameTaken      = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid token")
	ErrUserNotFound       = errors.New("user not found")
	ErrMissingField       = errors.New("username and password are required")
)

// User is an account that owns uploaded invoices
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// UserStore persists users. Lookups of unknown users return ErrUserNotFound.
type UserStore interface {
	CreateUser(ctx context.Context, user *User) (int64, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	GetUserByID(ctx context.Context, id int64) (*User, error)
}

// Service handles registration, login and token verification
type Service struct {
	users  UserStore
	tokens *TokenIssuer
	now    func() time.Time
}

// NewService creates a new Service
func NewService(users UserStore, tokens *TokenIssuer) *Service {
	return &Service{
		users:  users,
		tokens: tokens,
		now:    time.Now,
	}
}

// Register creates a new user and returns its ID
func (s *Service) Register(ctx context.Context, username, password, email string) (int64, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return 0, ErrMissingField
	}

	_, err := s.users.GetUserByUsername(ctx, username)
	switch {
	case err == nil:
		return 0, ErrUsernameTaken
	case !errors.Is(err, ErrUserNotFound):
		return 0, fmt.Errorf("looking up user: %w", err)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return 0, err
	}

	id, err := s.users.CreateUser(ctx, &User{
		Username:     username,
		Email:        strings.TrimSpace(email),
		PasswordHash: hash,
		CreatedAt:    s.now(),
	})
	if err != nil {
		return 0, fmt.Errorf("creating user: %w", err)
	}

	slog.Info("User registered", "user_id", id, "username", username)
	return id, nil
}

// Login verifies the credentials and returns a signed access token
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	user, err := s.users.GetUserByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, ErrUserNotFound) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", fmt.Errorf("looking up user: %w", err)
	}

	if !CheckPassword(user.PasswordHash, password) {
		return "", ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.ID, user.Username)
	if err != nil {
		return "", fmt.Errorf("issuing token: %w", err)
	}
	return token, nil
}

// Authenticate resolves a bearer token to a user that still exists
func (s *Service) Authenticate(ctx context.Context, token string) (*User, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByID(ctx, claims.UserID)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("looking up user: %w", err)
	}
	return user, nil
}
