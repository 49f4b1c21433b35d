package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"go-iot-backend/internal/model"
	"go-iot-backend/pkg/apierror"
)

type UserStore interface {
	FindByUsername(ctx context.Context, username string) (model.User, error)
	Create(ctx context.Context, u model.User) error
}

type LoginRecorder interface {
	RecordLogin(ctx context.Context, userID string, ip string)
}

type AuthService struct {
	users     UserStore
	hasher    PasswordHasher
	audit     LoginRecorder
	jwtSecret []byte
	now       func() time.Time
	dummyHash string
}

type AuthOption func(*AuthService)

// WithClock replaces time.Now for token issue and validation.
func WithClock(now func() time.Time) AuthOption {
	return func(s *AuthService) { s.now = now }
}

func NewAuthService(jwtSecret string, users UserStore, hasher PasswordHasher, audit LoginRecorder, opts ...AuthOption) (*AuthService, error) {
	if strings.TrimSpace(jwtSecret) == "" {
		return nil, errors.New("jwt secret is required")
	}

	s := &AuthService{
		users:     users,
		hasher:    hasher,
		audit:     audit,
		jwtSecret: []byte(jwtSecret),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	// Unknown usernames are verified against this digest so both failure
	// paths cost one bcrypt comparison.
	dummy, err := hasher.Hash(uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}
	s.dummyHash = dummy

	return s, nil
}

func (s *AuthService) Login(ctx context.Context, username string, password string, ip string) (model.LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return model.LoginResult{}, apierror.Validation("username and password are required", "")
	}

	user, err := s.users.FindByUsername(ctx, username)
	if errors.Is(err, model.ErrUserNotFound) {
		s.hasher.Verify(password, s.dummyHash)
		slog.Debug("login rejected", "username", username, "reason", "unknown user")
		return model.LoginResult{}, apierror.InvalidCredentials()
	}
	if err != nil {
		return model.LoginResult{}, fmt.Errorf("find user: %w", err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		slog.Debug("login rejected", "username", username, "reason", "password mismatch")
		return model.LoginResult{}, apierror.InvalidCredentials()
	}

	token, expiresAt, err := s.issueToken(user)
	if err != nil {
		return model.LoginResult{}, fmt.Errorf("sign token: %w", err)
	}

	if s.audit != nil {
		s.audit.RecordLogin(ctx, user.ID, ip)
	}

	slog.Info("user logged in", "user_id", user.ID, "role", user.Role)

	return model.LoginResult{
		Token:     token,
		Role:      user.Role,
		ExpiresAt: expiresAt,
		User:      user.Sanitized(),
	}, nil
}

func (s *AuthService) Register(ctx context.Context, username string, password string, role string) (model.AuthUser, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" || strings.TrimSpace(role) == "" {
		return model.AuthUser{}, apierror.Validation("username, password and role are required", "")
	}

	parsedRole, ok := model.ParseRole(role)
	if !ok {
		return model.AuthUser{}, apierror.Validation("invalid role", role)
	}

	hash, err := s.hasher.Hash(password)
	if isPasswordTooLong(err) {
		return model.AuthUser{}, apierror.Validation("password is too long", "maximum is 72 bytes")
	}
	if err != nil {
		return model.AuthUser{}, fmt.Errorf("hash password: %w", err)
	}

	user := model.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		Role:         parsedRole,
		CreatedAt:    s.now().UTC(),
	}

	err = s.users.Create(ctx, user)
	if errors.Is(err, model.ErrDuplicateUsername) {
		return model.AuthUser{}, apierror.DuplicateUsername(username)
	}
	if errors.Is(err, model.ErrInvalidInput) {
		return model.AuthUser{}, apierror.Validation("invalid user", err.Error())
	}
	if err != nil {
		return model.AuthUser{}, fmt.Errorf("create user: %w", err)
	}

	slog.Info("user registered", "user_id", user.ID, "username", user.Username, "role", user.Role)

	return user.Sanitized(), nil
}
