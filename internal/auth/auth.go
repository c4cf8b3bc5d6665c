// Package auth implements account registration, login and bearer-token
// sessions. Protocol-level identity (OAuth, federation) is out of scope;
// this is the narrowest thing that lets the API identify a timer's owner.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/KurtSchwimmbacher/SafelyApp-sub000/internal/domain"
	"github.com/KurtSchwimmbacher/SafelyApp-sub000/internal/store"
)

const minPasswordLen = 8

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrPasswordTooShort   = fmt.Errorf("password must be at least %d characters", minPasswordLen)
	ErrInvalidSession     = errors.New("invalid or expired session")
)

// Service handles accounts and sessions on top of the store.
type Service struct {
	repo store.Repo
	log  *zap.Logger
	ttl  time.Duration
	now  func() time.Time
}

func NewService(repo store.Repo, log *zap.Logger, sessionTTL time.Duration) *Service {
	if sessionTTL <= 0 {
		sessionTTL = 30 * 24 * time.Hour
	}
	return &Service{repo: repo, log: log, ttl: sessionTTL, now: time.Now}
}

// Register creates an account. The emergency contact is stored as given;
// normalization happens at the API boundary where the default country code
// is known.
func (s *Service) Register(ctx context.Context, email, password, displayName, contact string) (*domain.UserProfile, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, ErrInvalidEmail
	}
	if len(password) < minPasswordLen {
		return nil, ErrPasswordTooShort
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &domain.UserProfile{
		ID:          uuid.NewString(),
		Email:       email,
		DisplayName: strings.TrimSpace(displayName),
		Contact:     contact,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.repo.CreateUser(ctx, u, string(hash)); err != nil {
		return nil, err
	}
	s.log.Info("user registered", zap.String("user", u.ID))
	return u, nil
}

// Login verifies credentials and mints a session token.
func (s *Service) Login(ctx context.Context, email, password string) (*domain.Session, *domain.UserProfile, error) {
	u, hash, err := s.repo.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return nil, nil, ErrInvalidCredentials
	}

	token, err := newToken()
	if err != nil {
		return nil, nil, err
	}
	now := s.now().UTC()
	sess := &domain.Session{
		Token:     token,
		UserID:    u.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.repo.CreateSession(ctx, sess); err != nil {
		return nil, nil, err
	}
	s.log.Info("user logged in", zap.String("user", u.ID))
	return sess, u, nil
}

// Authenticate resolves a bearer token to its user. Expired sessions are
// deleted on sight.
func (s *Service) Authenticate(ctx context.Context, token string) (*domain.UserProfile, error) {
	if token == "" {
		return nil, ErrInvalidSession
	}
	sess, err := s.repo.GetSession(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			return nil, ErrInvalidSession
		}
		return nil, err
	}
	if sess.Expired(s.now().UTC()) {
		_ = s.repo.DeleteSession(ctx, token)
		return nil, ErrInvalidSession
	}
	u, err := s.repo.GetUser(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, ErrInvalidSession
		}
		return nil, err
	}
	return u, nil
}

// Logout discards the session. Unknown tokens are a no-op.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.repo.DeleteSession(ctx, token)
}

func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
