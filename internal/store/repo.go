package store

import (
	"context"
	"errors"

	"github.com/KurtSchwimmbacher/SafelyApp-sub000/internal/domain"
)

var (
	// ErrActiveTimerExists is returned by CreateTimer when the owner already
	// has an active countdown. The existing record is left untouched.
	ErrActiveTimerExists = errors.New("an active timer already exists for this user")
	// ErrNoActiveTimer is returned when the owner has no active countdown.
	ErrNoActiveTimer = errors.New("no active timer")
	// ErrNotActiveTimer is returned by AppendCheckIn when the target record
	// is not the owner's currently active one.
	ErrNotActiveTimer = errors.New("timer is not the owner's active timer")
	// ErrTimerNotFound is returned by lookups and mutations of absent records.
	ErrTimerNotFound = errors.New("timer not found")

	ErrEmailTaken      = errors.New("email already registered")
	ErrUserNotFound    = errors.New("user not found")
	ErrSessionNotFound = errors.New("session not found")
)

// Repo defines storage operations for users, sessions and timer records.
type Repo interface {
	// Users and sessions.
	CreateUser(ctx context.Context, u *domain.UserProfile, passwordHash string) error
	GetUser(ctx context.Context, id string) (*domain.UserProfile, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.UserProfile, string, error)
	UpdateProfile(ctx context.Context, id, displayName, contact string) error
	CreateSession(ctx context.Context, s *domain.Session) error
	GetSession(ctx context.Context, token string) (*domain.Session, error)
	DeleteSession(ctx context.Context, token string) error

	// Timer records. At most one active record per owner; CreateTimer fails
	// with ErrActiveTimerExists otherwise.
	CreateTimer(ctx context.Context, t *domain.TimerRecord) error
	GetActiveTimer(ctx context.Context, ownerID string) (*domain.TimerRecord, error)
	GetTimer(ctx context.Context, ownerID, id string) (*domain.TimerRecord, error)
	ListTimers(ctx context.Context, ownerID string, limit int) ([]domain.TimerRecord, error)
	ListActive(ctx context.Context) ([]domain.TimerRecord, error)
	MarkInactive(ctx context.Context, id string) error
	AppendCheckIn(ctx context.Context, ownerID, id string, e domain.CheckInEntry) error
	UpdateTimer(ctx context.Context, ownerID, id string, upd domain.TimerUpdate) error
	DeleteTimer(ctx context.Context, ownerID, id string) error
	UsageStats(ctx context.Context, ownerID string) (*domain.UsageStats, error)

	Close() error
}
