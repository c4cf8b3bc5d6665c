package domain

import (
	"errors"
	"time"
)

// CheckInStatus is the resolution of a scheduled check-in.
type CheckInStatus string

const (
	CheckInCompleted CheckInStatus = "completed"
	CheckInMissed    CheckInStatus = "missed"
)

// CheckInEntry is one resolved check-in in a timer's append-only log.
type CheckInEntry struct {
	Time   time.Time     `json:"time"`
	Status CheckInStatus `json:"status"`
}

// TimerRecord is a single safety countdown owned by one user.
// StartedAt is set once at creation and never changes; all countdown state
// is re-derived from it rather than accumulated.
type TimerRecord struct {
	ID               string         `json:"id"`
	OwnerID          string         `json:"owner_id"`
	DurationMinutes  int            `json:"duration_minutes"`
	StartedAt        time.Time      `json:"started_at"`
	Name             string         `json:"name,omitempty"`
	CheckInCount     int            `json:"check_in_count"`
	CheckInOffsetsMs []int64        `json:"check_in_offsets_ms"`
	CheckInLog       []CheckInEntry `json:"check_in_log"`
	IsActive         bool           `json:"is_active"`
	Contact          string         `json:"contact,omitempty"`
}

// TimerUpdate enumerates the mutable fields of a timer. A nil field is left
// untouched. Changing DurationMinutes or CheckInCount forces the check-in
// offsets to be regenerated by the store.
type TimerUpdate struct {
	DurationMinutes *int
	Name            *string
	CheckInCount    *int
	Contact         *string
}

// Empty reports whether the update changes nothing.
func (u TimerUpdate) Empty() bool {
	return u.DurationMinutes == nil && u.Name == nil && u.CheckInCount == nil && u.Contact == nil
}

var (
	ErrInvalidDuration     = errors.New("duration must be a positive number of minutes")
	ErrInvalidCheckInCount = errors.New("check-in count must not be negative")
)

// ValidateTimer checks the user-supplied timer parameters. It is called
// before any record is created or mutated.
func ValidateTimer(durationMinutes, checkInCount int) error {
	if durationMinutes <= 0 {
		return ErrInvalidDuration
	}
	if checkInCount < 0 {
		return ErrInvalidCheckInCount
	}
	return nil
}
