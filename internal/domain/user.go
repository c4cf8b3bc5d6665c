package domain

import "time"

// UserProfile is an account as seen by the rest of the application.
// The password hash never leaves the store layer.
type UserProfile struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	Contact     string    `json:"contact,omitempty"` // emergency contact, normalized phone
	CreatedAt   time.Time `json:"created_at"`
}

// Session is an opaque bearer token tied to a user.
type Session struct {
	Token     string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the session is past its expiry at the given time.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// UsageStats feeds the dashboard: lifetime counts for one user.
type UsageStats struct {
	TimersStarted     int `json:"timers_started"`
	TimersActive      int `json:"timers_active"`
	MinutesScheduled  int `json:"minutes_scheduled"`
	CheckInsCompleted int `json:"check_ins_completed"`
	CheckInsMissed    int `json:"check_ins_missed"`
}
