// Package engine drives active safety timers: a pure per-record state
// machine plus a ticker loop that applies its side effects.
package engine

import (
	"errors"
	"time"

	"github.com/KurtSchwimmbacher/SafelyApp-sub000/internal/domain"
)

// State of one countdown.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateCheckInDue // sub-state of Running: a prompt awaits acknowledgment
	StateExpired    // countdown reached zero; terminal
	StateStopped    // user-initiated termination; terminal
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCheckInDue:
		return "check_in_due"
	case StateExpired:
		return "expired"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

const (
	// DueWindow is the look-ahead within which an upcoming offset makes a
	// check-in due: a prompt appears up to 5s before its scheduled moment.
	DueWindow = 5 * time.Second

	// MissedCheckInTimeout is how long an unacknowledged check-in stays
	// open before it is recorded as missed and the contact is alerted.
	// Canonical value for the whole system; 30s over the laxer 120s since
	// a safety alert loses its point two minutes late.
	MissedCheckInTimeout = 30 * time.Second
)

var (
	ErrNotCheckInDue = errors.New("no check-in is currently due")
	ErrTimerFinished = errors.New("timer already finished")
)

// Machine is the countdown/check-in state machine for a single record.
// Every tick derives remaining time and due-state freshly from the stored
// start timestamp, so suspended or skipped ticks cannot accumulate drift.
// Not safe for concurrent use; the Runner serializes access.
type Machine struct {
	rec    *domain.TimerRecord
	state  State
	cursor int       // index of the next unresolved scheduled offset
	dueAt  time.Time // when the current check-in became due
}

// NewMachine wraps an active record. The offset cursor starts past the
// already-resolved log entries so a resumed timer never re-prompts a
// check-in it has dealt with, and can never log more entries than
// CheckInCount.
func NewMachine(rec *domain.TimerRecord) *Machine {
	cursor := len(rec.CheckInLog)
	if cursor > len(rec.CheckInOffsetsMs) {
		cursor = len(rec.CheckInOffsetsMs)
	}
	return &Machine{rec: rec, state: StateRunning, cursor: cursor}
}

// Record exposes the wrapped record.
func (m *Machine) Record() *domain.TimerRecord { return m.rec }

// State returns the current state.
func (m *Machine) State() State { return m.state }

// DueSince returns when the open check-in became due; zero when none is.
func (m *Machine) DueSince() time.Time { return m.dueAt }

// TickResult is what one tick derived. It carries the side effects the
// caller must apply: Expired fires exactly once per machine, Missed is
// non-nil only on the tick that recorded the miss.
type TickResult struct {
	State            State
	RemainingSeconds int
	Display          string // "MM:SS"
	NextOffsetMs     int64  // upcoming check-in offset, for display
	HasNext          bool
	Expired          bool
	Missed           *domain.CheckInEntry
}

// Tick advances the machine to the given instant. Pure with respect to the
// outside world: it mutates only the machine and reports what happened, so
// it can be driven by a ticker, a test harness, or anything else.
func (m *Machine) Tick(now time.Time) TickResult {
	if m.state != StateRunning && m.state != StateCheckInDue {
		return TickResult{State: m.state}
	}

	elapsed := domain.ElapsedMs(now, m.rec.StartedAt)
	remaining := domain.RemainingSeconds(now, m.rec.StartedAt, m.rec.DurationMinutes)

	if remaining == 0 {
		m.state = StateExpired
		m.dueAt = time.Time{}
		return TickResult{State: StateExpired, Display: domain.FormatClock(0), Expired: true}
	}

	res := TickResult{
		State:            StateRunning,
		RemainingSeconds: remaining,
		Display:          domain.FormatClock(remaining),
	}

	if m.state == StateCheckInDue {
		if now.Sub(m.dueAt) > MissedCheckInTimeout {
			entry := domain.CheckInEntry{Time: now.UTC(), Status: domain.CheckInMissed}
			m.resolve(entry)
			res.Missed = &entry
		} else {
			res.State = StateCheckInDue
		}
	} else {
		// Offsets whose moment passed while no tick was looking (process
		// restart, device asleep) are skipped, not retroactively missed.
		offsets := m.rec.CheckInOffsetsMs
		for m.cursor < len(offsets) && offsets[m.cursor] <= elapsed {
			m.cursor++
		}
		if m.cursor < len(offsets) {
			o := offsets[m.cursor]
			if elapsed < o && o <= elapsed+DueWindow.Milliseconds() {
				m.state = StateCheckInDue
				m.dueAt = now
				res.State = StateCheckInDue
			}
		}
	}

	res.NextOffsetMs, res.HasNext = domain.NextOffset(m.rec.CheckInOffsetsMs, elapsed)
	return res
}

// Acknowledge resolves the open check-in as completed. Only valid while a
// check-in is due.
func (m *Machine) Acknowledge(now time.Time) (domain.CheckInEntry, error) {
	if m.state != StateCheckInDue {
		return domain.CheckInEntry{}, ErrNotCheckInDue
	}
	entry := domain.CheckInEntry{Time: now.UTC(), Status: domain.CheckInCompleted}
	m.resolve(entry)
	return entry, nil
}

// Stop terminates the countdown from any non-terminal state.
func (m *Machine) Stop() error {
	if m.state == StateExpired || m.state == StateStopped {
		return ErrTimerFinished
	}
	m.state = StateStopped
	m.dueAt = time.Time{}
	return nil
}

func (m *Machine) resolve(entry domain.CheckInEntry) {
	m.rec.CheckInLog = append(m.rec.CheckInLog, entry)
	m.cursor++
	m.state = StateRunning
	m.dueAt = time.Time{}
}
