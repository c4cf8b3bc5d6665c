package engine

import (
	"testing"
	"time"

	"github.com/KurtSchwimmbacher/SafelyApp-sub000/internal/domain"
)

func activeRecord(durationMin, checkIns int, start time.Time) *domain.TimerRecord {
	return &domain.TimerRecord{
		ID:               "t1",
		OwnerID:          "u1",
		DurationMinutes:  durationMin,
		StartedAt:        start,
		Name:             "Evening walk",
		CheckInCount:     checkIns,
		CheckInOffsetsMs: domain.CheckInOffsets(durationMin, checkIns),
		CheckInLog:       []domain.CheckInEntry{},
		IsActive:         true,
		Contact:          "+27821234567",
	}
}

var start = time.Date(2026, time.March, 1, 18, 0, 0, 0, time.UTC)

func TestTick_CountsDown(t *testing.T) {
	m := NewMachine(activeRecord(60, 0, start))

	res := m.Tick(start.Add(10 * time.Second))
	if res.State != StateRunning {
		t.Fatalf("want running, got %v", res.State)
	}
	if res.RemainingSeconds != 3590 {
		t.Fatalf("remaining: want 3590, got %d", res.RemainingSeconds)
	}
	if res.Display != "59:50" {
		t.Fatalf("display: want 59:50, got %q", res.Display)
	}
	if res.HasNext {
		t.Fatal("no check-ins scheduled, HasNext must be false")
	}
}

func TestTick_ExpiresExactlyOnce(t *testing.T) {
	m := NewMachine(activeRecord(1, 0, start))

	res := m.Tick(start.Add(61 * time.Second))
	if !res.Expired || res.State != StateExpired {
		t.Fatalf("want expiry, got %+v", res)
	}
	if res.RemainingSeconds != 0 {
		t.Fatalf("remaining at expiry: want 0, got %d", res.RemainingSeconds)
	}

	// Further ticks are no-ops: the Expired effect never fires twice.
	for i := 0; i < 3; i++ {
		res = m.Tick(start.Add(time.Duration(62+i) * time.Second))
		if res.Expired {
			t.Fatal("expiry effect fired twice")
		}
		if res.State != StateExpired {
			t.Fatalf("want terminal expired state, got %v", res.State)
		}
	}
}

func TestTick_CheckInBecomesDueInsideWindow(t *testing.T) {
	// 60 min, 2 check-ins: offsets at 15:00 and 30:00.
	m := NewMachine(activeRecord(60, 2, start))

	// 10s before the offset: outside the 5s look-ahead.
	res := m.Tick(start.Add(15*time.Minute - 10*time.Second))
	if res.State != StateRunning {
		t.Fatalf("too early: want running, got %v", res.State)
	}
	if !res.HasNext || res.NextOffsetMs != 900000 {
		t.Fatalf("next offset: want 900000, got %d (has=%v)", res.NextOffsetMs, res.HasNext)
	}

	// 3s before the offset: inside the window.
	due := start.Add(15*time.Minute - 3*time.Second)
	res = m.Tick(due)
	if res.State != StateCheckInDue {
		t.Fatalf("want check-in due, got %v", res.State)
	}
	if !m.DueSince().Equal(due) {
		t.Fatalf("due since: want %v, got %v", due, m.DueSince())
	}
}

func TestTick_MissedCheckInRecordedOnce(t *testing.T) {
	m := NewMachine(activeRecord(60, 2, start))

	due := start.Add(15*time.Minute - 2*time.Second)
	if res := m.Tick(due); res.State != StateCheckInDue {
		t.Fatalf("want due, got %v", res.State)
	}

	// Within the 30s timeout: still due, no miss.
	res := m.Tick(due.Add(29 * time.Second))
	if res.State != StateCheckInDue || res.Missed != nil {
		t.Fatalf("before timeout: %+v", res)
	}

	// Past the timeout: exactly one missed entry.
	missedAt := due.Add(31 * time.Second)
	res = m.Tick(missedAt)
	if res.Missed == nil {
		t.Fatal("want missed entry")
	}
	if res.Missed.Status != domain.CheckInMissed || !res.Missed.Time.Equal(missedAt) {
		t.Fatalf("missed entry: %+v", res.Missed)
	}
	if res.State != StateRunning {
		t.Fatalf("after miss: want running, got %v", res.State)
	}

	// Repeated ticks never duplicate the entry.
	for i := 1; i <= 5; i++ {
		res = m.Tick(missedAt.Add(time.Duration(i) * time.Second))
		if res.Missed != nil {
			t.Fatal("missed entry duplicated")
		}
	}
	if len(m.Record().CheckInLog) != 1 {
		t.Fatalf("log length: want 1, got %d", len(m.Record().CheckInLog))
	}
}

func TestAcknowledge(t *testing.T) {
	m := NewMachine(activeRecord(60, 2, start))

	// Not valid while merely running.
	if _, err := m.Acknowledge(start.Add(time.Minute)); err != ErrNotCheckInDue {
		t.Fatalf("want ErrNotCheckInDue, got %v", err)
	}

	due := start.Add(15*time.Minute - 2*time.Second)
	m.Tick(due)

	ackAt := due.Add(5 * time.Second)
	entry, err := m.Acknowledge(ackAt)
	if err != nil {
		t.Fatalf("acknowledge: %v", err)
	}
	if entry.Status != domain.CheckInCompleted || !entry.Time.Equal(ackAt) {
		t.Fatalf("entry: %+v", entry)
	}
	if m.State() != StateRunning {
		t.Fatalf("after ack: want running, got %v", m.State())
	}

	// The acknowledged offset must not re-trigger on the next tick even
	// though the clock still sits inside its look-ahead window.
	res := m.Tick(ackAt.Add(time.Second))
	if res.State == StateCheckInDue {
		t.Fatal("acknowledged check-in re-triggered")
	}
	if got := len(m.Record().CheckInLog); got != 1 {
		t.Fatalf("log length: want 1, got %d", got)
	}
}

func TestLogNeverExceedsCheckInCount(t *testing.T) {
	m := NewMachine(activeRecord(60, 2, start))

	// Resolve both scheduled check-ins as missed by sleepwalking through
	// their windows.
	for _, offsetMin := range []int{15, 30} {
		due := start.Add(time.Duration(offsetMin)*time.Minute - 2*time.Second)
		if res := m.Tick(due); res.State != StateCheckInDue {
			t.Fatalf("offset %d: want due, got %v", offsetMin, res.State)
		}
		if res := m.Tick(due.Add(31 * time.Second)); res.Missed == nil {
			t.Fatal("want miss")
		}
	}

	// Keep ticking to the end: nothing further may be logged.
	for s := 31 * time.Minute; s < 60*time.Minute; s += time.Minute {
		if res := m.Tick(start.Add(s)); res.Missed != nil || res.State == StateCheckInDue {
			t.Fatalf("extra check-in activity at %v: %+v", s, res)
		}
	}
	if got := len(m.Record().CheckInLog); got != 2 {
		t.Fatalf("log length: want 2 (== check-in count), got %d", got)
	}
}

func TestStop(t *testing.T) {
	m := NewMachine(activeRecord(60, 1, start))

	if err := m.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if m.State() != StateStopped {
		t.Fatalf("want stopped, got %v", m.State())
	}
	if err := m.Stop(); err != ErrTimerFinished {
		t.Fatalf("second stop: want ErrTimerFinished, got %v", err)
	}
	if res := m.Tick(start.Add(time.Second)); res.State != StateStopped || res.Expired {
		t.Fatalf("tick after stop: %+v", res)
	}
}

func TestStop_WhileCheckInDue(t *testing.T) {
	m := NewMachine(activeRecord(60, 2, start))
	m.Tick(start.Add(15*time.Minute - 2*time.Second))
	if m.State() != StateCheckInDue {
		t.Fatalf("setup: want due, got %v", m.State())
	}
	if err := m.Stop(); err != nil {
		t.Fatalf("stop from due: %v", err)
	}
	if !m.DueSince().IsZero() {
		t.Fatal("due state not cleared on stop")
	}
}

func TestResume_SkipsStaleOffsets(t *testing.T) {
	// Machine attaches 20 minutes in: the 15:00 offset passed unobserved
	// while the process was down. It is skipped, not marked missed.
	m := NewMachine(activeRecord(60, 2, start))

	res := m.Tick(start.Add(20 * time.Minute))
	if res.Missed != nil || res.State != StateRunning {
		t.Fatalf("stale offset mishandled: %+v", res)
	}
	if !res.HasNext || res.NextOffsetMs != 1800000 {
		t.Fatalf("next offset after skip: want 1800000, got %d", res.NextOffsetMs)
	}

	// The 30:00 offset still becomes due normally.
	if res := m.Tick(start.Add(30*time.Minute - 2*time.Second)); res.State != StateCheckInDue {
		t.Fatalf("want due at second offset, got %v", res.State)
	}
}

func TestResume_CursorHonorsExistingLog(t *testing.T) {
	rec := activeRecord(60, 2, start)
	rec.CheckInLog = []domain.CheckInEntry{
		{Time: start.Add(15 * time.Minute), Status: domain.CheckInCompleted},
	}
	m := NewMachine(rec)

	// Back inside the first offset's window after a restart: already
	// resolved, must not re-prompt.
	if res := m.Tick(start.Add(15*time.Minute - 2*time.Second)); res.State == StateCheckInDue {
		t.Fatal("resolved check-in re-prompted after resume")
	}
}
