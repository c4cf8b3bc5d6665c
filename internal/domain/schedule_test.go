package domain

import (
	"testing"
	"time"
)

func TestCheckInOffsets_ZeroCount(t *testing.T) {
	got := CheckInOffsets(60, 0)
	if len(got) != 0 {
		t.Fatalf("want empty, got %v", got)
	}
}

func TestCheckInOffsets_SixtyMinutesTwoCheckIns(t *testing.T) {
	got := CheckInOffsets(60, 2)
	want := []int64{900000, 1800000} // 15 min, 30 min
	if len(got) != len(want) {
		t.Fatalf("want %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("offset %d: want %d, got %d", i, want[i], got[i])
		}
	}
}

func TestCheckInOffsets_Properties(t *testing.T) {
	cases := []struct {
		duration int
		count    int
	}{
		{1, 1}, {5, 3}, {45, 4}, {60, 2}, {90, 7}, {180, 12}, {1440, 100},
	}
	for _, tc := range cases {
		got := CheckInOffsets(tc.duration, tc.count)
		if len(got) != tc.count {
			t.Fatalf("d=%d c=%d: want %d offsets, got %d", tc.duration, tc.count, tc.count, len(got))
		}
		limit := int64(tc.duration)*60000/2 + 1
		var prev int64 = -1
		for i, o := range got {
			if o <= prev {
				t.Fatalf("d=%d c=%d: offsets not strictly increasing at %d: %v", tc.duration, tc.count, i, got)
			}
			if o >= limit {
				t.Fatalf("d=%d c=%d: offset %d outside first half: %d >= %d", tc.duration, tc.count, i, o, limit)
			}
			prev = o
		}
	}
}

func TestRemainingSeconds(t *testing.T) {
	start := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

	if got := RemainingSeconds(start, start, 1); got != 60 {
		t.Fatalf("at start: want 60, got %d", got)
	}
	if got := RemainingSeconds(start.Add(30*time.Second), start, 1); got != 30 {
		t.Fatalf("halfway: want 30, got %d", got)
	}
	// 61s past a 1-minute timer: floored at 0.
	if got := RemainingSeconds(start.Add(61*time.Second), start, 1); got != 0 {
		t.Fatalf("past expiry: want 0, got %d", got)
	}
	// Sub-second boundary: 59.5s elapsed still floors to 59 whole seconds.
	if got := RemainingSeconds(start.Add(59*time.Second+500*time.Millisecond), start, 1); got != 1 {
		t.Fatalf("sub-second: want 1, got %d", got)
	}
}

func TestRemainingSeconds_FutureStart(t *testing.T) {
	start := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	// A startedAt half a second ahead of now must not undercount.
	if got := RemainingSeconds(start.Add(-500*time.Millisecond), start, 1); got != 61 {
		t.Fatalf("want 61, got %d", got)
	}
}

func TestNextOffset(t *testing.T) {
	offsets := []int64{900000, 1800000}

	if o, ok := NextOffset(offsets, 0); !ok || o != 900000 {
		t.Fatalf("at start: want 900000, got %d ok=%v", o, ok)
	}
	if o, ok := NextOffset(offsets, 900000); !ok || o != 1800000 {
		t.Fatalf("exactly on first: want 1800000, got %d ok=%v", o, ok)
	}
	if _, ok := NextOffset(offsets, 1800000); ok {
		t.Fatal("past last offset: want none")
	}
	if _, ok := NextOffset(nil, 0); ok {
		t.Fatal("no offsets: want none")
	}
}

func TestFormatClock(t *testing.T) {
	cases := []struct {
		in   int
		want string
	}{
		{0, "00:00"},
		{5, "00:05"},
		{65, "01:05"},
		{600, "10:00"},
		{3599, "59:59"},
		{-3, "00:00"},
	}
	for _, tc := range cases {
		if got := FormatClock(tc.in); got != tc.want {
			t.Fatalf("FormatClock(%d): want %q, got %q", tc.in, tc.want, got)
		}
	}
}

func TestValidateTimer(t *testing.T) {
	if err := ValidateTimer(30, 2); err != nil {
		t.Fatalf("valid input rejected: %v", err)
	}
	if err := ValidateTimer(0, 2); err != ErrInvalidDuration {
		t.Fatalf("zero duration: want ErrInvalidDuration, got %v", err)
	}
	if err := ValidateTimer(-5, 0); err != ErrInvalidDuration {
		t.Fatalf("negative duration: want ErrInvalidDuration, got %v", err)
	}
	if err := ValidateTimer(30, -1); err != ErrInvalidCheckInCount {
		t.Fatalf("negative count: want ErrInvalidCheckInCount, got %v", err)
	}
}
