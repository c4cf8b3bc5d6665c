package domain

import (
	"fmt"
	"math"
	"time"
)

// CheckInOffsets computes the millisecond offsets from timer start at which
// each scheduled check-in becomes due. The k-th offset (1-indexed) is
// round(durationMinutes/2/count * k * 60000): check-ins are distributed
// evenly across the first half of the countdown, leaving the second half
// free of prompts. Returns an empty slice when count is 0.
func CheckInOffsets(durationMinutes, count int) []int64 {
	if count <= 0 {
		return []int64{}
	}
	offsets := make([]int64, 0, count)
	spacing := float64(durationMinutes) / 2 / float64(count)
	for k := 1; k <= count; k++ {
		offsets = append(offsets, int64(math.Round(spacing*float64(k)*60000)))
	}
	return offsets
}

// ElapsedMs returns the wall-clock milliseconds elapsed since startedAt.
func ElapsedMs(now, startedAt time.Time) int64 {
	return now.Sub(startedAt).Milliseconds()
}

// RemainingSeconds derives the seconds left on a countdown from the clock,
// never from an accumulated counter, so suspension or skipped ticks cannot
// introduce drift. Floors at 0.
func RemainingSeconds(now, startedAt time.Time, durationMinutes int) int {
	rem := int64(durationMinutes)*60 - floorDiv(ElapsedMs(now, startedAt), 1000)
	if rem < 0 {
		return 0
	}
	return int(rem)
}

// floorDiv divides rounding toward negative infinity. Plain integer
// division truncates toward zero, which misbehaves for a startedAt that
// sits slightly in the future (clock skew between devices).
func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

// NextOffset returns the first offset strictly greater than elapsedMs,
// for display of the upcoming check-in. ok is false when none remain.
func NextOffset(offsets []int64, elapsedMs int64) (next int64, ok bool) {
	for _, o := range offsets {
		if o > elapsedMs {
			return o, true
		}
	}
	return 0, false
}

// FormatClock renders a second count as "MM:SS". Negative values clamp
// to "00:00".
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
