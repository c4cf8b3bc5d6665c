package store

import (
	"encoding/json"
	"fmt"
	"time"
)

// Timestamps are stored as unix milliseconds so elapsed-time math against
// check-in offsets (also milliseconds) needs no unit conversion.

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// Check-in offsets are a derived field regenerated whenever duration or
// check-in count change; a JSON array column keeps them alongside the row.

func encodeOffsets(offsets []int64) (string, error) {
	if offsets == nil {
		offsets = []int64{}
	}
	b, err := json.Marshal(offsets)
	if err != nil {
		return "", fmt.Errorf("encode offsets: %w", err)
	}
	return string(b), nil
}

func decodeOffsets(s string) ([]int64, error) {
	if s == "" {
		return []int64{}, nil
	}
	var offsets []int64
	if err := json.Unmarshal([]byte(s), &offsets); err != nil {
		return nil, fmt.Errorf("decode offsets: %w", err)
	}
	return offsets, nil
}
