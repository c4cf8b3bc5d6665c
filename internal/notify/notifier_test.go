package notify

import (
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

type fakeChannel struct {
	sent []string
	err  error
}

func (f *fakeChannel) Send(to, body string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, to)
	return "msg-1", nil
}

func TestNotify_InternationalPrefersRichChannel(t *testing.T) {
	rich := &fakeChannel{}
	baseline := &fakeChannel{}
	d := NewDispatcher(zap.NewNop(), rich, baseline)

	if err := d.Notify("+27821234567", "hello"); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(rich.sent) != 1 || len(baseline.sent) != 0 {
		t.Fatalf("want rich only: rich=%d baseline=%d", len(rich.sent), len(baseline.sent))
	}
}

func TestNotify_FallsBackToBaseline(t *testing.T) {
	rich := &fakeChannel{err: errors.New("whatsapp down")}
	baseline := &fakeChannel{}
	d := NewDispatcher(zap.NewNop(), rich, baseline)

	if err := d.Notify("+27821234567", "hello"); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(baseline.sent) != 1 {
		t.Fatalf("want baseline fallback, got %d sends", len(baseline.sent))
	}
}

func TestNotify_NonInternationalGoesStraightToBaseline(t *testing.T) {
	rich := &fakeChannel{}
	baseline := &fakeChannel{}
	d := NewDispatcher(zap.NewNop(), rich, baseline)

	if err := d.Notify("0821234567", "hello"); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(rich.sent) != 0 || len(baseline.sent) != 1 {
		t.Fatalf("want baseline only: rich=%d baseline=%d", len(rich.sent), len(baseline.sent))
	}
}

func TestNotify_BothChannelsFail(t *testing.T) {
	down := errors.New("relay down")
	d := NewDispatcher(zap.NewNop(), &fakeChannel{err: down}, &fakeChannel{err: down})

	if err := d.Notify("+27821234567", "hello"); !errors.Is(err, down) {
		t.Fatalf("want wrapped relay error, got %v", err)
	}
}

func TestNotify_EmptyContactSkipped(t *testing.T) {
	rich := &fakeChannel{}
	baseline := &fakeChannel{}
	d := NewDispatcher(zap.NewNop(), rich, baseline)

	if err := d.Notify("", "hello"); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(rich.sent)+len(baseline.sent) != 0 {
		t.Fatal("empty contact must not send")
	}
}

func TestFormatAlert(t *testing.T) {
	at := time.Date(2026, time.August, 30, 18, 42, 0, 0, time.UTC)
	got := FormatAlert("Anna", "Evening run", at)
	for _, want := range []string{"Anna", "Evening run", "18:42"} {
		if !strings.Contains(got, want) {
			t.Fatalf("alert missing %q: %s", want, got)
		}
	}

	// Fallback wording when profile fields are empty.
	got = FormatAlert("", "", at)
	if !strings.Contains(got, "A Safely user") || !strings.Contains(got, "safety timer") {
		t.Fatalf("fallback wording missing: %s", got)
	}
}

func TestMaskContact(t *testing.T) {
	if got := maskContact("+27821234567"); got != "+27*******67" {
		t.Fatalf("mask: got %q", got)
	}
	if got := maskContact("123"); got != "123" {
		t.Fatalf("short numbers pass through, got %q", got)
	}
}
