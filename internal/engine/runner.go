package engine

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/KurtSchwimmbacher/SafelyApp-sub000/internal/domain"
	"github.com/KurtSchwimmbacher/SafelyApp-sub000/internal/notify"
	"github.com/KurtSchwimmbacher/SafelyApp-sub000/internal/store"
)

// Alerter is the minimal interface the runner needs to raise a
// missed-check-in alert. notify.Dispatcher implements it.
type Alerter interface {
	Notify(contact, body string) error
}

// Runner hosts the machines of all active timers and drives them from a
// single periodic tick. Store and alert failures are logged, never fatal:
// the countdown keeps ticking regardless.
type Runner struct {
	repo     store.Repo
	log      *zap.Logger
	alerter  Alerter
	interval time.Duration
	now      func() time.Time

	mu       sync.Mutex
	machines map[string]*Machine // ownerID -> machine
}

// NewRunner creates a runner. A non-positive interval defaults to one
// second, the cadence the countdown display is derived at.
func NewRunner(repo store.Repo, log *zap.Logger, alerter Alerter, interval time.Duration) *Runner {
	if interval <= 0 {
		interval = time.Second
	}
	return &Runner{
		repo:     repo,
		log:      log,
		alerter:  alerter,
		interval: interval,
		now:      time.Now,
		machines: make(map[string]*Machine),
	}
}

// Resume reloads active records after process start. Records whose
// countdown already ran out are lazily expired (marked inactive) instead of
// resumed; the rest get a machine and continue where the clock says they
// are.
func (r *Runner) Resume(ctx context.Context) error {
	records, err := r.repo.ListActive(ctx)
	if err != nil {
		return err
	}
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range records {
		rec := records[i]
		if domain.RemainingSeconds(now, rec.StartedAt, rec.DurationMinutes) == 0 {
			if err := r.repo.MarkInactive(ctx, rec.ID); err != nil {
				r.log.Error("lazy expiry failed", zap.Error(err), zap.String("timer", rec.ID))
			}
			continue
		}
		r.machines[rec.OwnerID] = NewMachine(&rec)
	}
	r.log.Info("engine resumed", zap.Int("active_timers", len(r.machines)))
	return nil
}

// Run ticks all machines once per interval until ctx is canceled.
func (r *Runner) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info("engine stopping")
			return
		case <-ticker.C:
			r.tick(ctx, r.now())
		}
	}
}

// tick advances every machine and applies the side effects its result asks
// for. The alert dispatch runs in its own goroutine so a slow relay cannot
// stall the next tick.
func (r *Runner) tick(ctx context.Context, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for ownerID, m := range r.machines {
		res := m.Tick(now)
		rec := m.Record()

		if res.Missed != nil {
			if err := r.repo.AppendCheckIn(ctx, ownerID, rec.ID, *res.Missed); err != nil {
				r.log.Error("append missed check-in failed",
					zap.Error(err), zap.String("timer", rec.ID))
			}
			r.log.Warn("check-in missed",
				zap.String("timer", rec.ID), zap.String("owner", ownerID))
			r.dispatchAlert(ctx, rec, res.Missed.Time)
		}

		if res.Expired {
			if err := r.repo.MarkInactive(ctx, rec.ID); err != nil {
				r.log.Error("mark inactive failed",
					zap.Error(err), zap.String("timer", rec.ID))
			}
			r.log.Info("timer expired", zap.String("timer", rec.ID))
			delete(r.machines, ownerID)
		}
	}
}

// dispatchAlert is fire-and-forget: failures are the dispatcher's to log,
// and an empty contact skips silently.
func (r *Runner) dispatchAlert(ctx context.Context, rec *domain.TimerRecord, at time.Time) {
	if rec.Contact == "" {
		return
	}
	owner, err := r.repo.GetUser(ctx, rec.OwnerID)
	displayName := ""
	if err != nil {
		r.log.Warn("owner lookup for alert failed", zap.Error(err), zap.String("owner", rec.OwnerID))
	} else {
		displayName = owner.DisplayName
	}
	body := notify.FormatAlert(displayName, rec.Name, at)
	contact := rec.Contact
	go func() {
		_ = r.alerter.Notify(contact, body)
	}()
}

// Track registers (or replaces) the machine for a fresh or updated active
// record. Replacing resets the due sub-state; the offset cursor picks up
// after the record's resolved log entries.
func (r *Runner) Track(rec *domain.TimerRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.machines[rec.OwnerID] = NewMachine(rec)
}

// Forget drops the owner's machine without touching the store.
func (r *Runner) Forget(ownerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.machines, ownerID)
}

// Acknowledge resolves the owner's open check-in as completed and persists
// the log entry. store.ErrNoActiveTimer when the owner has no live machine;
// ErrNotCheckInDue when nothing is awaiting acknowledgment.
func (r *Runner) Acknowledge(ctx context.Context, ownerID string) (domain.CheckInEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.machines[ownerID]
	if !ok {
		return domain.CheckInEntry{}, store.ErrNoActiveTimer
	}
	entry, err := m.Acknowledge(r.now())
	if err != nil {
		return domain.CheckInEntry{}, err
	}
	if err := r.repo.AppendCheckIn(ctx, ownerID, m.Record().ID, entry); err != nil {
		// The machine already moved on; the missing log row is logged and
		// the countdown continues.
		r.log.Error("append completed check-in failed",
			zap.Error(err), zap.String("timer", m.Record().ID))
	}
	return entry, nil
}

// Stop terminates the owner's countdown: machine discarded, record marked
// inactive. Stopping with no live machine still marks the stored active
// record inactive, so a stop raced against a restart is not lost.
func (r *Runner) Stop(ctx context.Context, ownerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m, ok := r.machines[ownerID]; ok {
		_ = m.Stop()
		delete(r.machines, ownerID)
		return r.repo.MarkInactive(ctx, m.Record().ID)
	}

	rec, err := r.repo.GetActiveTimer(ctx, ownerID)
	if err != nil {
		return err
	}
	return r.repo.MarkInactive(ctx, rec.ID)
}

// View reports the owner's live machine state for display. ok is false when
// the owner has no machine (no active timer, or it already terminated).
func (r *Runner) View(ownerID string) (state State, dueSince time.Time, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, found := r.machines[ownerID]
	if !found {
		return StateIdle, time.Time{}, false
	}
	return m.State(), m.DueSince(), true
}
