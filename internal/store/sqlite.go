package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	// Registers the "sqlite" driver (pure Go).
	_ "modernc.org/sqlite"

	"github.com/KurtSchwimmbacher/SafelyApp-sub000/internal/domain"
)

// SQLiteRepo implements Repo using an embedded SQLite database.
type SQLiteRepo struct{ db *sql.DB }

// OpenSQLite opens (or creates) the SQLite database at the given path,
// applies recommended PRAGMAs, runs migrations, and returns a repository.
func OpenSQLite(ctx context.Context, path string) (*SQLiteRepo, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Single-writer engine; one connection avoids SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyPragmas(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	return &SQLiteRepo{db: db}, nil
}

func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying database resources.
func (r *SQLiteRepo) Close() error {
	return r.db.Close()
}

// --- Users and sessions ---

func (r *SQLiteRepo) CreateUser(ctx context.Context, u *domain.UserProfile, passwordHash string) error {
	if u == nil {
		return errors.New("nil user")
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, email, display_name, contact, password_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, strings.ToLower(u.Email), u.DisplayName, u.Contact, passwordHash, toMillis(u.CreatedAt),
	)
	if err != nil && strings.Contains(err.Error(), "users.email") {
		return ErrEmailTaken
	}
	return err
}

func (r *SQLiteRepo) GetUser(ctx context.Context, id string) (*domain.UserProfile, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, email, display_name, contact, created_at
		FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func (r *SQLiteRepo) GetUserByEmail(ctx context.Context, email string) (*domain.UserProfile, string, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, email, display_name, contact, created_at, password_hash
		FROM users WHERE email = ?`, strings.ToLower(email))

	var (
		u       domain.UserProfile
		created int64
		hash    string
	)
	if err := row.Scan(&u.ID, &u.Email, &u.DisplayName, &u.Contact, &created, &hash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", ErrUserNotFound
		}
		return nil, "", err
	}
	u.CreatedAt = fromMillis(created)
	return &u, hash, nil
}

func scanUser(row *sql.Row) (*domain.UserProfile, error) {
	var (
		u       domain.UserProfile
		created int64
	)
	if err := row.Scan(&u.ID, &u.Email, &u.DisplayName, &u.Contact, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	u.CreatedAt = fromMillis(created)
	return &u, nil
}

func (r *SQLiteRepo) UpdateProfile(ctx context.Context, id, displayName, contact string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET display_name = ?, contact = ? WHERE id = ?`,
		displayName, contact, id,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *SQLiteRepo) CreateSession(ctx context.Context, s *domain.Session) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (token, user_id, created_at, expires_at)
		VALUES (?, ?, ?, ?)`,
		s.Token, s.UserID, toMillis(s.CreatedAt), toMillis(s.ExpiresAt),
	)
	return err
}

func (r *SQLiteRepo) GetSession(ctx context.Context, token string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT token, user_id, created_at, expires_at
		FROM sessions WHERE token = ?`, token)

	var (
		s                domain.Session
		created, expires int64
	)
	if err := row.Scan(&s.Token, &s.UserID, &created, &expires); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	s.CreatedAt = fromMillis(created)
	s.ExpiresAt = fromMillis(expires)
	return &s, nil
}

func (r *SQLiteRepo) DeleteSession(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token)
	return err
}

// --- Timer records ---

const timerColumns = `id, owner_id, duration_min, started_at_ms, name, checkin_count, checkin_offsets, contact, is_active`

func (r *SQLiteRepo) CreateTimer(ctx context.Context, t *domain.TimerRecord) error {
	if t == nil {
		return errors.New("nil timer")
	}
	offsets, err := encodeOffsets(t.CheckInOffsetsMs)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO timers (id, owner_id, duration_min, started_at_ms, name,
		                    checkin_count, checkin_offsets, contact, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1)`,
		t.ID, t.OwnerID, t.DurationMinutes, toMillis(t.StartedAt), t.Name,
		t.CheckInCount, offsets, t.Contact,
	)
	// The partial unique index on (owner_id) WHERE is_active=1 rejects a
	// second active record without touching the existing one. SQLite
	// reports the violation by column, not index name.
	if err != nil && strings.Contains(err.Error(), "timers.owner_id") {
		return ErrActiveTimerExists
	}
	return err
}

func (r *SQLiteRepo) GetActiveTimer(ctx context.Context, ownerID string) (*domain.TimerRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+timerColumns+`
		FROM timers WHERE owner_id = ? AND is_active = 1`, ownerID)

	t, err := scanTimer(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoActiveTimer
		}
		return nil, err
	}
	if err := r.loadCheckInLog(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (r *SQLiteRepo) GetTimer(ctx context.Context, ownerID, id string) (*domain.TimerRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+timerColumns+`
		FROM timers WHERE id = ? AND owner_id = ?`, id, ownerID)

	t, err := scanTimer(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTimerNotFound
		}
		return nil, err
	}
	if err := r.loadCheckInLog(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// ListTimers returns the owner's timer history, most recent first.
// Check-in logs are loaded per record; history pages are small.
func (r *SQLiteRepo) ListTimers(ctx context.Context, ownerID string, limit int) ([]domain.TimerRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+timerColumns+`
		FROM timers WHERE owner_id = ?
		ORDER BY started_at_ms DESC
		LIMIT ?`, ownerID, limit)
	if err != nil {
		return nil, err
	}
	timers, err := collectTimers(rows)
	if err != nil {
		return nil, err
	}
	for i := range timers {
		if err := r.loadCheckInLog(ctx, &timers[i]); err != nil {
			return nil, err
		}
	}
	return timers, nil
}

// ListActive returns every active timer across all owners, for engine resume.
func (r *SQLiteRepo) ListActive(ctx context.Context) ([]domain.TimerRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+timerColumns+`
		FROM timers WHERE is_active = 1
		ORDER BY started_at_ms ASC`)
	if err != nil {
		return nil, err
	}
	timers, err := collectTimers(rows)
	if err != nil {
		return nil, err
	}
	for i := range timers {
		if err := r.loadCheckInLog(ctx, &timers[i]); err != nil {
			return nil, err
		}
	}
	return timers, nil
}

// MarkInactive archives a timer. Idempotent: marking an already inactive or
// absent record is a no-op.
func (r *SQLiteRepo) MarkInactive(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE timers SET is_active = 0 WHERE id = ?`, id)
	return err
}

// AppendCheckIn appends one log entry to the owner's currently active timer.
// Appending to an inactive, deleted or foreign record fails with
// ErrNotActiveTimer.
func (r *SQLiteRepo) AppendCheckIn(ctx context.Context, ownerID, id string, e domain.CheckInEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var one int
	err = tx.QueryRowContext(ctx, `
		SELECT 1 FROM timers WHERE id = ? AND owner_id = ? AND is_active = 1`,
		id, ownerID,
	).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotActiveTimer
		}
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO checkin_log (timer_id, at_ms, status) VALUES (?, ?, ?)`,
		id, toMillis(e.Time), string(e.Status),
	); err != nil {
		return err
	}
	return tx.Commit()
}

// UpdateTimer applies a typed partial update. If duration or check-in count
// change, the offsets are regenerated with the schedule formula inside the
// same transaction so a reader never sees the fields out of step.
func (r *SQLiteRepo) UpdateTimer(ctx context.Context, ownerID, id string, upd domain.TimerUpdate) error {
	if upd.Empty() {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var (
		duration int
		name     string
		count    int
		contact  string
	)
	err = tx.QueryRowContext(ctx, `
		SELECT duration_min, name, checkin_count, contact
		FROM timers WHERE id = ? AND owner_id = ?`, id, ownerID,
	).Scan(&duration, &name, &count, &contact)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrTimerNotFound
		}
		return err
	}

	regen := false
	if upd.DurationMinutes != nil && *upd.DurationMinutes != duration {
		duration = *upd.DurationMinutes
		regen = true
	}
	if upd.CheckInCount != nil && *upd.CheckInCount != count {
		count = *upd.CheckInCount
		regen = true
	}
	if upd.Name != nil {
		name = *upd.Name
	}
	if upd.Contact != nil {
		contact = *upd.Contact
	}
	if err := domain.ValidateTimer(duration, count); err != nil {
		return err
	}

	if regen {
		offsets, err := encodeOffsets(domain.CheckInOffsets(duration, count))
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE timers
			SET duration_min = ?, name = ?, checkin_count = ?, checkin_offsets = ?, contact = ?
			WHERE id = ?`,
			duration, name, count, offsets, contact, id)
		if err != nil {
			return err
		}
	} else {
		if _, err := tx.ExecContext(ctx, `
			UPDATE timers SET name = ?, contact = ? WHERE id = ?`,
			name, contact, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// DeleteTimer removes a record and its check-in log (cascade).
func (r *SQLiteRepo) DeleteTimer(ctx context.Context, ownerID, id string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM timers WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrTimerNotFound
	}
	return nil
}

// UsageStats aggregates the owner's dashboard counters.
func (r *SQLiteRepo) UsageStats(ctx context.Context, ownerID string) (*domain.UsageStats, error) {
	var stats domain.UsageStats

	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(is_active), 0),
		       COALESCE(SUM(duration_min), 0)
		FROM timers WHERE owner_id = ?`, ownerID,
	).Scan(&stats.TimersStarted, &stats.TimersActive, &stats.MinutesScheduled)
	if err != nil {
		return nil, err
	}

	err = r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(CASE WHEN l.status = 'completed' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN l.status = 'missed' THEN 1 ELSE 0 END), 0)
		FROM checkin_log l
		JOIN timers t ON t.id = l.timer_id
		WHERE t.owner_id = ?`, ownerID,
	).Scan(&stats.CheckInsCompleted, &stats.CheckInsMissed)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// --- scan helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTimerFrom(s rowScanner) (*domain.TimerRecord, error) {
	var (
		t          domain.TimerRecord
		startedMs  int64
		offsetsRaw string
		activeInt  int
	)
	if err := s.Scan(
		&t.ID, &t.OwnerID, &t.DurationMinutes, &startedMs, &t.Name,
		&t.CheckInCount, &offsetsRaw, &t.Contact, &activeInt,
	); err != nil {
		return nil, err
	}
	offsets, err := decodeOffsets(offsetsRaw)
	if err != nil {
		return nil, err
	}
	t.StartedAt = fromMillis(startedMs)
	t.CheckInOffsetsMs = offsets
	t.IsActive = activeInt != 0
	t.CheckInLog = []domain.CheckInEntry{}
	return &t, nil
}

func scanTimer(row *sql.Row) (*domain.TimerRecord, error) {
	return scanTimerFrom(row)
}

func collectTimers(rows *sql.Rows) ([]domain.TimerRecord, error) {
	defer rows.Close()
	var res []domain.TimerRecord
	for rows.Next() {
		t, err := scanTimerFrom(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// loadCheckInLog fills t.CheckInLog in chronological (insertion) order.
func (r *SQLiteRepo) loadCheckInLog(ctx context.Context, t *domain.TimerRecord) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT at_ms, status FROM checkin_log
		WHERE timer_id = ? ORDER BY id ASC`, t.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	log := []domain.CheckInEntry{}
	for rows.Next() {
		var (
			atMs   int64
			status string
		)
		if err := rows.Scan(&atMs, &status); err != nil {
			return err
		}
		log = append(log, domain.CheckInEntry{
			Time:   fromMillis(atMs),
			Status: domain.CheckInStatus(status),
		})
	}
	if err := rows.Err(); err != nil {
		return err
	}
	t.CheckInLog = log
	return nil
}
