package store

import (
	"context"
	"database/sql"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/RajibRobidas/memoirbox-reminders/internal/domain"
)

const lastCheckKey = "last_notification_check"

// EnsureSchema creates tables if they don't exist.
func EnsureSchema(db *sql.DB) error {
	schema := `
PRAGMA journal_mode=WAL;
CREATE TABLE IF NOT EXISTS countdowns (
  id INTEGER PRIMARY KEY,
  title TEXT NOT NULL,
  date DATETIME NOT NULL,
  type TEXT NOT NULL DEFAULT 'Birthday',
  description TEXT NOT NULL DEFAULT '',
  created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS notification_times (
  countdown_id INTEGER NOT NULL,
  lead_minutes INTEGER NOT NULL CHECK(lead_minutes >= 0),
  PRIMARY KEY(countdown_id, lead_minutes),
  FOREIGN KEY(countdown_id) REFERENCES countdowns(id) ON DELETE CASCADE
);
CREATE TABLE IF NOT EXISTS meta (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL
);
`
	_, err := db.Exec(schema)
	return err
}

type Repository interface {
	CreateCountdown(ctx context.Context, c domain.Countdown, now time.Time) (domain.Countdown, error)
	GetCountdown(ctx context.Context, id int64) (domain.Countdown, error)
	UpdateCountdown(ctx context.Context, c domain.Countdown, now time.Time) (domain.Countdown, error)
	DeleteCountdown(ctx context.Context, id int64) error
	ListCountdowns(ctx context.Context) ([]domain.Countdown, error)

	// Notification schedule operations
	SetLeadTimes(ctx context.Context, countdownID int64, leadMinutes []int, now time.Time) error
	GetLeadTimes(ctx context.Context, countdownID int64) ([]int, error)
	AllLeadTimes(ctx context.Context) (map[int64][]int, error)
	ClearLeadTimes(ctx context.Context, countdownID int64) error

	// Missed-alert marker
	LastCheck(ctx context.Context) (time.Time, error)
	SetLastCheck(ctx context.Context, t time.Time) error
}

type sqliteRepo struct{ db *sql.DB }

func NewSQLiteRepo(db *sql.DB) Repository { return &sqliteRepo{db: db} }

func (r *sqliteRepo) CreateCountdown(ctx context.Context, c domain.Countdown, now time.Time) (domain.Countdown, error) {
	if strings.TrimSpace(c.Title) == "" {
		return domain.Countdown{}, &domain.ValidationError{Reason: "title is required"}
	}
	if c.Date.IsZero() {
		return domain.Countdown{}, &domain.ValidationError{Reason: "date is required"}
	}
	if c.Type == "" {
		c.Type = domain.DefaultType
	}
	c.CreatedAt = now.UTC()
	c.UpdatedAt = now.UTC()
	c.Date = c.Date.UTC()

	// Ids are derived from the creation timestamp, bumped past collisions so
	// two countdowns created in the same millisecond still get distinct ids.
	id := now.UnixMilli()
	for attempts := 0; ; attempts++ {
		_, err := r.db.ExecContext(ctx, `
INSERT INTO countdowns (id,title,date,type,description,created_at,updated_at)
VALUES (?,?,?,?,?,?,?)
`, id, c.Title, c.Date, c.Type, c.Description, c.CreatedAt, c.UpdatedAt)
		if err == nil {
			break
		}
		if isUniqueViolation(err) && attempts < 1000 {
			id++
			continue
		}
		return domain.Countdown{}, err
	}
	c.ID = id
	return c, nil
}

func (r *sqliteRepo) GetCountdown(ctx context.Context, id int64) (domain.Countdown, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id,title,date,type,description,created_at,updated_at
FROM countdowns WHERE id=?`, id)
	return scanCountdown(row)
}

func (r *sqliteRepo) UpdateCountdown(ctx context.Context, c domain.Countdown, now time.Time) (domain.Countdown, error) {
	if strings.TrimSpace(c.Title) == "" {
		return domain.Countdown{}, &domain.ValidationError{Reason: "title is required"}
	}
	if c.Date.IsZero() {
		return domain.Countdown{}, &domain.ValidationError{Reason: "date is required"}
	}
	if c.Type == "" {
		c.Type = domain.DefaultType
	}

	// Full replace of all mutable fields; id and created_at are immutable.
	res, err := r.db.ExecContext(ctx, `
UPDATE countdowns SET title=?,date=?,type=?,description=?,updated_at=?
WHERE id=?`, c.Title, c.Date.UTC(), c.Type, c.Description, now.UTC(), c.ID)
	if err != nil {
		return domain.Countdown{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.Countdown{}, domain.ErrNotFound
	}
	return r.GetCountdown(ctx, c.ID)
}

// DeleteCountdown removes a countdown together with its notification
// lead-times. Deleting an absent id is a no-op.
func (r *sqliteRepo) DeleteCountdown(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err = tx.ExecContext(ctx, "DELETE FROM notification_times WHERE countdown_id=?", id); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, "DELETE FROM countdowns WHERE id=?", id); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *sqliteRepo) ListCountdowns(ctx context.Context) ([]domain.Countdown, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id,title,date,type,description,created_at,updated_at
FROM countdowns ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Countdown
	for rows.Next() {
		c, err := scanCountdown(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SetLeadTimes replaces the notification schedule for a countdown. Lead-times
// whose fire time is not strictly after now are rejected and the previous
// schedule is left untouched.
func (r *sqliteRepo) SetLeadTimes(ctx context.Context, countdownID int64, leadMinutes []int, now time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var date time.Time
	row := tx.QueryRowContext(ctx, "SELECT date FROM countdowns WHERE id=?", countdownID)
	if err := row.Scan(&date); err != nil {
		if err == sql.ErrNoRows {
			return domain.ErrNotFound
		}
		return err
	}

	cd := domain.Countdown{ID: countdownID, Date: date}
	var invalid []int
	for _, m := range leadMinutes {
		if m < 0 || !cd.FireTime(m).After(now) {
			invalid = append(invalid, m)
		}
	}
	if len(invalid) > 0 {
		return &domain.ValidationError{
			Reason:           "lead times must produce a future fire time",
			InvalidLeadTimes: invalid,
		}
	}

	if _, err = tx.ExecContext(ctx, "DELETE FROM notification_times WHERE countdown_id=?", countdownID); err != nil {
		return err
	}
	for _, m := range dedupe(leadMinutes) {
		if _, err = tx.ExecContext(ctx,
			"INSERT INTO notification_times (countdown_id, lead_minutes) VALUES (?,?)", countdownID, m); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *sqliteRepo) GetLeadTimes(ctx context.Context, countdownID int64) ([]int, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT lead_minutes FROM notification_times WHERE countdown_id=? ORDER BY lead_minutes ASC`, countdownID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []int{}
	for rows.Next() {
		var m int
		if err := rows.Scan(&m); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *sqliteRepo) AllLeadTimes(ctx context.Context) (map[int64][]int, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT countdown_id, lead_minutes FROM notification_times ORDER BY countdown_id, lead_minutes`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[int64][]int{}
	for rows.Next() {
		var id int64
		var m int
		if err := rows.Scan(&id, &m); err != nil {
			return nil, err
		}
		out[id] = append(out[id], m)
	}
	return out, rows.Err()
}

func (r *sqliteRepo) ClearLeadTimes(ctx context.Context, countdownID int64) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM notification_times WHERE countdown_id=?", countdownID)
	return err
}

// LastCheck returns the zero time when no marker has been written yet.
func (r *sqliteRepo) LastCheck(ctx context.Context) (time.Time, error) {
	row := r.db.QueryRowContext(ctx, "SELECT value FROM meta WHERE key=?", lastCheckKey)
	var v string
	if err := row.Scan(&v); err != nil {
		if err == sql.ErrNoRows {
			return time.Time{}, nil
		}
		return time.Time{}, err
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}

func (r *sqliteRepo) SetLastCheck(ctx context.Context, t time.Time) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO meta (key, value) VALUES (?,?)
ON CONFLICT(key) DO UPDATE SET value=excluded.value`,
		lastCheckKey, strconv.FormatInt(t.UnixMilli(), 10))
	return err
}

func scanCountdown(row interface{ Scan(...any) error }) (domain.Countdown, error) {
	var c domain.Countdown
	err := row.Scan(&c.ID, &c.Title, &c.Date, &c.Type, &c.Description, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return domain.Countdown{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Countdown{}, err
	}
	c.Date = c.Date.UTC()
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return c, nil
}

func dedupe(in []int) []int {
	seen := map[int]struct{}{}
	out := make([]int, 0, len(in))
	for _, m := range in {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	sort.Ints(out)
	return out
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
