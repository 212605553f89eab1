package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	logx "remindbot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	path := cfg.Path
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &sqliteStore{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) InsertReminder(ctx context.Context, r ReminderRow) (int64, error) {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO reminders(created_at, owner_id, chat_id, due_at, payload)
		 VALUES(?,?,?,?,?)`,
		r.CreatedAt.UTC().Format(time.RFC3339Nano), r.OwnerID, r.ChatID,
		r.DueAt.UTC().UnixMilli(), r.Payload,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *sqliteStore) RemindersByOwner(ctx context.Context, ownerID int64) ([]ReminderRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, owner_id, chat_id, due_at, payload
		 FROM reminders WHERE owner_id = ?
		 ORDER BY due_at ASC, id ASC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReminders(rows)
}

func (s *sqliteStore) DeleteReminder(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM reminders WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqliteStore) DeleteRemindersByOwner(ctx context.Context, ownerID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM reminders WHERE owner_id = ?`, ownerID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *sqliteStore) DrainDue(ctx context.Context, now time.Time) ([]ReminderRow, error) {
	cutoff := now.UTC().UnixMilli()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx,
		`SELECT id, created_at, owner_id, chat_id, due_at, payload
		 FROM reminders WHERE due_at <= ?
		 ORDER BY due_at ASC, id ASC`, cutoff)
	if err != nil {
		return nil, err
	}
	due, err := scanReminders(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}
	if len(due) == 0 {
		return nil, nil
	}

	// Delete by the exact cutoff, not by individual ids: anything inserted
	// between SELECT and DELETE inside this tx cannot be earlier-due than
	// the cutoff we already read under the same snapshot.
	if _, err := tx.ExecContext(ctx, `DELETE FROM reminders WHERE due_at <= ?`, cutoff); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return due, nil
}

func scanReminders(rows *sql.Rows) ([]ReminderRow, error) {
	var out []ReminderRow
	for rows.Next() {
		var (
			r       ReminderRow
			created string
			dueMS   int64
		)
		if err := rows.Scan(&r.ID, &created, &r.OwnerID, &r.ChatID, &dueMS, &r.Payload); err != nil {
			return nil, err
		}
		at, err := time.Parse(time.RFC3339Nano, created)
		if err != nil {
			return nil, fmt.Errorf("bad created_at %q: %w", created, err)
		}
		r.CreatedAt = at
		r.DueAt = time.UnixMilli(dueMS).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *sqliteStore) Subscription(ctx context.Context) (Subscription, bool, error) {
	var (
		sub     Subscription
		updated string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT feed_id, chat_id, updated_at FROM feed_subscription WHERE slot = 0`).
		Scan(&sub.FeedID, &sub.ChatID, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Subscription{}, false, nil
	}
	if err != nil {
		return Subscription{}, false, err
	}
	if at, perr := time.Parse(time.RFC3339Nano, updated); perr == nil {
		sub.UpdatedAt = at
	}
	return sub, true, nil
}

func (s *sqliteStore) PutSubscription(ctx context.Context, sub Subscription) error {
	if sub.UpdatedAt.IsZero() {
		sub.UpdatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO feed_subscription(slot, feed_id, chat_id, updated_at) VALUES(0,?,?,?)
		 ON CONFLICT(slot) DO UPDATE SET
		   feed_id = excluded.feed_id,
		   chat_id = excluded.chat_id,
		   updated_at = excluded.updated_at`,
		sub.FeedID, sub.ChatID, sub.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

func (s *sqliteStore) ClearSubscription(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM feed_subscription WHERE slot = 0`)
	return err
}
