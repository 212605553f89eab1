package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	logx "remindbot/pkg/logx"
)

// Store is the persistence API used by the queue and the feed watcher.
type Store interface {
	// InsertReminder persists a reminder and returns its storage key.
	InsertReminder(ctx context.Context, r ReminderRow) (int64, error)

	// RemindersByOwner returns all reminders for one owner, ascending by
	// due instant (ties break by storage key, i.e. insertion order).
	RemindersByOwner(ctx context.Context, ownerID int64) ([]ReminderRow, error)

	// DeleteReminder removes one reminder by storage key.
	// Returns ErrNotFound if no such row exists.
	DeleteReminder(ctx context.Context, id int64) error

	// DeleteRemindersByOwner removes every reminder for the owner and
	// returns the number deleted. Zero deletions is not an error.
	DeleteRemindersByOwner(ctx context.Context, ownerID int64) (int64, error)

	// DrainDue atomically removes and returns every reminder with a due
	// instant at or before now, ascending by due instant. A row is never
	// returned twice across calls: the delete commits before the rows are
	// handed back.
	DrainDue(ctx context.Context, now time.Time) ([]ReminderRow, error)

	// Subscription returns the feed-watch slot, ok=false when empty.
	Subscription(ctx context.Context) (Subscription, bool, error)

	// PutSubscription replaces the feed-watch slot (last write wins).
	PutSubscription(ctx context.Context, sub Subscription) error

	// ClearSubscription empties the slot. Clearing an empty slot is a no-op.
	ClearSubscription(ctx context.Context) error

	Close() error
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("storage path is required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return openSQLite(cfg, log)
}
