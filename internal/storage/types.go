package storage

import (
	"errors"
	"time"
)

// ErrNotFound reports a delete/lookup that matched no row.
var ErrNotFound = errors.New("not found")

// Config configures the SQLite store.
type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means default
}

// ReminderRow is one persisted reminder.
//
// DueAt is always UTC; it is stored at millisecond precision so ordering in
// SQL is purely numeric.
type ReminderRow struct {
	ID        int64
	CreatedAt time.Time
	OwnerID   int64
	ChatID    int64
	DueAt     time.Time
	Payload   string
}

// Subscription is the single feed-watch slot.
type Subscription struct {
	FeedID    string
	ChatID    int64
	UpdatedAt time.Time
}
