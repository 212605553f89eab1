// Package reminder holds the scheduled-notification entity and the durable
// due-queue built on top of storage.
package reminder

import (
	"errors"
	"time"

	"remindbot/internal/storage"
	"remindbot/internal/temporal"
)

// ErrPastDue reports an add attempt whose resolved instant is not in the
// future.
var ErrPastDue = errors.New("date is not in the future")

// Record is one scheduled notification.
//
// CreatedAt and DueAt are UTC and immutable once the record is persisted;
// Payload may be set between construction and Insert. ID is the storage key,
// zero until persisted.
type Record struct {
	ID        int64
	OwnerID   int64
	ChatID    int64
	CreatedAt time.Time
	DueAt     time.Time
	Payload   string
}

// NewRecord builds a record from raw date/time input. The due instant is
// parsed in the given UTC offset and must be strictly in the future.
func NewRecord(ownerID, chatID int64, raw string, now time.Time, offset *time.Duration) (Record, error) {
	due, err := temporal.Parse(raw, now, offset)
	if err != nil {
		return Record{}, err
	}
	if !due.After(now) {
		return Record{}, ErrPastDue
	}
	return Record{
		OwnerID:   ownerID,
		ChatID:    chatID,
		CreatedAt: now.UTC(),
		DueAt:     due,
	}, nil
}

// fromRow reconstructs a persisted record. No re-parsing, no future-check:
// a reminder that came due while the process was down must still drain.
func fromRow(r storage.ReminderRow) Record {
	return Record{
		ID:        r.ID,
		OwnerID:   r.OwnerID,
		ChatID:    r.ChatID,
		CreatedAt: r.CreatedAt,
		DueAt:     r.DueAt,
		Payload:   r.Payload,
	}
}

func (r Record) toRow() storage.ReminderRow {
	return storage.ReminderRow{
		ID:        r.ID,
		CreatedAt: r.CreatedAt,
		OwnerID:   r.OwnerID,
		ChatID:    r.ChatID,
		DueAt:     r.DueAt,
		Payload:   r.Payload,
	}
}

// DisplayTime renders the due instant in the configured offset.
func (r Record) DisplayTime(offset *time.Duration) string {
	return temporal.Format(r.DueAt, offset)
}
