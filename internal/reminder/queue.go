package reminder

import (
	"context"
	"fmt"
	"time"

	"remindbot/internal/storage"
	logx "remindbot/pkg/logx"
)

// Queue is the durable, time-ordered reminder collection. It exclusively
// owns the persisted records; everything it returns is a snapshot.
type Queue struct {
	store storage.Store
	log   logx.Logger
}

func NewQueue(store storage.Store, log logx.Logger) *Queue {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Queue{store: store, log: log}
}

// Insert persists a validated record and assigns its storage key.
func (q *Queue) Insert(ctx context.Context, rec *Record) error {
	id, err := q.store.InsertReminder(ctx, rec.toRow())
	if err != nil {
		return fmt.Errorf("persist reminder: %w", err)
	}
	rec.ID = id
	q.log.Debug("reminder stored",
		logx.Int64("id", id), logx.Int64("owner", rec.OwnerID), logx.Time("due", rec.DueAt))
	return nil
}

// ListForOwner returns the owner's pending reminders ascending by due
// instant. The positional index shown to users is the slice index here;
// it is only valid against this exact listing.
func (q *Queue) ListForOwner(ctx context.Context, ownerID int64) ([]Record, error) {
	rows, err := q.store.RemindersByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	out := make([]Record, 0, len(rows))
	for _, r := range rows {
		out = append(out, fromRow(r))
	}
	return out, nil
}

// DeleteAt removes the record at the given zero-based position within the
// owner's current ascending listing. Returns storage.ErrNotFound when the
// index is out of range.
func (q *Queue) DeleteAt(ctx context.Context, ownerID int64, index int) (Record, error) {
	recs, err := q.ListForOwner(ctx, ownerID)
	if err != nil {
		return Record{}, err
	}
	if index < 0 || index >= len(recs) {
		return Record{}, fmt.Errorf("reminder %d: %w", index, storage.ErrNotFound)
	}
	target := recs[index]
	if err := q.store.DeleteReminder(ctx, target.ID); err != nil {
		return Record{}, fmt.Errorf("delete reminder %d: %w", target.ID, err)
	}
	return target, nil
}

// DeleteAll removes every reminder owned by ownerID and reports how many
// were removed. Zero is success.
func (q *Queue) DeleteAll(ctx context.Context, ownerID int64) (int64, error) {
	n, err := q.store.DeleteRemindersByOwner(ctx, ownerID)
	if err != nil {
		return 0, fmt.Errorf("delete reminders: %w", err)
	}
	return n, nil
}

// DrainDue removes and returns every record due at or before now, ascending.
// The removal commits before the records are returned, so a record can never
// be drained twice; a crash after the commit loses that delivery instead.
func (q *Queue) DrainDue(ctx context.Context, now time.Time) ([]Record, error) {
	rows, err := q.store.DrainDue(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("drain due: %w", err)
	}
	out := make([]Record, 0, len(rows))
	for _, r := range rows {
		out = append(out, fromRow(r))
	}
	return out, nil
}
