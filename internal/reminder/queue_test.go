package reminder

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"remindbot/internal/storage"
	kit "remindbot/internal/transport"
	logx "remindbot/pkg/logx"
)

func newTestQueue(t *testing.T) *Queue {
	t.Helper()
	st, err := storage.Open(storage.Config{Path: filepath.Join(t.TempDir(), "q.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("storage.Open error: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return NewQueue(st, logx.Nop())
}

func mustInsert(t *testing.T, q *Queue, owner int64, due time.Time, payload string) Record {
	t.Helper()
	rec := Record{OwnerID: owner, ChatID: 7, CreatedAt: time.Now().UTC(), DueAt: due, Payload: payload}
	if err := q.Insert(context.Background(), &rec); err != nil {
		t.Fatalf("Insert error: %v", err)
	}
	if rec.ID == 0 {
		t.Fatal("Insert did not assign a storage key")
	}
	return rec
}

func TestListForOwnerSortsByDue(t *testing.T) {
	t.Parallel()
	q := newTestQueue(t)
	base := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)

	mustInsert(t, q, 1, base.Add(30*time.Second), "t+30")
	mustInsert(t, q, 1, base.Add(10*time.Second), "t+10")
	mustInsert(t, q, 1, base.Add(20*time.Second), "t+20")

	got, err := q.ListForOwner(context.Background(), 1)
	if err != nil {
		t.Fatalf("ListForOwner error: %v", err)
	}
	want := []string{"t+10", "t+20", "t+30"}
	if len(got) != len(want) {
		t.Fatalf("got %d records, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Payload != want[i] {
			t.Fatalf("position %d = %q, want %q", i, got[i].Payload, want[i])
		}
	}
}

func TestDeleteAtUsesListingPosition(t *testing.T) {
	t.Parallel()
	q := newTestQueue(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)

	mustInsert(t, q, 1, base.Add(2*time.Hour), "second")
	mustInsert(t, q, 1, base.Add(1*time.Hour), "first")

	// Index 0 is the earliest-due record, not the first inserted.
	deleted, err := q.DeleteAt(ctx, 1, 0)
	if err != nil {
		t.Fatalf("DeleteAt error: %v", err)
	}
	if deleted.Payload != "first" {
		t.Fatalf("deleted %q, want the earliest-due record", deleted.Payload)
	}

	left, err := q.ListForOwner(ctx, 1)
	if err != nil {
		t.Fatalf("ListForOwner error: %v", err)
	}
	if len(left) != 1 || left[0].Payload != "second" {
		t.Fatalf("remaining = %+v", left)
	}
}

func TestDeleteAtOutOfRange(t *testing.T) {
	t.Parallel()
	q := newTestQueue(t)
	ctx := context.Background()

	mustInsert(t, q, 1, time.Now().Add(time.Hour), "only")

	for _, idx := range []int{1, 5, -1} {
		if _, err := q.DeleteAt(ctx, 1, idx); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("DeleteAt(%d) error = %v, want ErrNotFound", idx, err)
		}
	}
}

func TestDeleteAllOnEmptyOwner(t *testing.T) {
	t.Parallel()
	q := newTestQueue(t)

	n, err := q.DeleteAll(context.Background(), 42)
	if err != nil {
		t.Fatalf("DeleteAll error: %v", err)
	}
	if n != 0 {
		t.Fatalf("DeleteAll deleted %d, want 0", n)
	}
}

func TestDrainDueReturnsEachRecordOnce(t *testing.T) {
	t.Parallel()
	q := newTestQueue(t)
	ctx := context.Background()
	now := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)

	mustInsert(t, q, 1, now.Add(-time.Second), "due")
	mustInsert(t, q, 1, now.Add(time.Hour), "future")

	first, err := q.DrainDue(ctx, now)
	if err != nil {
		t.Fatalf("DrainDue error: %v", err)
	}
	if len(first) != 1 || first[0].Payload != "due" {
		t.Fatalf("first drain = %+v, want the one due record", first)
	}

	second, err := q.DrainDue(ctx, now)
	if err != nil {
		t.Fatalf("second DrainDue error: %v", err)
	}
	if len(second) != 0 {
		t.Fatalf("second drain = %+v, want empty", second)
	}
}

// ---- drain service ----

type captureSender struct {
	sent []kit.Notification
	err  error
}

func (c *captureSender) Send(n kit.Notification) error {
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, n)
	return nil
}

func TestServiceTickDeliversDueReminders(t *testing.T) {
	t.Parallel()
	q := newTestQueue(t)
	now := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)

	mustInsert(t, q, 1, now.Add(-time.Minute), "water the plants")
	mustInsert(t, q, 1, now.Add(time.Hour), "not yet")

	sender := &captureSender{}
	svc := NewService(ServiceConfig{}, q, sender, logx.Nop())

	if err := svc.Tick(context.Background(), now); err != nil {
		t.Fatalf("Tick error: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("sent %d notifications, want 1", len(sender.sent))
	}
	n := sender.sent[0]
	if n.Target.ChatID != 7 {
		t.Fatalf("delivered to chat %d, want 7", n.Target.ChatID)
	}
	if n.Text != "⏰ You have a reminder!\n\nwater the plants" {
		t.Fatalf("unexpected delivery text %q", n.Text)
	}

	// Drained records are gone even though delivery already happened:
	// a second tick delivers nothing.
	sender.sent = nil
	if err := svc.Tick(context.Background(), now); err != nil {
		t.Fatalf("second Tick error: %v", err)
	}
	if len(sender.sent) != 0 {
		t.Fatalf("second tick sent %d notifications, want 0", len(sender.sent))
	}
}

func TestServiceTickDropsOnSendFailureWithoutRedelivery(t *testing.T) {
	t.Parallel()
	q := newTestQueue(t)
	now := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)

	mustInsert(t, q, 1, now.Add(-time.Minute), "lost")

	sender := &captureSender{err: errors.New("queue full")}
	svc := NewService(ServiceConfig{}, q, sender, logx.Nop())

	// The record was deleted before the send was attempted, so the failed
	// delivery is lost (at-most-once), not retried.
	if err := svc.Tick(context.Background(), now); err != nil {
		t.Fatalf("Tick error: %v", err)
	}
	sender.err = nil
	if err := svc.Tick(context.Background(), now); err != nil {
		t.Fatalf("second Tick error: %v", err)
	}
	if len(sender.sent) != 0 {
		t.Fatalf("record was redelivered: %+v", sender.sent)
	}
}

func TestNewRecordFutureCheck(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)

	if _, err := NewRecord(1, 2, "01/01/2020-10:00", now, nil); !errors.Is(err, ErrPastDue) {
		t.Fatalf("past date error = %v, want ErrPastDue", err)
	}

	rec, err := NewRecord(1, 2, "18/01/2024-10:34:45", now, nil)
	if err != nil {
		t.Fatalf("NewRecord error: %v", err)
	}
	if rec.DisplayTime(nil) != "18/01/2024-10:34:45" {
		t.Fatalf("DisplayTime = %q", rec.DisplayTime(nil))
	}
	if !rec.CreatedAt.Equal(now) {
		t.Fatalf("CreatedAt = %v, want now", rec.CreatedAt)
	}
}
