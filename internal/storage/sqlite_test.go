package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	logx "remindbot/pkg/logx"
)

func openTestStore(t *testing.T) Store {
	t.Helper()
	st, err := Open(Config{Path: filepath.Join(t.TempDir(), "remindbot.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func insert(t *testing.T, st Store, owner int64, due time.Time, payload string) int64 {
	t.Helper()
	id, err := st.InsertReminder(context.Background(), ReminderRow{
		CreatedAt: time.Now().UTC(),
		OwnerID:   owner,
		ChatID:    100,
		DueAt:     due,
		Payload:   payload,
	})
	if err != nil {
		t.Fatalf("InsertReminder error: %v", err)
	}
	return id
}

func TestRemindersByOwnerOrdering(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)

	insert(t, st, 1, base.Add(30*time.Second), "c")
	insert(t, st, 1, base.Add(10*time.Second), "a")
	insert(t, st, 1, base.Add(20*time.Second), "b")
	insert(t, st, 2, base.Add(5*time.Second), "other owner")

	got, err := st.RemindersByOwner(ctx, 1)
	if err != nil {
		t.Fatalf("RemindersByOwner error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d reminders, want 3", len(got))
	}
	for i, want := range []string{"a", "b", "c"} {
		if got[i].Payload != want {
			t.Fatalf("position %d = %q, want %q", i, got[i].Payload, want)
		}
	}
}

func TestDueTiesBreakByInsertionOrder(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	due := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)

	insert(t, st, 1, due, "first")
	insert(t, st, 1, due, "second")

	got, err := st.RemindersByOwner(context.Background(), 1)
	if err != nil {
		t.Fatalf("RemindersByOwner error: %v", err)
	}
	if len(got) != 2 || got[0].Payload != "first" || got[1].Payload != "second" {
		t.Fatalf("tie-break order wrong: %+v", got)
	}
}

func TestDrainDueIsIdempotent(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)

	insert(t, st, 1, now.Add(-time.Minute), "overdue")
	insert(t, st, 1, now, "due exactly now")
	insert(t, st, 1, now.Add(time.Hour), "later")

	first, err := st.DrainDue(ctx, now)
	if err != nil {
		t.Fatalf("DrainDue error: %v", err)
	}
	if len(first) != 2 {
		t.Fatalf("first drain returned %d rows, want 2", len(first))
	}
	if first[0].Payload != "overdue" || first[1].Payload != "due exactly now" {
		t.Fatalf("drain order wrong: %+v", first)
	}

	second, err := st.DrainDue(ctx, now)
	if err != nil {
		t.Fatalf("second DrainDue error: %v", err)
	}
	if len(second) != 0 {
		t.Fatalf("second drain returned %d rows, want 0", len(second))
	}

	// The future reminder must survive the drain.
	left, err := st.RemindersByOwner(ctx, 1)
	if err != nil {
		t.Fatalf("RemindersByOwner error: %v", err)
	}
	if len(left) != 1 || left[0].Payload != "later" {
		t.Fatalf("remaining = %+v, want only the future reminder", left)
	}
}

func TestDeleteReminderNotFound(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)

	if err := st.DeleteReminder(context.Background(), 12345); !errors.Is(err, ErrNotFound) {
		t.Fatalf("DeleteReminder error = %v, want ErrNotFound", err)
	}
}

func TestDeleteRemindersByOwnerEmptyIsNoop(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)

	n, err := st.DeleteRemindersByOwner(context.Background(), 999)
	if err != nil {
		t.Fatalf("DeleteRemindersByOwner error: %v", err)
	}
	if n != 0 {
		t.Fatalf("deleted %d rows from empty owner, want 0", n)
	}
}

func TestSubscriptionSlot(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	if _, ok, err := st.Subscription(ctx); err != nil || ok {
		t.Fatalf("empty slot: ok=%v err=%v, want ok=false err=nil", ok, err)
	}

	if err := st.PutSubscription(ctx, Subscription{FeedID: "UC111", ChatID: 42}); err != nil {
		t.Fatalf("PutSubscription error: %v", err)
	}
	// Last write wins: replacing must not create a second slot.
	if err := st.PutSubscription(ctx, Subscription{FeedID: "UC222", ChatID: 43}); err != nil {
		t.Fatalf("PutSubscription replace error: %v", err)
	}

	sub, ok, err := st.Subscription(ctx)
	if err != nil || !ok {
		t.Fatalf("Subscription: ok=%v err=%v", ok, err)
	}
	if sub.FeedID != "UC222" || sub.ChatID != 43 {
		t.Fatalf("slot = %+v, want the replacement", sub)
	}

	if err := st.ClearSubscription(ctx); err != nil {
		t.Fatalf("ClearSubscription error: %v", err)
	}
	if _, ok, _ := st.Subscription(ctx); ok {
		t.Fatal("slot still present after clear")
	}
	// Clearing an already-empty slot is fine.
	if err := st.ClearSubscription(ctx); err != nil {
		t.Fatalf("second ClearSubscription error: %v", err)
	}
}
