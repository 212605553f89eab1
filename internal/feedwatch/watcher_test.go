package feedwatch

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

type fakeClient struct {
	item Item
	err  error
}

func (f *fakeClient) LatestItem(ctx context.Context, feedID string) (Item, error) {
	if f.err != nil {
		return Item{}, f.err
	}
	return f.item, nil
}

type captureSender struct {
	sent []kit.Notification
}

func (c *captureSender) Send(n kit.Notification) error {
	c.sent = append(c.sent, n)
	return nil
}

func newTestService(t *testing.T, client Client) (*Service, *captureSender, storage.Store) {
	t.Helper()
	st, err := storage.Open(storage.Config{Path: filepath.Join(t.TempDir(), "fw.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("storage.Open error: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	sender := &captureSender{}
	return NewService(Config{}, client, st, sender, logx.Nop()), sender, st
}

func TestTickWithoutSubscriptionIsNoop(t *testing.T) {
	t.Parallel()
	svc, sender, _ := newTestService(t, &fakeClient{err: errors.New("must not be called")})

	if err := svc.Tick(context.Background(), time.Now()); err != nil {
		t.Fatalf("Tick error: %v", err)
	}
	if len(sender.sent) != 0 {
		t.Fatalf("idle tick delivered %d notifications", len(sender.sent))
	}
}

func TestFreshItemInCurrentBucketAnnouncedOnce(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 1, 10, 12, 30, 45, 0, time.UTC)
	client := &fakeClient{item: Item{
		ID:           "vid1",
		Title:        "launch day",
		PublishedAt:  now.Add(-10 * time.Second), // same minute bucket
		ThumbnailURL: "https://img.example/vid1.jpg",
	}}
	svc, sender, _ := newTestService(t, client)
	ctx := context.Background()

	if err := svc.Subscribe(ctx, "UC123", 55); err != nil {
		t.Fatalf("Subscribe error: %v", err)
	}

	if err := svc.Tick(ctx, now); err != nil {
		t.Fatalf("Tick error: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("sent %d notifications, want 1", len(sender.sent))
	}
	n := sender.sent[0]
	if n.Target.ChatID != 55 || n.PhotoURL != "https://img.example/vid1.jpg" {
		t.Fatalf("unexpected notification %+v", n)
	}
	if n.Text != "📺 New upload: launch day" {
		t.Fatalf("unexpected text %q", n.Text)
	}

	// Second tick in the same bucket: already announced, stay silent.
	if err := svc.Tick(ctx, now.Add(20*time.Second)); err != nil {
		t.Fatalf("second Tick error: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("same bucket delivered twice: %d notifications", len(sender.sent))
	}
}

func TestOldItemIsNeverAnnounced(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 1, 10, 12, 30, 0, 0, time.UTC)
	client := &fakeClient{item: Item{
		ID:          "old",
		Title:       "ancient upload",
		PublishedAt: now.Add(-3 * time.Hour),
	}}
	svc, sender, _ := newTestService(t, client)
	ctx := context.Background()

	if err := svc.Subscribe(ctx, "UC123", 55); err != nil {
		t.Fatalf("Subscribe error: %v", err)
	}
	if err := svc.Tick(ctx, now); err != nil {
		t.Fatalf("Tick error: %v", err)
	}
	if len(sender.sent) != 0 {
		t.Fatalf("old item announced: %+v", sender.sent)
	}
}

func TestNewItemResetsBucketDedup(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	t0 := time.Date(2024, 1, 10, 12, 30, 0, 0, time.UTC)
	client := &fakeClient{item: Item{ID: "a", Title: "first", PublishedAt: t0}}
	svc, sender, _ := newTestService(t, client)

	if err := svc.Subscribe(ctx, "UC123", 55); err != nil {
		t.Fatalf("Subscribe error: %v", err)
	}
	if err := svc.Tick(ctx, t0); err != nil {
		t.Fatalf("Tick error: %v", err)
	}

	// A different item in a later minute gets its own announcement.
	t1 := t0.Add(5 * time.Minute)
	client.item = Item{ID: "b", Title: "second", PublishedAt: t1}
	if err := svc.Tick(ctx, t1); err != nil {
		t.Fatalf("Tick error: %v", err)
	}
	if len(sender.sent) != 2 {
		t.Fatalf("sent %d notifications, want 2", len(sender.sent))
	}
}

func TestFetchErrorKeepsSubscription(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client := &fakeClient{err: errors.New("feed unreachable")}
	svc, sender, _ := newTestService(t, client)

	if err := svc.Subscribe(ctx, "UC123", 55); err != nil {
		t.Fatalf("Subscribe error: %v", err)
	}
	if err := svc.Tick(ctx, time.Now()); err == nil {
		t.Fatal("expected tick error")
	}
	if _, _, ok := svc.Subscribed(); !ok {
		t.Fatal("subscription dropped after transient fetch error")
	}

	// Recovery: the next tick works again.
	now := time.Date(2024, 1, 10, 12, 30, 0, 0, time.UTC)
	client.err = nil
	client.item = Item{ID: "v", Title: "back", PublishedAt: now}
	if err := svc.Tick(ctx, now); err != nil {
		t.Fatalf("Tick after recovery error: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("sent %d notifications after recovery, want 1", len(sender.sent))
	}
}

func TestSubscribeReplacesSlot(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _, st := newTestService(t, &fakeClient{})

	if err := svc.Subscribe(ctx, "UC111", 1); err != nil {
		t.Fatalf("Subscribe error: %v", err)
	}
	if err := svc.Subscribe(ctx, "UC222", 2); err != nil {
		t.Fatalf("Subscribe replace error: %v", err)
	}

	feed, chat, ok := svc.Subscribed()
	if !ok || feed != "UC222" || chat != 2 {
		t.Fatalf("Subscribed = (%q,%d,%v), want replacement", feed, chat, ok)
	}
	sub, ok, err := st.Subscription(ctx)
	if err != nil || !ok || sub.FeedID != "UC222" {
		t.Fatalf("persisted slot = %+v ok=%v err=%v", sub, ok, err)
	}
}

func TestUnsubscribeAndRestore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _, st := newTestService(t, &fakeClient{})

	// Unsubscribing while idle reports no subscription.
	if had, err := svc.Unsubscribe(ctx); err != nil || had {
		t.Fatalf("idle Unsubscribe = (%v,%v)", had, err)
	}

	if err := svc.Subscribe(ctx, "UC111", 9); err != nil {
		t.Fatalf("Subscribe error: %v", err)
	}

	// A fresh service over the same store picks the slot back up.
	svc2 := NewService(Config{}, &fakeClient{}, st, &captureSender{}, logx.Nop())
	if err := svc2.Restore(ctx); err != nil {
		t.Fatalf("Restore error: %v", err)
	}
	if feed, chat, ok := svc2.Subscribed(); !ok || feed != "UC111" || chat != 9 {
		t.Fatalf("restored slot = (%q,%d,%v)", feed, chat, ok)
	}

	if had, err := svc.Unsubscribe(ctx); err != nil || !had {
		t.Fatalf("Unsubscribe = (%v,%v), want (true,nil)", had, err)
	}
	if _, ok, _ := st.Subscription(ctx); ok {
		t.Fatal("slot still persisted after unsubscribe")
	}
}
