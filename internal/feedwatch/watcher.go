// Package feedwatch polls an external video feed for its newest item and
// announces it to a subscribed chat.
//
// There is a single subscription slot: subscribing again replaces it,
// last write wins. Dedup works on minute buckets so overlapping poll
// cycles never announce the same upload twice.
package feedwatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"remindbot/internal/storage"
	kit "remindbot/internal/transport"
	logx "remindbot/pkg/logx"
)

// ErrNoItems reports a feed response with no entries. It is a per-tick
// condition, not a reason to drop the subscription.
var ErrNoItems = errors.New("feed has no items")

// Item is the newest entry of a feed.
type Item struct {
	ID           string
	Title        string
	PublishedAt  time.Time
	ThumbnailURL string
}

// Client queries the external feed API.
type Client interface {
	LatestItem(ctx context.Context, feedID string) (Item, error)
}

// Sender delivers feed announcements.
type Sender interface {
	Send(n kit.Notification) error
}

type Config struct {
	// PollSchedule is a cron spec or descriptor (default "@every 60s").
	PollSchedule string
}

type Service struct {
	mu sync.Mutex

	client Client
	store  storage.Store
	sender Sender
	log    logx.Logger

	schedule string
	cron     *cron.Cron

	// Active subscription (empty feedID means idle) and dedup state.
	feedID     string
	chatID     int64
	lastItemID string
	lastBucket time.Time
}

func NewService(cfg Config, client Client, store storage.Store, sender Sender, log logx.Logger) *Service {
	schedule := cfg.PollSchedule
	if schedule == "" {
		schedule = "@every 60s"
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		client:   client,
		store:    store,
		sender:   sender,
		log:      log,
		schedule: schedule,
	}
}

// Start restores the persisted subscription and begins polling.
func (s *Service) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := s.Restore(ctx); err != nil {
		// A broken slot read shouldn't block startup; the user can
		// re-subscribe.
		s.log.Warn("subscription restore failed", logx.Err(err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return nil
	}

	// SecondOptional allows both 5-field and 6-field cron specs.
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	c := cron.New(cron.WithParser(parser))
	_, err := c.AddFunc(s.schedule, func() {
		tickCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := s.Tick(tickCtx, time.Now()); err != nil {
			s.log.Warn("feed tick failed", logx.Err(err))
		}
	})
	if err != nil {
		return err
	}
	s.cron = c
	c.Start()
	s.log.Info("service started", logx.String("schedule", s.schedule))
	return nil
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
		// best-effort; an in-flight tick runs to completion
	}
	s.log.Info("service stopped")
}

// Restore loads the persisted subscription slot into memory.
func (s *Service) Restore(ctx context.Context) error {
	sub, ok, err := s.store.Subscription(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	s.mu.Lock()
	s.feedID = sub.FeedID
	s.chatID = sub.ChatID
	s.mu.Unlock()
	s.log.Info("subscription restored",
		logx.String("feed", sub.FeedID), logx.Int64("chat", sub.ChatID))
	return nil
}

// Subscribe sets (or replaces) the single subscription slot. Dedup state is
// intentionally kept: a different item ID resets it on the next tick anyway.
func (s *Service) Subscribe(ctx context.Context, feedID string, chatID int64) error {
	if err := s.store.PutSubscription(ctx, storage.Subscription{FeedID: feedID, ChatID: chatID}); err != nil {
		return err
	}
	s.mu.Lock()
	s.feedID = feedID
	s.chatID = chatID
	s.mu.Unlock()
	s.log.Info("subscribed", logx.String("feed", feedID), logx.Int64("chat", chatID))
	return nil
}

// Unsubscribe clears the slot. Returns false if there was no subscription.
func (s *Service) Unsubscribe(ctx context.Context) (bool, error) {
	s.mu.Lock()
	had := s.feedID != ""
	s.feedID = ""
	s.chatID = 0
	s.mu.Unlock()

	if err := s.store.ClearSubscription(ctx); err != nil {
		return had, err
	}
	if had {
		s.log.Info("unsubscribed")
	}
	return had, nil
}

// Subscribed reports the current slot (ok=false when idle).
func (s *Service) Subscribed() (feedID string, chatID int64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.feedID, s.chatID, s.feedID != ""
}

// Tick performs one poll cycle. Exported so the tick body is testable with
// a controlled clock.
//
// Delivery rule: announce only when the item's publish minute equals the
// current minute and that bucket has not been announced yet. Old items are
// never announced, and repeated polls inside the same minute stay silent.
func (s *Service) Tick(ctx context.Context, now time.Time) error {
	s.mu.Lock()
	feedID := s.feedID
	chatID := s.chatID
	s.mu.Unlock()

	if feedID == "" {
		return nil
	}

	item, err := s.client.LatestItem(ctx, feedID)
	if err != nil {
		// Transient: keep the subscription, retry next tick.
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.feedID != feedID {
		// Subscription changed while the fetch was in flight.
		return nil
	}

	if item.ID != s.lastItemID {
		s.lastItemID = item.ID
		s.lastBucket = time.Time{}
	}

	nowBucket := now.UTC().Truncate(time.Minute)
	pubBucket := item.PublishedAt.UTC().Truncate(time.Minute)
	if !pubBucket.Equal(nowBucket) {
		return nil
	}
	if s.lastBucket.Equal(pubBucket) {
		return nil
	}

	n := kit.Notification{
		Target:   kit.ChatTarget{ChatID: chatID},
		Text:     "📺 New upload: " + item.Title,
		PhotoURL: item.ThumbnailURL,
	}
	if err := s.sender.Send(n); err != nil {
		return err
	}
	s.lastBucket = pubBucket
	s.log.Info("feed item announced",
		logx.String("feed", feedID), logx.String("item", item.ID))
	return nil
}
