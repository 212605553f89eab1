// Package notify is the outbound delivery pipeline: a bounded queue in
// front of the chat adapter with rate limiting and retry.
//
// Reminder drains and feed ticks enqueue here instead of calling the
// adapter directly, so a slow or flaky Telegram API never stalls a ticker.
package notify

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"

	rtsup "remindbot/internal/runtime/supervisor"
	kit "remindbot/internal/transport"
	logx "remindbot/pkg/logx"
)

var (
	ErrQueueFull = errors.New("notify queue full")
	ErrStopped   = errors.New("notify stopped")
)

type Config struct {
	Workers       int
	QueueSize     int
	RatePerSec    int
	RetryMax      int
	RetryBase     time.Duration
	RetryMaxDelay time.Duration
}

type Service struct {
	mu sync.Mutex

	log     logx.Logger
	adapter kit.Adapter

	cfg     Config
	limiter *rate.Limiter

	accepting bool
	queue     chan kit.Notification
	sup       *rtsup.Supervisor
}

func New(cfg Config, adapter kit.Adapter, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{adapter: adapter, log: log}
	s.applyLocked(cfg)
	return s
}

func (s *Service) applyLocked(cfg Config) {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 3
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = 10 * time.Second
	}
	s.cfg = cfg
	// Token bucket: burst = rate per sec, so short spikes don't block.
	s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
}

func (s *Service) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queue != nil {
		return
	}
	s.queue = make(chan kit.Notification, s.cfg.QueueSize)
	s.accepting = true
	s.sup = rtsup.New(ctx, rtsup.WithLogger(s.log))

	queue := s.queue
	for i := 0; i < s.cfg.Workers; i++ {
		s.sup.Go0("notify.worker", func(c context.Context) {
			for {
				select {
				case <-c.Done():
					return
				case n := <-queue:
					s.deliver(c, n)
				}
			}
		})
	}
	s.log.Info("service started",
		logx.Int("workers", s.cfg.Workers), logx.Int("queue", s.cfg.QueueSize))
}

// Apply updates rate limiting and retry settings live. Workers and queue
// size only take effect on the next Start.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyLocked(cfg)
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	s.accepting = false
	sup := s.sup
	s.sup = nil
	s.queue = nil
	s.mu.Unlock()

	if sup == nil {
		return
	}
	sup.Cancel()
	_ = sup.Wait(ctx)
	s.log.Info("service stopped")
}

// Send enqueues a notification without blocking.
func (s *Service) Send(n kit.Notification) error {
	s.mu.Lock()
	q := s.queue
	accepting := s.accepting
	s.mu.Unlock()

	if !accepting || q == nil {
		return ErrStopped
	}
	select {
	case q <- n:
		return nil
	default:
		return ErrQueueFull
	}
}

func (s *Service) deliver(ctx context.Context, n kit.Notification) {
	s.mu.Lock()
	cfg := s.cfg
	limiter := s.limiter
	s.mu.Unlock()

	if err := limiter.Wait(ctx); err != nil {
		return
	}

	var err error
	for attempt := 0; attempt <= cfg.RetryMax; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(cfg.RetryBase, cfg.RetryMaxDelay, attempt)
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
		}
		err = s.sendOnce(ctx, n)
		if err == nil {
			return
		}
		if errors.Is(err, context.Canceled) {
			return
		}
		s.log.Debug("delivery attempt failed",
			logx.Int64("chat", n.Target.ChatID), logx.Int("attempt", attempt+1), logx.Err(err))
	}
	s.log.Warn("delivery failed",
		logx.Int64("chat", n.Target.ChatID), logx.Int("attempts", cfg.RetryMax+1), logx.Err(err))
}

func (s *Service) sendOnce(ctx context.Context, n kit.Notification) error {
	if n.PhotoURL != "" {
		err := s.adapter.SendPhoto(ctx, n.Target, n.PhotoURL, n.Text)
		if err == nil {
			return nil
		}
		// A broken thumbnail should not swallow the message itself.
		s.log.Debug("photo send failed, falling back to text",
			logx.Int64("chat", n.Target.ChatID), logx.Err(err))
	}
	return s.adapter.SendText(ctx, n.Target, n.Text, n.Options)
}

func backoffDelay(base, max time.Duration, attempt int) time.Duration {
	d := base << (attempt - 1)
	if d > max || d <= 0 {
		d = max
	}
	// 20% jitter.
	if j := int64(d) / 5; j > 0 {
		d += time.Duration(rand.Int63n(j + 1))
	}
	return d
}
