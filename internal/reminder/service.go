package reminder

import (
	"context"
	"sync"
	"time"

	rtsup "remindbot/internal/runtime/supervisor"
	kit "remindbot/internal/transport"
	logx "remindbot/pkg/logx"
)

// Sender delivers formatted reminder messages.
type Sender interface {
	Send(n kit.Notification) error
}

type ServiceConfig struct {
	DrainInterval time.Duration // default 5s
}

// Service owns the periodic drain ticker. It must only be started once the
// transport can deliver, so reminders that came due while the bot was down
// drain into a working pipeline.
type Service struct {
	mu sync.Mutex

	queue  *Queue
	sender Sender
	log    logx.Logger
	cfg    ServiceConfig

	sup *rtsup.Supervisor
}

func NewService(cfg ServiceConfig, queue *Queue, sender Sender, log logx.Logger) *Service {
	if cfg.DrainInterval <= 0 {
		cfg.DrainInterval = 5 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{queue: queue, sender: sender, log: log, cfg: cfg}
}

func (s *Service) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sup != nil {
		return
	}
	s.sup = rtsup.New(ctx, rtsup.WithLogger(s.log))

	interval := s.cfg.DrainInterval
	s.sup.GoRestart("reminder.drain", func(c context.Context) error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-c.Done():
				return nil
			case <-ticker.C:
				// Each tick is fault-isolated: a failed drain is logged
				// and simply retried on the next interval.
				if err := s.Tick(c, time.Now()); err != nil {
					s.log.Warn("drain tick failed", logx.Err(err))
				}
			}
		}
	})
	s.log.Info("service started", logx.Duration("interval", interval))
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	sup := s.sup
	s.sup = nil
	s.mu.Unlock()

	if sup == nil {
		return
	}
	sup.Cancel()
	_ = sup.Wait(ctx)
	s.log.Info("service stopped")
}

// Tick drains everything due as of now and hands it to the sender.
//
// Records are already deleted when delivery is attempted: a drop here (full
// queue, dead transport) loses the reminder rather than redelivering it.
func (s *Service) Tick(ctx context.Context, now time.Time) error {
	due, err := s.queue.DrainDue(ctx, now)
	if err != nil {
		return err
	}
	for _, rec := range due {
		n := kit.Notification{
			Target: kit.ChatTarget{ChatID: rec.ChatID},
			Text:   deliveryText(rec),
		}
		if err := s.sender.Send(n); err != nil {
			s.log.Warn("reminder delivery dropped",
				logx.Int64("id", rec.ID), logx.Int64("chat", rec.ChatID), logx.Err(err))
		}
	}
	if len(due) > 0 {
		s.log.Info("reminders drained", logx.Int("count", len(due)))
	}
	return nil
}

func deliveryText(rec Record) string {
	text := "⏰ You have a reminder!"
	if rec.Payload != "" {
		text += "\n\n" + rec.Payload
	}
	return text
}
