// Package router turns inbound chat messages into reminder and feed
// operations and writes the replies back through the transport adapter.
package router

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"remindbot/internal/feedwatch"
	"remindbot/internal/reminder"
	"remindbot/internal/storage"
	"remindbot/internal/temporal"
	kit "remindbot/internal/transport"
	logx "remindbot/pkg/logx"
)

const helpText = `Commands:
/remind add <dd/mm/yyyy-HH:MM:SS> [description] - schedule a reminder
  (date-only or time-only also works, e.g. "18/01/2026" or "09:30")
/remind ls - list your reminders
/remind del <index> - delete one reminder by its /remind ls position
/remind del all - delete all your reminders
/listen <channelID> - watch a channel for new uploads
/listen del - stop watching`

// Router dispatches inbound updates to command handlers. One handler runs
// per update; a panic in a handler is contained to that update.
type Router struct {
	adapter kit.Adapter
	queue   *reminder.Queue
	feed    *feedwatch.Service
	log     logx.Logger

	// Wall-clock zone for parsing and rendering reminder times.
	// nil means host-local. Swapped on config reload.
	offset atomic.Pointer[time.Duration]

	now func() time.Time
}

func New(adapter kit.Adapter, queue *reminder.Queue, feed *feedwatch.Service, log logx.Logger) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Router{
		adapter: adapter,
		queue:   queue,
		feed:    feed,
		log:     log,
		now:     time.Now,
	}
}

// SetOffset updates the wall-clock zone. Safe to call during hot-reload.
func (r *Router) SetOffset(off *time.Duration) {
	r.offset.Store(off)
}

// DispatchLoop drains the update channel until ctx is canceled or the
// channel closes. Run it under the supervisor.
func (r *Router) DispatchLoop(ctx context.Context, updates <-chan kit.Update) error {
	r.log.Info("dispatcher started")
	for {
		select {
		case <-ctx.Done():
			r.log.Info("dispatcher stopped")
			return nil
		case up, ok := <-updates:
			if !ok {
				r.log.Info("dispatcher stopped (updates channel closed)")
				return nil
			}
			r.handleUpdate(ctx, up)
		}
	}
}

func (r *Router) handleUpdate(ctx context.Context, up kit.Update) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("panic in command handler",
				logx.Any("panic", rec),
				logx.String("stack", string(debug.Stack())))
		}
	}()

	if up.Message == nil {
		return
	}
	msg := up.Message
	text := strings.TrimSpace(msg.Text)
	if !strings.HasPrefix(text, "/") {
		return
	}

	parts := strings.Fields(text)
	word := strings.TrimPrefix(parts[0], "/")
	// strip the @botname suffix Telegram appends in groups
	if i := strings.IndexByte(word, '@'); i >= 0 {
		word = word[:i]
	}
	args := parts[1:]

	chat := kit.ChatTarget{ChatID: msg.ChatID}
	log := r.log.With(
		logx.Int64("chat_id", msg.ChatID),
		logx.Int64("from_id", msg.FromID),
		logx.String("cmd", word),
	)

	var reply string
	switch word {
	case "remind":
		reply = r.handleRemind(ctx, msg, args, log)
	case "listen":
		reply = r.handleListen(ctx, chat, args, log)
	case "help", "start":
		reply = helpText
	default:
		return
	}
	if reply == "" {
		return
	}
	if err := r.adapter.SendText(ctx, chat, reply, &kit.SendOptions{DisablePreview: true}); err != nil {
		log.Warn("reply send failed", logx.Err(err))
	}
}

func (r *Router) handleRemind(ctx context.Context, msg *kit.Message, args []string, log logx.Logger) string {
	if len(args) == 0 {
		return helpText
	}
	sub := strings.ToLower(args[0])
	rest := args[1:]

	switch sub {
	case "add":
		return r.remindAdd(ctx, msg, rest, log)
	case "ls":
		return r.remindList(ctx, msg.FromID, log)
	case "del":
		return r.remindDelete(ctx, msg.FromID, rest, log)
	default:
		return helpText
	}
}

func (r *Router) remindAdd(ctx context.Context, msg *kit.Message, args []string, log logx.Logger) string {
	if len(args) == 0 {
		return helpText
	}
	payload := strings.Join(args[1:], " ")
	off := r.offset.Load()

	rec, err := reminder.NewRecord(msg.FromID, msg.ChatID, args[0], r.now(), off)
	switch {
	case errors.Is(err, temporal.ErrMalformed):
		return fmt.Sprintf("I can't read %q as a date or time. Use dd/mm/yyyy-HH:MM:SS.", args[0])
	case errors.Is(err, reminder.ErrPastDue):
		return "That time is already in the past."
	case err != nil:
		log.Error("reminder construction failed", logx.Err(err))
		return "Something went wrong, try again later."
	}
	rec.Payload = payload

	if err := r.queue.Insert(ctx, &rec); err != nil {
		log.Error("reminder insert failed", logx.Err(err))
		return "Something went wrong, try again later."
	}
	log.Info("reminder added", logx.Int64("id", rec.ID), logx.Time("due_at", rec.DueAt))
	return "⏰ Reminder set for " + rec.DisplayTime(off)
}

func (r *Router) remindList(ctx context.Context, ownerID int64, log logx.Logger) string {
	recs, err := r.queue.ListForOwner(ctx, ownerID)
	if err != nil {
		log.Error("reminder list failed", logx.Err(err))
		return "Something went wrong, try again later."
	}
	if len(recs) == 0 {
		return "You have no reminders."
	}
	off := r.offset.Load()
	var b strings.Builder
	b.WriteString("Your reminders:\n")
	for i, rec := range recs {
		fmt.Fprintf(&b, "%d: %s", i, rec.DisplayTime(off))
		if rec.Payload != "" {
			b.WriteString(" " + rec.Payload)
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

func (r *Router) remindDelete(ctx context.Context, ownerID int64, args []string, log logx.Logger) string {
	if len(args) == 0 {
		return helpText
	}

	if strings.EqualFold(args[0], "all") {
		n, err := r.queue.DeleteAll(ctx, ownerID)
		if err != nil {
			log.Error("reminder delete-all failed", logx.Err(err))
			return "Something went wrong, try again later."
		}
		log.Info("reminders cleared", logx.Int64("count", n))
		return fmt.Sprintf("Deleted %d reminder(s).", n)
	}

	idx, err := strconv.Atoi(args[0])
	if err != nil {
		return helpText
	}
	rec, err := r.queue.DeleteAt(ctx, ownerID, idx)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return fmt.Sprintf("No reminder at position %d. Check /remind ls.", idx)
	case err != nil:
		log.Error("reminder delete failed", logx.Err(err))
		return "Something went wrong, try again later."
	}
	log.Info("reminder deleted", logx.Int64("id", rec.ID))
	return "Deleted reminder for " + rec.DisplayTime(r.offset.Load())
}

func (r *Router) handleListen(ctx context.Context, chat kit.ChatTarget, args []string, log logx.Logger) string {
	if len(args) == 0 {
		return helpText
	}

	if strings.EqualFold(args[0], "del") {
		had, err := r.feed.Unsubscribe(ctx)
		if err != nil {
			log.Error("unsubscribe failed", logx.Err(err))
			return "Something went wrong, try again later."
		}
		if !had {
			return "Not watching any channel."
		}
		return "Stopped watching."
	}

	feedID := args[0]
	if err := r.feed.Subscribe(ctx, feedID, chat.ChatID); err != nil {
		log.Error("subscribe failed", logx.Err(err))
		return "Something went wrong, try again later."
	}
	return "📺 Watching " + feedID + " for new uploads."
}
