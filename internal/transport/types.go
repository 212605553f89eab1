package transport

import "context"

// Message is one inbound chat message, already stripped of any
// platform-specific envelope.
type Message struct {
	ID           int
	ChatID       int64
	FromID       int64
	FromUsername string
	Text         string
}

// Update is one inbound event from the chat platform.
type Update struct {
	Message *Message
}

type ChatTarget struct {
	ChatID int64
}

type SendOptions struct {
	DisablePreview bool
}

// Notification is one outbound delivery. PhotoURL, when set, is sent as an
// attachment with Text as the caption.
type Notification struct {
	Target   ChatTarget
	Text     string
	PhotoURL string
	Options  *SendOptions
}

// Adapter is the chat transport contract. Start begins receiving updates
// into out; it must return only after the connection is established, so
// callers can sequence "start tickers after the bot is ready" on it.
type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) error
	SendPhoto(ctx context.Context, to ChatTarget, photoURL, caption string) error
}
