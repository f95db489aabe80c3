package notify

import "context"

// Message is a rendered post bound for one chat thread.
type Message struct {
	ChatID          int64
	MessageThreadID int64
	Text            string
}

// Notifier delivers rendered posts to a chat destination.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// Noop swallows messages. Used in dry-run mode.
type Noop struct{}

func (Noop) Send(ctx context.Context, msg Message) error { return nil }
