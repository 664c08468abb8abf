package notifier

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Notifier delivers a notification text to one subscriber address. A failed
// delivery must be non-fatal to the caller.
type Notifier interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// noopNotifier logs instead of delivering; used when no bot token is set.
type noopNotifier struct {
	log *logrus.Logger
}

// NewNoopNotifier creates a notifier that only logs outgoing messages.
func NewNoopNotifier(log *logrus.Logger) Notifier {
	return &noopNotifier{log: log}
}

func (n *noopNotifier) Send(ctx context.Context, chatID int64, text string) error {
	n.log.WithFields(logrus.Fields{
		"chat_id": chatID,
		"text":    text,
	}).Debug("Notification suppressed (no notifier configured)")
	return nil
}
