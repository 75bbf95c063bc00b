package dispatch

import (
	"context"
	"time"

	"ambulanceDispatch/models"
	"ambulanceDispatch/repository"
)

// Notifier delivers a message to a driver (or models.BroadcastTarget).
// Delivery is append-only; the driver reads it on its next inbox poll.
type Notifier interface {
	Notify(ctx context.Context, target, text string, kind models.MessageKind) error
}

// InboxNotifier writes notifications to the durable communication log.
type InboxNotifier struct {
	messages repository.MessageRepositoryI
	now      func() time.Time
}

// NewInboxNotifier returns a Notifier backed by the driver_comms table.
func NewInboxNotifier(messages repository.MessageRepositoryI, now func() time.Time) *InboxNotifier {
	if now == nil {
		now = time.Now
	}
	return &InboxNotifier{messages: messages, now: now}
}

func (n *InboxNotifier) Notify(ctx context.Context, target, text string, kind models.MessageKind) error {
	if target == "" {
		target = models.BroadcastTarget
	}
	_, err := n.messages.Append(ctx, models.Message{CreatedAt: n.now().UTC(), DriverID: target, Kind: kind, Text: text})
	return err
}
