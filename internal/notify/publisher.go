package notify

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"ambulanceDispatch/internal/dispatch"
	"ambulanceDispatch/models"
)

// publisher is the subset of *redis.Client used to send wake-ups.
type publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// Publisher wraps a Notifier and, after every successful delivery, publishes
// the new message kind on the recipient's wake-up channel.
type Publisher struct {
	next   dispatch.Notifier
	client publisher
	log    zerolog.Logger
}

var _ dispatch.Notifier = (*Publisher)(nil)

func NewPublisher(next dispatch.Notifier, client publisher, log zerolog.Logger) *Publisher {
	return &Publisher{next: next, client: client, log: log.With().Str("component", "notify").Logger()}
}

// Notify delivers through the wrapped Notifier first; a failed publish is only logged.
func (p *Publisher) Notify(ctx context.Context, target, text string, kind models.MessageKind) error {
	if err := p.next.Notify(ctx, target, text, kind); err != nil {
		return err
	}
	ch := Channel(target)
	if err := p.client.Publish(ctx, ch, string(kind)).Err(); err != nil {
		p.log.Debug().Err(err).Str("channel", ch).Msg("wake-up not published")
	}
	return nil
}
