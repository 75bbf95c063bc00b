package notify

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// messageSource is the part of a redis subscription the Waiter reads from.
type messageSource interface {
	Channel(opts ...redis.ChannelOption) <-chan *redis.Message
	Close() error
}

// Waiter blocks a driver loop until a wake-up arrives for the driver (or for
// everyone) or the poll interval elapses, whichever is first.
type Waiter struct {
	src messageSource
	ch  <-chan *redis.Message
}

func newWaiter(src messageSource) *Waiter {
	return &Waiter{src: src, ch: src.Channel()}
}

// Subscribe listens on the driver's own channel and the broadcast channel.
func Subscribe(ctx context.Context, client *redis.Client, driverID string) (*Waiter, error) {
	sub := client.Subscribe(ctx, Channel(driverID), Channel(""))
	// Receive the subscription confirmation so errors surface here.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}
	return newWaiter(sub), nil
}

// Wait returns true when woken by a message and false on timeout or cancellation.
func (w *Waiter) Wait(ctx context.Context, timeout time.Duration) bool {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case _, ok := <-w.ch:
		return ok
	case <-t.C:
		return false
	case <-ctx.Done():
		return false
	}
}

func (w *Waiter) Close() error { return w.src.Close() }
