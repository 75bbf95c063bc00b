package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"

	"ambulanceDispatch/internal/logger"
	"ambulanceDispatch/models"
)

type fakeNotifier struct {
	calls int
	err   error
}

func (f *fakeNotifier) Notify(context.Context, string, string, models.MessageKind) error {
	f.calls++
	return f.err
}

type fakeRedis struct {
	channels []string
	err      error
}

func (f *fakeRedis) Publish(ctx context.Context, channel string, message any) *redis.IntCmd {
	f.channels = append(f.channels, channel)
	cmd := redis.NewIntCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
	} else {
		cmd.SetVal(1)
	}
	return cmd
}

func TestChannel(t *testing.T) {
	if got := Channel("UNIT-07"); got != "dispatch:wake:UNIT-07" {
		t.Fatalf("Channel = %q", got)
	}
	if got := Channel(""); got != "dispatch:wake:ALL" {
		t.Fatalf("broadcast channel = %q", got)
	}
}

func TestPublisherWakesRecipientAfterDelivery(t *testing.T) {
	inbox := &fakeNotifier{}
	rdb := &fakeRedis{}
	p := NewPublisher(inbox, rdb, logger.Discard())

	if err := p.Notify(context.Background(), "UNIT-07", "go", models.MessageHQDispatch); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if inbox.calls != 1 || len(rdb.channels) != 1 || rdb.channels[0] != "dispatch:wake:UNIT-07" {
		t.Fatalf("calls=%d channels=%v", inbox.calls, rdb.channels)
	}
}

func TestPublisherSkipsWakeUpWhenDeliveryFails(t *testing.T) {
	inbox := &fakeNotifier{err: errors.New("store down")}
	rdb := &fakeRedis{}
	p := NewPublisher(inbox, rdb, logger.Discard())

	if err := p.Notify(context.Background(), "", "x", models.MessageHQBroadcast); err == nil {
		t.Fatalf("expected delivery error")
	}
	if len(rdb.channels) != 0 {
		t.Fatalf("published without a durable message: %v", rdb.channels)
	}
}

func TestPublisherIgnoresRedisFailure(t *testing.T) {
	p := NewPublisher(&fakeNotifier{}, &fakeRedis{err: errors.New("redis down")}, logger.Discard())
	if err := p.Notify(context.Background(), "UNIT-07", "x", models.MessageHQAlert); err != nil {
		t.Fatalf("redis failure leaked: %v", err)
	}
}
