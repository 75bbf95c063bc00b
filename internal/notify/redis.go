// Package notify layers an optional Redis wake-up channel over the durable
// inbox. Redis only shortens the wait before a driver's next poll; the inbox
// and mission rows in the shared store stay the source of truth.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"ambulanceDispatch/models"
)

const channelPrefix = "dispatch:wake:"

// Channel returns the wake-up channel of a driver, or the broadcast channel
// for models.BroadcastTarget.
func Channel(target string) string {
	if target == "" {
		target = models.BroadcastTarget
	}
	return channelPrefix + target
}

// NewClient connects to Redis and pings it once.
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	cli := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := cli.Ping(ctx).Err(); err != nil {
		_ = cli.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return cli, nil
}
