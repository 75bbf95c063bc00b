package dispatch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const idAttempts = 10

// shortID draws prefix-<unix>-<100..999>, checking each candidate with taken,
// and falls back to a UUID-derived suffix after idAttempts collisions.
func shortID(ctx context.Context, prefix string, now time.Time, rnd func(int) int, taken func(context.Context, string) (bool, error)) (string, error) {
	for i := 0; i < idAttempts; i++ {
		id := fmt.Sprintf("%s-%d-%d", prefix, now.Unix(), 100+rnd(900))
		exists, err := taken(ctx, id)
		if err != nil {
			return "", err
		}
		if !exists {
			return id, nil
		}
	}
	return fallbackID(prefix, now), nil
}

func fallbackID(prefix string, now time.Time) string {
	return fmt.Sprintf("%s-%d-%s", prefix, now.Unix(), strings.ToUpper(uuid.NewString()[:8]))
}

// unitID draws UNIT-<100..999> for new driver accounts, with the same fallback.
func unitID(ctx context.Context, rnd func(int) int, taken func(context.Context, string) (bool, error)) (string, error) {
	for i := 0; i < idAttempts; i++ {
		id := fmt.Sprintf("UNIT-%d", 100+rnd(900))
		exists, err := taken(ctx, id)
		if err != nil {
			return "", err
		}
		if !exists {
			return id, nil
		}
	}
	return "UNIT-" + strings.ToUpper(uuid.NewString()[:8]), nil
}
