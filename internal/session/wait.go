package session

import (
	"context"
	"math/rand/v2"
	"time"
)

const (
	backoffBase = 10 * time.Millisecond
	backoffMax  = 500 * time.Millisecond
)

// Backoff returns a duration for attempt n (0-indexed) with jitter.
func Backoff(attempt int) time.Duration {
	base := backoffMax
	if attempt < 16 {
		base = min(backoffBase<<uint(attempt), backoffMax)
	}
	jitter := time.Duration(rand.Int64N(int64(base) / 2))
	return base + jitter
}

// AwaitImages polls s until no image probe is pending or ctx ends.
func AwaitImages(ctx context.Context, s *Session) error {
	for attempt := 0; ; attempt++ {
		s.Poll()
		if s.PendingImages() == 0 {
			return nil
		}
		timer := time.NewTimer(Backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
