package shared

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"realty_site/internal/domain"
)

// Retrier retries vendor calls that fail with a rate-limit signal.
// Delays grow as BaseDelay * 2^attempt (1s, 2s, 4s with the defaults).
type Retrier struct {
	MaxRetries int
	BaseDelay  time.Duration

	// Sleep waits for d or returns false when ctx is done. Nil means a real timer.
	Sleep func(ctx context.Context, d time.Duration) bool
}

func NewRetrier(maxRetries int, base time.Duration) *Retrier {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if base <= 0 {
		base = time.Second
	}
	return &Retrier{MaxRetries: maxRetries, BaseDelay: base}
}

// Do runs fn until it succeeds, fails with a non-rate-limit error, or retries run out.
func Do[T any](ctx context.Context, r *Retrier, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	for attempt := 0; ; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if r == nil || !IsRateLimited(err) || attempt >= r.MaxRetries {
			return zero, err
		}
		wait := r.BaseDelay * time.Duration(1<<attempt)
		log.Warn().Err(err).Int("attempt", attempt+1).Dur("wait", wait).Msg("rate limited, backing off")
		if !r.sleep(ctx, wait) {
			return zero, ctx.Err()
		}
	}
}

func (r *Retrier) sleep(ctx context.Context, d time.Duration) bool {
	if r.Sleep != nil {
		return r.Sleep(ctx, d)
	}
	return SleepCtx(ctx, d)
}

// IsRateLimited reports whether err carries a rate-limit signal: a 429 from a vendor,
// domain.ErrRateLimited, or a message mentioning the limit.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, domain.ErrRateLimited) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "rate limit") ||
		strings.Contains(low, "too many requests") ||
		strings.Contains(low, "status 429")
}

// SleepCtx waits for d or returns early if ctx is done.
func SleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
