// Package pacer holds the waiting rules of the ingestion pipeline: the gap between
// items and the cooldown after the AI provider signals rate limiting.
package pacer

import (
	"context"
	"math/rand"
	"time"
)

// Sleeper waits for d or until ctx is done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// TimerSleeper is the real-time Sleeper.
type TimerSleeper struct{}

func (TimerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

const maxCooldown = 2 * time.Minute

// Policy decides how long the pipeline waits.
type Policy struct {
	// ItemDelay separates consecutive messages, whether or not the previous one succeeded.
	ItemDelay time.Duration
	// RateLimitCooldown is the wait after a rate-limit signal that carried no suggestion.
	// It doubles with every further attempt on the same message.
	RateLimitCooldown time.Duration
	// MaxAttempts bounds analysis attempts per message, counting the first.
	MaxAttempts int
	// Jitter adds up to this much random time to ItemDelay.
	Jitter time.Duration

	Sleeper Sleeper
	rnd     func() float64
}

func NewPolicy(itemDelay, cooldown time.Duration, maxAttempts int, jitter time.Duration) *Policy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Policy{
		ItemDelay:         itemDelay,
		RateLimitCooldown: cooldown,
		MaxAttempts:       maxAttempts,
		Jitter:            jitter,
		Sleeper:           TimerSleeper{},
		rnd:               rand.Float64,
	}
}

// WithSleeper replaces the sleeper, typically with a fake in tests.
func (p *Policy) WithSleeper(s Sleeper) *Policy {
	p.Sleeper = s
	return p
}

// NextDelay is the wait after finishing a message.
func (p *Policy) NextDelay() time.Duration {
	if p.Jitter <= 0 || p.rnd == nil {
		return p.ItemDelay
	}
	return p.ItemDelay + time.Duration(p.rnd()*float64(p.Jitter))
}

// Cooldown is the wait after attempt number attempt (1-based) was rate limited.
// A provider suggestion wins over the configured backoff.
func (p *Policy) Cooldown(suggested time.Duration, attempt int) time.Duration {
	if suggested > 0 {
		return suggested
	}
	d := p.RateLimitCooldown
	for i := 1; i < attempt && d < maxCooldown; i++ {
		d *= 2
	}
	if d > maxCooldown {
		d = maxCooldown
	}
	return d
}

// Sleep waits using the configured Sleeper.
func (p *Policy) Sleep(ctx context.Context, d time.Duration) error {
	if p.Sleeper == nil {
		return TimerSleeper{}.Sleep(ctx, d)
	}
	return p.Sleeper.Sleep(ctx, d)
}
