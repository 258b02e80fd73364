package batch

import (
	"context"
	"time"
)

// DefaultCallDelay spaces consecutive creation calls so the issuer does not throttle us
const DefaultCallDelay = 500 * time.Millisecond

// Sleeper blocks for d, returning early only if ctx is done
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// SleepFunc adapts a function to Sleeper
type SleepFunc func(ctx context.Context, d time.Duration) error

func (f SleepFunc) Sleep(ctx context.Context, d time.Duration) error { return f(ctx, d) }

// WallSleeper waits on the real clock
var WallSleeper Sleeper = SleepFunc(func(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
})

// Pacer inserts a fixed delay before marketplace calls that must be spaced out
type Pacer struct {
	delay   time.Duration
	sleeper Sleeper
}

// NewPacer creates a pacer; a nil sleeper uses the wall clock
func NewPacer(delay time.Duration, sleeper Sleeper) *Pacer {
	if sleeper == nil {
		sleeper = WallSleeper
	}
	if delay < 0 {
		delay = 0
	}
	return &Pacer{delay: delay, sleeper: sleeper}
}

// Wait blocks for the configured delay
func (p *Pacer) Wait(ctx context.Context) error {
	if p.delay == 0 {
		return nil
	}
	return p.sleeper.Sleep(ctx, p.delay)
}

// Delay returns the configured delay
func (p *Pacer) Delay() time.Duration {
	return p.delay
}
