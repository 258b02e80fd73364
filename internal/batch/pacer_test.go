package batch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacerWaitsFixedDelay(t *testing.T) {
	var waits []time.Duration
	p := NewPacer(DefaultCallDelay, SleepFunc(func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}))

	require.NoError(t, p.Wait(context.Background()))
	require.NoError(t, p.Wait(context.Background()))
	assert.Equal(t, []time.Duration{500 * time.Millisecond, 500 * time.Millisecond}, waits)
}

func TestPacerZeroDelaySkipsSleeper(t *testing.T) {
	p := NewPacer(0, SleepFunc(func(ctx context.Context, d time.Duration) error {
		t.Fatal("sleeper called")
		return nil
	}))
	assert.NoError(t, p.Wait(context.Background()))
	assert.Equal(t, time.Duration(0), NewPacer(-time.Second, nil).Delay())
}

func TestWallSleeperStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewPacer(time.Hour, nil).Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
