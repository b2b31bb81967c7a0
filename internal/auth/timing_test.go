package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimingDelay_WaitFrom_OnFailure(t *testing.T) {
	timing := NewTimingDelay(TimingConfig{BaseDelayMs: 100, RandomDelayMs: 50})
	start := time.Now()

	timing.WaitFrom(context.Background(), start, false)

	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
	assert.Less(t, elapsed, 300*time.Millisecond)
}

func TestTimingDelay_WaitFrom_OnSuccess_NoDelay(t *testing.T) {
	timing := NewTimingDelay(TimingConfig{BaseDelayMs: 100, RandomDelayMs: 50})
	start := time.Now()

	timing.WaitFrom(context.Background(), start, true)

	assert.Less(t, time.Since(start), 10*time.Millisecond)
}

func TestTimingDelay_WaitFrom_OnSuccess_WithDelay(t *testing.T) {
	timing := NewTimingDelay(TimingConfig{BaseDelayMs: 100, DelayOnSuccess: true})
	start := time.Now()

	timing.WaitFrom(context.Background(), start, true)

	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}

func TestTimingDelay_WaitFrom_CountsElapsedWork(t *testing.T) {
	timing := NewTimingDelay(TimingConfig{BaseDelayMs: 50})
	// work already took longer than the delay
	start := time.Now().Add(-time.Second)

	before := time.Now()
	timing.WaitFrom(context.Background(), start, false)

	assert.Less(t, time.Since(before), 10*time.Millisecond)
}

func TestTimingDelay_WaitFrom_StopsOnCancel(t *testing.T) {
	timing := NewTimingDelay(TimingConfig{BaseDelayMs: 5000})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	timing.WaitFrom(ctx, start, false)

	assert.Less(t, time.Since(start), time.Second)
}

func TestTimingDelay_NilIsNoop(t *testing.T) {
	var timing *TimingDelay
	start := time.Now()
	timing.WaitFrom(context.Background(), start, false)
	assert.Less(t, time.Since(start), 10*time.Millisecond)
}

func TestCryptoRandIntn(t *testing.T) {
	for i := 0; i < 100; i++ {
		n, err := cryptoRandIntn(10)
		assert.NoError(t, err)
		assert.GreaterOrEqual(t, n, 0)
		assert.Less(t, n, 10)
	}

	n, err := cryptoRandIntn(0)
	assert.NoError(t, err)
	assert.Equal(t, 0, n)
}
