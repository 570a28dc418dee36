package resilience

import (
	"context"
	"fmt"
	"time"
)

// Growth selects how the delay between retry attempts increases.
type Growth string

const (
	// GrowthLinear waits Base, 2·Base, 3·Base, …
	GrowthLinear Growth = "linear"

	// GrowthExponential waits Base, 2·Base, 4·Base, …
	GrowthExponential Growth = "exponential"
)

// IsValid reports whether g is a recognised growth policy.
func (g Growth) IsValid() bool {
	return g == GrowthLinear || g == GrowthExponential
}

// Backoff computes the wait between bounded retry attempts. The zero value
// is usable: one second base, exponential growth, capped at 30 seconds.
type Backoff struct {
	// Base is the delay after the first failed attempt. Default: 1s.
	Base time.Duration

	// Growth selects linear or exponential increase. Default: exponential.
	Growth Growth

	// Max caps the computed delay. Default: 30s.
	Max time.Duration
}

// Delay returns the wait before attempt n+1, where n is the 1-based number
// of the attempt that just failed.
func (b Backoff) Delay(n int) time.Duration {
	base := b.Base
	if base <= 0 {
		base = time.Second
	}
	max := b.Max
	if max <= 0 {
		max = 30 * time.Second
	}
	if n < 1 {
		n = 1
	}

	var d time.Duration
	switch b.Growth {
	case GrowthLinear:
		d = base * time.Duration(n)
	default:
		d = base << (n - 1)
		// Shift overflow or absurd growth collapses to the cap.
		if d <= 0 {
			d = max
		}
	}
	if d > max {
		d = max
	}
	return d
}

// Wait sleeps for Delay(n) or until ctx is done, whichever comes first.
func (b Backoff) Wait(ctx context.Context, n int) error {
	t := time.NewTimer(b.Delay(n))
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("resilience: backoff wait: %w", ctx.Err())
	}
}
