package resilience

import (
	"context"
	"testing"
	"time"
)

func TestBackoff_LinearGrowth(t *testing.T) {
	b := Backoff{Base: 100 * time.Millisecond, Growth: GrowthLinear, Max: time.Minute}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 300 * time.Millisecond},
		{5, 500 * time.Millisecond},
	}
	for _, tt := range tests {
		if got := b.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestBackoff_ExponentialGrowth(t *testing.T) {
	b := Backoff{Base: 100 * time.Millisecond, Growth: GrowthExponential, Max: time.Minute}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
	}
	for _, tt := range tests {
		if got := b.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestBackoff_CapsAtMax(t *testing.T) {
	b := Backoff{Base: time.Second, Growth: GrowthExponential, Max: 5 * time.Second}
	if got := b.Delay(10); got != 5*time.Second {
		t.Errorf("Delay(10) = %v, want max 5s", got)
	}

	// Shift overflow for very large attempt numbers must also collapse to max.
	if got := b.Delay(80); got != 5*time.Second {
		t.Errorf("Delay(80) = %v, want max 5s", got)
	}
}

func TestBackoff_ZeroValueDefaults(t *testing.T) {
	var b Backoff
	if got := b.Delay(1); got != time.Second {
		t.Errorf("Delay(1) = %v, want 1s default base", got)
	}
	if got := b.Delay(2); got != 2*time.Second {
		t.Errorf("Delay(2) = %v, want 2s (exponential default)", got)
	}
}

func TestBackoff_WaitCancelled(t *testing.T) {
	b := Backoff{Base: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := b.Wait(ctx, 1); err == nil {
		t.Fatal("expected error from cancelled wait")
	}
}

func TestBackoff_WaitElapses(t *testing.T) {
	b := Backoff{Base: time.Millisecond, Growth: GrowthLinear}
	if err := b.Wait(context.Background(), 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
