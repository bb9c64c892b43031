package session

import (
	"testing"
	"time"
)

type fixedRandom struct {
	v float64
}

func (f fixedRandom) Float64() float64 {
	return f.v
}

func TestBackoffDelayGrowsToCap(t *testing.T) {
	b := Backoff{
		Base:   100 * time.Millisecond,
		Cap:    time.Second,
		Random: fixedRandom{v: 0.5},
	}

	// With jitter pinned to the midpoint the delay is the raw exponential.
	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		time.Second,
		time.Second,
	}
	for n, exp := range want {
		if got := b.Delay(n); got != exp {
			t.Errorf("Delay(%d) = %s, want %s", n, got, exp)
		}
	}
}

func TestBackoffJitterBounds(t *testing.T) {
	b := Backoff{
		Base:   100 * time.Millisecond,
		Cap:    time.Second,
		Random: fixedRandom{v: 0},
	}
	if got := b.Delay(0); got != 50*time.Millisecond {
		t.Errorf("Delay(0) at low jitter = %s, want 50ms", got)
	}

	b.Random = fixedRandom{v: 0.999}
	got := b.Delay(0)
	if got < 50*time.Millisecond || got >= 150*time.Millisecond {
		t.Errorf("Delay(0) at high jitter = %s, want within [50ms, 150ms)", got)
	}

	b.Random = nil
	got = b.Delay(3)
	if got < 400*time.Millisecond || got >= 1200*time.Millisecond {
		t.Errorf("Delay(3) with default jitter = %s, want within [400ms, 1.2s)", got)
	}
}
