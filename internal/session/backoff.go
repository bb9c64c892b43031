package session

import (
	"math"
	"math/rand"
	"time"
)

// RandomSource supplies the randomness for retry jitter.
type RandomSource interface {
	Float64() float64
}

type defaultRandomSource struct{}

func (defaultRandomSource) Float64() float64 { return rand.Float64() }

// Backoff computes capped exponential retry delays with jitter.
type Backoff struct {
	Base   time.Duration
	Cap    time.Duration
	Random RandomSource
}

// Delay returns the wait before retry n (zero-based). The exponential
// value is capped, then jittered uniformly within half and one-and-a-half
// times itself.
func (b Backoff) Delay(n int) time.Duration {
	expo := float64(b.Base) * math.Pow(2, float64(n))
	capped := math.Min(expo, float64(b.Cap))

	random := b.Random
	if random == nil {
		random = defaultRandomSource{}
	}
	return time.Duration(capped * (0.5 + random.Float64()))
}
