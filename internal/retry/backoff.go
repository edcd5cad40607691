package retry

import (
	"math"
	"time"
)

// Backoff computes capped exponential delays.
type Backoff struct {
	Base       time.Duration
	Max        time.Duration
	Multiplier float64
	Jitter     bool
}

// Delay returns min(Base * Multiplier^attempt, Max) for a zero-based attempt.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	mult := b.Multiplier
	if mult < 1 {
		mult = 1
	}

	d := float64(b.Base) * math.Pow(mult, float64(attempt))
	if b.Max > 0 && (d > float64(b.Max) || math.IsInf(d, 0)) {
		return b.Max
	}
	if d > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

// Jittered scales Delay(attempt) by r, expected in [0,1). Without jitter the
// capped delay is returned unchanged.
func (b Backoff) Jittered(attempt int, r float64) time.Duration {
	d := b.Delay(attempt)
	if !b.Jitter {
		return d
	}
	if r < 0 {
		r = 0
	}
	if r > 1 {
		r = 1
	}
	return time.Duration(r * float64(d))
}
