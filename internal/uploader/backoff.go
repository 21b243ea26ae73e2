package uploader

import (
	"math/rand"
	"time"
)

// Backoff computes the wait before a retry. With Jitter the wait is scaled
// into [0.5, 1.0) of the nominal value so parallel uploads do not retry in
// lockstep.
type Backoff struct {
	Min    time.Duration
	Max    time.Duration
	Factor float64
	Jitter bool
}

func NewBackoff(min, max time.Duration, factor float64) *Backoff {
	return &Backoff{
		Min:    min,
		Max:    max,
		Factor: factor,
		Jitter: true,
	}
}

// Duration returns the wait before retry number attempt, counting from 1.
func (b *Backoff) Duration(attempt int) time.Duration {
	if attempt <= 0 {
		return b.Min
	}

	duration := float64(b.Min) * pow(b.Factor, attempt-1)
	if duration > float64(b.Max) {
		duration = float64(b.Max)
	}

	if b.Jitter {
		duration = duration * (0.5 + rand.Float64()*0.5)
	}

	return time.Duration(duration)
}

func pow(base float64, exp int) float64 {
	result := 1.0
	for i := 0; i < exp; i++ {
		result *= base
	}
	return result
}
