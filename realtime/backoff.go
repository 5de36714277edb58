package realtime

import (
	"math"
	"math/rand/v2"
	"time"
)

// Backoff computes reconnect delays: exponential growth from Initial,
// capped at Max, with up to 25% jitter.
type Backoff struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	Jitter     bool
}

// Delay returns the delay before reconnect attempt n (1-based).
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	multiplier := b.Multiplier
	if multiplier <= 0 {
		multiplier = 2
	}
	delay := b.Max
	if scaled := float64(b.Initial) * math.Pow(multiplier, float64(attempt-1)); scaled < float64(b.Max) {
		delay = time.Duration(scaled)
	}
	if b.Jitter && delay >= 4 {
		// #nosec G404 -- jitter is non-cryptographic timing variance.
		delay += time.Duration(rand.Int64N(int64(delay / 4)))
	}
	return delay
}
