package asock

import (
	"math"
	"math/rand"
	"time"
)

// Delay policy between reconnect attempts.
//
// With max <= min the delay is constant. Otherwise it grows
// exponentially from min and is capped at max.
type backoff struct {
	min    time.Duration
	max    time.Duration
	factor float64
	jitter float64
}

func newBackoff(min time.Duration, max time.Duration, jitter float32) *backoff {
	if jitter <= 0 || jitter > 1 {
		jitter = 0
	}
	if min < 0 {
		min = 0
	}
	return &backoff{
		min:    min,
		max:    max,
		factor: 2,
		jitter: float64(jitter),
	}
}

func (b *backoff) exponential() bool { return b.max > b.min }

// Delay before the given reconnect attempt. Attempts start from 1.
func (b *backoff) duration(attempt uint32) time.Duration {
	if b.min == 0 {
		return 0
	}

	d := float64(b.min)
	if b.exponential() && attempt > 1 {
		d *= math.Pow(b.factor, float64(attempt-1))
	}

	if b.jitter > 0 {
		r := rand.Float64()
		deviation := math.Floor(r * b.jitter * d)
		if int64(math.Floor(r*10))&1 == 0 {
			d -= deviation
		} else {
			d += deviation
		}
	}

	if b.exponential() && (d > float64(b.max) || math.IsInf(d, 0)) {
		return b.max
	}
	if d <= 0 {
		return b.min
	}
	return time.Duration(d)
}
