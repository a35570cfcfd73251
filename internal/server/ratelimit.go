package server

import (
	"math"
	"sync"
	"time"
)

// tokenBucket allows bursts up to its capacity, refilling continuously so
// that a full burst becomes available again every refill interval.
type tokenBucket struct {
	mu     sync.Mutex
	tokens float64
	burst  float64
	perSec float64
	last   time.Time
}

func newTokenBucket(burst int, refillInterval time.Duration) *tokenBucket {
	if burst <= 0 {
		burst = 1
	}
	if refillInterval <= 0 {
		refillInterval = time.Second
	}

	return &tokenBucket{
		tokens: float64(burst),
		burst:  float64(burst),
		perSec: float64(burst) / refillInterval.Seconds(),
		last:   time.Now(),
	}
}

func (b *tokenBucket) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	b.tokens = math.Min(b.burst, b.tokens+now.Sub(b.last).Seconds()*b.perSec)
	b.last = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}
