package gentool

import (
	"fmt"
	"sync"
	"time"
)

// Limiter is a token bucket guarding calls to the generation tool. A
// nil Limiter admits everything, which is how rate limiting is turned
// off in config.
type Limiter struct {
	mu           sync.Mutex
	tokens       float64
	capacity     float64
	refillPerSec float64
	last         time.Time
	now          func() time.Time
	sleep        func(time.Duration)
}

type LimiterStats struct {
	Available float64 `json:"available_tokens"`
	Capacity  float64 `json:"capacity"`
}

func NewLimiter(capacity int, refillPerSec float64) *Limiter {
	if capacity <= 0 || refillPerSec <= 0 {
		return nil
	}
	l := &Limiter{
		tokens:       float64(capacity),
		capacity:     float64(capacity),
		refillPerSec: refillPerSec,
		now:          time.Now,
		sleep:        time.Sleep,
	}
	l.last = l.now()
	return l
}

func (l *Limiter) refill() {
	now := l.now()
	elapsed := now.Sub(l.last).Seconds()
	if elapsed > 0 {
		l.tokens += elapsed * l.refillPerSec
		if l.tokens > l.capacity {
			l.tokens = l.capacity
		}
	}
	l.last = now
}

// TryAcquire takes a token if one is available.
func (l *Limiter) TryAcquire() bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refill()
	if l.tokens >= 1.0 {
		l.tokens -= 1.0
		return true
	}
	return false
}

// Wait blocks until a token is available or the timeout passes.
func (l *Limiter) Wait(timeout time.Duration) error {
	if l == nil {
		return nil
	}
	deadline := l.now().Add(timeout)
	for {
		if l.TryAcquire() {
			return nil
		}
		if !l.now().Before(deadline) {
			return fmt.Errorf("rate limit: no token within %s", timeout)
		}
		interval := time.Duration(float64(time.Second) / l.refillPerSec)
		if interval > time.Second {
			interval = time.Second
		}
		l.sleep(interval)
	}
}

func (l *Limiter) Stats() LimiterStats {
	if l == nil {
		return LimiterStats{}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refill()
	return LimiterStats{Available: l.tokens, Capacity: l.capacity}
}
