// Package ratelimit throttles inbound requests per client with a sliding
// window.
package ratelimit

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Remaining  int
	Reset      time.Time // when the oldest request in the window expires
	RetryAfter int       // seconds; only set when not allowed
}

type bucket struct {
	mu         sync.Mutex
	timestamps []time.Time
	lastAccess time.Time
}

// SlidingWindow allows at most limit requests per identifier within any
// window of the configured duration.
type SlidingWindow struct {
	buckets   sync.Map // identifier -> *bucket
	window    time.Duration
	limit     int
	now       func() time.Time
	stop      chan struct{}
	stopOnce  sync.Once
	cleanupWG sync.WaitGroup
}

// NewSlidingWindow starts a limiter. Idle buckets are dropped every
// cleanupInterval.
func NewSlidingWindow(window time.Duration, limit int, cleanupInterval time.Duration) *SlidingWindow {
	sw := &SlidingWindow{
		window: window,
		limit:  limit,
		now:    time.Now,
		stop:   make(chan struct{}),
	}
	if cleanupInterval > 0 {
		sw.cleanupWG.Add(1)
		go sw.cleanupLoop(cleanupInterval)
	}
	return sw
}

// Limit returns the per-window request limit.
func (sw *SlidingWindow) Limit() int {
	return sw.limit
}

// Allow records a request for identifier if it fits in the window.
func (sw *SlidingWindow) Allow(identifier string) Decision {
	now := sw.now()

	v, _ := sw.buckets.LoadOrStore(identifier, &bucket{lastAccess: now})
	b := v.(*bucket)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastAccess = now
	b.expire(now.Add(-sw.window))

	if len(b.timestamps) >= sw.limit {
		reset := now.Add(sw.window)
		if len(b.timestamps) > 0 {
			reset = b.timestamps[0].Add(sw.window)
		}
		retry := int(reset.Sub(now).Seconds())
		if retry <= 0 {
			retry = 1
		}
		return Decision{Allowed: false, Reset: reset, RetryAfter: retry}
	}

	b.timestamps = append(b.timestamps, now)
	return Decision{
		Allowed:   true,
		Remaining: sw.limit - len(b.timestamps),
		Reset:     b.timestamps[0].Add(sw.window),
	}
}

// expire drops timestamps at or before cutoff.
func (b *bucket) expire(cutoff time.Time) {
	i := 0
	for i < len(b.timestamps) && !b.timestamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		b.timestamps = append([]time.Time(nil), b.timestamps[i:]...)
	}
}

func (sw *SlidingWindow) cleanupLoop(interval time.Duration) {
	defer sw.cleanupWG.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := sw.cleanup(); n > 0 {
				log.Debug().Str("component", "ratelimit").Int("buckets", n).Msg("dropped idle buckets")
			}
		case <-sw.stop:
			return
		}
	}
}

// cleanup removes buckets idle for two windows and returns how many went.
func (sw *SlidingWindow) cleanup() int {
	cutoff := sw.now().Add(-2 * sw.window)
	removed := 0
	sw.buckets.Range(func(key, value any) bool {
		b := value.(*bucket)
		b.mu.Lock()
		idle := b.lastAccess.Before(cutoff)
		b.mu.Unlock()
		if idle {
			sw.buckets.Delete(key)
			removed++
		}
		return true
	})
	return removed
}

// Stop ends the cleanup goroutine. It is safe to call more than once.
func (sw *SlidingWindow) Stop() {
	sw.stopOnce.Do(func() { close(sw.stop) })
	sw.cleanupWG.Wait()
}

// Stats describes the limiter's current footprint.
type Stats struct {
	ActiveBuckets   int
	TotalTimestamps int
	WindowDuration  time.Duration
	Limit           int
}

// GetStats returns current statistics about the rate limiter
func (sw *SlidingWindow) GetStats() Stats {
	s := Stats{WindowDuration: sw.window, Limit: sw.limit}
	sw.buckets.Range(func(_, value any) bool {
		b := value.(*bucket)
		b.mu.Lock()
		s.ActiveBuckets++
		s.TotalTimestamps += len(b.timestamps)
		b.mu.Unlock()
		return true
	})
	return s
}
