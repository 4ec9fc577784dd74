package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestWindow(window time.Duration, limit int) (*SlidingWindow, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	sw := NewSlidingWindow(window, limit, 0)
	sw.now = clock.Now
	return sw, clock
}

func TestSlidingWindow_Basic(t *testing.T) {
	sw, _ := newTestWindow(time.Minute, 3)
	defer sw.Stop()

	for i := 0; i < 3; i++ {
		d := sw.Allow("client")
		require.True(t, d.Allowed, "request %d", i+1)
		assert.Equal(t, 3-(i+1), d.Remaining)
	}

	d := sw.Allow("client")
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.Equal(t, 60, d.RetryAfter)
}

func TestSlidingWindow_Slides(t *testing.T) {
	sw, clock := newTestWindow(time.Minute, 2)
	defer sw.Stop()

	assert.True(t, sw.Allow("c").Allowed)
	clock.Advance(30 * time.Second)
	assert.True(t, sw.Allow("c").Allowed)
	assert.False(t, sw.Allow("c").Allowed)

	// The first request leaves the window, the second is still in it.
	clock.Advance(31 * time.Second)
	assert.True(t, sw.Allow("c").Allowed)
	assert.False(t, sw.Allow("c").Allowed)
}

func TestSlidingWindow_SeparateClients(t *testing.T) {
	sw, _ := newTestWindow(time.Minute, 1)
	defer sw.Stop()

	assert.True(t, sw.Allow("a").Allowed)
	assert.True(t, sw.Allow("b").Allowed)
	assert.False(t, sw.Allow("a").Allowed)

	stats := sw.GetStats()
	assert.Equal(t, 2, stats.ActiveBuckets)
	assert.Equal(t, 2, stats.TotalTimestamps)
}

func TestSlidingWindow_Cleanup(t *testing.T) {
	sw, clock := newTestWindow(time.Minute, 5)
	defer sw.Stop()

	sw.Allow("old")
	clock.Advance(90 * time.Second)
	sw.Allow("fresh")
	clock.Advance(45 * time.Second)

	assert.Equal(t, 1, sw.cleanup())
	assert.Equal(t, 1, sw.GetStats().ActiveBuckets)
}

func TestSlidingWindow_Concurrent(t *testing.T) {
	sw := NewSlidingWindow(time.Minute, 50, time.Second)
	defer sw.Stop()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if sw.Allow("shared").Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, allowed)
}

func TestSlidingWindow_StopTwice(t *testing.T) {
	sw := NewSlidingWindow(time.Minute, 1, 10*time.Millisecond)
	sw.Stop()
	sw.Stop()
}
