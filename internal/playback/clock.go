package playback

import (
	"sync"
	"time"
)

// Clock tracks the playback position of the loaded media. While playing,
// the position advances with wall time from the last anchor.
type Clock struct {
	mu       sync.Mutex
	elapsed  time.Duration
	anchor   time.Time
	playing  bool
	duration time.Duration
	now      func() time.Time
}

// NewClock creates a paused clock at position zero. A zero duration means
// the length is unknown and the position is not capped.
func NewClock(duration time.Duration) *Clock {
	return &Clock{duration: duration, now: time.Now}
}

// Position returns the live position.
func (c *Clock) Position() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.positionLocked()
}

func (c *Clock) positionLocked() time.Duration {
	pos := c.elapsed
	if c.playing {
		pos += c.now().Sub(c.anchor)
	}
	return c.clamp(pos)
}

func (c *Clock) clamp(t time.Duration) time.Duration {
	if t < 0 {
		return 0
	}
	if c.duration > 0 && t > c.duration {
		return c.duration
	}
	return t
}

// Play starts advancing the position.
func (c *Clock) Play() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.playing {
		return
	}
	c.anchor = c.now()
	c.playing = true
}

// Pause freezes the position.
func (c *Clock) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.playing {
		return
	}
	c.elapsed = c.positionLocked()
	c.playing = false
}

// Seek moves the position to t, clamped to [0, duration], and returns the
// new position.
func (c *Clock) Seek(t time.Duration) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.elapsed = c.clamp(t)
	c.anchor = c.now()
	return c.elapsed
}

// Reset pauses the clock at zero with a new duration.
func (c *Clock) Reset(duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.elapsed = 0
	c.playing = false
	c.duration = duration
}

// Playing reports whether the position is advancing.
func (c *Clock) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}

// Duration returns the media length, zero if unknown.
func (c *Clock) Duration() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.duration
}

// Ended reports whether a known duration has been reached.
func (c *Clock) Ended() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.duration > 0 && c.positionLocked() >= c.duration
}
