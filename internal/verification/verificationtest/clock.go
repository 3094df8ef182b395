package verificationtest

import (
	"fmt"
	"sync"
	"time"
)

// Clock is a manually advanced time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Codes hands out a scripted sequence of codes, then counts upward from
// 100000 once the script is exhausted.
type Codes struct {
	mu     sync.Mutex
	Clock  *Clock
	TTL    time.Duration
	script []string
	next   int
}

func NewCodes(clock *Clock, ttl time.Duration, script ...string) *Codes {
	return &Codes{Clock: clock, TTL: ttl, script: script, next: 100000}
}

func (c *Codes) GenerateCode() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.script) > 0 {
		code := c.script[0]
		c.script = c.script[1:]
		return code, nil
	}
	c.next++
	return fmt.Sprintf("%06d", c.next), nil
}

func (c *Codes) ExpiryFromNow() time.Time { return c.Clock.Now().Add(c.TTL) }

func (c *Codes) Now() time.Time { return c.Clock.Now() }
