package clock

import (
	"sync"
	"time"
)

// Clock is the time source used by the booking core. Inject it instead of
// calling time.Now so expiration logic can be driven from tests.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func New() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now().UTC()
}

// Manual is a controllable clock.
type Manual struct {
	mu      sync.Mutex
	current time.Time
}

func NewManual(start time.Time) *Manual {
	return &Manual{current: start.UTC()}
}

func (c *Manual) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *Manual) Set(t time.Time) {
	c.mu.Lock()
	c.current = t.UTC()
	c.mu.Unlock()
}

// Advance moves the clock forward and returns the new instant.
func (c *Manual) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
	return c.current
}
