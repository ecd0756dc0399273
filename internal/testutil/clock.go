package testutil

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"stash-go/internal/stash"
)

// Epoch is the time every FixedClock starts at.
var Epoch = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

// Clock is a manually driven stash.Clock.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

var _ stash.Clock = (*Clock)(nil)

// FixedClock returns a Clock stopped at Epoch.
func FixedClock() *Clock {
	return &Clock{now: Epoch}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Sequence is a stash.IDGenerator yielding "<prefix>-1", "<prefix>-2", ...
type Sequence struct {
	prefix string
	n      atomic.Int64
}

var _ stash.IDGenerator = (*Sequence)(nil)

func NewSequence(prefix string) *Sequence {
	return &Sequence{prefix: prefix}
}

func (s *Sequence) New() string {
	return fmt.Sprintf("%s-%d", s.prefix, s.n.Add(1))
}
