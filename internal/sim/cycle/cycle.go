// Package cycle owns the decision-cycle counter. Every cycle is handed out as a
// *Cycle token; per-cycle work claims the token under a name, which makes a
// second drain of the same cycle fail by construction.
package cycle

import (
	"errors"
	"fmt"
)

// ErrClaimed is returned when a cycle is claimed twice under the same name.
var ErrClaimed = errors.New("cycle already claimed")

// ErrStale is returned when a token from an earlier cycle is presented.
var ErrStale = errors.New("stale cycle token")

type Clock struct {
	now  uint64
	last *Cycle
}

// NewClock starts counting after start; the first Advance returns start+1.
func NewClock(start uint64) *Clock {
	return &Clock{now: start}
}

// Advance opens the next cycle. The previous token becomes stale.
func (c *Clock) Advance() *Cycle {
	c.now++
	if c.last != nil {
		c.last.closed = true
	}
	c.last = &Cycle{n: c.now, claims: map[string]struct{}{}}
	return c.last
}

// Now returns the number of the current cycle (0 before the first Advance).
func (c *Clock) Now() uint64 { return c.now }

// Cycle is a single-use token for one decision cycle.
type Cycle struct {
	n      uint64
	closed bool
	claims map[string]struct{}
}

// At builds a detached token for cycle n. Useful for tests and replay.
func At(n uint64) *Cycle {
	return &Cycle{n: n, claims: map[string]struct{}{}}
}

func (c *Cycle) Number() uint64 { return c.n }

// Claim marks the named per-cycle job as done for this cycle.
func (c *Cycle) Claim(name string) error {
	if c.closed {
		return fmt.Errorf("%s at cycle %d: %w", name, c.n, ErrStale)
	}
	if _, ok := c.claims[name]; ok {
		return fmt.Errorf("%s at cycle %d: %w", name, c.n, ErrClaimed)
	}
	c.claims[name] = struct{}{}
	return nil
}
