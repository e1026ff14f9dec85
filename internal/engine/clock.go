package engine

import "sync/atomic"

// Clock hands out the seq numbers stamped on remote mutations. Numbers are
// strictly increasing across all runs of one Engine, so journal rows written
// by a process sort in apply order whatever the wall clock did.
//
// Safe for concurrent use.
type Clock struct {
	last atomic.Int64
}

// NewClock returns a clock whose first seq is 1.
func NewClock() *Clock {
	return &Clock{}
}

// Next stamps one mutation.
func (c *Clock) Next() int64 {
	return c.last.Add(1)
}

// Last returns the most recent seq handed out, or 0.
func (c *Clock) Last() int64 {
	return c.last.Load()
}
