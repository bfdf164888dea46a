package util

import "sync/atomic"

// ChainClock is the node's logical clock: a monotonic height advanced by the
// node loop. Order expiry is evaluated against it, never against wall time.
type ChainClock struct {
	height atomic.Uint64
}

func NewChainClock(start uint64) *ChainClock {
	c := &ChainClock{}
	c.height.Store(start)
	return c
}

func (c *ChainClock) Now() uint64 { return c.height.Load() }

// Advance bumps the clock by one tick and returns the new height.
func (c *ChainClock) Advance() uint64 { return c.height.Add(1) }
