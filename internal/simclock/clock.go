// Package simclock maps wall-clock time onto a compressed or expanded
// simulated timeline. Every persisted event in a simulation run is stamped
// with simulated time so that the recorded history stays internally
// consistent even though the wall-clock gaps between actions are small and
// irregular.
package simclock

import "time"

// Clock translates real elapsed time into simulated time using a fixed
// amplification factor chosen at construction. A factor of 60 means one
// real second advances the simulated timeline by one minute.
//
// Clock is immutable after construction and safe for concurrent use.
type Clock struct {
	realRef  time.Time
	simStart time.Time
	factor   float64
}

// New creates a Clock whose simulated timeline starts at simStart and whose
// real reference point is the moment of the call.
func New(simStart time.Time, factor float64) *Clock {
	return NewAt(time.Now(), simStart, factor)
}

// NewAt creates a Clock with an explicit real reference point. Tests use
// this to pin both ends of the mapping.
func NewAt(realRef, simStart time.Time, factor float64) *Clock {
	if factor == 0 {
		factor = 1
	}
	return &Clock{realRef: realRef, simStart: simStart, factor: factor}
}

// Now returns the current simulated time.
func (c *Clock) Now() time.Time {
	return c.At(time.Now())
}

// At translates an arbitrary real instant into simulated time:
//
//	simStart + factor * (realNow - realRef)
func (c *Clock) At(realNow time.Time) time.Time {
	elapsed := realNow.Sub(c.realRef)
	return c.simStart.Add(time.Duration(float64(elapsed) * c.factor))
}

// Start returns the simulated start time.
func (c *Clock) Start() time.Time { return c.simStart }

// Factor returns the amplification factor.
func (c *Clock) Factor() float64 { return c.factor }
