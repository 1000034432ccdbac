// Package lambda holds the short-term lambda correction of up to two
// channels and counts its sign switches. The closed loop writes corrections
// with Set or Step; the learning engine reads and consumes them.
package lambda

import (
	"math"
	"sync/atomic"
)

// Channels is the number of lambda channels.
const Channels = 2

type channel struct {
	corr     atomic.Int32
	switches atomic.Uint32
	sensor   atomic.Uint32 // sensorUnknown, sensorLean or sensorRich
}

const (
	sensorUnknown uint32 = iota
	sensorLean
	sensorRich
)

// Controller is safe for one writer and one consumer on different goroutines.
type Controller struct {
	ch    [Channels]channel
	limit int16
}

// NewController returns a controller that saturates corrections at ±limit
// (x512). A zero limit saturates at the int16 range.
func NewController(limit int16) *Controller {
	return &Controller{limit: limit}
}

func (c *Controller) clamp(v int32) int32 {
	limit := int32(math.MaxInt16)
	if c.limit > 0 {
		limit = int32(c.limit)
	}
	if v > limit {
		return limit
	}
	if v < -limit {
		return -limit
	}
	return v
}

// Set stores a new correction for ch, counting a switch when the sign flips.
func (c *Controller) Set(ch int, v int16) {
	nv := c.clamp(int32(v))
	old := c.ch[ch].corr.Swap(nv)
	if (old < 0 && nv > 0) || (old > 0 && nv < 0) {
		c.ch[ch].switches.Add(1)
	}
}

// Step adds delta to the correction of ch.
func (c *Controller) Step(ch int, delta int16) {
	c.add(ch, delta, true)
}

// Sense runs one step of a narrowband integrator: a rich reading removes
// step from the correction, a lean one adds it. Every rich/lean transition
// of the sensor counts as a switch; the correction sign is not counted.
func (c *Controller) Sense(ch int, rich bool, step int16) {
	state := sensorLean
	if rich {
		state = sensorRich
		step = -step
	}
	if old := c.ch[ch].sensor.Swap(state); old != sensorUnknown && old != state {
		c.ch[ch].switches.Add(1)
	}
	c.add(ch, step, false)
}

func (c *Controller) add(ch int, delta int16, countSign bool) {
	for {
		old := c.ch[ch].corr.Load()
		nv := c.clamp(old + int32(delta))
		if c.ch[ch].corr.CompareAndSwap(old, nv) {
			if countSign && ((old < 0 && nv > 0) || (old > 0 && nv < 0)) {
				c.ch[ch].switches.Add(1)
			}
			return
		}
	}
}

// Correction returns the current correction of ch.
func (c *Controller) Correction(ch int) int16 {
	return int16(c.ch[ch].corr.Load())
}

// ConsumeCorrection zeroes the correction of ch if it still equals seen.
func (c *Controller) ConsumeCorrection(ch int, seen int16) bool {
	return c.ch[ch].corr.CompareAndSwap(int32(seen), 0)
}

// ResetSwitchCounter clears the sign switch counter of ch.
func (c *Controller) ResetSwitchCounter(ch int) {
	c.ch[ch].switches.Store(0)
}

// SwitchCount returns the sign switches of ch since the last reset,
// saturated at 255.
func (c *Controller) SwitchCount(ch int) uint8 {
	n := c.ch[ch].switches.Load()
	if n > 255 {
		return 255
	}
	return uint8(n)
}
