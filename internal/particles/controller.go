// Package particles implements the snare-triggered particle impulse: the
// force field is switched off while live particles get a velocity boost,
// then both are put back when the impulse expires.
package particles

import (
	"time"

	"github.com/banshee-data/glovestage/internal/envelope"
)

// DefaultBoost is the velocity multiplier applied on trigger.
const DefaultBoost = 1.5

// ForceField is the host's attractor acting on the particle system.
type ForceField interface {
	Gravity() float64
	Attraction() float64
	SetGravity(v float64)
	SetAttraction(v float64)
}

// System is the host's particle system.
type System interface {
	// ScaleVelocities multiplies the velocity of every live particle by f.
	ScaleVelocities(f float64)
}

// Controller runs one impulse at a time. It is owned by the render loop.
type Controller struct {
	field ForceField
	sys   System
	boost float64
	timer *envelope.Envelope

	savedGravity    float64
	savedAttraction float64
}

// NewController returns an idle controller. A non-positive boost falls back
// to DefaultBoost.
func NewController(field ForceField, sys System, boost float64, d time.Duration) (*Controller, error) {
	timer, err := envelope.New(envelope.Config{Duration: d, Shape: envelope.LinearDecay, Base: 0, Target: 1})
	if err != nil {
		return nil, err
	}
	if boost <= 0 {
		boost = DefaultBoost
	}
	return &Controller{field: field, sys: sys, boost: boost, timer: timer}, nil
}

// Trigger starts an impulse and reports true, or does nothing and reports
// false while one is already active.
func (c *Controller) Trigger() bool {
	if !c.timer.Trigger() {
		return false
	}
	c.savedGravity = c.field.Gravity()
	c.savedAttraction = c.field.Attraction()
	c.field.SetGravity(0)
	c.field.SetAttraction(0)
	c.sys.ScaleVelocities(c.boost)
	return true
}

// Advance moves the impulse timer forward and restores the field once it
// expires.
func (c *Controller) Advance(dt time.Duration) {
	if !c.timer.Running() {
		return
	}
	if s := c.timer.Advance(dt); s.Done {
		c.field.SetGravity(c.savedGravity)
		c.field.SetAttraction(c.savedAttraction)
		c.sys.ScaleVelocities(1 / c.boost)
	}
}

// Active reports whether an impulse is in flight.
func (c *Controller) Active() bool { return c.timer.Running() }

// Armed returns the number of impulses started.
func (c *Controller) Armed() uint64 { return c.timer.Armed() }

// Duration returns how long each impulse lasts.
func (c *Controller) Duration() time.Duration { return c.timer.Config().Duration }
