// Package comp implements the servo controller's backlash and
// screw-error compensation filter: a velocity/acceleration-bounded
// ramp that converges the applied correction toward the screw-error
// table's lookup value, grounded on the teacher's stepper.Driver's
// one-step-per-tick ramped-fill discipline (fillBuffer), generalized
// from a step-count clamp to a continuous offset clamp.
package comp

import (
	"math"

	"motioncore.dev/config"
)

// Filter ramps an applied compensation offset toward a target value
// without exceeding 1.5x the joint's velocity and acceleration
// limits, symmetric for positive and negative travel.
type Filter struct {
	applied  float64
	velocity float64
}

// Step advances the filter by one servo period toward target,
// respecting maxVel and maxAccel scaled by 1.5 (spec §4.6 phase 11).
func (f *Filter) Step(target, maxVel, maxAccel, period float64) float64 {
	vLimit := 1.5 * maxVel
	aLimit := 1.5 * maxAccel

	err := target - f.applied
	wantVel := err / period
	wantVel = clamp(wantVel, -vLimit, vLimit)

	dv := wantVel - f.velocity
	maxDv := aLimit * period
	dv = clamp(dv, -maxDv, maxDv)
	f.velocity += dv

	step := f.velocity * period
	// Never overshoot the target within a single step.
	if (step > 0 && f.applied+step > target) || (step < 0 && f.applied+step < target) {
		step = err
		f.velocity = 0
	}
	f.applied += step
	return f.applied
}

// Value returns the currently applied compensation offset.
func (f *Filter) Value() float64 {
	return f.applied
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Lookup evaluates a joint's configured screw-error table and backlash
// at the given commanded position and direction of travel, returning
// the combined target correction the Filter should ramp toward.
func Lookup(j config.Joint, pos float64, forward bool) float64 {
	corr := j.Comp.Lookup(pos, forward)
	if forward {
		corr += j.Backlash / 2
	} else {
		corr -= j.Backlash / 2
	}
	return corr
}
