// Package scurve implements the jerk-limited seven-state S-curve
// velocity profiler: the per-cycle advancement of a segment's
// (progress, velocity, acceleration) triple used by the trajectory
// planner, adapted from the original motion core's tp.c state
// machine (spec's canonical choice over the source's alternate
// trapezoidal planner — see DESIGN.md's Open Question decisions).
package scurve

import (
	"math"

	"motioncore.dev/tc"
)

// jerkSign returns the signed jerk applied during state s, per the
// accel-trend column of spec §4.3's state table.
func jerkSign(s tc.SCurveState) float64 {
	switch s {
	case tc.S0, tc.S6:
		return 1
	case tc.S2, tc.S4:
		return -1
	default:
		return 0
	}
}

// Step advances seg by one cycle: applies the current state's
// kinematic update, clamps progress and velocity, and transitions to
// the state the following cycle should run in.
func Step(seg *tc.Segment) {
	j := seg.Jerk
	sign := jerkSign(seg.State)

	oldV, oldA := seg.CurVel, seg.CurAccel
	newA := oldA + sign*j
	newV := oldV + oldA + sign*j/2
	newP := seg.Progress + oldV + oldA/2 + sign*j/6

	if newP > seg.Target {
		newP = seg.Target
	}
	if newV < 0 {
		if seg.State == tc.S6 && seg.OnFinalDecel {
			newV = j / 2
		} else {
			newV = 0
		}
	}

	seg.CurAccel = newA
	seg.CurVel = newV
	seg.Progress = newP

	seg.State = nextState(seg)
}

// t1 is the time, in cycles, to ramp acceleration between 0 and
// max_accel at the segment's jerk limit.
func t1(seg *tc.Segment) float64 {
	if seg.Jerk == 0 {
		return 0
	}
	return seg.MaxAccel / seg.Jerk
}

// rampUpVelocity returns the velocity attained were the segment to
// immediately ramp its (positive) acceleration down to zero at -jerk
// (an S2 ramp), the trigger for leaving S0/S1.
func rampUpVelocity(seg *tc.Segment) float64 {
	if seg.Jerk == 0 {
		return seg.CurVel
	}
	return seg.CurVel + seg.CurAccel*seg.CurAccel/(2*seg.Jerk)
}

// rampDownVelocity returns the velocity attained were the segment to
// immediately ramp its (negative) acceleration back to zero at +jerk
// (an S6 ramp), the trigger for leaving S4/S5.
func rampDownVelocity(seg *tc.Segment) float64 {
	if seg.Jerk == 0 {
		return seg.CurVel
	}
	return seg.CurVel - seg.CurAccel*seg.CurAccel/(2*seg.Jerk)
}

// StoppingDistance returns the closed-form distance (and duration, in
// cycles) needed to bring v0 to zero under the segment's jerk and
// acceleration ceilings, via S4 (optionally) S5 and S6 — triangular
// when v0 doesn't reach the accel ceiling, trapezoidal otherwise.
func StoppingDistance(v0, maxAccel, jerk float64) (dist, dur float64) {
	if jerk == 0 || v0 <= 0 {
		return 0, 0
	}
	tr := maxAccel / jerk
	if v0 <= jerk*tr*tr {
		// Triangular: peak accel A' = sqrt(v0*j), ramp time t' = A'/j.
		tp := math.Sqrt(v0 / jerk)
		// Symmetric ramp down/up, each of duration tp.
		d4 := v0*tp - jerk*tp*tp*tp/6
		vmid := v0 - jerk*tp*tp/2
		d6 := vmid*tp - jerk*tp*tp*tp/3
		return d4 + d6, 2 * tp
	}
	t2 := v0/maxAccel - tr
	d4 := v0*tr - maxAccel*tr*tr/6
	vmid1 := v0 - maxAccel*tr/2
	d5 := vmid1*t2 - maxAccel*t2*t2/2
	vmid2 := vmid1 - maxAccel*t2
	d6 := vmid2*tr - maxAccel*tr*tr/3
	return d4 + d5 + d6, 2*tr + t2
}

func nextState(seg *tc.Segment) tc.SCurveState {
	switch seg.State {
	case tc.S0:
		if seg.CurAccel+seg.Jerk > seg.MaxAccel {
			seg.CurAccel = seg.MaxAccel
			return tc.S1
		}
		return s0or1Next(seg, tc.S0)
	case tc.S1:
		return s0or1Next(seg, tc.S1)
	case tc.S2:
		if seg.CurAccel <= 0 {
			seg.CurAccel = 0
			return tc.S3
		}
		return tc.S2
	case tc.S3:
		if seg.ReqVel-seg.CurVel > 1.5*seg.Jerk {
			return tc.S0
		}
		remaining := seg.Target - seg.Progress
		stopDist, _ := StoppingDistance(seg.CurVel, seg.MaxAccel, seg.Jerk)
		if seg.CurVel-seg.ReqVel > 1.5*seg.Jerk || remaining < stopDist {
			if remaining < stopDist {
				seg.OnFinalDecel = true
			}
			return tc.S4
		}
		return tc.S3
	case tc.S4:
		if seg.CurAccel-seg.Jerk < -seg.MaxAccel {
			seg.CurAccel = -seg.MaxAccel
			return tc.S5
		}
		return s4or5Next(seg, tc.S4)
	case tc.S5:
		return s4or5Next(seg, tc.S5)
	case tc.S6:
		if seg.CurAccel >= 0 {
			seg.CurAccel = 0
			if !seg.OnFinalDecel {
				return tc.S3
			}
			return tc.S6
		}
		return tc.S6
	default:
		return seg.State
	}
}

func s0or1Next(seg *tc.Segment, cur tc.SCurveState) tc.SCurveState {
	remaining := seg.Target - seg.Progress
	stopDist, _ := StoppingDistance(seg.CurVel, seg.MaxAccel, seg.Jerk)
	if rampUpVelocity(seg) >= seg.ReqVel || remaining < stopDist {
		return tc.S2
	}
	return cur
}

func s4or5Next(seg *tc.Segment, cur tc.SCurveState) tc.SCurveState {
	if !seg.OnFinalDecel && rampDownVelocity(seg) <= seg.ReqVel {
		return tc.S6
	}
	if seg.OnFinalDecel && rampDownVelocity(seg) <= 0 {
		return tc.S6
	}
	return cur
}
