package scurve

import (
	"testing"

	"motioncore.dev/pose"
	"motioncore.dev/tc"
)

func lineSegment(t *testing.T, target, reqVel, maxAccel, jerk, period float64) *tc.Segment {
	t.Helper()
	seg, err := tc.NewLine(1, 0,
		pose.Pose{},
		pose.Pose{X: target},
		tc.Constraints{ReqVel: reqVel, MaxVel: reqVel, MaxAccel: maxAccel, Jerk: jerk},
		period,
	)
	if err != nil {
		t.Fatal(err)
	}
	return &seg
}

func TestSingleLineReachesTarget(t *testing.T) {
	seg := lineSegment(t, 100, 10, 100, 1000, 0.001)

	const maxCycles = 2_000_000
	cycles := 0
	for seg.Progress < seg.Target && cycles < maxCycles {
		Step(seg)
		cycles++

		if seg.CurAccel > seg.MaxAccel+1e-6 || seg.CurAccel < -seg.MaxAccel-1e-6 {
			t.Fatalf("cycle %d: accel %v exceeds ±%v", cycles, seg.CurAccel, seg.MaxAccel)
		}
		if seg.CurVel < -1e-9 {
			t.Fatalf("cycle %d: velocity went negative: %v", cycles, seg.CurVel)
		}
		if seg.Progress < -1e-9 || seg.Progress > seg.Target+1e-6 {
			t.Fatalf("cycle %d: progress %v out of [0,%v]", cycles, seg.Progress, seg.Target)
		}
	}
	if cycles >= maxCycles {
		t.Fatalf("segment did not reach target within %d cycles", maxCycles)
	}
	if seg.Progress < seg.Target-1e-6 {
		t.Errorf("final progress = %v, want %v", seg.Progress, seg.Target)
	}
	if seg.CurVel > seg.Jerk {
		t.Errorf("final velocity %v not floored near zero (jerk=%v)", seg.CurVel, seg.Jerk)
	}
}

func TestAccelRampRespectsJerk(t *testing.T) {
	seg := lineSegment(t, 1000, 10, 100, 1000, 0.001)
	prevAccel := seg.CurAccel
	for i := 0; i < 50; i++ {
		Step(seg)
		diff := seg.CurAccel - prevAccel
		if diff > seg.Jerk+1e-9 || diff < -seg.Jerk-1e-9 {
			t.Fatalf("cycle %d: |Δaccel| = %v exceeds jerk %v", i, diff, seg.Jerk)
		}
		prevAccel = seg.CurAccel
	}
}

func TestStoppingDistanceTriangularVsTrapezoidal(t *testing.T) {
	const maxAccel, jerk = 100.0, 1000.0
	tr := maxAccel / jerk
	// Below the triangular/trapezoidal threshold.
	dTri, _ := StoppingDistance(0.5*jerk*tr*tr, maxAccel, jerk)
	if dTri <= 0 {
		t.Errorf("triangular stopping distance should be positive, got %v", dTri)
	}
	// Above threshold: trapezoidal, strictly larger for a larger v0.
	dTrap, _ := StoppingDistance(10*jerk*tr*tr, maxAccel, jerk)
	if dTrap <= dTri {
		t.Errorf("trapezoidal stopping distance %v should exceed triangular %v", dTrap, dTri)
	}
}

func TestZeroVelocityStopsImmediately(t *testing.T) {
	d, dur := StoppingDistance(0, 100, 1000)
	if d != 0 || dur != 0 {
		t.Errorf("StoppingDistance(0, ...) = (%v, %v), want (0, 0)", d, dur)
	}
}
