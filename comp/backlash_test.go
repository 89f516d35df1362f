package comp

import (
	"math"
	"testing"

	"motioncore.dev/config"
)

func TestFilterConvergesToTarget(t *testing.T) {
	var f Filter
	const period = 0.001
	for i := 0; i < 10000 && math.Abs(f.Value()-0.05) > 1e-6; i++ {
		f.Step(0.05, 10, 100, period)
	}
	if math.Abs(f.Value()-0.05) > 1e-6 {
		t.Errorf("Filter did not converge, value = %v", f.Value())
	}
}

func TestFilterRespectsAccelLimit(t *testing.T) {
	var f Filter
	const period = 0.001
	var prevVel float64
	for i := 0; i < 50; i++ {
		f.Step(1.0, 10, 100, period)
		dv := f.velocity - prevVel
		if math.Abs(dv) > 1.5*100*period+1e-9 {
			t.Fatalf("cycle %d: |Δv| = %v exceeds 1.5x accel limit", i, dv)
		}
		prevVel = f.velocity
	}
}

func TestFilterNoOvershoot(t *testing.T) {
	var f Filter
	const period = 0.001
	for i := 0; i < 5000; i++ {
		v := f.Step(0.02, 50, 500, period)
		if v > 0.02+1e-9 {
			t.Fatalf("cycle %d: overshoot, value = %v", i, v)
		}
	}
}

func TestLookupSplitsBacklashByDirection(t *testing.T) {
	j := config.Joint{Backlash: 0.1}
	fwd := Lookup(j, 0, true)
	rev := Lookup(j, 0, false)
	if math.Abs(fwd-0.05) > 1e-9 {
		t.Errorf("forward correction = %v, want 0.05", fwd)
	}
	if math.Abs(rev-(-0.05)) > 1e-9 {
		t.Errorf("reverse correction = %v, want -0.05", rev)
	}
}
