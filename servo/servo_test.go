package servo

import (
	"math"
	"testing"

	"motioncore.dev/config"
	"motioncore.dev/kinematics"
	"motioncore.dev/pose"
	"motioncore.dev/tc"
	"motioncore.dev/tp"
)

func testJoints(n int) []config.Joint {
	js := make([]config.Joint, n)
	for i := range js {
		js[i] = config.Joint{
			MinLimit: -100, MaxLimit: 100,
			MaxVelocity: 10, MaxAcceleration: 100, MaxJerk: 1000,
		}
	}
	return js
}

func TestOverrunDetectionNotTriggeredBeforeHistoryFills(t *testing.T) {
	c := New(testJoints(1), &kinematics.IdentityKinematics{N: 1}, nil, 0.001)
	for i := 0; i < 4; i++ {
		out := c.RunCycle(Inputs{Elapsed: 0.001, RequestEnable: true})
		if out.Status.Overrun {
			t.Fatalf("cycle %d: unexpected overrun before history fills", i)
		}
	}
}

func TestOverrunDetectionTriggersOnSpike(t *testing.T) {
	c := New(testJoints(1), &kinematics.IdentityKinematics{N: 1}, nil, 0.001)
	for i := 0; i < 5; i++ {
		c.RunCycle(Inputs{Elapsed: 0.001, RequestEnable: true})
	}
	out := c.RunCycle(Inputs{Elapsed: 0.01, RequestEnable: true})
	if !out.Status.Overrun {
		t.Error("expected overrun to trigger on a 10x elapsed spike")
	}
}

func TestModeTransitionRequiresInPosition(t *testing.T) {
	c := New(testJoints(1), &kinematics.IdentityKinematics{N: 1}, nil, 0.001)
	c.jointVel[0] = 5 // not in position
	c.RunCycle(Inputs{RequestEnable: true, RequestMode: Teleop})
	if c.Mode() == Teleop {
		t.Error("mode should not transition while a joint is moving")
	}
	c.jointVel[0] = 0
	c.RunCycle(Inputs{RequestEnable: true, RequestMode: Teleop})
	if c.Mode() != Teleop {
		t.Errorf("mode = %v, want Teleop once in position", c.Mode())
	}
}

func TestDisableForcesDisabledMode(t *testing.T) {
	c := New(testJoints(1), &kinematics.IdentityKinematics{N: 1}, nil, 0.001)
	c.RunCycle(Inputs{RequestEnable: true, RequestMode: Teleop})
	c.RunCycle(Inputs{RequestEnable: false})
	if c.Mode() != Disabled {
		t.Errorf("mode = %v, want Disabled", c.Mode())
	}
}

func TestTeleopIntegratesVelocityWithinAccelLimit(t *testing.T) {
	c := New(testJoints(1), &kinematics.IdentityKinematics{N: 1}, nil, 0.001)
	c.RunCycle(Inputs{RequestEnable: true, RequestMode: Teleop})
	for i := 0; i < 200; i++ {
		c.RunCycle(Inputs{RequestEnable: true, RequestMode: Teleop, JogVel: []float64{5}})
	}
	if math.Abs(c.jointVel[0]-5) > 1e-6 {
		t.Errorf("joint velocity = %v, want ~5 after ramping", c.jointVel[0])
	}
}

func TestSoftLimitClampsCommand(t *testing.T) {
	c := New(testJoints(1), &kinematics.IdentityKinematics{N: 1}, nil, 0.001)
	cmd := []float64{500}
	hit := c.softLimitCheck(cmd)
	if !hit[0] {
		t.Error("expected soft limit to trip for out-of-range command")
	}
	if cmd[0] != 100 {
		t.Errorf("clamped command = %v, want 100", cmd[0])
	}
}

func TestResampleJointInterpolatesBetweenEndpoints(t *testing.T) {
	out := ResampleJoint(0, 10, 0, 0, 0.001, 4)
	if len(out) != 4 {
		t.Fatalf("len(out) = %d, want 4", len(out))
	}
	if math.Abs(out[3]-10) > 1e-9 {
		t.Errorf("last sample = %v, want 10", out[3])
	}
	for i := 1; i < len(out); i++ {
		if out[i] < out[i-1] {
			t.Errorf("samples not monotonic: %v", out)
		}
	}
}

func TestResampleJointSingleStepReturnsEndpoint(t *testing.T) {
	out := ResampleJoint(0, 5, 0, 0, 0.001, 1)
	if len(out) != 1 || out[0] != 5 {
		t.Errorf("ResampleJoint(sub=1) = %v, want [5]", out)
	}
}

func TestAmpFaultDisablesMotion(t *testing.T) {
	c := New(testJoints(1), &kinematics.IdentityKinematics{N: 1}, nil, 0.001)
	c.RunCycle(Inputs{RequestEnable: true, RequestMode: Teleop})
	out := c.RunCycle(Inputs{
		RequestEnable: true, RequestMode: Teleop,
		Joints: []JointInput{{AmpFault: true}},
	})
	if !out.Status.AmpFault[0] {
		t.Error("expected AmpFault to be reported")
	}
	if !out.Status.MotionDisabled {
		t.Error("expected MotionDisabled on amp fault")
	}
	if c.Mode() != Disabled {
		t.Errorf("mode = %v, want Disabled on amp fault", c.Mode())
	}
}

func TestFollowingErrorTripDisablesMotion(t *testing.T) {
	joints := testJoints(1)
	joints[0].FError = 1
	joints[0].MinFError = 0.1
	c := New(joints, &kinematics.IdentityKinematics{N: 1}, nil, 0.001)
	c.RunCycle(Inputs{RequestEnable: true, RequestMode: Teleop})
	c.jointPos[0] = 50 // far from posFB=0, well beyond MinFError
	out := c.RunCycle(Inputs{
		RequestEnable: true, RequestMode: Teleop,
		Joints: []JointInput{{PosFB: 0}},
	})
	if !out.Status.FErrorTripped[0] {
		t.Error("expected following-error trip")
	}
	if !out.Status.MotionDisabled {
		t.Error("expected MotionDisabled on following-error trip")
	}
	if c.Mode() != Disabled {
		t.Errorf("mode = %v, want Disabled on following-error trip", c.Mode())
	}
}

func TestHardLimitLatchesOverrideMaskAndBlocksJog(t *testing.T) {
	c := New(testJoints(1), &kinematics.IdentityKinematics{N: 1}, nil, 0.001)
	c.RunCycle(Inputs{RequestEnable: true, RequestMode: Free})
	c.RunCycle(Inputs{
		RequestEnable: true, RequestMode: Free,
		Joints: []JointInput{{OnLimitMax: true}},
		JogVel: []float64{5},
	})
	out := c.RunCycle(Inputs{
		RequestEnable: true, RequestMode: Free,
		Joints: []JointInput{{OnLimitMax: true}},
		JogVel: []float64{5},
	})
	if !out.Status.LimitOverrideMask[0] {
		t.Fatal("expected hard limit to latch the override mask")
	}
	if c.jointVel[0] != 0 {
		t.Errorf("jointVel = %v, want 0 while override mask is latched", c.jointVel[0])
	}

	c.ClearLimitOverride(0)
	out = c.RunCycle(Inputs{
		RequestEnable: true, RequestMode: Free,
		JogVel: []float64{5},
	})
	if out.Status.LimitOverrideMask[0] {
		t.Error("expected ClearLimitOverride to clear the latch")
	}
	if c.jointVel[0] != 5 {
		t.Errorf("jointVel = %v, want 5 after clearing the override mask", c.jointVel[0])
	}
}

func TestClearLimitOverrideIgnoresOutOfRangeIndex(t *testing.T) {
	c := New(testJoints(1), &kinematics.IdentityKinematics{N: 1}, nil, 0.001)
	c.ClearLimitOverride(-1)
	c.ClearLimitOverride(5)
}

func TestSoftLimitTripsFromArcInteriorPoint(t *testing.T) {
	joints := testJoints(2)
	joints[0].MinLimit, joints[0].MaxLimit = -5, 5
	joints[1].MinLimit, joints[1].MaxLimit = -5, 5

	planner := tp.New(16, 0.001)
	c := New(joints, &kinematics.IdentityKinematics{N: 2}, planner, 0.001)

	// A 100-degree arc of radius 6 centered at the origin, swept from
	// 40 to 140 degrees: both endpoints sit within the +-5 box (Y
	// peaks around 3.86 there), but the arc's interior passes through
	// 90 degrees, where Y reaches 6 and crosses the soft limit.
	const deg = math.Pi / 180
	circle := pose.Circle{
		Normal: pose.Vec3{Z: 1},
		Ref:    pose.Vec3{X: math.Cos(40 * deg), Y: math.Sin(40 * deg)},
		Radius: 6,
		Angle:  100 * deg,
	}
	constraints := tc.Constraints{ReqVel: 5, MaxVel: 5, MaxAccel: 50, Jerk: 500}
	if err := planner.AddArc(circle, constraints); err != nil {
		t.Fatal(err)
	}

	c.RunCycle(Inputs{RequestEnable: true, RequestMode: Coord, FeedScale: 1, AdaptiveFeed: 1})

	var tripped bool
	for i := 0; i < 200000; i++ {
		out := c.RunCycle(Inputs{RequestEnable: true, RequestMode: Coord, FeedScale: 1, AdaptiveFeed: 1})
		if out.Status.OnSoftLimit[1] {
			tripped = true
			break
		}
		if out.Status.OnSoftLimit[0] {
			t.Fatal("joint 0 (X) should not trip its soft limit on this arc")
		}
	}
	if !tripped {
		t.Fatal("expected the arc's interior apex to trip joint 1's (Y) soft limit")
	}
}

func TestHomeIgnoreLimitsExemptsActivelyHomingJoint(t *testing.T) {
	joints := testJoints(1)
	joints[0].HomeIgnoreLimits = true
	c := New(joints, &kinematics.IdentityKinematics{N: 1}, nil, 0.001)
	c.HomeSeq.Start()
	out := c.RunCycle(Inputs{
		RequestEnable: true, RequestHoming: true,
		Joints: []JointInput{{OnLimitMin: true}},
	})
	if out.Status.LimitOverrideMask[0] {
		t.Error("expected HomeIgnoreLimits to exempt an actively homing joint from the hard-limit latch")
	}
}
