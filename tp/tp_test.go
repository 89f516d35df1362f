package tp

import (
	"math"
	"testing"

	"motioncore.dev/pose"
	"motioncore.dev/tc"
)

func basicConstraints() tc.Constraints {
	return tc.Constraints{ReqVel: 10, MaxVel: 10, MaxAccel: 100, Jerk: 1000}
}

func runUntilDone(t *testing.T, p *Planner, maxCycles int) pose.Pose {
	t.Helper()
	var last Result
	for i := 0; i < maxCycles; i++ {
		last = p.RunCycle(Inputs{NetFeedScale: 1})
		if last.Done {
			return last.CommandPos
		}
	}
	t.Fatalf("did not finish within %d cycles", maxCycles)
	return pose.Pose{}
}

func TestSingleLineRunsToCompletion(t *testing.T) {
	p := New(16, 0.001)
	end := pose.Pose{X: 5}
	if err := p.AddLine(end, basicConstraints()); err != nil {
		t.Fatal(err)
	}
	got := runUntilDone(t, p, 200000)
	if math.Abs(got.X-end.X) > 1e-6 {
		t.Errorf("final pos = %+v, want X=%v", got, end.X)
	}
}

func TestTwoLinesAdmitAndDrain(t *testing.T) {
	p := New(16, 0.001)
	if err := p.AddLine(pose.Pose{X: 1}, basicConstraints()); err != nil {
		t.Fatal(err)
	}
	if err := p.AddLine(pose.Pose{X: 2}, basicConstraints()); err != nil {
		t.Fatal(err)
	}
	if p.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", p.Len())
	}
	got := runUntilDone(t, p, 400000)
	if math.Abs(got.X-2) > 1e-6 {
		t.Errorf("final pos = %+v, want X=2", got)
	}
}

func TestAbortClearsQueue(t *testing.T) {
	p := New(16, 0.001)
	if err := p.AddLine(pose.Pose{X: 100}, basicConstraints()); err != nil {
		t.Fatal(err)
	}
	// Run a few cycles to get the segment moving, then abort.
	for i := 0; i < 50; i++ {
		p.RunCycle(Inputs{NetFeedScale: 1})
	}
	var last Result
	for i := 0; i < 200000; i++ {
		last = p.RunCycle(Inputs{NetFeedScale: 1, Abort: true})
		if last.Done {
			break
		}
	}
	if !last.Done {
		t.Fatal("abort did not drain the queue")
	}
	if p.Len() != 0 {
		t.Errorf("Len() = %d after abort, want 0", p.Len())
	}
}

func TestAtSpeedGatesActivation(t *testing.T) {
	p := New(16, 0.001)
	c := basicConstraints()
	if err := p.AddLine(pose.Pose{X: 1}, c); err != nil {
		t.Fatal(err)
	}
	seg, ok := p.Queue.Item(0)
	if !ok {
		t.Fatal("expected a queued segment")
	}
	seg.AtSpeed = true

	res := p.RunCycle(Inputs{NetFeedScale: 1, AtSpeed: false})
	if res.CommandPos.X != 0 {
		t.Errorf("segment should not have advanced while not at speed, got X=%v", res.CommandPos.X)
	}

	var last Result
	for i := 0; i < 200000; i++ {
		last = p.RunCycle(Inputs{NetFeedScale: 1, AtSpeed: true})
		if last.Done {
			break
		}
	}
	if !last.Done {
		t.Fatal("segment never completed once at-speed was asserted")
	}
	if math.Abs(last.CommandPos.X-1) > 1e-6 {
		t.Errorf("final pos = %+v, want X=1", last.CommandPos)
	}
}

func TestRigidTapRejectedWithoutSync(t *testing.T) {
	p := New(16, 0.001)
	c := tc.Constraints{ReqVel: 1, MaxVel: 1, MaxAccel: 10, Jerk: 100}
	if err := p.AddRigidTap(pose.Vec3{}, -1, 0.05, c); err == nil {
		t.Error("expected error admitting rigid tap outside a synchronized sequence")
	}
}

func TestRigidTapAdmitsUnderSync(t *testing.T) {
	p := New(16, 0.001)
	p.BeginSync()
	c := tc.Constraints{ReqVel: 1, MaxVel: 1, MaxAccel: 10, Jerk: 100}
	if err := p.AddRigidTap(pose.Vec3{}, -1, 0.05, c); err != nil {
		t.Fatalf("rigid tap admission failed: %v", err)
	}
	if p.Len() != 1 {
		t.Errorf("Len() = %d, want 1", p.Len())
	}
}

func TestBlendedPairRespectsToleranceConstraint(t *testing.T) {
	p := New(16, 0.001)
	c := basicConstraints()
	if err := p.AddLine(pose.Pose{X: 10}, c); err != nil {
		t.Fatal(err)
	}
	if err := p.AddLine(pose.Pose{X: 10, Y: 10}, c); err != nil {
		t.Fatal(err)
	}
	next, ok := p.Queue.Item(1)
	if !ok {
		t.Fatal("expected a queued second segment")
	}
	const tol = 0.01
	next.Tolerance = tol

	var sawBlend bool
	for i := 0; i < 400000; i++ {
		res := p.RunCycle(Inputs{NetFeedScale: 1})
		if head, ok := p.Queue.Item(0); ok && head.Blending {
			sawBlend = true
		}
		if res.Done {
			break
		}
	}
	if !sawBlend {
		t.Fatal("expected the 90-degree corner to trigger a blend before the first line finished")
	}

	// A 90-degree corner gives cosHalf = sqrt(1/2); the blend velocity
	// should be clamped to the tolerance limit rather than the
	// segment's unconstrained requested velocity.
	cosHalf := math.Sqrt(0.5)
	limit := 2 * math.Sqrt(next.MaxAccel*tol/cosHalf)
	if next.VelAtBlend > limit+1e-6 {
		t.Errorf("VelAtBlend = %v, want <= %v (tolerance limit)", next.VelAtBlend, limit)
	}
	if next.VelAtBlend >= next.BaseReqVel {
		t.Error("expected the tight tolerance to clamp VelAtBlend below the requested velocity")
	}
}

func TestStepRigidTapDrivesFullStateSequence(t *testing.T) {
	p := New(16, 0.001)
	c := tc.Constraints{ReqVel: 1, MaxVel: 1, MaxAccel: 10, Jerk: 100}
	seg, err := tc.NewRigidTap(0, 0, pose.Vec3{}, 1, 0.05, c, p.Period)
	if err != nil {
		t.Fatal(err)
	}

	// Tapping: holds until the leg reaches full depth.
	if hold := p.stepRigidTap(&seg, 0); hold {
		t.Error("expected motion while Tapping is still in progress")
	}
	if seg.RigidTap.State != tc.Tapping {
		t.Fatalf("state = %v, want Tapping", seg.RigidTap.State)
	}

	seg.Progress = seg.Target
	seg.CurVel = 0
	seg.State = tc.S6
	if hold := p.stepRigidTap(&seg, 0); hold {
		t.Error("transitioning out of Tapping should not hold motion this cycle")
	}
	if seg.RigidTap.State != tc.Reversing {
		t.Fatalf("state = %v, want Reversing", seg.RigidTap.State)
	}
	if seg.RigidTap.SpindleDir != -1 {
		t.Errorf("SpindleDir = %v, want -1 after the first reversal", seg.RigidTap.SpindleDir)
	}

	// Reversing: holds until the spindle's direction of travel crosses
	// to match SpindleDir.
	if hold := p.stepRigidTap(&seg, 1); !hold {
		t.Error("expected motion to hold while Reversing awaits the spindle crossing")
	}
	if hold := p.stepRigidTap(&seg, 0); !hold {
		t.Error("expected motion to hold on the crossing cycle too")
	}
	if seg.RigidTap.State != tc.Retraction {
		t.Fatalf("state = %v, want Retraction", seg.RigidTap.State)
	}

	// Retraction: holds until the leg (reanchored by the crossing above)
	// reaches full depth again.
	if hold := p.stepRigidTap(&seg, -1); hold {
		t.Error("expected motion while Retraction is still in progress")
	}
	seg.Progress = seg.Target
	seg.CurVel = 0
	seg.State = tc.S6
	if hold := p.stepRigidTap(&seg, -1); hold {
		t.Error("transitioning out of Retraction should not hold motion this cycle")
	}
	if seg.RigidTap.State != tc.FinalReversal {
		t.Fatalf("state = %v, want FinalReversal", seg.RigidTap.State)
	}
	if seg.RigidTap.SpindleDir != 1 {
		t.Errorf("SpindleDir = %v, want 1 after the final reversal", seg.RigidTap.SpindleDir)
	}

	// FinalReversal: holds until the spindle crosses back to forward,
	// then snaps the segment to fully complete.
	if hold := p.stepRigidTap(&seg, -2); !hold {
		t.Error("expected motion to hold while FinalReversal awaits the spindle crossing")
	}
	if hold := p.stepRigidTap(&seg, -1); !hold {
		t.Error("expected motion to hold on the final crossing cycle")
	}
	if seg.RigidTap.State != tc.FinalPlacement {
		t.Fatalf("state = %v, want FinalPlacement", seg.RigidTap.State)
	}
	if seg.Progress != seg.Target || seg.CurVel != 0 || seg.State != tc.S6 {
		t.Error("FinalPlacement should snap the segment to fully complete")
	}

	// FinalPlacement: terminal, always holds.
	if hold := p.stepRigidTap(&seg, 5); !hold {
		t.Error("expected FinalPlacement to always hold")
	}
}
