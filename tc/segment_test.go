package tc

import (
	"math"
	"testing"

	"motioncore.dev/pose"
)

func basicConstraints() Constraints {
	return Constraints{ReqVel: 10, MaxVel: 10, MaxAccel: 100, Jerk: 1000}
}

func TestNewLineEndpoint(t *testing.T) {
	start := pose.Pose{}
	end := pose.Pose{X: 100}
	seg, err := NewLine(1, 0, start, end, basicConstraints(), 0.001)
	if err != nil {
		t.Fatal(err)
	}
	got := seg.Evaluate(start, seg.Target)
	if math.Abs(got.X-100) > 1e-9 {
		t.Errorf("endpoint X = %v, want 100", got.X)
	}
	if math.Abs(seg.Target-100) > 1e-9 {
		t.Errorf("Target = %v, want 100", seg.Target)
	}
}

func TestNewLineRejectsZeroJerk(t *testing.T) {
	c := basicConstraints()
	c.Jerk = 0
	if _, err := NewLine(1, 0, pose.Pose{}, pose.Pose{X: 1}, c, 0.001); err == nil {
		t.Errorf("expected error for zero jerk")
	}
}

func TestArcStaysOnCircle(t *testing.T) {
	circle := pose.Circle{
		Center: pose.Vec3{},
		Normal: pose.Vec3{Z: 1},
		Ref:    pose.Vec3{X: 1},
		Radius: 10,
		Angle:  math.Pi,
	}
	seg, err := NewArc(1, 0, circle, basicConstraints(), 0.001)
	if err != nil {
		t.Fatal(err)
	}
	for _, frac := range []float64{0, 0.25, 0.5, 0.75, 1} {
		p := seg.Evaluate(pose.Pose{}, seg.Target*frac)
		r := p.XYZ().Sub(circle.Center).Length()
		if math.Abs(r-circle.Radius) > 1e-6 {
			t.Errorf("progress %v: radius = %v, want %v", frac, r, circle.Radius)
		}
	}
}

func TestRigidTapReturnsToStartXY(t *testing.T) {
	start := pose.Vec3{X: 1, Y: 2, Z: 0}
	seg, err := NewRigidTap(1, 0, start, -10, 1, basicConstraints(), 0.001)
	if err != nil {
		t.Fatal(err)
	}
	full := seg.Evaluate(pose.Pose{}, seg.Target)
	if math.Abs(full.X-start.X) > 1e-9 || math.Abs(full.Y-start.Y) > 1e-9 {
		t.Errorf("xy drifted during tap: got (%v,%v), want (%v,%v)", full.X, full.Y, start.X, start.Y)
	}
	if math.Abs(full.Z-(-10)) > 1e-9 {
		t.Errorf("final Z = %v, want -10", full.Z)
	}
}

func TestNURBSEndpoints(t *testing.T) {
	b := NewNURBSBuilder(1, 0, 3, basicConstraints(), 0.001)
	pts := []pose.Pose{
		{X: 0, Y: 0}, {X: 0, Y: 0}, {X: 0, Y: 0},
		{X: 10, Y: 20}, {X: 20, Y: 0}, {X: 20, Y: 0}, {X: 20, Y: 0},
	}
	for _, p := range pts {
		b.Add(p, 1, 10, 0)
	}
	seg, err := b.Finish()
	if err != nil {
		t.Fatal(err)
	}
	start := seg.Evaluate(pose.Pose{}, 0)
	if math.Abs(start.X-pts[0].X) > 1e-6 || math.Abs(start.Y-pts[0].Y) > 1e-6 {
		t.Errorf("u=0 = %+v, want %+v", start, pts[0])
	}
	end := seg.Evaluate(pose.Pose{}, seg.Target)
	last := pts[len(pts)-1]
	if math.Abs(end.X-last.X) > 1e-6 || math.Abs(end.Y-last.Y) > 1e-6 {
		t.Errorf("u=1 = %+v, want %+v", end, last)
	}
}

func TestNURBSBuilderRejectsTooFewPoints(t *testing.T) {
	b := NewNURBSBuilder(1, 0, 3, basicConstraints(), 0.001)
	b.Add(pose.Pose{}, 1, 10, 0)
	if _, err := b.Finish(); err == nil {
		t.Errorf("expected error for too few control points")
	}
}
