package bezier

import (
	"math"
	"testing"
)

func TestCubicPointEndpoints(t *testing.T) {
	c := Cubic{
		C0: Pt(0, 0), C1: Pt(10, 30), C2: Pt(40, 30), C3: Pt(50, 0),
	}
	if got := c.Point(0); got != c.C0 {
		t.Errorf("Point(0) = %v, want %v", got, c.C0)
	}
	if got := c.Point(1); got != c.C3 {
		t.Errorf("Point(1) = %v, want %v", got, c.C3)
	}
}

func TestCubicSplitContinuity(t *testing.T) {
	c := Cubic{C0: Pt(0, 0), C1: Pt(10, 30), C2: Pt(40, 30), C3: Pt(50, 0)}
	left, right := c.Split(0.3)
	if left.C0 != c.C0 || right.C3 != c.C3 {
		t.Errorf("split endpoints changed: left=%v right=%v", left, right)
	}
	if left.C3 != right.C0 {
		t.Errorf("split halves disagree at the split point: %v != %v", left.C3, right.C0)
	}
	want := c.Point(0.3)
	if math.Abs(left.C3.X-want.X) > 1e-9 || math.Abs(left.C3.Y-want.Y) > 1e-9 {
		t.Errorf("split point = %v, want %v", left.C3, want)
	}
}

func TestSampleSpacing(t *testing.T) {
	c := Cubic{C0: Pt(0, 0), C1: Pt(0, 100), C2: Pt(100, 100), C3: Pt(100, 0)}
	pts := Sample(nil, c, 10)
	if len(pts) < 2 {
		t.Fatalf("expected multiple samples, got %d", len(pts))
	}
	if pts[len(pts)-1] != c.C3 {
		t.Errorf("last sample = %v, want curve endpoint %v", pts[len(pts)-1], c.C3)
	}
	for i := 1; i < len(pts); i++ {
		d := dist(pts[i-1], pts[i])
		if d > 20 {
			t.Errorf("sample spacing %v exceeds tolerance at index %d", d, i)
		}
	}
}
