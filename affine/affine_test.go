package affine

import (
	"math"
	"testing"

	"golang.org/x/image/math/f32"
)

func near(p1, p2 f32.Vec2) bool {
	const tol = 1e-5
	dx, dy := p2[0]-p1[0], p2[1]-p1[1]
	return math.Abs(math.Sqrt(float64(dx*dx+dy*dy))) < tol
}

func TestApplyRotateAroundPoint(t *testing.T) {
	p := f32.Vec2{-1, -1}
	pt := Apply(Compose(Translate(f32.Vec2{1, 1}), Rotate(-math.Pi/2), Translate(f32.Vec2{-1, -1})), p)
	want := f32.Vec2{-1, 3}
	if !near(pt, want) {
		t.Errorf("rotate about a point: got %v, want %v", pt, want)
	}
}

func TestScaleThenTranslate(t *testing.T) {
	frame := Compose(Translate(f32.Vec2{10, -5}), Scale(f32.Vec2{2, 3}))
	got := Apply(frame, f32.Vec2{4, 2})
	want := f32.Vec2{4*2 + 10, 2*3 - 5}
	if !near(got, want) {
		t.Errorf("Apply(Compose(Translate, Scale)) = %v, want %v", got, want)
	}
}

func TestComposeSingleFrameIsIdentityPassthrough(t *testing.T) {
	frame := Translate(f32.Vec2{3, 4})
	got := Apply(Compose(frame), f32.Vec2{1, 1})
	want := Apply(frame, f32.Vec2{1, 1})
	if !near(got, want) {
		t.Errorf("Compose of a single frame changed the result: got %v, want %v", got, want)
	}
}
