package diag

import (
	"bytes"
	"image/png"
	"testing"

	"motioncore.dev/bezier"
)

func TestRenderProducesDecodablePNG(t *testing.T) {
	segs := []Segment{
		{Points: []bezier.Point{bezier.Pt(0, 0), bezier.Pt(10, 0), bezier.Pt(10, 10)}},
		{Points: []bezier.Point{bezier.Pt(10, 10), bezier.Pt(0, 0)}, Move: true},
	}
	var buf bytes.Buffer
	if err := Render(&buf, segs, 200, 200, 10, 2); err != nil {
		t.Fatalf("Render: %v", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 200 || b.Dy() != 200 {
		t.Errorf("image bounds = %v, want 200x200", b)
	}
}

func TestRenderEmptyPathsStillProducesImage(t *testing.T) {
	var buf bytes.Buffer
	if err := Render(&buf, nil, 50, 50, 5, 1); err != nil {
		t.Fatalf("Render with no segments: %v", err)
	}
	if _, err := png.Decode(&buf); err != nil {
		t.Fatalf("decode output: %v", err)
	}
}

func TestFitTransformMapsBoundsIntoFrame(t *testing.T) {
	segs := []Segment{{Points: []bezier.Point{bezier.Pt(0, 0), bezier.Pt(100, 100)}}}
	xform := fitTransform(segs, 200, 200, 20)
	// The transform should be non-degenerate (nonzero scale).
	if xform[0] == 0 || xform[4] == 0 {
		t.Errorf("fitTransform produced a degenerate matrix: %v", xform)
	}
}
