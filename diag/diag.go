// Package diag renders a planned or executed toolpath's XY projection
// to a PNG, for offline inspection. Not part of the real-time servo
// path. Grounded on engrave.Rasterizer/engrave.NewRasterizer's
// rasterx.Dasher usage, generalized from engraving strokes to
// flattened tc.Segment geometry, with affine.Frame providing the
// model-to-image transform engrave.Rasterizer did inline.
package diag

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"

	"github.com/srwiley/rasterx"
	"golang.org/x/image/math/f32"
	"golang.org/x/image/math/fixed"

	"motioncore.dev/affine"
	"motioncore.dev/bezier"
)

// Segment is one flattened toolpath, a polyline in machine XY units;
// Move breaks the line (a rapid/positioning move between cuts).
type Segment struct {
	Points []bezier.Point
	Move   bool
}

// Render draws segs onto a width x height image, fitting the
// combined bounds of all segments into the frame with margin-px
// border, and writes the PNG-encoded result to w.
func Render(w io.Writer, segs []Segment, width, height, margin int, strokeWidth int) error {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	xform := fitTransform(segs, width, height, margin)

	scanner := rasterx.NewScannerGV(width, height, img, img.Bounds())
	dasher := rasterx.NewDasher(width, height, scanner)
	dasher.SetStroke(fixed.I(strokeWidth), 0, rasterx.RoundCap, rasterx.RoundCap, rasterx.RoundGap, rasterx.ArcClip, nil, 0)

	for _, seg := range segs {
		if len(seg.Points) == 0 {
			continue
		}
		if seg.Move {
			dasher.SetColor(color.RGBA{R: 0x80, G: 0x80, B: 0x80, A: 0xff})
		} else {
			dasher.SetColor(color.Black)
		}
		started := false
		for _, p := range seg.Points {
			tp := affine.Apply(xform, f32.Vec2{float32(p.X), float32(p.Y)})
			pt := rasterx.ToFixedP(float64(tp[0]), float64(tp[1]))
			if !started {
				dasher.Start(pt)
				started = true
				continue
			}
			dasher.Line(pt)
		}
		dasher.Stop(false)
	}
	dasher.Draw()

	return png.Encode(w, img)
}

// fitTransform computes the affine transform that maps segs' combined
// bounds into [margin, width-margin] x [margin, height-margin],
// flipping Y since image rows grow downward while machine Y grows up.
func fitTransform(segs []Segment, width, height, margin int) affine.Frame {
	b, ok := bounds(segs)
	if !ok {
		return affine.Frame{1, 0, 0, 0, 1, 0}
	}
	spanX := float32(b.Max.X - b.Min.X)
	spanY := float32(b.Max.Y - b.Min.Y)
	if spanX == 0 {
		spanX = 1
	}
	if spanY == 0 {
		spanY = 1
	}
	availW := float32(width - 2*margin)
	availH := float32(height - 2*margin)
	s := min(availW/spanX, availH/spanY)

	toOrigin := affine.Translate(f32.Vec2{-float32(b.Min.X), -float32(b.Min.Y)})
	scale := affine.Scale(f32.Vec2{s, -s})
	toFrame := affine.Translate(f32.Vec2{float32(margin), float32(height - margin)})
	return affine.Compose(toFrame, scale, toOrigin)
}

func bounds(segs []Segment) (bezier.Bounds, bool) {
	var b bezier.Bounds
	found := false
	for _, seg := range segs {
		for _, p := range seg.Points {
			pb := bezier.Bounds{Min: p, Max: p}
			if !found {
				b = pb
				found = true
			} else {
				b = b.Union(pb)
			}
		}
	}
	return b, found
}
