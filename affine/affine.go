// Package affine implements the 2D frame transforms diag uses to fit
// a toolpath's machine-XY bounds into an image frame: translate,
// scale, rotate and compose, built on golang.org/x/image/math/f32's
// Aff3.
package affine

import (
	"math"

	"golang.org/x/image/math/f32"
)

// Frame is a 2D affine transform, row-major as f32.Aff3: applying it
// to a point maps machine-space coordinates to the target space
// (image pixels, in diag's case).
type Frame = f32.Aff3

func compose2(a, b Frame) (r Frame) {
	r[0] = a[0]*b[0] + a[1]*b[3]
	r[1] = a[0]*b[1] + a[1]*b[4]
	r[2] = a[0]*b[2] + a[1]*b[5] + a[2]
	r[3] = a[3]*b[0] + a[4]*b[3]
	r[4] = a[3]*b[1] + a[4]*b[4]
	r[5] = a[3]*b[2] + a[4]*b[5] + a[5]
	return r
}

// Compose folds a chain of frames into one by matrix product,
// equivalent to applying the last frame first, then the one before
// it, and so on, ending with frames[0].
func Compose(frames ...Frame) (r Frame) {
	r = frames[0]
	for i := 1; i < len(frames); i++ {
		r = compose2(r, frames[i])
	}
	return r
}

// Translate builds a frame that offsets by p.
func Translate(p f32.Vec2) Frame {
	return Frame{
		1, 0, p[0],
		0, 1, p[1],
	}
}

// Scale builds a frame that scales each axis independently by s.
func Scale(s f32.Vec2) Frame {
	return Frame{
		s[0], 0, 0,
		0, s[1], 0,
	}
}

// Rotate builds a frame that rotates by radians counter-clockwise.
func Rotate(radians float32) Frame {
	sin, cos := math.Sincos(float64(radians))
	s, c := float32(sin), float32(cos)
	return Frame{
		c, -s, 0,
		s, c, 0,
	}
}

// Apply maps p through frame.
func Apply(frame Frame, p f32.Vec2) f32.Vec2 {
	return f32.Vec2{
		p[0]*frame[0] + p[1]*frame[1] + frame[2],
		p[0]*frame[3] + p[1]*frame[4] + frame[5],
	}
}
