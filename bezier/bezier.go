// Package bezier implements cubic Bézier curve evaluation and
// arc-length sampling. The diagnostics renderer uses its Point and
// Bounds types; servo.ResampleJoint uses Cubic.
package bezier

import "math"

// Point is a 2D point, used for the XY projection the diagnostics
// renderer draws.
type Point struct {
	X, Y float64
}

func Pt(x, y float64) Point { return Point{X: x, Y: y} }

func (p Point) Add(q Point) Point { return Point{p.X + q.X, p.Y + q.Y} }
func (p Point) Sub(q Point) Point { return Point{p.X - q.X, p.Y - q.Y} }
func (p Point) Mul(s float64) Point { return Point{p.X * s, p.Y * s} }

// Cubic is a cubic Bézier curve with four control points.
type Cubic struct {
	C0, C1, C2, C3 Point
}

// Point evaluates the curve at t ∈ [0,1] via De Casteljau's algorithm.
func (c Cubic) Point(t float64) Point {
	t1 := 1 - t
	q0 := lerp(c.C0, c.C1, t, t1)
	q1 := lerp(c.C1, c.C2, t, t1)
	q2 := lerp(c.C2, c.C3, t, t1)
	r0 := lerp(q0, q1, t, t1)
	r1 := lerp(q1, q2, t, t1)
	return lerp(r0, r1, t, t1)
}

// Split divides c into two curves at t ∈ [0,1].
func (c Cubic) Split(t float64) (Cubic, Cubic) {
	t1 := 1 - t
	q0 := lerp(c.C0, c.C1, t, t1)
	q1 := lerp(c.C1, c.C2, t, t1)
	q2 := lerp(c.C2, c.C3, t, t1)
	r0 := lerp(q0, q1, t, t1)
	r1 := lerp(q1, q2, t, t1)
	x := lerp(r0, r1, t, t1)
	return Cubic{c.C0, q0, r0, x}, Cubic{x, r1, q2, c.C3}
}

func lerp(a, b Point, t, t1 float64) Point {
	return a.Mul(t1).Add(b.Mul(t))
}

// Bounds is like [image.Rectangle] with a float64 inclusive upper
// bound.
type Bounds struct {
	Min, Max Point
}

func (b Bounds) Union(b2 Bounds) Bounds {
	return Bounds{
		Min: Point{X: min(b.Min.X, b2.Min.X), Y: min(b.Min.Y, b2.Min.Y)},
		Max: Point{X: max(b.Max.X, b2.Max.X), Y: max(b.Max.Y, b2.Max.Y)},
	}
}

// Sample samples enough points on b that chords between samples are
// close to spacing apart, appending them to points. Used to flatten a
// curve segment for line-based rendering.
func Sample(points []Point, b Cubic, spacing float64) []Point {
	const samplingRate = 200
	var first Point
	if len(points) > 0 {
		first = points[len(points)-1]
	}
	var totalDist float64
	prev := first
	for i := 1; i <= samplingRate; i++ {
		s := b.Point(float64(i) / samplingRate)
		totalDist += dist(prev, s)
		prev = s
	}
	nsamples := int(math.Ceil(totalDist / spacing))
	nsamples = max(nsamples, 2)
	adjSpacing := totalDist / float64(nsamples)

	prev = first
	var d float64
	step := 1.0 / samplingRate
	t := 0.0
	for range nsamples - 1 {
		var s Point
		for d < adjSpacing && t < 1 {
			t += step
			s = b.Point(t)
			d += dist(prev, s)
			prev = s
		}
		points = append(points, s)
		d -= adjSpacing
	}
	points = append(points, b.C3)
	return points
}

func dist(a, b Point) float64 {
	d := b.Sub(a)
	return math.Hypot(d.X, d.Y)
}
