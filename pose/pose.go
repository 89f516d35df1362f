// Package pose implements the 9-axis Cartesian pose and the line/circle
// geometry primitives the trajectory planner blends and evaluates.
package pose

import "math"

// Pose is a 9-axis Cartesian pose plus the spindle coordinate, the unit
// the planner and the segment evaluator operate on throughout.
type Pose struct {
	X, Y, Z float64
	A, B, C float64
	U, V, W float64
	S       float64
}

// Vec3 is a 3D vector, used for the xyz and abc/uvw bundles and for
// circle geometry.
type Vec3 struct {
	X, Y, Z float64
}

func (p Pose) XYZ() Vec3 { return Vec3{p.X, p.Y, p.Z} }
func (p Pose) ABC() Vec3 { return Vec3{p.A, p.B, p.C} }
func (p Pose) UVW() Vec3 { return Vec3{p.U, p.V, p.W} }

// WithXYZ returns p with its xyz bundle replaced.
func (p Pose) WithXYZ(v Vec3) Pose {
	p.X, p.Y, p.Z = v.X, v.Y, v.Z
	return p
}

// WithABC returns p with its abc bundle replaced.
func (p Pose) WithABC(v Vec3) Pose {
	p.A, p.B, p.C = v.X, v.Y, v.Z
	return p
}

// WithUVW returns p with its uvw bundle replaced.
func (p Pose) WithUVW(v Vec3) Pose {
	p.U, p.V, p.W = v.X, v.Y, v.Z
	return p
}

func (a Vec3) Add(b Vec3) Vec3 { return Vec3{a.X + b.X, a.Y + b.Y, a.Z + b.Z} }
func (a Vec3) Sub(b Vec3) Vec3 { return Vec3{a.X - b.X, a.Y - b.Y, a.Z - b.Z} }
func (a Vec3) Mul(s float64) Vec3 {
	return Vec3{a.X * s, a.Y * s, a.Z * s}
}
func (a Vec3) Dot(b Vec3) float64 {
	return a.X*b.X + a.Y*b.Y + a.Z*b.Z
}
func (a Vec3) Cross(b Vec3) Vec3 {
	return Vec3{
		X: a.Y*b.Z - a.Z*b.Y,
		Y: a.Z*b.X - a.X*b.Z,
		Z: a.X*b.Y - a.Y*b.X,
	}
}
func (a Vec3) Length() float64 {
	return math.Sqrt(a.Dot(a))
}

// Unit returns a normalized to unit length, and false if a is the zero
// vector.
func (a Vec3) Unit() (Vec3, bool) {
	l := a.Length()
	if l == 0 {
		return Vec3{}, false
	}
	return a.Mul(1 / l), true
}

func (p Pose) Sub(q Pose) Pose {
	return Pose{
		X: p.X - q.X, Y: p.Y - q.Y, Z: p.Z - q.Z,
		A: p.A - q.A, B: p.B - q.B, C: p.C - q.C,
		U: p.U - q.U, V: p.V - q.V, W: p.W - q.W,
		S: p.S - q.S,
	}
}

func (p Pose) Add(q Pose) Pose {
	return Pose{
		X: p.X + q.X, Y: p.Y + q.Y, Z: p.Z + q.Z,
		A: p.A + q.A, B: p.B + q.B, C: p.C + q.C,
		U: p.U + q.U, V: p.V + q.V, W: p.W + q.W,
		S: p.S + q.S,
	}
}

func (p Pose) Mul(s float64) Pose {
	return Pose{
		X: p.X * s, Y: p.Y * s, Z: p.Z * s,
		A: p.A * s, B: p.B * s, C: p.C * s,
		U: p.U * s, V: p.V * s, W: p.W * s,
		S: p.S * s,
	}
}

// Line is a straight segment between two 9-axis poses.
type Line struct {
	Start, End Pose
}

// Length returns the Euclidean length of the dominant bundle, following
// the xyz → uvw → abc precedence of spec.md §4.2: the first bundle with
// non-zero displacement carries progress.
func (l Line) Length() float64 {
	d := l.End.Sub(l.Start)
	if v := d.XYZ().Length(); v != 0 {
		return v
	}
	if v := d.UVW().Length(); v != 0 {
		return v
	}
	return d.ABC().Length()
}

// Circle is a circular arc in xyz defined by its center, plane normal,
// an in-plane reference axis where the arc starts, and a signed sweep
// angle (radians), plus a proportional abc/uvw line bundle that
// finishes with the arc.
type Circle struct {
	Center Vec3
	Normal Vec3 // unit vector, plane normal
	Ref    Vec3 // unit vector in-plane, angle-zero reference
	Radius float64
	Angle  float64 // total signed sweep, radians

	ABC Line // abc proportional bundle (xyz component of Start/End ignored)
	UVW Line
}

// Point evaluates the circle at sweep fraction t ∈ [0,1].
func (c Circle) Point(t float64) Vec3 {
	theta := c.Angle * t
	sin, cos := math.Sincos(theta)
	perp := c.Normal.Cross(c.Ref)
	return c.Center.
		Add(c.Ref.Mul(c.Radius * cos)).
		Add(perp.Mul(c.Radius * sin))
}

// ArcLength returns the length of the circular arc.
func (c Circle) ArcLength() float64 {
	return math.Abs(c.Angle) * c.Radius
}
