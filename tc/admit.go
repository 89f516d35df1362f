package tc

import (
	"fmt"
	"math"

	"motioncore.dev/bspline"
	"motioncore.dev/pose"
)

// Constraints are the per-move kinematic ceilings supplied at
// admission, in natural units; NewLine/NewArc/NewRigidTap pre-scale
// them into per-cycle units using period.
type Constraints struct {
	ReqVel   float64
	MaxVel   float64
	MaxAccel float64
	Jerk     float64
}

// Validate rejects non-positive jerk/accel/velocity, the only
// configuration error the planner checks at admission (spec §4.4.1).
func (c Constraints) Validate() error {
	if c.Jerk <= 0 {
		return fmt.Errorf("tc: jerk must be positive, got %v", c.Jerk)
	}
	if c.MaxAccel <= 0 {
		return fmt.Errorf("tc: max acceleration must be positive, got %v", c.MaxAccel)
	}
	if c.MaxVel <= 0 {
		return fmt.Errorf("tc: max velocity must be positive, got %v", c.MaxVel)
	}
	return nil
}

// scaled returns a Segment with its kinematic fields pre-multiplied
// into per-cycle units: jerk by period³, accel by period², velocity
// by period, matching the discrete update in spec §4.3.
func scaled(id int, cycle int, motion MotionType, c Constraints, period float64) Segment {
	return Segment{
		ID:         id,
		Motion:     motion,
		Cycle:      cycle,
		ReqVel:     c.ReqVel * period,
		BaseReqVel: c.ReqVel * period,
		MaxVel:     c.MaxVel * period,
		MaxAccel:   c.MaxAccel * period * period,
		Jerk:       c.Jerk * period * period * period,
	}
}

// NewLine builds a LINE segment from start to end.
func NewLine(id, cycle int, start, end pose.Pose, c Constraints, period float64) (Segment, error) {
	if err := c.Validate(); err != nil {
		return Segment{}, err
	}
	s := scaled(id, cycle, Feed, c, period)
	s.Kind = Line
	s.Line = pose.Line{Start: start, End: end}
	s.Target = s.Line.Length()
	return s, nil
}

// NewArc builds an ARC segment.
func NewArc(id, cycle int, circle pose.Circle, c Constraints, period float64) (Segment, error) {
	if err := c.Validate(); err != nil {
		return Segment{}, err
	}
	s := scaled(id, cycle, Arc, c, period)
	s.Kind = CircularArc
	s.Arc = circle
	s.Target = circle.ArcLength()
	return s, nil
}

// NewRigidTap builds a RIGID_TAP segment. Rigid tap is only permitted
// in spindle-synchronous mode (spec §4.4.1); callers must already be
// in a synchronized segment stream.
func NewRigidTap(id, cycle int, start pose.Vec3, depth, uuPerRev float64, c Constraints, period float64) (Segment, error) {
	if err := c.Validate(); err != nil {
		return Segment{}, err
	}
	s := scaled(id, cycle, Tap, c, period)
	s.Kind = RigidTap
	s.Synchronized = true
	s.UUPerRev = uuPerRev
	dir, ok := pose.Vec3{Z: -1}.Unit()
	if !ok {
		dir = pose.Vec3{Z: -1}
	}
	if depth < 0 {
		dir = dir.Mul(-1)
	}
	s.Target = math.Abs(depth)
	s.RigidTap = RigidTapInfo{
		Start:        start,
		Direction:    dir,
		SpindleStart: 0,
		SpindleDir:   1,
		State:        Tapping,
	}
	return s, nil
}

// NURBSBuilder accumulates control points and knots for incremental
// NURBS admission: add_nurbs is called once per control point, and
// Finish pushes the completed segment (spec §4.4.1).
type NURBSBuilder struct {
	id, cycle int
	motion    MotionType
	c         Constraints
	period    float64
	degree    int
	points    []controlPointIn
}

type controlPointIn struct {
	pos       pose.Pose
	weight    float64
	feed      float64
	curvature float64
}

// NewNURBSBuilder starts an incremental NURBS admission.
func NewNURBSBuilder(id, cycle, degree int, c Constraints, period float64) *NURBSBuilder {
	return &NURBSBuilder{id: id, cycle: cycle, motion: Feed, c: c, period: period, degree: degree}
}

// Add appends one control point.
func (b *NURBSBuilder) Add(p pose.Pose, weight, feed, curvature float64) {
	b.points = append(b.points, controlPointIn{pos: p, weight: weight, feed: feed, curvature: curvature})
}

// Finish finalizes the segment once the last control point has been
// added.
func (b *NURBSBuilder) Finish() (Segment, error) {
	if err := b.c.Validate(); err != nil {
		return Segment{}, err
	}
	if len(b.points) < b.degree+1 {
		return Segment{}, fmt.Errorf("tc: NURBS needs at least %d control points, got %d", b.degree+1, len(b.points))
	}
	s := scaled(b.id, b.cycle, b.motion, b.c, b.period)
	s.Kind = NURBS
	pts := make([]bspline.ControlPoint, len(b.points))
	for i, p := range b.points {
		pts[i] = bspline.ControlPoint{Pos: p.pos, Weight: p.weight, Feed: p.feed, Curvature: p.curvature}
	}
	s.Nurbs = bspline.Curve{
		Degree: b.degree,
		Knots:  bspline.ClampedKnots(len(pts), b.degree),
		Points: pts,
	}
	s.Target = nurbsArcLength(s.Nurbs)
	return s, nil
}

// nurbsArcLength approximates the curve's arc length by summing
// chord lengths over a fixed parameter sampling, adequate for a
// progress-scale target (spec's `target` need only be a consistent
// arc-length-like scalar, not an exact length).
func nurbsArcLength(c bspline.Curve) float64 {
	const samples = 64
	lo, hi := c.Span()
	if len(c.Points) == 0 {
		return 0
	}
	prev := c.Point(lo)
	var total float64
	for i := 1; i <= samples; i++ {
		u := lo + (hi-lo)*float64(i)/samples
		p := c.Point(u)
		total += chordLength(prev, p)
		prev = p
	}
	return total
}

func chordLength(a, b pose.Pose) float64 {
	d := a.Sub(b)
	return d.XYZ().Length()
}
