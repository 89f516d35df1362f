// Package tc implements the trajectory-planner segment: the tagged
// motion-geometry union produced by one admitted move, its kinematic
// and synchronization state, and the segment evaluator that maps a
// scalar progress value to a 9-axis pose.
//
// Naming and the per-cycle kinematic update follow the original
// motion core's tc.c/tp.c (TC_STRUCT), adapted from iterator-based
// geometry evaluation the way the teacher's bspline/engrave packages
// walk curves.
package tc

import (
	"math"

	"motioncore.dev/bspline"
	"motioncore.dev/pose"
)

// MotionType is the canonical motion type of a segment.
type MotionType uint8

const (
	Traverse MotionType = iota
	Feed
	Arc
	Probe
	Tap
)

// Kind tags the segment's geometry variant.
type Kind uint8

const (
	Line Kind = iota
	CircularArc
	NURBS
	RigidTap
)

// SCurveState is the jerk-limited velocity profiler's phase, S0…S6.
type SCurveState uint8

const (
	S0 SCurveState = iota
	S1
	S2
	S3
	S4
	S5
	S6
)

// RigidTapState is the rigid-tap reversal sub-state machine.
type RigidTapState uint8

const (
	Tapping RigidTapState = iota
	Reversing
	Retraction
	FinalReversal
	FinalPlacement
)

// TermCond is the termination condition requested at admission.
type TermCond uint8

const (
	Stop TermCond = iota
	Blend
)

// DIOChange is a single digital or analog output change attached to a
// segment, applied exactly once on the cycle the segment activates.
type DIOChange struct {
	Digital bool
	Index   int
	Value   float64
}

// Segment is one admitted motion block: the unit the queue stores and
// the evaluator advances.
type Segment struct {
	ID        int
	Motion    MotionType
	Kind      Kind
	Cycle     int

	Line  pose.Line
	Arc   pose.Circle
	Nurbs bspline.Curve

	// RigidTap carries the xyz line and spindle-coupling parameters
	// for a RigidTap segment.
	RigidTap RigidTapInfo

	Target   float64
	Progress float64

	// ReqVel is the cruise velocity the profiler targets this cycle;
	// the planner's velocity governance recomputes it every cycle from
	// BaseReqVel (the admitted cruise velocity, never itself mutated).
	ReqVel     float64
	BaseReqVel float64
	MaxVel     float64
	MaxAccel   float64
	Jerk       float64

	CurVel       float64
	CurAccel     float64
	State        SCurveState
	OnFinalDecel bool

	Active        bool
	Blending      bool
	VelAtBlend    float64

	BlendWithNext bool
	Tolerance     float64

	Synchronized  bool
	VelocityMode  bool
	UUPerRev      float64
	SpindleProg   float64
	LastCSSCmd    float64

	AtSpeed     bool
	IndexRotary int // 0 means none; 1-based rotary joint index to unlock

	DIO   []DIOChange
	Input *InputWait
}

// InputWait describes a pending digital-input gating condition.
type InputWait struct {
	Index   int
	WaitFor bool
	Timeout float64
}

// RigidTapInfo holds rigid-tap reversal state.
type RigidTapInfo struct {
	Start     pose.Vec3
	Direction pose.Vec3 // unit vector, xyz feed direction

	SpindleStart float64
	SpindleDir   float64 // ±1

	State          RigidTapState
	SpindlePos     float64
	LastSpindlePos float64
}

// EndPose returns the segment's commanded endpoint, used for chaining
// admission and for distance-to-go displays.
func (s *Segment) EndPose(start pose.Pose) pose.Pose {
	return s.Evaluate(start, s.Target)
}

// Evaluate returns the 9-axis pose at progress value prog, clamped
// into [0, Target]. start is the segment's starting pose, needed by
// variants whose geometry is relative (RigidTap) or whose abc/uvw
// bundle is carried externally.
func (s *Segment) Evaluate(start pose.Pose, prog float64) pose.Pose {
	prog = clamp(prog, 0, s.Target)
	switch s.Kind {
	case Line:
		return evaluateLine(s.Line, prog, s.Target)
	case CircularArc:
		return evaluateArc(s.Arc, prog, s.Target)
	case RigidTap:
		return evaluateRigidTap(s, start, prog)
	case NURBS:
		return evaluateNURBS(s.Nurbs, prog, s.Target)
	default:
		return start
	}
}

// evaluateLine interpolates proportionally along the dominant bundle
// (xyz → uvw → abc), the others scaled by magnitude ratio so all
// bundles finish simultaneously (spec's LINE evaluation rule).
func evaluateLine(l pose.Line, prog, target float64) pose.Pose {
	if target == 0 {
		return l.End
	}
	t := prog / target
	return l.Start.Add(l.End.Sub(l.Start).Mul(t))
}

// evaluateArc interpolates the xyz circle by sweep fraction and the
// abc/uvw bundles proportionally, as for Line.
func evaluateArc(c pose.Circle, prog, target float64) pose.Pose {
	var t float64
	if target != 0 {
		t = prog / target
	}
	xyz := c.Point(t)
	abc := c.ABC.Start.Add(c.ABC.End.Sub(c.ABC.Start).Mul(t))
	uvw := c.UVW.Start.Add(c.UVW.End.Sub(c.UVW.Start).Mul(t))
	return abc.WithUVW(uvw.UVW()).WithXYZ(xyz)
}

// evaluateRigidTap evaluates xyz as a line, freezes abc/uvw at the
// start pose, and commands the spindle coordinate directly from
// progress along the tap direction.
func evaluateRigidTap(s *Segment, start pose.Pose, prog float64) pose.Pose {
	info := s.RigidTap
	xyz := info.Start.Add(info.Direction.Mul(prog))
	p := start.WithXYZ(xyz)
	p.S = info.SpindleStart + info.SpindleDir*prog
	return p
}

// evaluateNURBS performs rational B-spline evaluation at u = prog /
// target, clamped to the last control point at u = 1 (spec §4.2).
func evaluateNURBS(c bspline.Curve, prog, target float64) pose.Pose {
	if target == 0 || len(c.Points) == 0 {
		if len(c.Points) > 0 {
			return c.Points[len(c.Points)-1].Pos
		}
		return pose.Pose{}
	}
	u := prog / target
	if u >= 1 {
		return c.Points[len(c.Points)-1].Pos
	}
	lo, _ := c.Span()
	u = clamp(u, lo, 1)
	return c.Point(u)
}

// CurvatureVelocity returns the curvature-limited velocity
// sqrt(max_accel*D) for a NURBS segment evaluated at an interior
// point, used as the effective req_vel for that cycle (spec §4.2
// edge case). It returns false at the segment endpoints.
func (s *Segment) CurvatureVelocity(prog float64) (float64, bool) {
	if s.Kind != NURBS || s.Target == 0 {
		return 0, false
	}
	u := prog / s.Target
	if u <= 0 || u >= 1 {
		return 0, false
	}
	d := s.Nurbs.Curvature(u)
	if d <= 0 {
		return 0, false
	}
	return math.Sqrt(s.MaxAccel * d), true
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
