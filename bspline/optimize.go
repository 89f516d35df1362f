package bspline

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
	"motioncore.dev/pose"
)

// naxis is the number of independently-constrained axes in a Pose:
// x, y, z, a, b, c, u, v, w. The spindle coordinate s does not
// participate in the kinematic fit.
const naxis = 9

func axisValue(p pose.Pose, axis int) float64 {
	switch axis {
	case 0:
		return p.X
	case 1:
		return p.Y
	case 2:
		return p.Z
	case 3:
		return p.A
	case 4:
		return p.B
	case 5:
		return p.C
	case 6:
		return p.U
	case 7:
		return p.V
	default:
		return p.W
	}
}

func setAxis(p *pose.Pose, axis int, v float64) {
	switch axis {
	case 0:
		p.X = v
	case 1:
		p.Y = v
	case 2:
		p.Z = v
	case 3:
		p.A = v
	case 4:
		p.B = v
	case 5:
		p.C = v
	case 6:
		p.U = v
	case 7:
		p.V = v
	default:
		p.W = v
	}
}

// InterpolatePoints takes a clamped cubic uniform B-spline and returns
// a similar spline that minimizes maximum speed, acceleration and
// jerk. The returned spline has a control point in each control point
// interval of the input spline. As a special case, a zero-length
// input B-spline is returned as is.
//
// For example, the clamped uniform B-spline with n+4 control points,
//
//	P0P0P0 - P1 - P2 - P3 - … - P{n-1}P{n-1}P{n-1}
//
// is turned into another clamped uniform B-spline with n+5 control
// points
//
//	Q0Q0Q0 - Q1 - Q2 - Q3 - Q4 - … - Q{n}Q{n}Q{n}
//
// where
//
//	Q0 = P0,
//	Q{n} = P{n-1}, and
//	Q{i} for i∈[1,n-1] is on the line segment P{i-1} - P{i}.
func InterpolatePoints(pts []pose.Pose) (knots []pose.Pose, err error) {
	knots, _, _, _, err = interpolatePoints(pts)
	return
}

func interpolatePoints(pts []pose.Pose) (knots, v, a, j []pose.Pose, err error) {
	// Find the placement of the knots of the smooth B-spline, whose
	// control points lie on the line segments of the original spline.
	// The placement should minimize the maximum of the kinetic
	// properties velocity, acceleration and jerk.
	//
	// Because of the strong convex hull property of B-splines, and
	// because the derivative of a B-spline is another B-spline, it
	// suffices to minimize the kinetic properties at the control
	// points of the B-splines that correspond to those properties.
	//
	// Construct a linear program that minimizes J >= 0, the maximum
	// of all kinetic properties at all control points of the input
	// spline, in the form
	//
	//	minimize	cᵀ x
	//	such that	Ax = b
	//				x >= 0 .
	//
	// To confine the position of internal control points to line
	// segments of the input spline, define each point Q{i} in terms
	// of a scalar weight w{i}∈]0,1[ such that
	//
	//	Q{i} = (1-w{i})P{i}+w{i}P{i+1}
	//	     = w{i}(P{i+1} - P{i}) + P{i}
	//
	// The weight interval is open to ensure unique control points: a
	// duplicate control point would violate the C² continuity of the
	// cubic B-spline.
	//
	// To clamp the output spline, it must contain 3 duplicate control
	// points at each end, so the output spline contains one control
	// point more than the input.
	if len(pts) < 2 {
		return pts, nil, nil, nil, nil
	}

	nsegs := len(pts) - 1
	const varOff = 1
	nctrl := nsegs*(naxis+1) + 1
	ctrl := func(axis, i int) expr {
		idx := varOff + axis*nsegs + i
		return varExpr(idx)
	}
	λ := func(i int) expr {
		λOff := varOff + nsegs*naxis
		return varExpr(λOff + i)
	}
	jOff := varOff + nctrl - 1
	J := varExpr(jOff)

	var eqs, ineqs []expr
	addConstraint := func(cons expr, op rune) expr {
		if cons.IsZero() {
			return expr{}
		}
		if op == '≤' {
			slackIdx := jOff + 1 + len(ineqs)
			slack := varExpr(slackIdx)
			cons = cons.Add(slack)
			ineqs = append(ineqs, cons)
			return slack
		}
		eqs = append(eqs, cons)
		return expr{}
	}
	addKinematic := func(e expr, scale float64) expr {
		if e.IsZero() {
			return expr{}
		}
		s := addConstraint(e.Mul(+scale).Sub(J), '≤')
		addConstraint(e.Mul(-scale).Sub(J), '≤')
		return J.Sub(s).Div(scale)
	}

	const (
		vScale = 1
		aScale = 1
		jScale = 10
	)
	derive := func(knots [4]uint, p0, p1 expr, degree int) expr {
		t := uint(0)
		for _, k := range knots[1 : degree+1] {
			t += k
		}
		res := expr{}
		if t != 0 {
			res = p1.Sub(p0).Mul(float64(degree) / float64(t))
		}
		return res
	}
	type state struct {
		knots [4]uint
		λ     [2]expr
		s     [2]float64
		p     [3]expr
		v, a  expr
	}
	var vExprs, aExprs, jExprs []expr
	nknots := 0
	knot := func(last state, t uint, p expr, s float64, λ expr) state {
		copy(last.knots[:], last.knots[1:])
		last.knots[3] = t
		B := bsplineBasis(last.knots)
		s0, s1 := last.s[0], last.s[1]
		ctrl := expr{}
		for i, b := range B {
			ctrl = ctrl.Add(last.p[i].Mul(b))
		}
		cons := ctrl.Add(last.λ[0].Mul(-(s1 - s0))).Sub(constExpr(s0))
		addConstraint(cons, '=')

		copy(last.s[:], last.s[1:])
		last.s[1] = s
		copy(last.p[:], last.p[1:])
		last.p[2] = p
		copy(last.λ[:], last.λ[1:])
		last.λ[1] = λ
		v := derive(last.knots, last.p[0], last.p[1], 3)
		a := derive(last.knots, last.v, v, 2)
		last.v = v
		j := derive(last.knots, last.a, a, 1)
		last.a = a

		if nknots >= 3 {
			vExprs = append(vExprs, addKinematic(v, vScale))
			if nknots >= 4 {
				aExprs = append(aExprs, addKinematic(a, aScale))
				if nknots >= 5 {
					jExprs = append(jExprs, addKinematic(j, jScale))
				}
			}
		}
		nknots++
		return last
	}

	// Improve conditioning by normalizing input points to [1;2];
	// control coordinates lie between input points, so they stay in
	// [1;2] and satisfy the LP's non-negativity bound.
	var minPt, ptScale [naxis]float64
	const ptOffset = 1
	for axis := range naxis {
		nknots = 0
		mi, ma := math.Inf(+1), math.Inf(-1)
		for _, p := range pts {
			v := axisValue(p, axis)
			mi, ma = min(mi, v), max(ma, v)
		}
		scale := max(1, ma-mi)
		s := func(i int) float64 {
			return (axisValue(pts[i], axis)-mi)/scale + ptOffset
		}
		minPt[axis] = mi
		ptScale[axis] = scale

		var last state
		start := s(0)
		for range 3 {
			last = knot(last, 0, constExpr(start), start, expr{})
		}
		for i := range nsegs {
			last = knot(last, 1, ctrl(axis, i), s(i), λ(i))
		}
		end := s(nsegs)
		for i := range 3 {
			t := uint(1)
			if i > 0 {
				t = 0
			}
			last = knot(last, t, constExpr(end), end, expr{})
		}
	}

	const ε = .05
	for i := range nsegs {
		cons := λ(i).Add(constExpr(-(1 - ε)))
		addConstraint(cons, '≤')
	}
	cons := λ(0).Mul(-1).Add(constExpr(ε))
	addConstraint(cons, '≤')

	ncons := len(ineqs) + len(eqs)
	nvars := nctrl + len(ineqs)
	A := mat.NewDense(ncons, nvars, nil)
	b := make([]float64, ncons)
	for row, c := range ineqs {
		cons := c.Explode()
		for i, v := range cons[1:] {
			A.Set(row, i, v)
		}
		b[row] = -cons[0]
	}
	for i, c := range eqs {
		row := len(ineqs) + i
		cons := c.Explode()
		for i, v := range cons[1:] {
			A.Set(row, i, v)
		}
		b[row] = -cons[0]
	}
	c := make([]float64, nvars)
	copy(c, J.Explode()[1:])
	_, x, err := lp.Simplex(c, A, b, 1e-6, nil)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	eval := func(e expr) float64 {
		coeffs := e.Explode()
		v := coeffs[0]
		for i, coeff := range coeffs[1:] {
			v += coeff * x[i]
		}
		return v
	}

	ctrls := make([]pose.Pose, 0, nsegs+2)
	start, end := pts[0], pts[len(pts)-1]
	ctrls = append(ctrls, start, start, start)
	for i := range nsegs {
		var q pose.Pose
		for axis := range naxis {
			v := eval(ctrl(axis, i))
			scale, mi := ptScale[axis], minPt[axis]
			setAxis(&q, axis, (v-ptOffset)*scale+mi)
		}
		ctrls = append(ctrls, q)
	}
	ctrls = append(ctrls, end, end, end)

	recoverKin := func(exprs []expr) []pose.Pose {
		var out []pose.Pose
		nvals := len(exprs) / naxis
		for i := range nvals {
			var q pose.Pose
			for axis := range naxis {
				scale := ptScale[axis]
				e := exprs[axis*nvals+i]
				setAxis(&q, axis, eval(e)*scale)
			}
			out = append(out, q)
		}
		return out
	}
	v = recoverKin(vExprs)
	a = recoverKin(aExprs)
	j = recoverKin(jExprs)
	return ctrls, v, a, j, nil
}

// bsplineBasis computes the coefficients of the B-spline control
// points at the start of the segment, grounded on original_source's
// uniform cubic B-spline basis via Böhm's algorithm.
func bsplineBasis(knots [4]uint) [3]float64 {
	dt1, dt2, dt3, dt4 := float64(knots[0]), float64(knots[1]), float64(knots[2]), float64(knots[3])
	if dt3 == 0 {
		return [...]float64{0, 1, 0}
	}
	d1 := dt4 + dt3 + dt2
	p334c2, p334c3 := (dt4+dt3)/d1, dt2/d1
	d2 := dt3 + dt2 + dt1
	p323c1, p323c2 := dt3/d2, (dt2+dt1)/d2
	d4 := dt3 + dt2
	c1, c2, c3 := p323c1*dt3/d4, (p323c2*dt3+p334c2*dt2)/d4, p334c3*dt2/d4
	return [...]float64{c1, c2, c3}
}

// constExpr returns an expression with the constant coefficient set
// to c.
func constExpr(c float64) expr {
	return expr{c0: c}
}

// varExpr returns an expression with the ith coefficient set to 1.
func varExpr(i int) expr {
	if i == 0 {
		return constExpr(1)
	}
	s := expr{
		zeros: i - 1,
		c:     make([]float64, 1),
	}
	s.c[0] = 1
	return s.normalize()
}

// expr is a value represented by a vector of coefficients c{i} for
// implicit variables v{i}:
//
//	e = c{0} + c{1}v{0}...c{n}v{n-1}
type expr struct {
	c0    float64
	c     []float64
	zeros int
}

func (s expr) IsZero() bool {
	return s.c0 == 0 && len(s.c) == 0
}

func (s expr) Explode() []float64 {
	r := make([]float64, s.numCoeffs())
	r[0] = s.c0
	copy(r[1+s.zeros:], s.c)
	return r
}

func (s expr) numCoeffs() int {
	return 1 + s.zeros + len(s.c)
}

func (s expr) String() string {
	coeffs := s.Explode()
	if len(coeffs) == 1 {
		return fmt.Sprintf("%g", coeffs[0])
	}
	return fmt.Sprintf("%g", coeffs)
}

func (s expr) Const() float64 {
	if len(s.c) > 0 {
		panic("non-const expression")
	}
	return s.c0
}

func (s expr) copy() expr {
	c := expr{
		zeros: s.zeros,
		c0:    s.c0,
		c:     make([]float64, len(s.c)),
	}
	copy(c.c, s.c)
	return c
}

func (s expr) Mul(f float64) expr {
	sf := s.copy()
	sf.c0 *= f
	for i := range sf.c {
		sf.c[i] *= f
	}
	return sf.normalize()
}

func (s expr) Div(f float64) expr {
	sf := s.copy()
	sf.c0 /= f
	for i := range sf.c {
		sf.c[i] /= f
	}
	return sf.normalize()
}

func (s expr) Sub(s2 expr) expr {
	return s.Add(s2.Mul(-1))
}

func (s expr) Add(s2 expr) expr {
	cmin := min(s.zeros, s2.zeros)
	cmax := max(s.zeros+len(s.c), s2.zeros+len(s2.c))
	r := expr{
		c0:    s.c0 + s2.c0,
		zeros: cmin,
		c:     make([]float64, cmax-cmin),
	}
	copy(r.c[s.zeros-cmin:], s.c)
	for i, c := range s2.c {
		r.c[s2.zeros-cmin+i] += c
	}
	return r.normalize()
}

// normalize left-adjusts the coefficients.
func (s expr) normalize() expr {
	for len(s.c) > 0 {
		n := len(s.c)
		if s.c[n-1] != 0 {
			break
		}
		s.c = s.c[:n-1]
	}
	for i, c := range s.c {
		if c == 0 {
			continue
		}
		copy(s.c, s.c[i:])
		s.c = s.c[:len(s.c)-i]
		s.zeros += i
		break
	}
	return s
}
