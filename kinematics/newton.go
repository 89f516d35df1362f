package kinematics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"motioncore.dev/pose"
)

// InverseFunc computes joint positions for a pose in closed form.
type InverseFunc func(p pose.Pose) ([]float64, error)

// ForwardFunc computes the pose reached by a joint vector in closed
// form. Newton uses it both to evaluate residuals and, via finite
// differences, to build the Jacobian it inverts each iteration.
type ForwardFunc func(joints []float64) (pose.Pose, error)

// Newton computes forward kinematics by Newton-Raphson iteration in
// joint space: starting from Inv(guess), it drives Inv(Fwd(x)) toward
// the given joints and returns Fwd(x). It needs a closed-form Fwd as
// well as Inv; it does not derive forward kinematics from Inv alone.
// Its linear solve follows the same gonum/v1/gonum/mat
// linear-solve idiom the point-fitting code in bspline/optimize.go
// uses for its own Jacobian-shaped system.
type Newton struct {
	N         int
	Fwd       ForwardFunc
	Inv       InverseFunc
	MaxIter   int
	Tolerance float64
}

func (k *Newton) Type() Type     { return InverseOnly }
func (k *Newton) NumJoints() int { return k.N }

func (k *Newton) Inverse(p pose.Pose) ([]float64, error) {
	return k.Inv(p)
}

// Forward iterates x_{n+1} = x_n - J^-1 (f(x_n) - target), using
// Inv(guess) as x_0 and a forward-difference Jacobian of f = Inv(Fwd(x)).
func (k *Newton) Forward(joints []float64, guess pose.Pose) (pose.Pose, error) {
	if len(joints) != k.N {
		return pose.Pose{}, fmt.Errorf("kinematics: expected %d joints, got %d", k.N, len(joints))
	}
	maxIter := k.MaxIter
	if maxIter == 0 {
		maxIter = 50
	}
	tol := k.Tolerance
	if tol == 0 {
		tol = 1e-9
	}

	x, err := k.Inv(guess)
	if err != nil || len(x) != k.N {
		x = make([]float64, k.N)
		copy(x, joints)
	}

	target := make([]float64, k.N)
	for i := range target {
		target[i] = joints[i]
	}

	for iter := 0; iter < maxIter; iter++ {
		fx, err := k.evalResidual(x, target)
		if err != nil {
			return pose.Pose{}, err
		}
		if norm(fx) < tol {
			p, err := k.Fwd(x)
			return p, err
		}
		J, err := k.jacobian(x, target)
		if err != nil {
			return pose.Pose{}, err
		}
		var dx mat.VecDense
		b := mat.NewVecDense(k.N, fx)
		if err := dx.SolveVec(J, b); err != nil {
			return pose.Pose{}, fmt.Errorf("kinematics: newton: singular jacobian: %w", err)
		}
		for i := range x {
			x[i] -= dx.AtVec(i)
		}
	}
	return pose.Pose{}, fmt.Errorf("kinematics: newton: did not converge within %d iterations", maxIter)
}

// evalResidual returns Fwd(x) mapped back to joint space via Inv,
// minus target — the joint-space error Newton drives to zero. Using
// Inv to pull the Cartesian residual back into joint space lets the
// solver work for machines whose joint count differs from 9.
func (k *Newton) evalResidual(x, target []float64) ([]float64, error) {
	p, err := k.Fwd(x)
	if err != nil {
		return nil, err
	}
	j, err := k.Inv(p)
	if err != nil {
		return nil, err
	}
	r := make([]float64, k.N)
	for i := range r {
		r[i] = j[i] - target[i]
	}
	return r, nil
}

func (k *Newton) jacobian(x, target []float64) (*mat.Dense, error) {
	const h = 1e-6
	J := mat.NewDense(k.N, k.N, nil)
	base, err := k.evalResidual(x, target)
	if err != nil {
		return nil, err
	}
	xh := make([]float64, k.N)
	for col := 0; col < k.N; col++ {
		copy(xh, x)
		xh[col] += h
		fh, err := k.evalResidual(xh, target)
		if err != nil {
			return nil, err
		}
		for row := 0; row < k.N; row++ {
			J.Set(row, col, (fh[row]-base[row])/h)
		}
	}
	return J, nil
}

func norm(v []float64) float64 {
	var s float64
	for _, x := range v {
		s += x * x
	}
	return math.Sqrt(s)
}
