// Package kinematics defines the abstract forward/inverse kinematics
// interface the servo controller uses to convert between joint space
// and Cartesian pose, plus an identity implementation and a generic
// Newton-Raphson forward solver (which still takes a closed-form
// forward function; see Newton). Concrete machine kinematics (e.g. a specific parallel
// or serial mechanism) stay out of scope; only the abstraction and
// two general-purpose implementations live here.
package kinematics

import (
	"fmt"

	"motioncore.dev/pose"
)

// Type selects which direction(s) a Kinematics implementation
// supports in closed form, mirroring the servo controller's dispatch
// in spec §4.6 phase 3.
type Type uint8

const (
	// Identity machines have joints that map 1:1 to Cartesian axes.
	Identity Type = iota
	// Both forward and inverse kinematics are closed-form.
	Both
	// InverseOnly machines require Newton iteration for forward
	// kinematics.
	InverseOnly
)

// Kinematics converts between joint position vectors and 9-axis
// poses.
type Kinematics interface {
	Type() Type
	// Forward computes the pose for a joint vector, using guess as
	// the initial estimate when the implementation must iterate.
	Forward(joints []float64, guess pose.Pose) (pose.Pose, error)
	Inverse(p pose.Pose) ([]float64, error)
	// NumJoints returns the number of joint values Forward/Inverse
	// operate on.
	NumJoints() int
}

// axisOf indexes a Pose's nine motion axes in a fixed order, used to
// map a joint vector index to a pose field for the Identity and
// Newton implementations.
func axisOf(p pose.Pose, i int) float64 {
	switch i {
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

func setAxis(p *pose.Pose, i int, v float64) {
	switch i {
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

// IdentityKinematics maps each joint directly to the Cartesian axis
// of the same index: the common case for a Cartesian mill or router.
type IdentityKinematics struct {
	N int
}

func (k IdentityKinematics) Type() Type     { return Identity }
func (k IdentityKinematics) NumJoints() int { return k.N }

func (k IdentityKinematics) Forward(joints []float64, _ pose.Pose) (pose.Pose, error) {
	if len(joints) != k.N {
		return pose.Pose{}, fmt.Errorf("kinematics: expected %d joints, got %d", k.N, len(joints))
	}
	var p pose.Pose
	for i, v := range joints {
		setAxis(&p, i, v)
	}
	return p, nil
}

func (k IdentityKinematics) Inverse(p pose.Pose) ([]float64, error) {
	joints := make([]float64, k.N)
	for i := range joints {
		joints[i] = axisOf(p, i)
	}
	return joints, nil
}
