// Package config defines the per-joint and per-axis parameters the
// motion-control core is initialized with. Parsing the configuration
// file that produces these structs is out of scope (spec.md §1); this
// package only defines the structs and validates them.
package config

import "fmt"

// JointType is TYPE in the original INI configuration surface.
type JointType uint8

const (
	Linear JointType = iota
	Angular
)

// HomeSequence groups joints that home in parallel; joints with the
// same non-negative value start together, ordered by ascending value.
// A negative value means the joint is not homed by the sequencer.
type HomeSequence int

// Joint carries the per-joint parameters spec.md §6 lists, field names
// grounded on original_source/src/emc/ini/inijoint.cc's JOINT_<n> keys.
type Joint struct {
	Type JointType

	MinLimit, MaxLimit float64
	MaxVelocity        float64
	MaxAcceleration    float64
	MaxJerk            float64

	Home          float64
	HomeOffset    float64
	HomeSearchVel float64
	HomeLatchVel  float64
	HomeFinalVel  float64

	HomeSequence     HomeSequence
	HomeIsShared     bool
	HomeUseIndex     bool
	HomeIgnoreLimits bool
	HomeUnlockFirst  bool
	VolatileHome     bool
	LockingIndexer   bool

	Backlash float64

	FError    float64
	MinFError float64

	Comp CompTable
}

// Axis carries per-Cartesian-axis teleop parameters (spec.md §3).
type Axis struct {
	Type JointType

	MinLimit, MaxLimit float64
	MaxVelocity        float64
	MaxAcceleration    float64
}

// CompPoint is one row of a screw-error compensation table. Quintuple
// rows (with distinct forward/reverse trim and slope) are used when
// Quintuple is true; otherwise Reverse is the single nominal/forward/
// reverse triple value.
type CompPoint struct {
	Nominal float64
	Forward float64
	Reverse float64

	Quintuple  bool
	FwdTrim    float64
	FwdSlope   float64
	RevTrim    float64
	RevSlope   float64
}

// CompTable is a joint's screw-error compensation table, COMP_FILE in
// the original INI surface. Points must be sorted by Nominal ascending.
type CompTable struct {
	Points []CompPoint
}

// Validate rejects configuration spec.md §6 and §7 call out as fatal at
// init: a zero jerk, or non-positive acceleration/velocity ceilings.
func (j Joint) Validate() error {
	if j.MaxJerk <= 0 {
		return fmt.Errorf("config: joint: jerk must be positive, got %v", j.MaxJerk)
	}
	if j.MaxAcceleration <= 0 {
		return fmt.Errorf("config: joint: acceleration must be positive, got %v", j.MaxAcceleration)
	}
	if j.MaxVelocity <= 0 {
		return fmt.Errorf("config: joint: velocity must be positive, got %v", j.MaxVelocity)
	}
	if j.MinLimit > j.MaxLimit {
		return fmt.Errorf("config: joint: min limit %v exceeds max limit %v", j.MinLimit, j.MaxLimit)
	}
	if j.HomeUseIndex && j.HomeIsShared {
		// A shared home switch cannot be disambiguated by an index
		// pulse search shared between joints on different encoders.
		return fmt.Errorf("config: joint: HOME_USE_INDEX is incompatible with HOME_IS_SHARED")
	}
	return nil
}

func (a Axis) Validate() error {
	if a.MaxAcceleration <= 0 {
		return fmt.Errorf("config: axis: acceleration must be positive, got %v", a.MaxAcceleration)
	}
	if a.MaxVelocity <= 0 {
		return fmt.Errorf("config: axis: velocity must be positive, got %v", a.MaxVelocity)
	}
	return nil
}

// Lookup interpolates the compensation table at pos, returning the
// correction to add for the given direction of travel (forward =
// increasing commanded position).
func (c CompTable) Lookup(pos float64, forward bool) float64 {
	pts := c.Points
	if len(pts) == 0 {
		return 0
	}
	if pos <= pts[0].Nominal {
		return c.valueAt(pts[0], forward)
	}
	last := pts[len(pts)-1]
	if pos >= last.Nominal {
		return c.valueAt(last, forward)
	}
	lo := 0
	for i := 1; i < len(pts); i++ {
		if pts[i].Nominal > pos {
			break
		}
		lo = i
	}
	hi := lo + 1
	p0, p1 := pts[lo], pts[hi]
	v0, v1 := c.valueAt(p0, forward), c.valueAt(p1, forward)
	t := (pos - p0.Nominal) / (p1.Nominal - p0.Nominal)
	return v0 + (v1-v0)*t
}

func (c CompTable) valueAt(p CompPoint, forward bool) float64 {
	if !p.Quintuple {
		if forward {
			return p.Forward
		}
		return p.Reverse
	}
	if forward {
		return p.FwdTrim
	}
	return p.RevTrim
}
