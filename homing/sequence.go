package homing

import "motioncore.dev/config"

// Sequence coordinates homing of a set of joints sharing a
// home_sequence value. Joints with the same sequence number home
// concurrently; ascending sequence numbers run one after another.
// Joints with HomeSequence < 0 never home automatically and must be
// homed individually via Joint.Start.
type Sequence struct {
	joints []*Joint
	groups [][]int // indices into joints, ordered by ascending sequence number
	group  int
}

// NewSequence builds a coordinator from the given joints, in joint
// order, grouping by each joint's HomeSequence.
func NewSequence(cfgs []config.Joint) *Sequence {
	joints := make([]*Joint, len(cfgs))
	for i, c := range cfgs {
		joints[i] = NewJoint(c)
	}
	byNum := map[int][]int{}
	for i, c := range cfgs {
		if c.HomeSequence < 0 {
			continue
		}
		n := int(c.HomeSequence)
		byNum[n] = append(byNum[n], i)
	}
	nums := make([]int, 0, len(byNum))
	for n := range byNum {
		nums = append(nums, n)
	}
	sortInts(nums)
	groups := make([][]int, len(nums))
	for i, n := range nums {
		groups[i] = byNum[n]
	}
	return &Sequence{joints: joints, groups: groups}
}

func sortInts(a []int) {
	for i := 1; i < len(a); i++ {
		for j := i; j > 0 && a[j-1] > a[j]; j-- {
			a[j-1], a[j] = a[j], a[j-1]
		}
	}
}

// Start begins homing the first group.
func (s *Sequence) Start() {
	s.group = 0
	if len(s.groups) == 0 {
		return
	}
	for _, idx := range s.groups[0] {
		s.joints[idx].Start()
	}
}

// Joint returns the homing FSM for joint i.
func (s *Sequence) Joint(i int) *Joint { return s.joints[i] }

// Done reports whether every automatically-sequenced group has
// finished homing.
func (s *Sequence) Done() bool {
	return s.group >= len(s.groups)
}

// Failed reports whether any joint in the currently active group
// aborted.
func (s *Sequence) Failed() bool {
	if s.group >= len(s.groups) {
		return false
	}
	for _, idx := range s.groups[s.group] {
		if s.joints[idx].State() == Aborted {
			return true
		}
	}
	return false
}

// Advance checks whether the active group has finished homing and,
// if so, starts the next group. Call once per servo cycle after
// stepping every joint's FSM.
func (s *Sequence) Advance() {
	if s.Done() || s.Failed() {
		return
	}
	for _, idx := range s.groups[s.group] {
		if !s.joints[idx].Homed() {
			return
		}
	}
	s.group++
	if s.group < len(s.groups) {
		for _, idx := range s.groups[s.group] {
			s.joints[idx].Start()
		}
	}
}
