package ioboard

// SimJoint is an in-memory JointPins for tests and simulation: reads
// reflect fields set directly by the caller, CommandPos and the
// rotary-lock requests record into fields the caller can inspect.
type SimJoint struct {
	Pos                            float64
	LimitMin, LimitMax, HomeSwitch bool
	Fault, Index                   bool
	Unlocked, Locked               bool
	JogVel                         float64
	LastCmd                        float64
	UnlockRequested, LockRequested bool
}

func NewSimJoint() *SimJoint {
	return &SimJoint{Unlocked: true}
}

func (j *SimJoint) PosFeedback() (float64, error) { return j.Pos, nil }
func (j *SimJoint) CommandPos(pos float64) error {
	j.LastCmd = pos
	j.Pos = pos
	return nil
}
func (j *SimJoint) OnLimitMin() (bool, error)   { return j.LimitMin, nil }
func (j *SimJoint) OnLimitMax() (bool, error)   { return j.LimitMax, nil }
func (j *SimJoint) OnHomeSwitch() (bool, error) { return j.HomeSwitch, nil }
func (j *SimJoint) AmpFault() (bool, error)     { return j.Fault, nil }
func (j *SimJoint) IndexPulse() (bool, error)   { return j.Index, nil }
func (j *SimJoint) RotaryUnlocked() (bool, error) { return j.Unlocked, nil }
func (j *SimJoint) RotaryLocked() (bool, error)   { return j.Locked, nil }
func (j *SimJoint) RequestRotaryUnlock(unlock bool) error {
	j.UnlockRequested = unlock
	if unlock {
		j.Unlocked, j.Locked = true, false
	}
	return nil
}
func (j *SimJoint) RequestRotaryLock(lock bool) error {
	j.LockRequested = lock
	if lock {
		j.Locked, j.Unlocked = true, false
	}
	return nil
}
func (j *SimJoint) JogVelocity() (float64, error) { return j.JogVel, nil }

// SimGlobal is an in-memory GlobalPins.
type SimGlobal struct {
	EStopVal                          bool
	FeedScaleVal, AdaptiveFeedScaleVal float64
	FeedHoldVal                       bool
	SpindleScaleVal                   float64
	SpindleAtSpeedVal, SpindleIndexVal bool
	SpindlePosVal                     float64
	LastSpindleCmd                    float64
	ProbeContactVal                   bool
	DigitalInVal                      []bool
	AnalogInVal                       []float64
	LastDigitalOut                    []bool
	LastAnalogOut                     []float64
}

func NewSimGlobal() *SimGlobal {
	return &SimGlobal{FeedScaleVal: 1, AdaptiveFeedScaleVal: 1, SpindleScaleVal: 1}
}

func (g *SimGlobal) EStop() (bool, error)              { return g.EStopVal, nil }
func (g *SimGlobal) FeedScale() (float64, error)       { return g.FeedScaleVal, nil }
func (g *SimGlobal) AdaptiveFeedScale() (float64, error) { return g.AdaptiveFeedScaleVal, nil }
func (g *SimGlobal) FeedHold() (bool, error)           { return g.FeedHoldVal, nil }
func (g *SimGlobal) SpindleScale() (float64, error)    { return g.SpindleScaleVal, nil }
func (g *SimGlobal) SpindleAtSpeed() (bool, error)     { return g.SpindleAtSpeedVal, nil }
func (g *SimGlobal) SpindleIndexPulse() (bool, error)  { return g.SpindleIndexVal, nil }
func (g *SimGlobal) SpindlePos() (float64, error)      { return g.SpindlePosVal, nil }
func (g *SimGlobal) CommandSpindleVel(vel float64) error {
	g.LastSpindleCmd = vel
	return nil
}
func (g *SimGlobal) ProbeContact() (bool, error) { return g.ProbeContactVal, nil }

func (g *SimGlobal) DigitalIn(n int) ([]bool, error) {
	out := make([]bool, n)
	copy(out, g.DigitalInVal)
	return out, nil
}

func (g *SimGlobal) AnalogIn(n int) ([]float64, error) {
	out := make([]float64, n)
	copy(out, g.AnalogInVal)
	return out, nil
}

func (g *SimGlobal) SetDigitalOut(out []bool) error {
	g.LastDigitalOut = append([]bool(nil), out...)
	return nil
}

func (g *SimGlobal) SetAnalogOut(out []float64) error {
	g.LastAnalogOut = append([]float64(nil), out...)
	return nil
}

// NewSimBoard builds a Board of n simulated joints.
func NewSimBoard(n int) (*Board, []*SimJoint, *SimGlobal) {
	joints := make([]*SimJoint, n)
	pins := make([]JointPins, n)
	for i := range joints {
		joints[i] = NewSimJoint()
		pins[i] = joints[i]
	}
	g := NewSimGlobal()
	return &Board{Global: g, Joints: pins}, joints, g
}
