// Package ioboard abstracts the servo controller's pin-level I/O:
// per-joint motor feedback/command, limit/home/amp-fault switches,
// jog input, and the machine-global digital/analog/spindle signals
// spec.md §4.6 phase 2 reads and phase 12 writes. LinuxJoint and
// LinuxGlobal provide a periph.io-backed Linux GPIO implementation;
// SimJoint and SimGlobal provide an in-memory one for tests.
package ioboard

// JointPins is one joint's physical I/O.
type JointPins interface {
	// PosFeedback returns the joint's measured position, in machine
	// units.
	PosFeedback() (float64, error)
	// CommandPos writes the joint's commanded position for this cycle.
	CommandPos(pos float64) error

	OnLimitMin() (bool, error)
	OnLimitMax() (bool, error)
	OnHomeSwitch() (bool, error)
	AmpFault() (bool, error)
	IndexPulse() (bool, error)

	// RotaryUnlocked/RotaryLocked report a locking indexer's latch
	// switches; joints without a locking indexer always report
	// unlocked=true, locked=false.
	RotaryUnlocked() (bool, error)
	RotaryLocked() (bool, error)
	RequestRotaryUnlock(unlock bool) error
	RequestRotaryLock(lock bool) error

	// JogVelocity returns this joint's jogwheel/keyboard jog rate, in
	// machine units per second.
	JogVelocity() (float64, error)
}

// GlobalPins is the machine-wide I/O: e-stop, override scales, probe,
// spindle, and generic digital/analog arrays.
type GlobalPins interface {
	EStop() (bool, error)

	FeedScale() (float64, error)
	AdaptiveFeedScale() (float64, error)
	FeedHold() (bool, error)
	SpindleScale() (float64, error)

	SpindleAtSpeed() (bool, error)
	SpindleIndexPulse() (bool, error)
	SpindlePos() (float64, error)
	CommandSpindleVel(vel float64) error

	ProbeContact() (bool, error)

	DigitalIn(n int) ([]bool, error)
	AnalogIn(n int) ([]float64, error)
	SetDigitalOut(out []bool) error
	SetAnalogOut(out []float64) error
}

// Board bundles one GlobalPins and one JointPins per joint, the unit
// the servo run loop reads/writes each cycle.
type Board struct {
	Global GlobalPins
	Joints []JointPins
}
