//go:build linux

package ioboard

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

// LinuxJoint drives one joint's switches and motor command over
// periph.io GPIO pins, the same gpio.PinIn/PinOut level the teacher's
// input/wshat drivers poll for buttons, generalized here from
// momentary buttons to limit/home/fault switches. It drives no motor
// command: CommandPos does nothing here.
type LinuxJoint struct {
	LimitMin   gpio.PinIn
	LimitMax   gpio.PinIn
	HomeSwitch gpio.PinIn
	FaultIn    gpio.PinIn
	IndexIn    gpio.PinIn
	UnlockedIn gpio.PinIn
	LockedIn   gpio.PinIn
	UnlockOut  gpio.PinOut
	LockOut    gpio.PinOut
	readPos    func() (float64, error)
	readJog    func() (float64, error)
}

// NewLinuxJoint configures pull-ups on the joint's switch inputs.
func NewLinuxJoint(limitMin, limitMax, home, fault, index, unlocked, locked gpio.PinIn, unlockOut, lockOut gpio.PinOut, readPos, readJog func() (float64, error)) (*LinuxJoint, error) {
	j := &LinuxJoint{
		LimitMin: limitMin, LimitMax: limitMax, HomeSwitch: home,
		FaultIn: fault, IndexIn: index,
		UnlockedIn: unlocked, LockedIn: locked,
		UnlockOut: unlockOut, LockOut: lockOut,
		readPos: readPos, readJog: readJog,
	}
	for _, p := range []gpio.PinIn{limitMin, limitMax, home, fault, index, unlocked, locked} {
		if p == nil {
			continue
		}
		if err := p.In(gpio.PullUp, gpio.NoEdge); err != nil {
			return nil, fmt.Errorf("ioboard: configure %s: %w", p.Name(), err)
		}
	}
	return j, nil
}

func readLow(p gpio.PinIn) (bool, error) {
	if p == nil {
		return false, nil
	}
	return p.Read() == gpio.Low, nil
}

func (j *LinuxJoint) PosFeedback() (float64, error) {
	if j.readPos == nil {
		return 0, nil
	}
	return j.readPos()
}

func (j *LinuxJoint) CommandPos(pos float64) error {
	// Position commands are routed through a motor driver (e.g.
	// driver/tmc2209 over UART), not a GPIO pin.
	return nil
}

func (j *LinuxJoint) OnLimitMin() (bool, error)   { return readLow(j.LimitMin) }
func (j *LinuxJoint) OnLimitMax() (bool, error)   { return readLow(j.LimitMax) }
func (j *LinuxJoint) OnHomeSwitch() (bool, error) { return readLow(j.HomeSwitch) }
func (j *LinuxJoint) AmpFault() (bool, error)     { return readLow(j.FaultIn) }
func (j *LinuxJoint) IndexPulse() (bool, error)   { return readLow(j.IndexIn) }

func (j *LinuxJoint) RotaryUnlocked() (bool, error) {
	if j.UnlockedIn == nil {
		return true, nil
	}
	return readLow(j.UnlockedIn)
}

func (j *LinuxJoint) RotaryLocked() (bool, error) {
	return readLow(j.LockedIn)
}

func (j *LinuxJoint) RequestRotaryUnlock(unlock bool) error {
	if j.UnlockOut == nil {
		return nil
	}
	return j.UnlockOut.Out(boolToLevel(unlock))
}

func (j *LinuxJoint) RequestRotaryLock(lock bool) error {
	if j.LockOut == nil {
		return nil
	}
	return j.LockOut.Out(boolToLevel(lock))
}

func (j *LinuxJoint) JogVelocity() (float64, error) {
	if j.readJog == nil {
		return 0, nil
	}
	return j.readJog()
}

func boolToLevel(v bool) gpio.Level {
	if v {
		return gpio.High
	}
	return gpio.Low
}

// LinuxGlobal drives the machine-wide signals over periph.io GPIO
// pins plus simple analog/digital read callbacks for boards that
// expose an ADC.
type LinuxGlobal struct {
	EStopIn          gpio.PinIn
	FeedHoldIn       gpio.PinIn
	SpindleAtSpeedIn gpio.PinIn
	SpindleIndexIn   gpio.PinIn
	ProbeIn          gpio.PinIn
	FeedScaleFn      func() (float64, error)
	AdaptiveFeedFn   func() (float64, error)
	SpindleScaleFn   func() (float64, error)
	SpindlePosFn     func() (float64, error)
	SpindleCmdFn     func(physic.Frequency) error
	DigitalInPins    []gpio.PinIn
	AnalogInFn       func(n int) ([]float64, error)
	DigitalOutPins   []gpio.PinOut
	AnalogOutFn      func(out []float64) error
}

// InitHost initializes the periph.io host drivers; callers must
// invoke this once before constructing any Linux pin type.
func InitHost() error {
	_, err := host.Init()
	return err
}

func (g *LinuxGlobal) EStop() (bool, error) { return readLow(g.EStopIn) }

func (g *LinuxGlobal) FeedScale() (float64, error) {
	if g.FeedScaleFn == nil {
		return 1, nil
	}
	return g.FeedScaleFn()
}

func (g *LinuxGlobal) AdaptiveFeedScale() (float64, error) {
	if g.AdaptiveFeedFn == nil {
		return 1, nil
	}
	return g.AdaptiveFeedFn()
}

func (g *LinuxGlobal) FeedHold() (bool, error) { return readLow(g.FeedHoldIn) }

func (g *LinuxGlobal) SpindleScale() (float64, error) {
	if g.SpindleScaleFn == nil {
		return 1, nil
	}
	return g.SpindleScaleFn()
}

func (g *LinuxGlobal) SpindleAtSpeed() (bool, error)    { return readLow(g.SpindleAtSpeedIn) }
func (g *LinuxGlobal) SpindleIndexPulse() (bool, error) { return readLow(g.SpindleIndexIn) }

func (g *LinuxGlobal) SpindlePos() (float64, error) {
	if g.SpindlePosFn == nil {
		return 0, nil
	}
	return g.SpindlePosFn()
}

func (g *LinuxGlobal) CommandSpindleVel(vel float64) error {
	if g.SpindleCmdFn == nil {
		return nil
	}
	hz := physic.Frequency(vel * float64(physic.Hertz))
	return g.SpindleCmdFn(hz)
}

func (g *LinuxGlobal) ProbeContact() (bool, error) { return readLow(g.ProbeIn) }

func (g *LinuxGlobal) DigitalIn(n int) ([]bool, error) {
	out := make([]bool, n)
	for i := 0; i < n && i < len(g.DigitalInPins); i++ {
		v, err := readLow(g.DigitalInPins[i])
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (g *LinuxGlobal) AnalogIn(n int) ([]float64, error) {
	if g.AnalogInFn == nil {
		return make([]float64, n), nil
	}
	return g.AnalogInFn(n)
}

func (g *LinuxGlobal) SetDigitalOut(out []bool) error {
	for i, v := range out {
		if i >= len(g.DigitalOutPins) || g.DigitalOutPins[i] == nil {
			continue
		}
		if err := g.DigitalOutPins[i].Out(boolToLevel(v)); err != nil {
			return fmt.Errorf("ioboard: digital out %d: %w", i, err)
		}
	}
	return nil
}

func (g *LinuxGlobal) SetAnalogOut(out []float64) error {
	if g.AnalogOutFn == nil {
		return nil
	}
	return g.AnalogOutFn(out)
}
