// Package servo implements the periodic servo controller: the fixed
// real-time cycle that reads feedback, runs kinematics, drives mode
// transitions, generates per-mode joint commands and writes outputs.
// Phase ordering is grounded on
// original_source/src/emc/motion/control.c; the top-level "run to
// completion, never block" cycle shape is grounded on the teacher's
// cmd/controller/main.go for { a.Frame() } drive loop.
package servo

import (
	"math"

	"motioncore.dev/bezier"
	"motioncore.dev/comp"
	"motioncore.dev/config"
	"motioncore.dev/homing"
	"motioncore.dev/kinematics"
	"motioncore.dev/pose"
	"motioncore.dev/tp"
)

// Mode is the controller's top-level operating mode.
type Mode uint8

const (
	Disabled Mode = iota
	Free
	Coord
	Teleop
)

// ProbeState is the probe interaction's three-state FSM.
type ProbeState uint8

const (
	ProbeIdle ProbeState = iota
	ProbeProbing
	ProbeHit
	ProbeAck
)

// JointInput carries one joint's live feedback for a cycle.
type JointInput struct {
	PosFB          float64
	VelFB          float64
	OnLimitMin     bool
	OnLimitMax     bool
	AmpFault       bool
	OnHomeSwitch   bool
	IndexPulse     bool
	RotaryUnlocked bool
	RotaryLocked   bool
}

// Inputs is everything the controller reads at the top of a cycle.
type Inputs struct {
	Elapsed float64 // wall-clock seconds since the previous cycle

	Joints []JointInput

	FeedScale         float64
	AdaptiveFeed      float64
	FeedHold          bool
	SpindleScale      float64
	SpindleAtSpeed    bool
	SpindleIndexPulse bool
	SpindlePos        float64
	SurfaceSpeed      float64 // CSS target surface speed, when enabled
	ToolRadius        float64

	RequestMode   Mode
	RequestEnable bool
	RequestHoming bool

	JogVel []float64 // FREE-mode jog, one entry per joint

	ProbeRequested   bool
	ProbeContact     bool
	ProbeSuppressErr bool

	DigitalIn []bool
	AnalogIn  []float64
}

// Status is the shared, self-consistent snapshot published each
// cycle (spec §5's head/tail consistency convention is the caller's
// responsibility when copying this out under the writer's head/tail
// bump).
type Status struct {
	Mode Mode

	CartPosFB   pose.Pose
	CartPosFBOk bool

	FollowingError []float64
	FErrorHiWater  []float64
	FErrorTripped  []bool
	OnSoftLimit    []bool

	AmpFault          []bool
	JointError        []bool
	LimitOverrideMask []bool
	MotionDisabled    bool

	Homed  []bool
	AtHome []bool

	ProbeState   ProbeState
	ProbeTripped bool
	ProbedPos    pose.Pose

	Overrun bool

	NetFeedScale    float64
	NetSpindleScale float64
}

// Outputs is what the controller asks the caller to write this cycle.
type Outputs struct {
	JointCmd   []float64 // pos_cmd + backlash_filt + motor_offset + blender_offset
	DigitalOut []bool
	AnalogOut  []float64
	SpindleCmd float64 // CSS-synthesized spindle velocity command
	Status     Status

	RequestIndexRotaryUnlock  bool
	RequestIndexRotaryLock    bool
	RequestSpindleIndexSearch bool
}

// Controller ties together kinematics, the trajectory planner,
// per-joint homing, and backlash compensation into the phase-ordered
// per-cycle update of spec.md §4.6.
type Controller struct {
	Joints []config.Joint
	Kin    kinematics.Kinematics
	Period float64

	Planner *tp.Planner
	HomeSeq *homing.Sequence

	backlash []comp.Filter

	mode Mode

	history    [5]float64
	histFilled int

	jointPos []float64 // FREE/TELEOP commanded positions
	jointVel []float64

	lastCartFB pose.Pose

	probe          ProbeState
	probedPos      pose.Pose
	abortRequested bool
	lastFErrHigh   []float64

	// limitOverrideMask latches per joint on a hard-limit trip and
	// blocks jog/homing motion until ClearLimitOverride clears it
	// (spec §7's hard-limit override mask, an explicit-clear-only
	// latch rather than control.c's auto-clear-on-leaving-the-switch).
	limitOverrideMask []bool
	// motionDisabled is recomputed every cycle from live amp-fault and
	// following-error inputs (spec §7: "disable motion on amp fault or
	// following error"), unlike limitOverrideMask it isn't sticky.
	motionDisabled bool

	motorOffset []float64
	blendOffset []float64
}

// New creates a controller for the given joint configuration.
func New(joints []config.Joint, kin kinematics.Kinematics, planner *tp.Planner, period float64) *Controller {
	n := len(joints)
	return &Controller{
		Joints:            joints,
		Kin:               kin,
		Period:            period,
		Planner:           planner,
		HomeSeq:           homing.NewSequence(joints),
		backlash:          make([]comp.Filter, n),
		jointPos:          make([]float64, n),
		jointVel:          make([]float64, n),
		lastFErrHigh:      make([]float64, n),
		limitOverrideMask: make([]bool, n),
		motorOffset:       make([]float64, n),
		blendOffset:       make([]float64, n),
	}
}

// Mode returns the controller's current operating mode.
func (c *Controller) Mode() Mode { return c.mode }

// ClearLimitOverride clears joint's latched hard-limit override mask.
// Spec §7 requires this explicit clear before jog or homing motion is
// permitted again on a joint that tripped a hard limit; out-of-range
// joint indices are ignored.
func (c *Controller) ClearLimitOverride(joint int) {
	if joint < 0 || joint >= len(c.limitOverrideMask) {
		return
	}
	c.limitOverrideMask[joint] = false
}

// RunCycle executes the twelve ordered phases of spec.md §4.6 for one
// servo period.
func (c *Controller) RunCycle(in Inputs) Outputs {
	overrun := c.detectOverrun(in.Elapsed)

	ferr, hiWater := c.readFollowingError(in)
	ampFault, fErrorTripped, jointError, overrideMask := c.checkFaults(in, ferr)
	netFeed, netSpindle := c.netScales(in)

	cartFB, cartOk := c.forwardKinematics()

	c.stepProbe(in)

	c.transitionMode(in)

	if c.mode == Free && !in.RequestHoming {
		c.jog(in)
	}

	if in.RequestHoming {
		c.stepHoming(in)
	}

	spindleCmd := cssCommand(in)

	jointCmd := c.generateCommands(in, netFeed)

	onSoftLimit := c.softLimitCheck(jointCmd)

	out := make([]float64, len(jointCmd))
	for i, j := range c.Joints {
		target := comp.Lookup(j, jointCmd[i], c.jointVel[i] >= 0)
		bl := c.backlash[i].Step(target, j.MaxVelocity, j.MaxAcceleration, c.Period)
		out[i] = jointCmd[i] + bl + c.motorOffset[i] + c.blendOffset[i]
	}

	c.lastCartFB = cartFB

	return Outputs{
		JointCmd:   out,
		SpindleCmd: spindleCmd,
		Status: Status{
			Mode:              c.mode,
			CartPosFB:         cartFB,
			CartPosFBOk:       cartOk,
			FollowingError:    ferr,
			FErrorHiWater:     hiWater,
			FErrorTripped:     fErrorTripped,
			OnSoftLimit:       onSoftLimit,
			AmpFault:          ampFault,
			JointError:        jointError,
			LimitOverrideMask: overrideMask,
			MotionDisabled:    c.motionDisabled,
			Homed:             c.homedStates(),
			AtHome:            c.atHomeStates(),
			ProbeState:        c.probe,
			ProbeTripped:      c.probe == ProbeHit || c.probe == ProbeAck,
			ProbedPos:         c.probedPos,
			Overrun:           overrun,
			NetFeedScale:      netFeed,
			NetSpindleScale:   netSpindle,
		},
	}
}

// detectOverrun implements phase 1: report (edge-triggered) when this
// cycle's elapsed time exceeds 1.2x every sample in a short history.
func (c *Controller) detectOverrun(elapsed float64) bool {
	over := c.histFilled >= len(c.history)
	for i := 0; i < c.histFilled; i++ {
		if elapsed <= 1.2*c.history[i] {
			over = false
		}
	}
	copy(c.history[1:], c.history[:len(c.history)-1])
	c.history[0] = elapsed
	if c.histFilled < len(c.history) {
		c.histFilled++
	}
	return over
}

// readFollowingError implements phase 2's error/high-water update.
func (c *Controller) readFollowingError(in Inputs) (ferr, hiWater []float64) {
	ferr = make([]float64, len(c.Joints))
	hiWater = make([]float64, len(c.Joints))
	for i := range c.Joints {
		if i >= len(in.Joints) {
			continue
		}
		e := c.jointPos[i] - in.Joints[i].PosFB
		ferr[i] = e
		if math.Abs(e) > c.lastFErrHigh[i] {
			c.lastFErrHigh[i] = math.Abs(e)
		}
		hiWater[i] = c.lastFErrHigh[i]
	}
	return ferr, hiWater
}

// checkFaults implements spec §7's constraint-violation check,
// grounded on control.c's check_for_faults: following-error and amp
// fault are live conditions recomputed every cycle and disable motion
// for as long as either holds, while a hard-limit trip latches
// LimitOverrideMask, which only ClearLimitOverride undoes.
func (c *Controller) checkFaults(in Inputs, ferr []float64) (ampFault, fErrorTripped, jointError, overrideMask []bool) {
	n := len(c.Joints)
	ampFault = make([]bool, n)
	fErrorTripped = make([]bool, n)
	jointError = make([]bool, n)
	c.motionDisabled = false
	for i, j := range c.Joints {
		if i >= len(in.Joints) {
			continue
		}
		hi := in.Joints[i]

		limit := j.MinFError
		if j.MaxVelocity > 0 {
			if l := j.FError * math.Abs(c.jointVel[i]) / j.MaxVelocity; l > limit {
				limit = l
			}
		}
		fErrorTripped[i] = math.Abs(ferr[i]) > limit
		ampFault[i] = hi.AmpFault

		// A joint homing off its limit switch (HomeIgnoreLimits) is
		// exempt from the hard-limit check while actively homing,
		// mirroring control.c's "home_flags & HOME_IGNORE_LIMITS &&
		// home_state != HOME_IDLE: do nothing" — otherwise the very
		// switch it homes against would immediately latch the joint
		// out of motion.
		ignoringLimits := j.HomeIgnoreLimits && c.HomeSeq != nil && c.HomeSeq.Joint(i).State() != homing.Idle
		if !ignoringLimits && (hi.OnLimitMin || hi.OnLimitMax) {
			c.limitOverrideMask[i] = true
			jointError[i] = true
		}
		if ampFault[i] || fErrorTripped[i] {
			jointError[i] = true
			c.motionDisabled = true
		}
	}
	overrideMask = append([]bool(nil), c.limitOverrideMask...)
	return ampFault, fErrorTripped, jointError, overrideMask
}

// netScales implements phase 2's override-factor computation.
func (c *Controller) netScales(in Inputs) (feed, spindle float64) {
	feed = in.FeedScale * in.AdaptiveFeed
	if in.FeedHold {
		feed = 0
	}
	return feed, in.SpindleScale
}

// forwardKinematics implements phase 3.
func (c *Controller) forwardKinematics() (pose.Pose, bool) {
	if !c.allHomed() {
		return c.lastCartFB, false
	}
	joints := make([]float64, len(c.jointPos))
	copy(joints, c.jointPos)
	p, err := c.Kin.Forward(joints, c.lastCartFB)
	if err != nil {
		return c.lastCartFB, false
	}
	return p, true
}

func (c *Controller) allHomed() bool {
	for i := range c.Joints {
		if c.HomeSeq == nil || !c.HomeSeq.Joint(i).Homed() {
			return false
		}
	}
	return true
}

func (c *Controller) homedStates() []bool {
	s := make([]bool, len(c.Joints))
	for i := range s {
		s[i] = c.HomeSeq != nil && c.HomeSeq.Joint(i).Homed()
	}
	return s
}

func (c *Controller) atHomeStates() []bool {
	// AT_HOME mirrors Homed for a joint that hasn't moved since homing;
	// callers that need finer tracking compare pos_fb to the home
	// coordinate themselves.
	return c.homedStates()
}

// stepProbe implements phase 4's three-state probe interaction. On
// ack it latches abortRequested, consumed by generateCoord on the
// same cycle's planner call.
func (c *Controller) stepProbe(in Inputs) {
	switch c.probe {
	case ProbeIdle:
		if in.ProbeRequested {
			c.probe = ProbeProbing
		}
	case ProbeProbing:
		if in.ProbeContact {
			c.probedPos = c.lastCartFB
			c.probe = ProbeHit
		} else if !in.ProbeRequested && !in.ProbeSuppressErr {
			// Cycle ended without the expected contact change.
			c.probe = ProbeIdle
		}
	case ProbeHit:
		if !in.ProbeRequested {
			c.probe = ProbeAck
			c.abortRequested = true
		}
	case ProbeAck:
		c.probe = ProbeIdle
	}
}

// transitionMode implements phase 5: mode changes require in-position
// (zero commanded velocity on every joint).
func (c *Controller) transitionMode(in Inputs) {
	if !in.RequestEnable || c.motionDisabled {
		c.mode = Disabled
		return
	}
	if in.RequestMode == c.mode {
		return
	}
	if !c.inPosition() {
		return
	}
	c.mode = in.RequestMode
}

func (c *Controller) inPosition() bool {
	for _, v := range c.jointVel {
		if math.Abs(v) > 1e-9 {
			return false
		}
	}
	return true
}

// jog implements phase 6. A joint with a latched hard-limit override
// mask does not move until the task thread calls ClearLimitOverride
// (spec §7).
func (c *Controller) jog(in Inputs) {
	for i, j := range c.Joints {
		if i >= len(in.JogVel) || c.limitOverrideMask[i] {
			continue
		}
		v := clampf(in.JogVel[i], -j.MaxVelocity, j.MaxVelocity)
		c.jointVel[i] = v
		c.jointPos[i] = clampf(c.jointPos[i]+v*c.Period, j.MinLimit, j.MaxLimit)
	}
}

// stepHoming implements phase 7. A joint with a latched hard-limit
// override mask does not home until the task thread calls
// ClearLimitOverride (spec §7).
func (c *Controller) stepHoming(in Inputs) {
	if c.HomeSeq == nil {
		return
	}
	for i, j := range c.Joints {
		if i >= len(in.Joints) || c.limitOverrideMask[i] {
			continue
		}
		hi := in.Joints[i]
		out := c.HomeSeq.Joint(i).Step(homing.Inputs{
			OnHomeSwitch:   hi.OnHomeSwitch,
			OnLimit:        hi.OnLimitMin || hi.OnLimitMax,
			IndexPulse:     hi.IndexPulse,
			Pos:            c.jointPos[i],
			Vel:            c.jointVel[i],
			RotaryUnlocked: hi.RotaryUnlocked,
			RotaryLocked:   hi.RotaryLocked,
		})
		if out.SetPos != nil {
			c.jointPos[i] = *out.SetPos
		} else {
			c.jointVel[i] = out.CommandVel
			c.jointPos[i] = clampf(c.jointPos[i]+out.CommandVel*c.Period, j.MinLimit, j.MaxLimit)
		}
	}
	c.HomeSeq.Advance()
}

// cssCommand implements phase 8: constant-surface-speed spindle
// command synthesis (rad/s equivalent expressed as a velocity ratio).
func cssCommand(in Inputs) float64 {
	if in.ToolRadius <= 0 {
		return 0
	}
	return in.SurfaceSpeed / in.ToolRadius
}

// generateCommands implements phase 9, branching per mode.
func (c *Controller) generateCommands(in Inputs, netFeed float64) []float64 {
	switch c.mode {
	case Coord:
		return c.generateCoord(in, netFeed)
	case Teleop:
		return c.generateTeleop(in)
	default: // Free, Disabled
		return append([]float64(nil), c.jointPos...)
	}
}

// generateCoord pulls a Cartesian command from the trajectory
// planner and inverts it to joint space.
func (c *Controller) generateCoord(in Inputs, netFeed float64) []float64 {
	if c.Planner == nil {
		return append([]float64(nil), c.jointPos...)
	}
	abort := c.abortRequested
	c.abortRequested = false
	res := c.Planner.RunCycle(tp.Inputs{
		NetFeedScale:        netFeed,
		Abort:               abort,
		AtSpeed:             in.SpindleAtSpeed,
		IndexRotaryUnlocked: true,
		IndexRotaryLocked:   true,
		IndexPulse:          in.SpindleIndexPulse,
		SpindlePos:          in.SpindlePos,
	})
	joints, err := c.Kin.Inverse(res.CommandPos)
	if err != nil {
		return append([]float64(nil), c.jointPos...)
	}
	prev := append([]float64(nil), c.jointPos...)
	for i, j := range joints {
		if i >= len(c.jointPos) {
			break
		}
		c.jointVel[i] = (j - prev[i]) / c.Period
		c.jointPos[i] = j
	}
	return joints
}

// generateTeleop integrates a per-axis desired velocity through an
// acceleration limiter.
func (c *Controller) generateTeleop(in Inputs) []float64 {
	for i, j := range c.Joints {
		if i >= len(in.JogVel) {
			continue
		}
		want := clampf(in.JogVel[i], -j.MaxVelocity, j.MaxVelocity)
		dv := want - c.jointVel[i]
		maxDv := j.MaxAcceleration * c.Period
		dv = clampf(dv, -maxDv, maxDv)
		c.jointVel[i] += dv
		c.jointPos[i] = clampf(c.jointPos[i]+c.jointVel[i]*c.Period, j.MinLimit, j.MaxLimit)
	}
	return append([]float64(nil), c.jointPos...)
}

// softLimitCheck implements phase 10.
func (c *Controller) softLimitCheck(cmd []float64) []bool {
	s := make([]bool, len(c.Joints))
	for i, j := range c.Joints {
		if i >= len(cmd) {
			continue
		}
		if cmd[i] < j.MinLimit {
			cmd[i] = j.MinLimit
			s[i] = true
		} else if cmd[i] > j.MaxLimit {
			cmd[i] = j.MaxLimit
			s[i] = true
		}
	}
	return s
}

func clampf(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ResampleJoint builds a Hermite-consistent cubic through two
// consecutive per-cycle joint commands (using their velocity
// estimates as tangents) and samples it at sub evenly-spaced
// intermediate points, for drive stacks whose motor rate runs a
// multiple of the servo cycle. Reuses bezier.Cubic's evaluation with
// X carrying the [0,1] phase and Y the joint value.
func ResampleJoint(prevPos, curPos, prevVel, curVel, period float64, sub int) []float64 {
	if sub <= 1 {
		return []float64{curPos}
	}
	c := bezier.Cubic{
		C0: bezier.Pt(0, prevPos),
		C1: bezier.Pt(1.0/3, prevPos+prevVel*period/3),
		C2: bezier.Pt(2.0/3, curPos-curVel*period/3),
		C3: bezier.Pt(1, curPos),
	}
	out := make([]float64, sub)
	for i := 0; i < sub; i++ {
		t := float64(i+1) / float64(sub)
		out[i] = c.Point(t).Y
	}
	return out
}
