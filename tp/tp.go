// Package tp implements the trajectory planner: segment admission
// (add_line/add_arc/add_rigid_tap/add_nurbs) and the per-cycle
// run_cycle state machine that drives segq's queue through the
// scurve profiler, blending, gating and spindle synchronization.
//
// The non-blocking "never park in a syscall, represent waiting by
// staying in the same branch every cycle" discipline is grounded on
// the teacher's stepper.Driver.Run select loop; rigid-tap and
// spindle-sync follow original_source/src/emc/kinematics/tp.c.
package tp

import (
	"fmt"
	"math"

	"motioncore.dev/pose"
	"motioncore.dev/scurve"
	"motioncore.dev/segq"
	"motioncore.dev/tc"
)

// Inputs carries the live signals run_cycle consumes each cycle:
// override scales, gating signals and spindle feedback. The caller
// (servo) is responsible for sampling these from the ioboard.
type Inputs struct {
	NetFeedScale float64 // 1.0 = no override; 0 while feed-held
	Paused       bool
	Stepping     bool
	Abort        bool

	AtSpeed             bool // spindle-at-speed signal, gates ATSPEED segments
	IndexRotaryUnlocked bool // confirms an indexrotary unlock request
	IndexRotaryLocked   bool // confirms an indexrotary lock request
	IndexPulse          bool // spindle encoder index, latches position-sync zero

	SpindlePos float64 // cumulative spindle position, native units (revs)
}

// Result is what run_cycle asks the servo loop to do with the cycle
// just computed.
type Result struct {
	CommandPos pose.Pose
	Done       bool // the entire queue drained; nothing left to command
	DIO        []tc.DIOChange

	RequestIndexRotaryUnlock  bool
	RequestIndexRotaryLock    bool
	RequestSpindleIndexSearch bool
}

// Planner owns the segment queue, the chained admission cursor
// (goal_pos), and the spindle-synchronization latch state.
type Planner struct {
	Queue  *segq.Queue
	Period float64

	NextID int
	Cycle  int

	GoalPos    pose.Pose // end pose of the most recently admitted segment
	currentPos pose.Pose // the actually-commanded position, updated each cycle

	pendingDIO []tc.DIOChange

	aborting bool

	synced        bool // currently inside a spindle-synchronized sequence
	indexSeen     bool
	spindleOffset float64

	indexRotaryUnlocked bool
}

// New creates a planner with the given queue capacity.
func New(capacity int, period float64) *Planner {
	return &Planner{Queue: segq.Create(capacity), Period: period}
}

// CurrentPos returns the planner's last-commanded pose.
func (p *Planner) CurrentPos() pose.Pose { return p.currentPos }

// SetCurrentPos re-synchronizes the planner's commanded position and
// admission cursor, used at startup and after homing.
func (p *Planner) SetCurrentPos(pos pose.Pose) {
	p.currentPos = pos
	p.GoalPos = pos
}

// AttachDIO queues a digital/analog output change to be applied on
// the next admitted segment's activation cycle.
func (p *Planner) AttachDIO(d tc.DIOChange) {
	p.pendingDIO = append(p.pendingDIO, d)
}

func (p *Planner) takeDIO() []tc.DIOChange {
	d := p.pendingDIO
	p.pendingDIO = nil
	return d
}

// BeginSync marks the start of a spindle-synchronized sequence
// (threading or rigid tap); subsequent admitted segments accumulate
// spindle progress additively until EndSync.
func (p *Planner) BeginSync() {
	p.synced = true
	p.indexSeen = false
}

// EndSync ends a spindle-synchronized sequence.
func (p *Planner) EndSync() {
	p.synced = false
}

// AddLine admits a LINE segment from the current goal pose to end.
func (p *Planner) AddLine(end pose.Pose, c tc.Constraints) error {
	seg, err := tc.NewLine(p.NextID, p.Cycle, p.GoalPos, end, c, p.Period)
	if err != nil {
		return err
	}
	return p.push(seg, end)
}

// AddArc admits an ARC segment.
func (p *Planner) AddArc(circle pose.Circle, c tc.Constraints) error {
	seg, err := tc.NewArc(p.NextID, p.Cycle, circle, c, p.Period)
	if err != nil {
		return err
	}
	end := seg.EndPose(p.GoalPos)
	return p.push(seg, end)
}

// AddRigidTap admits a RIGID_TAP segment. The planner must already be
// in a spindle-synchronized sequence (spec §4.4.1).
func (p *Planner) AddRigidTap(start pose.Vec3, depth, uuPerRev float64, c tc.Constraints) error {
	if !p.synced {
		return fmt.Errorf("tp: rigid tap requires a synchronized sequence")
	}
	seg, err := tc.NewRigidTap(p.NextID, p.Cycle, start, depth, uuPerRev, c, p.Period)
	if err != nil {
		return err
	}
	end := p.GoalPos.WithXYZ(start)
	return p.push(seg, end)
}

// NURBSBuilder starts an incremental NURBS admission.
func (p *Planner) NURBSBuilder(degree int, c tc.Constraints) *tc.NURBSBuilder {
	return tc.NewNURBSBuilder(p.NextID, p.Cycle, degree, c, p.Period)
}

// FinishNURBS finalizes and admits the segment built by a
// NURBSBuilder returned from Planner.NURBSBuilder.
func (p *Planner) FinishNURBS(b *tc.NURBSBuilder) error {
	seg, err := b.Finish()
	if err != nil {
		return err
	}
	end := seg.Nurbs.Points[len(seg.Nurbs.Points)-1].Pos
	return p.push(seg, end)
}

func (p *Planner) push(seg tc.Segment, end pose.Pose) error {
	seg.DIO = p.takeDIO()
	seg.Synchronized = p.synced
	if !p.Queue.Put(seg) {
		return fmt.Errorf("tp: segment queue is full")
	}
	p.GoalPos = end
	p.NextID++
	return nil
}

// Len reports the number of segments currently queued.
func (p *Planner) Len() int { return p.Queue.Len() }

// Full reports whether admission should back off.
func (p *Planner) Full() bool { return p.Queue.Full() }

const velEpsilon = 1e-9

// isFinished reports whether seg has fully decelerated to its target,
// the step-2 "head is finished" predicate. A final deceleration ends
// at scurve's jerk/2 velocity floor, so velocity up to one jerk step
// counts as stopped.
func isFinished(seg *tc.Segment) bool {
	return seg.Progress >= seg.Target && seg.CurVel <= seg.Jerk && seg.State == tc.S6
}

// RunCycle advances the planner by one servo period, implementing
// spec.md §4.4.2's ten ordered steps.
func (p *Planner) RunCycle(in Inputs) Result {
	p.Cycle++

	// Step 4 (abort latch set early so gating below can honor it).
	if in.Abort {
		p.aborting = true
	}

	// Step 1: peek head.
	head, ok := p.Queue.Item(0)
	if !ok {
		p.Queue.Init()
		return Result{CommandPos: p.currentPos, Done: true}
	}

	// Step 2: remove a finished, non-gated head and re-peek.
	for {
		h, ok := p.Queue.Item(0)
		if !ok {
			return Result{CommandPos: p.currentPos, Done: true}
		}
		head = h
		if !isFinished(head) || p.gatingPending(head, in) {
			break
		}
		if head.IndexRotary != 0 && p.indexRotaryUnlocked {
			// Relock requested before removal; caller confirms via
			// IndexRotaryLocked next cycle.
			if !in.IndexRotaryLocked {
				return Result{CommandPos: p.currentPos, RequestIndexRotaryLock: true}
			}
			p.indexRotaryUnlocked = false
		}
		p.currentPos = head.EndPose(p.currentPos)
		if next, ok := p.Queue.Item(1); ok && next.Synchronized {
			next.SpindleProg += head.SpindleProg
		}
		p.Queue.Remove(1)
	}

	// Step 3: peek next for blending.
	next, hasNext := p.Queue.Item(1)
	blendCandidate := hasNext && !in.Paused && !in.Stepping
	if blendCandidate && !head.Synchronized && next.Synchronized && !next.VelocityMode {
		blendCandidate = false // not-synced -> position-synced: blend prohibited
	}
	if blendCandidate && next.AtSpeed && !in.AtSpeed {
		blendCandidate = false // next requires at-speed gating first
	}

	// Step 4: abort handling.
	if p.aborting {
		headStopped := head.CurVel <= velEpsilon
		nextStopped := !hasNext || next.CurVel <= velEpsilon
		if (headStopped && nextStopped) || p.gatingPending(head, in) {
			p.Queue.Clear()
			p.aborting = false
			return Result{CommandPos: p.currentPos, Done: true}
		}
		head.ReqVel = 0
		if hasNext {
			next.ReqVel = 0
		}
	}

	// Step 5: gating.
	if res, gated := p.applyGating(head, in); gated {
		return res
	}

	// Step 6: rigid-tap sub-state machine.
	holdMotion := false
	if head.Kind == tc.RigidTap {
		holdMotion = p.stepRigidTap(head, in.SpindlePos)
	}

	// Step 7: velocity governance (skipped while actively decelerating
	// to a stop — step 4 already forced ReqVel to 0 for that).
	if !p.aborting {
		p.governVelocity(head, in)
		if blendCandidate {
			p.governVelocity(next, in)
		}
	}

	// Step 8: blend peak velocity for the next segment.
	if blendCandidate {
		p.computeBlendPeak(head, next)
	}

	// Step 9: advance.
	startPos := p.currentPos
	var cmd pose.Pose
	if holdMotion {
		cmd = startPos
	} else {
		scurve.Step(head)
		cmd = head.Evaluate(startPos, head.Progress)

		if head.OnFinalDecel && blendCandidate && p.blendTriggered(head, next) {
			head.Blending = true
			if next.VelAtBlend == 0 {
				next.VelAtBlend = head.CurVel
			}
			decayReq := next.VelAtBlend - head.CurVel
			if decayReq < 0 {
				decayReq = 0
			}
			next.ReqVel = decayReq
			scurve.Step(next)
			nextCmd := next.Evaluate(cmd, next.Progress)
			cmd = cmd.Add(nextCmd.Sub(startPos))
		}
	}
	p.currentPos = cmd

	// Step 10: apply DIO on activation.
	var dio []tc.DIOChange
	if !head.Active {
		head.Active = true
		dio = head.DIO
	}

	return Result{CommandPos: cmd, DIO: dio}
}

// gatingPending reports whether head is still waiting on an
// outstanding gate (used both by step 2's removal guard and step 4's
// abort-clear guard).
func (p *Planner) gatingPending(seg *tc.Segment, in Inputs) bool {
	if seg.AtSpeed && !in.AtSpeed {
		return true
	}
	if seg.IndexRotary != 0 && !p.indexRotaryUnlocked {
		return true
	}
	if seg.Synchronized && !p.indexSeen {
		return true
	}
	return false
}

// applyGating implements step 5: atspeed, indexrotary unlock, and
// position-sync index-pulse gates all block activation by returning
// the same commanded position every cycle until satisfied.
func (p *Planner) applyGating(seg *tc.Segment, in Inputs) (Result, bool) {
	if seg.AtSpeed && !in.AtSpeed {
		return Result{CommandPos: p.currentPos}, true
	}
	if seg.IndexRotary != 0 && !p.indexRotaryUnlocked {
		if !in.IndexRotaryUnlocked {
			return Result{CommandPos: p.currentPos, RequestIndexRotaryUnlock: true}, true
		}
		p.indexRotaryUnlocked = true
	}
	if seg.Synchronized && !p.indexSeen {
		if !in.IndexPulse {
			return Result{CommandPos: p.currentPos, RequestSpindleIndexSearch: true}, true
		}
		p.indexSeen = true
		p.spindleOffset = in.SpindlePos
	}
	return Result{}, false
}

// governVelocity implements step 7's three velocity-governance modes.
func (p *Planner) governVelocity(seg *tc.Segment, in Inputs) {
	switch {
	case !seg.Synchronized:
		scale := in.NetFeedScale
		if in.Paused {
			scale = 0
		}
		seg.ReqVel = seg.BaseReqVel * scale
	case seg.VelocityMode:
		// CSS: feed-forward progress command from spindle revs. Units
		// are already per-cycle (ReqVel is pre-scaled by period at
		// admission, spec §4.4.1), so the position delta this formula
		// derives needs no further period scaling.
		cssCmd := (in.SpindlePos - p.spindleOffset) * seg.UUPerRev
		posErr := clampf(cssCmd-seg.Progress, -seg.Jerk, seg.Jerk)
		seg.ReqVel = cssCmd - seg.LastCSSCmd + posErr
		seg.LastCSSCmd = cssCmd
	default:
		// Position-synced: track spindle revs times uu_per_rev.
		seg.ReqVel = (in.SpindlePos-p.spindleOffset)*seg.UUPerRev - seg.SpindleProg
		seg.SpindleProg = (in.SpindlePos - p.spindleOffset) * seg.UUPerRev
	}
}

// computeBlendPeak implements step 8's half-angle tangent formula.
func (p *Planner) computeBlendPeak(head, next *tc.Segment) {
	peak := next.ReqVel
	if next.Tolerance > 0 {
		out := tangentAt(head, true)
		in := tangentAt(next, false)
		cosHalf := math.Sqrt(math.Max(0, (1+out.Dot(in))/2))
		if cosHalf > 1e-9 {
			limit := 2 * math.Sqrt(next.MaxAccel*next.Tolerance/cosHalf)
			if limit < peak {
				peak = limit
			}
		}
	}
	next.VelAtBlend = peak
}

// blendTriggered reports whether head's projected deceleration peak
// has reached next's blend velocity, the step-9 blend-latch trigger.
func (p *Planner) blendTriggered(head, next *tc.Segment) bool {
	return head.CurVel <= next.VelAtBlend+velEpsilon
}

// tangentAt returns the unit xyz tangent direction of seg near its
// end (atEnd) or start, via finite difference — the generic
// evaluator-agnostic way to get a tangent for any segment Kind.
func tangentAt(seg *tc.Segment, atEnd bool) pose.Vec3 {
	const eps = 1e-4
	var a, b pose.Pose
	if atEnd {
		a = seg.Evaluate(pose.Pose{}, seg.Target-eps*seg.Target)
		b = seg.Evaluate(pose.Pose{}, seg.Target)
	} else {
		a = seg.Evaluate(pose.Pose{}, 0)
		b = seg.Evaluate(pose.Pose{}, eps*seg.Target)
	}
	d := b.Sub(a).XYZ()
	u, ok := d.Unit()
	if !ok {
		return pose.Vec3{}
	}
	return u
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

// stepRigidTap advances the TAPPING -> REVERSING -> RETRACTION ->
// FINAL_REVERSAL -> FINAL_PLACEMENT sub-FSM (spec §4.4.2 step 6),
// reporting whether motion should hold this cycle (the two reversal
// states, which wait for a spindle-direction crossing rather than
// advancing position).
func (p *Planner) stepRigidTap(seg *tc.Segment, spindlePos float64) bool {
	rt := &seg.RigidTap
	trend := spindlePos - rt.SpindlePos
	rt.LastSpindlePos = rt.SpindlePos
	rt.SpindlePos = spindlePos

	legDone := isFinished(seg)

	switch rt.State {
	case tc.Tapping:
		if legDone {
			rt.State = tc.Reversing
			rt.SpindleDir = -rt.SpindleDir
		}
		return false
	case tc.Reversing:
		if crossedTo(trend, rt.SpindleDir) {
			reanchor(seg, rt.Direction.Mul(-1))
			rt.State = tc.Retraction
		}
		return true
	case tc.Retraction:
		if legDone {
			rt.State = tc.FinalReversal
			rt.SpindleDir = -rt.SpindleDir
		}
		return false
	case tc.FinalReversal:
		if crossedTo(trend, rt.SpindleDir) {
			seg.Progress = seg.Target
			seg.CurVel = 0
			seg.CurAccel = 0
			seg.State = tc.S6
			rt.State = tc.FinalPlacement
		}
		return true
	default: // FinalPlacement
		return true
	}
}

// crossedTo reports whether the spindle's direction of travel now
// agrees with want (>0 forward, <0 reverse).
func crossedTo(trend, want float64) bool {
	if want >= 0 {
		return trend > 0
	}
	return trend < 0
}

// reanchor restarts the segment's line geometry from the current
// progress point with a fresh direction, resetting the S-curve
// profiler to S0 for the new leg.
func reanchor(seg *tc.Segment, dir pose.Vec3) {
	cur := seg.RigidTap.Start.Add(seg.RigidTap.Direction.Mul(seg.Progress))
	seg.RigidTap.Start = cur
	seg.RigidTap.Direction = dir
	seg.Progress = 0
	seg.CurVel = 0
	seg.CurAccel = 0
	seg.State = tc.S0
	seg.OnFinalDecel = false
}
