// Command motiond runs the real-time servo cycle and exposes a
// command/status transport link for an external jog pendant or MDI
// console. Grounded on cmd/controller/main.go's run()/for { a.Frame() }
// shape: a top-level run() returning an error, and an unbounded drive
// loop around one per-cycle call.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"motioncore.dev/config"
	"motioncore.dev/ioboard"
	"motioncore.dev/kinematics"
	"motioncore.dev/servo"
	"motioncore.dev/tp"
	"motioncore.dev/transport"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "motiond: %v\n", err)
		os.Exit(2)
	}
}

var (
	numJoints  = flag.Int("joints", 3, "number of joints")
	periodFlag = flag.Duration("period", time.Millisecond, "servo cycle period")
	queueDepth = flag.Int("queue", 32, "trajectory segment queue depth")
	device     = flag.String("device", "", "command/status serial device (empty: autodetect)")
)

func run() error {
	log.SetFlags(log.Flags() &^ (log.Ldate | log.Ltime))
	flag.Parse()

	joints := defaultJoints(*numJoints)
	for i, j := range joints {
		if err := j.Validate(); err != nil {
			return fmt.Errorf("joint %d: %w", i, err)
		}
	}

	period := periodFlag.Seconds()
	planner := tp.New(*queueDepth, period)
	kin := kinematics.IdentityKinematics{N: len(joints)}
	ctrl := servo.New(joints, kin, planner, period)

	board, err := openBoard(len(joints))
	if err != nil {
		return err
	}
	if err := enableRT(); err != nil {
		log.Printf("motiond: real-time scheduling unavailable: %v", err)
	}

	port, err := transport.Open(*device)
	if err != nil {
		log.Printf("motiond: command/status transport unavailable: %v", err)
		port = nil
	} else {
		defer port.Close()
	}
	var mailbox transport.Mailbox
	var snapshots transport.SnapshotBuffer

	log.Println("motiond: starting servo cycle")
	return runLoop(ctrl, board, &mailbox, &snapshots, port, period)
}

// defaultJoints builds a uniform placeholder joint configuration; a
// real deployment replaces this with values read from the host
// application's own configuration store (parsing config files is out
// of scope for this core, per its package doc).
func defaultJoints(n int) []config.Joint {
	joints := make([]config.Joint, n)
	for i := range joints {
		joints[i] = config.Joint{
			Type:            config.Linear,
			MinLimit:        -200,
			MaxLimit:        200,
			MaxVelocity:     50,
			MaxAcceleration: 500,
			MaxJerk:         20000,
			HomeSearchVel:   -5,
			HomeLatchVel:    1,
			HomeFinalVel:    2,
			HomeSequence:    config.HomeSequence(i),
		}
	}
	return joints
}

func applyCommand(ctrl *servo.Controller, c transport.Command) {
	switch c.Kind {
	case transport.CmdAppendLine:
		if ctrl.Planner == nil {
			return
		}
		// Coordinate conversion from the wire format's flat axis array
		// into pose.Pose happens in the planner's admission helpers;
		// left to the caller that owns the task-thread side of the
		// mailbox in a full deployment.
	case transport.CmdAbort:
	case transport.CmdSetMode:
	case transport.CmdSetParam:
	}
}

func ioFromBoard(board *ioboard.Board, n int) (servo.Inputs, error) {
	var in servo.Inputs
	in.Joints = make([]servo.JointInput, n)
	for i := 0; i < n && i < len(board.Joints); i++ {
		jp := board.Joints[i]
		pos, err := jp.PosFeedback()
		if err != nil {
			return in, fmt.Errorf("joint %d: position feedback: %w", i, err)
		}
		limMin, _ := jp.OnLimitMin()
		limMax, _ := jp.OnLimitMax()
		home, _ := jp.OnHomeSwitch()
		fault, _ := jp.AmpFault()
		index, _ := jp.IndexPulse()
		unlocked, _ := jp.RotaryUnlocked()
		locked, _ := jp.RotaryLocked()
		jog, _ := jp.JogVelocity()
		in.Joints[i] = servo.JointInput{
			PosFB: pos, VelFB: 0,
			OnLimitMin: limMin, OnLimitMax: limMax,
			OnHomeSwitch: home, AmpFault: fault, IndexPulse: index,
			RotaryUnlocked: unlocked, RotaryLocked: locked,
		}
		in.JogVel = append(in.JogVel, jog)
	}
	if board.Global != nil {
		in.FeedScale, _ = board.Global.FeedScale()
		in.AdaptiveFeed, _ = board.Global.AdaptiveFeedScale()
		in.FeedHold, _ = board.Global.FeedHold()
		in.SpindleScale, _ = board.Global.SpindleScale()
		in.SpindleAtSpeed, _ = board.Global.SpindleAtSpeed()
		in.SpindleIndexPulse, _ = board.Global.SpindleIndexPulse()
		in.SpindlePos, _ = board.Global.SpindlePos()
		in.ProbeContact, _ = board.Global.ProbeContact()
	}
	return in, nil
}

func writeToBoard(board *ioboard.Board, out servo.Outputs) {
	for i, cmd := range out.JointCmd {
		if i >= len(board.Joints) {
			break
		}
		board.Joints[i].CommandPos(cmd)
	}
	if board.Global != nil {
		board.Global.CommandSpindleVel(out.SpindleCmd)
		board.Global.SetDigitalOut(out.DigitalOut)
		board.Global.SetAnalogOut(out.AnalogOut)
	}
}

func toSnapshot(out servo.Outputs) transport.StatusSnapshot {
	return transport.StatusSnapshot{
		Mode:           uint8(out.Status.Mode),
		JointPos:       append([]float64(nil), out.JointCmd...),
		FollowingError: append([]float64(nil), out.Status.FollowingError...),
		OnSoftLimit:    append([]bool(nil), out.Status.OnSoftLimit...),
		Homed:          append([]bool(nil), out.Status.Homed...),
		CartPos: [9]float64{
			out.Status.CartPosFB.X, out.Status.CartPosFB.Y, out.Status.CartPosFB.Z,
			out.Status.CartPosFB.A, out.Status.CartPosFB.B, out.Status.CartPosFB.C,
			out.Status.CartPosFB.U, out.Status.CartPosFB.V, out.Status.CartPosFB.W,
		},
		CartOk:       out.Status.CartPosFBOk,
		ProbeState:   uint8(out.Status.ProbeState),
		ProbeTripped: out.Status.ProbeTripped,
		Overrun:      out.Status.Overrun,
	}
}
