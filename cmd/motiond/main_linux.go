//go:build linux

package main

import (
	"fmt"

	"motioncore.dev/ioboard"
	"motioncore.dev/rtsched"
)

// openBoard wires up the real periph.io GPIO backend. Pin assignments
// are host-specific (which header pin drives which joint's limit
// switch varies machine to machine); this wires every joint's pins to
// nil, which ioboard.LinuxJoint treats as "not present" and reports
// harmless defaults for, the same placeholder posture defaultJoints
// takes for joint limits. A real deployment replaces the nil pins with
// the host's actual gpioreg.ByName lookups.
func openBoard(n int) (*ioboard.Board, error) {
	if err := ioboard.InitHost(); err != nil {
		return nil, fmt.Errorf("motiond: init periph.io host: %w", err)
	}
	joints := make([]ioboard.JointPins, n)
	for i := range joints {
		j, err := ioboard.NewLinuxJoint(nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil)
		if err != nil {
			return nil, fmt.Errorf("motiond: joint %d: %w", i, err)
		}
		joints[i] = j
	}
	global := &ioboard.LinuxGlobal{}
	return &ioboard.Board{Global: global, Joints: joints}, nil
}

// enableRT raises the calling goroutine to real-time scheduling before
// the servo cycle starts; called from run() via the platform hook.
func enableRT() error {
	return rtsched.Enable(80)
}
