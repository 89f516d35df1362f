package main

import (
	"io"
	"log"
	"time"

	"motioncore.dev/ioboard"
	"motioncore.dev/servo"
	"motioncore.dev/transport"
)

// runLoop drives the servo cycle at period, reading board I/O, calling
// ctrl.RunCycle, writing the commands back out, publishing a status
// snapshot, and draining any pending mailbox command into the
// controller, mirroring cmd/controller/main.go's for { a.Frame() }
// shape with the I/O and transport plumbing this core adds around it.
func runLoop(ctrl *servo.Controller, board *ioboard.Board, mailbox *transport.Mailbox, snapshots *transport.SnapshotBuffer, port io.ReadWriteCloser, period float64) error {
	ticker := time.NewTicker(time.Duration(period * float64(time.Second)))
	defer ticker.Stop()

	n := len(ctrl.Joints)
	for range ticker.C {
		if cmd, fresh := mailbox.Take(); fresh {
			applyCommand(ctrl, cmd)
		}

		in, err := ioFromBoard(board, n)
		if err != nil {
			log.Printf("motiond: board read: %v", err)
			continue
		}

		out := ctrl.RunCycle(in)
		writeToBoard(board, out)

		snap := toSnapshot(out)
		snapshots.Publish(snap)
		if port != nil {
			if err := transport.WriteSnapshot(port, snap); err != nil {
				log.Printf("motiond: status write: %v", err)
			}
		}
	}
	return nil
}
