//go:build !linux

package main

import "motioncore.dev/ioboard"

// openBoard uses the in-memory simulated backend on non-Linux hosts,
// mirroring the teacher's platform_nonlinux.go stand-in for hardware
// it can't reach.
func openBoard(n int) (*ioboard.Board, error) {
	board, _, _ := ioboard.NewSimBoard(n)
	return board, nil
}

// enableRT is a no-op off Linux; real-time scheduling has no portable
// equivalent.
func enableRT() error {
	return nil
}
