//go:build linux

// Package rtsched pins the servo cycle's goroutine to a real-time
// scheduling class and locks its memory, so the kernel never swaps or
// time-slices it out mid-cycle (spec.md §5's "invoked at a fixed
// period by a priority-inverted real-time scheduler"). Grounded on
// the teacher's platform_rpi.go pattern of reaching into
// golang.org/x/sys/unix directly for kernel facilities with no
// wrapper library (there used for mount/inotify, here for
// mlockall/sched_setscheduler).
package rtsched

import (
	"fmt"
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Priority is a SCHED_FIFO priority, 1 (lowest) to 99 (highest).
type Priority int

const schedFIFO = 1 // Linux SCHED_FIFO.

// schedParam mirrors struct sched_param from <sched.h>: a single int
// field in every Linux ABI this targets.
type schedParam struct {
	priority int32
}

// Enable locks the process's memory and raises the calling OS thread
// to SCHED_FIFO at the given priority. It calls runtime.LockOSThread
// first, so callers must run it from the goroutine that will run the
// servo cycle, since the scheduling policy is per-thread.
func Enable(prio Priority) error {
	runtime.LockOSThread()
	if err := unix.Mlockall(unix.MCL_CURRENT | unix.MCL_FUTURE); err != nil {
		return fmt.Errorf("rtsched: mlockall: %w", err)
	}
	param := schedParam{priority: int32(prio)}
	_, _, errno := unix.Syscall(unix.SYS_SCHED_SETSCHEDULER, 0, uintptr(schedFIFO), uintptr(unsafe.Pointer(&param)))
	if errno != 0 {
		return fmt.Errorf("rtsched: sched_setscheduler: %w", errno)
	}
	return nil
}
