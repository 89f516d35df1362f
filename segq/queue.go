// Package segq implements the trajectory planner's segment queue: a
// fixed-capacity ring buffer with a single producer (the task thread)
// and a single consumer (the servo thread), following the same
// start/end-indexed ring discipline as the teacher's stepper package's
// knotBuffer, generalized to tc.Segment and to the explicit all_full
// flag spec.md §4.1 requires (since start==end is otherwise ambiguous
// between empty and full).
package segq

import (
	"motioncore.dev/bspline"
	"motioncore.dev/tc"
)

// DefaultMargin decouples producer/consumer races: the queue reports
// Full once length reaches capacity minus this margin, not capacity
// itself.
const DefaultMargin = 10

// Queue is a fixed-capacity ring buffer of segments.
type Queue struct {
	buf     []tc.Segment
	start   int
	end     int
	allFull bool
	margin  int
}

// Create allocates a queue with room for capacity segments.
func Create(capacity int) *Queue {
	return &Queue{
		buf:    make([]tc.Segment, capacity),
		margin: DefaultMargin,
	}
}

// Init resets the queue to empty without reallocating.
func (q *Queue) Init() {
	q.start = 0
	q.end = 0
	q.allFull = false
}

// Len returns the number of segments currently queued.
func (q *Queue) Len() int {
	if q.allFull {
		return len(q.buf)
	}
	if q.end >= q.start {
		return q.end - q.start
	}
	return len(q.buf) - q.start + q.end
}

// capFull reports whether the ring is at its hard capacity (distinct
// from Full, which applies the margin).
func (q *Queue) capFull() bool {
	return q.allFull
}

// Full reports whether the queue has reached capacity minus the
// margin, the point at which the producer should back off.
func (q *Queue) Full() bool {
	return q.Len() >= len(q.buf)-q.margin
}

// Put appends seg at the tail. It fails if the ring is at hard
// capacity.
func (q *Queue) Put(seg tc.Segment) bool {
	if q.capFull() {
		return false
	}
	q.buf[q.end] = seg
	q.end = (q.end + 1) % len(q.buf)
	if q.end == q.start {
		q.allFull = true
	}
	return true
}

// Remove drops the first n segments from the head, releasing any
// heap-owned geometry (NURBS control points, knots) they hold. It
// fails if fewer than n segments are present.
func (q *Queue) Remove(n int) bool {
	if n > q.Len() {
		return false
	}
	for range n {
		q.buf[q.start].Nurbs = bspline.Curve{} // release NURBS backing arrays
		q.start = (q.start + 1) % len(q.buf)
	}
	if n > 0 {
		q.allFull = false
	}
	return true
}

// Item peeks the nth segment from the head (0 = the head itself)
// without removing it. The second return is false if n is out of
// range.
func (q *Queue) Item(n int) (*tc.Segment, bool) {
	if n < 0 || n >= q.Len() {
		return nil, false
	}
	idx := (q.start + n) % len(q.buf)
	return &q.buf[idx], true
}

// Clear empties the queue, releasing any owned geometry, matching the
// cleanup an abort or re-init must perform exactly once.
func (q *Queue) Clear() {
	q.Remove(q.Len())
	q.Init()
}
