// Package bresenham implements single-axis step quantization for
// open-loop stepper joints, carrying the rounding error forward the
// way a Bresenham line stepper carries its accumulated error between
// pixels so the long-run average step rate matches the commanded
// velocity exactly.
package bresenham

import "math"

// Quantizer converts a stream of continuous commanded positions into
// integer step counts without drift: each call's rounding error is
// carried into the next call's accumulator.
type Quantizer struct {
	err  float64
	last int64
}

// Reset clears the accumulator and sets the quantizer's integer
// reference position.
func (q *Quantizer) Reset(pos int64) {
	q.err = 0
	q.last = pos
}

// Step quantizes pos to the nearest integer step count and returns
// the signed number of steps since the previous call.
func (q *Quantizer) Step(pos float64) int {
	target := pos + q.err
	steps := math.Round(target)
	q.err = target - steps
	n := int64(steps) - q.last
	q.last = int64(steps)
	return int(n)
}

// Position returns the quantizer's current integer step count.
func (q *Quantizer) Position() int64 {
	return q.last
}
