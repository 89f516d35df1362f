// Command diagpreview renders a toolpath description to a PNG for
// offline inspection, exercising the same Segment.Evaluate geometry
// the real-time planner uses, outside the servo cycle.
//
// Input is plain text, one move per line:
//
//	line X Y
//	arc CX CY R STARTDEG SWEEPDEG
//
// Coordinates are relative to the previous move's endpoint (the first
// line starts at the origin). Grounded on cmd/controller/main.go's
// flag-parsed standalone tool shape.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"motioncore.dev/bezier"
	"motioncore.dev/diag"
	"motioncore.dev/pose"
	"motioncore.dev/tc"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "diagpreview: %v\n", err)
		os.Exit(1)
	}
}

var (
	in     = flag.String("in", "", "path to the move-list text file (default: stdin)")
	out    = flag.String("out", "preview.png", "output PNG path")
	width  = flag.Int("width", 800, "image width in pixels")
	height = flag.Int("height", 800, "image height in pixels")
	margin = flag.Int("margin", 20, "image margin in pixels")
)

func run() error {
	flag.Parse()

	r := os.Stdin
	if *in != "" {
		f, err := os.Open(*in)
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		r = f
	}

	segs, err := readMoves(r)
	if err != nil {
		return fmt.Errorf("parse moves: %w", err)
	}

	w, err := os.Create(*out)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer w.Close()

	return diag.Render(w, segs, *width, *height, *margin, 2)
}

// readMoves turns the move-list text format into flattened diag
// segments, building each move as a tc.Segment and sampling its
// Evaluate curve the way the servo cycle samples it each period, just
// at a much finer, non-real-time step.
func readMoves(r io.Reader) ([]diag.Segment, error) {
	const sampleStep = 0.5 // machine units per sample, fine enough for a preview

	constraints := tc.Constraints{ReqVel: 1, MaxVel: 1, MaxAccel: 1, Jerk: 1}
	cur := pose.Pose{}
	var out []diag.Segment
	id := 0

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		var seg tc.Segment
		var err error
		var next pose.Pose
		switch strings.ToLower(fields[0]) {
		case "line":
			x, y, perr := parseXY(fields[1:])
			if perr != nil {
				return nil, perr
			}
			next = cur
			next.X, next.Y = cur.X+x, cur.Y+y
			seg, err = tc.NewLine(id, 0, cur, next, constraints, 1)
		case "arc":
			if len(fields) != 6 {
				return nil, fmt.Errorf("arc wants 5 fields, got %d", len(fields)-1)
			}
			cx, _ := strconv.ParseFloat(fields[1], 64)
			cy, _ := strconv.ParseFloat(fields[2], 64)
			radius, _ := strconv.ParseFloat(fields[3], 64)
			startDeg, _ := strconv.ParseFloat(fields[4], 64)
			sweepDeg, _ := strconv.ParseFloat(fields[5], 64)
			startRad := startDeg * math.Pi / 180
			circle := pose.Circle{
				Center: pose.Vec3{X: cur.X + cx, Y: cur.Y + cy},
				Normal: pose.Vec3{Z: 1},
				Ref:    pose.Vec3{X: math.Cos(startRad), Y: math.Sin(startRad)},
				Radius: radius,
				Angle:  sweepDeg * math.Pi / 180,
			}
			end := circle.Point(1)
			next = cur
			next.X, next.Y = end.X, end.Y
			seg, err = tc.NewArc(id, 0, circle, constraints, 1)
		default:
			return nil, fmt.Errorf("unknown move kind %q", fields[0])
		}
		if err != nil {
			return nil, err
		}
		id++

		var pts []bezier.Point
		for d := 0.0; d < seg.Target; d += sampleStep {
			p := seg.Evaluate(cur, d)
			pts = append(pts, bezier.Pt(p.X, p.Y))
		}
		pts = append(pts, bezier.Pt(seg.EndPose(cur).X, seg.EndPose(cur).Y))
		out = append(out, diag.Segment{Points: pts})

		cur = next
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func parseXY(fields []string) (float64, float64, error) {
	if len(fields) != 2 {
		return 0, 0, fmt.Errorf("line wants 2 fields, got %d", len(fields))
	}
	x, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parse X: %w", err)
	}
	y, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parse Y: %w", err)
	}
	return x, y, nil
}
