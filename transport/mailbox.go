package transport

import "sync"

// CommandKind selects what a Command asks the servo controller to do,
// per spec.md §5's "task thread submits commands: segment appends,
// parameter changes, mode requests".
type CommandKind uint8

const (
	CmdNone CommandKind = iota
	CmdAppendLine
	CmdAppendArc
	CmdAppendRigidTap
	CmdSetMode
	CmdSetParam
	CmdAbort
)

// Command is the payload the task thread hands to the servo cycle.
// Only one field set is meaningful per Kind; the rest are zero.
type Command struct {
	Kind CommandKind

	LineStart, LineEnd [9]float64
	Feed, MaxVel, MaxAccel, Jerk float64

	ArcCenter, ArcNormal, ArcRef [3]float64
	ArcRadius, ArcAngle          float64

	TapDepth, TapUUPerRev float64

	Mode uint8

	ParamName  string
	ParamValue float64
}

// Mailbox is a single-slot command channel with a sequence-number
// handshake: the producer bumps Seq after writing a new Command: the
// consumer only acts on a slot whose Seq differs from the last one it
// consumed, matching spec.md §5's "one shared command mailbox
// (single-slot, with a sequence-number handshake)".
type Mailbox struct {
	mu      sync.Mutex
	cmd     Command
	seq     uint64
	lastSeq uint64
}

// Post writes a new command into the mailbox, overwriting any
// not-yet-consumed one (the mailbox holds at most one outstanding
// command; callers coordinate pacing above this layer).
func (m *Mailbox) Post(c Command) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cmd = c
	m.seq++
}

// Take returns the most recently posted command and whether it is new
// since the last Take call.
func (m *Mailbox) Take() (Command, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seq == m.lastSeq {
		return Command{}, false
	}
	m.lastSeq = m.seq
	return m.cmd, true
}
