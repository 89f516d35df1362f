// Package homing implements the per-joint homing state machine and
// the multi-joint SEQUENCE coordinator, grounded on
// original_source/src/emc/motion/homing.c's state list and the
// teacher's non-blocking "stay in the same state until true" wait
// idiom (mjolnir.Engrave's status-polling loop).
package homing

import (
	"fmt"

	"motioncore.dev/config"
)

// State is one state of a joint's homing DAG, rooted at Idle.
type State uint8

const (
	Idle State = iota
	UnlockRotary
	InitialBackoffPlus
	InitialBackoffMinus
	InitialSearchPlus
	InitialSearchMinus
	SetCoarsePosition
	FinalBackoffPlus
	FinalBackoffMinus
	RiseSearchPlus
	RiseSearchMinus
	IndexSearchWait
	SetIndexPosition
	SetFinalSwitchPosition
	FinalMovePlus
	FinalMoveMinus
	LockRotary
	Finished
	Aborted
)

func (s State) String() string {
	names := [...]string{
		"IDLE", "UNLOCK_ROTARY", "INITIAL_BACKOFF_PLUS", "INITIAL_BACKOFF_MINUS",
		"INITIAL_SEARCH_PLUS", "INITIAL_SEARCH_MINUS", "SET_COARSE_POSITION",
		"FINAL_BACKOFF_PLUS", "FINAL_BACKOFF_MINUS", "RISE_SEARCH_PLUS",
		"RISE_SEARCH_MINUS", "INDEX_SEARCH_WAIT", "SET_INDEX", "SET_FINAL_SWITCH_POSITION",
		"FINAL_MOVE_PLUS", "FINAL_MOVE_MINUS", "LOCK_ROTARY", "FINISHED", "ABORTED",
	}
	if int(s) < len(names) {
		return names[s]
	}
	return "UNKNOWN"
}

// Inputs carries the joint's live signals the homing FSM reads each
// cycle: switch state, index-pulse observation, current and target
// velocity/position feedback, and rotary-unlock handshake status.
type Inputs struct {
	OnHomeSwitch   bool
	OnLimit        bool
	IndexPulse     bool
	Pos            float64
	Vel            float64
	RotaryUnlocked bool
	RotaryLocked   bool
}

// Outputs is what the FSM asks the servo controller to do this cycle.
type Outputs struct {
	CommandVel    float64
	RequestUnlock bool
	RequestLock   bool
	ResetEncoder  bool
	SetPos        *float64
}

// Joint drives one joint's homing FSM.
type Joint struct {
	cfg   config.Joint
	state State
	err   error
	// latchedPos is the position recorded at the most recent home
	// switch trip, applied by SetCoarsePosition or
	// SetFinalSwitchPosition. An index pulse does not update it.
	latchedPos float64
}

// NewJoint creates a homing FSM for the given joint configuration.
func NewJoint(cfg config.Joint) *Joint {
	return &Joint{cfg: cfg, state: Idle}
}

// State returns the FSM's current state.
func (j *Joint) State() State { return j.state }

// Err returns the error that caused Aborted, if any.
func (j *Joint) Err() error { return j.err }

// Homed reports whether homing finished successfully.
func (j *Joint) Homed() bool { return j.state == Finished }

// Start begins the homing sequence from Idle.
func (j *Joint) Start() {
	j.err = nil
	if j.cfg.HomeUnlockFirst {
		j.state = UnlockRotary
	} else {
		j.state = j.initialState()
	}
}

func (j *Joint) initialState() State {
	if j.cfg.HomeSearchVel == 0 {
		// No search move configured: go straight to the final move.
		return j.finalMoveState()
	}
	return InitialSearchState(j.cfg)
}

// InitialSearchState picks the initial-backoff state entered when the
// joint starts on its home switch: the move is always opposite the
// search direction (usb_homing.c's unconditional "-home_search_vel"
// HOME_INITIAL_BACKOFF_START move), so the label just needs to match
// the sign Step will command.
func InitialSearchState(cfg config.Joint) State {
	if cfg.HomeSearchVel >= 0 {
		return InitialBackoffMinus
	}
	return InitialBackoffPlus
}

func (j *Joint) finalMoveState() State {
	if j.cfg.Home >= 0 {
		return FinalMovePlus
	}
	return FinalMoveMinus
}

// searchState picks the initial-search state label matching
// HomeSearchVel's sign.
func (j *Joint) searchState() State {
	if j.cfg.HomeSearchVel >= 0 {
		return InitialSearchPlus
	}
	return InitialSearchMinus
}

// Step advances the FSM by one servo cycle given live inputs, and
// returns the command to apply this cycle. Waiting is represented by
// staying in the same state across cycles, never by blocking.
func (j *Joint) Step(in Inputs) Outputs {
	switch j.state {
	case Idle, Finished, Aborted:
		return Outputs{}

	case UnlockRotary:
		if in.RotaryUnlocked {
			j.state = j.initialState()
			return Outputs{}
		}
		return Outputs{RequestUnlock: true}

	case InitialBackoffPlus, InitialBackoffMinus:
		// Always -HomeSearchVel regardless of which label this state
		// carries; the label only exists so State.String() reports the
		// direction actually being commanded.
		vel := -j.cfg.HomeSearchVel
		if !in.OnHomeSwitch {
			j.state = j.searchState()
			return Outputs{}
		}
		return Outputs{CommandVel: vel}

	case InitialSearchPlus, InitialSearchMinus:
		if !j.cfg.HomeIgnoreLimits && in.OnLimit {
			return j.abort(fmt.Errorf("homing: limit reached during initial search"))
		}
		if in.OnHomeSwitch {
			j.latchedPos = in.Pos
			j.state = SetCoarsePosition
			return Outputs{}
		}
		// HomeSearchVel already carries the search direction's sign
		// (usb_homing.c commands it unmodified); the Plus/Minus label
		// just mirrors that sign for State.String().
		return Outputs{CommandVel: j.cfg.HomeSearchVel}

	case SetCoarsePosition:
		p := j.latchedPos
		j.state = j.finalBackoffState()
		return Outputs{SetPos: &p}

	case FinalBackoffPlus, FinalBackoffMinus:
		// Always -HomeSearchVel, same as the initial backoff
		// (usb_homing.c's HOME_FINAL_BACKOFF_START, also unconditional).
		vel := -j.cfg.HomeSearchVel
		if !in.OnHomeSwitch {
			j.state = j.riseSearchState()
			return Outputs{}
		}
		return Outputs{CommandVel: vel}

	case RiseSearchPlus, RiseSearchMinus:
		if !j.cfg.HomeIgnoreLimits && in.OnLimit {
			return j.abort(fmt.Errorf("homing: limit reached during latch search"))
		}
		if in.OnHomeSwitch {
			j.latchedPos = in.Pos
			if j.cfg.HomeUseIndex {
				j.state = IndexSearchWait
			} else {
				j.state = SetFinalSwitchPosition
			}
			return Outputs{}
		}
		// HomeLatchVel already carries its own sign, same as
		// HomeSearchVel above.
		return Outputs{CommandVel: j.cfg.HomeLatchVel}

	case IndexSearchWait:
		if in.IndexPulse {
			j.state = SetIndexPosition
			return Outputs{ResetEncoder: true}
		}
		vel := j.cfg.HomeLatchVel
		return Outputs{CommandVel: vel}

	case SetIndexPosition:
		p := 0.0
		j.state = SetFinalSwitchPosition
		return Outputs{SetPos: &p}

	case SetFinalSwitchPosition:
		p := j.latchedPos
		j.state = j.finalMoveState()
		return Outputs{SetPos: &p}

	case FinalMovePlus, FinalMoveMinus:
		done, vel := j.driveTo(j.cfg.Home+j.cfg.HomeOffset, in, j.finalVel())
		if done {
			if j.cfg.LockingIndexer {
				j.state = LockRotary
			} else {
				j.state = Finished
			}
			return Outputs{}
		}
		return Outputs{CommandVel: vel}

	case LockRotary:
		if in.RotaryLocked {
			j.state = Finished
			return Outputs{}
		}
		return Outputs{RequestLock: true}

	default:
		return Outputs{}
	}
}

func (j *Joint) finalVel() float64 {
	v := j.cfg.HomeFinalVel
	if v == 0 {
		v = j.cfg.HomeSearchVel
	}
	limit := j.cfg.MaxVelocity
	if limit > 0 && v > limit {
		v = limit
	}
	if limit > 0 && v < -limit {
		v = -limit
	}
	return v
}

// driveTo reports whether the joint has reached target within a
// small tolerance, and the commanded velocity otherwise.
func (j *Joint) driveTo(target float64, in Inputs, vel float64) (bool, float64) {
	const tol = 1e-6
	d := target - in.Pos
	if d > -tol && d < tol {
		return true, 0
	}
	if d < 0 {
		vel = -vel
	}
	return false, vel
}

func (j *Joint) finalBackoffState() State {
	if j.cfg.HomeSearchVel >= 0 {
		return FinalBackoffMinus
	}
	return FinalBackoffPlus
}

func (j *Joint) riseSearchState() State {
	if j.cfg.HomeLatchVel >= 0 {
		return RiseSearchPlus
	}
	return RiseSearchMinus
}

func (j *Joint) abort(err error) Outputs {
	j.state = Aborted
	j.err = err
	return Outputs{}
}
