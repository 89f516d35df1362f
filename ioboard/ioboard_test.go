package ioboard

import "testing"

func TestSimJointCommandPosUpdatesFeedback(t *testing.T) {
	j := NewSimJoint()
	if err := j.CommandPos(3.5); err != nil {
		t.Fatalf("CommandPos: %v", err)
	}
	pos, err := j.PosFeedback()
	if err != nil {
		t.Fatalf("PosFeedback: %v", err)
	}
	if pos != 3.5 {
		t.Errorf("PosFeedback() = %v, want 3.5", pos)
	}
}

func TestSimJointRotaryUnlockLockAreExclusive(t *testing.T) {
	j := NewSimJoint()
	if err := j.RequestRotaryUnlock(true); err != nil {
		t.Fatalf("RequestRotaryUnlock: %v", err)
	}
	unlocked, _ := j.RotaryUnlocked()
	locked, _ := j.RotaryLocked()
	if !unlocked || locked {
		t.Errorf("after unlock: unlocked=%v locked=%v, want true/false", unlocked, locked)
	}
	if err := j.RequestRotaryLock(true); err != nil {
		t.Fatalf("RequestRotaryLock: %v", err)
	}
	unlocked, _ = j.RotaryUnlocked()
	locked, _ = j.RotaryLocked()
	if unlocked || !locked {
		t.Errorf("after lock: unlocked=%v locked=%v, want false/true", unlocked, locked)
	}
}

func TestSimGlobalDefaultsScalesToUnity(t *testing.T) {
	g := NewSimGlobal()
	for _, get := range []func() (float64, error){g.FeedScale, g.AdaptiveFeedScale, g.SpindleScale} {
		v, err := get()
		if err != nil {
			t.Fatalf("scale getter: %v", err)
		}
		if v != 1 {
			t.Errorf("default scale = %v, want 1", v)
		}
	}
}

func TestSimGlobalDigitalAnalogIORoundTrip(t *testing.T) {
	g := NewSimGlobal()
	g.DigitalInVal = []bool{true, false, true}
	g.AnalogInVal = []float64{1, 2, 3}
	din, err := g.DigitalIn(3)
	if err != nil || len(din) != 3 || !din[0] || din[1] || !din[2] {
		t.Errorf("DigitalIn = %v, err %v", din, err)
	}
	ain, err := g.AnalogIn(3)
	if err != nil || len(ain) != 3 || ain[1] != 2 {
		t.Errorf("AnalogIn = %v, err %v", ain, err)
	}
	if err := g.SetDigitalOut([]bool{true}); err != nil {
		t.Fatalf("SetDigitalOut: %v", err)
	}
	if !g.LastDigitalOut[0] {
		t.Error("SetDigitalOut didn't record output")
	}
}

func TestNewSimBoardWiresJointsToGlobal(t *testing.T) {
	board, joints, global := NewSimBoard(3)
	if len(board.Joints) != 3 || len(joints) != 3 {
		t.Fatalf("expected 3 joints, got board=%d sim=%d", len(board.Joints), len(joints))
	}
	if board.Global != global {
		t.Error("board.Global should be the same instance returned separately")
	}
	joints[1].Pos = 42
	pos, _ := board.Joints[1].PosFeedback()
	if pos != 42 {
		t.Errorf("board.Joints[1].PosFeedback() = %v, want 42 (shared with sim handle)", pos)
	}
}
