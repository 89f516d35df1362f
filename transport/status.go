package transport

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/fxamacker/cbor/v2"
)

// StatusSnapshot is the CBOR-encoded wire form of the servo
// controller's published status (spec.md §5's "one shared status
// snapshot"); head/tail let a reader detect it observed a
// self-consistent copy (spec.md §4.6 phase 12, §5 ordering
// guarantees).
type StatusSnapshot struct {
	_ struct{} `cbor:",toarray"`

	Head uint64
	Tail uint64

	Mode uint8

	JointPos       []float64
	FollowingError []float64
	OnSoftLimit    []bool
	Homed          []bool

	CartPos [9]float64
	CartOk  bool

	ProbeState   uint8
	ProbeTripped bool

	Overrun bool
}

// SnapshotBuffer holds the latest status under the head/tail bump
// convention spec.md §5 names: the writer increments Head, updates
// the public fields, then sets Tail = Head; a reader who observes
// Head == Tail has a self-consistent snapshot. Single-writer: only the
// servo cycle calls Publish. Readers call Read from any goroutine.
type SnapshotBuffer struct {
	head atomic.Uint64
	tail atomic.Uint64
	cur  StatusSnapshot
}

// Publish writes a new snapshot, bumping head before and tail after
// so concurrent readers can detect a torn read.
func (b *SnapshotBuffer) Publish(s StatusSnapshot) {
	h := b.head.Add(1)
	s.Head, s.Tail = h, h
	b.cur = s
	b.tail.Store(h)
}

// Read returns the latest snapshot and whether it was self-consistent
// (head == tail) at the moment of the read.
func (b *SnapshotBuffer) Read() (StatusSnapshot, bool) {
	tail := b.tail.Load()
	s := b.cur
	head := b.head.Load()
	return s, head == tail && head == s.Head
}

var encMode = func() cbor.EncMode {
	m, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return m
}()

// WriteSnapshot CBOR-encodes s and writes it to w as a 4-byte
// little-endian length prefix followed by the encoded payload, so a
// stream reader can frame messages without a closing delimiter.
func WriteSnapshot(w io.Writer, s StatusSnapshot) error {
	b, err := encMode.Marshal(s)
	if err != nil {
		return fmt.Errorf("transport: encode snapshot: %w", err)
	}
	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(len(b)))
	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("transport: write snapshot header: %w", err)
	}
	if _, err := w.Write(b); err != nil {
		return fmt.Errorf("transport: write snapshot payload: %w", err)
	}
	return nil
}

// ReadSnapshot reads one length-prefixed CBOR snapshot from r.
func ReadSnapshot(r io.Reader) (StatusSnapshot, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return StatusSnapshot{}, fmt.Errorf("transport: read snapshot header: %w", err)
	}
	n := binary.LittleEndian.Uint32(hdr[:])
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return StatusSnapshot{}, fmt.Errorf("transport: read snapshot payload: %w", err)
	}
	var s StatusSnapshot
	if err := cbor.Unmarshal(buf, &s); err != nil {
		return StatusSnapshot{}, fmt.Errorf("transport: decode snapshot: %w", err)
	}
	return s, nil
}
