package segq

import (
	"testing"

	"motioncore.dev/tc"
)

func TestPutRemoveOrder(t *testing.T) {
	q := Create(4)
	for i := 1; i <= 3; i++ {
		if !q.Put(tc.Segment{ID: i}) {
			t.Fatalf("Put(%d) failed", i)
		}
	}
	if got := q.Len(); got != 3 {
		t.Fatalf("Len() = %d, want 3", got)
	}
	item, ok := q.Item(0)
	if !ok || item.ID != 1 {
		t.Fatalf("Item(0) = %+v, ok=%v, want ID 1", item, ok)
	}
	if !q.Remove(1) {
		t.Fatal("Remove(1) failed")
	}
	item, ok = q.Item(0)
	if !ok || item.ID != 2 {
		t.Fatalf("Item(0) after remove = %+v, want ID 2", item)
	}
}

func TestQueueFillsToCapacity(t *testing.T) {
	q := Create(4)
	for i := 0; i < 4; i++ {
		if !q.Put(tc.Segment{ID: i}) {
			t.Fatalf("Put(%d) failed unexpectedly", i)
		}
	}
	if q.Put(tc.Segment{ID: 99}) {
		t.Fatal("Put succeeded at hard capacity")
	}
	if q.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", q.Len())
	}
}

func TestFullRespectsMargin(t *testing.T) {
	q := Create(20)
	q.margin = 5
	for i := 0; i < 14; i++ {
		q.Put(tc.Segment{ID: i})
	}
	if q.Full() {
		t.Fatal("Full() true before reaching capacity-margin")
	}
	q.Put(tc.Segment{ID: 100})
	if !q.Full() {
		t.Fatal("Full() false at capacity-margin threshold")
	}
}

func TestRemoveFailsWhenTooFew(t *testing.T) {
	q := Create(4)
	q.Put(tc.Segment{ID: 1})
	if q.Remove(2) {
		t.Fatal("Remove(2) succeeded with only one segment present")
	}
}

func TestClearEmptiesQueueAndAllowsReuse(t *testing.T) {
	q := Create(4)
	for i := 0; i < 4; i++ {
		q.Put(tc.Segment{ID: i})
	}
	q.Clear()
	if q.Len() != 0 {
		t.Fatalf("Len() after Clear = %d, want 0", q.Len())
	}
	if !q.Put(tc.Segment{ID: 42}) {
		t.Fatal("Put failed after Clear")
	}
}

func TestAmbiguousStartEqualsEndDistinguishesEmptyFromFull(t *testing.T) {
	q := Create(2)
	q.Put(tc.Segment{ID: 1})
	q.Put(tc.Segment{ID: 2})
	// start == end now, but the queue is full, not empty.
	if q.Len() != 2 {
		t.Fatalf("Len() = %d, want 2 (start==end but full)", q.Len())
	}
	q.Remove(2)
	// start == end again, now empty.
	if q.Len() != 0 {
		t.Fatalf("Len() = %d, want 0 (start==end, empty)", q.Len())
	}
}
