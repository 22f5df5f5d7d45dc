package sim

import "testing"

func recorderWith(events ...Event) *Recorder {
	r := NewRecorder()
	r.Append(events...)
	return r
}

func TestRecorder_Append_AssignsIncreasingSeq(t *testing.T) {
	// GIVEN three events appended in arrival order
	r := recorderWith(
		Event{Time: 0, TaskID: "a", Kind: KindDispatch},
		Event{Time: 0, TaskID: "a", Kind: KindComplete},
		Event{Time: 1, TaskID: "b", Kind: KindDispatch},
	)

	// THEN sequence numbers are strictly increasing from one
	got := r.All().Collect()
	if len(got) != 3 {
		t.Fatalf("Collect: got %d events, want 3", len(got))
	}
	for i, ev := range got {
		if ev.Seq != uint64(i+1) {
			t.Errorf("event %d: Seq = %d, want %d", i, ev.Seq, i+1)
		}
	}
}

func TestRecorder_Query_FiltersByKindAndTask(t *testing.T) {
	// GIVEN a log with mixed kinds and tasks
	r := recorderWith(
		Event{Time: 0, TaskID: "a", Kind: KindDispatch},
		Event{Time: 1, TaskID: "b", Kind: KindDispatch},
		Event{Time: 2, TaskID: "a", Kind: KindPreempt},
		Event{Time: 3, TaskID: "a", Kind: KindComplete},
	)

	// WHEN querying dispatches of task a
	got := r.Query(Filter{To: -1, Kinds: []EventKind{KindDispatch}, TaskID: "a"}).Collect()

	// THEN only the matching event is returned
	if len(got) != 1 || got[0].TaskID != "a" || got[0].Kind != KindDispatch {
		t.Errorf("Query: got %v, want single dispatch of a", got)
	}
}

func TestRecorder_Query_ClosedTimeRange(t *testing.T) {
	// GIVEN events at ticks 0..4
	r := NewRecorder()
	for i := int64(0); i < 5; i++ {
		r.Append(Event{Time: i, TaskID: "a", Kind: KindDispatch})
	}

	// WHEN querying the closed range [1, 3]
	got := r.Query(Filter{From: 1, To: 3}).Collect()

	// THEN both endpoints are included
	if len(got) != 3 {
		t.Fatalf("Query [1,3]: got %d events, want 3", len(got))
	}
	if got[0].Time != 1 || got[2].Time != 3 {
		t.Errorf("Query [1,3]: got times %d..%d, want 1..3", got[0].Time, got[2].Time)
	}
}

func TestRecorder_Query_SnapshotIgnoresLaterAppends(t *testing.T) {
	// GIVEN a cursor opened over a two-event log
	r := recorderWith(
		Event{Time: 0, TaskID: "a", Kind: KindDispatch},
		Event{Time: 0, TaskID: "a", Kind: KindComplete},
	)
	cur := r.All()

	// WHEN an event is appended after the query was issued
	r.Append(Event{Time: 1, TaskID: "b", Kind: KindDispatch})

	// THEN the cursor only yields the snapshot, and a fresh query sees all
	if got := cur.Collect(); len(got) != 2 {
		t.Errorf("snapshot cursor: got %d events, want 2", len(got))
	}
	if got := r.All().Collect(); len(got) != 3 {
		t.Errorf("fresh cursor: got %d events, want 3", len(got))
	}
}

func TestRecorder_Cursor_ResetReplaysIdentically(t *testing.T) {
	// GIVEN a cursor over a closed time range
	r := recorderWith(
		Event{Time: 0, TaskID: "a", Kind: KindDispatch},
		Event{Time: 1, TaskID: "a", Kind: KindPreempt},
		Event{Time: 2, TaskID: "a", Kind: KindComplete},
	)
	cur := r.Query(Filter{From: 0, To: 2})
	first := cur.Collect()

	// WHEN the cursor is reset and drained again
	cur.Reset()
	second := cur.Collect()

	// THEN both passes return the same fully ordered result
	if len(first) != len(second) {
		t.Fatalf("replay length: got %d, want %d", len(second), len(first))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("replay event %d: got %+v, want %+v", i, second[i], first[i])
		}
	}
}
