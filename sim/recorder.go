// Implements the Recorder, the append-only time-ordered log of scheduling
// events, and the Cursor for lazy, restartable queries over it.

package sim

import "sync"

// Recorder is the append-only event log. Appends are the sole
// serialization point across event producers; the log never drops an
// event and assigns each a strictly increasing sequence number.
type Recorder struct {
	mu      sync.Mutex
	events  []Event
	nextSeq uint64
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Append records events in arrival order, assigning sequence numbers.
func (r *Recorder) Append(events ...Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ev := range events {
		r.nextSeq++
		ev.Seq = r.nextSeq
		r.events = append(r.events, ev)
	}
}

// Len returns the number of recorded events.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// at returns the event at index i.
func (r *Recorder) at(i int) Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[i]
}

// Filter restricts a query to a time range, event kinds, or one task.
// From/To bound the closed range [From, To]; To < 0 means unbounded.
// Empty Kinds matches every kind; empty TaskID matches every task.
type Filter struct {
	From   int64
	To     int64
	Kinds  []EventKind
	TaskID string
}

func (f Filter) matches(ev Event) bool {
	if ev.Time < f.From {
		return false
	}
	if f.To >= 0 && ev.Time > f.To {
		return false
	}
	if f.TaskID != "" && ev.TaskID != f.TaskID {
		return false
	}
	if len(f.Kinds) > 0 {
		found := false
		for _, k := range f.Kinds {
			if ev.Kind == k {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Query returns a cursor over the log as it stands at query time. The
// cursor is lazy and restartable: it re-reads from the start of the log
// and never observes events appended after the query was issued, so
// re-querying a closed time range is idempotent and fully ordered.
func (r *Recorder) Query(f Filter) *Cursor {
	return &Cursor{rec: r, filter: f, limit: r.Len()}
}

// All returns a cursor over the whole log at query time.
func (r *Recorder) All() *Cursor {
	return r.Query(Filter{To: -1})
}

// Cursor iterates the recorder lazily in append order.
type Cursor struct {
	rec    *Recorder
	filter Filter
	limit  int // log length at query time
	pos    int
}

// Next returns the next matching event, or false when the cursor is done.
func (c *Cursor) Next() (Event, bool) {
	for c.pos < c.limit {
		ev := c.rec.at(c.pos)
		c.pos++
		if c.filter.matches(ev) {
			return ev, true
		}
	}
	return Event{}, false
}

// Reset restarts the cursor at the beginning of the same log snapshot.
func (c *Cursor) Reset() {
	c.pos = 0
}

// Collect drains the cursor into a slice.
func (c *Cursor) Collect() []Event {
	var out []Event
	for {
		ev, ok := c.Next()
		if !ok {
			return out
		}
		out = append(out, ev)
	}
}
