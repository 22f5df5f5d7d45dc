package sim

// EventKind identifies a scheduling event.
type EventKind string

const (
	KindDispatch     EventKind = "dispatch"
	KindPreempt      EventKind = "preempt"
	KindEvict        EventKind = "evict"
	KindComplete     EventKind = "complete"
	KindDeadlineMiss EventKind = "deadline_miss"
	KindReject       EventKind = "reject"
	KindLaunch       EventKind = "launch"
	KindCancel       EventKind = "cancel"
)

// Stream ranks. Events of the real-time partition precede multitask events
// at equal timestamps in the merged stream.
const (
	StreamRT        = 0
	StreamMultitask = 1
)

// EventPayload carries the per-kind detail of an event. Fields not
// meaningful for a kind are zero-valued.
type EventPayload struct {
	Priority   int    // task priority at emission time
	SubmitTime int64  // task submission tick
	Response   int64  // dispatch: dispatch tick - submission tick (first dispatch only)
	Latency    int64  // complete: completion tick - submission tick
	MemFreed   int64  // evict: memory units returned to the budget
	Reason     string // reject/evict: cause
	First      bool   // dispatch: true on the task's first dispatch
}

// Event is one entry of the append-only scheduling log.
type Event struct {
	Seq     uint64 // recorder-assigned, strictly increasing
	Time    int64  // virtual tick of emission
	TaskID  string
	Kind    EventKind
	Stream  int // StreamRT or StreamMultitask
	Payload EventPayload
}

// EventBuffer accumulates the events one strategy emits within a tick.
// Each strategy owns its buffer, so the per-tick phases of the two
// partitions can run in parallel without contending on the recorder; the
// coordinator flushes buffers in stream-rank order at the end of the tick,
// which establishes the RT-before-Multitask tie-break at equal timestamps.
type EventBuffer struct {
	stream int
	events []Event
}

// NewEventBuffer creates a buffer for the given stream rank.
func NewEventBuffer(stream int) *EventBuffer {
	return &EventBuffer{stream: stream}
}

// Emit appends an event for the given task at the given tick. Priority and
// submission time are filled in from the task.
func (b *EventBuffer) Emit(now int64, t *Task, kind EventKind, payload EventPayload) {
	payload.Priority = t.Priority
	payload.SubmitTime = t.SubmitTime
	b.events = append(b.events, Event{
		Time:    now,
		TaskID:  t.ID,
		Kind:    kind,
		Stream:  b.stream,
		Payload: payload,
	})
}

// Drain returns the buffered events and resets the buffer.
func (b *EventBuffer) Drain() []Event {
	out := b.events
	b.events = nil
	return out
}
