package sim

import "sync"

// Strategy is the scheduling-strategy capability interface implemented by
// the real-time scheduler and the multitask manager, composed by the
// hybrid coordinator. Per-tick work is split into the fixed phase order of
// the concurrency model: admission happens in Submit at the tick boundary,
// ResolveTick covers eviction and launch-latency resolution plus deadline
// enforcement, DispatchTick covers the dispatch/preemption decision and
// work accounting. Event emission goes to the strategy's own buffer;
// incremental KPI updates happen when the coordinator flushes it.
type Strategy interface {
	Name() string
	Stream() int

	// Submit admits or rejects a task at the current tick boundary.
	// Typed errors: ErrInvalidOrdering, ErrDuplicateTask,
	// ErrAdmissionRejected, ErrResourceExhausted.
	Submit(t *Task) error

	// Cancel withdraws the task if it has not been dispatched yet.
	// Withdrawal after dispatch has no effect and returns false.
	Cancel(id string) bool

	// ResolveTick runs phase 2 of the tick.
	ResolveTick(now int64)

	// DispatchTick runs phase 3 of the tick. Eviction notices posted by
	// the peer partition during phase 2 are drained here first, so a
	// victim's Evict event always precedes the dispatch it made room for.
	DispatchTick(now int64)

	// Live returns the number of non-terminal tasks owned by the strategy.
	Live() int

	// Buffer exposes the strategy's per-tick event buffer to the
	// coordinator for the end-of-tick flush.
	Buffer() *EventBuffer

	EvictionSink
}

// EvictionSink receives eviction notices for residents owned by a
// strategy when the peer partition's admission reclaimed their memory.
type EvictionSink interface {
	PostEviction(v Resident)
}

// noticeQueue is a small thread-safe queue of pending eviction notices.
// The arbiter frees the victim's budget under its own lock; the owning
// strategy drains the queue at the start of its dispatch phase and
// performs the state transition and event emission.
type noticeQueue struct {
	mu      sync.Mutex
	pending []Resident
}

func (q *noticeQueue) post(v Resident) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, v)
}

func (q *noticeQueue) drain() []Resident {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.pending
	q.pending = nil
	return out
}
