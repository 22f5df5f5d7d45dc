// Implements the QNX-like hard-real-time scheduler: priority-preemptive
// dispatch over a red-black-tree ready set, deterministic tie-breaking,
// deadline enforcement, and per-period CPU admission budgeting.

package sim

import (
	"fmt"

	"github.com/emirpasic/gods/trees/redblacktree"
	"github.com/emirpasic/gods/utils"
	"github.com/sirupsen/logrus"
)

// RTConfig configures the real-time scheduler partition.
type RTConfig struct {
	CPUUnits    int    // CPU units in the partition (>= 1)
	PeriodTicks int64  // admission budget window length (>= 1)
	TieBreak    string // ready-set tie-break policy: "fifo" (default) or "lifo"

	// UrgentSlackTicks boosts a submission whose deadline slack is below
	// the threshold by UrgencyBoost priority levels. 0 disables the boost.
	UrgentSlackTicks int64
	UrgencyBoost     int // levels added to urgent submissions (>= 1 when enabled)
}

// rtKey orders the ready set: priority descending, then the tie-break
// policy over enqueue sequence. Preempted tasks keep their original
// sequence, so they re-dispatch ahead of later arrivals of equal priority.
type rtKey struct {
	priority int
	seq      uint64
}

// validTieBreaks maps accepted tie-break policy names.
var validTieBreaks = map[string]bool{
	"":     true, // empty defaults to fifo
	"fifo": true,
	"lifo": true,
}

// IsValidTieBreak returns true for a recognized tie-break policy name.
func IsValidTieBreak(name string) bool {
	return validTieBreaks[name]
}

// tieBreakComparator builds the ready-set comparator for the named policy.
// The tree's leftmost node is always the next task to dispatch.
// Panics on unrecognized names.
func tieBreakComparator(name string) utils.Comparator {
	var fifo bool
	switch name {
	case "", "fifo":
		fifo = true
	case "lifo":
		fifo = false
	default:
		panic(fmt.Sprintf("unknown tie-break policy %q; valid policies: [fifo, lifo]", name))
	}
	return func(a, b interface{}) int {
		ka, kb := a.(rtKey), b.(rtKey)
		switch {
		case ka.priority > kb.priority:
			return -1
		case ka.priority < kb.priority:
			return 1
		}
		switch {
		case ka.seq == kb.seq:
			return 0
		case (ka.seq < kb.seq) == fifo:
			return -1
		default:
			return 1
		}
	}
}

// RTScheduler is the QNX-like strategy. It owns its tasks until they reach
// a terminal state; at most one task runs per CPU unit per tick, and a
// running task is preempted within one tick of a strictly higher-priority
// task becoming ready.
type RTScheduler struct {
	cfg   RTConfig
	clock *VirtualClock
	mem   *MemoryArbiter
	out   *EventBuffer
	peer  EvictionSink

	ready   *redblacktree.Tree // rtKey -> *Task (Ready and Preempted)
	running []*Task            // one slot per CPU unit, nil = idle
	tasks   map[string]*Task   // live (non-terminal) tasks

	nextSeq     uint64
	periodStart int64
	committed   int64 // CPU cost admitted in the current period window
	busyLast    int   // units that did work in the last dispatch phase

	notices noticeQueue
}

// NewRTScheduler creates the real-time strategy over the given clock and
// shared memory arbiter. Degenerate knobs are clamped to the Config
// defaults so a directly constructed scheduler cannot run with zero CPU
// units or a zero-length budget window.
func NewRTScheduler(cfg RTConfig, clock *VirtualClock, mem *MemoryArbiter) *RTScheduler {
	if cfg.CPUUnits < 1 {
		cfg.CPUUnits = 1
	}
	if cfg.PeriodTicks < 1 {
		cfg.PeriodTicks = 100
	}
	return &RTScheduler{
		cfg:     cfg,
		clock:   clock,
		mem:     mem,
		out:     NewEventBuffer(StreamRT),
		ready:   redblacktree.NewWith(tieBreakComparator(cfg.TieBreak)),
		running: make([]*Task, cfg.CPUUnits),
		tasks:   make(map[string]*Task),
	}
}

func (s *RTScheduler) Name() string         { return "rt" }
func (s *RTScheduler) Stream() int          { return StreamRT }
func (s *RTScheduler) Buffer() *EventBuffer { return s.out }

// SetPeer wires the peer partition's eviction sink (hybrid mode only).
func (s *RTScheduler) SetPeer(peer EvictionSink) { s.peer = peer }

// PostEviction accepts an eviction notice for a resident this scheduler
// owns; processed at the start of the next dispatch phase.
func (s *RTScheduler) PostEviction(v Resident) { s.notices.post(v) }

// Live returns the number of non-terminal tasks.
func (s *RTScheduler) Live() int { return len(s.tasks) }

// State reports the lifecycle state of a live task this scheduler owns.
func (s *RTScheduler) State(id string) (TaskState, bool) {
	t, ok := s.tasks[id]
	if !ok {
		return "", false
	}
	return t.State, true
}

// budgetRemaining refreshes the period window and returns the CPU cost
// still admittable in it.
func (s *RTScheduler) budgetRemaining(now int64) int64 {
	for now >= s.periodStart+s.cfg.PeriodTicks {
		s.periodStart += s.cfg.PeriodTicks
		s.committed = 0
	}
	return int64(s.cfg.CPUUnits)*s.cfg.PeriodTicks - s.committed
}

// Submit admits the task into scheduling or rejects it. Admission checks,
// in order: timestamp ordering, duplicate id, per-period CPU budget,
// memory reservation against the shared budget.
func (s *RTScheduler) Submit(t *Task) error {
	now := s.clock.Now()
	if t.SubmitTime == 0 {
		t.SubmitTime = now
	}
	if t.SubmitTime != now {
		return fmt.Errorf("task %s submitted at %d, clock is %d: %w", t.ID, t.SubmitTime, now, ErrInvalidOrdering)
	}
	if _, dup := s.tasks[t.ID]; dup {
		return fmt.Errorf("task %s: %w", t.ID, ErrDuplicateTask)
	}

	remaining := s.budgetRemaining(now)
	if t.CPUCost > remaining || (t.Period > 0 && t.CPUCost > t.Period) {
		t.transition(StateRejected, now)
		s.out.Emit(now, t, KindReject, EventPayload{Reason: "cpu budget exceeded"})
		logrus.Warnf("[tick %07d] rt: rejected %s (cost=%d remaining=%d)", now, t.ID, t.CPUCost, remaining)
		return fmt.Errorf("task %s over per-period budget: %w", t.ID, ErrAdmissionRejected)
	}

	if s.cfg.UrgentSlackTicks > 0 && t.Deadline > 0 && t.Deadline-now < s.cfg.UrgentSlackTicks {
		boost := s.cfg.UrgencyBoost
		if boost < 1 {
			boost = 1
		}
		t.Priority += boost
		logrus.Debugf("[tick %07d] rt: urgency boost for %s (slack=%d, prio=%d)", now, t.ID, t.Deadline-now, t.Priority)
	}

	if t.MemFootprint > 0 {
		victims, err := s.mem.Admit(t.ID, StreamRT, t.MemFootprint, now)
		if err != nil {
			t.transition(StateRejected, now)
			s.out.Emit(now, t, KindReject, EventPayload{Reason: "memory exhausted"})
			logrus.Warnf("[tick %07d] rt: rejected %s (footprint=%d)", now, t.ID, t.MemFootprint)
			return fmt.Errorf("task %s footprint %d: %w", t.ID, t.MemFootprint, err)
		}
		s.routeVictims(victims, now)
	}

	s.committed += t.CPUCost
	s.nextSeq++
	t.EnqueueSeq = s.nextSeq
	t.transition(StateReady, now)
	s.ready.Put(rtKey{t.Priority, t.EnqueueSeq}, t)
	s.tasks[t.ID] = t
	s.mem.SetEvictable(t.ID, true)
	logrus.Debugf("[tick %07d] rt: admitted %s prio=%d cost=%d", now, t.ID, t.Priority, t.CPUCost)
	return nil
}

// routeVictims dispatches eviction notices: own victims are evicted
// immediately (Submit runs at the tick boundary, single-threaded), peer
// victims are posted to the owning partition.
func (s *RTScheduler) routeVictims(victims []Resident, now int64) {
	for _, v := range victims {
		if v.Stream == StreamRT {
			s.evictVictim(v, now)
		} else if s.peer != nil {
			s.peer.PostEviction(v)
		}
	}
}

// evictVictim finalizes one eviction notice: the arbiter has already
// reclaimed the budget, here the task leaves scheduling.
func (s *RTScheduler) evictVictim(v Resident, now int64) {
	t, ok := s.tasks[v.TaskID]
	if !ok || t.State != StateReady {
		return
	}
	s.ready.Remove(rtKey{t.Priority, t.EnqueueSeq})
	t.transition(StateEvicted, now)
	delete(s.tasks, t.ID)
	s.out.Emit(now, t, KindEvict, EventPayload{Reason: "memory pressure", MemFreed: v.Footprint})
	logrus.Infof("[tick %07d] rt: evicted %s (freed %d)", now, t.ID, v.Footprint)
}

// Cancel withdraws a task that has not been dispatched.
func (s *RTScheduler) Cancel(id string) bool {
	t, ok := s.tasks[id]
	if !ok || t.FirstDispatch >= 0 || t.State != StateReady {
		return false
	}
	now := s.clock.Now()
	s.ready.Remove(rtKey{t.Priority, t.EnqueueSeq})
	t.transition(StateCancelled, now)
	delete(s.tasks, id)
	s.mem.Release(id)
	s.out.Emit(now, t, KindCancel, EventPayload{})
	return true
}

// ResolveTick enforces deadlines: Ready and Preempted tasks whose deadline
// has elapsed transition to Missed and leave scheduling. Running tasks are
// allowed to finish; the state graph has no Running -> Missed edge.
func (s *RTScheduler) ResolveTick(now int64) {
	s.budgetRemaining(now)

	var missed []*Task
	it := s.ready.Iterator()
	for it.Next() {
		t := it.Value().(*Task)
		if t.Deadline > 0 && now >= t.Deadline {
			missed = append(missed, t)
		}
	}
	for _, t := range missed {
		s.ready.Remove(rtKey{t.Priority, t.EnqueueSeq})
		t.transition(StateMissed, now)
		delete(s.tasks, t.ID)
		s.mem.Release(t.ID)
		s.out.Emit(now, t, KindDeadlineMiss, EventPayload{})
		logrus.Warnf("[tick %07d] rt: deadline miss %s (deadline=%d)", now, t.ID, t.Deadline)
	}
}

// DispatchTick drains eviction notices, then fills CPU units with the
// highest-priority ready tasks, preempting strictly lower-priority running
// tasks, and finally accounts one tick of work for every running task.
func (s *RTScheduler) DispatchTick(now int64) {
	for _, v := range s.notices.drain() {
		s.evictVictim(v, now)
	}

	for {
		node := s.ready.Left()
		if node == nil {
			break
		}
		top := node.Value.(*Task)
		unit := s.allocUnit(top, now)
		if unit < 0 {
			break
		}
		s.ready.Remove(node.Key.(rtKey))
		top.transition(StateRunning, now)
		first := top.FirstDispatch < 0
		if first {
			top.FirstDispatch = now
		}
		s.running[unit] = top
		s.mem.SetEvictable(top.ID, false)
		s.out.Emit(now, top, KindDispatch, EventPayload{
			First:    first,
			Response: now - top.SubmitTime,
		})
		logrus.Infof("[tick %07d] rt: dispatch %s prio=%d unit=%d", now, top.ID, top.Priority, unit)
	}

	s.busyLast = 0
	for _, t := range s.running {
		if t != nil {
			s.busyLast++
		}
	}

	for unit, t := range s.running {
		if t == nil {
			continue
		}
		t.Remaining--
		t.LastActive = now
		s.mem.Touch(t.ID, now)
		if t.Remaining <= 0 {
			t.transition(StateCompleted, now)
			delete(s.tasks, t.ID)
			s.running[unit] = nil
			s.mem.Release(t.ID)
			s.out.Emit(now, t, KindComplete, EventPayload{Latency: now - t.SubmitTime})
			logrus.Infof("[tick %07d] rt: complete %s", now, t.ID)
		}
	}
}

// allocUnit returns a CPU unit for the candidate: a free unit if any,
// otherwise the unit of the lowest-priority running task strictly below
// the candidate's priority, which is preempted. Returns -1 when the
// candidate cannot run this tick.
func (s *RTScheduler) allocUnit(cand *Task, now int64) int {
	lowest := -1
	for unit, t := range s.running {
		if t == nil {
			return unit
		}
		if lowest < 0 || t.Priority < s.running[lowest].Priority {
			lowest = unit
		}
	}
	victim := s.running[lowest]
	if victim.Priority >= cand.Priority {
		return -1
	}
	victim.transition(StatePreempted, now)
	s.running[lowest] = nil
	s.ready.Put(rtKey{victim.Priority, victim.EnqueueSeq}, victim)
	s.out.Emit(now, victim, KindPreempt, EventPayload{})
	logrus.Infof("[tick %07d] rt: preempt %s for %s", now, victim.ID, cand.ID)
	return lowest
}

// BusyUnits returns the number of CPU units that did work in the last
// dispatch phase, for utilization accounting at the end of the tick.
func (s *RTScheduler) BusyUnits() int {
	return s.busyLast
}
