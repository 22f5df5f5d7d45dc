// Implements the Android-like soft-real-time multitask manager:
// cold-start launch latency, round-robin dispatch with a fairness quantum,
// and memory-pressure eviction of backgrounded or cached tasks. There is
// no priority preemption in this partition.

package sim

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/sirupsen/logrus"
)

// MultitaskConfig configures the multitask manager partition.
type MultitaskConfig struct {
	CPUUnits      int    // CPU units in the partition (>= 1)
	Quantum       int64  // fairness quantum in ticks (>= 1)
	LaunchLatency int64  // base cold-start latency in ticks (>= 0)
	LaunchJitter  int64  // uniform +/- jitter applied to the base latency
	Eviction      string // eviction policy name (see NewEvictionPolicy)
}

// MultitaskManager is the Android-like strategy. Launching a task incurs a
// cold-start delay before it becomes Ready; completed tasks stay memory
// resident (cached-app model) until reclaimed under pressure.
type MultitaskManager struct {
	cfg   MultitaskConfig
	clock *VirtualClock
	mem   *MemoryArbiter
	out   *EventBuffer
	peer  EvictionSink
	rng   *rand.Rand

	launching   []*Task          // Pending tasks waiting out launch latency
	launchReady map[string]int64 // task id -> tick the cold start resolves
	runq        []*Task          // Ready tasks in round-robin order
	running     []*Task          // one slot per CPU unit, nil = idle
	sliceUsed   []int64          // quantum ticks consumed by running[i]
	tasks       map[string]*Task // live (non-terminal) tasks
	cached      map[string]*Task // Completed tasks still holding memory

	nextSeq  uint64
	busyLast int
	notices  noticeQueue
}

// NewMultitaskManager creates the multitask strategy over the given clock,
// shared memory arbiter, and launch-latency RNG. Degenerate knobs are
// clamped to the Config defaults.
func NewMultitaskManager(cfg MultitaskConfig, clock *VirtualClock, mem *MemoryArbiter, rng *rand.Rand) *MultitaskManager {
	if cfg.CPUUnits < 1 {
		cfg.CPUUnits = 1
	}
	if cfg.Quantum < 1 {
		cfg.Quantum = 1
	}
	return &MultitaskManager{
		cfg:         cfg,
		clock:       clock,
		mem:         mem,
		out:         NewEventBuffer(StreamMultitask),
		rng:         rng,
		launchReady: make(map[string]int64),
		running:     make([]*Task, cfg.CPUUnits),
		sliceUsed:   make([]int64, cfg.CPUUnits),
		tasks:       make(map[string]*Task),
		cached:      make(map[string]*Task),
	}
}

func (m *MultitaskManager) Name() string         { return "multitask" }
func (m *MultitaskManager) Stream() int          { return StreamMultitask }
func (m *MultitaskManager) Buffer() *EventBuffer { return m.out }

// SetPeer wires the peer partition's eviction sink (hybrid mode only).
func (m *MultitaskManager) SetPeer(peer EvictionSink) { m.peer = peer }

// PostEviction accepts an eviction notice for a resident this manager
// owns; processed at the start of the next dispatch phase.
func (m *MultitaskManager) PostEviction(v Resident) { m.notices.post(v) }

// Live returns the number of non-terminal tasks. Cached completed
// residents are terminal and not counted.
func (m *MultitaskManager) Live() int { return len(m.tasks) }

// State reports the lifecycle state of a task this manager owns, live or
// cached.
func (m *MultitaskManager) State(id string) (TaskState, bool) {
	if t, ok := m.tasks[id]; ok {
		return t.State, true
	}
	if t, ok := m.cached[id]; ok {
		return t.State, true
	}
	return "", false
}

// sampleLaunchLatency draws the cold-start delay for one launch.
func (m *MultitaskManager) sampleLaunchLatency() int64 {
	d := m.cfg.LaunchLatency
	if m.cfg.LaunchJitter > 0 {
		d += m.rng.Int63n(2*m.cfg.LaunchJitter+1) - m.cfg.LaunchJitter
	}
	if d < 0 {
		d = 0
	}
	return d
}

// Submit accepts the task into the launch pipeline. Memory is not claimed
// here; it is reserved when the cold start resolves. Only a footprint that
// can never fit is rejected up front.
func (m *MultitaskManager) Submit(t *Task) error {
	now := m.clock.Now()
	if t.SubmitTime == 0 {
		t.SubmitTime = now
	}
	if t.SubmitTime != now {
		return fmt.Errorf("task %s submitted at %d, clock is %d: %w", t.ID, t.SubmitTime, now, ErrInvalidOrdering)
	}
	if _, dup := m.tasks[t.ID]; dup {
		return fmt.Errorf("task %s: %w", t.ID, ErrDuplicateTask)
	}
	if _, dup := m.cached[t.ID]; dup {
		return fmt.Errorf("task %s: %w", t.ID, ErrDuplicateTask)
	}
	if t.MemFootprint > m.mem.Capacity() {
		t.transition(StateRejected, now)
		m.out.Emit(now, t, KindReject, EventPayload{Reason: "footprint exceeds memory capacity"})
		return fmt.Errorf("task %s footprint %d over capacity: %w", t.ID, t.MemFootprint, ErrAdmissionRejected)
	}

	m.nextSeq++
	t.EnqueueSeq = m.nextSeq
	m.tasks[t.ID] = t
	m.launching = append(m.launching, t)
	m.launchReady[t.ID] = now + m.sampleLaunchLatency()
	logrus.Debugf("[tick %07d] mt: accepted %s, ready at %d", now, t.ID, m.launchReady[t.ID])
	return nil
}

// Cancel withdraws a task that has not been dispatched.
func (m *MultitaskManager) Cancel(id string) bool {
	t, ok := m.tasks[id]
	if !ok || t.FirstDispatch >= 0 {
		return false
	}
	now := m.clock.Now()
	switch t.State {
	case StatePending:
		m.launching = removeTask(m.launching, id)
		delete(m.launchReady, id)
	case StateReady:
		m.runq = removeTask(m.runq, id)
		m.mem.Release(id)
	default:
		return false
	}
	t.transition(StateCancelled, now)
	delete(m.tasks, id)
	m.out.Emit(now, t, KindCancel, EventPayload{})
	return true
}

// ResolveTick resolves launch latency: tasks whose cold start has elapsed
// claim their memory footprint, evicting under pressure, and become Ready.
// A launch that cannot be satisfied even after eviction fails only the
// launching task.
func (m *MultitaskManager) ResolveTick(now int64) {
	var still []*Task
	for _, t := range m.launching {
		if m.launchReady[t.ID] > now {
			still = append(still, t)
			continue
		}
		delete(m.launchReady, t.ID)
		if !m.claimMemory(t, now) {
			t.transition(StateRejected, now)
			delete(m.tasks, t.ID)
			m.out.Emit(now, t, KindReject, EventPayload{Reason: "memory exhausted at launch"})
			logrus.Warnf("[tick %07d] mt: launch failed for %s (footprint=%d)", now, t.ID, t.MemFootprint)
			continue
		}
		t.transition(StateReady, now)
		m.runq = append(m.runq, t)
		m.mem.SetEvictable(t.ID, true)
		m.out.Emit(now, t, KindLaunch, EventPayload{Latency: now - t.SubmitTime})
		logrus.Infof("[tick %07d] mt: launched %s after %d ticks", now, t.ID, now-t.SubmitTime)
	}
	m.launching = still
}

// claimMemory reserves the task's footprint, backgrounding running tasks
// one at a time (least recently active first) when the evictable residents
// alone cannot cover the shortfall. Backgrounding is the cooperative
// Running -> Ready yield at the tick boundary; the backgrounded task is
// then an ordinary eviction candidate, so a Running task is never evicted
// directly.
func (m *MultitaskManager) claimMemory(t *Task, now int64) bool {
	if t.MemFootprint == 0 {
		return true
	}
	for {
		victims, err := m.mem.Admit(t.ID, StreamMultitask, t.MemFootprint, now)
		if err == nil {
			for _, v := range victims {
				if v.Stream == StreamMultitask {
					m.evictVictim(v, now)
				} else if m.peer != nil {
					m.peer.PostEviction(v)
				}
			}
			return true
		}
		if !m.backgroundOne(now) {
			return false
		}
	}
}

// backgroundOne moves the least-recently-active running task back to the
// run queue, making it evictable. Returns false when no task is running.
func (m *MultitaskManager) backgroundOne(now int64) bool {
	unit := -1
	for u, t := range m.running {
		if t == nil {
			continue
		}
		if unit < 0 || t.LastActive < m.running[unit].LastActive ||
			(t.LastActive == m.running[unit].LastActive && t.EnqueueSeq < m.running[unit].EnqueueSeq) {
			unit = u
		}
	}
	if unit < 0 {
		return false
	}
	t := m.running[unit]
	t.transition(StateReady, now)
	m.running[unit] = nil
	m.sliceUsed[unit] = 0
	m.runq = append(m.runq, t)
	m.mem.SetEvictable(t.ID, true)
	logrus.Infof("[tick %07d] mt: backgrounded %s under memory pressure", now, t.ID)
	return true
}

// evictVictim finalizes one eviction: the arbiter already reclaimed the
// budget. Ready tasks transition to Evicted; cached completed tasks only
// lose their residency (their terminal state stays Completed).
func (m *MultitaskManager) evictVictim(v Resident, now int64) {
	if t, ok := m.cached[v.TaskID]; ok {
		delete(m.cached, v.TaskID)
		m.out.Emit(now, t, KindEvict, EventPayload{Reason: "reclaim", MemFreed: v.Footprint})
		logrus.Infof("[tick %07d] mt: reclaimed cached %s (freed %d)", now, t.ID, v.Footprint)
		return
	}
	t, ok := m.tasks[v.TaskID]
	if !ok || t.State != StateReady {
		return
	}
	m.runq = removeTask(m.runq, t.ID)
	t.transition(StateEvicted, now)
	delete(m.tasks, t.ID)
	m.out.Emit(now, t, KindEvict, EventPayload{Reason: "memory pressure", MemFreed: v.Footprint})
	logrus.Infof("[tick %07d] mt: evicted %s (freed %d)", now, t.ID, v.Footprint)
}

// DispatchTick drains eviction notices, rotates expired quanta, fills idle
// units round-robin, and accounts one tick of work per running task.
func (m *MultitaskManager) DispatchTick(now int64) {
	for _, v := range m.notices.drain() {
		m.evictVictim(v, now)
	}

	// Quantum rotation: an expired slice yields the unit when someone is
	// waiting. Rotation is cooperative, no Preempt event is emitted.
	for unit, t := range m.running {
		if t == nil || m.sliceUsed[unit] < m.cfg.Quantum || len(m.runq) == 0 {
			continue
		}
		t.transition(StateReady, now)
		m.running[unit] = nil
		m.sliceUsed[unit] = 0
		m.runq = append(m.runq, t)
		m.mem.SetEvictable(t.ID, true)
	}

	for unit, t := range m.running {
		if t != nil || len(m.runq) == 0 {
			continue
		}
		next := m.runq[0]
		m.runq = m.runq[1:]
		next.transition(StateRunning, now)
		first := next.FirstDispatch < 0
		if first {
			next.FirstDispatch = now
		}
		m.running[unit] = next
		m.sliceUsed[unit] = 0
		m.mem.SetEvictable(next.ID, false)
		m.out.Emit(now, next, KindDispatch, EventPayload{
			First:    first,
			Response: now - next.SubmitTime,
		})
		logrus.Infof("[tick %07d] mt: dispatch %s unit=%d", now, next.ID, unit)
	}

	m.busyLast = 0
	for _, t := range m.running {
		if t != nil {
			m.busyLast++
		}
	}

	for unit, t := range m.running {
		if t == nil {
			continue
		}
		t.Remaining--
		t.LastActive = now
		m.sliceUsed[unit]++
		m.mem.Touch(t.ID, now)
		if t.Remaining <= 0 {
			t.transition(StateCompleted, now)
			delete(m.tasks, t.ID)
			m.cached[t.ID] = t
			m.running[unit] = nil
			m.sliceUsed[unit] = 0
			m.mem.SetReclaimable(t.ID)
			m.out.Emit(now, t, KindComplete, EventPayload{Latency: now - t.SubmitTime})
			logrus.Infof("[tick %07d] mt: complete %s (stays cached)", now, t.ID)
		}
	}
}

// BusyUnits returns the number of CPU units that did work in the last
// dispatch phase.
func (m *MultitaskManager) BusyUnits() int {
	return m.busyLast
}

// removeTask drops the task with the given id from a slice, preserving order.
func removeTask(list []*Task, id string) []*Task {
	for i, t := range list {
		if t.ID == id {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// CachedResidents reports the ids of completed tasks still holding memory,
// in deterministic order. Exposed for inspection and tests.
func (m *MultitaskManager) CachedResidents() []string {
	ids := make([]string, 0, len(m.cached))
	for id := range m.cached {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
