package sim

import (
	"sync"

	"github.com/emirpasic/gods/maps/linkedhashmap"

	"github.com/ivi-bench/platform-sim/sim/trace"
)

// MemoryArbiter owns the shared memory budget and the residency index.
// It is the single mutual-exclusion region for memory decisions within a
// tick: both partitions may call it concurrently during their phases.
//
// The arbiter only selects victims and reclaims their budget; the owning
// strategy performs the state transition and emits the Evict event when it
// processes the eviction notice.
type MemoryArbiter struct {
	mu        sync.Mutex
	budget    *ResourceBudget
	residents *linkedhashmap.Map // task id -> *Resident, admission order
	policy    EvictionPolicy
	nextSeq   uint64
	trace     *trace.SimulationTrace
}

// NewMemoryArbiter creates an arbiter over the given capacity.
func NewMemoryArbiter(capacity int64, policy EvictionPolicy) *MemoryArbiter {
	if policy == nil {
		policy = NewEvictionPolicy("")
	}
	return &MemoryArbiter{
		budget:    NewResourceBudget(capacity),
		residents: linkedhashmap.New(),
		policy:    policy,
	}
}

// SetTrace attaches a decision trace; eviction decisions are recorded
// when the trace level enables them.
func (a *MemoryArbiter) SetTrace(st *trace.SimulationTrace) {
	a.trace = st
}

// Capacity returns the total memory capacity.
func (a *MemoryArbiter) Capacity() int64 {
	return a.budget.Capacity()
}

// Allocated returns the memory currently held by residents.
func (a *MemoryArbiter) Allocated() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.budget.Allocated()
}

// Admit reserves footprint units for the given task, evicting residents per
// the configured policy when the free budget is insufficient. On success it
// returns the victims whose budget was reclaimed (already removed from the
// residency index); the caller owns their state transitions. Returns
// ErrResourceExhausted when eviction cannot cover the shortfall, in which
// case nothing is reserved.
func (a *MemoryArbiter) Admit(taskID string, stream int, footprint, now int64) ([]Resident, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if footprint > a.budget.Capacity() {
		return nil, ErrResourceExhausted
	}

	var victims []Resident
	if a.budget.Free() < footprint {
		need := footprint - a.budget.Free()
		victims = a.policy.SelectVictims(a.candidates(), need)
		if victims == nil {
			return nil, ErrResourceExhausted
		}
		for _, v := range victims {
			a.residents.Remove(v.TaskID)
			a.budget.Release(v.Footprint)
			a.trace.RecordEviction(trace.EvictionRecord{
				VictimID:    v.TaskID,
				RequestorID: taskID,
				Clock:       now,
				Freed:       v.Footprint,
				Reclaim:     v.Reclaimable,
			})
		}
	}

	if !a.budget.Allocate(footprint) {
		// Free() was rechecked above under the same lock.
		panic("MemoryArbiter.Admit: allocation failed after eviction")
	}
	a.nextSeq++
	a.residents.Put(taskID, &Resident{
		TaskID:     taskID,
		Stream:     stream,
		Footprint:  footprint,
		LastActive: now,
		Seq:        a.nextSeq,
	})
	return victims, nil
}

// Release drops a resident and returns its footprint to the budget.
// No-op for unknown ids (the task may have been evicted already).
func (a *MemoryArbiter) Release(taskID string) int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	r, ok := a.lookup(taskID)
	if !ok {
		return 0
	}
	a.residents.Remove(taskID)
	a.budget.Release(r.Footprint)
	return r.Footprint
}

// Touch records CPU activity for recency-based eviction ordering.
func (a *MemoryArbiter) Touch(taskID string, now int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if r, ok := a.lookup(taskID); ok {
		r.LastActive = now
	}
}

// SetEvictable marks whether a resident is backgrounded and eligible for
// eviction. Running tasks must be marked non-evictable by their strategy.
func (a *MemoryArbiter) SetEvictable(taskID string, evictable bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if r, ok := a.lookup(taskID); ok {
		r.Evictable = evictable
	}
}

// SetReclaimable marks a terminal-but-resident task (cached-app model)
// whose memory is reclaimed first under pressure.
func (a *MemoryArbiter) SetReclaimable(taskID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if r, ok := a.lookup(taskID); ok {
		r.Reclaimable = true
		r.Evictable = true
	}
}

func (a *MemoryArbiter) lookup(taskID string) (*Resident, bool) {
	v, ok := a.residents.Get(taskID)
	if !ok {
		return nil, false
	}
	return v.(*Resident), true
}

// candidates snapshots the evictable residents in admission order.
// Caller must hold a.mu.
func (a *MemoryArbiter) candidates() []Resident {
	out := make([]Resident, 0, a.residents.Size())
	it := a.residents.Iterator()
	for it.Next() {
		r := it.Value().(*Resident)
		if r.Evictable || r.Reclaimable {
			out = append(out, *r)
		}
	}
	return out
}
