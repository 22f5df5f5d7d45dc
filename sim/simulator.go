// The Coordinator composes the scheduling strategies under one virtual
// clock and drives the fixed per-tick phase order: (1) admission at the
// tick boundary, (2) eviction/launch-latency resolution, (3) dispatch and
// preemption, (4) event emission, (5) incremental KPI update. The two
// partitions execute phases 2 and 3 in parallel since they own disjoint
// CPU units; the shared memory arbiter is the single mutual-exclusion
// region, and the recorder flush is the single serialization point.

package sim

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ivi-bench/platform-sim/sim/policy"
	"github.com/ivi-bench/platform-sim/sim/trace"
)

// Coordinator runs one or both strategies against the authoritative
// virtual clock and owns the event recorder and KPI aggregator.
type Coordinator struct {
	cfg   Config
	clock *VirtualClock
	rng   *PartitionedRNG
	mem   *MemoryArbiter

	rt *RTScheduler
	mt *MultitaskManager
	// active strategies in stream-rank order; the flush order gives RT
	// events precedence at equal timestamps.
	strategies []Strategy

	rec       *Recorder
	kpi       *Aggregator
	trace     *trace.SimulationTrace
	admission policy.AdmissionPolicy
}

// NewCoordinator validates the configuration and wires the platform.
func NewCoordinator(cfg Config) (*Coordinator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	c := &Coordinator{
		cfg:       cfg,
		clock:     NewVirtualClock(),
		rng:       NewPartitionedRNG(NewSimulationKey(cfg.Seed)),
		rec:       NewRecorder(),
		kpi:       NewAggregator(cfg.KPI),
		trace:     trace.NewSimulationTrace(trace.TraceLevel(cfg.TraceLevel)),
		admission: policy.NewAdmissionPolicy(cfg.AdmissionPolicy, cfg.AdmissionCapacity, cfg.AdmissionRefill),
	}
	c.mem = NewMemoryArbiter(cfg.MemoryCapacity, NewEvictionPolicy(cfg.Multitask.Eviction))
	c.mem.SetTrace(c.trace)

	if cfg.Mode == ModeRT || cfg.Mode == ModeHybrid {
		c.rt = NewRTScheduler(cfg.RT, c.clock, c.mem)
		c.strategies = append(c.strategies, c.rt)
	}
	if cfg.Mode == ModeMultitask || cfg.Mode == ModeHybrid {
		c.mt = NewMultitaskManager(cfg.Multitask, c.clock, c.mem, c.rng.ForSubsystem(SubsystemLaunch))
		c.strategies = append(c.strategies, c.mt)
	}
	if c.rt != nil && c.mt != nil {
		c.rt.SetPeer(c.mt)
		c.mt.SetPeer(c.rt)
	}
	return c, nil
}

// Now returns the current virtual tick.
func (c *Coordinator) Now() int64 { return c.clock.Now() }

// Recorder exposes the event log for external consumers.
func (c *Coordinator) Recorder() *Recorder { return c.rec }

// KPI exposes the aggregator for external reporting and ML consumers.
func (c *Coordinator) KPI() *Aggregator { return c.kpi }

// Trace exposes the decision trace collected during the run.
func (c *Coordinator) Trace() *trace.SimulationTrace { return c.trace }

// route picks the owning strategy for a submission.
func (c *Coordinator) route(t *Task) Strategy {
	switch c.cfg.Mode {
	case ModeRT:
		return c.rt
	case ModeMultitask:
		return c.mt
	}
	// Hybrid: honor an explicit partition, otherwise place by priority.
	switch t.Mode {
	case ModeRT:
		return c.rt
	case ModeMultitask:
		return c.mt
	}
	if t.Priority >= c.cfg.AutoRTPriority {
		return c.rt
	}
	return c.mt
}

// Submit admits a task at the current tick boundary. Typed errors:
// ErrInvalidOrdering, ErrDuplicateTask, ErrAdmissionRejected,
// ErrResourceExhausted. Failures are local to this submission.
func (c *Coordinator) Submit(t *Task) error {
	now := c.clock.Now()
	target := c.route(t)

	if ok, reason := c.admission.Admit(t.CPUCost, now); !ok {
		t.SubmitTime = now
		t.transition(StateRejected, now)
		target.Buffer().Emit(now, t, KindReject, EventPayload{Reason: reason})
		c.trace.RecordAdmission(trace.AdmissionRecord{TaskID: t.ID, Clock: now, Admitted: false, Reason: reason})
		return fmt.Errorf("task %s rate limited: %w", t.ID, ErrAdmissionRejected)
	}

	err := target.Submit(t)
	rec := trace.AdmissionRecord{TaskID: t.ID, Clock: now, Admitted: err == nil}
	if err != nil {
		rec.Reason = err.Error()
	}
	c.trace.RecordAdmission(rec)
	return err
}

// TaskState reports the lifecycle state of a task the platform still
// tracks: live tasks in either partition, plus cached completed residents.
// Returns ErrUnknownTask for ids no active strategy owns.
func (c *Coordinator) TaskState(id string) (TaskState, error) {
	if c.rt != nil {
		if st, ok := c.rt.State(id); ok {
			return st, nil
		}
	}
	if c.mt != nil {
		if st, ok := c.mt.State(id); ok {
			return st, nil
		}
	}
	return "", fmt.Errorf("task %s: %w", id, ErrUnknownTask)
}

// Cancel withdraws a task before dispatch. Withdrawal after dispatch has
// no effect and returns false.
func (c *Coordinator) Cancel(id string) bool {
	for _, s := range c.strategies {
		if s.Cancel(id) {
			return true
		}
	}
	return false
}

// Tick runs one virtual tick through the fixed phase order and advances
// the clock. All waits resolve at the tick boundary; nothing blocks.
func (c *Coordinator) Tick() {
	now := c.clock.Now()

	c.parallel(func(s Strategy) { s.ResolveTick(now) })
	c.parallel(func(s Strategy) { s.DispatchTick(now) })

	// Phase 4: flush per-partition buffers in stream-rank order, then
	// phase 5: fold each event into the KPI stream.
	for _, s := range c.strategies {
		events := s.Buffer().Drain()
		c.rec.Append(events...)
		for _, ev := range events {
			c.kpi.ObserveEvent(ev)
		}
	}

	busy, capacity := c.occupancy()
	c.kpi.ObserveTick(now, busy, capacity, c.mem.Allocated(), c.mem.Capacity())

	c.clock.Advance()
}

// parallel runs fn over the active strategies, concurrently when both
// partitions are active. The barrier between phases keeps the phase order
// global, not just per-partition.
func (c *Coordinator) parallel(fn func(Strategy)) {
	if len(c.strategies) == 1 {
		fn(c.strategies[0])
		return
	}
	var wg sync.WaitGroup
	for _, s := range c.strategies {
		wg.Add(1)
		go func(s Strategy) {
			defer wg.Done()
			fn(s)
		}(s)
	}
	wg.Wait()
}

func (c *Coordinator) occupancy() (busy, capacity int64) {
	if c.rt != nil {
		busy += int64(c.rt.BusyUnits())
		capacity += int64(c.cfg.RT.CPUUnits)
	}
	if c.mt != nil {
		busy += int64(c.mt.BusyUnits())
		capacity += int64(c.cfg.Multitask.CPUUnits)
	}
	return busy, capacity
}

// Live returns the number of non-terminal tasks across partitions.
func (c *Coordinator) Live() int {
	n := 0
	for _, s := range c.strategies {
		n += s.Live()
	}
	return n
}

// Run advances the simulation until the given horizon tick.
func (c *Coordinator) Run(horizon int64) {
	for c.clock.Now() < horizon {
		c.Tick()
	}
	logrus.Infof("[tick %07d] simulation ended", c.clock.Now())
}

// RunUntilIdle ticks until no live task remains or maxTicks elapse,
// returning the final virtual time.
func (c *Coordinator) RunUntilIdle(maxTicks int64) int64 {
	for i := int64(0); c.Live() > 0 && i < maxTicks; i++ {
		c.Tick()
	}
	return c.clock.Now()
}
