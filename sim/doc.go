// Package sim provides the platform behavior simulation engine for the
// IVI test bench: two contrasting scheduling models under one virtual
// clock, feeding a lossless event stream and a streaming KPI layer.
//
// # Reading Guide
//
// Start with these three files to understand the simulation kernel:
//   - task.go: the Task lifecycle state machine shared by all strategies
//   - clock.go + simulator.go: the virtual clock, the Coordinator, and the
//     fixed per-tick phase order
//   - event.go + recorder.go: the event stream and the append-only log
//
// # Architecture
//
// The Strategy interface (strategy.go) is the scheduling-strategy
// capability boundary. Two implementations exist:
//   - rt.go: QNX-like priority-preemptive scheduler with deadline
//     enforcement and per-period admission budgeting
//   - multitask.go: Android-like cooperative manager with launch latency,
//     fairness quantum, and memory-pressure eviction
//
// The Coordinator composes them: disjoint CPU partitions tick in
// parallel, the MemoryArbiter (memory.go) is the single shared-memory
// mutual-exclusion region, and the per-partition event buffers are
// flushed RT-first to give real-time events precedence at equal
// timestamps.
//
// Sub-packages:
//   - sim/policy: submission-level admission policies (rate limiting)
//   - sim/trace: decision-trace record types for offline analysis
//   - sim/workload: deterministic synthetic submission generators
//
// # Key Interfaces
//
// The extension points are small, name-constructed policies:
//   - EvictionPolicy: victim selection under memory pressure (lru, fifo)
//   - tie-break comparators for the real-time ready set (fifo, lifo)
//   - policy.AdmissionPolicy: platform-level rate limiting
//
// Determinism: a single SimulationKey seeds per-subsystem RNGs (rng.go);
// given identical submission sequences, runs are bit-for-bit reproducible.
package sim
