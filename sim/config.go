package sim

import (
	"fmt"

	"github.com/ivi-bench/platform-sim/sim/trace"
)

// Config is the construction-time configuration surface of the simulation
// engine: platform mode, CPU/memory budgets, launch-latency distribution,
// fairness quantum, KPI windowing, and policy selections. All knobs are
// inputs to NewCoordinator; nothing is read from files here.
type Config struct {
	Mode PlatformMode

	RT        RTConfig
	Multitask MultitaskConfig

	MemoryCapacity int64 // shared memory budget (units)

	// AutoRTPriority routes a Hybrid submission without an explicit
	// partition: priority >= threshold goes to the real-time partition.
	AutoRTPriority int

	// AdmissionPolicy optionally rate-limits submissions before they
	// reach a strategy: "always-admit" (default) or "token-bucket".
	AdmissionPolicy   string
	AdmissionCapacity float64 // token-bucket capacity (CPU cost units)
	AdmissionRefill   float64 // token-bucket refill per tick

	KPI KPIConfig

	Seed       int64
	TraceLevel string // "none" (default) or "decisions"
}

// DefaultConfig returns the baseline configuration: hybrid mode with an
// even CPU split, one unit per partition.
func DefaultConfig() Config {
	return Config{
		Mode: ModeHybrid,
		RT: RTConfig{
			CPUUnits:    1,
			PeriodTicks: 100,
			TieBreak:    "fifo",
		},
		Multitask: MultitaskConfig{
			CPUUnits:      1,
			Quantum:       4,
			LaunchLatency: 3,
			LaunchJitter:  1,
			Eviction:      "lru",
		},
		MemoryCapacity:  1024,
		AutoRTPriority:  10,
		AdmissionPolicy: "always-admit",
		KPI: KPIConfig{
			WindowTicks:        50,
			LatencyBucketTicks: 5,
			LatencyBuckets:     64,
		},
		Seed: 42,
	}
}

// Validate clamps zero-valued knobs to their defaults and rejects
// configurations that cannot run.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeRT, ModeMultitask, ModeHybrid:
	case "":
		c.Mode = ModeHybrid
	default:
		return fmt.Errorf("unknown platform mode %q", c.Mode)
	}

	if c.RT.CPUUnits < 1 {
		c.RT.CPUUnits = 1
	}
	if c.RT.PeriodTicks < 1 {
		c.RT.PeriodTicks = 100
	}
	if !IsValidTieBreak(c.RT.TieBreak) {
		return fmt.Errorf("unknown tie-break policy %q", c.RT.TieBreak)
	}
	if c.RT.UrgentSlackTicks < 0 {
		c.RT.UrgentSlackTicks = 0
	}

	if c.Multitask.CPUUnits < 1 {
		c.Multitask.CPUUnits = 1
	}
	if c.Multitask.Quantum < 1 {
		c.Multitask.Quantum = 1
	}
	if c.Multitask.LaunchLatency < 0 {
		c.Multitask.LaunchLatency = 0
	}
	if c.Multitask.LaunchJitter < 0 {
		c.Multitask.LaunchJitter = 0
	}
	if !IsValidEvictionPolicy(c.Multitask.Eviction) {
		return fmt.Errorf("unknown eviction policy %q", c.Multitask.Eviction)
	}

	if c.MemoryCapacity < 0 {
		return fmt.Errorf("memory capacity must be >= 0, got %d", c.MemoryCapacity)
	}
	if c.KPI.WindowTicks < 1 {
		c.KPI.WindowTicks = 50
	}
	if !trace.IsValidTraceLevel(c.TraceLevel) {
		return fmt.Errorf("unknown trace level %q", c.TraceLevel)
	}
	return nil
}
