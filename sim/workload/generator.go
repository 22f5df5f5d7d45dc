// Package workload generates deterministic synthetic submission sequences
// for the platform simulator. All randomness flows through the caller's
// RNG, so a fixed seed reproduces the exact workload.
package workload

import (
	"fmt"
	"math"
	"math/rand"

	sim "github.com/ivi-bench/platform-sim/sim"
)

// LengthSampler generates positive integer samples (CPU cost ticks or
// memory units).
type LengthSampler interface {
	Sample(rng *rand.Rand) int64
}

// GaussianSampler produces clamped Gaussian samples.
type GaussianSampler struct {
	Mean, StdDev float64
	Min, Max     int64
}

func (s *GaussianSampler) Sample(rng *rand.Rand) int64 {
	if s.Min == s.Max {
		return s.Min
	}
	val := rng.NormFloat64()*s.StdDev + s.Mean
	clamped := math.Min(float64(s.Max), math.Max(float64(s.Min), val))
	result := int64(math.Round(clamped))
	if result < 1 {
		return 1
	}
	return result
}

// UniformSampler produces uniform samples in [Min, Max].
type UniformSampler struct {
	Min, Max int64
}

func (s *UniformSampler) Sample(rng *rand.Rand) int64 {
	if s.Max <= s.Min {
		return s.Min
	}
	return s.Min + rng.Int63n(s.Max-s.Min+1)
}

// ArrivalSampler generates inter-arrival times in ticks.
type ArrivalSampler interface {
	// SampleIAT returns the next inter-arrival time. Always >= 1.
	SampleIAT(rng *rand.Rand) int64
}

// FixedRateSampler emits arrivals at a constant interval.
type FixedRateSampler struct {
	IntervalTicks int64
}

func (s *FixedRateSampler) SampleIAT(_ *rand.Rand) int64 {
	if s.IntervalTicks < 1 {
		return 1
	}
	return s.IntervalTicks
}

// PoissonSampler generates exponentially-distributed inter-arrival times.
type PoissonSampler struct {
	RatePerTick float64
}

func (s *PoissonSampler) SampleIAT(rng *rand.Rand) int64 {
	iat := int64(rng.ExpFloat64() / s.RatePerTick)
	if iat < 1 {
		return 1
	}
	return iat
}

// Spec describes one synthetic workload.
type Spec struct {
	Count    int
	IDPrefix string

	Arrival string  // "fixed" (default) or "poisson"
	Rate    float64 // tasks per tick

	PriorityMin, PriorityMax int

	CostMean, CostStdDev float64
	CostMin, CostMax     int64

	MemMean, MemStdDev float64
	MemMin, MemMax     int64

	// Deadline slack after arrival, uniform in [SlackMin, SlackMax].
	// SlackMax == 0 leaves tasks without deadlines.
	SlackMin, SlackMax int64

	Mode sim.PlatformMode
}

// Submission is one generated task and the tick it arrives at.
type Submission struct {
	At   int64
	Task *sim.Task
}

// Generate produces the submission sequence for the given Spec. Arrival ticks
// are non-decreasing; ids are "<prefix>_<index>".
func Generate(rng *rand.Rand, spec Spec) []Submission {
	if spec.IDPrefix == "" {
		spec.IDPrefix = "task"
	}
	if spec.Rate <= 0 {
		spec.Rate = 1
	}

	var arrival ArrivalSampler
	switch spec.Arrival {
	case "", "fixed":
		arrival = &FixedRateSampler{IntervalTicks: int64(math.Round(1 / spec.Rate))}
	case "poisson":
		arrival = &PoissonSampler{RatePerTick: spec.Rate}
	default:
		panic(fmt.Sprintf("unknown arrival process %q; valid: [fixed, poisson]", spec.Arrival))
	}

	cost := &GaussianSampler{Mean: spec.CostMean, StdDev: spec.CostStdDev, Min: spec.CostMin, Max: spec.CostMax}
	mem := &GaussianSampler{Mean: spec.MemMean, StdDev: spec.MemStdDev, Min: spec.MemMin, Max: spec.MemMax}
	slack := &UniformSampler{Min: spec.SlackMin, Max: spec.SlackMax}
	prio := &UniformSampler{Min: int64(spec.PriorityMin), Max: int64(spec.PriorityMax)}

	subs := make([]Submission, 0, spec.Count)
	at := int64(0)
	for i := 0; i < spec.Count; i++ {
		if i > 0 {
			at += arrival.SampleIAT(rng)
		}
		var deadline int64
		if spec.SlackMax > 0 {
			deadline = at + slack.Sample(rng)
		}
		t := sim.NewTask(
			fmt.Sprintf("%s_%d", spec.IDPrefix, i),
			int(prio.Sample(rng)),
			cost.Sample(rng),
			mem.Sample(rng),
			deadline,
			spec.Mode,
		)
		t.SubmitTime = at
		subs = append(subs, Submission{At: at, Task: t})
	}
	return subs
}
