package sim

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/ivi-bench/platform-sim/sim/trace"
)

// quietHybridConfig is a hybrid baseline without launch jitter, so tests
// can reason about exact ticks.
func quietHybridConfig() Config {
	cfg := DefaultConfig()
	cfg.Multitask.LaunchLatency = 0
	cfg.Multitask.LaunchJitter = 0
	return cfg
}

func TestCoordinator_HybridRouting(t *testing.T) {
	// GIVEN a hybrid platform with the auto threshold at priority 10
	c, err := NewCoordinator(quietHybridConfig())
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}

	cases := []struct {
		name string
		task *Task
		want string
	}{
		{"explicit rt", NewTask("a", 1, 1, 0, 0, ModeRT), "rt"},
		{"explicit multitask", NewTask("b", 99, 1, 0, 0, ModeMultitask), "multitask"},
		{"auto high priority", NewTask("c", 10, 1, 0, 0, ModeHybrid), "rt"},
		{"auto low priority", NewTask("d", 9, 1, 0, 0, ""), "multitask"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			// WHEN the submission is routed THEN the partition matches
			if got := c.route(tc.task).Name(); got != tc.want {
				t.Errorf("route(%s): got %s, want %s", tc.task.ID, got, tc.want)
			}
		})
	}
}

func TestCoordinator_SingleModeIgnoresTaskMode(t *testing.T) {
	// GIVEN an rt-only platform
	cfg := quietHybridConfig()
	cfg.Mode = ModeRT
	c, err := NewCoordinator(cfg)
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}

	// WHEN a task asks for the multitask partition
	task := NewTask("t", 1, 1, 0, 0, ModeMultitask)

	// THEN the single active strategy owns it anyway
	if got := c.route(task).Name(); got != "rt" {
		t.Errorf("route: got %s, want rt", got)
	}
}

func TestCoordinator_MergedStreamOrdersRTFirst(t *testing.T) {
	// GIVEN one submission per partition at t=0
	c, err := NewCoordinator(quietHybridConfig())
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}
	if err := c.Submit(NewTask("rt_task", 20, 1, 0, 0, ModeRT)); err != nil {
		t.Fatalf("Submit(rt_task): %v", err)
	}
	if err := c.Submit(NewTask("mt_task", 1, 1, 0, 0, ModeMultitask)); err != nil {
		t.Fatalf("Submit(mt_task): %v", err)
	}

	// WHEN the tick's events are flushed
	c.Tick()
	events := c.Recorder().All().Collect()

	// THEN at the shared timestamp every real-time event precedes every
	// multitask event, and sequence numbers are strictly increasing
	if len(events) == 0 {
		t.Fatal("no events recorded")
	}
	seenMT := false
	for i, ev := range events {
		if ev.Time != 0 {
			t.Errorf("event %d: time %d, want 0", i, ev.Time)
		}
		if ev.Seq != uint64(i+1) {
			t.Errorf("event %d: seq %d, want %d", i, ev.Seq, i+1)
		}
		if ev.Stream == StreamMultitask {
			seenMT = true
		}
		if seenMT && ev.Stream == StreamRT {
			t.Errorf("event %d: real-time event after multitask events at equal timestamp", i)
		}
	}
}

func TestCoordinator_IdenticalRunsProduceIdenticalStreams(t *testing.T) {
	// GIVEN a scripted run with launch jitter and memory pressure
	script := func() []Event {
		cfg := DefaultConfig()
		cfg.Seed = 99
		cfg.MemoryCapacity = 40
		cfg.Multitask.LaunchLatency = 3
		cfg.Multitask.LaunchJitter = 2
		cfg.Multitask.Quantum = 2
		c, err := NewCoordinator(cfg)
		if err != nil {
			t.Fatalf("NewCoordinator: %v", err)
		}
		for tick := int64(0); tick < 40; tick++ {
			if tick%4 == 0 {
				_ = c.Submit(NewTask(fmt.Sprintf("mt_%d", tick), 2, 3, 9, 0, ModeMultitask))
			}
			if tick%5 == 0 {
				_ = c.Submit(NewTask(fmt.Sprintf("rt_%d", tick), 15, 2, 4, tick+10, ModeRT))
			}
			c.Tick()
		}
		return c.Recorder().All().Collect()
	}

	// WHEN the same script runs twice
	first := script()
	second := script()

	// THEN the event streams are bit-for-bit identical
	if len(first) == 0 {
		t.Fatal("script produced no events")
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("event streams differ: %d vs %d events", len(first), len(second))
	}
}

func TestCoordinator_MemoryNeverExceedsCapacity(t *testing.T) {
	// GIVEN sustained submissions against a tight memory budget
	cfg := quietHybridConfig()
	cfg.MemoryCapacity = 30
	c, err := NewCoordinator(cfg)
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}

	// WHEN the run makes constant eviction pressure
	for tick := int64(0); tick < 50; tick++ {
		if tick%2 == 0 {
			_ = c.Submit(NewTask(fmt.Sprintf("mt_%d", tick), 2, 3, 7, 0, ModeMultitask))
		}
		if tick%3 == 0 {
			_ = c.Submit(NewTask(fmt.Sprintf("rt_%d", tick), 15, 2, 5, 0, ModeRT))
		}
		c.Tick()

		// THEN allocation stays within capacity at every tick
		if got := c.mem.Allocated(); got > c.mem.Capacity() || got < 0 {
			t.Fatalf("tick %d: allocated %d outside [0, %d]", tick, got, c.mem.Capacity())
		}
	}
}

func TestCoordinator_TokenBucketRateLimitsSubmissions(t *testing.T) {
	// GIVEN a 5-token bucket with no refill
	cfg := quietHybridConfig()
	cfg.Mode = ModeRT
	cfg.AdmissionPolicy = "token-bucket"
	cfg.AdmissionCapacity = 5
	cfg.AdmissionRefill = 0
	cfg.TraceLevel = string(trace.TraceLevelDecisions)
	c, err := NewCoordinator(cfg)
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}

	// WHEN two 3-cost tasks arrive in one tick
	if err := c.Submit(NewTask("first", 5, 3, 0, 0, ModeRT)); err != nil {
		t.Fatalf("Submit(first): %v", err)
	}
	err = c.Submit(NewTask("second", 5, 3, 0, 0, ModeRT))

	// THEN the second is rate limited with a recorded Reject event
	if !errors.Is(err, ErrAdmissionRejected) {
		t.Fatalf("Submit(second): got %v, want ErrAdmissionRejected", err)
	}
	c.Tick()
	rejects := c.Recorder().Query(Filter{To: -1, Kinds: []EventKind{KindReject}}).Collect()
	if len(rejects) != 1 || rejects[0].TaskID != "second" {
		t.Fatalf("reject events: got %v, want one for second", rejects)
	}

	// AND the decision trace holds both admission decisions
	admissions := c.Trace().Admissions
	if len(admissions) != 2 || !admissions[0].Admitted || admissions[1].Admitted {
		t.Errorf("trace admissions: got %+v, want admitted then refused", admissions)
	}
}

func TestCoordinator_EvictionDecisionsAreTraced(t *testing.T) {
	// GIVEN decision tracing over a memory-pressure scenario
	cfg := quietHybridConfig()
	cfg.Mode = ModeMultitask
	cfg.MemoryCapacity = 10
	cfg.TraceLevel = string(trace.TraceLevelDecisions)
	c, err := NewCoordinator(cfg)
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}

	// WHEN a launch forces an eviction
	if err := c.Submit(NewTask("old", 1, 10, 6, 0, ModeMultitask)); err != nil {
		t.Fatalf("Submit(old): %v", err)
	}
	c.Tick()
	if err := c.Submit(NewTask("incoming", 1, 2, 6, 0, ModeMultitask)); err != nil {
		t.Fatalf("Submit(incoming): %v", err)
	}
	c.Tick()

	// THEN the eviction decision names victim and requestor
	evictions := c.Trace().Evictions
	if len(evictions) != 1 {
		t.Fatalf("trace evictions: got %d, want 1", len(evictions))
	}
	if evictions[0].VictimID != "old" || evictions[0].RequestorID != "incoming" || evictions[0].Freed != 6 {
		t.Errorf("eviction record: got %+v", evictions[0])
	}
}

func TestCoordinator_DeadlineMissReachesKPIWindows(t *testing.T) {
	// GIVEN an rt platform where a CPU hog starves a deadline-bound task
	cfg := quietHybridConfig()
	cfg.Mode = ModeRT
	cfg.KPI.WindowTicks = 5
	c, err := NewCoordinator(cfg)
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}
	if err := c.Submit(NewTask("hog", 10, 10, 0, 0, ModeRT)); err != nil {
		t.Fatalf("Submit(hog): %v", err)
	}
	if err := c.Submit(NewTask("victim", 1, 1, 0, 3, ModeRT)); err != nil {
		t.Fatalf("Submit(victim): %v", err)
	}

	// WHEN the run advances past the deadline
	c.Run(10)

	// THEN the miss event is recorded at t=3
	misses := c.Recorder().Query(Filter{To: -1, Kinds: []EventKind{KindDeadlineMiss}}).Collect()
	if len(misses) != 1 || misses[0].TaskID != "victim" || misses[0].Time != 3 {
		t.Fatalf("miss events: got %v, want one for victim at t=3", misses)
	}

	// AND the KPI windows carry exactly that one miss
	total := 0
	for _, w := range c.KPI().Flush() {
		total += w.Misses
	}
	if total != 1 || c.KPI().TotalMisses != 1 {
		t.Errorf("window misses: got %d (total %d), want 1", total, c.KPI().TotalMisses)
	}
}

func TestCoordinator_TaskStateLookup(t *testing.T) {
	// GIVEN a hybrid platform with one task per partition
	c, err := NewCoordinator(quietHybridConfig())
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}
	if err := c.Submit(NewTask("rt_task", 20, 3, 0, 0, ModeRT)); err != nil {
		t.Fatalf("Submit(rt_task): %v", err)
	}
	if err := c.Submit(NewTask("mt_task", 1, 1, 4, 0, ModeMultitask)); err != nil {
		t.Fatalf("Submit(mt_task): %v", err)
	}

	// WHEN states are queried mid-run
	c.Tick()
	if st, err := c.TaskState("rt_task"); err != nil || st != StateRunning {
		t.Errorf("TaskState(rt_task): got %s, %v; want running", st, err)
	}
	// The completed multitask task stays visible as a cached resident.
	if st, err := c.TaskState("mt_task"); err != nil || st != StateCompleted {
		t.Errorf("TaskState(mt_task): got %s, %v; want completed", st, err)
	}

	// THEN unknown ids resolve to the typed sentinel
	if _, err := c.TaskState("ghost"); !errors.Is(err, ErrUnknownTask) {
		t.Errorf("TaskState(ghost): got %v, want ErrUnknownTask", err)
	}

	// AND a completed rt task leaves scheduling entirely
	c.Run(5)
	if _, err := c.TaskState("rt_task"); !errors.Is(err, ErrUnknownTask) {
		t.Errorf("TaskState(rt_task) after completion: got %v, want ErrUnknownTask", err)
	}
}

func TestCoordinator_RunUntilIdleDrainsAllWork(t *testing.T) {
	// GIVEN two real-time tasks
	cfg := quietHybridConfig()
	cfg.Mode = ModeRT
	c, err := NewCoordinator(cfg)
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}
	if err := c.Submit(NewTask("a", 5, 2, 0, 0, ModeRT)); err != nil {
		t.Fatalf("Submit(a): %v", err)
	}
	if err := c.Submit(NewTask("b", 7, 2, 0, 0, ModeRT)); err != nil {
		t.Fatalf("Submit(b): %v", err)
	}

	// WHEN the platform runs until idle
	end := c.RunUntilIdle(100)

	// THEN all work completed well before the guard
	if c.Live() != 0 {
		t.Errorf("Live: got %d, want 0", c.Live())
	}
	if end > 10 {
		t.Errorf("idle at tick %d, want <= 10", end)
	}
	if c.KPI().TotalCompletions != 2 {
		t.Errorf("TotalCompletions: got %d, want 2", c.KPI().TotalCompletions)
	}
}

func TestCoordinator_CancelRoutesAcrossPartitions(t *testing.T) {
	// GIVEN a hybrid platform with one launching multitask task
	cfg := DefaultConfig()
	cfg.Multitask.LaunchLatency = 5
	cfg.Multitask.LaunchJitter = 0
	c, err := NewCoordinator(cfg)
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}
	if err := c.Submit(NewTask("slow", 1, 1, 2, 0, ModeMultitask)); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	// WHEN cancelled before the cold start resolves
	if !c.Cancel("slow") {
		t.Fatalf("Cancel(slow): got false, want true")
	}

	// THEN unknown ids simply report false
	if c.Cancel("missing") {
		t.Errorf("Cancel(missing): got true, want false")
	}
}

func TestNewCoordinator_RejectsInvalidConfig(t *testing.T) {
	cases := []func(*Config){
		func(c *Config) { c.RT.TieBreak = "random" },
		func(c *Config) { c.Multitask.Eviction = "mru" },
		func(c *Config) { c.Mode = "bare-metal" },
		func(c *Config) { c.TraceLevel = "everything" },
		func(c *Config) { c.MemoryCapacity = -1 },
	}
	for i, mutate := range cases {
		cfg := DefaultConfig()
		mutate(&cfg)
		if _, err := NewCoordinator(cfg); err == nil {
			t.Errorf("case %d: NewCoordinator accepted an invalid config", i)
		}
	}
}
