// Defines the Task struct that models a unit of simulated work, and the
// task lifecycle state machine shared by all scheduling strategies.

package sim

import (
	"fmt"

	"github.com/rs/xid"
)

// TaskState represents the lifecycle state of a task.
type TaskState string

const (
	StatePending   TaskState = "pending"
	StateReady     TaskState = "ready"
	StateRunning   TaskState = "running"
	StatePreempted TaskState = "preempted"
	StateCompleted TaskState = "completed"
	StateMissed    TaskState = "missed"
	StateEvicted   TaskState = "evicted"
	StateRejected  TaskState = "rejected"
	StateCancelled TaskState = "cancelled"
)

// validTransitions is the task state graph. Running -> Ready is the
// cooperative backgrounding edge used by the multitask manager at tick
// boundaries (quantum rotation and memory-pressure yield); Preempted is
// reserved for real-time priority preemption.
var validTransitions = map[TaskState][]TaskState{
	StatePending:   {StateReady, StateRejected, StateCancelled},
	StateReady:     {StateRunning, StateMissed, StateEvicted, StateCancelled},
	StateRunning:   {StatePreempted, StateReady, StateCompleted},
	StatePreempted: {StateRunning, StateMissed},
}

// PlatformMode selects the active scheduling strategy, and on a submission
// under Hybrid mode, the requested partition (ModeHybrid = auto placement).
type PlatformMode string

const (
	ModeRT        PlatformMode = "rt"
	ModeMultitask PlatformMode = "multitask"
	ModeHybrid    PlatformMode = "hybrid"
)

// Task models a single unit of simulated work. A task is owned by the
// active scheduling strategy until it reaches a terminal state, after
// which it is an immutable record consumed through the event recorder.
type Task struct {
	ID           string       // unique identifier; auto-generated when empty
	Priority     int          // higher = more urgent (real-time semantics)
	Period       int64        // admission budget window hint in ticks (0 = scheduler default)
	Deadline     int64        // absolute virtual time; 0 = no deadline
	CPUCost      int64        // ticks of CPU work required
	MemFootprint int64        // memory units consumed while resident
	Mode         PlatformMode // requested placement under Hybrid

	State      TaskState
	SubmitTime int64  // virtual tick of submission
	EnqueueSeq uint64 // strategy-assigned, monotone; deterministic tie-break
	Remaining  int64  // CPU work left

	FirstDispatch int64 // tick of first dispatch (-1 until dispatched)
	FinishTime    int64 // tick of terminal transition
	LastActive    int64 // last tick the task held a CPU unit (recency signal)
}

// NewTask builds a task in the Pending state. An empty id is replaced with
// a generated one. CPUCost below 1 is clamped to 1 tick of work.
func NewTask(id string, priority int, cost, mem, deadline int64, mode PlatformMode) *Task {
	if id == "" {
		id = xid.New().String()
	}
	if cost < 1 {
		cost = 1
	}
	if mem < 0 {
		mem = 0
	}
	return &Task{
		ID:            id,
		Priority:      priority,
		Deadline:      deadline,
		CPUCost:       cost,
		MemFootprint:  mem,
		Mode:          mode,
		State:         StatePending,
		Remaining:     cost,
		FirstDispatch: -1,
	}
}

// Terminal reports whether the task has reached a terminal state.
func (t *Task) Terminal() bool {
	switch t.State {
	case StateCompleted, StateMissed, StateEvicted, StateRejected, StateCancelled:
		return true
	}
	return false
}

// CanTransition reports whether from -> to is an edge of the state graph.
func CanTransition(from, to TaskState) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// transition moves the task to the given state, panicking on an edge that
// is not part of the state graph. Strategies only ever follow graph edges,
// so a violation here is a programming error, not a runtime condition.
func (t *Task) transition(to TaskState, now int64) {
	if !CanTransition(t.State, to) {
		panic(fmt.Sprintf("invalid task transition %s -> %s (task %s)", t.State, to, t.ID))
	}
	t.State = to
	if t.Terminal() {
		t.FinishTime = now
	}
}

func (t Task) String() string {
	return fmt.Sprintf("Task: (ID: %s, Prio: %d, State: %s, Remaining: %d, Deadline: %d)",
		t.ID, t.Priority, t.State, t.Remaining, t.Deadline)
}
