// Eviction policies decide which memory residents to reclaim under
// pressure. The policy sees only resident metadata maintained by the
// arbiter, never live task structs, so victim selection is race-free while
// partition phases execute in parallel.

package sim

import (
	"fmt"
	"sort"
)

// Resident is the arbiter's view of one task holding memory.
type Resident struct {
	TaskID      string
	Stream      int   // owning partition (StreamRT / StreamMultitask)
	Footprint   int64 // memory units held
	LastActive  int64 // last tick the task held a CPU unit
	Seq         uint64
	Evictable   bool // backgrounded (Ready) and eligible for eviction
	Reclaimable bool // terminal but still resident (cached-app model)
}

// EvictionPolicy orders eviction candidates. SelectVictims returns the
// residents to evict so that at least need units are freed, or nil when
// the candidates cannot cover the need. Candidates already exclude
// running and non-evictable tasks.
type EvictionPolicy interface {
	SelectVictims(candidates []Resident, need int64) []Resident
}

// LRUEviction evicts reclaimable (terminal but resident) candidates first,
// then the least-recently-active of the backgrounded ones. Ties break on
// admission order for deterministic replay.
type LRUEviction struct{}

func (LRUEviction) SelectVictims(candidates []Resident, need int64) []Resident {
	ordered := append([]Resident(nil), candidates...)
	sort.Slice(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.Reclaimable != b.Reclaimable {
			return a.Reclaimable
		}
		if a.LastActive != b.LastActive {
			return a.LastActive < b.LastActive
		}
		return a.Seq < b.Seq
	})
	return takeVictims(ordered, need)
}

// FIFOEviction evicts in admission order, reclaimable candidates first.
type FIFOEviction struct{}

func (FIFOEviction) SelectVictims(candidates []Resident, need int64) []Resident {
	ordered := append([]Resident(nil), candidates...)
	sort.Slice(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.Reclaimable != b.Reclaimable {
			return a.Reclaimable
		}
		return a.Seq < b.Seq
	})
	return takeVictims(ordered, need)
}

func takeVictims(ordered []Resident, need int64) []Resident {
	var victims []Resident
	var freed int64
	for _, r := range ordered {
		if freed >= need {
			break
		}
		victims = append(victims, r)
		freed += r.Footprint
	}
	if freed < need {
		return nil
	}
	return victims
}

// validEvictionPolicies maps accepted eviction policy names.
var validEvictionPolicies = map[string]bool{
	"":     true, // empty defaults to lru
	"lru":  true,
	"fifo": true,
}

// IsValidEvictionPolicy returns true for a recognized policy name.
func IsValidEvictionPolicy(name string) bool {
	return validEvictionPolicies[name]
}

// NewEvictionPolicy creates an eviction policy by name.
// Empty string defaults to LRU. Panics on unrecognized names.
func NewEvictionPolicy(name string) EvictionPolicy {
	switch name {
	case "", "lru":
		return LRUEviction{}
	case "fifo":
		return FIFOEviction{}
	default:
		panic(fmt.Sprintf("unknown eviction policy %q; valid policies: [lru, fifo]", name))
	}
}
