package sim

import "fmt"

// ResourceBudget tracks a single capacity-limited resource. Allocated never
// exceeds capacity and never goes negative.
type ResourceBudget struct {
	capacity  int64
	allocated int64
}

// NewResourceBudget creates a budget with the given capacity.
func NewResourceBudget(capacity int64) *ResourceBudget {
	if capacity < 0 {
		capacity = 0
	}
	return &ResourceBudget{capacity: capacity}
}

// Capacity returns the total capacity.
func (b *ResourceBudget) Capacity() int64 { return b.capacity }

// Allocated returns the current allocation.
func (b *ResourceBudget) Allocated() int64 { return b.allocated }

// Free returns the unallocated remainder.
func (b *ResourceBudget) Free() int64 { return b.capacity - b.allocated }

// Allocate reserves n units, reporting whether the reservation fit.
func (b *ResourceBudget) Allocate(n int64) bool {
	if n < 0 {
		panic(fmt.Sprintf("ResourceBudget.Allocate: negative amount %d", n))
	}
	if b.allocated+n > b.capacity {
		return false
	}
	b.allocated += n
	return true
}

// Release returns n units to the budget.
func (b *ResourceBudget) Release(n int64) {
	if n < 0 {
		panic(fmt.Sprintf("ResourceBudget.Release: negative amount %d", n))
	}
	b.allocated -= n
	if b.allocated < 0 {
		panic("ResourceBudget.Release: allocation went negative")
	}
}
