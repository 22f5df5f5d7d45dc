package sim

// VirtualClock is the authoritative virtual time source. Time advances in
// discrete ticks and only through Advance; no component may move time
// independently, which guarantees bit-for-bit reproducibility given
// identical submission sequences.
type VirtualClock struct {
	now int64
}

// NewVirtualClock creates a clock at tick zero.
func NewVirtualClock() *VirtualClock {
	return &VirtualClock{}
}

// Now returns the current virtual tick.
func (c *VirtualClock) Now() int64 {
	return c.now
}

// Advance moves the clock forward by exactly one tick and returns the new time.
func (c *VirtualClock) Advance() int64 {
	c.now++
	return c.now
}
