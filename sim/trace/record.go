// Package trace provides decision-trace recording for offline policy
// analysis. The package stores pure data types and has no dependency on
// the simulation engine.
package trace

// AdmissionRecord captures a single admission decision.
type AdmissionRecord struct {
	TaskID   string
	Clock    int64
	Admitted bool
	Reason   string
}

// EvictionRecord captures a single eviction decision: which resident was
// reclaimed, on behalf of which admission, and how much memory it freed.
type EvictionRecord struct {
	VictimID    string
	RequestorID string
	Clock       int64
	Freed       int64
	Reclaim     bool // victim was a cached (already terminal) resident
}
