// Package policy provides submission-level admission policies applied by
// the coordinator before a task reaches its scheduling strategy.
package policy

import "fmt"

// AdmissionPolicy decides whether a submission with the given CPU cost may
// enter the platform at the given virtual tick.
type AdmissionPolicy interface {
	Admit(cost int64, clock int64) (admitted bool, reason string)
}

// AlwaysAdmit admits all submissions unconditionally.
type AlwaysAdmit struct{}

func (a *AlwaysAdmit) Admit(_ int64, _ int64) (bool, string) {
	return true, ""
}

// TokenBucket implements rate-limiting admission control over CPU cost.
type TokenBucket struct {
	capacity      float64
	refillPerTick float64
	currentTokens float64
	lastRefill    int64
}

// NewTokenBucket creates a TokenBucket with the given capacity and
// per-tick refill rate.
func NewTokenBucket(capacity, refillPerTick float64) *TokenBucket {
	return &TokenBucket{
		capacity:      capacity,
		refillPerTick: refillPerTick,
		currentTokens: capacity,
	}
}

// Admit checks whether the submission fits the current token balance.
func (tb *TokenBucket) Admit(cost int64, clock int64) (bool, string) {
	elapsed := clock - tb.lastRefill
	if elapsed > 0 {
		refill := float64(elapsed) * tb.refillPerTick
		tb.currentTokens = min(tb.capacity, tb.currentTokens+refill)
		tb.lastRefill = clock
	}
	if tb.currentTokens >= float64(cost) {
		tb.currentTokens -= float64(cost)
		return true, ""
	}
	return false, "insufficient tokens"
}

// NewAdmissionPolicy creates an admission policy by name.
// Valid names: "always-admit" (empty defaults to it), "token-bucket".
func NewAdmissionPolicy(name string, capacity, refillPerTick float64) AdmissionPolicy {
	switch name {
	case "", "always-admit":
		return &AlwaysAdmit{}
	case "token-bucket":
		return NewTokenBucket(capacity, refillPerTick)
	default:
		panic(fmt.Sprintf("unknown admission policy %q; valid policies: [always-admit, token-bucket]", name))
	}
}
