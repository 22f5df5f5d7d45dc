package sim

// Shared helpers for strategy-level tests: drive one strategy through the
// per-tick phase order without a coordinator, and inspect the events it
// emitted within the tick.

// stepTick runs the resolve and dispatch phases of one tick, drains the
// strategy buffers in stream order, and advances the clock.
func stepTick(clock *VirtualClock, strategies ...Strategy) []Event {
	now := clock.Now()
	for _, s := range strategies {
		s.ResolveTick(now)
	}
	for _, s := range strategies {
		s.DispatchTick(now)
	}
	var out []Event
	for _, s := range strategies {
		out = append(out, s.Buffer().Drain()...)
	}
	clock.Advance()
	return out
}

// kindsOf projects the event kinds in emission order.
func kindsOf(events []Event) []EventKind {
	out := make([]EventKind, len(events))
	for i, ev := range events {
		out[i] = ev.Kind
	}
	return out
}

// findEvent returns the first event of the given kind for the given task.
func findEvent(events []Event, kind EventKind, taskID string) (Event, bool) {
	for _, ev := range events {
		if ev.Kind == kind && ev.TaskID == taskID {
			return ev, true
		}
	}
	return Event{}, false
}

// sameKinds compares two kind sequences.
func sameKinds(a, b []EventKind) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
