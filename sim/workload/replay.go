package workload

import (
	"errors"
	"sort"

	"github.com/sirupsen/logrus"

	sim "github.com/ivi-bench/platform-sim/sim"
)

// Replay feeds a submission sequence into the coordinator at the right
// ticks and runs the simulation to the horizon. Submission failures are
// local by design (rejections are ordinary outcomes of the run), so they
// are logged and counted, never fatal. Returns the number of accepted
// submissions.
func Replay(c *sim.Coordinator, subs []Submission, horizon int64) int {
	ordered := make([]Submission, len(subs))
	copy(ordered, subs)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].At < ordered[j].At })

	accepted := 0
	next := 0
	for c.Now() < horizon {
		now := c.Now()
		for next < len(ordered) && ordered[next].At <= now {
			if err := c.Submit(ordered[next].Task); err != nil {
				if !errors.Is(err, sim.ErrAdmissionRejected) && !errors.Is(err, sim.ErrResourceExhausted) {
					logrus.Warnf("[tick %07d] submission %s failed: %v", now, ordered[next].Task.ID, err)
				}
			} else {
				accepted++
			}
			next++
		}
		c.Tick()
	}
	return accepted
}
