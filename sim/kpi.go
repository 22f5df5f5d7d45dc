// Streaming KPI aggregation over the scheduling event stream. Updates are
// O(1) amortized per event so arbitrarily long simulated runs stay cheap:
// no event is ever re-scanned, and latency percentiles come from a
// fixed-bucket histogram per window.

package sim

import (
	"fmt"
	"time"
)

// KPIConfig configures windowed aggregation.
type KPIConfig struct {
	WindowTicks        int64 // window width (>= 1)
	LatencyBucketTicks int64 // histogram bucket width (>= 1)
	LatencyBuckets     int   // bucket count; the last bucket is open-ended
}

// KPIWindow is the aggregated statistics of one closed window
// [Start, End). Contiguous windows tile the covered range with no gaps,
// so summed per-window throughput equals total completions (round-trip
// law).
type KPIWindow struct {
	Start int64
	End   int64

	Dispatches    int
	Completions   int
	Misses        int
	Preemptions   int
	Evictions     int
	Rejections    int
	Cancellations int
	Launches      int

	AvgResponse    float64 // mean first-dispatch response time (ticks)
	Throughput     float64 // completions per tick
	MissRate       float64 // misses / (completions + misses)
	CPUUtilization float64 // busy cpu-ticks / capacity cpu-ticks
	MemUtilization float64 // mean allocated / capacity

	P50 float64 // completion latency percentiles (ticks)
	P95 float64
	P99 float64
}

// windowAccum is the in-progress window's raw counters.
type windowAccum struct {
	win KPIWindow

	responseSum   int64
	responseCount int

	busyTicks int64
	capTicks  int64
	memAlloc  int64
	memCap    int64
	tickCount int64

	hist      []int
	histCount int
}

// Aggregator reduces the event stream into per-window KPI snapshots.
// Not thread-safe: the coordinator feeds it from the tick loop, after the
// parallel phases have joined.
type Aggregator struct {
	cfg    KPIConfig
	cur    *windowAccum
	closed []KPIWindow

	TotalCompletions int64
	TotalMisses      int64
	TotalDispatches  int64
	TotalEvictions   int64
	TotalRejections  int64
}

// NewAggregator creates an aggregator with the given window configuration.
func NewAggregator(cfg KPIConfig) *Aggregator {
	if cfg.WindowTicks < 1 {
		cfg.WindowTicks = 1
	}
	if cfg.LatencyBucketTicks < 1 {
		cfg.LatencyBucketTicks = 1
	}
	if cfg.LatencyBuckets < 1 {
		cfg.LatencyBuckets = 64
	}
	a := &Aggregator{cfg: cfg}
	a.cur = a.newAccum(0)
	return a
}

func (a *Aggregator) newAccum(start int64) *windowAccum {
	return &windowAccum{
		win:  KPIWindow{Start: start, End: start + a.cfg.WindowTicks},
		hist: make([]int, a.cfg.LatencyBuckets),
	}
}

// roll closes every window that ends at or before t. Empty windows are
// emitted too, keeping the closed sequence contiguous.
func (a *Aggregator) roll(t int64) {
	for t >= a.cur.win.End {
		a.closed = append(a.closed, a.finalize(a.cur))
		a.cur = a.newAccum(a.cur.win.End)
	}
}

// ObserveEvent folds one event into the current window.
func (a *Aggregator) ObserveEvent(ev Event) {
	a.roll(ev.Time)
	w := a.cur
	switch ev.Kind {
	case KindDispatch:
		w.win.Dispatches++
		a.TotalDispatches++
		if ev.Payload.First {
			w.responseSum += ev.Payload.Response
			w.responseCount++
		}
	case KindComplete:
		w.win.Completions++
		a.TotalCompletions++
		a.observeLatency(w, ev.Payload.Latency)
	case KindDeadlineMiss:
		w.win.Misses++
		a.TotalMisses++
	case KindPreempt:
		w.win.Preemptions++
	case KindEvict:
		w.win.Evictions++
		a.TotalEvictions++
	case KindReject:
		w.win.Rejections++
		a.TotalRejections++
	case KindCancel:
		w.win.Cancellations++
	case KindLaunch:
		w.win.Launches++
	}
}

// ObserveTick folds one tick of resource occupancy into the current
// window: busy and total CPU units, and allocated and total memory.
func (a *Aggregator) ObserveTick(now, busyCPU, cpuCap, memAlloc, memCap int64) {
	a.roll(now)
	w := a.cur
	w.busyTicks += busyCPU
	w.capTicks += cpuCap
	w.memAlloc += memAlloc
	w.memCap += memCap
	w.tickCount++
}

func (a *Aggregator) observeLatency(w *windowAccum, latency int64) {
	bucket := int(latency / a.cfg.LatencyBucketTicks)
	if bucket >= len(w.hist) {
		bucket = len(w.hist) - 1
	}
	if bucket < 0 {
		bucket = 0
	}
	w.hist[bucket]++
	w.histCount++
}

// finalize computes the derived statistics of a window.
func (a *Aggregator) finalize(w *windowAccum) KPIWindow {
	out := w.win
	if w.responseCount > 0 {
		out.AvgResponse = float64(w.responseSum) / float64(w.responseCount)
	}
	out.Throughput = float64(out.Completions) / float64(a.cfg.WindowTicks)
	if out.Completions+out.Misses > 0 {
		out.MissRate = float64(out.Misses) / float64(out.Completions+out.Misses)
	}
	if w.capTicks > 0 {
		out.CPUUtilization = float64(w.busyTicks) / float64(w.capTicks)
	}
	if w.memCap > 0 {
		out.MemUtilization = float64(w.memAlloc) / float64(w.memCap)
	}
	out.P50 = a.percentile(w, 50)
	out.P95 = a.percentile(w, 95)
	out.P99 = a.percentile(w, 99)
	return out
}

// percentile reads the p-th latency percentile off the window histogram,
// reported as the upper edge of the containing bucket.
func (a *Aggregator) percentile(w *windowAccum, p float64) float64 {
	if w.histCount == 0 {
		return 0
	}
	rank := p / 100 * float64(w.histCount)
	cum := 0
	for i, n := range w.hist {
		cum += n
		if float64(cum) >= rank {
			return float64(int64(i+1) * a.cfg.LatencyBucketTicks)
		}
	}
	return float64(int64(len(w.hist)) * a.cfg.LatencyBucketTicks)
}

// Windows returns the closed windows so far.
func (a *Aggregator) Windows() []KPIWindow {
	out := make([]KPIWindow, len(a.closed))
	copy(out, a.closed)
	return out
}

// Flush closes the current partial window and returns all windows.
// Used at the end of a run so the final partial interval is reported.
func (a *Aggregator) Flush() []KPIWindow {
	if a.cur.tickCount > 0 || a.cur.win.Dispatches+a.cur.win.Completions+a.cur.win.Misses+
		a.cur.win.Evictions+a.cur.win.Rejections+a.cur.win.Launches > 0 {
		a.closed = append(a.closed, a.finalize(a.cur))
		a.cur = a.newAccum(a.cur.win.End)
	}
	return a.Windows()
}

// Print displays aggregated totals and the last closed window at the end
// of a run.
func (a *Aggregator) Print(horizon int64, wallStart time.Time) {
	fmt.Println("=== Simulation KPIs ===")
	fmt.Printf("Virtual horizon      : %d ticks\n", horizon)
	fmt.Printf("Wall clock           : %v\n", time.Since(wallStart))
	fmt.Printf("Dispatches           : %d\n", a.TotalDispatches)
	fmt.Printf("Completions          : %d\n", a.TotalCompletions)
	fmt.Printf("Deadline misses      : %d\n", a.TotalMisses)
	fmt.Printf("Evictions            : %d\n", a.TotalEvictions)
	fmt.Printf("Rejections           : %d\n", a.TotalRejections)
	if n := len(a.closed); n > 0 {
		last := a.closed[n-1]
		fmt.Printf("Last window [%d,%d)   : throughput=%.3f/tick cpu=%.1f%% mem=%.1f%% p95=%.0f ticks\n",
			last.Start, last.End, last.Throughput,
			last.CPUUtilization*100, last.MemUtilization*100, last.P95)
	}
}
