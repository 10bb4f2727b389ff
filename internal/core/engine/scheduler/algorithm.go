package scheduler

import (
	"sort"
	"time"
)

// DumbAlgorithm assigns processes to threads round-robin, ignoring
// durations entirely. It never claims an optimal schedule: End always
// reports approximate. It is used as a fallback and for comparison in
// tests.
type DumbAlgorithm struct {
	threadCount int
	pending     []int
	threadLoad  []time.Duration
	next        int
}

func NewDumbAlgorithm() *DumbAlgorithm { return &DumbAlgorithm{} }

func (d *DumbAlgorithm) Name() string { return "Dumb" }

func (d *DumbAlgorithm) Begin(threadCount int) {
	d.threadCount = threadCount
	d.pending = d.pending[:0]
	d.threadLoad = make([]time.Duration, threadCount)
	d.next = 0
}

func (d *DumbAlgorithm) AddProcess(index int) { d.pending = append(d.pending, index) }

func (d *DumbAlgorithm) IncreaseThreadUsage(thread int, dur time.Duration) {
	if thread >= 0 && thread < len(d.threadLoad) {
		d.threadLoad[thread] += dur
	}
}

func (d *DumbAlgorithm) End(estimator Estimator) (map[int]int, bool) {
	assignment := make(map[int]int, len(d.pending))
	for _, idx := range d.pending {
		thread := d.next % d.threadCount
		d.next++
		assignment[idx] = thread
		d.threadLoad[thread] += estimator.Estimate(idx)
	}
	return assignment, true
}

// LPTAlgorithm implements Longest-Processing-Time-first: processes are
// sorted by estimated duration descending, then each is greedily assigned
// to the currently least-loaded thread. This is within 4/3 of the optimal
// makespan for identical machines, and is the default algorithm.
type LPTAlgorithm struct {
	threadCount int
	pending     []int
	threadLoad  []time.Duration
}

func NewLPTAlgorithm() *LPTAlgorithm { return &LPTAlgorithm{} }

func (l *LPTAlgorithm) Name() string { return "LPT" }

func (l *LPTAlgorithm) Begin(threadCount int) {
	l.threadCount = threadCount
	l.pending = l.pending[:0]
	l.threadLoad = make([]time.Duration, threadCount)
}

func (l *LPTAlgorithm) AddProcess(index int) { l.pending = append(l.pending, index) }

func (l *LPTAlgorithm) IncreaseThreadUsage(thread int, dur time.Duration) {
	if thread >= 0 && thread < len(l.threadLoad) {
		l.threadLoad[thread] += dur
	}
}

func (l *LPTAlgorithm) End(estimator Estimator) (map[int]int, bool) {
	type job struct {
		index     int
		estimated time.Duration
	}
	jobs := make([]job, len(l.pending))
	for i, idx := range l.pending {
		jobs[i] = job{index: idx, estimated: estimator.Estimate(idx)}
	}
	sort.SliceStable(jobs, func(a, b int) bool { return jobs[a].estimated > jobs[b].estimated })

	assignment := make(map[int]int, len(jobs))
	for _, j := range jobs {
		least := 0
		for t := 1; t < l.threadCount; t++ {
			if l.threadLoad[t] < l.threadLoad[least] {
				least = t
			}
		}
		assignment[j.index] = least
		l.threadLoad[least] += j.estimated
	}
	// LPT is exact only for trivial inputs (one process, or as many
	// threads as processes); report approximate whenever more than one
	// process shares a thread so diagnostics reflect reality.
	approximate := false
	counts := make(map[int]int)
	for _, t := range assignment {
		counts[t]++
		if counts[t] > 1 {
			approximate = true
		}
	}
	return assignment, approximate
}

// IdleCounters tracks, per thread, how many consecutive frames it has
// been assigned no work, implementing the idle-thread policy: a thread
// idle for >= idleStopThreshold frames should be stopped by the thread
// pool; thread 0 (main) is exempt.
type IdleCounters struct {
	idleFrames []int
	threshold  int
}

// NewIdleCounters returns a tracker for threadCount threads.
func NewIdleCounters(threadCount, threshold int) *IdleCounters {
	return &IdleCounters{idleFrames: make([]int, threadCount), threshold: threshold}
}

// Update records this frame's assignment counts per thread (as produced
// by Schedule.Assignment) and returns the set of threads that should now
// be stopped.
func (c *IdleCounters) Update(assignment map[int]int, threadCount int) []int {
	hasWork := make([]bool, threadCount)
	for _, t := range assignment {
		hasWork[t] = true
	}
	var toStop []int
	for t := 1; t < threadCount; t++ { // thread 0 never stops
		if hasWork[t] {
			c.idleFrames[t] = 0
			continue
		}
		c.idleFrames[t]++
		if c.idleFrames[t] >= c.threshold {
			toStop = append(toStop, t)
		}
	}
	return toStop
}
