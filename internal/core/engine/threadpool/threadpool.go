// Package threadpool implements the one-main-plus-N-worker fork-join
// thread pool: each worker alternates between Waiting and Executing once
// per frame, driven by a 32-bit atomic state (atomic.Int32) whose stores
// and loads give release/acquire ordering.
package threadpool

import (
	"log"
	"runtime"
	"sync/atomic"
	"time"
)

// State is one node of the worker finite state machine:
// Stopped -> Waiting -> Executing -> Waiting, or
// Waiting -> Stopping -> Stopped.
type State int32

const (
	Stopped State = iota
	Waiting
	Executing
	Stopping
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "Stopped"
	case Waiting:
		return "Waiting"
	case Executing:
		return "Executing"
	case Stopping:
		return "Stopping"
	default:
		return "Unknown"
	}
}

// FrameFunc executes one thread's share of a frame's processes.
type FrameFunc func(threadIndex int)

// Worker is one non-main thread. Thread index 0 (main) is never
// represented by a Worker; the caller runs the main thread's own share
// inline in the same goroutine that calls ThreadPool.ExecuteFrame.
type Worker struct {
	index int
	// state holds a State; atomic.Int32's Store/Load give release/acquire
	// ordering without a separate fence primitive.
	state     atomic.Int32
	frameFunc atomic.Pointer[FrameFunc]
	lastDur   atomic.Int64 // time.Duration, nanoseconds
	panicked  atomic.Bool
}

func newWorker(index int) *Worker {
	w := &Worker{index: index}
	w.state.Store(int32(Stopped))
	return w
}

// State returns the worker's current state via a plain atomic load.
func (w *Worker) State() State { return State(w.state.Load()) }

// LastDuration returns how long the worker's most recent frame share took.
func (w *Worker) LastDuration() time.Duration { return time.Duration(w.lastDur.Load()) }

// Panicked reports whether the worker's most recent frame share panicked.
func (w *Worker) Panicked() bool { return w.panicked.Load() }

func (w *Worker) setState(s State) { w.state.Store(int32(s)) }

// run is the worker's goroutine body: Stopped --start--> Waiting, then a
// busy-yield loop until the main thread publishes Executing or Stopping.
func (w *Worker) run() {
	w.setState(Waiting)
	for {
		switch w.State() {
		case Executing:
			w.executeOnce()
		case Stopping:
			w.setState(Stopped)
			return
		default:
			runtime.Gosched()
		}
	}
}

func (w *Worker) executeOnce() {
	fn := w.frameFunc.Load()
	start := time.Now()
	// A panicking process must not prevent this worker from publishing
	// Waiting: the main thread's wait loop would otherwise deadlock.
	func() {
		defer func() {
			if r := recover(); r != nil {
				w.panicked.Store(true)
				log.Printf("engine: worker %d panicked mid-frame: %v", w.index, r)
			}
		}()
		if fn != nil {
			(*fn)(w.index)
		}
	}()
	w.lastDur.Store(int64(time.Since(start)))
	w.setState(Waiting)
}

// ThreadPool owns the worker goroutines for thread indices 1..N-1.
type ThreadPool struct {
	threadCount int
	workers     map[int]*Worker
}

// New returns a pool sized for threadCount threads total (including the
// main thread at index 0, which this type never launches a goroutine for).
func New(threadCount int) *ThreadPool {
	p := &ThreadPool{threadCount: threadCount, workers: make(map[int]*Worker)}
	for i := 1; i < threadCount; i++ {
		p.workers[i] = newWorker(i)
	}
	return p
}

// ThreadCount returns the total number of threads, including main.
func (p *ThreadPool) ThreadCount() int { return p.threadCount }

// StartThreads launches every worker goroutine. Must be called before the
// first ExecuteFrame.
func (p *ThreadPool) StartThreads() {
	for _, w := range p.workers {
		go w.run()
	}
	p.waitFor(Waiting)
}

// Stop transitions the worker at index from Waiting to Stopping. The
// transition is only legal from Waiting; calling Stop on a worker in any
// other state is a no-op.
func (p *ThreadPool) Stop(index int) {
	w, ok := p.workers[index]
	if !ok || w.State() != Waiting {
		return
	}
	w.setState(Stopping)
}

// Restart relaunches the worker goroutine for a previously stopped thread.
func (p *ThreadPool) Restart(index int) {
	w, ok := p.workers[index]
	if !ok || w.State() != Stopped {
		return
	}
	go w.run()
	for w.State() != Waiting {
		runtime.Gosched()
	}
}

// Worker exposes the underlying Worker for diagnostics (last duration,
// panic flag). Returns nil for index 0 or an unknown index.
func (p *ThreadPool) Worker(index int) *Worker { return p.workers[index] }

// ExecuteFrame publishes frameFuncs (keyed by thread index, 1..N-1) to
// every worker that has work this frame, runs mainFunc inline for the
// main thread's own share, then waits for every published worker to
// return to Waiting. Workers with no entry in frameFuncs are left
// untouched (they stay Waiting or Stopped, per the idle-thread policy
// applied by the caller before this call).
func (p *ThreadPool) ExecuteFrame(frameFuncs map[int]FrameFunc, mainFunc func()) {
	var dispatched []*Worker
	for idx, fn := range frameFuncs {
		if idx == 0 {
			continue
		}
		w, ok := p.workers[idx]
		if !ok || w.State() != Waiting {
			continue
		}
		f := fn
		w.frameFunc.Store(&f)
		w.panicked.Store(false)
		w.setState(Executing)
		dispatched = append(dispatched, w)
	}

	if mainFunc != nil {
		mainFunc()
	}

	for _, w := range dispatched {
		for w.State() == Executing {
			runtime.Gosched()
		}
	}
}

func (p *ThreadPool) waitFor(target State) {
	for _, w := range p.workers {
		for w.State() != target {
			runtime.Gosched()
		}
	}
}

// Destroy transitions every running worker to Stopping and waits for it
// to reach Stopped.
func (p *ThreadPool) Destroy() {
	for _, w := range p.workers {
		if w.State() == Waiting {
			w.setState(Stopping)
		}
	}
	for _, w := range p.workers {
		for w.State() != Stopped {
			runtime.Gosched()
		}
	}
}
