package engine

import (
	"log"
	"sync"
	"time"

	"muscle-dreamer/internal/core/engine/scheduler"
	"muscle-dreamer/internal/core/engine/threadpool"
)

// Manager is the orchestrator: it owns both game states, the component
// registry, the scheduler, and the thread pool, and exposes the public
// surface an application drives once per frame. A constructor validates
// its dependencies up front, the RegisterX family rejects late or
// conflicting registrations, and a single per-frame entry point performs
// the whole between-frame management sequence before handing off to
// execution.
type Manager struct {
	registry *ComponentRegistry
	config   EngineConfig
	logger   *log.Logger

	past   *gameState
	future *gameState

	processes    []*Process
	futureOwners map[ComponentTypeID]string

	resources map[string]ResourceManager

	pendingMu sync.Mutex
	pending   []pendingEntity
	nextID    EntityID

	pool        *threadpool.ThreadPool
	algorithm   scheduler.Algorithm
	estimator   scheduler.Estimator
	idleCounter *scheduler.IdleCounters

	firstFrameDone bool
	threadsStarted bool

	lastDiagnostics        Diagnostics
	lastProcessDiagnostics []ProcessDiagnostics
	lastSchedule           scheduler.Schedule
}

// NewManager constructs a Manager from a locked registry. Construction
// from an unlocked registry is a programming fault and panics.
func NewManager(registry *ComponentRegistry, config EngineConfig) *Manager {
	if !registry.Locked() {
		panic(newEngineError(ErrCodeNotLocked, SeverityFatal,
			"NewManager requires a locked ComponentRegistry"))
	}
	threadCount := config.resolvedThreadCount()
	m := &Manager{
		registry:     registry,
		config:       config,
		logger:       log.Default(),
		past:         newGameState(registry, config.ReallocMult),
		future:       newGameState(registry, config.ReallocMult),
		futureOwners: make(map[ComponentTypeID]string),
		resources:    make(map[string]ResourceManager),
		nextID:       1,
		pool:         threadpool.New(threadCount),
		algorithm:    scheduler.NewLPTAlgorithm(),
		estimator:    scheduler.NewStepEstimator(config.EstimatorFalloff),
		idleCounter:  scheduler.NewIdleCounters(threadCount, config.IdleStopThreshold),
	}
	return m
}

// SetLogger overrides the default *log.Logger, the way BaseSystem allows
// substituting its error handler in tests.
func (m *Manager) SetLogger(l *log.Logger) { m.logger = l }

// SetAlgorithm overrides the default LPT scheduling algorithm, e.g. with
// scheduler.NewDumbAlgorithm() for testing.
func (m *Manager) SetAlgorithm(a scheduler.Algorithm) { m.algorithm = a }

// SetEstimator overrides the default Step estimator.
func (m *Manager) SetEstimator(e scheduler.Estimator) { m.estimator = e }

// StartThreads launches all worker threads. Must be called before the
// first ExecuteFrame.
func (m *Manager) StartThreads() {
	m.pool.StartThreads()
	m.threadsStarted = true
}

// RegisterProcess adds p to the set of processes the manager drives each
// frame. It panics (a configuration/programming fault) if p's declared
// future type is already claimed by another process, if the future type
// is not registered, or if registration happens after the first frame has
// executed.
func (m *Manager) RegisterProcess(p *Process) {
	if m.firstFrameDone {
		panic(newEngineError(ErrCodeRegisterAfterFirstFrame, SeverityFatal,
			"cannot register process %q after the first frame has executed", p.Name).
			WithProcess(p.Name))
	}
	if p.PinnedThread != nil {
		if *p.PinnedThread < 0 || *p.PinnedThread >= m.pool.ThreadCount() {
			panic(newEngineError(ErrCodeInvalidPinnedThread, SeverityFatal,
				"process %q pinned to out-of-range thread %d (thread count %d)",
				p.Name, *p.PinnedThread, m.pool.ThreadCount()).WithProcess(p.Name))
		}
	}
	future := p.futureType()
	if future != ComponentTypeNone {
		if m.registry.TypeInfoOf(future) == nil {
			panic(newEngineError(ErrCodeUnknownFutureType, SeverityFatal,
				"process %q declares unknown future component type %d", p.Name, future).
				WithComponent(future).WithProcess(p.Name))
		}
		if owner, taken := m.futureOwners[future]; taken {
			panic(newEngineError(ErrCodeDuplicateWriter, SeverityFatal,
				"process %q and %q both declare future component type %d", owner, p.Name, future).
				WithComponent(future).WithProcess(p.Name))
		}
		m.futureOwners[future] = p.Name
	}
	m.processes = append(m.processes, p)
}

// RegisterResourceManager adds rm under its ManagedResourceType(). It
// panics if another manager already claims the same resource type.
func (m *Manager) RegisterResourceManager(rm ResourceManager) {
	t := rm.ManagedResourceType()
	if _, taken := m.resources[t]; taken {
		panic(newEngineError(ErrCodeResourceManagerCollision, SeverityFatal,
			"resource manager for type %q already registered", t))
	}
	m.resources[t] = rm
}

// AllocMult scales every type's preallocation target by f. f must be > 0.
func (m *Manager) AllocMult(f float64) {
	if f <= 0 {
		panic(newEngineError(ErrCodeNotEnabled, SeverityFatal,
			"AllocMult requires f > 0, got %f", f))
	}
	m.config.AllocMult = f
}

// AddEntity enqueues prototype for initialization at the start of the next
// frame and returns the ID it will be assigned, or NullEntityID if the
// per-frame new-entity cap has already been reached this frame. Safe to
// call concurrently from any Process (spawners).
func (m *Manager) AddEntity(prototype Prototype) EntityID {
	m.pendingMu.Lock()
	defer m.pendingMu.Unlock()
	if len(m.pending) >= m.config.MaxNewEntitiesPerFrame {
		return NullEntityID
	}
	id := m.nextID
	m.nextID++
	m.pending = append(m.pending, pendingEntity{id: id, components: prototype.Components})
	return id
}

// Diagnostics returns a snapshot of the previous frame's statistics.
func (m *Manager) Diagnostics() Diagnostics { return m.lastDiagnostics }

// PastEntityCount returns the number of entities in the current past
// state, for callers (such as cmd/frame-demo) that want to read past
// components directly between frames.
func (m *Manager) PastEntityCount() int { return m.past.EntityCount() }

// PastEntityAt returns the EntityID at index i of the past entity array.
func (m *Manager) PastEntityAt(i int) EntityID { return m.past.entities[i] }

// PastComponent returns the raw past component bytes of type t for the
// entity at past index i, the same access a Process gets through
// ProcessContext, for read-only consumers outside the frame (e.g. a
// renderer).
func (m *Manager) PastComponent(i int, t ComponentTypeID) []byte {
	pc := &ProcessContext{index: i, past: m.past, registry: m.registry}
	return pc.PastBytes(t)
}

// ExecuteFrame runs the full between-frames management sequence followed
// by process execution.
func (m *Manager) ExecuteFrame() {
	if !m.threadsStarted {
		panic(newEngineError(ErrCodeNotEnabled, SeverityFatal,
			"ExecuteFrame called before StartThreads"))
	}

	// 1. Debug warnings.
	warnUnwrittenTypes(m.logger, m.registry, m.processes)

	// 2. Update resource managers.
	for _, rm := range m.resources {
		rm.Update()
	}

	// 3. Assert |past| >= |future| from the previous frame.
	if len(m.past.entities) < len(m.future.entities) {
		panic(newEngineError(ErrCodeNotEnabled, SeverityFatal,
			"invariant violated: |past|=%d < |future|=%d before swap",
			len(m.past.entities), len(m.future.entities)))
	}

	// 4. Swap past/future pointers.
	m.past, m.future = m.future, m.past

	// 5. Copy alive past -> future; reset future buffers.
	copyLiveEntitiesToFuture(m.past, m.future, m.registry)

	// 6. Reserve n entity slots in both past and future for pending adds.
	m.pendingMu.Lock()
	pending := m.pending
	m.pending = nil
	m.pendingMu.Unlock()

	n := len(pending)
	startFuture := addNewEntitiesNoInit(m.future, m.registry, n)
	startPast := addNewEntitiesNoInit(m.past, m.registry, n)

	// 7. Preallocate component buffers in future.
	preallocate(m.future, m.config.AllocMult, m.registry)

	// 8. (counts/offsets arrays already grown by addNewEntitiesNoInit.)

	// 9. Initialize pending entities into the reserved slots of both
	// states.
	initNewEntities(pending, m.past, m.future, m.registry, startPast, startFuture)

	// 10. Pending queue already cleared above.

	// 11. Run the scheduler.
	schedule := m.runScheduler()
	m.lastSchedule = schedule

	// 12. Publish Executing to workers, execute own share, wait.
	threadDurations := m.runProcesses(schedule)

	// 13. Update diagnostics.
	m.buildDiagnostics(schedule, threadDurations)

	m.firstFrameDone = true
}

func (m *Manager) runScheduler() scheduler.Schedule {
	m.algorithm.Begin(m.pool.ThreadCount())
	pinned := make(map[int]int) // process index -> its fixed thread
	for i, p := range m.processes {
		if p.PinnedThread != nil {
			pinned[i] = *p.PinnedThread
			m.algorithm.IncreaseThreadUsage(*p.PinnedThread, m.estimator.Estimate(i))
			continue
		}
		m.algorithm.AddProcess(i)
	}
	assignment, approximate := m.algorithm.End(m.estimator)
	for i, t := range pinned {
		assignment[i] = t
	}

	toStop := m.idleCounter.Update(assignment, m.pool.ThreadCount())
	for _, t := range toStop {
		m.pool.Stop(t)
	}
	for t, count := range m.countAssignments(assignment) {
		if count > 0 && m.pool.Worker(t) != nil && m.pool.Worker(t).State() == threadpool.Stopped {
			m.pool.Restart(t)
		}
	}

	return scheduler.Schedule{Assignment: assignment, Approximate: approximate, AlgorithmName: m.algorithm.Name()}
}

func (m *Manager) countAssignments(assignment map[int]int) map[int]int {
	out := make(map[int]int)
	for _, t := range assignment {
		out[t]++
	}
	return out
}

func (m *Manager) runProcesses(schedule scheduler.Schedule) map[int]time.Duration {
	byThread := make(map[int][]int)
	for idx, t := range schedule.Assignment {
		byThread[t] = append(byThread[t], idx)
	}

	diags := make([]ProcessDiagnostics, len(m.processes))
	var diagsMu sync.Mutex

	runIndices := func(indices []int) {
		for _, idx := range indices {
			d := RunProcess(m.processes[idx], m.past, m.future, m.registry)
			diagsMu.Lock()
			diags[idx] = d
			diagsMu.Unlock()
		}
	}

	frameFuncs := make(map[int]threadpool.FrameFunc)
	for t, indices := range byThread {
		if t == 0 {
			continue
		}
		idxCopy := indices
		frameFuncs[t] = func(threadIndex int) { runIndices(idxCopy) }
	}

	m.pool.ExecuteFrame(frameFuncs, func() {
		runIndices(byThread[0])
	})

	// Estimators are plain single-threaded state: measurements are folded
	// in here, after every worker has returned to Waiting, never from the
	// worker goroutines themselves.
	for idx := range schedule.Assignment {
		m.estimator.Record(idx, diags[idx].Duration)
	}

	durations := make(map[int]time.Duration)
	durations[0] = sumDurations(diags, byThread[0])
	for t := range frameFuncs {
		if w := m.pool.Worker(t); w != nil {
			durations[t] = w.LastDuration()
		}
	}

	m.lastProcessDiagnostics = diags
	return durations
}

func sumDurations(diags []ProcessDiagnostics, indices []int) time.Duration {
	var total time.Duration
	for _, idx := range indices {
		total += diags[idx].Duration
	}
	return total
}

func (m *Manager) buildDiagnostics(schedule scheduler.Schedule, threadDurations map[int]time.Duration) {
	threads := make([]ThreadDiagnostics, 0, len(threadDurations))
	for t, d := range threadDurations {
		threads = append(threads, ThreadDiagnostics{ThreadIndex: t, TimeInProcesses: d})
	}

	var estimatedFrame time.Duration
	for i := range m.processes {
		estimatedFrame += m.estimator.Estimate(i)
	}
	meanErr, maxErr := m.estimator.ErrorStats()

	m.lastDiagnostics = Diagnostics{
		PastEntityCount: m.past.EntityCount(),
		Processes:       append([]ProcessDiagnostics(nil), m.lastProcessDiagnostics...),
		Threads:         threads,
		ComponentTypes:  buildComponentTypeDiagnostics(m.past, m.registry),
		Scheduler: SchedulerDiagnostics{
			AlgorithmName:      schedule.AlgorithmName,
			Approximate:        schedule.Approximate,
			EstimatedFrameTime: estimatedFrame,
			EstimatorMeanError: meanErr,
			EstimatorMaxError:  maxErr,
		},
	}
}

// Destroy stops and joins all worker threads, optionally clearing every
// registered resource manager.
func (m *Manager) Destroy(clearResources bool) {
	m.pool.Destroy()
	if clearResources {
		for _, rm := range m.resources {
			rm.Clear()
		}
	}
}
