package engine

import (
	"testing"
	"time"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"muscle-dreamer/internal/core/engine/scheduler"
)

// Position and Timeout back the scenario tests below: a plain
// copy-through component and a countdown component driving entity death.
type Position struct{ X, Y, Z float32 }
type Timeout struct{ RemoveIn, KillIn int32 }

const (
	componentPosition ComponentTypeID = 40
	componentTimeout  ComponentTypeID = 41
)

func encodeComponent[T any](v T) []byte {
	size := int(unsafe.Sizeof(v))
	return append([]byte(nil), unsafe.Slice((*byte)(unsafe.Pointer(&v)), size)...)
}

// registerAliveProcess registers a process that unconditionally keeps
// every entity alive, for tests whose Life semantics aren't themselves
// under test: the builtin Life component "vanishes after one frame" (per
// the manager's unwritten-builtin warning) unless some process writes it.
func registerAliveProcess(m *Manager) {
	m.RegisterProcess(&Process{
		Name: "StayAlive",
		Signatures: []Signature{{
			FutureType: ComponentTypeLife,
			Run:        func(pc *ProcessContext) int { return WriteFuture(pc, true) },
		}},
	})
}

func newTestManager(t *testing.T, registerExtra func(r *ComponentRegistry)) *Manager {
	t.Helper()
	r := NewComponentRegistry()
	if registerExtra != nil {
		registerExtra(r)
	}
	require.True(t, r.Lock())
	cfg := DefaultEngineConfig()
	cfg.ThreadCount = 2
	m := NewManager(r, cfg)
	m.SetAlgorithm(scheduler.NewDumbAlgorithm())
	m.StartThreads()
	t.Cleanup(func() { m.Destroy(false) })
	return m
}

// TestManager_SimpleCopy implements scenario 1: registering a Position
// type and a process that copies past Position to future Position.
func TestManager_SimpleCopy(t *testing.T) {
	m := newTestManager(t, func(r *ComponentRegistry) {
		r.Register(RoleUser, TypeInfo{ID: componentPosition, Name: "Position", Size: unsafe.Sizeof(Position{}), MaxPerEntity: 1, MinPrealloc: 16})
	})

	m.RegisterProcess(&Process{
		Name: "CopyPosition",
		Signatures: []Signature{{
			PastTypes:  []ComponentTypeID{componentPosition},
			FutureType: componentPosition,
			Run: func(pc *ProcessContext) int {
				p, _ := ReadPast[Position](pc, componentPosition)
				return WriteFuture(pc, p)
			},
		}},
	})
	registerAliveProcess(m)

	id := m.AddEntity(Prototype{Components: []ComponentValue{
		{TypeID: componentPosition, Data: encodeComponent(Position{1, 2, 3}), Count: 1},
	}})
	require.NotEqual(t, NullEntityID, id)

	t.Run("TC001: entity exists after one frame", func(t *testing.T) {
		m.ExecuteFrame()
		idx, ok := m.past.IndexOf(id)
		assert.True(t, ok)
		assert.GreaterOrEqual(t, idx, 0)
	})

	t.Run("TC002: position round-trips after a second frame", func(t *testing.T) {
		m.ExecuteFrame()
		idx, ok := m.past.IndexOf(id)
		require.True(t, ok)
		raw := m.PastComponent(idx, componentPosition)
		require.Len(t, raw, int(unsafe.Sizeof(Position{})))
		got := *(*Position)(unsafe.Pointer(&raw[0]))
		assert.Equal(t, Position{1, 2, 3}, got)
	})
}

// TestManager_TimeoutAndDeath implements scenario 2: a countdown component
// whose exhaustion both removes itself and kills the entity, one frame
// later, through a process that writes Life from the countdown's value.
func TestManager_TimeoutAndDeath(t *testing.T) {
	m := newTestManager(t, func(r *ComponentRegistry) {
		r.Register(RoleUser, TypeInfo{ID: componentTimeout, Name: "Timeout", Size: unsafe.Sizeof(Timeout{}), MaxPerEntity: 1, MinPrealloc: 16})
	})

	m.RegisterProcess(&Process{
		Name: "Countdown",
		Signatures: []Signature{{
			PastTypes:  []ComponentTypeID{componentTimeout},
			FutureType: componentTimeout,
			Run: func(pc *ProcessContext) int {
				to, _ := ReadPast[Timeout](pc, componentTimeout)
				if to.RemoveIn == 0 {
					return 0 // opt out: the component disappears this frame
				}
				return WriteFuture(pc, Timeout{RemoveIn: to.RemoveIn - 1, KillIn: to.KillIn - 1})
			},
		}},
	})
	m.RegisterProcess(&Process{
		Name: "Kill",
		Signatures: []Signature{{
			PastTypes:  []ComponentTypeID{componentTimeout},
			FutureType: ComponentTypeLife,
			Run: func(pc *ProcessContext) int {
				to, _ := ReadPast[Timeout](pc, componentTimeout)
				return WriteFuture(pc, to.KillIn != 0)
			},
		}},
	})

	id := m.AddEntity(Prototype{Components: []ComponentValue{
		{TypeID: componentTimeout, Data: encodeComponent(Timeout{RemoveIn: 3, KillIn: 3}), Count: 1},
	}})
	require.NotEqual(t, NullEntityID, id)
	m.ExecuteFrame() // entity becomes visible

	timeoutGoneAt := -1
	removedAt := -1
	for frame := 1; frame <= 10 && removedAt == -1; frame++ {
		m.ExecuteFrame()
		idx, ok := m.past.IndexOf(id)
		if !ok {
			removedAt = frame
			continue
		}
		if timeoutGoneAt == -1 && m.past.counts[componentTimeout][idx] == 0 {
			timeoutGoneAt = frame
		}
	}

	t.Run("TC001: Timeout eventually disappears", func(t *testing.T) {
		assert.NotEqual(t, -1, timeoutGoneAt, "Timeout component never reached zero count")
	})
	t.Run("TC002: entity is eventually removed", func(t *testing.T) {
		assert.NotEqual(t, -1, removedAt, "entity was never removed from the array")
	})
	t.Run("TC003: removal happens no earlier than Timeout's disappearance", func(t *testing.T) {
		assert.GreaterOrEqual(t, removedAt, timeoutGoneAt)
	})
}

// TestManager_Spawner implements scenario 3: a cap on new entities per
// frame, with the (M+1)th add_entity call returning NullEntityID.
func TestManager_Spawner(t *testing.T) {
	m := newTestManager(t, nil)
	m.config.MaxNewEntitiesPerFrame = 3

	var ids []EntityID
	for i := 0; i < 4; i++ {
		ids = append(ids, m.AddEntity(Prototype{}))
	}

	t.Run("TC001: the cap rejects the (M+1)th add", func(t *testing.T) {
		assert.NotEqual(t, NullEntityID, ids[0])
		assert.NotEqual(t, NullEntityID, ids[1])
		assert.NotEqual(t, NullEntityID, ids[2])
		assert.Equal(t, NullEntityID, ids[3])
	})

	m.ExecuteFrame()

	t.Run("TC002: the first M spawned entities exist in the next frame", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			_, ok := m.past.IndexOf(ids[i])
			assert.True(t, ok)
		}
	})

	t.Run("TC003: spawned entities default to alive", func(t *testing.T) {
		idx, ok := m.past.IndexOf(ids[0])
		require.True(t, ok)
		assert.True(t, m.past.isAliveAt(idx))
	})
}

// TestManager_RegisterProcess_Validation exercises the configuration-fault
// panics registration enforces.
func TestManager_RegisterProcess_Validation(t *testing.T) {
	t.Run("TC001: duplicate future writer panics", func(t *testing.T) {
		m := newTestManager(t, func(r *ComponentRegistry) {
			r.Register(RoleUser, TypeInfo{ID: componentPosition, Name: "Position", Size: 4, MaxPerEntity: 1})
		})
		mk := func(name string) *Process {
			return &Process{Name: name, Signatures: []Signature{{FutureType: componentPosition, Run: func(pc *ProcessContext) int { return 0 }}}}
		}
		m.RegisterProcess(mk("A"))
		assert.Panics(t, func() { m.RegisterProcess(mk("B")) })
	})

	t.Run("TC002: unknown future type panics", func(t *testing.T) {
		m := newTestManager(t, nil)
		p := &Process{Name: "Bad", Signatures: []Signature{{FutureType: componentPosition, Run: func(pc *ProcessContext) int { return 0 }}}}
		assert.Panics(t, func() { m.RegisterProcess(p) })
	})

	t.Run("TC003: registering after the first frame panics", func(t *testing.T) {
		m := newTestManager(t, nil)
		m.ExecuteFrame()
		p := &Process{Name: "Late", Signatures: []Signature{{}}}
		assert.Panics(t, func() { m.RegisterProcess(p) })
	})

	t.Run("TC004: pinning to an out-of-range thread panics", func(t *testing.T) {
		m := newTestManager(t, nil) // newTestManager uses ThreadCount: 2
		p := (&Process{Name: "BadPin", Signatures: []Signature{{}}}).PinToThread(5)
		assert.Panics(t, func() { m.RegisterProcess(p) })
	})
}

// TestManager_PinnedThread exercises the scheduler's pinned-process
// protocol end to end: a process fixed to thread 1 always lands there,
// and its estimated duration still biases the algorithm's placement of
// unpinned work away from that thread.
func TestManager_PinnedThread(t *testing.T) {
	m := newTestManager(t, nil)
	m.SetAlgorithm(scheduler.NewLPTAlgorithm())

	pinned := (&Process{
		Name: "Pinned",
		Signatures: []Signature{{
			Run: func(pc *ProcessContext) int { return 0 },
		}},
	}).PinToThread(1)
	m.RegisterProcess(pinned)
	m.ExecuteFrame()

	schedule := m.lastSchedule
	idx := -1
	for i, p := range m.processes {
		if p == pinned {
			idx = i
		}
	}
	require.NotEqual(t, -1, idx)
	pinnedRanOnThread := schedule.Assignment[idx]

	t.Run("TC001: the pinned process is always assigned its fixed thread", func(t *testing.T) {
		assert.Equal(t, 1, pinnedRanOnThread)
	})
}

// TestManager_ScheduleAdapts implements scenario 4: under LPT with a Step
// estimator, a process that turns slow mid-run ends up isolated on its
// own thread once the estimator has seen the spike, and the schedule
// reports approximate.
func TestManager_ScheduleAdapts(t *testing.T) {
	m := newTestManager(t, nil)
	m.SetAlgorithm(scheduler.NewLPTAlgorithm())
	m.SetEstimator(scheduler.NewStepEstimator(0.2))

	slow := false
	mkProcess := func(name string, sleeper bool) *Process {
		return &Process{
			Name: name,
			Signatures: []Signature{{
				Run: func(pc *ProcessContext) int { return 0 },
			}},
			PreProcess: func() {
				if sleeper && slow {
					time.Sleep(3 * time.Millisecond)
				}
			},
		}
	}
	m.RegisterProcess(mkProcess("Slow", true))
	m.RegisterProcess(mkProcess("A", false))
	m.RegisterProcess(mkProcess("B", false))

	m.AddEntity(Prototype{})
	for frame := 1; frame <= 10; frame++ {
		if frame == 5 {
			slow = true
		}
		m.ExecuteFrame()
	}

	sched := m.lastSchedule
	t.Run("TC001: the slow process runs alone on its thread", func(t *testing.T) {
		slowThread := sched.Assignment[0]
		assert.NotEqual(t, slowThread, sched.Assignment[1])
		assert.NotEqual(t, slowThread, sched.Assignment[2])
	})
	t.Run("TC002: the schedule reports approximate", func(t *testing.T) {
		assert.True(t, sched.Approximate)
	})
	t.Run("TC003: the Step estimator snapped up to the spike", func(t *testing.T) {
		assert.GreaterOrEqual(t, m.estimator.Estimate(0), 3*time.Millisecond)
	})
}

// TestManager_Diagnostics checks the per-frame diagnostics snapshot shape.
func TestManager_Diagnostics(t *testing.T) {
	m := newTestManager(t, func(r *ComponentRegistry) {
		r.Register(RoleUser, TypeInfo{ID: componentPosition, Name: "Position", Size: unsafe.Sizeof(Position{}), MaxPerEntity: 1})
	})
	m.RegisterProcess(&Process{
		Name: "CopyPosition",
		Signatures: []Signature{{
			PastTypes:  []ComponentTypeID{componentPosition},
			FutureType: componentPosition,
			Run: func(pc *ProcessContext) int {
				p, ok := ReadPast[Position](pc, componentPosition)
				if !ok {
					return 0
				}
				return WriteFuture(pc, p)
			},
		}},
	})
	m.ExecuteFrame()

	d := m.Diagnostics()
	assert.Len(t, d.Processes, 1)
	assert.Equal(t, "CopyPosition", d.Processes[0].Name)
	assert.NotEmpty(t, d.Scheduler.AlgorithmName)
	assert.NotEmpty(t, d.ComponentTypes)
}
