package engine

import "time"

// ComponentTypeDiagnostics is the per-component-type slice of the
// diagnostics surface: how many components of the type are alive and how
// many bytes the buffer currently occupies versus uses.
type ComponentTypeDiagnostics struct {
	TypeID         ComponentTypeID
	Name           string
	CommittedCount int
	BytesUsed      int
	BytesAllocated int
}

// ThreadDiagnostics is the per-thread slice: how long that worker spent
// executing processes during the previous frame.
type ThreadDiagnostics struct {
	ThreadIndex     int
	TimeInProcesses time.Duration
}

// SchedulerDiagnostics summarizes the scheduler's behavior on the
// previous frame.
type SchedulerDiagnostics struct {
	AlgorithmName      string
	Approximate        bool
	EstimatedFrameTime time.Duration
	EstimatorMeanError time.Duration
	EstimatorMaxError  time.Duration
}

// Diagnostics is the read-only snapshot Manager.Diagnostics returns after
// each frame.
type Diagnostics struct {
	PastEntityCount int
	Processes       []ProcessDiagnostics
	Threads         []ThreadDiagnostics
	ComponentTypes  []ComponentTypeDiagnostics
	Scheduler       SchedulerDiagnostics
}

// buildComponentTypeDiagnostics snapshots buffer occupancy for every
// registered type in past, the state the application actually reads.
func buildComponentTypeDiagnostics(past *gameState, registry *ComponentRegistry) []ComponentTypeDiagnostics {
	types := registry.TypeInfoAll()
	out := make([]ComponentTypeDiagnostics, 0, len(types))
	for _, t := range types {
		buf := past.buffers[t.ID]
		out = append(out, ComponentTypeDiagnostics{
			TypeID:         t.ID,
			Name:           t.Name,
			CommittedCount: buf.CommittedComponents(),
			BytesUsed:      buf.CommittedBytes(),
			BytesAllocated: buf.AllocatedComponents() * int(t.Size),
		})
	}
	return out
}
