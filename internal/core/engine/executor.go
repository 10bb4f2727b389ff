package engine

import (
	"fmt"
	"log"
	"time"
)

// ProcessDiagnostics is the per-process slice of the diagnostics surface:
// how many entities the process actually ran a signature against, how
// long it took, and how many distinct types it read from.
type ProcessDiagnostics struct {
	Name       string
	CallCount  int
	Duration   time.Duration
	TypesRead  int
	GrowEvents int
	PanicCount int
}

// RunProcess walks past's entity array, matching each alive entity
// against the process's signatures, invoking the most specific match,
// and committing exactly as many future components as the signature
// reports having written.
//
// Past and future indices diverge as soon as a dead entity is skipped:
// future holds only the alive entities, in past order, followed by this
// frame's newly-initialized entities. A running future index therefore
// advances once per alive past entity, and future-side bookkeeping
// (counts, offsets) is always written at that index, never at the past
// one.
//
// A panic inside Run is recovered per entity: the entity is treated as if
// no future component was written, the panic is logged and counted, and
// iteration continues with the next entity. This is required so that a
// single bad entity cannot prevent the worker from publishing Waiting
// (see threadpool.Worker).
func RunProcess(p *Process, past, future *gameState, registry *ComponentRegistry) ProcessDiagnostics {
	diag := ProcessDiagnostics{Name: p.Name}
	typesRead := map[ComponentTypeID]bool{}
	for _, s := range p.Signatures {
		for _, t := range s.PastTypes {
			typesRead[t] = true
		}
	}
	diag.TypesRead = len(typesRead)

	start := time.Now()
	if p.PreProcess != nil {
		p.PreProcess()
	}

	futureType := p.futureType()

	futureIdx := 0
	for i := 0; i < len(past.entities); i++ {
		if !past.isAliveAt(i) {
			continue
		}
		if futureIdx >= len(future.entities) {
			break
		}
		fi := futureIdx
		futureIdx++

		sig, ok := matchSignature(p, past, i)
		if !ok {
			continue
		}

		pc := &ProcessContext{
			entity:      past.entities[i],
			index:       i,
			past:        past,
			future:      future,
			registry:    registry,
			futureType:  sig.FutureType,
			futureMulti: sig.FutureMulti,
		}

		var offset int32
		if sig.FutureType != ComponentTypeNone {
			offset = int32(future.buffers[sig.FutureType].CommittedComponents())
		}

		written := runSignatureSafely(sig, pc, &diag)
		diag.CallCount++

		if sig.FutureType != ComponentTypeNone {
			future.buffers[sig.FutureType].Commit(written)
			future.counts[sig.FutureType][fi] = int32(written)
			if written > 0 {
				future.offsets[sig.FutureType][fi] = offset
			} else {
				future.offsets[sig.FutureType][fi] = offsetSentinel
			}
		}
	}

	if futureType != ComponentTypeNone {
		diag.GrowEvents = future.buffers[futureType].GrowEventCount()
	}

	if p.PostProcess != nil {
		p.PostProcess()
	}
	diag.Duration = time.Since(start)
	return diag
}

func runSignatureSafely(sig *Signature, pc *ProcessContext, diag *ProcessDiagnostics) (written int) {
	defer func() {
		if r := recover(); r != nil {
			diag.PanicCount++
			written = 0
			log.Printf("engine: process panicked while processing entity %d: %v", pc.entity, r)
		}
	}()
	return sig.Run(pc)
}

// warnUnwrittenTypes implements the per-frame debug warnings: every
// builtin component type must be written by some registered process, and
// any registered type read by a process but written by none will vanish
// from every entity after one frame, since future buffers start empty
// each frame.
func warnUnwrittenTypes(logger *log.Logger, registry *ComponentRegistry, processes []*Process) {
	written := map[ComponentTypeID]bool{}
	read := map[ComponentTypeID]bool{}
	for _, p := range processes {
		if t := p.futureType(); t != ComponentTypeNone {
			written[t] = true
		}
		for _, s := range p.Signatures {
			for _, t := range s.PastTypes {
				read[t] = true
			}
		}
	}
	for _, ti := range registry.TypeInfoAll() {
		if written[ti.ID] {
			continue
		}
		if ti.ID <= maxBuiltinComponentTypes {
			logger.Printf("engine: builtin component type %q (id %d) is written by no registered process; it will vanish after one frame",
				ti.Name, ti.ID)
			continue
		}
		if read[ti.ID] {
			logger.Printf("engine: component type %q (id %d) is read by a process but written by none; it will vanish after one frame",
				ti.Name, ti.ID)
		}
	}
}

func (e ProcessDiagnostics) String() string {
	return fmt.Sprintf("%s: calls=%d duration=%s typesRead=%d growEvents=%d panics=%d",
		e.Name, e.CallCount, e.Duration, e.TypesRead, e.GrowEvents, e.PanicCount)
}
