package engine

import "unsafe"

// Signature is one overload of a Process's process() method: the set of
// past component types it requires, whether it wants ad-hoc access to any
// past component via Context, and at most one future component type it
// may write.
type Signature struct {
	// PastTypes lists the component types this overload requires: an
	// entity matches only if it owns at least one component of each.
	PastTypes []ComponentTypeID
	// UsesContext requests a Context argument for ad-hoc past lookups.
	UsesContext bool
	// FutureType is the component type this overload may write, or
	// ComponentTypeNone if it writes nothing.
	FutureType ComponentTypeID
	// FutureMulti marks FutureType as a multi-component output.
	FutureMulti bool
	// Run is invoked once per matching entity. It returns the number of
	// future components actually written: 0 for an opt-out, n for a
	// multi-write, 1 for a normal reference write.
	Run func(pc *ProcessContext) int
}

// requiredSetSize is used to pick the most specific matching signature:
// ties are resolved by declaration order, so the search below keeps the
// first signature seen at the current-best size.
func (s Signature) requiredSetSize() int { return len(s.PastTypes) }

// Process is user-supplied logic with one or more typed process()
// signatures. Its future component type is the first one a signature
// declares (see futureType); the single-writer rule, that no two
// processes write the same future type, is enforced by
// Manager.RegisterProcess.
type Process struct {
	Name        string
	Signatures  []Signature
	PreProcess  func()
	PostProcess func()

	// PinnedThread fixes this process to a specific worker thread index
	// instead of letting the scheduler choose one, per the scheduler's
	// begin()/add_process()/increase_thread_usage()/end() protocol. Set
	// it with PinToThread. Nil means the process is ordinary scheduler
	// input.
	PinnedThread *int
}

// PinToThread fixes p to run on the given worker thread index every
// frame; the scheduler is told about its estimated duration via
// increase_thread_usage so it still load-balances the rest of the
// processes around it, but p itself is never reassigned.
func (p *Process) PinToThread(thread int) *Process {
	p.PinnedThread = &thread
	return p
}

// futureType returns the one future component type this Process writes,
// or ComponentTypeNone if none of its signatures write anything.
func (p *Process) futureType() ComponentTypeID {
	for _, s := range p.Signatures {
		if s.FutureType != ComponentTypeNone {
			return s.FutureType
		}
	}
	return ComponentTypeNone
}

// matchSignature computes, for entity index i in past, the most specific
// signature of p that matches: the product of per-required-type counts
// is non-zero iff the entity owns at least one of every required type.
// Ties (equal required-set size) are resolved by declaration order.
func matchSignature(p *Process, past *gameState, i int) (*Signature, bool) {
	bestSize := -1
	var best *Signature
	for idx := range p.Signatures {
		sig := &p.Signatures[idx]
		matched := true
		for _, t := range sig.PastTypes {
			if int(t) >= len(past.counts) || i >= len(past.counts[t]) || past.counts[t][i] == 0 {
				matched = false
				break
			}
		}
		if !matched {
			continue
		}
		if sig.requiredSetSize() > bestSize {
			bestSize = sig.requiredSetSize()
			best = sig
		}
	}
	return best, best != nil
}

// ProcessContext is handed to a signature's Run callback for one matching
// entity. It exposes typed past-component access (including ad-hoc access
// to any other entity's past components, by ID, via PastBytesOf/ReadPastOf), and a
// forced-space writer for the process's declared future component.
//
// The typed accessors recover the static type at the call site via a
// generic function over unsafe.Pointer; the byte offset arithmetic is
// the same one the byte-buffer contract already requires.
type ProcessContext struct {
	entity      EntityID
	index       int
	past        *gameState
	future      *gameState
	registry    *ComponentRegistry
	futureType  ComponentTypeID
	futureMulti bool
	futureSlot  []byte
}

// Entity returns the ID of the entity currently being processed.
func (pc *ProcessContext) Entity() EntityID { return pc.entity }

// PastCount returns how many components of type t the current entity owns.
func (pc *ProcessContext) PastCount(t ComponentTypeID) int {
	return int(pc.past.counts[t][pc.index])
}

// PastBytes returns the raw byte slice of the current entity's components
// of type t (length PastCount(t)*componentSize), or nil if it owns none.
func (pc *ProcessContext) PastBytes(t ComponentTypeID) []byte {
	count := pc.past.counts[t][pc.index]
	if count == 0 {
		return nil
	}
	off := pc.past.offsets[t][pc.index]
	ti := pc.registry.TypeInfoOf(t)
	size := int(ti.Size)
	start := int(off) * size
	end := start + int(count)*size
	return pc.past.buffers[t].CommittedSpaceImmutable()[start:end]
}

// PastBytesOf returns the raw past component bytes of type t belonging to
// entity id, found via binary search over the past entity array, as used
// by a Context-style ad-hoc lookup. It panics if id is not a past entity:
// requesting an unknown ID is a programming fault, not a recoverable
// error.
func (pc *ProcessContext) PastBytesOf(id EntityID, t ComponentTypeID) []byte {
	idx, ok := pc.past.IndexOf(id)
	if !ok {
		panic(newEngineError(ErrCodeUnknownEntity, SeverityFatal,
			"context lookup for unknown past entity %d", id).WithEntity(id))
	}
	count := pc.past.counts[t][idx]
	if count == 0 {
		return nil
	}
	off := pc.past.offsets[t][idx]
	ti := pc.registry.TypeInfoOf(t)
	size := int(ti.Size)
	start := int(off) * size
	end := start + int(count)*size
	return pc.past.buffers[t].CommittedSpaceImmutable()[start:end]
}

// FutureBytes returns a forced-space writer for the process's declared
// future component: ForceUncommittedSpace(n) scratch, cut to exactly n
// components, for a writer about to write n components (WriteFuture
// passes 1). The multi flag is not consulted.
func (pc *ProcessContext) FutureBytes(n int) []byte {
	ti := pc.registry.TypeInfoOf(pc.futureType)
	buf := pc.future.buffers[pc.futureType]
	return buf.ForceUncommittedSpace(n)[:n*int(ti.Size)]
}

// ReadPast reads the current entity's single (non-multi) component of
// type t, returning a snapshot copy and whether the entity owns one. T's
// layout must match the registered component's byte layout exactly. The
// returned value is detached from the past game state's backing buffer,
// so a process can never write back into past through it, matching the
// "past is read-only" contract every process is bound by.
func ReadPast[T any](pc *ProcessContext, t ComponentTypeID) (T, bool) {
	b := pc.PastBytes(t)
	if b == nil {
		var zero T
		return zero, false
	}
	return *(*T)(unsafe.Pointer(&b[0])), true
}

// ReadPastOf is ReadPast for an arbitrary entity looked up by ID via
// Context, as used by scenario "Direct past access".
func ReadPastOf[T any](pc *ProcessContext, id EntityID, t ComponentTypeID) (T, bool) {
	b := pc.PastBytesOf(id, t)
	if b == nil {
		var zero T
		return zero, false
	}
	return *(*T)(unsafe.Pointer(&b[0])), true
}

// WriteFuture writes value into the scratch space of the current entity's
// single (non-multi) future component and returns 1 so the caller's Run
// can forward it as the written-count; RunProcess commits that count.
func WriteFuture[T any](pc *ProcessContext, value T) int {
	dst := pc.FutureBytes(1)
	*(*T)(unsafe.Pointer(&dst[0])) = value
	return 1
}
