package engine

import "log"

// ComponentBuffer owns a contiguous, monotonically growing byte region
// for a single component type. Bytes in [0, committedBytes) hold
// committed components; bytes in [committedBytes, len(data)) are scratch
// a writer may fill before calling Commit.
//
// A ComponentBuffer is not safe for concurrent writers: the single-writer
// rule (one Process owns a given future type) means it never needs to be.
type ComponentBuffer struct {
	typeID         ComponentTypeID
	componentSize  int
	data           []byte
	committedCount int
	enabled        bool
	reallocMult    float64
	growWarnings   int
}

// Enable performs the buffer's one-shot setup. It panics if called twice.
func (b *ComponentBuffer) Enable(typeID ComponentTypeID, componentSize int, reallocMult float64) {
	if b.enabled {
		panic(newEngineError(ErrCodeNotEnabled, SeverityFatal,
			"component buffer for type %d already enabled", typeID).WithComponent(typeID))
	}
	b.typeID = typeID
	b.componentSize = componentSize
	b.reallocMult = reallocMult
	if b.reallocMult <= 1.0 {
		b.reallocMult = defaultReallocMult
	}
	b.enabled = true
}

// CommittedComponents returns the number of components currently
// committed to the buffer.
func (b *ComponentBuffer) CommittedComponents() int { return b.committedCount }

// CommittedBytes returns committedCount * componentSize.
func (b *ComponentBuffer) CommittedBytes() int { return b.committedCount * b.componentSize }

// AllocatedComponents returns the buffer's current capacity in components.
func (b *ComponentBuffer) AllocatedComponents() int {
	if b.componentSize == 0 {
		return 0
	}
	return len(b.data) / b.componentSize
}

// UncommittedSpace returns the mutable scratch region
// [committedBytes, allocatedBytes) without growing the buffer.
func (b *ComponentBuffer) UncommittedSpace() []byte {
	return b.data[b.CommittedBytes():]
}

// ForceUncommittedSpace returns a scratch region of at least minComponents
// components, growing the buffer first if the current scratch region is
// too small. Growing invalidates every byte slice previously returned by
// this method: callers must not retain them across a ForceUncommittedSpace
// call that triggers a grow.
func (b *ComponentBuffer) ForceUncommittedSpace(minComponents int) []byte {
	available := b.AllocatedComponents() - b.committedCount
	if available < minComponents {
		b.grow(minComponents)
	}
	return b.UncommittedSpace()
}

// grow reallocates data to hold at least minComponents more components
// than are committed, zeroing the new region, and logs a warning
// recommending preallocation.
func (b *ComponentBuffer) grow(minComponents int) {
	oldComponents := b.AllocatedComponents()
	target := oldComponents + minComponents
	scaled := int(float64(oldComponents) * b.reallocMult)
	newComponents := target
	if scaled > newComponents {
		newComponents = scaled
	}
	if newComponents < minComponents+b.committedCount {
		newComponents = minComponents + b.committedCount
	}
	newData := make([]byte, newComponents*b.componentSize)
	copy(newData, b.data[:b.CommittedBytes()])
	b.data = newData
	b.growWarnings++
	log.Printf("engine: component buffer for type %d grew from %d to %d components mid-frame; consider raising preallocation",
		b.typeID, oldComponents, newComponents)
}

// Commit advances the committed-component count by n. It panics if
// committed+n would exceed the allocated capacity: callers must reserve
// space via ForceUncommittedSpace first.
func (b *ComponentBuffer) Commit(n int) {
	if b.committedCount+n > b.AllocatedComponents() {
		panic(newEngineError(ErrCodeNotEnabled, SeverityFatal,
			"commit(%d) would exceed allocated capacity for type %d (committed=%d, allocated=%d)",
			n, b.typeID, b.committedCount, b.AllocatedComponents()).WithComponent(b.typeID))
	}
	b.committedCount += n
}

// AddComponent is a convenience for copying one prebuilt component: it is
// equivalent to ForceUncommittedSpace(1), a copy, then Commit(1).
func (b *ComponentBuffer) AddComponent(raw []byte) {
	dst := b.ForceUncommittedSpace(1)
	copy(dst[:b.componentSize], raw)
	b.Commit(1)
}

// AddComponents copies count pre-encoded components out of raw (which
// must hold exactly count*componentSize bytes) into freshly committed
// space. Used for multi-components and for prototype initialization.
func (b *ComponentBuffer) AddComponents(raw []byte, count int) {
	if count == 0 {
		return
	}
	dst := b.ForceUncommittedSpace(count)
	copy(dst[:count*b.componentSize], raw)
	b.Commit(count)
}

// CommittedSpace returns the committed prefix of the buffer, mutable.
func (b *ComponentBuffer) CommittedSpace() []byte {
	return b.data[:b.CommittedBytes()]
}

// CommittedSpaceImmutable returns the committed prefix of the buffer.
// Callers must treat the result as read-only; Go has no way to enforce
// this at the type level for a byte slice, so the distinction from
// CommittedSpace is purely a documentation contract matched by every
// caller in this module (past-state readers never write through it).
func (b *ComponentBuffer) CommittedSpaceImmutable() []byte {
	return b.CommittedSpace()
}

// Reset zeroes the buffer's bytes and resets the committed count to 0.
// Called on the future buffer at the start of every frame so stale data
// can never leak into a newly-written component.
func (b *ComponentBuffer) Reset() {
	for i := range b.data {
		b.data[i] = 0
	}
	b.committedCount = 0
}

// Preallocate grows the buffer, if needed, so it can hold at least
// targetComponents without a forced grow during the frame.
func (b *ComponentBuffer) Preallocate(targetComponents int) {
	if b.AllocatedComponents() >= targetComponents {
		return
	}
	newData := make([]byte, targetComponents*b.componentSize)
	copy(newData, b.data[:b.CommittedBytes()])
	b.data = newData
}

// GrowEventCount returns how many times this buffer has been forced to
// grow mid-frame since it was enabled; used by diagnostics.
func (b *ComponentBuffer) GrowEventCount() int { return b.growWarnings }
