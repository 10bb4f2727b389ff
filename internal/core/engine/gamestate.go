package engine

import "sort"

// pendingEntity is a queued add_entity call: a prototype waiting to be
// spliced into both game states at the start of the next frame.
type pendingEntity struct {
	id         EntityID
	components []ComponentValue
}

// ComponentValue is one raw, pre-encoded component belonging to a
// Prototype. Data must be exactly Count*componentSize bytes for the
// named type.
type ComponentValue struct {
	TypeID ComponentTypeID
	Data   []byte
	Count  int
}

// Prototype is the set of raw components a newly spawned entity starts
// with. The mandatory Life component is appended by the engine and must
// not be included by the caller.
type Prototype struct {
	Components []ComponentValue
}

// gameState is one of the two symmetric containers (past, future)
// described in the data model: an entity array sorted by ID, and for
// every registered type a ComponentBuffer plus parallel counts/offsets
// arrays.
type gameState struct {
	entities           []EntityID
	buffers            [maxComponentTypes]*ComponentBuffer
	counts             [maxComponentTypes][]int32
	offsets            [maxComponentTypes][]int32
	entityCountNoAdded int
}

func newGameState(registry *ComponentRegistry, reallocMult float64) *gameState {
	gs := &gameState{}
	for _, t := range registry.TypeInfoAll() {
		buf := &ComponentBuffer{}
		buf.Enable(t.ID, int(t.Size), reallocMult)
		gs.buffers[t.ID] = buf
	}
	return gs
}

// EntityCount returns the number of entities currently in this state.
func (g *gameState) EntityCount() int { return len(g.entities) }

// IndexOf finds id in the sorted entity array via binary search.
func (g *gameState) IndexOf(id EntityID) (int, bool) {
	n := len(g.entities)
	i := sort.Search(n, func(i int) bool { return g.entities[i] >= id })
	if i < n && g.entities[i] == id {
		return i, true
	}
	return -1, false
}

func (g *gameState) isAliveAt(index int) bool {
	buf := g.buffers[ComponentTypeLife]
	off := g.offsets[ComponentTypeLife][index]
	cnt := g.counts[ComponentTypeLife][index]
	if cnt == 0 || off == offsetSentinel {
		return false
	}
	b := buf.CommittedSpace()
	return b[off] != 0
}

func growSlots(s []int32, n int) []int32 {
	out := make([]int32, len(s)+n)
	copy(out, s)
	for i := len(s); i < len(out); i++ {
		out[i] = offsetSentinel
	}
	return out
}

// copyLiveEntitiesToFuture implements "copy_live_entities_to_future":
// reads past.Life per entity and writes surviving entity IDs, in order,
// into future.entities; resets every future component buffer.
func copyLiveEntitiesToFuture(past, future *gameState, registry *ComponentRegistry) {
	future.entities = future.entities[:0]
	types := registry.TypeInfoAll()
	for _, t := range types {
		future.counts[t.ID] = future.counts[t.ID][:0]
		future.offsets[t.ID] = future.offsets[t.ID][:0]
		future.buffers[t.ID].Reset()
	}
	for i, id := range past.entities {
		if !past.isAliveAt(i) {
			continue
		}
		future.entities = append(future.entities, id)
		for _, t := range types {
			future.counts[t.ID] = append(future.counts[t.ID], 0)
			future.offsets[t.ID] = append(future.offsets[t.ID], offsetSentinel)
		}
	}
	future.entityCountNoAdded = len(future.entities)
}

// addNewEntitiesNoInit extends the entity array by n uninitialized slots
// and grows every per-type counts/offsets array to match. It records the
// entity count before the extension so callers can recover the index of
// every newly reserved slot.
func addNewEntitiesNoInit(gs *gameState, registry *ComponentRegistry, n int) (startIndex int) {
	gs.entityCountNoAdded = len(gs.entities)
	startIndex = len(gs.entities)
	for i := 0; i < n; i++ {
		gs.entities = append(gs.entities, NullEntityID)
	}
	for _, t := range registry.TypeInfoAll() {
		gs.counts[t.ID] = growSlots32(gs.counts[t.ID], n)
		gs.offsets[t.ID] = growSlots(gs.offsets[t.ID], n)
	}
	return startIndex
}

func growSlots32(s []int32, n int) []int32 {
	out := make([]int32, len(s)+n)
	copy(out, s)
	return out
}

// initNewEntities writes each pending entity's ID into both states at the
// reserved index, writes its raw components into past's buffers, sets
// past's counts/offsets at that index, and appends the mandatory
// Life{alive=true} component to past. Future's counts/offsets for the new
// entity are left for this frame's processes to write.
func initNewEntities(pending []pendingEntity, past, future *gameState, registry *ComponentRegistry, startPast, startFuture int) {
	for i, p := range pending {
		pastIdx := startPast + i
		futureIdx := startFuture + i
		past.entities[pastIdx] = p.id
		future.entities[futureIdx] = p.id

		for _, cv := range p.components {
			buf := past.buffers[cv.TypeID]
			count := cv.Count
			if count == 0 {
				count = 1
			}
			offset := int32(buf.CommittedComponents())
			buf.AddComponents(cv.Data, count)
			past.counts[cv.TypeID][pastIdx] = int32(count)
			past.offsets[cv.TypeID][pastIdx] = offset
		}

		lifeBuf := past.buffers[ComponentTypeLife]
		lifeOffset := int32(lifeBuf.CommittedComponents())
		lifeBuf.AddComponent([]byte{1})
		past.counts[ComponentTypeLife][pastIdx] = 1
		past.offsets[ComponentTypeLife][pastIdx] = lifeOffset
	}
}

// preallocate reserves space in every registered type's future buffer
// equal to allocMult * max(MinPrealloc, MinPreallocPerEntity*entityCount),
// avoiding the forced-grow warning path during ordinary execution.
func preallocate(future *gameState, allocMult float64, registry *ComponentRegistry) {
	entityCount := future.EntityCount()
	for _, t := range registry.TypeInfoAll() {
		target := float64(t.MinPrealloc)
		perEntity := t.MinPreallocPerEntity * float64(entityCount)
		if perEntity > target {
			target = perEntity
		}
		target *= allocMult
		future.buffers[t.ID].Preallocate(int(target))
	}
}
