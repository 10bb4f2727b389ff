package engine

import (
	"sync"
	"sync/atomic"
)

// ResourceState is the lifecycle a staged resource moves through.
type ResourceState int

const (
	ResourceNew ResourceState = iota
	ResourceLoading
	ResourceLoaded
	ResourceLoadFailed
)

func (s ResourceState) String() string {
	switch s {
	case ResourceNew:
		return "New"
	case ResourceLoading:
		return "Loading"
	case ResourceLoaded:
		return "Loaded"
	case ResourceLoadFailed:
		return "LoadFailed"
	default:
		return "Unknown"
	}
}

// RawHandle is an opaque, stable reference to a staged or loaded resource.
type RawHandle uint32

// NullHandle is the zero RawHandle; never issued for a real resource.
const NullHandle RawHandle = 0

// ResourceManager is the contract every resource manager implements. The
// core consumes it; concrete resource types (textures, sounds, prototype
// tables, ...) are out of scope and supplied by the application.
type ResourceManager interface {
	// ManagedResourceType identifies which component-property resource
	// type this manager serves (used to detect registration collisions).
	ManagedResourceType() string
	// Handle returns the stable handle for descriptor, staging it as New
	// if this is the first time it has been seen. Lock-free once the
	// descriptor has already been staged; takes a brief write lock only
	// to add a new staging entry.
	Handle(descriptor string) RawHandle
	// State returns the current lifecycle state of handle.
	State(handle RawHandle) ResourceState
	// RequestLoad enqueues handle for loading at the next Update call.
	RequestLoad(handle RawHandle)
	// Resource returns the immutable resource behind handle. Calling it
	// when State(handle) != ResourceLoaded is a programming fault.
	Resource(handle RawHandle) any
	// Update is called by the core between frames: it drains the staging
	// queue, processes pending load requests, and promotes successfully
	// loaded resources into the immutable store.
	Update()
	// Clear destroys every resource this manager owns. Called only
	// during Manager.Destroy.
	Clear()
}

// resourceEntry is one staged-or-loaded resource.
type resourceEntry struct {
	descriptor string
	state      ResourceState
	value      any
}

// MemoryResourceManager is a reference ResourceManager implementation
// backed by an in-process loader function. It demonstrates the
// writer-preferred staging discipline the contract requires: a read of a
// handle that has already reached Loaded never takes mu, because Update
// promotes successfully loaded values into loaded, an atomically-swapped
// snapshot map that is never mutated in place once published — only
// State/Resource calls against a handle that isn't (yet) Loaded fall
// through to the locked byHandle map.
type MemoryResourceManager struct {
	resourceType string
	load         func(descriptor string) (any, error)

	mu       sync.RWMutex
	byHandle map[RawHandle]*resourceEntry
	byDesc   map[string]RawHandle
	nextID   RawHandle
	pending  []RawHandle

	loaded atomic.Pointer[map[RawHandle]any]
}

// NewMemoryResourceManager constructs a manager that loads resources on
// demand via load, reporting resourceType as its ManagedResourceType.
func NewMemoryResourceManager(resourceType string, load func(descriptor string) (any, error)) *MemoryResourceManager {
	return &MemoryResourceManager{
		resourceType: resourceType,
		load:         load,
		byHandle:     make(map[RawHandle]*resourceEntry),
		byDesc:       make(map[string]RawHandle),
		nextID:       1,
	}
}

func (m *MemoryResourceManager) ManagedResourceType() string { return m.resourceType }

// Handle takes mu's read lock to look up an already-staged descriptor and
// the write lock to stage a new one. Unlike State and Resource, it has no
// lock-free path, even for a descriptor whose resource is Loaded.
func (m *MemoryResourceManager) Handle(descriptor string) RawHandle {
	m.mu.RLock()
	if h, ok := m.byDesc[descriptor]; ok {
		m.mu.RUnlock()
		return h
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if h, ok := m.byDesc[descriptor]; ok {
		return h
	}
	h := m.nextID
	m.nextID++
	m.byDesc[descriptor] = h
	m.byHandle[h] = &resourceEntry{descriptor: descriptor, state: ResourceNew}
	return h
}

func (m *MemoryResourceManager) State(handle RawHandle) ResourceState {
	if snap := m.loaded.Load(); snap != nil {
		if _, ok := (*snap)[handle]; ok {
			return ResourceLoaded
		}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.byHandle[handle]
	if !ok {
		return ResourceLoadFailed
	}
	return e.state
}

func (m *MemoryResourceManager) RequestLoad(handle RawHandle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.byHandle[handle]
	if !ok || e.state != ResourceNew {
		return
	}
	e.state = ResourceLoading
	m.pending = append(m.pending, handle)
}

func (m *MemoryResourceManager) Resource(handle RawHandle) any {
	if snap := m.loaded.Load(); snap != nil {
		if v, ok := (*snap)[handle]; ok {
			return v
		}
	}
	panic(newEngineError(ErrCodeResourceLoadFailed, SeverityFatal,
		"Resource() called on handle %d which is not in the Loaded state", handle))
}

// Update drains the pending-load queue, invoking load for each handle,
// and promotes successes to Loaded / failures to LoadFailed. Every
// successful load is folded into a fresh copy of loaded, published with
// a single atomic store so that concurrent State/Resource readers never
// observe a partially-built snapshot.
func (m *MemoryResourceManager) Update() {
	m.mu.Lock()
	pending := m.pending
	m.pending = nil
	m.mu.Unlock()

	if len(pending) == 0 {
		return
	}

	next := map[RawHandle]any{}
	if snap := m.loaded.Load(); snap != nil {
		for k, v := range *snap {
			next[k] = v
		}
	}

	for _, h := range pending {
		m.mu.RLock()
		e := m.byHandle[h]
		desc := e.descriptor
		m.mu.RUnlock()

		value, err := m.load(desc)

		m.mu.Lock()
		if err != nil {
			e.state = ResourceLoadFailed
		} else {
			e.value = value
			e.state = ResourceLoaded
			next[h] = value
		}
		m.mu.Unlock()
	}

	m.loaded.Store(&next)
}

func (m *MemoryResourceManager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byHandle = make(map[RawHandle]*resourceEntry)
	m.byDesc = make(map[string]RawHandle)
	m.pending = nil
	m.nextID = 1
	empty := map[RawHandle]any{}
	m.loaded.Store(&empty)
}
