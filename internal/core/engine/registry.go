package engine

// Attribute names the engine itself gives meaning to. Applications may
// declare arbitrary further attributes for their own processes to key off.
const (
	// AttrResource marks a property holding a resource handle: a document
	// that omits it fails to load the whole entity instead of defaulting.
	AttrResource = "resource"
	// AttrRelative marks a property composed right-to-left on spawn, e.g.
	// adding a parent's position into a child's.
	AttrRelative = "relative"
)

// Property describes one named field of a component, as read from a
// Source document and as used by processes that key behavior off an
// attribute (e.g. "relative").
type Property struct {
	Name       string
	Offset     uintptr
	Size       uintptr
	Attributes []string

	// Load decodes this property's value from a scalar Source into the
	// property's byte window of a component. Nil means the property cannot
	// be populated from a document.
	Load func(src Source, dst []byte) bool

	// AddRightToLeft folds right's bytes into dst's for attribute-driven
	// composition. Both slices are exactly Size bytes. Nil means the
	// property does not compose.
	AddRightToLeft func(dst, right []byte)
}

// HasAttribute reports whether the named attribute is present on this
// property.
func (p Property) HasAttribute(name string) bool {
	for _, a := range p.Attributes {
		if a == name {
			return true
		}
	}
	return false
}

// TypeInfo is the metadata the registry keeps for one registered
// component type.
type TypeInfo struct {
	ID                   ComponentTypeID
	Name                 string
	Size                 uintptr
	IsMulti              bool
	MaxPerEntity         int
	MinPrealloc          int
	MinPreallocPerEntity float64
	Properties           []Property

	// SourceName overrides the key under which a prototype document
	// carries this type. Empty derives it from Name: the "Component"
	// suffix stripped and the first letter lowercased.
	SourceName string

	// DefaultValue is the encoded component a loaded entity starts from
	// before its document properties are applied; nil means all zeroes.
	// Must be exactly Size bytes when set.
	DefaultValue []byte
}

// maxComponentTypes is the size of the ID space a ComponentRegistry can
// address; user types occupy the remainder above maxDefaultComponentTypes.
const maxComponentTypes = 256

// ComponentRegistry is the catalog of registered component types. It must
// be locked before an Entity Manager can be constructed from it.
type ComponentRegistry struct {
	types  [maxComponentTypes]*TypeInfo
	locked bool
}

// NewComponentRegistry returns a registry with the mandatory Life
// component already registered at ID 1.
func NewComponentRegistry() *ComponentRegistry {
	r := &ComponentRegistry{}
	life := &TypeInfo{
		ID:           ComponentTypeLife,
		Name:         "Life",
		Size:         1,
		IsMulti:      false,
		MaxPerEntity: 1,
		MinPrealloc:  64,
		Properties: []Property{
			{Name: "alive", Offset: 0, Size: 1},
		},
	}
	r.types[ComponentTypeLife] = life
	return r
}

func partitionFor(role ComponentRole) (lo, hi ComponentTypeID) {
	switch role {
	case RoleBuiltin:
		return 1, maxBuiltinComponentTypes
	case RoleDefault:
		return maxBuiltinComponentTypes + 1, maxDefaultComponentTypes
	default:
		return maxDefaultComponentTypes + 1, maxComponentTypes - 1
	}
}

// Register adds a component type to the catalog. It panics with an
// *EngineError of SeverityFatal if the registry is locked, if the ID is
// already taken, if the ID falls outside the partition owned by role, or
// if MaxPerEntity is non-positive. These are all programming faults.
func (r *ComponentRegistry) Register(role ComponentRole, info TypeInfo) {
	if r.locked {
		panic(newEngineError(ErrCodeRegistrationAfterLock, SeverityFatal,
			"cannot register component type %q: registry is locked", info.Name).
			WithComponent(info.ID))
	}
	if int(info.ID) >= len(r.types) || info.ID == ComponentTypeNone {
		panic(newEngineError(ErrCodeComponentIDWrongPartition, SeverityFatal,
			"component type %q has out-of-range ID %d", info.Name, info.ID).
			WithComponent(info.ID))
	}
	if r.types[info.ID] != nil {
		panic(newEngineError(ErrCodeDuplicateComponentID, SeverityFatal,
			"component type ID %d already registered (existing %q, new %q)",
			info.ID, r.types[info.ID].Name, info.Name).WithComponent(info.ID))
	}
	lo, hi := partitionFor(role)
	if info.ID < lo || info.ID > hi {
		panic(newEngineError(ErrCodeComponentIDWrongPartition, SeverityFatal,
			"component type %q with ID %d does not fall in its declared partition [%d,%d]",
			info.Name, info.ID, lo, hi).WithComponent(info.ID))
	}
	if info.MaxPerEntity < 1 {
		panic(newEngineError(ErrCodeMaxPerEntityExceeded, SeverityFatal,
			"component type %q declares MaxPerEntity %d, must be >= 1",
			info.Name, info.MaxPerEntity).WithComponent(info.ID))
	}
	cp := info
	r.types[info.ID] = &cp
}

// Lock freezes the registry. Calling Lock a second time is a harmless
// idempotent no-op failure: it simply returns false.
func (r *ComponentRegistry) Lock() bool {
	if r.locked {
		return false
	}
	r.locked = true
	return true
}

// Locked reports whether the registry has been locked.
func (r *ComponentRegistry) Locked() bool {
	return r.locked
}

// TypeInfoOf returns the metadata for id, or nil if unregistered.
func (r *ComponentRegistry) TypeInfoOf(id ComponentTypeID) *TypeInfo {
	if int(id) >= len(r.types) {
		return nil
	}
	return r.types[id]
}

// TypeInfoAll returns every registered type, in ID order.
func (r *ComponentRegistry) TypeInfoAll() []*TypeInfo {
	out := make([]*TypeInfo, 0, len(r.types))
	for _, t := range r.types {
		if t != nil {
			out = append(out, t)
		}
	}
	return out
}

// MaxEntityBytes returns the summed per-entity byte bound over every
// registered type. Requires the registry to be locked.
func (r *ComponentRegistry) MaxEntityBytes() uintptr {
	r.requireLocked()
	var total uintptr
	for _, t := range r.types {
		if t != nil {
			total += t.Size * uintptr(t.MaxPerEntity)
		}
	}
	return total
}

// MaxEntityComponents returns the summed per-entity component-count bound
// over every registered type. Requires the registry to be locked.
func (r *ComponentRegistry) MaxEntityComponents() int {
	r.requireLocked()
	total := 0
	for _, t := range r.types {
		if t != nil {
			total += t.MaxPerEntity
		}
	}
	return total
}

func (r *ComponentRegistry) requireLocked() {
	if !r.locked {
		panic(newEngineError(ErrCodeNotLocked, SeverityFatal,
			"registry must be locked before querying entity bounds"))
	}
}
