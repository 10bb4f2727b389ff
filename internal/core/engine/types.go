// Package engine implements the double-buffered frame engine, the process
// execution engine, and the resource manager contract that together form
// the core of a data-oriented entity-component-system runtime.
package engine

import "math"

// EntityID identifies an entity across its lifetime. Zero is never issued;
// NullEntityID marks the absence of an entity.
type EntityID uint32

// NullEntityID is the reserved sentinel for "no entity".
const NullEntityID EntityID = math.MaxUint32

// ComponentTypeID identifies a registered component type. ID 0 is reserved
// for the null type; ID 1 is the mandatory Life component.
type ComponentTypeID uint16

const (
	// ComponentTypeNone is the null component type; never registered.
	ComponentTypeNone ComponentTypeID = 0
	// ComponentTypeLife is the mandatory liveness flag component.
	ComponentTypeLife ComponentTypeID = 1
)

// Component type ID partitions. Builtin types occupy the lowest range,
// default (engine-provided but overridable) types the next, and user
// types the remainder up to maxComponentTypes.
const (
	maxBuiltinComponentTypes ComponentTypeID = 8
	maxDefaultComponentTypes ComponentTypeID = 32
)

// ComponentRole classifies a registered component type by which ID
// partition it must live in.
type ComponentRole int

const (
	// RoleBuiltin types must have ID in (0, maxBuiltinComponentTypes].
	RoleBuiltin ComponentRole = iota
	// RoleDefault types must have ID in (maxBuiltinComponentTypes, maxDefaultComponentTypes].
	RoleDefault
	// RoleUser types must have ID in (maxDefaultComponentTypes, maxComponentTypes).
	RoleUser
)

// offsetSentinel marks the offset of an entity that owns zero components
// of a given type, so bugs that index through it surface quickly instead
// of silently reading component zero.
const offsetSentinel = int32(math.MaxInt32)

// defaultReallocMult is the policy constant used by ComponentBuffer.grow
// when an application does not override it.
const defaultReallocMult = 2.5

// defaultFalloff is the Step estimator's decay coefficient.
const defaultFalloff = 0.2

// idleStopThreshold is the number of consecutive frames without assigned
// work after which a worker thread is stopped.
const idleStopThreshold = 4

// fallbackThreadCount is used when hardware thread detection is unavailable.
const fallbackThreadCount = 4
