// Package democomponents defines the small component set and processes
// cmd/frame-demo exercises: a Position/Velocity pair driven by a mover
// process and a velocity-bounce process, plus a keep-alive process,
// enough to demonstrate the engine's frame loop end to end
// without pulling any rendering concern into the core engine package.
package democomponents

import (
	"math/rand"
	"unsafe"

	"muscle-dreamer/internal/core/engine"
)

// Position and Velocity are plain 2D float32 pairs; their byte layout is
// exactly what ComponentBuffer stores and what Process signatures read
// and write through the generic ReadPast/WriteFuture accessors.
type Position struct{ X, Y float32 }
type Velocity struct{ DX, DY float32 }

// Component type IDs live in the user partition (above maxDefaultComponentTypes).
const (
	TypePosition engine.ComponentTypeID = 40
	TypeVelocity engine.ComponentTypeID = 41
)

// Register adds Position and Velocity to r. r must not yet be locked.
func Register(r *engine.ComponentRegistry) {
	r.Register(engine.RoleUser, engine.TypeInfo{
		ID: TypePosition, Name: "Position", Size: unsafe.Sizeof(Position{}),
		MaxPerEntity: 1, MinPrealloc: 256,
		Properties: []engine.Property{
			{Name: "x", Offset: 0, Size: 4},
			{Name: "y", Offset: 4, Size: 4},
		},
	})
	r.Register(engine.RoleUser, engine.TypeInfo{
		ID: TypeVelocity, Name: "Velocity", Size: unsafe.Sizeof(Velocity{}),
		MaxPerEntity: 1, MinPrealloc: 256,
	})
}

func encode[T any](v T) []byte {
	size := int(unsafe.Sizeof(v))
	return append([]byte(nil), unsafe.Slice((*byte)(unsafe.Pointer(&v)), size)...)
}

// Prototype builds the Prototype for one moving entity.
func Prototype(pos Position, vel Velocity) engine.Prototype {
	return engine.Prototype{Components: []engine.ComponentValue{
		{TypeID: TypePosition, Data: encode(pos), Count: 1},
		{TypeID: TypeVelocity, Data: encode(vel), Count: 1},
	}}
}

// RandomPrototype returns a prototype bounded to [0,width)x[0,height) with
// a small random velocity, for seeding the demo scene.
func RandomPrototype(width, height int) engine.Prototype {
	pos := Position{X: rand.Float32() * float32(width), Y: rand.Float32() * float32(height)}
	vel := Velocity{DX: (rand.Float32() - 0.5) * 120, DY: (rand.Float32() - 0.5) * 120}
	return Prototype(pos, vel)
}

// MoveProcess advances Position by Velocity each frame, clamping it to the
// window edges so demo entities stay on screen; the velocity flip that
// makes them bounce is done by BounceVelocityProcess.
func MoveProcess(width, height int) *engine.Process {
	return &engine.Process{
		Name: "Move",
		Signatures: []engine.Signature{{
			PastTypes:  []engine.ComponentTypeID{TypePosition, TypeVelocity},
			FutureType: TypePosition,
			Run: func(pc *engine.ProcessContext) int {
				p, _ := engine.ReadPast[Position](pc, TypePosition)
				v, _ := engine.ReadPast[Velocity](pc, TypeVelocity)
				next := Position{X: p.X + v.DX/60, Y: p.Y + v.DY/60}
				next.X = clamp(next.X, 0, float32(width))
				next.Y = clamp(next.Y, 0, float32(height))
				return engine.WriteFuture(pc, next)
			},
		}},
	}
}

// BounceVelocityProcess keeps Velocity alive across frames, flipping the
// sign of a velocity component whenever the past Position sits on or past
// the matching window edge, where MoveProcess clamps it. Modeled as a second process
// (rather than folding into MoveProcess) to show two processes
// cooperating over the same entity's distinct future types, scheduled
// independently.
func BounceVelocityProcess(width, height int) *engine.Process {
	return &engine.Process{
		Name: "Bounce",
		Signatures: []engine.Signature{{
			PastTypes:  []engine.ComponentTypeID{TypePosition, TypeVelocity},
			FutureType: TypeVelocity,
			Run: func(pc *engine.ProcessContext) int {
				p, _ := engine.ReadPast[Position](pc, TypePosition)
				v, _ := engine.ReadPast[Velocity](pc, TypeVelocity)
				next := v
				if p.X <= 0 || p.X >= float32(width) {
					next.DX = -next.DX
				}
				if p.Y <= 0 || p.Y >= float32(height) {
					next.DY = -next.DY
				}
				return engine.WriteFuture(pc, next)
			},
		}},
	}
}

// StayAliveProcess keeps every entity alive forever; the demo has no
// despawn mechanic.
func StayAliveProcess() *engine.Process {
	return &engine.Process{
		Name: "StayAlive",
		Signatures: []engine.Signature{{
			FutureType: engine.ComponentTypeLife,
			Run:        func(pc *engine.ProcessContext) int { return engine.WriteFuture(pc, true) },
		}},
	}
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
