package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBuffer(t *testing.T, componentSize int) *ComponentBuffer {
	t.Helper()
	b := &ComponentBuffer{}
	b.Enable(40, componentSize, 2.5)
	return b
}

func TestComponentBuffer_EnableCommit(t *testing.T) {
	t.Run("TC001: enabling twice panics", func(t *testing.T) {
		b := newTestBuffer(t, 4)
		assert.Panics(t, func() { b.Enable(40, 4, 2.5) })
	})

	t.Run("TC002: committed_bytes = committed*size", func(t *testing.T) {
		b := newTestBuffer(t, 4)
		b.Preallocate(10)
		dst := b.ForceUncommittedSpace(2)
		copy(dst, []byte{1, 2, 3, 4, 5, 6, 7, 8})
		b.Commit(2)
		assert.Equal(t, 2, b.CommittedComponents())
		assert.Equal(t, 8, b.CommittedBytes())
	})

	t.Run("TC003: commit beyond allocated capacity panics", func(t *testing.T) {
		b := newTestBuffer(t, 4)
		b.Preallocate(1)
		assert.Panics(t, func() { b.Commit(5) })
	})
}

func TestComponentBuffer_ForceGrow(t *testing.T) {
	t.Run("TC004: forced grow preserves committed data and logs a warning", func(t *testing.T) {
		b := newTestBuffer(t, 4)
		b.Preallocate(1)
		dst := b.ForceUncommittedSpace(1)
		copy(dst, []byte{9, 9, 9, 9})
		b.Commit(1)

		require.Equal(t, 0, b.GrowEventCount())
		dst2 := b.ForceUncommittedSpace(5)
		assert.GreaterOrEqual(t, len(dst2), 5*4)
		assert.Equal(t, 1, b.GrowEventCount())
		// Previously committed bytes survive the grow.
		assert.Equal(t, []byte{9, 9, 9, 9}, b.CommittedSpace())
	})

	t.Run("TC005: grow target respects reallocMult when larger than min", func(t *testing.T) {
		b := newTestBuffer(t, 1)
		b.Preallocate(10)
		b.ForceUncommittedSpace(1)
		b.Commit(10) // fill completely
		b.ForceUncommittedSpace(1)
		// old=10, reallocMult=2.5 -> scaled=25 > target(11)
		assert.Equal(t, 25, b.AllocatedComponents())
	})
}

func TestComponentBuffer_AddComponent(t *testing.T) {
	t.Run("TC006: AddComponent copies and commits one component", func(t *testing.T) {
		b := newTestBuffer(t, 4)
		b.AddComponent([]byte{1, 2, 3, 4})
		assert.Equal(t, 1, b.CommittedComponents())
		assert.Equal(t, []byte{1, 2, 3, 4}, b.CommittedSpace())
	})

	t.Run("TC007: AddComponents copies count components", func(t *testing.T) {
		b := newTestBuffer(t, 2)
		b.AddComponents([]byte{1, 2, 3, 4, 5, 6}, 3)
		assert.Equal(t, 3, b.CommittedComponents())
	})
}

func TestComponentBuffer_Reset(t *testing.T) {
	t.Run("TC008: reset zeroes bytes and committed count", func(t *testing.T) {
		b := newTestBuffer(t, 4)
		b.AddComponent([]byte{1, 2, 3, 4})
		b.Reset()
		assert.Equal(t, 0, b.CommittedComponents())
		for _, byteVal := range b.CommittedSpace() {
			assert.Equal(t, byte(0), byteVal)
		}
		// Stale data cannot leak: the full allocated region is zeroed, not
		// just the committed prefix.
		for _, byteVal := range b.data {
			assert.Equal(t, byte(0), byteVal)
		}
	})
}
