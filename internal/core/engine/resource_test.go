package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryResourceManager_Lifecycle(t *testing.T) {
	loaded := map[string]string{"ok.png": "pixels"}
	rm := NewMemoryResourceManager("texture", func(descriptor string) (any, error) {
		if v, ok := loaded[descriptor]; ok {
			return v, nil
		}
		return nil, errors.New("not found")
	})

	t.Run("TC001: a fresh descriptor stages as New", func(t *testing.T) {
		h := rm.Handle("ok.png")
		assert.Equal(t, ResourceNew, rm.State(h))
	})

	t.Run("TC002: the same descriptor returns a stable handle", func(t *testing.T) {
		h1 := rm.Handle("ok.png")
		h2 := rm.Handle("ok.png")
		assert.Equal(t, h1, h2)
	})

	t.Run("TC003: RequestLoad then Update promotes to Loaded", func(t *testing.T) {
		h := rm.Handle("ok.png")
		rm.RequestLoad(h)
		assert.Equal(t, ResourceLoading, rm.State(h))
		rm.Update()
		assert.Equal(t, ResourceLoaded, rm.State(h))
		assert.Equal(t, "pixels", rm.Resource(h))
	})

	t.Run("TC004: a failing load becomes LoadFailed", func(t *testing.T) {
		h := rm.Handle("missing.png")
		rm.RequestLoad(h)
		rm.Update()
		assert.Equal(t, ResourceLoadFailed, rm.State(h))
	})

	t.Run("TC005: Resource on a non-Loaded handle panics", func(t *testing.T) {
		h := rm.Handle("never-requested.png")
		assert.Panics(t, func() { rm.Resource(h) })
	})

	t.Run("TC006: Clear empties every resource", func(t *testing.T) {
		h := rm.Handle("ok.png")
		rm.RequestLoad(h)
		rm.Update()
		rm.Clear()
		assert.Equal(t, ResourceLoadFailed, rm.State(h), "an unknown handle reports LoadFailed")
	})
}

func TestManager_ResourceManagerCollision(t *testing.T) {
	m := newTestManager(t, nil)
	rm1 := NewMemoryResourceManager("texture", func(string) (any, error) { return nil, nil })
	rm2 := NewMemoryResourceManager("texture", func(string) (any, error) { return nil, nil })
	m.RegisterResourceManager(rm1)
	assert.Panics(t, func() { m.RegisterResourceManager(rm2) })
}

func TestManager_ResourceManagerUpdatedEachFrame(t *testing.T) {
	rm := NewMemoryResourceManager("counter", func(string) (any, error) { return nil, nil })
	m := newTestManager(t, nil)
	m.RegisterResourceManager(rm)

	// Update is idempotent with nothing staged; the assertion of interest
	// is that ExecuteFrame does not panic when a resource manager is
	// registered and nothing has been requested.
	require.NotPanics(t, func() {
		m.ExecuteFrame()
		m.ExecuteFrame()
	})
}
