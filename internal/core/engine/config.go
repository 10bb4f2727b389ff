package engine

import "runtime"

// EngineConfig carries the application-tunable knobs: worker thread
// count, buffer growth policy, and the per-frame cap on newly spawned
// entities.
type EngineConfig struct {
	// ThreadCount is the total number of threads including the main
	// thread. Zero means "auto-size to the detected hardware thread
	// count, falling back to fallbackThreadCount when detection fails".
	ThreadCount int

	// AllocMult scales every type's preallocation target computed from
	// MinPrealloc/MinPreallocPerEntity. Must be > 0.
	AllocMult float64

	// ReallocMult is the growth factor a Component Buffer uses when it
	// must forcibly grow mid-frame. Must be > 1.0.
	ReallocMult float64

	// EstimatorFalloff is the Step estimator's decay coefficient α.
	EstimatorFalloff float64

	// MaxNewEntitiesPerFrame bounds how many pending add_entity calls are
	// honored in a single frame; the (M+1)th call returns NullEntityID.
	MaxNewEntitiesPerFrame int

	// IdleStopThreshold is the number of consecutive work-free frames
	// after which a worker thread is stopped.
	IdleStopThreshold int
}

// DefaultEngineConfig returns the engine's default knob values.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		ThreadCount:            0,
		AllocMult:              1.0,
		ReallocMult:            defaultReallocMult,
		EstimatorFalloff:       defaultFalloff,
		MaxNewEntitiesPerFrame: 1024,
		IdleStopThreshold:      idleStopThreshold,
	}
}

// resolvedThreadCount applies auto-sizing: an explicit override wins,
// otherwise the detected hardware thread count is used, falling back to
// fallbackThreadCount when the runtime reports zero or one (no usable
// detection on the target platform).
func (c EngineConfig) resolvedThreadCount() int {
	if c.ThreadCount > 0 {
		return c.ThreadCount
	}
	n := runtime.NumCPU()
	if n <= 1 {
		return fallbackThreadCount
	}
	return n
}
