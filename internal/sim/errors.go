package sim

import "errors"

var (
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("orchestrator closed")
	// ErrEngineCreate wraps a failure of the engine factory.
	ErrEngineCreate = errors.New("failed to create engine")
	// ErrEngine wraps a fatal error reported by the engine.
	ErrEngine = errors.New("engine failure")
	// ErrInconsistentSpaces is returned when the engine cannot enumerate a
	// space it counted.
	ErrInconsistentSpaces = errors.New("engine reported inconsistent spaces")
)
