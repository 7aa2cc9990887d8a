// Package engine defines the contract between the simulation orchestrator and
// the solver backends ("spaces") that estimate a steady-state temperature
// field from the grid's readings.
//
// The orchestrator only ever talks to an Engine. The in-process Registry is
// one Engine implementation; tests substitute their own stubs.
package engine

import (
	"errors"

	"github.com/banshee-data/heatgrid/internal/grid"
)

var (
	// ErrClosed is returned by every Engine method after Close.
	ErrClosed = errors.New("engine closed")
	// ErrSpaceNotFound is returned when a space index is not enumerable.
	ErrSpaceNotFound = errors.New("space not found")
)

// ErrorCode is a space-defined failure code. Success is the only code that
// denotes a usable result.
type ErrorCode uint32

// Success is the code a space returns when its output buffer holds a result.
const Success ErrorCode = 0

// Engine is a set of solver spaces bound to one grid's dimensions.
//
// Implementations must be safe for concurrent use. A non-nil error from any
// method means the engine itself is unusable (closed, unreachable or
// enumerating inconsistently); a non-zero ErrorCode from Solve is an ordinary
// per-space failure.
type Engine interface {
	// SetPoint mirrors an accepted grid write into the engine's own state.
	SetPoint(x, y int, p grid.Point) error
	// SpaceCount returns the number of spaces currently available. The
	// count may change over the engine's lifetime.
	SpaceCount() (int, error)
	// SpaceName returns the label of the space at index.
	SpaceName(index int) (string, error)
	// Solve resolves the space at index against input, writing
	// input.Len() values into out.
	Solve(index int, input grid.Frame, out []float32) (ErrorCode, error)
	// ErrorMessage returns human-readable text for a failure code.
	ErrorMessage(index int, code ErrorCode) string
	// Close releases the engine. It must be called exactly once.
	Close() error
}

// Factory allocates an Engine sized to the grid.
type Factory func(width, height int) (Engine, error)
