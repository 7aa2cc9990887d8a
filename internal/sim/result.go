package sim

import (
	"fmt"

	"github.com/banshee-data/heatgrid/internal/engine"
	"github.com/banshee-data/heatgrid/internal/grid"
)

// SpaceFailure describes why a space produced no field.
type SpaceFailure struct {
	Code    engine.ErrorCode
	Message string
}

func (f *SpaceFailure) Error() string {
	return fmt.Sprintf("%s (code %d)", f.Message, f.Code)
}

// SpaceResult is the outcome of one space for one snapshot: either a field of
// width*height temperatures or a failure, never both. Values are built with
// Succeeded or Failed.
type SpaceResult struct {
	index   int
	name    string
	field   []float32
	failure *SpaceFailure
}

// Succeeded builds a successful result. The result takes ownership of field.
func Succeeded(index int, name string, field []float32) SpaceResult {
	if field == nil {
		field = []float32{}
	}
	return SpaceResult{index: index, name: name, field: field}
}

// Failed builds a failed result. A failure always carries a non-zero code.
func Failed(index int, name string, code engine.ErrorCode, message string) SpaceResult {
	if code == engine.Success {
		panic("sim: Failed called with success code")
	}
	return SpaceResult{index: index, name: name, failure: &SpaceFailure{Code: code, Message: message}}
}

func (r SpaceResult) Index() int   { return r.index }
func (r SpaceResult) Name() string { return r.name }

// OK reports whether the space produced a field.
func (r SpaceResult) OK() bool { return r.failure == nil }

// Field returns the row-major output field. Callers must not modify it.
func (r SpaceResult) Field() ([]float32, bool) {
	if r.failure != nil {
		return nil, false
	}
	return r.field, true
}

// Failure returns the failure of an unsuccessful space.
func (r SpaceResult) Failure() (*SpaceFailure, bool) {
	return r.failure, r.failure != nil
}

// Code returns the engine error code, Success for a field.
func (r SpaceResult) Code() engine.ErrorCode {
	if r.failure == nil {
		return engine.Success
	}
	return r.failure.Code
}

// Snapshot is a consistent point-in-time view: the grid at one write
// generation plus one result per space, in space index order.
type Snapshot struct {
	Frame   grid.Frame
	Results []SpaceResult
}

// Generation returns the write generation the snapshot was captured at.
func (s *Snapshot) Generation() uint64 { return s.Frame.Generation }
