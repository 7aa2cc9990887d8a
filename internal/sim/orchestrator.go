package sim

import (
	"errors"
	"fmt"
	"sync"

	"github.com/banshee-data/heatgrid/internal/engine"
	"github.com/banshee-data/heatgrid/internal/grid"
	"github.com/banshee-data/heatgrid/internal/monitoring"
)

// State is the lifecycle state of an Orchestrator.
type State int

const (
	Ready State = iota
	Closed
)

func (s State) String() string {
	switch s {
	case Ready:
		return "ready"
	case Closed:
		return "closed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Orchestrator owns the grid and the engine. All methods are safe for
// concurrent use.
type Orchestrator struct {
	// lifeMu is held shared by every Record/Snapshot call and exclusively
	// by Close, so Close waits for in-flight calls to drain.
	lifeMu sync.RWMutex
	closed bool

	// gridMu guards grid. Writers take it exclusively; snapshots hold it
	// shared only while copying the points out.
	gridMu sync.RWMutex
	grid   *grid.Grid

	engine     engine.Engine
	logf       func(format string, v ...interface{})
	sequential bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the diagnostic logger. Nil mutes logging.
func WithLogger(logf func(format string, v ...interface{})) Option {
	return func(o *Orchestrator) {
		if logf == nil {
			logf = func(string, ...interface{}) {}
		}
		o.logf = logf
	}
}

// WithSequentialSolve solves spaces one at a time in index order instead of
// concurrently.
func WithSequentialSolve() Option {
	return func(o *Orchestrator) { o.sequential = true }
}

// New creates a width×height grid and allocates its engine with factory.
// The factory is called exactly once.
func New(width, height int, factory engine.Factory, opts ...Option) (*Orchestrator, error) {
	g, err := grid.New(width, height)
	if err != nil {
		return nil, err
	}
	if factory == nil {
		return nil, fmt.Errorf("%w: no engine factory", ErrEngineCreate)
	}
	e, err := factory(width, height)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEngineCreate, err)
	}
	if e == nil {
		return nil, fmt.Errorf("%w: factory returned nil engine", ErrEngineCreate)
	}

	o := &Orchestrator{
		grid:   g,
		engine: e,
		logf:   monitoring.Prefixed("sim"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Dimensions returns the grid width and height.
func (o *Orchestrator) Dimensions() (width, height int) {
	return o.grid.Width(), o.grid.Height()
}

// Generation returns the current write generation of the grid.
func (o *Orchestrator) Generation() uint64 {
	o.gridMu.RLock()
	defer o.gridMu.RUnlock()
	return o.grid.Generation()
}

// State reports whether the orchestrator is still accepting calls.
func (o *Orchestrator) State() State {
	o.lifeMu.RLock()
	defer o.lifeMu.RUnlock()
	if o.closed {
		return Closed
	}
	return Ready
}

// Record overwrites the point at (x, y). The temperature is stored as given,
// NaN included. Out-of-bounds coordinates fail with grid.ErrInvalidCoordinate
// and change nothing.
func (o *Orchestrator) Record(x, y int, temperature float32, kind grid.Kind) error {
	o.lifeMu.RLock()
	defer o.lifeMu.RUnlock()
	if o.closed {
		return ErrClosed
	}
	if !kind.Valid() {
		return fmt.Errorf("%w: %d", grid.ErrInvalidKind, uint8(kind))
	}

	p := grid.Point{Temperature: temperature, Kind: kind}

	// The engine mirror is updated under the same lock so it sees writes to
	// one coordinate in the same order as the grid.
	o.gridMu.Lock()
	defer o.gridMu.Unlock()
	if err := o.grid.Set(x, y, p); err != nil {
		return err
	}
	if err := o.engine.SetPoint(x, y, p); err != nil {
		o.logf("engine rejected point (%d, %d): %v", x, y, err)
		return fmt.Errorf("%w: set point: %w", ErrEngine, err)
	}
	return nil
}

// Snapshot captures the grid and solves every space against the captured
// copy. The returned snapshot holds exactly one result per space counted by
// the engine at the time of the call.
func (o *Orchestrator) Snapshot() (*Snapshot, error) {
	o.lifeMu.RLock()
	defer o.lifeMu.RUnlock()
	if o.closed {
		return nil, ErrClosed
	}

	o.gridMu.RLock()
	frame := o.grid.Capture()
	o.gridMu.RUnlock()

	count, err := o.engine.SpaceCount()
	if err != nil {
		o.logf("failed to count spaces: %v", err)
		return nil, fmt.Errorf("%w: space count: %w", ErrEngine, err)
	}
	if count < 0 {
		return nil, fmt.Errorf("%w: negative space count %d", ErrInconsistentSpaces, count)
	}

	results := make([]SpaceResult, count)
	errs := make([]error, count)
	if o.sequential || count <= 1 {
		for i := 0; i < count; i++ {
			results[i], errs[i] = o.solve(i, frame)
		}
	} else {
		var wg sync.WaitGroup
		for i := 0; i < count; i++ {
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				results[idx], errs[idx] = o.solve(idx, frame)
			}(i)
		}
		wg.Wait()
	}

	for _, err := range errs {
		if err != nil {
			o.logf("snapshot at generation %d failed: %v", frame.Generation, err)
			return nil, err
		}
	}
	return &Snapshot{Frame: frame, Results: results}, nil
}

// solve runs one space against its own copy of frame, so a space writing to
// its input cannot reach other spaces or the returned snapshot.
func (o *Orchestrator) solve(index int, frame grid.Frame) (SpaceResult, error) {
	frame = frame.Clone()
	name, err := o.engine.SpaceName(index)
	if err != nil {
		return SpaceResult{}, spaceError(index, "name", err)
	}

	out := make([]float32, frame.Len())
	code, err := o.engine.Solve(index, frame, out)
	if err != nil {
		return SpaceResult{}, spaceError(index, "solve", err)
	}
	if code != engine.Success {
		return Failed(index, name, code, o.engine.ErrorMessage(index, code)), nil
	}
	return Succeeded(index, name, out), nil
}

func spaceError(index int, op string, err error) error {
	if errors.Is(err, engine.ErrSpaceNotFound) {
		return fmt.Errorf("%w: space %d %s: %w", ErrInconsistentSpaces, index, op, err)
	}
	return fmt.Errorf("%w: space %d %s: %w", ErrEngine, index, op, err)
}

// Close waits for in-flight calls to finish and then releases the engine.
// Later calls to Close are no-ops; every other method fails with ErrClosed.
func (o *Orchestrator) Close() error {
	o.lifeMu.Lock()
	defer o.lifeMu.Unlock()
	if o.closed {
		return nil
	}
	o.closed = true
	if err := o.engine.Close(); err != nil {
		return fmt.Errorf("failed to release engine: %w", err)
	}
	return nil
}
