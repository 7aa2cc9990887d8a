package sim

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/banshee-data/heatgrid/internal/engine"
	"github.com/banshee-data/heatgrid/internal/grid"
)

// stubSpace is one in-memory space of a stubEngine.
type stubSpace struct {
	name    string
	solve   func(input grid.Frame, out []float32) engine.ErrorCode
	message string
}

// stubEngine implements engine.Engine with in-memory spaces and records
// every call it receives.
type stubEngine struct {
	mu     sync.Mutex
	spaces []stubSpace

	countErr error
	nameErr  error

	setPoints  []grid.Point
	closeCalls atomic.Int32
	closed     atomic.Bool
	// touchedAfterClose counts calls made after Close.
	touchedAfterClose atomic.Int32
}

func newStubEngine(spaces ...stubSpace) *stubEngine {
	return &stubEngine{spaces: spaces}
}

func (e *stubEngine) factory() engine.Factory {
	return func(int, int) (engine.Engine, error) { return e, nil }
}

func (e *stubEngine) touch() {
	if e.closed.Load() {
		e.touchedAfterClose.Add(1)
	}
}

func (e *stubEngine) setSpaces(spaces ...stubSpace) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.spaces = spaces
}

func (e *stubEngine) SetPoint(x, y int, p grid.Point) error {
	e.touch()
	e.mu.Lock()
	defer e.mu.Unlock()
	e.setPoints = append(e.setPoints, p)
	return nil
}

func (e *stubEngine) SpaceCount() (int, error) {
	e.touch()
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.countErr != nil {
		return 0, e.countErr
	}
	return len(e.spaces), nil
}

func (e *stubEngine) space(index int) (stubSpace, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if index < 0 || index >= len(e.spaces) {
		return stubSpace{}, engine.ErrSpaceNotFound
	}
	return e.spaces[index], nil
}

func (e *stubEngine) SpaceName(index int) (string, error) {
	e.touch()
	if e.nameErr != nil {
		return "", e.nameErr
	}
	s, err := e.space(index)
	if err != nil {
		return "", err
	}
	return s.name, nil
}

func (e *stubEngine) Solve(index int, input grid.Frame, out []float32) (engine.ErrorCode, error) {
	e.touch()
	s, err := e.space(index)
	if err != nil {
		return engine.Success, err
	}
	return s.solve(input, out), nil
}

func (e *stubEngine) ErrorMessage(index int, code engine.ErrorCode) string {
	e.touch()
	s, err := e.space(index)
	if err != nil {
		return "unknown"
	}
	return s.message
}

func (e *stubEngine) Close() error {
	e.closeCalls.Add(1)
	if e.closed.Swap(true) {
		return errors.New("stub engine closed twice")
	}
	return nil
}

func constantSpace(name string, v float32) stubSpace {
	return stubSpace{
		name: name,
		solve: func(input grid.Frame, out []float32) engine.ErrorCode {
			for i := range out {
				out[i] = v
			}
			return engine.Success
		},
	}
}

func failingSpace(name string, code engine.ErrorCode, message string) stubSpace {
	return stubSpace{
		name:    name,
		message: message,
		solve:   func(grid.Frame, []float32) engine.ErrorCode { return code },
	}
}

// averageSpace fills the field with the mean of every non-out-of-range
// reading.
func averageSpace(name string) stubSpace {
	return stubSpace{
		name: name,
		solve: func(input grid.Frame, out []float32) engine.ErrorCode {
			var sum float32
			var n int
			for _, p := range input.Points {
				if p.Kind != grid.OutOfRange {
					sum += p.Temperature
					n++
				}
			}
			if n == 0 {
				return 1
			}
			for i := range out {
				out[i] = sum / float32(n)
			}
			return engine.Success
		},
	}
}
