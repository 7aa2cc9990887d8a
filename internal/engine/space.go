package engine

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/banshee-data/heatgrid/internal/grid"
)

// Space is an in-process solver backend hosted by a Registry.
type Space interface {
	// Name is a stable, human-readable label such as an algorithm name.
	Name() string
	// ErrorMessage describes a code previously returned by Solve.
	ErrorMessage(code ErrorCode) string
	// Solve writes input.Len() values into out.
	Solve(input grid.Frame, out []float32) ErrorCode
}

// SpaceFactory builds a Space for a grid of the given dimensions.
type SpaceFactory func(width, height int) (Space, error)

const unknownError = "Unknown error"

// ConstantSpace fills every cell with a fixed temperature. It stands in for a
// real solver while wiring up sensors and clients.
type ConstantSpace struct {
	Value float32
}

func (s *ConstantSpace) Name() string { return "Constant" }

func (s *ConstantSpace) ErrorMessage(code ErrorCode) string {
	if code == Success {
		return "Success"
	}
	return unknownError
}

func (s *ConstantSpace) Solve(input grid.Frame, out []float32) ErrorCode {
	for i := range out[:input.Len()] {
		out[i] = s.Value
	}
	return Success
}

// Codes returned by MeanSpace.
const (
	MeanInsufficientBoundary ErrorCode = 1
)

// MeanSpace is a baseline backend: every participating cell gets the mean of
// the finite boundary readings, boundary cells keep their own reading and
// out-of-range cells are left at zero.
type MeanSpace struct{}

func (MeanSpace) Name() string { return "Mean" }

func (MeanSpace) ErrorMessage(code ErrorCode) string {
	switch code {
	case Success:
		return "Success"
	case MeanInsufficientBoundary:
		return "Insufficient boundary condition"
	}
	return unknownError
}

func (MeanSpace) Solve(input grid.Frame, out []float32) ErrorCode {
	var sum float64
	var n int
	for _, p := range input.Points {
		if p.Kind == grid.Boundary && !math.IsNaN(float64(p.Temperature)) && !math.IsInf(float64(p.Temperature), 0) {
			sum += float64(p.Temperature)
			n++
		}
	}
	if n == 0 {
		return MeanInsufficientBoundary
	}
	mean := float32(sum / float64(n))
	for i, p := range input.Points {
		switch p.Kind {
		case grid.Boundary:
			out[i] = p.Temperature
		case grid.GroundTruth:
			out[i] = mean
		default:
			out[i] = 0
		}
	}
	return Success
}

// SpaceOptions carries the tunables of the built-in spaces.
type SpaceOptions struct {
	ConstantTemperature float32
}

var builtinSpaces = map[string]func(SpaceOptions) SpaceFactory{
	"constant": func(o SpaceOptions) SpaceFactory {
		return func(int, int) (Space, error) { return &ConstantSpace{Value: o.ConstantTemperature}, nil }
	},
	"mean": func(SpaceOptions) SpaceFactory {
		return func(int, int) (Space, error) { return MeanSpace{}, nil }
	},
}

// BuiltinSpaceNames lists the names accepted by SpacesByName.
func BuiltinSpaceNames() []string {
	names := make([]string, 0, len(builtinSpaces))
	for name := range builtinSpaces {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SpacesByName resolves configured space names (case-insensitive) to
// factories, preserving order.
func SpacesByName(names []string, opts SpaceOptions) ([]SpaceFactory, error) {
	factories := make([]SpaceFactory, 0, len(names))
	for _, name := range names {
		build, ok := builtinSpaces[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, fmt.Errorf("unknown space %q: expected one of %s", name, strings.Join(BuiltinSpaceNames(), ", "))
		}
		factories = append(factories, build(opts))
	}
	return factories, nil
}
