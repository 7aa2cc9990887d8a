package engine

import (
	"math"
	"testing"

	"github.com/banshee-data/heatgrid/internal/grid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFrame(t *testing.T, width, height int, set func(g *grid.Grid)) grid.Frame {
	t.Helper()
	g, err := grid.New(width, height)
	require.NoError(t, err)
	if set != nil {
		set(g)
	}
	return g.Capture()
}

func TestRegistryFactory_PreservesOrder(t *testing.T) {
	factories, err := SpacesByName([]string{"Mean", "constant"}, SpaceOptions{ConstantTemperature: 25})
	require.NoError(t, err)

	e, err := NewRegistryFactory(factories...)(3, 2)
	require.NoError(t, err)
	defer e.Close()

	n, err := e.SpaceCount()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	name0, err := e.SpaceName(0)
	require.NoError(t, err)
	name1, err := e.SpaceName(1)
	require.NoError(t, err)
	assert.Equal(t, []string{"Mean", "Constant"}, []string{name0, name1})
}

func TestSpacesByName_Unknown(t *testing.T) {
	_, err := SpacesByName([]string{"mean", "sor"}, SpaceOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"sor"`)
}

func TestRegistry_RegisterRejectsDuplicates(t *testing.T) {
	r, err := NewRegistry(2, 2)
	require.NoError(t, err)

	require.NoError(t, r.Register(MeanSpace{}))
	assert.Error(t, r.Register(MeanSpace{}))
}

func TestRegistry_UnregisterShrinksCount(t *testing.T) {
	r, err := NewRegistry(2, 2)
	require.NoError(t, err)
	require.NoError(t, r.Register(&ConstantSpace{Value: 1}))
	require.NoError(t, r.Register(MeanSpace{}))

	require.NoError(t, r.Unregister("Constant"))
	assert.Equal(t, []string{"Mean"}, r.Names())

	_, err = r.SpaceName(1)
	assert.ErrorIs(t, err, ErrSpaceNotFound)
	assert.ErrorIs(t, r.Unregister("Constant"), ErrSpaceNotFound)
}

func TestRegistry_SetPointMirrors(t *testing.T) {
	r, err := NewRegistry(3, 3)
	require.NoError(t, err)

	require.NoError(t, r.SetPoint(1, 1, grid.Point{Temperature: 12, Kind: grid.GroundTruth}))
	assert.ErrorIs(t, r.SetPoint(3, 0, grid.Point{}), grid.ErrInvalidCoordinate)

	mirror, err := r.Mirror()
	require.NoError(t, err)
	assert.Equal(t, grid.Point{Temperature: 12, Kind: grid.GroundTruth}, mirror.At(1, 1))
}

func TestRegistry_SolveChecksBuffers(t *testing.T) {
	r, err := NewRegistry(2, 2)
	require.NoError(t, err)
	require.NoError(t, r.Register(&ConstantSpace{Value: 3}))

	_, err = r.Solve(0, newFrame(t, 3, 2, nil), make([]float32, 6))
	assert.Error(t, err)

	_, err = r.Solve(0, newFrame(t, 2, 2, nil), make([]float32, 3))
	assert.Error(t, err)

	out := make([]float32, 4)
	code, err := r.Solve(0, newFrame(t, 2, 2, nil), out)
	require.NoError(t, err)
	assert.Equal(t, Success, code)
	assert.Equal(t, []float32{3, 3, 3, 3}, out)
}

func TestRegistry_ClosedRejectsEverything(t *testing.T) {
	r, err := NewRegistry(2, 2)
	require.NoError(t, err)
	require.NoError(t, r.Register(MeanSpace{}))
	require.NoError(t, r.Close())

	_, err = r.SpaceCount()
	assert.ErrorIs(t, err, ErrClosed)
	_, err = r.SpaceName(0)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = r.Solve(0, newFrame(t, 2, 2, nil), make([]float32, 4))
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, r.SetPoint(0, 0, grid.Point{}), ErrClosed)
	assert.ErrorIs(t, r.Register(MeanSpace{}), ErrClosed)
	assert.ErrorIs(t, r.Close(), ErrClosed)
	assert.Equal(t, unknownError, r.ErrorMessage(0, 1))
}

func TestMeanSpace(t *testing.T) {
	t.Run("fills ground truth with boundary mean", func(t *testing.T) {
		f := newFrame(t, 3, 1, func(g *grid.Grid) {
			require.NoError(t, g.Set(0, 0, grid.Point{Temperature: 20, Kind: grid.Boundary}))
			require.NoError(t, g.Set(1, 0, grid.Point{Temperature: 99, Kind: grid.GroundTruth}))
			require.NoError(t, g.Set(2, 0, grid.Point{Temperature: 30, Kind: grid.Boundary}))
		})
		out := make([]float32, 3)
		assert.Equal(t, Success, MeanSpace{}.Solve(f, out))
		assert.Equal(t, []float32{20, 25, 30}, out)
	})

	t.Run("ignores NaN boundary readings", func(t *testing.T) {
		f := newFrame(t, 2, 1, func(g *grid.Grid) {
			require.NoError(t, g.Set(0, 0, grid.Point{Temperature: float32(math.NaN()), Kind: grid.Boundary}))
			require.NoError(t, g.Set(1, 0, grid.Point{Temperature: 1, Kind: grid.GroundTruth}))
		})
		out := make([]float32, 2)
		code := MeanSpace{}.Solve(f, out)
		assert.Equal(t, MeanInsufficientBoundary, code)
		assert.Equal(t, "Insufficient boundary condition", MeanSpace{}.ErrorMessage(code))
	})
}
