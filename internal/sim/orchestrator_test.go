package sim

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/heatgrid/internal/engine"
	"github.com/banshee-data/heatgrid/internal/grid"
)

func newTestOrchestrator(t *testing.T, width, height int, e *stubEngine, opts ...Option) *Orchestrator {
	t.Helper()
	opts = append([]Option{WithLogger(nil)}, opts...)
	o, err := New(width, height, e.factory(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = o.Close() })
	return o
}

func TestNew_FactoryCalledOnce(t *testing.T) {
	calls := 0
	var gotW, gotH int
	factory := func(w, h int) (engine.Engine, error) {
		calls++
		gotW, gotH = w, h
		return newStubEngine(), nil
	}

	o, err := New(5, 4, factory, WithLogger(nil))
	require.NoError(t, err)
	defer o.Close()

	assert.Equal(t, 1, calls)
	assert.Equal(t, 5, gotW)
	assert.Equal(t, 4, gotH)
	w, h := o.Dimensions()
	assert.Equal(t, [2]int{5, 4}, [2]int{w, h})
	assert.Equal(t, Ready, o.State())
}

func TestNew_FactoryFailure(t *testing.T) {
	boom := errors.New("no solver library")
	_, err := New(2, 2, func(int, int) (engine.Engine, error) { return nil, boom })
	assert.ErrorIs(t, err, ErrEngineCreate)
	assert.ErrorIs(t, err, boom)

	_, err = New(2, 2, nil)
	assert.ErrorIs(t, err, ErrEngineCreate)

	_, err = New(0, 2, newStubEngine().factory())
	assert.ErrorIs(t, err, grid.ErrInvalidDimensions)
}

func TestRecord_ThenSnapshotReflectsWrite(t *testing.T) {
	e := newStubEngine(constantSpace("c", 1))
	o := newTestOrchestrator(t, 4, 3, e)

	require.NoError(t, o.Record(3, 2, 42.5, grid.GroundTruth))
	require.NoError(t, o.Record(1, 0, 7, grid.Boundary))
	require.NoError(t, o.Record(1, 0, 8, grid.OutOfRange))

	snap, err := o.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, grid.Point{Temperature: 42.5, Kind: grid.GroundTruth}, snap.Frame.At(3, 2))
	assert.Equal(t, grid.Point{Temperature: 8, Kind: grid.OutOfRange}, snap.Frame.At(1, 0))
	assert.Equal(t, uint64(3), snap.Generation())
	assert.Equal(t, uint64(3), o.Generation())

	// Every accepted write is mirrored into the engine in order.
	assert.Equal(t, []grid.Point{
		{Temperature: 42.5, Kind: grid.GroundTruth},
		{Temperature: 7, Kind: grid.Boundary},
		{Temperature: 8, Kind: grid.OutOfRange},
	}, e.setPoints)
}

func TestRecord_AcceptsNaN(t *testing.T) {
	o := newTestOrchestrator(t, 2, 2, newStubEngine())

	require.NoError(t, o.Record(0, 1, float32(math.NaN()), grid.GroundTruth))

	snap, err := o.Snapshot()
	require.NoError(t, err)
	p := snap.Frame.At(0, 1)
	assert.True(t, math.IsNaN(float64(p.Temperature)))
	assert.Equal(t, grid.GroundTruth, p.Kind)
}

func TestRecord_OutOfBoundsLeavesGridUnchanged(t *testing.T) {
	e := newStubEngine(constantSpace("c", 1))
	o := newTestOrchestrator(t, 3, 2, e)
	require.NoError(t, o.Record(0, 0, 25, grid.Boundary))

	before, err := o.Snapshot()
	require.NoError(t, err)

	for _, c := range [][2]int{{3, 0}, {0, 2}, {-1, 1}, {2, -5}, {1 << 20, 0}} {
		err := o.Record(c[0], c[1], 99, grid.GroundTruth)
		assert.ErrorIs(t, err, grid.ErrInvalidCoordinate, "coordinate %v", c)
	}

	after, err := o.Snapshot()
	require.NoError(t, err)
	if diff := cmp.Diff(before.Frame, after.Frame); diff != "" {
		t.Errorf("grid changed after rejected writes (-before +after):\n%s", diff)
	}
	assert.Len(t, e.setPoints, 1, "rejected writes must not reach the engine")
}

func TestRecord_RejectsUndefinedKind(t *testing.T) {
	o := newTestOrchestrator(t, 2, 2, newStubEngine())
	err := o.Record(0, 0, 1, grid.Kind(42))
	assert.ErrorIs(t, err, grid.ErrInvalidKind)
	assert.Equal(t, uint64(0), o.Generation())
}

func TestSnapshot_IdempotentWithoutWrites(t *testing.T) {
	o := newTestOrchestrator(t, 3, 3, newStubEngine(averageSpace("avg"), constantSpace("c", 3)))
	require.NoError(t, o.Record(1, 1, 10, grid.Boundary))
	require.NoError(t, o.Record(2, 2, 20, grid.GroundTruth))

	first, err := o.Snapshot()
	require.NoError(t, err)
	second, err := o.Snapshot()
	require.NoError(t, err)

	if diff := cmp.Diff(first.Frame, second.Frame); diff != "" {
		t.Errorf("grid differs between snapshots (-first +second):\n%s", diff)
	}
	require.Len(t, second.Results, 2)
	for i := range first.Results {
		a, _ := first.Results[i].Field()
		b, _ := second.Results[i].Field()
		assert.Equal(t, a, b)
	}
}

func TestSnapshot_PartialFailure(t *testing.T) {
	for _, opts := range [][]Option{nil, {WithSequentialSolve()}} {
		e := newStubEngine(
			constantSpace("first", 1),
			failingSpace("broken", 7, "insufficient data"),
			constantSpace("third", 3),
		)
		o := newTestOrchestrator(t, 2, 2, e, opts...)

		snap, err := o.Snapshot()
		require.NoError(t, err)
		require.Len(t, snap.Results, 3)

		for i, r := range snap.Results {
			assert.Equal(t, i, r.Index())
		}

		failed := snap.Results[1]
		assert.False(t, failed.OK())
		assert.Equal(t, "broken", failed.Name())
		f, ok := failed.Failure()
		require.True(t, ok)
		assert.Equal(t, engine.ErrorCode(7), f.Code)
		assert.Equal(t, "insufficient data", f.Message)
		field, ok := failed.Field()
		assert.False(t, ok)
		assert.Nil(t, field)

		for _, i := range []int{0, 2} {
			field, ok := snap.Results[i].Field()
			require.True(t, ok, "space %d", i)
			assert.Len(t, field, 4)
			_, failedOK := snap.Results[i].Failure()
			assert.False(t, failedOK)
			assert.Equal(t, engine.Success, snap.Results[i].Code())
		}
	}
}

func TestSnapshot_EndToEnd(t *testing.T) {
	o := newTestOrchestrator(t, 3, 2, newStubEngine(averageSpace("average")))

	require.NoError(t, o.Record(0, 0, 25.0, grid.Boundary))
	require.NoError(t, o.Record(2, 1, 10.0, grid.GroundTruth))

	snap, err := o.Snapshot()
	require.NoError(t, err)

	wantTemps := [][]float32{{25, 0, 0}, {0, 0, 10}}
	wantKinds := [][]grid.Kind{
		{grid.Boundary, grid.OutOfRange, grid.OutOfRange},
		{grid.OutOfRange, grid.OutOfRange, grid.GroundTruth},
	}
	if diff := cmp.Diff(wantTemps, snap.Frame.Temperatures()); diff != "" {
		t.Errorf("temperatures mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(wantKinds, snap.Frame.Kinds()); diff != "" {
		t.Errorf("kinds mismatch (-want +got):\n%s", diff)
	}

	require.Len(t, snap.Results, 1)
	field, ok := snap.Results[0].Field()
	require.True(t, ok)
	assert.Equal(t, []float32{17.5, 17.5, 17.5, 17.5, 17.5, 17.5}, field)
}

func TestSnapshot_SpaceCountMayShrinkAndGrow(t *testing.T) {
	e := newStubEngine(constantSpace("a", 1), constantSpace("b", 2), constantSpace("c", 3))
	o := newTestOrchestrator(t, 2, 1, e)

	snap, err := o.Snapshot()
	require.NoError(t, err)
	assert.Len(t, snap.Results, 3)

	e.setSpaces(constantSpace("b", 2))
	snap, err = o.Snapshot()
	require.NoError(t, err)
	require.Len(t, snap.Results, 1)
	assert.Equal(t, "b", snap.Results[0].Name())

	e.setSpaces()
	snap, err = o.Snapshot()
	require.NoError(t, err)
	assert.Empty(t, snap.Results)

	e.setSpaces(constantSpace("x", 0), constantSpace("y", 0))
	snap, err = o.Snapshot()
	require.NoError(t, err)
	assert.Len(t, snap.Results, 2)
}

func TestSnapshot_EngineFatalErrors(t *testing.T) {
	t.Run("count unreachable", func(t *testing.T) {
		e := newStubEngine(constantSpace("a", 1))
		e.countErr = errors.New("connection refused")
		o := newTestOrchestrator(t, 2, 2, e)

		_, err := o.Snapshot()
		assert.ErrorIs(t, err, ErrEngine)
	})

	t.Run("counted space cannot be named", func(t *testing.T) {
		e := newStubEngine(constantSpace("a", 1))
		e.nameErr = engine.ErrSpaceNotFound
		o := newTestOrchestrator(t, 2, 2, e)

		_, err := o.Snapshot()
		assert.ErrorIs(t, err, ErrInconsistentSpaces)
	})

	t.Run("space vanishes before solve", func(t *testing.T) {
		e := newStubEngine()
		vanishing := stubSpace{name: "v"}
		e.setSpaces(constantSpace("a", 1), vanishing)
		// Solving space 0 removes space 1 before it is solved.
		e.spaces[0].solve = func(input grid.Frame, out []float32) engine.ErrorCode {
			e.setSpaces(constantSpace("a", 1))
			return engine.Success
		}
		o := newTestOrchestrator(t, 2, 2, e, WithSequentialSolve())

		_, err := o.Snapshot()
		assert.ErrorIs(t, err, ErrInconsistentSpaces)
	})
}

// A record issued while a solve is in flight must not change the input the
// solve is working on, nor the grid embedded in that snapshot.
func TestSnapshot_InputStableDuringSolve(t *testing.T) {
	solving := make(chan struct{})
	release := make(chan struct{})
	var seen grid.Point

	e := newStubEngine(stubSpace{
		name: "slow",
		solve: func(input grid.Frame, out []float32) engine.ErrorCode {
			close(solving)
			<-release
			seen = input.At(2, 2)
			return engine.Success
		},
	})
	o := newTestOrchestrator(t, 4, 4, e)
	require.NoError(t, o.Record(2, 2, 1, grid.Boundary))

	type result struct {
		snap *Snapshot
		err  error
	}
	done := make(chan result, 1)
	go func() {
		s, err := o.Snapshot()
		done <- result{s, err}
	}()

	<-solving
	require.NoError(t, o.Record(2, 2, 2, grid.GroundTruth))
	close(release)

	r := <-done
	require.NoError(t, r.err)
	assert.Equal(t, grid.Point{Temperature: 1, Kind: grid.Boundary}, seen)
	assert.Equal(t, grid.Point{Temperature: 1, Kind: grid.Boundary}, r.snap.Frame.At(2, 2))
	assert.Equal(t, uint64(1), r.snap.Generation())
	assert.Equal(t, uint64(2), o.Generation())
}

// Concurrent writers to one coordinate must never leave a snapshot holding
// the temperature of one write with the kind of another.
func TestSnapshot_NoTornPoints(t *testing.T) {
	o := newTestOrchestrator(t, 4, 4, newStubEngine(constantSpace("c", 0)))

	valid := map[grid.Point]bool{
		grid.DefaultPoint: true,
		{Temperature: 1, Kind: grid.Boundary}:    true,
		{Temperature: 2, Kind: grid.GroundTruth}: true,
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; ; i++ {
				select {
				case <-stop:
					return
				default:
				}
				var err error
				if (i+w)%2 == 0 {
					err = o.Record(2, 2, 1, grid.Boundary)
				} else {
					err = o.Record(2, 2, 2, grid.GroundTruth)
				}
				if err != nil {
					t.Errorf("Record: %v", err)
					return
				}
			}
		}(w)
	}

	for i := 0; i < 200; i++ {
		snap, err := o.Snapshot()
		require.NoError(t, err)
		p := snap.Frame.At(2, 2)
		if !valid[p] {
			t.Fatalf("torn point observed: %+v", p)
		}
	}
	close(stop)
	wg.Wait()
}

func TestClose_FailsFastAndReleasesOnce(t *testing.T) {
	e := newStubEngine(constantSpace("c", 1))
	o, err := New(2, 2, e.factory(), WithLogger(nil))
	require.NoError(t, err)

	require.NoError(t, o.Close())
	require.NoError(t, o.Close())
	assert.Equal(t, int32(1), e.closeCalls.Load())
	assert.Equal(t, Closed, o.State())

	assert.ErrorIs(t, o.Record(0, 0, 1, grid.Boundary), ErrClosed)
	_, err = o.Snapshot()
	assert.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, int32(0), e.touchedAfterClose.Load())
}

func TestClose_WaitsForInFlightSnapshot(t *testing.T) {
	solving := make(chan struct{})
	release := make(chan struct{})
	e := newStubEngine(stubSpace{
		name: "slow",
		solve: func(input grid.Frame, out []float32) engine.ErrorCode {
			close(solving)
			<-release
			return engine.Success
		},
	})
	o, err := New(2, 2, e.factory(), WithLogger(nil))
	require.NoError(t, err)

	snapErr := make(chan error, 1)
	go func() {
		_, err := o.Snapshot()
		snapErr <- err
	}()
	<-solving

	closed := make(chan struct{})
	go func() {
		_ = o.Close()
		close(closed)
	}()

	select {
	case <-closed:
		t.Fatal("Close returned while a snapshot was in flight")
	case <-time.After(50 * time.Millisecond):
	}
	assert.False(t, e.closed.Load(), "engine released while in use")

	close(release)
	require.NoError(t, <-snapErr)
	<-closed
	assert.True(t, e.closed.Load())
	assert.Equal(t, int32(0), e.touchedAfterClose.Load())
}

func TestClose_ReportsEngineError(t *testing.T) {
	e := newStubEngine()
	e.closed.Store(true) // a second Close on the stub fails
	o, err := New(2, 2, e.factory(), WithLogger(nil))
	require.NoError(t, err)

	assert.Error(t, o.Close())
	assert.Equal(t, Closed, o.State())
}

func TestFailed_RejectsSuccessCode(t *testing.T) {
	assert.Panics(t, func() { Failed(0, "x", engine.Success, "") })
}

func TestSucceeded_NilFieldIsEmpty(t *testing.T) {
	r := Succeeded(0, "x", nil)
	field, ok := r.Field()
	assert.True(t, ok)
	assert.NotNil(t, field)
}

// scribbleSpace overwrites its input before producing a constant field.
func scribbleSpace(name string) stubSpace {
	return stubSpace{
		name: name,
		solve: func(input grid.Frame, out []float32) engine.ErrorCode {
			for i := range input.Points {
				input.Points[i] = grid.Point{Temperature: 999, Kind: grid.GroundTruth}
			}
			for i := range out {
				out[i] = 1
			}
			return engine.Success
		},
	}
}

func TestSnapshot_SpaceWritingInputDoesNotLeak(t *testing.T) {
	e := newStubEngine(scribbleSpace("Scribble"))
	o := newTestOrchestrator(t, 2, 2, e)
	require.NoError(t, o.Record(1, 1, 21, grid.Boundary))

	snap, err := o.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, grid.DefaultPoint, snap.Frame.At(0, 0))
	assert.Equal(t, grid.Point{Temperature: 21, Kind: grid.Boundary}, snap.Frame.At(1, 1))

	// the orchestrator's own grid is untouched too
	snap, err = o.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, grid.DefaultPoint, snap.Frame.At(0, 0))
	assert.Equal(t, uint64(1), snap.Frame.Generation)
}

func TestSnapshot_ConcurrentSpacesSeeOwnInput(t *testing.T) {
	e := newStubEngine(scribbleSpace("Scribble"), averageSpace("Average"), scribbleSpace("Scribble2"))
	o := newTestOrchestrator(t, 3, 3, e)
	require.NoError(t, o.Record(0, 0, 10, grid.Boundary))
	require.NoError(t, o.Record(2, 2, 20, grid.Boundary))

	for i := 0; i < 20; i++ {
		snap, err := o.Snapshot()
		require.NoError(t, err)
		require.Len(t, snap.Results, 3)

		field, ok := snap.Results[1].Field()
		require.True(t, ok)
		assert.Equal(t, float32(15), field[4], "average must only see recorded readings")
		assert.Equal(t, grid.DefaultPoint, snap.Frame.At(1, 1))
	}
}
