// Package evaluate scores each space's field against the ground-truth points
// of the grid it was solved from.
package evaluate

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/heatgrid/internal/grid"
	"github.com/banshee-data/heatgrid/internal/sim"
)

// SpaceScore is the evaluation of one space.
type SpaceScore struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
	// Evaluated is false when the space failed or there were no usable
	// ground-truth points.
	Evaluated bool `json:"evaluated"`
	ErrorCode uint32 `json:"errorCode"`
	// Samples is the number of ground-truth points compared.
	Samples int `json:"samples"`
	// Skipped counts ground-truth points whose reading or field value was
	// not finite.
	Skipped     int     `json:"skipped"`
	RMSE        float64 `json:"rmse"`
	MAE         float64 `json:"mae"`
	MaxAbsError float64 `json:"maxAbsError"`
	Bias        float64 `json:"bias"`
}

// Report is the evaluation of a whole snapshot.
type Report struct {
	Generation  uint64       `json:"generation"`
	GroundTruth int          `json:"groundTruth"`
	Spaces      []SpaceScore `json:"spaces"`
	// BestIndex is the index of the space with the lowest RMSE, nil when no
	// space could be evaluated.
	BestIndex *int `json:"best"`
}

// Best returns the evaluated space with the lowest RMSE.
func (r *Report) Best() (SpaceScore, bool) {
	var (
		best  SpaceScore
		found bool
	)
	for _, s := range r.Spaces {
		if !s.Evaluated {
			continue
		}
		if !found || s.RMSE < best.RMSE {
			best, found = s, true
		}
	}
	return best, found
}

// Snapshot scores every result in snap.
func Snapshot(snap *sim.Snapshot) *Report {
	truthIdx := groundTruth(snap.Frame)
	report := &Report{
		Generation:  snap.Generation(),
		GroundTruth: len(truthIdx),
		Spaces:      make([]SpaceScore, 0, len(snap.Results)),
	}
	for _, res := range snap.Results {
		report.Spaces = append(report.Spaces, score(snap.Frame, truthIdx, res))
	}
	if best, ok := report.Best(); ok {
		idx := best.Index
		report.BestIndex = &idx
	}
	return report
}

func groundTruth(f grid.Frame) []int {
	var idx []int
	for i, p := range f.Points {
		if p.Kind == grid.GroundTruth {
			idx = append(idx, i)
		}
	}
	return idx
}

func finite(v float32) bool {
	return !math.IsNaN(float64(v)) && !math.IsInf(float64(v), 0)
}

func score(f grid.Frame, truthIdx []int, res sim.SpaceResult) SpaceScore {
	s := SpaceScore{Index: res.Index(), Name: res.Name(), ErrorCode: uint32(res.Code())}
	field, ok := res.Field()
	if !ok {
		return s
	}

	predicted := make([]float64, 0, len(truthIdx))
	observed := make([]float64, 0, len(truthIdx))
	for _, i := range truthIdx {
		if i >= len(field) || !finite(field[i]) || !finite(f.Points[i].Temperature) {
			s.Skipped++
			continue
		}
		predicted = append(predicted, float64(field[i]))
		observed = append(observed, float64(f.Points[i].Temperature))
	}
	s.Samples = len(predicted)
	if s.Samples == 0 {
		return s
	}

	residual := make([]float64, s.Samples)
	floats.SubTo(residual, predicted, observed)
	s.Bias = stat.Mean(residual, nil)
	s.RMSE = floats.Norm(residual, 2) / math.Sqrt(float64(s.Samples))

	abs := make([]float64, s.Samples)
	for i, r := range residual {
		abs[i] = math.Abs(r)
	}
	s.MAE = stat.Mean(abs, nil)
	s.MaxAbsError = floats.Max(abs)
	s.Evaluated = true
	return s
}
