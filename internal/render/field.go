// Package render draws grid and space fields as heat maps: PNG images via
// gonum/plot and an interactive HTML dashboard via go-echarts.
package render

import (
	"fmt"
	"math"

	"github.com/banshee-data/heatgrid/internal/grid"
	"github.com/banshee-data/heatgrid/internal/sim"
)

// Field is a row-major width x height scalar field with a title.
type Field struct {
	Title  string
	Width  int
	Height int
	Values []float32
}

// InputField returns the recorded temperatures of f.
func InputField(f grid.Frame) Field {
	values := make([]float32, len(f.Points))
	for i, p := range f.Points {
		values[i] = p.Temperature
	}
	return Field{
		Title:  fmt.Sprintf("Input (generation %d)", f.Generation),
		Width:  f.Width,
		Height: f.Height,
		Values: values,
	}
}

// ResultField returns the field produced by a successful space. It reports
// false for failed spaces.
func ResultField(f grid.Frame, res sim.SpaceResult) (Field, bool) {
	values, ok := res.Field()
	if !ok {
		return Field{}, false
	}
	return Field{
		Title:  fmt.Sprintf("%s (generation %d)", res.Name(), f.Generation),
		Width:  f.Width,
		Height: f.Height,
		Values: values,
	}, true
}

func (f Field) at(x, y int) float64 {
	i := y*f.Width + x
	if i < 0 || i >= len(f.Values) {
		return math.NaN()
	}
	v := float64(f.Values[i])
	if math.IsInf(v, 0) {
		return math.NaN()
	}
	return v
}

// Range returns the minimum and maximum finite values. An empty or all-NaN
// field yields (0, 1); a flat field is widened by one so colour scales stay
// well defined.
func (f Field) Range() (min, max float64) {
	min, max = math.Inf(1), math.Inf(-1)
	for _, v := range f.Values {
		z := float64(v)
		if math.IsNaN(z) || math.IsInf(z, 0) {
			continue
		}
		min = math.Min(min, z)
		max = math.Max(max, z)
	}
	switch {
	case math.IsInf(min, 1):
		return 0, 1
	case min == max:
		return min, min + 1
	}
	return min, max
}
