package sensor

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/banshee-data/heatgrid/internal/grid"
)

// ParseReading parses one line printed by the thermometer. Anything that is
// not a number yields NaN; the server stores NaN readings as-is.
func ParseReading(line string) float32 {
	v, err := strconv.ParseFloat(strings.TrimSpace(line), 32)
	if err != nil {
		return float32(math.NaN())
	}
	return float32(v)
}

// Reading is the body of POST /state.
type Reading struct {
	X           int
	Y           int
	Temperature float32
	Kind        grid.Kind
}

type readingJSON struct {
	X    int       `json:"x"`
	Y    int       `json:"y"`
	Temp *float32  `json:"temp"`
	Type grid.Kind `json:"type"`
}

// MarshalJSON encodes a non-finite temperature as null.
func (r Reading) MarshalJSON() ([]byte, error) {
	out := readingJSON{X: r.X, Y: r.Y, Type: r.Kind}
	if !math.IsNaN(float64(r.Temperature)) && !math.IsInf(float64(r.Temperature), 0) {
		t := r.Temperature
		out.Temp = &t
	}
	return json.Marshal(out)
}
