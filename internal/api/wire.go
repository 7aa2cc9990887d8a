package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/heatgrid/internal/grid"
	"github.com/banshee-data/heatgrid/internal/sim"
)

// Temperature is a float32 whose non-finite values travel as JSON null.
type Temperature float32

// MarshalJSON encodes NaN and ±Inf as null.
func (t Temperature) MarshalJSON() ([]byte, error) {
	f := float64(t)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(float32(t))
}

// UnmarshalJSON decodes null as NaN.
func (t *Temperature) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*t = Temperature(math.NaN())
		return nil
	}
	var f float32
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*t = Temperature(f)
	return nil
}

// GridInfo is the recorded grid, row-major: Temp[y][x].
type GridInfo struct {
	Temp [][]Temperature `json:"temp"`
	Type [][]grid.Kind   `json:"type"`
}

// SpaceResult is one space's entry in a StateResponse. Successful spaces
// carry Temp; failed ones carry ErrorMessage.
type SpaceResult struct {
	Index        int             `json:"index"`
	Name         string          `json:"name"`
	ErrorCode    uint32          `json:"errorCode"`
	ErrorMessage *string         `json:"errorMessage,omitempty"`
	Temp         [][]Temperature `json:"temp,omitempty"`
}

// StateResponse is the body of GET and POST /state.
type StateResponse struct {
	Width      int           `json:"width"`
	Height     int           `json:"height"`
	Generation uint64        `json:"generation"`
	Info       GridInfo      `json:"info"`
	Results    []SpaceResult `json:"results"`
}

func temperatureRows(width, height int, values []float32) [][]Temperature {
	return grid.Rows(width, height, func(i int) Temperature { return Temperature(values[i]) })
}

// NewStateResponse converts a snapshot to its wire form.
func NewStateResponse(snap *sim.Snapshot) StateResponse {
	f := snap.Frame
	resp := StateResponse{
		Width:      f.Width,
		Height:     f.Height,
		Generation: f.Generation,
		Info: GridInfo{
			Temp: grid.Rows(f.Width, f.Height, func(i int) Temperature { return Temperature(f.Points[i].Temperature) }),
			Type: f.Kinds(),
		},
		Results: make([]SpaceResult, 0, len(snap.Results)),
	}
	for _, res := range snap.Results {
		out := SpaceResult{Index: res.Index(), Name: res.Name(), ErrorCode: uint32(res.Code())}
		if field, ok := res.Field(); ok {
			out.Temp = temperatureRows(f.Width, f.Height, field)
		} else if failure, ok := res.Failure(); ok {
			msg := failure.Message
			out.ErrorMessage = &msg
		}
		resp.Results = append(resp.Results, out)
	}
	return resp
}

// errBadPayload marks a malformed POST /state body.
var errBadPayload = errors.New("invalid payload")

// RecordRequest is the body of POST /state. temp may be null (NaN).
type RecordRequest struct {
	X    *int            `json:"x"`
	Y    *int            `json:"y"`
	Temp json.RawMessage `json:"temp"`
	Type *grid.Kind      `json:"type"`
}

// reading validates the request and returns its fields.
func (r RecordRequest) reading() (x, y int, temperature float32, kind grid.Kind, err error) {
	switch {
	case r.X == nil:
		return 0, 0, 0, 0, fmt.Errorf("%w: missing x", errBadPayload)
	case r.Y == nil:
		return 0, 0, 0, 0, fmt.Errorf("%w: missing y", errBadPayload)
	case len(r.Temp) == 0:
		return 0, 0, 0, 0, fmt.Errorf("%w: missing temp", errBadPayload)
	case r.Type == nil:
		return 0, 0, 0, 0, fmt.Errorf("%w: missing type", errBadPayload)
	}
	var t Temperature
	if err := t.UnmarshalJSON(r.Temp); err != nil {
		return 0, 0, 0, 0, fmt.Errorf("%w: temp: %v", errBadPayload, err)
	}
	return *r.X, *r.Y, float32(t), *r.Type, nil
}
