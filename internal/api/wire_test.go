package api

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/heatgrid/internal/grid"
)

func TestTemperatureJSON(t *testing.T) {
	b, err := json.Marshal([]Temperature{1.5, Temperature(math.NaN()), Temperature(math.Inf(-1)), 0})
	require.NoError(t, err)
	assert.Equal(t, `[1.5,null,null,0]`, string(b))

	var got []Temperature
	require.NoError(t, json.Unmarshal([]byte(`[2.25,null]`), &got))
	require.Len(t, got, 2)
	assert.Equal(t, Temperature(2.25), got[0])
	assert.True(t, math.IsNaN(float64(got[1])))
}

func TestRecordRequestReading(t *testing.T) {
	var req RecordRequest
	require.NoError(t, json.Unmarshal([]byte(`{"x":2,"y":1,"temp":null,"type":"GroundTruth"}`), &req))

	x, y, temp, kind, err := req.reading()
	require.NoError(t, err)
	assert.Equal(t, 2, x)
	assert.Equal(t, 1, y)
	assert.True(t, math.IsNaN(float64(temp)))
	assert.Equal(t, grid.GroundTruth, kind)
}
