package main

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/heatgrid/internal/config"
	"github.com/banshee-data/heatgrid/internal/testutil"
)

// setFlags overrides the flag variables for one test.
func setFlags(t *testing.T, w, h int, addr, names string) {
	t.Helper()
	oldW, oldH, oldListen, oldSpaces := *width, *height, *listen, *spaces
	*width, *height, *listen, *spaces = w, h, addr, names
	t.Cleanup(func() {
		*width, *height, *listen, *spaces = oldW, oldH, oldListen, oldSpaces
	})
}

func TestBuildConfig_Defaults(t *testing.T) {
	setFlags(t, 0, 0, "", "")

	cfg, err := buildConfig("", nil)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultWidth, cfg.GetWidth())
	assert.Equal(t, config.DefaultHeight, cfg.GetHeight())
	assert.Equal(t, config.DefaultListen, cfg.GetListen())
	assert.Equal(t, config.DefaultSpaces, cfg.GetSpaces())
}

func TestBuildConfig_Precedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heatgrid.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"width": 8, "height": 6, "listen": ":9000", "spaces": ["mean"]}`), 0o644))

	setFlags(t, 0, 0, "", "")
	cfg, err := buildConfig(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.GetWidth())
	assert.Equal(t, ":9000", cfg.GetListen())

	setFlags(t, 0, 4, ":7000", "constant,mean")
	cfg, err = buildConfig(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.GetWidth(), "width kept from file")
	assert.Equal(t, 4, cfg.GetHeight())
	assert.Equal(t, ":7000", cfg.GetListen())
	assert.Equal(t, []string{"constant", "mean"}, cfg.GetSpaces())

	cfg, err = buildConfig(path, []string{"3", "2"})
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.GetWidth(), "positional arguments win")
	assert.Equal(t, 2, cfg.GetHeight())
}

func TestBuildConfig_Errors(t *testing.T) {
	setFlags(t, 0, 0, "", "")

	_, err := buildConfig("", []string{"3"})
	assert.Error(t, err)

	_, err = buildConfig("", []string{"three", "2"})
	assert.Error(t, err)

	_, err = buildConfig("", []string{"0", "2"})
	assert.Error(t, err)

	setFlags(t, 0, 0, "", "montecarlo")
	_, err = buildConfig("", nil)
	assert.Error(t, err)
}

func TestNewOrchestratorAndHandler(t *testing.T) {
	setFlags(t, 0, 0, "", "")
	cfg, err := buildConfig("", []string{"3", "2"})
	require.NoError(t, err)

	orch, registry, err := newOrchestrator(cfg)
	require.NoError(t, err)
	defer orch.Close()
	assert.Equal(t, []string{"Constant", "Mean"}, registry.Names())

	h := newHandler(orch, registry, cfg)
	w := testutil.Serve(h, testutil.NewJSONRequest(http.MethodPost, "/state", `{"x":1,"y":1,"temp":21,"type":"Boundary"}`))
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)

	var state struct {
		Generation uint64 `json:"generation"`
		Results    []struct {
			Name      string `json:"name"`
			ErrorCode uint32 `json:"errorCode"`
		} `json:"results"`
	}
	testutil.DecodeJSON(t, w, &state)
	assert.Equal(t, uint64(1), state.Generation)
	require.Len(t, state.Results, 2)
	assert.Equal(t, "Mean", state.Results[1].Name)
	assert.Equal(t, uint32(0), state.Results[1].ErrorCode)

	req := testutil.NewJSONRequest(http.MethodPost, "/debug/engine-spaces", "action=remove&space=constant")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.RemoteAddr = "127.0.0.1:12345"
	w = testutil.Serve(h, req)
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	assert.Equal(t, []string{"Mean"}, registry.Names())
}
