package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/banshee-data/heatgrid/internal/evaluate"
	"github.com/banshee-data/heatgrid/internal/grid"
	"github.com/banshee-data/heatgrid/internal/httputil"
	"github.com/banshee-data/heatgrid/internal/render"
	"github.com/banshee-data/heatgrid/internal/sensor"
	"github.com/banshee-data/heatgrid/internal/sim"
	"github.com/banshee-data/heatgrid/internal/version"
)

// writeError maps orchestrator and input errors to HTTP responses.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, errBadPayload),
		errors.Is(err, grid.ErrInvalidCoordinate),
		errors.Is(err, grid.ErrInvalidKind):
		httputil.BadRequest(w, err.Error())
	case errors.Is(err, sim.ErrClosed):
		httputil.ServiceUnavailable(w, err.Error())
	default:
		s.logf("%s %s failed: %v", r.Method, r.URL.Path, err)
		httputil.InternalServerError(w, err.Error())
	}
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodPost:
		if err := s.record(w, r); err != nil {
			if id := r.Header.Get(sensor.SensorIDHeader); id != "" {
				s.logf("rejected reading from sensor %s: %v", id, err)
			}
			s.writeError(w, r, err)
			return
		}
	default:
		httputil.MethodNotAllowed(w)
		return
	}

	snap, err := s.orch.Snapshot()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteJSONOK(w, NewStateResponse(snap))
}

func (s *Server) record(w http.ResponseWriter, r *http.Request) error {
	var req RecordRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRecordBody)).Decode(&req); err != nil {
		return fmt.Errorf("%w: %v", errBadPayload, err)
	}
	x, y, temperature, kind, err := req.reading()
	if err != nil {
		return err
	}
	return s.orch.Record(x, y, temperature, kind)
}

func (s *Server) showVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, version.Current())
}

type configResponse struct {
	Width  int      `json:"width"`
	Height int      `json:"height"`
	Spaces []string `json:"spaces"`
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	width, height := s.orch.Dimensions()
	spaces := s.spaces
	if spaces == nil {
		spaces = []string{}
	}
	httputil.WriteJSONOK(w, configResponse{Width: width, Height: height, Spaces: spaces})
}

func (s *Server) showEvaluation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	snap, err := s.orch.Snapshot()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteJSONOK(w, evaluate.Snapshot(snap))
}

// heatmapPNG renders the input grid, or with ?space=N the field of space N.
func (s *Server) heatmapPNG(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	index := -1
	if v := r.URL.Query().Get("space"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			httputil.BadRequest(w, fmt.Sprintf("invalid space index %q", v))
			return
		}
		index = n
	}

	snap, err := s.orch.Snapshot()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	field := render.InputField(snap.Frame)
	if index >= 0 {
		if index >= len(snap.Results) {
			httputil.NotFound(w, fmt.Sprintf("space %d not found (%d spaces)", index, len(snap.Results)))
			return
		}
		res := snap.Results[index]
		f, ok := render.ResultField(snap.Frame, res)
		if !ok {
			failure, _ := res.Failure()
			httputil.WriteJSONError(w, http.StatusUnprocessableEntity,
				fmt.Sprintf("space %d (%s) failed: %s (code %d)", index, res.Name(), failure.Message, failure.Code))
			return
		}
		field = f
	}

	var buf bytes.Buffer
	if err := render.HeatmapPNG(&buf, field, render.DefaultPNGWidth, render.DefaultPNGHeight); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render heat map: %v", err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) charts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	snap, err := s.orch.Snapshot()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := render.Dashboard(&buf, snap, s.dashboard); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render charts: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
