// Package api serves the heatgrid HTTP interface: the /state endpoint used by
// sensors and the browser UI, plus rendering, evaluation and debug routes.
package api

import (
	"embed"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/heatgrid/internal/engine"
	"github.com/banshee-data/heatgrid/internal/grid"
	"github.com/banshee-data/heatgrid/internal/monitoring"
	"github.com/banshee-data/heatgrid/internal/render"
	"github.com/banshee-data/heatgrid/internal/sim"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// maxRecordBody bounds the size of a POST /state body.
const maxRecordBody = 64 * 1024

//go:embed static/*
var staticFS embed.FS

// Orchestrator is the part of *sim.Orchestrator the server needs.
type Orchestrator interface {
	Record(x, y int, temperature float32, kind grid.Kind) error
	Snapshot() (*sim.Snapshot, error)
	Dimensions() (width, height int)
}

// EngineInspector exposes engine internals on the debug pages. The
// in-process *engine.Registry implements it.
type EngineInspector interface {
	Names() []string
	Mirror() (grid.Frame, error)
}

// SpaceController adds and removes spaces while the server runs. The
// in-process *engine.Registry implements it.
type SpaceController interface {
	Names() []string
	Register(s engine.Space) error
	Unregister(name string) error
}

// Server handles HTTP requests for one orchestrator.
type Server struct {
	orch         Orchestrator
	spaces       []string
	inspector    EngineInspector
	controller   SpaceController
	spaceOptions engine.SpaceOptions
	dashboard render.DashboardOptions
	logf      monitoring.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithSpaceNames records the configured space names reported by /api/config.
func WithSpaceNames(names []string) Option {
	return func(s *Server) { s.spaces = append([]string(nil), names...) }
}

// WithEngineInspector enables the engine debug pages.
func WithEngineInspector(i EngineInspector) Option {
	return func(s *Server) { s.inspector = i }
}

// WithSpaceController enables /debug/engine-spaces, which adds built-in
// spaces (configured with opts) or removes spaces at runtime.
func WithSpaceController(c SpaceController, opts engine.SpaceOptions) Option {
	return func(s *Server) {
		s.controller = c
		s.spaceOptions = opts
	}
}

// WithDashboardOptions configures the /charts page.
func WithDashboardOptions(o render.DashboardOptions) Option {
	return func(s *Server) { s.dashboard = o }
}

// WithLogger replaces the server's logger.
func WithLogger(logf monitoring.Logger) Option {
	return func(s *Server) { s.logf = logf }
}

// NewServer creates a Server for o.
func NewServer(o Orchestrator, opts ...Option) *Server {
	s := &Server{
		orch: o,
		logf: monitoring.Prefixed("api"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logf == nil {
		s.logf = func(string, ...interface{}) {}
	}
	return s
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// ServeMux returns the public routes. Debug routes are attached separately
// with AttachAdminRoutes.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/state", s.handleState)
	mux.HandleFunc("/api/state", s.handleState)
	mux.HandleFunc("/api/version", s.showVersion)
	mux.HandleFunc("/api/config", s.showConfig)
	mux.HandleFunc("/api/evaluation", s.showEvaluation)
	mux.HandleFunc("/api/heatmap.png", s.heatmapPNG)
	mux.HandleFunc("/charts", s.charts)
	mux.HandleFunc("/", s.staticFile)
	return mux
}
