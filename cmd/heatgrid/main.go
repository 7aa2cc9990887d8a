// Command heatgrid serves the temperature grid: sensors POST readings to
// /state and every configured space is solved against the recorded grid.
//
// Usage:
//
//	heatgrid [-config heatgrid.json] [-listen :8080] [-spaces constant,mean] [<width> <height>]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/heatgrid/internal/api"
	"github.com/banshee-data/heatgrid/internal/config"
	"github.com/banshee-data/heatgrid/internal/engine"
	"github.com/banshee-data/heatgrid/internal/sim"
	"github.com/banshee-data/heatgrid/internal/version"
)

var (
	configPath = flag.String("config", "", "Path to a JSON config file")
	listen     = flag.String("listen", "", "Listen address (default "+config.DefaultListen+")")
	width      = flag.Int("width", 0, "Grid width (overrides config)")
	height     = flag.Int("height", 0, "Grid height (overrides config)")
	spaces     = flag.String("spaces", "", "Comma-separated space names, in order (overrides config)")
	sequential = flag.Bool("sequential", false, "Solve spaces one at a time")
	versionFlg = flag.Bool("version", false, "Print version and exit")
)

// shutdownTimeout bounds how long in-flight requests may take after a signal.
const shutdownTimeout = 5 * time.Second

// buildConfig merges the config file, flags and positional <width> <height>.
// Later sources win.
func buildConfig(path string, args []string) (*config.ServerConfig, error) {
	cfg := &config.ServerConfig{}
	if path != "" {
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if *width != 0 || *height != 0 {
		w, h := cfg.GetWidth(), cfg.GetHeight()
		if *width != 0 {
			w = *width
		}
		if *height != 0 {
			h = *height
		}
		cfg.SetDimensions(w, h)
	}

	switch len(args) {
	case 0:
	case 2:
		w, err := strconv.Atoi(args[0])
		if err != nil {
			return nil, fmt.Errorf("invalid width %q: %w", args[0], err)
		}
		h, err := strconv.Atoi(args[1])
		if err != nil {
			return nil, fmt.Errorf("invalid height %q: %w", args[1], err)
		}
		cfg.SetDimensions(w, h)
	default:
		return nil, fmt.Errorf("expected <width> <height>, got %d arguments", len(args))
	}

	if *listen != "" {
		cfg.SetListen(*listen)
	}
	if *spaces != "" {
		cfg.Spaces = strings.Split(*spaces, ",")
	}
	if *sequential {
		on := true
		cfg.SequentialSolve = &on
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newOrchestrator builds the in-process engine registry and the orchestrator
// driving it. The registry is returned for the debug pages.
func newOrchestrator(cfg *config.ServerConfig) (*sim.Orchestrator, *engine.Registry, error) {
	factories, err := cfg.SpaceFactories()
	if err != nil {
		return nil, nil, err
	}

	var registry *engine.Registry
	factory := func(w, h int) (engine.Engine, error) {
		r, err := engine.NewRegistryWith(w, h, factories...)
		if err != nil {
			return nil, err
		}
		registry = r
		return r, nil
	}

	opts := []sim.Option{}
	if cfg.GetSequentialSolve() {
		opts = append(opts, sim.WithSequentialSolve())
	}
	orch, err := sim.New(cfg.GetWidth(), cfg.GetHeight(), factory, opts...)
	if err != nil {
		return nil, nil, err
	}
	return orch, registry, nil
}

// newHandler mounts the API, debug pages and request logging.
func newHandler(orch *sim.Orchestrator, registry *engine.Registry, cfg *config.ServerConfig) http.Handler {
	server := api.NewServer(orch,
		api.WithSpaceNames(cfg.GetSpaces()),
		api.WithEngineInspector(registry),
		api.WithSpaceController(registry, cfg.SpaceOptions()),
	)
	mux := server.ServeMux()
	server.AttachAdminRoutes(mux)
	return api.LoggingMiddleware(mux)
}

func main() {
	flag.Parse()

	if *versionFlg {
		fmt.Printf("heatgrid %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	cfg, err := buildConfig(*configPath, flag.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "heatgrid: %v\n\n", err)
		flag.Usage()
		os.Exit(2)
	}

	orch, registry, err := newOrchestrator(cfg)
	if err != nil {
		log.Fatalf("failed to start orchestrator: %v", err)
	}
	log.Printf("heatgrid %s: %dx%d grid, spaces %s", version.Version, cfg.GetWidth(), cfg.GetHeight(), strings.Join(registry.Names(), ", "))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := &http.Server{
		Addr:              cfg.GetListen(),
		Handler:           newHandler(orch, registry, cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Printf("listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("HTTP server error: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		if err := server.Close(); err != nil {
			log.Printf("HTTP server force close error: %v", err)
		}
	}
	wg.Wait()

	// Close waits for any snapshot still running on a forcibly closed
	// connection before releasing the engine.
	if err := orch.Close(); err != nil {
		log.Printf("failed to close orchestrator: %v", err)
	}
	log.Printf("Graceful shutdown complete")
}
