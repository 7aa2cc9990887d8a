package api

import (
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"text/tabwriter"

	"tailscale.com/tsweb"

	"github.com/banshee-data/heatgrid/internal/engine"
	"github.com/banshee-data/heatgrid/internal/grid"
	"github.com/banshee-data/heatgrid/internal/version"
)

// AttachAdminRoutes mounts the grid and engine debug pages under /debug/.
// tsweb restricts them to loopback and tailnet callers.
func (s *Server) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	debug.HandleFunc("grid", "recorded grid and per-space status", func(w http.ResponseWriter, r *http.Request) {
		snap, err := s.orch.Snapshot()
		if err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintf(w, "heatgrid %s generation %d\n\n", version.Version, snap.Generation())
		writeFrame(w, snap.Frame)
		fmt.Fprintln(w)
		for _, res := range snap.Results {
			if failure, ok := res.Failure(); ok {
				fmt.Fprintf(w, "space %d %-12s FAILED code=%d %s\n", res.Index(), res.Name(), failure.Code, failure.Message)
				continue
			}
			fmt.Fprintf(w, "space %d %-12s ok\n", res.Index(), res.Name())
		}
	})

	if s.controller != nil {
		debug.HandleSilentFunc("engine-spaces", s.editSpaces)
	}

	if s.inspector == nil {
		return
	}
	debug.HandleFunc("engine", "engine spaces and mirrored grid", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintf(w, "spaces: %s\n\n", strings.Join(s.inspector.Names(), ", "))
		mirror, err := s.inspector.Mirror()
		if err != nil {
			fmt.Fprintf(w, "mirror unavailable: %v\n", err)
			return
		}
		fmt.Fprintf(w, "mirror generation %d\n\n", mirror.Generation)
		writeFrame(w, mirror)
	})
}

// editSpaces handles POST action=add|remove space=<name>. Added spaces are
// built-in spaces appended after the current ones; removal shifts later
// spaces down one index from the next snapshot on.
func (s *Server) editSpaces(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	name := strings.TrimSpace(r.FormValue("space"))
	if name == "" {
		http.Error(w, "Missing space", http.StatusBadRequest)
		return
	}

	var err error
	switch action := r.FormValue("action"); action {
	case "add":
		err = s.addSpace(name)
	case "remove":
		err = s.controller.Unregister(s.registeredName(name))
	default:
		http.Error(w, fmt.Sprintf("Unknown action %q: expected add or remove", action), http.StatusBadRequest)
		return
	}
	if err != nil {
		status := http.StatusBadRequest
		switch {
		case errors.Is(err, engine.ErrClosed):
			status = http.StatusServiceUnavailable
		case errors.Is(err, engine.ErrSpaceNotFound):
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}

	names := s.controller.Names()
	s.logf("spaces changed via debug page: %s", strings.Join(names, ", "))
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "spaces: %s\n", strings.Join(names, ", "))
}

func (s *Server) addSpace(name string) error {
	factories, err := engine.SpacesByName([]string{name}, s.spaceOptions)
	if err != nil {
		return err
	}
	width, height := s.orch.Dimensions()
	space, err := factories[0](width, height)
	if err != nil {
		return err
	}
	return s.controller.Register(space)
}

// registeredName matches name against the registered spaces ignoring case,
// so the lower-case config names work too.
func (s *Server) registeredName(name string) string {
	for _, n := range s.controller.Names() {
		if strings.EqualFold(n, name) {
			return n
		}
	}
	return name
}

// writeFrame prints one tab-aligned row per grid row. Boundary cells are
// marked with *, out-of-range cells print as "."
func writeFrame(w io.Writer, f grid.Frame) {
	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', tabwriter.AlignRight)
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			p := f.At(x, y)
			switch {
			case p.Kind == grid.OutOfRange:
				fmt.Fprint(tw, ".\t")
			case math.IsNaN(float64(p.Temperature)):
				fmt.Fprint(tw, "NaN\t")
			case p.Kind == grid.Boundary:
				fmt.Fprintf(tw, "%.2f*\t", p.Temperature)
			default:
				fmt.Fprintf(tw, "%.2f\t", p.Temperature)
			}
		}
		fmt.Fprintln(tw)
	}
	tw.Flush()
}
