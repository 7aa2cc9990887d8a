package engine

import (
	"fmt"
	"sync"

	"github.com/banshee-data/heatgrid/internal/grid"
)

// Registry is an Engine hosting an ordered list of in-process spaces. Spaces
// may be registered and removed while the engine is in use; each caller sees
// whatever list is current at the time of its call.
type Registry struct {
	mu     sync.RWMutex
	width  int
	height int
	spaces []Space
	mirror *grid.Grid
	closed bool
}

// NewRegistry creates an empty registry for a width×height grid.
func NewRegistry(width, height int) (*Registry, error) {
	mirror, err := grid.New(width, height)
	if err != nil {
		return nil, err
	}
	return &Registry{width: width, height: height, mirror: mirror}, nil
}

// NewRegistryWith creates a registry preloaded with the given spaces, in order.
func NewRegistryWith(width, height int, spaces ...SpaceFactory) (*Registry, error) {
	r, err := NewRegistry(width, height)
	if err != nil {
		return nil, err
	}
	for _, build := range spaces {
		s, err := build(width, height)
		if err != nil {
			return nil, fmt.Errorf("failed to create space: %w", err)
		}
		if err := r.Register(s); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// NewRegistryFactory returns a Factory building a Registry preloaded with the
// given spaces, in order.
func NewRegistryFactory(spaces ...SpaceFactory) Factory {
	return func(width, height int) (Engine, error) {
		r, err := NewRegistryWith(width, height, spaces...)
		if err != nil {
			return nil, err
		}
		return r, nil
	}
}

// Register appends a space. Names must be unique within the registry.
func (r *Registry) Register(s Space) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	for _, existing := range r.spaces {
		if existing.Name() == s.Name() {
			return fmt.Errorf("space %q already registered", s.Name())
		}
	}
	r.spaces = append(r.spaces, s)
	return nil
}

// Unregister removes the named space; later spaces shift down one index.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	for i, s := range r.spaces {
		if s.Name() == name {
			r.spaces = append(r.spaces[:i:i], r.spaces[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrSpaceNotFound, name)
}

// Names lists the registered spaces in index order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.spaces))
	for i, s := range r.spaces {
		names[i] = s.Name()
	}
	return names
}

// Mirror returns the registry's copy of the grid as fed by SetPoint.
func (r *Registry) Mirror() (grid.Frame, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return grid.Frame{}, ErrClosed
	}
	return r.mirror.Capture(), nil
}

func (r *Registry) SetPoint(x, y int, p grid.Point) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	return r.mirror.Set(x, y, p)
}

func (r *Registry) SpaceCount() (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return 0, ErrClosed
	}
	return len(r.spaces), nil
}

func (r *Registry) SpaceName(index int) (string, error) {
	s, err := r.space(index)
	if err != nil {
		return "", err
	}
	return s.Name(), nil
}

// Solve runs the space without holding the registry lock, so long solves do
// not block registration or other spaces.
func (r *Registry) Solve(index int, input grid.Frame, out []float32) (ErrorCode, error) {
	s, err := r.space(index)
	if err != nil {
		return Success, err
	}
	if input.Width != r.width || input.Height != r.height {
		return Success, fmt.Errorf("frame is %dx%d, engine is %dx%d", input.Width, input.Height, r.width, r.height)
	}
	if len(out) < input.Len() {
		return Success, fmt.Errorf("output buffer holds %d values, need %d", len(out), input.Len())
	}
	return s.Solve(input, out), nil
}

func (r *Registry) ErrorMessage(index int, code ErrorCode) string {
	s, err := r.space(index)
	if err != nil {
		return unknownError
	}
	return s.ErrorMessage(code)
}

func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	r.closed = true
	r.spaces = nil
	return nil
}

func (r *Registry) space(index int) (Space, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, ErrClosed
	}
	if index < 0 || index >= len(r.spaces) {
		return nil, fmt.Errorf("%w: index %d of %d", ErrSpaceNotFound, index, len(r.spaces))
	}
	return r.spaces[index], nil
}
