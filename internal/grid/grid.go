package grid

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCoordinate is returned for coordinates outside the grid.
	ErrInvalidCoordinate = errors.New("invalid coordinate")
	// ErrInvalidDimensions is returned when a grid would have no points.
	ErrInvalidDimensions = errors.New("invalid grid dimensions")
)

// Grid is a width×height matrix of points stored row-major
// (index = y*width + x). It is sized once and never resized.
type Grid struct {
	width      int
	height     int
	points     []Point
	generation uint64
}

// New creates a grid with every point set to DefaultPoint.
func New(width, height int) (*Grid, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}
	points := make([]Point, width*height)
	for i := range points {
		points[i] = DefaultPoint
	}
	return &Grid{width: width, height: height, points: points}, nil
}

func (g *Grid) Width() int  { return g.width }
func (g *Grid) Height() int { return g.height }
func (g *Grid) Len() int    { return len(g.points) }

// Generation returns the number of accepted writes so far.
func (g *Grid) Generation() uint64 { return g.generation }

// Contains reports whether (x, y) lies inside the grid.
func (g *Grid) Contains(x, y int) bool {
	return x >= 0 && x < g.width && y >= 0 && y < g.height
}

// Index returns the row-major offset of (x, y). The caller must check
// Contains first.
func (g *Grid) Index(x, y int) int {
	return y*g.width + x
}

// At returns the point at (x, y).
func (g *Grid) At(x, y int) (Point, error) {
	if !g.Contains(x, y) {
		return Point{}, fmt.Errorf("%w: (%d, %d) outside %dx%d", ErrInvalidCoordinate, x, y, g.width, g.height)
	}
	return g.points[g.Index(x, y)], nil
}

// Set overwrites the point at (x, y) and advances the write generation.
// Out-of-bounds coordinates leave the grid untouched.
func (g *Grid) Set(x, y int, p Point) error {
	if !g.Contains(x, y) {
		return fmt.Errorf("%w: (%d, %d) outside %dx%d", ErrInvalidCoordinate, x, y, g.width, g.height)
	}
	g.points[g.Index(x, y)] = p
	g.generation++
	return nil
}

// Points returns a copy of all points in row-major order.
func (g *Grid) Points() []Point {
	out := make([]Point, len(g.points))
	copy(out, g.points)
	return out
}

// Capture copies the grid into a Frame tagged with the current generation.
func (g *Grid) Capture() Frame {
	return Frame{
		Width:      g.width,
		Height:     g.height,
		Generation: g.generation,
		Points:     g.Points(),
	}
}
