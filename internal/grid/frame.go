package grid

// Frame is a point-in-time copy of a grid. Frames are never mutated after
// capture, so they can be shared freely between goroutines.
type Frame struct {
	Width      int
	Height     int
	Generation uint64
	Points     []Point
}

// Len returns the number of points in the frame.
func (f Frame) Len() int { return f.Width * f.Height }

// Contains reports whether (x, y) lies inside the frame.
func (f Frame) Contains(x, y int) bool {
	return x >= 0 && x < f.Width && y >= 0 && y < f.Height
}

// At returns the point at (x, y). The caller must check Contains first.
func (f Frame) At(x, y int) Point {
	return f.Points[y*f.Width+x]
}

// Temperatures returns the temperatures as rows (outer index y).
func (f Frame) Temperatures() [][]float32 {
	return Rows(f.Width, f.Height, func(i int) float32 { return f.Points[i].Temperature })
}

// Kinds returns the point kinds as rows (outer index y).
func (f Frame) Kinds() [][]Kind {
	return Rows(f.Width, f.Height, func(i int) Kind { return f.Points[i].Kind })
}

// Clone returns a copy of f with its own Points array.
func (f Frame) Clone() Frame {
	f.Points = append([]Point(nil), f.Points...)
	return f
}

// Rows builds a height×width matrix from a row-major accessor.
func Rows[T any](width, height int, at func(i int) T) [][]T {
	rows := make([][]T, height)
	for y := 0; y < height; y++ {
		row := make([]T, width)
		for x := 0; x < width; x++ {
			row[x] = at(y*width + x)
		}
		rows[y] = row
	}
	return rows
}
