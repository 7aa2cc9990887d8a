package render

import (
	"errors"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Default PNG size.
const (
	DefaultPNGWidth  = 6 * vg.Inch
	DefaultPNGHeight = 5 * vg.Inch
)

// ErrEmptyField is returned when a field has no cells to draw.
var ErrEmptyField = errors.New("field has no cells")

// gridXYZ adapts a Field to plotter.GridXYZ. Row y of the field is drawn at
// Y = y, so the origin is the bottom-left cell.
type gridXYZ struct{ f Field }

func (g gridXYZ) Dims() (c, r int)   { return g.f.Width, g.f.Height }
func (g gridXYZ) Z(c, r int) float64 { return g.f.at(c, r) }
func (g gridXYZ) X(c int) float64    { return float64(c) }
func (g gridXYZ) Y(r int) float64    { return float64(r) }

// HeatmapPNG writes f as a PNG heat map of the given size. Non-finite cells
// are drawn light grey.
func HeatmapPNG(w io.Writer, f Field, width, height vg.Length) error {
	if f.Width <= 0 || f.Height <= 0 || len(f.Values) < f.Width*f.Height {
		return ErrEmptyField
	}

	p := plot.New()
	p.Title.Text = f.Title
	p.X.Label.Text = "x"
	p.Y.Label.Text = "y"

	hm := plotter.NewHeatMap(gridXYZ{f}, palette.Heat(12, 1))
	hm.Min, hm.Max = f.Range()
	hm.NaN = color.Gray{Y: 220}
	p.Add(hm)

	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}
