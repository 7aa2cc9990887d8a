package render

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/heatgrid/internal/sim"
)

// DefaultAssetsHost serves the echarts javascript.
const DefaultAssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

var heatColours = []string{"#313695", "#4575b4", "#74add1", "#abd9e9", "#e0f3f8", "#ffffbf", "#fee090", "#fdae61", "#f46d43", "#d73027", "#a50026"}

// DashboardOptions controls the dashboard page.
type DashboardOptions struct {
	AssetsHost string
	Theme      string
	ChartSize  string // CSS size of each chart, e.g. "480px"
}

func (o DashboardOptions) withDefaults() DashboardOptions {
	if o.AssetsHost == "" {
		o.AssetsHost = DefaultAssetsHost
	}
	if o.ChartSize == "" {
		o.ChartSize = "480px"
	}
	return o
}

// Dashboard renders an HTML page with one heat map for the input grid and
// one per space. Failed spaces appear as an empty chart whose subtitle carries
// the error.
func Dashboard(w io.Writer, snap *sim.Snapshot, o DashboardOptions) error {
	o = o.withDefaults()

	page := components.NewPage()
	page.PageTitle = "heatgrid"
	page.SetAssetsHost(o.AssetsHost)
	page.SetLayout(components.PageFlexLayout)

	page.AddCharts(heatMap(InputField(snap.Frame), "recorded temperatures", o))
	for _, res := range snap.Results {
		if f, ok := ResultField(snap.Frame, res); ok {
			page.AddCharts(heatMap(f, fmt.Sprintf("space %d", res.Index()), o))
			continue
		}
		failure, _ := res.Failure()
		empty := Field{Title: res.Name(), Width: snap.Frame.Width, Height: snap.Frame.Height}
		page.AddCharts(heatMap(empty, fmt.Sprintf("space %d failed: %s (code %d)", res.Index(), failure.Message, failure.Code), o))
	}

	return page.Render(w)
}

func heatMap(f Field, subtitle string, o DashboardOptions) *charts.HeatMap {
	xs := make([]string, f.Width)
	for x := range xs {
		xs[x] = strconv.Itoa(x)
	}
	ys := make([]string, f.Height)
	for y := range ys {
		ys[y] = strconv.Itoa(y)
	}

	data := make([]opts.HeatMapData, 0, f.Width*f.Height)
	if len(f.Values) >= f.Width*f.Height {
		for y := 0; y < f.Height; y++ {
			for x := 0; x < f.Width; x++ {
				var v interface{} = "-" // echarts' missing value
				if z := f.at(x, y); !math.IsNaN(z) {
					v = z
				}
				data = append(data, opts.HeatMapData{Value: [3]interface{}{x, y, v}})
			}
		}
	}
	min, max := f.Range()

	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: f.Title, Theme: o.Theme, Width: o.ChartSize, Height: o.ChartSize, AssetsHost: o.AssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: f.Title, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Name: "x", SplitArea: &opts.SplitArea{Show: opts.Bool(true)}}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Name: "y", Data: ys, SplitArea: &opts.SplitArea{Show: opts.Bool(true)}}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        float32(min),
			Max:        float32(max),
			InRange:    &opts.VisualMapInRange{Color: heatColours},
		}),
	)
	hm.SetXAxis(xs).AddSeries("temperature", data)
	return hm
}
