package plots

import (
	"fmt"
	"os"
	"strconv"

	eutel "github.com/eutelescope/eutel_go/pkg"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

var viridis = []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}

// HTMLSink collects the histograms of a job in a single HTML page, written on Close.
type HTMLSink struct {
	Filename string
	page     *components.Page
	nCharts  int
}

func NewHTMLSink(filename string) *HTMLSink {
	page := components.NewPage()
	page.PageTitle = "Noise analysis"
	return &HTMLSink{Filename: filename, page: page}
}

func (s *HTMLSink) WriteH1(dir string, h *eutel.H1) error {
	if h == nil {
		return nil
	}
	x := make([]string, h.NBins)
	y := make([]opts.BarData, h.NBins)
	for i := 0; i < h.NBins; i++ {
		x[i] = strconv.FormatFloat(h.BinLowEdge(i), 'g', 6, 64)
		y[i] = opts.BarData{Value: h.Content(i)}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{Title: h.Title, Subtitle: fmt.Sprintf("%s/%s entries=%d", dir, h.Name, h.Entries())}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x).AddSeries(h.Name, y)
	s.page.AddCharts(bar)
	s.nCharts++
	return nil
}

// WriteH2 draws the non-empty bins as a colour-mapped scatter plot.
func (s *HTMLSink) WriteH2(dir string, h *eutel.H2) error {
	if h == nil {
		return nil
	}
	data := make([]opts.ScatterData, 0)
	maxZ := 1.0
	for binX := 0; binX < h.NBinsX; binX++ {
		for binY := 0; binY < h.NBinsY; binY++ {
			z := h.BinContent(binX, binY)
			if z == 0 {
				continue
			}
			if z > maxZ {
				maxZ = z
			}
			data = append(data, opts.ScatterData{Value: []interface{}{h.BinCenterX(binX), h.BinCenterY(binY), z}})
		}
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "1000px", Height: "520px"}),
		charts.WithTitleOpts(opts.Title{Title: h.Title, Subtitle: fmt.Sprintf("%s/%s fired=%d", dir, h.Name, len(data))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: h.MinX, Max: h.MaxX, Name: "x (pixel)"}),
		charts.WithYAxisOpts(opts.YAxis{Min: h.MinY, Max: h.MaxY, Name: "y (pixel)"}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(maxZ),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: viridis},
		}),
	)
	scatter.AddSeries(h.Name, data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 3}))
	s.page.AddCharts(scatter)
	s.nCharts++
	return nil
}

func (s *HTMLSink) Close() error {
	if s.nCharts == 0 {
		return nil
	}
	f, err := os.Create(s.Filename)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", s.Filename, err)
	}
	if err := s.page.Render(f); err != nil {
		f.Close()
		return fmt.Errorf("render error: %w", err)
	}
	return f.Close()
}
