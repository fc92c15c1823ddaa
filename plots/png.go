package plots

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	eutel "github.com/eutelescope/eutel_go/pkg"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Histograms with more bins are drawn as a line instead of bars
const maxBarBins = 20

// PNGSink renders every histogram to <folder>/<dir>_<name>.png.
type PNGSink struct {
	Folder string
}

func NewPNGSink(folder string) (*PNGSink, error) {
	if err := os.MkdirAll(folder, 0755); err != nil {
		return nil, fmt.Errorf("failed to create plot folder: %w", err)
	}
	return &PNGSink{Folder: folder}, nil
}

func (s *PNGSink) path(dir string, name string) string {
	return filepath.Join(s.Folder, fmt.Sprintf("%s_%s.png", dir, name))
}

// h1Bins adapts a 1D histogram to the plotter XY and error interfaces.
type h1Bins struct {
	h      *eutel.H1
	center bool
}

func (b h1Bins) Len() int {
	return b.h.NBins
}

func (b h1Bins) XY(i int) (float64, float64) {
	if b.center {
		return b.h.BinCenter(i), b.h.Content(i)
	}
	return float64(i), b.h.Content(i)
}

func (b h1Bins) YError(i int) (float64, float64) {
	return b.h.Error(i), b.h.Error(i)
}

func (s *PNGSink) WriteH1(dir string, h *eutel.H1) error {
	if h == nil {
		return nil
	}
	p := plot.New()
	p.Title.Text = h.Title
	p.Y.Label.Text = "entries"

	if h.NBins <= maxBarBins {
		bars, err := plotter.NewBarChart(plotter.Values(h.Contents()), vg.Points(20))
		if err != nil {
			return fmt.Errorf("error plotting %s: %w", h.Name, err)
		}
		p.Add(bars)
		errorBars, err := plotter.NewYErrorBars(h1Bins{h: h})
		if err != nil {
			return fmt.Errorf("error plotting %s: %w", h.Name, err)
		}
		p.Add(errorBars)
		labels := make([]string, h.NBins)
		for i := range labels {
			labels[i] = strconv.Itoa(i)
		}
		p.NominalX(labels...)
	} else {
		line, err := plotter.NewLine(h1Bins{h: h, center: true})
		if err != nil {
			return fmt.Errorf("error plotting %s: %w", h.Name, err)
		}
		line.Width = vg.Points(1)
		p.Add(line)
	}

	if err := p.Save(8*vg.Inch, 5*vg.Inch, s.path(dir, h.Name)); err != nil {
		return fmt.Errorf("error saving %s: %w", h.Name, err)
	}
	return nil
}

// h2Grid adapts a 2D histogram to plotter.GridXYZ.
type h2Grid struct {
	h *eutel.H2
}

func (g h2Grid) Dims() (c, r int) {
	return g.h.NBinsX, g.h.NBinsY
}

func (g h2Grid) Z(c, r int) float64 {
	return g.h.BinContent(c, r)
}

func (g h2Grid) X(c int) float64 {
	return g.h.BinCenterX(c)
}

func (g h2Grid) Y(r int) float64 {
	return g.h.BinCenterY(r)
}

func (s *PNGSink) WriteH2(dir string, h *eutel.H2) error {
	if h == nil {
		return nil
	}
	p := plot.New()
	p.Title.Text = h.Title
	p.X.Label.Text = "x (pixel)"
	p.Y.Label.Text = "y (pixel)"

	heatMap := plotter.NewHeatMap(h2Grid{h: h}, palette.Heat(12, 1))
	// an empty map would give a zero colour range
	if heatMap.Max <= heatMap.Min {
		heatMap.Max = heatMap.Min + 1
	}
	p.Add(heatMap)

	if err := p.Save(10*vg.Inch, 5*vg.Inch, s.path(dir, h.Name)); err != nil {
		return fmt.Errorf("error saving %s: %w", h.Name, err)
	}
	return nil
}

func (s *PNGSink) Close() error {
	return nil
}
