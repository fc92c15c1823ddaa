package eutel

import (
	"math"

	"go-hep.org/x/hep/hbook"
)

type HistogramSink interface {
	WriteH1(dir string, h *H1) error
	WriteH2(dir string, h *H2) error
	Close() error
}

// H1 is a named fixed-width 1D histogram. Bins are indexed from 0 and the
// error of a bin is sqrt(sum of squared weights).
type H1 struct {
	Name  string
	Title string
	NBins int
	Min   float64
	Max   float64
	Hist  *hbook.H1D
}

func NewH1(name string, title string, nBins int, min float64, max float64) *H1 {
	return &H1{
		Name:  name,
		Title: title,
		NBins: nBins,
		Min:   min,
		Max:   max,
		Hist:  hbook.NewH1D(nBins, min, max),
	}
}

func (h *H1) Fill(x float64) {
	h.Hist.Fill(x, 1)
}

// FillWeighted adds n entries of weight w at x. Filling fired pixel counts
// with w = 1/norm gives the occupancy as content and its Poisson error.
func (h *H1) FillWeighted(x float64, n int64, w float64) {
	for i := int64(0); i < n; i++ {
		h.Hist.Fill(x, w)
	}
}

func (h *H1) Content(bin int) float64 {
	return h.Hist.Binning.Bins[bin].SumW()
}

func (h *H1) Error(bin int) float64 {
	return math.Sqrt(h.Hist.Binning.Bins[bin].SumW2())
}

func (h *H1) Contents() []float64 {
	values := make([]float64, h.NBins)
	for i := range values {
		values[i] = h.Content(i)
	}
	return values
}

func (h *H1) Entries() int64 {
	return h.Hist.Entries()
}

func (h *H1) Underflow() float64 {
	return h.Hist.Binning.Outflows[0].SumW()
}

func (h *H1) Overflow() float64 {
	return h.Hist.Binning.Outflows[1].SumW()
}

func (h *H1) BinLowEdge(bin int) float64 {
	return h.Min + float64(bin)*(h.Max-h.Min)/float64(h.NBins)
}

func (h *H1) BinCenter(bin int) float64 {
	return h.BinLowEdge(bin) + 0.5*(h.Max-h.Min)/float64(h.NBins)
}

// H2 is a named fixed-width 2D histogram.
type H2 struct {
	Name   string
	Title  string
	NBinsX int
	MinX   float64
	MaxX   float64
	NBinsY int
	MinY   float64
	MaxY   float64
	Hist   *hbook.H2D
}

func NewH2(name string, title string, nBinsX int, minX float64, maxX float64, nBinsY int, minY float64, maxY float64) *H2 {
	return &H2{
		Name:   name,
		Title:  title,
		NBinsX: nBinsX,
		MinX:   minX,
		MaxX:   maxX,
		NBinsY: nBinsY,
		MinY:   minY,
		MaxY:   maxY,
		Hist:   hbook.NewH2D(nBinsX, minX, maxX, nBinsY, minY, maxY),
	}
}

func (h *H2) Fill(x float64, y float64) {
	h.Hist.Fill(x, y, 1)
}

// hbook stores the bins with x as the fast index.
func (h *H2) BinContent(binX int, binY int) float64 {
	return h.Hist.Binning.Bins[binY*h.NBinsX+binX].SumW()
}

// Contents returns the bin contents with x as the slow index, the layout of
// an [NBinsX][NBinsY] array.
func (h *H2) Contents() []float64 {
	values := make([]float64, h.NBinsX*h.NBinsY)
	for binX := 0; binX < h.NBinsX; binX++ {
		for binY := 0; binY < h.NBinsY; binY++ {
			values[binX*h.NBinsY+binY] = h.BinContent(binX, binY)
		}
	}
	return values
}

func (h *H2) Entries() int64 {
	return h.Hist.Entries()
}

func (h *H2) BinCenterX(binX int) float64 {
	return h.MinX + (float64(binX)+0.5)*(h.MaxX-h.MinX)/float64(h.NBinsX)
}

func (h *H2) BinCenterY(binY int) float64 {
	return h.MinY + (float64(binY)+0.5)*(h.MaxY-h.MinY)/float64(h.NBinsY)
}
