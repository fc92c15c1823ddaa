package h5out

import (
	"errors"
	"fmt"

	eutel "github.com/eutelescope/eutel_go/pkg"
	"gonum.org/v1/hdf5"
)

type H1BinHDF5 struct {
	bin         int32
	low         float64
	content     float64
	uncertainty float64
}

type HistogramInfoHDF5 struct {
	name    [STRLEN]byte
	title   [TITLELEN]byte
	entries int64
}

const TITLELEN = 128

// HistogramWriter stores histograms in an HDF5 file, one group per
// processor. 1D histograms are tables of bins, 2D histograms are
// NBinsX x NBinsY arrays. Each group has an "index" table with titles.
type HistogramWriter struct {
	File             *hdf5.File
	Filename         string
	CompressionLevel int
	groups           map[string]*hdf5.Group
	indexTables      map[string]*hdf5.Dataset
	indexRows        map[string]int
	datasets         []*hdf5.Dataset
}

func NewHistogramWriter(filename string, compressionLevel int) (*HistogramWriter, error) {
	file, err := createFile(filename)
	if err != nil {
		return nil, err
	}
	return &HistogramWriter{
		File:             file,
		Filename:         filename,
		CompressionLevel: compressionLevel,
		groups:           make(map[string]*hdf5.Group),
		indexTables:      make(map[string]*hdf5.Dataset),
		indexRows:        make(map[string]int),
	}, nil
}

func (w *HistogramWriter) group(dir string) (*hdf5.Group, error) {
	if g, ok := w.groups[dir]; ok {
		return g, nil
	}
	g, err := createGroup(w.File, dir)
	if err != nil {
		return nil, err
	}
	index, err := createTable(g, "index", HistogramInfoHDF5{}, w.CompressionLevel)
	if err != nil {
		g.Close()
		return nil, err
	}
	w.groups[dir] = g
	w.indexTables[dir] = index
	return g, nil
}

func (w *HistogramWriter) addToIndex(dir string, name string, title string, entries int64) error {
	info := HistogramInfoHDF5{
		name:    convertToHdf5String(name),
		entries: entries,
	}
	copy(info.title[:], title)
	if err := writeEntryToTable(w.indexTables[dir], info, w.indexRows[dir]); err != nil {
		return fmt.Errorf("error writing index of %s: %w", dir, err)
	}
	w.indexRows[dir]++
	return nil
}

func (w *HistogramWriter) WriteH1(dir string, h *eutel.H1) error {
	if h == nil {
		return nil
	}
	g, err := w.group(dir)
	if err != nil {
		return err
	}
	dset, err := createTable(g, h.Name, H1BinHDF5{}, w.CompressionLevel)
	if err != nil {
		return err
	}
	w.datasets = append(w.datasets, dset)

	bins := make([]H1BinHDF5, h.NBins)
	for i := range bins {
		bins[i] = H1BinHDF5{
			bin:         int32(i),
			low:         h.BinLowEdge(i),
			content:     h.Content(i),
			uncertainty: h.Error(i),
		}
	}
	if err := writeArrayToTable(dset, &bins, 0); err != nil {
		return fmt.Errorf("error writing %s/%s: %w", dir, h.Name, err)
	}
	return w.addToIndex(dir, h.Name, h.Title, h.Entries())
}

func (w *HistogramWriter) WriteH2(dir string, h *eutel.H2) error {
	if h == nil {
		return nil
	}
	g, err := w.group(dir)
	if err != nil {
		return err
	}
	dims := []uint{uint(h.NBinsX), uint(h.NBinsY)}
	dset, err := createFixedArray(g, h.Name, hdf5.T_NATIVE_DOUBLE, dims, w.CompressionLevel)
	if err != nil {
		return err
	}
	w.datasets = append(w.datasets, dset)

	contents := h.Contents()
	if err := dset.Write(&contents); err != nil {
		return fmt.Errorf("error writing %s/%s: %w", dir, h.Name, err)
	}
	return w.addToIndex(dir, h.Name, h.Title, h.Entries())
}

func (w *HistogramWriter) Close() error {
	eutel.GetLogger().Info(fmt.Sprintf("Closing histogram file %s", w.Filename), "hdf5writer")
	var errs []error
	for _, dset := range w.datasets {
		if err := dset.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing dataset: %w", err))
		}
	}
	for dir, index := range w.indexTables {
		if err := index.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing index of %s: %w", dir, err))
		}
	}
	for dir, g := range w.groups {
		if err := g.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing group %s: %w", dir, err))
		}
	}
	if err := w.File.Close(); err != nil {
		errs = append(errs, fmt.Errorf("error closing file: %w", err))
	}
	return errors.Join(errs...)
}
