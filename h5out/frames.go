package h5out

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	eutel "github.com/eutelescope/eutel_go/pkg"
	"gonum.org/v1/hdf5"
	"golang.org/x/exp/slices"
)

const FrameDumpType = "FrameDump"

type EventDataHDF5 struct {
	run_number int32
	evt_number int32
	timestamp  uint64
}

// FrameWriter dumps dense frames event by event: a Run/events table and
// one RD/plane_<id> array of events x pixels per plane. A plane array is
// created when the plane first appears; earlier rows read as zeros.
type FrameWriter struct {
	File             *hdf5.File
	Filename         string
	CompressionLevel int
	RunGroup         *hdf5.Group
	RDGroup          *hdf5.Group
	EventTable       *hdf5.Dataset
	Planes           map[int]*hdf5.Dataset
	PlaneSizes       map[int]int
	EvtCounter       int
}

func NewFrameWriter(filename string, compressionLevel int) (*FrameWriter, error) {
	writer := &FrameWriter{
		Filename:         filename,
		CompressionLevel: compressionLevel,
		Planes:           make(map[int]*hdf5.Dataset),
		PlaneSizes:       make(map[int]int),
	}
	var err error
	if writer.File, err = createFile(filename); err != nil {
		return nil, err
	}
	if writer.RunGroup, err = createGroup(writer.File, "Run"); err != nil {
		writer.Close()
		return nil, err
	}
	if writer.RDGroup, err = createGroup(writer.File, "RD"); err != nil {
		writer.Close()
		return nil, err
	}
	if writer.EventTable, err = createTable(writer.RunGroup, "events", EventDataHDF5{}, compressionLevel); err != nil {
		writer.Close()
		return nil, err
	}
	return writer, nil
}

func (w *FrameWriter) WriteEvent(evt *eutel.Event, collection *eutel.TrackerDataCollection) error {
	if collection.Encoding != eutel.EncodingDense {
		return fmt.Errorf("frame dump needs dense data, got %v", collection.Encoding)
	}
	for _, td := range collection.Elements {
		if size, ok := w.PlaneSizes[td.SensorID]; ok && size != len(td.Charge) {
			return fmt.Errorf("event %d: plane %d has %d pixels, expected %d", evt.EventNumber, td.SensorID, len(td.Charge), size)
		}
	}

	err := writeEntryToTable(w.EventTable, EventDataHDF5{
		run_number: int32(evt.RunNumber),
		evt_number: int32(evt.EventNumber),
		timestamp:  uint64(evt.Timestamp),
	}, w.EvtCounter)
	if err != nil {
		return fmt.Errorf("error writing event %d: %w", evt.EventNumber, err)
	}

	for _, td := range collection.Elements {
		dset, err := w.plane(td.SensorID, len(td.Charge))
		if err != nil {
			return err
		}
		data := toInt16(td.Charge)
		if err := write2dArray(dset, &data, w.EvtCounter, len(data)); err != nil {
			return fmt.Errorf("error writing plane %d of event %d: %w", td.SensorID, evt.EventNumber, err)
		}
	}
	w.EvtCounter++
	return nil
}

func (w *FrameWriter) plane(sensorID int, nValues int) (*hdf5.Dataset, error) {
	if dset, ok := w.Planes[sensorID]; ok {
		return dset, nil
	}
	dset, err := create2dArray(w.RDGroup, fmt.Sprintf("plane_%d", sensorID), nValues, w.CompressionLevel)
	if err != nil {
		return nil, err
	}
	w.Planes[sensorID] = dset
	w.PlaneSizes[sensorID] = nValues
	return dset, nil
}

func toInt16(values []float32) []int16 {
	data := make([]int16, len(values))
	for i, v := range values {
		data[i] = int16(math.Max(math.MinInt16, math.Min(math.MaxInt16, float64(v))))
	}
	return data
}

func (w *FrameWriter) Close() error {
	var errs []error
	planeIDs := make([]int, 0, len(w.Planes))
	for id := range w.Planes {
		planeIDs = append(planeIDs, id)
	}
	slices.Sort(planeIDs)
	for _, id := range planeIDs {
		if err := w.Planes[id].Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing plane %d: %w", id, err))
		}
	}
	if w.EventTable != nil {
		if err := w.EventTable.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing event table: %w", err))
		}
	}
	if w.RDGroup != nil {
		if err := w.RDGroup.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing RD group: %w", err))
		}
	}
	if w.RunGroup != nil {
		if err := w.RunGroup.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing run group: %w", err))
		}
	}
	if err := w.File.Close(); err != nil {
		errs = append(errs, fmt.Errorf("error closing file: %w", err))
	}
	return errors.Join(errs...)
}

type FrameDumpParameters struct {
	CollectionName   string `json:"CollectionName"`
	FileName         string `json:"FileName"`
	CompressionLevel int    `json:"CompressionLevel"`
}

// FrameDump is a processor writing one dense collection to HDF5.
type FrameDump struct {
	name   string
	params FrameDumpParameters
	writer *FrameWriter
}

func NewFrameDumpFromParameters(name string, raw []byte) (eutel.Processor, error) {
	params := FrameDumpParameters{
		CollectionName:   "cds",
		FileName:         "frames.h5",
		CompressionLevel: 4,
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &params); err != nil {
			return nil, fmt.Errorf("error decoding parameters: %w", err)
		}
	}
	return &FrameDump{name: name, params: params}, nil
}

func (f *FrameDump) Type() string {
	return FrameDumpType
}

func (f *FrameDump) Init(env *eutel.Environment) error {
	writer, err := NewFrameWriter(f.params.FileName, f.params.CompressionLevel)
	if err != nil {
		return err
	}
	f.writer = writer
	return nil
}

func (f *FrameDump) ProcessEvent(evt *eutel.Event) error {
	collection, err := evt.Collection(f.params.CollectionName)
	if err != nil {
		var notFound *eutel.ErrCollectionNotFound
		if errors.As(err, &notFound) {
			eutel.GetLogger().Info(err.Error(), f.name)
			return nil
		}
		return err
	}
	return f.writer.WriteEvent(evt, collection)
}

func (f *FrameDump) End() error {
	if f.writer == nil {
		return nil
	}
	err := f.writer.Close()
	f.writer = nil
	return err
}
