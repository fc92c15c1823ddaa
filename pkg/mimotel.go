package eutel

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/exp/maps"
)

const MimoTelReaderType = "EUTelMimoTelReader"

type MimoTelParameters struct {
	InputFileName             string  `json:"InputFileName"`
	FirstFrameCollectionName  string  `json:"FirstFrameCollectionName"`
	SecondFrameCollectionName string  `json:"SecondFrameCollectionName"`
	ThirdFrameCollectionName  string  `json:"ThirdFrameCollectionName"`
	CDSCollectionName         string  `json:"CDSCollectionName"`
	CDSCalculation            int     `json:"CDSCalculation"`
	ZSCollectionName          string  `json:"ZSCollectionName"`
	ZSThreshold               float32 `json:"ZSThreshold"`
}

func DefaultMimoTelParameters() MimoTelParameters {
	return MimoTelParameters{
		FirstFrameCollectionName:  "rawdata1",
		SecondFrameCollectionName: "rawdata2",
		ThirdFrameCollectionName:  "rawdata3",
		CDSCollectionName:         "cds",
		CDSCalculation:            1,
		ZSCollectionName:          "zsdata",
		ZSThreshold:               0,
	}
}

// MimoTelReader converts the raw telescope output into events with one
// collection per frame, the CDS frame and optionally zero suppressed data.
type MimoTelReader struct {
	name          string
	params        MimoTelParameters
	file          *os.File
	reader        *bufio.Reader
	runParameters Parameters
	verbosity     int
	eventsRead    int
	done          bool
}

func NewMimoTelReader(name string, params MimoTelParameters) *MimoTelReader {
	return &MimoTelReader{
		name:          name,
		params:        params,
		runParameters: make(Parameters),
	}
}

func NewMimoTelReaderFromParameters(name string, raw []byte) (Processor, error) {
	params := DefaultMimoTelParameters()
	if err := decodeParameters(raw, &params); err != nil {
		return nil, err
	}
	return NewMimoTelReader(name, params), nil
}

func (m *MimoTelReader) Type() string {
	return MimoTelReaderType
}

func (m *MimoTelReader) Init(env *Environment) error {
	if env != nil {
		m.verbosity = env.Verbosity
	}
	file, err := os.Open(m.params.InputFileName)
	if err != nil {
		return &ErrOpenFile{Filename: m.params.InputFileName, Err: err}
	}
	m.file = file
	m.reader = bufio.NewReader(file)
	if m.verbosity > 0 {
		logger.Info(fmt.Sprintf("Reading raw data from %s", m.params.InputFileName), m.name)
		logger.Info(fmt.Sprintf("CDS calculation: %d", m.params.CDSCalculation), m.name)
		logger.Info(fmt.Sprintf("ZS threshold: %g", m.params.ZSThreshold), m.name)
	}
	return nil
}

// ProcessEvent does nothing: the reader only produces events.
func (m *MimoTelReader) ProcessEvent(*Event) error {
	return nil
}

func (m *MimoTelReader) ReadDataSource(numEvents int) ([]*Event, error) {
	if m.reader == nil {
		return nil, errors.New("reader not initialised")
	}
	events := make([]*Event, 0, numEvents)
	for len(events) < numEvents && !m.done {
		header, payload, err := ReadRawRecord(m.reader)
		if err == io.EOF {
			m.done = true
			break
		}
		if err != nil {
			return events, fmt.Errorf("error reading raw record after event %d: %w", m.eventsRead, err)
		}

		switch header.EventType {
		case BORE_EVENT:
			params, err := ParseParameters(bytes.NewReader(payload))
			if err != nil {
				return events, fmt.Errorf("error reading run parameters of run %d: %w", header.RunNumber, err)
			}
			maps.Copy(m.runParameters, params)
			if m.verbosity > 0 {
				logger.Info(fmt.Sprintf("Begin of run %d, %d parameters", header.RunNumber, len(params)), m.name)
			}
		case DATA_EVENT:
			evt, err := m.decodeEvent(header, payload)
			if err != nil {
				return events, err
			}
			events = append(events, evt)
			m.eventsRead++
		case EORE_EVENT:
			if m.verbosity > 0 {
				logger.Info(fmt.Sprintf("End of run %d after %d events", header.RunNumber, m.eventsRead), m.name)
			}
			m.done = true
		default:
			if m.verbosity > 1 {
				logger.Info(fmt.Sprintf("Skipping record of type %v", header.EventType), m.name)
			}
		}
	}
	if len(events) == 0 && m.done {
		return nil, io.EOF
	}
	return events, nil
}

func (m *MimoTelReader) decodeEvent(header RawEventHeader, payload []byte) (*Event, error) {
	planes, err := DecodePlanes(header, payload)
	if err != nil {
		return nil, err
	}
	evt := NewEvent(int(header.RunNumber), int(header.EventNumber), int64(header.Timestamp))
	evt.Parameters = maps.Clone(m.runParameters)

	frameNames := []string{
		m.params.FirstFrameCollectionName,
		m.params.SecondFrameCollectionName,
		m.params.ThirdFrameCollectionName,
	}
	for frame, name := range frameNames {
		collection := &TrackerDataCollection{Encoding: EncodingDense}
		for _, plane := range planes {
			if frame >= len(plane.Frames) {
				return nil, fmt.Errorf("event %d: plane %d has %d frames, expected 3", header.EventNumber, plane.PlaneID, len(plane.Frames))
			}
			collection.Elements = append(collection.Elements, TrackerData{
				SensorID: plane.PlaneID,
				Width:    plane.Width,
				Height:   plane.Height,
				Charge:   toFloat32(plane.Frames[frame]),
			})
		}
		if err := evt.AddCollection(name, collection); err != nil {
			return nil, err
		}
	}

	if m.params.CDSCalculation == 0 {
		return evt, nil
	}
	cdsCollection := &TrackerDataCollection{Encoding: EncodingDense}
	zsCollection := &TrackerDataCollection{Encoding: EncodingSparse}
	for _, plane := range planes {
		cds := CorrelatedDoubleSampling(plane.Frames[0], plane.Frames[1])
		cdsCollection.Elements = append(cdsCollection.Elements, TrackerData{
			SensorID: plane.PlaneID,
			Width:    plane.Width,
			Height:   plane.Height,
			Charge:   cds,
		})
		if m.params.ZSThreshold > 0 {
			pixels := ZeroSuppress(cds, plane.Width, m.params.ZSThreshold)
			zsCollection.Elements = append(zsCollection.Elements, TrackerData{
				SensorID: plane.PlaneID,
				Width:    plane.Width,
				Height:   plane.Height,
				Charge:   EncodeSparsePixels(pixels),
			})
		}
	}
	if err := evt.AddCollection(m.params.CDSCollectionName, cdsCollection); err != nil {
		return nil, err
	}
	if m.params.ZSThreshold > 0 {
		if err := evt.AddCollection(m.params.ZSCollectionName, zsCollection); err != nil {
			return nil, err
		}
	}
	return evt, nil
}

func toFloat32(samples []int16) []float32 {
	values := make([]float32, len(samples))
	for i, sample := range samples {
		values[i] = float32(sample)
	}
	return values
}

// CorrelatedDoubleSampling returns first - second for each pixel. The charge
// collected between the two reads lowers the second sample, so signals are
// positive.
func CorrelatedDoubleSampling(first []int16, second []int16) []float32 {
	cds := make([]float32, len(first))
	for i := range first {
		cds[i] = float32(first[i]) - float32(second[i])
	}
	return cds
}

// ZeroSuppress keeps the pixels of a dense frame above threshold.
func ZeroSuppress(frame []float32, width int, threshold float32) []SparsePixel {
	pixels := make([]SparsePixel, 0)
	for i, value := range frame {
		if value > threshold {
			pixels = append(pixels, SparsePixel{X: i % width, Y: i / width, Signal: value})
		}
	}
	return pixels
}

func (m *MimoTelReader) End() error {
	if m.verbosity > 0 {
		logger.Info(fmt.Sprintf("Events read: %d", m.eventsRead), m.name)
	}
	if m.file == nil {
		return nil
	}
	err := m.file.Close()
	m.file = nil
	return err
}
