package eutel

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
)

const NoiseAnalysisType = "AnalysisNoise"

type NoiseParameters struct {
	ZSDataCollectionName     string   `json:"ZSDataCollectionName"`
	HistogramFilling         bool     `json:"HistogramFilling"`
	Energy                   float64  `json:"Energy"`
	ChipID                   []string `json:"ChipID"`
	Irradiation              []string `json:"Irradiation"`
	Rate                     string   `json:"Rate"`
	DutIDs                   []string `json:"dutIDs"`
	OutputSettingsFolderName string   `json:"OutputSettingsFolderName"`
	Dim4Sec                  int      `json:"Dim4Sec"`
}

func DefaultNoiseParameters() NoiseParameters {
	return NoiseParameters{
		ZSDataCollectionName:     "zsdata",
		HistogramFilling:         true,
		Energy:                   6.0,
		ChipID:                   []string{" "},
		Irradiation:              []string{" "},
		Rate:                     "",
		DutIDs:                   []string{},
		OutputSettingsFolderName: "./",
		Dim4Sec:                  0,
	}
}

// LayerOccupancy is the noise occupancy of one plane after the run, per
// sector, in fired pixels per pixel per event. Sectors that were not
// normalised have Valid set to false.
type LayerOccupancy struct {
	Layer     int
	Fired     [NSectors]int64
	Occupancy [NSectors]float64
	Error     [NSectors]float64
	Valid     [NSectors]bool
}

// NoiseAnalysis accumulates per-sector fired pixel counts from zero
// suppressed data and writes the chip settings of every DUT to a run log.
type NoiseAnalysis struct {
	name   string
	params NoiseParameters

	dutIDs   []int
	settings []*SettingsFile
	sinks    []HistogramSink

	verbosity    int
	nLayer       int
	xPixel       []int
	yPixel       []int
	nFiredPixel  [][NSectors]int64
	nEvent       int
	droppedHits  int64
	isFirstEvent bool
	ended        bool

	timeStampHisto *H1
	noiseMap       []*H2
	noiseOccupancy []*H1
	occupancy      []LayerOccupancy
}

func NewNoiseAnalysis(name string, params NoiseParameters) *NoiseAnalysis {
	return &NoiseAnalysis{
		name:         name,
		params:       params,
		isFirstEvent: true,
	}
}

func NewNoiseAnalysisFromParameters(name string, raw []byte) (Processor, error) {
	params := DefaultNoiseParameters()
	if err := decodeParameters(raw, &params); err != nil {
		return nil, err
	}
	return NewNoiseAnalysis(name, params), nil
}

func (n *NoiseAnalysis) Type() string {
	return NoiseAnalysisType
}

func (n *NoiseAnalysis) Init(env *Environment) error {
	if env == nil || env.Geometry == nil || env.Geometry.NumLayers() == 0 {
		logger.Error(fmt.Sprintf("%s: the geometry is not available", n.name))
		return ErrGeometryUnavailable
	}
	if n.params.Dim4Sec < 0 {
		return fmt.Errorf("%s: Dim4Sec must not be negative, got %d", n.name, n.params.Dim4Sec)
	}
	n.verbosity = env.Verbosity
	n.sinks = env.Sinks

	n.dutIDs = make([]int, len(n.params.DutIDs))
	for i, id := range n.params.DutIDs {
		dutID, err := strconv.Atoi(id)
		if err != nil {
			return fmt.Errorf("%s: invalid DUT ID %q: %w", n.name, id, err)
		}
		n.dutIDs[i] = dutID
		if dutID < 0 || dutID >= len(n.params.ChipID) || dutID >= len(n.params.Irradiation) {
			logger.Info(fmt.Sprintf("No chip ID or irradiation level for DUT %d", dutID), n.name)
		}
	}

	n.nLayer = env.Geometry.NumLayers()
	n.xPixel = make([]int, n.nLayer)
	n.yPixel = make([]int, n.nLayer)
	n.nFiredPixel = make([][NSectors]int64, n.nLayer)
	for layer := 0; layer < n.nLayer; layer++ {
		n.xPixel[layer] = env.Geometry.PixelsX(layer)
		n.yPixel[layer] = env.Geometry.PixelsY(layer)
		if n.xPixel[layer]/4 < n.params.Dim4Sec {
			logger.Info(fmt.Sprintf("Dim4Sec %d is wider than a quarter of layer %d", n.params.Dim4Sec, layer), n.name)
		}
	}

	n.settings = make([]*SettingsFile, 0, len(n.dutIDs))
	for _, id := range n.params.DutIDs {
		filename := filepath.Join(n.params.OutputSettingsFolderName, "settings_DUT"+id+".txt")
		settingsFile, err := OpenSettingsFile(filename)
		if err != nil {
			n.closeSettings()
			return err
		}
		if n.verbosity > 0 {
			logger.Info(fmt.Sprintf("Settings file: %s", filename), n.name)
		}
		n.settings = append(n.settings, settingsFile)
	}
	return nil
}

func (n *NoiseAnalysis) ProcessEvent(evt *Event) error {
	zsCollection, err := evt.Collection(n.params.ZSDataCollectionName)
	if err != nil {
		var notFound *ErrCollectionNotFound
		if errors.As(err, &notFound) {
			logger.Info(fmt.Sprintf("In event %d %s not found", evt.EventNumber, n.params.ZSDataCollectionName), n.name)
			return nil
		}
		return err
	}

	// decode every block before touching the counters so a malformed event
	// leaves the analysis as it was
	decoded := make([][]SparsePixel, min(len(zsCollection.Elements), n.nLayer))
	var outsideGeometry int64
	for iDetector := range zsCollection.Elements {
		if iDetector >= n.nLayer {
			outsideGeometry += int64(len(zsCollection.Elements[iDetector].Charge) / sparsePixelSize)
			if n.verbosity > 1 {
				logger.Info(fmt.Sprintf("Event %d: detector %d is not in the geometry", evt.EventNumber, iDetector), n.name)
			}
			continue
		}
		pixels, err := zsCollection.Elements[iDetector].SparsePixels()
		if err != nil {
			return fmt.Errorf("event %d: %w", evt.EventNumber, err)
		}
		decoded[iDetector] = pixels
	}

	if n.isFirstEvent {
		if err := n.writeConfiguration(evt); err != nil {
			return err
		}
		if n.params.HistogramFilling {
			n.bookHistos()
		}
		n.isFirstEvent = false
	}
	if n.timeStampHisto != nil {
		n.timeStampHisto.Fill(float64(evt.Timestamp))
	}

	n.nEvent++
	n.droppedHits += outsideGeometry
	for iDetector, pixels := range decoded {
		for _, pixel := range pixels {
			if n.noiseMap != nil {
				n.noiseMap[iDetector].Fill(float64(pixel.X), float64(pixel.Y))
			}
			sector, ok := ClassifySector(pixel.X, n.xPixel[iDetector], n.params.Dim4Sec)
			if !ok {
				n.droppedHits++
				if n.verbosity > 1 {
					logger.Info(fmt.Sprintf("Event %d: pixel (%d, %d) outside layer %d", evt.EventNumber, pixel.X, pixel.Y, iDetector), n.name)
				}
				continue
			}
			n.nFiredPixel[iDetector][sector]++
		}
	}
	return nil
}

// writeConfiguration starts the row of every DUT. Files that already have
// a row are skipped, so retrying after a failed write never duplicates one.
func (n *NoiseAnalysis) writeConfiguration(evt *Event) error {
	for i, dutID := range n.dutIDs {
		if n.settings[i].RowStarted() {
			continue
		}
		snapshot := SnapshotParameters(evt.Parameters, dutID)
		snapshot.RunNumber = evt.RunNumber
		snapshot.Energy = n.params.Energy
		snapshot.ChipID = indexOrEmpty(n.params.ChipID, dutID)
		snapshot.Irradiation = indexOrEmpty(n.params.Irradiation, dutID)
		snapshot.Rate = n.params.Rate
		if err := n.settings[i].WriteConfiguration(snapshot); err != nil {
			return err
		}
	}
	return nil
}

func indexOrEmpty(values []string, i int) string {
	if i < 0 || i >= len(values) {
		return ""
	}
	return values[i]
}

func (n *NoiseAnalysis) bookHistos() {
	n.timeStampHisto = NewH1("timeStampHisto", "Distribution of the time stamp of the events; Time stamp (in 12.5 ns units)", 1000, 0, 50000)
	n.noiseMap = make([]*H2, n.nLayer)
	n.noiseOccupancy = make([]*H1, n.nLayer)
	for layer := 0; layer < n.nLayer; layer++ {
		x := n.xPixel[layer]
		y := n.yPixel[layer]
		n.noiseMap[layer] = NewH2(fmt.Sprintf("noiseMap_%d", layer), fmt.Sprintf("Noise map of layer %d", layer),
			x, 0, float64(x), y, 0, float64(y))
		n.noiseOccupancy[layer] = NewH1(fmt.Sprintf("noiseOccupancy_%d", layer), fmt.Sprintf("Noise occupancy in layer %d", layer), NSectors, 0, NSectors)
	}
}

func (n *NoiseAnalysis) End() error {
	if n.ended {
		return nil
	}
	n.ended = true
	logger.Info(fmt.Sprintf("Total number of events: %d", n.nEvent), n.name)
	if n.droppedHits > 0 {
		logger.Info(fmt.Sprintf("Hits outside the geometry: %d", n.droppedHits), n.name)
	}

	var errs []error
	for _, settingsFile := range n.settings {
		if !settingsFile.RowStarted() {
			logger.Info(fmt.Sprintf("No events processed, nothing written to %s", settingsFile.Filename), n.name)
		}
		if err := settingsFile.WriteClosing(n.nEvent); err != nil {
			errs = append(errs, err)
		}
	}
	if err := n.closeSettings(); err != nil {
		errs = append(errs, err)
	}

	n.occupancy = n.computeOccupancy()
	if n.noiseOccupancy != nil {
		for _, layerOccupancy := range n.occupancy {
			h := n.noiseOccupancy[layerOccupancy.Layer]
			for sector := 0; sector < NSectors; sector++ {
				if !layerOccupancy.Valid[sector] {
					continue
				}
				fired := layerOccupancy.Fired[sector]
				if fired == 0 {
					continue
				}
				h.FillWeighted(h.BinCenter(sector), fired, layerOccupancy.Occupancy[sector]/float64(fired))
			}
		}
		if err := n.writeHistograms(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (n *NoiseAnalysis) computeOccupancy() []LayerOccupancy {
	result := make([]LayerOccupancy, n.nLayer)
	for layer := 0; layer < n.nLayer; layer++ {
		result[layer].Layer = layer
		result[layer].Fired = n.nFiredPixel[layer]
		if n.nEvent == 0 {
			continue
		}
		for sector := Sector0; sector < NSectors; sector++ {
			if sector == Sector4 && n.params.Dim4Sec == 0 {
				continue
			}
			area := SectorArea(sector, n.xPixel[layer], n.yPixel[layer], n.params.Dim4Sec)
			if area <= 0 {
				continue
			}
			norm := float64(n.nEvent) * float64(area)
			fired := float64(n.nFiredPixel[layer][sector])
			result[layer].Occupancy[sector] = fired / norm
			result[layer].Error[sector] = math.Sqrt(fired) / norm
			result[layer].Valid[sector] = true
		}
	}
	return result
}

func (n *NoiseAnalysis) writeHistograms() error {
	var errs []error
	for _, sink := range n.sinks {
		if err := sink.WriteH1(n.name, n.timeStampHisto); err != nil {
			errs = append(errs, err)
		}
		for layer := 0; layer < n.nLayer; layer++ {
			if err := sink.WriteH2(n.name, n.noiseMap[layer]); err != nil {
				errs = append(errs, err)
			}
			if err := sink.WriteH1(n.name, n.noiseOccupancy[layer]); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (n *NoiseAnalysis) closeSettings() error {
	var errs []error
	for _, settingsFile := range n.settings {
		if err := settingsFile.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing %s: %w", settingsFile.Filename, err))
		}
	}
	n.settings = nil
	return errors.Join(errs...)
}

// Events is the number of events with the zero suppressed collection.
func (n *NoiseAnalysis) Events() int {
	return n.nEvent
}

// FiredPixels returns the accumulated counts of a layer.
func (n *NoiseAnalysis) FiredPixels(layer int) [NSectors]int64 {
	return n.nFiredPixel[layer]
}

// Occupancy is available after End.
func (n *NoiseAnalysis) Occupancy() []LayerOccupancy {
	return n.occupancy
}

// NoiseOccupancyHisto returns the occupancy histogram of a layer, nil when
// histogram filling is off or no event was processed.
func (n *NoiseAnalysis) NoiseOccupancyHisto(layer int) *H1 {
	if n.noiseOccupancy == nil {
		return nil
	}
	return n.noiseOccupancy[layer]
}
