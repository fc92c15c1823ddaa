package eutel

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
)

const settingsHeader = "Run number;Energy;Chip ID;Irradiation level(0-nonIrradiated,1-2.5e12,2-1e13,3-700krad,4-combined:1e13+700krad);Rate;BB;Ithr;Idb;Vcasn;Vaux;Vcasp;Vreset;Threshold and their RMS for all four sectors;Noise and their RMS for all four sectors;Readout delay;Trigger delay;Strobe length;StrobeB length;Data (1) or noise (0);Number of events;Efficiency,Number of tracks,Number of tracks with associated hit for all sectors"

// Efficiency, tracks and tracks with hits for the four quarters are filled
// by the tracking analysis; noise runs leave them at zero.
const settingsPlaceholders = 12

// SettingsSnapshot is the chip configuration of one DUT at the start of a run.
type SettingsSnapshot struct {
	RunNumber     int
	Energy        float64
	ChipID        string
	Irradiation   string
	Rate          string
	BackBias      float64
	Ithr          int
	Idb           int
	Vcasn         int
	Vaux          int
	Vcasp         int
	Vreset        int
	Thr           [NSectors]float64
	ThrRMS        [NSectors]float64
	Noise         [NSectors]float64
	NoiseRMS      [NSectors]float64
	ReadoutDelay  int
	TriggerDelay  int
	StrobeLength  int
	StrobeBLength int
}

// SnapshotParameters reads the DUT settings from the event run parameters.
// Per-DUT names are suffixed with _<dutID>, per-sector ones with _<dutID>_<sector>.
func SnapshotParameters(params Parameters, dutID int) SettingsSnapshot {
	name := func(base string) string {
		return fmt.Sprintf("%s_%d", base, dutID)
	}
	s := SettingsSnapshot{
		BackBias:      params.Float("BackBiasVoltage"),
		Ithr:          params.Int(name("Ithr")),
		Idb:           params.Int(name("Idb")),
		Vcasn:         params.Int(name("Vcasn")),
		Vaux:          params.Int(name("Vaux")),
		Vcasp:         params.Int(name("Vcasp")),
		Vreset:        params.Int(name("Vreset")),
		ReadoutDelay:  params.Int(name("m_readout_delay")),
		TriggerDelay:  params.Int(name("m_trigger_delay")),
		StrobeLength:  params.Int(name("m_strobe_length")),
		StrobeBLength: params.Int(name("m_strobeb_length")),
	}
	for sector := 0; sector < NSectors; sector++ {
		s.Thr[sector] = params.Float(fmt.Sprintf("Thr_%d_%d", dutID, sector))
		s.ThrRMS[sector] = params.Float(fmt.Sprintf("ThrRMS_%d_%d", dutID, sector))
		s.Noise[sector] = params.Float(fmt.Sprintf("Noise_%d_%d", dutID, sector))
		s.NoiseRMS[sector] = params.Float(fmt.Sprintf("NoiseRMS_%d_%d", dutID, sector))
	}
	return s
}

// formatNumber prints like a default C++ output stream: %g with 6 digits.
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}

// Fields returns the configuration part of a settings row, ending with the
// data/noise flag.
func (s SettingsSnapshot) Fields() []string {
	fields := []string{
		strconv.Itoa(s.RunNumber),
		formatNumber(s.Energy),
		s.ChipID,
		s.Irradiation,
		s.Rate,
		formatNumber(s.BackBias),
		strconv.Itoa(s.Ithr),
		strconv.Itoa(s.Idb),
		strconv.Itoa(s.Vcasn),
		strconv.Itoa(s.Vaux),
		strconv.Itoa(s.Vcasp),
		strconv.Itoa(s.Vreset),
	}
	for sector := 0; sector < NSectors; sector++ {
		fields = append(fields, formatNumber(s.Thr[sector]), formatNumber(s.ThrRMS[sector]))
	}
	for sector := 0; sector < NSectors; sector++ {
		fields = append(fields, formatNumber(s.Noise[sector]), formatNumber(s.NoiseRMS[sector]))
	}
	fields = append(fields,
		strconv.Itoa(s.ReadoutDelay),
		strconv.Itoa(s.TriggerDelay),
		strconv.Itoa(s.StrobeLength),
		strconv.Itoa(s.StrobeBLength),
		"0", // noise run
	)
	return fields
}

// SettingsFile is the per-DUT run log. A row is written in two steps: the
// configuration at the first event and the event count at the end of the run.
type SettingsFile struct {
	File       *os.File
	Filename   string
	rowStarted bool
}

func OpenSettingsFile(filename string) (*SettingsFile, error) {
	newFile := false
	if _, err := os.Stat(filename); errors.Is(err, fs.ErrNotExist) {
		newFile = true
	}
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, &ErrOpenFile{Filename: filename, Err: err}
	}
	if newFile {
		if _, err := file.WriteString(settingsHeader + "\n"); err != nil {
			file.Close()
			return nil, fmt.Errorf("error writing settings header: %w", err)
		}
	}
	return &SettingsFile{File: file, Filename: filename}, nil
}

func (s *SettingsFile) WriteConfiguration(snapshot SettingsSnapshot) error {
	row := strings.Join(snapshot.Fields(), ";") + ";"
	if _, err := s.File.WriteString(row); err != nil {
		return fmt.Errorf("error writing settings to %s: %w", s.Filename, err)
	}
	s.rowStarted = true
	return nil
}

// WriteClosing completes the row with the number of events and the zero
// filled analysis placeholders. Nothing is written if the row was never
// started, so that the file keeps one row per run.
func (s *SettingsFile) WriteClosing(nEvents int) error {
	if !s.rowStarted {
		return nil
	}
	fields := make([]string, 0, settingsPlaceholders+1)
	fields = append(fields, strconv.Itoa(nEvents))
	for i := 0; i < settingsPlaceholders; i++ {
		fields = append(fields, "0")
	}
	if _, err := s.File.WriteString(strings.Join(fields, ";") + "\n"); err != nil {
		return fmt.Errorf("error writing settings to %s: %w", s.Filename, err)
	}
	s.rowStarted = false
	return nil
}

func (s *SettingsFile) RowStarted() bool {
	return s.rowStarted
}

func (s *SettingsFile) Close() error {
	return s.File.Close()
}
