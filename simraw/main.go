package main

import (
	"bufio"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"os"

	eutel "github.com/eutelescope/eutel_go/pkg"
	"gonum.org/v1/gonum/stat/distuv"
)

var logger Logger

func init() {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}
	logger = Logger{
		InfoLog:  slog.New(slog.NewTextHandler(os.Stdout, opts)),
		ErrorLog: slog.New(slog.NewJSONHandler(os.Stderr, opts)),
	}
}

type simConfig struct {
	Output    string
	GearFile  string
	Run       int
	Events    int
	Planes    int
	Width     int
	Height    int
	Pedestal  float64
	Noise     float64
	HitRate   float64
	Signal    float64
	Seed      uint64
	DutIDs    int
	Timestamp int64
}

func main() {
	var config simConfig
	flag.StringVar(&config.Output, "out", "run.raw", "Raw file to write")
	flag.StringVar(&config.GearFile, "gear", "", "Also write the matching GEAR file")
	flag.IntVar(&config.Run, "run", 1, "Run number")
	flag.IntVar(&config.Events, "events", 100, "Number of events")
	flag.IntVar(&config.Planes, "planes", 6, "Number of planes")
	flag.IntVar(&config.Width, "width", 64, "Pixels along x")
	flag.IntVar(&config.Height, "height", 32, "Pixels along y")
	flag.Float64Var(&config.Pedestal, "pedestal", 1000, "Mean pedestal in ADC counts")
	flag.Float64Var(&config.Noise, "noise", 3, "Read noise sigma in ADC counts")
	flag.Float64Var(&config.HitRate, "hit-rate", 1e-3, "Probability of a fired pixel per event")
	flag.Float64Var(&config.Signal, "signal", 50, "Mean signal of a fired pixel in ADC counts")
	flag.Uint64Var(&config.Seed, "seed", 1, "Random seed")
	flag.IntVar(&config.DutIDs, "duts", 1, "Number of DUTs with chip settings in the BORE")
	flag.Int64Var(&config.Timestamp, "timestamp-step", 400, "Timestamp step between events (12.5 ns units)")
	flag.Parse()

	eutel.SetLogger(logger)
	if err := simulate(config); err != nil {
		logger.Error(fmt.Sprintf("Error simulating run %d: %s", config.Run, err))
		os.Exit(1)
	}
}

func simulate(config simConfig) error {
	file, err := os.Create(config.Output)
	if err != nil {
		return err
	}
	defer file.Close()
	buffered := bufio.NewWriter(file)
	writer := eutel.NewRawWriter(buffered)

	if err := writer.WriteBORE(config.Run, chipSettings(config.DutIDs)); err != nil {
		return err
	}

	src := rand.NewPCG(config.Seed, config.Seed^0x9e3779b97f4a7c15)
	uniform := rand.New(src)
	readNoise := distuv.Normal{Mu: 0, Sigma: config.Noise, Src: src}
	signal := distuv.Exponential{Rate: 1 / config.Signal, Src: src}

	frameSize := config.Width * config.Height
	pedestals := make([][]float64, config.Planes)
	for plane := range pedestals {
		pedestals[plane] = make([]float64, frameSize)
		for i := range pedestals[plane] {
			pedestals[plane][i] = config.Pedestal + 10*readNoise.Rand()
		}
	}

	for evt := 0; evt < config.Events; evt++ {
		planes := make([]eutel.RawPlane, config.Planes)
		for plane := range planes {
			frames := [][]int16{make([]int16, frameSize), make([]int16, frameSize), make([]int16, frameSize)}
			for i := 0; i < frameSize; i++ {
				charge := 0.0
				if uniform.Float64() < config.HitRate {
					charge = signal.Rand()
				}
				ped := pedestals[plane][i]
				frames[0][i] = adc(ped + readNoise.Rand())
				frames[1][i] = adc(ped - charge + readNoise.Rand())
				frames[2][i] = adc(ped - charge + readNoise.Rand())
			}
			planes[plane] = eutel.RawPlane{PlaneID: plane, Width: config.Width, Height: config.Height, Frames: frames}
		}
		if err := writer.WriteEvent(config.Run, evt, int64(evt)*config.Timestamp, planes); err != nil {
			return err
		}
	}
	if err := writer.WriteEORE(config.Run, config.Events); err != nil {
		return err
	}
	if err := buffered.Flush(); err != nil {
		return err
	}

	if config.GearFile != "" {
		layout := make(eutel.LayerLayout, config.Planes)
		for i := range layout {
			layout[i] = eutel.Layer{ID: i, NPixelX: config.Width, NPixelY: config.Height}
		}
		data, err := eutel.MarshalGear(layout)
		if err != nil {
			return err
		}
		if err := os.WriteFile(config.GearFile, data, 0644); err != nil {
			return err
		}
	}
	logger.Info(fmt.Sprintf("Wrote %d events of run %d to %s", config.Events, config.Run, config.Output), "simraw")
	return nil
}

// adc saturates a sample at the int16 range of the readout.
func adc(value float64) int16 {
	return int16(math.Max(math.MinInt16, math.Min(math.MaxInt16, value)))
}

// chipSettings returns a plausible set of DUT settings for the BORE.
func chipSettings(nDuts int) eutel.Parameters {
	params := eutel.Parameters{"BackBiasVoltage": -3}
	for dut := 0; dut < nDuts; dut++ {
		params.Set(fmt.Sprintf("Ithr_%d", dut), 51)
		params.Set(fmt.Sprintf("Idb_%d", dut), 64)
		params.Set(fmt.Sprintf("Vcasn_%d", dut), 105)
		params.Set(fmt.Sprintf("Vaux_%d", dut), 117)
		params.Set(fmt.Sprintf("Vcasp_%d", dut), 86)
		params.Set(fmt.Sprintf("Vreset_%d", dut), 147)
		for sector := 0; sector < eutel.NSectors; sector++ {
			params.Set(fmt.Sprintf("Thr_%d_%d", dut, sector), 110+float64(sector))
			params.Set(fmt.Sprintf("ThrRMS_%d_%d", dut, sector), 12.5)
			params.Set(fmt.Sprintf("Noise_%d_%d", dut, sector), 5.5)
			params.Set(fmt.Sprintf("NoiseRMS_%d_%d", dut, sector), 1.25)
		}
		params.Set(fmt.Sprintf("m_readout_delay_%d", dut), 10)
		params.Set(fmt.Sprintf("m_trigger_delay_%d", dut), 75)
		params.Set(fmt.Sprintf("m_strobe_length_%d", dut), 80)
		params.Set(fmt.Sprintf("m_strobeb_length_%d", dut), 20)
	}
	return params
}
