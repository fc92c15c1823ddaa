package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/eutelescope/eutel_go/h5out"
	eutel "github.com/eutelescope/eutel_go/pkg"
	"github.com/eutelescope/eutel_go/plots"
	sqlx "github.com/jmoiron/sqlx"
)

var dbConn *sqlx.DB
var configuration eutel.Configuration

var (
	logger         Logger
	VerbosityLevel int
)

func init() {
	opts := &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}
	handlerStdOut := NewHandler(os.Stdout, opts)
	handlerStdErr := slog.NewJSONHandler(os.Stderr, opts)
	logger = Logger{
		InfoLog:  slog.New(handlerStdOut),
		ErrorLog: slog.New(handlerStdErr),
	}
}

func main() {
	configFilename := flag.String("config", "", "Steering file path")
	initDB := flag.String("init-db", "", "Create the run conditions schema in this sqlite file and exit")
	flag.Parse()

	eutel.SetLogger(logger)

	if *initDB != "" {
		if err := initDatabase(*initDB); err != nil {
			logger.Error(err.Error())
			os.Exit(1)
		}
		return
	}

	var err error
	configuration, err = LoadConfiguration(*configFilename)
	if err != nil {
		message := fmt.Errorf("Error reading configuration file: %w", err)
		logger.Error(message.Error())
		os.Exit(1)
	}
	eutel.SetConfiguration(configuration)

	VerbosityLevel = configuration.Verbosity
	if VerbosityLevel > 0 {
		message := fmt.Sprintf("Reading configuration file: %s", *configFilename)
		logger.Info(message, "main")
		printConfiguration(configuration, logger)
	}

	if configuration.UseDB {
		dbConn, err = eutel.ConnectToDatabase(configuration.DB)
		if err != nil {
			message := fmt.Errorf("Error connection to database: %w", err)
			logger.Error(message.Error())
			os.Exit(1)
		}
		defer dbConn.Close()
	}

	runner, err := buildRunner(configuration)
	if err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := runner.Run(ctx); err != nil {
		logger.Error(err.Error())
		if errors.Is(err, eutel.ErrGeometryUnavailable) {
			logger.Error("The geometry is not available, check gear_file or the database")
		}
		os.Exit(1)
	}
}

func buildRunner(config eutel.Configuration) (*eutel.Runner, error) {
	registry := eutel.DefaultRegistry()
	registry.Register(h5out.FrameDumpType, h5out.NewFrameDumpFromParameters)

	var source eutel.DataSource
	processors := make([]eutel.Processor, 0, len(config.Processors))
	for _, processorConfig := range config.Processors {
		processor, err := registry.New(processorConfig)
		if err != nil {
			return nil, fmt.Errorf("%w (known types: %s)", err, strings.Join(registry.Types(), ", "))
		}
		if ds, ok := processor.(eutel.DataSource); ok {
			if source != nil {
				return nil, fmt.Errorf("only one data source is allowed, found %s", processorConfig.Name)
			}
			source = ds
			continue
		}
		processors = append(processors, processor)
	}
	if source == nil {
		return nil, errors.New("no data source in the processor list")
	}

	runner := eutel.NewRunner(config, source, processors)
	runner.Geometry = geometryLoader(config)
	if config.UseDB {
		runner.RunParams = func(runNumber int) (eutel.Parameters, error) {
			return eutel.LoadRunParameters(dbConn, runNumber)
		}
	}

	if config.HDF5File != "" {
		writer, err := h5out.NewHistogramWriter(config.HDF5File, config.CompressionLevel)
		if err != nil {
			return nil, err
		}
		runner.Sinks = append(runner.Sinks, writer)
	}
	if config.PlotFolder != "" {
		sink, err := plots.NewPNGSink(config.PlotFolder)
		if err != nil {
			return nil, err
		}
		runner.Sinks = append(runner.Sinks, sink)
	}
	if config.HTMLReport != "" {
		runner.Sinks = append(runner.Sinks, plots.NewHTMLSink(config.HTMLReport))
	}
	if VerbosityLevel > 0 {
		logger.Info(fmt.Sprintf("Job ID: %s", runner.JobID), "main")
	}
	return runner, nil
}

// geometryLoader prefers the GEAR file; the database is used when no file is set.
func geometryLoader(config eutel.Configuration) eutel.GeometryLoader {
	return func(runNumber int) (eutel.Geometry, error) {
		if config.GearFile != "" {
			return eutel.LoadGearFile(config.GearFile)
		}
		if config.UseDB {
			return eutel.LoadGeometryFromDB(dbConn, runNumber)
		}
		return nil, nil
	}
}

func initDatabase(filename string) error {
	db, err := eutel.ConnectToDatabase(eutel.DBConfig{Driver: "sqlite", DBName: filename})
	if err != nil {
		return fmt.Errorf("error opening %s: %w", filename, err)
	}
	defer db.Close()
	if err := eutel.MigrateUp(db); err != nil {
		return err
	}
	logger.Info(fmt.Sprintf("Run conditions schema created in %s", filename), "main")
	return nil
}
