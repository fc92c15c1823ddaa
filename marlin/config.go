package main

import (
	"encoding/json"
	"fmt"
	"os"

	eutel "github.com/eutelescope/eutel_go/pkg"
)

func LoadConfiguration(filename string) (eutel.Configuration, error) {
	var config eutel.Configuration

	// Set default values
	config.MaxEvents = 1000000000
	config.Skip = 0
	config.Verbosity = 0
	config.ChunkSize = 100
	config.UseDB = false
	config.DB = eutel.DBConfig{
		Driver: "mysql",
		Host:   "localhost",
		User:   "eutelreader",
		Passwd: "readonly",
		DBName: "EUTELESCOPE",
	}
	config.CompressionLevel = 4

	data, err := os.ReadFile(filename)
	if err != nil {
		return config, err
	}
	err = json.Unmarshal(data, &config)
	if err != nil {
		return config, err
	}
	if len(config.Processors) == 0 {
		return config, fmt.Errorf("no processors in %s", filename)
	}
	return config, nil
}

func printConfiguration(config eutel.Configuration, logger Logger) {
	logger.Info(fmt.Sprintf("Max events: %d", config.MaxEvents), "config")
	logger.Info(fmt.Sprintf("Skip: %d", config.Skip), "config")
	logger.Info(fmt.Sprintf("Verbosity: %d", config.Verbosity), "config")
	logger.Info(fmt.Sprintf("Chunk size: %d", config.ChunkSize), "config")
	logger.Info(fmt.Sprintf("GEAR file: %s", config.GearFile), "config")
	logger.Info(fmt.Sprintf("Use DB: %t", config.UseDB), "config")
	logger.Info(fmt.Sprintf("DB driver: %s", config.DB.Driver), "config")
	logger.Info(fmt.Sprintf("Host: %s", config.DB.Host), "config")
	logger.Info(fmt.Sprintf("DB name: %s", config.DB.DBName), "config")
	logger.Info(fmt.Sprintf("HDF5 file: %s", config.HDF5File), "config")
	logger.Info(fmt.Sprintf("Compression level: %d", config.CompressionLevel), "config")
	logger.Info(fmt.Sprintf("Plot folder: %s", config.PlotFolder), "config")
	logger.Info(fmt.Sprintf("HTML report: %s", config.HTMLReport), "config")
	for i, processor := range config.Processors {
		logger.Info(fmt.Sprintf("Processor %d: %s (%s)", i, processor.Name, processor.Type), "config")
	}
}
