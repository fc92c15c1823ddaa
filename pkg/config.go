package eutel

import "encoding/json"

type Configuration struct {
	MaxEvents        int               `json:"max_events"`
	Skip             int               `json:"skip"`
	Verbosity        int               `json:"verbosity"`
	ChunkSize        int               `json:"chunk_size"`
	GearFile         string            `json:"gear_file"`
	UseDB            bool              `json:"use_db"`
	DB               DBConfig          `json:"db"`
	HDF5File         string            `json:"hdf5_file"`
	CompressionLevel int               `json:"compression_level"`
	PlotFolder       string            `json:"plot_folder"`
	HTMLReport       string            `json:"html_report"`
	Processors       []ProcessorConfig `json:"processors"`
}

// ProcessorConfig selects a processor type and its parameters. Parameters
// are decoded by the processor factory.
type ProcessorConfig struct {
	Type       string          `json:"type"`
	Name       string          `json:"name"`
	Parameters json.RawMessage `json:"parameters"`
}

var configuration Configuration

func GetConfiguration() Configuration {
	return configuration
}

func SetConfiguration(config Configuration) {
	configuration = config
}
