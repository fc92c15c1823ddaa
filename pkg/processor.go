package eutel

import (
	"encoding/json"
	"fmt"

	"golang.org/x/exp/slices"
)

// Processor is driven by the Runner: Init once, ProcessEvent for every
// event in order, End once after the last event.
type Processor interface {
	Type() string
	Init(env *Environment) error
	ProcessEvent(evt *Event) error
	End() error
}

// DataSource is a processor that also produces the events.
// ReadDataSource returns at most numEvents events and io.EOF once the
// input is exhausted.
type DataSource interface {
	Processor
	ReadDataSource(numEvents int) ([]*Event, error)
}

// Environment is what the host provides to processors at Init.
type Environment struct {
	Geometry  Geometry
	Sinks     []HistogramSink
	Verbosity int
}

type Factory func(name string, params []byte) (Processor, error)

type Registry struct {
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// DefaultRegistry knows every processor type of this module.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NoiseAnalysisType, NewNoiseAnalysisFromParameters)
	r.Register(MimoTelReaderType, NewMimoTelReaderFromParameters)
	return r
}

func (r *Registry) Register(processorType string, factory Factory) {
	r.factories[processorType] = factory
}

func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}

func (r *Registry) New(config ProcessorConfig) (Processor, error) {
	factory, ok := r.factories[config.Type]
	if !ok {
		return nil, fmt.Errorf("unknown processor type %q", config.Type)
	}
	name := config.Name
	if name == "" {
		name = config.Type
	}
	processor, err := factory(name, config.Parameters)
	if err != nil {
		return nil, fmt.Errorf("error creating processor %s: %w", name, err)
	}
	return processor, nil
}

// decodeParameters unmarshals raw parameters over the defaults already set in params.
func decodeParameters(raw []byte, params any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, params); err != nil {
		return fmt.Errorf("error decoding parameters: %w", err)
	}
	return nil
}
