package eutel

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
)

const defaultChunkSize = 100

// GeometryLoader resolves the geometry once the run number is known.
type GeometryLoader func(runNumber int) (Geometry, error)

// ParameterLoader returns run parameters to merge into every event.
// Parameters already present in an event take precedence.
type ParameterLoader func(runNumber int) (Parameters, error)

type Runner struct {
	JobID      string
	Source     DataSource
	Processors []Processor
	Geometry   GeometryLoader
	RunParams  ParameterLoader
	Sinks      []HistogramSink
	Config     Configuration

	extraParameters Parameters
	evtCount        int
	processed       int
}

type chunk struct {
	events []*Event
	err    error
}

func NewRunner(config Configuration, source DataSource, processors []Processor) *Runner {
	return &Runner{
		JobID:      uuid.New().String(),
		Source:     source,
		Processors: processors,
		Config:     config,
		evtCount:   -1,
	}
}

// Processed is the number of events handed to the processors.
func (r *Runner) Processed() int {
	return r.processed
}

// Run drives the job: the data source is initialised first, the remaining
// processors once the first events fix the run number. Every initialised
// processor is ended, also after errors.
func (r *Runner) Run(ctx context.Context) error {
	logger.Info(fmt.Sprintf("Starting job %s", r.JobID), "runner")
	env := &Environment{Sinks: r.Sinks, Verbosity: r.Config.Verbosity}
	if err := r.Source.Init(env); err != nil {
		return fmt.Errorf("error initialising %s: %w", r.Source.Type(), err)
	}
	initialised := []Processor{r.Source}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	chunkSize := r.Config.ChunkSize
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	chunks := make(chan chunk, 4)
	go sendEventsToProcessors(ctx, r.Source, chunkSize, chunks)

	runErr := r.consume(ctx, env, chunks, &initialised)
	cancel()
	// drain so the producer can exit
	for range chunks {
	}

	var errs []error
	if runErr != nil {
		errs = append(errs, runErr)
	}
	for _, processor := range initialised {
		if err := processor.End(); err != nil {
			errs = append(errs, fmt.Errorf("error ending %s: %w", processor.Type(), err))
		}
	}
	for _, sink := range r.Sinks {
		if err := sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	logger.Info(fmt.Sprintf("Job %s finished, %d events processed", r.JobID, r.processed), "runner")
	return errors.Join(errs...)
}

func (r *Runner) consume(ctx context.Context, env *Environment, chunks <-chan chunk, initialised *[]Processor) error {
	started := false
	for c := range chunks {
		for _, evt := range c.events {
			if !started {
				if err := r.initProcessors(env, evt.RunNumber, initialised); err != nil {
					return err
				}
				started = true
			}
			done, err := r.processEvent(evt)
			if err != nil {
				return err
			}
			if done {
				return nil
			}
		}
		if c.err != nil {
			return c.err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	if !started {
		logger.Info("No events in input", "runner")
	}
	return ctx.Err()
}

func (r *Runner) initProcessors(env *Environment, runNumber int, initialised *[]Processor) error {
	if r.Geometry != nil {
		geometry, err := r.Geometry(runNumber)
		if err != nil {
			return fmt.Errorf("error loading geometry for run %d: %w", runNumber, err)
		}
		env.Geometry = geometry
	}
	if r.RunParams != nil {
		params, err := r.RunParams(runNumber)
		if err != nil {
			return fmt.Errorf("error loading run parameters for run %d: %w", runNumber, err)
		}
		r.extraParameters = params
	}
	for _, processor := range r.Processors {
		if err := processor.Init(env); err != nil {
			return fmt.Errorf("error initialising %s: %w", processor.Type(), err)
		}
		*initialised = append(*initialised, processor)
	}
	return nil
}

// processEvent applies skip and max events, then runs every processor.
// done is true once max events is reached.
func (r *Runner) processEvent(evt *Event) (done bool, err error) {
	r.evtCount++
	if r.Config.MaxEvents > 0 && r.evtCount >= r.Config.MaxEvents {
		if r.Config.Verbosity > 0 {
			logger.Info("Max events reached", "runner")
		}
		return true, nil
	}
	if r.evtCount < r.Config.Skip {
		if r.Config.Verbosity > 0 {
			message := fmt.Sprintf("Skipping event %d with ID %d", r.evtCount, evt.EventNumber)
			logger.Info(message, "runner")
		}
		return false, nil
	}
	if r.Config.Verbosity > 1 {
		message := fmt.Sprintf("Processing event %d with ID %d", r.evtCount, evt.EventNumber)
		logger.Info(message, "runner")
	}
	if evt.Parameters == nil {
		evt.Parameters = make(Parameters)
	}
	for name, value := range r.extraParameters {
		if !evt.Parameters.Has(name) {
			evt.Parameters.Set(name, value)
		}
	}
	for _, processor := range r.Processors {
		if err := processor.ProcessEvent(evt); err != nil {
			return false, fmt.Errorf("%s failed on event %d: %w", processor.Type(), evt.EventNumber, err)
		}
	}
	r.processed++
	return false, nil
}

func sendEventsToProcessors(ctx context.Context, source DataSource, chunkSize int, chunks chan<- chunk) {
	defer close(chunks)
	for {
		events, err := source.ReadDataSource(chunkSize)
		if err == io.EOF {
			return
		}
		select {
		case chunks <- chunk{events: events, err: err}:
		case <-ctx.Done():
			return
		}
		if err != nil {
			return
		}
	}
}
