package eutel

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sliceSource struct {
	events []*Event
	inits  int
	ends   int
}

func (s *sliceSource) Type() string { return "sliceSource" }

func (s *sliceSource) Init(*Environment) error {
	s.inits++
	return nil
}

func (s *sliceSource) ProcessEvent(*Event) error { return nil }

func (s *sliceSource) End() error {
	s.ends++
	return nil
}

func (s *sliceSource) ReadDataSource(numEvents int) ([]*Event, error) {
	if len(s.events) == 0 {
		return nil, io.EOF
	}
	n := min(numEvents, len(s.events))
	events := s.events[:n]
	s.events = s.events[n:]
	return events, nil
}

func newSliceSource(runNumber int, nEvents int) *sliceSource {
	source := &sliceSource{}
	for i := 0; i < nEvents; i++ {
		source.events = append(source.events, NewEvent(runNumber, i, int64(i)))
	}
	return source
}

type countingProcessor struct {
	env    *Environment
	seen   []int
	params []Parameters
	ends   int
	failOn int
}

func (c *countingProcessor) Type() string { return "counting" }

func (c *countingProcessor) Init(env *Environment) error {
	c.env = env
	return nil
}

func (c *countingProcessor) ProcessEvent(evt *Event) error {
	if c.failOn > 0 && evt.EventNumber == c.failOn {
		return errors.New("broken event")
	}
	c.seen = append(c.seen, evt.EventNumber)
	c.params = append(c.params, evt.Parameters)
	return nil
}

func (c *countingProcessor) End() error {
	c.ends++
	return nil
}

func TestRunnerSkipAndMaxEvents(t *testing.T) {
	source := newSliceSource(3, 10)
	processor := &countingProcessor{}
	runner := NewRunner(Configuration{MaxEvents: 5, Skip: 2, ChunkSize: 3}, source, []Processor{processor})

	require.NoError(t, runner.Run(context.Background()))
	assert.Equal(t, []int{2, 3, 4}, processor.seen)
	assert.Equal(t, 3, runner.Processed())
	assert.Equal(t, 1, source.inits)
	assert.Equal(t, 1, source.ends)
	assert.Equal(t, 1, processor.ends)
	assert.NotEmpty(t, runner.JobID)
}

func TestRunnerAllEvents(t *testing.T) {
	source := newSliceSource(3, 250)
	processor := &countingProcessor{}
	runner := NewRunner(Configuration{}, source, []Processor{processor})

	require.NoError(t, runner.Run(context.Background()))
	assert.Len(t, processor.seen, 250)
	assert.Equal(t, 249, processor.seen[249])
}

func TestRunnerLoadsRunConditions(t *testing.T) {
	source := newSliceSource(42, 2)
	source.events[0].Parameters.Set("Ithr_0", 60)
	processor := &countingProcessor{}
	runner := NewRunner(Configuration{}, source, []Processor{processor})

	var geometryRun, paramsRun int
	runner.Geometry = func(runNumber int) (Geometry, error) {
		geometryRun = runNumber
		return testLayout, nil
	}
	runner.RunParams = func(runNumber int) (Parameters, error) {
		paramsRun = runNumber
		return Parameters{"Ithr_0": 51, "Idb_0": 64}, nil
	}
	sink := &recordingSink{}
	runner.Sinks = []HistogramSink{sink}

	require.NoError(t, runner.Run(context.Background()))
	assert.Equal(t, 42, geometryRun)
	assert.Equal(t, 42, paramsRun)
	assert.Equal(t, 2, processor.env.Geometry.NumLayers())
	require.Len(t, processor.params, 2)
	assert.Equal(t, 60, processor.params[0].Int("Ithr_0"), "event values win")
	assert.Equal(t, 51, processor.params[1].Int("Ithr_0"))
	assert.Equal(t, 64, processor.params[0].Int("Idb_0"))
	assert.True(t, sink.closed)
}

func TestRunnerProcessorError(t *testing.T) {
	source := newSliceSource(1, 10)
	processor := &countingProcessor{failOn: 4}
	runner := NewRunner(Configuration{ChunkSize: 2}, source, []Processor{processor})

	err := runner.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "event 4")
	assert.Equal(t, []int{0, 1, 2, 3}, processor.seen)
	assert.Equal(t, 1, processor.ends)
	assert.Equal(t, 1, source.ends)
}

func TestRunnerGeometryUnavailable(t *testing.T) {
	source := newSliceSource(1, 3)
	noise := NewNoiseAnalysis("noise", noiseParameters(t))
	runner := NewRunner(Configuration{}, source, []Processor{noise})
	runner.Geometry = func(int) (Geometry, error) { return nil, nil }

	err := runner.Run(context.Background())
	assert.ErrorIs(t, err, ErrGeometryUnavailable)
	assert.Equal(t, 1, source.ends)
}

func TestRunnerEmptyInput(t *testing.T) {
	source := newSliceSource(1, 0)
	processor := &countingProcessor{}
	runner := NewRunner(Configuration{}, source, []Processor{processor})

	require.NoError(t, runner.Run(context.Background()))
	assert.Nil(t, processor.env, "processors are initialised at the first event")
	assert.Equal(t, 0, processor.ends)
	assert.Equal(t, 1, source.ends)
}

func TestRunnerCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	runner := NewRunner(Configuration{}, newSliceSource(1, 1000), nil)
	assert.ErrorIs(t, runner.Run(ctx), context.Canceled)
}

func TestRunnerRawFileToNoiseOccupancy(t *testing.T) {
	params := DefaultMimoTelParameters()
	params.InputFileName = writeRawFile(t, 12, 50)
	params.ZSThreshold = 2
	reader := NewMimoTelReader("reader", params)

	noiseParams := noiseParameters(t)
	noise := NewNoiseAnalysis("noise", noiseParams)
	runner := NewRunner(Configuration{ChunkSize: 7}, reader, []Processor{noise})
	runner.Geometry = func(int) (Geometry, error) {
		return LayerLayout{{ID: 0, NPixelX: 4, NPixelY: 2}, {ID: 1, NPixelX: 4, NPixelY: 2}}, nil
	}

	require.NoError(t, runner.Run(context.Background()))
	assert.Equal(t, 50, noise.Events())
	// plane 0 fires at x=1, plane 1 at x=2
	assert.Equal(t, [NSectors]int64{0, 50, 0, 0, 0}, noise.FiredPixels(0))
	assert.Equal(t, [NSectors]int64{0, 0, 50, 0, 0}, noise.FiredPixels(1))
	assert.InDelta(t, 0.5, noise.Occupancy()[0].Occupancy[Sector1], 1e-12)
}
