package eutel

import (
	"fmt"

	"golang.org/x/exp/slices"
)

type Event struct {
	RunNumber   int
	EventNumber int
	// Timestamp in 12.5 ns units, as provided by the trigger logic
	Timestamp   int64
	Parameters  Parameters
	collections map[string]*TrackerDataCollection
}

func NewEvent(runNumber int, eventNumber int, timestamp int64) *Event {
	return &Event{
		RunNumber:   runNumber,
		EventNumber: eventNumber,
		Timestamp:   timestamp,
		Parameters:  make(Parameters),
		collections: make(map[string]*TrackerDataCollection),
	}
}

func (e *Event) AddCollection(name string, collection *TrackerDataCollection) error {
	if e.collections == nil {
		e.collections = make(map[string]*TrackerDataCollection)
	}
	if _, ok := e.collections[name]; ok {
		return fmt.Errorf("%w: %s", ErrCollectionExists, name)
	}
	e.collections[name] = collection
	return nil
}

func (e *Event) Collection(name string) (*TrackerDataCollection, error) {
	collection, ok := e.collections[name]
	if !ok {
		return nil, &ErrCollectionNotFound{Name: name, EventNumber: e.EventNumber}
	}
	return collection, nil
}

// CollectionNames returns the collection names sorted alphabetically.
func (e *Event) CollectionNames() []string {
	names := make([]string, 0, len(e.collections))
	for name := range e.collections {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

type Encoding int

const (
	EncodingDense Encoding = iota
	EncodingSparse
)

func (enc Encoding) String() string {
	switch enc {
	case EncodingDense:
		return "dense"
	case EncodingSparse:
		return "sparse"
	default:
		return "unknown"
	}
}

// TrackerDataCollection holds one TrackerData per detector, in readout order.
type TrackerDataCollection struct {
	Encoding Encoding
	Elements []TrackerData
}

type TrackerData struct {
	SensorID int
	Width    int
	Height   int
	Charge   []float32
}
