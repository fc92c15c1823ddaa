package eutel

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventCollections(t *testing.T) {
	evt := NewEvent(12, 3, 400)
	require.NoError(t, evt.AddCollection("zsdata", &TrackerDataCollection{Encoding: EncodingSparse}))
	require.NoError(t, evt.AddCollection("cds", &TrackerDataCollection{Encoding: EncodingDense}))

	err := evt.AddCollection("cds", &TrackerDataCollection{})
	assert.ErrorIs(t, err, ErrCollectionExists)

	collection, err := evt.Collection("zsdata")
	require.NoError(t, err)
	assert.Equal(t, EncodingSparse, collection.Encoding)

	_, err = evt.Collection("rawdata1")
	var notFound *ErrCollectionNotFound
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "rawdata1", notFound.Name)
	assert.Equal(t, 3, notFound.EventNumber)

	assert.Equal(t, []string{"cds", "zsdata"}, evt.CollectionNames())
}

func TestSparsePixels(t *testing.T) {
	pixels := []SparsePixel{{X: 1, Y: 2, Signal: 15.5}, {X: 1151, Y: 575, Signal: 3, Time: 1}}
	td := TrackerData{SensorID: 2, Charge: EncodeSparsePixels(pixels)}
	assert.Len(t, td.Charge, 8)

	decoded, err := td.SparsePixels()
	require.NoError(t, err)
	if diff := cmp.Diff(pixels, decoded); diff != "" {
		t.Errorf("SparsePixels() mismatch (-want +got):\n%s", diff)
	}

	td.Charge = td.Charge[:7]
	_, err = td.SparsePixels()
	assert.Error(t, err)
}

func TestEncodingString(t *testing.T) {
	assert.Equal(t, "dense", EncodingDense.String())
	assert.Equal(t, "sparse", EncodingSparse.String())
	assert.Equal(t, "unknown", Encoding(7).String())
}
