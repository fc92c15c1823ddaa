package h5out

import (
	"path/filepath"
	"testing"

	eutel "github.com/eutelescope/eutel_go/pkg"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/hdf5"
)

func denseCollection(planes map[int][]float32) *eutel.TrackerDataCollection {
	collection := &eutel.TrackerDataCollection{Encoding: eutel.EncodingDense}
	for id := 0; id < 4; id++ {
		if charge, ok := planes[id]; ok {
			collection.Elements = append(collection.Elements, eutel.TrackerData{SensorID: id, Charge: charge})
		}
	}
	return collection
}

func readPlane(t *testing.T, filename string, name string) ([]uint, []int16) {
	file, err := hdf5.OpenFile(filename, hdf5.F_ACC_RDONLY)
	require.NoError(t, err)
	defer file.Close()
	dset, err := file.OpenDataset("RD/" + name)
	require.NoError(t, err)
	defer dset.Close()
	space := dset.Space()
	defer space.Close()
	dims, _, err := space.SimpleExtentDims()
	require.NoError(t, err)
	data := make([]int16, dims[0]*dims[1])
	require.NoError(t, dset.Read(&data))
	return dims, data
}

func TestFrameWriterCreatesPlanesLazily(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "frames.h5")
	writer, err := NewFrameWriter(filename, 0)
	require.NoError(t, err)

	// the first event has no planes at all
	require.NoError(t, writer.WriteEvent(eutel.NewEvent(1, 0, 0), denseCollection(nil)))
	require.NoError(t, writer.WriteEvent(eutel.NewEvent(1, 1, 400), denseCollection(map[int][]float32{
		1: {1, 2, 3, 4},
	})))
	require.NoError(t, writer.WriteEvent(eutel.NewEvent(1, 2, 800), denseCollection(map[int][]float32{
		1: {5, 6, 7, 40000},
	})))
	assert.Error(t, writer.WriteEvent(eutel.NewEvent(1, 3, 1200), denseCollection(map[int][]float32{
		1: {1, 2, 3},
	})))
	assert.Equal(t, 3, writer.EvtCounter, "a rejected event writes nothing")
	require.NoError(t, writer.Close())

	dims, data := readPlane(t, filename, "plane_1")
	assert.Equal(t, []uint{3, 4}, dims)
	want := []int16{
		0, 0, 0, 0,
		1, 2, 3, 4,
		5, 6, 7, 32767,
	}
	if diff := cmp.Diff(want, data); diff != "" {
		t.Errorf("plane_1 mismatch (-want +got):\n%s", diff)
	}
}

func TestFrameWriterRejectsSparseData(t *testing.T) {
	writer, err := NewFrameWriter(filepath.Join(t.TempDir(), "frames.h5"), 0)
	require.NoError(t, err)
	defer writer.Close()
	err = writer.WriteEvent(eutel.NewEvent(1, 0, 0), &eutel.TrackerDataCollection{Encoding: eutel.EncodingSparse})
	assert.Error(t, err)
}
