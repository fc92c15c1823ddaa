package h5out

import (
	"fmt"

	"gonum.org/v1/hdf5"
)

// H5S_UNLIMITED is -1L
var unlimitedDims = -1

const STRLEN = 32

func convertToHdf5String(s string) [STRLEN]byte {
	var byteArray [STRLEN]byte
	copy(byteArray[:], s)
	return byteArray
}

func createFile(fname string) (*hdf5.File, error) {
	f, err := hdf5.CreateFile(fname, hdf5.F_ACC_TRUNC)
	if err != nil {
		return nil, &ErrOpenFile{Filename: fname, Err: err}
	}
	return f, nil
}

func createGroup(file *hdf5.File, groupName string) (*hdf5.Group, error) {
	g, err := file.CreateGroup(groupName)
	if err != nil {
		return nil, &ErrCreateGroup{GroupName: groupName, Err: err}
	}
	return g, nil
}

func datasetPropList(chunks []uint, compressionLevel int) (*hdf5.PropList, error) {
	plist, err := hdf5.NewPropList(hdf5.P_DATASET_CREATE)
	if err != nil {
		return nil, err
	}
	if err := plist.SetChunk(chunks); err != nil {
		plist.Close()
		return nil, err
	}
	if compressionLevel > 0 {
		if err := plist.SetDeflate(compressionLevel); err != nil {
			plist.Close()
			return nil, err
		}
	}
	return plist, nil
}

// createFixedArray creates a dataset with fixed dims, written once.
func createFixedArray(group *hdf5.Group, name string, dtype *hdf5.Datatype, dims []uint, compressionLevel int) (*hdf5.Dataset, error) {
	space, err := hdf5.CreateSimpleDataspace(dims, nil)
	if err != nil {
		return nil, &ErrCreateTable{TableName: name, Err: err}
	}
	defer space.Close()

	plist, err := datasetPropList(dims, compressionLevel)
	if err != nil {
		return nil, &ErrCreateTable{TableName: name, Err: err}
	}
	defer plist.Close()

	dset, err := group.CreateDatasetWith(name, dtype, space, plist)
	if err != nil {
		return nil, &ErrCreateTable{TableName: name, Err: err}
	}
	return dset, nil
}

// create2dArray creates an events x nValues array that grows along events.
func create2dArray(group *hdf5.Group, name string, nValues int, compressionLevel int) (*hdf5.Dataset, error) {
	dims := []uint{0, 0}
	maxDims := []uint{uint(unlimitedDims), uint(nValues)}
	chunks := []uint{1, 32768}
	if nValues < 32768 {
		chunks[1] = uint(nValues)
	}
	space, err := hdf5.CreateSimpleDataspace(dims, maxDims)
	if err != nil {
		return nil, &ErrCreateTable{TableName: name, Err: err}
	}
	defer space.Close()

	plist, err := datasetPropList(chunks, compressionLevel)
	if err != nil {
		return nil, &ErrCreateTable{TableName: name, Err: err}
	}
	defer plist.Close()

	dset, err := group.CreateDatasetWith(name, hdf5.T_NATIVE_INT16, space, plist)
	if err != nil {
		return nil, &ErrCreateTable{TableName: name, Err: err}
	}
	return dset, nil
}

// createTable creates a 1D table of compound rows that grows with each write.
func createTable(group *hdf5.Group, name string, datatype interface{}, compressionLevel int) (*hdf5.Dataset, error) {
	dims := []uint{0}
	maxDims := []uint{uint(unlimitedDims)}
	space, err := hdf5.CreateSimpleDataspace(dims, maxDims)
	if err != nil {
		return nil, &ErrCreateTable{TableName: name, Err: err}
	}
	defer space.Close()

	plist, err := datasetPropList([]uint{32768}, compressionLevel)
	if err != nil {
		return nil, &ErrCreateTable{TableName: name, Err: err}
	}
	defer plist.Close()

	dtype, err := hdf5.NewDatatypeFromValue(datatype)
	if err != nil {
		return nil, &ErrCreateTable{TableName: name, Err: err}
	}

	dset, err := group.CreateDatasetWith(name, dtype, space, plist)
	if err != nil {
		return nil, &ErrCreateTable{TableName: name, Err: err}
	}
	return dset, nil
}

func writeEntryToTable[T any](dataset *hdf5.Dataset, data T, rowsInTable int) error {
	array := []T{data}
	return writeArrayToTable(dataset, &array, rowsInTable)
}

func writeArrayToTable[T any](dataset *hdf5.Dataset, data *[]T, rowsInTable int) error {
	length := uint(len(*data))
	if length == 0 {
		return nil
	}
	dataspace, err := hdf5.CreateSimpleDataspace([]uint{length}, nil)
	if err != nil {
		return fmt.Errorf("error creating memory dataspace: %w", err)
	}
	defer dataspace.Close()

	// extend
	newsize := []uint{uint(rowsInTable) + length}
	if err := dataset.Resize(newsize); err != nil {
		return fmt.Errorf("error resizing table: %w", err)
	}
	filespace := dataset.Space()
	defer filespace.Close()

	start := []uint{uint(rowsInTable)}
	count := []uint{length}
	if err := filespace.SelectHyperslab(start, nil, count, nil); err != nil {
		return fmt.Errorf("error selecting hyperslab: %w", err)
	}
	return dataset.WriteSubset(data, dataspace, filespace)
}

func write2dArray(dataset *hdf5.Dataset, data *[]int16, evtCounter int, nValues int) error {
	// extend
	newsize := []uint{uint(evtCounter) + 1, uint(nValues)}
	if err := dataset.Resize(newsize); err != nil {
		return fmt.Errorf("error resizing array: %w", err)
	}
	filespace := dataset.Space()
	defer filespace.Close()

	start := []uint{uint(evtCounter), 0}
	count := []uint{1, uint(nValues)}
	if err := filespace.SelectHyperslab(start, nil, count, nil); err != nil {
		return fmt.Errorf("error selecting hyperslab: %w", err)
	}

	dataspace, err := hdf5.CreateSimpleDataspace(count, nil)
	if err != nil {
		return fmt.Errorf("error creating memory dataspace: %w", err)
	}
	defer dataspace.Close()

	return dataset.WriteSubset(data, dataspace, filespace)
}
