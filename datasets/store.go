package datasets

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/robert-malhotra/go-hdf5/hdf5"
)

// Store gives indexed access to one HDF5 file holding the full measurement
// set. Leaf groups (groups directly containing at least one array dataset)
// are the samples; each sample exposes two arrays named "data" and
// "labels" sharing a leading day axis.
//
// The file is opened lazily on the first read so a Store can be built
// cheaply and handed to a worker before any handle exists. A Store is not
// safe for concurrent use: every loader owns exactly one.
type Store struct {
	path    string
	file    *hdf5.File
	volumes map[string]*sampleVolume
}

// sampleVolume caches one sample's fully decoded arrays. go-hdf5 reads
// whole datasets, so the first touch of a sample loads its volume and
// later days are sliced out of the cache.
type sampleVolume struct {
	data   Grid[float32]
	labels Grid[int32]
}

// NewStore creates a store for the HDF5 file at path without opening it.
func NewStore(path string) *Store {
	return &Store{
		path:    path,
		volumes: make(map[string]*sampleVolume),
	}
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// ensureOpen opens the backing file on first use.
func (s *Store) ensureOpen() error {
	if s.file != nil {
		return nil
	}
	f, err := hdf5.Open(s.path)
	if err != nil {
		return fmt.Errorf("opening store %s: %w", s.path, err)
	}
	s.file = f
	return nil
}

// Close releases the file handle, if one was ever opened. The store can be
// reused afterwards; the next read reopens the file.
func (s *Store) Close() error {
	if s.file == nil {
		return nil
	}
	f := s.file
	s.file = nil
	return f.Close()
}

// SampleNames walks the file hierarchy and returns every leaf group,
// sorted. Group paths are reported without the leading slash, matching the
// names callers pass to Day and DayCount.
func (s *Store) SampleNames() ([]string, error) {
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	leaves := map[string]bool{}
	err := hdf5.Walk(s.file.Root(), func(p string, obj interface{}, err error) error {
		if err != nil {
			return err
		}
		if _, ok := obj.(*hdf5.Dataset); ok {
			leaves[strings.TrimPrefix(path.Dir(p), "/")] = true
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking store %s: %w", s.path, err)
	}
	names := make([]string, 0, len(leaves))
	for name := range leaves {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// DayCount returns the number of days recorded for a sample, the leading
// dimension of its data array.
func (s *Store) DayCount(sample string) (int, error) {
	if vol, ok := s.volumes[sample]; ok {
		return vol.data.Shape[0], nil
	}
	if err := s.ensureOpen(); err != nil {
		return 0, err
	}
	ds, err := s.file.OpenDataset("/" + sample + "/data")
	if err != nil {
		return 0, fmt.Errorf("opening data array of sample %s: %w", sample, err)
	}
	dims := ds.Shape()
	if len(dims) == 0 {
		return 0, fmt.Errorf("sample %s has a scalar data array", sample)
	}
	return int(dims[0]), nil
}

// Day returns the data and labels arrays for one day of one sample. The
// returned grids are copies; callers may mutate them freely.
func (s *Store) Day(sample string, day int) (Grid[float32], Grid[int32], error) {
	vol, err := s.volume(sample)
	if err != nil {
		return Grid[float32]{}, Grid[int32]{}, err
	}
	if day < 0 || day >= vol.data.Shape[0] {
		return Grid[float32]{}, Grid[int32]{}, fmt.Errorf(
			"day %d out of range [0, %d) for sample %s", day, vol.data.Shape[0], sample)
	}
	return vol.data.Index(day), vol.labels.Index(day), nil
}

// volume loads and caches a sample's data and labels arrays.
func (s *Store) volume(sample string) (*sampleVolume, error) {
	if vol, ok := s.volumes[sample]; ok {
		return vol, nil
	}
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	data, dataShape, err := readFloat32Array(s.file, "/"+sample+"/data")
	if err != nil {
		return nil, fmt.Errorf("reading data of sample %s: %w", sample, err)
	}
	labels, labelShape, err := readInt32Array(s.file, "/"+sample+"/labels")
	if err != nil {
		return nil, fmt.Errorf("reading labels of sample %s: %w", sample, err)
	}
	if !equalShapes(dataShape, labelShape) {
		return nil, fmt.Errorf("sample %s: data shape %v does not match labels shape %v",
			sample, dataShape, labelShape)
	}
	vol := &sampleVolume{
		data:   Grid[float32]{Data: data, Shape: dataShape},
		labels: Grid[int32]{Data: labels, Shape: labelShape},
	}
	s.volumes[sample] = vol
	return vol, nil
}

func readFloat32Array(f *hdf5.File, path string) ([]float32, []int, error) {
	ds, err := f.OpenDataset(path)
	if err != nil {
		return nil, nil, err
	}
	data, err := ds.ReadFloat32()
	if err != nil {
		return nil, nil, err
	}
	return data, intShape(ds.Shape()), nil
}

func readInt32Array(f *hdf5.File, path string) ([]int32, []int, error) {
	ds, err := f.OpenDataset(path)
	if err != nil {
		return nil, nil, err
	}
	data, err := ds.ReadInt32()
	if err != nil {
		return nil, nil, err
	}
	return data, intShape(ds.Shape()), nil
}

func intShape(dims []uint64) []int {
	shape := make([]int, len(dims))
	for i, d := range dims {
		shape[i] = int(d)
	}
	return shape
}

// ScanStore opens the file just long enough to discover the sample
// universe and the total day count (taken from the first sample's data
// array). It is used during split setup, before any per-view store exists.
func ScanStore(path string) (samples []string, totalDays int, err error) {
	s := NewStore(path)
	defer s.Close()
	samples, err = s.SampleNames()
	if err != nil {
		return nil, 0, err
	}
	if len(samples) == 0 {
		return nil, 0, fmt.Errorf("store %s contains no leaf groups", path)
	}
	totalDays, err = s.DayCount(samples[0])
	if err != nil {
		return nil, 0, err
	}
	return samples, totalDays, nil
}
