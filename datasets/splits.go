package datasets

import (
	"fmt"
	"log"
	"math/rand"
)

// SplitConfig describes how to carve the store into train, validation and
// test views. Days below TrainDayEnd and the listed TrainSamples belong to
// the train+val pool; everything else feeds the test sets.
type SplitConfig struct {
	// StorePath is the HDF5 file holding all samples.
	StorePath string

	// TrainSamples are the sample group names used for training and
	// validation. The remaining samples in the store form the test pool.
	TrainSamples []string

	// HeightRange is the half-open height range applied to every view.
	HeightRange [2]int

	// TrainDayEnd is the exclusive upper day bound of the train+val pool;
	// days [TrainDayEnd, totalDays) are held out for testing.
	TrainDayEnd int

	// ValidationSplit is the fraction of the train+val pool assigned to
	// validation (rounded down; the remainder trains).
	ValidationSplit float64

	// BatchSize for all loaders. Defaults to 32.
	BatchSize int

	// Seed drives the train/val partition, which is reproducible for a
	// fixed seed. Patch placement inside the datasets is not.
	Seed int64

	// Dimension is 2 or 3. Defaults to 2.
	Dimension int

	// PatchSize and PatchBorder are per-spatial-axis extents. A single
	// value is broadcast across all axes; nil disables patching/masking.
	PatchSize   []int
	PatchBorder []int
}

func (c *SplitConfig) validate() error {
	if c.StorePath == "" {
		return fmt.Errorf("split config: store path is required")
	}
	if len(c.TrainSamples) == 0 {
		return fmt.Errorf("split config: at least one train sample is required")
	}
	if c.ValidationSplit < 0 || c.ValidationSplit >= 1 {
		return fmt.Errorf("split config: validation split %g outside [0, 1)", c.ValidationSplit)
	}
	if c.BatchSize == 0 {
		c.BatchSize = 32
	}
	if c.Dimension == 0 {
		c.Dimension = 2
	}
	if c.Dimension != 2 && c.Dimension != 3 {
		return fmt.Errorf("split config: dimension must be 2 or 3, got %d", c.Dimension)
	}
	c.PatchSize = broadcastAxes(c.PatchSize, c.Dimension)
	c.PatchBorder = broadcastAxes(c.PatchBorder, c.Dimension)
	if len(c.PatchSize) > 0 && len(c.PatchSize) != c.Dimension {
		return fmt.Errorf("split config: patch size has %d axes, want %d", len(c.PatchSize), c.Dimension)
	}
	if len(c.PatchBorder) > 0 && len(c.PatchBorder) != c.Dimension {
		return fmt.Errorf("split config: patch border has %d axes, want %d", len(c.PatchBorder), c.Dimension)
	}
	return nil
}

// broadcastAxes expands a single extent to one per axis.
func broadcastAxes(v []int, dimension int) []int {
	if len(v) != 1 || dimension == 1 {
		return v
	}
	out := make([]int, dimension)
	for i := range out {
		out[i] = v[0]
	}
	return out
}

// DataModule owns the five standard loaders derived from one store:
// train, val, test_strict (no sample or day shared with train/val) and
// test_overlap (two concatenated halves, each sharing exactly one axis -
// days or samples - with train/val). The three index spaces behind train,
// val and test_strict are disjoint by construction: day and sample
// partitioning is exact, and the seeded random split only permutes the
// train+val pool.
type DataModule struct {
	cfg SplitConfig

	Train       *Loader
	Val         *Loader
	TestStrict  *Loader
	TestOverlap *Loader
}

// NewDataModule validates the config and builds all selections, datasets
// and loaders. The store file is opened once here to discover the sample
// universe and day count; each dataset then lazily opens its own handle.
func NewDataModule(cfg SplitConfig) (*DataModule, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	m := &DataModule{cfg: cfg}
	if err := m.setup(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *DataModule) setup() error {
	cfg := &m.cfg

	trainValSel := Selection{
		SampleList:  cfg.TrainSamples,
		HeightRange: cfg.HeightRange,
		DayRange:    [2]int{0, cfg.TrainDayEnd},
		Dimension:   cfg.Dimension,
	}
	trainVal := NewXRayDataset(NewStore(cfg.StorePath), trainValSel, "train_val",
		cfg.PatchSize, cfg.PatchBorder, true)

	// Seeded permutation of the train+val pool; reproducible per seed.
	n := trainValSel.NumPoints()
	perm := rand.New(rand.NewSource(cfg.Seed)).Perm(n)
	numVal := int(cfg.ValidationSplit * float64(n))
	numTrain := n - numVal
	trainView := NewSubset("train", trainVal, perm[:numTrain])
	valView := NewSubset("val", trainVal, perm[numTrain:])

	// Discover the sample universe; whatever is not a train sample tests.
	allSamples, totalDays, err := ScanStore(cfg.StorePath)
	if err != nil {
		return err
	}
	testSamples := subtractSorted(allSamples, cfg.TrainSamples)

	if cfg.TrainDayEnd >= totalDays {
		log.Printf("warning: train day end %d leaves no held-out days (store has %d); test_strict will be empty",
			cfg.TrainDayEnd, totalDays)
	}
	testDayStart := cfg.TrainDayEnd
	if testDayStart > totalDays {
		testDayStart = totalDays
	}
	testDayRange := [2]int{testDayStart, totalDays}
	trainDayRange := [2]int{0, cfg.TrainDayEnd}

	strict := m.newDataset("test_strict", testSamples, testDayRange)
	sameDays := m.newDataset("test_overlap_same_days", testSamples, trainDayRange)
	sameSamples := m.newDataset("test_overlap_same_samples", cfg.TrainSamples, testDayRange)
	overlap := NewConcat("test_overlap", sameDays, sameSamples)

	m.Train = NewLoader(trainView, cfg.BatchSize, true)
	m.Val = NewLoader(valView, cfg.BatchSize, false)
	m.TestStrict = NewLoader(strict, cfg.BatchSize, false)
	m.TestOverlap = NewLoader(overlap, cfg.BatchSize, false)
	return nil
}

// newDataset builds one test-side dataset with its own lazily opened
// store handle.
func (m *DataModule) newDataset(name string, samples []string, dayRange [2]int) *XRayDataset {
	sel := Selection{
		SampleList:  samples,
		HeightRange: m.cfg.HeightRange,
		DayRange:    dayRange,
		Dimension:   m.cfg.Dimension,
	}
	return NewXRayDataset(NewStore(m.cfg.StorePath), sel, name,
		m.cfg.PatchSize, m.cfg.PatchBorder, true)
}

// Loaders returns the four loaders keyed by the conventional split names.
func (m *DataModule) Loaders() map[string]*Loader {
	return map[string]*Loader{
		"train":        m.Train,
		"val":          m.Val,
		"test_strict":  m.TestStrict,
		"test_overlap": m.TestOverlap,
	}
}

// subtractSorted returns the members of all that are not in remove,
// sorted. allSamples arrives sorted from SampleNames, so order is
// deterministic.
func subtractSorted(all, remove []string) []string {
	removed := make(map[string]bool, len(remove))
	for _, r := range remove {
		removed[r] = true
	}
	var out []string
	for _, s := range all {
		if !removed[s] {
			out = append(out, s)
		}
	}
	return out
}
