package datasets

import (
	"fmt"
	"math/rand"
	"time"
)

// XRayDataset maps flat indices onto single (data, labels, mask) triples
// drawn from a Store according to a Selection. Construction is cheap; the
// store is only touched from Get.
type XRayDataset struct {
	name        string
	store       *Store
	sel         Selection
	patchSize   []int
	patchBorder []int
	shuffle     bool
	rng         *rand.Rand
}

// NewXRayDataset creates a dataset over one selection of the store.
// patchSize and patchBorder are per-spatial-axis extents; both may be nil.
// Patch placement is time-seeded: random placements are intentionally not
// reproducible run to run, unlike the seeded train/val split.
func NewXRayDataset(store *Store, sel Selection, name string, patchSize, patchBorder []int, shuffle bool) *XRayDataset {
	return &XRayDataset{
		name:        name,
		store:       store,
		sel:         sel,
		patchSize:   patchSize,
		patchBorder: patchBorder,
		// TODO: honor the shuffle argument. It is currently forced on, so
		// the centered-patch path below is unreachable from this
		// constructor; whether callers should be able to disable patch
		// placement randomness is pending a product decision.
		shuffle: true,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Name returns the dataset name (train_val, test_strict, ...).
func (d *XRayDataset) Name() string { return d.name }

// Len returns the number of points in the selection.
func (d *XRayDataset) Len() int { return d.sel.NumPoints() }

// Selection returns the selection this dataset covers.
func (d *XRayDataset) Selection() Selection { return d.sel }

// Get resolves a flat index into a (sample, day[, height]) coordinate,
// loads that slice, optionally extracts a patch, and computes the border
// mask. Data carries one leading channel axis; the loader adds the batch
// axis later.
func (d *XRayDataset) Get(idx int) (data Grid[float32], labels Grid[int32], mask Grid[bool], err error) {
	n := d.sel.NumPoints()
	if idx < 0 || idx >= n {
		err = fmt.Errorf("index %d out of range [0, %d)", idx, n)
		return
	}

	// Extract sample, day and height indices using modular arithmetic.
	pps := d.sel.PointsPerSample()
	sampleIdx, rem := idx/pps, idx%pps
	sample := d.sel.SampleList[sampleIdx]

	dayOff, heightOff := rem/d.sel.NumHeights(), rem%d.sel.NumHeights()
	day := dayOff + d.sel.DayRange[0]
	height := heightOff + d.sel.HeightRange[0]

	data, labels, err = d.store.Day(sample, day)
	if err != nil {
		err = fmt.Errorf("dataset %s: %w", d.name, err)
		return
	}
	if d.sel.Dimension == 2 {
		data = data.Index(height)
		labels = labels.Index(height)
	}

	initShape := append([]int(nil), data.Shape...)
	var patchStarts []int
	if len(d.patchSize) > 0 {
		patchStarts = make([]int, d.sel.Dimension)
		for i := range patchStarts {
			maxStart := initShape[i] - d.patchSize[i]
			if maxStart < 0 {
				err = fmt.Errorf("dataset %s: patch extent %d exceeds axis %d extent %d",
					d.name, d.patchSize[i], i, initShape[i])
				return
			}
			if d.shuffle {
				patchStarts[i] = d.rng.Intn(maxStart + 1)
			} else {
				patchStarts[i] = maxStart / 2
			}
		}
		data = data.Crop(patchStarts, d.patchSize)
		labels = labels.Crop(patchStarts, d.patchSize)
	}

	mask = d.borderMask(initShape, patchStarts)
	data = data.WithLeadingAxis()
	return data, labels, mask, nil
}

// borderMask marks which patch pixels should count toward the loss. The
// model cannot make a reliable prediction near patch edges (no full
// receptive field), so a configured border is excluded - except where the
// patch sits against an edge of the full array, where no neighboring patch
// could ever cover the excluded strip and it is kept instead.
func (d *XRayDataset) borderMask(initShape, patchStarts []int) Grid[bool] {
	if len(d.patchSize) == 0 {
		return FullGrid(true, initShape...)
	}
	if len(d.patchBorder) == 0 {
		return FullGrid(true, d.patchSize...)
	}

	mask := NewGrid[bool](d.patchSize...)
	starts := make([]int, d.sel.Dimension)
	sizes := make([]int, d.sel.Dimension)
	for i := 0; i < d.sel.Dimension; i++ {
		// The excluded margin is capped at what a neighboring patch could
		// actually cover: patchStart pixels exist below this patch, slack
		// pixels above it. A patch flush against the array edge keeps its
		// otherwise-excluded strip entirely.
		start := d.patchBorder[i]
		if start > patchStarts[i] {
			start = patchStarts[i]
		}
		end := d.patchBorder[i]
		if slack := initShape[i] - (patchStarts[i] + d.patchSize[i]); end > slack {
			end = slack
		}
		starts[i] = start
		sizes[i] = (d.patchSize[i] - end) - start
	}
	mask.FillRegion(starts, sizes, true)
	return mask
}
