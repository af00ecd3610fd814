package datasets

// This package provides the data-loading side of the X-ray segmentation
// pipeline: it maps flat example indices onto (sample, day, height)
// coordinates inside one HDF5 file, extracts spatial patches with a
// border mask, and splits everything into train/validation/test views.
//
// All datasets use lazy loading - they store the HDF5 path and only open
// the file when the first example is requested, so a dataset value can be
// handed to a worker goroutine (or serialized into a worker process)
// before any file handle exists. A Store must never be shared between
// concurrent readers; every loader owns its own.
//
// Layout and intended usage:
//
// XRayDataset
//   - Resolves a flat index into a (sample, day[, height]) coordinate via
//     modular arithmetic over a Selection.
//   - Optionally extracts a randomly placed spatial patch and computes the
//     border mask marking which patch pixels carry full model context.
//
// DataModule
//   - Builds the five standard views (train, val, test_strict and the two
//     halves of test_overlap) and wraps them in batching Loaders.
//
// The Loaders implement gomlx's train.Dataset interface so they can be
// plugged straight into a gomlx training loop.

// View is a finite, indexable collection of (data, labels, mask) triples.
// Get returns an error for indices outside [0, Len()).
type View interface {
	Name() string
	Len() int
	Get(idx int) (data Grid[float32], labels Grid[int32], mask Grid[bool], err error)
}
