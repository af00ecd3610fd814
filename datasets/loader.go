package datasets

import (
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/gomlx/gomlx/pkg/core/tensors"
)

// Loader batches a View and implements gomlx's train.Dataset interface.
// Each Yield stacks up to BatchSize triples into three tensors with a new
// leading batch axis: inputs [batch, 1, spatial...], labels
// [batch, spatial...] and the border mask [batch, spatial...], the mask
// riding along as a second label tensor. The final short batch of an epoch
// is yielded rather than dropped; io.EOF signals the end of the epoch.
type Loader struct {
	view      View
	batchSize int
	shuffle   bool

	order  []int
	cursor int
	rng    *rand.Rand
}

// NewLoader wraps view in a batching loader. Only training loaders pass
// shuffle=true; evaluation loaders iterate in index order so results are
// comparable across runs.
func NewLoader(view View, batchSize int, shuffle bool) *Loader {
	l := &Loader{
		view:      view,
		batchSize: batchSize,
		shuffle:   shuffle,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	l.Reset()
	return l
}

// Name implements train.Dataset.
func (l *Loader) Name() string { return l.view.Name() }

// Len returns the number of examples (not batches) per epoch.
func (l *Loader) Len() int { return l.view.Len() }

// NumBatches returns how many Yield calls one epoch takes.
func (l *Loader) NumBatches() int {
	return (l.view.Len() + l.batchSize - 1) / l.batchSize
}

// Reset implements train.Dataset. It rewinds the epoch and, for shuffling
// loaders, redraws the iteration order.
func (l *Loader) Reset() {
	if l.order == nil {
		l.order = make([]int, l.view.Len())
		for i := range l.order {
			l.order[i] = i
		}
	}
	if l.shuffle {
		l.rng.Shuffle(len(l.order), func(i, j int) {
			l.order[i], l.order[j] = l.order[j], l.order[i]
		})
	}
	l.cursor = 0
}

// Yield implements train.Dataset, returning the next batch or io.EOF once
// the epoch is exhausted.
func (l *Loader) Yield() (spec any, inputs []*tensors.Tensor, labels []*tensors.Tensor, err error) {
	if l.cursor >= len(l.order) {
		err = io.EOF
		return
	}
	end := l.cursor + l.batchSize
	if end > len(l.order) {
		end = len(l.order)
	}
	batch := l.order[l.cursor:end]
	l.cursor = end

	var (
		dataShape, labelShape []int
		flatData              []float32
		flatLabels            []int32
		flatMask              []bool
	)
	for k, idx := range batch {
		data, lab, mask, getErr := l.view.Get(idx)
		if getErr != nil {
			err = fmt.Errorf("loader %s: %w", l.Name(), getErr)
			return
		}
		if k == 0 {
			dataShape = data.Shape
			labelShape = lab.Shape
			flatData = make([]float32, len(batch)*data.Len())
			flatLabels = make([]int32, len(batch)*lab.Len())
			flatMask = make([]bool, len(batch)*mask.Len())
		} else if !equalShapes(dataShape, data.Shape) {
			err = fmt.Errorf("loader %s: example %d shape %v does not match batch shape %v",
				l.Name(), idx, data.Shape, dataShape)
			return
		}
		copy(flatData[k*data.Len():], data.Data)
		copy(flatLabels[k*lab.Len():], lab.Data)
		copy(flatMask[k*mask.Len():], mask.Data)
	}

	b := len(batch)
	inputs = []*tensors.Tensor{
		tensors.FromFlatDataAndDimensions(flatData, append([]int{b}, dataShape...)...),
	}
	labels = []*tensors.Tensor{
		tensors.FromFlatDataAndDimensions(flatLabels, append([]int{b}, labelShape...)...),
		tensors.FromFlatDataAndDimensions(flatMask, append([]int{b}, labelShape...)...),
	}
	return nil, inputs, labels, nil
}
