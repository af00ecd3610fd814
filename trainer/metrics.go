package trainer

import (
	"fmt"
	"strings"
)

// Confusion is a host-side confusion matrix over masked voxels. Rows are
// the true class, columns the predicted one.
type Confusion struct {
	numClasses int
	counts     []int64
}

// NewConfusion creates an empty numClasses x numClasses matrix.
func NewConfusion(numClasses int) *Confusion {
	return &Confusion{
		numClasses: numClasses,
		counts:     make([]int64, numClasses*numClasses),
	}
}

// Add records one (truth, prediction) pair. Out-of-range classes are
// dropped rather than miscounted.
func (c *Confusion) Add(truth, pred int32) {
	if truth < 0 || int(truth) >= c.numClasses || pred < 0 || int(pred) >= c.numClasses {
		return
	}
	c.counts[int(truth)*c.numClasses+int(pred)]++
}

// AddBatch records every pair whose mask entry is true. The three slices
// run in lockstep over the flattened batch.
func (c *Confusion) AddBatch(truth, pred []int32, mask []bool) {
	for i := range truth {
		if mask[i] {
			c.Add(truth[i], pred[i])
		}
	}
}

// Count returns the number of voxels with the given true and predicted
// class.
func (c *Confusion) Count(truth, pred int) int64 {
	return c.counts[truth*c.numClasses+pred]
}

// Total returns the number of recorded voxels.
func (c *Confusion) Total() int64 {
	var n int64
	for _, v := range c.counts {
		n += v
	}
	return n
}

// Accuracy is the fraction of recorded voxels on the diagonal. An empty
// matrix reports 0.
func (c *Confusion) Accuracy() float64 {
	total := c.Total()
	if total == 0 {
		return 0
	}
	var correct int64
	for k := 0; k < c.numClasses; k++ {
		correct += c.Count(k, k)
	}
	return float64(correct) / float64(total)
}

// MacroF1 averages the per-class F1 scores over the classes that actually
// occur; classes with zero support are skipped so absent classes do not
// drag the mean down.
func (c *Confusion) MacroF1() float64 {
	var sum float64
	var present int
	for k := 0; k < c.numClasses; k++ {
		var support, predicted int64
		for j := 0; j < c.numClasses; j++ {
			support += c.Count(k, j)
			predicted += c.Count(j, k)
		}
		if support == 0 {
			continue
		}
		present++
		tp := c.Count(k, k)
		denom := float64(support + predicted)
		if denom > 0 {
			sum += 2 * float64(tp) / denom
		}
	}
	if present == 0 {
		return 0
	}
	return sum / float64(present)
}

// String renders the matrix with rows as true classes, for logs.
func (c *Confusion) String() string {
	var b strings.Builder
	for k := 0; k < c.numClasses; k++ {
		for j := 0; j < c.numClasses; j++ {
			if j > 0 {
				b.WriteByte(' ')
			}
			fmt.Fprintf(&b, "%6d", c.Count(k, j))
		}
		b.WriteByte('\n')
	}
	return b.String()
}
