package trainer

import (
	"github.com/gomlx/gomlx/pkg/core/graph"
)

// maskedCrossEntropy is the training loss: per-voxel cross-entropy of the
// logits against the integer targets, averaged over the voxels the border
// mask includes. labels[0] are the targets [batch, spatial...] and
// labels[1] the mask; predictions[0] the logits
// [batch, spatial..., numClasses].
func maskedCrossEntropy(labels, predictions []*graph.Node) *graph.Node {
	logits := predictions[0]
	targets := labels[0]
	mask := labels[1]

	numClasses := logits.Shape().Dimensions[logits.Rank()-1]
	logProbs := graph.LogSoftmax(logits, -1)
	oneHot := graph.OneHot(targets, numClasses, logits.DType())

	// Per-voxel negative log-likelihood, then masked mean. Excluded
	// voxels contribute nothing to either the sum or the count.
	nll := graph.Neg(graph.ReduceSum(graph.Mul(oneHot, logProbs), -1))
	included := graph.ConvertDType(mask, logits.DType())
	sum := graph.ReduceAllSum(graph.Mul(nll, included))
	count := graph.MaxScalar(graph.ReduceAllSum(included), 1)
	return graph.Div(sum, count)
}
