package trainer

import (
	"fmt"

	"github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/layers"
	"github.com/gomlx/gomlx/pkg/ml/layers/activations"
)

// buildUltraLocal returns the per-voxel MLP: every voxel is classified
// from its own measurement alone, with no spatial context. It is the
// cheapest member of the zoo and the baseline the spatial models are
// compared against.
func buildUltraLocal(cfg Config) modelFn {
	return func(ctx *context.Context, spec any, inputs []*graph.Node) []*graph.Node {
		x := inputs[0] // [batch, 1, spatial...]
		dims := x.Shape().Dimensions
		spatial := dims[2:]

		// Fold batch and spatial axes together so the dense layers run
		// once per voxel with a single input feature.
		voxels := dims[0]
		for _, d := range spatial {
			voxels *= d
		}
		h := graph.Reshape(x, voxels, 1)

		for i, width := range cfg.HiddenSizes {
			h = layers.DenseWithBias(ctx.In(fmt.Sprintf("hidden_%d", i)), h, width)
			h = activations.Relu(h)
		}
		h = layers.DenseWithBias(ctx.In("logits"), h, cfg.NumClasses)

		outDims := append([]int{dims[0]}, spatial...)
		outDims = append(outDims, cfg.NumClasses)
		return []*graph.Node{graph.Reshape(h, outDims...)}
	}
}
