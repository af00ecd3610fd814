// Package trainer fits segmentation models on batched loaders using gomlx
// with the pure-Go simplego backend. The model zoo is a registry keyed by
// class name; an unknown class fails at construction, before any data is
// touched.
package trainer

import (
	"fmt"
	"io"

	"github.com/gomlx/gomlx/backends/simplego"
	"github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/train"
	"github.com/gomlx/gomlx/pkg/ml/train/optimizers"
)

// Config selects and parameterizes a model.
type Config struct {
	// ModelClass picks the architecture from the registry.
	ModelClass string `json:"model_class"`

	// NumClasses is the size of the per-voxel output distribution.
	// Defaults to 5.
	NumClasses int `json:"num_classes"`

	// HiddenSizes are the widths of the hidden layers. Defaults to [64].
	HiddenSizes []int `json:"hidden_sizes"`

	// LearningRate for Adam. Defaults to 1e-3.
	LearningRate float64 `json:"learning_rate"`

	// Epochs to fit. Defaults to 10.
	Epochs int `json:"epochs"`
}

func (c *Config) applyDefaults() {
	if c.ModelClass == "" {
		c.ModelClass = "ultra_local"
	}
	if c.NumClasses <= 0 {
		c.NumClasses = 5
	}
	if len(c.HiddenSizes) == 0 {
		c.HiddenSizes = []int{64}
	}
	if c.LearningRate <= 0 {
		c.LearningRate = 1e-3
	}
	if c.Epochs <= 0 {
		c.Epochs = 10
	}
}

// modelFn builds the forward graph: inputs[0] is [batch, 1, spatial...],
// the returned logits are [batch, spatial..., numClasses]. Aliased so
// builders plug straight into train.NewTrainer.
type modelFn = train.ModelFn

// modelBuilders is the model zoo. Builders receive the already-defaulted
// config.
var modelBuilders = map[string]func(cfg Config) modelFn{
	"ultra_local": buildUltraLocal,
}

func buildModel(cfg Config) (modelFn, error) {
	builder, ok := modelBuilders[cfg.ModelClass]
	if !ok {
		return nil, fmt.Errorf("unknown model class %q", cfg.ModelClass)
	}
	return builder(cfg), nil
}

// EpochStats is what Fit reports back after each epoch.
type EpochStats struct {
	Epoch     int
	TrainLoss float64
	Val       *Confusion
}

// Trainer wires a model, the masked loss and Adam into a gomlx train loop.
type Trainer struct {
	cfg     Config
	ctx     *context.Context
	model   modelFn
	trainer *train.Trainer
	loop    *train.Loop
	predict *context.Exec
}

// New constructs the trainer. The model graph itself is only compiled on
// the first batch, when shapes are known.
func New(cfg Config) (*Trainer, error) {
	cfg.applyDefaults()
	model, err := buildModel(cfg)
	if err != nil {
		return nil, err
	}

	backend, err := simplego.New("")
	if err != nil {
		return nil, fmt.Errorf("creating simplego backend: %w", err)
	}
	ctx := context.New()

	gTrainer := train.NewTrainer(backend, ctx, model,
		maskedCrossEntropy,
		optimizers.Adam().LearningRate(cfg.LearningRate).Done(),
		nil, nil)

	predict, err := context.NewExec(backend, ctx.Checked(false),
		func(ctx *context.Context, x *graph.Node) *graph.Node {
			logits := model(ctx, nil, []*graph.Node{x})[0]
			return graph.ArgMax(logits, -1, dtypes.Int32)
		})
	if err != nil {
		return nil, fmt.Errorf("creating prediction executor: %w", err)
	}

	return &Trainer{
		cfg:     cfg,
		ctx:     ctx,
		model:   model,
		trainer: gTrainer,
		loop:    train.NewLoop(gTrainer),
		predict: predict,
	}, nil
}

// Config returns the defaulted configuration in effect.
func (t *Trainer) Config() Config { return t.cfg }

// Fit runs the configured number of epochs over trainDS, evaluating on
// valDS after each one. onEpoch, if non-nil, is called with the stats of
// every finished epoch.
func (t *Trainer) Fit(trainDS, valDS train.Dataset, onEpoch func(EpochStats)) error {
	for epoch := 0; epoch < t.cfg.Epochs; epoch++ {
		metrics, err := t.loop.RunEpochs(trainDS, 1)
		if err != nil {
			return fmt.Errorf("epoch %d: %w", epoch, err)
		}

		stats := EpochStats{Epoch: epoch, TrainLoss: lossFromMetrics(metrics)}
		if valDS != nil {
			stats.Val, err = t.Evaluate(valDS)
			if err != nil {
				return fmt.Errorf("epoch %d validation: %w", epoch, err)
			}
		}
		if onEpoch != nil {
			onEpoch(stats)
		}
	}
	return nil
}

// Evaluate runs one full epoch of ds through the model and accumulates a
// confusion matrix over the mask-included voxels.
func (t *Trainer) Evaluate(ds train.Dataset) (*Confusion, error) {
	ds.Reset()
	conf := NewConfusion(t.cfg.NumClasses)
	for {
		_, inputs, labels, err := ds.Yield()
		if err == io.EOF {
			return conf, nil
		}
		if err != nil {
			return nil, fmt.Errorf("evaluating %s: %w", ds.Name(), err)
		}

		preds, err := t.predict.Exec(inputs[0])
		if err != nil {
			return nil, fmt.Errorf("predicting on %s: %w", ds.Name(), err)
		}
		conf.AddBatch(
			tensors.CopyFlatData[int32](labels[0]),
			tensors.CopyFlatData[int32](preds[0]),
			tensors.CopyFlatData[bool](labels[1]))
	}
}

// lossFromMetrics pulls the mean training loss out of the loop's metric
// tensors; the loss is always the first one.
func lossFromMetrics(metrics []*tensors.Tensor) float64 {
	if len(metrics) == 0 {
		return 0
	}
	return float64(tensors.ToScalar[float32](metrics[0]))
}
