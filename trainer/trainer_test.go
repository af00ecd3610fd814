package trainer

import (
	"io"
	"strings"
	"testing"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/train"
)

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	cfg.applyDefaults()

	if cfg.ModelClass != "ultra_local" {
		t.Errorf("ModelClass = %q, want ultra_local", cfg.ModelClass)
	}
	if cfg.NumClasses != 5 {
		t.Errorf("NumClasses = %d, want 5", cfg.NumClasses)
	}
	if len(cfg.HiddenSizes) != 1 || cfg.HiddenSizes[0] != 64 {
		t.Errorf("HiddenSizes = %v, want [64]", cfg.HiddenSizes)
	}
	if cfg.LearningRate != 1e-3 {
		t.Errorf("LearningRate = %v, want 1e-3", cfg.LearningRate)
	}
	if cfg.Epochs != 10 {
		t.Errorf("Epochs = %d, want 10", cfg.Epochs)
	}
}

func TestConfigDefaultsKeepExplicitValues(t *testing.T) {
	cfg := Config{NumClasses: 3, HiddenSizes: []int{16, 16}, LearningRate: 0.1, Epochs: 2}
	cfg.applyDefaults()

	if cfg.NumClasses != 3 || len(cfg.HiddenSizes) != 2 || cfg.LearningRate != 0.1 || cfg.Epochs != 2 {
		t.Errorf("explicit values overwritten: %+v", cfg)
	}
}

func TestBuildModelUnknownClass(t *testing.T) {
	_, err := buildModel(Config{ModelClass: "resnet_9000"})
	if err == nil {
		t.Fatal("buildModel succeeded for unknown class")
	}
	if !strings.Contains(err.Error(), "resnet_9000") {
		t.Errorf("error %q does not name the class", err)
	}
}

func TestNewRejectsUnknownClass(t *testing.T) {
	if _, err := New(Config{ModelClass: "nope"}); err == nil {
		t.Fatal("New succeeded for unknown model class")
	}
}

func TestModelRegistry(t *testing.T) {
	if _, ok := modelBuilders["ultra_local"]; !ok {
		t.Fatal("ultra_local missing from the model registry")
	}
}

func TestModelBuildersMatchTrainContract(t *testing.T) {
	m, err := buildModel(Config{ModelClass: "ultra_local", NumClasses: 5, HiddenSizes: []int{8}})
	if err != nil {
		t.Fatalf("buildModel: %v", err)
	}
	// Builders must produce functions the gomlx trainer accepts directly.
	var fn train.ModelFn = m
	if fn == nil {
		t.Fatal("builder returned a nil model function")
	}
}

func TestNewWithDefaults(t *testing.T) {
	tr, err := New(Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if tr.predict == nil {
		t.Fatal("prediction executor not initialized")
	}
	if got := tr.Config().ModelClass; got != "ultra_local" {
		t.Errorf("defaulted model class = %q, want ultra_local", got)
	}
}

// oneBatchDataset yields a single fixed batch per epoch.
type oneBatchDataset struct {
	yielded bool
	inputs  *tensors.Tensor
	labels  []*tensors.Tensor
}

func (d *oneBatchDataset) Name() string { return "one_batch" }
func (d *oneBatchDataset) Reset() { d.yielded = false }

func (d *oneBatchDataset) Yield() (any, []*tensors.Tensor, []*tensors.Tensor, error) {
	if d.yielded {
		return nil, nil, nil, io.EOF
	}
	d.yielded = true
	return nil, []*tensors.Tensor{d.inputs}, d.labels, nil
}

func TestEvaluateCountsMaskedVoxels(t *testing.T) {
	tr, err := New(Config{NumClasses: 3, HiddenSizes: []int{4}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// One 2x2 example with one voxel masked out: exactly three pairs may
	// enter the confusion matrix, whatever the untrained model predicts.
	ds := &oneBatchDataset{
		inputs: tensors.FromFlatDataAndDimensions([]float32{0.1, 0.2, 0.3, 0.4}, 1, 1, 2, 2),
		labels: []*tensors.Tensor{
			tensors.FromFlatDataAndDimensions([]int32{0, 1, 2, 1}, 1, 2, 2),
			tensors.FromFlatDataAndDimensions([]bool{true, true, false, true}, 1, 2, 2),
		},
	}

	conf, err := tr.Evaluate(ds)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if got := conf.Total(); got != 3 {
		t.Errorf("Total = %d, want 3 masked-in voxels", got)
	}
}
