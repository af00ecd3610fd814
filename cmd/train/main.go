// Command train fits a segmentation model on an HDF5 measurement store
// and writes the run artifacts (config, metrics, curves) to an output
// directory.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/unsatml/unsat/datasets"
	"github.com/unsatml/unsat/explog"
	"github.com/unsatml/unsat/trainer"
)

// fileConfig mirrors the CLI flags for runs driven by a JSON file.
// Explicit CLI flags always override JSON values.
type fileConfig struct {
	Data *struct {
		StorePath       *string  `json:"store_path"`
		TrainSamples    []string `json:"train_samples"`
		HeightLo        *int     `json:"height_lo"`
		HeightHi        *int     `json:"height_hi"`
		TrainDayEnd     *int     `json:"train_day_end"`
		ValidationSplit *float64 `json:"validation_split"`
		BatchSize       *int     `json:"batch_size"`
		Seed            *int64   `json:"seed"`
		Dimension       *int     `json:"dimension"`
		PatchSize       []int    `json:"patch_size"`
		PatchBorder     []int    `json:"patch_border"`
	} `json:"data"`
	Model *struct {
		ModelClass   *string  `json:"model_class"`
		NumClasses   *int     `json:"num_classes"`
		HiddenSizes  []int    `json:"hidden_sizes"`
		LearningRate *float64 `json:"learning_rate"`
		Epochs       *int     `json:"epochs"`
	} `json:"model"`
}

// runConfig is what gets persisted to the run directory so an experiment
// can be reproduced later.
type runConfig struct {
	Data  datasets.SplitConfig `json:"data"`
	Model trainer.Config       `json:"model"`
}

func main() {
	dataPath := flag.String("data", "", "path to the HDF5 measurement store (required)")
	trainSamples := flag.String("train-samples", "", "comma-separated sample group names for train+val (required)")
	heightLo := flag.Int("height-lo", 0, "inclusive lower height index")
	heightHi := flag.Int("height-hi", 1, "exclusive upper height index")
	trainDayEnd := flag.Int("train-day-end", 0, "exclusive upper day bound of the train+val pool")
	valSplit := flag.Float64("val-split", 0.2, "fraction of the train+val pool used for validation")
	batchSize := flag.Int("batch-size", 32, "batch size for all loaders")
	seed := flag.Int64("seed", 0, "seed for the train/val split (0 = time-based)")
	dimension := flag.Int("dimension", 2, "2 for per-height slices, 3 for whole volumes")
	patchSize := flag.String("patch-size", "", "comma-separated patch extents, single value broadcasts (empty = no patching)")
	patchBorder := flag.String("patch-border", "", "comma-separated border extents excluded from the loss")

	modelClass := flag.String("model", "ultra_local", "model class to train")
	numClasses := flag.Int("num-classes", 5, "number of segmentation classes")
	hidden := flag.String("hidden", "64", "comma-separated hidden layer widths")
	lr := flag.Float64("lr", 1e-3, "Adam learning rate")
	epochs := flag.Int("epochs", 10, "number of training epochs")

	outDir := flag.String("out", "runs/latest", "output directory for run artifacts")
	configPath := flag.String("config", "", "optional JSON config file; CLI flags take precedence")
	flag.Parse()

	// Merge JSON config under the CLI flags: a JSON value only applies
	// when the flag was not passed on the command line, even if the passed
	// value happens to equal the flag's default.
	if *configPath != "" {
		data, err := os.ReadFile(*configPath)
		if err != nil {
			log.Fatalf("failed to read config %s: %v", *configPath, err)
		}
		var fc fileConfig
		if err := json.Unmarshal(data, &fc); err != nil {
			log.Fatalf("failed to parse config %s: %v", *configPath, err)
		}
		set := map[string]bool{}
		flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
		mergeFileConfig(fc, set, cliFlags{
			dataPath:     dataPath,
			trainSamples: trainSamples,
			heightLo:     heightLo,
			heightHi:     heightHi,
			trainDayEnd:  trainDayEnd,
			valSplit:     valSplit,
			batchSize:    batchSize,
			seed:         seed,
			dimension:    dimension,
			patchSize:    patchSize,
			patchBorder:  patchBorder,
			modelClass:   modelClass,
			numClasses:   numClasses,
			hidden:       hidden,
			lr:           lr,
			epochs:       epochs,
		})
	}

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}

	patchSizes, err := parseInts(*patchSize)
	if err != nil {
		log.Fatalf("invalid -patch-size: %v", err)
	}
	patchBorders, err := parseInts(*patchBorder)
	if err != nil {
		log.Fatalf("invalid -patch-border: %v", err)
	}
	hiddenSizes, err := parseInts(*hidden)
	if err != nil {
		log.Fatalf("invalid -hidden: %v", err)
	}

	cfg := runConfig{
		Data: datasets.SplitConfig{
			StorePath:       *dataPath,
			TrainSamples:    parseStrings(*trainSamples),
			HeightRange:     [2]int{*heightLo, *heightHi},
			TrainDayEnd:     *trainDayEnd,
			ValidationSplit: *valSplit,
			BatchSize:       *batchSize,
			Seed:            *seed,
			Dimension:       *dimension,
			PatchSize:       patchSizes,
			PatchBorder:     patchBorders,
		},
		Model: trainer.Config{
			ModelClass:   *modelClass,
			NumClasses:   *numClasses,
			HiddenSizes:  hiddenSizes,
			LearningRate: *lr,
			Epochs:       *epochs,
		},
	}

	module, err := datasets.NewDataModule(cfg.Data)
	if err != nil {
		log.Fatalf("failed to build data module: %v", err)
	}
	log.Printf("Data module ready: train=%d val=%d test_strict=%d test_overlap=%d examples",
		module.Train.Len(), module.Val.Len(), module.TestStrict.Len(), module.TestOverlap.Len())

	tr, err := trainer.New(cfg.Model)
	if err != nil {
		log.Fatalf("failed to create trainer: %v", err)
	}
	cfg.Model = tr.Config()

	run, err := explog.NewRun(*outDir)
	if err != nil {
		log.Fatalf("failed to create run directory: %v", err)
	}
	defer run.Close()
	if err := run.SaveConfig(cfg); err != nil {
		log.Fatalf("failed to save run config: %v", err)
	}

	start := time.Now()
	err = tr.Fit(module.Train, module.Val, func(stats trainer.EpochStats) {
		rec := explog.Record{Epoch: stats.Epoch, TrainLoss: stats.TrainLoss}
		if stats.Val != nil {
			rec.ValAccuracy = stats.Val.Accuracy()
			rec.ValMacroF1 = stats.Val.MacroF1()
		}
		if err := run.Log(rec); err != nil {
			log.Printf("warning: failed to log epoch %d: %v", stats.Epoch, err)
		}
		log.Printf("epoch %d: train loss %.4f, val accuracy %.4f, val macro F1 %.4f",
			rec.Epoch, rec.TrainLoss, rec.ValAccuracy, rec.ValMacroF1)
	})
	if err != nil {
		log.Fatalf("training failed: %v", err)
	}
	log.Printf("Training completed in %v", time.Since(start))

	for name, loader := range map[string]*datasets.Loader{
		"test_strict":  module.TestStrict,
		"test_overlap": module.TestOverlap,
	} {
		if loader.Len() == 0 {
			log.Printf("%s is empty, skipping evaluation", name)
			continue
		}
		conf, err := tr.Evaluate(loader)
		if err != nil {
			log.Fatalf("evaluation on %s failed: %v", name, err)
		}
		log.Printf("%s: accuracy %.4f, macro F1 %.4f over %d voxels",
			name, conf.Accuracy(), conf.MacroF1(), conf.Total())
		fmt.Print(conf)
	}

	if err := run.PlotCurves(); err != nil {
		log.Printf("warning: failed to plot curves: %v", err)
	}
	log.Printf("Run artifacts written to %s", run.Dir())
}

// cliFlags collects the flag targets the JSON merge may fill in.
type cliFlags struct {
	dataPath, trainSamples *string
	heightLo, heightHi     *int
	trainDayEnd            *int
	valSplit               *float64
	batchSize              *int
	seed                   *int64
	dimension              *int
	patchSize, patchBorder *string
	modelClass, hidden     *string
	numClasses, epochs     *int
	lr                     *float64
}

// mergeFileConfig fills flag values from fc for every flag whose name is
// not in set (the flags actually passed on the command line, per
// flag.Visit). Passed flags always win, even when set to their default.
func mergeFileConfig(fc fileConfig, set map[string]bool, cf cliFlags) {
	if d := fc.Data; d != nil {
		if d.StorePath != nil && !set["data"] {
			*cf.dataPath = *d.StorePath
		}
		if len(d.TrainSamples) > 0 && !set["train-samples"] {
			*cf.trainSamples = strings.Join(d.TrainSamples, ",")
		}
		if d.HeightLo != nil && !set["height-lo"] {
			*cf.heightLo = *d.HeightLo
		}
		if d.HeightHi != nil && !set["height-hi"] {
			*cf.heightHi = *d.HeightHi
		}
		if d.TrainDayEnd != nil && !set["train-day-end"] {
			*cf.trainDayEnd = *d.TrainDayEnd
		}
		if d.ValidationSplit != nil && !set["val-split"] {
			*cf.valSplit = *d.ValidationSplit
		}
		if d.BatchSize != nil && !set["batch-size"] {
			*cf.batchSize = *d.BatchSize
		}
		if d.Seed != nil && !set["seed"] {
			*cf.seed = *d.Seed
		}
		if d.Dimension != nil && !set["dimension"] {
			*cf.dimension = *d.Dimension
		}
		if len(d.PatchSize) > 0 && !set["patch-size"] {
			*cf.patchSize = joinInts(d.PatchSize)
		}
		if len(d.PatchBorder) > 0 && !set["patch-border"] {
			*cf.patchBorder = joinInts(d.PatchBorder)
		}
	}
	if m := fc.Model; m != nil {
		if m.ModelClass != nil && !set["model"] {
			*cf.modelClass = *m.ModelClass
		}
		if m.NumClasses != nil && !set["num-classes"] {
			*cf.numClasses = *m.NumClasses
		}
		if len(m.HiddenSizes) > 0 && !set["hidden"] {
			*cf.hidden = joinInts(m.HiddenSizes)
		}
		if m.LearningRate != nil && !set["lr"] {
			*cf.lr = *m.LearningRate
		}
		if m.Epochs != nil && !set["epochs"] {
			*cf.epochs = *m.Epochs
		}
	}
}

func parseStrings(s string) []string {
	var out []string
	for _, tok := range strings.Split(s, ",") {
		if tok = strings.TrimSpace(tok); tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

func parseInts(s string) ([]int, error) {
	var out []int
	for _, tok := range strings.Split(s, ",") {
		if tok = strings.TrimSpace(tok); tok == "" {
			continue
		}
		v, err := strconv.Atoi(tok)
		if err != nil {
			return nil, fmt.Errorf("%q is not an integer", tok)
		}
		out = append(out, v)
	}
	return out, nil
}

func joinInts(vs []int) string {
	toks := make([]string, len(vs))
	for i, v := range vs {
		toks[i] = strconv.Itoa(v)
	}
	return strings.Join(toks, ",")
}
