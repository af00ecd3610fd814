// Package explog persists one training run to a directory: the effective
// configuration as config.json, per-epoch metrics as metrics.csv and a
// learning-curve plot rendered at the end of the run.
package explog

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Record is one epoch's worth of metrics.
type Record struct {
	Epoch       int
	TrainLoss   float64
	ValAccuracy float64
	ValMacroF1  float64
}

// Run logs a single experiment into its own directory.
type Run struct {
	dir     string
	file    *os.File
	csv     *csv.Writer
	history []Record
}

var metricsHeader = []string{"epoch", "train_loss", "val_accuracy", "val_macro_f1"}

// NewRun creates dir (and parents) and opens metrics.csv inside it with
// the header row already written.
func NewRun(dir string) (*Run, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating run directory %s: %w", dir, err)
	}
	f, err := os.Create(filepath.Join(dir, "metrics.csv"))
	if err != nil {
		return nil, fmt.Errorf("creating metrics file: %w", err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(metricsHeader); err != nil {
		f.Close()
		return nil, fmt.Errorf("writing metrics header: %w", err)
	}
	w.Flush()
	return &Run{dir: dir, file: f, csv: w}, nil
}

// Dir returns the run directory.
func (r *Run) Dir() string { return r.dir }

// SaveConfig writes cfg as indented JSON to config.json. The write is
// atomic (temp file then rename) so a crashed run never leaves a
// half-written config behind.
func (r *Run) SaveConfig(cfg any) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(r.dir, "config.json.tmp.*")
	if err != nil {
		return fmt.Errorf("creating temp config file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp config file: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(r.dir, "config.json")); err != nil {
		return fmt.Errorf("renaming config into place: %w", err)
	}
	return nil
}

// Log appends one epoch record to metrics.csv and keeps it in memory for
// the final plot. Rows are flushed immediately so a killed run still
// leaves its metrics on disk.
func (r *Run) Log(rec Record) error {
	row := []string{
		strconv.Itoa(rec.Epoch),
		strconv.FormatFloat(rec.TrainLoss, 'f', 6, 64),
		strconv.FormatFloat(rec.ValAccuracy, 'f', 6, 64),
		strconv.FormatFloat(rec.ValMacroF1, 'f', 6, 64),
	}
	if err := r.csv.Write(row); err != nil {
		return fmt.Errorf("writing metrics row: %w", err)
	}
	r.csv.Flush()
	if err := r.csv.Error(); err != nil {
		return fmt.Errorf("flushing metrics: %w", err)
	}
	r.history = append(r.history, rec)
	return nil
}

// PlotCurves renders the logged history to curves.png: training loss in
// red, validation accuracy and macro F1 in blue and green.
func (r *Run) PlotCurves() error {
	if len(r.history) == 0 {
		return fmt.Errorf("no epochs logged, nothing to plot")
	}

	p := plot.New()
	p.Title.Text = "Training curves"
	p.X.Label.Text = "epoch"

	curves := []struct {
		name  string
		col   color.RGBA
		value func(Record) float64
	}{
		{"train loss", color.RGBA{R: 200, G: 30, B: 30, A: 255}, func(rec Record) float64 { return rec.TrainLoss }},
		{"val accuracy", color.RGBA{R: 20, G: 80, B: 200, A: 255}, func(rec Record) float64 { return rec.ValAccuracy }},
		{"val macro F1", color.RGBA{R: 40, G: 140, B: 40, A: 255}, func(rec Record) float64 { return rec.ValMacroF1 }},
	}
	for _, c := range curves {
		xys := make(plotter.XYs, len(r.history))
		for i, rec := range r.history {
			xys[i] = plotter.XY{X: float64(rec.Epoch), Y: c.value(rec)}
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return fmt.Errorf("building %s line: %w", c.name, err)
		}
		line.Color = c.col
		line.Width = vg.Points(1.2)
		p.Add(line)
		p.Legend.Add(c.name, line)
	}
	p.Add(plotter.NewGrid())

	outPath := filepath.Join(r.dir, "curves.png")
	if err := p.Save(8*vg.Inch, 6*vg.Inch, outPath); err != nil {
		return fmt.Errorf("saving %s: %w", outPath, err)
	}
	return nil
}

// History returns the records logged so far.
func (r *Run) History() []Record { return r.history }

// Close flushes and closes metrics.csv.
func (r *Run) Close() error {
	r.csv.Flush()
	if err := r.csv.Error(); err != nil {
		r.file.Close()
		return err
	}
	return r.file.Close()
}
