package explog

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestRunWritesMetricsCSV(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run1")
	r, err := NewRun(dir)
	if err != nil {
		t.Fatalf("NewRun: %v", err)
	}

	records := []Record{
		{Epoch: 0, TrainLoss: 1.5, ValAccuracy: 0.4, ValMacroF1: 0.3},
		{Epoch: 1, TrainLoss: 1.1, ValAccuracy: 0.6, ValMacroF1: 0.5},
	}
	for _, rec := range records {
		if err := r.Log(rec); err != nil {
			t.Fatalf("Log: %v", err)
		}
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.Open(filepath.Join(dir, "metrics.csv"))
	if err != nil {
		t.Fatalf("opening metrics.csv: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("reading metrics.csv: %v", err)
	}

	if len(rows) != 3 {
		t.Fatalf("metrics.csv has %d rows, want header plus 2", len(rows))
	}
	if rows[0][0] != "epoch" || rows[0][1] != "train_loss" {
		t.Errorf("header = %v", rows[0])
	}
	if rows[1][0] != "0" || rows[2][0] != "1" {
		t.Errorf("epoch column = %q, %q, want 0 and 1", rows[1][0], rows[2][0])
	}
	if rows[2][1] != "1.100000" {
		t.Errorf("train loss cell = %q, want 1.100000", rows[2][1])
	}
}

func TestRunSaveConfig(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run2")
	r, err := NewRun(dir)
	if err != nil {
		t.Fatalf("NewRun: %v", err)
	}
	defer r.Close()

	cfg := map[string]any{"model_class": "ultra_local", "epochs": 3}
	if err := r.SaveConfig(cfg); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "config.json"))
	if err != nil {
		t.Fatalf("reading config.json: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("config.json is not valid JSON: %v", err)
	}
	if got["model_class"] != "ultra_local" {
		t.Errorf("model_class = %v, want ultra_local", got["model_class"])
	}
	if got["epochs"] != float64(3) {
		t.Errorf("epochs = %v, want 3", got["epochs"])
	}
}

func TestRunPlotCurves(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run3")
	r, err := NewRun(dir)
	if err != nil {
		t.Fatalf("NewRun: %v", err)
	}
	defer r.Close()

	for i := 0; i < 3; i++ {
		if err := r.Log(Record{Epoch: i, TrainLoss: 1.0 / float64(i+1), ValAccuracy: 0.3 * float64(i+1)}); err != nil {
			t.Fatalf("Log: %v", err)
		}
	}
	if err := r.PlotCurves(); err != nil {
		t.Fatalf("PlotCurves: %v", err)
	}

	info, err := os.Stat(filepath.Join(dir, "curves.png"))
	if err != nil {
		t.Fatalf("curves.png not written: %v", err)
	}
	if info.Size() == 0 {
		t.Error("curves.png is empty")
	}
}

func TestRunPlotCurvesEmpty(t *testing.T) {
	r, err := NewRun(filepath.Join(t.TempDir(), "run4"))
	if err != nil {
		t.Fatalf("NewRun: %v", err)
	}
	defer r.Close()

	if err := r.PlotCurves(); err == nil {
		t.Fatal("PlotCurves succeeded with no logged epochs")
	}
}
