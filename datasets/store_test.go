package datasets

import (
	"strings"
	"testing"
)

func TestStoreLazyOpen(t *testing.T) {
	path := writeFixture(t, t.TempDir(), []string{"alpha"}, fixtureDims{2, 2, 4, 4})

	s := NewStore(path)
	if s.file != nil {
		t.Fatal("store opened its file before first access")
	}
	if _, err := s.SampleNames(); err != nil {
		t.Fatalf("SampleNames: %v", err)
	}
	if s.file == nil {
		t.Fatal("store file still nil after first access")
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if s.file != nil {
		t.Fatal("file handle kept after Close")
	}

	// A closed store reopens on the next read.
	if _, err := s.DayCount("alpha"); err != nil {
		t.Fatalf("DayCount after Close: %v", err)
	}
	s.Close()
}

func TestStoreSampleNamesSortedLeafGroups(t *testing.T) {
	path := writeFixture(t, t.TempDir(), []string{"beta", "alpha", "nested/gamma"}, fixtureDims{1, 1, 2, 2})

	s := NewStore(path)
	defer s.Close()

	names, err := s.SampleNames()
	if err != nil {
		t.Fatalf("SampleNames: %v", err)
	}
	want := []string{"alpha", "beta", "nested/gamma"}
	if len(names) != len(want) {
		t.Fatalf("SampleNames = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("SampleNames = %v, want %v", names, want)
		}
	}
}

func TestStoreDay(t *testing.T) {
	dims := fixtureDims{days: 3, heights: 2, ys: 4, xs: 5}
	path := writeFixture(t, t.TempDir(), []string{"alpha", "beta"}, dims)

	s := NewStore(path)
	defer s.Close()

	data, labels, err := s.Day("beta", 2)
	if err != nil {
		t.Fatalf("Day: %v", err)
	}
	if !equalShapes(data.Shape, []int{2, 4, 5}) {
		t.Fatalf("data shape = %v, want [2 4 5]", data.Shape)
	}
	if !equalShapes(labels.Shape, []int{2, 4, 5}) {
		t.Fatalf("labels shape = %v, want [2 4 5]", labels.Shape)
	}
	if got, want := data.At(1, 3, 4), fixtureValue(1, 2, 1, 3, 4); got != want {
		t.Errorf("data At(1,3,4) = %v, want %v", got, want)
	}
	if got, want := labels.At(1, 3, 4), fixtureLabel(1, 2, 1, 3, 4); got != want {
		t.Errorf("labels At(1,3,4) = %v, want %v", got, want)
	}

	if _, _, err := s.Day("beta", 3); err == nil {
		t.Error("expected error for day out of range")
	}
	if _, _, err := s.Day("beta", -1); err == nil {
		t.Error("expected error for negative day")
	}
}

func TestStoreDayCount(t *testing.T) {
	path := writeFixture(t, t.TempDir(), []string{"alpha"}, fixtureDims{4, 1, 2, 2})

	s := NewStore(path)
	defer s.Close()

	got, err := s.DayCount("alpha")
	if err != nil {
		t.Fatalf("DayCount: %v", err)
	}
	if got != 4 {
		t.Errorf("DayCount = %d, want 4", got)
	}

	if _, err := s.DayCount("missing"); err == nil {
		t.Error("expected error for unknown sample")
	}
}

func TestStoreMissingFile(t *testing.T) {
	s := NewStore(t.TempDir() + "/does-not-exist.h5")
	_, err := s.SampleNames()
	if err == nil {
		t.Fatal("expected open error for missing file")
	}
	if !strings.Contains(err.Error(), "does-not-exist.h5") {
		t.Errorf("error %q does not name the file", err)
	}
}

func TestScanStore(t *testing.T) {
	path := writeFixture(t, t.TempDir(), []string{"b", "a"}, fixtureDims{5, 1, 2, 2})

	samples, totalDays, err := ScanStore(path)
	if err != nil {
		t.Fatalf("ScanStore: %v", err)
	}
	if len(samples) != 2 || samples[0] != "a" || samples[1] != "b" {
		t.Errorf("samples = %v, want [a b]", samples)
	}
	if totalDays != 5 {
		t.Errorf("totalDays = %d, want 5", totalDays)
	}
}
