package datasets

import (
	"path/filepath"
	"strings"
	"testing"

	scihdf5 "github.com/scigolib/hdf5"
)

// Fixture files encode their coordinates into the stored values so tests
// can decode which (sample, day, height, y, x) a returned pixel came from:
// data = sample*10000 + day*1000 + height*100 + y*10 + x (exact in
// float32 at fixture sizes), label = (sample+day+height+y+x) % 5.

type fixtureDims struct {
	days, heights, ys, xs int
}

// groupPrefixes returns every group path needed to hold a sample named
// name, outermost first: "a/b" -> ["/a", "/a/b"].
func groupPrefixes(name string) []string {
	parts := strings.Split(name, "/")
	prefixes := make([]string, 0, len(parts))
	cur := ""
	for _, p := range parts {
		cur += "/" + p
		prefixes = append(prefixes, cur)
	}
	return prefixes
}

func fixtureValue(sample, day, height, y, x int) float32 {
	return float32(sample*10000 + day*1000 + height*100 + y*10 + x)
}

func fixtureLabel(sample, day, height, y, x int) int32 {
	return int32((sample + day + height + y + x) % 5)
}

// writeFixture creates an HDF5 file with one leaf group per sample name,
// each holding "data" and "labels" arrays of shape
// [days, heights, ys, xs]. Sample values are keyed by position in the
// samples slice.
func writeFixture(t *testing.T, dir string, samples []string, dims fixtureDims) string {
	t.Helper()
	path := filepath.Join(dir, "xray.h5")

	fw, err := scihdf5.CreateForWrite(path, scihdf5.CreateTruncate)
	if err != nil {
		t.Fatalf("creating fixture file: %v", err)
	}

	shape := []uint64{uint64(dims.days), uint64(dims.heights), uint64(dims.ys), uint64(dims.xs)}
	created := make(map[string]bool)
	for si, name := range samples {
		n := dims.days * dims.heights * dims.ys * dims.xs
		data := make([]float32, 0, n)
		labels := make([]int32, 0, n)
		for day := 0; day < dims.days; day++ {
			for h := 0; h < dims.heights; h++ {
				for y := 0; y < dims.ys; y++ {
					for x := 0; x < dims.xs; x++ {
						data = append(data, fixtureValue(si, day, h, y, x))
						labels = append(labels, fixtureLabel(si, day, h, y, x))
					}
				}
			}
		}

		for _, prefix := range groupPrefixes(name) {
			if created[prefix] {
				continue
			}
			if _, err := fw.CreateGroup(prefix); err != nil {
				t.Fatalf("creating group %s for %s: %v", prefix, name, err)
			}
			created[prefix] = true
		}

		ds, err := fw.CreateDataset("/"+name+"/data", scihdf5.Float32, shape)
		if err != nil {
			t.Fatalf("creating data array for %s: %v", name, err)
		}
		if err := ds.Write(data); err != nil {
			t.Fatalf("writing data array for %s: %v", name, err)
		}

		lds, err := fw.CreateDataset("/"+name+"/labels", scihdf5.Int32, shape)
		if err != nil {
			t.Fatalf("creating labels array for %s: %v", name, err)
		}
		if err := lds.Write(labels); err != nil {
			t.Fatalf("writing labels array for %s: %v", name, err)
		}
	}

	if err := fw.Close(); err != nil {
		t.Fatalf("closing fixture file: %v", err)
	}
	return path
}
