package datasets

// Selection describes which subset of the backing store a dataset covers:
// which samples, which half-open day and height ranges, and whether height
// is iterated per point (Dimension == 2) or folded into a per-day volume
// (Dimension == 3). It is a pure value type: no mutation after
// construction, no I/O.
type Selection struct {
	// SampleList is the ordered list of sample group names to use.
	SampleList []string

	// HeightRange is the half-open [lo, hi) range of height indices.
	HeightRange [2]int

	// DayRange is the half-open [lo, hi) range of day indices.
	DayRange [2]int

	// Dimension is the number of spatial dimensions, 2 or 3.
	Dimension int
}

// NumSamples returns the number of entries in SampleList.
func (s Selection) NumSamples() int { return len(s.SampleList) }

// NumHeights returns the number of height indices in range.
func (s Selection) NumHeights() int { return s.HeightRange[1] - s.HeightRange[0] }

// NumDays returns the number of day indices in range.
func (s Selection) NumDays() int { return s.DayRange[1] - s.DayRange[0] }

// PointsPerSample returns how many dataset points each sample contributes:
// one per (day, height) pair in 2-D, one per day in 3-D.
func (s Selection) PointsPerSample() int {
	if s.Dimension == 2 {
		return s.NumHeights() * s.NumDays()
	}
	return s.NumDays()
}

// NumPoints returns the total number of points, which is exactly the valid
// index range [0, NumPoints) of the dataset built on this selection.
func (s Selection) NumPoints() int { return s.NumSamples() * s.PointsPerSample() }
