package datasets

import "fmt"

// Subset exposes a fixed list of indices of a base view under its own
// name. The train/val split produces two Subsets over one shared dataset.
type Subset struct {
	name    string
	base    View
	indices []int
}

// NewSubset creates a view over base restricted to the given indices, in
// the given order.
func NewSubset(name string, base View, indices []int) *Subset {
	return &Subset{name: name, base: base, indices: indices}
}

// Name returns the subset name.
func (s *Subset) Name() string { return s.name }

// Len returns the number of indices in the subset.
func (s *Subset) Len() int { return len(s.indices) }

// Indices returns the underlying index list into the base view.
func (s *Subset) Indices() []int { return s.indices }

// Get fetches the idx-th subset entry from the base view.
func (s *Subset) Get(idx int) (Grid[float32], Grid[int32], Grid[bool], error) {
	if idx < 0 || idx >= len(s.indices) {
		return Grid[float32]{}, Grid[int32]{}, Grid[bool]{}, fmt.Errorf(
			"index %d out of range [0, %d)", idx, len(s.indices))
	}
	return s.base.Get(s.indices[idx])
}

// Concat chains several views into one logical view. Indices
// [0, parts[0].Len()) map to the first part, the next block to the second,
// and so on, using cumulative counts for the mapping.
type Concat struct {
	name  string
	parts []View
	cum   []int
}

// NewConcat concatenates the given views in order.
func NewConcat(name string, parts ...View) *Concat {
	cum := make([]int, len(parts)+1)
	for i, p := range parts {
		cum[i+1] = cum[i] + p.Len()
	}
	return &Concat{name: name, parts: parts, cum: cum}
}

// Name returns the concatenated view's name.
func (c *Concat) Name() string { return c.name }

// Len returns the summed length of all parts.
func (c *Concat) Len() int { return c.cum[len(c.parts)] }

// Get maps idx onto the containing part and fetches from it.
func (c *Concat) Get(idx int) (Grid[float32], Grid[int32], Grid[bool], error) {
	if idx < 0 || idx >= c.Len() {
		return Grid[float32]{}, Grid[int32]{}, Grid[bool]{}, fmt.Errorf(
			"index %d out of range [0, %d)", idx, c.Len())
	}
	for i := range c.parts {
		if idx < c.cum[i+1] {
			return c.parts[i].Get(idx - c.cum[i])
		}
	}
	// Unreachable given the range check above.
	return Grid[float32]{}, Grid[int32]{}, Grid[bool]{}, fmt.Errorf("index %d not mapped", idx)
}
