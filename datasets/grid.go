package datasets

// Grid is an n-dimensional array stored as a flat, row-major buffer plus
// its shape. Batches and examples are passed around as Grids and only
// converted to gomlx tensors at the loader boundary.
type Grid[T any] struct {
	Data  []T
	Shape []int
}

// NewGrid allocates a zero-valued grid with the given shape.
func NewGrid[T any](shape ...int) Grid[T] {
	return Grid[T]{
		Data:  make([]T, shapeSize(shape)),
		Shape: append([]int(nil), shape...),
	}
}

// FullGrid allocates a grid with every element set to v.
func FullGrid[T any](v T, shape ...int) Grid[T] {
	g := NewGrid[T](shape...)
	for i := range g.Data {
		g.Data[i] = v
	}
	return g
}

// Rank returns the number of axes.
func (g Grid[T]) Rank() int { return len(g.Shape) }

// Len returns the total number of elements.
func (g Grid[T]) Len() int { return len(g.Data) }

// At returns the element at the given coordinate. The number of indices
// must match the rank.
func (g Grid[T]) At(indices ...int) T {
	return g.Data[g.offset(indices)]
}

// offset converts a coordinate into a flat buffer offset.
func (g Grid[T]) offset(indices []int) int {
	off := 0
	for i, idx := range indices {
		off = off*g.Shape[i] + idx
	}
	return off
}

// Index selects one entry along the leading axis, dropping that axis.
// The result shares no storage with g.
func (g Grid[T]) Index(i int) Grid[T] {
	stride := shapeSize(g.Shape[1:])
	out := Grid[T]{
		Data:  make([]T, stride),
		Shape: append([]int(nil), g.Shape[1:]...),
	}
	copy(out.Data, g.Data[i*stride:(i+1)*stride])
	return out
}

// Crop copies out the rectangular sub-region described by per-axis starts
// and sizes. len(starts) and len(sizes) must equal the rank.
func (g Grid[T]) Crop(starts, sizes []int) Grid[T] {
	out := NewGrid[T](sizes...)
	src := make([]int, g.Rank())
	dst := make([]int, g.Rank())
	for {
		for i := range dst {
			src[i] = starts[i] + dst[i]
		}
		out.Data[out.offset(dst)] = g.Data[g.offset(src)]
		if !advance(dst, sizes) {
			return out
		}
	}
}

// FillRegion sets the rectangular sub-region described by per-axis starts
// and sizes to v. Empty regions (any size <= 0) are a no-op.
func (g Grid[T]) FillRegion(starts, sizes []int, v T) {
	for _, s := range sizes {
		if s <= 0 {
			return
		}
	}
	idx := make([]int, g.Rank())
	for {
		off := 0
		for i := range idx {
			off = off*g.Shape[i] + starts[i] + idx[i]
		}
		g.Data[off] = v
		if !advance(idx, sizes) {
			return
		}
	}
}

// WithLeadingAxis returns the grid reshaped with one extra size-1 axis in
// front (the channel axis expected by the segmentation model). The flat
// buffer is shared.
func (g Grid[T]) WithLeadingAxis() Grid[T] {
	return Grid[T]{
		Data:  g.Data,
		Shape: append([]int{1}, g.Shape...),
	}
}

// advance increments idx odometer-style within sizes, returning false once
// the whole region has been visited.
func advance(idx, sizes []int) bool {
	for i := len(idx) - 1; i >= 0; i-- {
		idx[i]++
		if idx[i] < sizes[i] {
			return true
		}
		idx[i] = 0
	}
	return false
}

func shapeSize(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

func equalShapes(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
