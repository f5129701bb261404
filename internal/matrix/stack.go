package matrix

import "fmt"

// Stack is an ordered, fixed-depth sequence of equally shaped matrices.
// Depth usually indexes time steps or layers.
type Stack struct {
	layers []*Matrix
}

// NewStack creates depth zero matrices of shape rows×cols.
func NewStack(depth, rows, cols int) *Stack {
	layers := make([]*Matrix, depth)
	for d := range layers {
		layers[d] = New(rows, cols)
	}
	return &Stack{layers: layers}
}

// StackOf builds a stack from existing matrices. All layers must share a shape.
func StackOf(layers ...*Matrix) (*Stack, error) {
	if len(layers) == 0 {
		return nil, fmt.Errorf("stack: no layers: %w", ErrEmpty)
	}
	for d := 1; d < len(layers); d++ {
		if err := SameShape(layers[0], layers[d]); err != nil {
			return nil, fmt.Errorf("stack: layer %d: %w", d, err)
		}
	}
	out := make([]*Matrix, len(layers))
	copy(out, layers)
	return &Stack{layers: out}, nil
}

// Depth returns the number of layers.
func (s *Stack) Depth() int {
	return len(s.layers)
}

// At returns layer d.
func (s *Stack) At(d int) *Matrix {
	return s.layers[d]
}

// Set replaces layer d. The shape must match the existing layers.
func (s *Stack) Set(d int, m *Matrix) error {
	if err := SameShape(s.layers[d], m); err != nil {
		return fmt.Errorf("stack: layer %d: %w", d, err)
	}
	s.layers[d] = m
	return nil
}

// Layers returns the underlying layer slice.
func (s *Stack) Layers() []*Matrix {
	return s.layers
}

// Dims returns rows and columns shared by every layer.
func (s *Stack) Dims() (int, int) {
	return s.layers[0].Dims()
}

// Clone deep-copies every layer.
func (s *Stack) Clone() *Stack {
	out := make([]*Matrix, len(s.layers))
	for d, m := range s.layers {
		out[d] = m.Clone()
	}
	return &Stack{layers: out}
}
