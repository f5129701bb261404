package matrix

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrDimensionMismatch = errors.New("dimension mismatch")
	ErrOddWidth          = errors.New("polar matrix needs an even number of columns")
	ErrEmpty             = errors.New("matrix has no elements")
	ErrDepthMismatch     = errors.New("stack depth mismatch")
)

// SameShape returns ErrDimensionMismatch unless a and b have equal dimensions.
// A nil matrix gives ErrEmpty.
func SameShape(a, b *Matrix) error {
	if a == nil || b == nil {
		return ErrEmpty
	}
	ar, ac := a.Dims()
	br, bc := b.Dims()
	if ar != br || ac != bc {
		return fmt.Errorf("%dx%d vs %dx%d: %w", ar, ac, br, bc, ErrDimensionMismatch)
	}
	return nil
}

// ValidatePolar checks that m can hold polar vectors (magnitude half + angle
// half): an even, positive column count.
func ValidatePolar(m *Matrix) error {
	if m == nil {
		return ErrEmpty
	}
	c := m.Cols()
	if c == 0 {
		return fmt.Errorf("no columns: %w", ErrEmpty)
	}
	if c%2 != 0 {
		return fmt.Errorf("%d columns: %w", c, ErrOddWidth)
	}
	return nil
}

// ValidateWeights checks that weights carry one value per polar vector of m.
func ValidateWeights(m, weights *Matrix) error {
	if weights == nil {
		return ErrEmpty
	}
	r, c := weights.Dims()
	if r != m.Rows() || c != m.Half() {
		return fmt.Errorf("weights %dx%d for %d rows of %d vectors: %w", r, c, m.Rows(), m.Half(), ErrDimensionMismatch)
	}
	return nil
}
