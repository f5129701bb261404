// Package ops defines the operation contract and the polar-vector operations.
//
// Each operation implements the Operation interface, which provides:
//   - Forward pass: computes the output and retains the derivatives backward needs
//   - Backward pass: computes gradients for every input given the output gradient
//
// Polar operations treat the first half of a matrix's columns as magnitudes
// and the second half as the angles of the same vectors. Every element is
// decoded to Cartesian, combined, and encoded back to (magnitude, angle); the
// local partial derivatives of all of these steps are cached per element
// during forward and reused in backward.
//
// Supported operations:
//   - VectorAddOp: r = v + o, magnitude scaled by w
//   - VectorMultiplyOp: weight-selected delta (w > 0 ? o - v : v - o), magnitude scaled by w²
//   - VectorDecompositionOp: projection, rejection and weighted delta against a pivot (×3 output)
//   - VectorPivotDecompositionOp: projections onto up to four pivots plus the weighted residual
//   - VectorRotationOp: rotates v about a pivot by w radians
//   - CartesianSummationOp: sums weighted vector terms per section (empirical slope gradients)
//   - MatMulOp: plain matrix product
//
// StackedOp and TiledOp run any of these per stack layer or per tile.
package ops

import (
	"errors"
	"fmt"

	"github.com/born-ml/polargrad/internal/checkpoint"
	"github.com/born-ml/polargrad/internal/matrix"
)

// Common errors.
var (
	ErrNoForward       = errors.New("backward called without forward state")
	ErrInputCount      = errors.New("wrong number of inputs")
	ErrSectionIndex    = errors.New("section index out of range")
	ErrCheckpointType  = errors.New("checkpoint holds state of another operation")
	ErrGradientShape   = errors.New("output gradient shape does not match forward output")
	ErrInvalidSections = errors.New("invalid section count")
	ErrPivotCount      = errors.New("pivot count out of range")
)

// Operation is a differentiable polar-vector operation.
//
// Forward must be called before Backward. Backward returns one gradient per
// forward input, in forward's input order, each with that input's shape.
type Operation interface {
	// Forward computes the output and retains whatever Backward needs.
	// Inputs are never modified.
	Forward(inputs ...*matrix.Matrix) (*matrix.Matrix, error)

	// Backward computes input gradients given dL/d(output).
	Backward(outputGrad *matrix.Matrix) ([]*matrix.Matrix, error)
}

// Checkpointer is implemented by operations that can hand their retained
// forward state to an arena and take it back before backward.
type Checkpointer interface {
	// Store moves the retained state into arena and releases it from the operation.
	Store(arena *checkpoint.Arena) (checkpoint.Handle, error)

	// Restore reinstates state previously stored under h.
	Restore(arena *checkpoint.Arena, h checkpoint.Handle) error
}

// Named is implemented by operations that report a short name for logs and metrics.
type Named interface {
	Name() string
}

// NameOf returns op's name, or its Go type when it has none.
func NameOf(op any) string {
	if n, ok := op.(Named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", op)
}

// checkInputs returns ErrInputCount unless exactly want inputs are given.
func checkInputs(name string, inputs []*matrix.Matrix, want int) error {
	if len(inputs) != want {
		return fmt.Errorf("%s: got %d inputs, want %d: %w", name, len(inputs), want, ErrInputCount)
	}
	for k, in := range inputs {
		if in == nil {
			return fmt.Errorf("%s: input %d: %w", name, k, matrix.ErrEmpty)
		}
	}
	return nil
}

// checkGradient returns ErrGradientShape unless g is rows×cols.
func checkGradient(name string, g *matrix.Matrix, rows, cols int) error {
	if g == nil {
		return fmt.Errorf("%s: nil output gradient: %w", name, ErrGradientShape)
	}
	if r, c := g.Dims(); r != rows || c != cols {
		return fmt.Errorf("%s: gradient %dx%d, output %dx%d: %w", name, r, c, rows, cols, ErrGradientShape)
	}
	return nil
}

// validateVectorInputs checks input, other and weights of a two-vector operation.
func validateVectorInputs(name string, input, other, weights *matrix.Matrix) error {
	if err := matrix.ValidatePolar(input); err != nil {
		return fmt.Errorf("%s: input: %w", name, err)
	}
	if err := matrix.SameShape(input, other); err != nil {
		return fmt.Errorf("%s: second vector input: %w", name, err)
	}
	if err := matrix.ValidateWeights(input, weights); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}
