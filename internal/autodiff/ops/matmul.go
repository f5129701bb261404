package ops

import (
	"fmt"

	"github.com/born-ml/polargrad/internal/matrix"
)

// MatMulOp represents matrix multiplication: output = A @ B.
//
// Backward pass:
//   - grad_A = outputGrad @ B^T
//   - grad_B = A^T @ outputGrad
type MatMulOp struct {
	retained[matmulState]
}

type matmulState struct {
	a, b *matrix.Matrix
}

// NewMatMulOp creates a new MatMulOp.
func NewMatMulOp() *MatMulOp {
	return &MatMulOp{}
}

// Name returns the operation name.
func (op *MatMulOp) Name() string {
	return "matmul"
}

// Forward computes A @ B. The inner dimensions must agree.
func (op *MatMulOp) Forward(inputs ...*matrix.Matrix) (*matrix.Matrix, error) {
	if err := checkInputs("matmul", inputs, 2); err != nil {
		return nil, err
	}
	a, b := inputs[0], inputs[1]
	m, k := a.Dims()
	kAlt, n := b.Dims()
	if k != kAlt {
		return nil, fmt.Errorf("matmul: shape mismatch [%d,%d] @ [%d,%d]: %w", m, k, kAlt, n, matrix.ErrDimensionMismatch)
	}

	out := matrix.New(m, n)
	out.Dense().Mul(a.Dense(), b.Dense())

	op.keep(&matmulState{a: a, b: b})
	return out, nil
}

// Backward computes input gradients for matrix multiplication.
func (op *MatMulOp) Backward(outputGrad *matrix.Matrix) ([]*matrix.Matrix, error) {
	state, err := op.current("matmul")
	if err != nil {
		return nil, err
	}
	a, b := state.a, state.b
	if err := checkGradient("matmul", outputGrad, a.Rows(), b.Cols()); err != nil {
		return nil, err
	}

	// grad_A = outputGrad @ B^T
	gradA := a.Zeros()
	gradA.Dense().Mul(outputGrad.Dense(), b.Dense().T())

	// grad_B = A^T @ outputGrad
	gradB := b.Zeros()
	gradB.Dense().Mul(a.Dense().T(), outputGrad.Dense())

	return []*matrix.Matrix{gradA, gradB}, nil
}
