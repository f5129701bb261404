package ops

import (
	"fmt"

	"github.com/born-ml/polargrad/internal/matrix"
	"github.com/born-ml/polargrad/internal/parallel"
	"github.com/born-ml/polargrad/internal/polar"
)

// MaxPivots is the largest pivot count of a VectorPivotDecompositionOp, so
// one result depends on at most MaxPivots+1 vectors.
const MaxPivots = 4

// VectorPivotDecompositionOp decomposes each input vector against several
// candidate pivots at once. With P pivots it produces P+1 results per
// element:
//   - slot k < P: projection of the input onto pivot k
//   - slot P: residual, the input minus the sum of all projections, with its
//     magnitude scaled by the weight
//
// Inputs: (input R×2C, pivot_0 … pivot_P-1 R×2C each, weights R×C).
// Output: R×2(P+1)C in the slot layout of VectorDecompositionOp. With four
// pivots that is R×10C.
type VectorPivotDecompositionOp struct {
	cfg    Config
	pivots int

	retained[vectorState]
}

// NewVectorPivotDecompositionOp creates a VectorPivotDecompositionOp over
// pivots candidate pivots, 1 ≤ pivots ≤ MaxPivots.
func NewVectorPivotDecompositionOp(cfg Config, pivots int) (*VectorPivotDecompositionOp, error) {
	if pivots < 1 || pivots > MaxPivots {
		return nil, fmt.Errorf("vector_pivot_decomposition: %d pivots, want 1 to %d: %w", pivots, MaxPivots, ErrPivotCount)
	}
	return &VectorPivotDecompositionOp{cfg: cfg, pivots: pivots}, nil
}

// Name returns the operation name.
func (op *VectorPivotDecompositionOp) Name() string {
	return "vector_pivot_decomposition"
}

// Pivots returns the number of pivot inputs.
func (op *VectorPivotDecompositionOp) Pivots() int {
	return op.pivots
}

// Forward computes the projections and the residual for every element.
func (op *VectorPivotDecompositionOp) Forward(inputs ...*matrix.Matrix) (*matrix.Matrix, error) {
	name, pivots := op.Name(), op.pivots
	if err := checkInputs(name, inputs, pivots+2); err != nil {
		return nil, err
	}
	input, weights := inputs[0], inputs[pivots+1]
	pivotInputs := inputs[1 : pivots+1]
	if err := matrix.ValidatePolar(input); err != nil {
		return nil, fmt.Errorf("%s: input: %w", name, err)
	}
	for k, p := range pivotInputs {
		if err := matrix.SameShape(input, p); err != nil {
			return nil, fmt.Errorf("%s: pivot %d: %w", name, k, err)
		}
	}
	if err := matrix.ValidateWeights(input, weights); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	rows, half := input.Rows(), input.Half()
	slots := pivots + 1
	state := &vectorState{
		rows:  rows,
		half:  half,
		cache: make([]ElementDerivatives, rows*half*slots),
	}
	out := matrix.New(rows, 2*slots*half)
	angleBase := slots * half
	eps := op.cfg.Epsilon

	parallel.For(rows, func(i int) {
		row := out.Row(i)
		decPivots := make([]polar.Jacobian, pivots)
		p := make([]polar.Vector, pivots)
		for j := 0; j < half; j++ {
			v, decIn := polar.Decode(input.Magnitude(i, j), input.Angle(i, j))
			for k, pivot := range pivotInputs {
				p[k], decPivots[k] = polar.Decode(pivot.Magnitude(i, j), pivot.Angle(i, j))
			}

			for s, c := range decomposeAgainst(v, p, weights.At(i, j), eps) {
				magnitude, angle, d := c.encodePivots(decIn, decPivots, eps)
				row[s*half+j] = magnitude
				row[angleBase+s*half+j] = angle
				*state.at(i, j, s, slots) = d
			}
		}
	}, op.cfg.Parallel)

	op.keep(state)
	return out, nil
}

// Backward returns gradients for (input, pivot_0 … pivot_P-1, weights).
func (op *VectorPivotDecompositionOp) Backward(outputGrad *matrix.Matrix) ([]*matrix.Matrix, error) {
	name := op.Name()
	state, err := op.current(name)
	if err != nil {
		return nil, err
	}
	slots := op.pivots + 1
	rows, half := state.rows, state.half
	if err := checkGradient(name, outputGrad, rows, 2*slots*half); err != nil {
		return nil, err
	}

	gradInput := matrix.New(rows, 2*half)
	gradPivots := make([]*matrix.Matrix, op.pivots)
	for k := range gradPivots {
		gradPivots[k] = matrix.New(rows, 2*half)
	}
	gradWeights := matrix.New(rows, half)
	angleBase := slots * half

	parallel.For(rows, func(i int) {
		g := outputGrad.Row(i)
		gw := gradWeights.Row(i)
		for j := 0; j < half; j++ {
			for s := 0; s < slots; s++ {
				gm, ga := g[s*half+j], g[angleBase+s*half+j]
				d := state.at(i, j, s, slots)
				p := d.backprop(gm, ga)
				gradInput.AccumulatePolar(i, j, p.InputMagnitude, p.InputAngle)
				gw[j] += p.Weight
				for k, gp := range gradPivots {
					dm, da := d.pivot(k, gm, ga)
					gp.AccumulatePolar(i, j, dm, da)
				}
			}
		}
	}, op.cfg.Parallel)

	grads := make([]*matrix.Matrix, 0, op.pivots+2)
	grads = append(grads, gradInput)
	grads = append(grads, gradPivots...)
	return append(grads, gradWeights), nil
}

// decomposeAgainst returns the projection of v onto every pivot followed by
// the weighted residual.
func decomposeAgainst(v polar.Vector, pivots []polar.Vector, w, eps float64) []combination {
	n := len(pivots)
	out := make([]combination, n+1)
	residual := combination{
		result:  v,
		dInput:  polar.Identity,
		dPivots: make([]polar.Jacobian, n),
		scale:   w,
		dScale:  1,
	}
	for k, p := range pivots {
		proj, dv, dp := projection(v, p, eps)
		out[k] = combination{
			result:  proj,
			dInput:  dv,
			dPivots: make([]polar.Jacobian, n),
			scale:   1,
		}
		out[k].dPivots[k] = dp

		residual.result = residual.result.Sub(proj)
		residual.dInput = residual.dInput.Sub(dv)
		residual.dPivots[k] = dp.Neg()
	}
	out[n] = residual
	return out
}
