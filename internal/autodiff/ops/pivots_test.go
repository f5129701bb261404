package ops_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/polargrad/internal/autodiff/ops"
	"github.com/born-ml/polargrad/internal/checkpoint"
	"github.com/born-ml/polargrad/internal/matrix"
)

func newPivotOp(t *testing.T, cfg ops.Config, pivots int) *ops.VectorPivotDecompositionOp {
	t.Helper()
	op, err := ops.NewVectorPivotDecompositionOp(cfg, pivots)
	require.NoError(t, err)
	return op
}

func TestVectorPivotDecompositionOp_Shapes(t *testing.T) {
	op := newPivotOp(t, sequentialConfig(), ops.MaxPivots)
	assert.Equal(t, ops.MaxPivots, op.Pivots())

	inputs := pivotInputs(1, 5, 3, ops.MaxPivots)
	out, err := op.Forward(inputs...)
	require.NoError(t, err)
	assert.Equal(t, 5, out.Rows())
	assert.Equal(t, 10*3, out.Cols())

	grads, err := op.Backward(out)
	require.NoError(t, err)
	require.Len(t, grads, ops.MaxPivots+2)
	for k, g := range grads {
		r, c := inputs[k].Dims()
		gr, gc := g.Dims()
		assert.Equal(t, r, gr, "gradient %d rows", k)
		assert.Equal(t, c, gc, "gradient %d cols", k)
	}
}

func TestVectorPivotDecompositionOp_AxisPivots(t *testing.T) {
	op := newPivotOp(t, sequentialConfig(), 2)
	input := polarMatrix(t, [][]float64{{2}}, [][]float64{{math.Pi / 4}}) // (√2, √2)
	xAxis := polarMatrix(t, [][]float64{{1}}, [][]float64{{0}})
	yAxis := polarMatrix(t, [][]float64{{1}}, [][]float64{{math.Pi / 2}})

	out, err := op.Forward(input, xAxis, yAxis, weightMatrix(t, [][]float64{{3}}))
	require.NoError(t, err)
	require.Equal(t, 6, out.Cols())

	magnitude := func(slot int) float64 { return out.At(0, slot) }
	angle := func(slot int) float64 { return out.At(0, 3+slot) }

	assert.InDelta(t, math.Sqrt2, magnitude(0), 1e-8)
	assert.InDelta(t, 0, angle(0), 1e-8)
	assert.InDelta(t, math.Sqrt2, magnitude(1), 1e-8)
	assert.InDelta(t, math.Pi/2, angle(1), 1e-8)

	// Both axes together span the plane: nothing is left over.
	assert.InDelta(t, 0, magnitude(2), 1e-7)

	grads, err := op.Backward(ones(1, 6))
	require.NoError(t, err)
	for _, g := range grads {
		requireFinite(t, g)
	}
}

func TestVectorPivotDecompositionOp_SinglePivotMatchesDecomposition(t *testing.T) {
	cfg := sequentialConfig()
	inputs := vectorInputs(31, 3, 4)
	weights := inputs[2]

	single, err := ops.NewVectorDecompositionOp(cfg).Forward(inputs...)
	require.NoError(t, err)
	pivoted, err := newPivotOp(t, cfg, 1).Forward(inputs...)
	require.NoError(t, err)

	half := 4
	for i := 0; i < 3; i++ {
		for j := 0; j < half; j++ {
			// Projection.
			assert.InDelta(t, single.At(i, j), pivoted.At(i, j), 1e-12)
			assert.InDelta(t, single.At(i, 3*half+j), pivoted.At(i, 2*half+j), 1e-12)

			// Residual is the rejection scaled by the weight.
			assert.InDelta(t, weights.At(i, j)*single.At(i, half+j), pivoted.At(i, half+j), 1e-12)
			assert.InDelta(t, single.At(i, 4*half+j), pivoted.At(i, 3*half+j), 1e-12)
		}
	}
}

func TestVectorPivotDecompositionOp_Errors(t *testing.T) {
	cfg := sequentialConfig()

	for _, n := range []int{0, -1, ops.MaxPivots + 1} {
		op, err := ops.NewVectorPivotDecompositionOp(cfg, n)
		assert.Nil(t, op)
		assert.ErrorIs(t, err, ops.ErrPivotCount, "%d pivots", n)
	}

	op := newPivotOp(t, cfg, 2)
	inputs := pivotInputs(2, 2, 3, 2)

	_, err := op.Backward(matrix.New(2, 18))
	assert.ErrorIs(t, err, ops.ErrNoForward)

	_, err = op.Forward(inputs[:3]...)
	assert.ErrorIs(t, err, ops.ErrInputCount)

	_, err = op.Forward(inputs[0], inputs[1], matrix.New(2, 4), inputs[3])
	assert.ErrorIs(t, err, matrix.ErrDimensionMismatch)

	_, err = op.Forward(inputs[0], nil, inputs[2], inputs[3])
	assert.ErrorIs(t, err, matrix.ErrEmpty)

	_, err = op.Forward(inputs[0], inputs[1], inputs[2], matrix.New(2, 6))
	assert.ErrorIs(t, err, matrix.ErrDimensionMismatch)

	_, err = op.Forward(inputs...)
	require.NoError(t, err)
	_, err = op.Backward(matrix.New(2, 6))
	assert.ErrorIs(t, err, ops.ErrGradientShape)
}

func TestVectorPivotDecompositionOp_Checkpoint(t *testing.T) {
	op := newPivotOp(t, sequentialConfig(), 3)
	inputs := pivotInputs(3, 3, 2, 3)

	out, err := op.Forward(inputs...)
	require.NoError(t, err)
	want, err := op.Backward(out)
	require.NoError(t, err)

	arena := checkpoint.NewArena()
	h, err := op.Store(arena)
	require.NoError(t, err)

	_, err = op.Backward(out)
	assert.ErrorIs(t, err, ops.ErrNoForward)

	require.NoError(t, op.Restore(arena, h))
	got, err := op.Backward(out)
	require.NoError(t, err)
	require.Len(t, got, len(want))
	for k := range want {
		assert.True(t, want[k].Equal(got[k]), "gradient %d", k)
	}
}

func TestVectorPivotDecompositionOp_DeterministicAcrossWorkers(t *testing.T) {
	inputs := pivotInputs(5, 64, 8, ops.MaxPivots)

	var outputs []*matrix.Matrix
	var grads [][]*matrix.Matrix
	for _, cfg := range []ops.Config{sequentialConfig(), parallelConfig(3), parallelConfig(8)} {
		op := newPivotOp(t, cfg, ops.MaxPivots)
		out, err := op.Forward(inputs...)
		require.NoError(t, err)
		g, err := op.Backward(out)
		require.NoError(t, err)
		outputs = append(outputs, out)
		grads = append(grads, g)
	}
	for run := 1; run < len(outputs); run++ {
		assert.True(t, outputs[0].Equal(outputs[run]), "output differs in run %d", run)
		for k := range grads[0] {
			assert.True(t, grads[0][k].Equal(grads[run][k]), "gradient %d differs in run %d", k, run)
		}
	}
}
