package ops_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/polargrad/internal/autodiff/ops"
	"github.com/born-ml/polargrad/internal/checkpoint"
	"github.com/born-ml/polargrad/internal/matrix"
)

type checkpointedOp interface {
	ops.Operation
	ops.Checkpointer
}

func TestCheckpoint_StoreRestoreRoundTrip(t *testing.T) {
	cfg := sequentialConfig()
	tests := []struct {
		name string
		op   checkpointedOp
	}{
		{"add", ops.NewVectorAddOp(cfg)},
		{"decomposition", ops.NewVectorDecompositionOp(cfg)},
		{"row_summation", ops.NewRowSummationOp(cfg)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inputs := vectorInputs(17, 3, 4)
			out, err := tt.op.Forward(inputs...)
			require.NoError(t, err)

			want, err := tt.op.Backward(out)
			require.NoError(t, err)

			arena := checkpoint.NewArena()
			h, err := tt.op.Store(arena)
			require.NoError(t, err)

			_, err = tt.op.Backward(out)
			assert.ErrorIs(t, err, ops.ErrNoForward, "state must be released after Store")

			require.NoError(t, tt.op.Restore(arena, h))
			got, err := tt.op.Backward(out)
			require.NoError(t, err)
			require.Len(t, got, len(want))
			for k := range want {
				assert.True(t, want[k].Equal(got[k]), "gradient %d", k)
			}
		})
	}
}

func TestCheckpoint_MatMul(t *testing.T) {
	op := ops.NewMatMulOp()
	a := weightMatrix(t, [][]float64{{1, 2}})
	b := weightMatrix(t, [][]float64{{3}, {4}})
	_, err := op.Forward(a, b)
	require.NoError(t, err)

	arena := checkpoint.NewArena()
	h, err := op.Store(arena)
	require.NoError(t, err)
	require.NoError(t, op.Restore(arena, h))

	grads, err := op.Backward(ones(1, 1))
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 4}, grads[0].Row(0))
}

func TestCheckpoint_Errors(t *testing.T) {
	cfg := sequentialConfig()
	arena := checkpoint.NewArena()

	add := ops.NewVectorAddOp(cfg)
	_, err := add.Store(arena)
	assert.ErrorIs(t, err, ops.ErrNoForward)

	summation := ops.NewRowSummationOp(cfg)
	_, err = summation.Forward(vectorInputs(2, 2, 2)...)
	require.NoError(t, err)
	h, err := summation.Store(arena)
	require.NoError(t, err)

	err = add.Restore(arena, h)
	assert.ErrorIs(t, err, ops.ErrCheckpointType)

	err = add.Restore(arena, h+100)
	assert.ErrorIs(t, err, checkpoint.ErrUnknownHandle)

	arena.Reset()
	err = summation.Restore(arena, h)
	assert.ErrorIs(t, err, checkpoint.ErrUnknownHandle)
}

func TestCheckpoint_RestoreIntoFreshInstance(t *testing.T) {
	cfg := sequentialConfig()
	inputs := vectorInputs(19, 2, 3)

	first := ops.NewVectorRotationOp(cfg)
	out, err := first.Forward(inputs...)
	require.NoError(t, err)
	want, err := first.Backward(out)
	require.NoError(t, err)

	arena := checkpoint.NewArena()
	h, err := first.Store(arena)
	require.NoError(t, err)

	second := ops.NewVectorRotationOp(cfg)
	require.NoError(t, second.Restore(arena, h))
	got, err := second.Backward(out)
	require.NoError(t, err)
	for k := range want {
		assert.True(t, want[k].Equal(got[k]), "gradient %d", k)
	}

	_, err = second.Backward(matrix.New(1, 1))
	assert.ErrorIs(t, err, ops.ErrGradientShape)
}
