package ops_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/polargrad/internal/autodiff/ops"
	"github.com/born-ml/polargrad/internal/matrix"
	"github.com/born-ml/polargrad/internal/polar"
)

func TestSummationOps_Gradients(t *testing.T) {
	cfg := sequentialConfig()

	t.Run("rows", func(t *testing.T) {
		requireGradients(t, ops.NewRowSummationOp(cfg), vectorInputs(21, 3, 4))
	})

	t.Run("sections", func(t *testing.T) {
		count, sectionOf, err := ops.SpatialSections(4, 4, 2, 2)
		require.NoError(t, err)
		op, err := ops.NewSectionSummationOp(cfg, count, sectionOf)
		require.NoError(t, err)
		requireGradients(t, op, vectorInputs(22, 4, 4))
	})

	t.Run("normalized", func(t *testing.T) {
		requireGradients(t, ops.NewRowSummationOp(cfg).SetNormalize(true), vectorInputs(23, 3, 4))
	})
}

func TestRowSummationOp_MatchesAddedVectors(t *testing.T) {
	cfg := sequentialConfig()
	inputs := vectorInputs(31, 4, 5)

	added, err := ops.NewVectorAddOp(cfg).Forward(inputs...)
	require.NoError(t, err)
	out, err := ops.NewRowSummationOp(cfg).Forward(inputs...)
	require.NoError(t, err)
	require.Equal(t, 4, out.Rows())
	require.Equal(t, 2, out.Cols())

	for i := 0; i < added.Rows(); i++ {
		var sum polar.Vector
		for j := 0; j < added.Half(); j++ {
			v, _ := polar.Decode(added.Magnitude(i, j), added.Angle(i, j))
			sum = sum.Add(v)
		}
		assert.InDelta(t, sum.Norm(), out.Magnitude(i, 0), 1e-9)
		assert.InDelta(t, math.Atan2(sum.Y, sum.X), out.Angle(i, 0), 1e-9)
	}
}

func TestSectionSummationOp_SpatialSections(t *testing.T) {
	count, sectionOf, err := ops.SpatialSections(5, 3, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 6, count) // 3 blocks down, 2 across

	assert.Equal(t, 0, sectionOf(0, 0))
	assert.Equal(t, 1, sectionOf(1, 2))
	assert.Equal(t, 2, sectionOf(2, 0))
	assert.Equal(t, 5, sectionOf(4, 2))

	op, err := ops.NewSectionSummationOp(sequentialConfig(), count, sectionOf)
	require.NoError(t, err)
	out, err := op.Forward(vectorInputs(4, 5, 3)...)
	require.NoError(t, err)
	assert.Equal(t, count, out.Rows())
	assert.Equal(t, 2, out.Cols())
}

func TestSpatialSections_InvalidDimensions(t *testing.T) {
	tests := []struct {
		name                                 string
		rows, cols, sectionRows, sectionCols int
	}{
		{"zero section rows", 4, 4, 0, 2},
		{"zero section cols", 4, 4, 2, 0},
		{"negative section", 4, 4, -1, 2},
		{"empty grid", 0, 4, 2, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			count, sectionOf, err := ops.SpatialSections(tt.rows, tt.cols, tt.sectionRows, tt.sectionCols)
			assert.ErrorIs(t, err, ops.ErrInvalidSections)
			assert.Zero(t, count)
			assert.Nil(t, sectionOf)
		})
	}
}

func TestSectionSummationOp_SingleSectionEqualsTotal(t *testing.T) {
	cfg := sequentialConfig()
	inputs := vectorInputs(8, 3, 3)

	single, err := ops.NewSectionSummationOp(cfg, 1, func(int, int) int { return 0 })
	require.NoError(t, err)
	total, err := single.Forward(inputs...)
	require.NoError(t, err)

	rows, err := ops.NewRowSummationOp(cfg).Forward(inputs...)
	require.NoError(t, err)

	var sum polar.Vector
	for i := 0; i < rows.Rows(); i++ {
		v, _ := polar.Decode(rows.Magnitude(i, 0), rows.Angle(i, 0))
		sum = sum.Add(v)
	}
	assert.InDelta(t, sum.Norm(), total.Magnitude(0, 0), 1e-9)
	assert.InDelta(t, math.Atan2(sum.Y, sum.X), total.Angle(0, 0), 1e-9)
}

func TestSummationOp_Normalize(t *testing.T) {
	op := ops.NewRowSummationOp(sequentialConfig()).SetNormalize(true)
	out, err := op.Forward(vectorInputs(9, 3, 4)...)
	require.NoError(t, err)
	for i := 0; i < out.Rows(); i++ {
		assert.InDelta(t, 1, out.Magnitude(i, 0), 1e-6)
		assert.LessOrEqual(t, out.Magnitude(i, 0), 1.0)
	}
}

func TestSummationOp_CancellingTerms(t *testing.T) {
	op := ops.NewRowSummationOp(sequentialConfig())
	input := polarMatrix(t, [][]float64{{1, 1}}, [][]float64{{0, math.Pi}})
	other := polarMatrix(t, [][]float64{{0, 0}}, [][]float64{{0, 0}})
	weights := weightMatrix(t, [][]float64{{1, 1}})

	out, err := op.Forward(input, other, weights)
	require.NoError(t, err)
	assert.InDelta(t, 0, out.Magnitude(0, 0), 1e-12)
	requireFinite(t, out)

	grads, err := op.Backward(ones(1, 2))
	require.NoError(t, err)
	for _, g := range grads {
		requireFinite(t, g)
	}
}

func TestSummationOp_Errors(t *testing.T) {
	_, err := ops.NewSectionSummationOp(sequentialConfig(), 0, func(int, int) int { return 0 })
	assert.ErrorIs(t, err, ops.ErrInvalidSections)

	_, err = ops.NewSectionSummationOp(sequentialConfig(), 2, nil)
	assert.ErrorIs(t, err, ops.ErrInvalidSections)

	op, err := ops.NewSectionSummationOp(sequentialConfig(), 2, func(row, _ int) int { return row })
	require.NoError(t, err)
	_, err = op.Forward(vectorInputs(1, 3, 2)...)
	assert.ErrorIs(t, err, ops.ErrSectionIndex)

	row := ops.NewRowSummationOp(sequentialConfig())
	_, err = row.Backward(matrix.New(3, 2))
	assert.ErrorIs(t, err, ops.ErrNoForward)

	_, err = row.Forward(vectorInputs(1, 3, 2)...)
	require.NoError(t, err)
	_, err = row.Backward(matrix.New(2, 2))
	assert.ErrorIs(t, err, ops.ErrGradientShape)
}
