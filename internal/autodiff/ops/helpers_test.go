package ops_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/born-ml/polargrad/internal/autodiff/ops"
	"github.com/born-ml/polargrad/internal/gradcheck"
	"github.com/born-ml/polargrad/internal/matrix"
	"github.com/born-ml/polargrad/internal/parallel"
)

// gradTolerance bounds the scaled error between analytic and numeric gradients.
const gradTolerance = 1e-4

func sequentialConfig() ops.Config {
	cfg := ops.DefaultConfig()
	cfg.Parallel = parallel.Sequential()
	return cfg
}

func parallelConfig(workers int) ops.Config {
	cfg := ops.DefaultConfig()
	cfg.Parallel = parallel.Config{Enabled: true, NumWorkers: workers, MinChunkSize: 1}
	return cfg
}

// vectorInputs returns (input, other, weights) with rows×vectors polar vectors.
func vectorInputs(seed int64, rows, vectors int) []*matrix.Matrix {
	rng := rand.New(rand.NewSource(seed))
	return []*matrix.Matrix{
		gradcheck.RandomPolar(rng, rows, vectors),
		gradcheck.RandomPolar(rng, rows, vectors),
		gradcheck.RandomWeights(rng, rows, vectors),
	}
}

// pivotInputs returns (input, pivot_0 … pivot_P-1, weights).
func pivotInputs(seed int64, rows, vectors, pivots int) []*matrix.Matrix {
	rng := rand.New(rand.NewSource(seed))
	inputs := []*matrix.Matrix{gradcheck.RandomPolar(rng, rows, vectors)}
	for i := 0; i < pivots; i++ {
		inputs = append(inputs, gradcheck.RandomPolar(rng, rows, vectors))
	}
	return append(inputs, gradcheck.RandomWeights(rng, rows, vectors))
}

func polarMatrix(t *testing.T, mags, angles [][]float64) *matrix.Matrix {
	t.Helper()
	m, err := matrix.NewPolar(mags, angles)
	require.NoError(t, err)
	return m
}

func weightMatrix(t *testing.T, rows [][]float64) *matrix.Matrix {
	t.Helper()
	m, err := matrix.FromRows(rows)
	require.NoError(t, err)
	return m
}

func ones(rows, cols int) *matrix.Matrix {
	m := matrix.New(rows, cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			m.Set(i, j, 1)
		}
	}
	return m
}

func requireFinite(t *testing.T, m *matrix.Matrix) {
	t.Helper()
	for i := 0; i < m.Rows(); i++ {
		for j := 0; j < m.Cols(); j++ {
			v := m.At(i, j)
			require.False(t, math.IsNaN(v) || math.IsInf(v, 0), "non-finite value %v at (%d,%d)", v, i, j)
		}
	}
}

func requireGradients(t *testing.T, op ops.Operation, inputs []*matrix.Matrix) {
	t.Helper()
	report, err := gradcheck.Check(op, inputs, gradcheck.Options{Seed: 7})
	require.NoError(t, err)
	for _, res := range report.Inputs {
		require.Less(t, res.Error, gradTolerance,
			"input %d at (%d,%d): analytic %v numeric %v", res.Input, res.Row, res.Col, res.Analytic, res.Numeric)
	}
}
