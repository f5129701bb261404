package main

import (
	"errors"
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/polargrad/internal/autodiff/ops"
	"github.com/born-ml/polargrad/internal/config"
)

func TestParseGradcheck(t *testing.T) {
	opts, err := parseGradcheck([]string{"-rows", "3", "-cols", "5", "-seed", "9", "-tolerance", "1e-3"})
	require.NoError(t, err)
	assert.Equal(t, 3, opts.rows)
	assert.Equal(t, 5, opts.cols)
	assert.Equal(t, int64(9), opts.seed)
	assert.Equal(t, 1e-3, opts.tolerance)

	_, err = parseGradcheck([]string{"-rows", "0"})
	assert.Error(t, err)

	_, err = parseGradcheck([]string{"-h"})
	assert.True(t, errors.Is(err, flag.ErrHelp))
}

func TestCheckCases(t *testing.T) {
	opts, err := parseGradcheck([]string{"-rows", "3", "-cols", "2"})
	require.NoError(t, err)

	cases, err := checkCases(config.Default(), opts)
	require.NoError(t, err)
	assert.Len(t, cases, 10)
	for _, c := range cases {
		assert.NotEmpty(t, c.inputs, c.name)
		if c.name == "vector_pivot_decomposition" {
			assert.Len(t, c.inputs, ops.MaxPivots+2)
		}
	}
}

func TestRunGradcheck(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "polargrad.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("parallel:\n  enabled: false\nlog:\n  level: warn\n"), 0o600))
	metricsPath := filepath.Join(dir, "metrics.prom")

	err := runGradcheck([]string{"-config", cfgPath, "-rows", "3", "-cols", "3", "-metrics-out", metricsPath})
	require.NoError(t, err)

	data, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "polargrad_op_calls_total")
	assert.Contains(t, string(data), `op="vector_decomposition"`)
}

func TestRunGradcheck_Tolerance(t *testing.T) {
	err := runGradcheck([]string{"-rows", "2", "-cols", "2", "-tolerance", "0"})
	assert.ErrorIs(t, err, errGradientMismatch)
}

func TestRunGradcheck_BadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tiles:\n  rows: -1\n"), 0o600))

	err := runGradcheck([]string{"-config", path})
	assert.ErrorIs(t, err, config.ErrInvalid)
}
