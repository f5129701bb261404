package main

import (
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/born-ml/polargrad/internal/autodiff/ops"
	"github.com/born-ml/polargrad/internal/config"
	"github.com/born-ml/polargrad/internal/gradcheck"
	"github.com/born-ml/polargrad/internal/matrix"
	"github.com/born-ml/polargrad/internal/metrics"
	"github.com/born-ml/polargrad/internal/tile"
)

var errGradientMismatch = errors.New("gradient mismatch")

type gradcheckOptions struct {
	config     string
	rows       int
	cols       int
	seed       int64
	tolerance  float64
	metricsOut string
}

func parseGradcheck(args []string) (gradcheckOptions, error) {
	var opts gradcheckOptions
	fs := flag.NewFlagSet("gradcheck", flag.ContinueOnError)
	fs.StringVar(&opts.config, "config", "", "YAML configuration file")
	fs.IntVar(&opts.rows, "rows", 4, "Rows of the random inputs")
	fs.IntVar(&opts.cols, "cols", 4, "Polar vectors per row")
	fs.Int64Var(&opts.seed, "seed", 1, "Random seed")
	fs.Float64Var(&opts.tolerance, "tolerance", 1e-4, "Largest accepted scaled error")
	fs.StringVar(&opts.metricsOut, "metrics-out", "", "Write Prometheus metrics to this file")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if opts.rows < 1 || opts.cols < 1 {
		return opts, fmt.Errorf("rows and cols must be positive, got %dx%d", opts.rows, opts.cols)
	}
	return opts, nil
}

// checkCase is one operation under test with its inputs.
type checkCase struct {
	name   string
	op     ops.Operation
	inputs []*matrix.Matrix
}

func runGradcheck(args []string) error {
	opts, err := parseGradcheck(args)
	if err != nil {
		return err
	}

	cfg := config.Default()
	if opts.config != "" {
		if cfg, err = config.Load(opts.config); err != nil {
			return err
		}
	}
	level, err := cfg.Level()
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(level)

	var recorder *metrics.Recorder
	reg := prometheus.NewRegistry()
	if cfg.Metrics.Enabled || opts.metricsOut != "" {
		if recorder, err = metrics.NewRecorder(reg); err != nil {
			return err
		}
	}

	run := uuid.New().String()
	logger := log.With().Str("run", run).Logger()

	cases, err := checkCases(cfg, opts)
	if err != nil {
		return err
	}

	failed := 0
	for _, c := range cases {
		op := &instrumented{Operation: c.op, name: c.name, recorder: recorder}
		report, err := gradcheck.Check(op, c.inputs, gradcheck.Options{Seed: opts.seed})
		if err != nil {
			return fmt.Errorf("%s: %w", c.name, err)
		}

		worst := report.MaxError()
		ok := worst < opts.tolerance
		event := logger.Info()
		if !ok {
			failed++
			event = logger.Error()
		}
		event.Str("op", c.name).
			Int("checked", report.Checked).
			Float64("max_error", worst).
			Bool("ok", ok).
			Msg("gradcheck")
	}

	if opts.metricsOut != "" {
		if err := prometheus.WriteToTextfile(opts.metricsOut, reg); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d operations: %w", failed, len(cases), errGradientMismatch)
	}
	logger.Info().Int("operations", len(cases)).Msg("all gradients match")
	return nil
}

func checkCases(cfg config.Config, opts gradcheckOptions) ([]checkCase, error) {
	oc := cfg.Ops()
	rng := rand.New(rand.NewSource(opts.seed))
	vector := func() []*matrix.Matrix {
		return []*matrix.Matrix{
			gradcheck.RandomPolar(rng, opts.rows, opts.cols),
			gradcheck.RandomPolar(rng, opts.rows, opts.cols),
			gradcheck.RandomWeights(rng, opts.rows, opts.cols),
		}
	}

	// input, MaxPivots pivots, weights
	pivoted := func() []*matrix.Matrix {
		in := []*matrix.Matrix{gradcheck.RandomPolar(rng, opts.rows, opts.cols)}
		for i := 0; i < ops.MaxPivots; i++ {
			in = append(in, gradcheck.RandomPolar(rng, opts.rows, opts.cols))
		}
		return append(in, gradcheck.RandomWeights(rng, opts.rows, opts.cols))
	}

	count, sectionOf, err := ops.SpatialSections(opts.rows, opts.cols, 2, 2)
	if err != nil {
		return nil, err
	}
	sections, err := ops.NewSectionSummationOp(oc, count, sectionOf)
	if err != nil {
		return nil, err
	}
	pivots, err := ops.NewVectorPivotDecompositionOp(oc, ops.MaxPivots)
	if err != nil {
		return nil, err
	}

	grid := cfg.Grid()
	grid = tile.Grid{Rows: min(grid.Rows, opts.rows), Cols: min(grid.Cols, opts.cols)}

	return []checkCase{
		{"vector_add", ops.NewVectorAddOp(oc), vector()},
		{"vector_multiply", ops.NewVectorMultiplyOp(oc), vector()},
		{"vector_rotation", ops.NewVectorRotationOp(oc), vector()},
		{"vector_decomposition", ops.NewVectorDecompositionOp(oc), vector()},
		{"vector_pivot_decomposition", pivots, pivoted()},
		{"row_summation", ops.NewRowSummationOp(oc), vector()},
		{"row_summation_normalized", ops.NewRowSummationOp(oc).SetNormalize(true), vector()},
		{"section_summation", sections, vector()},
		{"tiled_vector_add", ops.NewTiledVectorOp(oc, grid, func() ops.Operation { return ops.NewVectorAddOp(oc) }), vector()},
		{"matmul", ops.NewMatMulOp(), []*matrix.Matrix{
			gradcheck.Uniform(rng, opts.rows, opts.cols, -1, 1),
			gradcheck.Uniform(rng, opts.cols, opts.rows, -1, 1),
		}},
	}, nil
}

// instrumented reports every call of the wrapped operation to a recorder.
type instrumented struct {
	ops.Operation
	name     string
	recorder *metrics.Recorder
}

func (op *instrumented) Forward(inputs ...*matrix.Matrix) (*matrix.Matrix, error) {
	defer op.recorder.Since(op.name, metrics.Forward, time.Now())
	return op.Operation.Forward(inputs...)
}

func (op *instrumented) Backward(outputGrad *matrix.Matrix) ([]*matrix.Matrix, error) {
	defer op.recorder.Since(op.name, metrics.Backward, time.Now())
	return op.Operation.Backward(outputGrad)
}
