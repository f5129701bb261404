// Package gradcheck compares an operation's analytic gradients with centered
// finite differences of a scalar loss built from its output.
//
// The loss is L = Σ G ⊙ Forward(inputs) for a fixed random G, so dL/d(output)
// is exactly G and Backward(G) must match (L(x+h) - L(x-h)) / 2h for every
// input element.
package gradcheck

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/polargrad/internal/autodiff/ops"
	"github.com/born-ml/polargrad/internal/matrix"
)

// DefaultStep is the finite-difference step.
const DefaultStep = 1e-5

// Result describes the worst mismatch found for one input.
type Result struct {
	Input    int
	Row, Col int
	Analytic float64
	Numeric  float64
	Error    float64 // |analytic - numeric| / max(1, |analytic|, |numeric|)
}

// Report is the outcome of Check.
type Report struct {
	Inputs  []Result // Worst element per input.
	Checked int      // Number of input elements checked.
}

// MaxError returns the largest error over every input.
func (r Report) MaxError() float64 {
	worst := 0.0
	for _, res := range r.Inputs {
		worst = math.Max(worst, res.Error)
	}
	return worst
}

// Options configures Check.
type Options struct {
	Step float64 // Finite-difference step; DefaultStep when zero.
	Seed int64   // Seed of the upstream gradient G.
}

// Check runs the comparison for op. The inputs are cloned and never modified.
func Check(op ops.Operation, inputs []*matrix.Matrix, opts Options) (Report, error) {
	step := opts.Step
	if step == 0 {
		step = DefaultStep
	}

	args := make([]*matrix.Matrix, len(inputs))
	for k, in := range inputs {
		args[k] = in.Clone()
	}

	out, err := op.Forward(args...)
	if err != nil {
		return Report{}, fmt.Errorf("gradcheck: forward: %w", err)
	}
	upstream := Uniform(rand.New(rand.NewSource(opts.Seed)), out.Rows(), out.Cols(), -1, 1)

	analytic, err := op.Backward(upstream)
	if err != nil {
		return Report{}, fmt.Errorf("gradcheck: backward: %w", err)
	}
	if len(analytic) != len(args) {
		return Report{}, fmt.Errorf("gradcheck: %d gradients for %d inputs: %w", len(analytic), len(args), ops.ErrInputCount)
	}

	loss := func() (float64, error) {
		y, err := op.Forward(args...)
		if err != nil {
			return 0, err
		}
		total := 0.0
		for i := 0; i < y.Rows(); i++ {
			total += floats.Dot(upstream.Row(i), y.Row(i))
		}
		return total, nil
	}

	report := Report{Inputs: make([]Result, len(args))}
	for k, x := range args {
		if err := matrix.SameShape(x, analytic[k]); err != nil {
			return Report{}, fmt.Errorf("gradcheck: gradient %d: %w", k, err)
		}
		worst := Result{Input: k}
		for i := 0; i < x.Rows(); i++ {
			for j := 0; j < x.Cols(); j++ {
				orig := x.At(i, j)

				x.Set(i, j, orig+step)
				plus, err := loss()
				if err != nil {
					return Report{}, err
				}
				x.Set(i, j, orig-step)
				minus, err := loss()
				if err != nil {
					return Report{}, err
				}
				x.Set(i, j, orig)

				numeric := (plus - minus) / (2 * step)
				a := analytic[k].At(i, j)
				e := math.Abs(a-numeric) / math.Max(1, math.Max(math.Abs(a), math.Abs(numeric)))
				if e >= worst.Error {
					worst = Result{Input: k, Row: i, Col: j, Analytic: a, Numeric: numeric, Error: e}
				}
				report.Checked++
			}
		}
		report.Inputs[k] = worst
	}
	return report, nil
}

// Uniform returns a rows×cols matrix of values drawn uniformly from [lo, hi).
func Uniform(rng *rand.Rand, rows, cols int, lo, hi float64) *matrix.Matrix {
	m := matrix.New(rows, cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			m.Set(i, j, lo+(hi-lo)*rng.Float64())
		}
	}
	return m
}

// RandomPolar returns a well-conditioned polar matrix: magnitudes in
// [0.5, 2) and angles spread over (-π, π).
func RandomPolar(rng *rand.Rand, rows, vectors int) *matrix.Matrix {
	m := matrix.New(rows, 2*vectors)
	for i := 0; i < rows; i++ {
		for j := 0; j < vectors; j++ {
			m.SetPolar(i, j, 0.5+1.5*rng.Float64(), math.Pi*(2*rng.Float64()-1))
		}
	}
	return m
}

// RandomWeights returns weights of magnitude [0.5, 1.5) with random sign, so
// no weight sits on the sign switch of the selecting operations.
func RandomWeights(rng *rand.Rand, rows, vectors int) *matrix.Matrix {
	m := matrix.New(rows, vectors)
	for i := 0; i < rows; i++ {
		for j := 0; j < vectors; j++ {
			w := 0.5 + rng.Float64()
			if rng.Intn(2) == 0 {
				w = -w
			}
			m.Set(i, j, w)
		}
	}
	return m
}
