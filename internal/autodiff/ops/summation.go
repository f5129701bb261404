package ops

import (
	"fmt"
	"math"

	"github.com/born-ml/polargrad/internal/matrix"
	"github.com/born-ml/polargrad/internal/parallel"
	"github.com/born-ml/polargrad/internal/polar"
	"github.com/born-ml/polargrad/internal/slope"
)

// SectionFunc maps an element (row, vector index) to its section.
type SectionFunc func(row, col int) int

// SpatialSections splits a rows×cols vector grid into blocks of
// sectionRows×sectionCols and returns the number of blocks with the mapping.
// Blocks on the last row or column may be smaller. Every dimension must be
// positive.
func SpatialSections(rows, cols, sectionRows, sectionCols int) (int, SectionFunc, error) {
	if rows <= 0 || cols <= 0 || sectionRows <= 0 || sectionCols <= 0 {
		return 0, nil, fmt.Errorf("spatial sections: %dx%d grid in %dx%d blocks: %w", rows, cols, sectionRows, sectionCols, ErrInvalidSections)
	}
	down := (rows + sectionRows - 1) / sectionRows
	across := (cols + sectionCols - 1) / sectionCols
	return down * across, func(row, col int) int {
		return (row/sectionRows)*across + col/sectionCols
	}, nil
}

// CartesianSummationOp adds two polar vectors per element exactly like
// VectorAddOp, then accumulates the weighted results of every element of a
// section as one Cartesian sum and reconverts each sum to polar.
//
// Inputs: (input R×2C, other R×2C, weights R×C). Output: S×2, one polar
// vector per section.
//
// The derivative of a section sum with respect to each term's magnitude is
// estimated empirically with a one-sided perturbation during forward and
// cached; the derivative with respect to the term's angle is analytic.
type CartesianSummationOp struct {
	name      string
	cfg       Config
	sections  int // 0 means one section per row.
	sectionOf SectionFunc
	normalize bool

	retained[summationState]
}

// summationTerm is the cached record of one element's contribution.
type summationTerm struct {
	ElementDerivatives

	Magnitude float64 // Weighted term magnitude.
	Angle     float64 // Term angle.
	SlopeX    float64 // Empirical d(section x)/d(Magnitude).
	SlopeY    float64 // Empirical d(section y)/d(Magnitude).
	Section   int
}

type summationState struct {
	rows, half int
	terms      []summationTerm
	encode     []polar.Jacobian // d(output magnitude, angle)/d(section x, y)
}

// NewRowSummationOp sums every row into its own section. Output: R×2.
func NewRowSummationOp(cfg Config) *CartesianSummationOp {
	return &CartesianSummationOp{name: "row_summation", cfg: cfg}
}

// NewSectionSummationOp sums elements into sections chosen by sectionOf,
// which must return values in [0, sections).
func NewSectionSummationOp(cfg Config, sections int, sectionOf SectionFunc) (*CartesianSummationOp, error) {
	if sections <= 0 || sectionOf == nil {
		return nil, fmt.Errorf("section_summation: %d sections: %w", sections, ErrInvalidSections)
	}
	return &CartesianSummationOp{
		name:      "section_summation",
		cfg:       cfg,
		sections:  sections,
		sectionOf: sectionOf,
	}, nil
}

// SetNormalize makes forward divide every section sum by its own magnitude
// before reconversion, so output magnitudes are |s|/(|s|+eps).
func (op *CartesianSummationOp) SetNormalize(on bool) *CartesianSummationOp {
	op.normalize = on
	return op
}

// Name returns the operation name.
func (op *CartesianSummationOp) Name() string {
	return op.name
}

// Forward computes one polar vector per section.
func (op *CartesianSummationOp) Forward(inputs ...*matrix.Matrix) (*matrix.Matrix, error) {
	if err := checkInputs(op.name, inputs, 3); err != nil {
		return nil, err
	}
	input, other, weights := inputs[0], inputs[1], inputs[2]
	if err := validateVectorInputs(op.name, input, other, weights); err != nil {
		return nil, err
	}

	rows, half := input.Rows(), input.Half()
	sections, sectionOf := op.sections, op.sectionOf
	if sections == 0 {
		sections = rows
		sectionOf = func(row, _ int) int { return row }
	}

	state := &summationState{
		rows:   rows,
		half:   half,
		terms:  make([]summationTerm, rows*half),
		encode: make([]polar.Jacobian, sections),
	}

	// Terms.
	parallel.For(rows, func(i int) {
		for j := 0; j < half; j++ {
			v, decIn := polar.Decode(input.Magnitude(i, j), input.Angle(i, j))
			o, decOther := polar.Decode(other.Magnitude(i, j), other.Angle(i, j))
			magnitude, angle, d := addVectors(v, o, weights.At(i, j)).encode(decIn, decOther, op.cfg.Epsilon)

			term := &state.terms[i*half+j]
			term.ElementDerivatives = d
			term.Magnitude = magnitude
			term.Angle = angle
		}
	}, op.cfg.Parallel)

	// Section sums, accumulated in row-major order so the result does not
	// depend on scheduling.
	sums := make([]polar.Vector, sections)
	for i := 0; i < rows; i++ {
		for j := 0; j < half; j++ {
			term := &state.terms[i*half+j]
			s := sectionOf(i, j)
			if s < 0 || s >= sections {
				return nil, fmt.Errorf("%s: element (%d,%d) mapped to section %d of %d: %w", op.name, i, j, s, sections, ErrSectionIndex)
			}
			term.Section = s
			contribution, _ := polar.Decode(term.Magnitude, term.Angle)
			sums[s] = sums[s].Add(contribution)
		}
	}

	// Empirical slopes: perturb one term's magnitude, hold every other term.
	parallel.For(rows, func(i int) {
		for j := 0; j < half; j++ {
			term := &state.terms[i*half+j]
			sum := sums[term.Section]
			own, _ := polar.Decode(term.Magnitude, term.Angle)
			rest := sum.Sub(own)
			term.SlopeX, term.SlopeY = slope.Estimate2(term.Magnitude, op.cfg.SlopeEpsilon, func(m float64) (float64, float64) {
				perturbed, _ := polar.Decode(m, term.Angle)
				total := rest.Add(perturbed)
				return total.X, total.Y
			})
		}
	}, op.cfg.Parallel)

	out := matrix.New(sections, 2)
	for s, sum := range sums {
		magnitude, angle, enc := polar.Encode(sum, op.cfg.Epsilon)
		if op.normalize {
			den := magnitude + op.cfg.Epsilon
			factor := op.cfg.Epsilon / (den * den)
			enc[0][0] *= factor
			enc[0][1] *= factor
			magnitude /= den
		}
		out.SetPolar(s, 0, magnitude, angle)
		state.encode[s] = enc
	}

	op.keep(state)
	return out, nil
}

// Backward returns gradients for (input, other, weights).
func (op *CartesianSummationOp) Backward(outputGrad *matrix.Matrix) ([]*matrix.Matrix, error) {
	state, err := op.current(op.name)
	if err != nil {
		return nil, err
	}
	sections := len(state.encode)
	if err := checkGradient(op.name, outputGrad, sections, 2); err != nil {
		return nil, err
	}

	// dL/d(section x, y).
	sectionGrads := make([]polar.Vector, sections)
	for s, enc := range state.encode {
		gm, ga := outputGrad.Magnitude(s, 0), outputGrad.Angle(s, 0)
		sectionGrads[s] = polar.Vector{
			X: gm*enc[0][0] + ga*enc[1][0],
			Y: gm*enc[0][1] + ga*enc[1][1],
		}
	}

	rows, half := state.rows, state.half
	gradInput := matrix.New(rows, 2*half)
	gradOther := matrix.New(rows, 2*half)
	gradWeights := matrix.New(rows, half)

	parallel.For(rows, func(i int) {
		gw := gradWeights.Row(i)
		for j := 0; j < half; j++ {
			term := &state.terms[i*half+j]
			g := sectionGrads[term.Section]
			sin, cos := math.Sincos(term.Angle)

			gm := g.X*term.SlopeX + g.Y*term.SlopeY
			ga := g.X*(-term.Magnitude*sin) + g.Y*(term.Magnitude*cos)

			p := term.backprop(gm, ga)
			gradInput.AccumulatePolar(i, j, p.InputMagnitude, p.InputAngle)
			gradOther.AccumulatePolar(i, j, p.OtherMagnitude, p.OtherAngle)
			gw[j] += p.Weight
		}
	}, op.cfg.Parallel)

	return []*matrix.Matrix{gradInput, gradOther, gradWeights}, nil
}
