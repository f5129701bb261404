package ops

import (
	"github.com/born-ml/polargrad/internal/matrix"
	"github.com/born-ml/polargrad/internal/parallel"
	"github.com/born-ml/polargrad/internal/polar"
)

// vectorOp is the shared implementation of the element-wise polar operations.
//
// Inputs are (input R×2C, other R×2C, weights R×C). Each element pair (i, j)
// produces one result per slot; the output is R×2SC with the magnitude of
// slot s at column s*C+j and its angle at column S*C+s*C+j. With one slot this
// is the ordinary polar layout.
type vectorOp struct {
	name  string
	cfg   Config
	slots []combiner

	retained[vectorState]
}

// vectorState is the forward state backward consumes.
type vectorState struct {
	rows, half int
	cache      []ElementDerivatives // rows × half × slots
}

func (s *vectorState) at(i, j, slot, slots int) *ElementDerivatives {
	return &s.cache[(i*s.half+j)*slots+slot]
}

// Name returns the operation name.
func (op *vectorOp) Name() string {
	return op.name
}

// Forward computes the slot results for every element pair.
func (op *vectorOp) Forward(inputs ...*matrix.Matrix) (*matrix.Matrix, error) {
	if err := checkInputs(op.name, inputs, 3); err != nil {
		return nil, err
	}
	input, other, weights := inputs[0], inputs[1], inputs[2]
	if err := validateVectorInputs(op.name, input, other, weights); err != nil {
		return nil, err
	}

	rows, half := input.Rows(), input.Half()
	slots := len(op.slots)
	state := &vectorState{
		rows:  rows,
		half:  half,
		cache: make([]ElementDerivatives, rows*half*slots),
	}
	out := matrix.New(rows, 2*slots*half)
	angleBase := slots * half

	parallel.For(rows, func(i int) {
		row := out.Row(i)
		for j := 0; j < half; j++ {
			v, decIn := polar.Decode(input.Magnitude(i, j), input.Angle(i, j))
			o, decOther := polar.Decode(other.Magnitude(i, j), other.Angle(i, j))
			w := weights.At(i, j)

			for s, combine := range op.slots {
				magnitude, angle, d := combine(v, o, w).encode(decIn, decOther, op.cfg.Epsilon)
				row[s*half+j] = magnitude
				row[angleBase+s*half+j] = angle
				*state.at(i, j, s, slots) = d
			}
		}
	}, op.cfg.Parallel)

	op.keep(state)
	return out, nil
}

// Backward returns gradients for (input, other, weights).
func (op *vectorOp) Backward(outputGrad *matrix.Matrix) ([]*matrix.Matrix, error) {
	state, err := op.current(op.name)
	if err != nil {
		return nil, err
	}
	slots := len(op.slots)
	rows, half := state.rows, state.half
	if err := checkGradient(op.name, outputGrad, rows, 2*slots*half); err != nil {
		return nil, err
	}

	gradInput := matrix.New(rows, 2*half)
	gradOther := matrix.New(rows, 2*half)
	gradWeights := matrix.New(rows, half)
	angleBase := slots * half

	parallel.For(rows, func(i int) {
		g := outputGrad.Row(i)
		gw := gradWeights.Row(i)
		for j := 0; j < half; j++ {
			for s := 0; s < slots; s++ {
				p := state.at(i, j, s, slots).backprop(g[s*half+j], g[angleBase+s*half+j])
				gradInput.AccumulatePolar(i, j, p.InputMagnitude, p.InputAngle)
				gradOther.AccumulatePolar(i, j, p.OtherMagnitude, p.OtherAngle)
				gw[j] += p.Weight
			}
		}
	}, op.cfg.Parallel)

	return []*matrix.Matrix{gradInput, gradOther, gradWeights}, nil
}

// VectorAddOp adds two polar vectors in Cartesian space and scales the
// resulting magnitude by the weight.
//
// Inputs: (input R×2C, other R×2C, weights R×C). Output: R×2C.
type VectorAddOp struct {
	vectorOp
}

// NewVectorAddOp creates a VectorAddOp.
func NewVectorAddOp(cfg Config) *VectorAddOp {
	return &VectorAddOp{vectorOp{name: "vector_add", cfg: cfg, slots: []combiner{addVectors}}}
}

// VectorMultiplyOp multiplies the weight-selected delta between two polar
// vectors by the squared weight. A positive weight selects other - input, any
// other weight selects input - other.
//
// Inputs: (input R×2C, other R×2C, weights R×C). Output: R×2C.
type VectorMultiplyOp struct {
	vectorOp
}

// NewVectorMultiplyOp creates a VectorMultiplyOp.
func NewVectorMultiplyOp(cfg Config) *VectorMultiplyOp {
	return &VectorMultiplyOp{vectorOp{name: "vector_multiply", cfg: cfg, slots: []combiner{selectDelta}}}
}

// VectorRotationOp rotates each input vector about its pivot by the weight
// (radians): r = pivot + Rot(w)·(input - pivot).
//
// Inputs: (input R×2C, pivot R×2C, weights R×C). Output: R×2C.
type VectorRotationOp struct {
	vectorOp
}

// NewVectorRotationOp creates a VectorRotationOp.
func NewVectorRotationOp(cfg Config) *VectorRotationOp {
	return &VectorRotationOp{vectorOp{name: "vector_rotation", cfg: cfg, slots: []combiner{rotateAbout}}}
}

// DecompositionSlots is the output width multiple of VectorDecompositionOp
// in vectors; the column multiple is twice this.
const DecompositionSlots = 3

// VectorDecompositionOp decomposes each input vector against a pivot into
// three candidate results:
//   - slot 0: projection of the input onto the pivot
//   - slot 1: rejection, input minus projection
//   - slot 2: weight-selected delta (w > 0 ? pivot - input : input - pivot) scaled by w²
//
// Inputs: (input R×2C, pivot R×2C, weights R×C). Output: R×6C.
type VectorDecompositionOp struct {
	vectorOp
}

// NewVectorDecompositionOp creates a VectorDecompositionOp.
func NewVectorDecompositionOp(cfg Config) *VectorDecompositionOp {
	slots := [DecompositionSlots]combiner{projectOnto(cfg.Epsilon), rejectFrom(cfg.Epsilon), selectDelta}
	return &VectorDecompositionOp{vectorOp{name: "vector_decomposition", cfg: cfg, slots: slots[:]}}
}
