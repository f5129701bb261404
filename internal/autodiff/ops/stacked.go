package ops

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/born-ml/polargrad/internal/matrix"
	"github.com/born-ml/polargrad/internal/parallel"
)

// StackedOp applies one operation instance per layer of stacked inputs, e.g.
// the same step over every time step of a sequence. Layers run in parallel.
type StackedOp struct {
	cfg     Config
	factory func() Operation
	group
}

// NewStackedOp creates a StackedOp. factory builds a fresh operation per layer.
func NewStackedOp(cfg Config, factory func() Operation) *StackedOp {
	return &StackedOp{cfg: cfg, factory: factory}
}

// Name returns the operation name.
func (op *StackedOp) Name() string {
	return "stacked"
}

// Forward runs the layer operations. Every input must have the same depth.
func (op *StackedOp) Forward(inputs ...*matrix.Stack) (*matrix.Stack, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("stacked: no inputs: %w", ErrInputCount)
	}
	for k, in := range inputs {
		if in == nil {
			return nil, fmt.Errorf("stacked: input %d: %w", k, matrix.ErrEmpty)
		}
	}
	depth := inputs[0].Depth()
	for k, in := range inputs {
		if in.Depth() != depth {
			return nil, fmt.Errorf("stacked: input %d has depth %d, want %d: %w", k, in.Depth(), depth, matrix.ErrDepthMismatch)
		}
	}

	log.Debug().Int("depth", depth).Int("inputs", len(inputs)).Msg("stacked forward")

	members := make([]Operation, depth)
	outputs := make([]*matrix.Matrix, depth)
	err := parallel.ForErr(depth, func(d int) error {
		args := make([]*matrix.Matrix, len(inputs))
		for k, in := range inputs {
			args[k] = in.At(d)
		}
		layer := op.factory()
		out, err := layer.Forward(args...)
		if err != nil {
			return fmt.Errorf("stacked: layer %d: %w", d, err)
		}
		members[d], outputs[d] = layer, out
		return nil
	}, op.cfg.Parallel)
	if err != nil {
		return nil, err
	}

	op.members = members
	return matrix.StackOf(outputs...)
}

// Backward returns one gradient stack per forward input.
func (op *StackedOp) Backward(outputGrad *matrix.Stack) ([]*matrix.Stack, error) {
	if op.members == nil {
		return nil, fmt.Errorf("stacked: %w", ErrNoForward)
	}
	if outputGrad == nil {
		return nil, fmt.Errorf("stacked: nil output gradient: %w", ErrGradientShape)
	}
	depth := len(op.members)
	if outputGrad.Depth() != depth {
		return nil, fmt.Errorf("stacked: gradient depth %d, want %d: %w", outputGrad.Depth(), depth, matrix.ErrDepthMismatch)
	}

	grads := make([][]*matrix.Matrix, depth)
	err := parallel.ForErr(depth, func(d int) error {
		g, err := op.members[d].Backward(outputGrad.At(d))
		if err != nil {
			return fmt.Errorf("stacked: layer %d: %w", d, err)
		}
		grads[d] = g
		return nil
	}, op.cfg.Parallel)
	if err != nil {
		return nil, err
	}

	result := make([]*matrix.Stack, len(grads[0]))
	for k := range result {
		layers := make([]*matrix.Matrix, depth)
		for d := range layers {
			layers[d] = grads[d][k]
		}
		s, err := matrix.StackOf(layers...)
		if err != nil {
			return nil, fmt.Errorf("stacked: gradient %d: %w", k, err)
		}
		result[k] = s
	}
	return result, nil
}
