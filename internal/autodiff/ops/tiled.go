package ops

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/born-ml/polargrad/internal/matrix"
	"github.com/born-ml/polargrad/internal/parallel"
	"github.com/born-ml/polargrad/internal/tile"
)

// TiledOp splits its inputs into a grid of tiles, runs one operation instance
// per tile in parallel and reassembles the tile outputs.
//
// This is only equivalent to running the wrapped operation on the full
// matrices when every output element depends on the same tile position of the
// inputs, which holds for VectorAddOp, VectorMultiplyOp and VectorRotationOp.
// Forward fails with tile.ErrTileShape when a tile output does not cover the
// rows and vectors of its input tile.
type TiledOp struct {
	cfg     Config
	grid    tile.Grid
	factory func() Operation
	inputs  []tile.Layout
	output  tile.Layout
	group
}

// NewTiledOp creates a TiledOp. inputs gives the layout of each forward
// input, output the layout of the wrapped operation's output.
func NewTiledOp(cfg Config, grid tile.Grid, factory func() Operation, output tile.Layout, inputs ...tile.Layout) *TiledOp {
	return &TiledOp{cfg: cfg, grid: grid, factory: factory, inputs: inputs, output: output}
}

// NewTiledVectorOp wraps a (input, other, weights) vector operation.
func NewTiledVectorOp(cfg Config, grid tile.Grid, factory func() Operation) *TiledOp {
	return NewTiledOp(cfg, grid, factory, tile.Polar, tile.Polar, tile.Polar, tile.Plain)
}

// Name returns the operation name.
func (op *TiledOp) Name() string {
	return "tiled"
}

// Forward runs the wrapped operation on every tile.
func (op *TiledOp) Forward(inputs ...*matrix.Matrix) (*matrix.Matrix, error) {
	if err := checkInputs("tiled", inputs, len(op.inputs)); err != nil {
		return nil, err
	}

	parts := make([][][]*matrix.Matrix, len(inputs))
	for k, in := range inputs {
		p, err := tile.SplitAs(in, op.grid, op.inputs[k])
		if err != nil {
			return nil, fmt.Errorf("tiled: input %d: %w", k, err)
		}
		parts[k] = p
	}

	log.Debug().Int("rows", op.grid.Rows).Int("cols", op.grid.Cols).Msg("tiled forward")

	members := make([]Operation, op.grid.Count())
	outputs := newTileGrid(op.grid)
	errs := make([]error, op.grid.Count())
	parallel.ForGrid(op.grid.Rows, op.grid.Cols, func(r, c int) {
		t := r*op.grid.Cols + c
		args := make([]*matrix.Matrix, len(parts))
		for k := range parts {
			args[k] = parts[k][r][c]
		}
		member := op.factory()
		out, err := member.Forward(args...)
		if err == nil {
			err = op.checkTileOutput(out, args[0])
		}
		if err != nil {
			errs[t] = fmt.Errorf("tiled: tile (%d,%d): %w", r, c, err)
			return
		}
		members[t], outputs[r][c] = member, out
	}, op.cfg.Parallel)
	if err := firstError(errs); err != nil {
		return nil, err
	}

	out, err := tile.AssembleAs(outputs, op.output)
	if err != nil {
		return nil, fmt.Errorf("tiled: output: %w", err)
	}
	op.members = members
	return out, nil
}

// Backward splits the output gradient the same way and reassembles the
// per-tile input gradients.
func (op *TiledOp) Backward(outputGrad *matrix.Matrix) ([]*matrix.Matrix, error) {
	if op.members == nil {
		return nil, fmt.Errorf("tiled: %w", ErrNoForward)
	}
	if outputGrad == nil {
		return nil, fmt.Errorf("tiled: nil output gradient: %w", ErrGradientShape)
	}
	gradTiles, err := tile.SplitAs(outputGrad, op.grid, op.output)
	if err != nil {
		return nil, fmt.Errorf("tiled: output gradient: %w", err)
	}

	grads := make([][][]*matrix.Matrix, len(op.inputs))
	for k := range grads {
		grads[k] = newTileGrid(op.grid)
	}
	errs := make([]error, op.grid.Count())
	parallel.ForGrid(op.grid.Rows, op.grid.Cols, func(r, c int) {
		t := r*op.grid.Cols + c
		g, err := op.members[t].Backward(gradTiles[r][c])
		if err != nil {
			errs[t] = fmt.Errorf("tiled: tile (%d,%d): %w", r, c, err)
			return
		}
		for k := range grads {
			grads[k][r][c] = g[k]
		}
	}, op.cfg.Parallel)
	if err := firstError(errs); err != nil {
		return nil, err
	}

	result := make([]*matrix.Matrix, len(op.inputs))
	for k, layout := range op.inputs {
		m, err := tile.AssembleAs(grads[k], layout)
		if err != nil {
			return nil, fmt.Errorf("tiled: gradient %d: %w", k, err)
		}
		result[k] = m
	}
	return result, nil
}

// checkTileOutput rejects a tile output that does not cover the same rows and
// vectors as the tile's first input. Operations that widen or reduce their
// output cannot be reassembled from tiles.
func (op *TiledOp) checkTileOutput(out, first *matrix.Matrix) error {
	if out.Rows() != first.Rows() || vectors(out, op.output) != vectors(first, op.inputs[0]) {
		return fmt.Errorf("output %dx%d for input tile %dx%d: %w", out.Rows(), out.Cols(), first.Rows(), first.Cols(), tile.ErrTileShape)
	}
	return nil
}

// vectors returns the number of column units of m under layout.
func vectors(m *matrix.Matrix, layout tile.Layout) int {
	if layout == tile.Polar {
		return m.Half()
	}
	return m.Cols()
}

// firstError returns the first non-nil error in row-major tile order.
func firstError(errs []error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func newTileGrid(g tile.Grid) [][]*matrix.Matrix {
	out := make([][]*matrix.Matrix, g.Rows)
	for r := range out {
		out[r] = make([]*matrix.Matrix, g.Cols)
	}
	return out
}
