// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package autodiff provides reverse-mode differentiation over polar-vector
// operations.
//
// A polar matrix stores C vectors per row: magnitudes in columns [0, C) and
// angles in [C, 2C). Operations decode each vector to Cartesian, combine,
// re-encode and cache the local derivatives for the backward pass.
//
// Example:
//
//	import (
//	    "github.com/born-ml/polargrad/autodiff"
//	    "github.com/born-ml/polargrad/matrix"
//	)
//
//	func main() {
//	    cfg := autodiff.DefaultConfig()
//	    tape := autodiff.NewTape()
//	    tape.StartRecording()
//
//	    h, _ := tape.Forward(autodiff.NewVectorAddOp(cfg), x, y, w)
//	    out, _ := tape.Forward(autodiff.NewRowSummationOp(cfg), h, y, w)
//
//	    grads, _ := tape.Backward(out, outputGrad)
//	    _ = grads[x]
//	}
package autodiff

import (
	"github.com/born-ml/polargrad/internal/autodiff"
	"github.com/born-ml/polargrad/internal/autodiff/ops"
	"github.com/born-ml/polargrad/internal/checkpoint"
	"github.com/born-ml/polargrad/internal/tile"
)

// Operation is a differentiable operation.
type Operation = ops.Operation

// Checkpointer is implemented by operations whose forward state can be stored.
type Checkpointer = ops.Checkpointer

// Config holds the settings an operation captures at construction.
type Config = ops.Config

// DefaultConfig returns the default operation settings.
func DefaultConfig() Config {
	return ops.DefaultConfig()
}

// Errors.
var (
	ErrNoForward       = ops.ErrNoForward
	ErrInputCount      = ops.ErrInputCount
	ErrSectionIndex    = ops.ErrSectionIndex
	ErrCheckpointType  = ops.ErrCheckpointType
	ErrGradientShape   = ops.ErrGradientShape
	ErrInvalidSections = ops.ErrInvalidSections
	ErrPivotCount      = ops.ErrPivotCount
	ErrUnknownHandle   = checkpoint.ErrUnknownHandle
	ErrTileCount       = tile.ErrTileCount
)

// Tape records operations for automatic differentiation.
type Tape = autodiff.Tape

// NewTape creates a new tape.
func NewTape() *Tape {
	return autodiff.NewTape()
}

// Arena stores checkpointed forward state for one training step.
type Arena = checkpoint.Arena

// Handle identifies a checkpoint in an Arena.
type Handle = checkpoint.Handle

// NewArena creates an empty arena.
func NewArena() *Arena {
	return checkpoint.NewArena()
}

// Grid is the tile grid of a TiledOp.
type Grid = tile.Grid

// Operation types.
type (
	VectorAddOp                = ops.VectorAddOp
	VectorMultiplyOp           = ops.VectorMultiplyOp
	VectorRotationOp           = ops.VectorRotationOp
	VectorDecompositionOp      = ops.VectorDecompositionOp
	VectorPivotDecompositionOp = ops.VectorPivotDecompositionOp
	CartesianSummationOp       = ops.CartesianSummationOp
	MatMulOp                   = ops.MatMulOp
	StackedOp                  = ops.StackedOp
	TiledOp                    = ops.TiledOp
	SectionFunc                = ops.SectionFunc
)

// NewVectorAddOp creates an operation computing (v + o) with magnitude scaled by w.
func NewVectorAddOp(cfg Config) *VectorAddOp {
	return ops.NewVectorAddOp(cfg)
}

// NewVectorMultiplyOp creates the weight-selected delta operation.
func NewVectorMultiplyOp(cfg Config) *VectorMultiplyOp {
	return ops.NewVectorMultiplyOp(cfg)
}

// NewVectorRotationOp creates an operation rotating v about a pivot.
func NewVectorRotationOp(cfg Config) *VectorRotationOp {
	return ops.NewVectorRotationOp(cfg)
}

// NewVectorDecompositionOp creates the projection/rejection/delta operation.
func NewVectorDecompositionOp(cfg Config) *VectorDecompositionOp {
	return ops.NewVectorDecompositionOp(cfg)
}

// NewVectorPivotDecompositionOp creates an operation projecting v onto up to
// four pivots, with the weighted residual as the last slot.
func NewVectorPivotDecompositionOp(cfg Config, pivots int) (*VectorPivotDecompositionOp, error) {
	return ops.NewVectorPivotDecompositionOp(cfg, pivots)
}

// NewRowSummationOp creates a summation with one section per row.
func NewRowSummationOp(cfg Config) *CartesianSummationOp {
	return ops.NewRowSummationOp(cfg)
}

// NewSectionSummationOp creates a summation over caller-defined sections.
func NewSectionSummationOp(cfg Config, sections int, sectionOf SectionFunc) (*CartesianSummationOp, error) {
	return ops.NewSectionSummationOp(cfg, sections, sectionOf)
}

// SpatialSections splits a rows×cols vector grid into rectangular sections.
func SpatialSections(rows, cols, sectionRows, sectionCols int) (int, SectionFunc, error) {
	return ops.SpatialSections(rows, cols, sectionRows, sectionCols)
}

// NewMatMulOp creates a matrix multiplication.
func NewMatMulOp() *MatMulOp {
	return ops.NewMatMulOp()
}

// NewStackedOp applies one operation per stack layer.
func NewStackedOp(cfg Config, factory func() Operation) *StackedOp {
	return ops.NewStackedOp(cfg, factory)
}

// NewTiledVectorOp runs a vector operation per tile of a grid.
func NewTiledVectorOp(cfg Config, grid Grid, factory func() Operation) *TiledOp {
	return ops.NewTiledVectorOp(cfg, grid, factory)
}
