// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package matrix provides the dense and polar matrices operations consume.
package matrix

import "github.com/born-ml/polargrad/internal/matrix"

// Matrix is a dense float64 matrix.
type Matrix = matrix.Matrix

// Stack is a fixed-depth sequence of equally shaped matrices.
type Stack = matrix.Stack

// Errors.
var (
	ErrDimensionMismatch = matrix.ErrDimensionMismatch
	ErrOddWidth          = matrix.ErrOddWidth
	ErrEmpty             = matrix.ErrEmpty
	ErrDepthMismatch     = matrix.ErrDepthMismatch
)

// New creates a rows×cols zero matrix.
func New(rows, cols int) *Matrix {
	return matrix.New(rows, cols)
}

// FromSlice creates a matrix from row-major data.
func FromSlice(rows, cols int, data []float64) (*Matrix, error) {
	return matrix.FromSlice(rows, cols, data)
}

// FromRows creates a matrix from equal-length rows.
func FromRows(rows [][]float64) (*Matrix, error) {
	return matrix.FromRows(rows)
}

// NewPolar creates a polar matrix from per-row magnitudes and angles.
func NewPolar(magnitudes, angles [][]float64) (*Matrix, error) {
	return matrix.NewPolar(magnitudes, angles)
}

// NewStack creates depth zero matrices of shape rows×cols.
func NewStack(depth, rows, cols int) *Stack {
	return matrix.NewStack(depth, rows, cols)
}

// StackOf builds a stack from existing matrices.
func StackOf(layers ...*Matrix) (*Stack, error) {
	return matrix.StackOf(layers...)
}
