// Package matrix provides the dense 2-D and stacked 3-D buffers operations work on.
//
// A Matrix used by a vector operation stores polar vectors: the first half of
// its columns holds magnitudes and the second half holds the angles (radians)
// of the same vector index. Plain matrices (weights, products) use the full
// width as ordinary values.
package matrix

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Matrix is a fixed-shape row-major buffer of float64 values.
type Matrix struct {
	dense *mat.Dense
}

// New creates a zero-filled rows×cols matrix.
// It panics if either dimension is not positive, like mat.NewDense.
func New(rows, cols int) *Matrix {
	return &Matrix{dense: mat.NewDense(rows, cols, nil)}
}

// FromSlice creates a rows×cols matrix backed by a copy of data (row-major).
func FromSlice(rows, cols int, data []float64) (*Matrix, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("matrix: invalid shape %dx%d: %w", rows, cols, ErrEmpty)
	}
	if len(data) != rows*cols {
		return nil, fmt.Errorf("matrix: %d values for shape %dx%d: %w", len(data), rows, cols, ErrDimensionMismatch)
	}
	buf := make([]float64, len(data))
	copy(buf, data)
	return &Matrix{dense: mat.NewDense(rows, cols, buf)}, nil
}

// FromRows creates a matrix from a slice of equally sized rows.
func FromRows(rows [][]float64) (*Matrix, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("matrix: no rows: %w", ErrEmpty)
	}
	cols := len(rows[0])
	m := New(len(rows), cols)
	for i, row := range rows {
		if len(row) != cols {
			return nil, fmt.Errorf("matrix: row %d has %d values, want %d: %w", i, len(row), cols, ErrDimensionMismatch)
		}
		m.dense.SetRow(i, row)
	}
	return m, nil
}

// FromDense wraps an existing gonum matrix without copying.
func FromDense(d *mat.Dense) *Matrix {
	return &Matrix{dense: d}
}

// Dense exposes the gonum backing store.
func (m *Matrix) Dense() *mat.Dense {
	return m.dense
}

// Rows returns the number of rows.
func (m *Matrix) Rows() int {
	r, _ := m.dense.Dims()
	return r
}

// Cols returns the number of columns.
func (m *Matrix) Cols() int {
	_, c := m.dense.Dims()
	return c
}

// Dims returns rows and columns.
func (m *Matrix) Dims() (int, int) {
	return m.dense.Dims()
}

// Half returns the number of polar vectors per row (Cols/2).
func (m *Matrix) Half() int {
	return m.Cols() / 2
}

// At returns the value at (i, j).
func (m *Matrix) At(i, j int) float64 {
	return m.dense.At(i, j)
}

// Set stores v at (i, j).
func (m *Matrix) Set(i, j int, v float64) {
	m.dense.Set(i, j, v)
}

// Accumulate adds v to the value at (i, j).
func (m *Matrix) Accumulate(i, j int, v float64) {
	row := m.dense.RawRowView(i)
	row[j] += v
}

// Row returns the backing slice of row i. Writes go straight to the matrix.
func (m *Matrix) Row(i int) []float64 {
	return m.dense.RawRowView(i)
}

// Clone returns a deep copy.
func (m *Matrix) Clone() *Matrix {
	return &Matrix{dense: mat.DenseCopyOf(m.dense)}
}

// Zeros returns a zero matrix with the same shape as m.
func (m *Matrix) Zeros() *Matrix {
	r, c := m.dense.Dims()
	return New(r, c)
}

// AddInPlace adds other into m element-wise.
func (m *Matrix) AddInPlace(other *Matrix) error {
	if err := SameShape(m, other); err != nil {
		return err
	}
	m.dense.Add(m.dense, other.dense)
	return nil
}

// Equal reports whether both matrices have the same shape and identical values.
func (m *Matrix) Equal(other *Matrix) bool {
	return mat.Equal(m.dense, other.dense)
}

// EqualApprox reports whether both matrices match within tol.
func (m *Matrix) EqualApprox(other *Matrix, tol float64) bool {
	return mat.EqualApprox(m.dense, other.dense, tol)
}

// String formats the matrix for debugging.
func (m *Matrix) String() string {
	return fmt.Sprintf("%v", mat.Formatted(m.dense, mat.Squeeze()))
}
