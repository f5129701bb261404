// Package tile splits matrices into a grid of sub-matrices and reassembles them.
//
// Tile boundaries along an axis of length n split into T tiles are n*t/T for
// t in [0, T], so tiles differ in size by at most one element and every
// element belongs to exactly one tile. Split and Assemble are exact inverses
// for the same grid.
package tile

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/polargrad/internal/matrix"
)

// Common errors.
var (
	ErrTileCount = errors.New("invalid tile count")
	ErrTileShape = errors.New("tiles do not form a grid")
)

// Layout tells how the columns of a matrix are partitioned.
type Layout int

const (
	// Plain matrices are split on their full column range.
	Plain Layout = iota
	// Polar matrices are split on vector indices; each tile keeps the
	// magnitude and angle columns of its vectors paired.
	Polar
)

// String returns the layout name.
func (l Layout) String() string {
	switch l {
	case Plain:
		return "plain"
	case Polar:
		return "polar"
	default:
		return fmt.Sprintf("layout(%d)", int(l))
	}
}

// Grid is the number of tiles along each axis.
type Grid struct {
	Rows int
	Cols int
}

// DefaultGrid returns an 8×8 grid.
func DefaultGrid() Grid {
	return Grid{Rows: 8, Cols: 8}
}

// Count returns the number of tiles.
func (g Grid) Count() int {
	return g.Rows * g.Cols
}

// Validate checks the grid can split a rows×cols extent.
func (g Grid) Validate(rows, cols int) error {
	if g.Rows <= 0 || g.Cols <= 0 {
		return fmt.Errorf("grid %dx%d: %w", g.Rows, g.Cols, ErrTileCount)
	}
	if g.Rows > rows || g.Cols > cols {
		return fmt.Errorf("grid %dx%d over %dx%d: %w", g.Rows, g.Cols, rows, cols, ErrTileCount)
	}
	return nil
}

// Bounds returns the tiles+1 boundaries of an axis of length n.
func Bounds(n, tiles int) []int {
	b := make([]int, tiles+1)
	for t := 0; t <= tiles; t++ {
		b[t] = n * t / tiles
	}
	return b
}

// Split partitions m into g.Rows×g.Cols tiles. Tiles are copies.
func Split(m *matrix.Matrix, g Grid) ([][]*matrix.Matrix, error) {
	rows, cols := m.Dims()
	if err := g.Validate(rows, cols); err != nil {
		return nil, err
	}
	rb, cb := Bounds(rows, g.Rows), Bounds(cols, g.Cols)

	tiles := make([][]*matrix.Matrix, g.Rows)
	for r := range tiles {
		tiles[r] = make([]*matrix.Matrix, g.Cols)
		for c := range tiles[r] {
			view := m.Dense().Slice(rb[r], rb[r+1], cb[c], cb[c+1])
			tiles[r][c] = matrix.FromDense(mat.DenseCopyOf(view))
		}
	}
	return tiles, nil
}

// Assemble is the inverse of Split.
func Assemble(tiles [][]*matrix.Matrix) (*matrix.Matrix, error) {
	rowSizes, colSizes, err := gridSizes(tiles, func(m *matrix.Matrix) int { return m.Cols() })
	if err != nil {
		return nil, err
	}
	out := matrix.New(sum(rowSizes), sum(colSizes))
	r0 := 0
	for r, row := range tiles {
		c0 := 0
		for c, t := range row {
			dst := out.Dense().Slice(r0, r0+rowSizes[r], c0, c0+colSizes[c]).(*mat.Dense)
			dst.Copy(t.Dense())
			c0 += colSizes[c]
		}
		r0 += rowSizes[r]
	}
	return out, nil
}

// SplitPolar partitions a polar matrix by rows and vector index.
func SplitPolar(m *matrix.Matrix, g Grid) ([][]*matrix.Matrix, error) {
	if err := matrix.ValidatePolar(m); err != nil {
		return nil, err
	}
	rows, half := m.Rows(), m.Half()
	if err := g.Validate(rows, half); err != nil {
		return nil, err
	}
	rb, cb := Bounds(rows, g.Rows), Bounds(half, g.Cols)

	tiles := make([][]*matrix.Matrix, g.Rows)
	for r := range tiles {
		tiles[r] = make([]*matrix.Matrix, g.Cols)
		for c := range tiles[r] {
			t := matrix.New(rb[r+1]-rb[r], 2*(cb[c+1]-cb[c]))
			for i := rb[r]; i < rb[r+1]; i++ {
				for j := cb[c]; j < cb[c+1]; j++ {
					t.SetPolar(i-rb[r], j-cb[c], m.Magnitude(i, j), m.Angle(i, j))
				}
			}
			tiles[r][c] = t
		}
	}
	return tiles, nil
}

// AssemblePolar is the inverse of SplitPolar.
func AssemblePolar(tiles [][]*matrix.Matrix) (*matrix.Matrix, error) {
	rowSizes, colSizes, err := gridSizes(tiles, func(m *matrix.Matrix) int { return m.Half() })
	if err != nil {
		return nil, err
	}
	for _, row := range tiles {
		for _, t := range row {
			if err := matrix.ValidatePolar(t); err != nil {
				return nil, err
			}
		}
	}
	out := matrix.New(sum(rowSizes), 2*sum(colSizes))
	r0 := 0
	for r, row := range tiles {
		c0 := 0
		for c, t := range row {
			for i := 0; i < rowSizes[r]; i++ {
				for j := 0; j < colSizes[c]; j++ {
					out.SetPolar(r0+i, c0+j, t.Magnitude(i, j), t.Angle(i, j))
				}
			}
			c0 += colSizes[c]
		}
		r0 += rowSizes[r]
	}
	return out, nil
}

// SplitAs splits m according to layout.
func SplitAs(m *matrix.Matrix, g Grid, layout Layout) ([][]*matrix.Matrix, error) {
	if layout == Polar {
		return SplitPolar(m, g)
	}
	return Split(m, g)
}

// AssembleAs assembles tiles according to layout.
func AssembleAs(tiles [][]*matrix.Matrix, layout Layout) (*matrix.Matrix, error) {
	if layout == Polar {
		return AssemblePolar(tiles)
	}
	return Assemble(tiles)
}

// gridSizes checks every tile row shares a height and every tile column a width.
func gridSizes(tiles [][]*matrix.Matrix, width func(*matrix.Matrix) int) ([]int, []int, error) {
	if len(tiles) == 0 || len(tiles[0]) == 0 {
		return nil, nil, fmt.Errorf("no tiles: %w", ErrTileShape)
	}
	rowSizes := make([]int, len(tiles))
	colSizes := make([]int, len(tiles[0]))
	for c, t := range tiles[0] {
		colSizes[c] = width(t)
	}
	for r, row := range tiles {
		if len(row) != len(colSizes) {
			return nil, nil, fmt.Errorf("tile row %d has %d tiles, want %d: %w", r, len(row), len(colSizes), ErrTileShape)
		}
		rowSizes[r] = row[0].Rows()
		for c, t := range row {
			if t.Rows() != rowSizes[r] || width(t) != colSizes[c] {
				return nil, nil, fmt.Errorf("tile (%d,%d): %w", r, c, ErrTileShape)
			}
		}
	}
	return rowSizes, colSizes, nil
}

func sum(xs []int) int {
	total := 0
	for _, x := range xs {
		total += x
	}
	return total
}
