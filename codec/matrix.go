// Package codec converts small signed-integer matrices to and from the flat
// word-addressed memory layout used by the UnifiedRISCV GPU units.
//
// Operand matrices use 8-bit elements packed four per 32-bit word; result
// matrices use 16-bit elements packed two per word. Both layouts are
// little-endian within the word and row-major across words.
package codec

import (
	"fmt"
	"math/rand"
	"strings"
)

// Matrix is a rows x cols grid of fixed-width signed integers. The shape and
// element width are immutable after creation; element values are checked
// against the signed range of the declared width.
type Matrix struct {
	rows, cols int
	elemBits   int
	data       []int32
}

// NewMatrix creates a zero matrix with the given shape and element width.
// Supported widths are 8 (operands) and 16 (results).
func NewMatrix(rows, cols, elemBits int) (*Matrix, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidShape, rows, cols)
	}
	if elemBits != 8 && elemBits != 16 {
		return nil, fmt.Errorf("%w: %d bits", ErrUnsupportedWidth, elemBits)
	}
	return &Matrix{
		rows:     rows,
		cols:     cols,
		elemBits: elemBits,
		data:     make([]int32, rows*cols),
	}, nil
}

// MustMatrix is NewMatrix for statically known-good shapes.
func MustMatrix(rows, cols, elemBits int) *Matrix {
	m, err := NewMatrix(rows, cols, elemBits)
	if err != nil {
		panic(err)
	}
	return m
}

// Identity returns the n x n identity matrix with 8-bit elements.
func Identity(n int) *Matrix {
	m := MustMatrix(n, n, 8)
	for i := 0; i < n; i++ {
		m.data[i*n+i] = 1
	}
	return m
}

// Random returns a rows x cols matrix of uniformly random int8 values drawn
// from rng.
func Random(rows, cols int, rng *rand.Rand) *Matrix {
	m := MustMatrix(rows, cols, 8)
	for i := range m.data {
		m.data[i] = int32(int8(rng.Intn(256) - 128))
	}
	return m
}

// Rows returns the number of rows.
func (m *Matrix) Rows() int { return m.rows }

// Cols returns the number of columns.
func (m *Matrix) Cols() int { return m.cols }

// ElemBits returns the declared element width in bits.
func (m *Matrix) ElemBits() int { return m.elemBits }

// At returns the element at row r, column c.
func (m *Matrix) At(r, c int) int32 {
	return m.data[r*m.cols+c]
}

// Set stores v at row r, column c. The value must fit the declared signed
// element width.
func (m *Matrix) Set(r, c int, v int32) error {
	limit := int32(1) << (m.elemBits - 1)
	if v < -limit || v >= limit {
		return fmt.Errorf("%w: %d does not fit int%d", ErrOutOfRange, v, m.elemBits)
	}
	m.data[r*m.cols+c] = v
	return nil
}

// Equal reports whether two matrices have the same shape and elements.
// Element widths are not compared, so an 8-bit matrix can equal its 16-bit
// widening.
func (m *Matrix) Equal(o *Matrix) bool {
	if o == nil || m.rows != o.rows || m.cols != o.cols {
		return false
	}
	for i := range m.data {
		if m.data[i] != o.data[i] {
			return false
		}
	}
	return true
}

// WidenTo16 returns a 16-bit copy of the matrix with identical values.
func (m *Matrix) WidenTo16() *Matrix {
	w := MustMatrix(m.rows, m.cols, 16)
	copy(w.data, m.data)
	return w
}

// String renders the matrix one row per line, for test and log output.
func (m *Matrix) String() string {
	var sb strings.Builder
	for r := 0; r < m.rows; r++ {
		for c := 0; c < m.cols; c++ {
			if c > 0 {
				sb.WriteByte(' ')
			}
			fmt.Fprintf(&sb, "%6d", m.At(r, c))
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
