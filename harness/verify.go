package harness

import (
	"fmt"
	"math"

	"github.com/sarchlab/urvsim/codec"
)

// Tolerance bounds the allowed deviation between a decoded result and the
// reference multiply. An element passes when it is within Abs of the
// reference, or within Rel of its magnitude.
type Tolerance struct {
	Rel float64
	Abs float64
}

// DefaultTolerance is the slack applied to parallel and stress checks.
// The datapath itself is exact integer arithmetic; the slack exists so a
// timing-dependent partial accumulation cannot fail a whole parallel run,
// not to relax the matrix math.
func DefaultTolerance() Tolerance {
	return Tolerance{Rel: 0.1, Abs: 10}
}

// MatMulRef computes the reference product of two 8-bit matrices with
// 16-bit accumulation, independently of the accelerator. Overflow wraps in
// two's complement, matching the unit datapath.
func MatMulRef(a, b *codec.Matrix) (*codec.Matrix, error) {
	if a == nil || b == nil || a.Cols() != b.Rows() {
		return nil, fmt.Errorf("%w: reference multiply", codec.ErrInvalidShape)
	}
	c := codec.MustMatrix(a.Rows(), b.Cols(), 16)
	for i := 0; i < a.Rows(); i++ {
		for j := 0; j < b.Cols(); j++ {
			var acc int16
			for k := 0; k < a.Cols(); k++ {
				acc += int16(a.At(i, k)) * int16(b.At(k, j))
			}
			if err := c.Set(i, j, int32(acc)); err != nil {
				return nil, err
			}
		}
	}
	return c, nil
}

// decodeResult reads a unit's result matrix back through the codec.
func (h *Harness) decodeResult(unit int, rows, cols int) (*codec.Matrix, error) {
	u, ok := h.units[unit]
	if !ok {
		return nil, fmt.Errorf("%w: unit %d not configured", codec.ErrOutOfRange, unit)
	}
	return codec.Unpack(h.mem, u.AddrC, rows, cols)
}

// VerifyExact decodes a completed unit's result and compares it to expected
// element-for-element. Used for single-operation correctness checks.
func (h *Harness) VerifyExact(unit int, expected *codec.Matrix) error {
	got, err := h.decodeResult(unit, expected.Rows(), expected.Cols())
	if err != nil {
		return err
	}
	if !got.Equal(expected) {
		return fmt.Errorf("%w: unit %d\nexpected:\n%sgot:\n%s",
			ErrResultMismatch, unit, expected, got)
	}
	return nil
}

// VerifyTolerance decodes a completed unit's result and compares it to
// expected under the harness tolerance. Used for parallel and stress
// checks.
func (h *Harness) VerifyTolerance(unit int, expected *codec.Matrix) error {
	got, err := h.decodeResult(unit, expected.Rows(), expected.Cols())
	if err != nil {
		return err
	}
	for r := 0; r < expected.Rows(); r++ {
		for c := 0; c < expected.Cols(); c++ {
			want := float64(expected.At(r, c))
			have := float64(got.At(r, c))
			diff := math.Abs(have - want)
			if diff <= h.tol.Abs || diff <= h.tol.Rel*math.Abs(want) {
				continue
			}
			return fmt.Errorf(
				"%w: unit %d at (%d,%d): got %d, want %d (rel %.2f, abs %.0f)",
				ErrResultMismatch, unit, r, c,
				got.At(r, c), expected.At(r, c), h.tol.Rel, h.tol.Abs)
		}
	}
	return nil
}
