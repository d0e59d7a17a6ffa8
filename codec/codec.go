package codec

import "fmt"

// Pack writes an 8-bit matrix into img starting at base, four elements per
// 32-bit word in row-major order. Element k of a word occupies bits
// [8k+7 : 8k]. Each element is merged into its target byte with a mask, so
// the other three bytes of a previously written word are preserved.
func Pack(img *MemoryImage, m *Matrix, base uint32) error {
	if m == nil || m.rows <= 0 || m.cols <= 0 {
		return fmt.Errorf("%w: pack", ErrInvalidShape)
	}
	if m.elemBits != 8 {
		return fmt.Errorf("%w: pack requires 8-bit elements, got %d",
			ErrUnsupportedWidth, m.elemBits)
	}

	flat := m.rows * m.cols
	for i := 0; i < flat; i++ {
		addr := base + uint32(i/4)*4
		byteIdx := uint(i % 4)

		word := img.ReadWord(addr)
		word &^= 0xFF << (byteIdx * 8)
		word |= (uint32(m.data[i]) & 0xFF) << (byteIdx * 8)
		if err := img.WriteWord(addr, word); err != nil {
			return fmt.Errorf("codec: pack word at 0x%08x: %w", addr, err)
		}
	}
	return nil
}

// Unpack reads a 16-bit matrix from src starting at base, two elements per
// 32-bit word. The top bit of each 16-bit field is sign extended, so values
// decode as two's-complement int16. Words absent from the source decode as
// zero; the only failure mode is a non-positive shape.
func Unpack(src WordSource, base uint32, rows, cols int) (*Matrix, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("%w: unpack %dx%d", ErrOutOfRange, rows, cols)
	}

	m := MustMatrix(rows, cols, 16)
	flat := rows * cols
	for i := 0; i < flat; i++ {
		addr := base + uint32(i/2)*4
		elemIdx := uint(i % 2)

		word := src.ReadWord(addr)
		field := (word >> (elemIdx * 16)) & 0xFFFF
		m.data[i] = int32(int16(field))
	}
	return m, nil
}
