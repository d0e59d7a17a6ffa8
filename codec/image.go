package codec

import (
	"encoding/binary"

	"github.com/sarchlab/akita/v4/mem/mem"
)

// DefaultImageCapacity is the address space reserved for a memory image.
// The verification scenarios only touch a few KB starting at 0x1000.
const DefaultImageCapacity = 1 * mem.MB

// WordSource is a read-only view of word-addressed memory. MemoryImage
// implements it, as does anything else that can hand back packed words,
// such as the bus controller's image accessor.
type WordSource interface {
	ReadWord(addr uint32) uint32
}

// MemoryImage is a sparse store of 32-bit words at 4-byte-aligned addresses.
// Absent words read as zero. The image only grows or overwrites; it never
// shrinks. Storage is backed by an Akita memory storage, which zero-fills
// untouched pages.
type MemoryImage struct {
	storage  *mem.Storage
	capacity uint64
}

// NewMemoryImage creates an image covering capacity bytes of address space.
func NewMemoryImage(capacity uint64) *MemoryImage {
	return &MemoryImage{
		storage:  mem.NewStorage(capacity),
		capacity: capacity,
	}
}

// ReadWord returns the 32-bit word at addr. The address is aligned down to a
// word boundary. Words never written, or beyond the image capacity, read as
// zero.
func (img *MemoryImage) ReadWord(addr uint32) uint32 {
	aligned := uint64(addr) &^ 0x3
	if aligned+4 > img.capacity {
		return 0
	}
	data, err := img.storage.Read(aligned, 4)
	if err != nil {
		return 0
	}
	return binary.LittleEndian.Uint32(data)
}

// WriteWord stores a full 32-bit word at addr, aligned down to a word
// boundary.
func (img *MemoryImage) WriteWord(addr uint32, word uint32) error {
	aligned := uint64(addr) &^ 0x3
	data := make([]byte, 4)
	binary.LittleEndian.PutUint32(data, word)
	return img.storage.Write(aligned, data)
}
