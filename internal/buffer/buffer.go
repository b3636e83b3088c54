// Package buffer wraps a caller-owned byte slice with the data/size/shrink
// contract the SRR engine needs: a view over "whatever remains" of a buffer
// as bytes_operated advances, without ever growing or reallocating.
package buffer

// Buffer is a borrowed, externally owned byte slice. The SRR engine never
// takes ownership of the backing array; it only reads and writes through
// the slice for the duration of one operate call.
type Buffer struct {
	data []byte
}

// New wraps an existing byte slice. The caller retains ownership and must
// keep it alive and free of concurrent mutation for the life of the SRR.
func New(data []byte) *Buffer {
	return &Buffer{data: data}
}

// Data returns the full backing slice.
func (b *Buffer) Data() []byte {
	return b.data
}

// Size returns the full buffer length.
func (b *Buffer) Size() int {
	return len(b.data)
}

// Remaining returns the slice starting at offset through the end of the
// buffer, clamped so an offset at or beyond Size() yields an empty (not
// out-of-range) slice rather than panicking.
func (b *Buffer) Remaining(offset int) []byte {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(b.data) {
		return b.data[len(b.data):]
	}
	return b.data[offset:]
}

// RemainingCapacity returns Size() - offset, clamped to zero.
func (b *Buffer) RemainingCapacity(offset int) int {
	n := len(b.data) - offset
	if n < 0 {
		return 0
	}
	return n
}

// Shrink returns a Buffer viewing only the first n bytes of the backing
// slice, clamped to Size(). It shares the underlying array with the
// original Buffer.
func (b *Buffer) Shrink(n int) *Buffer {
	if n < 0 {
		n = 0
	}
	if n > len(b.data) {
		n = len(b.data)
	}
	return &Buffer{data: b.data[:n]}
}
