// Package arcslice provides a read-only view over owned byte storage that can
// be partitioned into non-overlapping chunks and shared between goroutines
// without copying. The runtime keeps the backing array alive for as long as
// any view exists; all sub-ranging operations are O(1).
package arcslice

import (
	"bytes"

	"github.com/wayland-transpositor/wprs/cmn/debug"
)

// Slice is an immutable view over byte storage. The zero value is an empty
// slice. Views are safe to share across goroutines because the storage is
// never written through a Slice.
type Slice struct {
	b []byte
}

// New adopts an existing byte container without copying it. The caller must
// not mutate b afterwards.
func New(b []byte) Slice { return Slice{b: b} }

func (s Slice) Len() int      { return len(s.b) }
func (s Slice) IsEmpty() bool { return len(s.b) == 0 }

// Bytes returns the underlying view. Callers must treat it as read-only.
func (s Slice) Bytes() []byte { return s.b }

// Index returns the sub-view [start, end). Panics if the range is out of
// bounds.
func (s Slice) Index(start, end int) Slice {
	debug.Assertf(start <= end && end <= len(s.b), "index [%d, %d) out of range [0, %d)", start, end, len(s.b))
	return Slice{b: s.b[start:end:end]}
}

// SplitAt returns two non-overlapping sub-views covering s. Panics if
// mid > Len().
func (s Slice) SplitAt(mid int) (Slice, Slice) {
	return s.Index(0, mid), s.Index(mid, len(s.b))
}

// Equal reports content equality.
func (s Slice) Equal(other Slice) bool { return bytes.Equal(s.b, other.b) }

// Compare orders slices by content, like bytes.Compare.
func (s Slice) Compare(other Slice) int { return bytes.Compare(s.b, other.b) }

// Chunks returns a lazy sequence of views each of length <= size; the last
// chunk may be short. Panics if size == 0.
func (s Slice) Chunks(size int) *Chunks {
	debug.Assert(size > 0, "chunk size must be non-zero")
	return &Chunks{rest: s, size: size}
}

// ChunksExact returns a lazy sequence of views of exactly length size, plus
// the remainder view. Panics if size == 0.
func (s Slice) ChunksExact(size int) (*Chunks, Slice) {
	debug.Assert(size > 0, "chunk size must be non-zero")
	rem := len(s.b) % size
	fst, snd := s.SplitAt(len(s.b) - rem)
	return &Chunks{rest: fst, size: size}, snd
}

// NChunks returns ceil(n/size), the number of chunks Chunks will yield for a
// slice of length n.
func NChunks(n, size int) int {
	debug.Assert(size > 0, "chunk size must be non-zero")
	return (n + size - 1) / size
}

// Chunks iterates over consecutive sub-views of a Slice.
type Chunks struct {
	rest Slice
	size int
}

// Next returns the next chunk, or ok == false when the sequence is exhausted.
func (c *Chunks) Next() (chunk Slice, ok bool) {
	if c.rest.IsEmpty() {
		return Slice{}, false
	}
	n := c.size
	if c.rest.Len() < n {
		n = c.rest.Len()
	}
	chunk, c.rest = c.rest.SplitAt(n)
	return chunk, true
}

// Remaining returns the number of chunks left.
func (c *Chunks) Remaining() int { return NChunks(c.rest.Len(), c.size) }
