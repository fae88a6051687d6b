// Package filter converts interleaved BGRA pixel buffers to per-channel byte
// planes and applies delta filtering per plane. Screenshot-class content is
// highly correlated between consecutive pixels within a channel; splitting
// planes and taking byte deltas flattens the value histogram and compresses
// substantially better at the same zstd level.
package filter

import "github.com/wayland-transpositor/wprs/cmn/debug"

const bytesPerPixel = 4

// Planes holds four equal-length byte planes, one per BGRA channel, laid out
// back to back in one contiguous backing buffer.
type Planes struct {
	backing    []byte
	B, G, R, A []byte
}

// NewPlanes allocates planes for an interleaved buffer of totalSize bytes.
// totalSize must be a multiple of four.
func NewPlanes(totalSize int) *Planes {
	p := &Planes{}
	p.Resize(totalSize)
	return p
}

// PlaneLen returns the per-plane length.
func (p *Planes) PlaneLen() int { return len(p.B) }

// TotalSize returns the interleaved buffer size the planes correspond to.
func (p *Planes) TotalSize() int { return len(p.B) * bytesPerPixel }

// Resize adjusts the planes to match an interleaved buffer of totalSize
// bytes, reusing the backing storage when it is large enough.
func (p *Planes) Resize(totalSize int) {
	debug.Assertf(totalSize%bytesPerPixel == 0, "buffer size %d not a multiple of %d", totalSize, bytesPerPixel)
	if cap(p.backing) < totalSize {
		p.backing = make([]byte, totalSize)
	}
	p.backing = p.backing[:totalSize]
	n := totalSize / bytesPerPixel
	p.B = p.backing[:n:n]
	p.G = p.backing[n : 2*n : 2*n]
	p.R = p.backing[2*n : 3*n : 3*n]
	p.A = p.backing[3*n : 4*n : 4*n]
}

// Concat returns the planes laid out back to back (B, G, R, A) as one
// contiguous buffer, without copying.
func (p *Planes) Concat() []byte { return p.backing }

// PlanesFromConcat adopts a contiguous back-to-back plane buffer as a Planes
// view without copying. len(b) must be a multiple of four.
func PlanesFromConcat(b []byte) *Planes {
	debug.Assertf(len(b)%bytesPerPixel == 0, "buffer size %d not a multiple of %d", len(b), bytesPerPixel)
	n := len(b) / bytesPerPixel
	return &Planes{
		backing: b,
		B:       b[:n:n],
		G:       b[n : 2*n : 2*n],
		R:       b[2*n : 3*n : 3*n],
		A:       b[3*n : 4*n : 4*n],
	}
}
