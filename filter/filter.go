package filter

import (
	"github.com/wayland-transpositor/wprs/cmn/debug"
	"github.com/wayland-transpositor/wprs/prefixsum"
)

// Filter deinterleaves an interleaved BGRA buffer into p's four planes and
// delta-filters each plane independently. len(src) must be a multiple of
// four; p is resized to match. Row padding bytes, when the source stride
// exceeds width*4, are expected to be part of src — the unfilter side strides
// back out using the same buffer metadata.
func Filter(src []byte, p *Planes) {
	debug.Assertf(len(src)%bytesPerPixel == 0, "source size %d not a multiple of %d", len(src), bytesPerPixel)
	p.Resize(len(src))

	b, g, r, a := p.B, p.G, p.R, p.A
	for i, j := 0, 0; i < len(src); i, j = i+bytesPerPixel, j+1 {
		b[j] = src[i]
		g[j] = src[i+1]
		r[j] = src[i+2]
		a[j] = src[i+3]
	}

	prefixsum.Delta(b)
	prefixsum.Delta(g)
	prefixsum.Delta(r)
	prefixsum.Delta(a)
}

// Unfilter reverses Filter: it prefix-sums each plane in place and
// re-interleaves the planes into dst. len(dst) must equal p.TotalSize().
func Unfilter(p *Planes, dst []byte) {
	debug.Assertf(len(dst) == p.TotalSize(), "destination size %d != %d", len(dst), p.TotalSize())

	b, g, r, a := p.B, p.G, p.R, p.A
	prefixsum.PrefixSum(b)
	prefixsum.PrefixSum(g)
	prefixsum.PrefixSum(r)
	prefixsum.PrefixSum(a)

	for i, j := 0, 0; i < len(dst); i, j = i+bytesPerPixel, j+1 {
		dst[i] = b[j]
		dst[i+1] = g[j]
		dst[i+2] = r[j]
		dst[i+3] = a[j]
	}
}
