// Package prefixsum implements in-place wrapping u8 prefix sums and their
// inverse (byte delta encoding), based on
// https://en.algorithmica.org/hpc/algorithms/prefix/.
//
// The wide path processes eight byte lanes per machine word (SWAR): each word
// gets its in-word prefix sum, then the running carry from the previous word.
// Input reaches the wide path in blocks of DefaultBlockSize bytes; the tail
// shorter than one block takes the scalar loop. Small block sizes cause pipeline stalls and large sizes cause cache misses;
// 2048 performs well based on benchmarks.
package prefixsum

import (
	"encoding/binary"

	"github.com/wayland-transpositor/wprs/cmn/debug"
)

const (
	lanes = 8

	// DefaultBlockSize is the wide-path block size used by PrefixSum.
	DefaultBlockSize = 2048

	loSeven = 0x7f7f7f7f7f7f7f7f
	hiBit   = 0x8080808080808080
	ones    = 0x0101010101010101
)

// addBytes adds x and y lane-wise with 8-bit wrap-around, no carry leaking
// between lanes.
func addBytes(x, y uint64) uint64 {
	return ((x & loSeven) + (y & loSeven)) ^ ((x ^ y) & hiBit)
}

// subBytes subtracts y from x lane-wise with 8-bit wrap-around.
func subBytes(x, y uint64) uint64 {
	return ((x | hiBit) - (y & loSeven)) ^ ((x ^ ^y) & hiBit)
}

// prefix8 computes the in-word prefix sum of eight byte lanes.
func prefix8(x uint64) uint64 {
	x = addBytes(x, x<<8)
	x = addBytes(x, x<<16)
	x = addBytes(x, x<<32)
	return x
}

func scalar(a []byte, priorSum byte) {
	if len(a) == 0 {
		return
	}
	a[0] += priorSum
	for i := 1; i < len(a); i++ {
		a[i] += a[i-1]
	}
}

func wide(a []byte, priorSum byte) byte {
	carry := priorSum
	for len(a) >= lanes {
		x := prefix8(binary.LittleEndian.Uint64(a))
		x = addBytes(x, uint64(carry)*ones)
		binary.LittleEndian.PutUint64(a, x)
		carry = a[lanes-1]
		a = a[lanes:]
	}
	return carry
}

// PrefixSumBS computes the prefix sum of a in place, processing bs bytes at a
// time on the wide path and falling back to the scalar loop for the tail.
// Panics if bs is zero or not a multiple of 8.
func PrefixSumBS(a []byte, bs int) {
	debug.Assert(bs > 0 && bs%lanes == 0, "block size must be a non-zero multiple of", lanes)
	lim := (len(a) / bs) * bs

	var priorSum byte
	for off := 0; off < lim; off += bs {
		priorSum = wide(a[off:off+bs], priorSum)
	}
	scalar(a[lim:], priorSum)
}

// PrefixSum computes a[i] += a[i-1] for all i >= 1 in place, with 8-bit
// wrap-around. It is the inverse of Delta.
func PrefixSum(a []byte) { PrefixSumBS(a, DefaultBlockSize) }

// prefixSumScalar is the reference implementation, kept for tests and
// benchmarks.
func prefixSumScalar(a []byte) { scalar(a, 0) }

// Delta replaces a[i] with a[i] - a[i-1] in place (a[-1] is zero), with 8-bit
// wrap-around. PrefixSum(Delta(a)) restores a.
func Delta(a []byte) {
	var prev uint64
	for len(a) >= lanes {
		x := binary.LittleEndian.Uint64(a)
		binary.LittleEndian.PutUint64(a, subBytes(x, x<<8|prev))
		prev = x >> 56
		a = a[lanes:]
	}
	p := byte(prev)
	for i := range a {
		cur := a[i]
		a[i] = cur - p
		p = cur
	}
}
