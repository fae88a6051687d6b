// Package shard turns one contiguous byte buffer into N independently
// compressed zstd streams, and back, under a bounded worker pool. Shards
// carry no shared dictionary or cross-shard state, so they can be decoded
// independently and in any order. One frame of screenshot-class BGRA exceeds
// single-threaded zstd throughput at interactive rates; sharding composes
// with the multi-part wire frame and lets the viewer start painting as soon
// as all shards of a frame are in.
package shard

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/wayland-transpositor/wprs/arcslice"
	"github.com/wayland-transpositor/wprs/cmn"
	"github.com/wayland-transpositor/wprs/cmn/debug"
)

// Compressed is one shard of a compressed frame. Index identifies the shard's
// position in the partition of the uncompressed buffer.
type Compressed struct {
	Index uint32
	Data  arcslice.Slice
}

// span is one shard's range in the uncompressed buffer.
type span struct {
	start, end int
}

func (s span) len() int { return s.end - s.start }

// spans partitions l bytes into n consecutive ranges of equal length; the
// last range absorbs the remainder. Both sides of the pipeline derive the
// same partition from (l, n).
func spans(l, n int) []span {
	debug.Assert(n >= 1, "shard count must be >= 1")
	out := make([]span, n)
	base := l / n
	for i := 0; i < n; i++ {
		out[i] = span{start: i * base, end: (i + 1) * base}
	}
	out[n-1].end = l
	return out
}

// errValue collects the first error reported by any worker of one invocation.
type errValue struct {
	mu  sync.Mutex
	err error
}

func (ev *errValue) set(err error) {
	ev.mu.Lock()
	if ev.err == nil {
		ev.err = err
	}
	ev.mu.Unlock()
}

func (ev *errValue) get() error {
	ev.mu.Lock()
	err := ev.err
	ev.mu.Unlock()
	return err
}

// poison marks an instance whose worker panicked; the instance is not
// reusable afterwards.
type poison struct {
	flag atomic.Bool
}

func (p *poison) trip()         { p.flag.Store(true) }
func (p *poison) tripped() bool { return p.flag.Load() }

func (p *poison) guard(ev *errValue) func() {
	return func() {
		if r := recover(); r != nil {
			p.trip()
			ev.set(cmn.NewErr(cmn.Codec, "worker panic: %v", r))
		}
	}
}

func errPoisoned() error {
	return cmn.NewErr(cmn.Codec, "instance poisoned by an earlier worker panic")
}

func validWorkers(n int) error {
	if n < 1 {
		return fmt.Errorf("worker count must be >= 1, got %d", n)
	}
	return nil
}
