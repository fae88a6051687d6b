package shard

import (
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/wayland-transpositor/wprs/arcslice"
	"github.com/wayland-transpositor/wprs/cmn"
)

// Decompressor reassembles a frame from its shards on a fixed worker pool.
// Each worker writes directly into its disjoint range of one contiguous
// output buffer; ranges are derived from the same partition rule the
// compressor used, so parallel writes never overlap.
type Decompressor struct {
	mu     sync.Mutex // one in-flight DecompressWith call at a time
	jobCh  chan djob
	poison poison
}

type djob struct {
	comp []byte
	dst  []byte // the shard's output range
	ev   *errValue
	wg   *sync.WaitGroup
}

// NewDecompressor creates a decompressor with nWorkers workers.
func NewDecompressor(nWorkers int) (*Decompressor, error) {
	if err := validWorkers(nWorkers); err != nil {
		return nil, err
	}
	d := &Decompressor{jobCh: make(chan djob, nWorkers)}
	for i := 0; i < nWorkers; i++ {
		go d.work()
	}
	return d, nil
}

func (d *Decompressor) work() {
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	for job := range d.jobCh {
		d.run(dec, err, job)
	}
}

func (d *Decompressor) run(dec *zstd.Decoder, initErr error, job djob) {
	defer job.wg.Done()
	defer d.poison.guard(job.ev)()

	switch {
	case initErr != nil:
		job.ev.set(cmn.WrapErr(cmn.Codec, initErr, "decoder init"))
		return
	case d.poison.tripped():
		job.ev.set(errPoisoned())
		return
	case job.ev.get() != nil:
		return
	}

	want := len(job.dst)
	res, err := dec.DecodeAll(job.comp, job.dst[:0:want])
	if err != nil {
		job.ev.set(cmn.WrapErr(cmn.Codec, err, "shard decode"))
		return
	}
	if len(res) != want {
		job.ev.set(cmn.NewErr(cmn.Codec, "shard decoded to %d bytes, want %d", len(res), want))
		return
	}
	// DecodeAll reallocates when the capacity hint is too small; that can
	// only happen transiently on oversized intermediate blocks.
	if want > 0 && &res[0] != &job.dst[0] {
		copy(job.dst, res)
	}
}

// DecompressWith consumes nShards shards from next (in any order),
// decompresses them in parallel into one contiguous buffer of
// uncompressedLen bytes, and invokes sink exactly once with a read-only view
// of the whole buffer. The sink's return value is propagated. If the total
// decompressed size does not match uncompressedLen, the call fails before
// invoking the sink.
func (d *Decompressor) DecompressWith(
	nShards, uncompressedLen int,
	next func() (Compressed, error),
	sink func(arcslice.Slice) error,
) error {
	if d.poison.tripped() {
		return errPoisoned()
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	var (
		parts = spans(uncompressedLen, nShards)
		out   = make([]byte, uncompressedLen)
		seen  = make([]bool, nShards)
		ev    = &errValue{}
		wg    = &sync.WaitGroup{}
	)
	for i := 0; i < nShards; i++ {
		sh, err := next()
		if err != nil {
			ev.set(cmn.WrapErr(cmn.Codec, err, "shard source"))
			break
		}
		idx := int(sh.Index)
		if idx >= nShards {
			ev.set(cmn.NewErr(cmn.Codec, "shard index %d out of range [0, %d)", idx, nShards))
			break
		}
		if seen[idx] {
			ev.set(cmn.NewErr(cmn.Codec, "duplicate shard index %d", idx))
			break
		}
		seen[idx] = true

		sp := parts[idx]
		wg.Add(1)
		d.jobCh <- djob{
			comp: sh.Data.Bytes(),
			dst:  out[sp.start:sp.end],
			ev:   ev,
			wg:   wg,
		}
	}
	wg.Wait()

	if err := ev.get(); err != nil {
		return err
	}
	return sink(arcslice.New(out))
}
