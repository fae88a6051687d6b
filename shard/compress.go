package shard

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/wayland-transpositor/wprs/arcslice"
	"github.com/wayland-transpositor/wprs/cmn"
)

// Compressor compresses shards on a fixed pool of workers, each running an
// independent zstd stream encoder. Create one long-lived instance per
// process; per-frame construction is incorrect (worker startup dominates).
type Compressor struct {
	mu     sync.Mutex // one in-flight Compress call at a time
	jobCh  chan cjob
	level  zstd.EncoderLevel
	poison poison
}

type cjob struct {
	in  arcslice.Slice
	dst *Compressed
	ev  *errValue
	wg  *sync.WaitGroup
}

// NewCompressor creates a compressor with nWorkers workers encoding at the
// given zstd level (1..22; 1 is the fastest and the deployment default).
func NewCompressor(nWorkers, level int) (*Compressor, error) {
	if err := validWorkers(nWorkers); err != nil {
		return nil, err
	}
	if level < 1 || level > 22 {
		return nil, fmt.Errorf("zstd level must be in [1, 22], got %d", level)
	}
	c := &Compressor{
		jobCh: make(chan cjob, nWorkers),
		level: zstd.EncoderLevelFromZstd(level),
	}
	for i := 0; i < nWorkers; i++ {
		go c.work()
	}
	return c, nil
}

func (c *Compressor) work() {
	enc, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(c.level),
		zstd.WithEncoderConcurrency(1))
	for job := range c.jobCh {
		c.run(enc, err, job)
	}
}

func (c *Compressor) run(enc *zstd.Encoder, initErr error, job cjob) {
	defer job.wg.Done()
	defer c.poison.guard(job.ev)()

	switch {
	case initErr != nil:
		job.ev.set(cmn.WrapErr(cmn.Codec, initErr, "encoder init"))
	case c.poison.tripped():
		job.ev.set(errPoisoned())
	case job.ev.get() != nil:
		// another shard of this call already failed; discard the work
	default:
		job.dst.Data = arcslice.New(enc.EncodeAll(job.in.Bytes(), nil))
	}
}

// Compress splits input into nShards consecutive equal-length ranges (the
// last absorbs the remainder), compresses each on the worker pool, and
// returns the shards in submission order. Any shard failure fails the whole
// call; in-flight work is drained and discarded.
func (c *Compressor) Compress(nShards int, input arcslice.Slice) ([]Compressed, error) {
	if c.poison.tripped() {
		return nil, errPoisoned()
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	var (
		parts   = spans(input.Len(), nShards)
		results = make([]Compressed, nShards)
		ev      = &errValue{}
		wg      = &sync.WaitGroup{}
	)
	wg.Add(nShards)
	for i, sp := range parts {
		results[i].Index = uint32(i)
		c.jobCh <- cjob{
			in:  input.Index(sp.start, sp.end),
			dst: &results[i],
			ev:  ev,
			wg:  wg,
		}
	}
	wg.Wait()

	if err := ev.get(); err != nil {
		return nil, err
	}
	return results, nil
}
