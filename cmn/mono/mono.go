// Package mono provides monotonic time in nanoseconds.
package mono

import "time"

var started = time.Now()

// NanoTime returns nanoseconds since process start, from the monotonic clock.
func NanoTime() int64 { return int64(time.Since(started)) }

// Since returns the elapsed time since a NanoTime() reading.
func Since(t int64) time.Duration { return time.Duration(NanoTime() - t) }
