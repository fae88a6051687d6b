// Package proto defines the structured objects exchanged between the
// application-side server and the viewer-side client, together with their
// wire codecs. Large pixel payloads do not ride inside these objects; they
// travel as sibling raw-buffer frames (see the wire package) and the objects
// reference them with the external buffer sentinel.
package proto

// ClientID identifies one connected application client within a server
// instance.
type ClientID string

// WlSurfaceID is the compositor-side surface identifier.
type WlSurfaceID uint32

// SurfaceID is the globally unique surface key: (client, surface) pairs are
// the sole keys into the per-surface map.
type SurfaceID struct {
	Client  ClientID
	Surface WlSurfaceID
}

type Point struct {
	X, Y int32
}

type Size struct {
	W, H int32
}

type Rect struct {
	X, Y int32
	W, H int32
}

// BufferFormat enumerates the pixel formats accepted at ingestion. Anything
// else is rejected with a bad-input error before it reaches the pipeline.
type BufferFormat uint8

const (
	FormatBGRA8 BufferFormat = iota + 1
	FormatBGRX8
)

func (f BufferFormat) Valid() bool { return f == FormatBGRA8 || f == FormatBGRX8 }

func (f BufferFormat) String() string {
	switch f {
	case FormatBGRA8:
		return "bgra8"
	case FormatBGRX8:
		return "bgrx8"
	}
	return "invalid"
}

type BufferMetadata struct {
	Width  int32
	Height int32
	Stride int32
	Format BufferFormat
}

// TotalSize returns the byte size of the interleaved buffer including any
// per-row padding (stride may exceed width*4).
func (m BufferMetadata) TotalSize() int { return int(m.Stride) * int(m.Height) }

// BufferKind tags the payload representation inside a BufferRecord.
type BufferKind uint8

const (
	// BufferUncompressed carries the raw bytes inline.
	BufferUncompressed BufferKind = iota + 1
	// BufferCompressed carries the compressed shards inline.
	BufferCompressed
	// BufferExternal is a sentinel: the payload arrives as the adjacent
	// raw-buffer frame, laid out as ShardLens-delimited compressed shards
	// that decode to UncompressedLen bytes of filtered plane data.
	BufferExternal
)

type CompressedShard struct {
	Index uint32
	Data  []byte
}

type BufferData struct {
	Kind   BufferKind
	Bytes  []byte            // BufferUncompressed
	Shards []CompressedShard // BufferCompressed

	// External shard layout (BufferExternal).
	UncompressedLen uint64
	ShardLens       []uint32
}

type BufferRecord struct {
	Metadata BufferMetadata
	Data     BufferData
}

// BufferAssignmentKind distinguishes "no change", "new buffer", and "buffer
// removed" in a committed state.
type BufferAssignmentKind uint8

const (
	BufferAbsent BufferAssignmentKind = iota + 1
	BufferAttached
	BufferRemoved
)

type BufferAssignment struct {
	Kind   BufferAssignmentKind
	Buffer *BufferRecord // BufferAttached only
}

// Transform is the output transform applied to the committed buffer.
type Transform uint8

const (
	TransformNormal Transform = iota
	Transform90
	Transform180
	Transform270
	TransformFlipped
	TransformFlipped90
	TransformFlipped180
	TransformFlipped270
)

// Region is an optional region list; Present distinguishes "unset" from "set
// to empty".
type Region struct {
	Present bool
	Rects   []Rect
}

// ZChild is one entry of a surface's explicit z-order list; index 0 is the
// bottom-most child.
type ZChild struct {
	ID       WlSurfaceID
	Position Point
}
