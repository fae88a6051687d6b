package proto

// EventKind tags the Event union.
type EventKind uint8

const (
	EvProtocolHash EventKind = iota + 1
	EvClientConnect
	EvSurfaceCommit
	EvSurfaceDestroy
	EvFrameCallback
	EvToplevelConfigure
	EvPopupConfigure
	EvCursorImage
	EvSelection
)

func (k EventKind) String() string {
	switch k {
	case EvProtocolHash:
		return "protocol-hash"
	case EvClientConnect:
		return "client-connect"
	case EvSurfaceCommit:
		return "surface-commit"
	case EvSurfaceDestroy:
		return "surface-destroy"
	case EvFrameCallback:
		return "frame-callback"
	case EvToplevelConfigure:
		return "toplevel-configure"
	case EvPopupConfigure:
		return "popup-configure"
	case EvCursorImage:
		return "cursor-image"
	case EvSelection:
		return "selection"
	}
	return "unknown"
}

// ProtocolHash is the first message sent in each direction after connect.
// Mismatch is fatal on both ends.
type ProtocolHash struct {
	Hash [HashSize]byte
}

// ClientConnect announces a (re)connecting client; the receiver resets its
// view of that client.
type ClientConnect struct {
	Client ClientID
}

// SurfaceCommit carries one surface's committed state. Synced holds the
// cached states of sync-mode descendant subsurfaces that take effect
// atomically with this commit, in pre-order; their buffers are always
// inline, only the committing surface's buffer may be external.
type SurfaceCommit struct {
	ID     SurfaceID
	State  SurfaceState
	Synced []SyncedChild
}

type SyncedChild struct {
	ID    WlSurfaceID
	State SurfaceState
}

type SurfaceDestroy struct {
	ID SurfaceID
}

// FrameCallback acknowledges that the previously delivered state for ID has
// been presented; it gates the next commit on that surface.
type FrameCallback struct {
	ID SurfaceID
}

type ToplevelConfigure struct {
	ID         SurfaceID
	Size       Size
	Activated  bool
	Maximized  bool
	Fullscreen bool
	Suspended  bool
}

type PopupConfigure struct {
	ID        SurfaceID
	Rect      Rect
	Dismissed bool
}

// CursorImage updates the pointer image; the pixel payload rides the
// out-of-band raw-buffer channel.
type CursorImage struct {
	Client   ClientID
	Metadata BufferMetadata
	Hotspot  Point
}

// Selection announces clipboard contents; the data rides the out-of-band
// raw-buffer channel.
type Selection struct {
	Client   ClientID
	MimeType string
}

// Event is the structured-object union framed on the wire. Exactly the
// payload matching Kind is non-nil.
type Event struct {
	Kind      EventKind
	Hash      *ProtocolHash
	Connect   *ClientConnect
	Commit    *SurfaceCommit
	Destroy   *SurfaceDestroy
	Callback  *FrameCallback
	Toplevel  *ToplevelConfigure
	Popup     *PopupConfigure
	Cursor    *CursorImage
	Selection *Selection
}

// ConsumesRaw reports whether this event picks up the cached raw-buffer
// frame. Any event that does not consume the cache causes a pending cached
// buffer to be discarded.
func (e *Event) ConsumesRaw() bool {
	switch e.Kind {
	case EvSurfaceCommit:
		return e.Commit.State.External()
	case EvCursorImage, EvSelection:
		return true
	}
	return false
}
