package proto

import (
	"crypto/sha256"
	"fmt"
)

// HashSize is the length of the protocol content identifier.
const HashSize = sha256.Size

// schema is the canonical description of the wire protocol: every framed
// type with its field layout, in codec order. Any change to the codecs must
// be reflected here so that incompatible builds refuse to talk to each other
// instead of misparsing frames.
const schema = `wprs-protocol/1
frame: len:u64be tag:u8{object=1,raw=2} payload
point: [x:i32 y:i32]
size: [w:i32 h:i32]
rect: [x:i32 y:i32 w:i32 h:i32]
surface_id: [client:str surface:u32]
buffer_metadata: [width:i32 height:i32 stride:i32 format:u8{bgra8=1,bgrx8=2}]
compressed_shard: [index:u32 data:bin]
buffer_data: [kind:u8{uncompressed=1,compressed=2,external=3} bytes:bin shards:[]compressed_shard uncompressed_len:u64 shard_lens:[]u32]
buffer_assignment: [kind:u8{absent=1,attached=2,removed=3} record:nil|[metadata data]]
region: [present:bool rects:[]rect]
z_child: [id:u32 position:point]
role: nil|[kind:u8{cursor=1,subsurface=2,toplevel=3,popup=4} payload]
subsurface: [parent:u32 sync:bool position:point]
toplevel: [title:str app_id:str decorated:bool min:size max:size]
positioner: [anchor_rect:rect size:size offset:point anchor:u32 gravity:u32 constraint_adjustment:u32]
popup: [parent:u32 positioner]
xdg_surface_state: nil|[window_geometry:nil|rect min:size max:size]
surface_state: [buffer scale:i32 transform:u8 damage:[]rect input:region opaque:region children:[]z_child role xdg_surface_state]
surface_commit: [id:surface_id state:surface_state synced:[][id:u32 state:surface_state]]
event: [kind:u8 payload]
events: protocol_hash=1 client_connect=2 surface_commit=3 surface_destroy=4 frame_callback=5 toplevel_configure=6 popup_configure=7 cursor_image=8 selection=9
`

var schemaHash = sha256.Sum256([]byte(schema))

// SchemaHash returns the 32-byte content identifier of the wire schema. It
// is the first message exchanged in each direction after connect; a mismatch
// aborts the connection.
func SchemaHash() [HashSize]byte { return schemaHash }

// HashEvent returns a ProtocolHash event for this build's schema.
func HashEvent() *Event {
	return &Event{Kind: EvProtocolHash, Hash: &ProtocolHash{Hash: SchemaHash()}}
}

func (h *ProtocolHash) String() string { return fmt.Sprintf("%x", h.Hash[:8]) }
