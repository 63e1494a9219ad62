package wasmhost

import (
	"encoding/binary"

	"github.com/fiberwasm/fiber/fibervalue"
)

// guestMemory is the subset of wazero's api.Memory the boundary needs.
// Narrowed so host function bodies stay testable without a live runtime.
type guestMemory interface {
	Read(offset, byteCount uint32) ([]byte, bool)
	Write(offset uint32, data []byte) bool
}

// valueFrameSize is the fixed boundary frame for one tagged value:
// little-endian {tag u32, _ u32, bits u64}.
const valueFrameSize = 16

func writeValueFrame(mem guestMemory, out uint32, v fibervalue.Value) bool {
	tag, bits := v.Pack()
	var frame [valueFrameSize]byte
	binary.LittleEndian.PutUint32(frame[0:], tag)
	binary.LittleEndian.PutUint64(frame[8:], bits)
	return mem.Write(out, frame[:])
}
