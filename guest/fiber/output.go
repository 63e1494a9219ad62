package fiber

import (
	"unsafe"

	"github.com/fiberwasm/fiber/fibervalue"
)

// outputBuf keeps the last encoded output alive while the host reads it out
// of guest memory after run returns.
var outputBuf []byte

// Output encodes values into the module's output buffer and returns the
// packed ptr<<32|len result the run export hands back to the host. With no
// values it returns 0, which the host reads as no output.
func Output(values ...fibervalue.Value) uint64 {
	if len(values) == 0 {
		return 0
	}
	outputBuf = fibervalue.AppendValues(nil, values)
	return uint64(uintptr(unsafe.Pointer(&outputBuf[0])))<<32 | uint64(uint32(len(outputBuf)))
}
