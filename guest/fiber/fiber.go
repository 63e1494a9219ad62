// Package fiber is the guest-side SDK for the Fiber reactive runtime. It
// wraps the boundary imports with typed helpers; all state lives on the host
// and is addressed through opaque handles.
//
// Guests compile with the wasm build tag; the non-wasm stubs exist so SDK
// consumers build and test natively.
package fiber

import (
	"encoding/binary"
	"unsafe"

	"github.com/fiberwasm/fiber/fibervalue"
)

// State references a host-owned state cell.
type State struct {
	handle uint64
}

// Scope references a host-owned root scope.
type Scope struct {
	handle uint64
}

// CreateRoot establishes a root scope on the host and runs setup inside it.
// UseState and UseEffect calls made during setup register against this root.
func CreateRoot(setup func()) Scope {
	return Scope{handle: createRoot(register(setup))}
}

// Dispose releases the scope and every cell and effect it owns. Handles
// owned by the scope are invalid afterwards.
func (s Scope) Dispose() {
	scopeDispose(s.handle)
}

// UseState allocates a state cell holding initial in the current scope.
func UseState(initial fibervalue.Value) State {
	tag, bits := initial.Pack()
	return State{handle: useState(tag, bits)}
}

// Get reads the cell. Inside an effect the read subscribes the effect to
// this cell for its current run.
func (s State) Get() fibervalue.Value {
	var frame [valueFrameSize]byte
	stateGet(s.handle, unsafe.Pointer(&frame[0]))
	return decodeFrame(frame[:])
}

// GetRaw reads the cell without subscribing, even inside an effect.
func (s State) GetRaw() fibervalue.Value {
	var frame [valueFrameSize]byte
	stateGetRaw(s.handle, unsafe.Pointer(&frame[0]))
	return decodeFrame(frame[:])
}

// Set writes the cell. If the value actually changed, every effect that read
// the cell during its latest run re-runs before Set returns.
func (s State) Set(v fibervalue.Value) {
	tag, bits := v.Pack()
	stateSet(s.handle, tag, bits)
}

// UseEffect registers fn in the current scope and runs it once immediately.
// It re-runs whenever a cell it read during its latest run is written.
func UseEffect(fn func()) {
	useEffect(register(fn), 0)
}

// List references a host-owned value sequence.
type List struct {
	handle uint64
}

// NewList allocates an empty list in the current scope.
func NewList() List {
	return List{handle: listNew()}
}

// Ref returns the value referencing this list, for storing in a cell.
func (l List) Ref() fibervalue.Value {
	return fibervalue.ListRef(l.handle)
}

// Push appends v and returns the new length.
func (l List) Push(v fibervalue.Value) int {
	tag, bits := v.Pack()
	return int(listPush(l.handle, tag, bits))
}

// Len returns the number of elements.
func (l List) Len() int {
	return int(listLen(l.handle))
}

// Get returns the element at index i.
func (l List) Get(i int) fibervalue.Value {
	var frame [valueFrameSize]byte
	listGet(l.handle, uint32(i), unsafe.Pointer(&frame[0]))
	return decodeFrame(frame[:])
}

// valueFrameSize is the boundary frame for one tagged value: little-endian
// {tag u32, _ u32, bits u64}.
const valueFrameSize = 16

func decodeFrame(b []byte) fibervalue.Value {
	v, err := fibervalue.Unpack(binary.LittleEndian.Uint32(b), binary.LittleEndian.Uint64(b[8:]))
	if err != nil {
		// The host writes every frame; an unknown tag here means the
		// frame was never written (native stubs). Read it as void.
		return fibervalue.Void()
	}
	return v
}
