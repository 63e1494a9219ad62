//go:build wasm

package fiber

import "unsafe"

//go:wasmimport fiber use_state
func useState(tag uint32, bits uint64) uint64

//go:wasmimport fiber state_get
func stateGet(handle uint64, out unsafe.Pointer)

//go:wasmimport fiber state_get_raw
func stateGetRaw(handle uint64, out unsafe.Pointer)

//go:wasmimport fiber state_set
func stateSet(handle uint64, tag uint32, bits uint64)

//go:wasmimport fiber use_effect
func useEffect(callback, token uint32)

//go:wasmimport fiber create_root
func createRoot(callback uint32) uint64

//go:wasmimport fiber scope_dispose
func scopeDispose(handle uint64)

//go:wasmimport fiber list_new
func listNew() uint64

//go:wasmimport fiber list_push
func listPush(handle uint64, tag uint32, bits uint64) uint32

//go:wasmimport fiber list_len
func listLen(handle uint64) uint32

//go:wasmimport fiber list_get
func listGet(handle uint64, index uint32, out unsafe.Pointer)

//go:wasmimport fiber fiber_log
func fiberLog(level uint32, ptr unsafe.Pointer, size uint32)
