//go:build !wasm

package fiber

import "unsafe"

// Stubs so SDK consumers compile and unit-test natively. State never leaves
// the host, so outside wasm every read decodes a zero frame, which is void.

func useState(tag uint32, bits uint64) uint64 { return 0 }

func stateGet(handle uint64, out unsafe.Pointer) {}

func stateGetRaw(handle uint64, out unsafe.Pointer) {}

func stateSet(handle uint64, tag uint32, bits uint64) {}

func useEffect(callback, token uint32) {}

func createRoot(callback uint32) uint64 { return 0 }

func scopeDispose(handle uint64) {}

func listNew() uint64 { return 0 }

func listPush(handle uint64, tag uint32, bits uint64) uint32 { return 0 }

func listLen(handle uint64) uint32 { return 0 }

func listGet(handle uint64, index uint32, out unsafe.Pointer) {}

func fiberLog(level uint32, ptr unsafe.Pointer, size uint32) {}
