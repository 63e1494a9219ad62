package wasmhost

import (
	"os"
	"path/filepath"
	"testing"
)

// Hand-assembled wasm guests for module loading tests. Building the bytes
// directly keeps the tests free of a toolchain dependency and makes the
// negative cases (a missing export, a wrong signature) trivial to produce.

// Function type entries, raw wasm functype encoding.
var (
	wasmTypeFunc0To0         = []byte{0x60, 0x00, 0x00}                   // () -> ()
	wasmTypeFuncI32I32To0    = []byte{0x60, 0x02, 0x7f, 0x7f, 0x00}       // (i32, i32) -> ()
	wasmTypeFunc0ToI64       = []byte{0x60, 0x00, 0x01, 0x7e}             // () -> i64
	wasmTypeFuncI32I64ToI64  = []byte{0x60, 0x02, 0x7f, 0x7e, 0x01, 0x7e} // (i32, i64) -> i64
	wasmTypeFuncI64I32To0    = []byte{0x60, 0x02, 0x7e, 0x7f, 0x00}       // (i64, i32) -> ()
	wasmTypeFuncI32ToI64     = []byte{0x60, 0x01, 0x7f, 0x01, 0x7e}       // (i32) -> i64
	wasmTypeFuncI32I32I32To0 = []byte{0x60, 0x03, 0x7f, 0x7f, 0x7f, 0x00} // (i32, i32, i32) -> ()
)

type wasmImportSpec struct {
	module    string
	name      string
	typeIndex byte
}

type wasmFuncSpec struct {
	export    string // empty for unexported
	typeIndex byte
	body      []byte // code entry without the size prefix, including locals
}

type wasmGuestSpec struct {
	types        [][]byte
	imports      []wasmImportSpec
	funcs        []wasmFuncSpec
	exportMemory bool
	globalsI64   int    // number of mutable i64 globals initialized to 0
	data         []byte // placed at offset 0 of memory
}

func buildTestGuest(spec wasmGuestSpec) []byte {
	module := []byte{
		0x00, 0x61, 0x73, 0x6d, // magic
		0x01, 0x00, 0x00, 0x00, // version
	}

	appendSection := func(sectionID byte, payload []byte) {
		module = append(module, sectionID)
		module = append(module, encodeULEB128(uint32(len(payload)))...)
		module = append(module, payload...)
	}

	// Type section.
	typePayload := encodeULEB128(uint32(len(spec.types)))
	for _, t := range spec.types {
		typePayload = append(typePayload, t...)
	}
	appendSection(0x01, typePayload)

	// Import section.
	if len(spec.imports) > 0 {
		payload := encodeULEB128(uint32(len(spec.imports)))
		for _, imp := range spec.imports {
			payload = append(payload, encodeULEB128(uint32(len(imp.module)))...)
			payload = append(payload, imp.module...)
			payload = append(payload, encodeULEB128(uint32(len(imp.name)))...)
			payload = append(payload, imp.name...)
			payload = append(payload, 0x00, imp.typeIndex) // import kind: func
		}
		appendSection(0x02, payload)
	}

	// Function section.
	funcPayload := encodeULEB128(uint32(len(spec.funcs)))
	for _, fn := range spec.funcs {
		funcPayload = append(funcPayload, fn.typeIndex)
	}
	appendSection(0x03, funcPayload)

	if spec.exportMemory {
		// Memory section: one memory, min 1 page.
		appendSection(0x05, []byte{0x01, 0x00, 0x01})
	}

	// Global section.
	if spec.globalsI64 > 0 {
		payload := encodeULEB128(uint32(spec.globalsI64))
		for i := 0; i < spec.globalsI64; i++ {
			payload = append(payload, 0x7e, 0x01, 0x42, 0x00, 0x0b) // mut i64 = 0
		}
		appendSection(0x06, payload)
	}

	// Export section. Defined function indices start after the imports.
	var exports []wasmFuncSpec
	for _, fn := range spec.funcs {
		if fn.export != "" {
			exports = append(exports, fn)
		}
	}
	exportCount := len(exports)
	if spec.exportMemory {
		exportCount++
	}
	exportPayload := encodeULEB128(uint32(exportCount))
	if spec.exportMemory {
		exportPayload = append(exportPayload, encodeULEB128(uint32(len(guestExportMemory)))...)
		exportPayload = append(exportPayload, guestExportMemory...)
		exportPayload = append(exportPayload, 0x02, 0x00) // memory index 0
	}
	for i, fn := range spec.funcs {
		if fn.export == "" {
			continue
		}
		exportPayload = append(exportPayload, encodeULEB128(uint32(len(fn.export)))...)
		exportPayload = append(exportPayload, fn.export...)
		exportPayload = append(exportPayload, 0x00) // export kind: func
		exportPayload = append(exportPayload, encodeULEB128(uint32(len(spec.imports)+i))...)
	}
	appendSection(0x07, exportPayload)

	// Code section.
	codePayload := encodeULEB128(uint32(len(spec.funcs)))
	for _, fn := range spec.funcs {
		codePayload = append(codePayload, encodeULEB128(uint32(len(fn.body)))...)
		codePayload = append(codePayload, fn.body...)
	}
	appendSection(0x0a, codePayload)

	// Data section.
	if len(spec.data) > 0 {
		payload := []byte{0x01, 0x00, 0x41, 0x00, 0x0b} // one segment at offset 0
		payload = append(payload, encodeULEB128(uint32(len(spec.data)))...)
		payload = append(payload, spec.data...)
		appendSection(0x0b, payload)
	}

	return module
}

func encodeULEB128(v uint32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if v == 0 {
			return out
		}
	}
}

// minimalGuestSpec is a well-formed guest whose run does nothing and returns
// no output. Tests knock individual exports out of it.
func minimalGuestSpec() wasmGuestSpec {
	return wasmGuestSpec{
		types:        [][]byte{wasmTypeFunc0To0, wasmTypeFuncI32I32To0, wasmTypeFunc0ToI64},
		exportMemory: true,
		funcs: []wasmFuncSpec{
			{export: guestExportRun, typeIndex: 2, body: []byte{
				0x00,       // locals
				0x42, 0x00, // i64.const 0
				0x0b, // end
			}},
			{export: guestExportInvoke, typeIndex: 1, body: []byte{0x00, 0x0b}},
			{export: abiVersionV1MarkerExport, typeIndex: 0, body: []byte{0x00, 0x0b}},
		},
	}
}

// reactiveGuestSpec is a complete guest wired to the host module: run creates
// a root whose setup callback (0) allocates an i32 cell holding 5 and
// registers an effect callback (1) that reads the cell and logs "tick".
func reactiveGuestSpec() wasmGuestSpec {
	return wasmGuestSpec{
		types: [][]byte{
			wasmTypeFunc0To0,         // 0
			wasmTypeFuncI32I32To0,    // 1
			wasmTypeFunc0ToI64,       // 2
			wasmTypeFuncI32I64ToI64,  // 3: use_state
			wasmTypeFuncI64I32To0,    // 4: state_get
			wasmTypeFuncI32ToI64,     // 5: create_root
			wasmTypeFuncI32I32I32To0, // 6: fiber_log
		},
		imports: []wasmImportSpec{
			{fiberHostModule, fnUseState, 3},   // func 0
			{fiberHostModule, fnStateGet, 4},   // func 1
			{fiberHostModule, fnCreateRoot, 5}, // func 2
			{fiberHostModule, fnUseEffect, 1},  // func 3
			{fiberHostModule, fnLog, 6},        // func 4
		},
		exportMemory: true,
		globalsI64:   1, // cell handle
		data:         []byte("tick"),
		funcs: []wasmFuncSpec{
			{export: guestExportRun, typeIndex: 2, body: []byte{
				0x00,       // locals
				0x41, 0x00, // i32.const 0 (setup callback)
				0x10, 0x02, // call create_root
				0x1a,       // drop
				0x42, 0x00, // i64.const 0 (no output)
				0x0b, // end
			}},
			{export: guestExportInvoke, typeIndex: 1, body: []byte{
				0x00,       // locals
				0x20, 0x00, // local.get callback
				0x45,       // i32.eqz
				0x04, 0x40, // if (setup callback)
				0x41, 0x01, // i32.const 1 (tag i32)
				0x42, 0x05, // i64.const 5
				0x10, 0x00, // call use_state
				0x24, 0x00, // global.set 0
				0x41, 0x01, // i32.const 1 (effect callback)
				0x41, 0x00, // i32.const 0 (token)
				0x10, 0x03, // call use_effect
				0x05,       // else (effect callback)
				0x23, 0x00, // global.get 0
				0x41, 0x10, // i32.const 16 (frame pointer)
				0x10, 0x01, // call state_get
				0x41, 0x00, // i32.const 0 (info)
				0x41, 0x00, // i32.const 0 (message pointer)
				0x41, 0x04, // i32.const 4 (message length)
				0x10, 0x04, // call fiber_log
				0x0b, // end if
				0x0b, // end
			}},
			{export: abiVersionV1MarkerExport, typeIndex: 0, body: []byte{0x00, 0x0b}},
		},
	}
}

func writeTestGuest(t *testing.T, spec wasmGuestSpec) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "guest.wasm")
	if err := os.WriteFile(path, buildTestGuest(spec), 0o600); err != nil {
		t.Fatalf("failed to write test guest: %v", err)
	}
	return path
}
