//go:build wasm

package fiber

// fiberInvoke is the trampoline the host calls to run a registered callback.
//
//go:wasmexport fiber_invoke
func fiberInvoke(callback, token uint32) {
	dispatch(callback, token)
}

// fiberABIVersion010 marks the boundary protocol this SDK speaks. The host
// refuses to instantiate modules without it.
//
//go:wasmexport fiber_abi_version_0_1_0
func fiberABIVersion010() {}
