package fiber

import "fmt"

// Callbacks cross the boundary as opaque u32 tokens; the registry maps them
// back to Go closures when the host replays a token through fiber_invoke.
// Registrations are never released: effects stay callable until their scope
// is disposed on the host, and the host may re-invoke any of them while the
// instance lives.
var callbacks []func()

func register(fn func()) uint32 {
	callbacks = append(callbacks, fn)
	return uint32(len(callbacks) - 1)
}

// dispatch runs one registered callback. The token argument is unused by the
// Go SDK; it exists for guests whose callbacks are function-table indices
// carrying a context word.
func dispatch(callback, token uint32) {
	if int(callback) >= len(callbacks) {
		panic(fmt.Sprintf("fiber_invoke: unknown callback %d", callback))
	}
	callbacks[callback]()
}
