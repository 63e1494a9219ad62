package wasmhost

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/fiberwasm/fiber/engine"
	"github.com/fiberwasm/fiber/fibervalue"
)

const (
	// fiberHostModule is the import module name the guest binds against.
	fiberHostModule = "fiber"

	// Host function exports.
	fnUseState     = "use_state"
	fnStateGet     = "state_get"
	fnStateGetRaw  = "state_get_raw"
	fnStateSet     = "state_set"
	fnUseEffect    = "use_effect"
	fnCreateRoot   = "create_root"
	fnScopeDispose = "scope_dispose"
	fnListNew      = "list_new"
	fnListPush     = "list_push"
	fnListLen      = "list_len"
	fnListGet      = "list_get"
	fnLog          = "fiber_log"

	// Guest exports the host calls back into.
	guestExportMemory = "memory"
	guestExportRun    = "run"
	guestExportInvoke = "fiber_invoke"
)

// guestInvoker executes a guest callback through the guest's trampoline
// export. Both arguments are inert tokens the host passes back verbatim.
type guestInvoker interface {
	InvokeCallback(ctx context.Context, callback, token uint32) error
}

// boundary holds the host side of the protocol: the engine owning all
// reactive state, and the trampoline used to run guest callbacks. Engine
// errors are recorded before panicking out of the host function so the
// failed run invocation can surface the original taxonomy error.
type boundary struct {
	eng     *engine.Engine
	log     *zap.Logger
	invoker guestInvoker
	err     error
}

// fail aborts the in-flight guest call. The panic unwinds through the wasm
// stack and is returned as an error by the top-level call; Run substitutes
// the recorded cause.
func (b *boundary) fail(op string, err error) {
	wrapped := fmt.Errorf("%s: %w", op, err)
	if b.err == nil {
		b.err = wrapped
	}
	panic(wrapped)
}

func (b *boundary) callbackBody(callback, token uint32) func(context.Context) error {
	return func(ctx context.Context) error {
		if b.invoker == nil {
			return fmt.Errorf("%s is not available during instantiation", guestExportInvoke)
		}
		return b.invoker.InvokeCallback(ctx, callback, token)
	}
}

func (b *boundary) useState(ctx context.Context, mem guestMemory, stack []uint64) {
	v, err := fibervalue.Unpack(uint32(stack[0]), stack[1])
	if err != nil {
		b.fail(fnUseState, err)
	}
	h, err := b.eng.UseState(v)
	if err != nil {
		b.fail(fnUseState, err)
	}
	stack[0] = uint64(h)
}

func (b *boundary) stateGet(ctx context.Context, mem guestMemory, stack []uint64) {
	v, err := b.eng.StateGet(engine.Handle(stack[0]))
	if err != nil {
		b.fail(fnStateGet, err)
	}
	if !writeValueFrame(mem, uint32(stack[1]), v) {
		panic("out of memory range writing value frame") // Bug: caller passed a frame pointer outside memory
	}
}

func (b *boundary) stateGetRaw(ctx context.Context, mem guestMemory, stack []uint64) {
	v, err := b.eng.StateGetRaw(engine.Handle(stack[0]))
	if err != nil {
		b.fail(fnStateGetRaw, err)
	}
	if !writeValueFrame(mem, uint32(stack[1]), v) {
		panic("out of memory range writing value frame") // Bug: caller passed a frame pointer outside memory
	}
}

func (b *boundary) stateSet(ctx context.Context, mem guestMemory, stack []uint64) {
	v, err := fibervalue.Unpack(uint32(stack[1]), stack[2])
	if err != nil {
		b.fail(fnStateSet, err)
	}
	if err := b.eng.StateSet(ctx, engine.Handle(stack[0]), v); err != nil {
		b.fail(fnStateSet, err)
	}
}

func (b *boundary) useEffect(ctx context.Context, mem guestMemory, stack []uint64) {
	callback, token := uint32(stack[0]), uint32(stack[1])
	if _, err := b.eng.UseEffect(ctx, b.callbackBody(callback, token)); err != nil {
		b.fail(fnUseEffect, err)
	}
}

func (b *boundary) createRoot(ctx context.Context, mem guestMemory, stack []uint64) {
	callback := uint32(stack[0])
	h, err := b.eng.CreateRoot(ctx, b.callbackBody(callback, 0))
	if err != nil {
		b.fail(fnCreateRoot, err)
	}
	stack[0] = uint64(h)
}

func (b *boundary) scopeDispose(ctx context.Context, mem guestMemory, stack []uint64) {
	if err := b.eng.DisposeScope(engine.Handle(stack[0])); err != nil {
		b.fail(fnScopeDispose, err)
	}
}

func (b *boundary) listNew(ctx context.Context, mem guestMemory, stack []uint64) {
	h, err := b.eng.NewList(nil)
	if err != nil {
		b.fail(fnListNew, err)
	}
	stack[0] = uint64(h)
}

func (b *boundary) listPush(ctx context.Context, mem guestMemory, stack []uint64) {
	v, err := fibervalue.Unpack(uint32(stack[1]), stack[2])
	if err != nil {
		b.fail(fnListPush, err)
	}
	n, err := b.eng.ListAppend(engine.Handle(stack[0]), v)
	if err != nil {
		b.fail(fnListPush, err)
	}
	stack[0] = uint64(uint32(n))
}

func (b *boundary) listLen(ctx context.Context, mem guestMemory, stack []uint64) {
	n, err := b.eng.ListLen(engine.Handle(stack[0]))
	if err != nil {
		b.fail(fnListLen, err)
	}
	stack[0] = uint64(uint32(n))
}

func (b *boundary) listGet(ctx context.Context, mem guestMemory, stack []uint64) {
	v, err := b.eng.ListGet(engine.Handle(stack[0]), int(int32(uint32(stack[1]))))
	if err != nil {
		b.fail(fnListGet, err)
	}
	if !writeValueFrame(mem, uint32(stack[2]), v) {
		panic("out of memory range writing value frame") // Bug: caller passed a frame pointer outside memory
	}
}

// instantiateHostModule registers the fiber host module on the runtime. Must
// happen before the guest module instantiates.
func (b *boundary) instantiateHostModule(ctx context.Context, r wazero.Runtime) error {
	i32 := api.ValueTypeI32
	i64 := api.ValueTypeI64

	type hostFunc struct {
		name    string
		fn      func(context.Context, guestMemory, []uint64)
		params  []api.ValueType
		results []api.ValueType
	}

	funcs := []hostFunc{
		{fnUseState, b.useState, []api.ValueType{i32, i64}, []api.ValueType{i64}},
		{fnStateGet, b.stateGet, []api.ValueType{i64, i32}, nil},
		{fnStateGetRaw, b.stateGetRaw, []api.ValueType{i64, i32}, nil},
		{fnStateSet, b.stateSet, []api.ValueType{i64, i32, i64}, nil},
		{fnUseEffect, b.useEffect, []api.ValueType{i32, i32}, nil},
		{fnCreateRoot, b.createRoot, []api.ValueType{i32}, []api.ValueType{i64}},
		{fnScopeDispose, b.scopeDispose, []api.ValueType{i64}, nil},
		{fnListNew, b.listNew, nil, []api.ValueType{i64}},
		{fnListPush, b.listPush, []api.ValueType{i64, i32, i64}, []api.ValueType{i32}},
		{fnListLen, b.listLen, []api.ValueType{i64}, []api.ValueType{i32}},
		{fnListGet, b.listGet, []api.ValueType{i64, i32, i32}, nil},
		{fnLog, b.guestLog, []api.ValueType{i32, i32, i32}, nil},
	}

	builder := r.NewHostModuleBuilder(fiberHostModule)
	for _, f := range funcs {
		fn := f.fn
		builder = builder.NewFunctionBuilder().
			WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
				fn(ctx, mod.Memory(), stack)
			}), f.params, f.results).
			Export(f.name)
	}

	if _, err := builder.Instantiate(ctx); err != nil {
		return fmt.Errorf("wasm: error instantiating host module: %w", err)
	}
	return nil
}
