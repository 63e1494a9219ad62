// Package wasmhost runs Fiber guest modules. It owns the wazero runtime, the
// reactive engine holding all guest-visible state, and the `fiber` host
// module exposing the boundary functions; the guest side never sees host
// memory, only opaque handles and tagged value frames.
package wasmhost

import (
	"context"
	"fmt"
	"os"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/fiberwasm/fiber/engine"
	"github.com/fiberwasm/fiber/fibervalue"
)

// Module is a loaded guest module bound to its own engine instance.
type Module struct {
	runtime  wazero.Runtime
	guest    api.Module
	boundary *boundary
	log      *zap.Logger

	run    api.Function
	invoke api.Function
}

// NewModule loads, validates and instantiates the guest module described by
// cfg. The returned module holds OS resources until Close.
func NewModule(ctx context.Context, cfg *Config, log *zap.Logger) (*Module, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	bin, err := os.ReadFile(cfg.Path)
	if err != nil {
		return nil, err
	}

	rcfg := wazero.NewRuntimeConfig()
	if cfg.Runtime.Mode == RuntimeModeInterpreter {
		rcfg = wazero.NewRuntimeConfigInterpreter()
	}
	r := wazero.NewRuntimeWithConfig(ctx, rcfg)

	wasi_snapshot_preview1.MustInstantiate(ctx, r)

	b := &boundary{eng: engine.New(log), log: log}
	if err := b.instantiateHostModule(ctx, r); err != nil {
		return nil, multierr.Append(err, r.Close(ctx))
	}

	guest, err := r.Instantiate(ctx, bin)
	if err != nil {
		return nil, multierr.Append(
			fmt.Errorf("wasm: error instantiating module: %w", err),
			r.Close(ctx))
	}

	if v := detectABIVersion(guest); v != ABIV1 {
		return nil, multierr.Append(
			fmt.Errorf("wasm: %s: %w", abiVersionV1MarkerExport, ErrABIVersionMarkerNotExported),
			r.Close(ctx))
	}

	m := &Module{runtime: r, guest: guest, boundary: b, log: log}
	for name, dst := range map[string]*api.Function{
		guestExportRun:    &m.run,
		guestExportInvoke: &m.invoke,
	} {
		fn := guest.ExportedFunction(name)
		if fn == nil {
			return nil, multierr.Append(
				fmt.Errorf("wasm: %s is not exported: %w", name, ErrRequiredFunctionNotExported),
				r.Close(ctx))
		}
		*dst = fn
	}
	if guest.ExportedMemory(guestExportMemory) == nil {
		return nil, multierr.Append(
			fmt.Errorf("wasm: %s is not exported: %w", guestExportMemory, ErrRequiredFunctionNotExported),
			r.Close(ctx))
	}

	// Effects registered from here on can call back into the guest.
	b.invoker = m

	log.Debug("guest module instantiated",
		zap.String("path", cfg.Path),
		zap.Stringer("abi", ABIV1))
	return m, nil
}

// InvokeCallback runs one guest callback through the trampoline export.
func (m *Module) InvokeCallback(ctx context.Context, callback, token uint32) error {
	if _, err := m.invoke.Call(ctx, uint64(callback), uint64(token)); err != nil {
		return fmt.Errorf("%s(%d, %d): %w", guestExportInvoke, callback, token, err)
	}
	return nil
}

// Run calls the guest's run entry point with the given parameters and
// decodes its output buffer. Boundary contract violations detected during
// the run (invalid handles, type mismatches, missing scopes, re-entrant
// effects) fail the whole invocation with the original cause.
func (m *Module) Run(ctx context.Context, params ...fibervalue.Value) ([]fibervalue.Value, error) {
	flat := make([]uint64, len(params))
	for i, p := range params {
		_, flat[i] = p.Pack()
	}

	m.boundary.err = nil
	results, err := m.run.Call(ctx, flat...)
	if err != nil {
		// A panic out of a host function surfaces here as a generic call
		// error; the recorded boundary error carries the taxonomy cause.
		if berr := m.boundary.err; berr != nil {
			return nil, fmt.Errorf("wasm: run failed: %w", berr)
		}
		return nil, fmt.Errorf("wasm: run failed: %w", err)
	}

	switch len(results) {
	case 0:
		return nil, nil
	case 1:
	default:
		return nil, fmt.Errorf("wasm: run returned %d results, want at most 1", len(results))
	}

	packed := results[0]
	if packed == 0 {
		return nil, nil
	}
	ptr, size := uint32(packed>>32), uint32(packed)
	buf, ok := m.guest.Memory().Read(ptr, size)
	if !ok {
		return nil, fmt.Errorf("wasm: output buffer [%d, %d) is outside guest memory", ptr, ptr+size)
	}

	values, err := fibervalue.ParseValues(buf)
	if err != nil {
		return nil, fmt.Errorf("wasm: decoding output buffer: %w", err)
	}
	return values, nil
}

// Close releases the runtime and every instantiated module.
func (m *Module) Close(ctx context.Context) error {
	return m.runtime.Close(ctx)
}
