// Package engine implements the Fiber reactive runtime: state cells, effects
// and scopes owned by the host, with dependency edges rebuilt from the reads
// observed during each effect run.
//
// The engine is strictly single-threaded and call/return driven. Boundary
// calls may nest (an effect body triggers further boundary calls), which the
// engine supports with push/pop current-scope and current-effect stacks, but
// nothing may run concurrently.
package engine

import (
	"context"
	"fmt"
	"slices"

	"github.com/petermattis/goid"
	"go.uber.org/zap"

	"github.com/fiberwasm/fiber/fibervalue"
)

// EffectID identifies a registered effect. Effect ids are host-assigned in
// registration order and are not guest-addressable.
type EffectID uint64

type stateCell struct {
	handle Handle
	value  fibervalue.Value
	// subscribers stays ordered by effect id, which is registration order.
	// Effects re-subscribe from scratch on every run, so position-of-append
	// would reshuffle the propagation order between writes.
	subscribers []*effect
	generation  uint64
	owner       *scope
}

type effect struct {
	id       EffectID
	body     func(context.Context) error
	deps     []*stateCell
	running  bool
	dirty    bool
	disposed bool
	owner    *scope
	// runScope collects cells, effects and cleanups registered during the
	// latest run; it is disposed and recreated on every re-run.
	runScope *scope
}

// Engine owns the handle table, the reactive graph and the scope tree. The
// guest side never holds pointers into any of them, only handles.
type Engine struct {
	log   *zap.Logger
	gid   int64
	table *handleTable

	nextEffectID EffectID

	scopeStack  []*scope
	effectStack []*effect
}

// New returns an empty engine bound to the calling goroutine. A nil logger
// disables logging.
func New(log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		log:          log,
		gid:          goid.Get(),
		table:        newHandleTable(),
		nextEffectID: 1,
	}
}

// checkGoroutine panics on cross-goroutine use. The engine is single-threaded
// by contract; calling it from another goroutine is an embedder bug, not a
// guest error, so it is not part of the boundary error taxonomy.
func (e *Engine) checkGoroutine() {
	if goid.Get() != e.gid {
		panic("fiber: engine is single-threaded and must stay on its creating goroutine")
	}
}

func (e *Engine) currentScope() *scope {
	if len(e.scopeStack) == 0 {
		return nil
	}
	return e.scopeStack[len(e.scopeStack)-1]
}

func (e *Engine) currentEffect() *effect {
	if len(e.effectStack) == 0 {
		return nil
	}
	return e.effectStack[len(e.effectStack)-1]
}

// UseState allocates a state cell holding initial in the current scope.
func (e *Engine) UseState(initial fibervalue.Value) (Handle, error) {
	e.checkGoroutine()

	owner := e.currentScope()
	if owner == nil {
		return 0, fmt.Errorf("use_state: %w", ErrNoActiveScope)
	}

	cell := &stateCell{value: initial, owner: owner}
	cell.handle = e.table.allocate(kindStateCell, cell)
	owner.cells = append(owner.cells, cell)

	e.log.Debug("state cell allocated",
		zap.Uint64("handle", uint64(cell.handle)),
		zap.Stringer("initial", initial))
	return cell.handle, nil
}

func (e *Engine) resolveCell(h Handle) (*stateCell, error) {
	rec, err := e.table.resolve(h, kindStateCell)
	if err != nil {
		return nil, err
	}
	return rec.(*stateCell), nil
}

// StateGet reads a cell. If an effect is currently executing, the read also
// records a dependency edge between that effect and the cell.
func (e *Engine) StateGet(h Handle) (fibervalue.Value, error) {
	e.checkGoroutine()

	cell, err := e.resolveCell(h)
	if err != nil {
		return fibervalue.Value{}, fmt.Errorf("state_get: %w", err)
	}
	if eff := e.currentEffect(); eff != nil {
		addEdge(eff, cell)
	}
	return cell.value, nil
}

// StateGetRaw reads a cell without recording a dependency edge, even inside
// a running effect. Escape hatch for reads that must not create reactivity.
func (e *Engine) StateGetRaw(h Handle) (fibervalue.Value, error) {
	e.checkGoroutine()

	cell, err := e.resolveCell(h)
	if err != nil {
		return fibervalue.Value{}, fmt.Errorf("state_get_raw: %w", err)
	}
	return cell.value, nil
}

// StateGeneration returns the cell's write generation. The counter bumps
// only on writes that actually changed the stored bits.
func (e *Engine) StateGeneration(h Handle) (uint64, error) {
	e.checkGoroutine()

	cell, err := e.resolveCell(h)
	if err != nil {
		return 0, err
	}
	return cell.generation, nil
}

// StateSet writes a cell and synchronously re-runs its subscribers in the
// order they subscribed. A write that leaves the stored tag and bits
// unchanged is a no-op: no generation bump, no scheduling.
func (e *Engine) StateSet(ctx context.Context, h Handle, v fibervalue.Value) error {
	e.checkGoroutine()

	cell, err := e.resolveCell(h)
	if err != nil {
		return fmt.Errorf("state_set: %w", err)
	}

	if v.Equal(cell.value) {
		return nil
	}

	cell.value = v
	cell.generation++
	e.log.Debug("state cell written",
		zap.Uint64("handle", uint64(cell.handle)),
		zap.Stringer("value", v),
		zap.Uint64("generation", cell.generation),
		zap.Int("subscribers", len(cell.subscribers)))

	// Snapshot: effect runs rewrite subscriber sets while we iterate.
	subs := slices.Clone(cell.subscribers)
	for _, eff := range subs {
		eff.dirty = true
	}
	for _, eff := range subs {
		// A nested write inside an earlier subscriber may already have
		// re-run (and cleaned) this one, or disposed it.
		if eff.disposed || !eff.dirty {
			continue
		}
		if err := e.runEffect(ctx, eff); err != nil {
			return fmt.Errorf("state_set: %w", err)
		}
	}
	return nil
}

// UseEffect registers body as an effect in the current scope and runs it
// once immediately to discover its initial dependency set. The body re-runs
// whenever a cell it read during its latest run is written.
func (e *Engine) UseEffect(ctx context.Context, body func(context.Context) error) (EffectID, error) {
	e.checkGoroutine()

	owner := e.currentScope()
	if owner == nil {
		return 0, fmt.Errorf("use_effect: %w", ErrNoActiveScope)
	}

	eff := &effect{id: e.nextEffectID, body: body, owner: owner}
	e.nextEffectID++
	owner.effects = append(owner.effects, eff)

	e.log.Debug("effect registered", zap.Uint64("effect", uint64(eff.id)))

	if err := e.runEffect(ctx, eff); err != nil {
		return eff.id, fmt.Errorf("use_effect: %w", err)
	}
	return eff.id, nil
}

// runEffect executes one effect run: previous dependencies and the previous
// run's scope are torn down first, then the body executes with the effect
// pushed as current so its reads rebuild the dependency set from scratch.
func (e *Engine) runEffect(ctx context.Context, eff *effect) error {
	if eff.running {
		return fmt.Errorf("effect %d: %w", eff.id, ErrReentrantEffect)
	}

	eff.dirty = false
	eff.running = true
	defer func() { eff.running = false }()

	clearDeps(eff)

	// Cells, nested effects and cleanups from the previous run go away
	// before the new run, cleanups first.
	if eff.runScope != nil {
		eff.owner.removeChild(eff.runScope)
		if err := e.disposeScope(eff.runScope); err != nil {
			return fmt.Errorf("effect %d: disposing previous run: %w", eff.id, err)
		}
	}
	eff.runScope = &scope{parent: eff.owner}
	eff.runScope.handle = e.table.allocate(kindScope, eff.runScope)
	eff.owner.children = append(eff.owner.children, eff.runScope)

	e.scopeStack = append(e.scopeStack, eff.runScope)
	e.effectStack = append(e.effectStack, eff)
	err := eff.body(ctx)
	e.effectStack = e.effectStack[:len(e.effectStack)-1]
	e.scopeStack = e.scopeStack[:len(e.scopeStack)-1]

	if err != nil {
		return fmt.Errorf("effect %d: %w", eff.id, err)
	}
	return nil
}

// addEdge records the bidirectional dependency edge between a running effect
// and a cell it read. Both sides dedupe; the subscriber side keeps effect-id
// order so propagation order survives re-subscription.
func addEdge(eff *effect, cell *stateCell) {
	if !slices.Contains(eff.deps, cell) {
		eff.deps = append(eff.deps, cell)
	}
	if slices.Contains(cell.subscribers, eff) {
		return
	}
	at, _ := slices.BinarySearchFunc(cell.subscribers, eff, func(a, b *effect) int {
		switch {
		case a.id < b.id:
			return -1
		case a.id > b.id:
			return 1
		default:
			return 0
		}
	})
	cell.subscribers = slices.Insert(cell.subscribers, at, eff)
}

// clearDeps removes every edge recorded for the effect's previous run.
// Dependencies are always rebuilt whole, never diffed.
func clearDeps(eff *effect) {
	for _, cell := range eff.deps {
		if i := slices.Index(cell.subscribers, eff); i >= 0 {
			cell.subscribers = slices.Delete(cell.subscribers, i, i+1)
		}
	}
	eff.deps = nil
}
