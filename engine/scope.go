package engine

import (
	"context"
	"fmt"
	"slices"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// scope is a lifetime grouping: the cells, effects, lists and child scopes
// it owns are disposed with it, children first.
type scope struct {
	handle   Handle
	parent   *scope
	cells    []*stateCell
	effects  []*effect
	lists    []*list
	children []*scope
	cleanups []func()
	disposed bool
}

func (s *scope) removeChild(child *scope) {
	if i := slices.Index(s.children, child); i >= 0 {
		s.children = slices.Delete(s.children, i, i+1)
	}
}

// CreateRoot allocates a root scope, makes it current for the duration of
// body, and returns its handle. Roots nest: the previous current scope is
// restored on exit. If body fails the root is disposed and the error
// returned.
func (e *Engine) CreateRoot(ctx context.Context, body func(context.Context) error) (Handle, error) {
	e.checkGoroutine()

	root := &scope{}
	root.handle = e.table.allocate(kindScope, root)
	e.log.Debug("root scope created", zap.Uint64("handle", uint64(root.handle)))

	e.scopeStack = append(e.scopeStack, root)
	err := body(ctx)
	e.scopeStack = e.scopeStack[:len(e.scopeStack)-1]

	if err != nil {
		err = fmt.Errorf("create_root: %w", err)
		if derr := e.disposeScope(root); derr != nil {
			err = multierr.Append(err, derr)
		}
		return 0, err
	}
	return root.handle, nil
}

// OnCleanup registers fn on the current scope. Cleanups run when the scope
// is disposed, which for registrations made inside an effect body means
// before the effect's next run as well as at teardown.
func (e *Engine) OnCleanup(fn func()) error {
	e.checkGoroutine()

	owner := e.currentScope()
	if owner == nil {
		return fmt.Errorf("on_cleanup: %w", ErrNoActiveScope)
	}
	owner.cleanups = append(owner.cleanups, fn)
	return nil
}

// DisposeScope tears down the scope identified by h and everything it owns.
// Every handle owned by the scope is invalidated; presenting one afterwards
// fails with ErrInvalidHandle.
func (e *Engine) DisposeScope(h Handle) error {
	e.checkGoroutine()

	rec, err := e.table.resolve(h, kindScope)
	if err != nil {
		return fmt.Errorf("scope_dispose: %w", err)
	}
	return e.disposeScope(rec.(*scope))
}

// disposeScope releases a scope bottom-up: child scopes first, then effects
// (their subscription edges removed so no write can reach them), then cells
// and lists, then cleanups in registration order, then the scope's own
// handle.
func (e *Engine) disposeScope(s *scope) error {
	if s.disposed {
		return nil
	}
	s.disposed = true

	var errs error
	for _, child := range s.children {
		errs = multierr.Append(errs, e.disposeScope(child))
	}
	s.children = nil

	for _, eff := range s.effects {
		clearDeps(eff)
		eff.disposed = true
	}
	s.effects = nil

	for _, cell := range s.cells {
		cell.subscribers = nil
		e.table.free(cell.handle)
	}
	s.cells = nil

	for _, l := range s.lists {
		e.table.free(l.handle)
	}
	s.lists = nil

	cleanups := s.cleanups
	s.cleanups = nil
	for _, fn := range cleanups {
		fn()
	}

	e.table.free(s.handle)
	e.log.Debug("scope disposed", zap.Uint64("handle", uint64(s.handle)))
	return errs
}
