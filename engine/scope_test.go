package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fiberwasm/fiber/fibervalue"
)

func TestDisposedScopeInvalidatesHandles(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	var cell Handle
	root := inRoot(t, e, func(ctx context.Context) {
		var err error
		cell, err = e.UseState(fibervalue.I32(1))
		require.NoError(t, err)
	})

	require.NoError(t, e.DisposeScope(root))

	_, err := e.StateGet(cell)
	assert.ErrorIs(t, err, ErrInvalidHandle)

	_, err = e.StateGetRaw(cell)
	assert.ErrorIs(t, err, ErrInvalidHandle)

	err = e.StateSet(ctx, cell, fibervalue.I32(2))
	assert.ErrorIs(t, err, ErrInvalidHandle)

	// The scope handle itself is gone too.
	err = e.DisposeScope(root)
	assert.ErrorIs(t, err, ErrInvalidHandle)
}

func TestDisposeUnsubscribesEffects(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	var cell Handle
	outer := inRoot(t, e, func(ctx context.Context) {
		var err error
		cell, err = e.UseState(fibervalue.I32(0))
		require.NoError(t, err)
	})

	runs := 0
	inner := inRoot(t, e, func(ctx context.Context) {
		_, err := e.UseEffect(ctx, func(context.Context) error {
			runs++
			_, err := e.StateGet(cell)
			return err
		})
		require.NoError(t, err)
	})
	require.Equal(t, 1, runs)

	require.NoError(t, e.StateSet(ctx, cell, fibervalue.I32(1)))
	require.Equal(t, 2, runs)

	// Disposing the effect's scope must remove its subscription: later
	// writes touch a dangling effect otherwise.
	require.NoError(t, e.DisposeScope(inner))
	require.NoError(t, e.StateSet(ctx, cell, fibervalue.I32(2)))
	assert.Equal(t, 2, runs)

	require.NoError(t, e.DisposeScope(outer))
}

func TestHandlesAreNeverReused(t *testing.T) {
	e := newTestEngine(t)

	var first Handle
	root := inRoot(t, e, func(ctx context.Context) {
		var err error
		first, err = e.UseState(fibervalue.I32(1))
		require.NoError(t, err)
	})
	require.NoError(t, e.DisposeScope(root))

	var second Handle
	inRoot(t, e, func(ctx context.Context) {
		var err error
		second, err = e.UseState(fibervalue.I32(2))
		require.NoError(t, err)
	})

	assert.NotEqual(t, first, second)

	// The stale handle must stay invalid instead of aliasing the new cell.
	_, err := e.StateGet(first)
	assert.ErrorIs(t, err, ErrInvalidHandle)
}

func TestWrongKindHandleFails(t *testing.T) {
	e := newTestEngine(t)

	root := inRoot(t, e, func(ctx context.Context) {
		_, err := e.UseState(fibervalue.I32(1))
		require.NoError(t, err)
	})

	// A live scope handle is not a state handle.
	_, err := e.StateGet(root)
	assert.ErrorIs(t, err, ErrInvalidHandle)

	_, err = e.ListLen(root)
	assert.ErrorIs(t, err, ErrInvalidHandle)
}

func TestCleanupRunsBeforeEachRerunAndAtDisposal(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	var log []string
	var cell Handle
	root := inRoot(t, e, func(ctx context.Context) {
		var err error
		cell, err = e.UseState(fibervalue.I32(0))
		require.NoError(t, err)

		_, err = e.UseEffect(ctx, func(ctx context.Context) error {
			v, err := e.StateGet(cell)
			if err != nil {
				return err
			}
			n, _ := v.AsI32()
			log = append(log, "run", string(rune('0'+n)))
			return e.OnCleanup(func() {
				log = append(log, "cleanup")
			})
		})
		require.NoError(t, err)
	})

	require.NoError(t, e.StateSet(ctx, cell, fibervalue.I32(1)))
	require.NoError(t, e.StateSet(ctx, cell, fibervalue.I32(2)))
	require.NoError(t, e.DisposeScope(root))

	assert.Equal(t, []string{
		"run", "0",
		"cleanup", "run", "1",
		"cleanup", "run", "2",
		"cleanup",
	}, log)
}

func TestDisposalIsBottomUp(t *testing.T) {
	e := newTestEngine(t)

	var order []string
	root := inRoot(t, e, func(ctx context.Context) {
		// Root-level cleanup registers first, but child scopes (the
		// effect's run scope here) must be torn down before the root's own
		// cleanups run.
		require.NoError(t, e.OnCleanup(func() {
			order = append(order, "root")
		}))
		_, err := e.UseEffect(ctx, func(context.Context) error {
			return e.OnCleanup(func() {
				order = append(order, "child")
			})
		})
		require.NoError(t, err)
	})

	require.NoError(t, e.DisposeScope(root))
	assert.Equal(t, []string{"child", "root"}, order)
}

func TestCreateRootBodyErrorDisposesRoot(t *testing.T) {
	e := newTestEngine(t)

	var cell Handle
	_, err := e.CreateRoot(context.Background(), func(ctx context.Context) error {
		var serr error
		cell, serr = e.UseState(fibervalue.I32(1))
		require.NoError(t, serr)
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	_, err = e.StateGet(cell)
	assert.ErrorIs(t, err, ErrInvalidHandle)
}

func TestRootsNest(t *testing.T) {
	e := newTestEngine(t)

	inRoot(t, e, func(ctx context.Context) {
		outerCell, err := e.UseState(fibervalue.I32(1))
		require.NoError(t, err)

		inner := inRoot(t, e, func(ctx context.Context) {
			_, err := e.UseState(fibervalue.I32(2))
			require.NoError(t, err)
		})

		// After the inner root returns, registrations land in the outer
		// scope again.
		after, err := e.UseState(fibervalue.I32(3))
		require.NoError(t, err)

		require.NoError(t, e.DisposeScope(inner))
		_, err = e.StateGet(outerCell)
		assert.NoError(t, err)
		_, err = e.StateGet(after)
		assert.NoError(t, err)
	})
}
