package engine

import (
	"fmt"

	"github.com/fiberwasm/fiber/fibervalue"
)

// list is a host-owned value sequence. ListRef payloads reference these by
// handle; the guest never sees an address.
type list struct {
	handle Handle
	values []fibervalue.Value
	owner  *scope
}

// NewList allocates a list holding values in the current scope and returns
// its handle, suitable as a ListRef payload.
func (e *Engine) NewList(values []fibervalue.Value) (Handle, error) {
	e.checkGoroutine()

	owner := e.currentScope()
	if owner == nil {
		return 0, fmt.Errorf("list_new: %w", ErrNoActiveScope)
	}

	l := &list{values: append([]fibervalue.Value(nil), values...), owner: owner}
	l.handle = e.table.allocate(kindList, l)
	owner.lists = append(owner.lists, l)
	return l.handle, nil
}

func (e *Engine) resolveList(h Handle) (*list, error) {
	rec, err := e.table.resolve(h, kindList)
	if err != nil {
		return nil, err
	}
	return rec.(*list), nil
}

// ListLen returns the number of elements in the list.
func (e *Engine) ListLen(h Handle) (int, error) {
	e.checkGoroutine()

	l, err := e.resolveList(h)
	if err != nil {
		return 0, fmt.Errorf("list_len: %w", err)
	}
	return len(l.values), nil
}

// ListGet returns the element at index i.
func (e *Engine) ListGet(h Handle, i int) (fibervalue.Value, error) {
	e.checkGoroutine()

	l, err := e.resolveList(h)
	if err != nil {
		return fibervalue.Value{}, fmt.Errorf("list_get: %w", err)
	}
	if i < 0 || i >= len(l.values) {
		return fibervalue.Value{}, fmt.Errorf("list_get: index %d of %d: %w", i, len(l.values), ErrOutOfRange)
	}
	return l.values[i], nil
}

// ListAppend appends v and returns the new length.
func (e *Engine) ListAppend(h Handle, v fibervalue.Value) (int, error) {
	e.checkGoroutine()

	l, err := e.resolveList(h)
	if err != nil {
		return 0, fmt.Errorf("list_push: %w", err)
	}
	l.values = append(l.values, v)
	return len(l.values), nil
}
