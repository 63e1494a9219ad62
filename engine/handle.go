package engine

import "fmt"

// Handle is an opaque identifier for a host-owned record. Handles have no
// guest-visible structure and are never reused: identifiers increase
// monotonically, so a handle presented after its record was freed resolves
// to ErrInvalidHandle instead of aliasing a newer record.
type Handle uint64

type kind uint8

const (
	kindStateCell kind = iota + 1
	kindScope
	kindList
)

func (k kind) String() string {
	switch k {
	case kindStateCell:
		return "state cell"
	case kindScope:
		return "scope"
	case kindList:
		return "list"
	default:
		return "unknown"
	}
}

type tableEntry struct {
	kind kind
	rec  any
}

// handleTable is the host-owned registry behind every handle that crosses
// the boundary. Every boundary call resolves its handle here before use.
type handleTable struct {
	next    Handle
	entries map[Handle]tableEntry
}

func newHandleTable() *handleTable {
	return &handleTable{next: 1, entries: make(map[Handle]tableEntry)}
}

func (t *handleTable) allocate(k kind, rec any) Handle {
	h := t.next
	t.next++
	t.entries[h] = tableEntry{kind: k, rec: rec}
	return h
}

func (t *handleTable) resolve(h Handle, k kind) (any, error) {
	e, ok := t.entries[h]
	if !ok {
		return nil, fmt.Errorf("%s handle %d: %w", k, h, ErrInvalidHandle)
	}
	if e.kind != k {
		return nil, fmt.Errorf("handle %d is a %s, not a %s: %w", h, e.kind, k, ErrInvalidHandle)
	}
	return e.rec, nil
}

func (t *handleTable) free(h Handle) {
	delete(t.entries, h)
}
