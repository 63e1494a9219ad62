// Package fibervalue implements the tagged value representation that crosses
// the guest/host boundary. A value is a (tag, bits) pair: the tag fully
// determines how the 64 payload bits are interpreted, and list payloads are
// opaque handles into host-owned sequences, never guest memory addresses.
package fibervalue

import (
	"errors"
	"fmt"
	"math"
)

// Tag identifies the variant of a Value. Tags are stable on the wire.
type Tag uint32

const (
	TagVoid Tag = iota
	TagI32
	TagI64
	TagF32
	TagF64
	TagListRef
)

func (t Tag) String() string {
	switch t {
	case TagVoid:
		return "void"
	case TagI32:
		return "i32"
	case TagI64:
		return "i64"
	case TagF32:
		return "f32"
	case TagF64:
		return "f64"
	case TagListRef:
		return "listref"
	default:
		return fmt.Sprintf("invalid(%d)", uint32(t))
	}
}

// ErrTypeMismatch reports that an accessor or decoder was used with a tag
// that does not match the value's variant. This is a contract violation, not
// a transient condition; callers must not retry.
var ErrTypeMismatch = errors.New("value type mismatch")

// Value is an immutable tagged scalar or list reference. The zero Value is
// Void.
type Value struct {
	tag  Tag
	bits uint64
}

// Void returns the void value.
func Void() Value { return Value{tag: TagVoid} }

// I32 returns a 32-bit integer value. The payload is sign-extended to the
// 64-bit carrier; AsI32 truncates it back.
func I32(v int32) Value { return Value{tag: TagI32, bits: uint64(int64(v))} }

// I64 returns a 64-bit integer value.
func I64(v int64) Value { return Value{tag: TagI64, bits: uint64(v)} }

// F32 returns a 32-bit float value. The bit pattern is carried verbatim,
// zero-extended; NaN payloads survive the round trip.
func F32(v float32) Value { return Value{tag: TagF32, bits: uint64(math.Float32bits(v))} }

// F64 returns a 64-bit float value carrying the exact bit pattern.
func F64(v float64) Value { return Value{tag: TagF64, bits: math.Float64bits(v)} }

// ListRef returns a value referencing a host-owned list by handle.
func ListRef(handle uint64) Value { return Value{tag: TagListRef, bits: handle} }

// Tag returns the variant tag.
func (v Value) Tag() Tag { return v.tag }

// IsVoid reports whether the value is the void variant.
func (v Value) IsVoid() bool { return v.tag == TagVoid }

// Equal reports whether two values have the same tag and the same payload
// bits. This is the change-detection predicate: it is bit-exact, so two NaNs
// with different payloads are not equal.
func (v Value) Equal(o Value) bool { return v.tag == o.tag && v.bits == o.bits }

// Pack returns the fixed-width boundary representation.
func (v Value) Pack() (tag uint32, bits uint64) { return uint32(v.tag), v.bits }

// Unpack rebuilds a Value from its boundary representation. An unknown tag
// fails with ErrTypeMismatch.
func Unpack(tag uint32, bits uint64) (Value, error) {
	t := Tag(tag)
	switch t {
	case TagVoid, TagI32, TagI64, TagF32, TagF64, TagListRef:
		return Value{tag: t, bits: bits}, nil
	default:
		return Value{}, fmt.Errorf("unpack tag %d: %w", tag, ErrTypeMismatch)
	}
}

// AsI32 returns the i32 payload, truncating the carrier.
func (v Value) AsI32() (int32, error) {
	if v.tag != TagI32 {
		return 0, accessErr(TagI32, v.tag)
	}
	return int32(v.bits), nil
}

// AsI64 returns the i64 payload.
func (v Value) AsI64() (int64, error) {
	if v.tag != TagI64 {
		return 0, accessErr(TagI64, v.tag)
	}
	return int64(v.bits), nil
}

// AsF32 returns the f32 payload, truncating the carrier to 32 bits.
func (v Value) AsF32() (float32, error) {
	if v.tag != TagF32 {
		return 0, accessErr(TagF32, v.tag)
	}
	return math.Float32frombits(uint32(v.bits)), nil
}

// AsF64 returns the f64 payload.
func (v Value) AsF64() (float64, error) {
	if v.tag != TagF64 {
		return 0, accessErr(TagF64, v.tag)
	}
	return math.Float64frombits(v.bits), nil
}

// AsListRef returns the referenced list handle.
func (v Value) AsListRef() (uint64, error) {
	if v.tag != TagListRef {
		return 0, accessErr(TagListRef, v.tag)
	}
	return v.bits, nil
}

func accessErr(want, got Tag) error {
	return fmt.Errorf("%s accessor on %s value: %w", want, got, ErrTypeMismatch)
}

func (v Value) String() string {
	switch v.tag {
	case TagVoid:
		return "void"
	case TagI32:
		return fmt.Sprintf("i32(%d)", int32(v.bits))
	case TagI64:
		return fmt.Sprintf("i64(%d)", int64(v.bits))
	case TagF32:
		return fmt.Sprintf("f32(%g)", math.Float32frombits(uint32(v.bits)))
	case TagF64:
		return fmt.Sprintf("f64(%g)", math.Float64frombits(v.bits))
	case TagListRef:
		return fmt.Sprintf("listref(%d)", v.bits)
	default:
		return fmt.Sprintf("invalid(tag=%d, bits=%#x)", uint32(v.tag), v.bits)
	}
}
