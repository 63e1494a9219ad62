package fibervalue

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Wire format for value sequences, used for run output buffers and anywhere
// a variable number of values crosses the boundary:
//
//	count  u16 (big-endian)
//	repeated count times:
//	  tag    u8
//	  words  u8 (number of u32 payload words)
//	  word   u32 (big-endian), low word first, repeated `words` times
//
// Word counts per variant: void 0, i32/f32 1, i64/f64/listref 2.

// ErrTruncated reports a wire buffer shorter than its declared contents.
var ErrTruncated = errors.New("truncated value sequence")

func wordCount(t Tag) int {
	switch t {
	case TagVoid:
		return 0
	case TagI32, TagF32:
		return 1
	default:
		return 2
	}
}

// AppendValues appends the wire encoding of values to dst and returns the
// extended buffer.
func AppendValues(dst []byte, values []Value) []byte {
	dst = binary.BigEndian.AppendUint16(dst, uint16(len(values)))
	for _, v := range values {
		n := wordCount(v.tag)
		dst = append(dst, byte(v.tag), byte(n))
		for i := 0; i < n; i++ {
			dst = binary.BigEndian.AppendUint32(dst, uint32(v.bits>>(32*i)))
		}
	}
	return dst
}

// ParseValues decodes a wire-encoded value sequence. The whole buffer must
// be consumed; trailing bytes or short reads fail.
func ParseValues(data []byte) ([]Value, error) {
	if len(data) < 2 {
		return nil, ErrTruncated
	}
	count := int(binary.BigEndian.Uint16(data))
	off := 2

	values := make([]Value, 0, count)
	for i := 0; i < count; i++ {
		if off+2 > len(data) {
			return nil, ErrTruncated
		}
		tag := data[off]
		words := int(data[off+1])
		off += 2

		if words > 2 {
			return nil, fmt.Errorf("value %d: %d payload words: %w", i, words, ErrTypeMismatch)
		}
		if off+4*words > len(data) {
			return nil, ErrTruncated
		}

		var bits uint64
		for w := 0; w < words; w++ {
			bits |= uint64(binary.BigEndian.Uint32(data[off:])) << (32 * w)
			off += 4
		}

		v, err := Unpack(uint32(tag), bits)
		if err != nil {
			return nil, fmt.Errorf("value %d: %w", i, err)
		}
		if wordCount(v.Tag()) != words {
			return nil, fmt.Errorf("value %d: %s with %d payload words: %w", i, v.Tag(), words, ErrTypeMismatch)
		}
		values = append(values, v)
	}

	if off != len(data) {
		return nil, fmt.Errorf("%d trailing bytes after value sequence", len(data)-off)
	}
	return values, nil
}
