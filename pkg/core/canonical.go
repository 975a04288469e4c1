package core

import (
	"encoding/binary"
	"math"
)

const (
	tagNull byte = iota
	tagFalse
	tagTrue
	tagNumber
	tagString
	tagArray
	tagObject
)

// AppendCanonical appends an order-independent binary encoding of v to dst.
// Structurally equal values always produce the same bytes.
func AppendCanonical(dst []byte, v Value) []byte {
	switch x := v.(type) {
	case Null:
		return append(dst, tagNull)
	case Bool:
		if x {
			return append(dst, tagTrue)
		}
		return append(dst, tagFalse)
	case Number:
		return appendBytes(append(dst, tagNumber), string(x))
	case String:
		return appendBytes(append(dst, tagString), string(x))
	case Array:
		dst = binary.AppendUvarint(append(dst, tagArray), uint64(len(x)))
		for _, item := range x {
			dst = AppendCanonical(dst, item)
		}
		return dst
	case Object:
		return appendAttributes(append(dst, tagObject), x.Attributes)
	default:
		return append(dst, math.MaxUint8)
	}
}

// AppendCanonicalElement appends the canonical encoding of all element attributes.
func AppendCanonicalElement(dst []byte, e Element) []byte {
	return appendAttributes(dst, e.Attributes)
}

func appendAttributes(dst []byte, a Attributes) []byte {
	dst = binary.AppendUvarint(dst, uint64(a.Len()))
	for _, name := range a.SortedNames() {
		v, _ := a.Get(name)
		dst = appendBytes(dst, name)
		dst = AppendCanonical(dst, v)
	}
	return dst
}

func appendBytes(dst []byte, s string) []byte {
	dst = binary.AppendUvarint(dst, uint64(len(s)))
	return append(dst, s...)
}
