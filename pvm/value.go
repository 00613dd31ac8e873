package pvm

import "fmt"

// Value represents a PVM value as a tagged 64-bit word.
//
// The least significant three bits hold the tag. Integers of up to 32 bits
// are unboxed: the word carries the width and the value itself. Everything
// else is boxed: the word carries a handle into the heaplet's object table,
// plus the generation the handle had when the value was produced, so that a
// reference to a collected object is caught at dereference time instead of
// silently reading garbage.
//
// Encoding:
//
//	unboxed int/uint:  vvvv...vvvv xxxx...xxxx wwww wttt   (v: 32-bit value,
//	                   w: width-1, t: tag)
//	boxed:             iiii...iiii gggg...gggg xxxx pttt   (i: 32-bit handle
//	                   index, g: 23-bit generation, p: permanent flag)
type Value uint64

// Value tags.
const (
	tagInt  uint64 = 0x0
	tagUint uint64 = 0x1
	tagBox  uint64 = 0x6
)

// Null is the canonical empty/invalid value. Note that its tag, 0x7, is not
// used by any other encoding.
const Null Value = 0x7

const (
	intWidthShift = 3
	intWidthMask  = 0x1f
	intValueShift = 32

	boxIndexShift = 32
	boxGenShift   = 9
	boxGenMask    = 0x7fffff
	boxPermBit    = 1 << 8
)

func valueTag(v Value) uint64 { return uint64(v) & 0x7 }

// isBoxValue reports whether v is a reference to a heap object.
func isBoxValue(v Value) bool { return valueTag(v) == tagBox }

// IsNull reports whether v is the Null value.
func IsNull(v Value) bool { return v == Null }

// ---------------------------------------------------------------------------
// Unboxed integers
// ---------------------------------------------------------------------------

// MakeInt builds an unboxed signed integer of the given width in bits.
// Panics if width is outside [1,32].
func MakeInt(value int32, width int) Value {
	if width < 1 || width > 32 {
		panic(fmt.Sprintf("pvm.MakeInt: width %d out of range [1,32]", width))
	}
	// Truncate to the declared width so equal values are equal words.
	raw := uint32(value)
	if width < 32 {
		raw &= 1<<uint(width) - 1
	}
	return Value(uint64(raw)<<intValueShift |
		(uint64(width-1)&intWidthMask)<<intWidthShift |
		tagInt)
}

// MakeUint builds an unboxed unsigned integer of the given width in bits.
// Panics if width is outside [1,32].
func MakeUint(value uint32, width int) Value {
	if width < 1 || width > 32 {
		panic(fmt.Sprintf("pvm.MakeUint: width %d out of range [1,32]", width))
	}
	if width < 32 {
		value &= 1<<uint(width) - 1
	}
	return Value(uint64(value)<<intValueShift |
		(uint64(width-1)&intWidthMask)<<intWidthShift |
		tagUint)
}

// IsInt reports whether v is an unboxed signed integer.
func IsInt(v Value) bool { return valueTag(v) == tagInt }

// IsUint reports whether v is an unboxed unsigned integer.
func IsUint(v Value) bool { return valueTag(v) == tagUint }

// IntWidth returns the declared width in bits of an unboxed signed integer.
// Panics if v is not one.
func IntWidth(v Value) int {
	if !IsInt(v) {
		panic("pvm.IntWidth: not an int")
	}
	return int(uint64(v)>>intWidthShift&intWidthMask) + 1
}

// IntValue returns the sign-extended value of an unboxed signed integer.
// Panics if v is not one.
func IntValue(v Value) int32 {
	w := IntWidth(v)
	raw := uint32(uint64(v) >> intValueShift)
	return int32(raw<<(32-w)) >> (32 - w)
}

// UintWidth returns the declared width in bits of an unboxed unsigned
// integer. Panics if v is not one.
func UintWidth(v Value) int {
	if !IsUint(v) {
		panic("pvm.UintWidth: not a uint")
	}
	return int(uint64(v)>>intWidthShift&intWidthMask) + 1
}

// UintValue returns the zero-extended value of an unboxed unsigned integer.
// Panics if v is not one.
func UintValue(v Value) uint32 {
	w := UintWidth(v)
	raw := uint32(uint64(v) >> intValueShift)
	if w == 32 {
		return raw
	}
	return raw & (1<<w - 1)
}

// ---------------------------------------------------------------------------
// Boxed references
// ---------------------------------------------------------------------------

func makeBox(index uint32, gen uint32, permanent bool) Value {
	w := uint64(index)<<boxIndexShift |
		uint64(gen&boxGenMask)<<boxGenShift |
		tagBox
	if permanent {
		w |= boxPermBit
	}
	return Value(w)
}

func boxIndex(v Value) uint32 { return uint32(uint64(v) >> boxIndexShift) }

func boxGen(v Value) uint32 { return uint32(uint64(v)>>boxGenShift) & boxGenMask }

func boxPermanent(v Value) bool { return uint64(v)&boxPermBit != 0 }

// ---------------------------------------------------------------------------
// Boxed kinds
// ---------------------------------------------------------------------------

// Kind is the one-word kind code carried by every boxed heap object.
type Kind uint8

const (
	KindLong Kind = iota
	KindULong
	KindString
	KindOffset
	KindArray
	KindStruct
	KindType
	KindClosure
	KindVector // internal growable Value vector
	KindEnvironment
	KindProgram

	numKinds
)

var kindNames = [numKinds]string{
	"long", "ulong", "string", "offset", "array", "struct",
	"type", "closure", "vector", "environment", "program",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}
