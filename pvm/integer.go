package pvm

import "fmt"

// Integers up to 32 bits travel unboxed inside the Value word (value.go).
// Wider integers, up to 64 bits, are boxed as Long (signed) and ULong
// (unsigned) objects. Constructors normalize the payload to the declared
// width so that reads never re-truncate.

type longHdr struct {
	value int64
	width int
}

type ulongHdr struct {
	value uint64
	width int
}

const longWords = 2 // header word + payload word

func signExtend64(v int64, width int) int64 {
	return v << (64 - width) >> (64 - width)
}

func truncate64(v uint64, width int) uint64 {
	if width == 64 {
		return v
	}
	return v & (1<<uint(width) - 1)
}

// MakeLong creates a signed integer value of the given width in bits. Up
// to 32 bits the result is unboxed; wider values are boxed.
func (r *Runtime) MakeLong(value int64, width int) Value {
	if width < 1 || width > 64 {
		panic(fmt.Sprintf("pvm.MakeLong: width %d out of range [1,64]", width))
	}
	if width <= 32 {
		return MakeInt(int32(signExtend64(value, width)), width)
	}
	return r.h.alloc(KindLong, &longHdr{value: signExtend64(value, width), width: width})
}

// MakeULong creates an unsigned integer value of the given width in bits.
// Up to 32 bits the result is unboxed; wider values are boxed.
func (r *Runtime) MakeULong(value uint64, width int) Value {
	if width < 1 || width > 64 {
		panic(fmt.Sprintf("pvm.MakeULong: width %d out of range [1,64]", width))
	}
	if width <= 32 {
		return MakeUint(uint32(truncate64(value, width)), width)
	}
	return r.h.alloc(KindULong, &ulongHdr{value: truncate64(value, width), width: width})
}

// IsLong reports whether v is a boxed signed integer.
func (r *Runtime) IsLong(v Value) bool { return isKindInstance(r.h, v, KindLong) }

// IsULong reports whether v is a boxed unsigned integer.
func (r *Runtime) IsULong(v Value) bool { return isKindInstance(r.h, v, KindULong) }

// LongValue returns the sign-extended payload of a boxed signed integer.
func (r *Runtime) LongValue(v Value) int64 {
	return r.h.hdrOf(v, KindLong, "pvm.LongValue").(*longHdr).value
}

// LongWidth returns the declared width of a boxed signed integer.
func (r *Runtime) LongWidth(v Value) int {
	return r.h.hdrOf(v, KindLong, "pvm.LongWidth").(*longHdr).width
}

// ULongValue returns the payload of a boxed unsigned integer.
func (r *Runtime) ULongValue(v Value) uint64 {
	return r.h.hdrOf(v, KindULong, "pvm.ULongValue").(*ulongHdr).value
}

// ULongWidth returns the declared width of a boxed unsigned integer.
func (r *Runtime) ULongWidth(v Value) int {
	return r.h.hdrOf(v, KindULong, "pvm.ULongWidth").(*ulongHdr).width
}

// IsIntegral reports whether v is any integer value, boxed or unboxed.
func (r *Runtime) IsIntegral(v Value) bool {
	return IsInt(v) || IsUint(v) || r.IsLong(v) || r.IsULong(v)
}

// IntegralValue returns the payload of any integer value widened to 64
// bits, signed values sign-extended, together with its width and
// signedness.
func (r *Runtime) IntegralValue(v Value) (value int64, width int, signed bool) {
	switch {
	case IsInt(v):
		return int64(IntValue(v)), IntWidth(v), true
	case IsUint(v):
		return int64(UintValue(v)), UintWidth(v), false
	case r.IsLong(v):
		hdr := r.h.deref(v).hdr.(*longHdr)
		return hdr.value, hdr.width, true
	case r.IsULong(v):
		hdr := r.h.deref(v).hdr.(*ulongHdr)
		return int64(hdr.value), hdr.width, false
	}
	panic("pvm.IntegralValue: not an integral value")
}

func longShape() *Shape {
	return &Shape{
		Name: "long",
		Kind: KindLong,
		IsInstance: func(h *Heaplet, v Value) bool {
			return isKindInstance(h, v, KindLong)
		},
		SizeOf: func(hdr header) int { return longWords },
		Copy: func(hdr header) header {
			cp := *hdr.(*longHdr)
			return &cp
		},
		ScanFields: func(h *Heaplet, hdr header, relocate func(*Value)) {},
	}
}

func ulongShape() *Shape {
	return &Shape{
		Name: "ulong",
		Kind: KindULong,
		IsInstance: func(h *Heaplet, v Value) bool {
			return isKindInstance(h, v, KindULong)
		},
		SizeOf: func(hdr header) int { return longWords },
		Copy: func(hdr header) header {
			cp := *hdr.(*ulongHdr)
			return &cp
		},
		ScanFields: func(h *Heaplet, hdr header, relocate func(*Value)) {},
	}
}
