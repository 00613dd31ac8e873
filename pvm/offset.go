package pvm

// Offsets pair an integral magnitude with the unit it is expressed in.
// The unit lives in the offset's type; well-known units are expressed in
// bits.

// Well-known offset units, in bits per unit.
const (
	UnitBit    = 1
	UnitNibble = 4
	UnitByte   = 8
	UnitKBit   = 1024
	UnitKByte  = 8 * 1024
	UnitMBit   = 1024 * 1024
	UnitMByte  = 8 * 1024 * 1024
	UnitGBit   = 1024 * 1024 * 1024
	UnitGByte  = 8 * 1024 * 1024 * 1024
)

type offHdr struct {
	magnitude Value // integral value
	typ       Value // offset type carrying base type and unit
}

const offsetWords = 3

// MakeOffset creates an offset value from an integral magnitude and an
// offset type. The magnitude must be an instance of the type's base type.
func (r *Runtime) MakeOffset(magnitude, typ Value) Value {
	if !r.IsIntegral(magnitude) {
		panic("pvm.MakeOffset: magnitude is not integral")
	}
	if r.TypeCode(typ) != TypeOffset {
		panic("pvm.MakeOffset: type is not an offset type")
	}
	r.h.PushRootBlock()
	defer r.h.PopRootBlock()
	r.h.BlockRoot(&magnitude)
	r.h.BlockRoot(&typ)
	return r.h.alloc(KindOffset, &offHdr{magnitude: magnitude, typ: typ})
}

// IsOffset reports whether v is an offset value.
func (r *Runtime) IsOffset(v Value) bool { return isKindInstance(r.h, v, KindOffset) }

// OffsetMagnitude returns the magnitude value of an offset.
func (r *Runtime) OffsetMagnitude(v Value) Value {
	return r.h.hdrOf(v, KindOffset, "pvm.OffsetMagnitude").(*offHdr).magnitude
}

// OffsetType returns the offset type of an offset value.
func (r *Runtime) OffsetType(v Value) Value {
	return r.h.hdrOf(v, KindOffset, "pvm.OffsetType").(*offHdr).typ
}

// OffsetUnit returns the unit of an offset value, in bits per unit.
func (r *Runtime) OffsetUnit(v Value) uint64 {
	typ := r.OffsetType(v)
	unit, _, _ := r.IntegralValue(r.TypeOffsetUnit(typ))
	return uint64(unit)
}

// OffsetBits returns the magnitude of an offset value scaled to bits.
func (r *Runtime) OffsetBits(v Value) uint64 {
	mag, _, _ := r.IntegralValue(r.OffsetMagnitude(v))
	return uint64(mag) * r.OffsetUnit(v)
}

func offsetShape() *Shape {
	return &Shape{
		Name: "offset",
		Kind: KindOffset,
		IsInstance: func(h *Heaplet, v Value) bool {
			return isKindInstance(h, v, KindOffset)
		},
		SizeOf: func(hdr header) int { return offsetWords },
		Copy: func(hdr header) header {
			cp := *hdr.(*offHdr)
			return &cp
		},
		ScanFields: func(h *Heaplet, hdr header, relocate func(*Value)) {
			o := hdr.(*offHdr)
			relocate(&o.magnitude)
			relocate(&o.typ)
		},
	}
}
