package pvm

import "fmt"

// Types are themselves boxed values, so values can carry their type and
// programs can manipulate types at run time. A type is a code plus the
// code-specific fields; unused fields stay Null.

// TypeCode discriminates type values.
type TypeCode uint8

const (
	TypeIntegral TypeCode = iota
	TypeString
	TypeArray
	TypeStruct
	TypeOffset
	TypeClosure
	TypeVoid
)

var typeCodeNames = [...]string{
	TypeIntegral: "integral",
	TypeString:   "string",
	TypeArray:    "array",
	TypeStruct:   "struct",
	TypeOffset:   "offset",
	TypeClosure:  "closure",
	TypeVoid:     "void",
}

func (c TypeCode) String() string {
	if int(c) < len(typeCodeNames) {
		return typeCodeNames[c]
	}
	return fmt.Sprintf("TypeCode(%d)", uint8(c))
}

type typeHdr struct {
	code TypeCode

	// Integral types.
	size   Value // ULong width in bits
	signed Value // Int(1) or Int(0)

	// Array types.
	etype Value // element type
	bound Value // integral or offset bound, or Null

	// Struct types.
	name   Value // declared name, Null for an anonymous type
	fnames []Value
	ftypes []Value

	// Offset types.
	base Value // integral base type of the magnitude
	unit Value // ULong bits per unit

	// Closure types.
	ret  Value
	args []Value
}

// IsType reports whether v is a type value.
func (r *Runtime) IsType(v Value) bool { return isKindInstance(r.h, v, KindType) }

func (r *Runtime) typ(v Value, what string) *typeHdr {
	return r.h.hdrOf(v, KindType, what).(*typeHdr)
}

// TypeCode returns the code of a type value.
func (r *Runtime) TypeCode(v Value) TypeCode { return r.typ(v, "pvm.TypeCode").code }

// ---------------------------------------------------------------------------
// Constructors
// ---------------------------------------------------------------------------

func (r *Runtime) newType(hdr *typeHdr) Value { return r.h.alloc(KindType, hdr) }

// MakeIntegralType returns the integral type of the given width and
// signedness. Types for every valid width are interned, so repeated calls
// return the identical value.
func (r *Runtime) MakeIntegralType(width int, signed bool) Value {
	if width < 1 || width > 64 {
		panic(fmt.Sprintf("pvm.MakeIntegralType: width %d out of range [1,64]", width))
	}
	idx := width * 2
	if signed {
		idx++
	}
	if r.intTypes[idx] == Null {
		r.fillIntegralType(idx, width, signed)
	}
	return r.intTypes[idx]
}

func (r *Runtime) fillIntegralType(idx, width int, signed bool) {
	r.h.PushRootBlock()
	defer r.h.PopRootBlock()
	size := r.MakeULong(uint64(width), 64)
	r.h.BlockRoot(&size)
	s := int32(0)
	if signed {
		s = 1
	}
	r.intTypes[idx] = r.newType(&typeHdr{
		code:   TypeIntegral,
		size:   size,
		signed: MakeInt(s, 32),
		etype:  Null, bound: Null, name: Null, base: Null, unit: Null, ret: Null,
	})
}

// StringType returns the interned string type.
func (r *Runtime) StringType() Value { return r.wellKnown[wkStringType] }

// VoidType returns the interned void type.
func (r *Runtime) VoidType() Value { return r.wellKnown[wkVoidType] }

// MakeArrayType creates an array type with the given element type and
// bound. A Null element type stands for "any"; the bound may be Null, an
// integral number of elements, or an offset.
func (r *Runtime) MakeArrayType(etype, bound Value) Value {
	r.h.PushRootBlock()
	defer r.h.PopRootBlock()
	r.h.BlockRoot(&etype)
	r.h.BlockRoot(&bound)
	return r.newType(&typeHdr{
		code:  TypeArray,
		etype: etype,
		bound: bound,
		size:  Null, signed: Null, name: Null, base: Null, unit: Null, ret: Null,
	})
}

// MakeStructType creates a struct type. name may be Null for an anonymous
// type; fnames and ftypes run parallel, with Null names for anonymous
// fields.
func (r *Runtime) MakeStructType(name Value, fnames, ftypes []Value) Value {
	if len(fnames) != len(ftypes) {
		panic("pvm.MakeStructType: field name and type counts differ")
	}
	r.h.PushRootBlock()
	defer r.h.PopRootBlock()
	r.h.BlockRoot(&name)
	for i := range fnames {
		r.h.BlockRoot(&fnames[i])
		r.h.BlockRoot(&ftypes[i])
	}
	fn := make([]Value, len(fnames))
	copy(fn, fnames)
	ft := make([]Value, len(ftypes))
	copy(ft, ftypes)
	return r.newType(&typeHdr{
		code:   TypeStruct,
		name:   name,
		fnames: fn,
		ftypes: ft,
		size:   Null, signed: Null, etype: Null, bound: Null, base: Null, unit: Null, ret: Null,
	})
}

// MakeOffsetType creates an offset type with the given integral base type
// and unit (a ULong number of bits per unit).
func (r *Runtime) MakeOffsetType(base, unit Value) Value {
	if r.TypeCode(base) != TypeIntegral {
		panic("pvm.MakeOffsetType: base is not an integral type")
	}
	r.h.PushRootBlock()
	defer r.h.PopRootBlock()
	r.h.BlockRoot(&base)
	r.h.BlockRoot(&unit)
	return r.newType(&typeHdr{
		code: TypeOffset,
		base: base,
		unit: unit,
		size: Null, signed: Null, etype: Null, bound: Null, name: Null, ret: Null,
	})
}

// MakeClosureType creates a closure type with the given return type and
// argument types.
func (r *Runtime) MakeClosureType(ret Value, args []Value) Value {
	r.h.PushRootBlock()
	defer r.h.PopRootBlock()
	r.h.BlockRoot(&ret)
	for i := range args {
		r.h.BlockRoot(&args[i])
	}
	as := make([]Value, len(args))
	copy(as, args)
	return r.newType(&typeHdr{
		code: TypeClosure,
		ret:  ret,
		args: as,
		size: Null, signed: Null, etype: Null, bound: Null, name: Null, base: Null, unit: Null,
	})
}

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

// TypeIntegralWidth returns the width, in bits, of an integral type.
func (r *Runtime) TypeIntegralWidth(v Value) int {
	t := r.typ(v, "pvm.TypeIntegralWidth")
	if t.code != TypeIntegral {
		panic("pvm.TypeIntegralWidth: not an integral type")
	}
	w, _, _ := r.IntegralValue(t.size)
	return int(w)
}

// TypeIntegralSigned reports the signedness of an integral type.
func (r *Runtime) TypeIntegralSigned(v Value) bool {
	t := r.typ(v, "pvm.TypeIntegralSigned")
	if t.code != TypeIntegral {
		panic("pvm.TypeIntegralSigned: not an integral type")
	}
	s, _, _ := r.IntegralValue(t.signed)
	return s != 0
}

// TypeArrayElem returns the element type of an array type, or Null.
func (r *Runtime) TypeArrayElem(v Value) Value {
	t := r.typ(v, "pvm.TypeArrayElem")
	if t.code != TypeArray {
		panic("pvm.TypeArrayElem: not an array type")
	}
	return t.etype
}

// TypeArrayBound returns the bound of an array type, or Null.
func (r *Runtime) TypeArrayBound(v Value) Value {
	t := r.typ(v, "pvm.TypeArrayBound")
	if t.code != TypeArray {
		panic("pvm.TypeArrayBound: not an array type")
	}
	return t.bound
}

// TypeStructName returns the declared name of a struct type, or Null.
func (r *Runtime) TypeStructName(v Value) Value {
	t := r.typ(v, "pvm.TypeStructName")
	if t.code != TypeStruct {
		panic("pvm.TypeStructName: not a struct type")
	}
	return t.name
}

// TypeStructNumFields returns the number of declared fields.
func (r *Runtime) TypeStructNumFields(v Value) int {
	t := r.typ(v, "pvm.TypeStructNumFields")
	if t.code != TypeStruct {
		panic("pvm.TypeStructNumFields: not a struct type")
	}
	return len(t.fnames)
}

// TypeStructFieldName returns the declared name of field i, or Null.
func (r *Runtime) TypeStructFieldName(v Value, i int) Value {
	t := r.typ(v, "pvm.TypeStructFieldName")
	if t.code != TypeStruct {
		panic("pvm.TypeStructFieldName: not a struct type")
	}
	return t.fnames[i]
}

// TypeStructFieldType returns the declared type of field i.
func (r *Runtime) TypeStructFieldType(v Value, i int) Value {
	t := r.typ(v, "pvm.TypeStructFieldType")
	if t.code != TypeStruct {
		panic("pvm.TypeStructFieldType: not a struct type")
	}
	return t.ftypes[i]
}

// TypeOffsetBase returns the base integral type of an offset type.
func (r *Runtime) TypeOffsetBase(v Value) Value {
	t := r.typ(v, "pvm.TypeOffsetBase")
	if t.code != TypeOffset {
		panic("pvm.TypeOffsetBase: not an offset type")
	}
	return t.base
}

// TypeOffsetUnit returns the unit of an offset type, a ULong in bits.
func (r *Runtime) TypeOffsetUnit(v Value) Value {
	t := r.typ(v, "pvm.TypeOffsetUnit")
	if t.code != TypeOffset {
		panic("pvm.TypeOffsetUnit: not an offset type")
	}
	return t.unit
}

// TypeClosureRet returns the return type of a closure type.
func (r *Runtime) TypeClosureRet(v Value) Value {
	t := r.typ(v, "pvm.TypeClosureRet")
	if t.code != TypeClosure {
		panic("pvm.TypeClosureRet: not a closure type")
	}
	return t.ret
}

// TypeClosureNumArgs returns the number of argument types.
func (r *Runtime) TypeClosureNumArgs(v Value) int {
	t := r.typ(v, "pvm.TypeClosureNumArgs")
	if t.code != TypeClosure {
		panic("pvm.TypeClosureNumArgs: not a closure type")
	}
	return len(t.args)
}

// TypeClosureArg returns the type of argument i.
func (r *Runtime) TypeClosureArg(v Value, i int) Value {
	t := r.typ(v, "pvm.TypeClosureArg")
	if t.code != TypeClosure {
		panic("pvm.TypeClosureArg: not a closure type")
	}
	return t.args[i]
}

// ---------------------------------------------------------------------------
// Type equality
// ---------------------------------------------------------------------------

// TypeEqual reports structural equality of two type values:
//
//   - integral types compare by width and signedness,
//   - string and void types are always equal to themselves,
//   - array types compare by element type, with a Null element type equal
//     only to another Null element type; bounds are ignored,
//   - struct types compare by declared name only, and an anonymous struct
//     type is equal to nothing, itself included,
//   - offset types compare by base type and unit,
//   - closure types compare by return type and argument types.
func (r *Runtime) TypeEqual(a, b Value) bool {
	ta := r.typ(a, "pvm.TypeEqual")
	tb := r.typ(b, "pvm.TypeEqual")
	if ta.code != tb.code {
		return false
	}
	switch ta.code {
	case TypeIntegral:
		return r.TypeIntegralWidth(a) == r.TypeIntegralWidth(b) &&
			r.TypeIntegralSigned(a) == r.TypeIntegralSigned(b)
	case TypeString, TypeVoid:
		return true
	case TypeArray:
		if ta.etype == Null || tb.etype == Null {
			return ta.etype == Null && tb.etype == Null
		}
		return r.TypeEqual(ta.etype, tb.etype)
	case TypeStruct:
		if ta.name == Null || tb.name == Null {
			return false
		}
		return r.StringValue(ta.name) == r.StringValue(tb.name)
	case TypeOffset:
		ua, _, _ := r.IntegralValue(ta.unit)
		ub, _, _ := r.IntegralValue(tb.unit)
		return ua == ub && r.TypeEqual(ta.base, tb.base)
	case TypeClosure:
		if len(ta.args) != len(tb.args) {
			return false
		}
		if !r.TypeEqual(ta.ret, tb.ret) {
			return false
		}
		for i := range ta.args {
			if !r.TypeEqual(ta.args[i], tb.args[i]) {
				return false
			}
		}
		return true
	}
	return false
}

func typeWords(hdr *typeHdr) int {
	return 10 + 2*len(hdr.fnames) + len(hdr.args)
}

func typeShape() *Shape {
	return &Shape{
		Name: "type",
		Kind: KindType,
		IsInstance: func(h *Heaplet, v Value) bool {
			return isKindInstance(h, v, KindType)
		},
		SizeOf: func(hdr header) int { return typeWords(hdr.(*typeHdr)) },
		Copy: func(hdr header) header {
			old := hdr.(*typeHdr)
			cp := *old
			cp.fnames = make([]Value, len(old.fnames))
			copy(cp.fnames, old.fnames)
			cp.ftypes = make([]Value, len(old.ftypes))
			copy(cp.ftypes, old.ftypes)
			cp.args = make([]Value, len(old.args))
			copy(cp.args, old.args)
			return &cp
		},
		ScanFields: func(h *Heaplet, hdr header, relocate func(*Value)) {
			t := hdr.(*typeHdr)
			relocate(&t.size)
			relocate(&t.signed)
			relocate(&t.etype)
			relocate(&t.bound)
			relocate(&t.name)
			for i := range t.fnames {
				relocate(&t.fnames[i])
				relocate(&t.ftypes[i])
			}
			relocate(&t.base)
			relocate(&t.unit)
			relocate(&t.ret)
			for i := range t.args {
				relocate(&t.args[i])
			}
		},
	}
}
