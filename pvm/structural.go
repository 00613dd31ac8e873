package pvm

import (
	"fmt"
	"strconv"
	"strings"
)

// Structural operations over whole value graphs: size, type, equality, the
// mapped-value relocation protocol and printing.

// SizeOfBits returns the size of a value in bits, as its IO space data
// occupancy:
//
//   - integers occupy their declared width,
//   - strings occupy one byte per content byte plus the terminator,
//   - arrays occupy the sum of their element sizes,
//   - structs accumulate over present fields: a field with a recorded
//     offset extends the size to its end relative to the struct base
//     (0 when the struct has no base offset), a field without one adds
//     its own size,
//   - offsets occupy the size of their magnitude,
//   - types, closures, programs, environments, vectors and Null occupy
//     nothing.
func (r *Runtime) SizeOfBits(v Value) uint64 {
	if IsInt(v) {
		return uint64(IntWidth(v))
	}
	if IsUint(v) {
		return uint64(UintWidth(v))
	}
	k, ok := r.h.kindOf(v)
	if !ok {
		return 0
	}
	switch k {
	case KindLong:
		return uint64(r.LongWidth(v))
	case KindULong:
		return uint64(r.ULongWidth(v))
	case KindString:
		return uint64(r.StringLen(v)+1) * 8
	case KindOffset:
		return r.SizeOfBits(r.OffsetMagnitude(v))
	case KindArray:
		var total uint64
		for i, n := 0, r.ArrayLen(v); i < n; i++ {
			total += r.SizeOfBits(r.ArrayElem(v, i))
		}
		return total
	case KindStruct:
		return r.structSizeBits(v)
	}
	return 0
}

func (r *Runtime) structSizeBits(v Value) uint64 {
	h := r.strct(v, "pvm.SizeOfBits")
	var base uint64
	if h.mapInfo.offset != Null {
		b, _, _ := r.IntegralValue(h.mapInfo.offset)
		base = uint64(b)
	}
	var size uint64
	for i := range h.fields {
		f := &h.fields[i]
		if fieldAbsent(f) {
			continue
		}
		fsize := r.SizeOfBits(f.value)
		if f.offset == Null {
			size += fsize
			continue
		}
		off, _, _ := r.IntegralValue(f.offset)
		if end := uint64(off) - base + fsize; end > size {
			size = end
		}
	}
	return size
}

// TypeOf returns the type value of v. Integral values get the interned
// integral type of their width and signedness; containers return the type
// they were built with; Null and types themselves have no type and return
// Null.
func (r *Runtime) TypeOf(v Value) Value {
	if IsInt(v) {
		return r.MakeIntegralType(IntWidth(v), true)
	}
	if IsUint(v) {
		return r.MakeIntegralType(UintWidth(v), false)
	}
	k, ok := r.h.kindOf(v)
	if !ok {
		return Null
	}
	switch k {
	case KindLong:
		return r.MakeIntegralType(r.LongWidth(v), true)
	case KindULong:
		return r.MakeIntegralType(r.ULongWidth(v), false)
	case KindString:
		return r.StringType()
	case KindOffset:
		return r.OffsetType(v)
	case KindArray:
		return r.ArrayType(v)
	case KindStruct:
		return r.StructType(v)
	case KindClosure:
		return r.ClosureType(v)
	}
	return Null
}

// ElemsOf returns the number of elements of an array, present fields of a
// struct, or bytes of a string. Every other value counts as one element.
func (r *Runtime) ElemsOf(v Value) int {
	k, ok := r.h.kindOf(v)
	if !ok {
		return 1
	}
	switch k {
	case KindArray:
		return r.ArrayLen(v)
	case KindStruct:
		h := r.strct(v, "pvm.ElemsOf")
		present := 0
		for i := range h.fields {
			if !fieldAbsent(&h.fields[i]) {
				present++
			}
		}
		return present
	case KindString:
		return r.StringLen(v)
	}
	return 1
}

// ---------------------------------------------------------------------------
// Equality
// ---------------------------------------------------------------------------

// Equal reports structural equality of two values. Integers compare by
// width and payload; strings by contents; offsets by unit and magnitude;
// arrays and structs recursively, type, placement (ios and offsets) and
// bounds included; type values by TypeEqual. Closures, programs,
// environments and vectors compare by identity only.
func (r *Runtime) Equal(a, b Value) bool {
	if a == b {
		return true
	}
	if !isBoxValue(a) || !isBoxValue(b) {
		// Unboxed values are canonical, so distinct words differ.
		return false
	}
	ka := r.h.deref(a).kind
	kb := r.h.deref(b).kind
	if ka != kb {
		return false
	}
	switch ka {
	case KindLong:
		return r.LongWidth(a) == r.LongWidth(b) && r.LongValue(a) == r.LongValue(b)
	case KindULong:
		return r.ULongWidth(a) == r.ULongWidth(b) && r.ULongValue(a) == r.ULongValue(b)
	case KindString:
		return r.StringValue(a) == r.StringValue(b)
	case KindOffset:
		return r.OffsetUnit(a) == r.OffsetUnit(b) &&
			r.Equal(r.OffsetMagnitude(a), r.OffsetMagnitude(b))
	case KindArray:
		return r.arrayEqual(a, b)
	case KindStruct:
		return r.structEqual(a, b)
	case KindType:
		return r.TypeEqual(a, b)
	}
	// Closures, programs, environments and vectors: identity only, and
	// a == b already failed.
	return false
}

// arrayEqual compares arrays including their placement: type, ios, base
// offset, bounds, and every element's value and offset.
func (r *Runtime) arrayEqual(a, b Value) bool {
	ha := r.arr(a, "pvm.Equal")
	hb := r.arr(b, "pvm.Equal")
	if !r.TypeEqual(ha.typ, hb.typ) {
		return false
	}
	if !r.Equal(ha.mapInfo.ios, hb.mapInfo.ios) ||
		!r.Equal(ha.mapInfo.offset, hb.mapInfo.offset) {
		return false
	}
	if !r.Equal(ha.elemsBound, hb.elemsBound) ||
		!r.Equal(ha.sizeBound, hb.sizeBound) {
		return false
	}
	if len(ha.elems) != len(hb.elems) {
		return false
	}
	for i := range ha.elems {
		if !r.Equal(ha.elems[i].value, hb.elems[i].value) {
			return false
		}
		if !r.Equal(ha.elems[i].offset, hb.elems[i].offset) {
			return false
		}
	}
	return true
}

// structEqual compares structs including their placement: type, ios, base
// offset, every present field's name, value and offset, and every method's
// name (bodies are not compared).
func (r *Runtime) structEqual(a, b Value) bool {
	ha := r.strct(a, "pvm.Equal")
	hb := r.strct(b, "pvm.Equal")
	if !r.TypeEqual(ha.typ, hb.typ) {
		return false
	}
	if !r.Equal(ha.mapInfo.ios, hb.mapInfo.ios) ||
		!r.Equal(ha.mapInfo.offset, hb.mapInfo.offset) {
		return false
	}
	if len(ha.fields) != len(hb.fields) || len(ha.methods) != len(hb.methods) {
		return false
	}
	for i := range ha.fields {
		fa, fb := &ha.fields[i], &hb.fields[i]
		if fieldAbsent(fa) != fieldAbsent(fb) {
			return false
		}
		if fieldAbsent(fa) {
			continue
		}
		if !r.Equal(fa.name, fb.name) {
			return false
		}
		if !r.Equal(fa.value, fb.value) {
			return false
		}
		if !r.Equal(fa.offset, fb.offset) {
			return false
		}
	}
	for i := range ha.methods {
		if !r.Equal(ha.methods[i].name, hb.methods[i].name) {
			return false
		}
	}
	return true
}

// ---------------------------------------------------------------------------
// Relocation
// ---------------------------------------------------------------------------

// Reloc re-homes a mapped container to a new IO space and bit offset,
// stashing the previous placement so Ureloc can restore it. Every element
// and present field gets a new offset preserving its distance from the
// container base, recursively; struct fields are additionally marked
// modified so a later writer flush re-emits them at their new home. Exactly
// one level of stashing is kept: a second Reloc before Ureloc overwrites
// the stash. Non-container values are left untouched.
func (r *Runtime) Reloc(v, ios, boffset Value) {
	r.h.PushRootBlock()
	defer r.h.PopRootBlock()
	r.h.BlockRoot(&v)
	r.h.BlockRoot(&ios)
	r.h.BlockRoot(&boffset)
	r.relocValue(v, ios, boffset)
}

func (r *Runtime) relocValue(v, ios, boffset Value) {
	k, ok := r.h.kindOf(v)
	if !ok {
		return
	}
	switch k {
	case KindArray:
		oldBase, _, _ := r.IntegralValue(r.arr(v, "pvm.Reloc").mapInfo.offset)
		newBase, _, _ := r.IntegralValue(boffset)
		for i, n := 0, r.ArrayLen(v); i < n; i++ {
			// Re-resolve the header each round: the offset allocation
			// below can trigger a collection that moves it.
			a := r.arr(v, "pvm.Reloc")
			old := a.elems[i].offset
			if old == Null {
				continue
			}
			oldBits, _, _ := r.IntegralValue(old)
			noff := r.MakeULong(uint64(newBase+(oldBits-oldBase)), 64)
			a = r.arr(v, "pvm.Reloc")
			a.elems[i].offsetBack = old
			a.elems[i].offset = noff
			r.relocValue(a.elems[i].value, ios, noff)
		}
		a := r.arr(v, "pvm.Reloc")
		a.mapInfoBack = a.mapInfo
		a.mapInfo.mapped = true
		a.mapInfo.ios = ios
		a.mapInfo.offset = boffset
	case KindStruct:
		oldBase, _, _ := r.IntegralValue(r.strct(v, "pvm.Reloc").mapInfo.offset)
		newBase, _, _ := r.IntegralValue(boffset)
		for i, n := 0, r.StructNumFields(v); i < n; i++ {
			s := r.strct(v, "pvm.Reloc")
			f := &s.fields[i]
			if fieldAbsent(f) || f.offset == Null {
				continue
			}
			old := f.offset
			oldBits, _, _ := r.IntegralValue(old)
			noff := r.MakeULong(uint64(newBase+(oldBits-oldBase)), 64)
			s = r.strct(v, "pvm.Reloc")
			f = &s.fields[i]
			f.offsetBack = old
			f.offset = noff
			f.modifiedBack = f.modified
			f.modified = true
			r.relocValue(f.value, ios, noff)
		}
		s := r.strct(v, "pvm.Reloc")
		s.mapInfoBack = s.mapInfo
		s.mapInfo.mapped = true
		s.mapInfo.ios = ios
		s.mapInfo.offset = boffset
	}
}

// Ureloc undoes the most recent Reloc of a container, restoring the
// stashed mapping state, element and field offsets and field modified
// flags, recursively. Ureloc never allocates.
func (r *Runtime) Ureloc(v Value) {
	k, ok := r.h.kindOf(v)
	if !ok {
		return
	}
	switch k {
	case KindArray:
		a := r.arr(v, "pvm.Ureloc")
		for i := range a.elems {
			e := &a.elems[i]
			if e.offsetBack == Null {
				continue
			}
			e.offset = e.offsetBack
			r.Ureloc(e.value)
		}
		a.mapInfo = a.mapInfoBack
	case KindStruct:
		s := r.strct(v, "pvm.Ureloc")
		for i := range s.fields {
			f := &s.fields[i]
			if fieldAbsent(f) || f.offsetBack == Null {
				continue
			}
			f.offset = f.offsetBack
			f.modified = f.modifiedBack
			r.Ureloc(f.value)
		}
		s.mapInfo = s.mapInfoBack
	}
}

// Unmap clears the mapped flag of a container and, recursively, of every
// container reachable through it. Offsets and IO space identifiers are
// left in place so the value still remembers where it came from.
func (r *Runtime) Unmap(v Value) {
	k, ok := r.h.kindOf(v)
	if !ok {
		return
	}
	switch k {
	case KindArray:
		a := r.arr(v, "pvm.Unmap")
		a.mapInfo.mapped = false
		for i := range a.elems {
			r.Unmap(a.elems[i].value)
		}
	case KindStruct:
		s := r.strct(v, "pvm.Unmap")
		s.mapInfo.mapped = false
		for i := range s.fields {
			if fieldAbsent(&s.fields[i]) {
				continue
			}
			r.Unmap(s.fields[i].value)
		}
	}
}

// ---------------------------------------------------------------------------
// Printing
// ---------------------------------------------------------------------------

// FormatValue renders a value for diagnostics and disassembly.
func (r *Runtime) FormatValue(v Value) string {
	if v == Null {
		return "null"
	}
	if IsInt(v) {
		return fmt.Sprintf("%d#i%d", IntValue(v), IntWidth(v))
	}
	if IsUint(v) {
		return fmt.Sprintf("%d#u%d", UintValue(v), UintWidth(v))
	}
	switch k, _ := r.h.kindOf(v); k {
	case KindLong:
		return fmt.Sprintf("%d#i%d", r.LongValue(v), r.LongWidth(v))
	case KindULong:
		return fmt.Sprintf("%d#u%d", r.ULongValue(v), r.ULongWidth(v))
	case KindString:
		return strconv.Quote(r.StringValue(v))
	case KindOffset:
		return fmt.Sprintf("%s#%db", r.FormatValue(r.OffsetMagnitude(v)), r.OffsetUnit(v))
	case KindArray:
		var b strings.Builder
		b.WriteByte('[')
		for i, n := 0, r.ArrayLen(v); i < n; i++ {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(r.FormatValue(r.ArrayElem(v, i)))
		}
		b.WriteByte(']')
		return b.String()
	case KindStruct:
		var b strings.Builder
		if name := r.TypeStructName(r.StructType(v)); name != Null {
			b.WriteString(r.StringValue(name))
			b.WriteByte(' ')
		}
		b.WriteByte('{')
		first := true
		for i, n := 0, r.StructNumFields(v); i < n; i++ {
			if r.StructFieldAbsent(v, i) {
				continue
			}
			if !first {
				b.WriteByte(',')
			}
			first = false
			if name := r.StructFieldName(v, i); name != Null {
				b.WriteString(r.StringValue(name))
				b.WriteByte('=')
			}
			b.WriteString(r.FormatValue(r.StructFieldValue(v, i)))
		}
		b.WriteByte('}')
		return b.String()
	case KindType:
		return "#<type:" + r.TypeCode(v).String() + ">"
	case KindClosure:
		if name := r.ClosureName(v); name != Null {
			return "#<closure:" + r.StringValue(name) + ">"
		}
		return "#<closure>"
	case KindVector:
		return fmt.Sprintf("#<vector:%d>", r.VectorLen(v))
	case KindEnvironment:
		return "#<environment>"
	case KindProgram:
		return fmt.Sprintf("#<program:%d>", r.ProgramNumInstructions(v))
	}
	return "#<unknown>"
}
