package pvm

// Arrays are homogeneous ordered containers. Each element records, next to
// its value, the bit offset of its data relative to the start of the IO
// space the array is mapped in, plus a one-deep stashed copy of that offset
// used by the relocation protocol.

type arrayElem struct {
	offset     Value // ULong bit offset, Null when never mapped
	offsetBack Value
	value      Value
}

type arrayHdr struct {
	mapInfo     mapInfo
	mapInfoBack mapInfo
	elemsBound  Value // integral bound on the number of elements, or Null
	sizeBound   Value // offset bound on the total size, or Null
	mapper      Value
	writer      Value
	typ         Value
	elems       []arrayElem
}

// Largest gap, in elements, that an out-of-bounds insertion is allowed to
// fill implicitly.
const maxInsertGap = 1024

// MakeArray creates an empty array of the given array type, with room
// reserved for nelem elements. The array starts unmapped and strict.
func (r *Runtime) MakeArray(nelem int, typ Value) Value {
	if r.TypeCode(typ) != TypeArray {
		panic("pvm.MakeArray: type is not an array type")
	}
	if nelem < 0 {
		nelem = 0
	}
	r.h.PushRootBlock()
	defer r.h.PopRootBlock()
	r.h.BlockRoot(&typ)
	zero := r.MakeULong(0, 64)
	r.h.BlockRoot(&zero)
	return r.h.alloc(KindArray, &arrayHdr{
		mapInfo:    mapInfo{strict: true, ios: Null, offset: zero},
		elemsBound: Null,
		sizeBound:  Null,
		mapper:     Null,
		writer:     Null,
		typ:        typ,
		elems:      make([]arrayElem, 0, nelem),
	})
}

// IsArray reports whether v is an array value.
func (r *Runtime) IsArray(v Value) bool { return isKindInstance(r.h, v, KindArray) }

func (r *Runtime) arr(v Value, what string) *arrayHdr {
	return r.h.hdrOf(v, KindArray, what).(*arrayHdr)
}

// ArrayLen returns the number of elements in an array.
func (r *Runtime) ArrayLen(v Value) int { return len(r.arr(v, "pvm.ArrayLen").elems) }

// ArrayType returns the array type of an array value.
func (r *Runtime) ArrayType(v Value) Value { return r.arr(v, "pvm.ArrayType").typ }

// ArrayElem returns the value of the element at index i.
func (r *Runtime) ArrayElem(v Value, i int) Value {
	h := r.arr(v, "pvm.ArrayElem")
	if i < 0 || i >= len(h.elems) {
		panic("pvm.ArrayElem: index out of range")
	}
	return h.elems[i].value
}

// ArrayElemOffset returns the bit offset of the element at index i, as a
// ULong, or Null if the array has never been mapped there.
func (r *Runtime) ArrayElemOffset(v Value, i int) Value {
	h := r.arr(v, "pvm.ArrayElemOffset")
	if i < 0 || i >= len(h.elems) {
		panic("pvm.ArrayElemOffset: index out of range")
	}
	return h.elems[i].offset
}

// SetArrayElemOffset sets the bit offset of the element at index i.
func (r *Runtime) SetArrayElemOffset(v Value, i int, offset Value) {
	h := r.arr(v, "pvm.SetArrayElemOffset")
	if i < 0 || i >= len(h.elems) {
		panic("pvm.SetArrayElemOffset: index out of range")
	}
	h.elems[i].offset = offset
}

// ArrayElemsBound returns the bound on the number of elements, or Null.
func (r *Runtime) ArrayElemsBound(v Value) Value {
	return r.arr(v, "pvm.ArrayElemsBound").elemsBound
}

// SetArrayElemsBound sets the bound on the number of elements.
func (r *Runtime) SetArrayElemsBound(v Value, bound Value) {
	r.arr(v, "pvm.SetArrayElemsBound").elemsBound = bound
}

// ArraySizeBound returns the bound on the total size, or Null.
func (r *Runtime) ArraySizeBound(v Value) Value {
	return r.arr(v, "pvm.ArraySizeBound").sizeBound
}

// SetArraySizeBound sets the bound on the total size.
func (r *Runtime) SetArraySizeBound(v Value, bound Value) {
	r.arr(v, "pvm.SetArraySizeBound").sizeBound = bound
}

// elemsEndBits returns the bit offset one past the last element, falling
// back to the array's own mapped offset when the array is empty.
func (r *Runtime) elemsEndBits(v Value) uint64 {
	h := r.arr(v, "pvm.elemsEndBits")
	if n := len(h.elems); n > 0 {
		last := h.elems[n-1]
		end, _, _ := r.IntegralValue(last.offset)
		return uint64(end) + r.SizeOfBits(last.value)
	}
	base, _, _ := r.IntegralValue(h.mapInfo.offset)
	return uint64(base)
}

// ArrayAppend appends a value to an array, assigning it the bit offset
// right after the current last element (or the array's base offset when
// empty).
func (r *Runtime) ArrayAppend(v Value, elem Value) {
	r.h.PushRootBlock()
	defer r.h.PopRootBlock()
	r.h.BlockRoot(&v)
	r.h.BlockRoot(&elem)
	off := r.MakeULong(r.elemsEndBits(v), 64)
	h := r.arr(v, "pvm.ArrayAppend")
	h.elems = append(h.elems, arrayElem{offset: off, offsetBack: Null, value: elem})
}

// ArrayInsert inserts a value at index idx, which must be at or past the
// current end of the array. Any gap between the current end and idx, at
// most maxInsertGap elements wide, is filled with copies of the value at
// consecutive offsets. It returns false when idx falls inside the array or
// the gap is too wide.
func (r *Runtime) ArrayInsert(v Value, idx int64, elem Value) bool {
	n := int64(r.ArrayLen(v))
	if idx < n {
		return false
	}
	if idx-n > maxInsertGap {
		return false
	}
	r.h.PushRootBlock()
	defer r.h.PopRootBlock()
	r.h.BlockRoot(&v)
	r.h.BlockRoot(&elem)
	step := r.SizeOfBits(elem)
	bits := r.elemsEndBits(v)
	for i := n; i <= idx; i++ {
		off := r.MakeULong(bits, 64)
		h := r.arr(v, "pvm.ArrayInsert")
		h.elems = append(h.elems, arrayElem{offset: off, offsetBack: Null, value: elem})
		bits += step
	}
	return true
}

// ArraySet replaces the element at index idx. When the new value has a
// different size the offsets of every subsequent element shift by the
// difference. It returns false when idx is out of range.
func (r *Runtime) ArraySet(v Value, idx int64, elem Value) bool {
	n := int64(r.ArrayLen(v))
	if idx < 0 || idx >= n {
		return false
	}
	r.h.PushRootBlock()
	defer r.h.PopRootBlock()
	r.h.BlockRoot(&v)
	r.h.BlockRoot(&elem)
	oldSize := r.SizeOfBits(r.ArrayElem(v, int(idx)))
	newSize := r.SizeOfBits(elem)
	r.arr(v, "pvm.ArraySet").elems[idx].value = elem
	if oldSize == newSize {
		return true
	}
	diff := int64(newSize) - int64(oldSize)
	for i := idx + 1; i < n; i++ {
		old := r.arr(v, "pvm.ArraySet").elems[i].offset
		if old == Null {
			continue
		}
		bits, _, _ := r.IntegralValue(old)
		shifted := r.MakeULong(uint64(bits+diff), 64)
		r.arr(v, "pvm.ArraySet").elems[i].offset = shifted
	}
	return true
}

// ArrayRemove deletes the element at index idx, shifting later elements
// down. Offsets of the survivors are left untouched. It returns false when
// idx is out of range.
func (r *Runtime) ArrayRemove(v Value, idx int64) bool {
	h := r.arr(v, "pvm.ArrayRemove")
	n := int64(len(h.elems))
	if idx < 0 || idx >= n {
		return false
	}
	copy(h.elems[idx:], h.elems[idx+1:])
	h.elems[n-1] = arrayElem{offset: Null, offsetBack: Null, value: Null}
	h.elems = h.elems[:n-1]
	return true
}

func arrayWords(hdr *arrayHdr) int {
	// Map info, bounds, closures, type and elements at three words each.
	return 8 + 3*len(hdr.elems)
}

func arrayShape() *Shape {
	return &Shape{
		Name: "array",
		Kind: KindArray,
		IsInstance: func(h *Heaplet, v Value) bool {
			return isKindInstance(h, v, KindArray)
		},
		SizeOf: func(hdr header) int { return arrayWords(hdr.(*arrayHdr)) },
		Copy: func(hdr header) header {
			old := hdr.(*arrayHdr)
			cp := *old
			cp.elems = make([]arrayElem, len(old.elems), cap(old.elems))
			copy(cp.elems, old.elems)
			return &cp
		},
		ScanFields: func(h *Heaplet, hdr header, relocate func(*Value)) {
			a := hdr.(*arrayHdr)
			relocate(&a.mapInfo.ios)
			relocate(&a.mapInfo.offset)
			relocate(&a.mapInfoBack.ios)
			relocate(&a.mapInfoBack.offset)
			relocate(&a.elemsBound)
			relocate(&a.sizeBound)
			relocate(&a.mapper)
			relocate(&a.writer)
			relocate(&a.typ)
			for i := range a.elems {
				relocate(&a.elems[i].offset)
				relocate(&a.elems[i].offsetBack)
				relocate(&a.elems[i].value)
			}
		},
	}
}
