package pvm

// Vectors are internal growable sequences of values with no mapping
// machinery attached. The runtime uses them for closure argument lists,
// environment frames and program parameter pools; they never surface as
// user-level arrays.

type vecHdr struct {
	elems []Value
}

// MakeVector creates a vector with the given initial capacity.
func (r *Runtime) MakeVector(capacity int) Value {
	if capacity < 0 {
		panic("pvm.MakeVector: negative capacity")
	}
	return r.h.alloc(KindVector, &vecHdr{elems: make([]Value, 0, capacity)})
}

// IsVector reports whether v is a vector value.
func (r *Runtime) IsVector(v Value) bool { return isKindInstance(r.h, v, KindVector) }

func (r *Runtime) vec(v Value, what string) *vecHdr {
	return r.h.hdrOf(v, KindVector, what).(*vecHdr)
}

// VectorLen returns the number of elements in a vector.
func (r *Runtime) VectorLen(v Value) int { return len(r.vec(v, "pvm.VectorLen").elems) }

// VectorAt returns the element at index i.
func (r *Runtime) VectorAt(v Value, i int) Value {
	h := r.vec(v, "pvm.VectorAt")
	if i < 0 || i >= len(h.elems) {
		panic("pvm.VectorAt: index out of range")
	}
	return h.elems[i]
}

// VectorSet replaces the element at index i.
func (r *Runtime) VectorSet(v Value, i int, elem Value) {
	h := r.vec(v, "pvm.VectorSet")
	if i < 0 || i >= len(h.elems) {
		panic("pvm.VectorSet: index out of range")
	}
	h.elems[i] = elem
}

// VectorPush appends an element.
func (r *Runtime) VectorPush(v Value, elem Value) {
	h := r.vec(v, "pvm.VectorPush")
	h.elems = append(h.elems, elem)
}

// VectorPop removes and returns the last element.
func (r *Runtime) VectorPop(v Value) Value {
	h := r.vec(v, "pvm.VectorPop")
	n := len(h.elems)
	if n == 0 {
		panic("pvm.VectorPop: empty vector")
	}
	elem := h.elems[n-1]
	h.elems[n-1] = Null
	h.elems = h.elems[:n-1]
	return elem
}

func vectorShape() *Shape {
	return &Shape{
		Name: "vector",
		Kind: KindVector,
		IsInstance: func(h *Heaplet, v Value) bool {
			return isKindInstance(h, v, KindVector)
		},
		SizeOf: func(hdr header) int { return 2 + len(hdr.(*vecHdr).elems) },
		Copy: func(hdr header) header {
			old := hdr.(*vecHdr)
			elems := make([]Value, len(old.elems), cap(old.elems))
			copy(elems, old.elems)
			return &vecHdr{elems: elems}
		},
		ScanFields: func(h *Heaplet, hdr header, relocate func(*Value)) {
			v := hdr.(*vecHdr)
			for i := range v.elems {
				relocate(&v.elems[i])
			}
		},
	}
}
