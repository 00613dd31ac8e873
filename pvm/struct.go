package pvm

// Structs are heterogeneous containers of named fields plus a method
// table. Each field records its bit offset relative to the IO space start,
// a modified flag used by writers, and one-deep stashed copies of both for
// the relocation protocol. An absent field (dropped by an optional-field
// constraint) keeps its slot with Null name and value; every traversal
// skips absent fields.

type structField struct {
	offset       Value // ULong bit offset, Null when never mapped
	offsetBack   Value
	name         Value // string, Null when the field is absent or anonymous
	value        Value
	modified     bool
	modifiedBack bool
}

type structMethod struct {
	name  Value // string
	value Value // closure
}

type structHdr struct {
	mapInfo     mapInfo
	mapInfoBack mapInfo
	mapper      Value
	writer      Value
	typ         Value
	fields      []structField
	methods     []structMethod
}

func fieldAbsent(f *structField) bool {
	return f.name == Null && f.value == Null
}

// MakeStruct creates a struct value of the given struct type, with nfields
// field slots and nmethods method slots, all initialized to Null. The
// struct starts unmapped and strict.
func (r *Runtime) MakeStruct(nfields, nmethods int, typ Value) Value {
	if r.TypeCode(typ) != TypeStruct {
		panic("pvm.MakeStruct: type is not a struct type")
	}
	if nfields < 0 || nmethods < 0 {
		panic("pvm.MakeStruct: negative slot count")
	}
	r.h.PushRootBlock()
	defer r.h.PopRootBlock()
	r.h.BlockRoot(&typ)
	zero := r.MakeULong(0, 64)
	r.h.BlockRoot(&zero)
	fields := make([]structField, nfields)
	for i := range fields {
		fields[i] = structField{offset: Null, offsetBack: Null, name: Null, value: Null}
	}
	methods := make([]structMethod, nmethods)
	for i := range methods {
		methods[i] = structMethod{name: Null, value: Null}
	}
	return r.h.alloc(KindStruct, &structHdr{
		mapInfo: mapInfo{strict: true, ios: Null, offset: zero},
		mapper:  Null,
		writer:  Null,
		typ:     typ,
		fields:  fields,
		methods: methods,
	})
}

// IsStruct reports whether v is a struct value.
func (r *Runtime) IsStruct(v Value) bool { return isKindInstance(r.h, v, KindStruct) }

func (r *Runtime) strct(v Value, what string) *structHdr {
	return r.h.hdrOf(v, KindStruct, what).(*structHdr)
}

// StructType returns the struct type of a struct value.
func (r *Runtime) StructType(v Value) Value { return r.strct(v, "pvm.StructType").typ }

// StructNumFields returns the number of field slots, absent ones included.
func (r *Runtime) StructNumFields(v Value) int {
	return len(r.strct(v, "pvm.StructNumFields").fields)
}

// StructNumMethods returns the number of method slots.
func (r *Runtime) StructNumMethods(v Value) int {
	return len(r.strct(v, "pvm.StructNumMethods").methods)
}

func (r *Runtime) field(v Value, i int, what string) *structField {
	h := r.strct(v, what)
	if i < 0 || i >= len(h.fields) {
		panic(what + ": field index out of range")
	}
	return &h.fields[i]
}

// StructFieldAbsent reports whether the field slot at index i is absent.
func (r *Runtime) StructFieldAbsent(v Value, i int) bool {
	return fieldAbsent(r.field(v, i, "pvm.StructFieldAbsent"))
}

// StructFieldName returns the name of the field at index i, or Null for an
// anonymous or absent field.
func (r *Runtime) StructFieldName(v Value, i int) Value {
	return r.field(v, i, "pvm.StructFieldName").name
}

// StructFieldValue returns the value of the field at index i.
func (r *Runtime) StructFieldValue(v Value, i int) Value {
	return r.field(v, i, "pvm.StructFieldValue").value
}

// StructFieldOffset returns the bit offset of the field at index i, as a
// ULong, or Null when the struct has never been mapped there.
func (r *Runtime) StructFieldOffset(v Value, i int) Value {
	return r.field(v, i, "pvm.StructFieldOffset").offset
}

// StructFieldModified reports whether the field at index i has been
// written since the last writer flush.
func (r *Runtime) StructFieldModified(v Value, i int) bool {
	return r.field(v, i, "pvm.StructFieldModified").modified
}

// InitStructField initializes the field slot at index i with a name
// (possibly Null for an anonymous field), a value and a bit offset.
func (r *Runtime) InitStructField(v Value, i int, name, value, offset Value) {
	f := r.field(v, i, "pvm.InitStructField")
	f.name = name
	f.value = value
	f.offset = offset
	f.offsetBack = Null
	f.modified = false
	f.modifiedBack = false
}

// AbsentStructField marks the field slot at index i absent.
func (r *Runtime) AbsentStructField(v Value, i int) {
	f := r.field(v, i, "pvm.AbsentStructField")
	f.name = Null
	f.value = Null
}

// SetStructFieldOffset sets the bit offset of the field at index i.
func (r *Runtime) SetStructFieldOffset(v Value, i int, offset Value) {
	r.field(v, i, "pvm.SetStructFieldOffset").offset = offset
}

// InitStructMethod initializes the method slot at index i.
func (r *Runtime) InitStructMethod(v Value, i int, name, closure Value) {
	h := r.strct(v, "pvm.InitStructMethod")
	if i < 0 || i >= len(h.methods) {
		panic("pvm.InitStructMethod: method index out of range")
	}
	h.methods[i] = structMethod{name: name, value: closure}
}

// StructRef returns the value of the field named name, searching present
// fields in declaration order. The boolean result is false when no present
// field carries the name.
func (r *Runtime) StructRef(v Value, name string) (Value, bool) {
	h := r.strct(v, "pvm.StructRef")
	for i := range h.fields {
		f := &h.fields[i]
		if fieldAbsent(f) || f.name == Null {
			continue
		}
		if r.StringValue(f.name) == name {
			return f.value, true
		}
	}
	return Null, false
}

// StructSet replaces the value of the field named name and marks it
// modified. It returns false when no present field carries the name.
func (r *Runtime) StructSet(v Value, name string, value Value) bool {
	h := r.strct(v, "pvm.StructSet")
	for i := range h.fields {
		f := &h.fields[i]
		if fieldAbsent(f) || f.name == Null {
			continue
		}
		if r.StringValue(f.name) == name {
			f.value = value
			f.modified = true
			return true
		}
	}
	return false
}

// StructRefMethod returns the closure of the method named name. The
// boolean result is false when the struct has no such method.
func (r *Runtime) StructRefMethod(v Value, name string) (Value, bool) {
	h := r.strct(v, "pvm.StructRefMethod")
	for i := range h.methods {
		m := &h.methods[i]
		if m.name == Null {
			continue
		}
		if r.StringValue(m.name) == name {
			return m.value, true
		}
	}
	return Null, false
}

func structWords(hdr *structHdr) int {
	return 7 + 6*len(hdr.fields) + 2*len(hdr.methods)
}

func structShape() *Shape {
	return &Shape{
		Name: "struct",
		Kind: KindStruct,
		IsInstance: func(h *Heaplet, v Value) bool {
			return isKindInstance(h, v, KindStruct)
		},
		SizeOf: func(hdr header) int { return structWords(hdr.(*structHdr)) },
		Copy: func(hdr header) header {
			old := hdr.(*structHdr)
			cp := *old
			cp.fields = make([]structField, len(old.fields))
			copy(cp.fields, old.fields)
			cp.methods = make([]structMethod, len(old.methods))
			copy(cp.methods, old.methods)
			return &cp
		},
		ScanFields: func(h *Heaplet, hdr header, relocate func(*Value)) {
			s := hdr.(*structHdr)
			relocate(&s.mapInfo.ios)
			relocate(&s.mapInfo.offset)
			relocate(&s.mapInfoBack.ios)
			relocate(&s.mapInfoBack.offset)
			relocate(&s.mapper)
			relocate(&s.writer)
			relocate(&s.typ)
			for i := range s.fields {
				relocate(&s.fields[i].offset)
				relocate(&s.fields[i].offsetBack)
				relocate(&s.fields[i].name)
				relocate(&s.fields[i].value)
			}
			for i := range s.methods {
				relocate(&s.methods[i].name)
				relocate(&s.methods[i].value)
			}
		},
	}
}
