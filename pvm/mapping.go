package pvm

// Containers (arrays and structs) carry mapping metadata tying the value to
// a region of an IO space. A fresh container is not mapped; mapping it sets
// the flag, the IO space identifier and the bit offset of the region. A
// second mapinfo slot holds exactly one stashed copy, saved by relocation
// and restored by its undo.

type mapInfo struct {
	mapped bool
	strict bool
	ios    Value // integral IO space identifier
	offset Value // ULong bit offset
}

func (r *Runtime) containerMapInfo(v Value, what string) (*mapInfo, *mapInfo) {
	o := r.h.deref(v)
	switch o.kind {
	case KindArray:
		hdr := o.hdr.(*arrayHdr)
		return &hdr.mapInfo, &hdr.mapInfoBack
	case KindStruct:
		hdr := o.hdr.(*structHdr)
		return &hdr.mapInfo, &hdr.mapInfoBack
	}
	panic(what + ": not a mappable value")
}

// IsMappable reports whether v carries mapping metadata.
func (r *Runtime) IsMappable(v Value) bool {
	k, ok := r.h.kindOf(v)
	return ok && (k == KindArray || k == KindStruct)
}

// Mapped reports whether a container value is currently mapped.
func (r *Runtime) Mapped(v Value) bool {
	mi, _ := r.containerMapInfo(v, "pvm.Mapped")
	return mi.mapped
}

// SetMapped sets or clears the mapped flag of a container value. It does
// not touch descendants; see Unmap for the recursive form.
func (r *Runtime) SetMapped(v Value, mapped bool) {
	mi, _ := r.containerMapInfo(v, "pvm.SetMapped")
	mi.mapped = mapped
}

// Strict reports whether a mapped container checks data integrity on
// access.
func (r *Runtime) Strict(v Value) bool {
	mi, _ := r.containerMapInfo(v, "pvm.Strict")
	return mi.strict
}

// SetStrict sets the strictness of a container value.
func (r *Runtime) SetStrict(v Value, strict bool) {
	mi, _ := r.containerMapInfo(v, "pvm.SetStrict")
	mi.strict = strict
}

// MappedIOS returns the IO space identifier a container is mapped in.
func (r *Runtime) MappedIOS(v Value) Value {
	mi, _ := r.containerMapInfo(v, "pvm.MappedIOS")
	return mi.ios
}

// SetMappedIOS sets the IO space identifier of a container value.
func (r *Runtime) SetMappedIOS(v Value, ios Value) {
	mi, _ := r.containerMapInfo(v, "pvm.SetMappedIOS")
	mi.ios = ios
}

// MappedOffset returns the bit offset a container is mapped at, as a ULong.
func (r *Runtime) MappedOffset(v Value) Value {
	mi, _ := r.containerMapInfo(v, "pvm.MappedOffset")
	return mi.offset
}

// SetMappedOffset sets the bit offset of a container value.
func (r *Runtime) SetMappedOffset(v Value, offset Value) {
	mi, _ := r.containerMapInfo(v, "pvm.SetMappedOffset")
	mi.offset = offset
}

// Mapper returns the mapping closure of a container, or Null.
func (r *Runtime) Mapper(v Value) Value {
	o := r.h.deref(v)
	switch o.kind {
	case KindArray:
		return o.hdr.(*arrayHdr).mapper
	case KindStruct:
		return o.hdr.(*structHdr).mapper
	}
	panic("pvm.Mapper: not a mappable value")
}

// SetMapper sets the mapping closure of a container.
func (r *Runtime) SetMapper(v Value, mapper Value) {
	o := r.h.deref(v)
	switch o.kind {
	case KindArray:
		o.hdr.(*arrayHdr).mapper = mapper
	case KindStruct:
		o.hdr.(*structHdr).mapper = mapper
	default:
		panic("pvm.SetMapper: not a mappable value")
	}
}

// Writer returns the writing closure of a container, or Null.
func (r *Runtime) Writer(v Value) Value {
	o := r.h.deref(v)
	switch o.kind {
	case KindArray:
		return o.hdr.(*arrayHdr).writer
	case KindStruct:
		return o.hdr.(*structHdr).writer
	}
	panic("pvm.Writer: not a mappable value")
}

// SetWriter sets the writing closure of a container.
func (r *Runtime) SetWriter(v Value, writer Value) {
	o := r.h.deref(v)
	switch o.kind {
	case KindArray:
		o.hdr.(*arrayHdr).writer = writer
	case KindStruct:
		o.hdr.(*structHdr).writer = writer
	default:
		panic("pvm.SetWriter: not a mappable value")
	}
}
