package pvm

import (
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// Value images: a serialized snapshot of a value graph, written in
// canonical CBOR. Boxed values become indices into a flat object table;
// unboxed values travel as their raw words. Loading an image rebuilds the
// graph in the target runtime's heaplet, so images move values between
// runtimes and across process restarts.

const (
	imageMagic   = "pvmimg"
	imageVersion = 1
)

var imageEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	imageEncMode = em
}

type wireParam struct {
	Kind  uint8  `cbor:"0,keyasint"`
	N     uint64 `cbor:"1,keyasint,omitempty"`
	Reg   int    `cbor:"2,keyasint,omitempty"`
	Label int    `cbor:"3,keyasint,omitempty"`
	Pool  int    `cbor:"4,keyasint,omitempty"`
}

type wireInsn struct {
	Name   string      `cbor:"0,keyasint"`
	Params []wireParam `cbor:"1,keyasint,omitempty"`
}

// wireObject is the flat on-wire form of one boxed object. The Vals, Ints
// and Bools slices carry kind-specific slot layouts; see the encode and
// decode switches for each kind's layout.
type wireObject struct {
	Kind   uint8      `cbor:"0,keyasint"`
	Width  int        `cbor:"1,keyasint,omitempty"`
	Int    int64      `cbor:"2,keyasint,omitempty"`
	Uint   uint64     `cbor:"3,keyasint,omitempty"`
	Bytes  []byte     `cbor:"4,keyasint,omitempty"`
	Vals   []uint64   `cbor:"5,keyasint,omitempty"`
	Ints   []int64    `cbor:"6,keyasint,omitempty"`
	Bools  []bool     `cbor:"7,keyasint,omitempty"`
	Insns  []wireInsn `cbor:"8,keyasint,omitempty"`
	Labels []int      `cbor:"9,keyasint,omitempty"`
}

type wireImage struct {
	Magic   string       `cbor:"0,keyasint"`
	Version int          `cbor:"1,keyasint"`
	Root    uint64       `cbor:"2,keyasint"`
	Objects []wireObject `cbor:"3,keyasint"`
}

// ---------------------------------------------------------------------------
// Encoding
// ---------------------------------------------------------------------------

type imageEncoder struct {
	r       *Runtime
	indices map[Value]uint32
	queue   []Value
	objects []wireObject
}

// WriteImage serializes the value graph rooted at root.
func (r *Runtime) WriteImage(w io.Writer, root Value) error {
	enc := &imageEncoder{r: r, indices: make(map[Value]uint32)}
	rootWord := enc.word(root)
	for len(enc.queue) > 0 {
		v := enc.queue[0]
		enc.queue = enc.queue[1:]
		enc.objects = append(enc.objects, enc.encode(v))
	}
	img := wireImage{
		Magic:   imageMagic,
		Version: imageVersion,
		Root:    rootWord,
		Objects: enc.objects,
	}
	data, err := imageEncMode.Marshal(img)
	if err != nil {
		return fmt.Errorf("pvm: encoding image: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("pvm: writing image: %w", err)
	}
	return nil
}

// word translates a Value to its wire form, enqueueing boxed values for
// encoding on first sight. On the wire a boxed value is a box word whose
// index points into the image object table and whose generation is zero.
func (e *imageEncoder) word(v Value) uint64 {
	if !isBoxValue(v) {
		return uint64(v)
	}
	idx, seen := e.indices[v]
	if !seen {
		idx = uint32(len(e.indices))
		e.indices[v] = idx
		e.queue = append(e.queue, v)
	}
	return uint64(makeBox(idx, 0, false))
}

func (e *imageEncoder) words(vs ...Value) []uint64 {
	out := make([]uint64, len(vs))
	for i, v := range vs {
		out[i] = e.word(v)
	}
	return out
}

func (e *imageEncoder) encode(v Value) wireObject {
	o := e.r.h.deref(v)
	w := wireObject{Kind: uint8(o.kind)}
	switch o.kind {
	case KindLong:
		hdr := o.hdr.(*longHdr)
		w.Width, w.Int = hdr.width, hdr.value
	case KindULong:
		hdr := o.hdr.(*ulongHdr)
		w.Width, w.Uint = hdr.width, hdr.value
	case KindString:
		w.Bytes = o.hdr.(*strHdr).data
	case KindOffset:
		hdr := o.hdr.(*offHdr)
		w.Vals = e.words(hdr.magnitude, hdr.typ)
	case KindArray:
		hdr := o.hdr.(*arrayHdr)
		w.Bools = []bool{
			hdr.mapInfo.mapped, hdr.mapInfo.strict,
			hdr.mapInfoBack.mapped, hdr.mapInfoBack.strict,
		}
		w.Vals = e.words(
			hdr.mapInfo.ios, hdr.mapInfo.offset,
			hdr.mapInfoBack.ios, hdr.mapInfoBack.offset,
			hdr.elemsBound, hdr.sizeBound, hdr.mapper, hdr.writer, hdr.typ,
		)
		for i := range hdr.elems {
			el := &hdr.elems[i]
			w.Vals = append(w.Vals, e.word(el.offset), e.word(el.offsetBack), e.word(el.value))
		}
	case KindStruct:
		hdr := o.hdr.(*structHdr)
		w.Ints = []int64{int64(len(hdr.fields)), int64(len(hdr.methods))}
		w.Bools = []bool{
			hdr.mapInfo.mapped, hdr.mapInfo.strict,
			hdr.mapInfoBack.mapped, hdr.mapInfoBack.strict,
		}
		w.Vals = e.words(
			hdr.mapInfo.ios, hdr.mapInfo.offset,
			hdr.mapInfoBack.ios, hdr.mapInfoBack.offset,
			hdr.mapper, hdr.writer, hdr.typ,
		)
		for i := range hdr.fields {
			f := &hdr.fields[i]
			w.Vals = append(w.Vals, e.word(f.offset), e.word(f.offsetBack),
				e.word(f.name), e.word(f.value))
			w.Bools = append(w.Bools, f.modified, f.modifiedBack)
		}
		for i := range hdr.methods {
			m := &hdr.methods[i]
			w.Vals = append(w.Vals, e.word(m.name), e.word(m.value))
		}
	case KindType:
		hdr := o.hdr.(*typeHdr)
		w.Ints = []int64{int64(hdr.code), int64(len(hdr.fnames)), int64(len(hdr.args))}
		w.Vals = e.words(hdr.size, hdr.signed, hdr.etype, hdr.bound,
			hdr.name, hdr.base, hdr.unit, hdr.ret)
		for _, f := range hdr.fnames {
			w.Vals = append(w.Vals, e.word(f))
		}
		for _, f := range hdr.ftypes {
			w.Vals = append(w.Vals, e.word(f))
		}
		for _, a := range hdr.args {
			w.Vals = append(w.Vals, e.word(a))
		}
	case KindClosure:
		hdr := o.hdr.(*clsHdr)
		w.Vals = e.words(hdr.name, hdr.typ, hdr.env, hdr.program)
		w.Ints = []int64{int64(hdr.entry)}
	case KindVector:
		hdr := o.hdr.(*vecHdr)
		w.Vals = e.words(hdr.elems...)
	case KindEnvironment:
		hdr := o.hdr.(*envHdr)
		w.Vals = e.words(hdr.vars, hdr.up)
	case KindProgram:
		hdr := o.hdr.(*prgHdr)
		w.Vals = e.words(hdr.pool)
		w.Bools = []bool{hdr.executable}
		w.Labels = hdr.labels
		w.Insns = make([]wireInsn, len(hdr.insns))
		for i := range hdr.insns {
			ins := &hdr.insns[i]
			wi := wireInsn{Name: ins.name}
			for _, p := range ins.params {
				wi.Params = append(wi.Params, wireParam{
					Kind: uint8(p.Kind), N: p.N, Reg: p.Reg,
					Label: p.Label, Pool: p.poolSlot,
				})
			}
			w.Insns[i] = wi
		}
	default:
		panic("pvm.WriteImage: unknown kind " + o.kind.String())
	}
	return w
}

// ---------------------------------------------------------------------------
// Decoding
// ---------------------------------------------------------------------------

// ReadImage deserializes a value graph into the runtime's heaplet and
// returns its root.
func (r *Runtime) ReadImage(rd io.Reader) (Value, error) {
	data, err := io.ReadAll(rd)
	if err != nil {
		return Null, fmt.Errorf("pvm: reading image: %w", err)
	}
	var img wireImage
	if err := cbor.Unmarshal(data, &img); err != nil {
		return Null, fmt.Errorf("pvm: decoding image: %w", err)
	}
	if img.Magic != imageMagic {
		return Null, fmt.Errorf("pvm: not a value image")
	}
	if img.Version != imageVersion {
		return Null, fmt.Errorf("pvm: unsupported image version %d", img.Version)
	}

	// First pass: allocate every object with its final layout and Null in
	// every value slot, so the table can be rooted while later
	// allocations collect.
	values := make([]Value, len(img.Objects))
	for i := range values {
		values[i] = Null
	}
	root := r.h.RegisterGlobalRoot(values)
	defer r.h.DeregisterGlobalRoot(root)

	for i := range img.Objects {
		v, err := r.decodeSkeleton(&img.Objects[i])
		if err != nil {
			return Null, err
		}
		values[i] = v
	}

	// Second pass: translate every wire word through the table. No
	// allocation happens here, so headers stay put.
	for i := range img.Objects {
		if err := r.decodeFill(&img.Objects[i], values[i], values); err != nil {
			return Null, err
		}
	}
	rv, err := wireWord(img.Root, values)
	if err != nil {
		return Null, err
	}
	return rv, nil
}

func wireWord(w uint64, values []Value) (Value, error) {
	v := Value(w)
	if !isBoxValue(v) {
		return v, nil
	}
	idx := boxIndex(v)
	if int(idx) >= len(values) {
		return Null, fmt.Errorf("pvm: image reference %d out of range", idx)
	}
	return values[idx], nil
}

func nullValues(n int) []Value {
	vs := make([]Value, n)
	for i := range vs {
		vs[i] = Null
	}
	return vs
}

func (r *Runtime) decodeSkeleton(w *wireObject) (Value, error) {
	kind := Kind(w.Kind)
	switch kind {
	case KindLong:
		if w.Width < 33 || w.Width > 64 {
			return Null, fmt.Errorf("pvm: image long of width %d", w.Width)
		}
		return r.h.alloc(kind, &longHdr{value: w.Int, width: w.Width}), nil
	case KindULong:
		if w.Width < 33 || w.Width > 64 {
			return Null, fmt.Errorf("pvm: image ulong of width %d", w.Width)
		}
		return r.h.alloc(kind, &ulongHdr{value: w.Uint, width: w.Width}), nil
	case KindString:
		data := make([]byte, len(w.Bytes))
		copy(data, w.Bytes)
		return r.h.alloc(kind, &strHdr{data: data}), nil
	case KindOffset:
		return r.h.alloc(kind, &offHdr{magnitude: Null, typ: Null}), nil
	case KindArray:
		if len(w.Vals) < 9 || (len(w.Vals)-9)%3 != 0 || len(w.Bools) != 4 {
			return Null, fmt.Errorf("pvm: malformed image array")
		}
		n := (len(w.Vals) - 9) / 3
		hdr := &arrayHdr{
			mapInfo:     mapInfo{ios: Null, offset: Null},
			mapInfoBack: mapInfo{ios: Null, offset: Null},
			elemsBound:  Null, sizeBound: Null, mapper: Null, writer: Null, typ: Null,
			elems: make([]arrayElem, n),
		}
		for i := range hdr.elems {
			hdr.elems[i] = arrayElem{offset: Null, offsetBack: Null, value: Null}
		}
		return r.h.alloc(kind, hdr), nil
	case KindStruct:
		if len(w.Ints) != 2 {
			return Null, fmt.Errorf("pvm: malformed image struct")
		}
		nf, nm := int(w.Ints[0]), int(w.Ints[1])
		if nf < 0 || nm < 0 ||
			len(w.Vals) != 7+4*nf+2*nm || len(w.Bools) != 4+2*nf {
			return Null, fmt.Errorf("pvm: malformed image struct")
		}
		hdr := &structHdr{
			mapInfo:     mapInfo{ios: Null, offset: Null},
			mapInfoBack: mapInfo{ios: Null, offset: Null},
			mapper:      Null, writer: Null, typ: Null,
			fields:  make([]structField, nf),
			methods: make([]structMethod, nm),
		}
		for i := range hdr.fields {
			hdr.fields[i] = structField{offset: Null, offsetBack: Null, name: Null, value: Null}
		}
		for i := range hdr.methods {
			hdr.methods[i] = structMethod{name: Null, value: Null}
		}
		return r.h.alloc(kind, hdr), nil
	case KindType:
		if len(w.Ints) != 3 {
			return Null, fmt.Errorf("pvm: malformed image type")
		}
		nf, na := int(w.Ints[1]), int(w.Ints[2])
		if nf < 0 || na < 0 || len(w.Vals) != 8+2*nf+na {
			return Null, fmt.Errorf("pvm: malformed image type")
		}
		return r.h.alloc(kind, &typeHdr{
			code: TypeCode(w.Ints[0]),
			size: Null, signed: Null, etype: Null, bound: Null, name: Null,
			base: Null, unit: Null, ret: Null,
			fnames: nullValues(nf), ftypes: nullValues(nf), args: nullValues(na),
		}), nil
	case KindClosure:
		if len(w.Vals) != 4 || len(w.Ints) != 1 {
			return Null, fmt.Errorf("pvm: malformed image closure")
		}
		return r.h.alloc(kind, &clsHdr{
			name: Null, typ: Null, env: Null, program: Null, entry: int(w.Ints[0]),
		}), nil
	case KindVector:
		return r.h.alloc(kind, &vecHdr{elems: nullValues(len(w.Vals))}), nil
	case KindEnvironment:
		if len(w.Vals) != 2 {
			return Null, fmt.Errorf("pvm: malformed image environment")
		}
		return r.h.alloc(kind, &envHdr{vars: Null, up: Null}), nil
	case KindProgram:
		if len(w.Vals) != 1 || len(w.Bools) != 1 {
			return Null, fmt.Errorf("pvm: malformed image program")
		}
		hdr := &prgHdr{
			pool:       Null,
			insns:      make([]instruction, len(w.Insns)),
			labels:     make([]int, len(w.Labels)),
			executable: w.Bools[0],
		}
		copy(hdr.labels, w.Labels)
		for i := range w.Insns {
			ins := instruction{name: w.Insns[i].Name}
			for _, p := range w.Insns[i].Params {
				ins.params = append(ins.params, Param{
					Kind: ParamKind(p.Kind), N: p.N, Reg: p.Reg,
					Label: p.Label, poolSlot: p.Pool,
				})
			}
			hdr.insns[i] = ins
		}
		return r.h.alloc(kind, hdr), nil
	}
	return Null, fmt.Errorf("pvm: image object of unknown kind %d", w.Kind)
}

func (r *Runtime) decodeFill(w *wireObject, v Value, values []Value) error {
	fill := func(dst *Value, word uint64) error {
		val, err := wireWord(word, values)
		if err != nil {
			return err
		}
		*dst = val
		return nil
	}
	fillAll := func(words []uint64, dsts ...*Value) error {
		for i, dst := range dsts {
			if err := fill(dst, words[i]); err != nil {
				return err
			}
		}
		return nil
	}
	o := r.h.deref(v)
	switch o.kind {
	case KindLong, KindULong, KindString:
		return nil
	case KindOffset:
		hdr := o.hdr.(*offHdr)
		if len(w.Vals) != 2 {
			return fmt.Errorf("pvm: malformed image offset")
		}
		return fillAll(w.Vals, &hdr.magnitude, &hdr.typ)
	case KindArray:
		hdr := o.hdr.(*arrayHdr)
		hdr.mapInfo.mapped, hdr.mapInfo.strict = w.Bools[0], w.Bools[1]
		hdr.mapInfoBack.mapped, hdr.mapInfoBack.strict = w.Bools[2], w.Bools[3]
		if err := fillAll(w.Vals,
			&hdr.mapInfo.ios, &hdr.mapInfo.offset,
			&hdr.mapInfoBack.ios, &hdr.mapInfoBack.offset,
			&hdr.elemsBound, &hdr.sizeBound, &hdr.mapper, &hdr.writer, &hdr.typ,
		); err != nil {
			return err
		}
		rest := w.Vals[9:]
		for i := range hdr.elems {
			el := &hdr.elems[i]
			if err := fillAll(rest[3*i:], &el.offset, &el.offsetBack, &el.value); err != nil {
				return err
			}
		}
		return nil
	case KindStruct:
		hdr := o.hdr.(*structHdr)
		hdr.mapInfo.mapped, hdr.mapInfo.strict = w.Bools[0], w.Bools[1]
		hdr.mapInfoBack.mapped, hdr.mapInfoBack.strict = w.Bools[2], w.Bools[3]
		if err := fillAll(w.Vals,
			&hdr.mapInfo.ios, &hdr.mapInfo.offset,
			&hdr.mapInfoBack.ios, &hdr.mapInfoBack.offset,
			&hdr.mapper, &hdr.writer, &hdr.typ,
		); err != nil {
			return err
		}
		rest := w.Vals[7:]
		for i := range hdr.fields {
			f := &hdr.fields[i]
			if err := fillAll(rest[4*i:], &f.offset, &f.offsetBack, &f.name, &f.value); err != nil {
				return err
			}
			f.modified = w.Bools[4+2*i]
			f.modifiedBack = w.Bools[4+2*i+1]
		}
		rest = rest[4*len(hdr.fields):]
		for i := range hdr.methods {
			m := &hdr.methods[i]
			if err := fillAll(rest[2*i:], &m.name, &m.value); err != nil {
				return err
			}
		}
		return nil
	case KindType:
		hdr := o.hdr.(*typeHdr)
		if err := fillAll(w.Vals,
			&hdr.size, &hdr.signed, &hdr.etype, &hdr.bound,
			&hdr.name, &hdr.base, &hdr.unit, &hdr.ret,
		); err != nil {
			return err
		}
		rest := w.Vals[8:]
		for i := range hdr.fnames {
			if err := fill(&hdr.fnames[i], rest[i]); err != nil {
				return err
			}
		}
		rest = rest[len(hdr.fnames):]
		for i := range hdr.ftypes {
			if err := fill(&hdr.ftypes[i], rest[i]); err != nil {
				return err
			}
		}
		rest = rest[len(hdr.ftypes):]
		for i := range hdr.args {
			if err := fill(&hdr.args[i], rest[i]); err != nil {
				return err
			}
		}
		return nil
	case KindClosure:
		hdr := o.hdr.(*clsHdr)
		return fillAll(w.Vals, &hdr.name, &hdr.typ, &hdr.env, &hdr.program)
	case KindVector:
		hdr := o.hdr.(*vecHdr)
		for i := range hdr.elems {
			if err := fill(&hdr.elems[i], w.Vals[i]); err != nil {
				return err
			}
		}
		return nil
	case KindEnvironment:
		hdr := o.hdr.(*envHdr)
		return fillAll(w.Vals, &hdr.vars, &hdr.up)
	case KindProgram:
		hdr := o.hdr.(*prgHdr)
		return fill(&hdr.pool, w.Vals[0])
	}
	return fmt.Errorf("pvm: image object of unknown kind %d", w.Kind)
}
