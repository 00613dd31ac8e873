package pvm

// Closures pair a program with the environment it was closed over. The
// entry index selects the program point execution starts at.

type clsHdr struct {
	name    Value // string, Null for an anonymous closure
	typ     Value // closure type
	env     Value // environment, Null until the closure is closed
	program Value
	entry   int
}

const closureWords = 5

// MakeClosure creates a closure over a program with the given closure
// type. The environment starts Null; see CloseClosure.
func (r *Runtime) MakeClosure(typ, program Value) Value {
	if r.TypeCode(typ) != TypeClosure {
		panic("pvm.MakeClosure: type is not a closure type")
	}
	r.h.PushRootBlock()
	defer r.h.PopRootBlock()
	r.h.BlockRoot(&typ)
	r.h.BlockRoot(&program)
	return r.h.alloc(KindClosure, &clsHdr{
		name: Null, typ: typ, env: Null, program: program,
	})
}

// IsClosure reports whether v is a closure value.
func (r *Runtime) IsClosure(v Value) bool { return isKindInstance(r.h, v, KindClosure) }

func (r *Runtime) cls(v Value, what string) *clsHdr {
	return r.h.hdrOf(v, KindClosure, what).(*clsHdr)
}

// ClosureType returns the closure type of a closure value.
func (r *Runtime) ClosureType(v Value) Value { return r.cls(v, "pvm.ClosureType").typ }

// ClosureProgram returns the program of a closure value.
func (r *Runtime) ClosureProgram(v Value) Value { return r.cls(v, "pvm.ClosureProgram").program }

// ClosureEnv returns the captured environment of a closure, or Null.
func (r *Runtime) ClosureEnv(v Value) Value { return r.cls(v, "pvm.ClosureEnv").env }

// CloseClosure captures env in the closure.
func (r *Runtime) CloseClosure(v, env Value) {
	r.cls(v, "pvm.CloseClosure").env = env
}

// ClosureName returns the name of a closure, or Null.
func (r *Runtime) ClosureName(v Value) Value { return r.cls(v, "pvm.ClosureName").name }

// SetClosureName names a closure.
func (r *Runtime) SetClosureName(v, name Value) {
	r.cls(v, "pvm.SetClosureName").name = name
}

// ClosureEntry returns the program point the closure starts at.
func (r *Runtime) ClosureEntry(v Value) int { return r.cls(v, "pvm.ClosureEntry").entry }

// SetClosureEntry sets the program point the closure starts at.
func (r *Runtime) SetClosureEntry(v Value, entry int) {
	r.cls(v, "pvm.SetClosureEntry").entry = entry
}

func closureShape() *Shape {
	return &Shape{
		Name: "closure",
		Kind: KindClosure,
		IsInstance: func(h *Heaplet, v Value) bool {
			return isKindInstance(h, v, KindClosure)
		},
		SizeOf: func(hdr header) int { return closureWords },
		Copy: func(hdr header) header {
			cp := *hdr.(*clsHdr)
			return &cp
		},
		ScanFields: func(h *Heaplet, hdr header, relocate func(*Value)) {
			c := hdr.(*clsHdr)
			relocate(&c.name)
			relocate(&c.typ)
			relocate(&c.env)
			relocate(&c.program)
		},
	}
}
