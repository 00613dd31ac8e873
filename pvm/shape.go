package pvm

import "fmt"

// header is the kind-specific payload of a boxed object. Each kind defines
// its own header struct; the shape table tells the collector how to handle
// it without any per-kind collector code.
type header interface{}

// Shape describes one boxed kind to the collector.
type Shape struct {
	// Name of the kind, for diagnostics.
	Name string

	// Kind is the kind code this shape recognizes. Predicates across
	// shapes are mutually exclusive by construction: the table refuses a
	// second shape for the same code.
	Kind Kind

	// IsInstance recognizes values of this kind.
	IsInstance func(h *Heaplet, v Value) bool

	// SizeOf returns the object's cost in words, variable-length payloads
	// (string buffers, element and field vectors) included.
	SizeOf func(hdr header) int

	// Copy produces the relocated header for a surviving object. The
	// external storage owned by the old header travels to the copy;
	// finalization bookkeeping is re-armed on the copy and disarmed on
	// the stale original by the collector itself.
	Copy func(hdr header) header

	// ScanFields visits every Value-typed field of the header, including
	// variable-length field/element vectors, asking the collector to
	// relocate each.
	ScanFields func(h *Heaplet, hdr header, relocate func(*Value))

	// Finalize releases externally owned storage once the collector has
	// proven the object unreachable. Nil for kinds owning nothing.
	Finalize func(hdr header)
}

// ShapeTable maps kind codes to shapes. It is populated once when a Runtime
// is created and immutable afterwards.
type ShapeTable struct {
	shapes [numKinds]*Shape
	sealed bool
}

// NewShapeTable returns an empty, unsealed shape table.
func NewShapeTable() *ShapeTable {
	return &ShapeTable{}
}

// Register installs a shape. Panics if the table is sealed, if a shape for
// the same kind already exists, or if a mandatory hook is missing; all of
// these are design-time errors, not runtime conditions.
func (st *ShapeTable) Register(s *Shape) {
	if st.sealed {
		panic("pvm.ShapeTable.Register: table is sealed")
	}
	if s.Kind >= numKinds {
		panic(fmt.Sprintf("pvm.ShapeTable.Register: bad kind code %d", s.Kind))
	}
	if st.shapes[s.Kind] != nil {
		panic(fmt.Sprintf("pvm.ShapeTable.Register: duplicate shape for kind %s", s.Kind))
	}
	if s.IsInstance == nil || s.SizeOf == nil || s.Copy == nil || s.ScanFields == nil {
		panic(fmt.Sprintf("pvm.ShapeTable.Register: shape %q is missing a mandatory hook", s.Name))
	}
	st.shapes[s.Kind] = s
}

// Seal marks the table immutable. Panics if any kind is uncovered.
func (st *ShapeTable) Seal() {
	for k := Kind(0); k < numKinds; k++ {
		if st.shapes[k] == nil {
			panic(fmt.Sprintf("pvm.ShapeTable.Seal: no shape registered for kind %s", k))
		}
	}
	st.sealed = true
}

func (st *ShapeTable) shapeFor(k Kind) *Shape {
	s := st.shapes[k]
	if s == nil {
		panic(fmt.Sprintf("pvm: no shape for kind %s", k))
	}
	return s
}

// newShapeTable builds and seals the canonical table covering every boxed
// kind. Unboxed kinds bypass the table via the tag test in isBoxValue.
func newShapeTable() *ShapeTable {
	st := NewShapeTable()
	st.Register(longShape())
	st.Register(ulongShape())
	st.Register(stringShape())
	st.Register(offsetShape())
	st.Register(arrayShape())
	st.Register(structShape())
	st.Register(typeShape())
	st.Register(closureShape())
	st.Register(vectorShape())
	st.Register(environmentShape())
	st.Register(programShape())
	st.Seal()
	return st
}

// isKindInstance is the common predicate backing every shape's IsInstance.
func isKindInstance(h *Heaplet, v Value, k Kind) bool {
	got, ok := h.kindOf(v)
	return ok && got == k
}
