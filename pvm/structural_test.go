package pvm

import "testing"

func newTestRuntime(t *testing.T) *Runtime {
	t.Helper()
	rt := New(Config{})
	t.Cleanup(rt.Shutdown)
	return rt
}

// buildArray makes an int<8>[] with the given elements, mapped at
// (ios, boff) so that element offsets run consecutively from boff.
func buildArray(rt *Runtime, ios Value, boff uint64, elems ...int32) Value {
	h := rt.Heaplet()
	h.PushRootBlock()
	defer h.PopRootBlock()
	etype := rt.MakeIntegralType(8, true)
	h.BlockRoot(&etype)
	atype := rt.MakeArrayType(etype, Null)
	h.BlockRoot(&atype)
	arr := rt.MakeArray(len(elems), atype)
	h.BlockRoot(&arr)
	off := rt.MakeULong(boff, 64)
	h.BlockRoot(&off)
	rt.SetMappedIOS(arr, ios)
	rt.SetMappedOffset(arr, off)
	rt.SetMapped(arr, true)
	for _, e := range elems {
		rt.ArrayAppend(arr, MakeInt(e, 8))
	}
	return arr
}

func TestSizeOf(t *testing.T) {
	rt := newTestRuntime(t)
	h := rt.Heaplet()
	h.PushRootBlock()
	defer h.PopRootBlock()

	if got := rt.SizeOfBits(MakeInt(-3, 5)); got != 5 {
		t.Errorf("sizeof int<5> = %d", got)
	}
	if got := rt.SizeOfBits(rt.MakeULong(0, 48)); got != 48 {
		t.Errorf("sizeof uint<48> = %d", got)
	}
	s := rt.MakeString("abc")
	h.BlockRoot(&s)
	if got := rt.SizeOfBits(s); got != 32 {
		t.Errorf("sizeof \"abc\" = %d, want (3+1)*8", got)
	}
	arr := buildArray(rt, MakeInt(0, 32), 0, 1, 2, 3)
	h.BlockRoot(&arr)
	if got := rt.SizeOfBits(arr); got != 24 {
		t.Errorf("sizeof int<8>[3] = %d", got)
	}
	if got := rt.SizeOfBits(rt.StringType()); got != 0 {
		t.Errorf("sizeof of a type = %d", got)
	}
	if got := rt.SizeOfBits(Null); got != 0 {
		t.Errorf("sizeof null = %d", got)
	}

	if got := rt.ElemsOf(arr); got != 3 {
		t.Errorf("elemsof array = %d", got)
	}
	if got := rt.ElemsOf(s); got != 3 {
		t.Errorf("elemsof string = %d", got)
	}
	if got := rt.ElemsOf(MakeInt(1, 8)); got != 1 {
		t.Errorf("elemsof int = %d", got)
	}
}

func TestSizeOfStructUnion(t *testing.T) {
	rt := newTestRuntime(t)
	h := rt.Heaplet()
	h.PushRootBlock()
	defer h.PopRootBlock()

	name := rt.MakeString("U")
	h.BlockRoot(&name)
	fname := rt.MakeString("a")
	h.BlockRoot(&fname)
	gname := rt.MakeString("b")
	h.BlockRoot(&gname)
	i32 := rt.MakeIntegralType(32, true)
	styp := rt.MakeStructType(name, []Value{fname, gname}, []Value{i32, i32})
	h.BlockRoot(&styp)

	sct := rt.MakeStruct(2, 0, styp)
	h.BlockRoot(&sct)

	// Fields without recorded offsets add up.
	rt.InitStructField(sct, 0, fname, MakeInt(1, 32), Null)
	rt.InitStructField(sct, 1, gname, MakeInt(2, 32), Null)
	if got := rt.SizeOfBits(sct); got != 64 {
		t.Errorf("offsetless struct size = %d, want sum 64", got)
	}

	// Both fields at the same offset: a union spans one field. Field
	// offsets count even when the struct was never mapped; the base
	// defaults to zero when the struct carries no offset of its own.
	off := rt.MakeULong(128, 64)
	h.BlockRoot(&off)
	rt.SetStructFieldOffset(sct, 0, off)
	rt.SetStructFieldOffset(sct, 1, off)
	base := rt.MakeULong(128, 64)
	h.BlockRoot(&base)
	rt.SetMappedOffset(sct, base)
	if got := rt.SizeOfBits(sct); got != 32 {
		t.Errorf("union struct size = %d, want span 32", got)
	}

	// A positioned field and an offsetless one: the latter still adds
	// its own size on top of the span.
	rt.SetStructFieldOffset(sct, 1, Null)
	if got := rt.SizeOfBits(sct); got != 64 {
		t.Errorf("mixed struct size = %d, want 64", got)
	}
	rt.SetStructFieldOffset(sct, 1, off)

	// Absent fields do not count, in sizes or element counts.
	rt.AbsentStructField(sct, 1)
	if got := rt.SizeOfBits(sct); got != 32 {
		t.Errorf("struct size with absent field = %d", got)
	}
	if got := rt.ElemsOf(sct); got != 1 {
		t.Errorf("ElemsOf with absent field = %d, want 1", got)
	}
}

func TestEqualStructural(t *testing.T) {
	rt := newTestRuntime(t)
	h := rt.Heaplet()
	h.PushRootBlock()
	defer h.PopRootBlock()

	// Unboxed integers compare by width and payload.
	if !rt.Equal(MakeInt(5, 8), MakeInt(5, 8)) {
		t.Error("equal ints differ")
	}
	if rt.Equal(MakeInt(5, 8), MakeInt(5, 16)) {
		t.Error("widths must distinguish ints")
	}
	if rt.Equal(MakeInt(5, 8), MakeUint(5, 8)) {
		t.Error("signedness must distinguish ints")
	}

	// Boxed longs compare by width and payload, not identity.
	a := rt.MakeLong(-7, 40)
	h.BlockRoot(&a)
	b := rt.MakeLong(-7, 40)
	h.BlockRoot(&b)
	if !rt.Equal(a, b) {
		t.Error("equal longs differ")
	}
	c := rt.MakeLong(-7, 48)
	h.BlockRoot(&c)
	if rt.Equal(a, c) {
		t.Error("widths must distinguish longs")
	}

	// Strings compare by contents.
	s1 := rt.MakeString("hello")
	h.BlockRoot(&s1)
	s2 := rt.MakeString("hello")
	h.BlockRoot(&s2)
	if !rt.Equal(s1, s2) {
		t.Error("equal strings differ")
	}

	// Arrays compare recursively, placement included: two independently
	// built arrays with the same type, ios, offsets and elements are
	// equal despite being distinct heap objects.
	x := buildArray(rt, MakeInt(1, 32), 64, 1, 2, 3)
	h.BlockRoot(&x)
	y := buildArray(rt, MakeInt(1, 32), 64, 1, 2, 3)
	h.BlockRoot(&y)
	if !rt.Equal(x, y) {
		t.Error("independently built identical arrays differ")
	}
	z := buildArray(rt, MakeInt(7, 32), 64, 1, 2, 3)
	h.BlockRoot(&z)
	if rt.Equal(x, z) {
		t.Error("arrays mapped in different IO spaces compare equal")
	}
	rt.ArraySet(y, 2, MakeInt(4, 8))
	if rt.Equal(x, y) {
		t.Error("arrays with different elements compare equal")
	}

	// Closures compare by identity only.
	prog := rt.MakeProgram()
	h.BlockRoot(&prog)
	ctyp := rt.MakeClosureType(rt.VoidType(), nil)
	h.BlockRoot(&ctyp)
	c1 := rt.MakeClosure(ctyp, prog)
	h.BlockRoot(&c1)
	c2 := rt.MakeClosure(ctyp, prog)
	h.BlockRoot(&c2)
	if !rt.Equal(c1, c1) {
		t.Error("a closure must equal itself")
	}
	if rt.Equal(c1, c2) {
		t.Error("distinct closures compare equal")
	}
}

func TestTypeEqual(t *testing.T) {
	rt := newTestRuntime(t)
	h := rt.Heaplet()
	h.PushRootBlock()
	defer h.PopRootBlock()

	i32 := rt.MakeIntegralType(32, true)
	u32 := rt.MakeIntegralType(32, false)
	i16 := rt.MakeIntegralType(16, true)
	if !rt.TypeEqual(i32, rt.MakeIntegralType(32, true)) {
		t.Error("int<32> != int<32>")
	}
	if rt.TypeEqual(i32, u32) || rt.TypeEqual(i32, i16) {
		t.Error("integral types must compare by width and signedness")
	}
	if rt.MakeIntegralType(32, true) != i32 {
		t.Error("integral types must be interned")
	}

	if !rt.TypeEqual(rt.StringType(), rt.StringType()) {
		t.Error("string type != string type")
	}

	// Arrays: element type decides; a Null element type matches only Null.
	a1 := rt.MakeArrayType(i32, Null)
	h.BlockRoot(&a1)
	a2 := rt.MakeArrayType(i32, MakeUint(10, 32))
	h.BlockRoot(&a2)
	anull := rt.MakeArrayType(Null, Null)
	h.BlockRoot(&anull)
	if !rt.TypeEqual(a1, a2) {
		t.Error("array bounds must not matter for type equality")
	}
	if rt.TypeEqual(a1, anull) {
		t.Error("typed and anytype arrays compare equal")
	}
	anull2 := rt.MakeArrayType(Null, Null)
	h.BlockRoot(&anull2)
	if !rt.TypeEqual(anull, anull2) {
		t.Error("two anytype arrays must be equal")
	}

	// Structs: declared name only; anonymous equals nothing.
	pname := rt.MakeString("Packet")
	h.BlockRoot(&pname)
	s1 := rt.MakeStructType(pname, nil, nil)
	h.BlockRoot(&s1)
	pname2 := rt.MakeString("Packet")
	h.BlockRoot(&pname2)
	fn := rt.MakeString("f")
	h.BlockRoot(&fn)
	s2 := rt.MakeStructType(pname2, []Value{fn}, []Value{i32})
	h.BlockRoot(&s2)
	if !rt.TypeEqual(s1, s2) {
		t.Error("struct types with the same declared name must be equal")
	}
	anon := rt.MakeStructType(Null, nil, nil)
	h.BlockRoot(&anon)
	if rt.TypeEqual(anon, anon) {
		t.Error("an anonymous struct type must not even equal itself")
	}

	// Offsets: base type and unit.
	unitB := rt.MakeULong(8, 64)
	h.BlockRoot(&unitB)
	o1 := rt.MakeOffsetType(i32, unitB)
	h.BlockRoot(&o1)
	unitB2 := rt.MakeULong(8, 64)
	h.BlockRoot(&unitB2)
	o2 := rt.MakeOffsetType(i32, unitB2)
	h.BlockRoot(&o2)
	unitb := rt.MakeULong(1, 64)
	h.BlockRoot(&unitb)
	o3 := rt.MakeOffsetType(i32, unitb)
	h.BlockRoot(&o3)
	if !rt.TypeEqual(o1, o2) {
		t.Error("offset types with the same base and unit differ")
	}
	if rt.TypeEqual(o1, o3) {
		t.Error("offset types with different units compare equal")
	}

	// Closures: return and argument types.
	c1 := rt.MakeClosureType(i32, []Value{u32})
	h.BlockRoot(&c1)
	c2 := rt.MakeClosureType(i32, []Value{u32})
	h.BlockRoot(&c2)
	c3 := rt.MakeClosureType(i32, []Value{u32, u32})
	h.BlockRoot(&c3)
	if !rt.TypeEqual(c1, c2) {
		t.Error("identical closure types differ")
	}
	if rt.TypeEqual(c1, c3) {
		t.Error("closure types with different arities compare equal")
	}
}

func TestTypeOf(t *testing.T) {
	rt := newTestRuntime(t)
	h := rt.Heaplet()
	h.PushRootBlock()
	defer h.PopRootBlock()

	if got := rt.TypeOf(MakeInt(1, 13)); got != rt.MakeIntegralType(13, true) {
		t.Error("typeof int<13> is not the interned integral type")
	}
	if got := rt.TypeOf(rt.MakeULong(1, 64)); got != rt.MakeIntegralType(64, false) {
		t.Error("typeof uint<64> is not the interned integral type")
	}
	s := rt.MakeString("x")
	h.BlockRoot(&s)
	if rt.TypeOf(s) != rt.StringType() {
		t.Error("typeof string is not the string singleton")
	}
	if rt.TypeOf(Null) != Null {
		t.Error("typeof null must be null")
	}
}

func TestExceptionShape(t *testing.T) {
	rt := newTestRuntime(t)
	h := rt.Heaplet()
	h.PushRootBlock()
	defer h.PopRootBlock()

	exc := rt.MakeException(ExceptionOutOfBounds, "E_out_of_bounds", 1, "std.pk:12", "index 9 out of bounds")
	h.BlockRoot(&exc)

	if name := rt.TypeStructName(rt.StructType(exc)); rt.StringValue(name) != "Exception" {
		t.Fatalf("exception type name = %q", rt.StringValue(name))
	}
	code, ok := rt.StructRef(exc, "code")
	if !ok || IntValue(code) != ExceptionOutOfBounds {
		t.Error("exception code field wrong")
	}
	msg, ok := rt.StructRef(exc, "msg")
	if !ok || rt.StringValue(msg) != "index 9 out of bounds" {
		t.Error("exception msg field wrong")
	}
	if n := rt.StructNumFields(exc); n != 5 {
		t.Errorf("exception field count = %d", n)
	}

	// Exceptions survive collection while reachable from the exit slot.
	rt.SetExitException(exc)
	rt.Collect()
	loc, _ := rt.StructRef(rt.ExitException(), "location")
	if rt.StringValue(loc) != "std.pk:12" {
		t.Error("exception corrupted by collection")
	}
}
