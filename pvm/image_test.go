package pvm

import (
	"bytes"
	"strings"
	"testing"
)

func TestImageRoundTripArray(t *testing.T) {
	rt := newTestRuntime(t)
	h := rt.Heaplet()
	h.PushRootBlock()
	defer h.PopRootBlock()

	arr := buildArray(rt, MakeInt(1, 32), 64, 10, 20, 30)
	h.BlockRoot(&arr)

	var buf bytes.Buffer
	if err := rt.WriteImage(&buf, arr); err != nil {
		t.Fatalf("WriteImage: %v", err)
	}

	// Load into a second, separate runtime.
	rt2 := newTestRuntime(t)
	h2 := rt2.Heaplet()
	h2.PushRootBlock()
	defer h2.PopRootBlock()
	got, err := rt2.ReadImage(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("ReadImage: %v", err)
	}
	h2.BlockRoot(&got)

	if !rt2.IsArray(got) {
		t.Fatal("loaded root is not an array")
	}
	if n := rt2.ArrayLen(got); n != 3 {
		t.Fatalf("loaded length = %d", n)
	}
	for i, want := range []int32{10, 20, 30} {
		if v := IntValue(rt2.ArrayElem(got, i)); v != want {
			t.Errorf("loaded elem %d = %d", i, v)
		}
	}
	if !rt2.Mapped(got) {
		t.Error("mapped flag lost")
	}
	if IntValue(rt2.MappedIOS(got)) != 1 {
		t.Error("ios lost")
	}
	if bits, _, _ := rt2.IntegralValue(rt2.MappedOffset(got)); bits != 64 {
		t.Errorf("base offset = %d", bits)
	}
	for i, want := range []uint64{64, 72, 80} {
		bits, _, _ := rt2.IntegralValue(rt2.ArrayElemOffset(got, i))
		if uint64(bits) != want {
			t.Errorf("loaded offset[%d] = %d", i, bits)
		}
	}
	et := rt2.TypeArrayElem(rt2.ArrayType(got))
	if rt2.TypeIntegralWidth(et) != 8 || !rt2.TypeIntegralSigned(et) {
		t.Error("element type mangled")
	}

	// The rebuilt graph must survive a collection in its new home.
	rt2.Collect()
	if IntValue(rt2.ArrayElem(got, 2)) != 30 {
		t.Error("loaded graph corrupted by collection")
	}
}

func TestImageRoundTripProgram(t *testing.T) {
	rt := newTestRuntime(t)
	h := rt.Heaplet()
	h.PushRootBlock()
	defer h.PopRootBlock()

	p := rt.MakeProgram()
	h.BlockRoot(&p)
	l := rt.ProgramFreshLabel(p)
	rt.ProgramAppendLabel(p, l)
	rt.ProgramAppendInstruction(p, "push")
	lit := rt.MakeString("pool literal")
	rt.ProgramAppendValueParam(p, lit)
	rt.ProgramAppendInstruction(p, "ba")
	rt.ProgramAppendLabelParam(p, l)
	rt.ProgramMakeExecutable(p)

	var buf bytes.Buffer
	if err := rt.WriteImage(&buf, p); err != nil {
		t.Fatalf("WriteImage: %v", err)
	}
	got, err := rt.ReadImage(&buf)
	if err != nil {
		t.Fatalf("ReadImage: %v", err)
	}
	h.BlockRoot(&got)

	if !rt.ProgramExecutable(got) {
		t.Error("executable flag lost")
	}
	if rt.ProgramNumInstructions(got) != 2 {
		t.Errorf("instruction count = %d", rt.ProgramNumInstructions(got))
	}
	if rt.ProgramLabelTarget(got, l) != 0 {
		t.Error("label target lost")
	}
	dis := rt.DisassembleProgram(got)
	if !strings.Contains(dis, "pool literal") || !strings.Contains(dis, "ba .L0") {
		t.Errorf("disassembly after round trip:\n%s", dis)
	}
}

func TestImageSharedSubgraph(t *testing.T) {
	rt := newTestRuntime(t)
	h := rt.Heaplet()
	h.PushRootBlock()
	defer h.PopRootBlock()

	// Two vector slots referencing the same string must still share after
	// the round trip.
	shared := rt.MakeString("shared")
	h.BlockRoot(&shared)
	vec := rt.MakeVector(2)
	h.BlockRoot(&vec)
	rt.VectorPush(vec, shared)
	rt.VectorPush(vec, shared)

	var buf bytes.Buffer
	if err := rt.WriteImage(&buf, vec); err != nil {
		t.Fatalf("WriteImage: %v", err)
	}
	got, err := rt.ReadImage(&buf)
	if err != nil {
		t.Fatalf("ReadImage: %v", err)
	}
	h.BlockRoot(&got)

	if rt.VectorAt(got, 0) != rt.VectorAt(got, 1) {
		t.Error("shared subgraph duplicated by the image round trip")
	}
}

func TestImageRejectsGarbage(t *testing.T) {
	rt := newTestRuntime(t)
	if _, err := rt.ReadImage(strings.NewReader("not an image")); err == nil {
		t.Error("garbage accepted as an image")
	}
}
