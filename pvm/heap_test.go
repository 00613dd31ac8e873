package pvm

import (
	"fmt"
	"testing"
)

func TestRootCompleteness(t *testing.T) {
	rt := New(Config{})
	defer rt.Shutdown()

	const n = 10000
	for i := 0; i < n; i++ {
		rt.Main.Push(rt.MakeString(fmt.Sprintf("str-%d", i)))
		if i%1000 == 999 {
			rt.Collect()
		}
	}
	rt.Collect()
	for i := n - 1; i >= 0; i-- {
		got := rt.StringValue(rt.Main.Pop())
		if want := fmt.Sprintf("str-%d", i); got != want {
			t.Fatalf("stack slot %d: got %q, want %q", i, got, want)
		}
	}
}

func TestStaleValueDetected(t *testing.T) {
	rt := New(Config{})
	defer rt.Shutdown()

	v := rt.MakeString("doomed")
	rt.Collect()
	defer func() {
		if recover() == nil {
			t.Error("dereference of a collected value did not panic")
		}
	}()
	rt.StringValue(v)
}

func TestProtectedBlockSurvivesCollection(t *testing.T) {
	rt := New(Config{})
	defer rt.Shutdown()
	h := rt.Heaplet()

	h.PushRootBlock()
	v := rt.MakeString("kept")
	h.BlockRoot(&v)
	rt.Collect()
	if got := rt.StringValue(v); got != "kept" {
		t.Fatalf("protected value corrupted: %q", got)
	}
	h.PopRootBlock()

	rt.Collect()
	defer func() {
		if recover() == nil {
			t.Error("value outlived its protected block")
		}
	}()
	rt.StringValue(v)
}

func TestStackRootExtent(t *testing.T) {
	rt := New(Config{})
	defer rt.Shutdown()

	kept := rt.MakeString("kept")
	dropped := rt.MakeString("dropped")
	rt.Main.Push(kept)
	rt.Main.Push(dropped)
	rt.Main.Pop()
	rt.Collect()

	if got := rt.StringValue(rt.Main.Pop()); got != "kept" {
		t.Fatalf("value below the top corrupted: %q", got)
	}
	defer func() {
		if recover() == nil {
			t.Error("popped value survived collection")
		}
	}()
	rt.StringValue(dropped)
}

func TestGlobalRootRewritable(t *testing.T) {
	rt := New(Config{})
	defer rt.Shutdown()
	h := rt.Heaplet()

	slots := []Value{Null, Null}
	id := h.RegisterGlobalRoot(slots)
	defer h.DeregisterGlobalRoot(id)

	slots[0] = rt.MakeString("first")
	rt.Collect()
	slots[1] = rt.MakeString("second")
	rt.Collect()
	if rt.StringValue(slots[0]) != "first" || rt.StringValue(slots[1]) != "second" {
		t.Fatal("global root slots corrupted across collections")
	}
}

func TestPermanentValues(t *testing.T) {
	rt := New(Config{})
	defer rt.Shutdown()
	h := rt.Heaplet()

	h.SetPermanentAllocation(true)
	perm := rt.MakeVector(1)
	h.SetPermanentAllocation(false)

	// Fields of a permanent object are roots.
	rt.VectorPush(perm, rt.MakeString("held by perm"))
	rt.Collect()
	rt.Collect()
	if got := rt.StringValue(rt.VectorAt(perm, 0)); got != "held by perm" {
		t.Fatalf("value held by a permanent object corrupted: %q", got)
	}

	h.FreePermanent(perm)
	defer func() {
		if recover() == nil {
			t.Error("use of a freed permanent value did not panic")
		}
	}()
	rt.VectorLen(perm)
}

func TestHeapExhaustion(t *testing.T) {
	h := NewHeap(newShapeTable()).NewHeaplet(64)

	roots := make([]Value, 64)
	for i := range roots {
		roots[i] = Null
	}
	rootID := h.RegisterGlobalRoot(roots)
	defer h.DeregisterGlobalRoot(rootID)

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("no panic after exhausting the heap")
		}
		if _, ok := r.(*HeapExhaustedError); !ok {
			t.Fatalf("panic value is %T, want *HeapExhaustedError", r)
		}
	}()
	for i := range roots {
		roots[i] = h.alloc(KindString, &strHdr{data: []byte("padding padding")})
	}
}

func TestCollectionHooks(t *testing.T) {
	rt := New(Config{})
	defer rt.Shutdown()
	h := rt.Heaplet()

	var order []string
	h.OnPreCollection(func(*Heaplet) { order = append(order, "pre") })
	h.OnPostCollection(func(*Heaplet) { order = append(order, "post") })
	h.OnPreFlush(func(*Heaplet) { order = append(order, "fpre") })
	h.OnPostFlush(func(*Heaplet) { order = append(order, "fpost") })

	rt.Collect()
	h.FlushStoreBuffer()
	want := []string{"pre", "post", "fpre", "fpost"}
	if len(order) != len(want) {
		t.Fatalf("hook calls: %v", order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("hook order: %v", order)
		}
	}
}

func TestStatsCount(t *testing.T) {
	rt := New(Config{})
	defer rt.Shutdown()

	before := rt.Heaplet().Stats().Cycles
	rt.MakeString("garbage")
	rt.Collect()
	s := rt.Heaplet().Stats()
	if s.Cycles != before+1 {
		t.Errorf("Cycles = %d, want %d", s.Cycles, before+1)
	}
	if s.TotalCollected == 0 {
		t.Error("TotalCollected = 0 after collecting garbage")
	}
}
