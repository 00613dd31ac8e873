package pvm

import (
	"fmt"
	"time"

	"github.com/tliron/commonlog"
)

// object is one boxed heap object: a one-word kind code followed by the
// kind-specific header.
type object struct {
	kind Kind
	hdr  header
}

// handleEntry is one slot of the heaplet's handle table. A boxed Value
// carries (index, generation); the entry carries where the object currently
// lives. Moving an object during collection is a table update, never a
// rewrite of the values referencing it. Retiring a dead object bumps the
// generation so that a stale Value is caught at dereference time.
type handleEntry struct {
	gen  uint32
	slot int32 // index into the current object space, -1 when retired
	mark uint32
}

// Heap is the process-wide collector configuration shared by heaplets:
// the shape table describing every boxed kind.
type Heap struct {
	shapes *ShapeTable
}

// NewHeap creates a heap configuration around a sealed shape table.
func NewHeap(shapes *ShapeTable) *Heap {
	if !shapes.sealed {
		panic("pvm.NewHeap: shape table is not sealed")
	}
	return &Heap{shapes: shapes}
}

// Hook is a diagnostic callback invoked around collection cycles and
// store-buffer flush checkpoints. Hooks must not mutate the value graph.
type Hook func(h *Heaplet)

// HeapStats carries heaplet occupancy and collection counters.
type HeapStats struct {
	Cycles         uint64
	LiveObjects    int
	UsedWords      int
	LimitWords     int
	LastCopied     int
	LastCollected  int
	TotalCollected uint64
}

// HeapExhaustedError is the fatal condition raised (as a panic) when an
// allocation still does not fit after a full collection. There is no
// recoverable path at this layer; a top level may recover it to produce a
// graceful report.
type HeapExhaustedError struct {
	Requested int
	Used      int
	Limit     int
}

func (e *HeapExhaustedError) Error() string {
	return fmt.Sprintf("pvm: heap exhausted: %d words requested, %d/%d in use after collection",
		e.Requested, e.Used, e.Limit)
}

// Heaplet is one collectible arena under a shared Heap configuration: a
// bump-pointer space with an allocation pointer and a word limit, collected
// by a full stop-the-world copy guided by the shape table.
//
// The heaplet assumes a single active mutator. Multiple VM instances
// sharing one heaplet must bracket their use with RegisterThread and
// UnregisterThread (today a placeholder for thread-aware allocation).
type Heaplet struct {
	heap *Heap
	log  commonlog.Logger

	objects    []object
	usedWords  int
	limitWords int

	handles     []handleEntry
	freeHandles []uint32
	cycle       uint32

	// Permanent (uncollectable) space: always live, never moved, freed
	// only explicitly by its owner.
	perm           []object
	permFree       []uint32
	permanentAlloc bool

	globalRoots []globalRoot
	stackRoots  []stackRoot
	blocks      [][]*Value
	nextRootID  RootID

	preCollection  []Hook
	postCollection []Hook
	preFlush       []Hook
	postFlush      []Hook

	collecting bool
	threads    int
	logCycles  bool
	stats      HeapStats
}

// NewHeaplet creates a heaplet with the given word budget.
func (hp *Heap) NewHeaplet(limitWords int) *Heaplet {
	if limitWords <= 0 {
		panic("pvm.NewHeaplet: non-positive word limit")
	}
	return &Heaplet{
		heap:       hp,
		log:        commonlog.GetLogger("pvm.heap"),
		limitWords: limitWords,
	}
}

// SetLogCycles enables per-cycle debug logging of collection statistics.
func (h *Heaplet) SetLogCycles(on bool) { h.logCycles = on }

// Used returns the words currently allocated.
func (h *Heaplet) Used() int { return h.usedWords }

// Limit returns the heaplet's word budget.
func (h *Heaplet) Limit() int { return h.limitWords }

// Stats returns a snapshot of the heaplet's counters.
func (h *Heaplet) Stats() HeapStats {
	s := h.stats
	s.LiveObjects = len(h.objects)
	s.UsedWords = h.usedWords
	s.LimitWords = h.limitWords
	return s
}

// RegisterThread brackets use of the heaplet by an additional VM instance.
// The allocator still assumes one active mutator at a time.
func (h *Heaplet) RegisterThread() { h.threads++ }

// UnregisterThread undoes a RegisterThread.
func (h *Heaplet) UnregisterThread() {
	if h.threads == 0 {
		panic("pvm.Heaplet.UnregisterThread: no registered thread")
	}
	h.threads--
}

// OnPreCollection registers a diagnostic hook run before every cycle.
func (h *Heaplet) OnPreCollection(f Hook) { h.preCollection = append(h.preCollection, f) }

// OnPostCollection registers a diagnostic hook run after every cycle.
func (h *Heaplet) OnPostCollection(f Hook) { h.postCollection = append(h.postCollection, f) }

// OnPreFlush registers a diagnostic hook run before a store-buffer flush.
func (h *Heaplet) OnPreFlush(f Hook) { h.preFlush = append(h.preFlush, f) }

// OnPostFlush registers a diagnostic hook run after a store-buffer flush.
func (h *Heaplet) OnPostFlush(f Hook) { h.postFlush = append(h.postFlush, f) }

// FlushStoreBuffer is a lighter diagnostic checkpoint than a full cycle:
// it runs the flush hooks and nothing else.
func (h *Heaplet) FlushStoreBuffer() {
	for _, f := range h.preFlush {
		f(h)
	}
	for _, f := range h.postFlush {
		f(h)
	}
}

// ---------------------------------------------------------------------------
// Allocation
// ---------------------------------------------------------------------------

func (h *Heaplet) newHandle(slot int32) uint32 {
	if n := len(h.freeHandles); n > 0 {
		idx := h.freeHandles[n-1]
		h.freeHandles = h.freeHandles[:n-1]
		h.handles[idx].slot = slot
		h.handles[idx].mark = h.cycle
		return idx
	}
	idx := uint32(len(h.handles))
	h.handles = append(h.handles, handleEntry{gen: 1, slot: slot, mark: h.cycle})
	return idx
}

// alloc places a fresh header in the heaplet and returns its Value. It may
// trigger a collection; a second failure to fit is fatal.
func (h *Heaplet) alloc(kind Kind, hdr header) Value {
	if h.collecting {
		panic("pvm: allocation attempted during a collection cycle")
	}
	sh := h.heap.shapes.shapeFor(kind)
	if h.permanentAlloc {
		var idx uint32
		if n := len(h.permFree); n > 0 {
			idx = h.permFree[n-1]
			h.permFree = h.permFree[:n-1]
			h.perm[idx] = object{kind: kind, hdr: hdr}
		} else {
			idx = uint32(len(h.perm))
			h.perm = append(h.perm, object{kind: kind, hdr: hdr})
		}
		return makeBox(idx, 0, true)
	}
	n := sh.SizeOf(hdr)
	if h.usedWords+n > h.limitWords {
		h.Collect()
		if h.usedWords+n > h.limitWords {
			panic(&HeapExhaustedError{Requested: n, Used: h.usedWords, Limit: h.limitWords})
		}
	}
	slot := int32(len(h.objects))
	h.objects = append(h.objects, object{kind: kind, hdr: hdr})
	idx := h.newHandle(slot)
	h.usedWords += n
	return makeBox(idx, h.handles[idx].gen, false)
}

// deref resolves a boxed Value to its object record, generation-checked.
func (h *Heaplet) deref(v Value) *object {
	if !isBoxValue(v) {
		panic("pvm: dereference of a non-boxed value")
	}
	if boxPermanent(v) {
		idx := boxIndex(v)
		if int(idx) >= len(h.perm) || h.perm[idx].hdr == nil {
			panic("pvm: use of a freed permanent value")
		}
		return &h.perm[idx]
	}
	idx := boxIndex(v)
	if int(idx) >= len(h.handles) {
		panic("pvm: dereference of a foreign value")
	}
	e := &h.handles[idx]
	if e.slot < 0 || e.gen != boxGen(v) {
		panic("pvm: stale value: the referenced object was collected")
	}
	return &h.objects[e.slot]
}

// kindOf returns the kind of a boxed value, or false for unboxed/Null.
func (h *Heaplet) kindOf(v Value) (Kind, bool) {
	if !isBoxValue(v) {
		return 0, false
	}
	return h.deref(v).kind, true
}

// hdrOf resolves v and checks its kind; what names the caller in panics.
func (h *Heaplet) hdrOf(v Value, k Kind, what string) header {
	o := h.deref(v)
	if o.kind != k {
		panic(what + ": not a " + k.String() + " value")
	}
	return o.hdr
}

// ---------------------------------------------------------------------------
// Collection
// ---------------------------------------------------------------------------

// Collect performs one full stop-the-world copying cycle: every registered
// root is walked, every reachable object is copied into a fresh space via
// the shape table, the handle table is re-pointed, and everything left
// behind is finalized and retired.
func (h *Heaplet) Collect() {
	if h.collecting {
		panic("pvm: recursive collection")
	}
	h.collecting = true
	defer func() { h.collecting = false }()

	began := time.Now()
	for _, f := range h.preCollection {
		f(h)
	}

	h.cycle++
	from := h.objects
	to := make([]object, 0, len(from))
	words := 0
	copied := 0

	relocate := func(pv *Value) {
		v := *pv
		if !isBoxValue(v) || boxPermanent(v) {
			return
		}
		e := &h.handles[boxIndex(v)]
		if e.slot < 0 || e.gen != boxGen(v) {
			panic("pvm: collector reached a stale value through a root")
		}
		if e.mark == h.cycle {
			return // already copied; the handle already points at the copy
		}
		old := &from[e.slot]
		sh := h.heap.shapes.shapeFor(old.kind)
		nh := sh.Copy(old.hdr)
		e.slot = int32(len(to))
		e.mark = h.cycle
		to = append(to, object{kind: old.kind, hdr: nh})
		words += sh.SizeOf(nh)
		copied++
	}

	// Root copy: fixed globals, stack extents re-read now, protected
	// blocks, and the fields of every permanent object.
	for _, r := range h.globalRoots {
		for i := range r.slots {
			relocate(&r.slots[i])
		}
	}
	for _, r := range h.stackRoots {
		n := r.extent()
		if n > len(r.base) {
			n = len(r.base)
		}
		for i := 0; i < n; i++ {
			relocate(&r.base[i])
		}
	}
	for _, blk := range h.blocks {
		for _, pv := range blk {
			relocate(pv)
		}
	}
	for i := range h.perm {
		if h.perm[i].hdr == nil {
			continue
		}
		h.heap.shapes.shapeFor(h.perm[i].kind).ScanFields(h, h.perm[i].hdr, relocate)
	}

	// Field fixup, repeated transitively until no copied object remains
	// unscanned.
	for scan := 0; scan < len(to); scan++ {
		o := to[scan]
		h.heap.shapes.shapeFor(o.kind).ScanFields(h, o.hdr, relocate)
	}

	// Finalize and retire everything not copied this cycle.
	collected := 0
	for i := range h.handles {
		e := &h.handles[i]
		if e.slot < 0 || e.mark == h.cycle {
			continue
		}
		old := &from[e.slot]
		sh := h.heap.shapes.shapeFor(old.kind)
		if sh.Finalize != nil {
			sh.Finalize(old.hdr)
		}
		old.hdr = nil
		e.slot = -1
		e.gen++
		h.freeHandles = append(h.freeHandles, uint32(i))
		collected++
	}

	h.objects = to
	h.usedWords = words
	h.stats.Cycles++
	h.stats.LastCopied = copied
	h.stats.LastCollected = collected
	h.stats.TotalCollected += uint64(collected)

	for _, f := range h.postCollection {
		f(h)
	}
	if h.logCycles {
		h.log.Debugf("collection %d: %d copied, %d collected, %d/%d words, %s",
			h.stats.Cycles, copied, collected, h.usedWords, h.limitWords,
			time.Since(began))
	}
}
