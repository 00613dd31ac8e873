package pvm

// RootID names a registered root set so it can be deregistered later.
type RootID uint64

type globalRoot struct {
	id    RootID
	slots []Value
}

type stackRoot struct {
	id     RootID
	base   []Value
	extent func() int
}

func (h *Heaplet) nextID() RootID {
	h.nextRootID++
	return h.nextRootID
}

// RegisterGlobalRoot registers a fixed slice of value slots as roots. The
// collector scans every slot of the slice on each cycle; the holder may
// rewrite slot contents freely between cycles.
func (h *Heaplet) RegisterGlobalRoot(slots []Value) RootID {
	id := h.nextID()
	h.globalRoots = append(h.globalRoots, globalRoot{id: id, slots: slots})
	return id
}

// DeregisterGlobalRoot removes a global root set. Unknown ids panic.
func (h *Heaplet) DeregisterGlobalRoot(id RootID) {
	for i := range h.globalRoots {
		if h.globalRoots[i].id == id {
			h.globalRoots = append(h.globalRoots[:i], h.globalRoots[i+1:]...)
			return
		}
	}
	panic("pvm.Heaplet.DeregisterGlobalRoot: unknown root id")
}

// RegisterStackRoot registers a growable root region: base is the backing
// slice and extent reports, at scan time, how many leading slots are live.
// The extent callback is re-read on every cycle, so a stack can push and
// pop between collections without re-registering.
func (h *Heaplet) RegisterStackRoot(base []Value, extent func() int) RootID {
	if extent == nil {
		panic("pvm.Heaplet.RegisterStackRoot: nil extent callback")
	}
	id := h.nextID()
	h.stackRoots = append(h.stackRoots, stackRoot{id: id, base: base, extent: extent})
	return id
}

// DeregisterStackRoot removes a stack root region. Unknown ids panic.
func (h *Heaplet) DeregisterStackRoot(id RootID) {
	for i := range h.stackRoots {
		if h.stackRoots[i].id == id {
			h.stackRoots = append(h.stackRoots[:i], h.stackRoots[i+1:]...)
			return
		}
	}
	panic("pvm.Heaplet.DeregisterStackRoot: unknown root id")
}

// ---------------------------------------------------------------------------
// Protected blocks
// ---------------------------------------------------------------------------

// PushRootBlock opens a protected block. Slots added with BlockRoot stay
// roots until the matching PopRootBlock. Blocks nest; they must be popped
// in LIFO order.
//
// The usual pattern brackets a multi-allocation constructor:
//
//	h.PushRootBlock()
//	defer h.PopRootBlock()
//	h.BlockRoot(&elemType)
//	...allocations that may collect...
func (h *Heaplet) PushRootBlock() {
	h.blocks = append(h.blocks, nil)
}

// BlockRoot adds a value slot to the innermost open block. The collector
// reads and updates the slot through the pointer, so the slot must stay
// valid until the block is popped.
func (h *Heaplet) BlockRoot(pv *Value) {
	if len(h.blocks) == 0 {
		panic("pvm.Heaplet.BlockRoot: no open root block")
	}
	top := len(h.blocks) - 1
	h.blocks[top] = append(h.blocks[top], pv)
}

// PopRootBlock closes the innermost block, dropping its slots as roots.
func (h *Heaplet) PopRootBlock() {
	if len(h.blocks) == 0 {
		panic("pvm.Heaplet.PopRootBlock: no open root block")
	}
	h.blocks = h.blocks[:len(h.blocks)-1]
}

// ---------------------------------------------------------------------------
// Permanent space
// ---------------------------------------------------------------------------

// SetPermanentAllocation toggles the uncollectable-allocation mode. While
// on, every allocation lands in the permanent space: such values are never
// collected or moved, their fields are scanned as roots on every cycle, and
// they are released only by FreePermanent.
func (h *Heaplet) SetPermanentAllocation(on bool) { h.permanentAlloc = on }

// PermanentAllocation reports whether the uncollectable mode is on.
func (h *Heaplet) PermanentAllocation() bool { return h.permanentAlloc }

// FreePermanent explicitly releases a permanent value. Later use of the
// value panics.
func (h *Heaplet) FreePermanent(v Value) {
	if !isBoxValue(v) || !boxPermanent(v) {
		panic("pvm.Heaplet.FreePermanent: not a permanent value")
	}
	idx := boxIndex(v)
	if int(idx) >= len(h.perm) || h.perm[idx].hdr == nil {
		panic("pvm.Heaplet.FreePermanent: already freed")
	}
	sh := h.heap.shapes.shapeFor(h.perm[idx].kind)
	if sh.Finalize != nil {
		sh.Finalize(h.perm[idx].hdr)
	}
	h.perm[idx].hdr = nil
	h.permFree = append(h.permFree, idx)
}
