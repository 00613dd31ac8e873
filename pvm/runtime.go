package pvm

import (
	"github.com/tliron/commonlog"
)

// Runtime is one virtual machine instance: a heaplet, the interned types,
// the well-known runtime slots and the value stacks. A Runtime is not safe
// for concurrent use; each goroutine gets its own.
type Runtime struct {
	cfg  Config
	heap *Heap
	h    *Heaplet
	log  commonlog.Logger

	// Interned integral types, indexed by width*2 + signedness bit.
	// Registered as a global root before any type is built.
	intTypes []Value

	// Interned singleton values; see the wk* indices.
	wellKnown []Value

	// Mutable runtime slots; see the slot* indices.
	slots []Value

	intTypesRoot  RootID
	wellKnownRoot RootID
	slotsRoot     RootID

	// Main is the operand stack; Return and Exceptions hold frame and
	// handler bookkeeping values.
	Main       *Stack
	Return     *Stack
	Exceptions *Stack
}

const (
	wkStringType = iota
	wkVoidType
	wkExceptionType
	numWellKnown
)

const (
	slotResult = iota
	slotExitException
	slotCurrentProgram
	numSlots
)

// Exception codes carried in the code field of exception values.
const (
	ExceptionGeneric = iota
	ExceptionDivByZero
	ExceptionNoIOS
	ExceptionNoReturn
	ExceptionOutOfBounds
	ExceptionEOF
	ExceptionMap
	ExceptionConstraint
	ExceptionConversion
	ExceptionOverflow
	ExceptionSignal
	ExceptionAssert
	ExceptionExit
)

// New creates a runtime with the given configuration.
func New(cfg Config) *Runtime {
	cfg.fillDefaults()
	shapes := newShapeTable()
	heap := NewHeap(shapes)
	h := heap.NewHeaplet(cfg.HeapWords)
	h.SetLogCycles(cfg.LogCollections)

	r := &Runtime{
		cfg:       cfg,
		heap:      heap,
		h:         h,
		log:       commonlog.GetLogger("pvm"),
		intTypes:  make([]Value, 65*2),
		wellKnown: make([]Value, numWellKnown),
		slots:     make([]Value, numSlots),
	}
	for i := range r.intTypes {
		r.intTypes[i] = Null
	}
	for i := range r.wellKnown {
		r.wellKnown[i] = Null
	}
	for i := range r.slots {
		r.slots[i] = Null
	}

	// The caches must be roots before the first allocation lands in them.
	r.intTypesRoot = h.RegisterGlobalRoot(r.intTypes)
	r.wellKnownRoot = h.RegisterGlobalRoot(r.wellKnown)
	r.slotsRoot = h.RegisterGlobalRoot(r.slots)

	r.wellKnown[wkStringType] = r.newType(&typeHdr{
		code: TypeString,
		size: Null, signed: Null, etype: Null, bound: Null, name: Null,
		base: Null, unit: Null, ret: Null,
	})
	r.wellKnown[wkVoidType] = r.newType(&typeHdr{
		code: TypeVoid,
		size: Null, signed: Null, etype: Null, bound: Null, name: Null,
		base: Null, unit: Null, ret: Null,
	})
	r.wellKnown[wkExceptionType] = r.makeExceptionType()

	r.Main = r.NewStack("operand", cfg.StackSlots)
	r.Return = r.NewStack("return", cfg.StackSlots/4)
	r.Exceptions = r.NewStack("exception", cfg.StackSlots/4)

	r.log.Infof("runtime up: %d heap words, %d stack slots", cfg.HeapWords, cfg.StackSlots)
	return r
}

// Shutdown releases the runtime's roots and stacks. The runtime must not
// be used afterwards.
func (r *Runtime) Shutdown() {
	r.Main.Close()
	r.Return.Close()
	r.Exceptions.Close()
	r.h.DeregisterGlobalRoot(r.slotsRoot)
	r.h.DeregisterGlobalRoot(r.wellKnownRoot)
	r.h.DeregisterGlobalRoot(r.intTypesRoot)
	r.log.Info("runtime down")
}

// Heaplet exposes the runtime's heaplet for root registration, hooks and
// collection control.
func (r *Runtime) Heaplet() *Heaplet { return r.h }

// Collect forces a full collection cycle.
func (r *Runtime) Collect() { r.h.Collect() }

// Result returns the value left in the result slot, or Null.
func (r *Runtime) Result() Value { return r.slots[slotResult] }

// SetResult stores a value in the result slot.
func (r *Runtime) SetResult(v Value) { r.slots[slotResult] = v }

// ExitException returns the exception that unwound the runtime, or Null.
func (r *Runtime) ExitException() Value { return r.slots[slotExitException] }

// SetExitException records the exception that unwound the runtime.
func (r *Runtime) SetExitException(v Value) { r.slots[slotExitException] = v }

// CurrentProgram returns the program under execution, or Null.
func (r *Runtime) CurrentProgram() Value { return r.slots[slotCurrentProgram] }

// SetCurrentProgram records the program under execution.
func (r *Runtime) SetCurrentProgram(v Value) { r.slots[slotCurrentProgram] = v }

// ExceptionType returns the interned struct type of exception values.
func (r *Runtime) ExceptionType() Value { return r.wellKnown[wkExceptionType] }

func (r *Runtime) makeExceptionType() Value {
	r.h.PushRootBlock()
	defer r.h.PopRootBlock()
	name := r.MakeString("Exception")
	r.h.BlockRoot(&name)
	fnames := make([]Value, 5)
	for i := range fnames {
		fnames[i] = Null
		r.h.BlockRoot(&fnames[i])
	}
	fnames[0] = r.MakeString("code")
	fnames[1] = r.MakeString("name")
	fnames[2] = r.MakeString("exit_status")
	fnames[3] = r.MakeString("location")
	fnames[4] = r.MakeString("msg")
	int32t := r.MakeIntegralType(32, true)
	ftypes := []Value{int32t, r.StringType(), int32t, r.StringType(), r.StringType()}
	return r.MakeStructType(name, fnames, ftypes)
}

// MakeException builds an exception value: a struct of the interned
// exception type with code, name, exit_status, location and msg fields.
func (r *Runtime) MakeException(code int32, name string, exitStatus int32, location, msg string) Value {
	r.h.PushRootBlock()
	defer r.h.PopRootBlock()
	exc := r.MakeStruct(5, 0, r.ExceptionType())
	r.h.BlockRoot(&exc)
	et := r.ExceptionType()
	set := func(i int, v Value) {
		r.InitStructField(exc, i, r.TypeStructFieldName(et, i), v, Null)
	}
	set(0, MakeInt(code, 32))
	nameV := r.MakeString(name)
	set(1, nameV)
	set(2, MakeInt(exitStatus, 32))
	locV := r.MakeString(location)
	set(3, locV)
	msgV := r.MakeString(msg)
	set(4, msgV)
	return exc
}
