package pvm

import "fmt"

// Stack is a fixed-capacity value stack registered with the collector as a
// stack root: only the slots below the top are scanned, and the extent is
// re-read on every cycle, so pushes and pops never re-register anything.
type Stack struct {
	name string
	vals []Value
	top  int
	root RootID
	h    *Heaplet
}

// NewStack creates a stack with the given capacity and registers it as a
// root region of the runtime's heaplet.
func (r *Runtime) NewStack(name string, capacity int) *Stack {
	if capacity <= 0 {
		panic("pvm.NewStack: non-positive capacity")
	}
	s := &Stack{
		name: name,
		vals: make([]Value, capacity),
		h:    r.h,
	}
	for i := range s.vals {
		s.vals[i] = Null
	}
	s.root = r.h.RegisterStackRoot(s.vals, func() int { return s.top })
	return s
}

// Close deregisters the stack's root region. The stack must not be used
// afterwards.
func (s *Stack) Close() {
	s.h.DeregisterStackRoot(s.root)
	s.vals = nil
}

// Name returns the stack's diagnostic name.
func (s *Stack) Name() string { return s.name }

// Depth returns the number of values on the stack.
func (s *Stack) Depth() int { return s.top }

// Push pushes a value. Overflow panics.
func (s *Stack) Push(v Value) {
	if s.top == len(s.vals) {
		panic(fmt.Sprintf("pvm: %s stack overflow at %d values", s.name, s.top))
	}
	s.vals[s.top] = v
	s.top++
}

// Pop removes and returns the top value. Underflow panics. The vacated
// slot is cleared so the collector does not retain the popped value.
func (s *Stack) Pop() Value {
	if s.top == 0 {
		panic(fmt.Sprintf("pvm: %s stack underflow", s.name))
	}
	s.top--
	v := s.vals[s.top]
	s.vals[s.top] = Null
	return v
}

// Peek returns the value n slots below the top without popping; Peek(0) is
// the top.
func (s *Stack) Peek(n int) Value {
	if n < 0 || n >= s.top {
		panic(fmt.Sprintf("pvm: %s stack peek below bottom", s.name))
	}
	return s.vals[s.top-1-n]
}
