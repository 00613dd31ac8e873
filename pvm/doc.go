// Package pvm implements the runtime value and memory subsystem of the
// poke virtual machine.
//
// This package contains:
//   - Tagged value representation (unboxed small integers, boxed everything else)
//   - A shape table describing every boxed kind to the collector
//   - A bump-pointer heaplet with precise stop-the-world copying collection
//   - Global, stack and block root registration
//   - The mapped-value protocol binding arrays/structs to IO-space bit offsets
//   - Structural operations: equality, bit-size, type-of, type equality
//   - A CBOR image codec for value graphs and assembled programs
//
// The language front end, the IO-space backend and the instruction dispatch
// engine are external collaborators; they talk to this package through the
// Runtime handle.
package pvm
