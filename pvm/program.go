package pvm

import (
	"fmt"
	"strings"
)

// Programs are assembled instruction sequences. A program under assembly
// accepts appended instructions, parameters and labels; making it
// executable freezes it and resolves every label. Value parameters are
// kept in a boxed vector so the collector sees them as live for as long as
// the program lives.

// ParamKind discriminates instruction parameters.
type ParamKind uint8

const (
	ParamValue ParamKind = iota
	ParamUnsigned
	ParamRegister
	ParamLabel
)

// Param is one assembled instruction parameter. Value parameters index the
// program's parameter pool; label parameters name a label resolved at
// make-executable time.
type Param struct {
	Kind     ParamKind
	N        uint64
	Reg      int
	Label    int
	poolSlot int
}

type instruction struct {
	name   string
	params []Param
}

type prgHdr struct {
	pool       Value // vector of value parameters
	insns      []instruction
	labels     []int // label -> instruction index, -1 while undefined
	executable bool
}

const labelUndefined = -1

// MakeProgram creates an empty program under assembly.
func (r *Runtime) MakeProgram() Value {
	pool := r.MakeVector(0)
	r.h.PushRootBlock()
	defer r.h.PopRootBlock()
	r.h.BlockRoot(&pool)
	return r.h.alloc(KindProgram, &prgHdr{pool: pool})
}

// IsProgram reports whether v is a program value.
func (r *Runtime) IsProgram(v Value) bool { return isKindInstance(r.h, v, KindProgram) }

func (r *Runtime) prg(v Value, what string) *prgHdr {
	return r.h.hdrOf(v, KindProgram, what).(*prgHdr)
}

func (r *Runtime) prgAppendable(v Value, what string) *prgHdr {
	p := r.prg(v, what)
	if p.executable {
		panic(what + ": program is already executable")
	}
	return p
}

// ProgramAppendInstruction appends an instruction by name. Parameters
// follow through the AppendXxxParam calls.
func (r *Runtime) ProgramAppendInstruction(v Value, name string) {
	p := r.prgAppendable(v, "pvm.ProgramAppendInstruction")
	p.insns = append(p.insns, instruction{name: name})
}

func (r *Runtime) appendParam(v Value, param Param, what string) {
	p := r.prgAppendable(v, what)
	if len(p.insns) == 0 {
		panic(what + ": no instruction to parameterize")
	}
	last := &p.insns[len(p.insns)-1]
	last.params = append(last.params, param)
}

// ProgramAppendValueParam appends a value parameter to the last appended
// instruction. The value is retained by the program.
func (r *Runtime) ProgramAppendValueParam(v Value, val Value) {
	r.h.PushRootBlock()
	defer r.h.PopRootBlock()
	r.h.BlockRoot(&v)
	r.h.BlockRoot(&val)
	pool := r.prgAppendable(v, "pvm.ProgramAppendValueParam").pool
	r.VectorPush(pool, val)
	slot := r.VectorLen(pool) - 1
	r.appendParam(v, Param{Kind: ParamValue, poolSlot: slot}, "pvm.ProgramAppendValueParam")
}

// ProgramAppendUnsignedParam appends a literal unsigned parameter.
func (r *Runtime) ProgramAppendUnsignedParam(v Value, n uint64) {
	r.appendParam(v, Param{Kind: ParamUnsigned, N: n}, "pvm.ProgramAppendUnsignedParam")
}

// ProgramAppendRegisterParam appends a register parameter.
func (r *Runtime) ProgramAppendRegisterParam(v Value, reg int) {
	r.appendParam(v, Param{Kind: ParamRegister, Reg: reg}, "pvm.ProgramAppendRegisterParam")
}

// ProgramAppendLabelParam appends a label parameter. The label must come
// from ProgramFreshLabel on the same program.
func (r *Runtime) ProgramAppendLabelParam(v Value, label int) {
	p := r.prgAppendable(v, "pvm.ProgramAppendLabelParam")
	if label < 0 || label >= len(p.labels) {
		panic("pvm.ProgramAppendLabelParam: unknown label")
	}
	r.appendParam(v, Param{Kind: ParamLabel, Label: label}, "pvm.ProgramAppendLabelParam")
}

// ProgramFreshLabel reserves a new undefined label.
func (r *Runtime) ProgramFreshLabel(v Value) int {
	p := r.prgAppendable(v, "pvm.ProgramFreshLabel")
	p.labels = append(p.labels, labelUndefined)
	return len(p.labels) - 1
}

// ProgramAppendLabel defines a label at the current end of the program.
func (r *Runtime) ProgramAppendLabel(v Value, label int) {
	p := r.prgAppendable(v, "pvm.ProgramAppendLabel")
	if label < 0 || label >= len(p.labels) {
		panic("pvm.ProgramAppendLabel: unknown label")
	}
	if p.labels[label] != labelUndefined {
		panic("pvm.ProgramAppendLabel: label defined twice")
	}
	p.labels[label] = len(p.insns)
}

// ProgramMakeExecutable freezes a program. Every reserved label must be
// defined. Freezing is idempotent.
func (r *Runtime) ProgramMakeExecutable(v Value) {
	p := r.prg(v, "pvm.ProgramMakeExecutable")
	if p.executable {
		return
	}
	for l, pos := range p.labels {
		if pos == labelUndefined {
			panic(fmt.Sprintf("pvm.ProgramMakeExecutable: label %d never defined", l))
		}
	}
	p.executable = true
}

// ProgramExecutable reports whether a program has been frozen.
func (r *Runtime) ProgramExecutable(v Value) bool {
	return r.prg(v, "pvm.ProgramExecutable").executable
}

// ProgramNumInstructions returns the number of appended instructions.
func (r *Runtime) ProgramNumInstructions(v Value) int {
	return len(r.prg(v, "pvm.ProgramNumInstructions").insns)
}

// ProgramLabelTarget returns the instruction index a label resolves to.
func (r *Runtime) ProgramLabelTarget(v Value, label int) int {
	p := r.prg(v, "pvm.ProgramLabelTarget")
	if label < 0 || label >= len(p.labels) || p.labels[label] == labelUndefined {
		panic("pvm.ProgramLabelTarget: unknown or undefined label")
	}
	return p.labels[label]
}

// DisassembleProgram renders a program as one instruction per line, labels
// interleaved at their positions.
func (r *Runtime) DisassembleProgram(v Value) string {
	p := r.prg(v, "pvm.DisassembleProgram")
	at := make(map[int][]int)
	for l, pos := range p.labels {
		if pos != labelUndefined {
			at[pos] = append(at[pos], l)
		}
	}
	var b strings.Builder
	for i, ins := range p.insns {
		for _, l := range at[i] {
			fmt.Fprintf(&b, ".L%d:\n", l)
		}
		b.WriteString("        ")
		b.WriteString(ins.name)
		for j, prm := range ins.params {
			if j == 0 {
				b.WriteByte(' ')
			} else {
				b.WriteString(", ")
			}
			switch prm.Kind {
			case ParamValue:
				b.WriteString(r.FormatValue(r.VectorAt(p.pool, prm.poolSlot)))
			case ParamUnsigned:
				fmt.Fprintf(&b, "%d", prm.N)
			case ParamRegister:
				fmt.Fprintf(&b, "$r%d", prm.Reg)
			case ParamLabel:
				fmt.Fprintf(&b, ".L%d", prm.Label)
			}
		}
		b.WriteByte('\n')
	}
	for _, l := range at[len(p.insns)] {
		fmt.Fprintf(&b, ".L%d:\n", l)
	}
	return b.String()
}

func programWords(hdr *prgHdr) int {
	n := 4 + len(hdr.labels)
	for i := range hdr.insns {
		n += 2 + len(hdr.insns[i].params)
	}
	return n
}

func programShape() *Shape {
	return &Shape{
		Name: "program",
		Kind: KindProgram,
		IsInstance: func(h *Heaplet, v Value) bool {
			return isKindInstance(h, v, KindProgram)
		},
		SizeOf: func(hdr header) int { return programWords(hdr.(*prgHdr)) },
		Copy: func(hdr header) header {
			old := hdr.(*prgHdr)
			cp := *old
			cp.insns = make([]instruction, len(old.insns))
			copy(cp.insns, old.insns)
			cp.labels = make([]int, len(old.labels))
			copy(cp.labels, old.labels)
			return &cp
		},
		ScanFields: func(h *Heaplet, hdr header, relocate func(*Value)) {
			relocate(&hdr.(*prgHdr).pool)
		},
	}
}
