package pvm

// Strings are boxed immutable byte sequences. Sizes are accounted in words
// including the implicit terminator, matching the string size reported by
// SizeOf ((len+1)*8 bits).

type strHdr struct {
	data []byte
}

// MakeString creates a boxed string value holding a copy of s.
func (r *Runtime) MakeString(s string) Value {
	return r.h.alloc(KindString, &strHdr{data: []byte(s)})
}

// IsString reports whether v is a string value.
func (r *Runtime) IsString(v Value) bool { return isKindInstance(r.h, v, KindString) }

// StringValue returns the contents of a string value.
func (r *Runtime) StringValue(v Value) string {
	return string(r.h.hdrOf(v, KindString, "pvm.StringValue").(*strHdr).data)
}

// StringLen returns the length of a string value in bytes.
func (r *Runtime) StringLen(v Value) int {
	return len(r.h.hdrOf(v, KindString, "pvm.StringLen").(*strHdr).data)
}

func stringWords(hdr *strHdr) int {
	// Header word plus payload rounded up to words, terminator included.
	return 1 + (len(hdr.data)+1+7)/8
}

func stringShape() *Shape {
	return &Shape{
		Name: "string",
		Kind: KindString,
		IsInstance: func(h *Heaplet, v Value) bool {
			return isKindInstance(h, v, KindString)
		},
		SizeOf: func(hdr header) int { return stringWords(hdr.(*strHdr)) },
		Copy: func(hdr header) header {
			old := hdr.(*strHdr)
			data := make([]byte, len(old.data))
			copy(data, old.data)
			return &strHdr{data: data}
		},
		ScanFields: func(h *Heaplet, hdr header, relocate func(*Value)) {},
		Finalize: func(hdr header) {
			hdr.(*strHdr).data = nil
		},
	}
}
