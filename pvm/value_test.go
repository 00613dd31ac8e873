package pvm

import "testing"

func TestIntRoundTrip(t *testing.T) {
	cases := []struct {
		value int32
		width int
	}{
		{0, 1},
		{-1, 1},
		{3, 3},
		{-4, 3},
		{127, 8},
		{-128, 8},
		{-1, 8},
		{32767, 16},
		{-32768, 16},
		{1<<31 - 1, 32},
		{-1 << 31, 32},
	}
	for _, c := range cases {
		v := MakeInt(c.value, c.width)
		if !IsInt(v) {
			t.Fatalf("MakeInt(%d, %d): not recognized as int", c.value, c.width)
		}
		if got := IntWidth(v); got != c.width {
			t.Errorf("IntWidth(MakeInt(%d, %d)) = %d", c.value, c.width, got)
		}
		if got := IntValue(v); got != c.value {
			t.Errorf("IntValue(MakeInt(%d, %d)) = %d", c.value, c.width, got)
		}
	}
}

func TestUintRoundTrip(t *testing.T) {
	cases := []struct {
		value uint32
		width int
	}{
		{0, 1},
		{1, 1},
		{7, 3},
		{255, 8},
		{65535, 16},
		{1<<32 - 1, 32},
	}
	for _, c := range cases {
		v := MakeUint(c.value, c.width)
		if !IsUint(v) {
			t.Fatalf("MakeUint(%d, %d): not recognized as uint", c.value, c.width)
		}
		if got := UintWidth(v); got != c.width {
			t.Errorf("UintWidth(MakeUint(%d, %d)) = %d", c.value, c.width, got)
		}
		if got := UintValue(v); got != c.value {
			t.Errorf("UintValue(MakeUint(%d, %d)) = %d", c.value, c.width, got)
		}
	}
}

func TestIntCanonicalWords(t *testing.T) {
	// The same logical value must produce the same word regardless of how
	// the payload was widened by the caller.
	a := MakeInt(-1, 8)
	b := MakeInt(255&-1, 8)
	if a != b {
		t.Errorf("MakeInt is not canonical: %#x vs %#x", uint64(a), uint64(b))
	}
	// Identical payloads at different widths are different values.
	if MakeInt(1, 8) == MakeInt(1, 16) {
		t.Error("width is not part of the value word")
	}
	// Signed and unsigned never collide.
	if Value(MakeInt(1, 8)) == Value(MakeUint(1, 8)) {
		t.Error("int and uint words collide")
	}
}

func TestIntWidthPanics(t *testing.T) {
	for _, width := range []int{0, -1, 33} {
		func() {
			defer func() {
				if recover() == nil {
					t.Errorf("MakeInt width %d: no panic", width)
				}
			}()
			MakeInt(0, width)
		}()
	}
}

func TestNull(t *testing.T) {
	if !IsNull(Null) {
		t.Fatal("IsNull(Null) = false")
	}
	if IsNull(MakeInt(0, 32)) {
		t.Error("IsNull(int) = true")
	}
	if isBoxValue(Null) {
		t.Error("Null must not look like a box")
	}
	var zero Value
	if IsNull(zero) {
		t.Error("the zero Value must not be Null")
	}
}

func TestBoxedLongRoundTrip(t *testing.T) {
	rt := New(Config{})
	defer rt.Shutdown()

	cases := []struct {
		value int64
		width int
	}{
		{0, 33},
		{-1, 33},
		{1 << 40, 48},
		{-1 << 40, 48},
		{1<<63 - 1, 64},
		{-1 << 63, 64},
	}
	for _, c := range cases {
		v := rt.MakeLong(c.value, c.width)
		if !rt.IsLong(v) {
			t.Fatalf("MakeLong(%d, %d): not recognized as long", c.value, c.width)
		}
		if got := rt.LongWidth(v); got != c.width {
			t.Errorf("LongWidth = %d, want %d", got, c.width)
		}
		if got := rt.LongValue(v); got != c.value {
			t.Errorf("LongValue = %d, want %d", got, c.value)
		}
	}

	// Narrow widths come back unboxed.
	if v := rt.MakeLong(-5, 16); !IsInt(v) || IntValue(v) != -5 || IntWidth(v) != 16 {
		t.Error("MakeLong of a narrow value must return an unboxed int")
	}
	if v := rt.MakeULong(5, 16); !IsUint(v) || UintValue(v) != 5 || UintWidth(v) != 16 {
		t.Error("MakeULong of a narrow value must return an unboxed uint")
	}

	func() {
		defer func() {
			if recover() == nil {
				t.Error("MakeLong width 65: no panic")
			}
		}()
		rt.MakeLong(0, 65)
	}()
}
