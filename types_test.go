package bootimg

import "testing"

func TestIsValidPageSize(t *testing.T) {
	for _, size := range []uint32{2048, 4096, 8192, 16384, 32768, 65536, 131072} {
		if !IsValidPageSize(size) {
			t.Errorf("IsValidPageSize(%d) = false, want true", size)
		}
	}

	for _, size := range []uint32{0, 1, 1024, 2047, 3000, 262144} {
		if IsValidPageSize(size) {
			t.Errorf("IsValidPageSize(%d) = true, want false", size)
		}
	}
}

func TestTypeString(t *testing.T) {
	cases := map[Type]string{
		Android: "Android",
		Loki:    "Loki",
		Bump:    "Bump",
		SonyElf: "SonyElf",
		Type(99): "Unknown",
	}
	for typ, want := range cases {
		if got := typ.String(); got != want {
			t.Errorf("Type(%d).String() = %q, want %q", typ, got, want)
		}
	}
}
