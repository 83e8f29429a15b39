package bootimg

import (
	"bytes"
	"testing"
)

func TestLokiNewStyleRoundTrips(t *testing.T) {
	want := sampleIntermediate()
	want.Aboot = bytes.Repeat([]byte{0xCC}, 64)

	data, err := lokiCodec{}.createImage(want)
	if err != nil {
		t.Fatalf("createImage: %v", err)
	}

	if !(lokiCodec{}.isValid(data)) {
		t.Fatal("loki createImage output does not validate as a loki image")
	}

	got := NewIntermediate()
	if err := (lokiCodec{}.loadImage(data, got)); err != nil {
		t.Fatalf("loadImage: %v", err)
	}

	if !bytes.Equal(want.Kernel, got.Kernel) {
		t.Error("kernel did not round-trip through the loki codec")
	}
	if !bytes.Equal(want.Ramdisk, got.Ramdisk) {
		t.Error("ramdisk did not round-trip through the loki codec")
	}
	if !bytes.Equal(want.Aboot, got.Aboot) {
		t.Error("aboot did not round-trip through the loki codec")
	}
	if got.BoardName != want.BoardName {
		t.Errorf("BoardName = %q, want %q", got.BoardName, want.BoardName)
	}
}

func TestLokiDecodedImageReencodesAsAndroid(t *testing.T) {
	// A loki-decoded intermediate must be representable as a plain
	// android image: the shared Intermediate model carries no
	// loki-specific fields the android codec can't already serialize.
	want := sampleIntermediate()

	lokiData, err := lokiCodec{}.createImage(want)
	if err != nil {
		t.Fatalf("loki createImage: %v", err)
	}

	decoded := NewIntermediate()
	if err := (lokiCodec{}.loadImage(lokiData, decoded)); err != nil {
		t.Fatalf("loki loadImage: %v", err)
	}

	androidData, err := androidCodec{}.createImage(decoded)
	if err != nil {
		t.Fatalf("android createImage: %v", err)
	}

	reloaded := NewIntermediate()
	if err := (androidCodec{}.loadImage(androidData, reloaded)); err != nil {
		t.Fatalf("android loadImage: %v", err)
	}

	if !decoded.Equal(reloaded) {
		t.Error("loki-decoded intermediate does not survive an android re-encode")
	}
}

func TestLokiRejectsDataWithoutMagic(t *testing.T) {
	i := sampleIntermediate()
	androidData, err := androidCodec{}.createImage(i)
	if err != nil {
		t.Fatalf("createImage: %v", err)
	}

	if (lokiCodec{}.isValid(androidData)) {
		t.Error("a plain android image should not validate as loki")
	}
}

func TestScanLokiOldStyleSizesFindsGzipBoundary(t *testing.T) {
	pageSize := uint32(2048)
	kernel := bytes.Repeat([]byte{0x11}, int(pageSize)*2)
	ramdisk := append([]byte{0x1f, 0x8b, 0x08, 0x00}, bytes.Repeat([]byte{0x22}, 100)...)

	data := append(append([]byte{}, kernel...), ramdisk...)

	kernelSize, _, err := scanLokiOldStyleSizes(data, 0, pageSize)
	if err != nil {
		t.Fatalf("scanLokiOldStyleSizes: %v", err)
	}
	if kernelSize != uint32(len(kernel)) {
		t.Errorf("kernelSize = %d, want %d", kernelSize, len(kernel))
	}
}

func TestTrimTrailingZeros(t *testing.T) {
	data := append([]byte("payload"), make([]byte, 10)...)
	if got := trimTrailingZeros(data); got != 7 {
		t.Errorf("trimTrailingZeros = %d, want 7", got)
	}

	if got := trimTrailingZeros(make([]byte, 5)); got != 0 {
		t.Errorf("trimTrailingZeros of all-zero data = %d, want 0", got)
	}
}
