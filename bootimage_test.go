package bootimg

import (
	"bytes"
	"testing"
)

func TestNewDefaults(t *testing.T) {
	b := New()
	if b.TargetType() != Android {
		t.Errorf("TargetType() = %v, want %v", b.TargetType(), Android)
	}
	if b.Intermediate() == nil {
		t.Error("Intermediate() should never be nil")
	}
}

func TestLoadDispatchesAndroid(t *testing.T) {
	want := sampleIntermediate()
	data, err := androidCodec{}.createImage(want)
	if err != nil {
		t.Fatalf("createImage: %v", err)
	}

	b := New()
	if !b.Load(data) {
		t.Fatalf("Load failed: %v", b.Error())
	}
	if b.WasType() != Android {
		t.Errorf("WasType() = %v, want %v", b.WasType(), Android)
	}
	// The loaded record carries the SHA-1 identity the encoder wrote.
	want.ID = packID(computeID(want.Kernel, want.Ramdisk, want.Second, want.DeviceTree))
	if !want.Equal(b.Intermediate()) {
		t.Error("loaded intermediate does not match source")
	}
}

func TestLoadDispatchesBumpBeforeAndroid(t *testing.T) {
	want := sampleIntermediate()
	data, err := bumpCodec{}.createImage(want)
	if err != nil {
		t.Fatalf("createImage: %v", err)
	}

	b := New()
	if !b.Load(data) {
		t.Fatalf("Load failed: %v", b.Error())
	}
	if b.WasType() != Bump {
		t.Errorf("WasType() = %v, want %v (bump must be probed before android)", b.WasType(), Bump)
	}
}

func TestLoadDispatchesLokiBeforeBumpAndAndroid(t *testing.T) {
	want := sampleIntermediate()
	data, err := lokiCodec{}.createImage(want)
	if err != nil {
		t.Fatalf("createImage: %v", err)
	}

	b := New()
	if !b.Load(data) {
		t.Fatalf("Load failed: %v", b.Error())
	}
	if b.WasType() != Loki {
		t.Errorf("WasType() = %v, want %v", b.WasType(), Loki)
	}
}

func TestLoadRejectsUnrecognizedData(t *testing.T) {
	b := New()
	if b.Load(bytes.Repeat([]byte{0}, 128)) {
		t.Fatal("Load should fail on data matching no known format")
	}
	if b.Error() == nil {
		t.Error("Error() should be set after a failed Load")
	}
}

func TestCreateUsesTargetType(t *testing.T) {
	b := New()
	b.Intermediate().SetKernel([]byte("kernel"))
	b.SetType(Bump)

	data, err := b.Create()
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !(bumpCodec{}.isValid(data)) {
		t.Error("Create with target type Bump should emit a valid bump image")
	}
}

func TestLoadThenConvertAndroidToBump(t *testing.T) {
	want := sampleIntermediate()
	androidData, err := androidCodec{}.createImage(want)
	if err != nil {
		t.Fatalf("createImage: %v", err)
	}

	b := New()
	if !b.Load(androidData) {
		t.Fatalf("Load failed: %v", b.Error())
	}
	b.SetType(Bump)

	bumpData, err := b.Create()
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	b2 := New()
	if !b2.Load(bumpData) {
		t.Fatalf("second Load failed: %v", b2.Error())
	}
	if b2.WasType() != Bump {
		t.Errorf("WasType() = %v, want %v", b2.WasType(), Bump)
	}
	if !b.Equal(b2) {
		t.Error("converting android to bump and back should preserve structural equality")
	}
}

func TestBootImageEqual(t *testing.T) {
	a := New()
	a.Intermediate().SetKernel([]byte("k"))

	b := New()
	b.Intermediate().SetKernel([]byte("k"))

	if !a.Equal(b) {
		t.Error("two fresh images with identical intermediates should be equal")
	}

	b.SetType(Loki)
	if !a.Equal(b) {
		t.Error("Equal must ignore target_type")
	}
}
