package bootimg

import (
	"bytes"

	"github.com/cespare/xxhash"
)

// Intermediate is the neutral in-memory representation every codec
// reads from and writes to (§3). It is a value-typed aggregate; fields
// unused by a given container format are left at their loaded/default
// values and round-trip untouched.
type Intermediate struct {
	BoardName string
	Cmdline   string

	KernelAddr  uint32
	RamdiskAddr uint32
	SecondAddr  uint32
	TagsAddr    uint32
	IplAddr     uint32
	RpmAddr     uint32
	AppsblAddr  uint32
	Entrypoint  uint32

	PageSize uint32
	Unused   uint32
	ID       [8]uint32

	Kernel     []byte
	Ramdisk    []byte
	Second     []byte
	DeviceTree []byte
	Aboot      []byte

	Ipl        []byte
	Rpm        []byte
	Appsbl     []byte
	SonySin    []byte
	SonySinHdr []byte

	// blobHash caches blobDigest(Kernel, Ramdisk, Second, DeviceTree),
	// kept in sync by the Set* payload setters below so Equal can reject
	// on a mismatch without rescanning every payload byte.
	blobHash uint64
}

// sizes derived from payloads (§3 invariant 1): these are never stored
// independently, they are always len(payload).
func (i *Intermediate) KernelSize() uint32     { return uint32(len(i.Kernel)) }
func (i *Intermediate) RamdiskSize() uint32    { return uint32(len(i.Ramdisk)) }
func (i *Intermediate) SecondSize() uint32     { return uint32(len(i.Second)) }
func (i *Intermediate) DeviceTreeSize() uint32 { return uint32(len(i.DeviceTree)) }

// SetKernel replaces the kernel payload. The size field is implicit
// (KernelSize), so the only bookkeeping left is refreshing the cached
// blobHash the atomicity guarantee of §4.2 otherwise falls out of Go's
// single-assignment slice replace.
func (i *Intermediate) SetKernel(data []byte) {
	i.Kernel = data
	i.refreshBlobHash()
}
func (i *Intermediate) SetRamdisk(data []byte) {
	i.Ramdisk = data
	i.refreshBlobHash()
}
func (i *Intermediate) SetSecond(data []byte) {
	i.Second = data
	i.refreshBlobHash()
}
func (i *Intermediate) SetDeviceTree(data []byte) {
	i.DeviceTree = data
	i.refreshBlobHash()
}

// refreshBlobHash recomputes blobHash from the current four sized
// payloads. Called by every setter that can change one of them.
func (i *Intermediate) refreshBlobHash() {
	i.blobHash = blobDigest(i.Kernel, i.Ramdisk, i.Second, i.DeviceTree)
}

// NewIntermediate builds a default-initialized record per §3/§6.
func NewIntermediate() *Intermediate {
	i := &Intermediate{}
	i.Reset()
	return i
}

// Reset restores every field to its documented default (§3, §6).
func (i *Intermediate) Reset() {
	*i = Intermediate{
		BoardName:   DefaultBoard,
		Cmdline:     DefaultCmdline,
		KernelAddr:  DefaultBase + DefaultKernelOffset,
		RamdiskAddr: DefaultBase + DefaultRamdiskOffset,
		SecondAddr:  DefaultBase + DefaultSecondOffset,
		TagsAddr:    DefaultBase + DefaultTagsOffset,
		IplAddr:     DefaultIplAddress,
		RpmAddr:     DefaultRpmAddress,
		AppsblAddr:  DefaultAppsblAddress,
		Entrypoint:  DefaultEntrypointAddress,
		PageSize:    DefaultPageSize,
		Unused:      0,
	}
	i.refreshBlobHash()
}

// SetAddresses computes kernel/ramdisk/second/tags addresses from a
// base and four offsets, the auxiliary convenience setter of §4.2.
// Arithmetic is plain 32-bit, wraparound allowed.
func (i *Intermediate) SetAddresses(base, kernelOff, ramdiskOff, secondOff, tagsOff uint32) {
	i.KernelAddr = base + kernelOff
	i.RamdiskAddr = base + ramdiskOff
	i.SecondAddr = base + secondOff
	i.TagsAddr = base + tagsOff
}

// blobDigest is tipatch's pack.go:checksum() pattern (feed kernel,
// ramdisk, second, device tree through a fast non-cryptographic hash)
// repurposed here as an equality fast path instead of a build checksum.
func blobDigest(kernel, ramdisk, second, deviceTree []byte) uint64 {
	xxh := xxhash.New()
	xxh.Write(kernel)
	xxh.Write(ramdisk)
	xxh.Write(second)
	xxh.Write(deviceTree)
	return xxh.Sum64()
}

// Equal reports structural equality per §3 invariant 5: all payloads,
// all size/address header fields, page_size, the id array, board_name
// and cmdline must match. source_type, target_type, and unused are
// deliberately excluded (§9 design note, confirmed by the commented-out
// hdrUnused comparison in libmbp's BootImage::operator==).
func (i *Intermediate) Equal(o *Intermediate) bool {
	if i == o {
		return true
	}
	if i == nil || o == nil {
		return false
	}

	// Fast path: compare header scalars and the cached digest of the
	// four sized payloads before falling back to byte-for-byte
	// comparison of every payload (including the unsized Sony/Loki
	// blobs, which the digest does not cover). Unlike recomputing the
	// digest here, comparing the cached blobHash costs nothing
	// proportional to payload size, so it actually short-circuits a
	// mismatch instead of just re-scanning what bytes.Equal would
	// already scan.
	if i.KernelAddr != o.KernelAddr ||
		i.RamdiskAddr != o.RamdiskAddr ||
		i.SecondAddr != o.SecondAddr ||
		i.TagsAddr != o.TagsAddr ||
		i.IplAddr != o.IplAddr ||
		i.RpmAddr != o.RpmAddr ||
		i.AppsblAddr != o.AppsblAddr ||
		i.Entrypoint != o.Entrypoint ||
		i.PageSize != o.PageSize ||
		i.ID != o.ID ||
		i.BoardName != o.BoardName ||
		i.Cmdline != o.Cmdline {
		return false
	}

	if i.blobHash != o.blobHash {
		return false
	}

	return bytes.Equal(i.Kernel, o.Kernel) &&
		bytes.Equal(i.Ramdisk, o.Ramdisk) &&
		bytes.Equal(i.Second, o.Second) &&
		bytes.Equal(i.DeviceTree, o.DeviceTree) &&
		bytes.Equal(i.Aboot, o.Aboot) &&
		bytes.Equal(i.Ipl, o.Ipl) &&
		bytes.Equal(i.Rpm, o.Rpm) &&
		bytes.Equal(i.Appsbl, o.Appsbl) &&
		bytes.Equal(i.SonySin, o.SonySin) &&
		bytes.Equal(i.SonySinHdr, o.SonySinHdr)
}
