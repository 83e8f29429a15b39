package bootimg

import (
	"bytes"
	"encoding/binary"
	"io"

	gzip "github.com/klauspost/pgzip"
	"go4.org/bytereplacer"
)

// Loki header layout, written at lokiMagicOffset (§4.6). This is a
// simplified version of the real loki_patch tool's header (it drops
// the 128-byte build-number field, which this library has no use for)
// but keeps every field §4.6 calls out by name: magic, recovery
// flag, original ramdisk address, original kernel size, original
// ramdisk size, plus an aboot span so an embedded aboot blob can be
// carried and recovered.
const (
	lokiOffRecovery    = 4
	lokiOffOrigKernel  = 8
	lokiOffOrigRamdisk = 12
	lokiOffRamdiskAddr = 16
	lokiOffAbootOffset = 20
	lokiOffAbootSize   = 24
	lokiHdrLen         = 28
)

// compression magics, the same ones tipatch's DetectCompressor
// recognizes (unpack.go), used here to find the ramdisk's start when
// old-style Loki zeroed the size fields.
var compressionMagics = [][]byte{
	{0x1f, 0x8b}, // gzip
	{0x1f, 0x9e}, // gzip (old)
	{0x89, 0x4c, 0x5a, 0x4f}, // lzop
	{0xfd, '7', 'z', 'X', 'Z'}, // xz
	{0x02, 0x21, 0x4c, 0x18}, // lz4 legacy
	{0x03, 0x21, 0x4c, 0x18}, // lz4
	{0x04, 0x22, 0x4d, 0x18}, // lz4
}

func isGzipMagic(b []byte) bool {
	return len(b) >= 2 && b[0] == 0x1f && (b[1] == 0x8b || b[1] == 0x9e)
}

type lokiCodec struct{}

func (lokiCodec) isValid(data []byte) bool {
	if len(data) < lokiMagicOffset+4 {
		return false
	}
	if !bytes.Equal(data[lokiMagicOffset:lokiMagicOffset+4], []byte(lokiMagic)) {
		return false
	}
	return len(data) >= BootMagicSize && bytes.Equal(data[0:BootMagicSize], []byte(BootMagic))
}

func (lokiCodec) loadImage(data []byte, i *Intermediate) error {
	if len(data) < androidHeaderSize {
		return parseErr(nil, "truncated loki image")
	}
	if len(data) < lokiMagicOffset+lokiHdrLen {
		return parseErr(nil, "truncated loki header")
	}

	hdr := data[0:androidHeaderSize]
	i.KernelAddr = binary.LittleEndian.Uint32(hdr[offKernelAddr:])
	i.RamdiskAddr = binary.LittleEndian.Uint32(hdr[offRamdiskAddr:])
	i.SecondAddr = binary.LittleEndian.Uint32(hdr[offSecondAddr:])
	i.TagsAddr = binary.LittleEndian.Uint32(hdr[offTagsAddr:])
	i.Unused = binary.LittleEndian.Uint32(hdr[offUnused:])
	i.BoardName = cString(hdr[offBoardName : offBoardName+BootNameSize])
	i.Cmdline = cString(hdr[offCmdline : offCmdline+BootArgsSize])
	for w := 0; w < 8; w++ {
		i.ID[w] = binary.LittleEndian.Uint32(hdr[offID+w*4:])
	}

	pageSize := binary.LittleEndian.Uint32(hdr[offPageSize:])
	if !IsValidPageSize(pageSize) {
		pageSize = DefaultPageSize
	}
	i.PageSize = pageSize

	lhdr := data[lokiMagicOffset : lokiMagicOffset+lokiHdrLen]
	origKernelSize := binary.LittleEndian.Uint32(lhdr[lokiOffOrigKernel:])
	origRamdiskSize := binary.LittleEndian.Uint32(lhdr[lokiOffOrigRamdisk:])
	ramdiskAddrOverride := binary.LittleEndian.Uint32(lhdr[lokiOffRamdiskAddr:])
	abootOffset := binary.LittleEndian.Uint32(lhdr[lokiOffAbootOffset:])
	abootSize := binary.LittleEndian.Uint32(lhdr[lokiOffAbootSize:])

	if ramdiskAddrOverride != 0 {
		i.RamdiskAddr = ramdiskAddrOverride
	}

	kernelStart := pageSize
	var kernelSize, ramdiskSize uint32
	var err error

	if origKernelSize != 0 && origRamdiskSize != 0 {
		// New-style: the Loki header carried the real sizes through.
		kernelSize = origKernelSize
		ramdiskSize = origRamdiskSize
	} else {
		// Old-style: sizes were zeroed by the patch. Recover them by
		// content-scanning, per §4.6 step 4. The essential contract is
		// that the recovered payloads re-encode (through the Android
		// codec) to the same bytes, not that the scan algorithm itself
		// is prescribed.
		kernelSize, ramdiskSize, err = scanLokiOldStyleSizes(data, kernelStart, pageSize)
		if err != nil {
			return err
		}
	}

	ramdiskStart := kernelStart + pageAlign(kernelSize, pageSize)

	if uint64(kernelStart)+uint64(kernelSize) > uint64(len(data)) ||
		uint64(ramdiskStart)+uint64(ramdiskSize) > uint64(len(data)) {
		return parseErr(nil, "loki payload extends past end of file")
	}

	i.SetKernel(append([]byte(nil), data[kernelStart:kernelStart+kernelSize]...))
	i.SetRamdisk(append([]byte(nil), data[ramdiskStart:ramdiskStart+ramdiskSize]...))

	if abootSize > 0 && uint64(abootOffset)+uint64(abootSize) <= uint64(len(data)) {
		i.Aboot = append([]byte(nil), data[abootOffset:abootOffset+abootSize]...)
	}

	return nil
}

// scanLokiOldStyleSizes recovers the original kernel and ramdisk sizes
// of an old-style Loki image whose header size fields were zeroed.
//
// Kernel size: scan forward from kernelStart, one page at a time, for
// any of the known ramdisk compression magics (the same set tipatch's
// DetectCompressor recognizes); the first page boundary carrying one
// is the ramdisk start, so kernelSize is the distance to it.
//
// Ramdisk size: if the ramdisk is gzip-compressed, stream-decode it
// with pgzip (stopping after one member) to find exactly how many
// input bytes the stream consumes. Otherwise fall back to trimming
// trailing zero padding from end-of-file, per §4.6 step 4.
func scanLokiOldStyleSizes(data []byte, kernelStart, pageSize uint32) (kernelSize, ramdiskSize uint32, err error) {
	ramdiskStart := uint32(0)
	found := false

	for off := kernelStart; off+4 <= uint32(len(data)); off += pageSize {
		chunk := data[off:]
		for _, magic := range compressionMagics {
			if len(chunk) >= len(magic) && bytes.Equal(chunk[:len(magic)], magic) {
				ramdiskStart = off
				found = true
				break
			}
		}
		if found {
			break
		}
	}

	if !found {
		return 0, 0, parseErr(nil, "could not locate ramdisk start while recovering old-style loki image")
	}

	kernelSize = ramdiskStart - kernelStart

	tail := data[ramdiskStart:]
	if isGzipMagic(tail) {
		ramdiskSize = gzipStreamLength(tail)
	} else {
		ramdiskSize = trimTrailingZeros(tail)
	}

	return kernelSize, ramdiskSize, nil
}

// countingReader counts bytes pulled through it by a downstream reader.
// It also implements io.ByteReader, so the gzip/flate reader reads from
// it directly instead of through a bufio read-ahead buffer, and the
// count stops at the end of the gzip member.
type countingReader struct {
	r *bytes.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func (c *countingReader) ReadByte() (byte, error) {
	b, err := c.r.ReadByte()
	if err == nil {
		c.n++
	}
	return b, err
}

// gzipStreamLength decompresses one gzip member from the start of data
// and returns how many input bytes it consumed. Used only to find a
// content boundary; the decompressed bytes themselves are discarded
// (§1 Non-goals: this library never modifies kernel/ramdisk contents).
func gzipStreamLength(data []byte) uint32 {
	cr := &countingReader{r: bytes.NewReader(data)}
	zr, err := gzip.NewReader(cr)
	if err != nil {
		return trimTrailingZeros(data)
	}
	defer zr.Close()
	zr.Multistream(false)

	if _, err := io.Copy(io.Discard, zr); err != nil {
		return trimTrailingZeros(data)
	}
	return uint32(cr.n)
}

// trimTrailingZeros returns the length of data with trailing NUL
// padding removed.
func trimTrailingZeros(data []byte) uint32 {
	end := len(data)
	for end > 0 && data[end-1] == 0 {
		end--
	}
	return uint32(end)
}

// lokiAbootMarker is the fixed-length stand-in this codec writes into
// the kernel in place of the first lokiPatchLen bytes of the supplied
// aboot signature material, mirroring §4.6's "rewriting specific
// kernel bytes" step. The exact shellcode a historical loki_patch
// build injects is device/kernel-specific; this library only needs its
// own patch to be a well-defined, reversible-in-spirit transform, not a
// byte-for-byte match with any particular loki_patch release.
const lokiPatchLen = 8

var lokiAbootMarker = []byte("LOKIPAT!")

// patchKernelForLoki applies the fixed-length kernel byte replacement
// described in §4.6, built with go4.org/bytereplacer the same way
// tipatch's patcher.go builds its ramdisk patch list.
func patchKernelForLoki(kernel, aboot []byte) []byte {
	if len(aboot) < lokiPatchLen {
		return kernel
	}
	from := aboot[:lokiPatchLen]
	r := bytereplacer.New(string(from), string(lokiAbootMarker))
	return r.Replace(kernel)
}

func (lokiCodec) createImage(i *Intermediate) ([]byte, error) {
	android, err := androidCodec{}.createImage(i)
	if err != nil {
		return nil, err
	}

	pageSize := i.PageSize
	if pageSize == 0 {
		pageSize = DefaultPageSize
	}

	patchedKernel := patchKernelForLoki(i.Kernel, i.Aboot)
	if len(patchedKernel) == len(i.Kernel) {
		copy(android[pageAlign(androidHeaderSize, pageSize):], patchedKernel)
	}

	lhdr := make([]byte, lokiHdrLen)
	copy(lhdr[0:4], lokiMagic)
	binary.LittleEndian.PutUint32(lhdr[lokiOffRecovery:], 0)
	binary.LittleEndian.PutUint32(lhdr[lokiOffOrigKernel:], uint32(len(i.Kernel)))
	binary.LittleEndian.PutUint32(lhdr[lokiOffOrigRamdisk:], uint32(len(i.Ramdisk)))
	binary.LittleEndian.PutUint32(lhdr[lokiOffRamdiskAddr:], i.RamdiskAddr)

	abootOffset := uint32(len(android))
	binary.LittleEndian.PutUint32(lhdr[lokiOffAbootOffset:], abootOffset)
	binary.LittleEndian.PutUint32(lhdr[lokiOffAbootSize:], uint32(len(i.Aboot)))

	if lokiMagicOffset+lokiHdrLen > len(android) {
		return nil, parseErr(nil, "page size too small to hold loki header")
	}
	copy(android[lokiMagicOffset:lokiMagicOffset+lokiHdrLen], lhdr)

	out := append(android, i.Aboot...)
	return out, nil
}
