package bootimg

import (
	"bytes"
	"encoding/binary"
)

// Android header field offsets relative to the magic's origin (§4.4).
const (
	offMagic       = 0
	offKernelSize  = 8
	offKernelAddr  = 12
	offRamdiskSize = 16
	offRamdiskAddr = 20
	offSecondSize  = 24
	offSecondAddr  = 28
	offTagsAddr    = 32
	offPageSize    = 36
	offDtSize      = 40
	offUnused      = 44
	offBoardName   = 48
	offCmdline     = 64
	offID          = 576
)

// findAndroidMagic scans the first maxHeaderOffset bytes of data for
// BootMagic at a byte-aligned offset, returning the offset of the
// match or -1.
func findAndroidMagic(data []byte) int {
	limit := maxHeaderOffset
	if len(data)-BootMagicSize < limit {
		limit = len(data) - BootMagicSize
	}
	magic := []byte(BootMagic)
	for off := 0; off <= limit; off++ {
		if bytes.Equal(data[off:off+BootMagicSize], magic) {
			return off
		}
	}
	return -1
}

// androidCodec implements the (is_valid, load_image, create_image)
// triplet for the base AOSP layout (§4.4).
type androidCodec struct{}

func (androidCodec) isValid(data []byte) bool {
	return findAndroidMagic(data) >= 0
}

// pageAlign rounds n up to the next multiple of pageSize.
func pageAlign(n, pageSize uint32) uint32 {
	mask := pageSize - 1
	if n&mask == 0 {
		return n
	}
	return (n &^ mask) + pageSize
}

func (androidCodec) loadImage(data []byte, i *Intermediate) error {
	origin := findAndroidMagic(data)
	if origin < 0 {
		return parseErr(nil, "android magic not found")
	}
	if len(data) < origin+androidHeaderSize {
		return parseErr(nil, "truncated android header")
	}

	hdr := data[origin:]
	pageSize := binary.LittleEndian.Uint32(hdr[offPageSize:])
	if !IsValidPageSize(pageSize) {
		return parseErr(nil, "invalid android page size")
	}

	kernelSize := binary.LittleEndian.Uint32(hdr[offKernelSize:])
	ramdiskSize := binary.LittleEndian.Uint32(hdr[offRamdiskSize:])
	secondSize := binary.LittleEndian.Uint32(hdr[offSecondSize:])
	dtSize := binary.LittleEndian.Uint32(hdr[offDtSize:])

	i.KernelAddr = binary.LittleEndian.Uint32(hdr[offKernelAddr:])
	i.RamdiskAddr = binary.LittleEndian.Uint32(hdr[offRamdiskAddr:])
	i.SecondAddr = binary.LittleEndian.Uint32(hdr[offSecondAddr:])
	i.TagsAddr = binary.LittleEndian.Uint32(hdr[offTagsAddr:])
	i.PageSize = pageSize
	i.Unused = binary.LittleEndian.Uint32(hdr[offUnused:])

	i.BoardName = cString(hdr[offBoardName : offBoardName+BootNameSize])
	i.Cmdline = cString(hdr[offCmdline : offCmdline+BootArgsSize])

	for w := 0; w < 8; w++ {
		i.ID[w] = binary.LittleEndian.Uint32(hdr[offID+w*4:])
	}

	originU := uint32(origin)
	cursor := originU + pageAlign(androidHeaderSize, pageSize)

	readPayload := func(size uint32) ([]byte, error) {
		if size == 0 {
			return nil, nil
		}
		start := cursor
		end := start + size
		if int(end) > len(data) {
			return nil, parseErr(nil, "payload extends past end of file")
		}
		out := make([]byte, size)
		copy(out, data[start:end])
		cursor = originU + pageAlign(end-originU, pageSize)
		return out, nil
	}

	kernel, err := readPayload(kernelSize)
	if err != nil {
		return err
	}
	ramdisk, err := readPayload(ramdiskSize)
	if err != nil {
		return err
	}
	second, err := readPayload(secondSize)
	if err != nil {
		return err
	}
	deviceTree, err := readPayload(dtSize)
	if err != nil {
		return err
	}

	i.SetKernel(kernel)
	i.SetRamdisk(ramdisk)
	i.SetSecond(second)
	i.SetDeviceTree(deviceTree)

	return nil
}

// cString trims a NUL-padded fixed field to its first NUL.
func cString(field []byte) string {
	if idx := bytes.IndexByte(field, 0); idx >= 0 {
		return string(field[:idx])
	}
	return string(field)
}

// putCString copies s into field, truncating to len(field)-1 bytes and
// leaving the remainder (including at least one byte) as NUL padding
// (§3 invariant 3: board_name <= 16 incl. NUL, cmdline <= 512 incl.
// NUL — enforced here, on emit, not on Set).
func putCString(field []byte, s string) {
	max := len(field) - 1
	if len(s) > max {
		s = s[:max]
	}
	copy(field, s)
	for i := len(s); i < len(field); i++ {
		field[i] = 0
	}
}

func (androidCodec) createImage(i *Intermediate) ([]byte, error) {
	pageSize := i.PageSize
	if pageSize == 0 {
		pageSize = DefaultPageSize
	}

	digest := computeID(i.Kernel, i.Ramdisk, i.Second, i.DeviceTree)
	id := packID(digest)

	hdr := make([]byte, androidHeaderSize)
	copy(hdr[offMagic:], BootMagic)
	binary.LittleEndian.PutUint32(hdr[offKernelSize:], uint32(len(i.Kernel)))
	binary.LittleEndian.PutUint32(hdr[offKernelAddr:], i.KernelAddr)
	binary.LittleEndian.PutUint32(hdr[offRamdiskSize:], uint32(len(i.Ramdisk)))
	binary.LittleEndian.PutUint32(hdr[offRamdiskAddr:], i.RamdiskAddr)
	binary.LittleEndian.PutUint32(hdr[offSecondSize:], uint32(len(i.Second)))
	binary.LittleEndian.PutUint32(hdr[offSecondAddr:], i.SecondAddr)
	binary.LittleEndian.PutUint32(hdr[offTagsAddr:], i.TagsAddr)
	binary.LittleEndian.PutUint32(hdr[offPageSize:], pageSize)
	binary.LittleEndian.PutUint32(hdr[offDtSize:], uint32(len(i.DeviceTree)))
	binary.LittleEndian.PutUint32(hdr[offUnused:], i.Unused)
	putCString(hdr[offBoardName:offBoardName+BootNameSize], i.BoardName)
	putCString(hdr[offCmdline:offCmdline+BootArgsSize], i.Cmdline)
	for w := 0; w < 8; w++ {
		binary.LittleEndian.PutUint32(hdr[offID+w*4:], id[w])
	}

	var out bytes.Buffer
	writeSection(&out, hdr, pageSize)
	writeSection(&out, i.Kernel, pageSize)
	writeSection(&out, i.Ramdisk, pageSize)
	writeSection(&out, i.Second, pageSize)
	writeSection(&out, i.DeviceTree, pageSize)

	return out.Bytes(), nil
}

// writeSection writes data followed by NUL padding up to the next
// page boundary (§4.4 encoding rule).
func writeSection(out *bytes.Buffer, data []byte, pageSize uint32) {
	out.Write(data)
	pad := paddingFor(uint32(len(data)), pageSize)
	if pad > 0 {
		out.Write(make([]byte, pad))
	}
}

// paddingFor returns the number of NUL bytes needed to round size up
// to the next multiple of pageSize.
func paddingFor(size, pageSize uint32) uint32 {
	mask := pageSize - 1
	rem := size & mask
	if rem == 0 {
		return 0
	}
	return pageSize - rem
}
