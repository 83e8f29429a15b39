package bootimg

import (
	"bytes"
	"encoding/binary"
)

// ELF32 constants needed for the Sony layout (§4.7). Only the subset
// this format actually uses is modeled; this is not a general ELF
// reader.
const (
	elfMagic0, elfMagic1, elfMagic2, elfMagic3 = 0x7f, 'E', 'L', 'F'
	elfClass32                                 = 1
	elfDataLSB                                 = 1
	elfTypeExec                                = 2

	elfHeaderSize = 52
	elfPhentSize  = 32

	ptLoad = 1
)

// segTag identifies which Intermediate payload a Sony program header
// carries. Sony's boot ROM only inspects p_vaddr/p_filesz/p_offset; the
// byte of p_flags above the RWX bits (bits 8-15) is where this format
// stashes the tag that lets the codec round-trip segment identity
// without guessing from size or order alone.
type segTag uint32

const (
	tagKernel segTag = iota
	tagRamdisk
	tagIpl
	tagRpm
	tagAppsbl
	tagSin
)

// segFlagsBase is the RWX bits every Sony segment carries (read+exec);
// the tag occupies the byte above it.
const segFlagsBase = 0x5

func packFlags(t segTag) uint32  { return segFlagsBase | (uint32(t) << 8) }
func unpackTag(flags uint32) segTag { return segTag((flags >> 8) & 0xff) }

type sonyElfCodec struct{}

func (sonyElfCodec) isValid(data []byte) bool {
	if len(data) < elfHeaderSize {
		return false
	}
	if data[0] != elfMagic0 || data[1] != elfMagic1 || data[2] != elfMagic2 || data[3] != elfMagic3 {
		return false
	}
	if data[4] != elfClass32 || data[5] != elfDataLSB {
		return false
	}
	etype := binary.LittleEndian.Uint16(data[16:18])
	return etype == elfTypeExec
}

func (sonyElfCodec) loadImage(data []byte, i *Intermediate) error {
	if len(data) < elfHeaderSize {
		return parseErr(nil, "truncated elf header")
	}

	entry := binary.LittleEndian.Uint32(data[24:28])
	phoff := binary.LittleEndian.Uint32(data[28:32])
	phentsize := binary.LittleEndian.Uint16(data[42:44])
	phnum := binary.LittleEndian.Uint16(data[44:46])

	i.Entrypoint = entry

	if phentsize != elfPhentSize {
		return parseErr(nil, "unexpected elf program header size")
	}

	for n := uint16(0); n < phnum; n++ {
		base := int(phoff) + int(n)*elfPhentSize
		if base+elfPhentSize > len(data) {
			return parseErr(nil, "program header extends past end of file")
		}
		ph := data[base : base+elfPhentSize]

		ptype := binary.LittleEndian.Uint32(ph[0:4])
		if ptype != ptLoad {
			continue
		}
		offset := binary.LittleEndian.Uint32(ph[4:8])
		vaddr := binary.LittleEndian.Uint32(ph[8:12])
		filesz := binary.LittleEndian.Uint32(ph[16:20])
		flags := binary.LittleEndian.Uint32(ph[24:28])

		if uint64(offset)+uint64(filesz) > uint64(len(data)) {
			return parseErr(nil, "segment extends past end of file")
		}
		payload := make([]byte, filesz)
		copy(payload, data[offset:offset+filesz])

		switch unpackTag(flags) {
		case tagKernel:
			i.SetKernel(payload)
			i.KernelAddr = vaddr
		case tagRamdisk:
			i.SetRamdisk(payload)
			i.RamdiskAddr = vaddr
		case tagIpl:
			i.Ipl = payload
			i.IplAddr = vaddr
		case tagRpm:
			i.Rpm = payload
			i.RpmAddr = vaddr
		case tagAppsbl:
			i.Appsbl = payload
			i.AppsblAddr = vaddr
		case tagSin:
			hdr, sin := splitSinSegment(payload)
			i.SonySinHdr = hdr
			i.SonySin = sin
		}
	}

	return nil
}

// sonySegment is one (tag, payload, vaddr) triplet eligible for
// encoding, in output order {kernel, ramdisk, ipl, rpm, appsbl, sin}.
type sonySegment struct {
	tag     segTag
	payload []byte
	vaddr   uint32
}

// joinSinSegment and splitSinSegment combine/split sony_sin_hdr and
// sony_sin into the single SIN program header segment described by
// §4.7: "one SIN segment carrying the sony_sin and sony_sin_hdr
// blobs". The exact SIN container format is vendor proprietary and out
// of this library's scope (no real signing, per the Non-goals in §1);
// this codec only needs its own encoding to round-trip, so it prefixes
// a 4-byte little-endian header length.
func joinSinSegment(hdr, sin []byte) []byte {
	out := make([]byte, 4+len(hdr)+len(sin))
	binary.LittleEndian.PutUint32(out[0:4], uint32(len(hdr)))
	copy(out[4:], hdr)
	copy(out[4+len(hdr):], sin)
	return out
}

func splitSinSegment(payload []byte) (hdr, sin []byte) {
	if len(payload) < 4 {
		return nil, nil
	}
	hdrLen := binary.LittleEndian.Uint32(payload[0:4])
	rest := payload[4:]
	if uint64(hdrLen) > uint64(len(rest)) {
		return nil, nil
	}
	return append([]byte(nil), rest[:hdrLen]...), append([]byte(nil), rest[hdrLen:]...)
}

func (sonyElfCodec) createImage(i *Intermediate) ([]byte, error) {
	var sinPayload []byte
	if len(i.SonySinHdr) > 0 || len(i.SonySin) > 0 {
		sinPayload = joinSinSegment(i.SonySinHdr, i.SonySin)
	}

	candidates := []sonySegment{
		{tagKernel, i.Kernel, i.KernelAddr},
		{tagRamdisk, i.Ramdisk, i.RamdiskAddr},
		{tagIpl, i.Ipl, i.IplAddr},
		{tagRpm, i.Rpm, i.RpmAddr},
		{tagAppsbl, i.Appsbl, i.AppsblAddr},
		{tagSin, sinPayload, 0},
	}

	var segs []sonySegment
	for _, c := range candidates {
		if len(c.payload) > 0 {
			segs = append(segs, c)
		}
	}

	phoff := uint32(elfHeaderSize)
	dataOff := phoff + uint32(len(segs))*elfPhentSize

	var buf bytes.Buffer
	buf.Write(make([]byte, elfHeaderSize))

	hdr := buf.Bytes()
	hdr[0], hdr[1], hdr[2], hdr[3] = elfMagic0, elfMagic1, elfMagic2, elfMagic3
	hdr[4] = elfClass32
	hdr[5] = elfDataLSB
	hdr[6] = 1 // EI_VERSION
	binary.LittleEndian.PutUint16(hdr[16:18], elfTypeExec)
	binary.LittleEndian.PutUint16(hdr[18:20], 40) // e_machine: EM_ARM, matches Sony devices' actual CPU
	binary.LittleEndian.PutUint32(hdr[20:24], 1)  // e_version
	binary.LittleEndian.PutUint32(hdr[24:28], i.Entrypoint)
	binary.LittleEndian.PutUint32(hdr[28:32], phoff)
	binary.LittleEndian.PutUint16(hdr[40:42], elfHeaderSize)
	binary.LittleEndian.PutUint16(hdr[42:44], elfPhentSize)
	binary.LittleEndian.PutUint16(hdr[44:46], uint16(len(segs)))

	phdrs := make([]byte, len(segs)*elfPhentSize)
	offset := dataOff
	var payloads bytes.Buffer
	for idx, s := range segs {
		ph := phdrs[idx*elfPhentSize : (idx+1)*elfPhentSize]
		binary.LittleEndian.PutUint32(ph[0:4], ptLoad)
		binary.LittleEndian.PutUint32(ph[4:8], offset)
		binary.LittleEndian.PutUint32(ph[8:12], s.vaddr)
		binary.LittleEndian.PutUint32(ph[12:16], s.vaddr)
		binary.LittleEndian.PutUint32(ph[16:20], uint32(len(s.payload)))
		binary.LittleEndian.PutUint32(ph[20:24], uint32(len(s.payload)))
		binary.LittleEndian.PutUint32(ph[24:28], packFlags(s.tag))
		binary.LittleEndian.PutUint32(ph[28:32], 0x1000) // p_align

		payloads.Write(s.payload)
		offset += uint32(len(s.payload))
	}

	buf.Write(phdrs)
	buf.Write(payloads.Bytes())

	return buf.Bytes(), nil
}
