package bootimg

import (
	"crypto/sha1"
	"encoding/binary"
)

// computeID feeds the payload spans through SHA-1 in the exact order
// §4.4 mandates and returns the resulting digest.
func computeID(kernel, ramdisk, second, deviceTree []byte) [sha1.Size]byte {
	h := sha1.New()

	feed := func(data []byte) {
		h.Write(data)
		var sz [4]byte
		binary.LittleEndian.PutUint32(sz[:], uint32(len(data)))
		h.Write(sz[:])
	}

	feed(kernel)
	feed(ramdisk)
	feed(second)
	if len(deviceTree) > 0 {
		feed(deviceTree)
	}

	var out [sha1.Size]byte
	copy(out[:], h.Sum(nil))
	return out
}

// packID places a SHA-1 digest into the first 5 words of an 8-word id
// array (little-endian per word), zeroing the remaining 3 words.
func packID(digest [sha1.Size]byte) [8]uint32 {
	var id [8]uint32
	for i := 0; i < 5; i++ {
		id[i] = binary.LittleEndian.Uint32(digest[i*4 : i*4+4])
	}
	return id
}
