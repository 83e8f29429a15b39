package bootimg

import "bytes"

// bumpCodec wraps androidCodec, adding/stripping the 16-byte trailer
// the Bump tool appends to satisfy certain boot-ROM signature checks
// (§4.5).
type bumpCodec struct{}

func (bumpCodec) isValid(data []byte) bool {
	if len(data) < bumpMagicSize {
		return false
	}
	trailer := data[len(data)-bumpMagicSize:]
	if !bytes.Equal(trailer, []byte(bumpMagic)) {
		return false
	}
	return androidCodec{}.isValid(data[:len(data)-bumpMagicSize])
}

func (bumpCodec) loadImage(data []byte, i *Intermediate) error {
	if len(data) < bumpMagicSize {
		return parseErr(nil, "truncated bump trailer")
	}
	return androidCodec{}.loadImage(data[:len(data)-bumpMagicSize], i)
}

func (bumpCodec) createImage(i *Intermediate) ([]byte, error) {
	android, err := androidCodec{}.createImage(i)
	if err != nil {
		return nil, err
	}
	return append(android, []byte(bumpMagic)...), nil
}
