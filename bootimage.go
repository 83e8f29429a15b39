package bootimg

import (
	"os"
)

// codec is the fixed triplet every format implements (§9 design notes:
// no inheritance hierarchy, a free module per format, dispatch is a
// linear probe not a vtable).
type codec interface {
	isValid(data []byte) bool
	loadImage(data []byte, i *Intermediate) error
	createImage(i *Intermediate) ([]byte, error)
}

var codecs = map[Type]codec{
	Android: androidCodec{},
	Bump:    bumpCodec{},
	Loki:    lokiCodec{},
	SonyElf: sonyElfCodec{},
}

// probeOrder is the fixed detector order of §4.3: Loki before Bump
// before Android before Sony ELF32. Loki images carry a valid Android
// magic but need Loki decode rules; Bump images carry a valid Android
// magic plus a trailing marker that must be stripped first.
var probeOrder = []Type{Loki, Bump, Android, SonyElf}

// BootImage is the public facade over the Intermediate model (§4.2).
// A single instance is not safe for concurrent mutation (§5); distinct
// instances may be used from separate goroutines without coordination.
type BootImage struct {
	i10e       *Intermediate
	targetType Type
	sourceType Type
	haveSource bool
	err        *CodedError
}

// New constructs a BootImage with documented defaults (§3, §6).
// target_type defaults to Android; source_type is undefined until a
// successful Load.
func New() *BootImage {
	return &BootImage{
		i10e:       NewIntermediate(),
		targetType: Android,
	}
}

// Error returns the last error recorded by a failed Load/LoadFile/
// CreateFile call.
func (b *BootImage) Error() *CodedError { return b.err }

// Load parses data, committing to the first detector (in dispatch
// order) that claims it. On success source_type is set to the matching
// format. On failure — no detector matches, or the matching codec's
// decode fails — Load returns false and records BootImageParseError.
// The instance may hold partial state after a failed Load; callers
// must not reuse it (§4.8, §7).
func (b *BootImage) Load(data []byte) bool {
	for _, t := range probeOrder {
		c := codecs[t]
		if !c.isValid(data) {
			continue
		}

		next := NewIntermediate()
		if err := c.loadImage(data, next); err != nil {
			b.err = parseErr(err, "loading boot image")
			return false
		}

		b.i10e = next
		b.sourceType = t
		b.haveSource = true
		return true
	}

	b.err = parseErr(nil, "no recognized boot image format")
	return false
}

// LoadFile reads path and calls Load on its contents.
func (b *BootImage) LoadFile(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		b.err = ioErr(FileReadError, path, err)
		return false
	}
	return b.Load(data)
}

// Create serializes the current Intermediate using the codec for
// target_type. It returns an error for an unknown target type, and the
// Loki codec returns one when the page size leaves no room for its
// header at lokiMagicOffset; the other codecs never fail.
func (b *BootImage) Create() ([]byte, error) {
	c, ok := codecs[b.targetType]
	if !ok {
		return nil, &CodedError{Code: BootImageParseError, err: eMsg(nil, "unknown target type")}
	}
	return c.createImage(b.i10e)
}

// CreateFile calls Create and writes the result to path.
func (b *BootImage) CreateFile(path string) bool {
	data, err := b.Create()
	if err != nil {
		b.err = &CodedError{Code: BootImageParseError, err: err}
		return false
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		b.err = ioErr(FileWriteError, path, err)
		return false
	}

	return true
}

// WasType returns the format a successful Load produced. Undefined
// before any successful Load.
func (b *BootImage) WasType() Type { return b.sourceType }

// SetType sets the format a subsequent Create will emit.
func (b *BootImage) SetType(t Type) { b.targetType = t }

// TargetType returns the format a subsequent Create will emit.
func (b *BootImage) TargetType() Type { return b.targetType }

// Intermediate exposes the underlying neutral record for field-level
// access (board name, cmdline, addresses, payloads, ...). Callers on
// separate BootImage instances may read concurrently; a single
// instance's Intermediate must not be mutated from two goroutines at
// once (§5).
func (b *BootImage) Intermediate() *Intermediate { return b.i10e }

// Equal reports whether two boot images are structurally equal per §3
// invariant 5 (ignores source_type, target_type, and unused).
func (b *BootImage) Equal(o *BootImage) bool {
	if b == o {
		return true
	}
	if b == nil || o == nil {
		return false
	}
	return b.i10e.Equal(o.i10e)
}
