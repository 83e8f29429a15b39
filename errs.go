package bootimg

import (
	"fmt"

	"github.com/hashicorp/errwrap"
)

// ErrorCode is one of the four coarse error codes the library exposes
// (§6, §7). No other codes emerge from the core.
type ErrorCode int

const (
	// NoError means no operation has failed yet.
	NoError ErrorCode = iota
	BootImageParseError
	FileOpenError
	FileWriteError
	FileReadError
)

func (c ErrorCode) String() string {
	switch c {
	case BootImageParseError:
		return "BootImageParseError"
	case FileOpenError:
		return "FileOpenError"
	case FileWriteError:
		return "FileWriteError"
	case FileReadError:
		return "FileReadError"
	default:
		return "NoError"
	}
}

// CodedError pairs one of the four coarse error codes with the wrapped
// cause, in the errwrap chain tipatch uses for its own error reporting
// (util.go: GetErrors unwraps exactly this shape).
type CodedError struct {
	Code ErrorCode
	Path string // set only for I/O errors
	err  error
}

func (e *CodedError) Error() string {
	if e == nil || e.err == nil {
		return e.Code.String()
	}
	return e.err.Error()
}

func (e *CodedError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

// eMsg wraps err with a short description of what was being attempted,
// in the same shape as tipatch's eMsg call sites (unpack.go,
// compress.go): "<msg>: <err>".
func eMsg(err error, msg string) error {
	if err == nil {
		return nil
	}
	return errwrap.Wrapf(fmt.Sprintf("%s: {{err}}", msg), err)
}

func parseErr(err error, msg string) *CodedError {
	return &CodedError{Code: BootImageParseError, err: eMsg(err, msg)}
}

func ioErr(code ErrorCode, path string, err error) *CodedError {
	return &CodedError{Code: code, Path: path, err: eMsg(err, path)}
}
