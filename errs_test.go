package bootimg

import (
	"errors"
	"testing"

	"github.com/hashicorp/errwrap"
)

func TestCodedErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	ce := parseErr(cause, "doing a thing")

	if ce.Code != BootImageParseError {
		t.Errorf("Code = %v, want %v", ce.Code, BootImageParseError)
	}

	wrapped, ok := ce.Unwrap().(errwrap.Wrapper)
	if !ok {
		t.Fatal("Unwrap() should return an errwrap.Wrapper")
	}
	// errwrap.Wrapf yields [outer, inner]: the "<msg>: <err>" message
	// first, then the original cause.
	errs := wrapped.WrappedErrors()
	if len(errs) != 2 || errs[0].Error() != "doing a thing: boom" || errs[1] != cause {
		t.Errorf("WrappedErrors() = %v, want [doing a thing: boom %v]", errs, cause)
	}
}

func TestCodedErrorNilCause(t *testing.T) {
	ce := parseErr(nil, "no underlying cause")
	if ce.Error() != BootImageParseError.String() {
		t.Errorf("Error() = %q, want %q", ce.Error(), BootImageParseError.String())
	}
}

func TestIoErrSetsPath(t *testing.T) {
	ce := ioErr(FileReadError, "/tmp/missing.img", errors.New("no such file"))
	if ce.Code != FileReadError {
		t.Errorf("Code = %v, want %v", ce.Code, FileReadError)
	}
	if ce.Path != "/tmp/missing.img" {
		t.Errorf("Path = %q, want %q", ce.Path, "/tmp/missing.img")
	}
}

func TestErrorCodeString(t *testing.T) {
	cases := map[ErrorCode]string{
		NoError:             "NoError",
		BootImageParseError: "BootImageParseError",
		FileOpenError:       "FileOpenError",
		FileWriteError:      "FileWriteError",
		FileReadError:       "FileReadError",
	}
	for code, want := range cases {
		if got := code.String(); got != want {
			t.Errorf("ErrorCode(%d).String() = %q, want %q", code, got, want)
		}
	}
}
