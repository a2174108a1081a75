package gx

import (
	"github.com/cockroachdb/errors"

	"github.com/celer/gx/native"
)

var (
	ErrNoSurface         = errors.New("gx: device has no presentable surface")
	ErrDeviceLost        = native.ErrDeviceLost
	ErrUnsupportedFormat = errors.New("gx: unsupported format")
)

// assertf panics with an assertion failure when cond is false. It guards
// invariants that only a programming error can break.
func assertf(cond bool, format string, args ...any) {
	if !cond {
		panic(errors.AssertionFailedf(format, args...))
	}
}

// check is used around native calls inside operations that have no error
// return. A failing driver call at that point leaves no way to recover.
func check(err error, op string) {
	if err != nil {
		panic(errors.NewAssertionErrorWithWrappedErrf(err, "%s", op))
	}
}
