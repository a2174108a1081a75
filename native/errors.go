package native

import "github.com/cockroachdb/errors"

// Devices wrap these so callers can match them with errors.Is.
var (
	ErrTimeout    = errors.New("native: timeout")
	ErrDeviceLost = errors.New("native: device lost")
)
