package vulkan

import (
	"log/slog"
	"sync/atomic"

	"github.com/celer/gx"
)

var logger atomic.Pointer[slog.Logger]

// SetLogger overrides the logger of the backend. Until it is called, or
// after it is called with nil, the backend logs through gx.Logger.
func SetLogger(l *slog.Logger) {
	logger.Store(l)
}

func log() *slog.Logger {
	if l := logger.Load(); l != nil {
		return l
	}
	return gx.Logger()
}
