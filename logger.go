package gx

import (
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/docker/go-units"
)

var logger atomic.Pointer[slog.Logger]

func init() {
	SetLogger(nil)
}

// SetLogger replaces the logger used by gx. A nil logger discards everything.
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	logger.Store(l)
}

func Logger() *slog.Logger {
	return logger.Load()
}

func log() *slog.Logger { return logger.Load() }

func bytesAttr(key string, n uint64) slog.Attr {
	return slog.String(key, units.BytesSize(float64(n)))
}
