package hdrhistogram

import (
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	loggerMu sync.RWMutex
	logger   = logrus.StandardLogger()
)

// SetLogger replaces the package-level logger used for best-effort,
// non-hot-path diagnostics (auto-resize, recorder flips, lossy add/subtract
// operands). Passing nil restores the standard logger. Logging never
// affects control flow: callers that don't care can simply ignore it or
// point it at an io.Discard-backed logger.
func SetLogger(l *logrus.Logger) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	if l == nil {
		l = logrus.StandardLogger()
	}
	logger = l
}

func log() *logrus.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return logger
}
