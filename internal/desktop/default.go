//go:build !robotgo

package desktop

import "go.uber.org/zap"

// NewDefault returns the host driver. Builds without the robotgo tag have no
// input synthesis.
func NewDefault(log *zap.Logger) Driver {
	if log != nil {
		log.Warn("desktop automation not compiled in; rebuild with -tags robotgo")
	}
	return Unavailable{}
}
