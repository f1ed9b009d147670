//go:build windows

package dispatch

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultShellTimeout = 30 * time.Second
	MaxShellOutput      = 32 << 10
)

// PTYShell is unavailable on Windows.
type PTYShell struct{}

func NewPTYShell(string, time.Duration, *zap.Logger) *PTYShell { return &PTYShell{} }

func (*PTYShell) Run(context.Context, string) (string, error) {
	return "", fmt.Errorf("shell: %w", ErrUnsupportedOS)
}
