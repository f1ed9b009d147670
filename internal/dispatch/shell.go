//go:build !windows

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/creack/pty"
	"go.uber.org/zap"
)

const (
	// DefaultShellTimeout bounds one SHELL_COMMAND.
	DefaultShellTimeout = 30 * time.Second
	// MaxShellOutput is how much trailing output is kept.
	MaxShellOutput = 32 << 10

	truncatedMarker = "[output truncated]\n"
	drainWait       = 200 * time.Millisecond
)

// PTYShell runs command lines under a pseudo-terminal so programs that
// check for a tty behave as they would in a terminal.
type PTYShell struct {
	Path    string
	Dir     string
	Timeout time.Duration
	Log     *zap.Logger
}

// NewPTYShell returns a runner for shell path. Zero values take defaults.
func NewPTYShell(path string, timeout time.Duration, log *zap.Logger) *PTYShell {
	if path == "" {
		path = "/bin/sh"
	}
	if timeout <= 0 {
		timeout = DefaultShellTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &PTYShell{Path: path, Timeout: timeout, Log: log}
}

// Run executes line with "<shell> -c" and returns its combined output. A
// non-zero exit is an error; the output is still returned.
func (s *PTYShell) Run(ctx context.Context, line string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, s.Path, "-c", line)
	cmd.Dir = s.Dir
	cmd.Env = append(os.Environ(), "TERM=dumb")
	// pty.Start puts the shell in its own session, so its pid is the group id.
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: 24, Cols: 200})
	if err != nil {
		return "", fmt.Errorf("failed to start PTY: %w", err)
	}
	defer ptmx.Close()

	buf := newTailBuffer(MaxShellOutput)
	copied := make(chan struct{})
	go func() {
		// Reading the master fails with EIO once the last slave fd closes.
		_, _ = io.Copy(buf, ptmx)
		close(copied)
	}()

	start := time.Now()
	waitErr := cmd.Wait()
	select {
	case <-copied:
	case <-time.After(drainWait):
	}

	raw, truncated := buf.Bytes()
	out := strings.TrimRight(strings.ReplaceAll(string(raw), "\r\n", "\n"), "\n")
	if truncated {
		out = truncatedMarker + out
	}

	s.Log.Info("shell command finished",
		zap.String("command", line),
		zap.Duration("elapsed", time.Since(start)),
		zap.Bool("truncated", truncated),
		zap.Error(waitErr))

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return out, fmt.Errorf("command timed out after %s", s.Timeout)
	}
	if waitErr != nil {
		return out, fmt.Errorf("command failed: %w", waitErr)
	}
	return out, nil
}
