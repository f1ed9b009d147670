package dispatch

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
)

// ErrUnsupportedOS is returned where no control exists for the host.
var ErrUnsupportedOS = errors.New("not supported on this operating system")

// SystemControl changes host settings and launches applications.
type SystemControl interface {
	SetVolume(ctx context.Context, percent int) error
	SetBrightness(ctx context.Context, percent int) error
	OpenApp(ctx context.Context, name string) error
}

// Runner executes a program. Start programs must not be waited on.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) error
	Start(name string, args ...string) error
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		if msg := strings.TrimSpace(string(out)); msg != "" {
			return fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func (execRunner) Start(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	go cmd.Wait()
	return nil
}

// OSControl drives the host's own tools: pactl, brightnessctl and xdg-open
// on Linux; osascript, brightness and open on macOS.
type OSControl struct {
	GOOS   string
	Runner Runner
	// LookPath resolves an application name to an executable on Linux.
	LookPath func(string) (string, error)
}

// NewOSControl returns a control for the running system.
func NewOSControl() *OSControl {
	return &OSControl{GOOS: runtime.GOOS, Runner: execRunner{}, LookPath: exec.LookPath}
}

func (c *OSControl) SetVolume(ctx context.Context, percent int) error {
	switch c.GOOS {
	case "linux":
		return c.Runner.Run(ctx, "pactl", "set-sink-volume", "@DEFAULT_SINK@", strconv.Itoa(percent)+"%")
	case "darwin":
		return c.Runner.Run(ctx, "osascript", "-e", fmt.Sprintf("set volume output volume %d", percent))
	default:
		return fmt.Errorf("set volume: %w", ErrUnsupportedOS)
	}
}

func (c *OSControl) SetBrightness(ctx context.Context, percent int) error {
	switch c.GOOS {
	case "linux":
		return c.Runner.Run(ctx, "brightnessctl", "set", strconv.Itoa(percent)+"%")
	case "darwin":
		return c.Runner.Run(ctx, "brightness", strconv.FormatFloat(float64(percent)/100, 'f', 2, 64))
	default:
		return fmt.Errorf("set brightness: %w", ErrUnsupportedOS)
	}
}

func (c *OSControl) OpenApp(_ context.Context, name string) error {
	if name == "" {
		return errors.New("open app: no application named")
	}
	switch c.GOOS {
	case "linux":
		if c.LookPath != nil && !strings.ContainsAny(name, "/ ") {
			if path, err := c.LookPath(name); err == nil {
				return c.Runner.Start(path)
			}
		}
		return c.Runner.Start("xdg-open", name)
	case "darwin":
		return c.Runner.Start("open", "-a", name)
	default:
		return fmt.Errorf("open app: %w", ErrUnsupportedOS)
	}
}
