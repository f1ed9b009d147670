package desktop

import (
	"context"
	"errors"
	"image"
	"strings"
)

// ErrUnavailable is returned by every call on a host without input synthesis
// or screen capture support.
var ErrUnavailable = errors.New("desktop automation unavailable")

// Rect is a display rectangle in logical (point) coordinates.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Contains reports whether (x, y) lies in [X, X+Width) × [Y, Y+Height).
func (r Rect) Contains(x, y int) bool {
	return x >= r.X && x < r.X+r.Width && y >= r.Y && y < r.Y+r.Height
}

// Display is one attached screen.
type Display struct {
	ID          string  `json:"id"`
	Bounds      Rect    `json:"bounds"`
	ScaleFactor float64 `json:"scale_factor"`
	Primary     bool    `json:"primary"`
}

// Input synthesises pointer and keyboard events.
type Input interface {
	MoveMouse(x, y int) error
	Click(button string, double bool) error
	TypeString(text string) error
	KeyTap(key string, modifiers []string) error
	// Scroll turns the wheel at the current pointer position.
	Scroll(direction string, amount int) error
}

// Screens enumerates attached displays.
type Screens interface {
	Displays(ctx context.Context) ([]Display, error)
}

// Capturer grabs a display image scaled to width × height pixels.
type Capturer interface {
	Screens
	Capture(ctx context.Context, display Display, width, height int) (image.Image, error)
}

// Driver is the full host capability used by the executor and OCR engine.
type Driver interface {
	Input
	Capturer
	Available() bool
}

// Primary returns the primary display, or the first one when none is marked.
func Primary(displays []Display) (Display, bool) {
	if len(displays) == 0 {
		return Display{}, false
	}
	for _, d := range displays {
		if d.Primary {
			return d, true
		}
	}
	return displays[0], true
}

// Find returns the display with id, falling back to the primary display.
func Find(displays []Display, id string) (Display, bool) {
	if id != "" {
		for _, d := range displays {
			if d.ID == id {
				return d, true
			}
		}
	}
	return Primary(displays)
}

// Modifiers the executor passes through; anything else is dropped.
var allowedModifiers = map[string]string{
	"command": "command",
	"cmd":     "command",
	"super":   "command",
	"control": "control",
	"ctrl":    "control",
	"alt":     "alt",
	"option":  "alt",
	"shift":   "shift",
}

// NormalizeModifiers lowercases, maps aliases and drops unknown or repeated
// modifiers, keeping first-seen order.
func NormalizeModifiers(mods []string) []string {
	out := make([]string, 0, len(mods))
	seen := make(map[string]bool, len(mods))
	for _, m := range mods {
		canon, ok := allowedModifiers[strings.ToLower(strings.TrimSpace(m))]
		if !ok || seen[canon] {
			continue
		}
		seen[canon] = true
		out = append(out, canon)
	}
	return out
}

// Unavailable is the driver for hosts without automation support.
type Unavailable struct{}

func (Unavailable) Available() bool { return false }
func (Unavailable) MoveMouse(int, int) error { return ErrUnavailable }
func (Unavailable) Click(string, bool) error { return ErrUnavailable }
func (Unavailable) TypeString(string) error { return ErrUnavailable }
func (Unavailable) KeyTap(string, []string) error { return ErrUnavailable }
func (Unavailable) Scroll(string, int) error { return ErrUnavailable }
func (Unavailable) Displays(context.Context) ([]Display, error) { return nil, ErrUnavailable }
func (Unavailable) Capture(context.Context, Display, int, int) (image.Image, error) {
	return nil, ErrUnavailable
}
