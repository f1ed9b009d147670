// Package desktoptest provides a scriptable desktop driver for tests.
package desktoptest

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"sync"
	"time"

	"github.com/GriffinCanCode/CometPilot/backend/internal/desktop"
)

// Call is one recorded input event.
type Call struct {
	Op        string
	X, Y      int
	Button    string
	Double    bool
	Text      string
	Key       string
	Modifiers []string
	Direction string
	Amount    int
	At        time.Time
}

// Fake records input calls and serves blank captures.
type Fake struct {
	mu sync.Mutex

	Screens     []desktop.Display
	Unavailable bool
	CaptureErr  error
	InputErr    error

	calls    []Call
	captures []image.Point
}

// New returns a fake with one 1920×1080 primary display at scale 1.
func New() *Fake {
	return &Fake{
		Screens: []desktop.Display{{
			ID:          "0",
			Bounds:      desktop.Rect{Width: 1920, Height: 1080},
			ScaleFactor: 1,
			Primary:     true,
		}},
	}
}

func (f *Fake) Available() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.Unavailable
}

func (f *Fake) record(c Call) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c.At = time.Now()
	f.calls = append(f.calls, c)
	return f.InputErr
}

func (f *Fake) MoveMouse(x, y int) error {
	return f.record(Call{Op: "move", X: x, Y: y})
}

func (f *Fake) Click(button string, double bool) error {
	return f.record(Call{Op: "click", Button: button, Double: double})
}

func (f *Fake) TypeString(text string) error {
	return f.record(Call{Op: "type", Text: text})
}

func (f *Fake) KeyTap(key string, modifiers []string) error {
	return f.record(Call{Op: "key", Key: key, Modifiers: modifiers})
}

func (f *Fake) Scroll(direction string, amount int) error {
	return f.record(Call{Op: "scroll", Direction: direction, Amount: amount})
}

func (f *Fake) Displays(context.Context) ([]desktop.Display, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Unavailable {
		return nil, desktop.ErrUnavailable
	}
	out := make([]desktop.Display, len(f.Screens))
	copy(out, f.Screens)
	return out, nil
}

func (f *Fake) Capture(_ context.Context, d desktop.Display, width, height int) (image.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CaptureErr != nil {
		return nil, f.CaptureErr
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("bad capture size %dx%d", width, height)
	}
	f.captures = append(f.captures, image.Pt(width, height))
	img := image.NewGray(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	return img, nil
}

// Calls returns the recorded input events.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// Clicks returns click calls paired with the preceding pointer position.
func (f *Fake) Clicks() []Call {
	var out []Call
	var x, y int
	for _, c := range f.Calls() {
		switch c.Op {
		case "move":
			x, y = c.X, c.Y
		case "click":
			c.X, c.Y = x, y
			out = append(out, c)
		}
	}
	return out
}

// Captures returns the requested capture sizes.
func (f *Fake) Captures() []image.Point {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]image.Point, len(f.captures))
	copy(out, f.captures)
	return out
}

var _ desktop.Driver = (*Fake)(nil)
