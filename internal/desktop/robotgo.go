//go:build robotgo

package desktop

import (
	"context"
	"fmt"
	"image"
	"strconv"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/go-vgo/robotgo"
	"go.uber.org/zap"
)

// Robot drives the host through robotgo.
type Robot struct {
	// robotgo keeps global C state; calls are serialised
	mu  sync.Mutex
	log *zap.Logger
}

// NewDefault returns the robotgo driver.
func NewDefault(log *zap.Logger) Driver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Robot{log: log}
}

func (r *Robot) Available() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return robotgo.DisplaysNum() > 0
}

func (r *Robot) MoveMouse(x, y int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	robotgo.Move(x, y)
	return nil
}

func (r *Robot) Click(button string, double bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	robotgo.Click(button, double)
	return nil
}

func (r *Robot) TypeString(text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	robotgo.TypeStr(text)
	return nil
}

func (r *Robot) KeyTap(key string, modifiers []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	mods := make([]interface{}, len(modifiers))
	for i, m := range modifiers {
		mods[i] = m
	}
	if err := robotgo.KeyTap(key, mods...); err != nil {
		return fmt.Errorf("key tap %q: %w", key, err)
	}
	return nil
}

func (r *Robot) Scroll(direction string, amount int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	robotgo.ScrollDir(amount, direction)
	return nil
}

func (r *Robot) Displays(ctx context.Context) ([]Display, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := robotgo.DisplaysNum()
	if n == 0 {
		return nil, ErrUnavailable
	}
	main := robotgo.GetMainId()
	out := make([]Display, 0, n)
	for i := 0; i < n; i++ {
		x, y, w, h := robotgo.GetDisplayBounds(i)
		scale := robotgo.ScaleF(i)
		if scale <= 0 {
			scale = 1
		}
		out = append(out, Display{
			ID:          strconv.Itoa(i),
			Bounds:      Rect{X: x, Y: y, Width: w, Height: h},
			ScaleFactor: scale,
			Primary:     i == main,
		})
	}
	return out, nil
}

// Capture grabs the display at native resolution and resamples it to the
// requested size.
func (r *Robot) Capture(ctx context.Context, d Display, width, height int) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	idx, _ := strconv.Atoi(d.ID)
	img, err := robotgo.CaptureImg(d.Bounds.X, d.Bounds.Y, d.Bounds.Width, d.Bounds.Height, idx)
	r.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("capture display %s: %w", d.ID, err)
	}

	b := img.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return img, nil
	}
	r.log.Debug("resampling capture",
		zap.Int("native_width", b.Dx()), zap.Int("target_width", width))
	return imaging.Resize(img, width, height, imaging.Lanczos), nil
}
