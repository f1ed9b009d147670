package ocr

import (
	"math"
	"strings"

	"github.com/GriffinCanCode/CometPilot/backend/internal/desktop"
)

// BBox is a word box in screen-logical pixels.
type BBox struct {
	X0 int `json:"x0"`
	Y0 int `json:"y0"`
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
}

// Word is a recognised token positioned on the screen.
type Word struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	BBox       BBox    `json:"bbox"`
	CenterX    int     `json:"centerX"`
	CenterY    int     `json:"centerY"`
}

// RawWord is a recogniser result in the pixel space of the image it saw.
type RawWord struct {
	Text       string
	Confidence float64
	X0, Y0     float64
	X1, Y1     float64
}

// Geometry records the scaling chain from screen to recognised image.
//
//	screen (logical) --×capture/screen--> capture --×PreprocessScale--> recognised
type Geometry struct {
	ScreenWidth     int     `json:"screen_width"`
	ScreenHeight    int     `json:"screen_height"`
	CaptureWidth    int     `json:"capture_width"`
	CaptureHeight   int     `json:"capture_height"`
	PreprocessScale float64 `json:"preprocess_scale"`
}

// CaptureSize returns the capture resolution for d: its logical size times
// its scale factor, each side capped at max.
func CaptureSize(d desktop.Display, max int) (int, int) {
	scale := d.ScaleFactor
	if scale <= 0 {
		scale = 1
	}
	w := int(math.Round(float64(d.Bounds.Width) * scale))
	h := int(math.Round(float64(d.Bounds.Height) * scale))
	if max > 0 {
		w = min(w, max)
		h = min(h, max)
	}
	return w, h
}

// Rescale maps raw words back to screen-logical pixels, dropping words at or
// below minConfidence and words with blank text. Centres are the midpoint of
// the rescaled box.
func Rescale(raw []RawWord, g Geometry, minConfidence float64) []Word {
	pre := g.PreprocessScale
	if pre <= 0 {
		pre = 1
	}
	sx, sy := 1.0, 1.0
	if g.CaptureWidth > 0 && g.CaptureHeight > 0 {
		sx = float64(g.ScreenWidth) / float64(g.CaptureWidth)
		sy = float64(g.ScreenHeight) / float64(g.CaptureHeight)
	}
	fx := func(v float64) float64 { return v / pre * sx }
	fy := func(v float64) float64 { return v / pre * sy }

	words := make([]Word, 0, len(raw))
	for _, w := range raw {
		text := strings.TrimSpace(w.Text)
		if text == "" || w.Confidence <= minConfidence {
			continue
		}
		x0, y0, x1, y1 := fx(w.X0), fy(w.Y0), fx(w.X1), fy(w.Y1)
		words = append(words, Word{
			Text:       text,
			Confidence: w.Confidence,
			BBox: BBox{
				X0: round(x0),
				Y0: round(y0),
				X1: round(x1),
				Y1: round(y1),
			},
			CenterX: round((x0 + x1) / 2),
			CenterY: round((y0 + y1) / 2),
		})
	}
	return words
}

// Text joins word texts with single spaces.
func Text(words []Word) string {
	parts := make([]string, len(words))
	for i, w := range words {
		parts[i] = w.Text
	}
	return strings.Join(parts, " ")
}

// round matches Math.round: halves go towards +Inf.
func round(v float64) int {
	return int(math.Floor(v + 0.5))
}
