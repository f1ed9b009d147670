package ocr

import (
	"errors"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"gonum.org/v1/gonum/stat"
)

// Preprocessor prepares a capture for recognition. It must return an image
// TargetWidth pixels wide.
type Preprocessor interface {
	Preprocess(img image.Image) (image.Image, error)
	TargetWidth() int
}

// ImagingPreprocessor converts to grayscale, stretches contrast between the
// low and high luminance percentiles, sharpens, then resamples with Lanczos.
type ImagingPreprocessor struct {
	Width        int
	SharpenSigma float64
	LowPct       float64
	HighPct      float64
}

// NewPreprocessor returns the standard pipeline targeting width pixels.
func NewPreprocessor(width int) *ImagingPreprocessor {
	return &ImagingPreprocessor{
		Width:        width,
		SharpenSigma: 1.5,
		LowPct:       0.01,
		HighPct:      0.99,
	}
}

func (p *ImagingPreprocessor) TargetWidth() int { return p.Width }

// Preprocess runs the pipeline.
func (p *ImagingPreprocessor) Preprocess(img image.Image) (image.Image, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, errors.New("empty image")
	}
	if p.Width <= 0 {
		return nil, errors.New("preprocess width must be positive")
	}

	gray := imaging.Grayscale(img)
	lo, hi := luminanceRange(gray, p.LowPct, p.HighPct)
	if hi > lo {
		span := hi - lo
		gray = imaging.AdjustFunc(gray, func(c color.NRGBA) color.NRGBA {
			v := stretch(float64(c.R), lo, span)
			return color.NRGBA{R: v, G: v, B: v, A: c.A}
		})
	}

	sharp := imaging.Sharpen(gray, p.SharpenSigma)
	return imaging.Resize(sharp, p.Width, 0, imaging.Lanczos), nil
}

// luminanceRange returns the lo/hi quantiles of the gray channel, computed
// over a 256-bin histogram as weighted samples.
func luminanceRange(img *image.NRGBA, loPct, hiPct float64) (float64, float64) {
	var hist [256]float64
	for i := 0; i+3 < len(img.Pix); i += 4 {
		hist[img.Pix[i]]++
	}

	values := make([]float64, 0, 256)
	weights := make([]float64, 0, 256)
	for v, n := range hist {
		if n > 0 {
			values = append(values, float64(v))
			weights = append(weights, n)
		}
	}
	if len(values) == 0 {
		return 0, 0
	}
	lo := stat.Quantile(loPct, stat.Empirical, values, weights)
	hi := stat.Quantile(hiPct, stat.Empirical, values, weights)
	return lo, hi
}

func stretch(v, lo, span float64) uint8 {
	out := (v - lo) / span * 255
	return uint8(math.Max(0, math.Min(255, math.Round(out))))
}
