//go:build tesseract

package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"sync"

	"github.com/otiai10/gosseract/v2"
)

// Gosseract keeps one libtesseract client alive between calls.
type Gosseract struct {
	mu     sync.Mutex
	client *gosseract.Client
}

// NewGosseract initialises a client for language.
func NewGosseract(language string) (*Gosseract, error) {
	client := gosseract.NewClient()
	if language == "" {
		language = "eng"
	}
	if err := client.SetLanguage(language); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}
	return &Gosseract{client: client}, nil
}

// Recognize returns word boxes from libtesseract.
func (g *Gosseract) Recognize(ctx context.Context, img image.Image) ([]RawWord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}
	boxes, err := g.client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("bounding boxes: %w", err)
	}

	words := make([]RawWord, 0, len(boxes))
	for _, b := range boxes {
		words = append(words, RawWord{
			Text:       b.Word,
			Confidence: b.Confidence,
			X0:         float64(b.Box.Min.X),
			Y0:         float64(b.Box.Min.Y),
			X1:         float64(b.Box.Max.X),
			Y1:         float64(b.Box.Max.Y),
		})
	}
	return words, nil
}

// Close releases the client.
func (g *Gosseract) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.client.Close()
}

// DefaultFactory prefers the in-process library.
func DefaultFactory(tesseractPath, language string) Factory {
	return func() (Recognizer, error) {
		return NewGosseract(language)
	}
}
