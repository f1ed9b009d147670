package vision

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/CometPilot/backend/internal/ai"
	"github.com/GriffinCanCode/CometPilot/backend/internal/desktop"
	"github.com/GriffinCanCode/CometPilot/backend/internal/ocr"
)

// ErrNotAvailable means OCR or the chat engine is not wired.
var ErrNotAvailable = errors.New("OCR/AI not available")

// DefaultDescribeModel summarises OCR text.
const DefaultDescribeModel = "gemini-2.5-flash"

const (
	maxDescribeContext = 2000
	snapshotWidth      = 1920
	snapshotHeight     = 1080
	snapshotQuality    = 85
)

// ImageModel answers questions about an image.
type ImageModel interface {
	CanDescribeImages() bool
	DescribeImage(ctx context.Context, img []byte, mimeType, prompt string) (string, error)
}

// Describer summarises what is on screen, from a screenshot when a
// vision model is configured and from OCR text otherwise.
type Describer struct {
	scanner  Scanner
	capturer desktop.Capturer
	chat     ai.ChatEngine
	images   ImageModel
	model    string
	log      *zap.Logger
}

// NewDescriber creates a describer. capturer and images may be nil.
func NewDescriber(scanner Scanner, capturer desktop.Capturer, chat ai.ChatEngine, images ImageModel, model string, log *zap.Logger) *Describer {
	if model == "" {
		model = DefaultDescribeModel
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Describer{
		scanner:  scanner,
		capturer: capturer,
		chat:     chat,
		images:   images,
		model:    model,
		log:      log,
	}
}

// Describe returns a one or two sentence summary of the OCR text on screen.
func (d *Describer) Describe(ctx context.Context) (string, error) {
	if d.chat == nil || d.scanner == nil {
		return "", ErrNotAvailable
	}
	words, err := d.scanner.CaptureAndOCR(ctx, "")
	if err != nil {
		return "", err
	}
	text := ocr.Text(words)
	if r := []rune(text); len(r) > maxDescribeContext {
		text = string(r[:maxDescribeContext])
	}
	return d.chat.Chat(ctx, ai.Request{
		Model:   d.model,
		Message: "Describe what's on this screen briefly in 1-2 sentences: " + text,
	})
}

// Analyze answers question about the screen. Without a vision model it
// falls back to Describe.
func (d *Describer) Analyze(ctx context.Context, question string) (string, error) {
	if d.images == nil || d.capturer == nil || !d.images.CanDescribeImages() {
		return d.Describe(ctx)
	}

	img, err := d.snapshot(ctx)
	if err != nil {
		d.log.Warn("screenshot failed, describing from OCR", zap.Error(err))
		return d.Describe(ctx)
	}
	prompt := strings.TrimSpace(question)
	if prompt == "" {
		prompt = ai.DescribePrompt
	}
	return d.images.DescribeImage(ctx, img, "image/jpeg", prompt)
}

// snapshot captures the primary display as a JPEG no larger than 1920x1080.
func (d *Describer) snapshot(ctx context.Context) ([]byte, error) {
	displays, err := d.capturer.Displays(ctx)
	if err != nil {
		return nil, err
	}
	display, ok := desktop.Primary(displays)
	if !ok {
		return nil, ocr.ErrNoCapture
	}

	w, h := fit(display.Bounds.Width, display.Bounds.Height, snapshotWidth, snapshotHeight)
	img, err := d.capturer.Capture(ctx, display, w, h)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(snapshotQuality)); err != nil {
		return nil, fmt.Errorf("encode screenshot: %w", err)
	}
	return buf.Bytes(), nil
}

// fit scales w×h down to fit inside maxW×maxH, keeping the aspect ratio.
func fit(w, h, maxW, maxH int) (int, int) {
	if w <= 0 || h <= 0 {
		return maxW, maxH
	}
	if w <= maxW && h <= maxH {
		return w, h
	}
	sw := float64(maxW) / float64(w)
	sh := float64(maxH) / float64(h)
	s := sw
	if sh < s {
		s = sh
	}
	return max(1, int(float64(w)*s)), max(1, int(float64(h)*s))
}
