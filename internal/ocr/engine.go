package ocr

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/CometPilot/backend/internal/desktop"
	"github.com/GriffinCanCode/CometPilot/backend/internal/infrastructure/monitoring"
)

var (
	// ErrNoCapture means no display could be captured.
	ErrNoCapture = errors.New("could not capture screen")
	// ErrEngineUnavailable means the recogniser could not be initialised.
	ErrEngineUnavailable = errors.New("ocr engine unavailable")
	// ErrRecognition wraps a recogniser failure.
	ErrRecognition = errors.New("ocr recognition failed")
)

// Options tunes capture and filtering.
type Options struct {
	MaxCapture    int
	MinConfidence float64
}

// DefaultOptions caps captures at 4096px and keeps words above 60%.
func DefaultOptions() Options {
	return Options{
		MaxCapture:    4096,
		MinConfidence: 60,
	}
}

// Engine captures displays and recognises their text. The recogniser is
// created on first use, closed after any recognition failure and recreated
// on the next call. Calls are serialised.
type Engine struct {
	capturer desktop.Capturer
	pre      Preprocessor
	factory  Factory
	opts     Options
	log      *zap.Logger
	metrics  *monitoring.Metrics

	mu  sync.Mutex
	rec Recognizer
}

// NewEngine wires an engine. A nil preprocessor feeds raw captures to the
// recogniser.
func NewEngine(capturer desktop.Capturer, pre Preprocessor, factory Factory, opts Options, log *zap.Logger, metrics *monitoring.Metrics) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.MaxCapture <= 0 {
		opts.MaxCapture = DefaultOptions().MaxCapture
	}
	return &Engine{
		capturer: capturer,
		pre:      pre,
		factory:  factory,
		opts:     opts,
		log:      log,
		metrics:  metrics,
	}
}

// Scan is one capture's words plus the geometry used to place them.
type Scan struct {
	Display  desktop.Display `json:"display"`
	Geometry Geometry        `json:"geometry"`
	Words    []Word          `json:"words"`
}

// CaptureAndOCR captures displayID (the primary display when empty or
// unknown) and returns its words in screen-logical coordinates.
func (e *Engine) CaptureAndOCR(ctx context.Context, displayID string) ([]Word, error) {
	scan, err := e.Scan(ctx, displayID)
	if err != nil {
		return nil, err
	}
	return scan.Words, nil
}

// Scan is CaptureAndOCR with the display and geometry attached.
func (e *Engine) Scan(ctx context.Context, displayID string) (*Scan, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	timer := monitoring.NewTimer(e.metrics)

	rec, err := e.recognizer()
	if err != nil {
		return nil, err
	}

	displays, err := e.capturer.Displays(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoCapture, err)
	}
	display, ok := desktop.Find(displays, displayID)
	if !ok {
		return nil, ErrNoCapture
	}

	cw, ch := CaptureSize(display, e.opts.MaxCapture)
	img, err := e.capturer.Capture(ctx, display, cw, ch)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoCapture, err)
	}
	if img == nil {
		return nil, ErrNoCapture
	}

	processed, scale := e.preprocess(img, cw)

	raw, err := rec.Recognize(ctx, processed)
	if err != nil {
		e.resetLocked()
		e.log.Error("ocr failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrRecognition, err)
	}

	geo := Geometry{
		ScreenWidth:     display.Bounds.Width,
		ScreenHeight:    display.Bounds.Height,
		CaptureWidth:    cw,
		CaptureHeight:   ch,
		PreprocessScale: scale,
	}
	words := Rescale(raw, geo, e.opts.MinConfidence)

	elapsed := timer.StopOCR(len(words))
	e.log.Debug("ocr pass",
		zap.String("display", display.ID),
		zap.Int("capture_width", cw),
		zap.Int("capture_height", ch),
		zap.Float64("preprocess_scale", scale),
		zap.Int("words", len(words)),
		zap.Duration("elapsed", elapsed))

	return &Scan{Display: display, Geometry: geo, Words: words}, nil
}

// ScreenText returns the recognised text of a display as one string.
func (e *Engine) ScreenText(ctx context.Context, displayID string) (string, error) {
	words, err := e.CaptureAndOCR(ctx, displayID)
	if err != nil {
		return "", err
	}
	return Text(words), nil
}

// RecognizeImage runs the pipeline on an arbitrary image. Coordinates are in
// the image's own pixel space.
func (e *Engine) RecognizeImage(ctx context.Context, img image.Image) ([]Word, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, ErrNoCapture
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	rec, err := e.recognizer()
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	processed, scale := e.preprocess(img, b.Dx())
	raw, err := rec.Recognize(ctx, processed)
	if err != nil {
		e.resetLocked()
		return nil, fmt.Errorf("%w: %v", ErrRecognition, err)
	}

	return Rescale(raw, Geometry{
		ScreenWidth:     b.Dx(),
		ScreenHeight:    b.Dy(),
		CaptureWidth:    b.Dx(),
		CaptureHeight:   b.Dy(),
		PreprocessScale: scale,
	}, e.opts.MinConfidence), nil
}

// Close releases the recogniser.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.rec == nil {
		return nil
	}
	err := e.rec.Close()
	e.rec = nil
	return err
}

// preprocess returns the image to recognise and its scale relative to the
// capture. Any failure falls back to the raw capture at scale 1.
func (e *Engine) preprocess(img image.Image, captureWidth int) (image.Image, float64) {
	if e.pre == nil || captureWidth <= 0 {
		return img, 1
	}
	out, err := e.pre.Preprocess(img)
	if err != nil {
		e.log.Warn("preprocessing failed, using raw image", zap.Error(err))
		return img, 1
	}
	return out, float64(e.pre.TargetWidth()) / float64(captureWidth)
}

func (e *Engine) recognizer() (Recognizer, error) {
	if e.rec != nil {
		return e.rec, nil
	}
	if e.factory == nil {
		return nil, ErrEngineUnavailable
	}
	rec, err := e.factory()
	if err != nil {
		e.log.Error("failed to init ocr engine", zap.Error(err))
		if errors.Is(err, ErrEngineUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}
	e.rec = rec
	e.log.Info("ocr engine initialized")
	return rec, nil
}

func (e *Engine) resetLocked() {
	if e.rec == nil {
		return
	}
	if err := e.rec.Close(); err != nil {
		e.log.Warn("closing failed recognizer", zap.Error(err))
	}
	e.rec = nil
}
