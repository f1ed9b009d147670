package vision

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/CometPilot/backend/internal/ai"
	"github.com/GriffinCanCode/CometPilot/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/CometPilot/backend/internal/ocr"
	"github.com/GriffinCanCode/CometPilot/backend/internal/robot"
)

// Click methods.
const (
	MethodDirect     = "direct"
	MethodAIResolved = "ai-resolved"
)

// DefaultResolverModel is small and fast; the task is picking an index.
const DefaultResolverModel = "llama-3.1-8b-instant"

// MaxCandidates bounds the words offered to the model.
const MaxCandidates = 100

const resolverPrompt = `You resolve UI click targets from OCR data. Respond with ONLY a JSON object: {"index": N, "text": "matched text"} or {"index": -1} if not found. No other text.`

// Scanner returns the words currently on screen.
type Scanner interface {
	CaptureAndOCR(ctx context.Context, displayID string) ([]ocr.Word, error)
}

// Clicker performs the click once a word is chosen.
type Clicker interface {
	Execute(ctx context.Context, raw robot.RawAction, opts robot.Options) (robot.Result, error)
}

// ClickResult is the outcome of OCRClick. Failures are reported here, never
// as an error.
type ClickResult struct {
	Success     bool   `json:"success"`
	ClickedText string `json:"clickedText,omitempty"`
	Method      string `json:"method,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Resolver turns a text description into a click on a recognised word.
type Resolver struct {
	scanner Scanner
	chat    ai.ChatEngine
	clicker Clicker
	model   string
	log     *zap.Logger
	metrics *monitoring.Metrics
}

// NewResolver creates a resolver. A nil chat engine disables the model
// fallback.
func NewResolver(scanner Scanner, chat ai.ChatEngine, clicker Clicker, model string, log *zap.Logger, metrics *monitoring.Metrics) *Resolver {
	if model == "" {
		model = DefaultResolverModel
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{
		scanner: scanner,
		chat:    chat,
		clicker: clicker,
		model:   model,
		log:     log,
		metrics: metrics,
	}
}

// OCRClick clicks the on-screen word that matches target, first by
// case-insensitive substring in either direction, then by asking the model.
func (r *Resolver) OCRClick(ctx context.Context, target string) ClickResult {
	res := r.ocrClick(ctx, target)
	method := res.Method
	if method == "" {
		method = "none"
	}
	r.metrics.RecordOCRClick(method, res.Success)
	r.log.Info("ocr click",
		zap.String("target", target),
		zap.String("method", res.Method),
		zap.Bool("success", res.Success),
		zap.String("error", res.Error))
	return res
}

func (r *Resolver) ocrClick(ctx context.Context, target string) ClickResult {
	target = strings.TrimSpace(target)
	if target == "" {
		return ClickResult{Error: "No click target given"}
	}

	words, err := r.scanner.CaptureAndOCR(ctx, "")
	if err != nil {
		return ClickResult{Error: fmt.Sprintf("Screen OCR failed: %v", err)}
	}
	if len(words) == 0 {
		return ClickResult{Error: "No text found on screen"}
	}

	if w, ok := DirectMatch(words, target); ok {
		return r.click(ctx, w, MethodDirect, fmt.Sprintf("OCR direct click: %q", w.Text))
	}

	if r.chat == nil {
		return ClickResult{Error: fmt.Sprintf("Text %q not found on screen (no AI fallback)", target)}
	}

	candidates := words
	if len(candidates) > MaxCandidates {
		candidates = candidates[:MaxCandidates]
	}

	reply, err := r.chat.Chat(ctx, ai.Request{
		Model:        r.model,
		SystemPrompt: resolverPrompt,
		Message:      fmt.Sprintf("Target: %q\n\nOCR words:\n%s", target, ListWords(candidates)),
	})
	if err != nil {
		return ClickResult{Error: fmt.Sprintf("AI resolution failed: %v", err)}
	}

	idx, err := ParseIndex(reply)
	if err != nil {
		return ClickResult{Error: fmt.Sprintf("AI resolution failed: %v", err)}
	}
	if idx < 0 || idx >= len(candidates) {
		return ClickResult{Error: fmt.Sprintf("AI could not find %q on screen", target)}
	}

	w := candidates[idx]
	return r.click(ctx, w, MethodAIResolved, fmt.Sprintf("OCR AI click: %q (target: %q)", w.Text, target))
}

func (r *Resolver) click(ctx context.Context, w ocr.Word, method, reason string) ClickResult {
	res, err := r.clicker.Execute(ctx, robot.Click(w.CenterX, w.CenterY, reason), robot.Options{})
	if err != nil {
		msg := res.Error
		if msg == "" {
			msg = err.Error()
		}
		return ClickResult{ClickedText: w.Text, Method: method, Error: msg}
	}
	return ClickResult{Success: true, ClickedText: w.Text, Method: method}
}

// DirectMatch returns the first word that contains target or is contained
// in it, ignoring case.
func DirectMatch(words []ocr.Word, target string) (ocr.Word, bool) {
	t := strings.ToLower(target)
	for _, w := range words {
		text := strings.ToLower(w.Text)
		if text == "" {
			continue
		}
		if strings.Contains(text, t) || strings.Contains(t, text) {
			return w, true
		}
	}
	return ocr.Word{}, false
}

// ListWords renders candidates as `[i] "text" at (x, y)` lines.
func ListWords(words []ocr.Word) string {
	var sb strings.Builder
	for i, w := range words {
		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "[%d] %q at (%d, %d)", i, w.Text, w.CenterX, w.CenterY)
	}
	return sb.String()
}

// ParseIndex reads {"index": N} from a model reply, tolerating markdown
// code fences around it.
func ParseIndex(reply string) (int, error) {
	cleaned := stripFences(reply)

	var out struct {
		Index *float64 `json:"index"`
	}
	if err := sonic.UnmarshalString(cleaned, &out); err != nil {
		return 0, fmt.Errorf("malformed response %q", truncate(cleaned, 80))
	}
	if out.Index == nil {
		return 0, fmt.Errorf("response has no index: %q", truncate(cleaned, 80))
	}
	if *out.Index != math.Trunc(*out.Index) {
		return 0, fmt.Errorf("index %v is not an integer", *out.Index)
	}
	return int(*out.Index), nil
}

func stripFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
