package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/CometPilot/backend/internal/command"
	"github.com/GriffinCanCode/CometPilot/backend/internal/ocr"
	"github.com/GriffinCanCode/CometPilot/backend/internal/vision"
)

var (
	// ErrUnsupported is returned for a command with no handler.
	ErrUnsupported = errors.New("unsupported command type")
	// ErrNoBrowser is returned when a browser command has nowhere to go.
	ErrNoBrowser = errors.New("no browser shell connected")
	// ErrDisabled is returned when a collaborator is switched off.
	ErrDisabled = errors.New("disabled")
)

// MaxWait caps a single WAIT.
const MaxWait = 24 * time.Hour

// Capabilities is the EXPLAIN_CAPABILITIES reply.
const Capabilities = `I can control this computer on your behalf:
- Browse: navigate, search, manage tabs, read and summarise pages, fill forms
- See: read the screen with OCR and describe what is on it
- Act: click on-screen text, type, press keys and scroll (asks before acting)
- System: run shell commands, open apps, change volume and brightness
- Mail: list, read, send and label Gmail messages once authorised
Desktop and shell actions need the matching permission in Settings > Permissions.`

// OCR reads the screen.
type OCR interface {
	CaptureAndOCR(ctx context.Context, displayID string) ([]ocr.Word, error)
}

// Clicker clicks on-screen text.
type Clicker interface {
	OCRClick(ctx context.Context, target string) vision.ClickResult
}

// Analyzer describes the screen.
type Analyzer interface {
	Analyze(ctx context.Context, question string) (string, error)
}

// BrowserShell forwards a command to the browser surface.
type BrowserShell interface {
	Send(ctx context.Context, cmd command.Command) (string, error)
}

// Shell runs one command line.
type Shell interface {
	Run(ctx context.Context, line string) (string, error)
}

// Deps wires the dispatcher. A nil collaborator fails the commands that need
// it.
type Deps struct {
	OCR      OCR
	Clicker  Clicker
	Analyzer Analyzer
	Browser  BrowserShell
	Shell    Shell
	System   SystemControl
	Logger   *zap.Logger
}

// Dispatcher executes commands. It implements sequencer.Handler.
type Dispatcher struct {
	deps Deps
	log  *zap.Logger
}

// New creates a dispatcher.
func New(deps Deps) *Dispatcher {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{deps: deps, log: log}
}

// Handle runs cmd and returns its output.
func (d *Dispatcher) Handle(ctx context.Context, cmd command.Command) (string, error) {
	d.log.Debug("dispatching command", zap.String("type", string(cmd.Type)), zap.String("value", cmd.Value))

	switch cmd.Type {
	case command.Wait:
		return d.wait(ctx, command.IntValue(cmd))

	case command.OCRScreen:
		return d.screenText(ctx, cmd.Value)
	case command.OCRCoordinates:
		return d.coordinates(ctx, cmd.Value)

	case command.FindAndClick, command.ClickElement:
		return d.click(ctx, cmd.Value)
	case command.GuideClick:
		return d.click(ctx, command.Fields(cmd.Value)[0])

	case command.ScreenshotAnalyze:
		if d.deps.Analyzer == nil {
			return "", fmt.Errorf("screen analysis: %w", ErrDisabled)
		}
		return d.deps.Analyzer.Analyze(ctx, cmd.Value)

	case command.ShellCommand:
		if d.deps.Shell == nil {
			return "", fmt.Errorf("shell: %w", ErrDisabled)
		}
		return d.deps.Shell.Run(ctx, cmd.Value)

	case command.SetVolume:
		return d.system(cmd, func(s SystemControl) error { return s.SetVolume(ctx, command.IntValue(cmd)) },
			fmt.Sprintf("Volume set to %d%%", command.IntValue(cmd)))
	case command.SetBrightness:
		return d.system(cmd, func(s SystemControl) error { return s.SetBrightness(ctx, command.IntValue(cmd)) },
			fmt.Sprintf("Brightness set to %d%%", command.IntValue(cmd)))
	case command.OpenApp:
		name := strings.TrimSpace(cmd.Value)
		return d.system(cmd, func(s SystemControl) error { return s.OpenApp(ctx, name) },
			fmt.Sprintf("Opened %s", name))

	case command.ExplainCapabilities:
		return Capabilities, nil

	case command.Navigate, command.Search, command.SetTheme, command.OpenView,
		command.Reload, command.GoBack, command.GoForward, command.WebSearch,
		command.ReadPageContent, command.ListOpenTabs, command.GeneratePDF,
		command.GenerateDiagram, command.FillForm, command.ScrollTo,
		command.ExtractData, command.CreateTabGroup,
		command.GmailAuthorize, command.GmailListMessages, command.GmailGetMessage,
		command.GmailSendMessage, command.GmailAddLabel:
		if d.deps.Browser == nil {
			return "", ErrNoBrowser
		}
		return d.deps.Browser.Send(ctx, cmd)

	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupported, cmd.Type)
	}
}

func (d *Dispatcher) wait(ctx context.Context, ms int) (string, error) {
	if ms > int(MaxWait/time.Millisecond) {
		ms = int(MaxWait / time.Millisecond)
	}
	t := time.NewTimer(time.Duration(ms) * time.Millisecond)
	defer t.Stop()
	select {
	case <-t.C:
		return fmt.Sprintf("Waited %dms", ms), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (d *Dispatcher) words(ctx context.Context) ([]ocr.Word, error) {
	if d.deps.OCR == nil {
		return nil, fmt.Errorf("ocr: %w", ErrDisabled)
	}
	return d.deps.OCR.CaptureAndOCR(ctx, "")
}

// screenText returns the recognised text, limited to region when the value
// names one.
func (d *Dispatcher) screenText(ctx context.Context, value string) (string, error) {
	words, err := d.words(ctx)
	if err != nil {
		return "", err
	}
	if r, ok := ParseRegion(value); ok {
		words = r.Filter(words)
	}
	text := ocr.Text(words)
	if text == "" {
		return "No text found on screen", nil
	}
	return text, nil
}

// coordinates lists the words inside a region with their centres.
func (d *Dispatcher) coordinates(ctx context.Context, value string) (string, error) {
	r, ok := ParseRegion(value)
	if !ok {
		return "", fmt.Errorf("invalid region %q: want x,y,width,height", value)
	}
	words, err := d.words(ctx)
	if err != nil {
		return "", err
	}
	words = r.Filter(words)
	if len(words) == 0 {
		return "No text found in region", nil
	}
	return vision.ListWords(words), nil
}

func (d *Dispatcher) click(ctx context.Context, target string) (string, error) {
	if d.deps.Clicker == nil {
		return "", fmt.Errorf("ocr click: %w", ErrDisabled)
	}
	res := d.deps.Clicker.OCRClick(ctx, target)
	if !res.Success {
		return "", errors.New(res.Error)
	}
	return fmt.Sprintf("Clicked %q (%s)", res.ClickedText, res.Method), nil
}

func (d *Dispatcher) system(cmd command.Command, fn func(SystemControl) error, ok string) (string, error) {
	if d.deps.System == nil {
		return "", fmt.Errorf("%s: %w", cmd.Type, ErrDisabled)
	}
	if err := fn(d.deps.System); err != nil {
		return "", err
	}
	return ok, nil
}

// Region is a screen rectangle in logical pixels.
type Region struct {
	X, Y, Width, Height int
}

// ParseRegion reads "x,y,width,height". Spaces may separate the numbers
// instead of commas.
func ParseRegion(v string) (Region, bool) {
	parts := strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' })
	if len(parts) != 4 {
		return Region{}, false
	}
	var n [4]int
	for i, p := range parts {
		x, err := strconv.Atoi(p)
		if err != nil {
			return Region{}, false
		}
		n[i] = x
	}
	if n[2] <= 0 || n[3] <= 0 {
		return Region{}, false
	}
	return Region{X: n[0], Y: n[1], Width: n[2], Height: n[3]}, true
}

// Filter keeps the words whose centre lies inside r.
func (r Region) Filter(words []ocr.Word) []ocr.Word {
	var out []ocr.Word
	for _, w := range words {
		if w.CenterX >= r.X && w.CenterX < r.X+r.Width && w.CenterY >= r.Y && w.CenterY < r.Y+r.Height {
			out = append(out, w)
		}
	}
	return out
}
