package robot

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/GriffinCanCode/CometPilot/backend/internal/desktop"
)

// Kind is the primitive an action synthesises.
type Kind string

const (
	KindClick  Kind = "click"
	KindType   Kind = "type"
	KindKey    Kind = "key"
	KindScroll Kind = "scroll"
)

const (
	// MaxTypeLength caps text for a single type action, in characters.
	MaxTypeLength = 2000

	defaultScrollAmount = 3
	maxScrollAmount     = 20
	noReason            = "No reason provided"
)

var (
	buttons    = map[string]bool{"left": true, "right": true, "middle": true}
	directions = map[string]bool{"up": true, "down": true, "left": true, "right": true}
)

// RawAction is an unvalidated request as it arrives over HTTP, the bridge or
// from the resolver.
type RawAction struct {
	Type      string   `json:"type"`
	X         *float64 `json:"x,omitempty"`
	Y         *float64 `json:"y,omitempty"`
	Button    string   `json:"button,omitempty"`
	Double    bool     `json:"double,omitempty"`
	Text      string   `json:"text,omitempty"`
	Key       string   `json:"key,omitempty"`
	Modifiers []string `json:"modifiers,omitempty"`
	Direction string   `json:"direction,omitempty"`
	Amount    *float64 `json:"amount,omitempty"`
	Reason    string   `json:"reason,omitempty"`
}

// Click builds a raw left click at (x, y).
func Click(x, y int, reason string) RawAction {
	fx, fy := float64(x), float64(y)
	return RawAction{Type: string(KindClick), X: &fx, Y: &fy, Reason: reason}
}

// Action is a validated action. Only the fields of its Kind are set.
type Action struct {
	Kind      Kind     `json:"type"`
	X         int      `json:"x,omitempty"`
	Y         int      `json:"y,omitempty"`
	Button    string   `json:"button,omitempty"`
	Double    bool     `json:"double,omitempty"`
	Text      string   `json:"text,omitempty"`
	Key       string   `json:"key,omitempty"`
	Modifiers []string `json:"modifiers,omitempty"`
	Direction string   `json:"direction,omitempty"`
	Amount    int      `json:"amount,omitempty"`
	Reason    string   `json:"reason"`
}

// Positional reports whether the action targets a screen coordinate.
func (a Action) Positional() bool {
	return a.Kind == KindClick || a.Kind == KindScroll
}

// NeedsConfirmation reports whether the operator must approve the action.
func (a Action) NeedsConfirmation() bool {
	return a.Kind == KindClick || a.Kind == KindType || a.Kind == KindKey
}

// Validate turns a raw action into an Action or reports the broken rule.
func Validate(raw RawAction) (Action, error) {
	reason := strings.TrimSpace(raw.Reason)
	if reason == "" {
		reason = noReason
	}
	a := Action{Kind: Kind(raw.Type), Reason: reason}

	switch a.Kind {
	case KindClick:
		x, okX := coord(raw.X)
		y, okY := coord(raw.Y)
		if !okX || !okY || x < 0 || y < 0 {
			return Action{}, fmt.Errorf("%w: Invalid coordinates: (%s, %s)", ErrInvalidAction, fmtCoord(raw.X), fmtCoord(raw.Y))
		}
		a.X, a.Y = x, y
		a.Button = raw.Button
		if !buttons[a.Button] {
			a.Button = "left"
		}
		a.Double = raw.Double

	case KindType:
		n := utf8.RuneCountInString(raw.Text)
		if n == 0 {
			return Action{}, fmt.Errorf("%w: Type action requires non-empty text", ErrInvalidAction)
		}
		if n > MaxTypeLength {
			return Action{}, fmt.Errorf("%w: Type text exceeds %d char limit", ErrInvalidAction, MaxTypeLength)
		}
		a.Text = raw.Text

	case KindKey:
		if strings.TrimSpace(raw.Key) == "" {
			return Action{}, fmt.Errorf("%w: Key action requires a key", ErrInvalidAction)
		}
		a.Key = raw.Key
		a.Modifiers = desktop.NormalizeModifiers(raw.Modifiers)

	case KindScroll:
		// missing scroll coordinates mean the origin, which the bounds check
		// then accepts or rejects like any other point
		x, okX := coord(raw.X)
		y, okY := coord(raw.Y)
		if raw.X == nil {
			x, okX = 0, true
		}
		if raw.Y == nil {
			y, okY = 0, true
		}
		if !okX || !okY {
			return Action{}, fmt.Errorf("%w: Invalid coordinates: (%s, %s)", ErrInvalidAction, fmtCoord(raw.X), fmtCoord(raw.Y))
		}
		if !directions[raw.Direction] {
			return Action{}, fmt.Errorf("%w: Invalid scroll direction: %s", ErrInvalidAction, raw.Direction)
		}
		a.X, a.Y = x, y
		a.Direction = raw.Direction
		a.Amount = scrollAmount(raw.Amount)

	default:
		return Action{}, fmt.Errorf("%w: Invalid action type: %s", ErrInvalidAction, raw.Type)
	}
	return a, nil
}

func coord(v *float64) (int, bool) {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return 0, false
	}
	r := math.Floor(*v + 0.5)
	if math.Abs(r) > math.MaxInt32 {
		return 0, false
	}
	return int(r), true
}

func fmtCoord(v *float64) string {
	if v == nil {
		return "missing"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func scrollAmount(v *float64) int {
	if v == nil || *v == 0 || math.IsNaN(*v) {
		return defaultScrollAmount
	}
	n := math.Min(maxScrollAmount, math.Max(1, *v))
	return int(n)
}

// Describe renders the confirmation text for an action.
func Describe(a Action) string {
	switch a.Kind {
	case KindClick:
		s := fmt.Sprintf("Click %q at (%d, %d)", a.Button, a.X, a.Y)
		if a.Double {
			s += " (double-click)"
		}
		return s
	case KindType:
		r := []rune(a.Text)
		if len(r) > 100 {
			return fmt.Sprintf("Type text: \"%s...\"", string(r[:100]))
		}
		return fmt.Sprintf("Type text: \"%s\"", a.Text)
	case KindKey:
		if len(a.Modifiers) > 0 {
			return "Press key: " + strings.Join(a.Modifiers, "+") + "+" + a.Key
		}
		return "Press key: " + a.Key
	case KindScroll:
		return fmt.Sprintf("Scroll %s (%dx) at (%d, %d)", a.Direction, a.Amount, a.X, a.Y)
	}
	return string(a.Kind)
}
