package command

import (
	"fmt"
	"strings"
)

// ValidationResult reports whether a command may be queued.
type ValidationResult struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

func ok() ValidationResult { return ValidationResult{Valid: true} }

func invalid(format string, args ...any) ValidationResult {
	return ValidationResult{Error: fmt.Sprintf(format, args...)}
}

// Validate checks a command's value against the rule for its type.
func Validate(cmd Command) ValidationResult {
	switch cmd.Type {
	case Navigate, Search, WebSearch:
		if cmd.Value == "" {
			return invalid("%s requires a value", cmd.Type)
		}

	case SetVolume, SetBrightness:
		n, parsed := leadingInt(cmd.Value)
		if !parsed || n < 0 || n > 100 {
			return invalid("%s requires a percentage between 0-100", cmd.Type)
		}

	case Wait:
		n, parsed := leadingInt(cmd.Value)
		if !parsed || n < 0 {
			return invalid("WAIT requires a positive duration in milliseconds")
		}

	case FillForm:
		if !strings.Contains(cmd.Value, "|") {
			return invalid("FILL_FORM requires format: selector | value")
		}

	case GeneratePDF:
		if !strings.Contains(cmd.Value, "|") {
			return invalid("GENERATE_PDF requires format: title | content")
		}

	case Reload, GoBack, GoForward, ScreenshotAnalyze, ReadPageContent,
		ListOpenTabs, GmailAuthorize, ExplainCapabilities:
		// no value needed

	case OCRScreen:
		// empty value means the full screen

	case SetTheme, OpenView, GenerateDiagram, ShellCommand, OpenApp, ScrollTo,
		ExtractData, CreateTabGroup, OCRCoordinates, ClickElement, FindAndClick,
		GmailListMessages, GmailGetMessage, GmailSendMessage, GmailAddLabel, GuideClick:
		if cmd.Value == "" {
			return invalid("%s requires a value", cmd.Type)
		}

	default:
		return invalid("unsupported command type %q", string(cmd.Type))
	}

	return ok()
}

// leadingInt reads an optional sign and the leading decimal digits after any
// leading whitespace, ignoring whatever follows ("50%" is 50). Values too
// large for int saturate.
func leadingInt(s string) (int, bool) {
	s = strings.TrimLeft(s, " \t\n\r\v\f")
	neg := false
	if s != "" && (s[0] == '+' || s[0] == '-') {
		neg = s[0] == '-'
		s = s[1:]
	}

	const limit = 1 << 40
	n, digits := 0, 0
	for digits < len(s) && s[digits] >= '0' && s[digits] <= '9' {
		if n < limit {
			n = n*10 + int(s[digits]-'0')
		}
		digits++
	}
	if digits == 0 {
		return 0, false
	}
	if neg {
		n = -n
	}
	return n, true
}

// IntValue returns the leading integer of a WAIT, SET_VOLUME or
// SET_BRIGHTNESS value. Call only after Validate succeeded.
func IntValue(cmd Command) int {
	n, _ := leadingInt(cmd.Value)
	return n
}
