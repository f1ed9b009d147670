package command

import (
	"fmt"
	"strconv"
	"strings"
)

// Describe returns a short human-readable label for progress displays.
func Describe(cmd Command) string {
	v := cmd.Value
	switch cmd.Type {
	case Navigate:
		return "Navigate to " + v
	case Search:
		return fmt.Sprintf("Search for %q", v)
	case SetTheme:
		return "Change theme to " + v
	case OpenView:
		return "Open " + v + " view"
	case Reload:
		return "Reload page"
	case GoBack:
		return "Go back"
	case GoForward:
		return "Go forward"
	case ScreenshotAnalyze:
		return "Capture and analyze screenshot"
	case WebSearch:
		return fmt.Sprintf("Search web for %q", v)
	case ReadPageContent:
		return "Read current page content"
	case ListOpenTabs:
		return "List all open tabs"
	case GeneratePDF:
		return "Generate PDF: " + field(v, 0)
	case GenerateDiagram:
		return "Generate diagram"
	case ShellCommand:
		return "Execute: " + truncate(v, 40)
	case SetBrightness:
		return "Set brightness to " + v + "%"
	case SetVolume:
		return "Set volume to " + v + "%"
	case OpenApp:
		return "Open " + v
	case FillForm:
		return "Fill form field: " + field(v, 0)
	case ScrollTo:
		return "Scroll to " + v
	case ExtractData:
		return "Extract data from " + v
	case CreateTabGroup:
		return "Create tab group: " + field(v, 0)
	case OCRCoordinates:
		return "OCR region: " + v
	case OCRScreen:
		if v == "" {
			return "OCR full screen"
		}
		return "OCR screen region: " + v
	case ClickElement:
		return "Click element: " + v
	case FindAndClick:
		return fmt.Sprintf("Find and click %q", v)
	case GmailAuthorize:
		return "Authorize Gmail"
	case GmailListMessages:
		return "List Gmail messages: " + field(v, 0)
	case GmailGetMessage:
		return "Get Gmail message: " + v
	case GmailSendMessage:
		return "Send email to " + field(v, 0)
	case GmailAddLabel:
		return "Add Gmail label: " + field(v, 1)
	case Wait:
		n, _ := leadingInt(v)
		return "Wait " + strconv.FormatFloat(float64(n)/1000, 'f', -1, 64) + " seconds"
	case GuideClick:
		return "Guide click: " + field(v, 0)
	case ExplainCapabilities:
		return "Explain AI capabilities"
	}
	return string(cmd.Type) + ": " + v
}

// field returns the i-th '|' separated part, trimmed.
func field(v string, i int) string {
	parts := strings.Split(v, "|")
	if i >= len(parts) {
		return ""
	}
	return strings.TrimSpace(parts[i])
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// Fields splits a '|' separated value into trimmed parts.
func Fields(v string) []string {
	parts := strings.Split(v, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
