package command

import "strings"

// Type is a command tag drawn from a closed vocabulary.
type Type string

const (
	Navigate            Type = "NAVIGATE"
	Search              Type = "SEARCH"
	SetTheme            Type = "SET_THEME"
	OpenView            Type = "OPEN_VIEW"
	Reload              Type = "RELOAD"
	GoBack              Type = "GO_BACK"
	GoForward           Type = "GO_FORWARD"
	ScreenshotAnalyze   Type = "SCREENSHOT_AND_ANALYZE"
	WebSearch           Type = "WEB_SEARCH"
	ReadPageContent     Type = "READ_PAGE_CONTENT"
	ListOpenTabs        Type = "LIST_OPEN_TABS"
	GeneratePDF         Type = "GENERATE_PDF"
	GenerateDiagram     Type = "GENERATE_DIAGRAM"
	ShellCommand        Type = "SHELL_COMMAND"
	SetBrightness       Type = "SET_BRIGHTNESS"
	SetVolume           Type = "SET_VOLUME"
	OpenApp             Type = "OPEN_APP"
	FillForm            Type = "FILL_FORM"
	ScrollTo            Type = "SCROLL_TO"
	ExtractData         Type = "EXTRACT_DATA"
	CreateTabGroup      Type = "CREATE_NEW_TAB_GROUP"
	OCRCoordinates      Type = "OCR_COORDINATES"
	OCRScreen           Type = "OCR_SCREEN"
	ClickElement        Type = "CLICK_ELEMENT"
	FindAndClick        Type = "FIND_AND_CLICK"
	GmailAuthorize      Type = "GMAIL_AUTHORIZE"
	GmailListMessages   Type = "GMAIL_LIST_MESSAGES"
	GmailGetMessage     Type = "GMAIL_GET_MESSAGE"
	GmailSendMessage    Type = "GMAIL_SEND_MESSAGE"
	GmailAddLabel       Type = "GMAIL_ADD_LABEL"
	Wait                Type = "WAIT"
	GuideClick          Type = "GUIDE_CLICK"
	ExplainCapabilities Type = "EXPLAIN_CAPABILITIES"
)

// vocabulary is ordered; the parser's alternation follows this order.
var vocabulary = []Type{
	Navigate,
	Search,
	SetTheme,
	OpenView,
	Reload,
	GoBack,
	GoForward,
	ScreenshotAnalyze,
	WebSearch,
	ReadPageContent,
	ListOpenTabs,
	GeneratePDF,
	GenerateDiagram,
	ShellCommand,
	SetBrightness,
	SetVolume,
	OpenApp,
	FillForm,
	ScrollTo,
	ExtractData,
	CreateTabGroup,
	OCRCoordinates,
	OCRScreen,
	ClickElement,
	FindAndClick,
	GmailAuthorize,
	GmailListMessages,
	GmailGetMessage,
	GmailSendMessage,
	GmailAddLabel,
	Wait,
	GuideClick,
	ExplainCapabilities,
}

var supported = func() map[Type]struct{} {
	m := make(map[Type]struct{}, len(vocabulary))
	for _, t := range vocabulary {
		m[t] = struct{}{}
	}
	return m
}()

// Types returns the supported vocabulary in declaration order.
func Types() []Type {
	out := make([]Type, len(vocabulary))
	copy(out, vocabulary)
	return out
}

// IsSupported reports whether t is in the vocabulary.
func IsSupported(t Type) bool {
	_, ok := supported[t]
	return ok
}

// ParseType normalises a tag name case-insensitively.
func ParseType(s string) (Type, bool) {
	t := Type(strings.ToUpper(strings.TrimSpace(s)))
	return t, IsSupported(t)
}

func (t Type) String() string { return string(t) }

// Span locates a command's bracket expression in the parsed text.
type Span struct {
	Text   string `json:"text"`
	Offset int    `json:"offset"`
}

// Command is a parsed instruction. Value is trimmed and may be empty.
type Command struct {
	Type   Type   `json:"type"`
	Value  string `json:"value"`
	Source Span   `json:"source"`
}

// Permission keys gating command classes.
const (
	KeyRobot     = "robot"
	KeyShell     = "shell"
	KeyNativeApp = "native-app"
	KeyScreen    = "screen"
	KeyGmail     = "gmail"
)

// RequiredPermission returns the permission key a command needs before it
// may run. Browser-surface commands need none.
func RequiredPermission(t Type) (string, bool) {
	switch t {
	case FindAndClick, ClickElement, GuideClick:
		return KeyRobot, true
	case ShellCommand:
		return KeyShell, true
	case SetVolume, SetBrightness, OpenApp:
		return KeyNativeApp, true
	case OCRScreen, OCRCoordinates, ScreenshotAnalyze:
		return KeyScreen, true
	case GmailAuthorize, GmailListMessages, GmailGetMessage, GmailSendMessage, GmailAddLabel:
		return KeyGmail, true
	case Navigate, Search, SetTheme, OpenView, Reload, GoBack, GoForward,
		WebSearch, ReadPageContent, ListOpenTabs, GeneratePDF, GenerateDiagram,
		FillForm, ScrollTo, ExtractData, CreateTabGroup, Wait, ExplainCapabilities:
		return "", false
	}
	return "", false
}
