package command

import (
	"regexp"
	"strings"
)

// ParseResult is the outcome of scanning model output for command tags.
type ParseResult struct {
	Commands      []Command `json:"commands"`
	RemainingText string    `json:"remaining_text"`
	HasCommands   bool      `json:"has_commands"`
}

var tagPattern = buildPattern()

func buildPattern() *regexp.Regexp {
	names := make([]string, len(vocabulary))
	for i, t := range vocabulary {
		names[i] = regexp.QuoteMeta(string(t))
	}
	return regexp.MustCompile(`(?i)\[(` + strings.Join(names, "|") + `)(?::\s*([^\]]+?))?\]`)
}

// Parse extracts commands from text in order of appearance. Bracket
// expressions naming unknown tags stay in the remaining text. Repeated tags
// are kept as separate commands. The text is scanned once, so a tag spliced
// together by stripping another ("[NAV[RELOAD]IGATE]") stays as text.
func Parse(text string) ParseResult {
	commands, remaining := scan(text)
	return ParseResult{
		Commands:      commands,
		RemainingText: strings.TrimSpace(remaining),
		HasCommands:   len(commands) > 0,
	}
}

func scan(text string) ([]Command, string) {
	matches := tagPattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return nil, text
	}

	commands := make([]Command, 0, len(matches))
	var rest strings.Builder
	last := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		rest.WriteString(text[last:start])
		last = end

		var value string
		if m[4] >= 0 {
			value = strings.TrimSpace(text[m[4]:m[5]])
		}
		commands = append(commands, Command{
			Type:  Type(strings.ToUpper(text[m[2]:m[3]])),
			Value: value,
			Source: Span{
				Text:   text[start:end],
				Offset: start,
			},
		})
	}
	rest.WriteString(text[last:])

	return commands, rest.String()
}

// Invalid pairs a rejected command with the rule it broke.
type Invalid struct {
	Command Command `json:"command"`
	Error   string  `json:"error"`
}

// Prepared splits parsed commands into runnable and rejected sets.
type Prepared struct {
	Commands     []Command `json:"commands"`
	Invalid      []Invalid `json:"invalid"`
	ResponseText string    `json:"response_text"`
}

// Prepare parses text and validates every command.
func Prepare(text string) Prepared {
	parsed := Parse(text)
	out := Prepared{ResponseText: parsed.RemainingText}
	for _, cmd := range parsed.Commands {
		if res := Validate(cmd); res.Valid {
			out.Commands = append(out.Commands, cmd)
		} else {
			out.Invalid = append(out.Invalid, Invalid{Command: cmd, Error: res.Error})
		}
	}
	return out
}
