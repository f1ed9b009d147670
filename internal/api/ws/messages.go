package ws

import (
	"github.com/GriffinCanCode/CometPilot/backend/internal/command"
)

// Message types.
const (
	TypeConnected      = "connected"
	TypeChat           = "chat"
	TypeAIChat         = "ai:chat"
	TypeAIStatus       = "ai:status"
	TypeAIDone         = "ai:done"
	TypeOCRClick       = "ocr:click"
	TypeOCRStatus      = "ocr:status"
	TypeOCRResult      = "ocr:result"
	TypeDescribe       = "screen:describe"
	TypeDescription    = "screen:description"
	TypeCommandsRun    = "commands:run"
	TypeCommandsQueued = "commands:queued"
	TypeConfirmAnswer  = "confirm:answer"
	TypeConfirmed      = "confirm:answered"
	TypeConfirmRequest = "confirm:request"
	TypeProgress       = "queue:progress"
	TypeCommand        = "command"
	TypePing           = "ping"
	TypePong           = "pong"
	TypeError          = "error"
)

// MaxListedWords is how many words ocr:click returns without a target.
const MaxListedWords = 50

// Inbound is a client message. Only the fields its type uses are read.
type Inbound struct {
	Type            string            `json:"type"`
	Message         string            `json:"message,omitempty"`
	Model           string            `json:"model,omitempty"`
	Target          string            `json:"target,omitempty"`
	Text            string            `json:"text,omitempty"`
	Commands        []command.Command `json:"commands,omitempty"`
	ContinueOnError bool              `json:"continueOnError,omitempty"`
	ID              string            `json:"id,omitempty"`
	Allow           bool              `json:"allow,omitempty"`
}

// Outbound is a server message.
type Outbound map[string]any

func errorMessage(err string, originalType string) Outbound {
	out := Outbound{"type": TypeError, "error": err}
	if originalType != "" {
		out["originalType"] = originalType
	}
	return out
}
