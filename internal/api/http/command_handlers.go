package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/CometPilot/backend/internal/command"
	"github.com/GriffinCanCode/CometPilot/backend/internal/sequencer"
)

// ParseRequest is the body of POST /commands/parse.
type ParseRequest struct {
	Text string `json:"text"`
}

// RunRequest is the body of POST /commands/run and /commands/queue. Text is
// parsed for command tags when Commands is empty.
type RunRequest struct {
	Text            string            `json:"text"`
	Commands        []command.Command `json:"commands"`
	ContinueOnError bool              `json:"continueOnError"`
}

func (r RunRequest) commands() []command.Command {
	if len(r.Commands) > 0 {
		return r.Commands
	}
	return command.Parse(r.Text).Commands
}

// ParseCommands extracts command tags from model output
func (h *Handlers) ParseCommands(c *gin.Context) {
	var req ParseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, err.Error())
		return
	}

	res := command.Parse(req.Text)
	validations := make([]command.ValidationResult, len(res.Commands))
	labels := make([]string, len(res.Commands))
	for i, cmd := range res.Commands {
		validations[i] = command.Validate(cmd)
		labels[i] = command.Describe(cmd)
	}
	c.JSON(http.StatusOK, gin.H{
		"commands":       res.Commands,
		"remaining_text": res.RemainingText,
		"has_commands":   res.HasCommands,
		"validations":    validations,
		"labels":         labels,
	})
}

// RunCommands executes commands and waits for the queue to finish
func (h *Handlers) RunCommands(c *gin.Context) {
	var req RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, err.Error())
		return
	}
	cmds := req.commands()
	if len(cmds) == 0 {
		errorJSON(c, http.StatusBadRequest, "no commands to run")
		return
	}

	final := h.queue.Run(c.Request.Context(), cmds, sequencer.Options{ContinueOnError: req.ContinueOnError})
	c.JSON(http.StatusOK, final)
}

// QueueCommands starts commands in the background
func (h *Handlers) QueueCommands(c *gin.Context) {
	var req RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, err.Error())
		return
	}
	cmds := req.commands()
	if len(cmds) == 0 {
		errorJSON(c, http.StatusBadRequest, "no commands to run")
		return
	}

	q := h.queue.Start(cmds, sequencer.Options{ContinueOnError: req.ContinueOnError})
	c.JSON(http.StatusAccepted, q.Snapshot())
}

// QueueStatus returns the active queue's progress
func (h *Handlers) QueueStatus(c *gin.Context) {
	p, ok := h.queue.Current()
	if !ok {
		errorJSON(c, http.StatusNotFound, "no active queue")
		return
	}
	c.JSON(http.StatusOK, p)
}

// CancelCommands stops the active queue at its next boundary
func (h *Handlers) CancelCommands(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"cancelled": h.queue.Cancel()})
}
