package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/CometPilot/backend/internal/robot"
	"github.com/GriffinCanCode/CometPilot/backend/internal/shared/id"
)

// ExecuteRequest is the body of POST /robot/execute.
type ExecuteRequest struct {
	Action      robot.RawAction `json:"action"`
	SkipConfirm bool            `json:"skipConfirm"`
}

// SequenceRequest is the body of POST /robot/sequence.
type SequenceRequest struct {
	Actions         []robot.RawAction `json:"actions" binding:"required"`
	SkipConfirm     bool              `json:"skipConfirm"`
	ContinueOnError bool              `json:"continueOnError"`
}

// AnswerRequest is the body of POST /robot/confirmations/:id.
type AnswerRequest struct {
	Allow bool `json:"allow"`
}

// robotStatus maps executor refusals onto HTTP status codes.
func robotStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, robot.ErrInvalidAction), errors.Is(err, robot.ErrOutOfBounds):
		return http.StatusBadRequest
	case errors.Is(err, robot.ErrPermissionDenied), errors.Is(err, robot.ErrUserDenied):
		return http.StatusForbidden
	case errors.Is(err, robot.ErrKillSwitch):
		return http.StatusLocked
	case errors.Is(err, robot.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// RobotStatus reports availability, kill switch and grant
func (h *Handlers) RobotStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.robot.Status())
}

// RobotExecute runs one desktop action
func (h *Handlers) RobotExecute(c *gin.Context) {
	var req ExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.robot.Execute(c.Request.Context(), req.Action, robot.Options{SkipConfirm: req.SkipConfirm})
	c.JSON(robotStatus(err), res)
}

// RobotSequence runs actions in order
func (h *Handlers) RobotSequence(c *gin.Context) {
	var req SequenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, err.Error())
		return
	}

	results := h.robot.ExecuteSequence(c.Request.Context(), req.Actions, robot.SequenceOptions{
		SkipConfirm:     req.SkipConfirm,
		ContinueOnError: req.ContinueOnError,
	})
	success := true
	for _, r := range results {
		success = success && r.Success
	}
	c.JSON(http.StatusOK, gin.H{"success": success, "results": results})
}

// RobotKill engages the kill switch
func (h *Handlers) RobotKill(c *gin.Context) {
	h.robot.Kill()
	c.JSON(http.StatusOK, h.robot.Status())
}

// RobotReset clears the kill switch. The robot permission stays revoked.
func (h *Handlers) RobotReset(c *gin.Context) {
	h.robot.ResetKill()
	c.JSON(http.StatusOK, h.robot.Status())
}

// ListConfirmations returns pending confirmation requests
func (h *Handlers) ListConfirmations(c *gin.Context) {
	if h.confirms == nil {
		c.JSON(http.StatusOK, gin.H{"pending": []robot.Request{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"pending": h.confirms.Pending()})
}

// AnswerConfirmation allows or denies a pending request
func (h *Handlers) AnswerConfirmation(c *gin.Context) {
	if h.confirms == nil {
		unavailable(c, "confirmation queue")
		return
	}
	var req AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, err.Error())
		return
	}

	reqID := id.ConfirmationID(c.Param("id"))
	if err := h.confirms.Answer(reqID, req.Allow); err != nil {
		if errors.Is(err, robot.ErrUnknownConfirmation) {
			errorJSON(c, http.StatusNotFound, err.Error())
			return
		}
		errorJSON(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "id": reqID, "allow": req.Allow})
}
