package http

import (
	"context"
	"errors"
	"image"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/CometPilot/backend/internal/ai"
	"github.com/GriffinCanCode/CometPilot/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/CometPilot/backend/internal/ocr"
	"github.com/GriffinCanCode/CometPilot/backend/internal/permissions"
	"github.com/GriffinCanCode/CometPilot/backend/internal/robot"
	"github.com/GriffinCanCode/CometPilot/backend/internal/sequencer"
	"github.com/GriffinCanCode/CometPilot/backend/internal/vision"
)

const (
	serviceName = "CometPilot"
	version     = "0.3.0"
)

// OCR is the part of the OCR engine the API exposes.
type OCR interface {
	Scan(ctx context.Context, displayID string) (*ocr.Scan, error)
	RecognizeImage(ctx context.Context, img image.Image) ([]ocr.Word, error)
}

// Clicker clicks on-screen text.
type Clicker interface {
	OCRClick(ctx context.Context, target string) vision.ClickResult
}

// Deps wires the handlers. Confirmations is nil when prompts go to the
// terminal; OCR and Clicker are nil when OCR is unavailable.
type Deps struct {
	Permissions   *permissions.Store
	Robot         *robot.Executor
	Confirmations *robot.Queue
	OCR           OCR
	Clicker       Clicker
	Queue         *sequencer.Manager
	AI            *ai.Engine
	Metrics       *monitoring.Metrics
	Logger        *zap.Logger
}

// Handlers contains all HTTP handlers
type Handlers struct {
	perms    *permissions.Store
	robot    *robot.Executor
	confirms *robot.Queue
	ocr      OCR
	clicker  Clicker
	queue    *sequencer.Manager
	ai       *ai.Engine
	metrics  *monitoring.Metrics
	log      *zap.Logger
}

// NewHandlers creates a new handler set
func NewHandlers(d Deps) *Handlers {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Handlers{
		perms:    d.Permissions,
		robot:    d.Robot,
		confirms: d.Confirmations,
		ocr:      d.OCR,
		clicker:  d.Clicker,
		queue:    d.Queue,
		ai:       d.AI,
		metrics:  d.Metrics,
		log:      log,
	}
}

// Register mounts every route on r.
func (h *Handlers) Register(r gin.IRouter) {
	r.GET("/", h.Root)
	r.GET("/health", h.Health)
	if h.metrics != nil {
		r.GET("/metrics", gin.WrapH(h.metrics.Handler()))
	}

	r.GET("/permissions", h.ListPermissions)
	r.POST("/permissions", h.GrantPermission)
	r.DELETE("/permissions", h.RevokeAllPermissions)
	r.DELETE("/permissions/:key", h.RevokePermission)

	r.GET("/audit", h.AuditLog)
	r.GET("/audit/export", h.ExportAudit)

	robotGroup := r.Group("/robot")
	robotGroup.GET("/status", h.RobotStatus)
	robotGroup.POST("/execute", h.RobotExecute)
	robotGroup.POST("/sequence", h.RobotSequence)
	robotGroup.POST("/kill", h.RobotKill)
	robotGroup.POST("/reset", h.RobotReset)
	robotGroup.GET("/confirmations", h.ListConfirmations)
	robotGroup.POST("/confirmations/:id", h.AnswerConfirmation)

	ocrGroup := r.Group("/ocr")
	ocrGroup.GET("/scan", h.OCRScan)
	ocrGroup.POST("/click", h.OCRClick)
	ocrGroup.POST("/image", h.OCRImage)

	cmdGroup := r.Group("/commands")
	cmdGroup.POST("/parse", h.ParseCommands)
	cmdGroup.POST("/run", h.RunCommands)
	cmdGroup.POST("/queue", h.QueueCommands)
	cmdGroup.GET("/queue", h.QueueStatus)
	cmdGroup.POST("/cancel", h.CancelCommands)

	r.POST("/logs", h.StreamLogs)
}

// Root handles the liveness check
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": serviceName,
		"version": version,
	})
}

// Health reports the state of each subsystem
func (h *Handlers) Health(c *gin.Context) {
	body := gin.H{
		"status": "healthy",
		"ocr":    gin.H{"available": h.ocr != nil},
	}
	if h.robot != nil {
		body["robot"] = h.robot.Status()
	}
	if h.ai != nil {
		body["ai"] = gin.H{"providers": h.ai.Configured(), "vision": h.ai.CanDescribeImages()}
	}
	if h.queue != nil {
		if p, ok := h.queue.Current(); ok {
			body["queue"] = gin.H{"id": p.QueueID, "done": p.Done, "counts": p.Counts()}
		}
	}
	if h.metrics != nil {
		body["metrics"] = h.metrics.Snapshot()
	}
	c.JSON(http.StatusOK, body)
}

func errorJSON(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg})
}

func unavailable(c *gin.Context, what string) {
	errorJSON(c, http.StatusServiceUnavailable, what+" not available")
}

// queryInt reads a non-negative integer query parameter.
func queryInt(c *gin.Context, name string, def int) (int, error) {
	v := c.Query(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errors.New(name + " must be a non-negative integer")
	}
	return n, nil
}
