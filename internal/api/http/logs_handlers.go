package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// MaxLogBatch bounds one POST /logs request.
const MaxLogBatch = 500

// ShellLogEntry is a log line forwarded by the browser shell.
type ShellLogEntry struct {
	ID        string         `json:"id"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Context   map[string]any `json:"context"`
	Timestamp string         `json:"timestamp"`
}

// ShellLogRequest is a batch of shell log lines.
type ShellLogRequest struct {
	Source  string          `json:"source"`
	Entries []ShellLogEntry `json:"entries"`
}

// StreamLogs writes browser shell logs into the backend log
func (h *Handlers) StreamLogs(c *gin.Context) {
	var req ShellLogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "Invalid log request format")
		return
	}
	if len(req.Entries) == 0 {
		errorJSON(c, http.StatusBadRequest, "No log entries provided")
		return
	}
	if len(req.Entries) > MaxLogBatch {
		errorJSON(c, http.StatusRequestEntityTooLarge, "Too many log entries")
		return
	}

	source := req.Source
	if source == "" {
		source = "shell"
	}
	logger := h.log.With(zap.String("source", source))
	for _, entry := range req.Entries {
		logShellEntry(logger, entry)
	}

	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"entries_received": len(req.Entries),
		"timestamp":        time.Now().Unix(),
	})
}

func logShellEntry(logger *zap.Logger, entry ShellLogEntry) {
	fields := make([]zap.Field, 0, len(entry.Context)+2)
	fields = append(fields,
		zap.String("shell_log_id", entry.ID),
		zap.String("shell_timestamp", entry.Timestamp),
	)
	for key, value := range entry.Context {
		switch v := value.(type) {
		case string:
			fields = append(fields, zap.String(key, v))
		case float64:
			fields = append(fields, zap.Float64(key, v))
		case bool:
			fields = append(fields, zap.Bool(key, v))
		default:
			fields = append(fields, zap.Any(key, v))
		}
	}

	switch entry.Level {
	case "error":
		logger.Error(entry.Message, fields...)
	case "warn":
		logger.Warn(entry.Message, fields...)
	case "debug", "verbose":
		logger.Debug(entry.Message, fields...)
	default:
		logger.Info(entry.Message, fields...)
	}
}
