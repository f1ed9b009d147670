package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/CometPilot/backend/internal/permissions"
)

// GrantRequest is the body of POST /permissions.
type GrantRequest struct {
	Key         string            `json:"key" binding:"required"`
	Level       permissions.Level `json:"level" binding:"required"`
	Description string            `json:"description"`
	SessionOnly bool              `json:"sessionOnly"`
}

// ListPermissions returns every live grant
func (h *Handlers) ListPermissions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"permissions": h.perms.All()})
}

// GrantPermission records a grant
func (h *Handlers) GrantPermission(c *gin.Context) {
	var req GrantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, err.Error())
		return
	}
	req.Key = strings.TrimSpace(req.Key)
	if req.Key == "" {
		errorJSON(c, http.StatusBadRequest, "key is required")
		return
	}

	if err := h.perms.Grant(req.Key, req.Level, req.Description, req.SessionOnly); err != nil {
		if errors.Is(err, permissions.ErrInvalidLevel) {
			errorJSON(c, http.StatusBadRequest, err.Error())
			return
		}
		errorJSON(c, http.StatusInternalServerError, err.Error())
		return
	}

	level, _ := h.perms.Level(req.Key)
	c.JSON(http.StatusOK, gin.H{"success": true, "key": req.Key, "level": level})
}

// RevokePermission removes one grant
func (h *Handlers) RevokePermission(c *gin.Context) {
	key := c.Param("key")
	h.perms.Revoke(key)
	c.JSON(http.StatusOK, gin.H{"success": true, "key": key})
}

// RevokeAllPermissions removes every grant
func (h *Handlers) RevokeAllPermissions(c *gin.Context) {
	h.perms.RevokeAll()
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// AuditLog returns the tail of the audit log
func (h *Handlers) AuditLog(c *gin.Context) {
	limit, err := queryInt(c, "limit", permissions.DefaultAuditLimit)
	if err != nil {
		errorJSON(c, http.StatusBadRequest, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": h.perms.AuditLog(limit)})
}

// ExportAudit streams the whole audit log gzip-compressed
func (h *Handlers) ExportAudit(c *gin.Context) {
	name := "comet-audit-" + time.Now().UTC().Format("20060102-150405") + ".jsonl.gz"
	c.Header("Content-Type", "application/gzip")
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Status(http.StatusOK)

	zw := gzip.NewWriter(c.Writer)
	if err := h.perms.ExportAudit(zw); err != nil {
		h.log.Error("audit export failed", zap.Error(err))
	}
	if err := zw.Close(); err != nil {
		h.log.Error("audit export failed", zap.Error(err))
	}
}
