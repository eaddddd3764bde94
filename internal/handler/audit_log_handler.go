package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Crisjan0/enrollment-portal-api/internal/models"
	"github.com/Crisjan0/enrollment-portal-api/internal/service"
	appErrors "github.com/Crisjan0/enrollment-portal-api/pkg/errors"
	"github.com/Crisjan0/enrollment-portal-api/pkg/response"
)

// AuditLogHandler wires the audit trail viewer endpoints.
type AuditLogHandler struct {
	service *service.AuditService
}

// NewAuditLogHandler creates a new handler.
func NewAuditLogHandler(svc *service.AuditService) *AuditLogHandler {
	return &AuditLogHandler{service: svc}
}

// List godoc
// @Summary List audit logs
// @Tags Audit
// @Produce json
// @Param user_id query string false "Actor filter"
// @Param action query string false "Action filter"
// @Param resource query string false "Resource filter"
// @Param from query string false "Start time (RFC3339)"
// @Param to query string false "End time (RFC3339)"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /audit-logs [get]
func (h *AuditLogHandler) List(c *gin.Context) {
	filter, err := auditFilterFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	logs, pagination, err := h.service.List(c.Request.Context(), *filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, logs, pagination)
}

// Export godoc
// @Summary Export audit logs as CSV
// @Tags Audit
// @Produce text/csv
// @Param user_id query string false "Actor filter"
// @Param action query string false "Action filter"
// @Success 200 {file} file
// @Router /audit-logs/export [get]
func (h *AuditLogHandler) Export(c *gin.Context) {
	filter, err := auditFilterFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	payload, err := h.service.ExportCSV(c.Request.Context(), *filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	filename := fmt.Sprintf("audit_logs_%s.csv", time.Now().UTC().Format("20060102_150405"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "text/csv", payload)
}

// Delete godoc
// @Summary Delete a single audit entry
// @Tags Audit
// @Produce json
// @Param id path string true "Audit log ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /audit-logs/{id} [delete]
func (h *AuditLogHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Clear godoc
// @Summary Clear the audit trail
// @Tags Audit
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /audit-logs [delete]
func (h *AuditLogHandler) Clear(c *gin.Context) {
	removed, err := h.service.Clear(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"removed": removed}, nil)
}

func auditFilterFromQuery(c *gin.Context) (*models.AuditLogFilter, error) {
	filter := &models.AuditLogFilter{
		UserID:   c.Query("user_id"),
		Action:   c.Query("action"),
		Resource: c.Query("resource"),
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "page_size", 50),
	}

	if raw := c.Query("from"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "from must be RFC3339")
		}
		filter.From = &ts
	}
	if raw := c.Query("to"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "to must be RFC3339")
		}
		filter.To = &ts
	}

	return filter, nil
}
