package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Crisjan0/enrollment-portal-api/internal/dto"
	"github.com/Crisjan0/enrollment-portal-api/internal/models"
	"github.com/Crisjan0/enrollment-portal-api/internal/service"
	appErrors "github.com/Crisjan0/enrollment-portal-api/pkg/errors"
	"github.com/Crisjan0/enrollment-portal-api/pkg/response"
)

// EnrollmentHandler wires course selection and roster endpoints.
type EnrollmentHandler struct {
	service *service.EnrollmentService
}

// NewEnrollmentHandler creates a new handler.
func NewEnrollmentHandler(svc *service.EnrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{service: svc}
}

// SelfSelect godoc
// @Summary Select courses
// @Description Enroll the current student in courses, skipping unknown or duplicate ones
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body dto.SelectCoursesRequest true "Selection payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /enrollments/select [post]
func (h *EnrollmentHandler) SelfSelect(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.SelectCoursesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid selection payload"))
		return
	}

	res, err := h.service.SelfSelect(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res, nil)
}

// List godoc
// @Summary List enrollments
// @Description Administrators see all enrollments; students see their own
// @Tags Enrollments
// @Produce json
// @Param course_id query string false "Course filter"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /enrollments [get]
func (h *EnrollmentHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	filter := models.EnrollmentFilter{
		CourseID:  c.Query("course_id"),
		Page:      queryInt(c, "page", 1),
		PageSize:  queryInt(c, "page_size", 20),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}
	if !isAdmin(claims) {
		filter.UserID = claims.UserID
	} else if userID := c.Query("user_id"); userID != "" {
		filter.UserID = userID
	}

	enrollments, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, enrollments, pagination)
}

// Export godoc
// @Summary Export enrollment roster
// @Description Download the roster as CSV or PDF
// @Tags Enrollments
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf" default(csv)
// @Param course_id query string false "Course filter"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /enrollments/export [get]
func (h *EnrollmentHandler) Export(c *gin.Context) {
	filter := models.EnrollmentFilter{
		UserID:   c.Query("user_id"),
		CourseID: c.Query("course_id"),
	}
	format := c.DefaultQuery("format", "csv")

	payload, contentType, err := h.service.ExportRoster(c.Request.Context(), filter, format)
	if err != nil {
		response.Error(c, err)
		return
	}

	filename := fmt.Sprintf("roster_%s.%s", time.Now().UTC().Format("20060102_150405"), format)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, payload)
}
