package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Crisjan0/enrollment-portal-api/internal/dto"
	"github.com/Crisjan0/enrollment-portal-api/internal/models"
	"github.com/Crisjan0/enrollment-portal-api/internal/service"
	appErrors "github.com/Crisjan0/enrollment-portal-api/pkg/errors"
	"github.com/Crisjan0/enrollment-portal-api/pkg/response"
)

// ApplicationHandler wires the enrollment application endpoints.
type ApplicationHandler struct {
	service *service.ApplicationService
}

// NewApplicationHandler creates a new handler.
func NewApplicationHandler(svc *service.ApplicationService) *ApplicationHandler {
	return &ApplicationHandler{service: svc}
}

// Submit godoc
// @Summary Submit enrollment application
// @Description Submit a multipart application with documents and optional payment proof
// @Tags Applications
// @Accept multipart/form-data
// @Produce json
// @Param course_ids formData string true "JSON array of course IDs"
// @Param student_info formData string true "Student profile JSON"
// @Param parent_info formData string true "Guardian profile JSON"
// @Param notes formData string false "Free-form notes"
// @Param down_payment formData number false "Declared down payment"
// @Param birth_certificate formData file false "PSA birth certificate"
// @Param report_card formData file false "Report card"
// @Param form_138 formData file false "Form 138"
// @Param good_moral formData file false "Good moral certificate"
// @Param documents formData file false "Supporting documents"
// @Param payment_proof formData file false "Payment proof"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /applications [post]
func (h *ApplicationHandler) Submit(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	req, err := parseSubmitForm(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	res, err := h.service.Submit(c.Request.Context(), claims.UserID, *req, c.ClientIP(), c.GetHeader("User-Agent"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, res)
}

// Get godoc
// @Summary Get application by ID
// @Tags Applications
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /applications/{id} [get]
func (h *ApplicationHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	app, err := h.service.Get(c.Request.Context(), c.Param("id"), claims.UserID, isAdmin(claims))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, app, nil)
}

// List godoc
// @Summary List applications
// @Description Administrators see all applications; students see their own
// @Tags Applications
// @Produce json
// @Param status query string false "Status filter"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /applications [get]
func (h *ApplicationHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	filter := models.ApplicationFilter{
		Status:    models.ApplicationStatus(c.Query("status")),
		Page:      queryInt(c, "page", 1),
		PageSize:  queryInt(c, "page_size", 20),
		SortOrder: c.Query("sort_order"),
	}
	if !isAdmin(claims) {
		filter.UserID = claims.UserID
	} else if userID := c.Query("user_id"); userID != "" {
		filter.UserID = userID
	}

	applications, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, applications, pagination)
}

// Approve godoc
// @Summary Approve application
// @Description Approve a submitted application and enroll the applicant
// @Tags Applications
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /applications/{id}/approve [post]
func (h *ApplicationHandler) Approve(c *gin.Context) {
	res, err := h.service.Approve(c.Request.Context(), c.Param("id"), claimsFromContext(c).UserID, c.ClientIP(), c.GetHeader("User-Agent"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// Reject godoc
// @Summary Reject application
// @Tags Applications
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param payload body dto.RejectApplicationRequest false "Optional rejection reason"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /applications/{id}/reject [post]
func (h *ApplicationHandler) Reject(c *gin.Context) {
	var req dto.RejectApplicationRequest
	if c.Request.Body != nil && c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid rejection payload"))
			return
		}
	}

	app, err := h.service.Reject(c.Request.Context(), c.Param("id"), claimsFromContext(c).UserID, req.Reason, c.ClientIP(), c.GetHeader("User-Agent"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, app, nil)
}

// Delete godoc
// @Summary Delete application
// @Description Delete a non-approved application and its stored documents. Requires confirm=true.
// @Tags Applications
// @Produce json
// @Param id path string true "Application ID"
// @Param confirm query bool false "Set to true to confirm the deletion"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /applications/{id} [delete]
func (h *ApplicationHandler) Delete(c *gin.Context) {
	confirmed, _ := strconv.ParseBool(c.Query("confirm"))
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), claimsFromContext(c).UserID, confirmed, c.ClientIP(), c.GetHeader("User-Agent")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func parseSubmitForm(c *gin.Context) (*dto.SubmitApplicationRequest, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid multipart payload")
	}

	req := &dto.SubmitApplicationRequest{
		Notes: c.PostForm("notes"),
	}

	if raw := c.PostForm("course_ids"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.CourseIDs); err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "course_ids must be a JSON array of IDs")
		}
	} else {
		req.CourseIDs = form.Value["course_ids[]"]
	}

	if raw := c.PostForm("student_info"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.StudentInfo); err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "student_info must be valid JSON")
		}
	}
	if raw := c.PostForm("parent_info"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.ParentInfo); err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "parent_info must be valid JSON")
		}
	}

	if raw := c.PostForm("down_payment"); raw != "" {
		amount, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "down_payment must be numeric")
		}
		req.DownPayment = amount
	}

	if files := form.File["birth_certificate"]; len(files) > 0 {
		req.BirthCertificate = files[0]
	}
	if files := form.File["report_card"]; len(files) > 0 {
		req.ReportCard = files[0]
	}
	if files := form.File["form_138"]; len(files) > 0 {
		req.Form138 = files[0]
	}
	if files := form.File["good_moral"]; len(files) > 0 {
		req.GoodMoral = files[0]
	}
	req.ExtraDocuments = form.File["documents"]
	if files := form.File["payment_proof"]; len(files) > 0 {
		req.PaymentProof = files[0]
	}

	return req, nil
}
