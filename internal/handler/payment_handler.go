package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Crisjan0/enrollment-portal-api/internal/dto"
	"github.com/Crisjan0/enrollment-portal-api/internal/models"
	"github.com/Crisjan0/enrollment-portal-api/internal/service"
	appErrors "github.com/Crisjan0/enrollment-portal-api/pkg/errors"
	"github.com/Crisjan0/enrollment-portal-api/pkg/response"
)

// PaymentHandler wires the payment endpoints.
type PaymentHandler struct {
	service *service.PaymentService
}

// NewPaymentHandler creates a new handler.
func NewPaymentHandler(svc *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{service: svc}
}

// Record godoc
// @Summary Record manual payment
// @Description Record a payment with an optional proof image
// @Tags Payments
// @Accept multipart/form-data
// @Produce json
// @Param amount formData number true "Payment amount"
// @Param application_id formData string false "Linked application ID"
// @Param proof formData file false "Payment proof"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /payments [post]
func (h *PaymentHandler) Record(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	req := dto.RecordPaymentRequest{
		ApplicationID: c.PostForm("application_id"),
	}
	if raw := c.PostForm("amount"); raw != "" {
		amount, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "amount must be numeric"))
			return
		}
		req.Amount = amount
	}
	if file, err := c.FormFile("proof"); err == nil {
		req.Proof = file
	}

	payment, err := h.service.Record(c.Request.Context(), claims.UserID, req, c.ClientIP(), c.GetHeader("User-Agent"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, payment)
}

// Get godoc
// @Summary Get payment by ID
// @Tags Payments
// @Produce json
// @Param id path string true "Payment ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /payments/{id} [get]
func (h *PaymentHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	payment, err := h.service.Get(c.Request.Context(), c.Param("id"), claims.UserID, isAdmin(claims))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, payment, nil)
}

// List godoc
// @Summary List payments
// @Description Administrators see all payments; students see their own
// @Tags Payments
// @Produce json
// @Param status query string false "Status filter"
// @Param application_id query string false "Application filter"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /payments [get]
func (h *PaymentHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	filter := models.PaymentFilter{
		ApplicationID: c.Query("application_id"),
		Status:        models.PaymentStatus(c.Query("status")),
		Page:          queryInt(c, "page", 1),
		PageSize:      queryInt(c, "page_size", 20),
		SortOrder:     c.Query("sort_order"),
	}
	if !isAdmin(claims) {
		filter.UserID = claims.UserID
	} else if userID := c.Query("user_id"); userID != "" {
		filter.UserID = userID
	}

	payments, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, payments, pagination)
}

// UpdateStatus godoc
// @Summary Update payment status
// @Tags Payments
// @Accept json
// @Produce json
// @Param id path string true "Payment ID"
// @Param payload body dto.UpdatePaymentStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /payments/{id}/status [put]
func (h *PaymentHandler) UpdateStatus(c *gin.Context) {
	var req dto.UpdatePaymentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status payload"))
		return
	}

	payment, err := h.service.UpdateStatus(c.Request.Context(), c.Param("id"), req, claimsFromContext(c).UserID, c.ClientIP(), c.GetHeader("User-Agent"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, payment, nil)
}

// Delete godoc
// @Summary Delete payment
// @Tags Payments
// @Produce json
// @Param id path string true "Payment ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /payments/{id} [delete]
func (h *PaymentHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), claimsFromContext(c).UserID, c.ClientIP(), c.GetHeader("User-Agent")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
