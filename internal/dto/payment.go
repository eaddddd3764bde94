package dto

import "mime/multipart"

// RecordPaymentRequest is the multipart manual payment payload.
type RecordPaymentRequest struct {
	ApplicationID string  `json:"application_id" validate:"omitempty,uuid"`
	Amount        float64 `json:"amount" validate:"required,gt=0"`

	Proof *multipart.FileHeader `json:"-"`
}

// UpdatePaymentStatusRequest changes a payment's verification state.
type UpdatePaymentStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending completed failed"`
}
