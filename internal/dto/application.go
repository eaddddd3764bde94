package dto

import (
	"mime/multipart"

	"github.com/Crisjan0/enrollment-portal-api/internal/models"
)

// SubmitApplicationRequest is the multipart application intake payload. File
// parts are carried separately from the form fields.
type SubmitApplicationRequest struct {
	CourseIDs   []string           `json:"course_ids" validate:"required,min=1,dive,required"`
	Notes       string             `json:"notes" validate:"max=2000"`
	StudentInfo models.StudentInfo `json:"student_info"`
	ParentInfo  models.ParentInfo  `json:"parent_info"`

	// Down payment declared alongside the application. When zero the fee is
	// computed from the selected course credits.
	DownPayment float64 `json:"down_payment" validate:"omitempty,gt=0"`

	// Named document slots. Each is optional; empty slots are skipped.
	BirthCertificate *multipart.FileHeader `json:"-"`
	ReportCard       *multipart.FileHeader `json:"-"`
	Form138          *multipart.FileHeader `json:"-"`
	GoodMoral        *multipart.FileHeader `json:"-"`

	ExtraDocuments []*multipart.FileHeader `json:"-"`
	PaymentProof   *multipart.FileHeader   `json:"-"`
}

// RejectApplicationRequest carries the optional rejection reason.
type RejectApplicationRequest struct {
	Reason string `json:"reason" validate:"max=2000"`
}

// SubmitApplicationResponse reports the created application and its fee.
type SubmitApplicationResponse struct {
	Application models.Application `json:"application"`
	FeeAmount   float64            `json:"fee_amount"`
	PaymentID   *string            `json:"payment_id,omitempty"`
}

// ProcessApplicationResponse reports the outcome of an approval.
type ProcessApplicationResponse struct {
	Application     models.Application `json:"application"`
	EnrolledCourses []string           `json:"enrolled_courses"`
	SkippedCourses  []string           `json:"skipped_courses"`
}
