package dto

import "github.com/Crisjan0/enrollment-portal-api/internal/models"

// DashboardCounts aggregates the admin dashboard tiles. A metric that could
// not be computed is reported as zero rather than failing the response.
type DashboardCounts struct {
	Students              int     `json:"students"`
	Courses               int     `json:"courses"`
	Enrollments           int     `json:"enrollments"`
	ApplicationsSubmitted int     `json:"applications_submitted"`
	ApplicationsApproved  int     `json:"applications_approved"`
	ApplicationsRejected  int     `json:"applications_rejected"`
	PaymentsPending       int     `json:"payments_pending"`
	PaymentsCompleted     int     `json:"payments_completed"`
	PaymentsFailed        int     `json:"payments_failed"`
	PendingPaymentTotal   float64 `json:"pending_payment_total"`
}

// AdminDashboardResponse is the composed dashboard payload.
type AdminDashboardResponse struct {
	Counts             DashboardCounts            `json:"counts"`
	RecentApplications []models.ApplicationDetail `json:"recent_applications"`
}
