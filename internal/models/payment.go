package models

import "time"

// PaymentStatus enumerates payment verification states.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// ValidPaymentStatus reports whether s is a known status value.
func ValidPaymentStatus(s PaymentStatus) bool {
	switch s {
	case PaymentStatusPending, PaymentStatusCompleted, PaymentStatusFailed:
		return true
	}
	return false
}

// Payment records an amount against a user, optionally tied to an application.
type Payment struct {
	ID            string        `db:"id" json:"id"`
	ApplicationID *string       `db:"application_id" json:"application_id,omitempty"`
	UserID        string        `db:"user_id" json:"user_id"`
	Amount        float64       `db:"amount" json:"amount"`
	PaymentDate   time.Time     `db:"payment_date" json:"payment_date"`
	PaymentStatus PaymentStatus `db:"payment_status" json:"payment_status"`
	Proof         *string       `db:"proof" json:"proof,omitempty"`
}

// PaymentDetail joins payer identity onto the payment.
type PaymentDetail struct {
	Payment
	Username  string `db:"username" json:"username"`
	PayerName string `db:"payer_name" json:"payer_name"`
}

// PaymentFilter captures listing criteria for payments.
type PaymentFilter struct {
	UserID        string
	ApplicationID string
	Status        PaymentStatus
	Page          int
	PageSize      int
	SortOrder     string
}
