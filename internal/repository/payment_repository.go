package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Crisjan0/enrollment-portal-api/internal/models"
)

const paymentColumns = "id, application_id, user_id, amount, payment_date, payment_status, proof"

// PaymentRepository handles persistence of payments.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository constructs the repository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// FindByID returns a payment by its ID.
func (r *PaymentRepository) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	query := fmt.Sprintf("SELECT %s FROM payments WHERE id = $1 LIMIT 1", paymentColumns)
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, query, id); err != nil {
		return nil, err
	}
	return &payment, nil
}

// Create inserts a new payment row.
func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	if payment.PaymentDate.IsZero() {
		payment.PaymentDate = time.Now().UTC()
	}
	if payment.PaymentStatus == "" {
		payment.PaymentStatus = models.PaymentStatusPending
	}
	const query = `INSERT INTO payments (id, application_id, user_id, amount, payment_date, payment_status, proof)
        VALUES (:id, :application_id, :user_id, :amount, :payment_date, :payment_status, :proof)`
	if _, err := r.db.NamedExecContext(ctx, query, payment); err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

// UpdateStatus sets the status of a payment.
func (r *PaymentRepository) UpdateStatus(ctx context.Context, id string, status models.PaymentStatus) error {
	const query = `UPDATE payments SET payment_status = $2 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a payment row.
func (r *PaymentRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM payments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete payment: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete payment: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// List returns payments with payer context.
func (r *PaymentRepository) List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, int, error) {
	base := `FROM payments p
LEFT JOIN users u ON u.id = p.user_id`
	var conditions []string
	var args []interface{}

	if filter.UserID != "" {
		conditions = append(conditions, fmt.Sprintf("p.user_id = $%d", len(args)+1))
		args = append(args, filter.UserID)
	}
	if filter.ApplicationID != "" {
		conditions = append(conditions, fmt.Sprintf("p.application_id = $%d", len(args)+1))
		args = append(args, filter.ApplicationID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("p.payment_status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT p.id, p.application_id, p.user_id, p.amount, p.payment_date, p.payment_status, p.proof,
        u.username AS username,
        CONCAT_WS(' ', u.first_name, u.middle_name, u.last_name) AS payer_name
        %s ORDER BY p.payment_date %s LIMIT %d OFFSET %d`, base+clause, order, size, offset)

	var payments []models.PaymentDetail
	if err := r.db.SelectContext(ctx, &payments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list payments: %w", err)
	}

	countQuery := "SELECT COUNT(*) " + base + clause
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count payments: %w", err)
	}
	return payments, total, nil
}

// CountByStatus returns the number of payments in the given status.
func (r *PaymentRepository) CountByStatus(ctx context.Context, status models.PaymentStatus) (int, error) {
	const query = `SELECT COUNT(*) FROM payments WHERE payment_status = $1`
	var total int
	if err := r.db.GetContext(ctx, &total, query, status); err != nil {
		return 0, fmt.Errorf("count payments: %w", err)
	}
	return total, nil
}

// SumPendingAmount totals the amounts of all pending payments.
func (r *PaymentRepository) SumPendingAmount(ctx context.Context) (float64, error) {
	const query = `SELECT COALESCE(SUM(amount), 0) FROM payments WHERE payment_status = $1`
	var total float64
	if err := r.db.GetContext(ctx, &total, query, models.PaymentStatusPending); err != nil {
		return 0, fmt.Errorf("sum pending payments: %w", err)
	}
	return total, nil
}
