package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Crisjan0/enrollment-portal-api/internal/models"
)

// Sentinel errors surfaced by the approval workflow. The service layer maps
// them onto the API error taxonomy.
var (
	ErrApplicationNotSubmitted = errors.New("application is not in submitted state")
	ErrApplicationApproved     = errors.New("application has been approved")
)

const applicationColumns = "id, user_id, course_ids, notes, files, parent_info, student_info, status, submitted_at, processed_at, processed_by"

// ApplicationRepository handles persistence of enrollment applications and
// owns the approval workflow transactions.
type ApplicationRepository struct {
	db *sqlx.DB
}

// NewApplicationRepository constructs the repository.
func NewApplicationRepository(db *sqlx.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

// FindByID returns an application by its ID.
func (r *ApplicationRepository) FindByID(ctx context.Context, id string) (*models.Application, error) {
	query := fmt.Sprintf("SELECT %s FROM enrollment_applications WHERE id = $1 LIMIT 1", applicationColumns)
	var app models.Application
	if err := r.db.GetContext(ctx, &app, query, id); err != nil {
		return nil, err
	}
	return &app, nil
}

// HasApproved reports whether the user already holds an approved application.
func (r *ApplicationRepository) HasApproved(ctx context.Context, userID string) (bool, error) {
	const query = `SELECT 1 FROM enrollment_applications WHERE user_id = $1 AND status = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, userID, models.ApplicationStatusApproved); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check approved application: %w", err)
	}
	return true, nil
}

// CreateWithPayment inserts the application and, when payment is non-nil, the
// linked pending payment in the same transaction.
func (r *ApplicationRepository) CreateWithPayment(ctx context.Context, app *models.Application, payment *models.Payment) (err error) {
	if app.ID == "" {
		app.ID = uuid.NewString()
	}
	if app.SubmittedAt.IsZero() {
		app.SubmittedAt = time.Now().UTC()
	}
	if app.Status == "" {
		app.Status = models.ApplicationStatusSubmitted
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin application insert: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const insertApp = `INSERT INTO enrollment_applications
        (id, user_id, course_ids, notes, files, parent_info, student_info, status, submitted_at)
        VALUES (:id, :user_id, :course_ids, :notes, :files, :parent_info, :student_info, :status, :submitted_at)`
	if _, err = tx.NamedExecContext(ctx, insertApp, app); err != nil {
		return fmt.Errorf("insert application: %w", err)
	}

	if payment != nil {
		if payment.ID == "" {
			payment.ID = uuid.NewString()
		}
		if payment.PaymentDate.IsZero() {
			payment.PaymentDate = time.Now().UTC()
		}
		if payment.PaymentStatus == "" {
			payment.PaymentStatus = models.PaymentStatusPending
		}
		payment.ApplicationID = &app.ID
		const insertPayment = `INSERT INTO payments (id, application_id, user_id, amount, payment_date, payment_status, proof)
            VALUES (:id, :application_id, :user_id, :amount, :payment_date, :payment_status, :proof)`
		if _, err = tx.NamedExecContext(ctx, insertPayment, payment); err != nil {
			return fmt.Errorf("insert application payment: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit application insert: %w", err)
	}
	return nil
}

// Approve transitions a submitted application to approved and creates the
// enrollment rows, skipping courses that vanished and pairs already enrolled.
// The application row is locked for the duration of the transaction.
func (r *ApplicationRepository) Approve(ctx context.Context, id, adminID string) (app *models.Application, enrolledCourses []string, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin approval: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	app, err = lockApplication(ctx, tx, id)
	if err != nil {
		return nil, nil, err
	}
	if app.Status != models.ApplicationStatusSubmitted {
		err = ErrApplicationNotSubmitted
		return nil, nil, err
	}

	now := time.Now().UTC()
	for _, courseID := range app.CourseIDs {
		var one int
		if err = tx.GetContext(ctx, &one, "SELECT 1 FROM courses WHERE id = $1 LIMIT 1", courseID); err != nil {
			if err == sql.ErrNoRows {
				err = nil
				continue
			}
			return nil, nil, fmt.Errorf("check course: %w", err)
		}

		if err = tx.GetContext(ctx, &one, "SELECT 1 FROM enrollments WHERE user_id = $1 AND course_id = $2 LIMIT 1", app.UserID, courseID); err == nil {
			continue
		} else if err != sql.ErrNoRows {
			return nil, nil, fmt.Errorf("check enrollment: %w", err)
		}
		err = nil

		const insert = `INSERT INTO enrollments (id, user_id, course_id, enrolled_at) VALUES ($1, $2, $3, $4)`
		if _, err = tx.ExecContext(ctx, insert, uuid.NewString(), app.UserID, courseID, now); err != nil {
			if isUniqueViolation(err) {
				// A concurrent approval on another application already
				// enrolled this pair; treat it as a duplicate to skip.
				err = nil
				continue
			}
			return nil, nil, fmt.Errorf("insert enrollment: %w", err)
		}
		enrolledCourses = append(enrolledCourses, courseID)
	}

	const update = `UPDATE enrollment_applications SET status = $2, processed_at = $3, processed_by = $4 WHERE id = $1`
	if _, err = tx.ExecContext(ctx, update, id, models.ApplicationStatusApproved, now, adminID); err != nil {
		return nil, nil, fmt.Errorf("update application status: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit approval: %w", err)
	}

	app.Status = models.ApplicationStatusApproved
	app.ProcessedAt = &now
	app.ProcessedBy = &adminID
	return app, enrolledCourses, nil
}

// Reject transitions a submitted application to rejected under the same lock
// discipline as Approve. No enrollment rows are touched.
func (r *ApplicationRepository) Reject(ctx context.Context, id, adminID string) (app *models.Application, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin rejection: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	app, err = lockApplication(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if app.Status != models.ApplicationStatusSubmitted {
		err = ErrApplicationNotSubmitted
		return nil, err
	}

	now := time.Now().UTC()
	const update = `UPDATE enrollment_applications SET status = $2, processed_at = $3, processed_by = $4 WHERE id = $1`
	if _, err = tx.ExecContext(ctx, update, id, models.ApplicationStatusRejected, now, adminID); err != nil {
		return nil, fmt.Errorf("update application status: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit rejection: %w", err)
	}

	app.Status = models.ApplicationStatusRejected
	app.ProcessedAt = &now
	app.ProcessedBy = &adminID
	return app, nil
}

// Delete removes a non-approved application, detaching any payments that
// referenced it. The deleted row is returned so the caller can clean up
// stored documents.
func (r *ApplicationRepository) Delete(ctx context.Context, id string) (app *models.Application, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin application delete: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	app, err = lockApplication(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if app.Status == models.ApplicationStatusApproved {
		err = ErrApplicationApproved
		return nil, err
	}

	if _, err = tx.ExecContext(ctx, `UPDATE payments SET application_id = NULL WHERE application_id = $1`, id); err != nil {
		return nil, fmt.Errorf("detach payments: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM enrollment_applications WHERE id = $1`, id); err != nil {
		return nil, fmt.Errorf("delete application: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit application delete: %w", err)
	}
	return app, nil
}

// List returns applications with applicant context.
func (r *ApplicationRepository) List(ctx context.Context, filter models.ApplicationFilter) ([]models.ApplicationDetail, int, error) {
	base := `FROM enrollment_applications ea
LEFT JOIN users u ON u.id = ea.user_id`
	var conditions []string
	var args []interface{}

	if filter.UserID != "" {
		conditions = append(conditions, fmt.Sprintf("ea.user_id = $%d", len(args)+1))
		args = append(args, filter.UserID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("ea.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
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

	query := fmt.Sprintf(`SELECT ea.id, ea.user_id, ea.course_ids, ea.notes, ea.files, ea.parent_info,
        ea.student_info, ea.status, ea.submitted_at, ea.processed_at, ea.processed_by,
        u.username AS username,
        CONCAT_WS(' ', u.first_name, u.middle_name, u.last_name) AS applicant_name
        %s ORDER BY ea.submitted_at %s LIMIT %d OFFSET %d`, base+clause, order, size, offset)

	var applications []models.ApplicationDetail
	if err := r.db.SelectContext(ctx, &applications, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list applications: %w", err)
	}

	countQuery := "SELECT COUNT(*) " + base + clause
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count applications: %w", err)
	}
	return applications, total, nil
}

// CountByStatus returns the number of applications in the given status.
func (r *ApplicationRepository) CountByStatus(ctx context.Context, status models.ApplicationStatus) (int, error) {
	const query = `SELECT COUNT(*) FROM enrollment_applications WHERE status = $1`
	var total int
	if err := r.db.GetContext(ctx, &total, query, status); err != nil {
		return 0, fmt.Errorf("count applications: %w", err)
	}
	return total, nil
}

// Recent returns the most recently submitted applications for the dashboard.
func (r *ApplicationRepository) Recent(ctx context.Context, limit int) ([]models.ApplicationDetail, error) {
	if limit <= 0 {
		limit = 5
	}
	query := fmt.Sprintf(`SELECT ea.id, ea.user_id, ea.course_ids, ea.notes, ea.files, ea.parent_info,
        ea.student_info, ea.status, ea.submitted_at, ea.processed_at, ea.processed_by,
        u.username AS username,
        CONCAT_WS(' ', u.first_name, u.middle_name, u.last_name) AS applicant_name
        FROM enrollment_applications ea
        LEFT JOIN users u ON u.id = ea.user_id
        ORDER BY ea.submitted_at DESC LIMIT %d`, limit)
	var applications []models.ApplicationDetail
	if err := r.db.SelectContext(ctx, &applications, query); err != nil {
		return nil, fmt.Errorf("recent applications: %w", err)
	}
	return applications, nil
}

func lockApplication(ctx context.Context, tx *sqlx.Tx, id string) (*models.Application, error) {
	query := fmt.Sprintf("SELECT %s FROM enrollment_applications WHERE id = $1 FOR UPDATE", applicationColumns)
	var app models.Application
	if err := tx.GetContext(ctx, &app, query, id); err != nil {
		return nil, err
	}
	return &app, nil
}
