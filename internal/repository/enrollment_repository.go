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
	"github.com/lib/pq"

	"github.com/Crisjan0/enrollment-portal-api/internal/models"
)

// EnrollmentRepository handles persistence of confirmed enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// Exists reports whether a (user, course) enrollment already exists.
func (r *EnrollmentRepository) Exists(ctx context.Context, userID, courseID string) (bool, error) {
	const query = `SELECT 1 FROM enrollments WHERE user_id = $1 AND course_id = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, userID, courseID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return true, nil
}

// SelectCourses enrolls the user in each referenced course, skipping courses
// that no longer exist and pairs already enrolled. Runs in one transaction.
func (r *EnrollmentRepository) SelectCourses(ctx context.Context, userID string, courseIDs []string) (enrolled int, skipped int, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("begin course selection: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	for _, courseID := range courseIDs {
		var one int
		if err = tx.GetContext(ctx, &one, "SELECT 1 FROM courses WHERE id = $1 LIMIT 1", courseID); err != nil {
			if err == sql.ErrNoRows {
				err = nil
				skipped++
				continue
			}
			return 0, 0, fmt.Errorf("check course: %w", err)
		}

		if err = tx.GetContext(ctx, &one, "SELECT 1 FROM enrollments WHERE user_id = $1 AND course_id = $2 LIMIT 1", userID, courseID); err == nil {
			skipped++
			continue
		} else if err != sql.ErrNoRows {
			return 0, 0, fmt.Errorf("check enrollment: %w", err)
		}
		err = nil

		const insert = `INSERT INTO enrollments (id, user_id, course_id, enrolled_at) VALUES ($1, $2, $3, $4)`
		if _, err = tx.ExecContext(ctx, insert, uuid.NewString(), userID, courseID, now); err != nil {
			if isUniqueViolation(err) {
				err = nil
				skipped++
				continue
			}
			return 0, 0, fmt.Errorf("insert enrollment: %w", err)
		}
		enrolled++
	}

	if err = tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("commit course selection: %w", err)
	}
	return enrolled, skipped, nil
}

// List returns enrollments with student and course context.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	base := `FROM enrollments e
LEFT JOIN users u ON u.id = e.user_id
LEFT JOIN courses c ON c.id = e.course_id`
	var conditions []string
	var args []interface{}

	if filter.UserID != "" {
		conditions = append(conditions, fmt.Sprintf("e.user_id = $%d", len(args)+1))
		args = append(args, filter.UserID)
	}
	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("e.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"enrolled_at":  "e.enrolled_at",
		"student_name": "u.last_name",
		"course_code":  "c.course_code",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "e.enrolled_at"
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

	query := fmt.Sprintf(`SELECT e.id, e.user_id, e.course_id, e.enrolled_at,
        u.username AS username,
        CONCAT_WS(' ', u.first_name, u.middle_name, u.last_name) AS student_name,
        c.course_code AS course_code, c.course_name AS course_name, c.credits AS credits
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := "SELECT COUNT(*) " + base + clause
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// CountByUser returns the number of enrollments referencing a user.
func (r *EnrollmentRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	const query = `SELECT COUNT(*) FROM enrollments WHERE user_id = $1`
	var total int
	if err := r.db.GetContext(ctx, &total, query, userID); err != nil {
		return 0, fmt.Errorf("count user enrollments: %w", err)
	}
	return total, nil
}

// CountByCourse returns the number of enrollments referencing a course.
func (r *EnrollmentRepository) CountByCourse(ctx context.Context, courseID string) (int, error) {
	const query = `SELECT COUNT(*) FROM enrollments WHERE course_id = $1`
	var total int
	if err := r.db.GetContext(ctx, &total, query, courseID); err != nil {
		return 0, fmt.Errorf("count course enrollments: %w", err)
	}
	return total, nil
}

// Count returns the total enrollment count.
func (r *EnrollmentRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM enrollments"); err != nil {
		return 0, fmt.Errorf("count enrollments: %w", err)
	}
	return total, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
