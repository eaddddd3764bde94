package service

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/Crisjan0/enrollment-portal-api/internal/dto"
	"github.com/Crisjan0/enrollment-portal-api/internal/models"
	appErrors "github.com/Crisjan0/enrollment-portal-api/pkg/errors"
	"github.com/Crisjan0/enrollment-portal-api/pkg/export"
)

type enrollmentRepository interface {
	SelectCourses(ctx context.Context, userID string, courseIDs []string) (int, int, error)
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
}

type rosterExporter interface {
	Render(data export.Dataset) ([]byte, error)
}

type rosterPDFExporter interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// EnrollmentService owns self-service course selection and roster exports.
type EnrollmentService struct {
	repo      enrollmentRepository
	csv       rosterExporter
	pdf       rosterPDFExporter
	cache     cacheInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEnrollmentService constructs an EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, csv rosterExporter, pdf rosterPDFExporter, cache cacheInvalidator, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &EnrollmentService{repo: repo, csv: csv, pdf: pdf, cache: cache, validator: validate, logger: logger}
}

// SelfSelect enrolls the student in the requested courses, skipping unknown
// courses and existing enrollments.
func (s *EnrollmentService) SelfSelect(ctx context.Context, userID string, req dto.SelectCoursesRequest) (*dto.SelectCoursesResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid selection payload")
	}

	enrolled, skipped, err := s.repo.SelectCourses(ctx, userID, req.CourseIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enroll in courses")
	}

	if enrolled > 0 {
		s.invalidateDashboard(ctx)
	}
	return &dto.SelectCoursesResponse{Enrolled: enrolled, Skipped: skipped}, nil
}

// List returns enrollments matching the filter.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return enrollments, paginationFor(filter.Page, filter.PageSize, total), nil
}

// ExportRoster renders the enrollment roster as CSV or PDF bytes.
func (s *EnrollmentService) ExportRoster(ctx context.Context, filter models.EnrollmentFilter, format string) ([]byte, string, error) {
	filter.Page = 1
	filter.PageSize = 100
	var rows []map[string]string
	for {
		page, total, err := s.repo.List(ctx, filter)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
		}
		for _, e := range page {
			rows = append(rows, map[string]string{
				"Username":    e.Username,
				"Student":     e.StudentName,
				"Course Code": e.CourseCode,
				"Course":      e.CourseName,
				"Credits":     strconv.Itoa(e.Credits),
				"Enrolled At": e.EnrolledAt.Format("2006-01-02 15:04"),
			})
		}
		if len(rows) >= total || len(page) == 0 {
			break
		}
		filter.Page++
	}

	data := export.Dataset{
		Headers: []string{"Username", "Student", "Course Code", "Course", "Credits", "Enrolled At"},
		Rows:    rows,
	}

	switch format {
	case "csv", "":
		payload, err := s.csv.Render(data)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv roster")
		}
		return payload, "text/csv", nil
	case "pdf":
		payload, err := s.pdf.Render(data, "Enrollment Roster")
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf roster")
		}
		return payload, "application/pdf", nil
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
}

func (s *EnrollmentService) invalidateDashboard(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, dashboardCachePattern); err != nil {
		s.logger.Warn("failed to invalidate dashboard cache", zap.Error(err))
	}
}
