package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"mime/multipart"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/Crisjan0/enrollment-portal-api/internal/dto"
	"github.com/Crisjan0/enrollment-portal-api/internal/models"
	"github.com/Crisjan0/enrollment-portal-api/internal/repository"
	"github.com/Crisjan0/enrollment-portal-api/pkg/config"
	appErrors "github.com/Crisjan0/enrollment-portal-api/pkg/errors"
)

const dashboardCachePattern = "dashboard:*"

type applicationRepository interface {
	FindByID(ctx context.Context, id string) (*models.Application, error)
	HasApproved(ctx context.Context, userID string) (bool, error)
	CreateWithPayment(ctx context.Context, app *models.Application, payment *models.Payment) error
	Approve(ctx context.Context, id, adminID string) (*models.Application, []string, error)
	Reject(ctx context.Context, id, adminID string) (*models.Application, error)
	Delete(ctx context.Context, id string) (*models.Application, error)
	List(ctx context.Context, filter models.ApplicationFilter) ([]models.ApplicationDetail, int, error)
}

type applicationCourseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context, pattern string) error
}

// ApplicationService owns enrollment application intake and processing.
type ApplicationService struct {
	repo      applicationRepository
	courses   applicationCourseReader
	uploads   *UploadPolicy
	audit     auditRecorder
	cache     cacheInvalidator
	validator *validator.Validate
	logger    *zap.Logger
	fees      config.FeesConfig
	maxExtras int
}

// NewApplicationService constructs an ApplicationService.
func NewApplicationService(
	repo applicationRepository,
	courses applicationCourseReader,
	uploads *UploadPolicy,
	audit auditRecorder,
	cache cacheInvalidator,
	validate *validator.Validate,
	logger *zap.Logger,
	fees config.FeesConfig,
	maxExtras int,
) *ApplicationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if maxExtras <= 0 {
		maxExtras = 10
	}
	return &ApplicationService{
		repo:      repo,
		courses:   courses,
		uploads:   uploads,
		audit:     audit,
		cache:     cache,
		validator: validate,
		logger:    logger,
		fees:      fees,
		maxExtras: maxExtras,
	}
}

// Submit validates the intake payload, stores the uploaded documents, and
// creates the application together with its pending payment in one
// transaction. Stored files are removed again if persistence fails.
func (s *ApplicationService) Submit(ctx context.Context, userID string, req dto.SubmitApplicationRequest, ip, userAgent string) (resp *dto.SubmitApplicationResponse, err error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid application payload")
	}
	if len(req.ExtraDocuments) > s.maxExtras {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("at most %d supporting documents are allowed", s.maxExtras))
	}

	approved, err := s.repo.HasApproved(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check previous applications")
	}
	if approved {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "an approved application already exists for this account")
	}

	fee, err := s.computeFee(ctx, req.CourseIDs)
	if err != nil {
		return nil, err
	}

	amount := fee
	if req.DownPayment > 0 {
		if req.DownPayment < s.fees.MinDownPayment {
			return nil, appErrors.Clone(appErrors.ErrValidation,
				fmt.Sprintf("down payment must be at least %.2f", s.fees.MinDownPayment))
		}
		amount = req.DownPayment
	}

	var stored []string
	defer func() {
		if err != nil {
			for _, name := range stored {
				if cleanupErr := s.uploads.Remove(name); cleanupErr != nil {
					s.logger.Warn("failed to remove stored upload after error",
						zap.String("file", name), zap.Error(cleanupErr))
				}
			}
		}
	}()

	var files models.FileRefs
	for _, doc := range []struct {
		header   *multipart.FileHeader
		fileType string
	}{
		{req.BirthCertificate, "birth_certificate"},
		{req.ReportCard, "report_card"},
		{req.Form138, "form_138"},
		{req.GoodMoral, "good_moral"},
	} {
		if doc.header == nil {
			continue
		}
		ref, saveErr := s.uploads.SaveDocument(doc.header, userID, doc.fileType)
		if saveErr != nil {
			err = saveErr
			return nil, err
		}
		stored = append(stored, ref.StoredName)
		files = append(files, *ref)
	}
	for _, extra := range req.ExtraDocuments {
		ref, saveErr := s.uploads.SaveDocument(extra, userID, "supporting_document")
		if saveErr != nil {
			err = saveErr
			return nil, err
		}
		stored = append(stored, ref.StoredName)
		files = append(files, *ref)
	}

	var proofName *string
	if req.PaymentProof != nil {
		ref, saveErr := s.uploads.SaveProof(req.PaymentProof, userID)
		if saveErr != nil {
			err = saveErr
			return nil, err
		}
		stored = append(stored, ref.StoredName)
		proofName = &ref.StoredName
	}

	now := time.Now().UTC()
	app := &models.Application{
		UserID:      userID,
		CourseIDs:   req.CourseIDs,
		Notes:       req.Notes,
		Files:       files,
		ParentInfo:  req.ParentInfo,
		StudentInfo: req.StudentInfo,
		Status:      models.ApplicationStatusSubmitted,
		SubmittedAt: now,
	}
	var payment *models.Payment
	if amount > 0 {
		payment = &models.Payment{
			UserID:        userID,
			Amount:        amount,
			PaymentDate:   now,
			PaymentStatus: models.PaymentStatusPending,
			Proof:         proofName,
		}
	}

	if err = s.repo.CreateWithPayment(ctx, app, payment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist application")
	}

	s.recordAudit(ctx, &models.AuditLog{
		UserID:     &userID,
		Action:     models.AuditActionApplicationSubmit,
		Resource:   "enrollment_application",
		ResourceID: &app.ID,
		NewValues:  []byte(fmt.Sprintf(`{"courses":%d,"amount":%.2f}`, len(req.CourseIDs), amount)),
		IPAddress:  ip,
		UserAgent:  userAgent,
	})
	s.invalidateDashboard(ctx)

	resp = &dto.SubmitApplicationResponse{
		Application: *app,
		FeeAmount:   fee,
	}
	if payment != nil {
		resp.PaymentID = &payment.ID
	}
	return resp, nil
}

// Get returns an application, restricted to its owner unless the caller is an
// administrator.
func (s *ApplicationService) Get(ctx context.Context, id, actorID string, isAdmin bool) (*models.Application, error) {
	app, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	if !isAdmin && app.UserID != actorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "application belongs to another account")
	}
	return app, nil
}

// List returns applications matching the filter.
func (s *ApplicationService) List(ctx context.Context, filter models.ApplicationFilter) ([]models.ApplicationDetail, *models.Pagination, error) {
	applications, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list applications")
	}
	return applications, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Approve transitions a submitted application to approved and enrolls the
// applicant in the surviving selected courses.
func (s *ApplicationService) Approve(ctx context.Context, id, adminID, ip, userAgent string) (*dto.ProcessApplicationResponse, error) {
	app, enrolled, err := s.repo.Approve(ctx, id, adminID)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		case errors.Is(err, repository.ErrApplicationNotSubmitted):
			return nil, appErrors.Clone(appErrors.ErrInvalidState, "only submitted applications can be approved")
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve application")
		}
	}

	s.recordAudit(ctx, &models.AuditLog{
		UserID:     &adminID,
		Action:     models.AuditActionApplicationApprove,
		Resource:   "enrollment_application",
		ResourceID: &app.ID,
		NewValues:  []byte(fmt.Sprintf(`{"enrolled":%d}`, len(enrolled))),
		IPAddress:  ip,
		UserAgent:  userAgent,
	})
	s.invalidateDashboard(ctx)

	return &dto.ProcessApplicationResponse{
		Application:     *app,
		EnrolledCourses: enrolled,
		SkippedCourses:  skippedCourses(app.CourseIDs, enrolled),
	}, nil
}

// Reject transitions a submitted application to rejected. The optional reason
// is kept in the audit record only, never on the application row.
func (s *ApplicationService) Reject(ctx context.Context, id, adminID, reason, ip, userAgent string) (*models.Application, error) {
	if len(reason) > 2000 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "rejection reason is too long")
	}
	app, err := s.repo.Reject(ctx, id, adminID)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		case errors.Is(err, repository.ErrApplicationNotSubmitted):
			return nil, appErrors.Clone(appErrors.ErrInvalidState, "only submitted applications can be rejected")
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject application")
		}
	}

	entry := &models.AuditLog{
		UserID:     &adminID,
		Action:     models.AuditActionApplicationReject,
		Resource:   "enrollment_application",
		ResourceID: &app.ID,
		IPAddress:  ip,
		UserAgent:  userAgent,
	}
	if reason != "" {
		entry.NewValues = []byte(fmt.Sprintf(`{"reason":%q}`, reason))
	}
	s.recordAudit(ctx, entry)
	s.invalidateDashboard(ctx)

	return app, nil
}

// Delete removes a non-approved application and cleans up its stored files.
// The caller must explicitly confirm the deletion.
func (s *ApplicationService) Delete(ctx context.Context, id, adminID string, confirmed bool, ip, userAgent string) error {
	if !confirmed {
		return appErrors.Clone(appErrors.ErrNotConfirmed, "application deletion requires confirmation")
	}
	app, err := s.repo.Delete(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return appErrors.Clone(appErrors.ErrNotFound, "application not found")
		case errors.Is(err, repository.ErrApplicationApproved):
			return appErrors.Clone(appErrors.ErrInvalidState, "approved applications cannot be deleted")
		default:
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete application")
		}
	}

	for _, file := range app.Files {
		if err := s.uploads.Remove(file.StoredName); err != nil {
			s.logger.Warn("failed to remove application document",
				zap.String("file", file.StoredName), zap.Error(err))
		}
	}

	s.recordAudit(ctx, &models.AuditLog{
		UserID:     &adminID,
		Action:     models.AuditActionApplicationDelete,
		Resource:   "enrollment_application",
		ResourceID: &id,
		IPAddress:  ip,
		UserAgent:  userAgent,
	})
	s.invalidateDashboard(ctx)

	return nil
}

func (s *ApplicationService) computeFee(ctx context.Context, courseIDs []string) (float64, error) {
	seen := make(map[string]struct{}, len(courseIDs))
	var credits int
	for _, id := range courseIDs {
		if _, dup := seen[id]; dup {
			return 0, appErrors.Clone(appErrors.ErrValidation, "duplicate course selection")
		}
		seen[id] = struct{}{}

		course, err := s.courses.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				// Course existence is settled at approval time; a selection
				// that vanished just contributes nothing to the fee.
				continue
			}
			return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
		}
		credits += course.Credits
	}
	return float64(credits) * s.fees.PerCredit, nil
}

func (s *ApplicationService) recordAudit(ctx context.Context, log *models.AuditLog) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Create(ctx, log); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", log.Action), zap.Error(err))
	}
}

func (s *ApplicationService) invalidateDashboard(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, dashboardCachePattern); err != nil {
		s.logger.Warn("failed to invalidate dashboard cache", zap.Error(err))
	}
}

func skippedCourses(selected []string, enrolled []string) []string {
	enrolledSet := make(map[string]struct{}, len(enrolled))
	for _, id := range enrolled {
		enrolledSet[id] = struct{}{}
	}
	var skipped []string
	for _, id := range selected {
		if _, ok := enrolledSet[id]; !ok {
			skipped = append(skipped, id)
		}
	}
	return skipped
}

func paginationFor(page, size, total int) *models.Pagination {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return &models.Pagination{Page: page, PageSize: size, TotalCount: total}
}
