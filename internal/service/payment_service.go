package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/Crisjan0/enrollment-portal-api/internal/dto"
	"github.com/Crisjan0/enrollment-portal-api/internal/models"
	appErrors "github.com/Crisjan0/enrollment-portal-api/pkg/errors"
)

type paymentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Payment, error)
	Create(ctx context.Context, payment *models.Payment) error
	UpdateStatus(ctx context.Context, id string, status models.PaymentStatus) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, int, error)
}

type paymentApplicationReader interface {
	FindByID(ctx context.Context, id string) (*models.Application, error)
}

// PaymentService owns manual payment recording and verification.
type PaymentService struct {
	repo         paymentRepository
	applications paymentApplicationReader
	uploads      *UploadPolicy
	audit        auditRecorder
	cache        cacheInvalidator
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewPaymentService constructs a PaymentService.
func NewPaymentService(
	repo paymentRepository,
	applications paymentApplicationReader,
	uploads *UploadPolicy,
	audit auditRecorder,
	cache cacheInvalidator,
	validate *validator.Validate,
	logger *zap.Logger,
) *PaymentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &PaymentService{
		repo:         repo,
		applications: applications,
		uploads:      uploads,
		audit:        audit,
		cache:        cache,
		validator:    validate,
		logger:       logger,
	}
}

// Record stores a manual payment with its optional proof image. The stored
// proof is removed again if the insert fails.
func (s *PaymentService) Record(ctx context.Context, userID string, req dto.RecordPaymentRequest, ip, userAgent string) (payment *models.Payment, err error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}

	var applicationID *string
	if req.ApplicationID != "" {
		app, findErr := s.applications.FindByID(ctx, req.ApplicationID)
		if findErr != nil {
			if errors.Is(findErr, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
			}
			return nil, appErrors.Wrap(findErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
		}
		if app.UserID != userID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "application belongs to another account")
		}
		applicationID = &app.ID
	}

	var proofName *string
	if req.Proof != nil {
		ref, saveErr := s.uploads.SaveProof(req.Proof, userID)
		if saveErr != nil {
			return nil, saveErr
		}
		proofName = &ref.StoredName
		defer func() {
			if err != nil {
				if cleanupErr := s.uploads.Remove(ref.StoredName); cleanupErr != nil {
					s.logger.Warn("failed to remove payment proof after error",
						zap.String("file", ref.StoredName), zap.Error(cleanupErr))
				}
			}
		}()
	}

	payment = &models.Payment{
		ApplicationID: applicationID,
		UserID:        userID,
		Amount:        req.Amount,
		PaymentDate:   time.Now().UTC(),
		PaymentStatus: models.PaymentStatusPending,
		Proof:         proofName,
	}
	if err = s.repo.Create(ctx, payment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record payment")
	}

	s.recordAudit(ctx, &models.AuditLog{
		UserID:     &userID,
		Action:     models.AuditActionPaymentRecord,
		Resource:   "payment",
		ResourceID: &payment.ID,
		NewValues:  []byte(fmt.Sprintf(`{"amount":%.2f}`, payment.Amount)),
		IPAddress:  ip,
		UserAgent:  userAgent,
	})
	s.invalidateDashboard(ctx)

	return payment, nil
}

// Get returns a payment, restricted to its owner unless the caller is an
// administrator.
func (s *PaymentService) Get(ctx context.Context, id, actorID string, isAdmin bool) (*models.Payment, error) {
	payment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}
	if !isAdmin && payment.UserID != actorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "payment belongs to another account")
	}
	return payment, nil
}

// List returns payments matching the filter.
func (s *PaymentService) List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, *models.Pagination, error) {
	payments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}
	return payments, paginationFor(filter.Page, filter.PageSize, total), nil
}

// UpdateStatus changes a payment's verification state.
func (s *PaymentService) UpdateStatus(ctx context.Context, id string, req dto.UpdatePaymentStatusRequest, adminID, ip, userAgent string) (*models.Payment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	status := models.PaymentStatus(req.Status)
	if !models.ValidPaymentStatus(status) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown payment status")
	}

	payment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}

	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update payment status")
	}
	old := payment.PaymentStatus
	payment.PaymentStatus = status

	s.recordAudit(ctx, &models.AuditLog{
		UserID:     &adminID,
		Action:     models.AuditActionPaymentStatus,
		Resource:   "payment",
		ResourceID: &payment.ID,
		OldValues:  []byte(fmt.Sprintf(`{"status":%q}`, old)),
		NewValues:  []byte(fmt.Sprintf(`{"status":%q}`, status)),
		IPAddress:  ip,
		UserAgent:  userAgent,
	})
	s.invalidateDashboard(ctx)

	return payment, nil
}

// Delete removes a payment and its stored proof.
func (s *PaymentService) Delete(ctx context.Context, id, adminID, ip, userAgent string) error {
	payment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete payment")
	}

	if payment.Proof != nil {
		if err := s.uploads.Remove(*payment.Proof); err != nil {
			s.logger.Warn("failed to remove payment proof",
				zap.String("file", *payment.Proof), zap.Error(err))
		}
	}

	s.recordAudit(ctx, &models.AuditLog{
		UserID:     &adminID,
		Action:     models.AuditActionPaymentDelete,
		Resource:   "payment",
		ResourceID: &id,
		IPAddress:  ip,
		UserAgent:  userAgent,
	})
	s.invalidateDashboard(ctx)

	return nil
}

func (s *PaymentService) recordAudit(ctx context.Context, log *models.AuditLog) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Create(ctx, log); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", log.Action), zap.Error(err))
	}
}

func (s *PaymentService) invalidateDashboard(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, dashboardCachePattern); err != nil {
		s.logger.Warn("failed to invalidate dashboard cache", zap.Error(err))
	}
}
