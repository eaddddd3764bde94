package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/Crisjan0/enrollment-portal-api/internal/dto"
	"github.com/Crisjan0/enrollment-portal-api/internal/models"
	appErrors "github.com/Crisjan0/enrollment-portal-api/pkg/errors"
)

type userRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error)
	Create(ctx context.Context, user *models.User) error
	UpdateProfile(ctx context.Context, id, firstName string, middleName *string, lastName, email string, updatedAt time.Time) error
	UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error
	Promote(ctx context.Context, id string, updatedAt time.Time) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	RevokeUserRefreshTokens(ctx context.Context, userID string) error
}

type userEnrollmentCounter interface {
	CountByUser(ctx context.Context, userID string) (int, error)
}

// UserService owns admin-side account management.
type UserService struct {
	repo        userRepository
	enrollments userEnrollmentCounter
	audit       auditRecorder
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewUserService constructs a UserService.
func NewUserService(repo userRepository, enrollments userEnrollmentCounter, audit auditRecorder, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UserService{repo: repo, enrollments: enrollments, audit: audit, validator: validate, logger: logger}
}

// Create adds a student account on behalf of an administrator.
func (s *UserService) Create(ctx context.Context, req dto.CreateStudentRequest, adminID string) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}

	username := strings.TrimSpace(strings.ToLower(req.Username))
	email := strings.TrimSpace(strings.ToLower(req.Email))
	taken, err := s.repo.ExistsByUsernameOrEmail(ctx, username, email)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check account availability")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "username or email already registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	now := time.Now().UTC()
	user := &models.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: string(hash),
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Email:        email,
		Role:         models.RoleStudent,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if middle := strings.TrimSpace(req.MiddleName); middle != "" {
		user.MiddleName = &middle
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}

	s.recordAudit(ctx, &models.AuditLog{
		UserID:     &adminID,
		Action:     models.AuditActionUserCreate,
		Resource:   "user",
		ResourceID: &user.ID,
	})

	return user, nil
}

// Get returns an account by ID.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

// Update modifies a student's profile fields.
func (s *UserService) Update(ctx context.Context, id string, req dto.UpdateStudentRequest, adminID string) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}

	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	var middle *string
	if trimmed := strings.TrimSpace(req.MiddleName); trimmed != "" {
		middle = &trimmed
	}
	email := strings.TrimSpace(strings.ToLower(req.Email))
	now := time.Now().UTC()

	if err := s.repo.UpdateProfile(ctx, id, strings.TrimSpace(req.FirstName), middle, strings.TrimSpace(req.LastName), email, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}

	user.FirstName = strings.TrimSpace(req.FirstName)
	user.MiddleName = middle
	user.LastName = strings.TrimSpace(req.LastName)
	user.Email = email
	user.UpdatedAt = now

	s.recordAudit(ctx, &models.AuditLog{
		UserID:     &adminID,
		Action:     models.AuditActionUserUpdate,
		Resource:   "user",
		ResourceID: &id,
	})

	return user, nil
}

// Promote elevates a student account to administrator.
func (s *UserService) Promote(ctx context.Context, id, adminID string) (*models.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.Role == models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "user is already an administrator")
	}

	now := time.Now().UTC()
	if err := s.repo.Promote(ctx, id, now); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to promote user")
	}
	user.Role = models.RoleAdmin
	user.UpdatedAt = now

	s.recordAudit(ctx, &models.AuditLog{
		UserID:     &adminID,
		Action:     models.AuditActionUserPromote,
		Resource:   "user",
		ResourceID: &id,
	})

	return user, nil
}

// ResetPassword sets a new password on behalf of a student and revokes all
// their sessions.
func (s *UserService) ResetPassword(ctx context.Context, id string, req dto.ResetPasswordRequest, adminID string) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid password payload")
	}

	if _, err := s.Get(ctx, id); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	if err := s.repo.UpdatePassword(ctx, id, string(hash), time.Now().UTC()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset password")
	}
	if err := s.repo.RevokeUserRefreshTokens(ctx, id); err != nil {
		s.logger.Warn("failed to revoke refresh tokens after password reset", zap.Error(err))
	}

	s.recordAudit(ctx, &models.AuditLog{
		UserID:     &adminID,
		Action:     models.AuditActionPasswordChange,
		Resource:   "user",
		ResourceID: &id,
	})

	return nil
}

// Delete removes an account unless it still has enrollments.
func (s *UserService) Delete(ctx context.Context, id, adminID string) error {
	if id == adminID {
		return appErrors.Clone(appErrors.ErrInvalidState, "cannot delete your own account")
	}

	enrolled, err := s.enrollments.CountByUser(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollments")
	}
	if enrolled > 0 {
		return appErrors.Clone(appErrors.ErrDependencyConflict, "user has active enrollments")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete user")
	}

	s.recordAudit(ctx, &models.AuditLog{
		UserID:     &adminID,
		Action:     models.AuditActionUserDelete,
		Resource:   "user",
		ResourceID: &id,
	})

	return nil
}

// List returns accounts matching the filter.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}
	return users, paginationFor(filter.Page, filter.PageSize, total), nil
}

func (s *UserService) recordAudit(ctx context.Context, log *models.AuditLog) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Create(ctx, log); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", log.Action), zap.Error(err))
	}
}
