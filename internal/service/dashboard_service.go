package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Crisjan0/enrollment-portal-api/internal/dto"
	"github.com/Crisjan0/enrollment-portal-api/internal/models"
)

const adminDashboardCacheKey = "dashboard:admin"

type dashboardUserCounter interface {
	CountByRole(ctx context.Context, role models.UserRole) (int, error)
}

type dashboardCourseCounter interface {
	Count(ctx context.Context) (int, error)
}

type dashboardEnrollmentCounter interface {
	Count(ctx context.Context) (int, error)
}

type dashboardApplicationReader interface {
	CountByStatus(ctx context.Context, status models.ApplicationStatus) (int, error)
	Recent(ctx context.Context, limit int) ([]models.ApplicationDetail, error)
}

type dashboardPaymentReader interface {
	CountByStatus(ctx context.Context, status models.PaymentStatus) (int, error)
	SumPendingAmount(ctx context.Context) (float64, error)
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL           time.Duration
	RecentApplications int
}

// DashboardService composes the admin dashboard payload. Individual metric
// failures degrade to zero values instead of failing the whole response.
type DashboardService struct {
	users        dashboardUserCounter
	courses      dashboardCourseCounter
	enrollments  dashboardEnrollmentCounter
	applications dashboardApplicationReader
	payments     dashboardPaymentReader
	cache        *CacheService
	logger       *zap.Logger
	cfg          DashboardServiceConfig
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Users        dashboardUserCounter
	Courses      dashboardCourseCounter
	Enrollments  dashboardEnrollmentCounter
	Applications dashboardApplicationReader
	Payments     dashboardPaymentReader
	Cache        *CacheService
	Logger       *zap.Logger
	Config       DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	cfg := params.Config
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.RecentApplications <= 0 {
		cfg.RecentApplications = 5
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		users:        params.Users,
		courses:      params.Courses,
		enrollments:  params.Enrollments,
		applications: params.Applications,
		payments:     params.Payments,
		cache:        params.Cache,
		logger:       logger,
		cfg:          cfg,
	}
}

// Admin returns the admin dashboard summary and indicates cache utilisation.
func (s *DashboardService) Admin(ctx context.Context) (*dto.AdminDashboardResponse, bool, error) {
	if s.cache != nil {
		var cached dto.AdminDashboardResponse
		hit, err := s.cache.Get(ctx, adminDashboardCacheKey, &cached)
		if err == nil && hit {
			return &cached, true, nil
		}
	}

	summary := s.compose(ctx)

	if s.cache != nil {
		if err := s.cache.Set(ctx, adminDashboardCacheKey, summary, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("dashboard cache write failed", zap.Error(err))
		}
	}
	return summary, false, nil
}

func (s *DashboardService) compose(ctx context.Context) *dto.AdminDashboardResponse {
	counts := dto.DashboardCounts{}

	counts.Students = s.countOrZero(ctx, "students", func(ctx context.Context) (int, error) {
		return s.users.CountByRole(ctx, models.RoleStudent)
	})
	counts.Courses = s.countOrZero(ctx, "courses", s.courses.Count)
	counts.Enrollments = s.countOrZero(ctx, "enrollments", s.enrollments.Count)

	counts.ApplicationsSubmitted = s.countOrZero(ctx, "applications_submitted", func(ctx context.Context) (int, error) {
		return s.applications.CountByStatus(ctx, models.ApplicationStatusSubmitted)
	})
	counts.ApplicationsApproved = s.countOrZero(ctx, "applications_approved", func(ctx context.Context) (int, error) {
		return s.applications.CountByStatus(ctx, models.ApplicationStatusApproved)
	})
	counts.ApplicationsRejected = s.countOrZero(ctx, "applications_rejected", func(ctx context.Context) (int, error) {
		return s.applications.CountByStatus(ctx, models.ApplicationStatusRejected)
	})

	counts.PaymentsPending = s.countOrZero(ctx, "payments_pending", func(ctx context.Context) (int, error) {
		return s.payments.CountByStatus(ctx, models.PaymentStatusPending)
	})
	counts.PaymentsCompleted = s.countOrZero(ctx, "payments_completed", func(ctx context.Context) (int, error) {
		return s.payments.CountByStatus(ctx, models.PaymentStatusCompleted)
	})
	counts.PaymentsFailed = s.countOrZero(ctx, "payments_failed", func(ctx context.Context) (int, error) {
		return s.payments.CountByStatus(ctx, models.PaymentStatusFailed)
	})

	if total, err := s.payments.SumPendingAmount(ctx); err != nil {
		s.logger.Warn("dashboard metric failed", zap.String("metric", "pending_payment_total"), zap.Error(err))
	} else {
		counts.PendingPaymentTotal = total
	}

	recent, err := s.applications.Recent(ctx, s.cfg.RecentApplications)
	if err != nil {
		s.logger.Warn("dashboard metric failed", zap.String("metric", "recent_applications"), zap.Error(err))
		recent = nil
	}

	return &dto.AdminDashboardResponse{Counts: counts, RecentApplications: recent}
}

func (s *DashboardService) countOrZero(ctx context.Context, metric string, fn func(context.Context) (int, error)) int {
	n, err := fn(ctx)
	if err != nil {
		s.logger.Warn("dashboard metric failed", zap.String("metric", metric), zap.Error(err))
		return 0
	}
	return n
}
