package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Crisjan0/enrollment-portal-api/internal/models"
)

type mockRoleCounter struct {
	students int
	err      error
	calls    int
}

func (m *mockRoleCounter) CountByRole(_ context.Context, _ models.UserRole) (int, error) {
	m.calls++
	return m.students, m.err
}

type mockTotalCounter struct {
	n   int
	err error
}

func (m *mockTotalCounter) Count(_ context.Context) (int, error) {
	return m.n, m.err
}

type mockApplicationStats struct {
	byStatus  map[models.ApplicationStatus]int
	recent    []models.ApplicationDetail
	recentErr error
}

func (m *mockApplicationStats) CountByStatus(_ context.Context, status models.ApplicationStatus) (int, error) {
	return m.byStatus[status], nil
}

func (m *mockApplicationStats) Recent(_ context.Context, _ int) ([]models.ApplicationDetail, error) {
	return m.recent, m.recentErr
}

type mockPaymentStats struct {
	byStatus   map[models.PaymentStatus]int
	pendingSum float64
	sumErr     error
}

func (m *mockPaymentStats) CountByStatus(_ context.Context, status models.PaymentStatus) (int, error) {
	return m.byStatus[status], nil
}

func (m *mockPaymentStats) SumPendingAmount(_ context.Context) (float64, error) {
	return m.pendingSum, m.sumErr
}

func newDashboardServiceForTest(users *mockRoleCounter, cache *CacheService) *DashboardService {
	return NewDashboardService(DashboardServiceParams{
		Users:       users,
		Courses:     &mockTotalCounter{n: 8},
		Enrollments: &mockTotalCounter{n: 42},
		Applications: &mockApplicationStats{
			byStatus: map[models.ApplicationStatus]int{
				models.ApplicationStatusSubmitted: 5,
				models.ApplicationStatusApproved:  11,
				models.ApplicationStatusRejected:  2,
			},
			recent: []models.ApplicationDetail{{Username: "jane"}},
		},
		Payments: &mockPaymentStats{
			byStatus: map[models.PaymentStatus]int{
				models.PaymentStatusPending:   3,
				models.PaymentStatusCompleted: 9,
				models.PaymentStatusFailed:    1,
			},
			pendingSum: 4500,
		},
		Cache:  cache,
		Logger: zap.NewNop(),
		Config: DashboardServiceConfig{CacheTTL: time.Minute, RecentApplications: 5},
	})
}

func TestDashboardServiceAdmin(t *testing.T) {
	users := &mockRoleCounter{students: 120}
	svc := newDashboardServiceForTest(users, nil)

	summary, cached, err := svc.Admin(context.Background())
	require.NoError(t, err)
	assert.False(t, cached)

	assert.Equal(t, 120, summary.Counts.Students)
	assert.Equal(t, 8, summary.Counts.Courses)
	assert.Equal(t, 42, summary.Counts.Enrollments)
	assert.Equal(t, 5, summary.Counts.ApplicationsSubmitted)
	assert.Equal(t, 11, summary.Counts.ApplicationsApproved)
	assert.Equal(t, 2, summary.Counts.ApplicationsRejected)
	assert.Equal(t, 3, summary.Counts.PaymentsPending)
	assert.Equal(t, 9, summary.Counts.PaymentsCompleted)
	assert.Equal(t, 1, summary.Counts.PaymentsFailed)
	assert.InDelta(t, 4500, summary.Counts.PendingPaymentTotal, 0.001)
	require.Len(t, summary.RecentApplications, 1)
	assert.Equal(t, "jane", summary.RecentApplications[0].Username)
}

func TestDashboardServiceAdminUsesCache(t *testing.T) {
	users := &mockRoleCounter{students: 120}
	cache := NewCacheService(newFakeCacheRepository(), nil, time.Minute, zap.NewNop(), true)
	svc := newDashboardServiceForTest(users, cache)

	_, cached, err := svc.Admin(context.Background())
	require.NoError(t, err)
	assert.False(t, cached)

	summary, cached, err := svc.Admin(context.Background())
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, 120, summary.Counts.Students)
	assert.Equal(t, 1, users.calls)
}

func TestDashboardServiceAdminRecomputesAfterInvalidation(t *testing.T) {
	users := &mockRoleCounter{students: 120}
	cache := NewCacheService(newFakeCacheRepository(), nil, time.Minute, zap.NewNop(), true)
	svc := newDashboardServiceForTest(users, cache)

	_, _, err := svc.Admin(context.Background())
	require.NoError(t, err)

	require.NoError(t, cache.Invalidate(context.Background(), "dashboard:*"))

	_, cached, err := svc.Admin(context.Background())
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 2, users.calls)
}

func TestDashboardServiceMetricFailureDegrades(t *testing.T) {
	users := &mockRoleCounter{err: errors.New("database unavailable")}
	svc := newDashboardServiceForTest(users, nil)

	summary, cached, err := svc.Admin(context.Background())
	require.NoError(t, err)
	assert.False(t, cached)

	assert.Zero(t, summary.Counts.Students)
	assert.Equal(t, 8, summary.Counts.Courses)
}
