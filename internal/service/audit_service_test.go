package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Crisjan0/enrollment-portal-api/internal/models"
	appErrors "github.com/Crisjan0/enrollment-portal-api/pkg/errors"
	"github.com/Crisjan0/enrollment-portal-api/pkg/export"
)

type mockAuditLogRepo struct {
	pages      map[int][]models.AuditLog
	listTotal  int
	deleteErr  error
	deleted    []string
	clearCount int64
}

func (m *mockAuditLogRepo) List(_ context.Context, filter models.AuditLogFilter) ([]models.AuditLog, int, error) {
	return m.pages[filter.Page], m.listTotal, nil
}

func (m *mockAuditLogRepo) Delete(_ context.Context, id string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockAuditLogRepo) Clear(_ context.Context) (int64, error) {
	return m.clearCount, nil
}

func auditEntry(action string) models.AuditLog {
	userID := "user-1"
	resourceID := "res-1"
	return models.AuditLog{
		ID:         "log-1",
		UserID:     &userID,
		Action:     action,
		Resource:   "payment",
		ResourceID: &resourceID,
		NewValues:  []byte(`{"amount":1500}`),
		IPAddress:  "127.0.0.1",
		CreatedAt:  time.Date(2026, 8, 20, 9, 30, 0, 0, time.UTC),
	}
}

func TestAuditServiceListClampsPageSize(t *testing.T) {
	repo := &mockAuditLogRepo{
		pages:     map[int][]models.AuditLog{0: {auditEntry(models.AuditActionLogin)}},
		listTotal: 400,
	}
	svc := NewAuditService(repo, export.NewCSVExporter(), zap.NewNop())

	_, pagination, err := svc.List(context.Background(), models.AuditLogFilter{Page: 0, PageSize: 1000})
	require.NoError(t, err)

	require.NotNil(t, pagination)
	assert.Equal(t, 1, pagination.Page)
	assert.Equal(t, 50, pagination.PageSize)
	assert.Equal(t, 400, pagination.TotalCount)
}

func TestAuditServiceExportCSV(t *testing.T) {
	repo := &mockAuditLogRepo{
		pages: map[int][]models.AuditLog{
			1: {auditEntry(models.AuditActionPaymentRecord)},
			2: {auditEntry(models.AuditActionPaymentDelete)},
		},
		listTotal: 2,
	}
	svc := NewAuditService(repo, export.NewCSVExporter(), zap.NewNop())

	payload, err := svc.ExportCSV(context.Background(), models.AuditLogFilter{})
	require.NoError(t, err)

	output := string(payload)
	assert.Contains(t, output, "Timestamp,User,Action,Resource,Resource ID,IP,Size")
	assert.Contains(t, output, "PAYMENT_RECORD")
	assert.Contains(t, output, "PAYMENT_DELETE")
	assert.Contains(t, output, "2026-08-20 09:30:00")
}

func TestAuditServiceDelete(t *testing.T) {
	repo := &mockAuditLogRepo{}
	svc := NewAuditService(repo, export.NewCSVExporter(), zap.NewNop())

	require.NoError(t, svc.Delete(context.Background(), "log-1"))
	assert.Equal(t, []string{"log-1"}, repo.deleted)
}

func TestAuditServiceDeleteMissing(t *testing.T) {
	repo := &mockAuditLogRepo{deleteErr: sql.ErrNoRows}
	svc := NewAuditService(repo, export.NewCSVExporter(), zap.NewNop())

	err := svc.Delete(context.Background(), "ghost")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestAuditServiceClear(t *testing.T) {
	repo := &mockAuditLogRepo{clearCount: 9}
	svc := NewAuditService(repo, export.NewCSVExporter(), zap.NewNop())

	removed, err := svc.Clear(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(9), removed)
}
