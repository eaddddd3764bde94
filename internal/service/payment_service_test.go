package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Crisjan0/enrollment-portal-api/internal/dto"
	"github.com/Crisjan0/enrollment-portal-api/internal/models"
	appErrors "github.com/Crisjan0/enrollment-portal-api/pkg/errors"
)

const testApplicationID = "7f9d2c1a-4b3e-4f6d-9a8c-1e2f3a4b5c6d"

type mockPaymentRepo struct {
	payments     map[string]*models.Payment
	createErr    error
	listPayments []models.PaymentDetail
	listTotal    int
}

func newMockPaymentRepo() *mockPaymentRepo {
	return &mockPaymentRepo{payments: map[string]*models.Payment{}}
}

func (m *mockPaymentRepo) FindByID(_ context.Context, id string) (*models.Payment, error) {
	payment, ok := m.payments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *payment
	return &copied, nil
}

func (m *mockPaymentRepo) Create(_ context.Context, payment *models.Payment) error {
	if m.createErr != nil {
		return m.createErr
	}
	payment.ID = "pay-1"
	m.payments[payment.ID] = payment
	return nil
}

func (m *mockPaymentRepo) UpdateStatus(_ context.Context, id string, status models.PaymentStatus) error {
	payment, ok := m.payments[id]
	if !ok {
		return sql.ErrNoRows
	}
	payment.PaymentStatus = status
	return nil
}

func (m *mockPaymentRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.payments[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.payments, id)
	return nil
}

func (m *mockPaymentRepo) List(_ context.Context, _ models.PaymentFilter) ([]models.PaymentDetail, int, error) {
	return m.listPayments, m.listTotal, nil
}

func newPaymentServiceForTest(
	repo *mockPaymentRepo,
	apps *mockApplicationRepo,
	store *fakeFileStore,
	audit *mockAuditRecorder,
	cache *mockCacheInvalidator,
) *PaymentService {
	return NewPaymentService(repo, apps, newTestUploadPolicy(store), audit, cache, validator.New(), zap.NewNop())
}

func TestPaymentServiceRecord(t *testing.T) {
	repo := newMockPaymentRepo()
	apps := &mockApplicationRepo{findApp: &models.Application{ID: testApplicationID, UserID: "user-1"}}
	store := &fakeFileStore{}
	audit := &mockAuditRecorder{}
	cache := &mockCacheInvalidator{}
	svc := newPaymentServiceForTest(repo, apps, store, audit, cache)

	req := dto.RecordPaymentRequest{
		ApplicationID: testApplicationID,
		Amount:        1500,
		Proof:         makeFileHeader(t, "receipt.pdf", pdfContent),
	}
	payment, err := svc.Record(context.Background(), "user-1", req, "127.0.0.1", "go-test")
	require.NoError(t, err)

	assert.Equal(t, "pay-1", payment.ID)
	assert.Equal(t, models.PaymentStatusPending, payment.PaymentStatus)
	require.NotNil(t, payment.ApplicationID)
	assert.Equal(t, testApplicationID, *payment.ApplicationID)
	require.NotNil(t, payment.Proof)
	assert.Contains(t, *payment.Proof, "payments/")
	require.Len(t, store.saved, 1)

	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionPaymentRecord, audit.logs[0].Action)
	assert.Contains(t, cache.patterns, "dashboard:*")
}

func TestPaymentServiceRecordSmallAmount(t *testing.T) {
	repo := newMockPaymentRepo()
	svc := newPaymentServiceForTest(repo, &mockApplicationRepo{}, &fakeFileStore{}, &mockAuditRecorder{}, &mockCacheInvalidator{})

	payment, err := svc.Record(context.Background(), "user-1", dto.RecordPaymentRequest{Amount: 500}, "", "")
	require.NoError(t, err)
	assert.Equal(t, 500.0, payment.Amount)
	assert.Nil(t, payment.ApplicationID)
}

func TestPaymentServiceRecordNonPositiveAmount(t *testing.T) {
	svc := newPaymentServiceForTest(newMockPaymentRepo(), &mockApplicationRepo{}, &fakeFileStore{}, nil, nil)

	for _, amount := range []float64{0, -50} {
		_, err := svc.Record(context.Background(), "user-1", dto.RecordPaymentRequest{Amount: amount}, "", "")
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	}
}

func TestPaymentServiceRecordForeignApplication(t *testing.T) {
	apps := &mockApplicationRepo{findApp: &models.Application{ID: testApplicationID, UserID: "someone-else"}}
	svc := newPaymentServiceForTest(newMockPaymentRepo(), apps, &fakeFileStore{}, nil, nil)

	req := dto.RecordPaymentRequest{ApplicationID: testApplicationID, Amount: 1500}
	_, err := svc.Record(context.Background(), "user-1", req, "", "")
	require.Error(t, err)

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestPaymentServiceRecordMissingApplication(t *testing.T) {
	apps := &mockApplicationRepo{findErr: sql.ErrNoRows}
	svc := newPaymentServiceForTest(newMockPaymentRepo(), apps, &fakeFileStore{}, nil, nil)

	req := dto.RecordPaymentRequest{ApplicationID: testApplicationID, Amount: 1500}
	_, err := svc.Record(context.Background(), "user-1", req, "", "")
	require.Error(t, err)

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestPaymentServiceRecordCleansUpProofOnFailure(t *testing.T) {
	repo := newMockPaymentRepo()
	repo.createErr = sql.ErrConnDone
	store := &fakeFileStore{}
	svc := newPaymentServiceForTest(repo, &mockApplicationRepo{}, store, nil, nil)

	req := dto.RecordPaymentRequest{
		Amount: 1500,
		Proof:  makeFileHeader(t, "receipt.pdf", pdfContent),
	}
	_, err := svc.Record(context.Background(), "user-1", req, "", "")
	require.Error(t, err)

	require.Len(t, store.saved, 1)
	assert.ElementsMatch(t, store.saved, store.deleted)
}

func TestPaymentServiceGetOwnerOnly(t *testing.T) {
	repo := newMockPaymentRepo()
	repo.payments["pay-1"] = &models.Payment{ID: "pay-1", UserID: "user-1"}
	svc := newPaymentServiceForTest(repo, &mockApplicationRepo{}, &fakeFileStore{}, nil, nil)

	_, err := svc.Get(context.Background(), "pay-1", "user-2", false)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	payment, err := svc.Get(context.Background(), "pay-1", "admin-1", true)
	require.NoError(t, err)
	assert.Equal(t, "pay-1", payment.ID)
}

func TestPaymentServiceUpdateStatus(t *testing.T) {
	repo := newMockPaymentRepo()
	repo.payments["pay-1"] = &models.Payment{ID: "pay-1", UserID: "user-1", PaymentStatus: models.PaymentStatusPending}
	audit := &mockAuditRecorder{}
	cache := &mockCacheInvalidator{}
	svc := newPaymentServiceForTest(repo, &mockApplicationRepo{}, &fakeFileStore{}, audit, cache)

	payment, err := svc.UpdateStatus(context.Background(), "pay-1", dto.UpdatePaymentStatusRequest{Status: "completed"}, "admin-1", "127.0.0.1", "go-test")
	require.NoError(t, err)

	assert.Equal(t, models.PaymentStatusCompleted, payment.PaymentStatus)
	assert.Equal(t, models.PaymentStatusCompleted, repo.payments["pay-1"].PaymentStatus)

	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionPaymentStatus, audit.logs[0].Action)
	assert.JSONEq(t, `{"status":"pending"}`, string(audit.logs[0].OldValues))
	assert.JSONEq(t, `{"status":"completed"}`, string(audit.logs[0].NewValues))
	assert.Contains(t, cache.patterns, "dashboard:*")
}

func TestPaymentServiceUpdateStatusUnknown(t *testing.T) {
	svc := newPaymentServiceForTest(newMockPaymentRepo(), &mockApplicationRepo{}, &fakeFileStore{}, nil, nil)

	_, err := svc.UpdateStatus(context.Background(), "pay-1", dto.UpdatePaymentStatusRequest{Status: "refunded"}, "admin-1", "", "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestPaymentServiceDeleteRemovesProof(t *testing.T) {
	proof := "payments/user-1_receipt.pdf"
	repo := newMockPaymentRepo()
	repo.payments["pay-1"] = &models.Payment{ID: "pay-1", UserID: "user-1", Proof: &proof}
	store := &fakeFileStore{}
	audit := &mockAuditRecorder{}
	svc := newPaymentServiceForTest(repo, &mockApplicationRepo{}, store, audit, &mockCacheInvalidator{})

	require.NoError(t, svc.Delete(context.Background(), "pay-1", "admin-1", "127.0.0.1", "go-test"))

	assert.Empty(t, repo.payments)
	assert.Contains(t, store.deleted, proof)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionPaymentDelete, audit.logs[0].Action)
}

func TestPaymentServiceDeleteMissing(t *testing.T) {
	svc := newPaymentServiceForTest(newMockPaymentRepo(), &mockApplicationRepo{}, &fakeFileStore{}, nil, nil)

	err := svc.Delete(context.Background(), "ghost", "admin-1", "", "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestPaymentServiceList(t *testing.T) {
	repo := newMockPaymentRepo()
	repo.listPayments = []models.PaymentDetail{{Payment: models.Payment{ID: "pay-1"}, PayerName: "Jane Doe"}}
	repo.listTotal = 7
	svc := newPaymentServiceForTest(repo, &mockApplicationRepo{}, &fakeFileStore{}, nil, nil)

	payments, pagination, err := svc.List(context.Background(), models.PaymentFilter{Page: 1, PageSize: 10})
	require.NoError(t, err)

	require.Len(t, payments, 1)
	assert.Equal(t, "Jane Doe", payments[0].PayerName)
	require.NotNil(t, pagination)
	assert.Equal(t, 7, pagination.TotalCount)
}
