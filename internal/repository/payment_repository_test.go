package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/Crisjan0/enrollment-portal-api/internal/models"
)

func newPaymentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestPaymentRepositoryCreateDefaults(t *testing.T) {
	db, mock, cleanup := newPaymentRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectExec("INSERT INTO payments").
		WillReturnResult(sqlmock.NewResult(0, 1))

	payment := &models.Payment{UserID: "user-1", Amount: 1000}
	err := repo.Create(context.Background(), payment)
	require.NoError(t, err)
	require.NotEmpty(t, payment.ID)
	require.Equal(t, models.PaymentStatusPending, payment.PaymentStatus)
	require.False(t, payment.PaymentDate.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryUpdateStatus(t *testing.T) {
	db, mock, cleanup := newPaymentRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE payments SET payment_status = $2 WHERE id = $1")).
		WithArgs("pay-1", models.PaymentStatusCompleted).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateStatus(context.Background(), "pay-1", models.PaymentStatusCompleted)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryUpdateStatusMissing(t *testing.T) {
	db, mock, cleanup := newPaymentRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE payments SET payment_status = $2 WHERE id = $1")).
		WithArgs("pay-404", models.PaymentStatusCompleted).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), "pay-404", models.PaymentStatusCompleted)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryList(t *testing.T) {
	db, mock, cleanup := newPaymentRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	rows := sqlmock.NewRows([]string{"id", "application_id", "user_id", "amount", "payment_date", "payment_status", "proof", "username", "payer_name"}).
		AddRow("pay-1", nil, "user-1", 1500.0, time.Now(), models.PaymentStatusPending, nil, "jdoe", "Jane Doe")
	mock.ExpectQuery("SELECT p.id, p.application_id, p.user_id, p.amount").
		WithArgs("user-1").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM payments p")).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	payments, total, err := repo.List(context.Background(), models.PaymentFilter{UserID: "user-1"})
	require.NoError(t, err)
	require.Len(t, payments, 1)
	require.Equal(t, 1, total)
	require.Equal(t, "Jane Doe", payments[0].PayerName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositorySumPendingAmount(t *testing.T) {
	db, mock, cleanup := newPaymentRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(SUM(amount), 0) FROM payments WHERE payment_status = $1")).
		WithArgs(models.PaymentStatusPending).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(4500.0))

	total, err := repo.SumPendingAmount(context.Background())
	require.NoError(t, err)
	require.Equal(t, 4500.0, total)
	require.NoError(t, mock.ExpectationsWereMet())
}
