package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/Crisjan0/enrollment-portal-api/internal/models"
)

func newAuditRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestAuditRepositoryCreateFillsDefaults(t *testing.T) {
	db, mock, cleanup := newAuditRepoMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	mock.ExpectExec("INSERT INTO audit_logs").
		WillReturnResult(sqlmock.NewResult(0, 1))

	entry := &models.AuditLog{Action: "LOGIN", Resource: "auth"}
	err := repo.Create(context.Background(), entry)
	require.NoError(t, err)
	require.NotEmpty(t, entry.ID)
	require.False(t, entry.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepositoryListWithFilter(t *testing.T) {
	db, mock, cleanup := newAuditRepoMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	rows := sqlmock.NewRows([]string{"id", "user_id", "action", "resource", "resource_id", "old_values", "new_values", "ip_address", "user_agent", "created_at"}).
		AddRow("log-1", "user-1", "LOGIN", "auth", nil, nil, nil, "127.0.0.1", "test", time.Now())
	mock.ExpectQuery("SELECT id, user_id, action, resource").
		WithArgs("user-1", "LOGIN").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM audit_logs")).
		WithArgs("user-1", "LOGIN").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	logs, total, err := repo.List(context.Background(), models.AuditLogFilter{UserID: "user-1", Action: "LOGIN"})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.Equal(t, 1, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepositoryClear(t *testing.T) {
	db, mock, cleanup := newAuditRepoMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM audit_logs")).
		WillReturnResult(sqlmock.NewResult(0, 9))

	removed, err := repo.Clear(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(9), removed)
	require.NoError(t, mock.ExpectationsWereMet())
}
