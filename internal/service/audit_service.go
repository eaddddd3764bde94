package service

import (
	"context"
	"database/sql"
	"errors"
	"strconv"

	"go.uber.org/zap"

	"github.com/Crisjan0/enrollment-portal-api/internal/models"
	appErrors "github.com/Crisjan0/enrollment-portal-api/pkg/errors"
	"github.com/Crisjan0/enrollment-portal-api/pkg/export"
)

type auditLogRepository interface {
	List(ctx context.Context, filter models.AuditLogFilter) ([]models.AuditLog, int, error)
	Delete(ctx context.Context, id string) error
	Clear(ctx context.Context) (int64, error)
}

// AuditService exposes the audit trail viewer.
type AuditService struct {
	repo   auditLogRepository
	csv    rosterExporter
	logger *zap.Logger
}

// NewAuditService constructs an AuditService.
func NewAuditService(repo auditLogRepository, csv rosterExporter, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{repo: repo, csv: csv, logger: logger}
}

// List returns audit entries matching the filter.
func (s *AuditService) List(ctx context.Context, filter models.AuditLogFilter) ([]models.AuditLog, *models.Pagination, error) {
	logs, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list audit logs")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	return logs, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// ExportCSV renders matching audit entries as CSV bytes.
func (s *AuditService) ExportCSV(ctx context.Context, filter models.AuditLogFilter) ([]byte, error) {
	filter.Page = 1
	filter.PageSize = 200
	var rows []map[string]string
	for {
		page, total, err := s.repo.List(ctx, filter)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load audit logs")
		}
		for _, entry := range page {
			row := map[string]string{
				"Timestamp": entry.CreatedAt.Format("2006-01-02 15:04:05"),
				"Action":    entry.Action,
				"Resource":  entry.Resource,
				"IP":        entry.IPAddress,
				"Size":      strconv.Itoa(len(entry.NewValues)),
			}
			if entry.UserID != nil {
				row["User"] = *entry.UserID
			}
			if entry.ResourceID != nil {
				row["Resource ID"] = *entry.ResourceID
			}
			rows = append(rows, row)
		}
		if len(rows) >= total || len(page) == 0 {
			break
		}
		filter.Page++
	}

	payload, err := s.csv.Render(export.Dataset{
		Headers: []string{"Timestamp", "User", "Action", "Resource", "Resource ID", "IP", "Size"},
		Rows:    rows,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render audit export")
	}
	return payload, nil
}

// Delete removes a single audit entry.
func (s *AuditService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "audit log not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete audit log")
	}
	return nil
}

// Clear removes the entire audit trail and returns how many entries were removed.
func (s *AuditService) Clear(ctx context.Context) (int64, error) {
	removed, err := s.repo.Clear(ctx)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear audit logs")
	}
	return removed, nil
}
