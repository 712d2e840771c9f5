package services

import (
	"context"

	"saccotrack/internal/adapters/persistence/models"
	"saccotrack/internal/adapters/persistence/repositories"
)

// ReportService exposes the automation trail: persisted monthly
// snapshots and the append-only automation log
type ReportService struct {
	store repositories.LedgerStore
}

// NewReportService creates a new report service
func NewReportService(store repositories.LedgerStore) *ReportService {
	return &ReportService{store: store}
}

// ListMonthlyReports returns report snapshots, newest month first
func (s *ReportService) ListMonthlyReports(ctx context.Context, offset, limit int) ([]*models.MonthlyReport, int64, error) {
	return s.store.ListMonthlyReports(ctx, offset, limit)
}

// ListAuditLogs returns automation log entries, newest first
func (s *ReportService) ListAuditLogs(ctx context.Context, offset, limit int) ([]*models.AutomationLog, int64, error) {
	return s.store.ListAuditLogs(ctx, offset, limit)
}
