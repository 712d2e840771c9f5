package repositories

import (
	"context"
	"fmt"
	"time"

	"saccotrack/internal/adapters/persistence/models"
)

// LedgerStore is the single canonical interface over the persisted
// group ledger (members, loans, savings, fines) and the automation
// log. The backing engine is an implementation detail; the rule engine
// and the event watcher only ever see this interface.
//
// Every method is individually atomic. Multi-step check-then-act
// sequences (idempotency check + mutation + witness write) must run
// inside Atomic with the key of the entity being mutated.
type LedgerStore interface {
	// Ping reports whether the store is reachable. Batch runs abort
	// up front when it fails.
	Ping(ctx context.Context) error

	// Atomic runs fn against a store scope in which all writes for the
	// given entity key are serialized with every other caller of the
	// same key, and commit together or not at all.
	Atomic(ctx context.Context, entityKey string, fn func(tx LedgerStore) error) error

	// Members
	CreateMember(ctx context.Context, member *models.Member) error
	GetMember(ctx context.Context, id uint) (*models.Member, error)
	GetMemberByPhone(ctx context.Context, phone string) (*models.Member, error)
	UpdateMember(ctx context.Context, member *models.Member) error
	ListMembers(ctx context.Context, offset, limit int) ([]*models.Member, int64, error)
	FindActiveMembers(ctx context.Context) ([]*models.Member, error)
	FindInactiveCandidateMembers(ctx context.Context, asOf time.Time, thresholdDays int) ([]*models.Member, error)
	CountActiveMembers(ctx context.Context) (int64, error)

	// Loans
	CreateLoan(ctx context.Context, loan *models.Loan) error
	GetLoan(ctx context.Context, id uint) (*models.Loan, error)
	UpdateLoan(ctx context.Context, loan *models.Loan) error
	ListLoans(ctx context.Context, memberID uint, offset, limit int) ([]*models.Loan, int64, error)
	FindOverdueCandidateLoans(ctx context.Context, asOf time.Time) ([]*models.Loan, error)
	FindActiveApprovedLoans(ctx context.Context) ([]*models.Loan, error)
	FindOverdueLoans(ctx context.Context) ([]*models.Loan, error)

	// Savings (append-only)
	CreateSaving(ctx context.Context, saving *models.Saving) error
	ListSavings(ctx context.Context, memberID uint, offset, limit int) ([]*models.Saving, int64, error)
	FindLastSaving(ctx context.Context, memberID uint) (*models.Saving, error)
	SumSavingsBetween(ctx context.Context, from, to time.Time) (float64, error)

	// Fines (append-only; only Paid flips)
	AppendFine(ctx context.Context, fine *models.Fine) error
	GetFine(ctx context.Context, id uint) (*models.Fine, error)
	MarkFinePaid(ctx context.Context, id uint) error
	ListFines(ctx context.Context, memberID uint, offset, limit int) ([]*models.Fine, int64, error)
	SumFinesBetween(ctx context.Context, from, to time.Time) (issued, paid float64, err error)
	SumLoansIssuedBetween(ctx context.Context, from, to time.Time) (float64, error)

	// Automation log (append-only idempotency witness)
	AppendAuditLog(ctx context.Context, entry *models.AutomationLog) error
	LogEntryExists(ctx context.Context, actionType, key string) (bool, error)
	ListAuditLogs(ctx context.Context, offset, limit int) ([]*models.AutomationLog, int64, error)

	// Monthly reports
	SaveMonthlyReport(ctx context.Context, report *models.MonthlyReport) error
	ListMonthlyReports(ctx context.Context, offset, limit int) ([]*models.MonthlyReport, int64, error)
}

// LoanKey builds the Atomic entity key for a loan
func LoanKey(id uint) string {
	return fmt.Sprintf("loan:%d", id)
}

// MemberKey builds the Atomic entity key for a member
func MemberKey(id uint) string {
	return fmt.Sprintf("member:%d", id)
}

// ReportKey builds the Atomic entity key for a monthly report snapshot
func ReportKey(month string) string {
	return "report:" + month
}
