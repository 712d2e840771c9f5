package repositories

import (
	"context"
	"errors"
	"strings"
	"time"

	"saccotrack/internal/adapters/persistence/models"
	"saccotrack/internal/core/domain"
	"saccotrack/internal/events"
	"saccotrack/internal/pkg/keylock"

	"gorm.io/gorm"
)

// ledgerRepository implements LedgerStore on GORM/MySQL
type ledgerRepository struct {
	db    *gorm.DB
	locks *keylock.KeyLock
	bus   *events.Bus

	// pending is non-nil on the scoped store handed to an Atomic fn;
	// insert events buffer there until the transaction commits
	pending *[]events.Event
}

// NewLedgerRepository creates the production ledger store. bus may be
// nil when no change feed is wanted (migrations, one-off tools).
func NewLedgerRepository(db *gorm.DB, bus *events.Bus) LedgerStore {
	return &ledgerRepository{
		db:    db,
		locks: keylock.New(),
		bus:   bus,
	}
}

// wrapErr maps driver failures onto the automation error taxonomy so
// the rule engine can decide between retry, skip and abort.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	if strings.Contains(err.Error(), "Duplicate entry") {
		return domain.ErrDuplicateEntry
	}
	if strings.Contains(err.Error(), "Deadlock found") {
		return &domain.ConcurrencyConflict{Entity: op}
	}
	return &domain.TransientStoreError{Op: op, Err: err}
}

// applyRange applies offset/limit; non-positive values mean unbounded
func applyRange(q *gorm.DB, offset, limit int) *gorm.DB {
	if offset > 0 {
		q = q.Offset(offset)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	return q
}

func (r *ledgerRepository) publish(ev events.Event) {
	if r.pending != nil {
		*r.pending = append(*r.pending, ev)
		return
	}
	if r.bus != nil {
		r.bus.Publish(ev)
	}
}

// Ping checks store reachability
func (r *ledgerRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return domain.ErrStoreUnavailable
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return domain.ErrStoreUnavailable
	}
	return nil
}

// Atomic serializes all work for entityKey and runs fn inside a single
// database transaction. Insert events raised inside the scope buffer
// until commit; the change feed only ever reflects committed writes,
// and a rollback discards the buffered events with the data.
func (r *ledgerRepository) Atomic(ctx context.Context, entityKey string, fn func(tx LedgerStore) error) error {
	unlock := r.locks.Lock(entityKey)
	defer unlock()

	var buffered []events.Event
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		scoped := &ledgerRepository{db: tx, locks: r.locks, pending: &buffered}
		return fn(scoped)
	})
	if err != nil {
		return err
	}

	for _, ev := range buffered {
		r.publish(ev)
	}
	return nil
}

// ============================================================
// Members
// ============================================================

func (r *ledgerRepository) CreateMember(ctx context.Context, member *models.Member) error {
	if err := r.db.WithContext(ctx).Create(member).Error; err != nil {
		return wrapErr("create member", err)
	}
	r.publish(events.Event{Type: events.EntityMember, Op: events.OpInsert, EntityID: member.ID, MemberID: member.ID})
	return nil
}

func (r *ledgerRepository) GetMember(ctx context.Context, id uint) (*models.Member, error) {
	var member models.Member
	if err := r.db.WithContext(ctx).First(&member, id).Error; err != nil {
		return nil, wrapErr("get member", err)
	}
	return &member, nil
}

func (r *ledgerRepository) GetMemberByPhone(ctx context.Context, phone string) (*models.Member, error) {
	var member models.Member
	err := r.db.WithContext(ctx).Where("phone = ?", phone).First(&member).Error
	if err != nil {
		return nil, wrapErr("get member by phone", err)
	}
	return &member, nil
}

func (r *ledgerRepository) UpdateMember(ctx context.Context, member *models.Member) error {
	if err := r.db.WithContext(ctx).Save(member).Error; err != nil {
		return wrapErr("update member", err)
	}
	return nil
}

func (r *ledgerRepository) ListMembers(ctx context.Context, offset, limit int) ([]*models.Member, int64, error) {
	var members []*models.Member
	var total int64

	if err := r.db.WithContext(ctx).Model(&models.Member{}).Count(&total).Error; err != nil {
		return nil, 0, wrapErr("count members", err)
	}
	err := applyRange(r.db.WithContext(ctx).Order("id ASC"), offset, limit).
		Find(&members).Error
	if err != nil {
		return nil, 0, wrapErr("list members", err)
	}
	return members, total, nil
}

func (r *ledgerRepository) FindActiveMembers(ctx context.Context) ([]*models.Member, error) {
	var members []*models.Member
	err := r.db.WithContext(ctx).
		Where("status = ? AND is_active = ?", domain.MemberApproved, true).
		Find(&members).Error
	if err != nil {
		return nil, wrapErr("find active members", err)
	}
	return members, nil
}

func (r *ledgerRepository) FindInactiveCandidateMembers(ctx context.Context, asOf time.Time, thresholdDays int) ([]*models.Member, error) {
	cutoff := asOf.AddDate(0, 0, -thresholdDays)

	var members []*models.Member
	err := r.db.WithContext(ctx).
		Where("status = ? AND is_active = ? AND last_activity_at < ?", domain.MemberApproved, true, cutoff).
		Find(&members).Error
	if err != nil {
		return nil, wrapErr("find inactive candidates", err)
	}
	return members, nil
}

func (r *ledgerRepository) CountActiveMembers(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Member{}).
		Where("status = ? AND is_active = ?", domain.MemberApproved, true).
		Count(&count).Error
	if err != nil {
		return 0, wrapErr("count active members", err)
	}
	return count, nil
}

// ============================================================
// Loans
// ============================================================

func (r *ledgerRepository) CreateLoan(ctx context.Context, loan *models.Loan) error {
	if err := r.db.WithContext(ctx).Create(loan).Error; err != nil {
		return wrapErr("create loan", err)
	}
	r.publish(events.Event{Type: events.EntityLoan, Op: events.OpInsert, EntityID: loan.ID, MemberID: loan.MemberID})
	return nil
}

func (r *ledgerRepository) GetLoan(ctx context.Context, id uint) (*models.Loan, error) {
	var loan models.Loan
	if err := r.db.WithContext(ctx).First(&loan, id).Error; err != nil {
		return nil, wrapErr("get loan", err)
	}
	return &loan, nil
}

func (r *ledgerRepository) UpdateLoan(ctx context.Context, loan *models.Loan) error {
	if err := r.db.WithContext(ctx).Save(loan).Error; err != nil {
		return wrapErr("update loan", err)
	}
	return nil
}

func (r *ledgerRepository) ListLoans(ctx context.Context, memberID uint, offset, limit int) ([]*models.Loan, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Loan{})
	if memberID != 0 {
		query = query.Where("member_id = ?", memberID)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, wrapErr("count loans", err)
	}

	var loans []*models.Loan
	err := applyRange(query.Session(&gorm.Session{}).Order("id ASC"), offset, limit).Find(&loans).Error
	if err != nil {
		return nil, 0, wrapErr("list loans", err)
	}
	return loans, total, nil
}

func (r *ledgerRepository) FindOverdueCandidateLoans(ctx context.Context, asOf time.Time) ([]*models.Loan, error) {
	var loans []*models.Loan
	err := r.db.WithContext(ctx).
		Where("status = ? AND is_overdue = ? AND due_date IS NOT NULL AND due_date < ?", domain.LoanApproved, false, asOf).
		Find(&loans).Error
	if err != nil {
		return nil, wrapErr("find overdue candidates", err)
	}
	return loans, nil
}

func (r *ledgerRepository) FindActiveApprovedLoans(ctx context.Context) ([]*models.Loan, error) {
	var loans []*models.Loan
	err := r.db.WithContext(ctx).
		Where("status = ? AND is_overdue = ?", domain.LoanApproved, false).
		Find(&loans).Error
	if err != nil {
		return nil, wrapErr("find active approved loans", err)
	}
	return loans, nil
}

func (r *ledgerRepository) FindOverdueLoans(ctx context.Context) ([]*models.Loan, error) {
	var loans []*models.Loan
	err := r.db.WithContext(ctx).
		Where("status = ? AND is_overdue = ?", domain.LoanApproved, true).
		Find(&loans).Error
	if err != nil {
		return nil, wrapErr("find overdue loans", err)
	}
	return loans, nil
}

func (r *ledgerRepository) SumLoansIssuedBetween(ctx context.Context, from, to time.Time) (float64, error) {
	var total float64
	err := r.db.WithContext(ctx).
		Model(&models.Loan{}).
		Where("approved_at IS NOT NULL AND approved_at >= ? AND approved_at < ?", from, to).
		Select("COALESCE(SUM(principal_amount), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, wrapErr("sum loans issued", err)
	}
	return total, nil
}

// ============================================================
// Savings
// ============================================================

func (r *ledgerRepository) CreateSaving(ctx context.Context, saving *models.Saving) error {
	if err := r.db.WithContext(ctx).Create(saving).Error; err != nil {
		return wrapErr("create saving", err)
	}
	r.publish(events.Event{Type: events.EntitySaving, Op: events.OpInsert, EntityID: saving.ID, MemberID: saving.MemberID})
	return nil
}

func (r *ledgerRepository) ListSavings(ctx context.Context, memberID uint, offset, limit int) ([]*models.Saving, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Saving{})
	if memberID != 0 {
		query = query.Where("member_id = ?", memberID)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, wrapErr("count savings", err)
	}

	var savings []*models.Saving
	err := applyRange(query.Session(&gorm.Session{}).Order("created_at DESC, id DESC"), offset, limit).Find(&savings).Error
	if err != nil {
		return nil, 0, wrapErr("list savings", err)
	}
	return savings, total, nil
}

// FindLastSaving returns the most recent saving for the member, or nil
// when the member has never saved
func (r *ledgerRepository) FindLastSaving(ctx context.Context, memberID uint) (*models.Saving, error) {
	var saving models.Saving
	err := r.db.WithContext(ctx).
		Where("member_id = ?", memberID).
		Order("created_at DESC, id DESC").
		First(&saving).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapErr("find last saving", err)
	}
	return &saving, nil
}

func (r *ledgerRepository) SumSavingsBetween(ctx context.Context, from, to time.Time) (float64, error) {
	var total float64
	err := r.db.WithContext(ctx).
		Model(&models.Saving{}).
		Where("created_at >= ? AND created_at < ?", from, to).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, wrapErr("sum savings", err)
	}
	return total, nil
}

// ============================================================
// Fines
// ============================================================

func (r *ledgerRepository) AppendFine(ctx context.Context, fine *models.Fine) error {
	if err := r.db.WithContext(ctx).Create(fine).Error; err != nil {
		return wrapErr("append fine", err)
	}
	return nil
}

func (r *ledgerRepository) GetFine(ctx context.Context, id uint) (*models.Fine, error) {
	var fine models.Fine
	if err := r.db.WithContext(ctx).First(&fine, id).Error; err != nil {
		return nil, wrapErr("get fine", err)
	}
	return &fine, nil
}

// MarkFinePaid flips paid false to true; paid fines never flip back
func (r *ledgerRepository) MarkFinePaid(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).
		Model(&models.Fine{}).
		Where("id = ? AND paid = ?", id, false).
		Update("paid", true)
	if result.Error != nil {
		return wrapErr("mark fine paid", result.Error)
	}
	if result.RowsAffected == 0 {
		if _, err := r.GetFine(ctx, id); err != nil {
			return err
		}
		return domain.ErrFineAlreadyPaid
	}
	return nil
}

func (r *ledgerRepository) ListFines(ctx context.Context, memberID uint, offset, limit int) ([]*models.Fine, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Fine{})
	if memberID != 0 {
		query = query.Where("member_id = ?", memberID)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, wrapErr("count fines", err)
	}

	var fines []*models.Fine
	err := applyRange(query.Session(&gorm.Session{}).Order("id DESC"), offset, limit).Find(&fines).Error
	if err != nil {
		return nil, 0, wrapErr("list fines", err)
	}
	return fines, total, nil
}

func (r *ledgerRepository) SumFinesBetween(ctx context.Context, from, to time.Time) (issued, paid float64, err error) {
	base := r.db.WithContext(ctx).
		Model(&models.Fine{}).
		Where("created_at >= ? AND created_at < ?", from, to)

	if err := base.Session(&gorm.Session{}).Select("COALESCE(SUM(amount), 0)").Scan(&issued).Error; err != nil {
		return 0, 0, wrapErr("sum fines issued", err)
	}
	if err := base.Session(&gorm.Session{}).Where("paid = ?", true).Select("COALESCE(SUM(amount), 0)").Scan(&paid).Error; err != nil {
		return 0, 0, wrapErr("sum fines paid", err)
	}
	return issued, paid, nil
}

// ============================================================
// Automation log
// ============================================================

func (r *ledgerRepository) AppendAuditLog(ctx context.Context, entry *models.AutomationLog) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return wrapErr("append audit log", err)
	}
	return nil
}

func (r *ledgerRepository) LogEntryExists(ctx context.Context, actionType, key string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.AutomationLog{}).
		Where("action_type = ? AND idem_key = ?", actionType, key).
		Count(&count).Error
	if err != nil {
		return false, wrapErr("check audit log", err)
	}
	return count > 0, nil
}

func (r *ledgerRepository) ListAuditLogs(ctx context.Context, offset, limit int) ([]*models.AutomationLog, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.AutomationLog{}).Count(&total).Error; err != nil {
		return nil, 0, wrapErr("count audit logs", err)
	}

	var entries []*models.AutomationLog
	err := applyRange(r.db.WithContext(ctx).Order("id DESC"), offset, limit).
		Find(&entries).Error
	if err != nil {
		return nil, 0, wrapErr("list audit logs", err)
	}
	return entries, total, nil
}

// ============================================================
// Monthly reports
// ============================================================

func (r *ledgerRepository) SaveMonthlyReport(ctx context.Context, report *models.MonthlyReport) error {
	if err := r.db.WithContext(ctx).Create(report).Error; err != nil {
		return wrapErr("save monthly report", err)
	}
	return nil
}

func (r *ledgerRepository) ListMonthlyReports(ctx context.Context, offset, limit int) ([]*models.MonthlyReport, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.MonthlyReport{}).Count(&total).Error; err != nil {
		return nil, 0, wrapErr("count monthly reports", err)
	}

	var reports []*models.MonthlyReport
	err := applyRange(r.db.WithContext(ctx).Order("month DESC"), offset, limit).
		Find(&reports).Error
	if err != nil {
		return nil, 0, wrapErr("list monthly reports", err)
	}
	return reports, total, nil
}
