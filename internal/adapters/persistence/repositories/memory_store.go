package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"saccotrack/internal/adapters/persistence/models"
	"saccotrack/internal/core/domain"
	"saccotrack/internal/events"
	"saccotrack/internal/pkg/keylock"
)

// MemoryStore is the in-memory reference implementation of
// LedgerStore. It backs the test suites and pins down the store
// semantics the GORM adapter must match: copy-on-read/copy-on-write
// records, per-entity Atomic serialization, and insert events
// published only for committed writes.
type MemoryStore struct {
	mu    sync.RWMutex
	locks *keylock.KeyLock
	bus   *events.Bus

	members map[uint]*models.Member
	loans   map[uint]*models.Loan
	savings []*models.Saving
	fines   []*models.Fine
	audit   []*models.AutomationLog
	reports map[string]*models.MonthlyReport

	// txMu serializes Atomic sections so snapshot rollback cannot
	// clobber a concurrent section's committed writes
	txMu sync.Mutex

	// Inside an Atomic section insert events buffer in pending and
	// reach the bus only on commit
	buffering bool
	pending   []events.Event

	nextID uint
}

// NewMemoryStore creates an empty in-memory ledger. bus may be nil.
func NewMemoryStore(bus *events.Bus) *MemoryStore {
	return &MemoryStore{
		locks:   keylock.New(),
		bus:     bus,
		members: make(map[uint]*models.Member),
		loans:   make(map[uint]*models.Loan),
		reports: make(map[string]*models.MonthlyReport),
		nextID:  1,
	}
}

func (s *MemoryStore) allocID() uint {
	id := s.nextID
	s.nextID++
	return id
}

func (s *MemoryStore) publish(ev events.Event) {
	s.mu.Lock()
	if s.buffering {
		s.pending = append(s.pending, ev)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	if s.bus != nil {
		s.bus.Publish(ev)
	}
}

// Ping always succeeds for the in-memory store
func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Atomic serializes all work for entityKey and makes the sequence
// all-or-nothing: the store state is snapshotted up front and restored
// when fn fails. Atomic sections are additionally serialized against
// each other; the reference store trades parallelism for a rollback
// that is trivially correct.
func (s *MemoryStore) Atomic(ctx context.Context, entityKey string, fn func(tx LedgerStore) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	unlock := s.locks.Lock(entityKey)
	defer unlock()

	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()

	s.mu.Lock()
	s.buffering = true
	s.mu.Unlock()

	err := fn(s)

	s.mu.Lock()
	s.buffering = false
	buffered := s.pending
	s.pending = nil
	s.mu.Unlock()

	if err != nil {
		s.restore(snap)
		return err
	}

	for _, ev := range buffered {
		s.publish(ev)
	}
	return nil
}

type memSnapshot struct {
	members map[uint]*models.Member
	loans   map[uint]*models.Loan
	savings []*models.Saving
	fines   []*models.Fine
	audit   []*models.AutomationLog
	reports map[string]*models.MonthlyReport
	nextID  uint
}

func (s *MemoryStore) snapshot() memSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := memSnapshot{
		members: make(map[uint]*models.Member, len(s.members)),
		loans:   make(map[uint]*models.Loan, len(s.loans)),
		reports: make(map[string]*models.MonthlyReport, len(s.reports)),
		nextID:  s.nextID,
	}
	for id, m := range s.members {
		snap.members[id] = copyMember(m)
	}
	for id, l := range s.loans {
		snap.loans[id] = copyLoan(l)
	}
	for month, r := range s.reports {
		c := *r
		snap.reports[month] = &c
	}
	for _, sv := range s.savings {
		c := *sv
		snap.savings = append(snap.savings, &c)
	}
	for _, f := range s.fines {
		c := *f
		snap.fines = append(snap.fines, &c)
	}
	for _, a := range s.audit {
		c := *a
		snap.audit = append(snap.audit, &c)
	}
	return snap
}

func (s *MemoryStore) restore(snap memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.members = snap.members
	s.loans = snap.loans
	s.savings = snap.savings
	s.fines = snap.fines
	s.audit = snap.audit
	s.reports = snap.reports
	s.nextID = snap.nextID
}

func copyMember(m *models.Member) *models.Member {
	c := *m
	return &c
}

func copyLoan(l *models.Loan) *models.Loan {
	c := *l
	if l.DueDate != nil {
		d := *l.DueDate
		c.DueDate = &d
	}
	if l.ApprovedAt != nil {
		a := *l.ApprovedAt
		c.ApprovedAt = &a
	}
	return &c
}

// ============================================================
// Members
// ============================================================

func (s *MemoryStore) CreateMember(ctx context.Context, member *models.Member) error {
	s.mu.Lock()
	member.ID = s.allocID()
	if member.CreatedAt.IsZero() {
		member.CreatedAt = time.Now()
	}
	member.UpdatedAt = member.CreatedAt
	s.members[member.ID] = copyMember(member)
	s.mu.Unlock()

	s.publish(events.Event{Type: events.EntityMember, Op: events.OpInsert, EntityID: member.ID, MemberID: member.ID})
	return nil
}

func (s *MemoryStore) GetMember(ctx context.Context, id uint) (*models.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	member, ok := s.members[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyMember(member), nil
}

func (s *MemoryStore) GetMemberByPhone(ctx context.Context, phone string) (*models.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, member := range s.members {
		if member.Phone == phone {
			return copyMember(member), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *MemoryStore) UpdateMember(ctx context.Context, member *models.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.members[member.ID]; !ok {
		return domain.ErrNotFound
	}
	member.UpdatedAt = time.Now()
	s.members[member.ID] = copyMember(member)
	return nil
}

func (s *MemoryStore) ListMembers(ctx context.Context, offset, limit int) ([]*models.Member, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*models.Member, 0, len(s.members))
	for _, member := range s.members {
		all = append(all, copyMember(member))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return paginate(all, offset, limit), int64(len(all)), nil
}

func (s *MemoryStore) FindActiveMembers(ctx context.Context) ([]*models.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Member
	for _, member := range s.members {
		if member.Status == domain.MemberApproved && member.IsActive {
			out = append(out, copyMember(member))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) FindInactiveCandidateMembers(ctx context.Context, asOf time.Time, thresholdDays int) ([]*models.Member, error) {
	cutoff := asOf.AddDate(0, 0, -thresholdDays)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Member
	for _, member := range s.members {
		if member.Status == domain.MemberApproved && member.IsActive && member.LastActivityAt.Before(cutoff) {
			out = append(out, copyMember(member))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) CountActiveMembers(ctx context.Context) (int64, error) {
	members, err := s.FindActiveMembers(ctx)
	if err != nil {
		return 0, err
	}
	return int64(len(members)), nil
}

// ============================================================
// Loans
// ============================================================

func (s *MemoryStore) CreateLoan(ctx context.Context, loan *models.Loan) error {
	s.mu.Lock()
	loan.ID = s.allocID()
	if loan.CreatedAt.IsZero() {
		loan.CreatedAt = time.Now()
	}
	loan.UpdatedAt = loan.CreatedAt
	s.loans[loan.ID] = copyLoan(loan)
	s.mu.Unlock()

	s.publish(events.Event{Type: events.EntityLoan, Op: events.OpInsert, EntityID: loan.ID, MemberID: loan.MemberID})
	return nil
}

func (s *MemoryStore) GetLoan(ctx context.Context, id uint) (*models.Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	loan, ok := s.loans[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyLoan(loan), nil
}

func (s *MemoryStore) UpdateLoan(ctx context.Context, loan *models.Loan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.loans[loan.ID]; !ok {
		return domain.ErrNotFound
	}
	loan.UpdatedAt = time.Now()
	s.loans[loan.ID] = copyLoan(loan)
	return nil
}

func (s *MemoryStore) ListLoans(ctx context.Context, memberID uint, offset, limit int) ([]*models.Loan, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []*models.Loan
	for _, loan := range s.loans {
		if memberID == 0 || loan.MemberID == memberID {
			all = append(all, copyLoan(loan))
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return paginate(all, offset, limit), int64(len(all)), nil
}

func (s *MemoryStore) FindOverdueCandidateLoans(ctx context.Context, asOf time.Time) ([]*models.Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Loan
	for _, loan := range s.loans {
		if loan.Status == domain.LoanApproved && !loan.IsOverdue &&
			loan.DueDate != nil && loan.DueDate.Before(asOf) {
			out = append(out, copyLoan(loan))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) FindActiveApprovedLoans(ctx context.Context) ([]*models.Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Loan
	for _, loan := range s.loans {
		if loan.Status == domain.LoanApproved && !loan.IsOverdue {
			out = append(out, copyLoan(loan))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) FindOverdueLoans(ctx context.Context) ([]*models.Loan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Loan
	for _, loan := range s.loans {
		if loan.Status == domain.LoanApproved && loan.IsOverdue {
			out = append(out, copyLoan(loan))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) SumLoansIssuedBetween(ctx context.Context, from, to time.Time) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total float64
	for _, loan := range s.loans {
		if loan.ApprovedAt != nil && !loan.ApprovedAt.Before(from) && loan.ApprovedAt.Before(to) {
			total += loan.PrincipalAmount
		}
	}
	return total, nil
}

// ============================================================
// Savings
// ============================================================

func (s *MemoryStore) CreateSaving(ctx context.Context, saving *models.Saving) error {
	s.mu.Lock()
	saving.ID = s.allocID()
	if saving.CreatedAt.IsZero() {
		saving.CreatedAt = time.Now()
	}
	c := *saving
	s.savings = append(s.savings, &c)
	s.mu.Unlock()

	s.publish(events.Event{Type: events.EntitySaving, Op: events.OpInsert, EntityID: saving.ID, MemberID: saving.MemberID})
	return nil
}

func (s *MemoryStore) ListSavings(ctx context.Context, memberID uint, offset, limit int) ([]*models.Saving, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []*models.Saving
	for _, saving := range s.savings {
		if memberID == 0 || saving.MemberID == memberID {
			c := *saving
			all = append(all, &c)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	return paginate(all, offset, limit), int64(len(all)), nil
}

func (s *MemoryStore) FindLastSaving(ctx context.Context, memberID uint) (*models.Saving, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var last *models.Saving
	for _, saving := range s.savings {
		if saving.MemberID != memberID {
			continue
		}
		if last == nil || saving.CreatedAt.After(last.CreatedAt) ||
			(saving.CreatedAt.Equal(last.CreatedAt) && saving.ID > last.ID) {
			last = saving
		}
	}
	if last == nil {
		return nil, nil
	}
	c := *last
	return &c, nil
}

func (s *MemoryStore) SumSavingsBetween(ctx context.Context, from, to time.Time) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total float64
	for _, saving := range s.savings {
		if !saving.CreatedAt.Before(from) && saving.CreatedAt.Before(to) {
			total += saving.Amount
		}
	}
	return total, nil
}

// ============================================================
// Fines
// ============================================================

func (s *MemoryStore) AppendFine(ctx context.Context, fine *models.Fine) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fine.ID = s.allocID()
	if fine.CreatedAt.IsZero() {
		fine.CreatedAt = time.Now()
	}
	c := *fine
	if fine.LoanID != nil {
		l := *fine.LoanID
		c.LoanID = &l
	}
	s.fines = append(s.fines, &c)
	return nil
}

func (s *MemoryStore) GetFine(ctx context.Context, id uint) (*models.Fine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, fine := range s.fines {
		if fine.ID == id {
			c := *fine
			return &c, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *MemoryStore) MarkFinePaid(ctx context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, fine := range s.fines {
		if fine.ID == id {
			if fine.Paid {
				return domain.ErrFineAlreadyPaid
			}
			fine.Paid = true
			return nil
		}
	}
	return domain.ErrNotFound
}

func (s *MemoryStore) ListFines(ctx context.Context, memberID uint, offset, limit int) ([]*models.Fine, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []*models.Fine
	for _, fine := range s.fines {
		if memberID == 0 || fine.MemberID == memberID {
			c := *fine
			all = append(all, &c)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	return paginate(all, offset, limit), int64(len(all)), nil
}

func (s *MemoryStore) SumFinesBetween(ctx context.Context, from, to time.Time) (issued, paid float64, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, fine := range s.fines {
		if !fine.CreatedAt.Before(from) && fine.CreatedAt.Before(to) {
			issued += fine.Amount
			if fine.Paid {
				paid += fine.Amount
			}
		}
	}
	return issued, paid, nil
}

// ============================================================
// Automation log
// ============================================================

func (s *MemoryStore) AppendAuditLog(ctx context.Context, entry *models.AutomationLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.audit {
		if existing.ActionType == entry.ActionType && existing.IdemKey == entry.IdemKey {
			return domain.ErrDuplicateEntry
		}
	}

	entry.ID = s.allocID()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	c := *entry
	if entry.MemberID != nil {
		m := *entry.MemberID
		c.MemberID = &m
	}
	s.audit = append(s.audit, &c)
	return nil
}

func (s *MemoryStore) LogEntryExists(ctx context.Context, actionType, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, entry := range s.audit {
		if entry.ActionType == actionType && entry.IdemKey == key {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) ListAuditLogs(ctx context.Context, offset, limit int) ([]*models.AutomationLog, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*models.AutomationLog, 0, len(s.audit))
	for _, entry := range s.audit {
		c := *entry
		all = append(all, &c)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	return paginate(all, offset, limit), int64(len(all)), nil
}

// ============================================================
// Monthly reports
// ============================================================

func (s *MemoryStore) SaveMonthlyReport(ctx context.Context, report *models.MonthlyReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.reports[report.Month]; exists {
		return domain.ErrDuplicateEntry
	}
	report.ID = s.allocID()
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now()
	}
	c := *report
	s.reports[report.Month] = &c
	return nil
}

func (s *MemoryStore) ListMonthlyReports(ctx context.Context, offset, limit int) ([]*models.MonthlyReport, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*models.MonthlyReport, 0, len(s.reports))
	for _, report := range s.reports {
		c := *report
		all = append(all, &c)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Month > all[j].Month })
	return paginate(all, offset, limit), int64(len(all)), nil
}

func paginate[T any](all []T, offset, limit int) []T {
	if offset >= len(all) {
		return nil
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return all[offset:end]
}
