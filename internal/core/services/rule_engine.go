package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strconv"
	"sync"
	"time"

	"saccotrack/internal/adapters/persistence/models"
	"saccotrack/internal/adapters/persistence/repositories"
	"saccotrack/internal/config"
	"saccotrack/internal/core/domain"

	"github.com/google/uuid"
)

// Rule names as reported in outcome lists and the status endpoint
const (
	RuleOverdueDetection = "overdue-detection"
	RuleWeeklyInterest   = "weekly-interest"
	RuleWeeklyPenalty    = "weekly-penalty"
	RuleInactivity       = "inactivity-detection"
	RuleMissedSavings    = "missed-savings-detection"
	RuleMonthlyReport    = "monthly-report"
)

// OutcomeStatus classifies what happened to one entity in a rule run
type OutcomeStatus string

const (
	OutcomeApplied OutcomeStatus = "applied"
	OutcomeSkipped OutcomeStatus = "skipped"
	OutcomeFailed  OutcomeStatus = "failed"
)

// EntityOutcome is the per-entity result of one rule application
type EntityOutcome struct {
	Entity string        `json:"entity"`
	ID     uint          `json:"id"`
	Status OutcomeStatus `json:"status"`
	Detail string        `json:"detail,omitempty"`
}

// RuleResult is the outcome report of one rule's batch run. Failures
// are isolated per entity; callers audit partial failures from here.
type RuleResult struct {
	Rule     string          `json:"rule"`
	RunID    string          `json:"run_id"`
	AsOf     time.Time       `json:"as_of"`
	Applied  int             `json:"applied"`
	Skipped  int             `json:"skipped"`
	Failed   int             `json:"failed"`
	Outcomes []EntityOutcome `json:"outcomes,omitempty"`
}

// RuleEngine applies the automated financial rules over the ledger.
// Every rule is idempotent: re-running within the same period is a
// per-entity no-op, witnessed either by the entity's own state flags
// or by an automation-log period key checked inside the same atomic
// scope that commits the side effect.
type RuleEngine struct {
	store    repositories.LedgerStore
	notifier Notifier
	cfg      config.AutomationConfig
}

// NewRuleEngine creates a rule engine over the given ledger store
func NewRuleEngine(store repositories.LedgerStore, notifier Notifier, cfg config.AutomationConfig) *RuleEngine {
	return &RuleEngine{
		store:    store,
		notifier: notifier,
		cfg:      cfg,
	}
}

// ============================================================
// Period keys
// ============================================================

func isoWeekKey(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

func isoDayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

func monthKey(t time.Time) string {
	return t.Format("2006-01")
}

// ============================================================
// Group runners (fixed rule order within one tick)
// ============================================================

// RunDailyGroup runs overdue detection, inactivity detection and
// missed-savings detection, in that order
func (e *RuleEngine) RunDailyGroup(ctx context.Context, asOf time.Time) ([]RuleResult, error) {
	if err := e.store.Ping(ctx); err != nil {
		return nil, domain.ErrStoreUnavailable
	}
	return []RuleResult{
		e.RunOverdueDetection(ctx, asOf),
		e.RunInactivityDetection(ctx, asOf),
		e.RunMissedSavingsDetection(ctx, asOf),
	}, nil
}

// RunWeeklyGroup runs weekly interest then weekly penalty
func (e *RuleEngine) RunWeeklyGroup(ctx context.Context, asOf time.Time) ([]RuleResult, error) {
	if err := e.store.Ping(ctx); err != nil {
		return nil, domain.ErrStoreUnavailable
	}
	return []RuleResult{
		e.RunWeeklyInterest(ctx, asOf),
		e.RunWeeklyPenalty(ctx, asOf),
	}, nil
}

// RunMonthlyGroup runs the monthly report snapshot
func (e *RuleEngine) RunMonthlyGroup(ctx context.Context, asOf time.Time) ([]RuleResult, error) {
	if err := e.store.Ping(ctx); err != nil {
		return nil, domain.ErrStoreUnavailable
	}
	return []RuleResult{
		e.RunMonthlyReport(ctx, asOf),
	}, nil
}

// ============================================================
// Rules
// ============================================================

// RunOverdueDetection flags approved loans whose due date has passed,
// issuing the one-time overdue fine. Re-running the same day is a
// no-op per loan: the selection excludes flagged loans and the flag is
// re-checked on fresh state inside the entity's atomic scope.
func (e *RuleEngine) RunOverdueDetection(ctx context.Context, asOf time.Time) RuleResult {
	loans, err := e.store.FindOverdueCandidateLoans(ctx, asOf)
	if err != nil {
		return failedSelection(RuleOverdueDetection, asOf, err)
	}

	jobs := make([]entityJob, 0, len(loans))
	for _, loan := range loans {
		jobs = append(jobs, e.overdueJob(loan.ID, asOf))
	}
	return e.runJobs(ctx, RuleOverdueDetection, asOf, jobs)
}

func (e *RuleEngine) overdueJob(loanID uint, asOf time.Time) entityJob {
	return entityJob{entity: "loan", id: loanID, run: func(ctx context.Context) (bool, string, error) {
		var memberID uint
		var daysLate int

		err := e.store.Atomic(ctx, repositories.LoanKey(loanID), func(tx repositories.LedgerStore) error {
			loan, err := tx.GetLoan(ctx, loanID)
			if err != nil {
				return err
			}
			if err := validateLoan(loan); err != nil {
				return err
			}
			if loan.Status != domain.LoanApproved || loan.IsOverdue ||
				loan.DueDate == nil || !loan.DueDate.Before(asOf) {
				return errAlreadyDone
			}

			loan.IsOverdue = true
			if err := tx.UpdateLoan(ctx, loan); err != nil {
				return err
			}

			fine := &models.Fine{
				MemberID: loan.MemberID,
				LoanID:   &loan.ID,
				Amount:   e.cfg.OverdueFineAmount,
				Reason:   fmt.Sprintf("loan #%d past due date", loan.ID),
				Type:     domain.FineAutoPenalty,
			}
			if err := tx.AppendFine(ctx, fine); err != nil {
				return err
			}

			memberID = loan.MemberID
			daysLate = int(asOf.Sub(*loan.DueDate).Hours() / 24)

			return tx.AppendAuditLog(ctx, &models.AutomationLog{
				MemberID:    &loan.MemberID,
				ActionType:  domain.ActionOverdueFlag,
				IdemKey:     strconv.FormatUint(uint64(loan.ID), 10),
				Description: fmt.Sprintf("loan #%d flagged overdue, fine %.2f issued", loan.ID, e.cfg.OverdueFineAmount),
			})
		})
		if err != nil {
			return handleJobErr(err)
		}

		e.notifyReminder(ctx, memberID, e.cfg.OverdueFineAmount, "loan-overdue", daysLate)
		return true, "flagged overdue, fine issued", nil
	}}
}

// RunWeeklyInterest compounds the configured rate onto approved,
// non-overdue loans, at most once per ISO week per loan
func (e *RuleEngine) RunWeeklyInterest(ctx context.Context, asOf time.Time) RuleResult {
	loans, err := e.store.FindActiveApprovedLoans(ctx)
	if err != nil {
		return failedSelection(RuleWeeklyInterest, asOf, err)
	}

	week := isoWeekKey(asOf)
	jobs := make([]entityJob, 0, len(loans))
	for _, loan := range loans {
		loanID := loan.ID
		jobs = append(jobs, entityJob{entity: "loan", id: loanID, run: func(ctx context.Context) (bool, string, error) {
			key := fmt.Sprintf("%d:%s", loanID, week)

			err := e.store.Atomic(ctx, repositories.LoanKey(loanID), func(tx repositories.LedgerStore) error {
				exists, err := tx.LogEntryExists(ctx, domain.ActionWeeklyInterest, key)
				if err != nil {
					return err
				}
				if exists {
					return errAlreadyDone
				}

				loan, err := tx.GetLoan(ctx, loanID)
				if err != nil {
					return err
				}
				if err := validateLoan(loan); err != nil {
					return err
				}
				if loan.Status != domain.LoanApproved || loan.IsOverdue {
					return errAlreadyDone
				}

				interest := loan.CurrentAmount * e.cfg.InterestRate
				loan.CurrentAmount += interest
				loan.InterestAccrued += interest
				if err := tx.UpdateLoan(ctx, loan); err != nil {
					return err
				}

				return tx.AppendAuditLog(ctx, &models.AutomationLog{
					MemberID:    &loan.MemberID,
					ActionType:  domain.ActionWeeklyInterest,
					IdemKey:     key,
					Description: fmt.Sprintf("loan #%d interest %.2f applied for %s", loan.ID, interest, week),
				})
			})
			if err != nil {
				return handleJobErr(err)
			}
			return true, "interest applied", nil
		}})
	}
	return e.runJobs(ctx, RuleWeeklyInterest, asOf, jobs)
}

// RunWeeklyPenalty issues the flat weekly fine on overdue loans, at
// most once per ISO week per loan. Independent of the one-time
// overdue-detection fine: a loan overdue three weeks carries the
// detection fine plus three weekly fines.
func (e *RuleEngine) RunWeeklyPenalty(ctx context.Context, asOf time.Time) RuleResult {
	loans, err := e.store.FindOverdueLoans(ctx)
	if err != nil {
		return failedSelection(RuleWeeklyPenalty, asOf, err)
	}

	week := isoWeekKey(asOf)
	jobs := make([]entityJob, 0, len(loans))
	for _, loan := range loans {
		loanID := loan.ID
		jobs = append(jobs, entityJob{entity: "loan", id: loanID, run: func(ctx context.Context) (bool, string, error) {
			key := fmt.Sprintf("%d:%s", loanID, week)
			var memberID uint
			var daysLate int

			err := e.store.Atomic(ctx, repositories.LoanKey(loanID), func(tx repositories.LedgerStore) error {
				exists, err := tx.LogEntryExists(ctx, domain.ActionWeeklyPenalty, key)
				if err != nil {
					return err
				}
				if exists {
					return errAlreadyDone
				}

				loan, err := tx.GetLoan(ctx, loanID)
				if err != nil {
					return err
				}
				if err := validateLoan(loan); err != nil {
					return err
				}
				if loan.Status != domain.LoanApproved || !loan.IsOverdue {
					return errAlreadyDone
				}

				// The fine is the payable record; the loan carries the
				// same liability so currentAmount stays equal to
				// principal + interest + penalties.
				loan.PenaltyAccrued += e.cfg.WeeklyPenaltyAmount
				loan.CurrentAmount += e.cfg.WeeklyPenaltyAmount
				if err := tx.UpdateLoan(ctx, loan); err != nil {
					return err
				}

				fine := &models.Fine{
					MemberID: loan.MemberID,
					LoanID:   &loan.ID,
					Amount:   e.cfg.WeeklyPenaltyAmount,
					Reason:   fmt.Sprintf("weekly penalty, loan #%d overdue", loan.ID),
					Type:     domain.FineAutoPenalty,
				}
				if err := tx.AppendFine(ctx, fine); err != nil {
					return err
				}

				memberID = loan.MemberID
				if loan.DueDate != nil {
					daysLate = int(asOf.Sub(*loan.DueDate).Hours() / 24)
				}

				return tx.AppendAuditLog(ctx, &models.AutomationLog{
					MemberID:    &loan.MemberID,
					ActionType:  domain.ActionWeeklyPenalty,
					IdemKey:     key,
					Description: fmt.Sprintf("loan #%d weekly penalty %.2f for %s", loan.ID, e.cfg.WeeklyPenaltyAmount, week),
				})
			})
			if err != nil {
				return handleJobErr(err)
			}

			e.notifyReminder(ctx, memberID, e.cfg.WeeklyPenaltyAmount, "weekly-penalty", daysLate)
			return true, "weekly penalty issued", nil
		}})
	}
	return e.runJobs(ctx, RuleWeeklyPenalty, asOf, jobs)
}

// RunInactivityDetection deactivates members with no ledger activity
// inside the configured threshold and issues the inactivity fine, once
// per inactivity episode
func (e *RuleEngine) RunInactivityDetection(ctx context.Context, asOf time.Time) RuleResult {
	members, err := e.store.FindInactiveCandidateMembers(ctx, asOf, e.cfg.InactivityThresholdDays)
	if err != nil {
		return failedSelection(RuleInactivity, asOf, err)
	}

	day := isoDayKey(asOf)
	cutoff := asOf.AddDate(0, 0, -e.cfg.InactivityThresholdDays)
	jobs := make([]entityJob, 0, len(members))
	for _, member := range members {
		memberID := member.ID
		jobs = append(jobs, entityJob{entity: "member", id: memberID, run: func(ctx context.Context) (bool, string, error) {
			key := fmt.Sprintf("%d:%s", memberID, day)

			err := e.store.Atomic(ctx, repositories.MemberKey(memberID), func(tx repositories.LedgerStore) error {
				exists, err := tx.LogEntryExists(ctx, domain.ActionInactivityFlag, key)
				if err != nil {
					return err
				}
				if exists {
					return errAlreadyDone
				}

				member, err := tx.GetMember(ctx, memberID)
				if err != nil {
					return err
				}
				if !member.IsActive || !member.LastActivityAt.Before(cutoff) {
					return errAlreadyDone
				}

				member.IsActive = false
				if err := tx.UpdateMember(ctx, member); err != nil {
					return err
				}

				fine := &models.Fine{
					MemberID: member.ID,
					Amount:   e.cfg.InactivityFineAmount,
					Reason:   fmt.Sprintf("no activity for %d days", e.cfg.InactivityThresholdDays),
					Type:     domain.FineAutoInactivity,
				}
				if err := tx.AppendFine(ctx, fine); err != nil {
					return err
				}

				return tx.AppendAuditLog(ctx, &models.AutomationLog{
					MemberID:    &member.ID,
					ActionType:  domain.ActionInactivityFlag,
					IdemKey:     key,
					Description: fmt.Sprintf("member #%d deactivated, fine %.2f issued", member.ID, e.cfg.InactivityFineAmount),
				})
			})
			if err != nil {
				return handleJobErr(err)
			}
			return true, "deactivated, fine issued", nil
		}})
	}
	return e.runJobs(ctx, RuleInactivity, asOf, jobs)
}

// RunMissedSavingsDetection fines active members who have not saved
// within the configured window. Effective only on the meeting weekday;
// the ISO-week key caps it at one fine per member per week however
// often the day's run is repeated.
func (e *RuleEngine) RunMissedSavingsDetection(ctx context.Context, asOf time.Time) RuleResult {
	localAsOf := asOf.In(e.cfg.Location())
	if localAsOf.Weekday() != e.cfg.MeetingWeekday {
		return RuleResult{Rule: RuleMissedSavings, RunID: uuid.NewString(), AsOf: asOf}
	}

	members, err := e.store.FindActiveMembers(ctx)
	if err != nil {
		return failedSelection(RuleMissedSavings, asOf, err)
	}

	week := isoWeekKey(localAsOf)
	maxAge := time.Duration(e.cfg.MissedSavingMaxAgeDays) * 24 * time.Hour
	jobs := make([]entityJob, 0, len(members))
	for _, member := range members {
		memberID := member.ID
		jobs = append(jobs, entityJob{entity: "member", id: memberID, run: func(ctx context.Context) (bool, string, error) {
			key := fmt.Sprintf("%d:%s", memberID, week)

			err := e.store.Atomic(ctx, repositories.MemberKey(memberID), func(tx repositories.LedgerStore) error {
				exists, err := tx.LogEntryExists(ctx, domain.ActionMissedSaving, key)
				if err != nil {
					return err
				}
				if exists {
					return errAlreadyDone
				}

				last, err := tx.FindLastSaving(ctx, memberID)
				if err != nil {
					return err
				}
				if last != nil && asOf.Sub(last.CreatedAt) <= maxAge {
					return errAlreadyDone
				}

				fine := &models.Fine{
					MemberID: memberID,
					Amount:   e.cfg.MissedSavingFineAmount,
					Reason:   "missed weekly saving",
					Type:     domain.FineAutoMissedSaving,
				}
				if err := tx.AppendFine(ctx, fine); err != nil {
					return err
				}

				return tx.AppendAuditLog(ctx, &models.AutomationLog{
					MemberID:    &memberID,
					ActionType:  domain.ActionMissedSaving,
					IdemKey:     key,
					Description: fmt.Sprintf("member #%d fined %.2f for missed saving in %s", memberID, e.cfg.MissedSavingFineAmount, week),
				})
			})
			if err != nil {
				return handleJobErr(err)
			}

			e.notifyReminder(ctx, memberID, e.cfg.MissedSavingFineAmount, "missed-saving", 0)
			return true, "missed-saving fine issued", nil
		}})
	}
	return e.runJobs(ctx, RuleMissedSavings, asOf, jobs)
}

// RunMonthlyReport persists an aggregate snapshot for the prior
// calendar month, once per report month
func (e *RuleEngine) RunMonthlyReport(ctx context.Context, asOf time.Time) RuleResult {
	local := asOf.In(e.cfg.Location())
	monthStart := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, e.cfg.Location()).AddDate(0, -1, 0)
	monthEnd := monthStart.AddDate(0, 1, 0)
	month := monthKey(monthStart)

	job := entityJob{entity: "report", id: 0, run: func(ctx context.Context) (bool, string, error) {
		err := e.store.Atomic(ctx, repositories.ReportKey(month), func(tx repositories.LedgerStore) error {
			exists, err := tx.LogEntryExists(ctx, domain.ActionMonthlyReport, month)
			if err != nil {
				return err
			}
			if exists {
				return errAlreadyDone
			}

			savings, err := tx.SumSavingsBetween(ctx, monthStart, monthEnd)
			if err != nil {
				return err
			}
			loansIssued, err := tx.SumLoansIssuedBetween(ctx, monthStart, monthEnd)
			if err != nil {
				return err
			}
			finesIssued, finesPaid, err := tx.SumFinesBetween(ctx, monthStart, monthEnd)
			if err != nil {
				return err
			}
			activeMembers, err := tx.CountActiveMembers(ctx)
			if err != nil {
				return err
			}

			report := &models.MonthlyReport{
				Month:            month,
				TotalSavings:     savings,
				TotalLoansIssued: loansIssued,
				TotalFinesIssued: finesIssued,
				TotalFinesPaid:   finesPaid,
				ActiveMembers:    activeMembers,
			}
			if err := tx.SaveMonthlyReport(ctx, report); err != nil {
				return err
			}

			return tx.AppendAuditLog(ctx, &models.AutomationLog{
				ActionType:  domain.ActionMonthlyReport,
				IdemKey:     month,
				Description: fmt.Sprintf("monthly report %s persisted", month),
			})
		})
		if err != nil {
			return handleJobErr(err)
		}
		return true, "report " + month, nil
	}}

	return e.runJobs(ctx, RuleMonthlyReport, asOf, []entityJob{job})
}

// ============================================================
// Batch machinery
// ============================================================

// errAlreadyDone signals an idempotent no-op from inside an atomic
// scope; the transaction is rolled back (nothing was written) and the
// entity reports skipped
var errAlreadyDone = errors.New("already applied for this period")

type entityJob struct {
	entity string
	id     uint
	// run returns (applied, detail, err); applied=false with nil err
	// means skipped-idempotent
	run func(ctx context.Context) (bool, string, error)
}

func handleJobErr(err error) (bool, string, error) {
	if err == errAlreadyDone {
		return false, "already applied", nil
	}
	return false, "", err
}

func failedSelection(rule string, asOf time.Time, err error) RuleResult {
	log.Printf("❌ %s: candidate selection failed: %v", rule, err)
	return RuleResult{
		Rule:  rule,
		RunID: uuid.NewString(),
		AsOf:  asOf,
		Outcomes: []EntityOutcome{{
			Entity: "batch",
			Status: OutcomeFailed,
			Detail: err.Error(),
		}},
		Failed: 1,
	}
}

func validateLoan(loan *models.Loan) error {
	if loan.MemberID == 0 {
		return &domain.ValidationError{Entity: "loan", ID: loan.ID, Reason: "no owning member"}
	}
	if loan.PrincipalAmount <= 0 {
		return &domain.ValidationError{Entity: "loan", ID: loan.ID, Reason: "non-positive principal"}
	}
	return nil
}

// runJobs fans jobs out over a bounded worker pool. One entity's
// failure never aborts its siblings; cancellation between entities
// stops dispatching but already-committed entities stay committed.
func (e *RuleEngine) runJobs(ctx context.Context, rule string, asOf time.Time, jobs []entityJob) RuleResult {
	result := RuleResult{Rule: rule, RunID: uuid.NewString(), AsOf: asOf}
	if len(jobs) == 0 {
		return result
	}

	workers := e.cfg.Workers
	if workers <= 0 {
		workers = 1
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, workers)
	)

	for _, job := range jobs {
		if ctx.Err() != nil {
			mu.Lock()
			result.Outcomes = append(result.Outcomes, EntityOutcome{
				Entity: job.entity, ID: job.id, Status: OutcomeSkipped, Detail: "run cancelled",
			})
			result.Skipped++
			mu.Unlock()
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(job entityJob) {
			defer wg.Done()
			defer func() { <-sem }()

			outcome := e.runEntity(ctx, job)

			mu.Lock()
			result.Outcomes = append(result.Outcomes, outcome)
			switch outcome.Status {
			case OutcomeApplied:
				result.Applied++
			case OutcomeSkipped:
				result.Skipped++
			case OutcomeFailed:
				result.Failed++
			}
			mu.Unlock()
		}(job)
	}
	wg.Wait()

	sort.Slice(result.Outcomes, func(i, j int) bool {
		return result.Outcomes[i].ID < result.Outcomes[j].ID
	})

	if result.Failed > 0 {
		log.Printf("⚠️ %s: %d applied, %d skipped, %d failed", rule, result.Applied, result.Skipped, result.Failed)
	}
	return result
}

// runEntity applies one job with the per-entity timeout, bounded
// transient retries and a single conflict re-fetch retry
func (e *RuleEngine) runEntity(ctx context.Context, job entityJob) EntityOutcome {
	retries := 0
	conflictRetried := false

	for {
		entityCtx := ctx
		var cancel context.CancelFunc
		if e.cfg.EntityTimeout > 0 {
			entityCtx, cancel = context.WithTimeout(ctx, e.cfg.EntityTimeout)
		}
		applied, detail, err := job.run(entityCtx)
		if cancel != nil {
			cancel()
		}

		switch {
		case err == nil && applied:
			return EntityOutcome{Entity: job.entity, ID: job.id, Status: OutcomeApplied, Detail: detail}
		case err == nil:
			return EntityOutcome{Entity: job.entity, ID: job.id, Status: OutcomeSkipped, Detail: detail}
		case domain.IsValidation(err):
			log.Printf("⚠️ skipping malformed %s %d: %v", job.entity, job.id, err)
			return EntityOutcome{Entity: job.entity, ID: job.id, Status: OutcomeSkipped, Detail: err.Error()}
		case (domain.IsTransient(err) || errors.Is(err, context.DeadlineExceeded)) && retries < e.cfg.MaxRetries:
			retries++
			continue
		case domain.IsConflict(err) && !conflictRetried:
			conflictRetried = true
			continue
		default:
			return EntityOutcome{Entity: job.entity, ID: job.id, Status: OutcomeFailed, Detail: err.Error()}
		}
	}
}

// notifyReminder dispatches a reminder without ever blocking or
// unwinding the committed ledger change
func (e *RuleEngine) notifyReminder(ctx context.Context, memberID uint, amount float64, kind string, daysLate int) {
	if e.notifier == nil || memberID == 0 {
		return
	}
	member, err := e.store.GetMember(ctx, memberID)
	if err != nil {
		log.Printf("⚠️ reminder lookup for member %d failed: %v", memberID, err)
		return
	}
	if err := e.notifier.NotifyReminder(member, amount, kind, daysLate); err != nil {
		log.Printf("⚠️ %v", &domain.NotifierError{Kind: kind, Err: err})
	}
}
