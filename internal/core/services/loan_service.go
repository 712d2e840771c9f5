package services

import (
	"context"
	"errors"
	"log"
	"time"

	"saccotrack/internal/adapters/persistence/models"
	"saccotrack/internal/adapters/persistence/repositories"
	"saccotrack/internal/core/domain"
)

// LoanService handles loan requests and lifecycle transitions.
// Interest and penalties are never applied here; that belongs to the
// rule engine.
type LoanService struct {
	store    repositories.LedgerStore
	notifier Notifier
}

// NewLoanService creates a new loan service
func NewLoanService(store repositories.LedgerStore, notifier Notifier) *LoanService {
	return &LoanService{store: store, notifier: notifier}
}

// RequestLoanInput represents a loan request
type RequestLoanInput struct {
	MemberID uint    `json:"member_id"`
	Amount   float64 `json:"amount"`
}

// Request creates a pending loan for an approved, active member. The
// insert event published by the store drives the reactive due-date
// rule.
func (s *LoanService) Request(ctx context.Context, input *RequestLoanInput) (*models.Loan, error) {
	if input.Amount <= 0 {
		return nil, domain.ErrInvalidInput
	}

	member, err := s.store.GetMember(ctx, input.MemberID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrMemberNotFound
	}
	if err != nil {
		return nil, err
	}
	if member.Status != domain.MemberApproved {
		return nil, domain.ErrMemberNotApproved
	}

	loan := &models.Loan{
		MemberID:        member.ID,
		PrincipalAmount: input.Amount,
		CurrentAmount:   input.Amount,
		Status:          domain.LoanPending,
	}
	if err := s.store.CreateLoan(ctx, loan); err != nil {
		return nil, err
	}
	return loan, nil
}

// Approve moves a pending loan to approved. The due date is assigned
// exactly once: if the reactive rule already set it from the insert
// event it is left alone, otherwise it becomes approval time plus the
// fixed term.
func (s *LoanService) Approve(ctx context.Context, id uint) (*models.Loan, error) {
	var loan *models.Loan
	err := s.store.Atomic(ctx, repositories.LoanKey(id), func(tx repositories.LedgerStore) error {
		l, err := tx.GetLoan(ctx, id)
		if err != nil {
			return err
		}
		if l.Status != domain.LoanPending {
			return domain.ErrInvalidLoanStatus
		}

		now := time.Now()
		l.Status = domain.LoanApproved
		l.ApprovedAt = &now
		if l.DueDate == nil {
			due := now.AddDate(0, 0, domain.LoanTermDays)
			l.DueDate = &due
		}
		if err := tx.UpdateLoan(ctx, l); err != nil {
			return err
		}
		loan = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	return loan, nil
}

// Reject moves a pending loan to rejected
func (s *LoanService) Reject(ctx context.Context, id uint) (*models.Loan, error) {
	var loan *models.Loan
	err := s.store.Atomic(ctx, repositories.LoanKey(id), func(tx repositories.LedgerStore) error {
		l, err := tx.GetLoan(ctx, id)
		if err != nil {
			return err
		}
		if l.Status != domain.LoanPending {
			return domain.ErrInvalidLoanStatus
		}
		l.Status = domain.LoanRejected
		if err := tx.UpdateLoan(ctx, l); err != nil {
			return err
		}
		loan = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	return loan, nil
}

// Repay settles an approved loan in full: status becomes paid and the
// overdue flag clears, which stops both weekly rules for good
func (s *LoanService) Repay(ctx context.Context, id uint) (*models.Loan, error) {
	var loan *models.Loan
	err := s.store.Atomic(ctx, repositories.LoanKey(id), func(tx repositories.LedgerStore) error {
		l, err := tx.GetLoan(ctx, id)
		if err != nil {
			return err
		}
		if l.Status != domain.LoanApproved {
			return domain.ErrLoanNotApproved
		}
		l.Status = domain.LoanPaid
		l.IsOverdue = false
		if err := tx.UpdateLoan(ctx, l); err != nil {
			return err
		}
		loan = l
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		if member, err := s.store.GetMember(ctx, loan.MemberID); err == nil {
			if err := s.notifier.NotifyPaymentConfirmation(member, loan.CurrentAmount, "loan-repayment", 0); err != nil {
				log.Printf("⚠️ %v", &domain.NotifierError{Kind: "loan-repayment", Err: err})
			}
		}
	}
	return loan, nil
}

// GetByID gets a loan by ID
func (s *LoanService) GetByID(ctx context.Context, id uint) (*models.Loan, error) {
	loan, err := s.store.GetLoan(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrLoanNotFound
	}
	return loan, err
}

// List returns loans, optionally filtered by member, with pagination
func (s *LoanService) List(ctx context.Context, memberID uint, offset, limit int) ([]*models.Loan, int64, error) {
	return s.store.ListLoans(ctx, memberID, offset, limit)
}
