package services

import (
	"context"
	"errors"
	"log"

	"saccotrack/internal/adapters/persistence/models"
	"saccotrack/internal/adapters/persistence/repositories"
	"saccotrack/internal/core/domain"
)

// SavingService records member deposits. Savings are append-only and
// never mutated after creation.
type SavingService struct {
	store    repositories.LedgerStore
	notifier Notifier
}

// NewSavingService creates a new saving service
func NewSavingService(store repositories.LedgerStore, notifier Notifier) *SavingService {
	return &SavingService{store: store, notifier: notifier}
}

// DepositInput represents a savings deposit
type DepositInput struct {
	MemberID uint    `json:"member_id"`
	Amount   float64 `json:"amount"`
}

// Deposit appends a saving, updates the member's running total and
// confirms the payment. The insert event published by the store
// drives the reactive activity refresh as well.
func (s *SavingService) Deposit(ctx context.Context, input *DepositInput) (*models.Saving, error) {
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

	// The saving row and the running total commit or fail together;
	// the insert event reaches the bus only after commit
	saving := &models.Saving{
		MemberID: member.ID,
		Amount:   input.Amount,
	}
	var newTotal float64
	err = s.store.Atomic(ctx, repositories.MemberKey(member.ID), func(tx repositories.LedgerStore) error {
		m, err := tx.GetMember(ctx, member.ID)
		if err != nil {
			return err
		}
		if err := tx.CreateSaving(ctx, saving); err != nil {
			return err
		}
		m.TotalSavings += input.Amount
		newTotal = m.TotalSavings
		return tx.UpdateMember(ctx, m)
	})
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		member.TotalSavings = newTotal
		if err := s.notifier.NotifyPaymentConfirmation(member, input.Amount, "saving-deposit", newTotal); err != nil {
			log.Printf("⚠️ %v", &domain.NotifierError{Kind: "saving-deposit", Err: err})
		}
	}
	return saving, nil
}

// List returns savings, optionally filtered by member, newest first
func (s *SavingService) List(ctx context.Context, memberID uint, offset, limit int) ([]*models.Saving, int64, error) {
	return s.store.ListSavings(ctx, memberID, offset, limit)
}
