package services

import (
	"context"
	"errors"
	"log"

	"saccotrack/internal/adapters/persistence/models"
	"saccotrack/internal/adapters/persistence/repositories"
	"saccotrack/internal/core/domain"
)

// FineService handles manual fines and fine settlement
type FineService struct {
	store    repositories.LedgerStore
	notifier Notifier
}

// NewFineService creates a new fine service
func NewFineService(store repositories.LedgerStore, notifier Notifier) *FineService {
	return &FineService{store: store, notifier: notifier}
}

// IssueFineInput represents a manually issued fine
type IssueFineInput struct {
	MemberID uint    `json:"member_id"`
	Amount   float64 `json:"amount"`
	Reason   string  `json:"reason"`
}

// Issue appends a manual fine against a member
func (s *FineService) Issue(ctx context.Context, input *IssueFineInput) (*models.Fine, error) {
	if input.Amount <= 0 || input.Reason == "" {
		return nil, domain.ErrInvalidInput
	}
	if _, err := s.store.GetMember(ctx, input.MemberID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrMemberNotFound
		}
		return nil, err
	}

	fine := &models.Fine{
		MemberID: input.MemberID,
		Amount:   input.Amount,
		Reason:   input.Reason,
		Type:     domain.FineManual,
	}
	if err := s.store.AppendFine(ctx, fine); err != nil {
		return nil, err
	}
	return fine, nil
}

// Pay settles a fine; paid flips false to true exactly once
func (s *FineService) Pay(ctx context.Context, id uint) (*models.Fine, error) {
	fine, err := s.store.GetFine(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrFineNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := s.store.MarkFinePaid(ctx, id); err != nil {
		return nil, err
	}
	fine.Paid = true

	if s.notifier != nil {
		if member, err := s.store.GetMember(ctx, fine.MemberID); err == nil {
			if err := s.notifier.NotifyPaymentConfirmation(member, fine.Amount, "fine-payment", 0); err != nil {
				log.Printf("⚠️ %v", &domain.NotifierError{Kind: "fine-payment", Err: err})
			}
		}
	}
	return fine, nil
}

// List returns fines, optionally filtered by member, newest first
func (s *FineService) List(ctx context.Context, memberID uint, offset, limit int) ([]*models.Fine, int64, error) {
	return s.store.ListFines(ctx, memberID, offset, limit)
}
