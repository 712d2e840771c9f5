package services

import (
	"context"
	"errors"
	"time"

	"saccotrack/internal/adapters/persistence/models"
	"saccotrack/internal/adapters/persistence/repositories"
	"saccotrack/internal/core/domain"
)

// MemberService handles member registration and approval
type MemberService struct {
	store repositories.LedgerStore
}

// NewMemberService creates a new member service
func NewMemberService(store repositories.LedgerStore) *MemberService {
	return &MemberService{store: store}
}

// RegisterMemberInput represents member registration input
type RegisterMemberInput struct {
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
	Email    string `json:"email,omitempty"`
}

// Register creates a new member in pending status
func (s *MemberService) Register(ctx context.Context, input *RegisterMemberInput) (*models.Member, error) {
	if input.FullName == "" || input.Phone == "" {
		return nil, domain.ErrInvalidInput
	}

	if _, err := s.store.GetMemberByPhone(ctx, input.Phone); err == nil {
		return nil, domain.ErrDuplicateEntry
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	member := &models.Member{
		FullName:       input.FullName,
		Phone:          input.Phone,
		Email:          input.Email,
		Role:           string(domain.RoleMember),
		Status:         domain.MemberPending,
		IsActive:       true,
		LastActivityAt: time.Now(),
	}
	if err := s.store.CreateMember(ctx, member); err != nil {
		return nil, err
	}
	return member, nil
}

// Approve moves a pending member to approved
func (s *MemberService) Approve(ctx context.Context, id uint) (*models.Member, error) {
	return s.decide(ctx, id, domain.MemberApproved)
}

// Reject moves a pending member to rejected
func (s *MemberService) Reject(ctx context.Context, id uint) (*models.Member, error) {
	return s.decide(ctx, id, domain.MemberRejected)
}

func (s *MemberService) decide(ctx context.Context, id uint, status string) (*models.Member, error) {
	var member *models.Member
	err := s.store.Atomic(ctx, repositories.MemberKey(id), func(tx repositories.LedgerStore) error {
		m, err := tx.GetMember(ctx, id)
		if err != nil {
			return err
		}
		if m.Status != domain.MemberPending {
			return domain.ErrMemberNotPending
		}
		m.Status = status
		if err := tx.UpdateMember(ctx, m); err != nil {
			return err
		}
		member = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return member, nil
}

// GetByID gets a member by ID
func (s *MemberService) GetByID(ctx context.Context, id uint) (*models.Member, error) {
	member, err := s.store.GetMember(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrMemberNotFound
	}
	return member, err
}

// List returns members with pagination
func (s *MemberService) List(ctx context.Context, offset, limit int) ([]*models.Member, int64, error) {
	return s.store.ListMembers(ctx, offset, limit)
}

// MemberSummary aggregates a member's position in the group
type MemberSummary struct {
	Member       *models.MemberResponse `json:"member"`
	TotalSavings float64                `json:"total_savings"`
	UnpaidFines  float64                `json:"unpaid_fines"`
	OpenLoans    int                    `json:"open_loans"`
}

// Summary returns the member together with fines due and open loans
func (s *MemberService) Summary(ctx context.Context, id uint) (*MemberSummary, error) {
	member, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	fines, _, err := s.store.ListFines(ctx, id, 0, 0)
	if err != nil {
		return nil, err
	}
	var unpaid float64
	for _, fine := range fines {
		if !fine.Paid {
			unpaid += fine.Amount
		}
	}

	loans, _, err := s.store.ListLoans(ctx, id, 0, 0)
	if err != nil {
		return nil, err
	}
	open := 0
	for _, loan := range loans {
		if loan.Status == domain.LoanApproved {
			open++
		}
	}

	return &MemberSummary{
		Member:       member.ToResponse(),
		TotalSavings: member.TotalSavings,
		UnpaidFines:  unpaid,
		OpenLoans:    open,
	}, nil
}
