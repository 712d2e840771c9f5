package services

import (
	"context"
	"testing"

	"saccotrack/internal/adapters/persistence/models"
	"saccotrack/internal/adapters/persistence/repositories"
	"saccotrack/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterMember(t *testing.T) {
	store := repositories.NewMemoryStore(nil)
	svc := NewMemberService(store)
	ctx := context.Background()

	member, err := svc.Register(ctx, &RegisterMemberInput{FullName: "John Otieno", Phone: "0711000001"})
	require.NoError(t, err)
	assert.NotZero(t, member.ID)
	assert.Equal(t, domain.MemberPending, member.Status)
	assert.True(t, member.IsActive)
	assert.False(t, member.LastActivityAt.IsZero())
}

func TestRegisterMemberValidation(t *testing.T) {
	store := repositories.NewMemoryStore(nil)
	svc := NewMemberService(store)
	ctx := context.Background()

	_, err := svc.Register(ctx, &RegisterMemberInput{Phone: "0711000001"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.Register(ctx, &RegisterMemberInput{FullName: "John Otieno"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRegisterMemberDuplicatePhone(t *testing.T) {
	store := repositories.NewMemoryStore(nil)
	svc := NewMemberService(store)
	ctx := context.Background()

	_, err := svc.Register(ctx, &RegisterMemberInput{FullName: "John Otieno", Phone: "0711000001"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, &RegisterMemberInput{FullName: "Mary Atieno", Phone: "0711000001"})
	assert.ErrorIs(t, err, domain.ErrDuplicateEntry)
}

func TestApproveOnlyPendingMembers(t *testing.T) {
	store := repositories.NewMemoryStore(nil)
	svc := NewMemberService(store)
	ctx := context.Background()

	member, err := svc.Register(ctx, &RegisterMemberInput{FullName: "John Otieno", Phone: "0711000001"})
	require.NoError(t, err)

	approved, err := svc.Approve(ctx, member.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MemberApproved, approved.Status)

	// Approving again: the member is no longer pending
	_, err = svc.Approve(ctx, member.ID)
	assert.ErrorIs(t, err, domain.ErrMemberNotPending)

	_, err = svc.Reject(ctx, member.ID)
	assert.ErrorIs(t, err, domain.ErrMemberNotPending)
}

func TestApproveMissingMember(t *testing.T) {
	store := repositories.NewMemoryStore(nil)
	svc := NewMemberService(store)

	_, err := svc.Approve(context.Background(), 99)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemberSummary(t *testing.T) {
	store := repositories.NewMemoryStore(nil)
	svc := NewMemberService(store)
	ctx := context.Background()

	member := seedMember(t, store, meetingDay)
	member.TotalSavings = 500
	require.NoError(t, store.UpdateMember(ctx, member))

	require.NoError(t, store.AppendFine(ctx, &models.Fine{MemberID: member.ID, Amount: 50, Type: domain.FineManual}))
	require.NoError(t, store.AppendFine(ctx, &models.Fine{MemberID: member.ID, Amount: 30, Type: domain.FineManual, Paid: true}))
	seedLoan(t, store, member.ID, 1000, nil, false)

	summary, err := svc.Summary(ctx, member.ID)
	require.NoError(t, err)
	assert.InDelta(t, 500, summary.TotalSavings, 0.001)
	assert.InDelta(t, 50, summary.UnpaidFines, 0.001)
	assert.Equal(t, 1, summary.OpenLoans)
}
