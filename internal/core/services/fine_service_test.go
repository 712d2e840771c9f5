package services

import (
	"context"
	"testing"

	"saccotrack/internal/adapters/persistence/repositories"
	"saccotrack/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueManualFine(t *testing.T) {
	store := repositories.NewMemoryStore(nil)
	svc := NewFineService(store, nil)
	ctx := context.Background()

	member := seedMember(t, store, meetingDay)

	fine, err := svc.Issue(ctx, &IssueFineInput{MemberID: member.ID, Amount: 75, Reason: "late to meeting"})
	require.NoError(t, err)
	assert.Equal(t, domain.FineManual, fine.Type)
	assert.False(t, fine.Paid)
}

func TestIssueFineValidation(t *testing.T) {
	store := repositories.NewMemoryStore(nil)
	svc := NewFineService(store, nil)
	ctx := context.Background()

	member := seedMember(t, store, meetingDay)

	_, err := svc.Issue(ctx, &IssueFineInput{MemberID: member.ID, Amount: 0, Reason: "late"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.Issue(ctx, &IssueFineInput{MemberID: member.ID, Amount: 50})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.Issue(ctx, &IssueFineInput{MemberID: 99, Amount: 50, Reason: "late"})
	assert.ErrorIs(t, err, domain.ErrMemberNotFound)
}

func TestPayFineExactlyOnce(t *testing.T) {
	store := repositories.NewMemoryStore(nil)
	svc := NewFineService(store, nil)
	ctx := context.Background()

	member := seedMember(t, store, meetingDay)
	fine, err := svc.Issue(ctx, &IssueFineInput{MemberID: member.ID, Amount: 75, Reason: "late to meeting"})
	require.NoError(t, err)

	paid, err := svc.Pay(ctx, fine.ID)
	require.NoError(t, err)
	assert.True(t, paid.Paid)

	_, err = svc.Pay(ctx, fine.ID)
	assert.ErrorIs(t, err, domain.ErrFineAlreadyPaid)
}

func TestPayMissingFine(t *testing.T) {
	store := repositories.NewMemoryStore(nil)
	svc := NewFineService(store, nil)

	_, err := svc.Pay(context.Background(), 42)
	assert.ErrorIs(t, err, domain.ErrFineNotFound)
}
