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

func TestDepositUpdatesRunningTotal(t *testing.T) {
	store := repositories.NewMemoryStore(nil)
	svc := NewSavingService(store, nil)
	ctx := context.Background()

	member := seedMember(t, store, meetingDay)

	_, err := svc.Deposit(ctx, &DepositInput{MemberID: member.ID, Amount: 200})
	require.NoError(t, err)
	_, err = svc.Deposit(ctx, &DepositInput{MemberID: member.ID, Amount: 300})
	require.NoError(t, err)

	got, err := store.GetMember(ctx, member.ID)
	require.NoError(t, err)
	assert.InDelta(t, 500, got.TotalSavings, 0.001)

	savings, total, err := svc.List(ctx, member.ID, 0, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, savings, 2)
}

func TestDepositValidation(t *testing.T) {
	store := repositories.NewMemoryStore(nil)
	svc := NewSavingService(store, nil)
	ctx := context.Background()

	member := seedMember(t, store, meetingDay)

	_, err := svc.Deposit(ctx, &DepositInput{MemberID: member.ID, Amount: 0})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.Deposit(ctx, &DepositInput{MemberID: 99, Amount: 100})
	assert.ErrorIs(t, err, domain.ErrMemberNotFound)
}

// brokenTotalStore fails every member update, simulating a store
// fault between the saving append and the running-total write
type brokenTotalStore struct {
	repositories.LedgerStore
}

func (b *brokenTotalStore) Atomic(ctx context.Context, entityKey string, fn func(tx repositories.LedgerStore) error) error {
	return b.LedgerStore.Atomic(ctx, entityKey, func(tx repositories.LedgerStore) error {
		return fn(&brokenTotalStore{LedgerStore: tx})
	})
}

func (b *brokenTotalStore) UpdateMember(ctx context.Context, member *models.Member) error {
	return &domain.TransientStoreError{Op: "update member", Err: context.DeadlineExceeded}
}

func TestDepositRollsBackSavingWhenTotalUpdateFails(t *testing.T) {
	inner := repositories.NewMemoryStore(nil)
	svc := NewSavingService(&brokenTotalStore{LedgerStore: inner}, nil)
	ctx := context.Background()

	member := seedMember(t, inner, meetingDay)

	_, err := svc.Deposit(ctx, &DepositInput{MemberID: member.ID, Amount: 250})
	require.Error(t, err)

	// A failed deposit must leave nothing behind: no orphaned saving
	// row and no drifted running total, so a client retry is safe
	savings, total, listErr := inner.ListSavings(ctx, member.ID, 0, 0)
	require.NoError(t, listErr)
	assert.EqualValues(t, 0, total)
	assert.Empty(t, savings)

	got, getErr := inner.GetMember(ctx, member.ID)
	require.NoError(t, getErr)
	assert.Zero(t, got.TotalSavings)
}

func TestDepositRejectsUnapprovedMember(t *testing.T) {
	store := repositories.NewMemoryStore(nil)
	svc := NewSavingService(store, nil)
	ctx := context.Background()

	pending, err := NewMemberService(store).Register(ctx, &RegisterMemberInput{FullName: "Mary Atieno", Phone: "0711000002"})
	require.NoError(t, err)

	_, err = svc.Deposit(ctx, &DepositInput{MemberID: pending.ID, Amount: 100})
	assert.ErrorIs(t, err, domain.ErrMemberNotApproved)
}
