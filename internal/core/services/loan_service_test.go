package services

import (
	"context"
	"testing"
	"time"

	"saccotrack/internal/adapters/persistence/repositories"
	"saccotrack/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestLoanRequiresApprovedMember(t *testing.T) {
	store := repositories.NewMemoryStore(nil)
	svc := NewLoanService(store, nil)
	ctx := context.Background()

	_, err := svc.Request(ctx, &RequestLoanInput{MemberID: 99, Amount: 1000})
	assert.ErrorIs(t, err, domain.ErrMemberNotFound)

	pending, err := NewMemberService(store).Register(ctx, &RegisterMemberInput{FullName: "John Otieno", Phone: "0711000001"})
	require.NoError(t, err)

	_, err = svc.Request(ctx, &RequestLoanInput{MemberID: pending.ID, Amount: 1000})
	assert.ErrorIs(t, err, domain.ErrMemberNotApproved)
}

func TestRequestLoanCreatesPendingLoan(t *testing.T) {
	store := repositories.NewMemoryStore(nil)
	svc := NewLoanService(store, nil)
	ctx := context.Background()

	member := seedMember(t, store, meetingDay)

	loan, err := svc.Request(ctx, &RequestLoanInput{MemberID: member.ID, Amount: 1500})
	require.NoError(t, err)
	assert.Equal(t, domain.LoanPending, loan.Status)
	assert.InDelta(t, 1500, loan.PrincipalAmount, 0.001)
	assert.InDelta(t, 1500, loan.CurrentAmount, 0.001)
	assert.Nil(t, loan.DueDate)
}

func TestApproveLoanAssignsDueDateOnce(t *testing.T) {
	store := repositories.NewMemoryStore(nil)
	svc := NewLoanService(store, nil)
	ctx := context.Background()

	member := seedMember(t, store, meetingDay)

	loan, err := svc.Request(ctx, &RequestLoanInput{MemberID: member.ID, Amount: 1000})
	require.NoError(t, err)

	approved, err := svc.Approve(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LoanApproved, approved.Status)
	require.NotNil(t, approved.ApprovedAt)
	require.NotNil(t, approved.DueDate)
	wantDue := approved.ApprovedAt.AddDate(0, 0, domain.LoanTermDays)
	assert.WithinDuration(t, wantDue, *approved.DueDate, time.Second)

	// A due date already set by the reactive rule is left alone
	loan2, err := svc.Request(ctx, &RequestLoanInput{MemberID: member.ID, Amount: 500})
	require.NoError(t, err)
	preset := meetingDay.AddDate(0, 0, domain.LoanTermDays)
	loan2.DueDate = &preset
	require.NoError(t, store.UpdateLoan(ctx, loan2))

	approved2, err := svc.Approve(ctx, loan2.ID)
	require.NoError(t, err)
	assert.True(t, approved2.DueDate.Equal(preset))
}

func TestApproveRejectsNonPendingLoan(t *testing.T) {
	store := repositories.NewMemoryStore(nil)
	svc := NewLoanService(store, nil)
	ctx := context.Background()

	member := seedMember(t, store, meetingDay)
	loan, err := svc.Request(ctx, &RequestLoanInput{MemberID: member.ID, Amount: 1000})
	require.NoError(t, err)

	_, err = svc.Reject(ctx, loan.ID)
	require.NoError(t, err)

	_, err = svc.Approve(ctx, loan.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidLoanStatus)
}

func TestRepayClearsOverdueFlag(t *testing.T) {
	store := repositories.NewMemoryStore(nil)
	svc := NewLoanService(store, nil)
	ctx := context.Background()

	member := seedMember(t, store, meetingDay)
	due := meetingDay.AddDate(0, 0, -10)
	loan := seedLoan(t, store, member.ID, 1000, &due, true)

	repaid, err := svc.Repay(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LoanPaid, repaid.Status)
	assert.False(t, repaid.IsOverdue)

	// A settled loan is out of reach of both weekly rules
	engine := NewRuleEngine(store, nil, testAutomationConfig())
	assert.Equal(t, 0, engine.RunWeeklyInterest(ctx, meetingDay).Applied)
	assert.Equal(t, 0, engine.RunWeeklyPenalty(ctx, meetingDay).Applied)
}

func TestRepayRequiresApprovedLoan(t *testing.T) {
	store := repositories.NewMemoryStore(nil)
	svc := NewLoanService(store, nil)
	ctx := context.Background()

	member := seedMember(t, store, meetingDay)
	loan, err := svc.Request(ctx, &RequestLoanInput{MemberID: member.ID, Amount: 1000})
	require.NoError(t, err)

	_, err = svc.Repay(ctx, loan.ID)
	assert.ErrorIs(t, err, domain.ErrLoanNotApproved)
}
