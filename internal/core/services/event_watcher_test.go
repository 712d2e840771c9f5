package services

import (
	"context"
	"testing"
	"time"

	"saccotrack/internal/adapters/persistence/models"
	"saccotrack/internal/adapters/persistence/repositories"
	"saccotrack/internal/core/domain"
	"saccotrack/internal/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleNewLoanSetsDueDateOnce(t *testing.T) {
	store := repositories.NewMemoryStore(nil)
	watcher := NewEventWatcher(store, events.NewBus(8))
	ctx := context.Background()

	member := seedMember(t, store, meetingDay.AddDate(0, 0, -10))

	createdAt := meetingDay
	loan := &models.Loan{
		MemberID:        member.ID,
		PrincipalAmount: 1000,
		CurrentAmount:   1000,
		Status:          domain.LoanApproved,
		CreatedAt:       createdAt,
	}
	require.NoError(t, store.CreateLoan(ctx, loan))

	ev := events.Event{Type: events.EntityLoan, Op: events.OpInsert, EntityID: loan.ID, MemberID: member.ID}
	watcher.Handle(ctx, ev)

	got, err := store.GetLoan(ctx, loan.ID)
	require.NoError(t, err)
	require.NotNil(t, got.DueDate)
	assert.True(t, got.DueDate.Equal(createdAt.AddDate(0, 0, domain.LoanTermDays)))

	// Duplicate delivery leaves the due date untouched
	watcher.Handle(ctx, ev)

	again, err := store.GetLoan(ctx, loan.ID)
	require.NoError(t, err)
	assert.True(t, again.DueDate.Equal(*got.DueDate))

	logs, total, err := store.ListAuditLogs(ctx, 0, 0)
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	assert.Equal(t, domain.ActionLoanDueDate, logs[0].ActionType)
}

func TestHandleNewLoanCountsAsActivity(t *testing.T) {
	store := repositories.NewMemoryStore(nil)
	watcher := NewEventWatcher(store, events.NewBus(8))
	ctx := context.Background()

	member := seedMember(t, store, meetingDay.AddDate(0, 0, -60))

	loan := &models.Loan{
		MemberID:        member.ID,
		PrincipalAmount: 500,
		CurrentAmount:   500,
		Status:          domain.LoanApproved,
		CreatedAt:       meetingDay,
	}
	require.NoError(t, store.CreateLoan(ctx, loan))

	watcher.Handle(ctx, events.Event{Type: events.EntityLoan, Op: events.OpInsert, EntityID: loan.ID, MemberID: member.ID})

	got, err := store.GetMember(ctx, member.ID)
	require.NoError(t, err)
	assert.True(t, got.LastActivityAt.Equal(meetingDay))
}

func TestHandleNewSavingReactivatesMember(t *testing.T) {
	store := repositories.NewMemoryStore(nil)
	watcher := NewEventWatcher(store, events.NewBus(8))
	ctx := context.Background()

	member := seedMember(t, store, meetingDay.AddDate(0, 0, -120))
	member.IsActive = false
	require.NoError(t, store.UpdateMember(ctx, member))

	saving := &models.Saving{MemberID: member.ID, Amount: 250, CreatedAt: meetingDay}
	require.NoError(t, store.CreateSaving(ctx, saving))

	watcher.Handle(ctx, events.Event{Type: events.EntitySaving, Op: events.OpInsert, EntityID: saving.ID, MemberID: member.ID})

	got, err := store.GetMember(ctx, member.ID)
	require.NoError(t, err)
	assert.True(t, got.IsActive)
	assert.True(t, got.LastActivityAt.Equal(meetingDay))
}

func TestActivityNeverMovesBackward(t *testing.T) {
	store := repositories.NewMemoryStore(nil)
	watcher := NewEventWatcher(store, events.NewBus(8))
	ctx := context.Background()

	member := seedMember(t, store, meetingDay)

	// An older saving replayed after the fact must not rewind activity
	saving := &models.Saving{MemberID: member.ID, Amount: 100, CreatedAt: meetingDay.AddDate(0, 0, -30)}
	require.NoError(t, store.CreateSaving(ctx, saving))

	watcher.Handle(ctx, events.Event{Type: events.EntitySaving, Op: events.OpInsert, EntityID: saving.ID, MemberID: member.ID})

	got, err := store.GetMember(ctx, member.ID)
	require.NoError(t, err)
	assert.True(t, got.LastActivityAt.Equal(meetingDay))
}

func TestWatcherConsumesBusEvents(t *testing.T) {
	bus := events.NewBus(8)
	store := repositories.NewMemoryStore(bus)
	watcher := NewEventWatcher(store, bus)
	watcher.Start()
	defer watcher.Stop()

	ctx := context.Background()
	member := seedMember(t, store, meetingDay.AddDate(0, 0, -10))

	// The store publishes the insert; the running watcher reacts
	loan := &models.Loan{
		MemberID:        member.ID,
		PrincipalAmount: 800,
		CurrentAmount:   800,
		Status:          domain.LoanApproved,
		CreatedAt:       meetingDay,
	}
	require.NoError(t, store.CreateLoan(ctx, loan))

	assert.Eventually(t, func() bool {
		got, err := store.GetLoan(ctx, loan.ID)
		return err == nil && got.DueDate != nil
	}, 2*time.Second, 10*time.Millisecond)
}
